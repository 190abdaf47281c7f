// File: internal/rules/catalog.go
// Description: the embedded per-language rule catalog QueryRegistry loads
// at startup. Each rule pairs a unique id with a tree-sitter S-expression
// query; rule data lives here as plain values, not code, per the
// dynamic-dispatch design note — the engine just compiles and runs them.
package rules

import "github.com/codeguard-pro/codeguard/api/schemas"

// jsRules covers both js and (via tsExtras below) ts/tsx, since the three
// grammars share most node types for these constructs.
var jsRules = []schemas.Rule{
	{
		ID: "js-sec-001", Name: "eval usage", Category: schemas.CategorySecurity,
		Severity: schemas.SeverityCritical, Language: "js",
		PatternSource: `(call_expression function: (identifier) @target (#eq? @target "eval"))`,
		Message:       "eval() executes arbitrary code", IsActive: true,
	},
	{
		ID: "js-sec-002", Name: "innerHTML assignment", Category: schemas.CategorySecurity,
		Severity: schemas.SeverityWarning, Language: "js",
		PatternSource: `(assignment_expression left: (member_expression property: (property_identifier) @target (#eq? @target "innerHTML")))`,
		Message:       "assigning to innerHTML risks XSS if the value is not sanitized", IsActive: true,
	},
	{
		ID: "js-sec-003", Name: "hardcoded secret assignment", Category: schemas.CategorySecurity,
		Severity: schemas.SeverityCritical, Language: "js",
		PatternSource: `(variable_declarator name: (identifier) @target value: (string) @val (#match? @target "(?i)(secret|token|api[_-]?key|apikey|password|passwd|credential)"))`,
		Message:       "hardcoded credential or secret assigned to a variable", IsActive: true,
	},
	{
		ID: "js-sec-004", Name: "weak hash algorithm", Category: schemas.CategorySecurity,
		Severity: schemas.SeverityWarning, Language: "js",
		PatternSource: `(call_expression function: (member_expression property: (property_identifier) @target (#eq? @target "createHash")) arguments: (arguments (string (string_fragment) @alg (#match? @alg "(?i)^(md5|sha1)$"))))`,
		Message:       "use of a broken hash algorithm (md5/sha1)", IsActive: true,
	},
	{
		ID: "js-best-001", Name: "console.log left in source", Category: schemas.CategoryBestPractice,
		Severity: schemas.SeverityInfo, Language: "js",
		PatternSource: `(call_expression function: (member_expression object: (identifier) @obj property: (property_identifier) @target) (#eq? @obj "console") (#eq? @target "log"))`,
		Message:       "debug statement left in source", IsActive: true,
	},
	{
		ID: "js-style-001", Name: "var declaration", Category: schemas.CategoryStyle,
		Severity: schemas.SeverityInfo, Language: "js",
		PatternSource: `(variable_declaration "var" @target)`,
		Message:       "use let/const instead of var", IsActive: true,
	},
	{
		ID: "js-naming-001", Name: "single-letter function name", Category: schemas.CategoryNaming,
		Severity: schemas.SeverityInfo, Language: "js",
		PatternSource: `(function_declaration name: (identifier) @target (#match? @target "^.$"))`,
		Message:       "function name is a single letter, prefer a descriptive name", IsActive: true,
	},
	{
		ID: "js-perf-001", Name: "array index lookup in loop condition", Category: schemas.CategoryPerformance,
		Severity: schemas.SeverityInfo, Language: "js",
		PatternSource: `(for_statement condition: (binary_expression right: (member_expression property: (property_identifier) @target (#eq? @target "length"))))`,
		Message:       "recompute .length once outside the loop condition", IsActive: true,
	},
}

// tsExtras are additional queries that only make sense once TypeScript
// syntax is available (type annotations, etc). TSX queries are the union
// of tsRules (ts inherits jsRules) and tsExtras, per the TSX union rule.
var tsExtras = []schemas.Rule{
	{
		ID: "ts-best-001", Name: "any type annotation", Category: schemas.CategoryBestPractice,
		Severity: schemas.SeverityWarning, Language: "ts",
		PatternSource: `(type_annotation (predefined_type) @target (#eq? @target "any"))`,
		Message:       "explicit any defeats the type checker", IsActive: true,
	},
	{
		ID: "ts-sec-001", Name: "non-null assertion", Category: schemas.CategorySecurity,
		Severity: schemas.SeverityInfo, Language: "ts",
		PatternSource: `(non_null_expression) @target`,
		Message:       "non-null assertion bypasses null checking", IsActive: true,
	},
}

var pythonRules = []schemas.Rule{
	{
		ID: "py-sec-001", Name: "eval usage", Category: schemas.CategorySecurity,
		Severity: schemas.SeverityCritical, Language: "python",
		PatternSource: `(call function: (identifier) @target (#eq? @target "eval"))`,
		Message:       "eval() executes arbitrary code", IsActive: true,
	},
	{
		ID: "py-sec-002", Name: "bare except", Category: schemas.CategoryBestPractice,
		Severity: schemas.SeverityWarning, Language: "python",
		PatternSource: `(except_clause) @target (#not-has-child? @target)`,
		Message:       "bare except swallows all exceptions", IsActive: true,
	},
	{
		ID: "py-best-001", Name: "print left in source", Category: schemas.CategoryBestPractice,
		Severity: schemas.SeverityInfo, Language: "python",
		PatternSource: `(call function: (identifier) @target (#eq? @target "print"))`,
		Message:       "debug statement left in source", IsActive: true,
	},
}

var javaRules = []schemas.Rule{
	{
		ID: "java-sec-001", Name: "Runtime.exec usage", Category: schemas.CategorySecurity,
		Severity: schemas.SeverityWarning, Language: "java",
		PatternSource: `(method_invocation name: (identifier) @target (#eq? @target "exec"))`,
		Message:       "Runtime.exec with an unescaped variable risks command injection", IsActive: true,
	},
	{
		ID: "java-best-001", Name: "System.out.println left in source", Category: schemas.CategoryBestPractice,
		Severity: schemas.SeverityInfo, Language: "java",
		PatternSource: `(method_invocation name: (identifier) @target (#eq? @target "println"))`,
		Message:       "debug statement left in source", IsActive: true,
	},
}

var goRules = []schemas.Rule{
	{
		ID: "go-best-001", Name: "fmt.Println left in source", Category: schemas.CategoryBestPractice,
		Severity: schemas.SeverityInfo, Language: "go",
		PatternSource: `(call_expression function: (selector_expression field: (field_identifier) @target (#eq? @target "Println")))`,
		Message:       "debug statement left in source", IsActive: true,
	},
	{
		ID: "go-best-002", Name: "ignored error return", Category: schemas.CategoryBestPractice,
		Severity: schemas.SeverityWarning, Language: "go",
		PatternSource: `(short_var_declaration left: (expression_list (identifier) @target (#eq? @target "_")))`,
		Message:       "error return discarded with the blank identifier", IsActive: true,
	},
}

var cRules = []schemas.Rule{
	{
		ID: "c-sec-001", Name: "gets usage", Category: schemas.CategorySecurity,
		Severity: schemas.SeverityCritical, Language: "c",
		PatternSource: `(call_expression function: (identifier) @target (#eq? @target "gets"))`,
		Message:       "gets() has no bounds checking and is a buffer-overflow hazard, use fgets", IsActive: true,
	},
	{
		ID: "c-sec-002", Name: "strcpy usage", Category: schemas.CategorySecurity,
		Severity: schemas.SeverityWarning, Language: "c",
		PatternSource: `(call_expression function: (identifier) @target (#eq? @target "strcpy"))`,
		Message:       "strcpy does not bound the copy length, prefer strncpy or snprintf", IsActive: true,
	},
	{
		ID: "c-best-001", Name: "printf left in source", Category: schemas.CategoryBestPractice,
		Severity: schemas.SeverityInfo, Language: "c",
		PatternSource: `(call_expression function: (identifier) @target (#eq? @target "printf"))`,
		Message:       "debug statement left in source", IsActive: true,
	},
}

// catalogByLanguage returns the base catalog for a language id, excluding
// TSX's union handling (done in Registry.getQueries).
func catalogByLanguage(lang string) []schemas.Rule {
	switch lang {
	case "js":
		return jsRules
	case "ts":
		return append(append([]schemas.Rule{}, jsRules...), tsExtras...)
	case "python":
		return pythonRules
	case "java":
		return javaRules
	case "go":
		return goRules
	case "c":
		return cRules
	default:
		return nil
	}
}
