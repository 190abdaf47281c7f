package store

import "github.com/codeguard-pro/codeguard/api/schemas"

// DefaultRuleCatalog is the baseline rule set seeded into every newly
// registered project. It is intentionally small and uncontroversial;
// projects adjust it after onboarding through the rules API.
var DefaultRuleCatalog = []schemas.Rule{
	{
		Name:          "no-hardcoded-secrets",
		Category:      schemas.CategorySecurity,
		Severity:      schemas.SeverityCritical,
		Language:      "",
		PatternSource: `(string_literal) @secret`,
		Message:       "possible hardcoded credential or secret",
	},
	{
		Name:          "no-console-debug",
		Category:      schemas.CategoryBestPractice,
		Severity:      schemas.SeverityWarning,
		Language:      "javascript",
		PatternSource: `(call_expression function: (member_expression object: (identifier) @obj property: (property_identifier) @prop (#eq? @obj "console") (#eq? @prop "log")))`,
		Message:       "remove console.log before merging",
	},
	{
		Name:          "no-bare-except",
		Category:      schemas.CategoryBestPractice,
		Severity:      schemas.SeverityWarning,
		Language:      "python",
		PatternSource: `(except_clause) @bare_except`,
		Message:       "bare except clause swallows unrelated errors",
	},
	{
		Name:          "no-empty-catch",
		Category:      schemas.CategoryBestPractice,
		Severity:      schemas.SeverityWarning,
		Language:      "go",
		PatternSource: `(if_statement condition: (binary_expression) consequence: (block) @empty (#eq? @empty "{}"))`,
		Message:       "empty error branch discards the error silently",
	},
	{
		Name:          "naming-exported-doc",
		Category:      schemas.CategoryNaming,
		Severity:      schemas.SeverityInfo,
		Language:      "go",
		PatternSource: `(function_declaration name: (identifier) @name (#match? @name "^[A-Z]"))`,
		Message:       "exported identifier should have a doc comment",
	},
}
