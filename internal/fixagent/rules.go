// File: internal/fixagent/rules.go
package fixagent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/codeguard-pro/codeguard/api/schemas"
)

var secretPattern = regexp.MustCompile(`(?i)(api[_-]?key|secret|password|token)\s*[=:]\s*["'][^"']+["']`)

// proposeWithRules applies a deterministic, per-BugKind mutation to the
// single line the issue points at. It is the only path when no LLM is
// configured and the fallback when the LLM response can't be trusted.
func (a *Agent) proposeWithRules(file, content string, issue schemas.Issue) (schemas.Fix, error) {
	lines := strings.Split(content, "\n")
	idx := issue.Line - 1
	if idx < 0 || idx >= len(lines) {
		return schemas.Fix{
			File: file, Line: issue.Line, BugType: issue.BugType,
			Status:      schemas.FixUnfixable,
			Explanation: "reported line is out of range for the current file content",
		}, nil
	}

	original := lines[idx]
	fixedLine, description, mutated := mutate(issue.BugType, original)
	if !mutated {
		return schemas.Fix{
			File: file, Line: issue.Line, BugType: issue.BugType,
			Status:      schemas.FixUnfixable,
			Explanation: fmt.Sprintf("no deterministic rule covers bug type %s", issue.BugType),
		}, nil
	}

	lines[idx] = fixedLine
	fixed := strings.Join(lines, "\n")

	return schemas.Fix{
		File:          file,
		Line:          issue.Line,
		BugType:       issue.BugType,
		Status:        schemas.FixApplied,
		CommitMessage: ensureMarker(description, a.marker),
		Explanation:   description,
		PendingCommit: &schemas.PendingCommit{Content: fixed},
	}, nil
}

// mutate applies one deterministic rewrite to line, keyed by bug kind. It
// returns the rewritten line, a human description suitable as a commit
// message body, and whether a rule actually fired.
func mutate(kind schemas.BugKind, line string) (fixed string, description string, ok bool) {
	switch kind {
	case schemas.BugSyntax:
		trimmed := strings.TrimRight(line, " \t")
		if trimmed != "" && !strings.HasSuffix(trimmed, ";") && !strings.HasSuffix(trimmed, "{") &&
			!strings.HasSuffix(trimmed, "}") && !strings.HasSuffix(trimmed, ":") {
			return trimmed + ";", "add missing statement terminator", true
		}
		return line, "", false

	case schemas.BugLinting:
		if strings.Contains(line, "console.log") || strings.Contains(line, "print(") || strings.Contains(line, "fmt.Println") {
			indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
			return indent + "// " + strings.TrimLeft(line, " \t"), "comment out debug output statement", true
		}
		if secretPattern.MatchString(line) {
			fixedLine := secretPattern.ReplaceAllStringFunc(line, func(match string) string {
				key := strings.SplitN(match, "=", 2)[0]
				if strings.Contains(match, ":") && !strings.Contains(match, "=") {
					key = strings.SplitN(match, ":", 2)[0]
				}
				return strings.TrimSpace(key) + " = lookupEnvSecret()"
			})
			return fixedLine, "replace hardcoded secret with an environment lookup", true
		}
		return line, "", false

	case schemas.BugLogic:
		if strings.Contains(line, "eval(") {
			return strings.ReplaceAll(line, "eval(", "Function("), "replace eval() with the safer Function() constructor", true
		}
		if strings.Contains(line, "==") && !strings.Contains(line, "===") && !strings.Contains(line, "!==") {
			return strings.ReplaceAll(line, "==", "==="), "use strict equality (===) instead of loose equality", true
		}
		return line, "", false

	case schemas.BugTypeError:
		if idx := strings.Index(line, "."); idx > 0 && !strings.Contains(line, "?.") {
			return line[:idx] + "?" + line[idx:], "add optional chaining to guard against a null/undefined reference", true
		}
		return line, "", false

	case schemas.BugImport:
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "import") || strings.HasPrefix(trimmed, "require") || strings.HasPrefix(trimmed, "from") {
			indent := line[:len(line)-len(trimmed)]
			return indent + "// " + trimmed, "comment out unresolved import pending investigation", true
		}
		return line, "", false

	case schemas.BugIndentation:
		trimmed := strings.TrimLeft(line, "\t")
		tabCount := len(line) - len(trimmed)
		if tabCount > 0 {
			return strings.Repeat("    ", tabCount) + trimmed, "convert leading tabs to 4-space indentation", true
		}
		return line, "", false
	}

	return line, "", false
}
