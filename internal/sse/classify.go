// File: internal/sse/classify.go
// Description: turns testrunner.Failure values into schemas.Issue values
// ahead of a HealSession's first ANALYZE pass. The bug-type table mirrors
// orchestrator.classifyBugType's substring heuristic so a test-sourced
// issue and a CI-sourced one get classified identically.
package sse

import (
	"strings"

	"github.com/codeguard-pro/codeguard/api/schemas"
	"github.com/codeguard-pro/codeguard/internal/testrunner"
)

func classifyTestFailures(failures []testrunner.Failure) []schemas.Issue {
	issues := make([]schemas.Issue, 0, len(failures))
	for _, f := range failures {
		if f.File == "" {
			continue
		}
		issues = append(issues, schemas.Issue{
			File:        f.File,
			Line:        f.Line,
			BugType:     classifyBugType(f.Message),
			Description: f.Message,
			Severity:    schemas.SeverityWarning,
			Source:      schemas.SourceTest,
		})
	}
	return issues
}

func classifyBugType(message string) schemas.BugKind {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "syntax"):
		return schemas.BugSyntax
	case strings.Contains(lower, "import"), strings.Contains(lower, "module"):
		return schemas.BugImport
	case strings.Contains(lower, "type"), strings.Contains(lower, "undefined"):
		return schemas.BugTypeError
	case strings.Contains(lower, "indent"), strings.Contains(lower, "whitespace"):
		return schemas.BugIndentation
	case strings.Contains(lower, "lint"):
		return schemas.BugLinting
	default:
		return schemas.BugLogic
	}
}
