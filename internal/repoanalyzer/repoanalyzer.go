// File: internal/repoanalyzer/repoanalyzer.go
// Description: RepoAnalyzer walks a checked-out repository, runs ASTEngine
// against each recognizable source file (falling back to RegexDetector
// when AST support is absent or errors out), and classifies every raw
// violation into a typed Issue. The walk-then-analyze shape is the
// teacher's internal/evolution/observe/observe.go pattern, generalized
// from "run go build/go test" to "run the detection engines per file".
package repoanalyzer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/api/schemas"
	"github.com/codeguard-pro/codeguard/internal/ast"
	"github.com/codeguard-pro/codeguard/internal/grammar"
	"github.com/codeguard-pro/codeguard/internal/regexscan"
)

var skipDirs = map[string]bool{
	"node_modules": true, ".git": true, "dist": true, "build": true,
	"__pycache__": true, ".venv": true, "venv": true, ".tox": true,
}

const maxWalkDepth = 10

var analysisCategories = []schemas.RuleCategory{
	schemas.CategorySecurity,
	schemas.CategoryBestPractice,
	schemas.CategoryStyle,
	schemas.CategoryNaming,
	schemas.CategoryPerformance,
}

// Analyzer is the RepoAnalyzer.
type Analyzer struct {
	engine *ast.Engine
	regex  *regexscan.Detector
	logger *zap.Logger
}

// New wires an Analyzer from already-constructed detection engines.
func New(engine *ast.Engine, regex *regexscan.Detector, logger *zap.Logger) *Analyzer {
	return &Analyzer{engine: engine, regex: regex, logger: logger.Named("repoanalyzer")}
}

// Analyze walks repoLocalPath and returns the classified Issues for every
// analyzable file.
func (a *Analyzer) Analyze(ctx context.Context, repoLocalPath string) ([]schemas.Issue, error) {
	var issues []schemas.Issue

	err := walkDir(repoLocalPath, 0, func(relPath string, fullPath string, isDir bool) error {
		if isDir {
			return nil
		}
		if looksLikeTest(relPath) {
			return nil
		}
		if _, ok := grammar.LanguageForFile(relPath); !ok {
			return nil
		}

		content, err := os.ReadFile(fullPath)
		if err != nil {
			a.logger.Warn("failed to read file during repo analysis", zap.String("file", relPath), zap.Error(err))
			return nil
		}

		issues = append(issues, a.analyzeFile(ctx, relPath, content)...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return issues, nil
}

func (a *Analyzer) analyzeFile(ctx context.Context, relPath string, content []byte) []schemas.Issue {
	result := a.engine.Analyze(ctx, content, relPath, ast.Options{Categories: analysisCategories})

	if len(result.Violations) == 0 && (!result.ASTSupported || result.Error != nil) {
		return a.regex.DetectIssues(relPath, string(content))
	}

	issues := make([]schemas.Issue, 0, len(result.Violations))
	for _, v := range result.Violations {
		issues = append(issues, classify(v))
	}
	return issues
}

// looksLikeTest excludes any path whose components suggest it's a test
// file rather than production source.
func looksLikeTest(relPath string) bool {
	lower := strings.ToLower(relPath)
	for _, marker := range []string{"test", "spec", "__tests__"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// classify maps an AST violation to a typed Issue via the documented
// precedence table: an explicit BugKind-shaped category wins outright;
// otherwise the message decides; style/naming or a lint-flavoured message
// falls to LINTING; everything else is LOGIC.
func classify(v ast.Violation) schemas.Issue {
	msg := strings.ToLower(v.Message)

	bugType := classifyBugType(v, msg)

	return schemas.Issue{
		File:        v.File,
		Line:        v.Line,
		BugType:     bugType,
		Description: v.Message,
		CodeSnippet: v.Snippet,
		Severity:    v.Severity,
		Source:      schemas.SourceAST,
	}
}

func classifyBugType(v ast.Violation, msg string) schemas.BugKind {
	switch {
	case containsAny(msg, "syntax", "unexpected token", "parsing error"):
		return schemas.BugSyntax
	case containsAny(msg, "import", "require", "module not found") || containsAny(strings.ToLower(v.RuleID), "import", "require"):
		return schemas.BugImport
	case containsAny(msg, "type", "undefined", "null reference", "incompatible"):
		return schemas.BugTypeError
	case containsAny(msg, "indent", "whitespace", "tab", "spacing"):
		return schemas.BugIndentation
	case v.Category == schemas.CategoryStyle || v.Category == schemas.CategoryNaming || containsAny(msg, "lint", "naming", "convention", "unused"):
		return schemas.BugLinting
	default:
		return schemas.BugLogic
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

type walkFunc func(relPath, fullPath string, isDir bool) error

func walkDir(root string, depth int, fn walkFunc) error {
	return walkDirAt(root, "", depth, fn)
}

func walkDirAt(root, rel string, depth int, fn walkFunc) error {
	dir := filepath.Join(root, rel)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		relPath := filepath.Join(rel, entry.Name())
		fullPath := filepath.Join(root, relPath)

		if err := fn(relPath, fullPath, entry.IsDir()); err != nil {
			return err
		}
		if entry.IsDir() {
			if skipDirs[entry.Name()] || depth >= maxWalkDepth {
				continue
			}
			if err := walkDirAt(root, relPath, depth+1, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
