// File: internal/ast/ast.go
// Description: ASTEngine composes GrammarRegistry and QueryRegistry into the
// analyze(source, filename, opts) contract. Suppression-marker scanning
// mirrors the line-scanning style of the deleted regex-based static
// analyzers, just checked against the match line and the line before it.
package ast

import (
	"context"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/api/schemas"
	"github.com/codeguard-pro/codeguard/internal/grammar"
	"github.com/codeguard-pro/codeguard/internal/rules"
)

var suppressionMarkers = []string{"codeguard-ignore", "noqa", "eslint-disable", "@suppress"}

const maxSnippetLen = 120

// Violation is one rule match, precise enough for both the PR-comment
// renderer and the RepoAnalyzer classification step.
type Violation struct {
	RuleID    string
	Category  schemas.RuleCategory
	Severity  schemas.Severity
	Message   string
	File      string
	Line      int
	Column    int
	EndLine   int
	EndColumn int
	Snippet   string
	LineText  string
	Engine    string
}

// Options narrows an Analyze call. Language overrides the extension-based
// resolution; Categories/RuleIDs narrow the rule set exactly like
// QueryRegistry.getQueries.
type Options struct {
	Language   string
	Categories []schemas.RuleCategory
	RuleIDs    []string
}

// Result is the full analyze() contract, including timing fields that are
// populated even when parsing or language resolution fails.
type Result struct {
	Violations   []Violation
	Language     string
	ASTSupported bool
	ParseTimeMs  int64
	QueryTimeMs  int64
	RulesChecked int
	Error        error
}

// Engine is the ASTEngine.
type Engine struct {
	grammars *grammar.Registry
	queries  *rules.Registry
	logger   *zap.Logger
}

// New wires an Engine from an already-constructed GrammarRegistry and
// QueryRegistry; ValidateQueries is expected to have already run on
// queries.
func New(grammars *grammar.Registry, queries *rules.Registry, logger *zap.Logger) *Engine {
	return &Engine{grammars: grammars, queries: queries, logger: logger.Named("ast_engine")}
}

// Analyze runs the full per-file algorithm: resolve language, parse, fetch
// the filtered rule set, run each compiled query, and classify matches into
// Violations. It never panics or propagates a parse error as anything other
// than Result.Error — callers should never need a recover().
func (e *Engine) Analyze(ctx context.Context, source []byte, filename string, opts Options) Result {
	lang := opts.Language
	if lang == "" {
		resolved, ok := grammar.LanguageForFile(filename)
		if !ok {
			return Result{Language: "", ASTSupported: false}
		}
		lang = string(resolved)
	}

	parseStart := time.Now()
	tree, err := e.grammars.Parse(ctx, source, grammar.Language(lang))
	parseTimeMs := time.Since(parseStart).Milliseconds()
	if err != nil {
		return Result{Language: lang, ASTSupported: false, ParseTimeMs: parseTimeMs, Error: err}
	}
	defer tree.Delete()

	activeRules := e.queries.GetQueries(lang, opts.Categories, opts.RuleIDs)
	if len(activeRules) == 0 {
		return Result{Language: lang, ASTSupported: true, ParseTimeMs: parseTimeMs}
	}

	lines := strings.Split(string(source), "\n")

	queryStart := time.Now()
	var violations []Violation
	for _, rule := range activeRules {
		q, ok := e.queries.CompiledQuery(rule.ID)
		if !ok {
			continue
		}
		violations = append(violations, e.runRule(rule, q, tree.Root(), source, lines, filename)...)
	}
	queryTimeMs := time.Since(queryStart).Milliseconds()

	return Result{
		Violations:   violations,
		Language:     lang,
		ASTSupported: true,
		ParseTimeMs:  parseTimeMs,
		QueryTimeMs:  queryTimeMs,
		RulesChecked: len(activeRules),
	}
}

// runRule executes one compiled query against the tree and converts every
// unsuppressed match into a Violation. A panic from the cgo-backed cursor
// on a malformed query is not expected post-ValidateQueries, so none is
// recovered here — the bad-query case is handled before compilation ever
// reaches this point.
func (e *Engine) runRule(rule schemas.Rule, q *sitter.Query, root *sitter.Node, source []byte, lines []string, filename string) []Violation {
	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q, root)

	var out []Violation
	for {
		m, ok := cursor.NextMatch()
		if !ok {
			break
		}
		target := captureTarget(m, q)
		if target == nil {
			continue
		}

		line := int(target.StartPoint().Row) + 1
		if suppressed(lines, line) {
			continue
		}

		out = append(out, Violation{
			RuleID:    rule.ID,
			Category:  rule.Category,
			Severity:  rule.Severity,
			Message:   rule.Message,
			File:      filename,
			Line:      line,
			Column:    int(target.StartPoint().Column) + 1,
			EndLine:   int(target.EndPoint().Row) + 1,
			EndColumn: int(target.EndPoint().Column) + 1,
			Snippet:   truncate(target.Content(source), maxSnippetLen),
			LineText:  trimmedLine(lines, line),
			Engine:    "ast",
		})
	}
	return out
}

// captureTarget returns the node captured as @target, falling back to the
// match's first capture when no capture is named target.
func captureTarget(m *sitter.QueryMatch, q *sitter.Query) *sitter.Node {
	if len(m.Captures) == 0 {
		return nil
	}
	for _, c := range m.Captures {
		if q.CaptureNameForId(c.Index) == "target" {
			return c.Node
		}
	}
	return m.Captures[0].Node
}

// suppressed reports whether line or the line before it carries any of the
// recognized suppression markers.
func suppressed(lines []string, line int) bool {
	if hasMarker(lines, line) {
		return true
	}
	return hasMarker(lines, line-1)
}

func hasMarker(lines []string, line int) bool {
	if line < 1 || line > len(lines) {
		return false
	}
	text := lines[line-1]
	for _, marker := range suppressionMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func trimmedLine(lines []string, line int) string {
	if line < 1 || line > len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[line-1])
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
