// File: internal/regexscan/detector.go
// Description: runs the fixed regex catalog line-by-line against a file's
// content. This is the fallback detector when ASTEngine can't handle a
// language (or errors out), and the sole detector on the fast inline PR
// analysis path.
package regexscan

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/api/schemas"
)

// Detector runs the fixed catalog against file content.
type Detector struct {
	logger *zap.Logger
}

// New wires a Detector. The catalog is fixed at compile time; no
// configuration is needed.
func New(logger *zap.Logger) *Detector {
	return &Detector{logger: logger.Named("regexscan")}
}

// match is one catalog hit against a specific line.
type match struct {
	ruleID   string
	line     int
	lineText string
	message  string
	bugType  schemas.BugKind
	severity schemas.Severity
}

// scan runs every catalog entry against every line of content once, keeping
// memory bounded by walking lines outer, patterns inner (the catalog is
// small enough that this ordering costs nothing measurable).
func (d *Detector) scan(content string) []match {
	lines := strings.Split(content, "\n")
	var matches []match

	for i, line := range lines {
		for themeIdx := range catalog {
			e := &catalog[themeIdx]
			if !e.pattern.MatchString(line) {
				continue
			}
			matches = append(matches, match{
				ruleID:   ruleID(e, themeIdx),
				line:     i + 1,
				lineText: strings.TrimSpace(line),
				message:  e.message,
				bugType:  e.bugType,
				severity: e.severity,
			})
		}
	}
	return matches
}

// DetectIssues runs the catalog and returns normalized Issues, for use as a
// RepoAnalyzer fallback detector against a single file's content.
func (d *Detector) DetectIssues(file, content string) []schemas.Issue {
	matches := d.scan(content)
	issues := make([]schemas.Issue, 0, len(matches))
	for _, m := range matches {
		issues = append(issues, schemas.Issue{
			File:        file,
			Line:        m.line,
			BugType:     m.bugType,
			Description: m.message,
			CodeSnippet: truncate(m.lineText, 120),
			Severity:    m.severity,
			Source:      schemas.SourceRegex,
		})
	}
	return issues
}

// DetectViolations runs the catalog and returns persistence-shaped
// Violations tied to analysisID, for the inline PR-analysis path. maxCount,
// if > 0, bounds the number of violations returned.
func (d *Detector) DetectViolations(analysisID, file, content string, maxCount int) []schemas.Violation {
	matches := d.scan(content)
	violations := make([]schemas.Violation, 0, len(matches))
	for _, m := range matches {
		if maxCount > 0 && len(violations) >= maxCount {
			break
		}
		violations = append(violations, schemas.Violation{
			AnalysisID: analysisID,
			RuleID:     m.ruleID,
			File:       file,
			Line:       m.line,
			Message:    m.message,
		})
	}
	return violations
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// ruleID builds a stable identifier for a catalog entry, scoped by theme and
// its position within that theme so persisted Violations can be traced back
// to the rule that produced them.
func ruleID(e *entry, globalIdx int) string {
	count := 0
	for i := 0; i < globalIdx; i++ {
		if catalog[i].theme == e.theme {
			count++
		}
	}
	return "regex-" + e.theme + "-" + strconv.Itoa(count+1)
}
