package repoanalyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/api/schemas"
	"github.com/codeguard-pro/codeguard/internal/ast"
	"github.com/codeguard-pro/codeguard/internal/grammar"
	"github.com/codeguard-pro/codeguard/internal/regexscan"
	"github.com/codeguard-pro/codeguard/internal/rules"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	g := grammar.New()
	r := rules.New(zap.NewNop())
	if err := r.ValidateQueries(context.Background(), g); err != nil {
		t.Fatalf("ValidateQueries: %v", err)
	}
	engine := ast.New(g, r, zap.NewNop())
	regex := regexscan.New(zap.NewNop())
	return New(engine, regex, zap.NewNop())
}

func TestAnalyze_FindsASTViolationInSourceFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("function run(x){ return eval(x); }\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	a := newTestAnalyzer(t)
	issues, err := a.Analyze(context.Background(), dir)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	found := false
	for _, iss := range issues {
		if iss.Source == schemas.SourceAST && iss.File == "app.js" {
			found = true
			if iss.BugType != schemas.BugLogic {
				t.Errorf("expected eval-usage to classify as LOGIC, got %q", iss.BugType)
			}
		}
	}
	if !found {
		t.Error("expected an AST-sourced issue for app.js")
	}
}

func TestAnalyze_SkipsTestLookingPaths(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "__tests__"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "__tests__", "app.test.js"), []byte("eval(x)"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	a := newTestAnalyzer(t)
	issues, err := a.Analyze(context.Background(), dir)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("expected test-looking paths to be skipped, got %d issues", len(issues))
	}
}

func TestAnalyze_SkipsUnrecognizedExtensions(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("eval(something)"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	a := newTestAnalyzer(t)
	issues, err := a.Analyze(context.Background(), dir)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("expected unrecognized extensions to be skipped, got %d issues", len(issues))
	}
}

func TestAnalyze_DetectsCSecurityIssue(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.c"), []byte("int main() { char buf[8]; gets(buf); return 0; }\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	a := newTestAnalyzer(t)
	issues, err := a.Analyze(context.Background(), dir)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	found := false
	for _, iss := range issues {
		if iss.Source == schemas.SourceAST {
			found = true
		}
	}
	if !found {
		t.Error("expected an AST-sourced issue for the bundled C grammar's gets() rule")
	}
}

// analyzeFile falls back to the regex detector whenever the AST engine
// reports no support for a file's language. Every extension the walk
// actually passes through now has both a grammar and a rule catalog, so
// this exercises the fallback branch directly rather than via Analyze.
func TestAnalyzeFile_FallsBackToRegexWhenASTUnsupported(t *testing.T) {
	a := newTestAnalyzer(t)
	issues := a.analyzeFile(context.Background(), "main.unknownlang", []byte("// TODO fix this\n"))

	found := false
	for _, iss := range issues {
		if iss.Source == schemas.SourceRegex {
			found = true
		}
	}
	if !found {
		t.Error("expected a regex-sourced fallback issue when the AST engine reports no language support")
	}
}

func TestClassifyBugType_SyntaxMessageWins(t *testing.T) {
	v := ast.Violation{Message: "unexpected token '}'", Category: schemas.CategorySecurity}
	if got := classifyBugType(v, "unexpected token '}'"); got != schemas.BugSyntax {
		t.Errorf("expected BugSyntax, got %q", got)
	}
}

func TestClassifyBugType_StyleCategoryFallsToLinting(t *testing.T) {
	v := ast.Violation{Message: "use let/const instead of var", Category: schemas.CategoryStyle}
	if got := classifyBugType(v, "use let/const instead of var"); got != schemas.BugLinting {
		t.Errorf("expected BugLinting, got %q", got)
	}
}

func TestClassifyBugType_DefaultsToLogic(t *testing.T) {
	v := ast.Violation{Message: "assigning to innerHTML risks XSS", Category: schemas.CategorySecurity}
	if got := classifyBugType(v, "assigning to innerhtml risks xss"); got != schemas.BugLogic {
		t.Errorf("expected BugLogic, got %q", got)
	}
}
