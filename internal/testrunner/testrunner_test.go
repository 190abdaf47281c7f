package testrunner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/internal/config"
	"github.com/codeguard-pro/codeguard/internal/sandbox"
)

func TestDetectProjectType(t *testing.T) {
	cases := []struct {
		marker string
		want   ProjectType
	}{
		{"package.json", ProjectNode},
		{"requirements.txt", ProjectPython},
		{"pom.xml", ProjectJava},
		{"go.mod", ProjectGo},
		{"Cargo.toml", ProjectRust},
		{"Makefile", ProjectMake},
	}

	for _, c := range cases {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, c.marker), []byte("x"), 0o644); err != nil {
			t.Fatalf("write marker: %v", err)
		}
		if got := DetectProjectType(dir); got != c.want {
			t.Errorf("DetectProjectType with marker %q = %q, want %q", c.marker, got, c.want)
		}
	}
}

func TestDetectProjectType_NoMarkersIsUnknown(t *testing.T) {
	dir := t.TempDir()
	if got := DetectProjectType(dir); got != ProjectUnknown {
		t.Errorf("expected ProjectUnknown, got %q", got)
	}
}

func TestHasTestFiles_FindsGoTestFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "foo_test.go"), []byte("package foo"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	found, err := hasTestFiles(dir, ProjectGo)
	if err != nil {
		t.Fatalf("hasTestFiles: %v", err)
	}
	if !found {
		t.Error("expected to find foo_test.go")
	}
}

func TestHasTestFiles_SkipsNodeModules(t *testing.T) {
	dir := t.TempDir()
	nm := filepath.Join(dir, "node_modules", "some-pkg")
	if err := os.MkdirAll(nm, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(nm, "x.test.js"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	found, err := hasTestFiles(dir, ProjectNode)
	if err != nil {
		t.Fatalf("hasTestFiles: %v", err)
	}
	if found {
		t.Error("expected node_modules to be skipped")
	}
}

func TestParseGo_ExtractsFailureWithFileAndLine(t *testing.T) {
	output := "--- FAIL: TestAdd\n    add_test.go:17: expected 4, got 5\nFAIL\n"
	failures := parseGo(output)
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d: %+v", len(failures), failures)
	}
	if failures[0].Name != "TestAdd" || failures[0].File != "add_test.go" || failures[0].Line != 17 {
		t.Errorf("unexpected failure: %+v", failures[0])
	}
}

func TestParsePython_ExtractsFileAndLineFromTraceback(t *testing.T) {
	output := "FAILED tests/test_app.py::test_add\n" +
		"Traceback (most recent call last):\n" +
		`  File "tests/test_app.py", line 12, in test_add` + "\n"
	failures := parsePython(output)
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d: %+v", len(failures), failures)
	}
	if failures[0].File != "tests/test_app.py" || failures[0].Line != 12 {
		t.Errorf("unexpected failure: %+v", failures[0])
	}
}

func TestDedupe_RemovesDuplicateFileLine(t *testing.T) {
	in := []Failure{
		{File: "a.go", Line: 1, Name: "x"},
		{File: "a.go", Line: 1, Name: "y"},
		{File: "b.go", Line: 2, Name: "z"},
	}
	out := dedupe(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 deduped failures, got %d: %+v", len(out), out)
	}
}

func TestRun_NoTestFilesReturnsEmptyResult(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module x\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	sb := sandbox.New(config.SandboxConfig{Enabled: false, Timeout: 2 * time.Second}, zap.NewNop())
	r := New(sb, zap.NewNop())

	result, err := r.Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.TestsFound {
		t.Error("expected TestsFound to be false with no _test.go files")
	}
	if result.ProjectType != ProjectGo {
		t.Errorf("expected ProjectGo, got %q", result.ProjectType)
	}
}
