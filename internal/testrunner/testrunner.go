// File: internal/testrunner/testrunner.go
// Description: TestRunner detects a repository's project type, discovers
// its test files, invokes Sandbox.RunTests, and parses the captured
// output into deduplicated Failures. The detect-then-invoke shape
// generalizes a checkBuildStatus/checkTestStatus pattern across
// languages instead of being go-only.
package testrunner

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/internal/sandbox"
)

// ProjectType is the detected build/test ecosystem for a repository.
type ProjectType string

const (
	ProjectNode    ProjectType = "node"
	ProjectPython  ProjectType = "python"
	ProjectJava    ProjectType = "java"
	ProjectGo      ProjectType = "go"
	ProjectRust    ProjectType = "rust"
	ProjectMake    ProjectType = "make"
	ProjectUnknown ProjectType = "unknown"
)

var skipDirs = map[string]bool{
	"node_modules": true, ".git": true, "dist": true, "build": true,
	"__pycache__": true, ".venv": true, "venv": true, ".tox": true,
}

const maxWalkDepth = 8

// testCommands gives the invocation TestRunner hands to Sandbox once test
// files have been found, per project type.
var testCommands = map[ProjectType]string{
	ProjectNode:   "npm test",
	ProjectPython: "pytest",
	ProjectJava:   "mvn test",
	ProjectGo:     "go test ./...",
	ProjectRust:   "cargo test",
	ProjectMake:   "make test",
}

// markerFiles is probed in order; the first hit decides ProjectType.
var markerFiles = []struct {
	name string
	typ  ProjectType
}{
	{"package.json", ProjectNode},
	{"requirements.txt", ProjectPython},
	{"setup.py", ProjectPython},
	{"pyproject.toml", ProjectPython},
	{"Pipfile", ProjectPython},
	{"pom.xml", ProjectJava},
	{"build.gradle", ProjectJava},
	{"go.mod", ProjectGo},
	{"Cargo.toml", ProjectRust},
	{"Makefile", ProjectMake},
}

// testFilePatterns, per ProjectType, used to recognize test files during
// the walk.
var testFilePatterns = map[ProjectType][]string{
	ProjectNode:   {".test.", ".spec.", "__tests__/"},
	ProjectPython: {"test_", "_test.py"},
	ProjectJava:   {"Test.java", "Tests.java"},
	ProjectGo:     {"_test.go"},
	ProjectRust:   {"tests/"},
}

// Failure is a single normalized test failure extracted from raw output.
type Failure struct {
	File    string
	Line    int
	Name    string
	Message string
}

// Result is the TestRunner contract's output.
type Result struct {
	ProjectType ProjectType
	TestsFound  bool
	Failures    []Failure
	RawOutput   string
	ExitCode    int
	TimedOut    bool
}

// Runner is the TestRunner.
type Runner struct {
	sandbox *sandbox.Sandbox
	logger  *zap.Logger
}

// New wires a Runner against an already-constructed Sandbox.
func New(sb *sandbox.Sandbox, logger *zap.Logger) *Runner {
	return &Runner{sandbox: sb, logger: logger.Named("testrunner")}
}

// Run executes the full detect/discover/invoke/parse pipeline against
// repoLocalPath.
func (r *Runner) Run(ctx context.Context, repoLocalPath string) (Result, error) {
	projectType := DetectProjectType(repoLocalPath)

	hasTests, err := hasTestFiles(repoLocalPath, projectType)
	if err != nil {
		return Result{}, err
	}
	if !hasTests {
		r.logger.Debug("no test files discovered, skipping sandbox invocation", zap.String("project_type", string(projectType)))
		return Result{ProjectType: projectType, TestsFound: false}, nil
	}

	command, ok := testCommands[projectType]
	if !ok {
		r.logger.Warn("unknown project type has test-looking files but no known test command", zap.String("project_type", string(projectType)))
		return Result{ProjectType: projectType, TestsFound: true}, nil
	}

	sbResult, err := r.sandbox.RunTests(ctx, repoLocalPath, command)
	if err != nil {
		return Result{}, err
	}

	combined := sbResult.Stdout + "\n" + sbResult.Stderr
	failures := dedupe(parseFailures(projectType, combined))

	return Result{
		ProjectType: projectType,
		TestsFound:  true,
		Failures:    failures,
		RawOutput:   combined,
		ExitCode:    sbResult.ExitCode,
		TimedOut:    sbResult.TimedOut,
	}, nil
}

// DetectProjectType probes marker files in the documented precedence
// order.
func DetectProjectType(repoLocalPath string) ProjectType {
	for _, m := range markerFiles {
		if exists(filepath.Join(repoLocalPath, m.name)) {
			return m.typ
		}
	}
	return ProjectUnknown
}

func exists(path string) bool {
	_, err := fsStat(path)
	return err == nil
}

// hasTestFiles walks the tree up to maxWalkDepth, skipping the documented
// directories, looking for any path matching the project type's test
// patterns.
func hasTestFiles(root string, projectType ProjectType) (bool, error) {
	patterns := testFilePatterns[projectType]
	if len(patterns) == 0 {
		return false, nil
	}

	found := false
	err := walkDir(root, maxWalkDepth, func(path string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		rel := strings.ReplaceAll(path, "\\", "/")
		for _, p := range patterns {
			if strings.Contains(rel, p) {
				found = true
				return errStopWalk
			}
		}
		return nil
	})
	if err != nil && err != errStopWalk {
		return false, err
	}
	return found, nil
}
