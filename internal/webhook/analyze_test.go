package webhook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-github/v58/github"

	"github.com/codeguard-pro/codeguard/api/schemas"
)

func waitForAnalysis(t *testing.T, st *fakeStore, want schemas.AnalysisStatus) schemas.Analysis {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st.mu.Lock()
		for _, a := range st.analyses {
			if a.Status == want {
				st.mu.Unlock()
				return a
			}
		}
		st.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for an analysis in status %q", want)
	return schemas.Analysis{}
}

func TestRunInlineAnalysis_NoViolationsReportsSuccess(t *testing.T) {
	fc := newFakeForge()
	fc.files = []*github.CommitFile{
		{Filename: github.String("app.js"), Status: github.String("modified")},
	}
	fc.fileContent["app.js"] = "function add(a, b) { return a + b; }\n"

	st := newFakeStore()
	in := testIntake(t, fc, st)

	req := inlineAnalysisRequest{Owner: "acme", Repo: "widgets", Number: 7, HeadSHA: "abc123", RepoFull: "acme/widgets"}
	in.runInlineAnalysis(context.Background(), req)

	analysis := waitForAnalysis(t, st, schemas.AnalysisSuccess)
	if analysis.CommitHash != "abc123" {
		t.Errorf("expected commit hash abc123, got %q", analysis.CommitHash)
	}
	if len(fc.issueBodies) != 1 {
		t.Fatalf("expected exactly one success comment, got %d", len(fc.issueBodies))
	}
	if len(fc.statuses) < 2 || fc.statuses[len(fc.statuses)-1] != "success" {
		t.Errorf("expected a final success status, got %v", fc.statuses)
	}
}

func TestRunInlineAnalysis_ViolationsPostReviewCappedAtTwenty(t *testing.T) {
	fc := newFakeForge()
	fc.files = []*github.CommitFile{
		{Filename: github.String("app.js"), Status: github.String("modified")},
	}
	var lines string
	for i := 0; i < 30; i++ {
		lines += "eval(userInput);\n"
	}
	fc.fileContent["app.js"] = lines

	st := newFakeStore()
	in := testIntake(t, fc, st)

	req := inlineAnalysisRequest{Owner: "acme", Repo: "widgets", Number: 7, HeadSHA: "def456", RepoFull: "acme/widgets"}
	in.runInlineAnalysis(context.Background(), req)

	waitForAnalysis(t, st, schemas.AnalysisFailure)

	if len(fc.reviews) != 1 {
		t.Fatalf("expected exactly one review to be posted, got %d", len(fc.reviews))
	}
	if len(fc.reviews[0].comments) > maxReviewComments {
		t.Errorf("expected review comments capped at %d, got %d", maxReviewComments, len(fc.reviews[0].comments))
	}
	if len(st.violations) == 0 {
		t.Error("expected all detected violations to be persisted, not just the capped review subset")
	}
}

func TestRunInlineAnalysis_ReviewFailureFallsBackToIssueComment(t *testing.T) {
	fc := newFakeForge()
	fc.createReviewErr = errors.New("review API unavailable")
	fc.files = []*github.CommitFile{
		{Filename: github.String("app.js"), Status: github.String("modified")},
	}
	fc.fileContent["app.js"] = "eval(userInput);\n"

	st := newFakeStore()
	in := testIntake(t, fc, st)

	req := inlineAnalysisRequest{Owner: "acme", Repo: "widgets", Number: 7, HeadSHA: "ghi789", RepoFull: "acme/widgets"}
	in.runInlineAnalysis(context.Background(), req)

	waitForAnalysis(t, st, schemas.AnalysisFailure)

	if len(fc.issueBodies) != 1 {
		t.Fatalf("expected a single fallback issue comment, got %d", len(fc.issueBodies))
	}
}

func TestScanChangedFiles_SkipsRemovedAndUnsupportedExtensions(t *testing.T) {
	fc := newFakeForge()
	fc.files = []*github.CommitFile{
		{Filename: github.String("deleted.js"), Status: github.String("removed")},
		{Filename: github.String("README.md"), Status: github.String("added")},
		{Filename: github.String("app.py"), Status: github.String("modified")},
	}
	fc.fileContent["app.py"] = "password = \"supersecret123\"\n"

	st := newFakeStore()
	in := testIntake(t, fc, st)

	req := inlineAnalysisRequest{Owner: "acme", Repo: "widgets", Number: 1, HeadSHA: "sha1"}
	violations, err := in.scanChangedFiles(context.Background(), req)
	if err != nil {
		t.Fatalf("scanChangedFiles: %v", err)
	}
	for _, v := range violations {
		if v.File != "app.py" {
			t.Errorf("expected only app.py to be scanned, also saw %q", v.File)
		}
	}
}

func TestResolveProject_CreatesImplicitlyWhenMissing(t *testing.T) {
	st := newFakeStore()
	in := testIntake(t, newFakeForge(), st)

	id, err := in.resolveProject(context.Background(), "acme", "widgets")
	if err != nil {
		t.Fatalf("resolveProject: %v", err)
	}
	if id == "" {
		t.Error("expected a non-empty project id")
	}
	if !st.seededFor[id] {
		t.Error("expected default rules to be seeded for the implicitly created project")
	}
}
