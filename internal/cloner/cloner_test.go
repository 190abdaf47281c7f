// File: internal/cloner/cloner_test.go
package cloner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/internal/config"
)

var testSignature = object.Signature{
	Name:  "Test",
	Email: "test@example.com",
	When:  time.Now(),
}

// initLocalRepo creates a throwaway git repository on disk with a single
// commit on branch "main" so tests can clone from it without network
// access.
func initLocalRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if _, err := wt.Add("README.md"); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err = wt.Commit("initial commit", &git.CommitOptions{
		Author: &testSignature,
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	return dir
}

func TestClone_Success(t *testing.T) {
	src := initLocalRepo(t)

	c := New(config.OrchestratorConfig{CloneTimeout: 10 * time.Second}, zap.NewNop())
	result, err := c.Clone(context.Background(), src, "", "")
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	defer result.Cleanup()

	if result.HeadSHA == "" {
		t.Error("expected a non-empty HeadSHA")
	}
	if _, err := os.Stat(filepath.Join(result.LocalPath, "README.md")); err != nil {
		t.Errorf("expected README.md to be checked out: %v", err)
	}
}

func TestClone_InvalidURLFails(t *testing.T) {
	c := New(config.OrchestratorConfig{CloneTimeout: 2 * time.Second}, zap.NewNop())
	_, err := c.Clone(context.Background(), "/nonexistent/path/does/not/exist", "", "")
	if err == nil {
		t.Fatal("expected an error cloning a nonexistent repository")
	}
}

func TestClone_CleanupRemovesDirectory(t *testing.T) {
	src := initLocalRepo(t)

	c := New(config.OrchestratorConfig{}, zap.NewNop())
	result, err := c.Clone(context.Background(), src, "", "")
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}

	result.Cleanup()
	if _, err := os.Stat(result.LocalPath); !os.IsNotExist(err) {
		t.Error("expected clone directory to be removed after Cleanup")
	}
}
