// File: internal/branch/branch.go
package branch

import (
	"context"
	"fmt"

	"github.com/google/go-github/v58/github"

	"github.com/codeguard-pro/codeguard/api/schemas"
	"github.com/codeguard-pro/codeguard/internal/forge"
)

// Manager implements schemas.BranchManager on top of a forge.Client.
type Manager struct {
	client *forge.Client
}

// New wires a schemas.BranchManager against the given forge client.
func New(client *forge.Client) *Manager {
	return &Manager{client: client}
}

var _ schemas.BranchManager = (*Manager)(nil)

// EnsureBranch gets baseSha from heads/base; if heads/branch already exists
// it is deleted and recreated pointing at baseSha, so every healing run
// starts from a clean fast-forward point.
func (m *Manager) EnsureBranch(ctx context.Context, owner, repo, base, branch string) error {
	baseSHA, err := m.client.GetRef(ctx, owner, repo, "heads/"+base)
	if err != nil {
		return fmt.Errorf("resolve base branch %q: %w", base, err)
	}

	if _, err := m.client.GetRef(ctx, owner, repo, "heads/"+branch); err == nil {
		if err := m.client.DeleteRef(ctx, owner, repo, "heads/"+branch); err != nil {
			return fmt.Errorf("delete stale healing branch %q: %w", branch, err)
		}
	} else if !schemas.IsCode(err, schemas.ErrCodeNotFound) {
		return fmt.Errorf("check existing healing branch %q: %w", branch, err)
	}

	if err := m.client.CreateRef(ctx, owner, repo, "heads/"+branch, baseSHA); err != nil {
		return fmt.Errorf("create healing branch %q: %w", branch, err)
	}
	return nil
}

// CommitFile reads the existing blob sha (if any) and pushes a single-file
// commit to branch, leaving heads/<branch> pointing at the new commit.
func (m *Manager) CommitFile(ctx context.Context, owner, repo, branch, path, content, message string) error {
	_, priorSHA, err := m.client.GetFileContent(ctx, owner, repo, path, branch)
	if err != nil && !schemas.IsCode(err, schemas.ErrCodeNotFound) {
		return fmt.Errorf("check existing content of %q: %w", path, err)
	}

	if _, err := m.client.CreateOrUpdateFile(ctx, owner, repo, path, content, branch, message, priorSHA); err != nil {
		return fmt.Errorf("commit %q to %q: %w", path, branch, err)
	}
	return nil
}

// CommitMultipleFiles atomically commits several file changes in a single
// commit: blob-per-file, one tree on top of the branch tip's tree, one
// commit with the branch tip as parent, then fast-forwards heads/branch.
// Used by the orchestrator when a fix touches more files than a single
// contents-API commit can express cleanly.
func (m *Manager) CommitMultipleFiles(ctx context.Context, owner, repo, branch string, files map[string]string, message string) (string, error) {
	tipSHA, err := m.client.GetRef(ctx, owner, repo, "heads/"+branch)
	if err != nil {
		return "", fmt.Errorf("resolve tip of %q: %w", branch, err)
	}

	baseTreeSHA, err := m.client.GetCommit(ctx, owner, repo, tipSHA)
	if err != nil {
		return "", fmt.Errorf("resolve base tree of %q: %w", tipSHA, err)
	}

	entries := make([]*github.TreeEntry, 0, len(files))
	for path, content := range files {
		blobSHA, err := m.client.CreateBlob(ctx, owner, repo, content)
		if err != nil {
			return "", fmt.Errorf("create blob for %q: %w", path, err)
		}
		entries = append(entries, &github.TreeEntry{
			Path: github.String(path),
			Mode: github.String("100644"),
			Type: github.String("blob"),
			SHA:  github.String(blobSHA),
		})
	}

	treeSHA, err := m.client.CreateTree(ctx, owner, repo, baseTreeSHA, entries)
	if err != nil {
		return "", fmt.Errorf("create tree on %q: %w", baseTreeSHA, err)
	}

	commitSHA, err := m.client.CreateCommit(ctx, owner, repo, message, treeSHA, []string{tipSHA})
	if err != nil {
		return "", fmt.Errorf("create commit on %q: %w", treeSHA, err)
	}

	if err := m.client.UpdateRef(ctx, owner, repo, "heads/"+branch, commitSHA, false); err != nil {
		return "", fmt.Errorf("fast-forward %q to %q: %w", branch, commitSHA, err)
	}
	return commitSHA, nil
}

func (m *Manager) GetFileContent(ctx context.Context, owner, repo, ref, path string) (string, error) {
	content, _, err := m.client.GetFileContent(ctx, owner, repo, path, ref)
	return content, err
}

func (m *Manager) GetBranchTipSHA(ctx context.Context, owner, repo, branch string) (string, error) {
	return m.client.GetRef(ctx, owner, repo, "heads/"+branch)
}
