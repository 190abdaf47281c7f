// File: internal/cloner/cloner.go
// Description: clones a target repository into a scratch directory ahead of
// the analyze/test/heal pipeline. Depth-1, single-branch clones keep the
// common case fast; the caller owns cleanup of the returned directory.
package cloner

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/internal/config"
)

// Cloner checks out a repository to a local temp directory for analysis.
type Cloner struct {
	cfg    config.OrchestratorConfig
	logger *zap.Logger
}

// New wires a Cloner from orchestrator configuration, which owns the clone
// timeout default.
func New(cfg config.OrchestratorConfig, logger *zap.Logger) *Cloner {
	return &Cloner{cfg: cfg, logger: logger.Named("cloner")}
}

// Result is the outcome of a successful clone.
type Result struct {
	// LocalPath is the directory the repository was checked out into.
	LocalPath string
	// HeadSHA is the commit the checkout landed on.
	HeadSHA string
	// Cleanup removes LocalPath. Callers must invoke it once done, including
	// on cancellation and error paths.
	Cleanup func()
}

// Clone checks out branch (or the repository's default branch, when empty)
// from url into a fresh temp directory. It enforces the configured clone
// timeout by deriving a child context.
func (c *Cloner) Clone(ctx context.Context, url, branch, token string) (Result, error) {
	timeout := c.cfg.CloneTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dir, err := os.MkdirTemp("", "codeguard-clone-*")
	if err != nil {
		return Result{}, fmt.Errorf("create clone dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	opts := &git.CloneOptions{
		URL:          url,
		SingleBranch: true,
		Depth:        1,
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
	}
	if token != "" {
		opts.Auth = &http.BasicAuth{Username: "x-access-token", Password: token}
	}

	c.logger.Info("cloning repository", zap.String("url", url), zap.String("branch", branch))

	repo, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		cleanup()
		return Result{}, fmt.Errorf("clone %s: %w", url, err)
	}

	head, err := repo.Head()
	if err != nil {
		cleanup()
		return Result{}, fmt.Errorf("resolve HEAD after clone: %w", err)
	}

	return Result{
		LocalPath: dir,
		HeadSHA:   head.Hash().String(),
		Cleanup:   cleanup,
	}, nil
}
