// File: internal/forge/client.go
package forge

import (
	"context"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v58/github"
	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/api/schemas"
	"github.com/codeguard-pro/codeguard/internal/config"
	"github.com/codeguard-pro/codeguard/internal/network"
)

// Client is the typed source-forge client the rest of the system depends on.
// It attaches a fresh installation token to every call and retries transient
// transport errors with exponential backoff.
type Client struct {
	cfg    config.ForgeConfig
	broker *CredentialBroker
	logger *zap.Logger

	// newClient builds a *github.Client authenticated with the given
	// bearer token. Overridable in tests to point at an httptest server.
	newClient func(token string) *github.Client
}

// NewClient wires a Client on top of an already-constructed broker.
func NewClient(cfg config.ForgeConfig, broker *CredentialBroker, logger *zap.Logger) *Client {
	c := &Client{cfg: cfg, broker: broker, logger: logger.Named("forge.client")}
	c.newClient = c.defaultNewClient
	return c
}

// NewClientWithFactory builds a Client whose per-call github.Client is
// produced by factory instead of the default transport. It exists so other
// packages' tests can point at an httptest server without reaching into
// Client's unexported fields.
func NewClientWithFactory(cfg config.ForgeConfig, broker *CredentialBroker, logger *zap.Logger, factory func(token string) *github.Client) *Client {
	c := NewClient(cfg, broker, logger)
	c.newClient = factory
	return c
}

func (c *Client) defaultNewClient(token string) *github.Client {
	netCfg := network.NewDefaultClientConfig()
	netCfg.Logger = c.logger
	if c.cfg.RequestTimeout > 0 {
		netCfg.RequestTimeout = c.cfg.RequestTimeout
	}
	httpClient := network.NewClient(netCfg).Client
	client := github.NewClient(httpClient).WithAuthToken(token)
	if c.cfg.BaseURL != "" {
		if enterprise, err := client.WithEnterpriseURLs(c.cfg.BaseURL, c.cfg.BaseURL); err == nil {
			client = enterprise
		}
	}
	return client
}

// authed resolves the installation for owner/repo and returns a client
// carrying a fresh bearer token for it.
func (c *Client) authed(ctx context.Context, owner, repo string) (*github.Client, error) {
	installationID, err := c.broker.InstallationID(ctx, owner, repo)
	if err != nil {
		if schemas.IsCode(err, schemas.ErrCodeAuthUnconfigured) {
			// No App credentials: fall back to whatever token the broker
			// can hand out directly (installationID=0 is ignored by Token
			// in that path).
			token, tokErr := c.broker.Token(ctx, 0)
			if tokErr != nil {
				return nil, tokErr
			}
			return c.newClient(token), nil
		}
		return nil, err
	}
	token, err := c.broker.Token(ctx, installationID)
	if err != nil {
		return nil, err
	}
	return c.newClient(token), nil
}

// retry wraps op with the call's exponential backoff policy. op must itself
// be idempotent; transient errors are those tagged ErrCodeUpstream with a
// 5xx or network cause, everything else aborts immediately.
func (c *Client) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	attempts := 0
	wrapped := func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		if attempts >= c.maxRetries() {
			return backoff.Permanent(err)
		}
		if fe, ok := err.(*schemas.ForgeError); ok && fe.Code != schemas.ErrCodeUpstream {
			return backoff.Permanent(err)
		}
		c.logger.Warn("forge call failed, retrying", zap.Int("attempt", attempts), zap.Error(err))
		return err
	}
	return backoff.Retry(wrapped, backoff.WithContext(b, ctx))
}

func (c *Client) maxRetries() int {
	if c.cfg.MaxRetries > 0 {
		return c.cfg.MaxRetries
	}
	return 3
}

// translateGitHubError classifies a go-github error into the typed taxonomy
// the rest of the system branches on.
func translateGitHubError(op string, resp *github.Response, err error) error {
	if err == nil {
		return nil
	}
	if resp == nil || resp.Response == nil {
		return schemas.NewForgeError(op, schemas.ErrCodeUpstream, err)
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return schemas.NewForgeError(op, schemas.ErrCodeNotFound, err)
	case http.StatusConflict:
		return schemas.NewForgeError(op, schemas.ErrCodeConflict, err)
	case http.StatusUnauthorized:
		return schemas.NewForgeError(op, schemas.ErrCodeUnauthorized, err)
	case http.StatusForbidden:
		return schemas.NewForgeError(op, schemas.ErrCodeForbidden, err)
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return schemas.NewForgeError(op, schemas.ErrCodeValidation, err)
	default:
		if resp.StatusCode >= 500 {
			return schemas.NewForgeError(op, schemas.ErrCodeUpstream, err)
		}
		return schemas.NewForgeError(op, schemas.ErrCodeUpstream, err)
	}
}

// GetRef resolves a ref (e.g. "heads/main") to its commit sha.
func (c *Client) GetRef(ctx context.Context, owner, repo, ref string) (string, error) {
	gh, err := c.authed(ctx, owner, repo)
	if err != nil {
		return "", err
	}
	var sha string
	err = c.retry(ctx, func() error {
		r, resp, err := gh.Git.GetRef(ctx, owner, repo, "refs/"+ref)
		if err != nil {
			return translateGitHubError("Client.GetRef", resp, err)
		}
		sha = r.GetObject().GetSHA()
		return nil
	})
	return sha, err
}

func (c *Client) CreateRef(ctx context.Context, owner, repo, ref, sha string) error {
	gh, err := c.authed(ctx, owner, repo)
	if err != nil {
		return err
	}
	return c.retry(ctx, func() error {
		_, resp, err := gh.Git.CreateRef(ctx, owner, repo, &github.Reference{
			Ref:    github.String("refs/" + ref),
			Object: &github.GitObject{SHA: github.String(sha)},
		})
		if err != nil {
			return translateGitHubError("Client.CreateRef", resp, err)
		}
		return nil
	})
}

func (c *Client) UpdateRef(ctx context.Context, owner, repo, ref, sha string, force bool) error {
	gh, err := c.authed(ctx, owner, repo)
	if err != nil {
		return err
	}
	return c.retry(ctx, func() error {
		_, resp, err := gh.Git.UpdateRef(ctx, owner, repo, &github.Reference{
			Ref:    github.String("refs/" + ref),
			Object: &github.GitObject{SHA: github.String(sha)},
		}, force)
		if err != nil {
			return translateGitHubError("Client.UpdateRef", resp, err)
		}
		return nil
	})
}

func (c *Client) DeleteRef(ctx context.Context, owner, repo, ref string) error {
	gh, err := c.authed(ctx, owner, repo)
	if err != nil {
		return err
	}
	return c.retry(ctx, func() error {
		resp, err := gh.Git.DeleteRef(ctx, owner, repo, "refs/"+ref)
		if err != nil && resp != nil && resp.StatusCode != http.StatusNotFound {
			return translateGitHubError("Client.DeleteRef", resp, err)
		}
		return nil
	})
}

// GetCommit returns the tree sha a commit points at, used as the base tree
// when building a new tree for a batch commit.
func (c *Client) GetCommit(ctx context.Context, owner, repo, sha string) (treeSHA string, err error) {
	gh, authErr := c.authed(ctx, owner, repo)
	if authErr != nil {
		return "", authErr
	}
	err = c.retry(ctx, func() error {
		commit, resp, err := gh.Git.GetCommit(ctx, owner, repo, sha)
		if err != nil {
			return translateGitHubError("Client.GetCommit", resp, err)
		}
		treeSHA = commit.GetTree().GetSHA()
		return nil
	})
	return treeSHA, err
}

// CreateBlob uploads raw file content and returns its blob sha, for use as a
// tree entry in CreateTree.
func (c *Client) CreateBlob(ctx context.Context, owner, repo, content string) (sha string, err error) {
	gh, authErr := c.authed(ctx, owner, repo)
	if authErr != nil {
		return "", authErr
	}
	err = c.retry(ctx, func() error {
		blob, resp, err := gh.Git.CreateBlob(ctx, owner, repo, &github.Blob{
			Content:  github.String(content),
			Encoding: github.String("utf-8"),
		})
		if err != nil {
			return translateGitHubError("Client.CreateBlob", resp, err)
		}
		sha = blob.GetSHA()
		return nil
	})
	return sha, err
}

// CreateTree builds a new tree on top of baseTreeSHA with the given path/blob
// entries and returns the new tree's sha.
func (c *Client) CreateTree(ctx context.Context, owner, repo, baseTreeSHA string, entries []*github.TreeEntry) (sha string, err error) {
	gh, authErr := c.authed(ctx, owner, repo)
	if authErr != nil {
		return "", authErr
	}
	err = c.retry(ctx, func() error {
		tree, resp, err := gh.Git.CreateTree(ctx, owner, repo, baseTreeSHA, entries)
		if err != nil {
			return translateGitHubError("Client.CreateTree", resp, err)
		}
		sha = tree.GetSHA()
		return nil
	})
	return sha, err
}

// CreateCommit creates a commit pointing at treeSHA with the given parents
// and returns the new commit's sha.
func (c *Client) CreateCommit(ctx context.Context, owner, repo, message, treeSHA string, parents []string) (sha string, err error) {
	gh, authErr := c.authed(ctx, owner, repo)
	if authErr != nil {
		return "", authErr
	}
	parentCommits := make([]*github.Commit, len(parents))
	for i, p := range parents {
		parentCommits[i] = &github.Commit{SHA: github.String(p)}
	}
	err = c.retry(ctx, func() error {
		commit, resp, err := gh.Git.CreateCommit(ctx, owner, repo, &github.Commit{
			Message: github.String(message),
			Tree:    &github.Tree{SHA: github.String(treeSHA)},
			Parents: parentCommits,
		}, nil)
		if err != nil {
			return translateGitHubError("Client.CreateCommit", resp, err)
		}
		sha = commit.GetSHA()
		return nil
	})
	return sha, err
}

func (c *Client) GetFileContent(ctx context.Context, owner, repo, path, ref string) (content string, sha string, err error) {
	gh, authErr := c.authed(ctx, owner, repo)
	if authErr != nil {
		return "", "", authErr
	}
	err = c.retry(ctx, func() error {
		fc, _, resp, err := gh.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: ref})
		if err != nil {
			return translateGitHubError("Client.GetFileContent", resp, err)
		}
		decoded, decErr := fc.GetContent()
		if decErr != nil {
			return schemas.NewForgeError("Client.GetFileContent", schemas.ErrCodeUpstream, decErr)
		}
		content = decoded
		sha = fc.GetSHA()
		return nil
	})
	return content, sha, err
}

func (c *Client) CreateOrUpdateFile(ctx context.Context, owner, repo, path, content, ref, message string, priorSHA string) (commitSHA string, err error) {
	gh, authErr := c.authed(ctx, owner, repo)
	if authErr != nil {
		return "", authErr
	}
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: []byte(content),
		Branch:  github.String(ref),
	}
	if priorSHA != "" {
		opts.SHA = github.String(priorSHA)
	}
	err = c.retry(ctx, func() error {
		result, resp, err := gh.Repositories.CreateFile(ctx, owner, repo, path, opts)
		if err != nil {
			// Already exists at this path: fetch its sha and update instead.
			if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity && priorSHA == "" {
				_, existingSHA, getErr := c.GetFileContent(ctx, owner, repo, path, ref)
				if getErr != nil {
					return translateGitHubError("Client.CreateOrUpdateFile", resp, err)
				}
				opts.SHA = github.String(existingSHA)
				result, resp, err = gh.Repositories.UpdateFile(ctx, owner, repo, path, opts)
				if err != nil {
					return translateGitHubError("Client.CreateOrUpdateFile", resp, err)
				}
				commitSHA = result.GetSHA()
				return nil
			}
			return translateGitHubError("Client.CreateOrUpdateFile", resp, err)
		}
		commitSHA = result.GetSHA()
		return nil
	})
	return commitSHA, err
}

func (c *Client) CreatePR(ctx context.Context, owner, repo, head, base, title, body string) (number int, url string, err error) {
	gh, authErr := c.authed(ctx, owner, repo)
	if authErr != nil {
		return 0, "", authErr
	}
	err = c.retry(ctx, func() error {
		pr, resp, err := gh.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
			Title: github.String(title),
			Head:  github.String(head),
			Base:  github.String(base),
			Body:  github.String(body),
		})
		if err != nil {
			return translateGitHubError("Client.CreatePR", resp, err)
		}
		number = pr.GetNumber()
		url = pr.GetHTMLURL()
		return nil
	})
	return number, url, err
}

func (c *Client) UpdatePR(ctx context.Context, owner, repo string, number int, body string) error {
	gh, err := c.authed(ctx, owner, repo)
	if err != nil {
		return err
	}
	return c.retry(ctx, func() error {
		_, resp, err := gh.PullRequests.Edit(ctx, owner, repo, number, &github.PullRequest{Body: github.String(body)})
		if err != nil {
			return translateGitHubError("Client.UpdatePR", resp, err)
		}
		return nil
	})
}

func (c *Client) ListChecksForRef(ctx context.Context, owner, repo, sha string) ([]*github.CheckRun, error) {
	gh, err := c.authed(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	var runs []*github.CheckRun
	err = c.retry(ctx, func() error {
		result, resp, err := gh.Checks.ListCheckRunsForRef(ctx, owner, repo, sha, nil)
		if err != nil {
			return translateGitHubError("Client.ListChecksForRef", resp, err)
		}
		runs = result.CheckRuns
		return nil
	})
	return runs, err
}

func (c *Client) GetCombinedStatus(ctx context.Context, owner, repo, sha string) (*github.CombinedStatus, error) {
	gh, err := c.authed(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	var status *github.CombinedStatus
	err = c.retry(ctx, func() error {
		result, resp, err := gh.Repositories.GetCombinedStatus(ctx, owner, repo, sha, nil)
		if err != nil {
			return translateGitHubError("Client.GetCombinedStatus", resp, err)
		}
		status = result
		return nil
	})
	return status, err
}

func (c *Client) ListCheckRunAnnotations(ctx context.Context, owner, repo string, checkRunID int64) ([]*github.CheckRunAnnotation, error) {
	gh, err := c.authed(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	var annotations []*github.CheckRunAnnotation
	err = c.retry(ctx, func() error {
		result, resp, err := gh.Checks.ListCheckRunAnnotations(ctx, owner, repo, checkRunID, nil)
		if err != nil {
			return translateGitHubError("Client.ListCheckRunAnnotations", resp, err)
		}
		annotations = result
		return nil
	})
	return annotations, err
}

func (c *Client) CreateCommitStatus(ctx context.Context, owner, repo, sha, state, description, statusContext, targetURL string) error {
	gh, err := c.authed(ctx, owner, repo)
	if err != nil {
		return err
	}
	status := &github.RepoStatus{
		State:       github.String(state),
		Description: github.String(description),
		Context:     github.String(statusContext),
	}
	if targetURL != "" {
		status.TargetURL = github.String(targetURL)
	}
	return c.retry(ctx, func() error {
		_, resp, err := gh.Repositories.CreateStatus(ctx, owner, repo, sha, status)
		if err != nil {
			return translateGitHubError("Client.CreateCommitStatus", resp, err)
		}
		return nil
	})
}

func (c *Client) CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) error {
	gh, err := c.authed(ctx, owner, repo)
	if err != nil {
		return err
	}
	return c.retry(ctx, func() error {
		_, resp, err := gh.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{Body: github.String(body)})
		if err != nil {
			return translateGitHubError("Client.CreateIssueComment", resp, err)
		}
		return nil
	})
}

func (c *Client) ListPRFiles(ctx context.Context, owner, repo string, number int) ([]*github.CommitFile, error) {
	gh, err := c.authed(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	var files []*github.CommitFile
	err = c.retry(ctx, func() error {
		result, resp, err := gh.PullRequests.ListFiles(ctx, owner, repo, number, nil)
		if err != nil {
			return translateGitHubError("Client.ListPRFiles", resp, err)
		}
		files = result
		return nil
	})
	return files, err
}

// ReviewComment is one inline comment anchored to a file/line within a
// CreateReview call.
type ReviewComment struct {
	Path string
	Line int
	Body string
}

// CreateReview posts a pull request review with zero or more inline
// comments. event is one of "COMMENT", "REQUEST_CHANGES", "APPROVE".
func (c *Client) CreateReview(ctx context.Context, owner, repo string, number int, event, body string, comments []ReviewComment) error {
	gh, err := c.authed(ctx, owner, repo)
	if err != nil {
		return err
	}
	draftComments := make([]*github.DraftReviewComment, 0, len(comments))
	for _, cm := range comments {
		draftComments = append(draftComments, &github.DraftReviewComment{
			Path: github.String(cm.Path),
			Line: github.Int(cm.Line),
			Body: github.String(cm.Body),
		})
	}
	return c.retry(ctx, func() error {
		_, resp, err := gh.PullRequests.CreateReview(ctx, owner, repo, number, &github.PullRequestReviewRequest{
			Body:     github.String(body),
			Event:    github.String(event),
			Comments: draftComments,
		})
		if err != nil {
			return translateGitHubError("Client.CreateReview", resp, err)
		}
		return nil
	})
}

func (c *Client) GetRepo(ctx context.Context, owner, repo string) (defaultBranch string, id int64, err error) {
	gh, authErr := c.authed(ctx, owner, repo)
	if authErr != nil {
		return "", 0, authErr
	}
	err = c.retry(ctx, func() error {
		r, resp, err := gh.Repositories.Get(ctx, owner, repo)
		if err != nil {
			return translateGitHubError("Client.GetRepo", resp, err)
		}
		defaultBranch = r.GetDefaultBranch()
		id = r.GetID()
		return nil
	})
	return defaultBranch, id, err
}

// CloneToken resolves a bearer token suitable for an authenticated git-over-
// HTTP clone of owner/repo, along with the installation ID it was minted
// for (0 when the broker fell back to a non-App token). It mirrors authed's
// resolution order since cloning needs the same credential, just handed to
// go-git instead of attached to a *github.Client.
func (c *Client) CloneToken(ctx context.Context, owner, repo string) (token string, installationID int64, err error) {
	installationID, err = c.broker.InstallationID(ctx, owner, repo)
	if err != nil {
		if schemas.IsCode(err, schemas.ErrCodeAuthUnconfigured) {
			token, err = c.broker.Token(ctx, 0)
			return token, 0, err
		}
		return "", 0, err
	}
	token, err = c.broker.Token(ctx, installationID)
	return token, installationID, err
}
