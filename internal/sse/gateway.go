// File: internal/sse/gateway.go
// Description: the healing SSE gateway. A POST /heal request runs the full
// clone -> detect -> heal pipeline and streams the Orchestrator's progress
// as Server-Sent Events; the terminal result is also recorded in an
// in-memory store so a client that disconnects early can poll for it.
package sse

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/api/schemas"
	"github.com/codeguard-pro/codeguard/internal/cloner"
	"github.com/codeguard-pro/codeguard/internal/config"
	"github.com/codeguard-pro/codeguard/internal/testrunner"
)

// forgeAPI is the slice of forge.Client the gateway needs: resolving a
// clone credential and the repository's default branch.
type forgeAPI interface {
	CloneToken(ctx context.Context, owner, repo string) (token string, installationID int64, err error)
	GetRepo(ctx context.Context, owner, repo string) (defaultBranch string, id int64, err error)
}

// clonerAPI is the slice of cloner.Cloner the gateway drives.
type clonerAPI interface {
	Clone(ctx context.Context, url, branch, token string) (cloner.Result, error)
}

// testRunnerAPI is the slice of testrunner.Runner the gateway drives.
type testRunnerAPI interface {
	Run(ctx context.Context, repoLocalPath string) (testrunner.Result, error)
}

// repoAnalyzerAPI is the slice of repoanalyzer.Analyzer the gateway drives.
type repoAnalyzerAPI interface {
	Analyze(ctx context.Context, repoLocalPath string) ([]schemas.Issue, error)
}

// orchestratorAPI is the slice of orchestrator.Orchestrator the gateway
// drives once a HealSession's issue set is ready.
type orchestratorAPI interface {
	Run(ctx context.Context, session *schemas.HealSession, emit schemas.ProgressEmitter) (schemas.Result, error)
}

// Deps wires every collaborator the gateway needs. All fields are required
// except Store, whose absence just skips the audit write.
type Deps struct {
	Forge        forgeAPI
	Branches     schemas.BranchManager
	Orchestrator orchestratorAPI
	Cloner       clonerAPI
	TestRunner   testRunnerAPI
	RepoAnalyzer repoAnalyzerAPI
	Store        schemas.Store
	Cfg          config.OrchestratorConfig
	Logger       *zap.Logger
}

// Gateway is the SSE Gateway.
type Gateway struct {
	deps    Deps
	logger  *zap.Logger
	results *resultStore
}

// New wires a Gateway from its dependencies.
func New(deps Deps) *Gateway {
	return &Gateway{
		deps:    deps,
		logger:  deps.Logger.Named("sse"),
		results: newResultStore(),
	}
}

// healRequest is the POST /heal JSON body.
type healRequest struct {
	RepoURL    string `json:"repo_url"`
	TeamName   string `json:"team_name"`
	LeaderName string `json:"leader_name"`
}

var errNotAForgeURL = errors.New("sse: repo_url is not a forge URL")

// parsedRepo is a validated repo_url, broken into what the pipeline needs:
// the owner/repo pair for forge API calls and a normalized clone URL.
type parsedRepo struct {
	owner, repo string
	cloneURL    string
}

// validate checks that every field is present and repo_url parses as
// owner/repo on some forge host.
func (req healRequest) validate() (parsedRepo, error) {
	if strings.TrimSpace(req.RepoURL) == "" || strings.TrimSpace(req.TeamName) == "" || strings.TrimSpace(req.LeaderName) == "" {
		return parsedRepo{}, errors.New("sse: repo_url, team_name and leader_name are all required")
	}
	return parseForgeURL(req.RepoURL)
}

// parseForgeURL extracts owner/repo from a forge repository URL of the
// shape scheme://host/owner/repo[.git][/...]. It does not hardcode a
// specific host so an enterprise forge (config.ForgeConfig.BaseURL) works
// the same as a public one, and the normalized clone URL it returns keeps
// whatever host the client actually sent.
func parseForgeURL(raw string) (parsedRepo, error) {
	u, parseErr := url.Parse(raw)
	if parseErr != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return parsedRepo{}, errNotAForgeURL
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return parsedRepo{}, errNotAForgeURL
	}
	owner := segments[0]
	repo := strings.TrimSuffix(segments[1], ".git")
	if repo == "" {
		return parsedRepo{}, errNotAForgeURL
	}
	cloneURL := fmt.Sprintf("%s://%s/%s/%s.git", u.Scheme, u.Host, owner, repo)
	return parsedRepo{owner: owner, repo: repo, cloneURL: cloneURL}, nil
}

// sanitizeBranchComponent applies deterministic branch-name sanitization:
// uppercase, drop every char outside [A-Z0-9 ], collapse whitespace runs to
// a single underscore, trim leading/trailing underscores. The client-side
// preview must match this exactly.
func sanitizeBranchComponent(s string) string {
	upper := strings.ToUpper(s)
	var b strings.Builder
	lastWasSpace := false
	for _, r := range upper {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasSpace = false
		case r == ' ':
			if !lastWasSpace {
				b.WriteByte('_')
			}
			lastWasSpace = true
		default:
			// dropped entirely
		}
	}
	return strings.Trim(b.String(), "_")
}

// healingBranchName derives the AI healing branch name from the submitting
// team and leader names.
func healingBranchName(team, leader string) string {
	return fmt.Sprintf("%s_%s_AI_Fix", sanitizeBranchComponent(team), sanitizeBranchComponent(leader))
}

func sessionTimeout(cfg config.OrchestratorConfig) time.Duration {
	if cfg.SessionTimeout > 0 {
		return cfg.SessionTimeout
	}
	return 5 * time.Minute
}
