// File: internal/ciagent/ciagent.go
package ciagent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v58/github"
	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/api/schemas"
	"github.com/codeguard-pro/codeguard/internal/config"
	"github.com/codeguard-pro/codeguard/internal/forge"
)

// inFlightCheckStatuses are check-run states that are NOT terminal.
var inFlightCheckStatuses = map[string]bool{
	"queued":      true,
	"in_progress": true,
}

// Agent implements schemas.CIAgent by polling both check runs and the
// combined commit status for a ref until both report a terminal state or
// the configured wait timeout elapses.
type Agent struct {
	client       *forge.Client
	logger       *zap.Logger
	pollInterval time.Duration
	waitTimeout  time.Duration
}

func New(client *forge.Client, cfg config.OrchestratorConfig, logger *zap.Logger) *Agent {
	pollInterval := cfg.CIPollInterval
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	waitTimeout := cfg.CIWaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = 300 * time.Second
	}
	return &Agent{client: client, logger: logger.Named("ciagent"), pollInterval: pollInterval, waitTimeout: waitTimeout}
}

var _ schemas.CIAgent = (*Agent)(nil)

func (a *Agent) HasCIConfigured(ctx context.Context, owner, repo, sha string) (bool, error) {
	runs, err := a.client.ListChecksForRef(ctx, owner, repo, sha)
	if err != nil {
		return false, fmt.Errorf("list check runs for %s: %w", shortSHA(sha), err)
	}
	return len(runs) > 0, nil
}

// waitForChecks polls every pollInterval until timeout. Terminal condition:
// both lists non-empty AND no check in {queued,in_progress} AND no status
// pending.
func (a *Agent) WaitForChecks(ctx context.Context, owner, repo, sha string) (schemas.CIResult, error) {
	deadline := time.Now().Add(a.waitTimeout)

	for {
		runs, runsErr := a.client.ListChecksForRef(ctx, owner, repo, sha)
		if runsErr != nil {
			return schemas.CIResult{}, fmt.Errorf("poll check runs for %s: %w", shortSHA(sha), runsErr)
		}
		combined, statusErr := a.client.GetCombinedStatus(ctx, owner, repo, sha)
		if statusErr != nil {
			return schemas.CIResult{}, fmt.Errorf("poll combined status for %s: %w", shortSHA(sha), statusErr)
		}

		if terminal(runs, combined) {
			return a.buildResult(ctx, owner, repo, runs, combined)
		}

		if time.Now().After(deadline) {
			a.logger.Warn("CI wait timed out", zap.String("owner", owner), zap.String("repo", repo), zap.String("sha", shortSHA(sha)))
			return schemas.CIResult{
				Status: schemas.CIFailed,
				FailureLogs: []schemas.FailureLog{{
					Source:  "ci-agent",
					Message: "timeout waiting for checks to complete",
					Level:   schemas.LogLevelError,
				}},
			}, nil
		}

		select {
		case <-ctx.Done():
			return schemas.CIResult{}, ctx.Err()
		case <-time.After(a.pollInterval):
		}
	}
}

// terminal treats at least one of check-runs/combined-status being non-empty
// as enough to evaluate, rather than requiring both to be populated: a repo
// wired with only one of the two APIs (e.g. commit statuses but no GitHub
// Checks) would otherwise never leave the in-flight state and always time
// out waiting on a signal that never arrives.
func terminal(runs []*github.CheckRun, combined *github.CombinedStatus) bool {
	if len(runs) == 0 && (combined == nil || len(combined.Statuses) == 0) {
		return false
	}
	for _, r := range runs {
		if inFlightCheckStatuses[r.GetStatus()] {
			return false
		}
	}
	if combined != nil {
		for _, s := range combined.Statuses {
			if s.GetState() == "pending" {
				return false
			}
		}
	}
	return true
}

func (a *Agent) buildResult(ctx context.Context, owner, repo string, runs []*github.CheckRun, combined *github.CombinedStatus) (schemas.CIResult, error) {
	checks := make([]schemas.CheckSummary, 0, len(runs)+len(combinedStatuses(combined)))
	var failureLogs []schemas.FailureLog
	failed := false

	for _, r := range runs {
		checks = append(checks, schemas.CheckSummary{Name: r.GetName(), Status: r.GetConclusion(), URL: r.GetHTMLURL()})
		switch r.GetConclusion() {
		case "failure", "timed_out", "cancelled":
			failed = true
			logs, err := a.failureLogsFromAnnotations(ctx, owner, repo, r)
			if err != nil {
				return schemas.CIResult{}, err
			}
			if len(logs) == 0 {
				logs = []schemas.FailureLog{{
					Source:  r.GetName(),
					Message: r.GetOutput().GetSummary(),
					Level:   schemas.LogLevelError,
				}}
			}
			failureLogs = append(failureLogs, logs...)
		}
	}

	for _, s := range combinedStatuses(combined) {
		checks = append(checks, schemas.CheckSummary{Name: s.GetContext(), Status: s.GetState(), URL: s.GetTargetURL()})
		if s.GetState() == "failure" || s.GetState() == "error" {
			failed = true
			failureLogs = append(failureLogs, schemas.FailureLog{
				Source:  s.GetContext(),
				Message: s.GetDescription(),
				Level:   schemas.LogLevelError,
			})
		}
	}

	if failed {
		return schemas.CIResult{Status: schemas.CIFailed, Checks: checks, FailureLogs: failureLogs}, nil
	}
	return schemas.CIResult{Status: schemas.CIPassed, Checks: checks}, nil
}

func combinedStatuses(combined *github.CombinedStatus) []*github.RepoStatus {
	if combined == nil {
		return nil
	}
	return combined.Statuses
}

func (a *Agent) failureLogsFromAnnotations(ctx context.Context, owner, repo string, run *github.CheckRun) ([]schemas.FailureLog, error) {
	annotations, err := a.client.ListCheckRunAnnotations(ctx, owner, repo, run.GetID())
	if err != nil {
		if schemas.IsCode(err, schemas.ErrCodeNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list annotations for check %q: %w", run.GetName(), err)
	}
	logs := make([]schemas.FailureLog, 0, len(annotations))
	for _, ann := range annotations {
		logs = append(logs, schemas.FailureLog{
			Source:  run.GetName(),
			File:    ann.GetPath(),
			Line:    ann.GetStartLine(),
			Message: ann.GetMessage(),
			Level:   annotationLevel(ann.GetAnnotationLevel()),
		})
	}
	return logs, nil
}

func annotationLevel(level string) schemas.FailureLogLevel {
	switch level {
	case "warning":
		return schemas.LogLevelWarning
	case "notice":
		return schemas.LogLevelNotice
	default:
		return schemas.LogLevelError
	}
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
