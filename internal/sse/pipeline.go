// File: internal/sse/pipeline.go
// Description: the pre-Orchestrator pipeline a heal request runs through:
// resolve a clone credential and default branch, clone, run the test suite
// and the static analyzer to build the session's starting issue set, ensure
// the healing branch exists, then hand off to the Orchestrator FSM.
package sse

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/api/schemas"
)

// timeNow is a seam allowing tests to control progress-event timing.
var timeNow = time.Now

// runHeal drives one heal session end to end, emitting progress to emit at
// each pipeline stage (cloning, detecting, healing) before handing off to
// the Orchestrator for the FSM stages it emits itself.
func (gw *Gateway) runHeal(ctx context.Context, id string, target parsedRepo, team, leader string, emit *streamEmitter) (schemas.Result, error) {
	owner, repo := target.owner, target.repo
	session := &schemas.HealSession{
		ID:        id,
		RepoOwner: owner,
		RepoName:  repo,
		AIBranch:  healingBranchName(team, leader),
	}

	gw.progress(emit, "resolving", "resolving repository credentials")
	token, installationID, err := gw.deps.Forge.CloneToken(ctx, owner, repo)
	if err != nil {
		return schemas.Result{}, fmt.Errorf("resolve clone credential: %w", err)
	}
	session.InstallationID = installationID

	defaultBranch, _, err := gw.deps.Forge.GetRepo(ctx, owner, repo)
	if err != nil {
		return schemas.Result{}, fmt.Errorf("resolve default branch: %w", err)
	}
	session.DefaultBranch = defaultBranch

	gw.progress(emit, "cloning", "cloning repository")
	cloned, err := gw.deps.Cloner.Clone(ctx, target.cloneURL, defaultBranch, token)
	if err != nil {
		return schemas.Result{}, fmt.Errorf("clone: %w", err)
	}
	defer cloned.Cleanup()

	gw.progress(emit, "testing", "running the project's test suite")
	testResult, err := gw.deps.TestRunner.Run(ctx, cloned.LocalPath)
	if err != nil {
		gw.logger.Warn("test run failed, continuing with whatever static issues are found", zap.Error(err))
	}

	gw.progress(emit, "analyzing", "scanning repository for static issues")
	staticIssues, err := gw.deps.RepoAnalyzer.Analyze(ctx, cloned.LocalPath)
	if err != nil {
		gw.logger.Warn("static analysis failed, continuing with whatever issues were found before the error", zap.Error(err))
	}

	session.Issues = append(staticIssues, classifyTestFailures(testResult.Failures)...)

	// ANALYZE short-circuits to UPDATE_PR_AND_END on an empty issue set
	// without ever touching the branch, so skip provisioning one.
	if len(session.Issues) > 0 {
		gw.progress(emit, "branching", "preparing the healing branch")
		if err := gw.deps.Branches.EnsureBranch(ctx, owner, repo, session.DefaultBranch, session.AIBranch); err != nil {
			return schemas.Result{}, fmt.Errorf("ensure healing branch: %w", err)
		}
	}

	gw.progress(emit, "healing", fmt.Sprintf("handing off to the orchestrator with %d issue(s)", len(session.Issues)))
	result, err := gw.deps.Orchestrator.Run(ctx, session, emit)
	if err != nil {
		return result, err
	}

	if gw.deps.Store != nil {
		if err := gw.deps.Store.RecordHealSummary(ctx, result); err != nil {
			gw.logger.Warn("failed to record heal summary", zap.Error(err))
		}
	}

	return result, nil
}

func (gw *Gateway) progress(emit *streamEmitter, stage, message string) {
	emit.Emit(schemas.ProgressEvent{Stage: stage, Timestamp: timeNow(), Message: message})
}
