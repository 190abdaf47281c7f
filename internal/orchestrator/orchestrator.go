// File: internal/orchestrator/orchestrator.go
// Description: the healing state machine. It drives a HealSession through
// analyze -> fix -> commit -> open PR -> monitor CI -> retry, coordinating
// the BranchManager, PRCreator, FixAgent and CIAgent it is injected with.

package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/api/schemas"
	"github.com/codeguard-pro/codeguard/internal/config"
)

// state is one node of the FSM. monitorCI is the only node with a
// conditional outgoing edge.
type state string

const (
	stateAnalyze        state = "ANALYZE"
	stateGenerateFix    state = "GENERATE_FIXES"
	stateApplyCommit    state = "APPLY_COMMIT"
	stateOpenPR         state = "OPEN_PR"
	stateMonitorCI      state = "MONITOR_CI"
	stateUpdatePRAndEnd state = "UPDATE_PR_AND_END"
	stateDone           state = "DONE"
)

// Orchestrator drives one HealSession to completion. It owns no state of its
// own across sessions; every invocation of Run starts from a freshly built
// HealSession and mutates only that session's Status/RetryCount fields.
type Orchestrator struct {
	cfg    config.OrchestratorConfig
	gitCfg config.GitConfig
	logger *zap.Logger

	branches schemas.BranchManager
	prs      schemas.PRCreator
	fixes    schemas.FixAgent
	ci       schemas.CIAgent
}

// New creates an Orchestrator with its collaborators provided as schemas
// interfaces, decoupling the FSM from any concrete forge/LLM/sandbox
// package.
func New(
	cfg config.OrchestratorConfig,
	gitCfg config.GitConfig,
	logger *zap.Logger,
	branches schemas.BranchManager,
	prs schemas.PRCreator,
	fixes schemas.FixAgent,
	ci schemas.CIAgent,
) (*Orchestrator, error) {
	if logger == nil || branches == nil || prs == nil || fixes == nil || ci == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	return &Orchestrator{
		cfg:      cfg,
		gitCfg:   gitCfg,
		logger:   logger.Named("orchestrator"),
		branches: branches,
		prs:      prs,
		fixes:    fixes,
		ci:       ci,
	}, nil
}

// Run executes the FSM to completion (or until ctx is cancelled) and returns
// the terminal Result. The session is mutated in place so a caller may
// inspect its final Issues/Fixes/Logs even on error.
func (o *Orchestrator) Run(ctx context.Context, session *schemas.HealSession, emit schemas.ProgressEmitter) (schemas.Result, error) {
	session.StartTime = timeNow()
	current := stateAnalyze

	// workingIssues is the set GENERATE_FIXES consumes on this pass; it is
	// replaced wholesale by MONITOR_CI's classification on a retry, per the
	// FSM's "REPLACING the working issue set" semantics.
	workingIssues := session.Issues
	prExists := false

	for current != stateDone {
		if err := ctx.Err(); err != nil {
			o.appendLog(session, string(current), "cancelled: "+err.Error())
			return o.finalize(session), err
		}

		switch current {
		case stateAnalyze:
			current = o.nodeAnalyze(session, workingIssues, emit)

		case stateGenerateFix:
			var err error
			workingIssues, err = o.nodeGenerateFixes(ctx, session, workingIssues, emit)
			if err != nil {
				o.appendLog(session, string(stateGenerateFix), "fix generation error: "+err.Error())
			}
			current = stateApplyCommit

		case stateApplyCommit:
			o.nodeApplyCommit(ctx, session, emit)
			current = stateOpenPR

		case stateOpenPR:
			current = o.nodeOpenPR(ctx, session, &prExists, emit)

		case stateMonitorCI:
			var next state
			next, workingIssues = o.nodeMonitorCI(ctx, session, emit)
			current = next

		case stateUpdatePRAndEnd:
			o.nodeUpdatePRAndEnd(ctx, session, prExists, emit)
			current = stateDone
		}
	}

	return o.finalize(session), nil
}

// nodeAnalyze reads the precomputed issue set; an empty set short-circuits
// straight to completion with a passing status.
func (o *Orchestrator) nodeAnalyze(session *schemas.HealSession, issues []schemas.Issue, emit schemas.ProgressEmitter) state {
	o.progress(session, emit, string(stateAnalyze), fmt.Sprintf("analyzing %d issue(s)", len(issues)))
	if len(issues) == 0 {
		session.CIStatus = schemas.CIPassed
		return stateUpdatePRAndEnd
	}
	return stateGenerateFix
}

// nodeGenerateFixes groups issues by file, fetches current branch content,
// and applies proposed fixes sequentially to an evolving in-memory buffer.
// On the first pass it consumes every issue; on retry, only issues sourced
// from CI by the previous MONITOR_CI pass.
func (o *Orchestrator) nodeGenerateFixes(ctx context.Context, session *schemas.HealSession, issues []schemas.Issue, emit schemas.ProgressEmitter) ([]schemas.Issue, error) {
	o.progress(session, emit, string(stateGenerateFix), fmt.Sprintf("generating fixes for %d issue(s)", len(issues)))

	byFile := make(map[string][]schemas.Issue)
	order := make([]string, 0)
	for _, iss := range issues {
		if _, ok := byFile[iss.File]; !ok {
			order = append(order, iss.File)
		}
		byFile[iss.File] = append(byFile[iss.File], iss)
	}

	var firstErr error
	for _, file := range order {
		fileIssues := byFile[file]

		content, err := o.branches.GetFileContent(ctx, session.RepoOwner, session.RepoName, session.AIBranch, file)
		if err != nil {
			session.Fixes = append(session.Fixes, schemas.Fix{
				File: file, Status: schemas.FixSkipped,
				Explanation: "file not found on branch",
			})
			continue
		}

		buffer := content
		var lastFix *schemas.Fix
		for _, iss := range fileIssues {
			fix, err := o.fixes.ProposeFix(ctx, file, buffer, []schemas.Issue{iss})
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				session.Fixes = append(session.Fixes, schemas.Fix{
					File: file, Line: iss.Line, BugType: iss.BugType,
					Status: schemas.FixError, Explanation: err.Error(),
				})
				continue
			}
			if fix.PendingCommit != nil {
				buffer = fix.PendingCommit.Content
			}
			session.Fixes = append(session.Fixes, fix)
			lastFix = &session.Fixes[len(session.Fixes)-1]
		}

		if lastFix != nil {
			lastFix.PendingCommit = &schemas.PendingCommit{Content: buffer}
		}
	}

	return issues, firstErr
}

// nodeApplyCommit commits every fix carrying a staged pending_commit buffer.
// A single pending fix goes through the contents-API single-file path; two
// or more go through one atomic blob/tree/commit batch so a multi-file fix
// never lands as a half-applied partial commit.
func (o *Orchestrator) nodeApplyCommit(ctx context.Context, session *schemas.HealSession, emit schemas.ProgressEmitter) {
	o.progress(session, emit, string(stateApplyCommit), "applying commits")

	pending := make([]*schemas.Fix, 0, len(session.Fixes))
	for i := range session.Fixes {
		if session.Fixes[i].PendingCommit != nil {
			pending = append(pending, &session.Fixes[i])
		}
	}
	if len(pending) == 0 {
		return
	}

	if len(pending) == 1 {
		fix := pending[0]
		message := o.fixCommitMessage(fix)
		err := o.branches.CommitFile(ctx, session.RepoOwner, session.RepoName, session.AIBranch, fix.File, fix.PendingCommit.Content, message)
		if err != nil {
			o.logger.Warn("commit failed", zap.String("file", fix.File), zap.Error(err))
			fix.Status = schemas.FixCommitFailed
			return
		}
		if fix.Status == "" {
			fix.Status = schemas.FixApplied
		}
		return
	}

	files := make(map[string]string, len(pending))
	for _, fix := range pending {
		files[fix.File] = fix.PendingCommit.Content
	}
	message := fmt.Sprintf("%s batch fix for %d files", o.gitCfg.CommitMarker, len(pending))
	if _, err := o.branches.CommitMultipleFiles(ctx, session.RepoOwner, session.RepoName, session.AIBranch, files, message); err != nil {
		o.logger.Warn("batch commit failed", zap.Int("files", len(pending)), zap.Error(err))
		for _, fix := range pending {
			fix.Status = schemas.FixCommitFailed
		}
		return
	}
	for _, fix := range pending {
		if fix.Status == "" {
			fix.Status = schemas.FixApplied
		}
	}
}

// fixCommitMessage already carries o.gitCfg.CommitMarker via
// FixAgent.ensureMarker; re-prefixing here would double it.
func (o *Orchestrator) fixCommitMessage(fix *schemas.Fix) string {
	if fix.CommitMessage != "" {
		return fix.CommitMessage
	}
	return fmt.Sprintf("%s fix %s in %s", o.gitCfg.CommitMarker, fix.BugType, fix.File)
}

// nodeOpenPR opens the PR on the first pass that produces at least one
// applied fix. On later passes (PR already open) it does nothing here; the
// final body is written by UPDATE_PR_AND_END.
func (o *Orchestrator) nodeOpenPR(ctx context.Context, session *schemas.HealSession, prExists *bool, emit schemas.ProgressEmitter) state {
	o.progress(session, emit, string(stateOpenPR), "opening pull request")

	anyApplied := false
	for _, fix := range session.Fixes {
		if fix.Status == schemas.FixApplied {
			anyApplied = true
			break
		}
	}

	if !anyApplied {
		session.CIStatus = schemas.CISkipped
		return stateUpdatePRAndEnd
	}

	if !*prExists {
		title := fmt.Sprintf("%s Automated fix for %s/%s", o.gitCfg.CommitMarker, session.RepoOwner, session.RepoName)
		number, url, err := o.prs.CreatePR(ctx, session.RepoOwner, session.RepoName, session.AIBranch, session.DefaultBranch, title, o.renderPRBody(session))
		if err != nil {
			o.appendLog(session, string(stateOpenPR), "failed to open PR: "+err.Error())
			session.CIStatus = schemas.CIFailed
			return stateUpdatePRAndEnd
		}
		session.PRNumber = number
		session.PRURL = url
		*prExists = true
	}

	return stateMonitorCI
}

// nodeMonitorCI polls the forge for check status on the branch tip. On
// FAILED, it classifies failure logs into a fresh CI-sourced issue set that
// replaces the working set on a retry.
func (o *Orchestrator) nodeMonitorCI(ctx context.Context, session *schemas.HealSession, emit schemas.ProgressEmitter) (state, []schemas.Issue) {
	o.progress(session, emit, string(stateMonitorCI), "monitoring CI")

	sha, err := o.branches.GetBranchTipSHA(ctx, session.RepoOwner, session.RepoName, session.AIBranch)
	if err != nil {
		o.appendLog(session, string(stateMonitorCI), "failed to resolve branch tip: "+err.Error())
		session.CIStatus = schemas.CIFailed
		return stateUpdatePRAndEnd, nil
	}

	// RetryCount counts monitor-CI visits, not just retried fix cycles: a
	// no-CI repo still performed one monitor check, so it increments here
	// too (scenario S2 expects retry_count=1 for that case even though it
	// never loops back to GENERATE_FIXES).
	session.RetryCount++

	hasCI, err := o.ci.HasCIConfigured(ctx, session.RepoOwner, session.RepoName, sha)
	if err != nil || !hasCI {
		session.CIStatus = schemas.CINoCI
		session.CITimeline = append(session.CITimeline, schemas.CITimelineEntry{
			Iteration: session.RetryCount, Timestamp: timeNow(), Status: schemas.CINoCI, CommitSHA: shortSHA(sha),
		})
		return stateUpdatePRAndEnd, nil
	}

	result, err := o.ci.WaitForChecks(ctx, session.RepoOwner, session.RepoName, sha)
	if err != nil {
		o.appendLog(session, string(stateMonitorCI), "wait for checks error: "+err.Error())
		result = schemas.CIResult{Status: schemas.CIFailed, FailureLogs: []schemas.FailureLog{{Message: err.Error(), Level: schemas.LogLevelError}}}
	}

	session.CIStatus = result.Status
	session.CITimeline = append(session.CITimeline, schemas.CITimelineEntry{
		Iteration: session.RetryCount, Timestamp: timeNow(), Status: result.Status,
		Checks: result.Checks, CommitSHA: shortSHA(sha),
	})

	if result.Status != schemas.CIFailed {
		return stateUpdatePRAndEnd, nil
	}

	classified := classifyFailures(result.FailureLogs)
	if len(classified) == 0 {
		// No file-attributed logs to act on; fall back to the prior issue set
		// so the loop still makes forward progress.
		classified = session.Issues
	}

	if session.RetryCount < o.cfg.MaxRetries {
		if o.cfg.RetryPause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(o.cfg.RetryPause):
			}
		}
		return stateGenerateFix, classified
	}

	return stateUpdatePRAndEnd, nil
}

// nodeUpdatePRAndEnd writes the final PR body, if a PR was opened.
func (o *Orchestrator) nodeUpdatePRAndEnd(ctx context.Context, session *schemas.HealSession, prExists bool, emit schemas.ProgressEmitter) {
	o.progress(session, emit, string(stateUpdatePRAndEnd), "finalizing")
	if prExists {
		if err := o.prs.UpdatePRBody(ctx, session.RepoOwner, session.RepoName, session.PRNumber, o.renderPRBody(session)); err != nil {
			o.appendLog(session, string(stateUpdatePRAndEnd), "failed to update PR body: "+err.Error())
		}
	}
	o.progress(session, emit, "complete", "heal session complete")
}

func (o *Orchestrator) renderPRBody(session *schemas.HealSession) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Automated fix run against `%s`.\n\n", session.DefaultBranch)
	fmt.Fprintf(&b, "- Issues detected: %d\n", len(session.Issues))
	fmt.Fprintf(&b, "- Fixes applied: %d\n", countApplied(session.Fixes))
	fmt.Fprintf(&b, "- CI status: %s\n", session.CIStatus)
	fmt.Fprintf(&b, "- Retry count: %d\n", session.RetryCount)
	return b.String()
}

func (o *Orchestrator) finalize(session *schemas.HealSession) schemas.Result {
	return schemas.Result{
		Repo:                  session.RepoOwner + "/" + session.RepoName,
		BranchCreated:         session.AIBranch,
		TotalFailuresDetected: len(session.Issues),
		TotalFixesApplied:     countApplied(session.Fixes),
		FinalCIStatus:         session.CIStatus,
		RetryCount:            session.RetryCount,
		ExecutionTimeMs:       timeNow().Sub(session.StartTime).Milliseconds(),
		PRURL:                 session.PRURL,
		Issues:                session.Issues,
		Fixes:                 session.Fixes,
		CITimeline:            session.CITimeline,
	}
}

func (o *Orchestrator) progress(session *schemas.HealSession, emit schemas.ProgressEmitter, stage, message string) {
	o.appendLog(session, stage, message)
	if emit != nil {
		emit.Emit(schemas.ProgressEvent{Stage: stage, Timestamp: timeNow(), Message: message})
	}
}

func (o *Orchestrator) appendLog(session *schemas.HealSession, stage, message string) {
	session.Logs = append(session.Logs, schemas.LogEntry{Timestamp: timeNow(), Stage: stage, Message: message})
	o.logger.Debug(message, zap.String("stage", stage), zap.String("session", session.ID))
}

func countApplied(fixes []schemas.Fix) int {
	n := 0
	for _, f := range fixes {
		if f.Status == schemas.FixApplied {
			n++
		}
	}
	return n
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// classifyFailures turns file-attributed CI failure logs into a fresh set of
// CI-sourced Issues. A log line with no File is evidence only, not an
// actionable issue, and is dropped.
func classifyFailures(logs []schemas.FailureLog) []schemas.Issue {
	var issues []schemas.Issue
	for _, log := range logs {
		if log.File == "" {
			continue
		}
		issues = append(issues, schemas.Issue{
			File:        log.File,
			Line:        log.Line,
			BugType:     classifyBugType(log.Message),
			Description: log.Message,
			Severity:    schemas.SeverityWarning,
			Source:      schemas.SourceCI,
		})
	}
	return issues
}

// classifyBugType derives a BugKind from substrings of a CI failure message,
// per the healing spec's classification table.
func classifyBugType(message string) schemas.BugKind {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "syntax"):
		return schemas.BugSyntax
	case strings.Contains(lower, "import"), strings.Contains(lower, "module"):
		return schemas.BugImport
	case strings.Contains(lower, "type"), strings.Contains(lower, "undefined"):
		return schemas.BugTypeError
	case strings.Contains(lower, "indent"), strings.Contains(lower, "whitespace"):
		return schemas.BugIndentation
	case strings.Contains(lower, "lint"):
		return schemas.BugLinting
	default:
		return schemas.BugLogic
	}
}

// timeNow is a seam allowing tests to control session timing without
// depending on the wall clock directly.
var timeNow = time.Now
