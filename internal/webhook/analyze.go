// File: internal/webhook/analyze.go
// Description: the inline PR analyzer, WebhookIntake's companion: set
// commit status to pending, scan every changed supported-language file
// with RegexDetector, persist the violations, then report success/failure
// back to the PR via a review (or a issue-comment fallback) and a terminal
// commit status.
package webhook

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/api/schemas"
	"github.com/codeguard-pro/codeguard/internal/forge"
	"github.com/codeguard-pro/codeguard/internal/grammar"
)

// inlineAnalysisCtx detaches ctx from the request it arrived on (the
// delivery handler already returned 202) while still enforcing the
// configured analysis timeout as its own cancellation bound.
func (in *Intake) inlineAnalysisCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), in.analysisTimeout)
}

// maxReviewComments bounds how many inline comments a single review posts;
// it mirrors the fallback comment's "first 10 and N more" truncation at a
// higher cap because a review's comments are each scoped to one line and
// don't compound the way a single comment body does.
const maxReviewComments = 20

// maxFallbackSummaryItems bounds the issue-comment fallback body, which
// unlike a review has to list every violation inline in one block of text.
const maxFallbackSummaryItems = 10

type inlineAnalysisRequest struct {
	Owner    string
	Repo     string
	Number   int
	HeadSHA  string
	RepoFull string
}

// runInlineAnalysis implements the inline analysis algorithm end to end. It
// is invoked in its own goroutine per PR event, so panics are recovered and
// turned into a FAILURE status rather than crashing the process.
func (in *Intake) runInlineAnalysis(ctx context.Context, req inlineAnalysisRequest) {
	ctx, cancel := in.inlineAnalysisCtx(ctx)
	defer cancel()

	analysisID := uuid.NewString()

	defer func() {
		if rec := recover(); rec != nil {
			in.logger.Error("inline analysis panicked", zap.Any("recovered", rec), zap.String("repo", req.RepoFull))
			_ = in.store.UpdateAnalysisStatus(ctx, analysisID, schemas.AnalysisFailure)
		}
	}()

	projectID, err := in.resolveProject(ctx, req.Owner, req.Repo)
	if err != nil {
		in.logger.Error("failed to resolve project for inline analysis", zap.String("repo", req.RepoFull), zap.Error(err))
		return
	}

	if err := in.store.CreateAnalysis(ctx, schemas.Analysis{
		ID:         analysisID,
		ProjectID:  projectID,
		CommitHash: req.HeadSHA,
		PRNumber:   req.Number,
		Status:     schemas.AnalysisPending,
	}); err != nil {
		in.logger.Error("failed to create analysis record", zap.Error(err))
		return
	}

	if err := in.forge.CreateCommitStatus(ctx, req.Owner, req.Repo, req.HeadSHA, "pending",
		"CodeGuard Pro is analyzing this pull request", in.cfg.CommitStatusCtx, in.cfg.StatusTargetURL); err != nil {
		in.logger.Warn("failed to set pending commit status", zap.Error(err))
	}

	violations, err := in.scanChangedFiles(ctx, req)
	if err != nil {
		in.logger.Error("inline analysis failed while scanning changed files", zap.Error(err))
		_ = in.store.UpdateAnalysisStatus(ctx, analysisID, schemas.AnalysisFailure)
		_ = in.forge.CreateCommitStatus(ctx, req.Owner, req.Repo, req.HeadSHA, "error",
			"CodeGuard Pro analysis failed", in.cfg.CommitStatusCtx, in.cfg.StatusTargetURL)
		return
	}

	for i := range violations {
		violations[i].AnalysisID = analysisID
	}
	if err := in.store.PersistViolations(ctx, violations); err != nil {
		in.logger.Error("failed to persist violations", zap.Error(err))
	}

	if len(violations) == 0 {
		in.reportClean(ctx, req, analysisID)
		return
	}
	in.reportViolations(ctx, req, analysisID, violations)
}

// resolveProject looks up the project row, creating one with an unknown
// installation ID if the installation webhook hasn't landed yet (delivery
// order across event types is not guaranteed).
func (in *Intake) resolveProject(ctx context.Context, owner, repo string) (string, error) {
	if project, err := in.store.GetProjectByRepo(ctx, owner, repo); err == nil && project != nil {
		return project.ID, nil
	}
	if _, err := in.store.UpsertProject(ctx, schemas.Project{RepoOwner: owner, RepoName: repo}); err != nil {
		return "", fmt.Errorf("upsert project: %w", err)
	}
	project, err := in.store.GetProjectByRepo(ctx, owner, repo)
	if err != nil {
		return "", fmt.Errorf("get project after upsert: %w", err)
	}
	if err := in.store.SeedDefaultRules(ctx, project.ID); err != nil {
		in.logger.Warn("failed to seed default rules for implicitly created project", zap.Error(err))
	}
	return project.ID, nil
}

// scanChangedFiles lists the PR's changed files and runs RegexDetector over
// every non-removed file whose extension maps to a supported language,
// returning every violation found (uncapped; the 20-item cap only applies
// to how many become inline review comments).
func (in *Intake) scanChangedFiles(ctx context.Context, req inlineAnalysisRequest) ([]schemas.Violation, error) {
	files, err := in.forge.ListPRFiles(ctx, req.Owner, req.Repo, req.Number)
	if err != nil {
		return nil, fmt.Errorf("list PR files: %w", err)
	}

	var violations []schemas.Violation
	for _, f := range files {
		if f.GetStatus() == "removed" {
			continue
		}
		filename := f.GetFilename()
		if _, ok := grammar.LanguageForFile(filename); !ok {
			continue
		}
		content, _, err := in.forge.GetFileContent(ctx, req.Owner, req.Repo, filename, req.HeadSHA)
		if err != nil {
			in.logger.Warn("failed to fetch file content for inline analysis", zap.String("file", filename), zap.Error(err))
			continue
		}
		violations = append(violations, in.regex.DetectViolations("", filename, content, 0)...)
	}
	return violations, nil
}

func (in *Intake) reportClean(ctx context.Context, req inlineAnalysisRequest, analysisID string) {
	_ = in.store.UpdateAnalysisStatus(ctx, analysisID, schemas.AnalysisSuccess)
	_ = in.forge.CreateCommitStatus(ctx, req.Owner, req.Repo, req.HeadSHA, "success",
		"CodeGuard Pro found no issues", in.cfg.CommitStatusCtx, in.cfg.StatusTargetURL)
	_ = in.forge.CreateIssueComment(ctx, req.Owner, req.Repo, req.Number,
		"CodeGuard Pro analyzed this pull request and found no issues.")
	in.notify(ctx, fmt.Sprintf("%s PR #%d: no issues found", req.RepoFull, req.Number))
}

func (in *Intake) reportViolations(ctx context.Context, req inlineAnalysisRequest, analysisID string, violations []schemas.Violation) {
	_ = in.store.UpdateAnalysisStatus(ctx, analysisID, schemas.AnalysisFailure)
	_ = in.forge.CreateCommitStatus(ctx, req.Owner, req.Repo, req.HeadSHA, "failure",
		fmt.Sprintf("CodeGuard Pro found %d issue(s)", len(violations)), in.cfg.CommitStatusCtx, in.cfg.StatusTargetURL)

	comments := make([]forge.ReviewComment, 0, maxReviewComments)
	for _, v := range violations {
		if len(comments) >= maxReviewComments {
			break
		}
		comments = append(comments, forge.ReviewComment{Path: v.File, Line: v.Line, Body: fmt.Sprintf("**%s**: %s", v.RuleID, v.Message)})
	}

	reviewBody := fmt.Sprintf("CodeGuard Pro found %d issue(s) in this pull request.", len(violations))
	if err := in.forge.CreateReview(ctx, req.Owner, req.Repo, req.Number, "COMMENT", reviewBody, comments); err != nil {
		in.logger.Warn("failed to post PR review, falling back to an issue comment", zap.Error(err))
		in.postFallbackComment(ctx, req, violations)
	}

	in.notify(ctx, fmt.Sprintf("%s PR #%d: %d issue(s) found", req.RepoFull, req.Number, len(violations)))
}

func (in *Intake) postFallbackComment(ctx context.Context, req inlineAnalysisRequest, violations []schemas.Violation) {
	var b strings.Builder
	fmt.Fprintf(&b, "CodeGuard Pro found %d issue(s) in this pull request:\n\n", len(violations))
	shown := violations
	if len(shown) > maxFallbackSummaryItems {
		shown = shown[:maxFallbackSummaryItems]
	}
	for _, v := range shown {
		fmt.Fprintf(&b, "- `%s:%d` %s\n", v.File, v.Line, v.Message)
	}
	if remaining := len(violations) - len(shown); remaining > 0 {
		fmt.Fprintf(&b, "\n...and %d more.\n", remaining)
	}
	if err := in.forge.CreateIssueComment(ctx, req.Owner, req.Repo, req.Number, b.String()); err != nil {
		in.logger.Error("failed to post fallback issue comment", zap.Error(err))
	}
}

func (in *Intake) notify(ctx context.Context, text string) {
	if in.notifier == nil {
		return
	}
	in.notifier.Notify(ctx, text)
}
