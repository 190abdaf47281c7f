// File: internal/fixagent/fixagent.go
package fixagent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/api/schemas"
	"github.com/codeguard-pro/codeguard/internal/config"
	"github.com/codeguard-pro/codeguard/internal/llmutil"
)

// defaultLLMTimeout bounds a single proposeWithLLM call when
// OrchestratorConfig.LLMTimeout is unset.
const defaultLLMTimeout = 60 * time.Second

const contextLines = 15

// fixResponse is the JSON contract the LLM is asked to fill in. Generation
// runs with ForceJSONFormat so the provider's response_mime_type constrains
// the raw output to this shape before ParseJSONResponse ever sees it.
type fixResponse struct {
	FixedCode     string `json:"fixed_code"`
	CommitMessage string `json:"commit_message"`
	Explanation   string `json:"explanation"`
}

// Agent implements schemas.FixAgent. When an LLM client is configured it is
// tried first; a malformed or out-of-bounds response falls back to the
// deterministic per-BugKind mutation table, which is also the only path
// taken when no LLM credentials are present.
type Agent struct {
	llm        schemas.LLMClient
	marker     string
	llmTimeout time.Duration
	logger     *zap.Logger
}

// New wires a FixAgent. llm may be nil, in which case every fix goes through
// the rule-based fallback. llmTimeout bounds a single LLM call; zero falls
// back to defaultLLMTimeout.
func New(llm schemas.LLMClient, gitCfg config.GitConfig, llmTimeout time.Duration, logger *zap.Logger) *Agent {
	marker := gitCfg.CommitMarker
	if marker == "" {
		marker = "[AI-AGENT]"
	}
	if llmTimeout <= 0 {
		llmTimeout = defaultLLMTimeout
	}
	return &Agent{llm: llm, marker: marker, llmTimeout: llmTimeout, logger: logger.Named("fixagent")}
}

var _ schemas.FixAgent = (*Agent)(nil)

// ProposeFix satisfies schemas.FixAgent. issues is expected to carry exactly
// one Issue; the orchestrator applies fixes one issue at a time so each call
// can stash a self-contained pending_commit buffer.
func (a *Agent) ProposeFix(ctx context.Context, file string, content string, issues []schemas.Issue) (schemas.Fix, error) {
	if len(issues) == 0 {
		return schemas.Fix{}, fmt.Errorf("ProposeFix called with no issues for %q", file)
	}
	issue := issues[0]

	if a.llm != nil {
		fix, err := a.proposeWithLLM(ctx, file, content, issue)
		if err == nil {
			return fix, nil
		}
		a.logger.Warn("LLM fix generation failed, falling back to rule-based fix",
			zap.String("file", file), zap.Error(err))
	}

	return a.proposeWithRules(file, content, issue)
}

func (a *Agent) proposeWithLLM(ctx context.Context, file, content string, issue schemas.Issue) (schemas.Fix, error) {
	ctx, cancel := context.WithTimeout(ctx, a.llmTimeout)
	defer cancel()

	prompt := buildPrompt(file, content, issue)

	raw, err := a.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: "You are an automated code-fixing agent. Respond with a single JSON object matching the requested schema, nothing else.",
		UserPrompt:   prompt,
		Options:      schemas.GenerationOptions{Temperature: 0.2, ForceJSONFormat: true},
	})
	if err != nil {
		return schemas.Fix{}, fmt.Errorf("generate: %w", err)
	}

	fixedCode, commitMsg, explanation, err := parseLLMResponse(raw)
	if err != nil {
		return schemas.Fix{}, err
	}

	if !withinLengthBounds(content, fixedCode) {
		return schemas.Fix{}, fmt.Errorf("fixed content length %d is out of [30%%,300%%] bounds of original %d", len(fixedCode), len(content))
	}

	return schemas.Fix{
		File:          file,
		Line:          issue.Line,
		BugType:       issue.BugType,
		Status:        schemas.FixApplied,
		CommitMessage: ensureMarker(commitMsg, a.marker),
		Explanation:   explanation,
		PendingCommit: &schemas.PendingCommit{Content: fixedCode},
	}, nil
}

func buildPrompt(file, content string, issue schemas.Issue) string {
	lines := strings.Split(content, "\n")
	start := issue.Line - 1 - contextLines
	if start < 0 {
		start = 0
	}
	end := issue.Line - 1 + contextLines
	if end > len(lines) {
		end = len(lines)
	}
	var snippet string
	if start < end && issue.Line > 0 {
		snippet = strings.Join(lines[start:end], "\n")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", file)
	fmt.Fprintf(&b, "Line: %d\n", issue.Line)
	fmt.Fprintf(&b, "Bug type: %s\n", issue.BugType)
	fmt.Fprintf(&b, "Description: %s\n\n", issue.Description)
	b.WriteString("Context around the reported line:\n")
	b.WriteString(snippet)
	b.WriteString("\n\nFull current file content:\n")
	b.WriteString(content)
	b.WriteString("\n\nRespond with a single JSON object with exactly these fields:\n")
	b.WriteString(`{"fixed_code": "<the complete fixed file content>", "commit_message": "<one-line commit message>", "explanation": "<short explanation>"}`)
	return b.String()
}

func parseLLMResponse(raw string) (fixedCode, commitMsg, explanation string, err error) {
	parsed, jsonErr := llmutil.ParseJSONResponse[fixResponse](raw)
	if jsonErr != nil {
		// The provider didn't honor ForceJSONFormat; fall back to treating a
		// single fenced code block as the replacement content.
		if cleaned := llmutil.CleanCodeOutput(raw); cleaned != strings.TrimSpace(raw) && cleaned != "" {
			return cleaned, "automated fix", "", nil
		}
		return "", "", "", fmt.Errorf("parse JSON fix response: %w", jsonErr)
	}

	fixedCode = strings.TrimSpace(parsed.FixedCode)
	if fixedCode == "" {
		return "", "", "", fmt.Errorf("JSON fix response has an empty fixed_code field")
	}

	commitMsg = strings.TrimSpace(parsed.CommitMessage)
	if commitMsg == "" {
		commitMsg = "automated fix"
	}
	explanation = strings.TrimSpace(parsed.Explanation)
	return fixedCode, commitMsg, explanation, nil
}

func withinLengthBounds(original, fixed string) bool {
	if len(original) == 0 {
		return len(fixed) > 0
	}
	ratio := float64(len(fixed)) / float64(len(original))
	return ratio >= 0.30 && ratio <= 3.00
}

func ensureMarker(message, marker string) string {
	message = strings.TrimSpace(message)
	if strings.HasPrefix(message, marker) {
		return message
	}
	return marker + " " + message
}
