package schemas

import (
	"context"
	"time"
)

// -- Store Interface --

// Store defines the persistence surface the core depends on. It is
// deliberately opaque: projects, rules, analyses, and violations are
// treated as CRUD resources and nothing in the core core assumes a
// particular backing database.
type Store interface {
	// UpsertProject creates the project if it does not exist (matched by
	// RepoOwner/RepoName) or updates its InstallationID if it does. Returns
	// whether a new project row was created, for idempotency tests.
	UpsertProject(ctx context.Context, p Project) (created bool, err error)
	GetProjectByRepo(ctx context.Context, owner, name string) (*Project, error)

	// SeedDefaultRules installs the default rule catalog for a project. It
	// is a no-op if rules already exist for the project.
	SeedDefaultRules(ctx context.Context, projectID string) error
	GetActiveRules(ctx context.Context, projectID, language string) ([]Rule, error)

	CreateAnalysis(ctx context.Context, a Analysis) error
	UpdateAnalysisStatus(ctx context.Context, id string, status AnalysisStatus) error

	PersistViolations(ctx context.Context, violations []Violation) error
	GetViolationsByAnalysisID(ctx context.Context, analysisID string) ([]Violation, error)

	// RecordHealSummary persists a terminal summary of a completed heal
	// session for later audit; it has no bearing on the FSM itself.
	RecordHealSummary(ctx context.Context, result Result) error
}

// -- LLM Client Schemas & Interface --

// ModelTier allows for selecting a large language model based on a
// preference for speed versus advanced capability.
type ModelTier string

const (
	TierFast     ModelTier = "fast"
	TierPowerful ModelTier = "powerful"
)

// GenerationOptions provides detailed parameters to control the text
// generation process of the LLM, such as creativity (temperature) and
// output format.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
	TopP            float64 `json:"top_p"`
	TopK            int     `json:"top_k"`
}

// GenerationRequest encapsulates a complete request to the LLM, including
// the system and user prompts, the desired model tier, and generation
// options.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient defines a standard interface for interacting with a Large
// Language Model, abstracting the specifics of the underlying provider.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	Close() error
}

// -- Orchestrator collaborator interfaces --
//
// The Orchestrator FSM (internal/orchestrator) depends only on these
// interfaces, never on concrete forge/sandbox/LLM packages. Each has exactly
// one production implementation and is straightforward to fake in tests.

// FixAgent proposes a replacement for a file's content given the issues
// found in it. It has two implementations (LLM-backed, rule-based); the
// Orchestrator never knows which is active.
type FixAgent interface {
	ProposeFix(ctx context.Context, file string, content string, issues []Issue) (Fix, error)
}

// BranchManager owns all git-data operations the Orchestrator needs against
// a forge-hosted repository: creating the healing branch and committing file
// content to it.
type BranchManager interface {
	EnsureBranch(ctx context.Context, owner, repo, base, branch string) error
	CommitFile(ctx context.Context, owner, repo, branch, path, content, message string) error
	CommitMultipleFiles(ctx context.Context, owner, repo, branch string, files map[string]string, message string) (commitSHA string, err error)
	GetFileContent(ctx context.Context, owner, repo, ref, path string) (string, error)
	GetBranchTipSHA(ctx context.Context, owner, repo, branch string) (string, error)
}

// PRCreator owns pull-request lifecycle operations against the forge.
type PRCreator interface {
	CreatePR(ctx context.Context, owner, repo, branch, base, title, body string) (number int, url string, err error)
	UpdatePRBody(ctx context.Context, owner, repo string, number int, body string) error
}

// CIAgent polls the forge's check/status API for a commit until it reaches a
// terminal state or the configured wait timeout elapses.
type CIAgent interface {
	HasCIConfigured(ctx context.Context, owner, repo, sha string) (bool, error)
	WaitForChecks(ctx context.Context, owner, repo, sha string) (CIResult, error)
}

// ProgressEvent is one emission of the Orchestrator's progress bus.
type ProgressEvent struct {
	Stage     string    `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// ProgressEmitter receives progress events as the Orchestrator's FSM
// advances through its nodes. Implementations must not block for long; the
// SSE gateway is the production implementation.
type ProgressEmitter interface {
	Emit(event ProgressEvent)
}
