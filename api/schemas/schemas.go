package schemas

import "time"

// BugKind classifies the nature of an Issue once it has been triaged out of
// a raw AST, regex, test, or CI finding.
type BugKind string

const (
	BugSyntax      BugKind = "SYNTAX"
	BugLinting     BugKind = "LINTING"
	BugLogic       BugKind = "LOGIC"
	BugTypeError   BugKind = "TYPE_ERROR"
	BugImport      BugKind = "IMPORT"
	BugIndentation BugKind = "INDENTATION"
)

// Severity is the urgency of a Rule or Issue.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
)

// IssueSource records which stage of the pipeline produced an Issue.
type IssueSource string

const (
	SourceAST   IssueSource = "ast"
	SourceRegex IssueSource = "regex"
	SourceTest  IssueSource = "test"
	SourceCI    IssueSource = "ci"
)

// Issue is a normalized, classified finding the orchestrator can act on. It
// is immutable once classification has assigned BugType and Source.
type Issue struct {
	ID          string      `json:"id"`
	File        string      `json:"file"`
	Line        int         `json:"line"`
	BugType     BugKind     `json:"bug_type"`
	Description string      `json:"description"`
	CodeSnippet string      `json:"code_snippet"`
	Severity    Severity    `json:"severity"`
	Source      IssueSource `json:"source"`
}

// RuleCategory groups rules by the concern they enforce.
type RuleCategory string

const (
	CategorySecurity     RuleCategory = "security"
	CategoryNaming       RuleCategory = "naming"
	CategoryStyle        RuleCategory = "style"
	CategoryBestPractice RuleCategory = "best-practice"
	CategoryPerformance  RuleCategory = "performance"
)

// Rule is one entry in the detection catalog. PatternSource is either a
// tree-sitter S-expression query (AST rules) or a regular expression
// (regex-only rules); Language is empty for rules that apply to every
// language a RegexDetector catalog entry targets.
type Rule struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Category      RuleCategory `json:"category"`
	Severity      Severity     `json:"severity"`
	Language      string       `json:"language"`
	PatternSource string       `json:"pattern_source"`
	Message       string       `json:"message"`
	IsActive      bool         `json:"is_active"`
}

// Violation is the persisted record of a single Rule match against a file
// during inline PR analysis.
type Violation struct {
	AnalysisID string `json:"analysis_id"`
	RuleID     string `json:"rule_id"`
	File       string `json:"file"`
	Line       int    `json:"line"`
	Message    string `json:"message"`
}

// AnalysisStatus is the lifecycle state of a persisted Analysis record.
type AnalysisStatus string

const (
	AnalysisPending AnalysisStatus = "PENDING"
	AnalysisSuccess AnalysisStatus = "SUCCESS"
	AnalysisFailure AnalysisStatus = "FAILURE"
)

// Analysis is the persisted record of one inline PR analysis run. It is
// created in PENDING at webhook intake and transitions exactly once to
// SUCCESS or FAILURE.
type Analysis struct {
	ID         string         `json:"id"`
	ProjectID  string         `json:"project_id"`
	CommitHash string         `json:"commit_hash"`
	PRNumber   int            `json:"pr_number"`
	Status     AnalysisStatus `json:"status"`
}

// FixStatus is the disposition of one proposed Fix.
type FixStatus string

const (
	FixApplied      FixStatus = "applied"
	FixUnfixable    FixStatus = "unfixable"
	FixSkipped      FixStatus = "skipped"
	FixError        FixStatus = "error"
	FixCommitFailed FixStatus = "commit_failed"
)

// PendingCommit carries the full replacement content for a Fix's file,
// staged by GENERATE_FIXES and consumed by APPLY_COMMIT.
type PendingCommit struct {
	Content string `json:"content"`
}

// Fix is a proposed (and eventually applied) replacement of one file's
// content, tied to one Issue.
type Fix struct {
	File          string         `json:"file"`
	Line          int            `json:"line"`
	BugType       BugKind        `json:"bug_type"`
	Status        FixStatus      `json:"status"`
	CommitMessage string         `json:"commit_message"`
	Explanation   string         `json:"explanation"`
	PendingCommit *PendingCommit `json:"pending_commit,omitempty"`
}

// CIStatus is the terminal or in-flight state of a CI monitoring attempt.
type CIStatus string

const (
	CIPending CIStatus = "PENDING"
	CIPassed  CIStatus = "PASSED"
	CIFailed  CIStatus = "FAILED"
	CINoCI    CIStatus = "NO_CI"
	CISkipped CIStatus = "SKIPPED"
)

// FailureLogLevel is the severity of one structured CI failure log line.
type FailureLogLevel string

const (
	LogLevelError   FailureLogLevel = "error"
	LogLevelWarning FailureLogLevel = "warning"
	LogLevelNotice  FailureLogLevel = "notice"
)

// FailureLog is one structured piece of evidence extracted from a failed
// check run or status context.
type FailureLog struct {
	Source  string          `json:"source"`
	File    string          `json:"file,omitempty"`
	Line    int             `json:"line,omitempty"`
	Message string          `json:"message"`
	Level   FailureLogLevel `json:"level"`
}

// CheckSummary is one check run or status context observed while polling.
type CheckSummary struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
}

// CIResult is the outcome of one CIAgent.WaitForChecks call. If Status is
// CIPassed, FailureLogs is always empty.
type CIResult struct {
	Status      CIStatus       `json:"status"`
	Checks      []CheckSummary `json:"checks"`
	FailureLogs []FailureLog   `json:"failure_logs"`
}

// CITimelineEntry is one row of a HealSession's append-only monitoring
// history.
type CITimelineEntry struct {
	Iteration int            `json:"iteration"`
	Timestamp time.Time      `json:"timestamp"`
	Status    CIStatus       `json:"status"`
	Checks    []CheckSummary `json:"checks"`
	CommitSHA string         `json:"commit_sha_short"`
}

// LogEntry is one append-only progress line recorded against a HealSession.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
}

// HealSession is the in-memory state the Orchestrator mutates across one
// heal request. Only the Orchestrator mutates Status/RetryCount; every
// other component receives Issues/Fixes/Logs by reference for read and
// append only.
type HealSession struct {
	ID             string
	RepoOwner      string
	RepoName       string
	DefaultBranch  string
	AIBranch       string
	InstallationID int64

	Issues []Issue
	Fixes  []Fix

	RetryCount int
	CIStatus   CIStatus
	CITimeline []CITimelineEntry

	PRNumber int
	PRURL    string

	Logs []LogEntry

	StartTime time.Time
}

// Project and Installation are opaque external identifiers the core only
// reads; their owning tables live behind the Store.
type Project struct {
	ID             string `json:"id"`
	RepoOwner      string `json:"repo_owner"`
	RepoName       string `json:"repo_name"`
	InstallationID int64  `json:"installation_id"`
}

type Installation struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
}

// Result is the schema emitted over SSE and persisted to the result store
// on completion of a heal.
type Result struct {
	Repo                  string            `json:"repo"`
	BranchCreated         string            `json:"branch_created"`
	TotalFailuresDetected int               `json:"total_failures_detected"`
	TotalFixesApplied     int               `json:"total_fixes_applied"`
	FinalCIStatus         CIStatus          `json:"final_ci_status"`
	RetryCount            int               `json:"retry_count"`
	ExecutionTimeMs       int64             `json:"execution_time_ms"`
	PRURL                 string            `json:"pr_url,omitempty"`
	Issues                []Issue           `json:"issues"`
	Fixes                 []Fix             `json:"fixes"`
	CITimeline            []CITimelineEntry `json:"ci_timeline"`
}
