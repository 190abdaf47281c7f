package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store provides a PostgreSQL implementation of schemas.Store.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

var _ schemas.Store = (*Store)(nil)

// UpsertProject creates the project if it does not exist (matched by
// RepoOwner/RepoName) or updates its InstallationID if it does.
func (s *Store) UpsertProject(ctx context.Context, p schemas.Project) (created bool, err error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO projects (id, repo_owner, repo_name, installation_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (repo_owner, repo_name) DO UPDATE SET
			installation_id = EXCLUDED.installation_id
		RETURNING id, (xmax = 0) AS inserted;
	`

	var returnedID string
	var inserted bool
	row := s.pool.QueryRow(ctx, query, p.ID, p.RepoOwner, p.RepoName, p.InstallationID)
	if err := row.Scan(&returnedID, &inserted); err != nil {
		return false, fmt.Errorf("failed to upsert project %s/%s: %w", p.RepoOwner, p.RepoName, err)
	}

	return inserted, nil
}

// GetProjectByRepo looks up a project by owner/name.
func (s *Store) GetProjectByRepo(ctx context.Context, owner, name string) (*schemas.Project, error) {
	const query = `
		SELECT id, repo_owner, repo_name, installation_id
		FROM projects
		WHERE repo_owner = $1 AND repo_name = $2;
	`
	var p schemas.Project
	row := s.pool.QueryRow(ctx, query, owner, name)
	if err := row.Scan(&p.ID, &p.RepoOwner, &p.RepoName, &p.InstallationID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get project %s/%s: %w", owner, name, err)
	}
	return &p, nil
}

// SeedDefaultRules installs the default rule catalog for a project. It is a
// no-op if rules already exist for the project.
func (s *Store) SeedDefaultRules(ctx context.Context, projectID string) error {
	const existsQuery = `SELECT COUNT(*) FROM rules WHERE project_id = $1;`
	var count int
	if err := s.pool.QueryRow(ctx, existsQuery, projectID).Scan(&count); err != nil {
		return fmt.Errorf("failed to check existing rules for project %s: %w", projectID, err)
	}
	if count > 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(DefaultRuleCatalog))
	for _, r := range DefaultRuleCatalog {
		rows = append(rows, []interface{}{
			uuid.NewString(), projectID, r.Name, string(r.Category), string(r.Severity),
			r.Language, r.PatternSource, r.Message, true,
		})
	}

	copyCount, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"rules"},
		[]string{"id", "project_id", "name", "category", "severity", "language", "pattern_source", "message", "is_active"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to seed default rules for project %s: %w", projectID, err)
	}
	if int(copyCount) != len(rows) {
		return fmt.Errorf("mismatch seeding rules: expected %d, got %d", len(rows), copyCount)
	}
	return nil
}

// GetActiveRules returns the active rules for a project that apply to a
// given language (or apply to every language, when Language is empty).
func (s *Store) GetActiveRules(ctx context.Context, projectID, language string) ([]schemas.Rule, error) {
	const query = `
		SELECT id, name, category, severity, language, pattern_source, message, is_active
		FROM rules
		WHERE project_id = $1 AND is_active = true AND (language = $2 OR language = '')
		ORDER BY severity DESC, name ASC;
	`
	rows, err := s.pool.Query(ctx, query, projectID, language)
	if err != nil {
		return nil, fmt.Errorf("failed to query active rules: %w", err)
	}
	defer rows.Close()

	var rules []schemas.Rule
	for rows.Next() {
		var r schemas.Rule
		var category, severity string
		if err := rows.Scan(&r.ID, &r.Name, &category, &severity, &r.Language, &r.PatternSource, &r.Message, &r.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan rule row: %w", err)
		}
		r.Category = schemas.RuleCategory(category)
		r.Severity = schemas.Severity(severity)
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rule row iteration: %w", err)
	}
	return rules, nil
}

// CreateAnalysis inserts a new analysis record.
func (s *Store) CreateAnalysis(ctx context.Context, a schemas.Analysis) error {
	const query = `
		INSERT INTO analyses (id, project_id, commit_hash, pr_number, status)
		VALUES ($1, $2, $3, $4, $5);
	`
	_, err := s.pool.Exec(ctx, query, a.ID, a.ProjectID, a.CommitHash, a.PRNumber, string(a.Status))
	if err != nil {
		return fmt.Errorf("failed to create analysis %s: %w", a.ID, err)
	}
	return nil
}

// UpdateAnalysisStatus transitions an analysis to a terminal status.
func (s *Store) UpdateAnalysisStatus(ctx context.Context, id string, status schemas.AnalysisStatus) error {
	const query = `UPDATE analyses SET status = $1 WHERE id = $2;`
	tag, err := s.pool.Exec(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update analysis %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no analysis found with id %s", id)
	}
	return nil
}

// PersistViolations bulk-inserts rule violations found during an analysis.
func (s *Store) PersistViolations(ctx context.Context, violations []schemas.Violation) error {
	if len(violations) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(violations))
	for i, v := range violations {
		rows[i] = []interface{}{v.AnalysisID, v.RuleID, v.File, v.Line, v.Message}
	}

	copyCount, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"violations"},
		[]string{"analysis_id", "rule_id", "file", "line", "message"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy violations: %w", err)
	}
	if int(copyCount) != len(violations) {
		return fmt.Errorf("mismatch in copied violations count: expected %d, got %d", len(violations), copyCount)
	}
	return nil
}

// GetViolationsByAnalysisID returns every violation persisted for an analysis.
func (s *Store) GetViolationsByAnalysisID(ctx context.Context, analysisID string) ([]schemas.Violation, error) {
	const query = `
		SELECT analysis_id, rule_id, file, line, message
		FROM violations
		WHERE analysis_id = $1
		ORDER BY file ASC, line ASC;
	`
	rows, err := s.pool.Query(ctx, query, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to query violations: %w", err)
	}
	defer rows.Close()

	var violations []schemas.Violation
	for rows.Next() {
		var v schemas.Violation
		if err := rows.Scan(&v.AnalysisID, &v.RuleID, &v.File, &v.Line, &v.Message); err != nil {
			return nil, fmt.Errorf("failed to scan violation row: %w", err)
		}
		violations = append(violations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during violation row iteration: %w", err)
	}
	return violations, nil
}

// RecordHealSummary persists a terminal summary of a completed heal session
// for later audit; it has no bearing on the FSM itself.
func (s *Store) RecordHealSummary(ctx context.Context, result schemas.Result) error {
	const query = `
		INSERT INTO heal_summaries (
			id, repo, branch_created, total_failures_detected, total_fixes_applied,
			final_ci_status, retry_count, execution_time_ms, pr_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	_, err := s.pool.Exec(ctx, query,
		uuid.NewString(), result.Repo, result.BranchCreated, result.TotalFailuresDetected,
		result.TotalFixesApplied, string(result.FinalCIStatus), result.RetryCount,
		result.ExecutionTimeMs, result.PRURL,
	)
	if err != nil {
		return fmt.Errorf("failed to record heal summary for %s: %w", result.Repo, err)
	}
	return nil
}
