package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-github/v58/github"
	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/api/schemas"
	"github.com/codeguard-pro/codeguard/internal/config"
	"github.com/codeguard-pro/codeguard/internal/forge"
	"github.com/codeguard-pro/codeguard/internal/regexscan"
)

// fakeForge is an in-memory stand-in for forge.Client, satisfying forgeAPI.
type fakeForge struct {
	mu sync.Mutex

	files           []*github.CommitFile
	fileContent     map[string]string
	statuses        []string
	issueBodies     []string
	reviews         []reviewCall
	createReviewErr error
}

type reviewCall struct {
	event    string
	body     string
	comments []forge.ReviewComment
}

func newFakeForge() *fakeForge {
	return &fakeForge{fileContent: map[string]string{}}
}

func (f *fakeForge) CreateCommitStatus(ctx context.Context, owner, repo, sha, state, description, statusContext, targetURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, state)
	return nil
}

func (f *fakeForge) ListPRFiles(ctx context.Context, owner, repo string, number int) ([]*github.CommitFile, error) {
	return f.files, nil
}

func (f *fakeForge) GetFileContent(ctx context.Context, owner, repo, path, ref string) (string, string, error) {
	return f.fileContent[path], "sha", nil
}

func (f *fakeForge) CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issueBodies = append(f.issueBodies, body)
	return nil
}

func (f *fakeForge) CreateReview(ctx context.Context, owner, repo string, number int, event, body string, comments []forge.ReviewComment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews = append(f.reviews, reviewCall{event: event, body: body, comments: comments})
	return f.createReviewErr
}

// fakeStore is an in-memory schemas.Store.
type fakeStore struct {
	mu         sync.Mutex
	projects   map[string]schemas.Project
	analyses   map[string]schemas.Analysis
	violations []schemas.Violation
	seededFor  map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		projects:  map[string]schemas.Project{},
		analyses:  map[string]schemas.Analysis{},
		seededFor: map[string]bool{},
	}
}

func key(owner, name string) string { return owner + "/" + name }

func (s *fakeStore) UpsertProject(ctx context.Context, p schemas.Project) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(p.RepoOwner, p.RepoName)
	_, exists := s.projects[k]
	p.ID = k
	s.projects[k] = p
	return !exists, nil
}

func (s *fakeStore) GetProjectByRepo(ctx context.Context, owner, name string) (*schemas.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[key(owner, name)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *fakeStore) SeedDefaultRules(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seededFor[projectID] = true
	return nil
}

func (s *fakeStore) GetActiveRules(ctx context.Context, projectID, language string) ([]schemas.Rule, error) {
	return nil, nil
}

func (s *fakeStore) CreateAnalysis(ctx context.Context, a schemas.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[a.ID] = a
	return nil
}

func (s *fakeStore) UpdateAnalysisStatus(ctx context.Context, id string, status schemas.AnalysisStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.analyses[id]
	a.Status = status
	s.analyses[id] = a
	return nil
}

func (s *fakeStore) PersistViolations(ctx context.Context, violations []schemas.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.violations = append(s.violations, violations...)
	return nil
}

func (s *fakeStore) GetViolationsByAnalysisID(ctx context.Context, analysisID string) ([]schemas.Violation, error) {
	return nil, nil
}

func (s *fakeStore) RecordHealSummary(ctx context.Context, result schemas.Result) error {
	return nil
}

func testIntake(t *testing.T, fc *fakeForge, st *fakeStore) *Intake {
	t.Helper()
	cfg := config.ForgeConfig{
		WebhookSecret:   "test-secret",
		CommitStatusCtx: "CodeGuard Pro / Security Analysis",
	}
	return New(st, fc, regexscan.New(zap.NewNop()), cfg, time.Second, zap.NewNop(), nil)
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerify_ValidSignaturePasses(t *testing.T) {
	in := testIntake(t, newFakeForge(), newFakeStore())
	body := []byte(`{"zen":"hi"}`)
	if err := in.verify(sign("test-secret", body), body); err != nil {
		t.Fatalf("expected valid signature to pass, got %v", err)
	}
}

func TestVerify_InvalidSignatureRejected(t *testing.T) {
	in := testIntake(t, newFakeForge(), newFakeStore())
	body := []byte(`{"zen":"hi"}`)
	if err := in.verify(sign("wrong-secret", body), body); err == nil {
		t.Fatal("expected an invalid signature to be rejected")
	}
}

func TestVerify_DevelopmentModeSkipsVerification(t *testing.T) {
	in := testIntake(t, newFakeForge(), newFakeStore())
	in.cfg.DevelopmentMode = true
	if err := in.verify("", []byte(`anything`)); err != nil {
		t.Fatalf("expected development mode to skip verification, got %v", err)
	}
}

func TestServeHTTP_RejectsBadSignature(t *testing.T) {
	in := testIntake(t, newFakeForge(), newFakeStore())
	body := []byte(`{"zen":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(body)))
	req.Header.Set("X-GitHub-Event", "ping")
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	rec := httptest.NewRecorder()

	in.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestServeHTTP_PingIsAcknowledged(t *testing.T) {
	in := testIntake(t, newFakeForge(), newFakeStore())
	body := []byte(`{"zen":"design for failure"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(body)))
	req.Header.Set("X-GitHub-Event", "ping")
	req.Header.Set("X-Hub-Signature-256", sign("test-secret", body))
	rec := httptest.NewRecorder()

	in.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Received bool   `json:"received"`
		Event    string `json:"event"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	if !resp.Received || resp.Event != "ping" {
		t.Fatalf("unexpected response body: %+v", resp)
	}
}

func TestHandleInstallation_CreatedUpsertsProjectAndSeedsRules(t *testing.T) {
	st := newFakeStore()
	in := testIntake(t, newFakeForge(), st)

	payload := installationEvent{Action: "created"}
	payload.Installation.ID = 42
	payload.Repositories = []repository{{FullName: "acme/widgets", Name: "widgets"}}
	payload.Repositories[0].Owner.Login = "acme"
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	in.handleInstallation(context.Background(), body)

	project, err := st.GetProjectByRepo(context.Background(), "acme", "widgets")
	if err != nil || project == nil {
		t.Fatalf("expected project to be created, got %v, err=%v", project, err)
	}
	if project.InstallationID != 42 {
		t.Errorf("expected installation id 42, got %d", project.InstallationID)
	}
	if !st.seededFor[project.ID] {
		t.Error("expected default rules to be seeded for the new project")
	}
}

func TestHandleInstallation_RemovedIsLogOnly(t *testing.T) {
	st := newFakeStore()
	in := testIntake(t, newFakeForge(), st)

	payload := installationEvent{Action: "removed"}
	payload.Installation.ID = 99
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	in.handleInstallation(context.Background(), body)

	if len(st.projects) != 0 {
		t.Error("expected removed installations to not create any project")
	}
}
