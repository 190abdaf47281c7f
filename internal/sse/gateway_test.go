package sse

import (
	"testing"
	"time"

	"github.com/codeguard-pro/codeguard/internal/config"
)

func TestSanitizeBranchComponent(t *testing.T) {
	cases := map[string]string{
		"  team rocket  ": "TEAM_ROCKET",
		"Alpha-Squad!":    "ALPHASQUAD",
		"already_UPPER":   "ALREADYUPPER",
		"multi   spaces":  "MULTI_SPACES",
		"":                "",
	}
	for in, want := range cases {
		if got := sanitizeBranchComponent(in); got != want {
			t.Errorf("sanitizeBranchComponent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHealingBranchName(t *testing.T) {
	got := healingBranchName("Team Rocket", "Jessie")
	want := "TEAM_ROCKET_JESSIE_AI_Fix"
	if got != want {
		t.Errorf("healingBranchName = %q, want %q", got, want)
	}
}

func TestParseForgeURL_Valid(t *testing.T) {
	p, err := parseForgeURL("https://github.com/acme/widgets")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.owner != "acme" || p.repo != "widgets" {
		t.Errorf("got owner=%q repo=%q", p.owner, p.repo)
	}
	if p.cloneURL != "https://github.com/acme/widgets.git" {
		t.Errorf("unexpected clone URL: %q", p.cloneURL)
	}
}

func TestParseForgeURL_StripsDotGitAndTrailingPath(t *testing.T) {
	p, err := parseForgeURL("https://github.com/acme/widgets.git/pull/1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.owner != "acme" || p.repo != "widgets" {
		t.Errorf("got owner=%q repo=%q", p.owner, p.repo)
	}
}

func TestParseForgeURL_RejectsNonForgeInput(t *testing.T) {
	for _, raw := range []string{
		"not a url",
		"ftp://github.com/acme/widgets",
		"https://github.com/acme",
		"https://github.com/",
	} {
		if _, err := parseForgeURL(raw); err == nil {
			t.Errorf("expected %q to be rejected", raw)
		}
	}
}

func TestHealRequest_ValidateRequiresAllFields(t *testing.T) {
	req := healRequest{RepoURL: "https://github.com/acme/widgets"}
	if _, err := req.validate(); err == nil {
		t.Fatal("expected an error when team_name/leader_name are missing")
	}
}

func TestSessionTimeout_DefaultsWhenUnset(t *testing.T) {
	var cfg config.OrchestratorConfig
	if got := sessionTimeout(cfg); got != 5*time.Minute {
		t.Errorf("expected default 5m timeout, got %v", got)
	}
}
