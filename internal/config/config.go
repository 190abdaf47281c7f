// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Forge() ForgeConfig
	Sandbox() SandboxConfig
	Orchestrator() OrchestratorConfig
	RateLimit() RateLimitConfig
	Agent() AgentConfig
	HTTP() HTTPConfig
	Git() GitConfig
	Notify() NotifyConfig
}

// Config holds the entire application configuration. It uses private fields
// to enforce access through the Interface's getter methods.
type Config struct {
	logger       LoggerConfig       `mapstructure:"logger" yaml:"logger"`
	database     DatabaseConfig     `mapstructure:"database" yaml:"database"`
	forge        ForgeConfig        `mapstructure:"forge" yaml:"forge"`
	sandbox      SandboxConfig      `mapstructure:"sandbox" yaml:"sandbox"`
	orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	rateLimit    RateLimitConfig    `mapstructure:"rate_limit" yaml:"rate_limit"`
	agent        AgentConfig        `mapstructure:"agent" yaml:"agent"`
	http         HTTPConfig         `mapstructure:"http" yaml:"http"`
	git          GitConfig          `mapstructure:"git" yaml:"git"`
	notify       NotifyConfig       `mapstructure:"notify" yaml:"-"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig             { return c.logger }
func (c *Config) Database() DatabaseConfig         { return c.database }
func (c *Config) Forge() ForgeConfig               { return c.forge }
func (c *Config) Sandbox() SandboxConfig           { return c.sandbox }
func (c *Config) Orchestrator() OrchestratorConfig { return c.orchestrator }
func (c *Config) RateLimit() RateLimitConfig       { return c.rateLimit }
func (c *Config) Agent() AgentConfig               { return c.agent }
func (c *Config) HTTP() HTTPConfig                 { return c.http }
func (c *Config) Git() GitConfig                   { return c.git }
func (c *Config) Notify() NotifyConfig             { return c.notify }

// GitConfig defines the commit-author identity used for healing commits.
type GitConfig struct {
	AuthorName  string `mapstructure:"author_name" yaml:"author_name"`
	AuthorEmail string `mapstructure:"author_email" yaml:"author_email"`
	// CommitMarker is prepended to every healing commit message.
	CommitMarker string `mapstructure:"commit_marker" yaml:"commit_marker"`
}

// ForgeConfig configures CredentialBroker and ForgeClient.
type ForgeConfig struct {
	AppID           int64         `mapstructure:"app_id" yaml:"app_id"`
	AppPrivateKey   string        `mapstructure:"app_private_key" yaml:"-"`
	WebhookSecret   string        `mapstructure:"webhook_secret" yaml:"-"`
	FallbackToken   string        `mapstructure:"fallback_token" yaml:"-"`
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	TokenMinTTL     time.Duration `mapstructure:"token_min_ttl" yaml:"token_min_ttl"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries"`
	CommitStatusCtx string        `mapstructure:"commit_status_context" yaml:"commit_status_context"`
	StatusTargetURL string        `mapstructure:"status_target_url" yaml:"status_target_url"`
	DevelopmentMode bool          `mapstructure:"development_mode" yaml:"development_mode"`
}

// SandboxConfig configures the container-isolated TestRunner backend.
type SandboxConfig struct {
	Enabled             bool          `mapstructure:"enabled" yaml:"enabled"`
	Image               string        `mapstructure:"image" yaml:"image"`
	CPULimit            float64       `mapstructure:"cpu_limit" yaml:"cpu_limit"`
	MemoryLimitMB       int           `mapstructure:"memory_limit_mb" yaml:"memory_limit_mb"`
	PidsLimit           int           `mapstructure:"pids_limit" yaml:"pids_limit"`
	Timeout             time.Duration `mapstructure:"timeout" yaml:"timeout"`
	AllowNetworkInstall bool          `mapstructure:"allow_network_install" yaml:"allow_network_install"`
	WorkspaceRoot       string        `mapstructure:"workspace_root" yaml:"workspace_root"`
}

// OrchestratorConfig configures the healing FSM's bounds and timeouts.
type OrchestratorConfig struct {
	MaxRetries            int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryPause            time.Duration `mapstructure:"retry_pause" yaml:"retry_pause"`
	CloneTimeout          time.Duration `mapstructure:"clone_timeout" yaml:"clone_timeout"`
	CIPollInterval        time.Duration `mapstructure:"ci_poll_interval" yaml:"ci_poll_interval"`
	CIWaitTimeout         time.Duration `mapstructure:"ci_wait_timeout" yaml:"ci_wait_timeout"`
	LLMTimeout            time.Duration `mapstructure:"llm_timeout" yaml:"llm_timeout"`
	InlineAnalysisTimeout time.Duration `mapstructure:"inline_analysis_timeout" yaml:"inline_analysis_timeout"`
	SessionTimeout        time.Duration `mapstructure:"session_timeout" yaml:"session_timeout"`
	MaxReviewComments     int           `mapstructure:"max_review_comments" yaml:"max_review_comments"`
}

// RateLimitConfig configures the public API sliding-window limiter.
type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	Window      time.Duration `mapstructure:"window" yaml:"window"`
	MaxRequests int           `mapstructure:"max_requests" yaml:"max_requests"`
	GCInterval  time.Duration `mapstructure:"gc_interval" yaml:"gc_interval"`
}

// HTTPConfig configures the public HTTP surface.
type HTTPConfig struct {
	Address     string `mapstructure:"address" yaml:"address"`
	NextAuthURL string `mapstructure:"nextauth_url" yaml:"nextauth_url"`
}

// NotifyConfig configures the optional external-channel summary posted
// once inline analysis completes.
type NotifyConfig struct {
	SlackWebhookURL string `mapstructure:"slack_webhook_url" yaml:"-"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the connection details for the opaque Store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"-"`
}

// AgentConfig holds settings related to the FixAgent's LLM backend.
type AgentConfig struct {
	LLM LLMRouterConfig `mapstructure:"llm" yaml:"llm"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMRouterConfig configures the fast/powerful tier routing used by
// FixAgent and PRCreator's optional narrative summary.
type LLMRouterConfig struct {
	Fast     LLMModelConfig `mapstructure:"fast" yaml:"fast"`
	Powerful LLMModelConfig `mapstructure:"powerful" yaml:"powerful"`
}

// LLMModelConfig defines the configuration for a single LLM.
type LLMModelConfig struct {
	Provider      LLMProvider       `mapstructure:"provider" yaml:"provider"`
	Model         string            `mapstructure:"model" yaml:"model"`
	APIKey        string            `mapstructure:"api_key" yaml:"-"`
	Endpoint      string            `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout    time.Duration     `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature   float32           `mapstructure:"temperature" yaml:"temperature"`
	TopP          float32           `mapstructure:"top_p" yaml:"top_p"`
	TopK          int               `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens     int               `mapstructure:"max_tokens" yaml:"max_tokens"`
	SafetyFilters map[string]string `mapstructure:"safety_filters" yaml:"safety_filters"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "codeguard")
	v.SetDefault("logger.log_file", "codeguard.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Forge --
	v.SetDefault("forge.base_url", "https://api.github.com/")
	v.SetDefault("forge.token_min_ttl", "5m")
	v.SetDefault("forge.request_timeout", "30s")
	v.SetDefault("forge.max_retries", 3)
	v.SetDefault("forge.commit_status_context", "CodeGuard Pro / Security Analysis")
	v.SetDefault("forge.development_mode", false)

	// -- Sandbox --
	v.SetDefault("sandbox.enabled", true)
	v.SetDefault("sandbox.image", "codeguard/sandbox-runner:latest")
	v.SetDefault("sandbox.cpu_limit", 1.0)
	v.SetDefault("sandbox.memory_limit_mb", 512)
	v.SetDefault("sandbox.pids_limit", 256)
	v.SetDefault("sandbox.timeout", "180s")
	v.SetDefault("sandbox.allow_network_install", true)
	v.SetDefault("sandbox.workspace_root", os.TempDir())

	// -- Orchestrator --
	v.SetDefault("orchestrator.max_retries", 5)
	v.SetDefault("orchestrator.retry_pause", "5s")
	v.SetDefault("orchestrator.clone_timeout", "120s")
	v.SetDefault("orchestrator.ci_poll_interval", "15s")
	v.SetDefault("orchestrator.ci_wait_timeout", "300s")
	v.SetDefault("orchestrator.llm_timeout", "60s")
	v.SetDefault("orchestrator.inline_analysis_timeout", "60s")
	v.SetDefault("orchestrator.session_timeout", "5m")
	v.SetDefault("orchestrator.max_review_comments", 20)

	// -- Rate limit --
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("rate_limit.max_requests", 60)
	v.SetDefault("rate_limit.gc_interval", "5m")

	// -- HTTP --
	v.SetDefault("http.address", ":8080")

	// -- Agent / LLM --
	v.SetDefault("agent.llm.fast.provider", "gemini")
	v.SetDefault("agent.llm.fast.model", "gemini-2.5-flash")
	v.SetDefault("agent.llm.fast.api_timeout", "60s")
	v.SetDefault("agent.llm.powerful.provider", "gemini")
	v.SetDefault("agent.llm.powerful.model", "gemini-2.5-pro")
	v.SetDefault("agent.llm.powerful.api_timeout", "60s")

	// -- Git --
	v.SetDefault("git.author_name", "codeguard-bot")
	v.SetDefault("git.author_email", "codeguard-bot@users.noreply.github.com")
	v.SetDefault("git.commit_marker", "[AI-AGENT]")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("forge.app_id", "GITHUB_APP_ID")
	v.BindEnv("forge.app_private_key", "GITHUB_APP_PRIVATE_KEY")
	v.BindEnv("forge.webhook_secret", "GITHUB_WEBHOOK_SECRET")
	v.BindEnv("forge.fallback_token", "GITHUB_TOKEN")
	v.BindEnv("agent.llm.fast.api_key", "GEMINI_API_KEY")
	v.BindEnv("agent.llm.powerful.api_key", "GEMINI_API_KEY")
	v.BindEnv("http.nextauth_url", "NEXTAUTH_URL")
	v.BindEnv("notify.slack_webhook_url", "SLACK_WEBHOOK_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if env := os.Getenv("NODE_ENV"); env == "development" {
		cfg.forge.DevelopmentMode = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.orchestrator.MaxRetries <= 0 {
		return fmt.Errorf("orchestrator.max_retries must be a positive integer")
	}
	if c.sandbox.CPULimit <= 0 {
		return fmt.Errorf("sandbox.cpu_limit must be a positive number")
	}
	if c.forge.AppPrivateKey == "" && c.forge.FallbackToken == "" {
		// Not fatal at startup: CredentialBroker surfaces AuthUnconfigured lazily
		// the first time a token is actually requested, so a config-only
		// process (e.g. `codeguard version`) still works.
		return nil
	}
	return nil
}
