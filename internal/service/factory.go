// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/internal/ast"
	"github.com/codeguard-pro/codeguard/internal/branch"
	"github.com/codeguard-pro/codeguard/internal/ciagent"
	"github.com/codeguard-pro/codeguard/internal/cloner"
	"github.com/codeguard-pro/codeguard/internal/config"
	"github.com/codeguard-pro/codeguard/internal/fixagent"
	"github.com/codeguard-pro/codeguard/internal/forge"
	"github.com/codeguard-pro/codeguard/internal/grammar"
	"github.com/codeguard-pro/codeguard/internal/llmclient"
	"github.com/codeguard-pro/codeguard/internal/orchestrator"
	"github.com/codeguard-pro/codeguard/internal/prcreator"
	"github.com/codeguard-pro/codeguard/internal/ratelimit"
	"github.com/codeguard-pro/codeguard/internal/regexscan"
	"github.com/codeguard-pro/codeguard/internal/repoanalyzer"
	"github.com/codeguard-pro/codeguard/internal/rules"
	"github.com/codeguard-pro/codeguard/internal/sandbox"
	"github.com/codeguard-pro/codeguard/internal/sse"
	"github.com/codeguard-pro/codeguard/internal/store"
	"github.com/codeguard-pro/codeguard/internal/testrunner"
	"github.com/codeguard-pro/codeguard/internal/webhook"
)

// ComponentFactory defines the interface for creating the set of components
// a running server needs. This abstraction is what makes cmd/serve.go's
// logic testable without a real database or LLM credentials.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error)
}

// Components holds every long-lived dependency a server process needs.
// Fields are populated incrementally by Create; Shutdown tears down
// whatever was successfully initialized, even on a partial failure.
type Components struct {
	DBPool *pgxpool.Pool
	Store  *store.Store
	LLM    interface {
		Close() error
	}

	Forge        *forge.Client
	Broker       *forge.CredentialBroker
	Branches     *branch.Manager
	Orchestrator *orchestrator.Orchestrator

	Grammar      *grammar.Registry
	Rules        *rules.Registry
	AST          *ast.Engine
	Regex        *regexscan.Detector
	Cloner       *cloner.Cloner
	Sandbox      *sandbox.Sandbox
	TestRunner   *testrunner.Runner
	RepoAnalyzer *repoanalyzer.Analyzer
	RateLimiter  *ratelimit.Limiter
	Webhook      *webhook.Intake
	SSE          *sse.Gateway
}

// Shutdown releases every resource held by Components. It is safe to call on
// a partially initialized struct.
func (c *Components) Shutdown() {
	if c.LLM != nil {
		_ = c.LLM.Close()
	}
	if c.RateLimiter != nil {
		c.RateLimiter.Close()
	}
	if c.DBPool != nil {
		c.DBPool.Close()
	}
}

type concreteFactory struct{}

// NewComponentFactory creates a new production-ready component factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create wires the database pool, Store and (optional) LLM router. The
// forge client, sandbox, and the rest of the orchestrator's collaborators
// are wired by their own packages once built; Create returns a Components
// value that's already useful for the webhook intake's inline analysis path
// (Store + rules), which does not depend on any of them.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error) {
	components := &Components{}

	var initErr error
	defer func() {
		if initErr != nil {
			logger.Warn("component initialization failed, shutting down partial state", zap.Error(initErr))
			components.Shutdown()
		}
	}()

	if cfg.Database().URL == "" {
		initErr = fmt.Errorf("database URL is not configured (hint: check CODEGUARD_DATABASE_URL)")
		return nil, initErr
	}

	dbPool, err := pgxpool.New(ctx, cfg.Database().URL)
	if err != nil {
		initErr = fmt.Errorf("failed to create database connection pool: %w", err)
		return nil, initErr
	}
	components.DBPool = dbPool

	dbStore, err := store.New(ctx, dbPool, logger)
	if err != nil {
		initErr = fmt.Errorf("failed to initialize database store: %w", err)
		return nil, initErr
	}
	components.Store = dbStore
	logger.Debug("store initialized")

	llm, err := llmclient.NewRouterFromConfig(cfg.Agent().LLM, logger)
	if err != nil {
		initErr = fmt.Errorf("failed to initialize LLM router: %w", err)
		return nil, initErr
	}
	if llm == nil {
		logger.Warn("no LLM credentials configured; FixAgent will fall back to rule-based fixes")
	} else {
		components.LLM = llm
	}

	grammars := grammar.New()
	ruleRegistry := rules.New(logger)
	if err := ruleRegistry.ValidateQueries(ctx, grammars); err != nil {
		logger.Warn("rule catalog validation reported an error, continuing with whatever compiled", zap.Error(err))
	}
	components.Grammar = grammars
	components.Rules = ruleRegistry
	components.AST = ast.New(grammars, ruleRegistry, logger)
	components.Regex = regexscan.New(logger)
	components.Cloner = cloner.New(cfg.Orchestrator(), logger)
	components.Sandbox = sandbox.New(cfg.Sandbox(), logger)
	components.TestRunner = testrunner.New(components.Sandbox, logger)
	components.RepoAnalyzer = repoanalyzer.New(components.AST, components.Regex, logger)
	components.RateLimiter = ratelimit.New(cfg.RateLimit(), logger)

	forgeCfg := cfg.Forge()
	if forgeCfg.AppID == 0 && forgeCfg.FallbackToken == "" {
		logger.Warn("no forge credentials configured (GITHUB_APP_ID/GITHUB_APP_PRIVATE_KEY or GITHUB_TOKEN); the orchestrator will not be wired")
		logger.Info("components initialized")
		return components, nil
	}

	broker, err := forge.NewCredentialBroker(forgeCfg, logger)
	if err != nil {
		initErr = fmt.Errorf("failed to initialize credential broker: %w", err)
		return nil, initErr
	}
	components.Broker = broker

	forgeClient := forge.NewClient(forgeCfg, broker, logger)
	components.Forge = forgeClient

	branches := branch.New(forgeClient)
	components.Branches = branches

	fixAgent := fixagent.New(llm, cfg.Git(), cfg.Orchestrator().LLMTimeout, logger)
	orch, err := orchestrator.New(
		cfg.Orchestrator(), cfg.Git(), logger,
		branches,
		prcreator.New(forgeClient),
		fixAgent,
		ciagent.New(forgeClient, cfg.Orchestrator(), logger),
	)
	if err != nil {
		initErr = fmt.Errorf("failed to initialize orchestrator: %w", err)
		return nil, initErr
	}
	components.Orchestrator = orch

	var slack webhook.Notifier
	if s := webhook.NewSlackNotifier(cfg.Notify().SlackWebhookURL, logger); s != nil {
		slack = s
	}
	components.Webhook = webhook.New(dbStore, forgeClient, components.Regex, forgeCfg, cfg.Orchestrator().InlineAnalysisTimeout, logger, slack)

	components.SSE = sse.New(sse.Deps{
		Forge:        forgeClient,
		Branches:     branches,
		Orchestrator: orch,
		Cloner:       components.Cloner,
		TestRunner:   components.TestRunner,
		RepoAnalyzer: components.RepoAnalyzer,
		Store:        dbStore,
		Cfg:          cfg.Orchestrator(),
		Logger:       logger,
	})

	logger.Info("components initialized")
	return components, nil
}
