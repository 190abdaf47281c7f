// File: internal/rules/registry.go
package rules

import (
	"context"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/api/schemas"
	"github.com/codeguard-pro/codeguard/internal/grammar"
)

// Registry is the QueryRegistry: it holds the embedded rule catalog and,
// once ValidateQueries has run, a compiled sitter.Query per active rule.
type Registry struct {
	logger *zap.Logger

	mu       sync.RWMutex
	byLang   map[string][]schemas.Rule
	byID     map[string]schemas.Rule
	compiled map[string]*sitter.Query
	invalid  map[string]error
}

// New loads the embedded catalog. Queries are not compiled yet; call
// ValidateQueries once at startup before the engine serves traffic.
func New(logger *zap.Logger) *Registry {
	r := &Registry{
		logger:   logger.Named("rules"),
		byLang:   make(map[string][]schemas.Rule),
		byID:     make(map[string]schemas.Rule),
		compiled: make(map[string]*sitter.Query),
		invalid:  make(map[string]error),
	}

	for _, lang := range []string{"js", "ts", "python", "java", "go"} {
		rs := catalogByLanguage(lang)
		r.byLang[lang] = rs
		for _, rule := range rs {
			r.byID[rule.ID] = rule
		}
	}
	// tsx is the union of ts rules and the ts-specific extras; ts already
	// carries tsExtras, so tsx is simply an alias onto the same rule set.
	r.byLang["tsx"] = r.byLang["ts"]

	return r
}

// getQueries returns the active, queryable rules for a language, optionally
// filtered by category and/or explicit rule ids. A rule whose query failed
// ValidateQueries is excluded.
func (r *Registry) getQueries(lang string, categories []schemas.RuleCategory, ids []string) []schemas.Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var idSet map[string]bool
	if len(ids) > 0 {
		idSet = make(map[string]bool, len(ids))
		for _, id := range ids {
			idSet[id] = true
		}
	}
	var catSet map[schemas.RuleCategory]bool
	if len(categories) > 0 {
		catSet = make(map[schemas.RuleCategory]bool, len(categories))
		for _, c := range categories {
			catSet[c] = true
		}
	}

	var out []schemas.Rule
	for _, rule := range r.byLang[lang] {
		if !rule.IsActive {
			continue
		}
		if _, bad := r.invalid[rule.ID]; bad {
			continue
		}
		if idSet != nil && !idSet[rule.ID] {
			continue
		}
		if catSet != nil && !catSet[rule.Category] {
			continue
		}
		out = append(out, rule)
	}
	return out
}

// GetQueries is the exported form of getQueries.
func (r *Registry) GetQueries(lang string, categories []schemas.RuleCategory, ids []string) []schemas.Rule {
	return r.getQueries(lang, categories, ids)
}

// GetRuleByID looks up a single rule by id, reporting whether it exists.
func (r *Registry) GetRuleByID(id string) (schemas.Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.byID[id]
	return rule, ok
}

// CompiledQuery returns the compiled sitter.Query for a rule id, populated
// by ValidateQueries. Returns false if the rule's query never compiled.
func (r *Registry) CompiledQuery(id string) (*sitter.Query, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.compiled[id]
	return q, ok
}

// ValidateQueries compiles every catalog rule's query against its
// language's grammar, to be run once at startup. Any query that fails to
// compile is recorded as invalid and excluded from getQueries from then
// on — a bad query is logged, never allowed to take the engine down.
func (r *Registry) ValidateQueries(ctx context.Context, grammars *grammar.Registry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for lang, rs := range r.byLang {
		if lang == "tsx" {
			// tsx shares ts's compiled queries; compiling them twice under
			// a different grammar wastes no correctness but does waste
			// work, so skip re-validation here.
			continue
		}
		g, err := grammars.LanguageGrammar(lang)
		if err != nil {
			r.logger.Warn("no grammar for rule language, skipping validation",
				zap.String("language", lang), zap.Error(err))
			continue
		}
		for _, rule := range rs {
			q, err := sitter.NewQuery([]byte(rule.PatternSource), g)
			if err != nil {
				r.invalid[rule.ID] = err
				r.logger.Error("rule query failed to compile, excluding from scans",
					zap.String("rule_id", rule.ID), zap.Error(err))
				continue
			}
			r.compiled[rule.ID] = q
		}
	}
	return nil
}

// InvalidRuleError returns the compile error recorded for a rule id, if
// any, primarily for diagnostics/tests.
func (r *Registry) InvalidRuleError(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err, ok := r.invalid[id]; ok {
		return err
	}
	return nil
}
