// Package matcher maps business profiles to applicable compliance
// obligations. The ten built-in obligations use compiled-in predicates;
// custom obligations registered at runtime carry CEL applicability
// expressions over the profile variables.
package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opencompliance/complycal/internal/catalog"
	"github.com/opencompliance/complycal/internal/domain"
)

// Matcher evaluates obligation applicability against a catalog.
type Matcher struct {
	mu       sync.RWMutex
	catalog  *catalog.Catalog
	env      *cel.Env
	programs map[string]cel.Program
	logger   *slog.Logger
}

// New creates a matcher over the given catalog and compiles the CEL
// expressions of any non-built-in obligations already in it.
func New(cat *catalog.Catalog, logger *slog.Logger) (*Matcher, error) {
	env, err := cel.NewEnv(
		cel.Variable("turnover", cel.DoubleType),
		cel.Variable("employees", cel.IntType),
		cel.Variable("state", cel.StringType),
		cel.Variable("business_type", cel.StringType),
		cel.Variable("industry", cel.StringType),
		cel.Variable("msme_registered", cel.BoolType),
		cel.Variable("owes_msme", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("creating CEL environment: %w", err)
	}

	m := &Matcher{
		catalog:  cat,
		env:      env,
		programs: make(map[string]cel.Program),
		logger:   logger,
	}
	for _, r := range cat.List() {
		if r.Builtin || r.Applicability.Expression == "" {
			continue
		}
		if err := m.LoadRule(r); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ValidateExpression compiles an applicability expression without loading it.
func (m *Matcher) ValidateExpression(id, expr string) error {
	_, err := m.compile(id, expr)
	return err
}

// LoadRule compiles and registers a custom obligation's expression.
func (m *Matcher) LoadRule(r *domain.ObligationRule) error {
	prg, err := m.compile(r.ID, r.Applicability.Expression)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.programs[r.ID] = prg
	m.mu.Unlock()
	return nil
}

// ReloadRules replaces all compiled expressions from the given set.
// Built-in obligations and expressionless entries are ignored.
func (m *Matcher) ReloadRules(rules []*domain.ObligationRule) error {
	next := make(map[string]cel.Program)
	for _, r := range rules {
		if r.Builtin || r.Applicability.Expression == "" || !r.Enabled {
			continue
		}
		prg, err := m.compile(r.ID, r.Applicability.Expression)
		if err != nil {
			return err
		}
		next[r.ID] = prg
	}
	m.mu.Lock()
	m.programs = next
	m.mu.Unlock()
	return nil
}

// Match returns the obligations applicable to the profile, ordered by
// obligation ID. It resolves the profile's bracket midpoints first.
func (m *Matcher) Match(ctx context.Context, p *domain.BusinessProfile) []*domain.ObligationRule {
	domain.ResolveProfile(p)

	activation := map[string]any{
		"turnover":        p.TurnoverValue,
		"employees":       int64(p.EmployeeCount),
		"state":           p.State,
		"business_type":   string(p.BusinessType),
		"industry":        p.Industry,
		"msme_registered": p.MSMERegistered,
		"owes_msme":       p.OwesPaymentToMSME,
	}

	var matched []*domain.ObligationRule
	for _, r := range m.catalog.List() {
		if !r.Enabled {
			continue
		}
		if ctx.Err() != nil {
			return matched
		}
		if m.applies(r, p, activation) {
			matched = append(matched, r)
		}
	}
	return matched
}

func (m *Matcher) applies(r *domain.ObligationRule, p *domain.BusinessProfile, activation map[string]any) bool {
	if r.Builtin {
		return appliesBuiltin(r.ID, p)
	}

	m.mu.RLock()
	prg, ok := m.programs[r.ID]
	m.mu.RUnlock()
	if !ok {
		return false
	}

	out, _, err := prg.Eval(activation)
	if err != nil {
		if m.logger != nil {
			m.logger.Warn("applicability expression failed", "obligation", r.ID, "error", err)
		}
		return false
	}
	b, ok := out.(types.Bool)
	return ok && bool(b)
}

// RulesCount returns the number of compiled custom expressions.
func (m *Matcher) RulesCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.programs)
}

func (m *Matcher) compile(id, expr string) (cel.Program, error) {
	if expr == "" {
		return nil, fmt.Errorf("obligation %s: empty applicability expression", id)
	}
	ast, issues := m.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compiling expression for %s: %w", id, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("obligation %s: expression must return bool, got %s", id, ast.OutputType())
	}
	prg, err := m.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("building program for %s: %w", id, err)
	}
	return prg, nil
}
