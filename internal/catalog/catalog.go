// Package catalog loads and holds the compliance obligation catalog.
//
// The catalog ships with a built-in set of Indian SME obligations embedded
// in the binary. On startup the embedded set seeds the repository if it is
// empty; afterwards the repository is the source of truth, so operator
// edits and custom obligations survive restarts.
package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/opencompliance/complycal/internal/domain"
)

//go:embed rules.json
var seedData []byte

// ErrEmpty is returned when no valid obligations could be loaded from
// either the repository or the embedded seed.
var ErrEmpty = errors.New("catalog: no valid obligations available")

// Catalog is a concurrency-safe view of the obligation set. Reads vastly
// outnumber writes; writes only happen when an operator registers or
// updates an obligation at runtime.
type Catalog struct {
	mu          sync.RWMutex
	meta        domain.CatalogMetadata
	obligations map[string]*domain.ObligationRule
}

type seedFile struct {
	Metadata    domain.CatalogMetadata            `json:"metadata"`
	Compliances map[string]*domain.ObligationRule `json:"compliances"`
}

// ParseSeed decodes the embedded obligation set.
func ParseSeed() (domain.CatalogMetadata, []*domain.ObligationRule, error) {
	var f seedFile
	if err := json.Unmarshal(seedData, &f); err != nil {
		return domain.CatalogMetadata{}, nil, fmt.Errorf("parsing embedded catalog: %w", err)
	}
	rules := make([]*domain.ObligationRule, 0, len(f.Compliances))
	for id, r := range f.Compliances {
		if r.ID == "" {
			r.ID = id
		}
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return f.Metadata, rules, nil
}

// Validate checks that an obligation is structurally usable by the
// matcher and the calendar generator.
func Validate(r *domain.ObligationRule) error {
	if r == nil {
		return errors.New("nil obligation")
	}
	if r.ID == "" {
		return errors.New("missing id")
	}
	if r.Name == "" {
		return fmt.Errorf("obligation %s: missing name", r.ID)
	}
	if len(r.Forms) == 0 {
		return fmt.Errorf("obligation %s: no forms", r.ID)
	}
	for _, form := range r.Forms {
		if form.Name == "" {
			return fmt.Errorf("obligation %s: form with empty name", r.ID)
		}
		switch form.Deadline.Kind {
		case domain.DeadlineMonthly, domain.DeadlineQuarterly, domain.DeadlineAnnual, domain.DeadlineFixed:
		default:
			return fmt.Errorf("obligation %s: form %s: unknown deadline type %q", r.ID, form.Name, form.Deadline.Kind)
		}
		if form.Deadline.Day < 1 || form.Deadline.Day > 31 {
			return fmt.Errorf("obligation %s: form %s: day %d out of range", r.ID, form.Name, form.Deadline.Day)
		}
	}
	return nil
}

// New builds a catalog from the given rules, skipping invalid entries.
// It fails only if nothing valid remains.
func New(meta domain.CatalogMetadata, rules []*domain.ObligationRule, logger *slog.Logger) (*Catalog, error) {
	c := &Catalog{
		meta:        meta,
		obligations: make(map[string]*domain.ObligationRule, len(rules)),
	}
	for _, r := range rules {
		if err := Validate(r); err != nil {
			if logger != nil {
				logger.Warn("skipping invalid obligation", "error", err)
			}
			continue
		}
		c.obligations[r.ID] = r
	}
	if len(c.obligations) == 0 {
		return nil, ErrEmpty
	}
	return c, nil
}

// Load builds the catalog from the repository, seeding it from the
// embedded set when the repository is empty. A nil repository loads the
// embedded set directly.
func Load(ctx context.Context, repo domain.Repository, logger *slog.Logger) (*Catalog, error) {
	meta, seed, err := ParseSeed()
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return New(meta, seed, logger)
	}

	stored, err := repo.ListObligations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing obligations: %w", err)
	}
	if len(stored) == 0 {
		if logger != nil {
			logger.Info("seeding obligation catalog", "count", len(seed), "version", meta.Version)
		}
		for _, r := range seed {
			if err := repo.SaveObligation(ctx, r); err != nil {
				return nil, fmt.Errorf("seeding obligation %s: %w", r.ID, err)
			}
		}
		if err := repo.SaveMetadata(ctx, &meta); err != nil {
			return nil, fmt.Errorf("seeding catalog metadata: %w", err)
		}
		stored = seed
	} else if m, err := repo.GetMetadata(ctx); err == nil && m != nil {
		meta = *m
	}
	return New(meta, stored, logger)
}

// Get returns the obligation with the given ID.
func (c *Catalog) Get(id string) (*domain.ObligationRule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.obligations[id]
	return r, ok
}

// List returns all obligations ordered by ID.
func (c *Catalog) List() []*domain.ObligationRule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*domain.ObligationRule, 0, len(c.obligations))
	for _, r := range c.obligations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len reports the number of obligations in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.obligations)
}

// Metadata returns the catalog's provenance metadata.
func (c *Catalog) Metadata() domain.CatalogMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meta
}

// Upsert validates and inserts or replaces a single obligation.
func (c *Catalog) Upsert(r *domain.ObligationRule) error {
	if err := Validate(r); err != nil {
		return err
	}
	c.mu.Lock()
	c.obligations[r.ID] = r
	c.mu.Unlock()
	return nil
}

// Remove drops an obligation from the set. It reports whether the
// obligation existed.
func (c *Catalog) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.obligations[id]; !ok {
		return false
	}
	delete(c.obligations, id)
	return true
}

// Replace swaps the full obligation set, keeping existing metadata.
func (c *Catalog) Replace(rules []*domain.ObligationRule, logger *slog.Logger) error {
	next := make(map[string]*domain.ObligationRule, len(rules))
	for _, r := range rules {
		if err := Validate(r); err != nil {
			if logger != nil {
				logger.Warn("skipping invalid obligation", "error", err)
			}
			continue
		}
		next[r.ID] = r
	}
	if len(next) == 0 {
		return ErrEmpty
	}
	c.mu.Lock()
	c.obligations = next
	c.mu.Unlock()
	return nil
}
