// Package repository provides catalog persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opencompliance/complycal/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveObligation inserts or updates an obligation. Structured fields are
// stored as JSON columns so the schema tracks the catalog format without
// per-field migrations.
func (r *SQLRepository) SaveObligation(ctx context.Context, rule *domain.ObligationRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: obligation id is required", ErrInvalidInput)
	}

	applicability, _ := json.Marshal(rule.Applicability)
	forms, _ := json.Marshal(rule.Forms)

	var contribution []byte
	if rule.Contribution != nil {
		contribution, _ = json.Marshal(rule.Contribution)
	}
	var resources []byte
	if rule.Resources != nil {
		resources, _ = json.Marshal(rule.Resources)
	}

	builtin := 0
	if rule.Builtin {
		builtin = 1
	}
	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO obligations (
			id, name, category, frequency, applicability, forms,
			contribution, resources, builtin, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			frequency = excluded.frequency,
			applicability = excluded.applicability,
			forms = excluded.forms,
			contribution = excluded.contribution,
			resources = excluded.resources,
			builtin = excluded.builtin,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, string(rule.Category), rule.Frequency,
		string(applicability), string(forms),
		nullableJSON(contribution), nullableJSON(resources),
		builtin, enabled, now, now,
	)
	return err
}

// GetObligation retrieves an obligation by ID, enabled or not.
func (r *SQLRepository) GetObligation(ctx context.Context, id string) (*domain.ObligationRule, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: obligation id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, name, category, frequency, applicability, forms,
			   contribution, resources, builtin, enabled
		FROM obligations
		WHERE id = ?
	`

	rule, err := scanObligation(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rule, err
}

// ListObligations retrieves all enabled obligations ordered by ID.
func (r *SQLRepository) ListObligations(ctx context.Context) ([]*domain.ObligationRule, error) {
	query := `
		SELECT id, name, category, frequency, applicability, forms,
			   contribution, resources, builtin, enabled
		FROM obligations
		WHERE enabled = 1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.ObligationRule
	for rows.Next() {
		rule, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// DeleteObligation soft-deletes an obligation by setting enabled = 0.
func (r *SQLRepository) DeleteObligation(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: obligation id is required", ErrInvalidInput)
	}

	query := `
		UPDATE obligations
		SET enabled = 0, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveMetadata stores the catalog metadata singleton row.
func (r *SQLRepository) SaveMetadata(ctx context.Context, meta *domain.CatalogMetadata) error {
	if meta == nil {
		return fmt.Errorf("%w: metadata is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO catalog_metadata (
			id, version, generated_at, last_updated, source,
			applicable_for, disclaimer, updated_at
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			generated_at = excluded.generated_at,
			last_updated = excluded.last_updated,
			source = excluded.source,
			applicable_for = excluded.applicable_for,
			disclaimer = excluded.disclaimer,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		meta.Version, meta.GeneratedAt, meta.LastUpdated,
		meta.Source, meta.ApplicableFor, meta.Disclaimer,
		time.Now().UTC(),
	)
	return err
}

// GetMetadata retrieves the catalog metadata.
func (r *SQLRepository) GetMetadata(ctx context.Context) (*domain.CatalogMetadata, error) {
	query := `
		SELECT version, generated_at, last_updated, source, applicable_for, disclaimer
		FROM catalog_metadata
		WHERE id = 1
	`

	var meta domain.CatalogMetadata
	err := r.db.QueryRowContext(ctx, query).Scan(
		&meta.Version, &meta.GeneratedAt, &meta.LastUpdated,
		&meta.Source, &meta.ApplicableFor, &meta.Disclaimer,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &meta, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObligation(row rowScanner) (*domain.ObligationRule, error) {
	var rule domain.ObligationRule
	var category, applicability, forms string
	var contribution, resources sql.NullString
	var builtin, enabled int

	if err := row.Scan(
		&rule.ID, &rule.Name, &category, &rule.Frequency,
		&applicability, &forms, &contribution, &resources,
		&builtin, &enabled,
	); err != nil {
		return nil, err
	}

	rule.Category = domain.Category(category)
	rule.Builtin = builtin == 1
	rule.Enabled = enabled == 1

	if err := json.Unmarshal([]byte(applicability), &rule.Applicability); err != nil {
		return nil, fmt.Errorf("failed to parse applicability for %s: %w", rule.ID, err)
	}
	if err := json.Unmarshal([]byte(forms), &rule.Forms); err != nil {
		return nil, fmt.Errorf("failed to parse forms for %s: %w", rule.ID, err)
	}
	if contribution.Valid && contribution.String != "" {
		json.Unmarshal([]byte(contribution.String), &rule.Contribution)
	}
	if resources.Valid && resources.String != "" {
		json.Unmarshal([]byte(resources.String), &rule.Resources)
	}

	return &rule, nil
}

// nullableJSON stores empty marshaled values as NULL rather than "".
func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
