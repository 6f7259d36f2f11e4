package domain

import (
	"context"
	"time"
)

// Repository defines the interface for catalog persistence. The catalog is
// single-tenant and read-mostly: writes happen at seed time and when custom
// obligations are created via the API.
type Repository interface {
	// Obligation operations
	SaveObligation(ctx context.Context, rule *ObligationRule) error
	GetObligation(ctx context.Context, id string) (*ObligationRule, error)
	ListObligations(ctx context.Context) ([]*ObligationRule, error)
	DeleteObligation(ctx context.Context, id string) error

	// Catalog metadata
	SaveMetadata(ctx context.Context, meta *CatalogMetadata) error
	GetMetadata(ctx context.Context) (*CatalogMetadata, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
