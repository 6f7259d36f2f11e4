package repository

// Schema definitions for the complycal database.
// Compatible with both SQLite and PostgreSQL.

const schemaObligations = `
CREATE TABLE IF NOT EXISTS obligations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    category TEXT NOT NULL,
    frequency TEXT,
    applicability TEXT NOT NULL,
    forms TEXT NOT NULL,
    contribution TEXT,
    resources TEXT,
    builtin INTEGER NOT NULL DEFAULT 0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_obligations_enabled ON obligations(enabled);
CREATE INDEX IF NOT EXISTS idx_obligations_category ON obligations(category);
`

// schemaCatalogMetadata is a singleton row describing the provenance of the
// loaded obligation set.
const schemaCatalogMetadata = `
CREATE TABLE IF NOT EXISTS catalog_metadata (
    id INTEGER PRIMARY KEY,
    version TEXT NOT NULL,
    generated_at TEXT,
    last_updated TEXT,
    source TEXT,
    applicable_for TEXT,
    disclaimer TEXT,
    updated_at TIMESTAMP NOT NULL
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaObligations,
		schemaCatalogMetadata,
	}
}
