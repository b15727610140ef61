package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Open opens the DuckDB database at path and bootstraps the schema. The pool
// is pinned to a single connection so in-memory databases survive across
// calls and write transactions are serialized.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path
	if path == MemoryPath {
		dsn = ""
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// LoadJSON installs and loads the json extension, needed by read_json.
func LoadJSON(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "INSTALL json"); err != nil {
		return fmt.Errorf("failed to install JSON extension: %w", err)
	}

	if _, err := db.ExecContext(ctx, "LOAD json"); err != nil {
		return fmt.Errorf("failed to load JSON extension: %w", err)
	}

	return nil
}

func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
