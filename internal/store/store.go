// Package store implements PostgreSQL persistence for the assessment
// platform: master flows and their child flow tables, the asset inventory,
// CMDB import batches, questionnaires, and crew run records.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a tenant-scoped lookup matches no row.
// Cross-tenant reads also return ErrNotFound; existence is never leaked.
var ErrNotFound = errors.New("not found")

// Store represents the database connection and operations.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store instance and opens a database connection.
func NewStore(connString string) (*Store, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if pingErr := db.Ping(); pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	return &Store{db: db}, nil
}

// NewStoreFromDB constructs a Store from an existing *sql.DB. Useful for tests.
func NewStoreFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// InitDB creates the assess schema and all tables.
func (s *Store) InitDB(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to execute init SQL: %w", err)
	}
	return nil
}
