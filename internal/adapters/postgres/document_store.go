package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/fieldnav/internal/core/domain"
	"github.com/samirrijal/fieldnav/internal/core/ports"
)

// Schema creates the document table. cmd/migrate applies the same DDL from
// migrations/.
const Schema = `
CREATE TABLE IF NOT EXISTS registry_documents (
	name       TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// DocumentStore implements ports.DocumentStore as one JSONB row per
// document name.
type DocumentStore struct {
	db   *DB
	name string
}

var _ ports.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates a store for the named document.
func NewDocumentStore(db *DB, name string) *DocumentStore {
	return &DocumentStore{db: db, name: name}
}

// EnsureSchema creates the document table if it does not exist.
func (s *DocumentStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Load returns the stored array, or an empty one when no row exists.
func (s *DocumentStore) Load(ctx context.Context) ([]domain.Customer, error) {
	var payload []byte
	err := s.db.Pool.QueryRow(ctx,
		`SELECT payload FROM registry_documents WHERE name = $1`, s.name,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return []domain.Customer{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select document %s: %w", s.name, err)
	}

	var customers []domain.Customer
	if err := json.Unmarshal(payload, &customers); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", s.name, err)
	}
	if customers == nil {
		customers = []domain.Customer{}
	}
	return customers, nil
}

// Save upserts the whole array in a single statement.
func (s *DocumentStore) Save(ctx context.Context, customers []domain.Customer) error {
	if customers == nil {
		customers = []domain.Customer{}
	}
	payload, err := json.Marshal(customers)
	if err != nil {
		return err
	}
	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO registry_documents (name, payload, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`, s.name, payload)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", s.name, err)
	}
	return nil
}
