// Package docstore persists the documents behind the search index in
// PostgreSQL. The index is derived state; this store is the source of
// truth a rebuild reads from.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/pkg/postgres"
)

// Document is a stored document: its reference, the indexable fields
// and a scoring boost.
type Document struct {
	ID        string         `json:"id"`
	Fields    map[string]any `json:"fields"`
	Boost     float64        `json:"boost"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store reads and writes documents.
type Store struct {
	client *postgres.Client
	logger *slog.Logger
}

// New creates a Store and ensures its schema exists.
func New(ctx context.Context, client *postgres.Client) (*Store, error) {
	s := &Store{
		client: client,
		logger: slog.Default().With("component", "docstore"),
	}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS documents (
			id         TEXT PRIMARY KEY,
			fields     JSONB NOT NULL,
			boost      DOUBLE PRECISION NOT NULL DEFAULT 1,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	if _, err := s.client.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	return nil
}

// Put inserts or replaces a document.
func (s *Store) Put(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return errors.Newf(errors.ErrInvalidInput, 400, "document id is required")
	}
	if doc.Boost == 0 {
		doc.Boost = 1
	}

	fields, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("marshaling document fields: %w", err)
	}

	const q = `
		INSERT INTO documents (id, fields, boost, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE
		SET fields = EXCLUDED.fields, boost = EXCLUDED.boost, updated_at = now()`
	if _, err := s.client.DB.ExecContext(ctx, q, doc.ID, fields, doc.Boost); err != nil {
		return fmt.Errorf("upserting document %s: %w", doc.ID, err)
	}
	s.logger.Debug("document stored", "id", doc.ID)
	return nil
}

// Get returns a document by id.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	const q = `SELECT id, fields, boost, updated_at FROM documents WHERE id = $1`

	var doc Document
	var fields []byte
	err := s.client.DB.QueryRowContext(ctx, q, id).Scan(&doc.ID, &fields, &doc.Boost, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading document %s: %w", id, err)
	}
	if err := json.Unmarshal(fields, &doc.Fields); err != nil {
		return nil, fmt.Errorf("unmarshaling document %s fields: %w", id, err)
	}
	return &doc, nil
}

// Delete removes a document by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	res, err := s.client.DB.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.ErrDocumentNotFound
	}
	return nil
}

// List returns every stored document, ordered by id for deterministic
// index builds.
func (s *Store) List(ctx context.Context) ([]Document, error) {
	const q = `SELECT id, fields, boost, updated_at FROM documents ORDER BY id`

	rows, err := s.client.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var fields []byte
		if err := rows.Scan(&doc.ID, &fields, &doc.Boost, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		if err := json.Unmarshal(fields, &doc.Fields); err != nil {
			return nil, fmt.Errorf("unmarshaling document %s fields: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return docs, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.client.DB.QueryRowContext(ctx, `SELECT count(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}
