// Package postgres stores the progress document in PostgreSQL, for
// setups where several machines share one learner history.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/studycoach/internal/progress"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultDocumentID names the row used when none is configured
const DefaultDocumentID = "default"

const schema = `
CREATE TABLE IF NOT EXISTS progress_documents (
	id         TEXT PRIMARY KEY,
	body       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// DocumentStore implements progress.DocumentStore on one table row.
// Update locks the row with SELECT ... FOR UPDATE for the whole cycle.
type DocumentStore struct {
	pool   *pgxpool.Pool
	id     string
	logger *slog.Logger
}

var _ progress.DocumentStore = (*DocumentStore)(nil)

// Open connects to dsn and verifies the connection
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// NewDocumentStore creates the table if needed and repairs the stored
// document for id once.
func NewDocumentStore(ctx context.Context, pool *pgxpool.Pool, id string, logger *slog.Logger) (*DocumentStore, error) {
	if id == "" {
		id = DefaultDocumentID
	}
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("create progress table: %w", err)
	}

	s := &DocumentStore{pool: pool, id: id, logger: logger}
	if _, err := s.Read(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Read returns the stored document, rewriting it when malformed
func (s *DocumentStore) Read(ctx context.Context) (*progress.Document, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM progress_documents WHERE id = $1`, s.id).Scan(&body)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("select progress document: %w", err)
	}

	doc, repair := progress.DecodeDocument(body)
	if !repair.Needed() {
		return doc, nil
	}

	// Update decodes again under the row lock and persists the repair.
	var repaired *progress.Document
	err = s.Update(ctx, func(d *progress.Document) error {
		repaired = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return repaired, nil
}

// Write replaces the stored document
func (s *DocumentStore) Write(ctx context.Context, doc *progress.Document) error {
	data, err := progress.EncodeDocument(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO progress_documents (id, body, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, updated_at = now()
	`, s.id, string(data))
	if err != nil {
		return fmt.Errorf("write progress document: %w", err)
	}
	return nil
}

// Update runs fn inside a transaction holding the row lock
func (s *DocumentStore) Update(ctx context.Context, fn func(*progress.Document) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Make sure a row exists so FOR UPDATE has something to lock.
	_, err = tx.Exec(ctx, `
		INSERT INTO progress_documents (id, body) VALUES ($1, '{}'::jsonb)
		ON CONFLICT (id) DO NOTHING
	`, s.id)
	if err != nil {
		return fmt.Errorf("seed progress document: %w", err)
	}

	var body []byte
	if err := tx.QueryRow(ctx, `SELECT body FROM progress_documents WHERE id = $1 FOR UPDATE`, s.id).Scan(&body); err != nil {
		return fmt.Errorf("lock progress document: %w", err)
	}

	doc, repair := progress.DecodeDocument(body)
	if repair.Needed() {
		s.logger.Warn("repaired progress document",
			"document", s.id,
			"reset", repair.Reset,
			"keys", repair.Keys,
			"dropped_entries", repair.Dropped,
		)
	}
	if err := fn(doc); err != nil {
		return err
	}

	data, err := progress.EncodeDocument(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE progress_documents SET body = $2::jsonb, updated_at = now() WHERE id = $1`, s.id, string(data)); err != nil {
		return fmt.Errorf("update progress document: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
