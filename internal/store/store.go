// Package store persists assumption documents in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dlovans/econsheet/pkg/document"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so updated_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when no document has the requested id.
var ErrNotFound = errors.New("store: document not found")

// Entry summarizes a stored document.
type Entry struct {
	ID          string
	Kind        string
	Name        string
	Fingerprint string
	UpdatedAt   time.Time
}

// Store is a SQLite document store.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{db: db, logger: logger, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		schema_version TEXT NOT NULL DEFAULT '',
		options JSON NOT NULL,
		econ_function JSON,
		fingerprint TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS documents_kind ON documents(kind)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, query := range migrations {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

// Save inserts or replaces doc. A document without an id is given a new one,
// which is written back to doc.ID.
func (s *Store) Save(ctx context.Context, doc *document.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	options, err := json.Marshal(doc.Options)
	if err != nil {
		return fmt.Errorf("store: encode options: %w", err)
	}
	econ, err := json.Marshal(doc.EconFunction)
	if err != nil {
		return fmt.Errorf("store: encode econ_function: %w", err)
	}
	query := `INSERT INTO documents (
		id, kind, name, schema_version, options, econ_function, fingerprint, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		kind = excluded.kind,
		name = excluded.name,
		schema_version = excluded.schema_version,
		options = excluded.options,
		econ_function = excluded.econ_function,
		fingerprint = excluded.fingerprint,
		updated_at = excluded.updated_at`
	_, err = s.db.ExecContext(ctx, query,
		doc.ID, doc.Kind, doc.Name, doc.SchemaVersion, string(options), string(econ), doc.Fingerprint,
		s.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", doc.ID, err)
	}
	s.logger.Debug("document saved", zap.String("id", doc.ID), zap.String("kind", doc.Kind))
	return nil
}

// Get loads the document with the given id.
func (s *Store) Get(ctx context.Context, id string) (*document.Document, error) {
	query := `
		SELECT id, kind, name, schema_version, options, econ_function, fingerprint
		FROM documents
		WHERE id = ?`
	var (
		doc     document.Document
		options string
		econ    sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.Kind, &doc.Name, &doc.SchemaVersion, &options, &econ, &doc.Fingerprint,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(options), &doc.Options); err != nil {
		return nil, fmt.Errorf("store: decode options of %s: %w", id, err)
	}
	if econ.Valid && econ.String != "" && econ.String != "null" {
		if err := json.Unmarshal([]byte(econ.String), &doc.EconFunction); err != nil {
			return nil, fmt.Errorf("store: decode econ_function of %s: %w", id, err)
		}
	}
	return &doc, nil
}

// List returns the stored documents, most recently updated first. An empty
// kind lists every kind.
func (s *Store) List(ctx context.Context, kind string) ([]Entry, error) {
	query := `
		SELECT id, kind, name, fingerprint, updated_at
		FROM documents
		WHERE ? = '' OR kind = ?
		ORDER BY updated_at DESC, id`
	rows, err := s.db.QueryContext(ctx, query, kind, kind)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			updated string
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.Name, &e.Fingerprint, &updated); err != nil {
			return nil, err
		}
		e.UpdatedAt, _ = time.Parse(timeLayout, updated)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Delete removes the document with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
