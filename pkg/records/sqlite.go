package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps attachments, payload included, in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("records: open %s: %w", path, err)
	}
	// One writer; also keeps ":memory:" on a single database.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("records: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS attachments (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			path_on_client TEXT NOT NULL,
			linked_record_id TEXT NOT NULL,
			size INTEGER NOT NULL,
			data BLOB NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_attachments_linked ON attachments(linked_record_id, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Create stores the decoded payload and returns the new record.
func (s *SQLiteStore) Create(ctx context.Context, req CreateRequest) (*Record, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	data, _ := req.Decode()

	rec := &Record{
		ID:             uuid.NewString(),
		Title:          req.Title,
		PathOnClient:   req.PathOnClient,
		LinkedRecordID: req.FirstPublishLocationID,
		Size:           int64(len(data)),
		CreatedAt:      s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO attachments(id, title, path_on_client, linked_record_id, size, data, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Title, rec.PathOnClient, rec.LinkedRecordID, rec.Size, data, rec.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("records: insert: %w", err)
	}
	return rec, nil
}

// Get returns one record's metadata.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, title, path_on_client, linked_record_id, size, created_at
		FROM attachments WHERE id=?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// ListByRecord returns the attachments linked to linkedID, oldest first.
func (s *SQLiteStore) ListByRecord(ctx context.Context, linkedID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, path_on_client, linked_record_id, size, created_at
		FROM attachments WHERE linked_record_id=? ORDER BY created_at, id`, linkedID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Data returns the stored payload.
func (s *SQLiteStore) Data(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM attachments WHERE id=?`, id).Scan(&data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case err != nil:
		return nil, err
	}
	return data, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var rec Record
	var created int64
	if err := row.Scan(&rec.ID, &rec.Title, &rec.PathOnClient, &rec.LinkedRecordID, &rec.Size, &created); err != nil {
		return nil, err
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	return &rec, nil
}

var _ Repository = (*SQLiteStore)(nil)
