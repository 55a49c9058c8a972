package core

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/liliang-cn/noterank/internal/encoding"
	"github.com/liliang-cn/noterank/internal/logging"
)

// NoteStore persists notes in a SQLite database. Its operations are
// synchronous and perform no cross-operation locking: while the retrieval
// engine is live it is the sole mutator, serialized by the engine's worker
// queue.
type NoteStore struct {
	db     *sql.DB
	path   string
	logger logging.Logger

	mu     sync.Mutex
	closed bool
}

// StoreStats summarizes the store contents.
type StoreStats struct {
	Count    int64 `json:"count"`
	Embedded int64 `json:"embedded"`
	Pinned   int64 `json:"pinned"`
}

// NewNoteStore creates a store for the SQLite database at path. Call Init
// before use.
func NewNoteStore(path string, logger logging.Logger) (*NoteStore, error) {
	if path == "" {
		return nil, wrapError("init", fmt.Errorf("database path cannot be empty"))
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &NoteStore{path: path, logger: logger}, nil
}

// Init opens the database and creates the notes table.
func (s *NoteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("init", ErrStoreClosed)
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return wrapError("init", fmt.Errorf("failed to open database: %w", err))
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		embedding BLOB,
		pinned INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_notes_timestamp ON notes(timestamp);
	CREATE INDEX IF NOT EXISTS idx_notes_pinned ON notes(pinned);
	`
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		_ = db.Close()
		return wrapError("init", fmt.Errorf("failed to create tables: %w", err))
	}

	s.db = db
	s.logger.Debug("note store initialized", "path", s.path)
	return nil
}

// Insert stores a new note. The embedding may be nil.
func (s *NoteStore) Insert(ctx context.Context, note *Note) error {
	if err := s.ready("insert"); err != nil {
		return err
	}
	if note.ID == "" {
		return wrapError("insert", fmt.Errorf("note id cannot be empty"))
	}

	blob, err := embeddingBlob(note.Embedding)
	if err != nil {
		return wrapError("insert", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notes (id, text, timestamp, embedding, pinned) VALUES (?, ?, ?, ?, ?)`,
		note.ID, note.Text, note.Timestamp.UnixMilli(), blob, boolToInt(note.Pinned))
	if err != nil {
		return wrapError("insert", err)
	}
	return nil
}

// Update rewrites every mutable column of the note.
func (s *NoteStore) Update(ctx context.Context, note *Note) error {
	if err := s.ready("update"); err != nil {
		return err
	}

	blob, err := embeddingBlob(note.Embedding)
	if err != nil {
		return wrapError("update", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET text = ?, embedding = ?, pinned = ? WHERE id = ?`,
		note.Text, blob, boolToInt(note.Pinned), note.ID)
	if err != nil {
		return wrapError("update", err)
	}
	return s.requireRow("update", res)
}

// UpdateText replaces the note text and clears the stored embedding; the
// old vector no longer describes the new text.
func (s *NoteStore) UpdateText(ctx context.Context, id, text string) error {
	if err := s.ready("update_text"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET text = ?, embedding = NULL WHERE id = ?`, text, id)
	if err != nil {
		return wrapError("update_text", err)
	}
	return s.requireRow("update_text", res)
}

// SetEmbedding writes back a computed embedding.
func (s *NoteStore) SetEmbedding(ctx context.Context, id string, vector []float32) error {
	if err := s.ready("set_embedding"); err != nil {
		return err
	}
	if err := encoding.ValidateVector(vector); err != nil {
		return wrapError("set_embedding", err)
	}

	blob, err := encoding.EncodeVector(vector)
	if err != nil {
		return wrapError("set_embedding", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET embedding = ? WHERE id = ?`, blob, id)
	if err != nil {
		return wrapError("set_embedding", err)
	}
	return s.requireRow("set_embedding", res)
}

// ClearEmbedding drops a note's stored vector.
func (s *NoteStore) ClearEmbedding(ctx context.Context, id string) error {
	if err := s.ready("clear_embedding"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET embedding = NULL WHERE id = ?`, id)
	if err != nil {
		return wrapError("clear_embedding", err)
	}
	return s.requireRow("clear_embedding", res)
}

// SetPinned flips the pinned flag.
func (s *NoteStore) SetPinned(ctx context.Context, id string, pinned bool) error {
	if err := s.ready("set_pinned"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET pinned = ? WHERE id = ?`, boolToInt(pinned), id)
	if err != nil {
		return wrapError("set_pinned", err)
	}
	return s.requireRow("set_pinned", res)
}

// Delete removes a note by ID.
func (s *NoteStore) Delete(ctx context.Context, id string) error {
	if err := s.ready("delete"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return wrapError("delete", err)
	}
	return s.requireRow("delete", res)
}

// GetByID fetches a single note.
func (s *NoteStore) GetByID(ctx context.Context, id string) (*Note, error) {
	if err := s.ready("get"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, text, timestamp, embedding, pinned FROM notes WHERE id = ?`, id)
	note, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, wrapError("get", ErrNotFound)
	}
	if err != nil {
		return nil, wrapError("get", err)
	}
	return note, nil
}

// All returns every note, newest first.
func (s *NoteStore) All(ctx context.Context) ([]*Note, error) {
	return s.query(ctx, "all",
		`SELECT id, text, timestamp, embedding, pinned FROM notes ORDER BY timestamp DESC`)
}

// Pinned returns all pinned notes regardless of embedding state, newest first.
func (s *NoteStore) Pinned(ctx context.Context) ([]*Note, error) {
	return s.query(ctx, "pinned",
		`SELECT id, text, timestamp, embedding, pinned FROM notes WHERE pinned = 1 ORDER BY timestamp DESC`)
}

// WithEmbeddings returns all notes carrying an embedding, newest first.
func (s *NoteStore) WithEmbeddings(ctx context.Context) ([]*Note, error) {
	return s.query(ctx, "with_embeddings",
		`SELECT id, text, timestamp, embedding, pinned FROM notes WHERE embedding IS NOT NULL ORDER BY timestamp DESC`)
}

// UnpinnedWithEmbeddings returns the candidate set for similarity scoring,
// newest first.
func (s *NoteStore) UnpinnedWithEmbeddings(ctx context.Context) ([]*Note, error) {
	return s.query(ctx, "unpinned_with_embeddings",
		`SELECT id, text, timestamp, embedding, pinned FROM notes WHERE embedding IS NOT NULL AND pinned = 0 ORDER BY timestamp DESC`)
}

// Count returns the number of stored notes.
func (s *NoteStore) Count(ctx context.Context) (int64, error) {
	if err := s.ready("count"); err != nil {
		return 0, err
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&count); err != nil {
		return 0, wrapError("count", err)
	}
	return count, nil
}

// Stats returns note counts by state.
func (s *NoteStore) Stats(ctx context.Context) (StoreStats, error) {
	if err := s.ready("stats"); err != nil {
		return StoreStats{}, err
	}

	var stats StoreStats
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(embedding),
		       COALESCE(SUM(pinned), 0)
		FROM notes`)
	if err := row.Scan(&stats.Count, &stats.Embedded, &stats.Pinned); err != nil {
		return StoreStats{}, wrapError("stats", err)
	}
	return stats, nil
}

// Close closes the database and rejects further operations.
func (s *NoteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *NoteStore) ready(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return wrapError(op, ErrStoreClosed)
	}
	if s.db == nil {
		return wrapError(op, fmt.Errorf("store not initialized"))
	}
	return nil
}

func (s *NoteStore) query(ctx context.Context, op, stmt string) ([]*Note, error) {
	if err := s.ready(op); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, wrapError(op, err)
	}
	defer func() { _ = rows.Close() }()

	var notes []*Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, wrapError(op, err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(op, err)
	}
	return notes, nil
}

func (s *NoteStore) requireRow(op string, res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapError(op, err)
	}
	if affected == 0 {
		return wrapError(op, ErrNotFound)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (*Note, error) {
	var (
		note      Note
		timestamp int64
		blob      []byte
		pinned    int
	)
	if err := row.Scan(&note.ID, &note.Text, &timestamp, &blob, &pinned); err != nil {
		return nil, err
	}

	note.Timestamp = time.UnixMilli(timestamp)
	note.Pinned = pinned != 0
	if blob != nil {
		vector, err := encoding.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("corrupt embedding for note %s: %w", note.ID, err)
		}
		note.Embedding = vector
	}
	return &note, nil
}

func embeddingBlob(vector []float32) ([]byte, error) {
	if vector == nil {
		return nil, nil
	}
	if err := encoding.ValidateVector(vector); err != nil {
		return nil, err
	}
	return encoding.EncodeVector(vector)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
