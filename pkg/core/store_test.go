package core

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/liliang-cn/noterank/internal/logging"
)

func newTestStore(t *testing.T) *NoteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "notes.db")
	store, err := NewNoteStore(path, logging.NopLogger())
	if err != nil {
		t.Fatalf("NewNoteStore() error = %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func insertTestNote(t *testing.T, store *NoteStore, id, text string, ts time.Time, pinned bool, embedding []float32) {
	t.Helper()
	note := &Note{ID: id, Text: text, Timestamp: ts, Pinned: pinned, Embedding: embedding}
	if err := store.Insert(context.Background(), note); err != nil {
		t.Fatalf("Insert(%s) error = %v", id, err)
	}
}

func TestStoreInsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ts := time.Now().Truncate(time.Millisecond)
	insertTestNote(t, store, "n1", "buy milk", ts, false, []float32{1, 0, 0, 0})

	note, err := store.GetByID(ctx, "n1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if note.Text != "buy milk" {
		t.Errorf("Text = %q, want %q", note.Text, "buy milk")
	}
	if !note.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", note.Timestamp, ts)
	}
	if len(note.Embedding) != 4 || note.Embedding[0] != 1 {
		t.Errorf("Embedding = %v, want [1 0 0 0]", note.Embedding)
	}
	if note.Pinned {
		t.Error("Pinned = true, want false")
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestStoreAllNewestFirst(t *testing.T) {
	store := newTestStore(t)
	base := time.Now()

	insertTestNote(t, store, "old", "old note", base.Add(-2*time.Hour), false, nil)
	insertTestNote(t, store, "new", "new note", base, false, nil)
	insertTestNote(t, store, "mid", "mid note", base.Add(-time.Hour), false, nil)

	notes, err := store.All(context.Background())
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(notes) != 3 {
		t.Fatalf("All() returned %d notes, want 3", len(notes))
	}
	for i, want := range []string{"new", "mid", "old"} {
		if notes[i].ID != want {
			t.Errorf("notes[%d].ID = %s, want %s", i, notes[i].ID, want)
		}
	}
}

func TestStoreQueryPartitions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	insertTestNote(t, store, "pe", "pinned embedded", now, true, []float32{1, 2})
	insertTestNote(t, store, "pn", "pinned bare", now, true, nil)
	insertTestNote(t, store, "ue", "unpinned embedded", now, false, []float32{3, 4})
	insertTestNote(t, store, "un", "unpinned bare", now, false, nil)

	pinned, err := store.Pinned(ctx)
	if err != nil {
		t.Fatalf("Pinned() error = %v", err)
	}
	if len(pinned) != 2 {
		t.Errorf("Pinned() returned %d notes, want 2", len(pinned))
	}

	embedded, err := store.WithEmbeddings(ctx)
	if err != nil {
		t.Fatalf("WithEmbeddings() error = %v", err)
	}
	if len(embedded) != 2 {
		t.Errorf("WithEmbeddings() returned %d notes, want 2", len(embedded))
	}

	candidates, err := store.UnpinnedWithEmbeddings(ctx)
	if err != nil {
		t.Fatalf("UnpinnedWithEmbeddings() error = %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != "ue" {
		t.Errorf("UnpinnedWithEmbeddings() = %v, want just ue", candidates)
	}
}

func TestStoreUpdateTextClearsEmbedding(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertTestNote(t, store, "n1", "before", time.Now(), false, []float32{1, 2, 3})

	if err := store.UpdateText(ctx, "n1", "after"); err != nil {
		t.Fatalf("UpdateText() error = %v", err)
	}

	note, err := store.GetByID(ctx, "n1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if note.Text != "after" {
		t.Errorf("Text = %q, want %q", note.Text, "after")
	}
	if note.Embedding != nil {
		t.Errorf("Embedding = %v, want nil after text edit", note.Embedding)
	}
}

func TestStoreSetEmbedding(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertTestNote(t, store, "n1", "text", time.Now(), false, nil)

	if err := store.SetEmbedding(ctx, "n1", []float32{0.5, -0.5}); err != nil {
		t.Fatalf("SetEmbedding() error = %v", err)
	}
	note, err := store.GetByID(ctx, "n1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(note.Embedding) != 2 || note.Embedding[0] != 0.5 {
		t.Errorf("Embedding = %v, want [0.5 -0.5]", note.Embedding)
	}

	if err := store.SetEmbedding(ctx, "missing", []float32{1}); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetEmbedding(missing) error = %v, want ErrNotFound", err)
	}
	if err := store.SetEmbedding(ctx, "n1", nil); err == nil {
		t.Error("SetEmbedding(nil vector) expected error, got nil")
	}
}

func TestStoreClearEmbedding(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertTestNote(t, store, "n1", "text", time.Now(), false, []float32{1, 2})

	if err := store.ClearEmbedding(ctx, "n1"); err != nil {
		t.Fatalf("ClearEmbedding() error = %v", err)
	}
	note, err := store.GetByID(ctx, "n1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if note.Embedding != nil {
		t.Errorf("Embedding = %v, want nil", note.Embedding)
	}

	if err := store.ClearEmbedding(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ClearEmbedding(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStoreSetPinned(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertTestNote(t, store, "n1", "text", time.Now(), false, nil)

	if err := store.SetPinned(ctx, "n1", true); err != nil {
		t.Fatalf("SetPinned() error = %v", err)
	}
	note, _ := store.GetByID(ctx, "n1")
	if !note.Pinned {
		t.Error("Pinned = false after SetPinned(true)")
	}
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertTestNote(t, store, "n1", "text", time.Now(), false, nil)

	if err := store.Delete(ctx, "n1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.GetByID(ctx, "n1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "n1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrNotFound", err)
	}
}

func TestStoreStats(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	insertTestNote(t, store, "a", "a", now, true, []float32{1})
	insertTestNote(t, store, "b", "b", now, false, []float32{2})
	insertTestNote(t, store, "c", "c", now, false, nil)

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Count != 3 || stats.Embedded != 2 || stats.Pinned != 1 {
		t.Errorf("Stats() = %+v, want {3 2 1}", stats)
	}
}

func TestStoreClosedRejectsOperations(t *testing.T) {
	store := newTestStore(t)
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := store.All(context.Background()); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("All() after close error = %v, want ErrStoreClosed", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}
