package core

import "time"

// Note is a persisted text record with an optional embedding vector.
// A nil Embedding means "not yet computed" or "computation failed"; the
// retrieval engine backfills it lazily.
type Note struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Embedding []float32 `json:"embedding,omitempty"`
	Pinned    bool      `json:"pinned"`
}

// Clone returns a deep copy of the note. The store hands out copies so the
// engine can mutate embeddings before writing them back.
func (n *Note) Clone() *Note {
	c := *n
	if n.Embedding != nil {
		c.Embedding = make([]float32, len(n.Embedding))
		copy(c.Embedding, n.Embedding)
	}
	return &c
}

// SearchResult pairs a note with its similarity score. Results are ephemeral
// and never persisted.
type SearchResult struct {
	Note  *Note   `json:"note"`
	Score float64 `json:"score"`
}
