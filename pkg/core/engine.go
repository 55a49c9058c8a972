package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/liliang-cn/noterank/internal/logging"
	"github.com/liliang-cn/noterank/pkg/provider"
)

// BindingState describes the engine's provider binding.
type BindingState int

const (
	// StateUnbound means no provider is attached.
	StateUnbound BindingState = iota
	// StateInitializing means a provider is being initialized.
	StateInitializing
	// StateReady means the provider accepts embed calls.
	StateReady
	// StateSwitching means the previous provider is being torn down.
	StateSwitching
)

// String returns the state name.
func (s BindingState) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateSwitching:
		return "switching"
	default:
		return "unknown"
	}
}

// DefaultTopK is used when a caller does not specify a result count.
const DefaultTopK = 3

// Engine orchestrates embedding backfill, dimension-consistency repair, and
// two-tier pinned/unpinned ranking over a NoteStore.
//
// Every public operation is enqueued onto a single worker goroutine and runs
// in FIFO order, so there is never more than one in-flight call into the
// active provider and the store sees exactly one mutator.
type Engine struct {
	store  *NoteStore
	logger logging.Logger

	jobs chan func()
	done chan struct{}

	mu     sync.Mutex
	closed bool

	// Worker-owned state. Only the worker goroutine touches these after New.
	provider provider.Provider
	state    BindingState
}

// SearchReply is the resolution of an asynchronous search.
type SearchReply struct {
	Results []SearchResult
	Err     error
}

// CountReply is the resolution of an asynchronous backfill or regenerate.
type CountReply struct {
	Count int
	Err   error
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(logger logging.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine over the given store and starts its worker.
// The engine starts Unbound; call SetProvider before searching.
func NewEngine(store *NoteStore, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  store,
		logger: logging.NopLogger(),
		jobs:   make(chan func(), 64),
		done:   make(chan struct{}),
		state:  StateUnbound,
	}
	for _, opt := range opts {
		opt(e)
	}
	go e.run()
	return e
}

func (e *Engine) run() {
	for job := range e.jobs {
		job()
	}
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Warn("provider close failed", "error", err)
		}
		e.provider = nil
	}
	e.state = StateUnbound
	close(e.done)
}

// enqueue hands a job to the worker. Returns false when the engine is closed.
func (e *Engine) enqueue(job func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.jobs <- job
	return true
}

// Close stops accepting work, lets already-queued jobs finish, shuts the
// provider down, and waits for the worker to exit.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.done
		return nil
	}
	e.closed = true
	close(e.jobs)
	e.mu.Unlock()

	<-e.done
	return nil
}

// SetProvider tears down the current provider (if any) and binds p, taking
// ownership of it. On init failure the engine is left Unbound and the error
// is returned; the caller may retry with the same or another variant. Stored
// embeddings are not touched here: stale dimensions are repaired lazily by
// the next search.
func (e *Engine) SetProvider(ctx context.Context, p provider.Provider) error {
	_, err := submit(e, ctx, "set_provider", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.bindProvider(ctx, p)
	})
	return err
}

func (e *Engine) bindProvider(ctx context.Context, p provider.Provider) error {
	if e.provider != nil {
		e.state = StateSwitching
		e.logger.Info("switching provider", "from", e.provider.Variant(), "to", p.Variant())
		if err := e.provider.Close(); err != nil {
			e.logger.Warn("previous provider close failed", "error", err)
		}
		e.provider = nil
	}

	e.state = StateInitializing
	if err := p.Init(ctx); err != nil {
		e.state = StateUnbound
		return wrapError("set_provider", fmt.Errorf("%w: %w", ErrProviderInit, err))
	}

	e.provider = p
	e.state = StateReady
	e.logger.Info("provider ready", "variant", p.Variant(), "dim", p.Dim())
	return nil
}

// State reports the provider binding state, observed through the queue so it
// is ordered with respect to other operations.
func (e *Engine) State(ctx context.Context) BindingState {
	state, err := submit(e, ctx, "state", func(context.Context) (BindingState, error) {
		return e.state, nil
	})
	if err != nil {
		return StateUnbound
	}
	return state
}

// ProviderVariant reports the active provider's variant, or "" when Unbound.
func (e *Engine) ProviderVariant(ctx context.Context) provider.Variant {
	variant, err := submit(e, ctx, "provider_variant", func(context.Context) (provider.Variant, error) {
		if e.provider == nil {
			return "", nil
		}
		return e.provider.Variant(), nil
	})
	if err != nil {
		return ""
	}
	return variant
}

// BackfillEmbeddings computes embeddings for every note that lacks one and
// has non-empty text. Per-note failures are logged and skipped. Returns the
// number of newly written vectors.
func (e *Engine) BackfillEmbeddings(ctx context.Context) (int, error) {
	return submit(e, ctx, "backfill", e.backfill)
}

// BackfillEmbeddingsAsync enqueues a backfill and returns its future result.
func (e *Engine) BackfillEmbeddingsAsync(ctx context.Context) <-chan CountReply {
	ch := make(chan CountReply, 1)
	ok := e.enqueue(func() {
		count, err := e.backfill(ctx)
		ch <- CountReply{Count: count, Err: err}
	})
	if !ok {
		ch <- CountReply{Err: wrapError("backfill", ErrEngineClosed)}
	}
	return ch
}

// RegenerateAll recomputes every note's embedding with the active provider.
// Used after a provider switch or on detected dimension mismatch.
func (e *Engine) RegenerateAll(ctx context.Context) (int, error) {
	return submit(e, ctx, "regenerate", e.regenerate)
}

// Search embeds the query and returns the merged pinned-first ranking.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	return submit(e, ctx, "search", func(ctx context.Context) ([]SearchResult, error) {
		return e.search(ctx, query, k)
	})
}

// SearchAsync enqueues a search and returns its future result.
func (e *Engine) SearchAsync(ctx context.Context, query string, k int) <-chan SearchReply {
	ch := make(chan SearchReply, 1)
	ok := e.enqueue(func() {
		results, err := e.search(ctx, query, k)
		ch <- SearchReply{Results: results, Err: err}
	})
	if !ok {
		ch <- SearchReply{Err: wrapError("search", ErrEngineClosed)}
	}
	return ch
}

// submit enqueues fn and blocks until the worker resolves it or ctx ends.
func submit[T any](e *Engine, ctx context.Context, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	ch := make(chan struct {
		value T
		err   error
	}, 1)

	ok := e.enqueue(func() {
		v, err := fn(ctx)
		ch <- struct {
			value T
			err   error
		}{v, err}
	})
	if !ok {
		return zero, wrapError(op, ErrEngineClosed)
	}

	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		return zero, wrapError(op, ctx.Err())
	}
}

// embedAll is the shared backfill/regenerate loop. When onlyMissing is set,
// notes that already have an embedding are skipped. Cancellation is checked
// between notes; an embed in progress is never interrupted mid-call.
func (e *Engine) embedAll(ctx context.Context, op string, onlyMissing bool) (int, error) {
	if e.provider == nil {
		return 0, wrapError(op, ErrNoProvider)
	}

	notes, err := e.store.All(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, note := range notes {
		if err := ctx.Err(); err != nil {
			return count, wrapError(op, err)
		}
		if onlyMissing && note.Embedding != nil {
			continue
		}
		if strings.TrimSpace(note.Text) == "" {
			// A full regenerate also drops any vector left on an empty-text
			// note, so a stale dimension there cannot survive the repair.
			if !onlyMissing && note.Embedding != nil {
				if err := e.store.ClearEmbedding(ctx, note.ID); err != nil {
					e.logger.Warn("stale embedding clear failed", "op", op, "id", note.ID, "error", err)
				}
			}
			continue
		}

		vector, err := e.provider.Embed(ctx, note.Text)
		if err != nil {
			e.logger.Warn("embed failed, note skipped", "op", op, "id", note.ID, "error", err)
			continue
		}
		if err := e.store.SetEmbedding(ctx, note.ID, vector); err != nil {
			if ctx.Err() != nil {
				return count, wrapError(op, ctx.Err())
			}
			e.logger.Warn("embedding write-back failed, note skipped", "op", op, "id", note.ID, "error", err)
			continue
		}
		count++
	}

	e.logger.Debug("embedding pass finished", "op", op, "embedded", count, "total", len(notes))
	return count, nil
}

func (e *Engine) backfill(ctx context.Context) (int, error) {
	return e.embedAll(ctx, "backfill", true)
}

func (e *Engine) regenerate(ctx context.Context) (int, error) {
	return e.embedAll(ctx, "regenerate", false)
}

// pinnedScoreFloor keeps a pinned note's score from reading like a weak
// unpinned match.
const pinnedScoreFloor = 0.5

// staleDimension returns the first embedded note whose vector width differs
// from want, or nil when every stored vector is consistent.
func staleDimension(want int, groups ...[]*Note) *Note {
	for _, notes := range groups {
		for _, note := range notes {
			if note.Embedding != nil && len(note.Embedding) != want {
				return note
			}
		}
	}
	return nil
}

func (e *Engine) search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, wrapError("search", ErrEmptyQuery)
	}
	if k < 1 {
		return nil, wrapError("search", ErrInvalidTopK)
	}
	if e.provider == nil {
		return nil, wrapError("search", ErrNoProvider)
	}
	return e.searchOnce(ctx, query, k, false)
}

// searchOnce runs one full search pass. When a stored vector's dimension
// disagrees with the query vector's, it regenerates everything and restarts
// exactly once; regeneration forces consistency, so a second mismatch means
// the provider itself is inconsistent and the offending notes are skipped
// instead of scored with the sentinel.
func (e *Engine) searchOnce(ctx context.Context, query string, k int, retried bool) ([]SearchResult, error) {
	// Maximal coverage before scoring.
	if _, err := e.backfill(ctx); err != nil {
		return nil, err
	}

	queryVector, err := e.provider.Embed(ctx, query)
	if err != nil {
		return nil, wrapError("search", fmt.Errorf("%w: %w", ErrEmbedFailed, err))
	}

	pinned, err := e.store.Pinned(ctx)
	if err != nil {
		return nil, err
	}
	unpinned, err := e.store.UnpinnedWithEmbeddings(ctx)
	if err != nil {
		return nil, err
	}

	if !retried {
		if stale := staleDimension(len(queryVector), pinned, unpinned); stale != nil {
			e.logger.Warn("stale embedding dimension, regenerating",
				"id", stale.ID, "have", len(stale.Embedding), "want", len(queryVector))
			if _, err := e.regenerate(ctx); err != nil {
				return nil, err
			}
			return e.searchOnce(ctx, query, k, true)
		}
	}

	unpinnedResults := make([]SearchResult, 0, len(unpinned))
	for _, note := range unpinned {
		if len(note.Embedding) != len(queryVector) {
			e.logger.Warn("dimension still inconsistent after regenerate, note skipped", "id", note.ID)
			continue
		}
		unpinnedResults = append(unpinnedResults, SearchResult{
			Note:  note,
			Score: CosineSimilarity(note.Embedding, queryVector),
		})
	}

	// Stable: ties keep store order.
	sort.SliceStable(unpinnedResults, func(i, j int) bool {
		return unpinnedResults[i].Score > unpinnedResults[j].Score
	})
	if len(unpinnedResults) > k {
		unpinnedResults = unpinnedResults[:k]
	}

	pinnedResults := make([]SearchResult, 0, len(pinned))
	for _, note := range pinned {
		score := 1.0 // a pinned note without an embedding always leads
		if note.Embedding != nil {
			score = CosineSimilarity(note.Embedding, queryVector)
			if score < pinnedScoreFloor {
				score = pinnedScoreFloor
			}
		}
		pinnedResults = append(pinnedResults, SearchResult{Note: note, Score: score})
	}
	sort.SliceStable(pinnedResults, func(i, j int) bool {
		return pinnedResults[i].Score > pinnedResults[j].Score
	})

	// Pinned precede unpinned regardless of score.
	merged := make([]SearchResult, 0, len(pinnedResults)+len(unpinnedResults))
	merged = append(merged, pinnedResults...)
	merged = append(merged, unpinnedResults...)

	e.logger.Debug("search finished",
		"query_dim", len(queryVector), "pinned", len(pinnedResults), "unpinned", len(unpinnedResults))
	return merged, nil
}
