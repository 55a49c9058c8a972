package noterank

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/liliang-cn/noterank/internal/logging"
	"github.com/liliang-cn/noterank/pkg/core"
	"github.com/liliang-cn/noterank/pkg/provider"
)

// Config configures an App.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string

	// TopK is the default result count used when Search is called with k <= 0.
	TopK int
}

// Option is a functional option for Open.
type Option func(*options)

type options struct {
	logger       logging.Logger
	providerSpec *provider.Config
}

// WithLogger attaches a logger to the store and engine. The default discards
// all messages.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithProvider binds an embedding backend during Open. Equivalent to calling
// SetProvider right after; an init failure fails Open.
func WithProvider(spec provider.Config) Option {
	return func(o *options) { o.providerSpec = &spec }
}

// App bundles the note store and the retrieval engine behind text-level
// operations.
type App struct {
	store  *core.NoteStore
	engine *core.Engine
	topK   int
}

// Open opens (or creates) the note database and starts the retrieval engine.
func Open(cfg Config, opts ...Option) (*App, error) {
	o := options{logger: logging.NopLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	store, err := core.NewNoteStore(cfg.DBPath, o.logger)
	if err != nil {
		return nil, err
	}
	if err := store.Init(context.Background()); err != nil {
		return nil, err
	}

	engine := core.NewEngine(store, core.WithLogger(o.logger))

	topK := cfg.TopK
	if topK <= 0 {
		topK = core.DefaultTopK
	}

	app := &App{store: store, engine: engine, topK: topK}

	if o.providerSpec != nil {
		if err := app.SetProvider(context.Background(), *o.providerSpec); err != nil {
			_ = app.Close()
			return nil, err
		}
	}
	return app, nil
}

// SetProvider binds or switches the embedding backend selected by spec.
func (a *App) SetProvider(ctx context.Context, spec provider.Config) error {
	p, err := provider.New(spec)
	if err != nil {
		return err
	}
	return a.engine.SetProvider(ctx, p)
}

// Add creates a note with a fresh ID and no embedding; the embedding is
// backfilled by the next search or backfill pass.
func (a *App) Add(ctx context.Context, text string) (*core.Note, error) {
	note := &core.Note{
		ID:        uuid.New().String(),
		Text:      text,
		Timestamp: time.Now(),
	}
	if err := a.store.Insert(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// Notes returns every stored note, newest first.
func (a *App) Notes(ctx context.Context) ([]*core.Note, error) {
	return a.store.All(ctx)
}

// Get fetches a note by ID.
func (a *App) Get(ctx context.Context, id string) (*core.Note, error) {
	return a.store.GetByID(ctx, id)
}

// Pin marks a note as pinned; pinned notes are always surfaced by Search.
func (a *App) Pin(ctx context.Context, id string) error {
	return a.store.SetPinned(ctx, id, true)
}

// Unpin clears the pinned flag.
func (a *App) Unpin(ctx context.Context, id string) error {
	return a.store.SetPinned(ctx, id, false)
}

// EditText rewrites a note's text and invalidates its embedding.
func (a *App) EditText(ctx context.Context, id, text string) error {
	return a.store.UpdateText(ctx, id, text)
}

// Remove deletes a note.
func (a *App) Remove(ctx context.Context, id string) error {
	return a.store.Delete(ctx, id)
}

// Stats returns note counts by state.
func (a *App) Stats(ctx context.Context) (core.StoreStats, error) {
	return a.store.Stats(ctx)
}

// Search returns the pinned-first ranking for the query. k <= 0 selects the
// configured default.
func (a *App) Search(ctx context.Context, query string, k int) ([]core.SearchResult, error) {
	if k <= 0 {
		k = a.topK
	}
	return a.engine.Search(ctx, query, k)
}

// Backfill embeds every note that lacks a vector.
func (a *App) Backfill(ctx context.Context) (int, error) {
	return a.engine.BackfillEmbeddings(ctx)
}

// Regenerate recomputes every note's vector with the active backend.
func (a *App) Regenerate(ctx context.Context) (int, error) {
	return a.engine.RegenerateAll(ctx)
}

// Engine exposes the retrieval engine for async operations.
func (a *App) Engine() *core.Engine {
	return a.engine
}

// Store exposes the note store. Do not mutate it while engine operations are
// in flight; the engine assumes it is the sole mutator.
func (a *App) Store() *core.NoteStore {
	return a.store
}

// FormatResults renders search results as a numbered human-readable list.
func FormatResults(results []core.SearchResult) string {
	return core.FormatResults(results)
}

// Close shuts down the engine (releasing the provider) and then the store.
func (a *App) Close() error {
	engineErr := a.engine.Close()
	storeErr := a.store.Close()
	if engineErr != nil {
		return engineErr
	}
	return storeErr
}
