// Package noterank is a small on-device semantic retrieval engine for short
// text notes backed by SQLite.
//
// Notes are stored with optional embedding vectors computed by one of several
// interchangeable backends (two local hashed n-gram encoders and an
// OpenAI-compatible remote API). Missing vectors are backfilled lazily, and
// switching backends at runtime is safe: a search that detects vectors with a
// stale dimension regenerates the whole corpus once and retries.
//
// Searches return a two-tier ranking: pinned notes always precede unpinned
// ones, a pinned note's score is floored at 0.5, and a pinned note without an
// embedding scores exactly 1.0. Unpinned notes are ranked by cosine
// similarity and pruned to the requested top-k.
//
// All engine operations run on a single worker goroutine in FIFO order; the
// embedding backends are not safe for concurrent invocation and the store
// must not be mutated mid-scan.
//
// Basic usage:
//
//	app, err := noterank.Open(noterank.Config{DBPath: "notes.db"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer app.Close()
//
//	if err := app.SetProvider(ctx, provider.Config{
//		Variant:   provider.VariantLocalUSE,
//		ModelPath: "local-use.model.json",
//	}); err != nil {
//		log.Fatal(err)
//	}
//
//	note, _ := app.Add(ctx, "buy milk")
//	_ = app.Pin(ctx, note.ID)
//
//	results, err := app.Search(ctx, "groceries", 3)
package noterank
