package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/noterank"
	"github.com/liliang-cn/noterank/internal/config"
	"github.com/liliang-cn/noterank/internal/logging"
)

var (
	configPath string
	dbPath     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "noterank",
	Short: "Semantic note retrieval over SQLite",
	Long:  `noterank stores short text notes, embeds them on-device or via a remote API, and answers top-k semantic queries with pinned-note override.`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the note database",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, err := openApp(false)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		fmt.Println("note database initialized")
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, err := openApp(false)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		note, err := app.Add(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to add note: %w", err)
		}
		fmt.Printf("added note %s\n", note.ID)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all notes, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, err := openApp(false)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		notes, err := app.Notes(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list notes: %w", err)
		}
		for _, note := range notes {
			marker := "  "
			if note.Pinned {
				marker = "* "
			}
			embedded := " "
			if note.Embedding != nil {
				embedded = "e"
			}
			fmt.Printf("%s[%s] %s  %s  %s\n",
				marker, embedded, note.ID,
				note.Timestamp.Format(time.DateTime), note.Text)
		}
		return nil
	},
}

var pinCmd = &cobra.Command{
	Use:   "pin <id>",
	Short: "Pin a note so search always surfaces it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return togglePin(args[0], true)
	},
}

var unpinCmd = &cobra.Command{
	Use:   "unpin <id>",
	Short: "Unpin a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return togglePin(args[0], false)
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id> <text>",
	Short: "Rewrite a note's text (its embedding is recomputed lazily)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, err := openApp(false)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		if err := app.EditText(context.Background(), args[0], args[1]); err != nil {
			return fmt.Errorf("failed to edit note: %w", err)
		}
		fmt.Println("note updated")
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, err := openApp(false)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		if err := app.Remove(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete note: %w", err)
		}
		fmt.Println("note deleted")
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search notes semantically",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kFlag, _ := cmd.Flags().GetInt("top-k")

		app, cfg, err := openApp(true)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		k := cfg.TopK
		if kFlag > 0 {
			k = kFlag
		}

		results, err := app.Search(context.Background(), args[0], k)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		fmt.Print(noterank.FormatResults(results))
		return nil
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Embed every note that lacks a vector",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, err := openApp(true)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		count, err := app.Backfill(context.Background())
		if err != nil {
			return fmt.Errorf("backfill failed: %w", err)
		}
		fmt.Printf("embedded %d notes\n", count)
		return nil
	},
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Recompute every note's vector with the active provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, err := openApp(true)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		count, err := app.Regenerate(context.Background())
		if err != nil {
			return fmt.Errorf("regenerate failed: %w", err)
		}
		fmt.Printf("regenerated %d notes\n", count)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show note counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, err := openApp(false)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()

		stats, err := app.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to read stats: %w", err)
		}
		fmt.Printf("notes: %d\nembedded: %d\npinned: %d\n",
			stats.Count, stats.Embedded, stats.Pinned)
		return nil
	},
}

func togglePin(id string, pinned bool) error {
	app, _, err := openApp(false)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	ctx := context.Background()
	if pinned {
		err = app.Pin(ctx, id)
	} else {
		err = app.Unpin(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update pin state: %w", err)
	}
	fmt.Println("pin state updated")
	return nil
}

// openApp loads the config and opens the database. When withProvider is set,
// the configured embedding backend is bound as well; commands that only touch
// the store skip that so they work without a model artifact or API key.
func openApp(withProvider bool) (*noterank.App, *config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	logger := logging.NopLogger()
	if verbose {
		logger, err = logging.NewZapLogger(true)
		if err != nil {
			return nil, nil, err
		}
	}

	opts := []noterank.Option{noterank.WithLogger(logger)}
	if withProvider {
		opts = append(opts, noterank.WithProvider(cfg.ProviderSpec()))
	}

	app, err := noterank.Open(noterank.Config{DBPath: cfg.DBPath, TopK: cfg.TopK}, opts...)
	if err != nil {
		return nil, nil, err
	}
	return app, cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/noterank/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	searchCmd.Flags().IntP("top-k", "k", 0, "number of unpinned results to return")

	rootCmd.AddCommand(initCmd, addCmd, listCmd, pinCmd, unpinCmd, editCmd, rmCmd,
		searchCmd, backfillCmd, regenerateCmd, statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
