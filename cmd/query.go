package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/strataworks/strata/internal/app"
	"github.com/strataworks/strata/internal/config"
	"github.com/strataworks/strata/internal/level"
	"github.com/strataworks/strata/internal/retrieval"
)

var (
	queryLevel    int
	queryStrategy string
	queryK        int
	queryStats    bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Run a one-shot retrieval against the knowledge base",
	Long: `Search the level-scoped knowledge base from the perspective of the
given ISA-95 requester level. The requester sees its own level and
every level below it.

With --stats, print per-level document counts instead of searching.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if queryStats {
			return runStats()
		}
		if len(args) == 0 {
			return errors.New("query text required (or use --stats)")
		}
		return runQuery(args[0])
	},
}

func init() {
	queryCmd.Flags().IntVar(&queryLevel, "level", int(level.Management), "requester's ISA-95 level (1-4)")
	queryCmd.Flags().StringVar(&queryStrategy, "strategy", string(retrieval.StrategyHierarchical), "retrieval strategy: basic, hierarchical, or comprehensive")
	queryCmd.Flags().IntVar(&queryK, "k", 0, "number of results (0 uses the configured default)")
	queryCmd.Flags().BoolVar(&queryStats, "stats", false, "print per-level document counts and exit")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(question string) error {
	requester := level.Level(queryLevel)
	if err := requester.Validate(); err != nil {
		return err
	}
	strategy, err := retrieval.ParseStrategy(queryStrategy)
	if err != nil {
		return err
	}

	ctx, a, cleanup, err := setupApp()
	if err != nil {
		return err
	}
	defer cleanup()

	k := queryK
	if k <= 0 {
		k = a.Config.TopK
	}

	accessible, err := level.Accessible(requester)
	if err != nil {
		return err
	}
	perLevel, err := a.Retriever.Retrieve(ctx, question, accessible, strategy, k)

	var partial *retrieval.PartialFailureError
	switch {
	case err == nil:
	case errors.As(err, &partial) && perLevel != nil:
		fmt.Fprintf(os.Stderr, "warning: some levels failed: %v\n", partial.FailedLevels())
	default:
		return err
	}

	var docs []retrieval.ScoredDocument
	if strategy == retrieval.StrategyBasic {
		docs = perLevel[requester]
	} else {
		docs = retrieval.Merge(perLevel, k)
	}

	if len(docs) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, doc := range docs {
		fmt.Printf("%d. [%s] %s (score %.3f)\n", i+1, doc.Level.Name(), doc.ID, doc.Score)
		excerpt := truncateExcerpt(doc.Excerpt, 200)
		fmt.Printf("   %s\n", strings.ReplaceAll(excerpt, "\n", " "))
	}
	return nil
}

// truncateExcerpt cuts s to at most n bytes without splitting a
// multi-byte rune.
func truncateExcerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func runStats() error {
	ctx, a, cleanup, err := setupApp()
	if err != nil {
		return err
	}
	defer cleanup()

	total := 0
	for _, l := range level.All() {
		n, err := a.Store.Count(ctx, l)
		if err != nil {
			return fmt.Errorf("counting level %d: %w", int(l), err)
		}
		fmt.Printf("Level %d (%s): %d documents\n", int(l), l.Name(), n)
		total += n
	}
	fmt.Printf("Total: %d documents\n", total)
	return nil
}

// setupApp loads config and wires the application under a signal-aware
// context. The returned cleanup stops signal handling and shuts the
// application down.
func setupApp() (context.Context, *app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("initializing application: %w", err)
	}

	cleanup := func() {
		if err := a.Close(); err != nil {
			slog.Warn("shutdown error", "error", err)
		}
		cancel()
	}
	return ctx, a, cleanup, nil
}
