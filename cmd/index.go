package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/strataworks/strata/internal/app"
	"github.com/strataworks/strata/internal/collection"
	"github.com/strataworks/strata/internal/config"
	"github.com/strataworks/strata/internal/level"
)

// indexWorkers bounds concurrent embed+upsert calls during bulk
// ingestion.
const indexWorkers = 4

var indexLevel int

var indexCmd = &cobra.Command{
	Use:   "index <file.jsonl>",
	Short: "Bulk-load documents into one level's collection",
	Long: `Read newline-delimited JSON documents and store them at the given
ISA-95 level. Each line holds {"id": "...", "content": "...",
"metadata": {...}}; a missing id gets a generated UUID.

Documents are embedded and upserted concurrently.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndex(args[0], level.Level(indexLevel))
	},
}

func init() {
	indexCmd.Flags().IntVar(&indexLevel, "level", 0, "ISA-95 level to store the documents at (1-4)")
	_ = indexCmd.MarkFlagRequired("level")
	rootCmd.AddCommand(indexCmd)
}

// indexRecord is one line of the input file.
type indexRecord struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

func runIndex(path string, l level.Level) error {
	if err := l.Validate(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	f, err := os.Open(path) // #nosec G304 -- operator-supplied input file
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer func() { _ = f.Close() }()

	docs, err := parseDocuments(f)
	if err != nil {
		return err
	}

	stored, err := storeDocuments(ctx, a.Store, l, docs)
	if err != nil {
		return fmt.Errorf("indexing: %w", err)
	}

	slog.Info("indexing complete", "level", int(l), "documents", stored)
	return nil
}

// parseDocuments reads newline-delimited JSON records, skipping blank
// lines. Records without an ID get a generated UUID; records without
// content are rejected with their line number.
func parseDocuments(r io.Reader) ([]collection.Document, error) {
	var docs []collection.Document
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec indexRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("line %d: parsing record: %w", lineNo, err)
		}
		if rec.Content == "" {
			return nil, fmt.Errorf("line %d: record has no content", lineNo)
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}

		docs = append(docs, collection.Document{
			ID:       rec.ID,
			Content:  rec.Content,
			Metadata: rec.Metadata,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return docs, nil
}

// storeDocuments ingests documents concurrently. The first failure
// cancels the remaining work.
func storeDocuments(ctx context.Context, store *collection.Store, l level.Level, docs []collection.Document) (int, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(indexWorkers)

	for _, doc := range docs {
		g.Go(func() error {
			if err := store.Add(ctx, l, doc); err != nil {
				return fmt.Errorf("document %q: %w", doc.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(docs), nil
}
