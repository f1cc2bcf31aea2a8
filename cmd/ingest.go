package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/docuchat/docuchat/internal/app"
	"github.com/docuchat/docuchat/internal/config"
	"github.com/docuchat/docuchat/internal/ingest"
	"github.com/docuchat/docuchat/internal/knowledge"
	"github.com/docuchat/docuchat/internal/log"
)

// runIngest indexes documents into the knowledge base. With no
// arguments it processes the raw data directory; with a path argument
// it processes that file or directory instead.
func runIngest(logger log.Logger, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	path := cfg.RawDir()
	if len(args) > 0 {
		path = args[0]
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	var (
		docs   []knowledge.Document
		result ingest.Result
	)
	if info.IsDir() {
		docs, result, err = a.Ingestor.ProcessDirectory(ctx, path)
		if err != nil {
			return fmt.Errorf("processing %s: %w", path, err)
		}
	} else {
		docs, err = a.Ingestor.ProcessFile(ctx, path)
		if err != nil {
			return fmt.Errorf("processing %s: %w", path, err)
		}
		result = ingest.Result{FilesAdded: 1, Chunks: len(docs)}
	}

	if len(docs) == 0 {
		fmt.Println("No documents to index.")
		return nil
	}

	added, err := a.Knowledge.AddAll(ctx, docs)
	if err != nil {
		return fmt.Errorf("storing documents: %w", err)
	}

	fmt.Printf("Indexed %d chunks from %d files", added, result.FilesAdded)
	if result.FilesSkipped > 0 {
		fmt.Printf(" (%d skipped)", result.FilesSkipped)
	}
	if result.FilesFailed > 0 {
		fmt.Printf(" (%d failed)", result.FilesFailed)
	}
	fmt.Println()

	stats, err := a.Knowledge.Stats(ctx)
	if err == nil {
		fmt.Printf("Knowledge base now holds %d chunks from %d sources.\n",
			stats.Chunks, stats.Sources)
	}
	return nil
}
