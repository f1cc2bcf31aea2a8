package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/docuchat/docuchat/internal/config"
	"github.com/docuchat/docuchat/internal/doctor"
	"github.com/docuchat/docuchat/internal/log"
)

// runSetup verifies the local environment: the Ollama binary and
// daemon, the chat and embedding models, PostgreSQL with pgvector,
// and the data directories. Missing models are pulled; directories
// are created only after the service checks pass.
func runSetup(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d := doctor.New(cfg, logger, os.Stdout)
	if err := d.Run(ctx); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Setup complete. Next steps:")
	fmt.Printf("  docuchat ingest          index documents from %s\n", cfg.RawDir())
	fmt.Println("  docuchat serve           start the web chat")
	fmt.Println("  docuchat ask <question>  ask from the terminal")
	return nil
}
