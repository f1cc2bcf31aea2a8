package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/docuchat/docuchat/api"
	"github.com/docuchat/docuchat/internal/app"
	"github.com/docuchat/docuchat/internal/config"
	"github.com/docuchat/docuchat/internal/log"
)

// runServe initializes the application and starts the HTTP server
// with the embedded chat page. The server runs until SIGINT/SIGTERM,
// then shuts down gracefully.
func runServe(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting docuchat", "version", AppVersion)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	server := api.NewServer(api.Deps{
		Config:    cfg,
		Pool:      a.DBPool,
		Sessions:  a.Sessions,
		Knowledge: a.Knowledge,
		Ingestor:  a.Ingestor,
		Agent:     a.Agent,
		Flow:      a.Flow,
		Logger:    logger,
	})

	fmt.Printf("DocuChat is running at http://%s\n", cfg.ListenAddr)
	return server.Run(ctx, cfg.ListenAddr)
}
