// Package cmd provides the CLI commands for docuchat.
//
// Commands:
//   - setup: Environment checks, model pulls, and first-run bootstrap
//   - ingest: Load documents into the knowledge base
//   - ask: One-shot question answering from the terminal
//   - serve: HTTP API server with the embedded chat page
//   - sessions: List and delete conversation sessions
//
// Signal handling and graceful shutdown are implemented
// for all long-running commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/docuchat/docuchat/internal/log"
)

// Execute is the main entry point for the docuchat CLI application.
// It handles logger initialization and command routing, leaving
// main.go as a minimal entry point.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "setup":
		return runSetup(logger)
	case "ingest":
		return runIngest(logger, os.Args[2:])
	case "ask":
		return runAsk(logger, os.Args[2:])
	case "serve":
		return runServe(logger)
	case "sessions":
		return runSessions(logger, os.Args[2:])
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s (run 'docuchat help')", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("DocuChat - Chat with your documents, fully local")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  docuchat setup               Check dependencies and prepare the environment")
	fmt.Println("  docuchat ingest [path]       Index documents (default: the raw data directory)")
	fmt.Println("  docuchat ask <question>      Ask a one-shot question")
	fmt.Println("  docuchat serve               Start the HTTP server and web chat")
	fmt.Println("  docuchat sessions list       List conversation sessions")
	fmt.Println("  docuchat sessions delete <id> Delete a session")
	fmt.Println("  docuchat --version           Show version information")
	fmt.Println("  docuchat --help              Show this help")
	fmt.Println()
	fmt.Println("Ask flags:")
	fmt.Println("  --new                        Start a fresh session")
	fmt.Println("  --strategy <name>            Retrieval strategy: basic, threshold, diverse")
	fmt.Println("  --check                      Evaluate whether the answer is grounded in the documents")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  OLLAMA_HOST                  Ollama daemon address (default: http://localhost:11434)")
	fmt.Println("  DATABASE_URL                 PostgreSQL connection URL (overrides postgres_* settings)")
	fmt.Println("  DEBUG                        Enable debug logging")
	fmt.Println()
	fmt.Println("Run 'docuchat setup' first; it walks through everything the other")
	fmt.Println("commands need.")
}
