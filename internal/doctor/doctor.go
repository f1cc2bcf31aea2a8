// Package doctor implements the environment checks behind `docuchat
// setup`: Ollama binary and daemon probes, model provisioning,
// PostgreSQL connectivity with migrations, and data directory layout.
//
// Checks run sequentially and stop at the first failure; each failure
// carries printable guidance for fixing the environment. No filesystem
// changes happen before all prerequisite probes pass.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/docuchat/docuchat/db"
	"github.com/docuchat/docuchat/internal/config"
)

const (
	// daemonTimeout bounds the daemon and database probes.
	daemonTimeout = 10 * time.Second

	// sampleFileName is written into data/raw when it is empty so the
	// first ingest run has something to index.
	sampleFileName = "sample_document.txt"
)

const sampleDocument = `Welcome to DocuChat

DocuChat is a locally hosted document question-answering assistant.
Documents placed in this directory are split into chunks, embedded
with a local embedding model, and stored in PostgreSQL with pgvector.

How it works:
1. Drop .txt, .md, or .pdf files into data/raw
2. Run "docuchat ingest" to index them
3. Run "docuchat serve" and open the chat page, or ask directly with
   "docuchat ask"

Answers are generated by a local model served by Ollama and are
grounded in the indexed documents. When the documents do not contain
the answer, the assistant says so instead of guessing.

You can delete this file once you have added your own documents.
`

// A CheckError carries guidance printed when a prerequisite is missing.
type CheckError struct {
	Check    string
	Guidance string
	Err      error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("%s: %v", e.Check, e.Err)
}

func (e *CheckError) Unwrap() error { return e.Err }

// Doctor runs the setup checks.
type Doctor struct {
	cfg    *config.Config
	ollama *OllamaClient
	logger *slog.Logger
	out    io.Writer

	// lookPath is swappable in tests.
	lookPath func(file string) (string, error)
}

// New creates a Doctor writing progress to out.
func New(cfg *config.Config, logger *slog.Logger, out io.Writer) *Doctor {
	if logger == nil {
		logger = slog.Default()
	}
	if out == nil {
		out = os.Stdout
	}

	return &Doctor{
		cfg:      cfg,
		ollama:   NewOllamaClient(cfg.OllamaHost, logger),
		logger:   logger,
		out:      out,
		lookPath: exec.LookPath,
	}
}

// Run executes all checks in order, stopping at the first failure.
func (d *Doctor) Run(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"ollama binary", d.checkBinary},
		{"ollama daemon", d.checkDaemon},
		{"chat model", func(ctx context.Context) error { return d.ensureModel(ctx, d.cfg.ModelName) }},
		{"embedding model", func(ctx context.Context) error { return d.ensureModel(ctx, d.cfg.EmbedderModel) }},
		{"postgresql", d.checkPostgres},
		{"data directories", d.ensureDirectories},
		{"sample document", d.ensureSampleDocument},
	}

	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			fmt.Fprintf(d.out, "✗ %s\n", step.name)
			var checkErr *CheckError
			if errors.As(err, &checkErr) && checkErr.Guidance != "" {
				fmt.Fprintf(d.out, "\n%s\n", checkErr.Guidance)
			}
			return err
		}
		fmt.Fprintf(d.out, "✓ %s\n", step.name)
	}

	fmt.Fprintln(d.out, "\nSetup complete. Add documents to", d.cfg.RawDir(), "and run: docuchat ingest")
	return nil
}

func (d *Doctor) checkBinary(_ context.Context) error {
	if _, err := d.lookPath("ollama"); err != nil {
		return &CheckError{
			Check: "ollama binary",
			Guidance: "Ollama is not installed or not on PATH.\n" +
				"Install it from https://ollama.com/download and re-run setup.",
			Err: err,
		}
	}
	return nil
}

func (d *Doctor) checkDaemon(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, daemonTimeout)
	defer cancel()

	if _, err := d.ollama.Tags(probeCtx); err != nil {
		return &CheckError{
			Check: "ollama daemon",
			Guidance: fmt.Sprintf("The Ollama daemon is not reachable at %s.\n"+
				"Start it with: ollama serve", d.cfg.OllamaHost),
			Err: err,
		}
	}
	return nil
}

// ensureModel pulls the model when it is not already present.
func (d *Doctor) ensureModel(ctx context.Context, model string) error {
	probeCtx, cancel := context.WithTimeout(ctx, daemonTimeout)
	tags, err := d.ollama.Tags(probeCtx)
	cancel()
	if err != nil {
		return &CheckError{Check: "listing models", Err: err}
	}

	if tags.HasModel(model) {
		return nil
	}

	fmt.Fprintf(d.out, "  pulling %s (this may take a while)\n", model)
	if err := d.ollama.Pull(ctx, model, func(p PullProgress) {
		if p.Total > 0 {
			fmt.Fprintf(d.out, "\r  %s: %d%%", p.Status, p.Completed*100/p.Total)
		}
	}); err != nil {
		return &CheckError{
			Check:    "pulling model",
			Guidance: fmt.Sprintf("Failed to pull %q. Pull it manually with: ollama pull %s", model, model),
			Err:      err,
		}
	}
	fmt.Fprintln(d.out)
	return nil
}

func (d *Doctor) checkPostgres(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, daemonTimeout)
	defer cancel()

	conn, err := pgx.Connect(pingCtx, d.cfg.PostgresConnectionString())
	if err != nil {
		return &CheckError{
			Check: "postgresql",
			Guidance: fmt.Sprintf("PostgreSQL is not reachable at %s:%d.\n"+
				"Start it (for example: docker compose up -d postgres) and re-run setup.\n"+
				"The pgvector extension must be available.",
				d.cfg.PostgresHost, d.cfg.PostgresPort),
			Err: err,
		}
	}
	defer func() { _ = conn.Close(ctx) }()

	if err := conn.Ping(pingCtx); err != nil {
		return &CheckError{Check: "postgresql ping", Err: err}
	}

	if err := db.Migrate(d.cfg.PostgresURL()); err != nil {
		return &CheckError{
			Check:    "migrations",
			Guidance: "Database migrations failed. Check that the configured user can CREATE EXTENSION vector.",
			Err:      err,
		}
	}
	return nil
}

func (d *Doctor) ensureDirectories(_ context.Context) error {
	for _, dir := range []string{d.cfg.RawDir(), d.cfg.ProcessedDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &CheckError{Check: "data directories", Err: fmt.Errorf("creating %s: %w", dir, err)}
		}
	}
	return nil
}

// ensureSampleDocument writes a starter document when data/raw is
// empty, so the first ingest has something to index.
func (d *Doctor) ensureSampleDocument(_ context.Context) error {
	rawDir := d.cfg.RawDir()

	entries, err := os.ReadDir(rawDir)
	if err != nil {
		return &CheckError{Check: "sample document", Err: err}
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			return nil // user already has documents
		}
	}

	path := filepath.Join(rawDir, sampleFileName)
	if err := os.WriteFile(path, []byte(sampleDocument), 0o644); err != nil {
		return &CheckError{Check: "sample document", Err: err}
	}
	return nil
}

