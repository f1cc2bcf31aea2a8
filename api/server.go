// Package api provides the HTTP surface of docuchat: the JSON REST
// API, the SSE streaming chat endpoint, and the embedded chat page.
//
// Endpoints:
//
//	GET  /                    →  embedded chat UI
//	GET  /health              →  liveness probe
//	GET  /ready               →  readiness probe (pings the database)
//	GET  /api/sessions        →  list sessions
//	POST /api/sessions        →  create session
//	GET  /api/sessions/{id}   →  get session with messages
//	DELETE /api/sessions/{id} →  delete session
//	POST /api/chat            →  synchronous chat (genkit.Handler)
//	POST /api/chat/stream     →  streaming chat (Server-Sent Events)
//	POST /api/documents       →  upload + ingest a document
//	GET  /api/documents/stats →  knowledge base statistics
//	DELETE /api/documents     →  reset the knowledge base
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: recovery and request logging
//   - health.go: probes
//   - session.go: session CRUD
//   - chat.go: chat endpoints over the Genkit flow
//   - documents.go: knowledge base management
//   - static.go: embedded chat page
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docuchat/docuchat/internal/chat"
	"github.com/docuchat/docuchat/internal/config"
	"github.com/docuchat/docuchat/internal/ingest"
	"github.com/docuchat/docuchat/internal/knowledge"
	"github.com/docuchat/docuchat/internal/log"
	"github.com/docuchat/docuchat/internal/session"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout prevents Slowloris-style connection hoarding.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire
	// request; document uploads are bounded by this.
	ReadTimeout = 60 * time.Second

	// IdleTimeout is the keep-alive idle limit.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for docuchat.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
}

// Deps carries the wired application components the handlers need.
type Deps struct {
	Config    *config.Config
	Pool      *pgxpool.Pool
	Sessions  *session.Store
	Knowledge *knowledge.Store
	Ingestor  *ingest.Pipeline
	Agent     *chat.Agent
	Flow      *chat.Flow
	Logger    log.Logger
}

// NewServer creates a server with all routes registered.
func NewServer(deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{mux: mux, logger: deps.Logger}

	NewHealthHandler(deps.Pool, deps.Logger).RegisterRoutes(mux)
	NewSessionHandler(deps.Sessions, deps.Config.ModelName, deps.Logger).RegisterRoutes(mux)
	NewChatHandler(deps.Flow, deps.Agent, deps.Logger).RegisterRoutes(mux)
	NewDocumentHandler(deps.Knowledge, deps.Ingestor, deps.Config, deps.Logger).RegisterRoutes(mux)
	registerStatic(mux)

	return s
}

// Handler returns the server handler with middleware applied.
// Order: recovery → logging → routes.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware(s.logger), loggingMiddleware(s.logger))
}

// Run starts the server and blocks until ctx is canceled, then shuts
// down gracefully.
//
// WriteTimeout stays unset: the SSE endpoint writes for as long as the
// model generates. Streams terminate via the request context instead.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
