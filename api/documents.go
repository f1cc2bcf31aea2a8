package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/docuchat/docuchat/internal/config"
	"github.com/docuchat/docuchat/internal/ingest"
	"github.com/docuchat/docuchat/internal/knowledge"
	"github.com/docuchat/docuchat/internal/log"
)

// maxUploadSize bounds a single document upload.
const maxUploadSize = 32 << 20 // 32 MB

// DocumentHandler manages the knowledge base over HTTP: uploads,
// statistics, and reset.
type DocumentHandler struct {
	store    *knowledge.Store
	ingestor *ingest.Pipeline
	cfg      *config.Config
	logger   log.Logger
}

// NewDocumentHandler creates a document handler.
func NewDocumentHandler(store *knowledge.Store, ingestor *ingest.Pipeline, cfg *config.Config, logger log.Logger) *DocumentHandler {
	return &DocumentHandler{store: store, ingestor: ingestor, cfg: cfg, logger: logger}
}

// RegisterRoutes registers document routes on the given mux.
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/documents", h.upload)
	mux.HandleFunc("GET /api/documents/stats", h.stats)
	mux.HandleFunc("DELETE /api/documents", h.reset)
}

// UploadResponse reports an accepted and indexed document.
type UploadResponse struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
}

// upload accepts a multipart form with a "file" field, stores the
// document under data/raw, and indexes it immediately.
func (h *DocumentHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "expected multipart form with a file field")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	// Reject path traversal in the client-supplied name.
	name := filepath.Base(filepath.Clean(header.Filename))
	if name == "." || name == string(filepath.Separator) || strings.HasPrefix(name, "..") {
		writeError(w, http.StatusBadRequest, "INVALID_FILENAME", "invalid file name")
		return
	}

	dest := filepath.Join(h.cfg.RawDir(), name)
	if !h.ingestor.Supported(dest) {
		writeError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_TYPE",
			fmt.Sprintf("unsupported file type %q", filepath.Ext(name)))
		return
	}

	if err := h.saveUpload(dest, file); err != nil {
		h.logger.Error("saving upload", "error", err, "file", name)
		writeError(w, http.StatusInternalServerError, "SAVE_FAILED", "failed to store document")
		return
	}

	docs, err := h.ingestor.ProcessFile(r.Context(), dest)
	if err != nil {
		h.logger.Error("processing upload", "error", err, "file", name)
		writeError(w, http.StatusUnprocessableEntity, "INGEST_FAILED", "failed to process document")
		return
	}
	added, err := h.store.AddAll(r.Context(), docs)
	if err != nil {
		h.logger.Error("indexing upload", "error", err, "file", name)
		writeError(w, http.StatusInternalServerError, "INDEX_FAILED", "failed to index document")
		return
	}

	h.logger.Info("document uploaded", "file", name, "chunks", added)
	writeJSON(w, http.StatusCreated, UploadResponse{Filename: name, Chunks: added})
}

func (h *DocumentHandler) saveUpload(dest string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating upload directory: %w", err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

// stats returns knowledge base counts.
func (h *DocumentHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.Error("reading knowledge stats", "error", err)
		writeError(w, http.StatusInternalServerError, "STATS_FAILED", "failed to read statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// reset purges every indexed document.
func (h *DocumentHandler) reset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reset(r.Context()); err != nil {
		h.logger.Error("resetting knowledge base", "error", err)
		writeError(w, http.StatusInternalServerError, "RESET_FAILED", "failed to reset knowledge base")
		return
	}

	h.logger.Info("knowledge base reset")
	w.WriteHeader(http.StatusNoContent)
}
