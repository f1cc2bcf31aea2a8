// Package ingest implements document loading and chunking for the
// knowledge base.
//
// The pipeline walks a directory tree, loads supported file types
// (.txt, .md, .pdf), splits their content into overlapping chunks and
// produces knowledge.Document values ready for embedding. Files listed
// in a .ragignore file at the directory root are excluded, using
// gitignore pattern semantics.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/docuchat/docuchat/internal/knowledge"
)

// ErrUnsupportedType indicates a file extension no loader handles.
var ErrUnsupportedType = errors.New("unsupported file type")

// IgnoreFileName is the per-directory exclusion file, using gitignore
// pattern syntax.
const IgnoreFileName = ".ragignore"

// maxFileSize caps individual files to keep a single ingestion batch
// bounded. Larger files are counted as skipped.
const maxFileSize = 32 << 20 // 32MB

// Result summarizes an ingestion run.
type Result struct {
	FilesAdded   int
	FilesSkipped int
	FilesFailed  int
	Chunks       int
	Duration     time.Duration
}

// Pipeline loads and chunks documents.
//
// Chunking uses recursive character splitting: paragraphs first, then
// lines, then words, so chunks break at the largest natural boundary
// that fits the configured size.
type Pipeline struct {
	splitter            textsplitter.RecursiveCharacter
	supportedExtensions map[string]bool
	logger              *slog.Logger
}

// New creates a Pipeline with the given chunking parameters.
// extensions optionally overrides the default supported file types.
func New(chunkSize, chunkOverlap int, extensions []string, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	extMap := make(map[string]bool)
	if len(extensions) > 0 {
		for _, ext := range extensions {
			extMap[strings.ToLower(ext)] = true
		}
	} else {
		for k, v := range defaultSupportedExtensions {
			extMap[k] = v
		}
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
	)

	return &Pipeline{
		splitter:            splitter,
		supportedExtensions: extMap,
		logger:              logger,
	}
}

// Supported reports whether the pipeline can load the given path.
func (p *Pipeline) Supported(path string) bool {
	return p.supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// ProcessFile loads and chunks a single file.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) ([]knowledge.Document, error) {
	if !p.Supported(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
	}

	docs, err := loadFile(ctx, path)
	if err != nil {
		return nil, err
	}

	return p.chunk(path, docs)
}

// ProcessDirectory walks the directory tree, loading and chunking every
// supported file. Per-file failures are logged and counted, not fatal;
// the error return covers only walk-level failures.
func (p *Pipeline) ProcessDirectory(ctx context.Context, dir string) ([]knowledge.Document, Result, error) {
	start := time.Now()
	var result Result
	var chunks []knowledge.Document

	matcher := p.loadIgnoreFile(dir)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		if matcher != nil && matcher.MatchesPath(rel) {
			result.FilesSkipped++
			return nil
		}
		if !p.Supported(path) {
			result.FilesSkipped++
			return nil
		}
		if info, err := d.Info(); err == nil && info.Size() > maxFileSize {
			p.logger.Warn("skipping oversized file", "path", path, "size", info.Size())
			result.FilesSkipped++
			return nil
		}

		fileChunks, err := p.ProcessFile(ctx, path)
		if err != nil {
			p.logger.Warn("failed to load document", "path", path, "error", err)
			result.FilesFailed++
			return nil
		}

		chunks = append(chunks, fileChunks...)
		result.FilesAdded++
		p.logger.Debug("loaded document", "path", path, "chunks", len(fileChunks))
		return nil
	})
	if err != nil {
		return nil, result, fmt.Errorf("walking %s: %w", dir, err)
	}

	result.Chunks = len(chunks)
	result.Duration = time.Since(start)

	p.logger.Info("ingestion complete",
		"dir", dir,
		"files", result.FilesAdded,
		"skipped", result.FilesSkipped,
		"failed", result.FilesFailed,
		"chunks", result.Chunks,
		"duration", result.Duration,
	)

	return chunks, result, nil
}

// chunk splits loaded documents and converts them to knowledge documents.
// Chunk IDs are derived from the source path and chunk index so that
// re-ingesting a file upserts in place instead of duplicating.
func (p *Pipeline) chunk(path string, docs []schema.Document) ([]knowledge.Document, error) {
	var out []knowledge.Document
	now := time.Now()
	index := 0

	for _, doc := range docs {
		pieces, err := p.splitter.SplitText(doc.PageContent)
		if err != nil {
			return nil, fmt.Errorf("splitting %s: %w", path, err)
		}

		for _, piece := range pieces {
			if strings.TrimSpace(piece) == "" {
				continue
			}

			metadata := map[string]string{
				knowledge.MetaSource:   path,
				knowledge.MetaFilename: filepath.Base(path),
				knowledge.MetaChunk:    strconv.Itoa(index),
			}
			if page, ok := doc.Metadata["page"]; ok {
				metadata["page"] = fmt.Sprint(page)
			}

			out = append(out, knowledge.Document{
				ID:       fmt.Sprintf("%s#%d", filepath.ToSlash(path), index),
				Content:  piece,
				Metadata: metadata,
				CreateAt: now,
			})
			index++
		}
	}

	return out, nil
}

// loadIgnoreFile compiles the directory's .ragignore, if present.
func (p *Pipeline) loadIgnoreFile(dir string) *ignore.GitIgnore {
	path := filepath.Join(dir, IgnoreFileName)
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	matcher, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		p.logger.Warn("ignoring malformed ignore file", "path", path, "error", err)
		return nil
	}
	return matcher
}
