package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docuchat/docuchat/internal/knowledge"
	"github.com/docuchat/docuchat/internal/log"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("creating parent dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestProcessFile_TextChunking(t *testing.T) {
	dir := t.TempDir()
	// Two paragraphs, each larger than the chunk size, forces a split.
	content := strings.Repeat("alpha beta gamma delta. ", 20) + "\n\n" +
		strings.Repeat("epsilon zeta eta theta. ", 20)
	path := writeFile(t, dir, "notes.txt", content)

	p := New(200, 40, nil, log.NewNop())
	chunks, err := p.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}

	if len(chunks) < 2 {
		t.Fatalf("expected content to be split into multiple chunks, got %d", len(chunks))
	}

	for i, chunk := range chunks {
		if chunk.Content == "" {
			t.Errorf("chunk %d has empty content", i)
		}
		if chunk.Metadata[knowledge.MetaFilename] != "notes.txt" {
			t.Errorf("chunk %d missing filename metadata: %v", i, chunk.Metadata)
		}
		if chunk.Metadata[knowledge.MetaChunk] == "" {
			t.Errorf("chunk %d missing chunk index metadata", i)
		}
		if !strings.Contains(chunk.ID, "notes.txt#") {
			t.Errorf("chunk %d has unexpected ID %q", i, chunk.ID)
		}
	}

	// IDs must be unique for upsert idempotency.
	seen := make(map[string]bool)
	for _, chunk := range chunks {
		if seen[chunk.ID] {
			t.Errorf("duplicate chunk ID %q", chunk.ID)
		}
		seen[chunk.ID] = true
	}
}

func TestProcessFile_UnsupportedType(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "binary.exe", "not a document")

	p := New(500, 50, nil, log.NewNop())
	_, err := p.ProcessFile(context.Background(), path)
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestProcessDirectory_MixedContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "The first document is about databases.")
	writeFile(t, dir, "sub/b.md", "# Heading\n\nThe second document is about networks.")
	writeFile(t, dir, "c.exe", "unsupported")

	p := New(500, 50, nil, log.NewNop())
	chunks, result, err := p.ProcessDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("ProcessDirectory failed: %v", err)
	}

	if result.FilesAdded != 2 {
		t.Errorf("expected 2 files added, got %d", result.FilesAdded)
	}
	if result.FilesSkipped != 1 {
		t.Errorf("expected 1 file skipped, got %d", result.FilesSkipped)
	}
	if result.FilesFailed != 0 {
		t.Errorf("expected no failures, got %d", result.FilesFailed)
	}
	if result.Chunks != len(chunks) {
		t.Errorf("result.Chunks=%d but %d chunks returned", result.Chunks, len(chunks))
	}
	if len(chunks) < 2 {
		t.Errorf("expected at least one chunk per file, got %d", len(chunks))
	}
}

func TestProcessDirectory_RagIgnore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.txt", "kept document")
	writeFile(t, dir, "secret.txt", "ignored document")
	writeFile(t, dir, IgnoreFileName, "secret.txt\n")

	p := New(500, 50, nil, log.NewNop())
	chunks, result, err := p.ProcessDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("ProcessDirectory failed: %v", err)
	}

	if result.FilesAdded != 1 {
		t.Errorf("expected only keep.txt to be added, got %d files", result.FilesAdded)
	}
	for _, chunk := range chunks {
		if chunk.Metadata[knowledge.MetaFilename] == "secret.txt" {
			t.Error("ignored file leaked into chunks")
		}
	}
}

func TestProcessDirectory_EmptyDir(t *testing.T) {
	p := New(500, 50, nil, log.NewNop())
	chunks, result, err := p.ProcessDirectory(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("ProcessDirectory failed: %v", err)
	}
	if len(chunks) != 0 || result.FilesAdded != 0 {
		t.Errorf("expected empty result, got %d chunks, %d files", len(chunks), result.FilesAdded)
	}
}

func TestProcessDirectory_ContextCanceled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "content")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(500, 50, nil, log.NewNop())
	_, _, err := p.ProcessDirectory(ctx, dir)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNew_CustomExtensions(t *testing.T) {
	p := New(500, 50, []string{".TXT"}, log.NewNop())

	if !p.Supported("file.txt") {
		t.Error("expected case-insensitive extension match")
	}
	if p.Supported("file.md") {
		t.Error("expected .md to be unsupported with custom extension list")
	}
}
