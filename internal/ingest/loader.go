package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
)

// defaultSupportedExtensions are the file types we can load.
// PDF goes through the langchaingo PDF loader; everything else is
// treated as plain text.
var defaultSupportedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".pdf": true,
}

// loadFile loads a single file into langchaingo documents based on its
// extension. PDF files produce one document per page.
func loadFile(ctx context.Context, path string) ([]schema.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var docs []schema.Document
	switch ext {
	case ".pdf":
		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		docs, err = documentloaders.NewPDF(f, info.Size()).Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading PDF %s: %w", path, err)
		}
	case ".txt", ".md":
		docs, err = documentloaders.NewText(f).Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading text %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}

	// Attach source metadata to every loaded document.
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = make(map[string]any)
		}
		docs[i].Metadata["source"] = path
		docs[i].Metadata["filename"] = filepath.Base(path)
	}

	return docs, nil
}
