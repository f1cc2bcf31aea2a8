package doctor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// OllamaClient speaks the small subset of the Ollama REST API setup needs:
// listing local models and pulling missing ones.
type OllamaClient struct {
	host   string
	client *http.Client
	logger *slog.Logger
}

// NewOllamaClient creates a client for the daemon at host
// (e.g. "http://localhost:11434").
func NewOllamaClient(host string, logger *slog.Logger) *OllamaClient {
	if logger == nil {
		logger = slog.Default()
	}

	return &OllamaClient{
		host:   strings.TrimRight(host, "/"),
		client: &http.Client{}, // pull duration is unbounded; callers pass ctx timeouts
		logger: logger,
	}
}

// Tags is the response of GET /api/tags.
type Tags struct {
	Models []TagModel `json:"models"`
}

// TagModel is one locally available model.
type TagModel struct {
	Name string `json:"name"`
}

// HasModel reports whether the named model is present, tolerating the
// implicit ":latest" tag.
func (t Tags) HasModel(name string) bool {
	for _, m := range t.Models {
		if m.Name == name || strings.TrimSuffix(m.Name, ":latest") == name {
			return true
		}
	}
	return false
}

// Tags lists the models available on the daemon.
func (c *OllamaClient) Tags(ctx context.Context) (Tags, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return Tags{}, fmt.Errorf("building tags request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Tags{}, fmt.Errorf("querying ollama daemon: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Tags{}, fmt.Errorf("ollama daemon returned %s", resp.Status)
	}

	var tags Tags
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return Tags{}, fmt.Errorf("decoding tags response: %w", err)
	}
	return tags, nil
}

// PullProgress is one line of the streaming pull response.
type PullProgress struct {
	Status    string `json:"status"`
	Completed int64  `json:"completed"`
	Total     int64  `json:"total"`
	Error     string `json:"error"`
}

// Pull downloads a model via POST /api/pull, invoking onProgress for
// each progress line. Blocks until the pull finishes or ctx is done.
func (c *OllamaClient) Pull(ctx context.Context, model string, onProgress func(PullProgress)) error {
	body, err := json.Marshal(map[string]string{"name": model})
	if err != nil {
		return fmt.Errorf("encoding pull request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building pull request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("pulling model %q: %w", model, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pull of %q returned %s", model, resp.Status)
	}

	dec := json.NewDecoder(resp.Body)
	for {
		var progress PullProgress
		if err := dec.Decode(&progress); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("decoding pull progress: %w", err)
		}
		if progress.Error != "" {
			return fmt.Errorf("pull of %q failed: %s", model, progress.Error)
		}
		if onProgress != nil {
			onProgress(progress)
		}
	}

	c.logger.Info("pulled model", "model", model, "elapsed", time.Since(start))
	return nil
}
