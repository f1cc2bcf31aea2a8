package chat

import (
	"errors"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"

	"github.com/docuchat/docuchat/internal/knowledge"
)

func TestConfigValidate(t *testing.T) {
	// validate runs before any dependency is touched, so zeroed
	// struct fields are fine here.
	base := func() Config {
		return Config{
			Genkit:    nil,
			Retriever: nil,
			Sessions:  nil,
			Logger:    nil,
			ModelName: "ollama/llama3.1",
		}
	}

	cfg := base()
	if err := cfg.validate(); err == nil {
		t.Error("validate() with nil genkit should fail")
	}
}

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("429 Too Many Requests"), true},
		{"server error", errors.New("HTTP 503 Service Unavailable"), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"timeout", errors.New("context deadline exceeded: timeout"), true},
		{"bad request", errors.New("400 invalid model name"), false},
		{"generation failed", errors.New("model produced invalid output"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestBuildAnswerSystem(t *testing.T) {
	got := buildAnswerSystem("[Document 1] (Source: a.txt)\nAlpha.")
	if !strings.Contains(got, "Alpha.") {
		t.Errorf("context block missing from system prompt:\n%s", got)
	}
	if !strings.Contains(got, "ONLY the information from the context") {
		t.Errorf("grounding instruction missing from system prompt")
	}
}

func TestBuildAnswerSystemEmptyContext(t *testing.T) {
	got := buildAnswerSystem("")
	if !strings.Contains(got, "no documents matched") {
		t.Errorf("empty context placeholder missing:\n%s", got)
	}
}

func TestBuildRephrasePrompt(t *testing.T) {
	history := []*ai.Message{
		ai.NewUserMessage(ai.NewTextPart("What is pgvector?")),
		ai.NewModelMessage(ai.NewTextPart("A Postgres extension for vector search.")),
	}

	got := buildRephrasePrompt("How do I install it?", history)

	for _, want := range []string{
		"Human: What is pgvector?",
		"Assistant: A Postgres extension for vector search.",
		"Follow-up Question: How do I install it?",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("rephrase prompt missing %q:\n%s", want, got)
		}
	}
}

func TestFormatHistoryWindow(t *testing.T) {
	var history []*ai.Message
	for i := 0; i < 6; i++ {
		history = append(history,
			ai.NewUserMessage(ai.NewTextPart("old question")),
		)
	}
	history = append(history, ai.NewUserMessage(ai.NewTextPart("recent question")))

	got := formatHistory(history, 4)

	if count := strings.Count(got, "Human:"); count != 4 {
		t.Errorf("window kept %d messages, want 4", count)
	}
	if !strings.Contains(got, "recent question") {
		t.Errorf("window dropped the most recent message:\n%s", got)
	}
}

func TestFormatHistorySkipsUnknownRoles(t *testing.T) {
	history := []*ai.Message{
		{Role: ai.RoleSystem, Content: []*ai.Part{ai.NewTextPart("system text")}},
		ai.NewUserMessage(ai.NewTextPart("question")),
	}

	got := formatHistory(history, 4)
	if strings.Contains(got, "system text") {
		t.Errorf("system message leaked into transcript:\n%s", got)
	}
}

func TestBuildGroundingPrompt(t *testing.T) {
	got := buildGroundingPrompt("Q?", "ctx", "A.")
	for _, want := range []string{"Question: Q?", "Context: ctx", "Answer: A.", "Grounded: Yes/No"} {
		if !strings.Contains(got, want) {
			t.Errorf("grounding prompt missing %q", want)
		}
	}
}

func TestBuildSources(t *testing.T) {
	long := strings.Repeat("x", 200)
	results := []knowledge.Result{
		{
			Document: knowledge.Document{
				Content:  long,
				Metadata: map[string]string{knowledge.MetaFilename: "big.pdf", "page": "7"},
			},
			Similarity: 0.9,
		},
		{
			Document: knowledge.Document{
				Content:  "short",
				Metadata: map[string]string{},
			},
			Similarity: 0.8,
		},
	}

	sources := buildSources(results)
	if len(sources) != 2 {
		t.Fatalf("len(sources) = %d, want 2", len(sources))
	}
	if sources[0].Filename != "big.pdf" || sources[0].Page != "7" {
		t.Errorf("source[0] = %+v, want filename big.pdf page 7", sources[0])
	}
	if len(sources[0].Preview) != previewLength+3 {
		t.Errorf("preview length = %d, want %d", len(sources[0].Preview), previewLength+3)
	}
	if sources[1].Filename != "Unknown" {
		t.Errorf("missing filename should map to Unknown, got %q", sources[1].Filename)
	}
	if sources[1].Preview != "short" {
		t.Errorf("short content should not be truncated, got %q", sources[1].Preview)
	}
}
