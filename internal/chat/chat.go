// Package chat implements the retrieval-augmented conversation agent.
//
// Each turn runs the pipeline: load history, rephrase follow-ups into
// standalone questions, retrieve relevant passages, generate an answer
// grounded in them, and persist the exchange.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/docuchat/docuchat/internal/knowledge"
	"github.com/docuchat/docuchat/internal/retriever"
)

// Retrieval strategy names accepted by Execute.
const (
	StrategyBasic     = "basic"
	StrategyThreshold = "threshold"
	StrategyDiverse   = "diverse"
)

const (
	// rephraseTimeout bounds the history rephrase call; on timeout the
	// original question is used for retrieval instead.
	rephraseTimeout = 15 * time.Second

	// previewLength is how much passage text a Source carries.
	previewLength = 150

	// fallbackResponseMessage is returned when the model produces an
	// empty response.
	fallbackResponseMessage = "I apologize, but I couldn't generate a response. Please try rephrasing your question."
)

// Sentinel errors for agent operations.
var (
	// ErrInvalidSession indicates the session ID is invalid or malformed.
	ErrInvalidSession = errors.New("invalid session")

	// ErrExecutionFailed indicates agent execution failed.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrUnknownStrategy indicates an unrecognized retrieval strategy name.
	ErrUnknownStrategy = errors.New("unknown retrieval strategy")
)

// StreamCallback is called for each chunk of a streaming response.
// Return an error to abort the stream.
type StreamCallback func(ctx context.Context, chunk *ai.ModelResponseChunk) error

// Source describes one retrieved passage backing an answer.
type Source struct {
	Filename string `json:"filename"`
	Page     string `json:"page,omitempty"`
	Preview  string `json:"preview"`
}

// Response is the complete result of one conversation turn.
type Response struct {
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources"`
	Retrieved int      `json:"retrieved"`
}

// Retriever is the slice of the retrieval layer the agent depends on.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]knowledge.Result, error)
	RetrieveWithThreshold(ctx context.Context, query string, k int, threshold float32) ([]knowledge.Result, error)
	RetrieveDiverse(ctx context.Context, query string, k int) ([]knowledge.Result, error)
}

// SessionStore is the slice of session persistence the agent depends on.
type SessionStore interface {
	History(ctx context.Context, sessionID uuid.UUID, window int) ([]*ai.Message, error)
	AppendExchange(ctx context.Context, sessionID uuid.UUID, userText, modelText string) error
}

// Config contains all required parameters for the chat agent.
type Config struct {
	Genkit    *genkit.Genkit
	Retriever Retriever
	Sessions  SessionStore
	Logger    *slog.Logger

	ModelName     string  // Provider-qualified model name, e.g. "ollama/llama3.1"
	Temperature   float64 // Sampling temperature
	TopK          int     // Default passages per retrieval
	HistoryWindow int     // Messages of history carried into each turn

	RetryConfig RetryConfig   // Zero value uses defaults
	RateLimiter *rate.Limiter // nil = default limiter
}

// validate checks that required dependencies are present.
func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Retriever == nil {
		return errors.New("retriever is required")
	}
	if cfg.Sessions == nil {
		return errors.New("session store is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// Stats is a snapshot of the agent's lifetime counters.
type Stats struct {
	Turns     int64 `json:"turns"`     // Completed conversation turns
	Retries   int64 `json:"retries"`   // Generate attempts beyond the first
	Fallbacks int64 `json:"fallbacks"` // Empty responses replaced by the fallback message
}

// Agent runs retrieval-augmented conversations.
//
// All configuration is captured immutably at construction; the only
// mutable state is the atomic stats counters, so concurrent requests
// are safe.
type Agent struct {
	modelName     string
	temperature   float64
	topK          int
	historyWindow int

	retryConfig RetryConfig
	rateLimiter *rate.Limiter

	g         *genkit.Genkit
	retriever Retriever
	sessions  SessionStore
	logger    *slog.Logger

	turns     atomic.Int64
	retries   atomic.Int64
	fallbacks atomic.Int64
}

// Stats returns a snapshot of the agent's counters.
func (a *Agent) Stats() Stats {
	return Stats{
		Turns:     a.turns.Load(),
		Retries:   a.retries.Load(),
		Fallbacks: a.fallbacks.Load(),
	}
}

// New creates an Agent from cfg.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = 4
	}

	historyWindow := cfg.HistoryWindow
	if historyWindow <= 0 {
		historyWindow = 10
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}

	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	a := &Agent{
		modelName:     cfg.ModelName,
		temperature:   cfg.Temperature,
		topK:          topK,
		historyWindow: historyWindow,
		retryConfig:   retryConfig,
		rateLimiter:   rl,
		g:             cfg.Genkit,
		retriever:     cfg.Retriever,
		sessions:      cfg.Sessions,
		logger:        cfg.Logger,
	}

	a.logger.Info("chat agent initialized",
		"model", a.modelName,
		"top_k", a.topK,
		"history_window", a.historyWindow,
	)
	return a, nil
}

// Execute runs one conversation turn without streaming.
func (a *Agent) Execute(ctx context.Context, sessionID uuid.UUID, query, strategy string) (*Response, error) {
	return a.ExecuteStream(ctx, sessionID, query, strategy, nil)
}

// ExecuteStream runs one conversation turn. If callback is non-nil it
// receives each response chunk as it is generated; the complete
// response is returned either way.
func (a *Agent) ExecuteStream(ctx context.Context, sessionID uuid.UUID, query, strategy string, callback StreamCallback) (*Response, error) {
	a.logger.Debug("executing chat turn",
		"session_id", sessionID,
		"strategy", strategy,
		"streaming", callback != nil,
	)

	history, err := a.sessions.History(ctx, sessionID, a.historyWindow)
	if err != nil {
		return nil, fmt.Errorf("getting history: %w", err)
	}

	// Follow-up questions lean on pronouns the vector search cannot
	// resolve; rephrase against history before retrieving.
	searchQuery := query
	if len(history) > 0 {
		if rephrased := a.rephraseQuestion(ctx, query, history); rephrased != "" {
			searchQuery = rephrased
		}
	}

	results, err := a.retrieve(ctx, searchQuery, strategy)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	contextBlock := retriever.BuildContext(results)

	resp, err := a.generateAnswer(ctx, query, contextBlock, history, callback)
	if err != nil {
		return nil, err
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		a.logger.Warn("model returned empty response", "session_id", sessionID)
		answer = fallbackResponseMessage
		a.fallbacks.Add(1)
	}

	// Best-effort: a failed history write should not fail the turn.
	if err := a.sessions.AppendExchange(ctx, sessionID, query, answer); err != nil {
		a.logger.Warn("appending exchange to history", "error", err)
	}

	a.turns.Add(1)
	return &Response{
		Answer:    answer,
		Sources:   buildSources(results),
		Retrieved: len(results),
	}, nil
}

// EvaluateGrounding asks the model whether an answer is supported by
// the context it was generated from. Used by the quality check path.
func (a *Agent) EvaluateGrounding(ctx context.Context, question, contextBlock, answer string) (string, error) {
	resp, err := a.generateWithRetry(ctx, []ai.GenerateOption{
		ai.WithModelName(a.modelName),
		ai.WithPrompt(buildGroundingPrompt(question, contextBlock, answer)),
	})
	if err != nil {
		return "", fmt.Errorf("evaluating grounding: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (a *Agent) retrieve(ctx context.Context, query, strategy string) ([]knowledge.Result, error) {
	switch strategy {
	case "", StrategyBasic:
		return a.retriever.Retrieve(ctx, query, a.topK)
	case StrategyThreshold:
		return a.retriever.RetrieveWithThreshold(ctx, query, a.topK, 0)
	case StrategyDiverse:
		return a.retriever.RetrieveDiverse(ctx, query, a.topK)
	default:
		return nil, fmt.Errorf("strategy %q: %w", strategy, ErrUnknownStrategy)
	}
}

// rephraseQuestion turns a follow-up into a standalone question.
// Failures are non-fatal; retrieval falls back to the original text.
func (a *Agent) rephraseQuestion(ctx context.Context, question string, history []*ai.Message) string {
	rephraseCtx, cancel := context.WithTimeout(ctx, rephraseTimeout)
	defer cancel()

	resp, err := a.generateWithRetry(rephraseCtx, []ai.GenerateOption{
		ai.WithModelName(a.modelName),
		ai.WithPrompt(buildRephrasePrompt(question, history)),
	})
	if err != nil {
		a.logger.Debug("rephrase failed, using original question", "error", err)
		return ""
	}

	rephrased := strings.TrimSpace(resp.Text())
	if rephrased != "" && rephrased != question {
		a.logger.Debug("rephrased query", "original_len", len(question), "rephrased_len", len(rephrased))
	}
	return rephrased
}

func (a *Agent) generateAnswer(ctx context.Context, question, contextBlock string, history []*ai.Message, callback StreamCallback) (*ai.ModelResponse, error) {
	messages := make([]*ai.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(question)))

	opts := []ai.GenerateOption{
		ai.WithModelName(a.modelName),
		ai.WithSystem(buildAnswerSystem(contextBlock)),
		ai.WithMessages(messages...),
		ai.WithConfig(&ai.GenerationCommonConfig{Temperature: a.temperature}),
	}
	if callback != nil {
		opts = append(opts, ai.WithStreaming(ai.ModelStreamCallback(callback)))
	}

	return a.generateWithRetry(ctx, opts)
}

func buildSources(results []knowledge.Result) []Source {
	sources := make([]Source, 0, len(results))
	for _, res := range results {
		src := Source{
			Filename: res.Document.Metadata[knowledge.MetaFilename],
			Page:     res.Document.Metadata["page"],
		}
		if src.Filename == "" {
			src.Filename = "Unknown"
		}
		preview := res.Document.Content
		if len(preview) > previewLength {
			preview = preview[:previewLength] + "..."
		}
		src.Preview = preview
		sources = append(sources, src)
	}
	return sources
}
