package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
)

// Input defines the request payload for the chat flow.
type Input struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId"`
	Strategy  string `json:"strategy,omitempty"` // basic | threshold | diverse
}

// Output defines the response payload from the chat flow.
type Output struct {
	Answer    string   `json:"answer"`
	SessionID string   `json:"sessionId"`
	Sources   []Source `json:"sources"`
	Retrieved int      `json:"retrieved"`
}

// StreamChunk is the streaming output type for the chat flow.
type StreamChunk struct {
	Text string `json:"text"`
}

// FlowName is the registered name of the chat flow in Genkit.
const FlowName = "docuchat/chat"

// Flow is the Genkit streaming flow type for the chat agent.
// Exported for use with genkit.Handler().
type Flow = core.Flow[Input, Output, StreamChunk]

// Flow registration is global in Genkit; re-registration panics.
var (
	flowOnce sync.Once
	flow     *Flow
)

// NewFlow returns the chat flow singleton, defining it on first call.
// Subsequent calls return the existing flow.
func NewFlow(g *genkit.Genkit, agent *Agent) *Flow {
	flowOnce.Do(func() {
		flow = agent.DefineFlow(g)
	})
	return flow
}

// ResetFlowForTesting resets the flow singleton. Tests only.
func ResetFlowForTesting() {
	flowOnce = sync.Once{}
	flow = nil
}

// DefineFlow registers the chat flow with Genkit. Use NewFlow instead
// of calling this directly; double registration panics.
func (a *Agent) DefineFlow(g *genkit.Genkit) *Flow {
	return genkit.DefineStreamingFlow(g, FlowName,
		func(ctx context.Context, input Input, streamCb func(context.Context, StreamChunk) error) (Output, error) {
			sessionID, err := uuid.Parse(input.SessionID)
			if err != nil {
				return Output{SessionID: input.SessionID}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
			}

			var callback StreamCallback
			if streamCb != nil {
				callback = func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
					if chunk == nil {
						return nil
					}
					for _, part := range chunk.Content {
						if part != nil && part.Text != "" {
							if streamErr := streamCb(ctx, StreamChunk{Text: part.Text}); streamErr != nil {
								return streamErr
							}
						}
					}
					return nil
				}
			}

			resp, err := a.ExecuteStream(ctx, sessionID, input.Query, input.Strategy, callback)
			if err != nil {
				return Output{SessionID: input.SessionID}, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
			}

			return Output{
				Answer:    resp.Answer,
				SessionID: input.SessionID,
				Sources:   resp.Sources,
				Retrieved: resp.Retrieved,
			}, nil
		})
}
