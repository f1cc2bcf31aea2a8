package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/firebase/genkit/go/genkit"

	"github.com/docuchat/docuchat/internal/chat"
	"github.com/docuchat/docuchat/internal/log"
)

// ChatHandler handles the chat endpoints over the Genkit flow.
//
//   - POST /api/chat        - synchronous chat (JSON request/response)
//   - POST /api/chat/stream - streaming chat (Server-Sent Events)
//
// Both endpoints run the same flow; the synchronous one goes through
// genkit.Handler, the streaming one iterates Flow.Stream.
type ChatHandler struct {
	chatFlow *chat.Flow
	agent    *chat.Agent
	logger   log.Logger
}

// NewChatHandler creates a chat handler for the given flow. agent is
// only used for the stats endpoint and may be nil in tests.
func NewChatHandler(flow *chat.Flow, agent *chat.Agent, logger log.Logger) *ChatHandler {
	return &ChatHandler{chatFlow: flow, agent: agent, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	if h.chatFlow == nil {
		h.logger.Warn("chat flow is nil, chat endpoints not registered")
		return
	}
	mux.Handle("POST /api/chat", genkit.Handler(h.chatFlow))
	mux.HandleFunc("POST /api/chat/stream", h.handleStream)
	if h.agent != nil {
		mux.HandleFunc("GET /api/chat/stats", h.handleStats)
	}
}

// handleStats reports the agent's lifetime counters.
func (h *ChatHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.agent.Stats())
}

// SSEChunkData is the payload of "chunk" events.
type SSEChunkData struct {
	Text string `json:"text"`
}

// SSEDoneData is the payload of the final "done" event.
type SSEDoneData struct {
	Answer    string        `json:"answer"`
	SessionID string        `json:"sessionId"`
	Sources   []chat.Source `json:"sources"`
}

// SSEErrorData is the payload of "error" events.
type SSEErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleStream streams a chat response as Server-Sent Events.
//
// Request body: {"query": "...", "sessionId": "...", "strategy": "..."}
// Events: chunk {"text"}, done {"answer","sessionId","sources"},
// error {"code","message"}.
func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported by response writer")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var input chat.Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeSSEError(w, flusher, "INVALID_REQUEST", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if input.SessionID == "" {
		h.writeSSEError(w, flusher, "MISSING_SESSION_ID", "sessionId is required")
		return
	}
	if input.Query == "" {
		h.writeSSEError(w, flusher, "MISSING_QUERY", "query is required")
		return
	}

	ctx := r.Context()
	h.logger.Debug("SSE stream started", "sessionId", input.SessionID)

	var finalOutput chat.Output
	for streamValue, err := range h.chatFlow.Stream(ctx, input) {
		// A disconnected client cancels the request context.
		select {
		case <-ctx.Done():
			h.logger.Debug("client disconnected", "sessionId", input.SessionID)
			return
		default:
		}

		if err != nil {
			h.logger.Error("stream failed", "error", err, "sessionId", input.SessionID)
			h.writeSSEError(w, flusher, "STREAM_ERROR", err.Error())
			return
		}
		if streamValue.Done {
			finalOutput = streamValue.Output
			break
		}
		if streamValue.Stream.Text != "" {
			h.writeSSEChunk(w, flusher, streamValue.Stream.Text)
		}
	}

	h.writeSSEDone(w, flusher, finalOutput)
	h.logger.Debug("SSE stream completed",
		"sessionId", input.SessionID,
		"answerLen", len(finalOutput.Answer))
}

func (h *ChatHandler) writeSSEChunk(w http.ResponseWriter, flusher http.Flusher, text string) {
	data, _ := json.Marshal(SSEChunkData{Text: text})
	fmt.Fprintf(w, "event: chunk\ndata: %s\n\n", data)
	flusher.Flush()
}

func (h *ChatHandler) writeSSEDone(w http.ResponseWriter, flusher http.Flusher, out chat.Output) {
	data, _ := json.Marshal(SSEDoneData{
		Answer:    out.Answer,
		SessionID: out.SessionID,
		Sources:   out.Sources,
	})
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", data)
	flusher.Flush()
}

func (h *ChatHandler) writeSSEError(w http.ResponseWriter, flusher http.Flusher, code, message string) {
	data, _ := json.Marshal(SSEErrorData{Code: code, Message: message})
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
	flusher.Flush()
}
