package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lorekit/lore/internal/log"
	"github.com/lorekit/lore/internal/rag"
)

// ChatEngine is the piece of the rag engine the handlers need.
type ChatEngine interface {
	Chat(ctx context.Context, messages []rag.Message, stream rag.StreamFunc) (*rag.Response, error)
}

// ChatRequest is the request body of both chat endpoints.
type ChatRequest struct {
	Messages []rag.Message `json:"messages"`
}

// ChatResult is the non-streaming response body.
type ChatResult struct {
	Result rag.Message      `json:"result"`
	Nodes  []rag.SourceNode `json:"nodes"`
}

// ChatHandler serves the chat endpoints.
type ChatHandler struct {
	engine ChatEngine
	logger log.Logger
}

// NewChatHandler creates a chat handler backed by engine.
func NewChatHandler(engine ChatEngine, logger log.Logger) *ChatHandler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &ChatHandler{engine: engine, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handleStream)
	mux.HandleFunc("POST /api/chat/request", h.handleRequest)
}

// decodeRequest parses and validates the shared request shape. A false
// return means the error response has already been written.
func (h *ChatHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (*ChatRequest, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return nil, false
	}
	if err := rag.ValidateMessages(req.Messages); err != nil {
		switch {
		case errors.Is(err, rag.ErrNoMessages):
			writeError(w, http.StatusBadRequest, "invalid_request", "at least one user message is required")
		case errors.Is(err, rag.ErrLastNotUser):
			writeError(w, http.StatusBadRequest, "invalid_request", "last message must be from the user")
		default:
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		}
		return nil, false
	}
	return &req, true
}

// handleStream answers POST /api/chat with a Vercel data stream: the
// generated tokens as text frames followed by one sources data frame.
func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	sw, err := newStreamWriter(w)
	if err != nil {
		h.logger.Error("streaming unsupported by response writer")
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "")
		return
	}

	ctx := r.Context()
	resp, err := h.engine.Chat(ctx, req.Messages, func(ctx context.Context, text string) error {
		// Stop generating when the client goes away.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if text == "" {
			return nil
		}
		return sw.WriteText(text)
	})
	if err != nil {
		if ctx.Err() != nil {
			h.logger.Debug("client disconnected during stream")
			return
		}
		h.logger.Error("chat failed", "error", err)
		if !sw.Started() {
			writeError(w, http.StatusInternalServerError, "chat_failed", "failed to generate a response")
		}
		return
	}

	if err := sw.WriteSources(resp.Nodes); err != nil {
		h.logger.Debug("writing sources frame failed", "error", err)
	}
}

// handleRequest answers POST /api/chat/request with the whole result at
// once.
func (h *ChatHandler) handleRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	resp, err := h.engine.Chat(r.Context(), req.Messages, nil)
	if err != nil {
		h.logger.Error("chat failed", "error", err)
		writeError(w, http.StatusInternalServerError, "chat_failed", "failed to generate a response")
		return
	}

	nodes := resp.Nodes
	if nodes == nil {
		nodes = []rag.SourceNode{}
	}
	writeJSON(w, http.StatusOK, ChatResult{
		Result: rag.Message{Role: rag.RoleAssistant, Content: resp.Content},
		Nodes:  nodes,
	})
}
