package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/kztmrk/kaiwa/internal/agent"
	"github.com/kztmrk/kaiwa/internal/chat"
	"github.com/kztmrk/kaiwa/internal/llm"
	"github.com/kztmrk/kaiwa/internal/log"
	"github.com/kztmrk/kaiwa/internal/search"
)

// SSE event types for chat streaming.
const (
	EventChunk  = "chunk"  // partial response text
	EventSearch = "search" // search progress notification
	EventDone   = "done"   // stream completed successfully
	EventError  = "error"  // turn failed
)

// maxRequestBytes caps chat request bodies.
const maxRequestBytes = 1 << 20

// chatHandler serves the chat endpoints against one shared conversation.
// Turns are serialized: the conversation is a single history and interleaved
// turns would corrupt its ordering.
type chatHandler struct {
	responder agent.Responder
	history   *chat.History
	logger    log.Logger

	turnMu sync.Mutex
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response        string          `json:"response"`
	Incomplete      bool            `json:"incomplete,omitempty"`
	SearchPerformed bool            `json:"search_performed,omitempty"`
	SearchQuery     string          `json:"search_query,omitempty"`
	Results         []search.Result `json:"results,omitempty"`
}

// ChunkPayload is the SSE data payload for streaming text chunks.
type ChunkPayload struct {
	Text string `json:"text"`
}

// SearchPayload is the SSE data payload for search progress.
type SearchPayload struct {
	Stage string `json:"stage"`
	Query string `json:"query,omitempty"`
}

// DonePayload is the SSE data payload when streaming completes successfully.
type DonePayload struct {
	Response        string `json:"response"`
	SearchPerformed bool   `json:"search_performed,omitempty"`
	SearchQuery     string `json:"search_query,omitempty"`
}

// ErrorPayload is the SSE data payload when a turn fails. Incomplete marks
// that partial text was already streamed and must not be treated as a full
// answer.
type ErrorPayload struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Incomplete bool   `json:"incomplete,omitempty"`
}

// send handles POST /api/v1/chat: one full turn, response as a single JSON
// document.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	msg, ok := h.decodeMessage(w, r)
	if !ok {
		return
	}

	h.turnMu.Lock()
	defer h.turnMu.Unlock()

	snapshot, epoch := h.history.Snapshot()
	reply, err := h.responder.Respond(r.Context(), msg, agent.Options{History: snapshot})
	if err != nil {
		if reply != nil && reply.Incomplete {
			// The partial is returned but never recorded in history.
			writeJSON(w, http.StatusBadGateway, chatResponse{
				Response:        reply.Content,
				Incomplete:      true,
				SearchPerformed: reply.SearchPerformed,
				SearchQuery:     reply.SearchQuery,
			}, h.logger)
			return
		}
		h.logger.Error("chat turn failed", "error", err)
		writeError(w, http.StatusBadGateway, errorCode(err), "completion failed", h.logger)
		return
	}

	h.record(epoch, msg, reply.Content)

	writeJSON(w, http.StatusOK, chatResponse{
		Response:        reply.Content,
		SearchPerformed: reply.SearchPerformed,
		SearchQuery:     reply.SearchQuery,
		Results:         reply.Results,
	}, h.logger)
}

// stream handles POST /api/v1/chat/stream: the same turn streamed over SSE.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	msg, ok := h.decodeMessage(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	h.turnMu.Lock()
	defer h.turnMu.Unlock()

	snapshot, epoch := h.history.Snapshot()

	opts := agent.Options{
		History: snapshot,
		OnChunk: func(_ context.Context, chunk string) error {
			return writeEvent(w, flusher, EventChunk, ChunkPayload{Text: chunk})
		},
		OnStatus: func(_ context.Context, status agent.Status) {
			_ = writeEvent(w, flusher, EventSearch, SearchPayload{
				Stage: string(status.Stage),
				Query: status.Query,
			})
		},
	}

	reply, err := h.responder.Respond(r.Context(), msg, opts)
	if err != nil {
		incomplete := reply != nil && reply.Incomplete
		h.logger.Error("stream turn failed", "error", err, "incomplete", incomplete)
		_ = writeEvent(w, flusher, EventError, ErrorPayload{
			Code:       errorCode(err),
			Message:    err.Error(),
			Incomplete: incomplete,
		})
		return
	}

	h.record(epoch, msg, reply.Content)

	_ = writeEvent(w, flusher, EventDone, DonePayload{
		Response:        reply.Content,
		SearchPerformed: reply.SearchPerformed,
		SearchQuery:     reply.SearchQuery,
	})
}

// getHistory handles GET /api/v1/history.
func (h *chatHandler) getHistory(w http.ResponseWriter, _ *http.Request) {
	messages := h.history.Messages()
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": messages,
		"count":    len(messages),
	}, h.logger)
}

// reset handles POST /api/v1/reset. The reset is atomic: any turn still in
// flight finds its epoch stale and its output is discarded.
func (h *chatHandler) reset(w http.ResponseWriter, _ *http.Request) {
	h.history.Reset()
	h.logger.Info("conversation reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"}, h.logger)
}

// listAgents handles GET /api/v1/agents.
func (h *chatHandler) listAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agents": agent.Available(),
		"active": h.responder.Name(),
	}, h.logger)
}

func (h *chatHandler) decodeMessage(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return "", false
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "missing_message", "message is required", h.logger)
		return "", false
	}
	return req.Message, true
}

// record appends the completed turn, tolerating a reset that raced it.
func (h *chatHandler) record(epoch uint64, user, assistant string) {
	if err := h.history.Append(epoch, chat.User(user), chat.Assistant(assistant)); err != nil {
		if errors.Is(err, chat.ErrStaleEpoch) {
			h.logger.Info("conversation was reset mid-turn, discarding output")
			return
		}
		h.logger.Error("recording turn", "error", err)
	}
}

// errorCode maps turn errors to stable API codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, llm.ErrStreamFailed):
		return "completion_stream_failed"
	case errors.Is(err, llm.ErrCircuitOpen):
		return "model_unavailable"
	case errors.Is(err, search.ErrUnavailable):
		return "search_unavailable"
	default:
		return "stream_error"
	}
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
