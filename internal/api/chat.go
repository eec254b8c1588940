package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/halcyon0/halcyon/internal/chat"
)

// maxBodyBytes limits request body size.
const maxBodyBytes = 1 << 20

// Responder runs one conversational exchange.
type Responder interface {
	Respond(ctx context.Context, req chat.Request) (*chat.Result, error)
}

// chatHandler serves the conversational endpoint.
type chatHandler struct {
	engine Responder
	logger *slog.Logger
}

type chatRequest struct {
	Prompt string `json:"prompt"`
}

// send handles POST /api/v1/chat/{companionId}. The reply is streamed as
// plain text; a single flushed chunk satisfies the transport contract.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())

	companionID, err := uuid.Parse(r.PathValue("companionId"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "companion not found")
		return
	}

	var body chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if body.Prompt == "" {
		writeError(w, http.StatusBadRequest, "missing_prompt", "prompt is required")
		return
	}

	result, err := h.engine.Respond(r.Context(), chat.Request{
		CompanionID: companionID,
		UserID:      id.UserID,
		UserName:    id.UserName,
		Prompt:      body.Prompt,
		RateKey:     r.URL.Path + ":" + id.UserID,
	})
	if err != nil {
		h.writeRespondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(result.Text)); err != nil {
		h.logger.Debug("writing chat response", "error", err)
		return
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// writeRespondError maps engine failures onto the status taxonomy. Anything
// outside the sentinel set is a generic internal error.
func (h *chatHandler) writeRespondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, chat.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
	case errors.Is(err, chat.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
	case errors.Is(err, chat.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "companion not found")
	default:
		h.logger.Error("chat request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
