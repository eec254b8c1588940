package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/halcyon0/halcyon/internal/companion"
	"github.com/halcyon0/halcyon/internal/knowledge"
)

// CompanionStore persists persona configuration.
type CompanionStore interface {
	Create(ctx context.Context, c *companion.Companion) error
	Get(ctx context.Context, id uuid.UUID) (*companion.Companion, error)
	Update(ctx context.Context, c *companion.Companion, ownerID string) error
	Delete(ctx context.Context, id uuid.UUID, ownerID string) error
}

// Indexer writes a companion's archival document.
type Indexer interface {
	Index(ctx context.Context, companionID uuid.UUID, documentID, content string) error
}

// companionHandler serves persona CRUD. Mutations are owner-only; the
// store enforces ownership and reports a miss as not found.
type companionHandler struct {
	store   CompanionStore
	indexer Indexer
	logger  *slog.Logger
}

type companionBody struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Instructions string `json:"instructions"`
	Seed         string `json:"seed"`
	Src          string `json:"src"`

	// Backstory is indexed as the companion's archival document when
	// present. It is write-only: reads never return it.
	Backstory string `json:"backstory,omitempty"`
}

type companionResponse struct {
	ID           uuid.UUID `json:"id"`
	UserID       string    `json:"userId"`
	UserName     string    `json:"userName"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Instructions string    `json:"instructions"`
	Seed         string    `json:"seed"`
	Src          string    `json:"src"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toCompanionResponse(c *companion.Companion) companionResponse {
	return companionResponse{
		ID:           c.ID,
		UserID:       c.UserID,
		UserName:     c.UserName,
		Name:         c.Name,
		Description:  c.Description,
		Instructions: c.Instructions,
		Seed:         c.Seed,
		Src:          c.Src,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// create handles POST /api/v1/companions.
func (h *companionHandler) create(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())
	if id.UserID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	body, ok := h.decode(w, r)
	if !ok {
		return
	}

	c := &companion.Companion{
		UserID:       id.UserID,
		UserName:     id.UserName,
		Name:         body.Name,
		Description:  body.Description,
		Instructions: body.Instructions,
		Seed:         body.Seed,
		Src:          body.Src,
	}
	if err := h.store.Create(r.Context(), c); err != nil {
		h.logger.Error("creating companion", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	if err := h.indexBackstory(r.Context(), c.ID, body.Backstory); err != nil {
		h.logger.Error("indexing backstory", "companion_id", c.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, toCompanionResponse(c))
}

// get handles GET /api/v1/companions/{id}.
func (h *companionHandler) get(w http.ResponseWriter, r *http.Request) {
	companionID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	c, err := h.store.Get(r.Context(), companionID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCompanionResponse(c))
}

// update handles PATCH /api/v1/companions/{id}.
func (h *companionHandler) update(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())
	if id.UserID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	companionID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	body, ok := h.decode(w, r)
	if !ok {
		return
	}

	c := &companion.Companion{
		ID:           companionID,
		UserID:       id.UserID,
		UserName:     id.UserName,
		Name:         body.Name,
		Description:  body.Description,
		Instructions: body.Instructions,
		Seed:         body.Seed,
		Src:          body.Src,
	}
	if err := h.store.Update(r.Context(), c, id.UserID); err != nil {
		h.writeStoreError(w, err)
		return
	}

	if err := h.indexBackstory(r.Context(), companionID, body.Backstory); err != nil {
		h.logger.Error("indexing backstory", "companion_id", companionID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toCompanionResponse(c))
}

// remove handles DELETE /api/v1/companions/{id}.
func (h *companionHandler) remove(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())
	if id.UserID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	companionID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), companionID, id.UserID); err != nil {
		h.writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *companionHandler) decode(w http.ResponseWriter, r *http.Request) (companionBody, bool) {
	var body companionBody
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return body, false
	}
	if body.Name == "" || body.Instructions == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name and instructions are required")
		return body, false
	}
	return body, true
}

func (h *companionHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	companionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "companion not found")
		return uuid.Nil, false
	}
	return companionID, true
}

func (h *companionHandler) indexBackstory(ctx context.Context, companionID uuid.UUID, backstory string) error {
	if backstory == "" || h.indexer == nil {
		return nil
	}
	return h.indexer.Index(ctx, companionID, knowledge.DocumentID(companionID), backstory)
}

func (h *companionHandler) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, companion.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "companion not found")
		return
	}
	h.logger.Error("companion store operation failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
