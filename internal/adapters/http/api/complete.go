// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/rival/internal/adapters/repository"
	service "github.com/okian/rival/internal/app"
)

// CompleteDependencies defines the interface for completion requests.
type CompleteDependencies interface {
	CompleteGoal(ctx context.Context, id string) error
}

// CompleteHandler handles goal completion requests.
type CompleteHandler struct {
	deps CompleteDependencies
}

// NewCompleteHandler creates a new completion handler.
func NewCompleteHandler(deps CompleteDependencies) *CompleteHandler {
	return &CompleteHandler{deps: deps}
}

// HandleComplete handles POST /goals/{id}/complete requests.
func (h *CompleteHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	// Extract path parameters after /goals/
	path := strings.TrimPrefix(r.URL.Path, "/goals/")
	id, action, ok := strings.Cut(path, "/")
	if !ok || id == "" || action != "complete" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	err := h.deps.CompleteGoal(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", ID: id})
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrDuplicateRequest):
		// Already resolved or resolution already in flight.
		writeError(w, http.StatusConflict, "duplicate", err)
	case errors.Is(err, service.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", ErrBackpressure)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
