// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/rival/internal/domain/types"
)

// StateDependencies defines the interface for engine state reads.
type StateDependencies interface {
	State(ctx context.Context) (types.StateView, error)
}

// StateHandler handles engine state requests.
type StateHandler struct {
	deps StateDependencies
}

// NewStateHandler creates a new state handler.
func NewStateHandler(deps StateDependencies) *StateHandler {
	return &StateHandler{deps: deps}
}

// HandleGetState handles GET /state requests.
func (h *StateHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	state, err := h.deps.State(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}
