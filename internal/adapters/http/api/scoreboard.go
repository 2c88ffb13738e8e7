// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/rival/internal/domain/types"
)

// ScoreboardDependencies defines the interface for scoreboard reads.
type ScoreboardDependencies interface {
	Scoreboard(ctx context.Context) (types.ScoreboardView, error)
}

// ScoreboardHandler handles scoreboard requests.
type ScoreboardHandler struct {
	deps ScoreboardDependencies
}

// NewScoreboardHandler creates a new scoreboard handler.
func NewScoreboardHandler(deps ScoreboardDependencies) *ScoreboardHandler {
	return &ScoreboardHandler{deps: deps}
}

// HandleGetScoreboard handles GET /scoreboard requests.
func (h *ScoreboardHandler) HandleGetScoreboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	board, err := h.deps.Scoreboard(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}
