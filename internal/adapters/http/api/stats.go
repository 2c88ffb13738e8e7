package api

import (
	"net/http"

	"github.com/okian/rival/internal/domain/types"
)

// StatsProvider exposes the service's monitoring snapshot.
type StatsProvider interface {
	Stats() types.StatsView
}

// StatsHandler serves the monitoring snapshot.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a stats handler over the given provider.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats handles GET /stats.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.provider.Stats())
}
