// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	service "github.com/okian/rival/internal/app"
	"github.com/okian/rival/internal/domain/types"
)

// GoalDependencies defines the interface for goal creation and listing.
type GoalDependencies interface {
	CreateGoal(ctx context.Context, title, goalType, dueDate, dueTime string) (types.GoalView, error)
	Goals(ctx context.Context, includeCompleted bool, limit int) ([]types.GoalView, error)
}

// GoalsHandler handles goal creation and listing requests.
type GoalsHandler struct {
	deps GoalDependencies
}

// NewGoalsHandler creates a new goals handler.
func NewGoalsHandler(deps GoalDependencies) *GoalsHandler {
	return &GoalsHandler{deps: deps}
}

// HandleGoals dispatches POST /goals and GET /goals.
func (h *GoalsHandler) HandleGoals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreate(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *GoalsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	g, err := h.deps.CreateGoal(r.Context(), req.Title, req.Type, req.DueDate, req.DueTime)
	if err != nil {
		if errors.Is(err, service.ErrInvalidGoal) {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (h *GoalsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	includeCompleted := false
	if v := q.Get("include_completed"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		includeCompleted = b
	}

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		limit = n
	}

	goals, err := h.deps.Goals(r.Context(), includeCompleted, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}
