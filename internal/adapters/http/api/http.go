// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/rival/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// CreateGoal validates and persists a new open goal.
	CreateGoal(ctx context.Context, title, goalType, dueDate, dueTime string) (types.GoalView, error)

	// Goals lists goals, newest first.
	Goals(ctx context.Context, includeCompleted bool, limit int) ([]types.GoalView, error)

	// CompleteGoal requests asynchronous resolution of a goal as completed.
	CompleteGoal(ctx context.Context, id string) error

	// State returns the current engine snapshot with the derived game state.
	State(ctx context.Context) (types.StateView, error)

	// Scoreboard returns the running totals and streaks.
	Scoreboard(ctx context.Context) (types.ScoreboardView, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	goalsHandler      *GoalsHandler
	completeHandler   *CompleteHandler
	stateHandler      *StateHandler
	scoreboardHandler *ScoreboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		goalsHandler:      NewGoalsHandler(deps),
		completeHandler:   NewCompleteHandler(deps),
		stateHandler:      NewStateHandler(deps),
		scoreboardHandler: NewScoreboardHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/state", MetricsMiddleware(s.stateHandler.HandleGetState, "state"))
	mux.HandleFunc("/scoreboard", MetricsMiddleware(s.scoreboardHandler.HandleGetScoreboard, "scoreboard"))
	mux.HandleFunc("/goals", MetricsMiddleware(s.goalsHandler.HandleGoals, "goals"))
	mux.HandleFunc("/goals/", MetricsMiddleware(s.completeHandler.HandleComplete, "goal_complete"))
}

// goalRequest mirrors the request schema for POST /goals.
type goalRequest struct {
	Title   string `json:"title"`
	Type    string `json:"type"`
	DueDate string `json:"due_date,omitempty"`
	DueTime string `json:"due_time,omitempty"`
}

type ackResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
