// Package types contains view shapes shared between the service and the
// HTTP layer.
package types

import "time"

// GoalView is the read shape of a goal.
type GoalView struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Type           string     `json:"type"`
	DueDate        string     `json:"due_date,omitempty"`
	DueTime        string     `json:"due_time,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	Completed      bool       `json:"completed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Outcome        string     `json:"outcome,omitempty"`
	PointsEarned   int        `json:"points_earned"`
	AIPointsEarned int        `json:"ai_points_earned"`
}

// StateView is one evaluation of the engine: the intensity sample plus
// the derived game state.
type StateView struct {
	GameState        string  `json:"game_state"`
	EndOfDay         bool    `json:"end_of_day"`
	Countdown        string  `json:"countdown"`
	SecondsRemaining int64   `json:"seconds_remaining"`
	Intensity        float64 `json:"intensity"`
	Tier             string  `json:"tier"`
	Momentum         string  `json:"momentum"`
	MomentumStrength float64 `json:"momentum_strength"`
	Threat           float64 `json:"threat"`
	Pulse            float64 `json:"pulse"`
	Beat             uint64  `json:"beat"`
}

// StatsView is a monitoring snapshot of the service internals.
type StatsView struct {
	Started        bool `json:"started"`
	WorkerCount    int  `json:"worker_count"`
	QueueCapacity  int  `json:"queue_capacity"`
	QueueLength    int  `json:"queue_length"`
	InFlight       int  `json:"in_flight"`
	DedupeCapacity int  `json:"dedupe_capacity"`
	OpenGoals      int  `json:"open_goals"`
	TotalGoals     int  `json:"total_goals"`
}

// ScoreboardView is the running competition totals and streaks.
type ScoreboardView struct {
	UserPoints    int    `json:"user_points"`
	AIPoints      int    `json:"ai_points"`
	Margin        int    `json:"margin"`
	GameState     string `json:"game_state"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
}
