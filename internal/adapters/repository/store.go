// Package repository defines the goal and profile store interface and errors.
package repository

import (
	"context"
	"time"

	"github.com/okian/rival/internal/domain/model"
)

// Profile is the single competitor record: running totals plus streak
// bookkeeping. There is exactly one profile per deployment.
type Profile struct {
	Scores        model.ScoreState
	CurrentStreak int
	LongestStreak int
	LastGoalDate  *time.Time
}

// Store provides read/write access to goals and the profile.
//
// Finalization and point mutation contracts match the engine's concurrency
// model: FinalizeGoal is conditional on the goal still being open, and all
// point changes are additive deltas, never derived-then-overwritten
// absolutes, so near-simultaneous resolutions cannot lose updates.
type Store interface {
	// CreateGoal inserts a new open goal.
	CreateGoal(ctx context.Context, g model.Goal) error

	// Goal returns a goal by id. Returns ErrNotFound for an unknown id.
	Goal(ctx context.Context, id string) (model.Goal, error)

	// Goals lists goals, newest first, up to limit.
	Goals(ctx context.Context, includeCompleted bool, limit int) ([]model.Goal, error)

	// OpenGoals returns every goal not yet completed, for the deadline sweep.
	OpenGoals(ctx context.Context) ([]model.Goal, error)

	// FinalizeGoal atomically marks an open goal completed with its point
	// split and applies the deltas to the profile totals. Returns false
	// without mutating anything when the goal was already completed: the
	// gate on completed=false is what serializes the completion and sweep
	// writers per goal.
	FinalizeGoal(ctx context.Context, id string, completedAt time.Time, userPoints, aiPoints int, outcome model.Outcome) (bool, error)

	// Scores returns the current point totals.
	Scores(ctx context.Context) (model.ScoreState, error)

	// Profile returns totals and streak state together.
	Profile(ctx context.Context) (Profile, error)

	// SetStreak records the streak counters and the last completion date.
	SetStreak(ctx context.Context, current, longest int, lastGoalDate time.Time) error

	// CountGoals returns open and total goal counts for monitoring.
	CountGoals(ctx context.Context) (open, total int, err error)
}
