// Package scoring decides point awards and penalties for goal resolution.
//
// All functions here are pure: given a goal, an instant and the configured
// day boundary they deterministically produce a point split and an outcome.
// They own no storage; the repository applies the result as additive deltas.
package scoring

import (
	"fmt"
	"time"

	"github.com/okian/rival/internal/domain/model"
)

// Point values for the completion and missed tables.
const (
	earlyUserPoints  = 20
	earlyAIPenalty   = -5
	dailyOnTimeEach  = 5
	longOnTimeUser   = 10
	longLateEach     = 5
	missedAIPoints   = 15
	noDeadlineUser   = 10
	noDeadlineAIGain = 0
)

// Result is the point split a resolution produced. Both deltas are applied
// additively by the store, never as overwritten absolutes.
type Result struct {
	UserPoints int
	AIPoints   int
	Outcome    model.Outcome
}

// ResolveCompletion computes the point split for a goal completed at
// completedAt. Completing strictly before the due instant is early; the
// due instant itself belongs to the non-early branch.
//
// It refuses to evaluate an already-completed goal: a completed goal's
// score contribution is fixed and must never be re-derived.
func ResolveCompletion(g model.Goal, completedAt time.Time, dayEnd model.DayBoundary, loc *time.Location) (Result, error) {
	if g.Completed {
		return Result{}, fmt.Errorf("%w: goal %s", ErrAlreadyResolved, g.ID)
	}

	switch g.Type {
	case model.GoalDaily:
		if g.DueTime != nil {
			due := g.DueTime.On(completedAt, loc)
			if completedAt.Before(due) {
				return Result{UserPoints: earlyUserPoints, AIPoints: earlyAIPenalty, Outcome: model.OutcomeEarly}, nil
			}
		}
		return Result{UserPoints: dailyOnTimeEach, AIPoints: dailyOnTimeEach, Outcome: model.OutcomeOnTime}, nil

	case model.GoalLongTerm:
		switch {
		case g.DueDate != nil && g.DueTime != nil:
			due := g.DueTime.On(*g.DueDate, loc)
			if completedAt.Before(due) {
				return Result{UserPoints: earlyUserPoints, AIPoints: earlyAIPenalty, Outcome: model.OutcomeEarly}, nil
			}
			return Result{UserPoints: longOnTimeUser, Outcome: model.OutcomeOnTime}, nil
		case g.DueDate != nil:
			eod := dayEnd.On(*g.DueDate, loc)
			if completedAt.After(eod) {
				return Result{UserPoints: longLateEach, AIPoints: longLateEach, Outcome: model.OutcomeLate}, nil
			}
			return Result{UserPoints: longOnTimeUser, Outcome: model.OutcomeOnTime}, nil
		default:
			return Result{UserPoints: noDeadlineUser, AIPoints: noDeadlineAIGain, Outcome: model.OutcomeNoDeadline}, nil
		}

	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownGoalType, g.Type)
	}
}

// Deadline computes the instant past which an uncompleted goal counts as
// missed. The second return is false when the goal has no deadline and the
// sweep must never fire for it.
func Deadline(g model.Goal, dayEnd model.DayBoundary, loc *time.Location) (time.Time, bool) {
	switch g.Type {
	case model.GoalDaily:
		return dayEnd.On(g.CreatedAt, loc), true
	case model.GoalLongTerm:
		switch {
		case g.DueDate != nil && g.DueTime != nil:
			return g.DueTime.On(*g.DueDate, loc), true
		case g.DueDate != nil:
			return dayEnd.On(*g.DueDate, loc), true
		}
	}
	return time.Time{}, false
}

// ResolveMissed reports whether an open goal is past its deadline at now,
// and the fixed penalty if so. A goal is missed only when now is strictly
// after the deadline.
//
// Calling it on a completed goal is a precondition violation and fails with
// ErrAlreadyResolved rather than silently doing nothing, so the caller can
// tell "nothing to do" apart from "goal in an unexpected state".
func ResolveMissed(g model.Goal, now time.Time, dayEnd model.DayBoundary, loc *time.Location) (Result, bool, error) {
	if g.Completed {
		return Result{}, false, fmt.Errorf("%w: goal %s", ErrAlreadyResolved, g.ID)
	}
	deadline, ok := Deadline(g, dayEnd, loc)
	if !ok {
		return Result{}, false, nil
	}
	if !now.After(deadline) {
		return Result{}, false, nil
	}
	return Result{UserPoints: 0, AIPoints: missedAIPoints, Outcome: model.OutcomeMissed}, true, nil
}

// Streak is the updated pair of streak counters after a completion.
type Streak struct {
	Current int
	Longest int
}

// ResolveStreak advances the daily completion streak. Only the first
// completion of a calendar day moves the streak: a last-completion date of
// today leaves it unchanged, yesterday extends it, and any larger gap (or
// no prior completion) resets the current streak to 1.
func ResolveStreak(lastGoalDate *time.Time, today time.Time, current, longest int, loc *time.Location) Streak {
	day := func(t time.Time) string { return t.In(loc).Format("2006-01-02") }

	todayKey := day(today)
	yesterdayKey := day(today.AddDate(0, 0, -1))

	next := Streak{Current: current, Longest: longest}
	switch {
	case lastGoalDate != nil && day(*lastGoalDate) == todayKey:
		// Already counted today.
	case lastGoalDate != nil && day(*lastGoalDate) == yesterdayKey:
		next.Current = current + 1
		next.Longest = max(longest, next.Current)
	default:
		next.Current = 1
		next.Longest = max(longest, 1)
	}
	return next
}
