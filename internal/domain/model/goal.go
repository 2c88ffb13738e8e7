// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GoalType discriminates the two goal lifecycles.
type GoalType string

// Goal types.
const (
	GoalDaily    GoalType = "daily"
	GoalLongTerm GoalType = "long_term"
)

// Valid reports whether t is a known goal type.
func (t GoalType) Valid() bool {
	return t == GoalDaily || t == GoalLongTerm
}

// Outcome classifies how a goal's resolution went. The classifications are
// mutually exclusive: exactly one is assigned when a goal is finalized.
type Outcome string

// Outcomes.
const (
	OutcomeEarly      Outcome = "early"
	OutcomeOnTime     Outcome = "on_time"
	OutcomeLate       Outcome = "late"
	OutcomeNoDeadline Outcome = "no_deadline"
	OutcomeMissed     Outcome = "missed"
)

// ScoreState is an immutable snapshot of the running point totals.
// Both totals are plain integers; the AI total can go negative through
// repeated early-completion penalties and is deliberately not clamped.
type ScoreState struct {
	UserPoints int
	AIPoints   int
}

// Margin returns the user's lead over the AI (negative when behind).
func (s ScoreState) Margin() int {
	return s.UserPoints - s.AIPoints
}

// ErrInvalidBoundary reports a malformed day-boundary string.
var ErrInvalidBoundary = errors.New("invalid day boundary")

// DayBoundary is a time of day at which the current day's competition
// resolves. It carries no date or zone; both are explicit parameters of
// every instant computation.
type DayBoundary struct {
	Hour   int
	Minute int
}

// ParseDayBoundary parses a "HH:MM" local-time string. Malformed input is
// rejected, never defaulted: a scoring decision derived from a guessed
// boundary would be irreversible once persisted.
func ParseDayBoundary(s string) (DayBoundary, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return DayBoundary{}, fmt.Errorf("%w: %q", ErrInvalidBoundary, s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return DayBoundary{}, fmt.Errorf("%w: non-numeric hour in %q", ErrInvalidBoundary, s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return DayBoundary{}, fmt.Errorf("%w: non-numeric minute in %q", ErrInvalidBoundary, s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return DayBoundary{}, fmt.Errorf("%w: %q out of range", ErrInvalidBoundary, s)
	}
	return DayBoundary{Hour: hour, Minute: minute}, nil
}

// String renders the boundary back to "HH:MM".
func (b DayBoundary) String() string {
	return fmt.Sprintf("%02d:%02d", b.Hour, b.Minute)
}

// On returns the boundary instant on the calendar day of date in loc.
func (b DayBoundary) On(date time.Time, loc *time.Location) time.Time {
	d := date.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), b.Hour, b.Minute, 0, 0, loc)
}

// Next returns the first boundary instant strictly after now: today's
// boundary if it has not passed yet, otherwise tomorrow's.
func (b DayBoundary) Next(now time.Time, loc *time.Location) time.Time {
	at := b.On(now, loc)
	if at.After(now) {
		return at
	}
	return at.AddDate(0, 0, 1)
}

// Goal is the unit of competition. It is created by a user action and
// mutated exactly once by the resolution pipeline: either a completion
// records its point split, or the deadline sweep marks it missed. Once
// Completed is set the point fields are immutable.
type Goal struct {
	ID        string
	Title     string
	Type      GoalType
	DueDate   *time.Time   // calendar day the goal is due, if any
	DueTime   *DayBoundary // time of day the goal is due, if any
	CreatedAt time.Time

	Completed      bool
	CompletedAt    *time.Time
	Outcome        Outcome
	PointsEarned   int
	AIPointsEarned int
}
