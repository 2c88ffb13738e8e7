// Package gamestate derives the discrete competition state from the score
// snapshot and the day-boundary flag.
package gamestate

import (
	"github.com/okian/rival/internal/domain/model"
)

// State is the derived competition state. It is recomputed on every
// evaluation and never stored.
type State string

// States. Victory, defeat and end-of-day are terminal for the day; the
// rest describe a running game.
const (
	Active      State = "active"
	UserWinning State = "user_winning"
	AIWinning   State = "ai_winning"
	Tied        State = "tied"
	EndOfDay    State = "end_of_day"
	Victory     State = "victory"
	Defeat      State = "defeat"
)

// Classify maps a score snapshot to a state. It is pure and idempotent:
// identical inputs always yield the identical state, and any state may
// follow any other as scores move and the boundary is crossed. Callers
// detecting a change from a previous classification own any transition
// side effects; this function only classifies.
//
// A tie at the close of the day is EndOfDay, distinct from a mid-day Tied.
func Classify(scores model.ScoreState, isEndOfDay bool) State {
	switch {
	case isEndOfDay && scores.UserPoints > scores.AIPoints:
		return Victory
	case isEndOfDay && scores.AIPoints > scores.UserPoints:
		return Defeat
	case isEndOfDay:
		return EndOfDay
	case scores.UserPoints > scores.AIPoints:
		return UserWinning
	case scores.AIPoints > scores.UserPoints:
		return AIWinning
	default:
		return Tied
	}
}
