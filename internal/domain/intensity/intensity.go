// Package intensity converts elapsed wall time and the score differential
// into the normalized pressure signals that pace everything downstream.
//
// Every function is pure over its explicit inputs; the clock service owns
// the schedule on which they are re-evaluated.
package intensity

import (
	"math"
	"time"

	"github.com/okian/rival/internal/domain/model"
)

// Blend weights and thresholds for the intensity computation.
const (
	timeWeight  = 0.6
	scoreWeight = 0.4

	criticalThreshold = 0.8
	highThreshold     = 0.5
	mediumThreshold   = 0.3

	momentumDeadZone = 5
	momentumScale    = 30.0

	threatDeficitScale = 50.0
	dayLength          = 24 * time.Hour

	pulseBaseCycle  = 400 * time.Millisecond
	pulseCycleRange = 250 * time.Millisecond
	pulseMinCycle   = 150 * time.Millisecond

	beatBaseInterval  = 1000 * time.Millisecond
	beatIntervalRange = 700 * time.Millisecond
	beatMinInterval   = 300 * time.Millisecond
)

// Tier is the discrete presentation level derived from the continuous
// intensity value.
type Tier string

// Tiers, lowest to highest.
const (
	TierLow      Tier = "low"
	TierMedium   Tier = "medium"
	TierHigh     Tier = "high"
	TierCritical Tier = "critical"
)

// Direction indicates which side currently holds a significant lead.
type Direction string

// Momentum directions.
const (
	MomentumUser    Direction = "user"
	MomentumAI      Direction = "ai"
	MomentumNeutral Direction = "neutral"
)

// Sample is one evaluation's worth of derived signals. It is never
// persisted; it exists only as the current evaluation's output.
type Sample struct {
	TimeToBoundary   time.Duration
	Countdown        string
	Value            float64
	Tier             Tier
	Momentum         Direction
	MomentumStrength float64
	Threat           float64
	Pulse            float64
	Beat             uint64
}

// TimeToBoundary returns how long until the boundary instant, clamped at
// zero once the boundary has passed. It stays zero until the caller's next
// tick rolls the boundary forward.
func TimeToBoundary(now, boundary time.Time) time.Duration {
	d := boundary.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// timeSubScore is a step function of hours remaining: pressure escalates
// as the boundary approaches.
func timeSubScore(ttb time.Duration) float64 {
	switch {
	case ttb < 15*time.Minute:
		return 1.0
	case ttb < 30*time.Minute:
		return 0.8
	case ttb < time.Hour:
		return 0.6
	case ttb < 2*time.Hour:
		return 0.4
	default:
		return 0.2
	}
}

// scoreSubScore is a step function of the user's margin. Losing increases
// intensity; a caller only ever observes escalation when behind.
func scoreSubScore(margin int) float64 {
	switch {
	case margin < -20:
		return 0.8
	case margin < -10:
		return 0.5
	case margin < 0:
		return 0.3
	default:
		return 0.1
	}
}

// Compute blends the time and score sub-scores into the normalized
// intensity value and its tier. Tier thresholds are inclusive at the lower
// bound of each tier; ties resolve to the higher tier.
func Compute(ttb time.Duration, scores model.ScoreState) (Tier, float64) {
	value := timeWeight*timeSubScore(ttb) + scoreWeight*scoreSubScore(scores.Margin())
	value = math.Min(1, value)

	switch {
	case value >= criticalThreshold:
		return TierCritical, value
	case value >= highThreshold:
		return TierHigh, value
	case value >= mediumThreshold:
		return TierMedium, value
	default:
		return TierLow, value
	}
}

// Momentum reports which side holds a significant lead and how strong it
// is. The dead zone of ±5 points prevents the indicator flickering near
// parity.
func Momentum(scores model.ScoreState) (Direction, float64) {
	margin := scores.Margin()
	switch {
	case margin > momentumDeadZone:
		return MomentumUser, math.Min(1, float64(margin)/momentumScale)
	case margin < -momentumDeadZone:
		return MomentumAI, math.Min(1, float64(-margin)/momentumScale)
	default:
		return MomentumNeutral, 0
	}
}

// Threat blends the elapsed-day fraction with the user's score deficit.
// It is monotonic in elapsed time and in how far behind the user is, and
// zero-deficit while ahead or tied.
func Threat(ttb time.Duration, scores model.ScoreState) float64 {
	timeComponent := 1 - float64(ttb)/float64(dayLength)
	scoreComponent := 0.0
	if margin := scores.Margin(); margin < 0 {
		scoreComponent = math.Min(1, float64(-margin)/threatDeficitScale)
	}
	return math.Min(1, 0.5*timeComponent+0.5*scoreComponent)
}

// PulseCycle returns the oscillator cycle length for an intensity value.
// The cycle shortens as intensity rises, with a 150ms floor at full
// intensity.
func PulseCycle(value float64) time.Duration {
	cycle := pulseBaseCycle - time.Duration(value*float64(pulseCycleRange))
	if cycle < pulseMinCycle {
		cycle = pulseMinCycle
	}
	return cycle
}

// PulseAt computes the pulse phase signal for a given elapsed time since
// the oscillator started. The result oscillates smoothly in [0,1]. It is
// derived from absolute elapsed time, never accumulated, so missed ticks
// self-correct.
func PulseAt(elapsed time.Duration, value float64) float64 {
	cycle := PulseCycle(value)
	phase := float64(elapsed%cycle) / float64(cycle)
	return math.Sin(phase*2*math.Pi)*0.5 + 0.5
}

// BeatInterval returns the coarse metronome interval for an intensity
// value, floored at 300ms. Consumers keying rhythm read the beat counter
// modulo their own pattern length.
func BeatInterval(value float64) time.Duration {
	interval := beatBaseInterval - time.Duration(value*float64(beatIntervalRange))
	if interval < beatMinInterval {
		interval = beatMinInterval
	}
	return interval
}
