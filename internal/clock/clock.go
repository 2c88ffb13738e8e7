// Package clock runs the one ticking source behind the intensity engine.
//
// A single Service owns the pulse oscillator phase, the beat counter and
// the countdown, and dispatches snapshots to subscribers. Consumers never
// run their own timers, so there are no N independent tickers to drift out
// of phase.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/okian/rival/internal/domain/intensity"
	"github.com/okian/rival/internal/domain/model"
	"github.com/okian/rival/pkg/logger"
	"github.com/okian/rival/pkg/metrics"
)

// Default clock configuration constants.
const (
	defaultTickInterval = 250 * time.Millisecond
	subscriberBuffer    = 8
	maxBackwardJump     = 24 * time.Hour
)

// Snapshot is what subscribers receive on every tick and on every score
// change. The sample is re-derived from absolute time each evaluation;
// nothing accumulates, so a late or skipped tick self-corrects.
type Snapshot struct {
	At     time.Time
	Sample intensity.Sample
}

// Service is the clock service. It is safe for concurrent use.
type Service struct {
	mu       sync.Mutex
	boundary model.DayBoundary
	loc      *time.Location
	tick     time.Duration
	now      func() time.Time

	scores  model.ScoreState
	epoch   time.Time // oscillator start
	lastNow time.Time // for skew detection
	beat    uint64
	nextAt  time.Time // next beat due
	current Snapshot

	subs    map[int]chan Snapshot
	nextSub int

	running bool
	stop    chan struct{}
	done    chan struct{}

	logger logger.Logger
}

// New creates a clock service for the given day boundary and timezone.
func New(boundary model.DayBoundary, loc *time.Location, opts ...Option) *Service {
	s := &Service{
		boundary: boundary,
		loc:      loc,
		tick:     defaultTickInterval,
		now:      time.Now,
		subs:     make(map[int]chan Snapshot),
		logger:   nil, // resolved at Start
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start begins ticking until Stop is called or ctx is canceled. Starting a
// running service is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("clock")
	}
	now := s.now()
	s.epoch = now
	s.lastNow = now
	s.nextAt = now
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
}

// run is the ticker loop.
func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	// Publish an initial snapshot so subscribers never wait a full tick.
	s.evaluate()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.evaluate()
		}
	}
}

// Stop cancels the ticker and closes all subscriber channels. The service
// can be restarted cleanly afterwards without leaking the previous timer.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done

	s.mu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()
}

// SetScores installs a new score snapshot and republishes immediately:
// intensity is recomputed once per tick and once per score change.
func (s *Service) SetScores(scores model.ScoreState) {
	s.mu.Lock()
	s.scores = scores
	running := s.running
	s.mu.Unlock()

	if running {
		s.evaluate()
	}
}

// SetBoundary installs a new day boundary, effective from the next
// evaluation.
func (s *Service) SetBoundary(boundary model.DayBoundary) {
	s.mu.Lock()
	s.boundary = boundary
	s.mu.Unlock()
}

// Subscribe registers a consumer. The returned cancel function must be
// called when the consumer goes away; the channel is closed on cancel and
// on Stop. Slow consumers lose old snapshots rather than blocking the tick.
func (s *Service) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Snapshot, subscriberBuffer)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Current returns the most recent snapshot.
func (s *Service) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// evaluate computes and publishes one snapshot.
func (s *Service) evaluate() {
	s.mu.Lock()

	now := s.now()
	if now.Before(s.lastNow.Add(-maxBackwardJump)) {
		// A backward jump wider than a day cycle is a host clock problem,
		// not something to absorb into scoring inputs. Surface and skip.
		last := s.lastNow
		s.mu.Unlock()
		s.logger.Error(context.Background(), "clock moved backwards beyond one day; skipping tick",
			logger.Any("last", last),
			logger.Any("now", now),
		)
		metrics.RecordClockSkew()
		return
	}
	s.lastNow = now

	boundaryAt := s.boundary.Next(now, s.loc)
	ttb := intensity.TimeToBoundary(now, boundaryAt)
	tier, value := intensity.Compute(ttb, s.scores)
	direction, strength := intensity.Momentum(s.scores)
	threat := intensity.Threat(ttb, s.scores)
	pulse := intensity.PulseAt(now.Sub(s.epoch), value)

	// Advance the beat from absolute time: however late this evaluation
	// runs, at most one beat fires per evaluation and the next due instant
	// is re-derived from the current interval.
	if !now.Before(s.nextAt) {
		s.beat++
		s.nextAt = now.Add(intensity.BeatInterval(value))
		metrics.RecordBeat()
	}

	snap := Snapshot{
		At: now,
		Sample: intensity.Sample{
			TimeToBoundary:   ttb,
			Countdown:        intensity.Format(ttb),
			Value:            value,
			Tier:             tier,
			Momentum:         direction,
			MomentumStrength: strength,
			Threat:           threat,
			Pulse:            pulse,
			Beat:             s.beat,
		},
	}
	s.current = snap

	// Deliver under the lock so a concurrent unsubscribe cannot close a
	// channel mid-send. Sends never block: slow consumers lose the oldest
	// queued snapshot instead of stalling the tick.
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
	s.mu.Unlock()

	metrics.UpdateIntensity(value)
	metrics.UpdateThreatLevel(threat)
	metrics.UpdateMomentumStrength(strength)
}
