// Package sweep periodically marks overdue goals as missed.
//
// The sweeper never applies points itself: it enqueues a missed-resolution
// job per overdue open goal and the worker pool does the rest. It runs at
// a bounded interval and tolerates being delayed or skipped entirely: a
// late sweep simply finds a goal's deadline further in the past and the
// single idempotent penalty still applies exactly once.
package sweep

import (
	"context"
	"time"

	"github.com/okian/rival/internal/adapters/mq/queue"
	"github.com/okian/rival/internal/domain/model"
	"github.com/okian/rival/internal/domain/scoring"
	"github.com/okian/rival/pkg/logger"
	"github.com/okian/rival/pkg/metrics"
)

// Default sweeper configuration constants.
const (
	defaultInterval = time.Minute
)

// Store is the slice of the repository the sweeper reads.
type Store interface {
	OpenGoals(ctx context.Context) ([]model.Goal, error)
}

// Queue is where the sweeper sends missed-resolution jobs.
type Queue interface {
	Enqueue(ctx context.Context, j queue.Job) bool
}

// Deduper guards against enqueuing the same goal's resolution twice while
// a job for it is still in flight.
type Deduper interface {
	SeenAndRecord(ctx context.Context, id string) bool
	Unrecord(ctx context.Context, id string)
}

// Sweeper drives the missed-goal check on a timer.
type Sweeper struct {
	store    Store
	queue    Queue
	deduper  Deduper
	dayEnd   model.DayBoundary
	loc      *time.Location
	interval time.Duration
	now      func() time.Time

	stop chan struct{}
	done chan struct{}

	logger logger.Logger
}

// New creates a sweeper with configuration options.
func New(store Store, q Queue, deduper Deduper, dayEnd model.DayBoundary, loc *time.Location, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:    store,
		queue:    q,
		deduper:  deduper,
		dayEnd:   dayEnd,
		loc:      loc,
		interval: defaultInterval,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start runs the sweep loop until Stop is called or ctx is canceled.
func (s *Sweeper) Start(ctx context.Context) {
	if s.logger == nil {
		s.logger = logger.Get().Named("sweep")
	}
	go s.run(ctx)
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Stop halts the sweep loop.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

// Sweep runs one pass: every open goal whose deadline is strictly in the
// past gets a missed job. Exposed so the service can sweep on demand at
// startup.
func (s *Sweeper) Sweep(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.RecordSweepDuration(float64(time.Since(start).Milliseconds()))
	}()

	goals, err := s.store.OpenGoals(ctx)
	if err != nil {
		s.logger.Error(ctx, "sweep: listing open goals failed", logger.Error(err))
		return
	}

	now := s.now()
	enqueued := 0
	for _, g := range goals {
		deadline, ok := scoring.Deadline(g, s.dayEnd, s.loc)
		if !ok || !now.After(deadline) {
			continue
		}

		key := "missed:" + g.ID
		if s.deduper.SeenAndRecord(ctx, key) {
			continue // job already in flight
		}
		if !s.queue.Enqueue(ctx, queue.Job{Kind: queue.JobMissed, GoalID: g.ID, At: now}) {
			s.deduper.Unrecord(ctx, key)
			s.logger.Warn(ctx, "sweep: queue full, goal deferred to next pass",
				logger.String("goalID", g.ID),
			)
			continue
		}
		enqueued++
	}

	metrics.RecordSweepPass(enqueued)
	if enqueued > 0 {
		s.logger.Info(ctx, "sweep pass enqueued missed goals",
			logger.Int("count", enqueued),
			logger.Int("open", len(goals)),
		)
	}
}
