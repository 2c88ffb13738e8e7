// Package worker applies resolver decisions to the store asynchronously.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/rival/internal/adapters/mq/queue"
	"github.com/okian/rival/internal/adapters/repository"
	"github.com/okian/rival/internal/domain/model"
	"github.com/okian/rival/internal/domain/scoring"
	"github.com/okian/rival/pkg/logger"
	"github.com/okian/rival/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Store is the slice of the repository workers write through.
type Store interface {
	Goal(ctx context.Context, id string) (model.Goal, error)
	FinalizeGoal(ctx context.Context, id string, completedAt time.Time, userPoints, aiPoints int, outcome model.Outcome) (bool, error)
	Profile(ctx context.Context) (repository.Profile, error)
	SetStreak(ctx context.Context, current, longest int, lastGoalDate time.Time) error
	Scores(ctx context.Context) (model.ScoreState, error)
}

// Queue defines how workers receive resolution jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// ScoreListener is notified with the fresh totals after every applied
// resolution, so the intensity engine recomputes on score change.
type ScoreListener func(model.ScoreState)

// Deduper releases a job's in-flight guard once the job has been
// processed, successfully or not.
type Deduper interface {
	Unrecord(ctx context.Context, id string)
}

// Worker processes resolution jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// ResolutionWorker implements Worker.
type ResolutionWorker struct {
	queue    Queue
	store    Store
	dayEnd   model.DayBoundary
	loc      *time.Location
	onScores ScoreListener
	deduper  Deduper
	name     string

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewResolutionWorker creates a new worker with configuration options.
func NewResolutionWorker(q Queue, store Store, dayEnd model.DayBoundary, loc *time.Location, opts ...Option) *ResolutionWorker {
	w := &ResolutionWorker{
		queue:    q,
		store:    store,
		dayEnd:   dayEnd,
		loc:      loc,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *ResolutionWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing resolution job",
					logger.String("goalID", job.GoalID),
					logger.String("kind", string(job.Kind)),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker and waits for its loop to exit, bounded by ctx.
func (w *ResolutionWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob resolves a single goal.
func (w *ResolutionWorker) processJob(ctx context.Context, job queue.Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()
	if w.deduper != nil {
		// Release the in-flight guard whatever happens: a failed job must
		// be re-enqueueable on the next sweep or retry.
		defer w.deduper.Unrecord(ctx, string(job.Kind)+":"+job.GoalID)
	}

	g, err := w.store.Goal(ctx, job.GoalID)
	if err != nil {
		metrics.RecordWorkerError()
		return fmt.Errorf("load goal %s: %w", job.GoalID, err)
	}

	var res scoring.Result
	switch job.Kind {
	case queue.JobComplete:
		res, err = scoring.ResolveCompletion(g, job.At, w.dayEnd, w.loc)
	case queue.JobMissed:
		var missed bool
		res, missed, err = scoring.ResolveMissed(g, job.At, w.dayEnd, w.loc)
		if err == nil && !missed {
			// Deadline not actually past (or none); nothing to do.
			return nil
		}
	default:
		metrics.RecordWorkerError()
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
	if err != nil {
		if errors.Is(err, scoring.ErrAlreadyResolved) {
			// Precondition violation: log and discard, never retry.
			metrics.RecordPreconditionViolation()
			w.logger.Warn(ctx, "resolution requested for already-resolved goal",
				logger.String("goalID", g.ID),
				logger.String("kind", string(job.Kind)),
			)
			return nil
		}
		metrics.RecordResolutionError()
		metrics.RecordWorkerError()
		return fmt.Errorf("resolve goal %s: %w", g.ID, err)
	}

	applied, err := w.store.FinalizeGoal(ctx, g.ID, job.At, res.UserPoints, res.AIPoints, res.Outcome)
	if err != nil {
		metrics.RecordStoreError()
		metrics.RecordWorkerError()
		return fmt.Errorf("finalize goal %s: %w", g.ID, err)
	}
	if !applied {
		// The other writer won the completed=false gate after we loaded
		// the goal. Counts as a precondition violation, not an error.
		metrics.RecordPreconditionViolation()
		w.logger.Warn(ctx, "goal resolved concurrently; discarding result",
			logger.String("goalID", g.ID),
			logger.String("kind", string(job.Kind)),
		)
		return nil
	}

	metrics.RecordGoalResolved(string(res.Outcome))

	if job.Kind == queue.JobComplete {
		if err := w.advanceStreak(ctx, job.At); err != nil {
			w.logger.Error(ctx, "streak update failed", logger.String("goalID", g.ID), logger.Error(err))
		}
	}

	if w.onScores != nil {
		scores, err := w.store.Scores(ctx)
		if err != nil {
			w.logger.Error(ctx, "score read-back failed", logger.Error(err))
			return nil
		}
		w.onScores(scores)
	}
	return nil
}

// advanceStreak applies the streak resolver once per completed goal.
func (w *ResolutionWorker) advanceStreak(ctx context.Context, completedAt time.Time) error {
	p, err := w.store.Profile(ctx)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	next := scoring.ResolveStreak(p.LastGoalDate, completedAt, p.CurrentStreak, p.LongestStreak, w.loc)
	if err := w.store.SetStreak(ctx, next.Current, next.Longest, completedAt.In(w.loc)); err != nil {
		return fmt.Errorf("persist streak: %w", err)
	}
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*ResolutionWorker

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool. Options are applied to every worker.
func NewPool(workerCount int, q Queue, store Store, dayEnd model.DayBoundary, loc *time.Location, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*ResolutionWorker, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewResolutionWorker(q, store, dayEnd, loc, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop gracefully stops all workers, bounded by the pool shutdown timeout.
func (p *Pool) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker did not stop in time", logger.Int("worker_id", i))
		}
	}
}
