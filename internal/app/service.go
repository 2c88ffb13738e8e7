// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	jobqueue "github.com/okian/rival/internal/adapters/mq/queue"
	workerpool "github.com/okian/rival/internal/adapters/mq/worker"
	"github.com/okian/rival/internal/adapters/repository"
	"github.com/okian/rival/internal/adapters/sweep"
	"github.com/okian/rival/internal/clock"
	"github.com/okian/rival/internal/domain/dedupe"
	"github.com/okian/rival/internal/domain/gamestate"
	"github.com/okian/rival/internal/domain/model"
	"github.com/okian/rival/internal/domain/types"
	"github.com/okian/rival/pkg/logger"
	"github.com/okian/rival/pkg/metrics"
)

// Service wires the store, the resolution pipeline and the clock engine
// together and implements the API dependencies.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	deduper dedupe.Deduper
	queue   *jobqueue.InMemoryQueue
	pool    *workerpool.Pool
	sweeper *sweep.Sweeper
	engine  *clock.Service

	// Configuration
	dayEnd        model.DayBoundary
	loc           *time.Location
	dbPath        string
	workerCount   int
	queueSize     int
	dedupeSize    int
	tickInterval  time.Duration
	sweepInterval time.Duration
	maxListLimit  int
	now           func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDBPath sets the SQLite database file path.
func WithDBPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithWorkerCount sets the number of resolution workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the resolution queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the in-flight resolution guard.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithTickInterval sets the engine evaluation interval.
func WithTickInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithSweepInterval sets the missed-deadline sweep interval.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithMaxGoalListLimit caps the goal listing page size.
func WithMaxGoalListLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxListLimit = limit
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNow overrides the time source. Used in tests.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(dayEnd model.DayBoundary, loc *time.Location, opts ...Option) *Service {
	s := &Service{
		dayEnd:        dayEnd,
		loc:           loc,
		dbPath:        "rival.db",
		workerCount:   runtime.NumCPU(),
		queueSize:     10000,
		dedupeSize:    50000,
		tickInterval:  250 * time.Millisecond,
		sweepInterval: time.Minute,
		maxListLimit:  200,
		now:           time.Now,
		logger:        nil, // resolved at Start
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting goal arena service...")

	store, err := repository.NewSQLiteStore(ctx, s.dbPath, repository.WithLocation(s.loc))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	s.store = store

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.queue = jobqueue.NewInMemoryQueue(
		jobqueue.WithCapacity(s.queueSize),
		jobqueue.WithBufferSize(s.queueSize),
	)

	s.engine = clock.New(s.dayEnd, s.loc,
		clock.WithTickInterval(s.tickInterval),
		clock.WithNow(s.now),
	)

	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.store, s.dayEnd, s.loc,
		workerpool.WithScoreListener(s.engine.SetScores),
		workerpool.WithDeduper(s.deduper),
	)

	s.sweeper = sweep.New(s.store, s.queue, s.deduper, s.dayEnd, s.loc,
		sweep.WithInterval(s.sweepInterval),
		sweep.WithNow(s.now),
	)

	// Seed the engine with persisted totals before the first tick.
	scores, err := s.store.Scores(ctx)
	if err != nil {
		return fmt.Errorf("load scores: %w", err)
	}
	s.engine.SetScores(scores)

	s.engine.Start(ctx)
	s.pool.Start(ctx)
	s.sweeper.Start(ctx)

	// Catch up on deadlines that passed while the process was down.
	s.sweeper.Sweep(ctx)

	s.started = true
	s.logger.Info(ctx, "goal arena service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("dayEnd", s.dayEnd.String()),
		logger.String("timezone", s.loc.String()),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping goal arena service...")

	// Stop producers first, then drain consumers.
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.engine != nil {
		s.engine.Stop()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.pool != nil {
		s.pool.Stop()
	}
	if s.store != nil {
		if closer, ok := s.store.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}

	s.started = false
	s.logger.Info(ctx, "goal arena service stopped")
}

// CreateGoal validates and persists a new open goal.
//
// dueDate ("2006-01-02") and dueTime ("HH:MM") are both optional; which
// combination is present decides how the goal is later resolved.
func (s *Service) CreateGoal(ctx context.Context, title, goalType, dueDate, dueTime string) (types.GoalView, error) {
	if err := s.ready(); err != nil {
		return types.GoalView{}, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return types.GoalView{}, fmt.Errorf("%w: title must not be empty", ErrInvalidGoal)
	}

	gt := model.GoalType(goalType)
	if !gt.Valid() {
		return types.GoalView{}, fmt.Errorf("%w: unknown goal type %q", ErrInvalidGoal, goalType)
	}

	g := model.Goal{
		ID:        uuid.NewString(),
		Title:     title,
		Type:      gt,
		CreatedAt: s.now().In(s.loc),
	}

	if dueDate != "" {
		d, err := time.ParseInLocation("2006-01-02", dueDate, s.loc)
		if err != nil {
			return types.GoalView{}, fmt.Errorf("%w: due_date %q: %w", ErrInvalidGoal, dueDate, err)
		}
		g.DueDate = &d
	}
	if dueTime != "" {
		b, err := model.ParseDayBoundary(dueTime)
		if err != nil {
			return types.GoalView{}, fmt.Errorf("%w: due_time %q: %w", ErrInvalidGoal, dueTime, err)
		}
		g.DueTime = &b
	}

	if err := s.store.CreateGoal(ctx, g); err != nil {
		return types.GoalView{}, fmt.Errorf("create goal: %w", err)
	}

	metrics.RecordGoalCreated()
	s.logger.Info(ctx, "goal created",
		logger.String("goalID", g.ID),
		logger.String("type", string(g.Type)),
	)
	return s.goalView(g), nil
}

// Goals lists goals, newest first.
func (s *Service) Goals(ctx context.Context, includeCompleted bool, limit int) ([]types.GoalView, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > s.maxListLimit {
		limit = s.maxListLimit
	}

	goals, err := s.store.Goals(ctx, includeCompleted, limit)
	if err != nil {
		return nil, err
	}

	views := make([]types.GoalView, len(goals))
	for i, g := range goals {
		views[i] = s.goalView(g)
	}
	return views, nil
}

// CompleteGoal requests asynchronous resolution of a goal as completed.
//
// The request is accepted when the goal exists, is still open, and no
// resolution for it is already in flight. The points land once the worker
// pool gets to the job.
func (s *Service) CompleteGoal(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}

	g, err := s.store.Goal(ctx, id)
	if err != nil {
		return err
	}
	if g.Completed {
		return fmt.Errorf("goal %s: %w", id, ErrDuplicateRequest)
	}

	key := "complete:" + id
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordDuplicateRequest()
		s.logger.Warn(ctx, "duplicate completion request", logger.String("goalID", id))
		return fmt.Errorf("goal %s: %w", id, ErrDuplicateRequest)
	}

	job := jobqueue.Job{Kind: jobqueue.JobComplete, GoalID: id, At: s.now()}
	if !s.queue.Enqueue(ctx, job) {
		// Roll back the guard so the request can be retried.
		s.deduper.Unrecord(ctx, key)
		return fmt.Errorf("goal %s: %w", id, ErrQueueFull)
	}

	return nil
}

// State returns the current engine snapshot with the derived game state.
func (s *Service) State(ctx context.Context) (types.StateView, error) {
	if err := s.ready(); err != nil {
		return types.StateView{}, err
	}

	snap := s.engine.Current()

	scores, err := s.store.Scores(ctx)
	if err != nil {
		return types.StateView{}, err
	}

	eod := s.isEndOfDay(snap.At)
	state := gamestate.Classify(scores, eod)

	sample := snap.Sample
	return types.StateView{
		GameState:        string(state),
		EndOfDay:         eod,
		Countdown:        sample.Countdown,
		SecondsRemaining: int64(sample.TimeToBoundary / time.Second),
		Intensity:        sample.Value,
		Tier:             string(sample.Tier),
		Momentum:         string(sample.Momentum),
		MomentumStrength: sample.MomentumStrength,
		Threat:           sample.Threat,
		Pulse:            sample.Pulse,
		Beat:             sample.Beat,
	}, nil
}

// Scoreboard returns the running totals and streaks.
func (s *Service) Scoreboard(ctx context.Context) (types.ScoreboardView, error) {
	if err := s.ready(); err != nil {
		return types.ScoreboardView{}, err
	}

	p, err := s.store.Profile(ctx)
	if err != nil {
		return types.ScoreboardView{}, err
	}

	state := gamestate.Classify(p.Scores, s.isEndOfDay(s.now()))

	metrics.UpdateScores(p.Scores.UserPoints, p.Scores.AIPoints)

	return types.ScoreboardView{
		UserPoints:    p.Scores.UserPoints,
		AIPoints:      p.Scores.AIPoints,
		Margin:        p.Scores.Margin(),
		GameState:     string(state),
		CurrentStreak: p.CurrentStreak,
		LongestStreak: p.LongestStreak,
	}, nil
}

// Stats returns a monitoring snapshot of the service internals. Reading
// it also refreshes the queue, worker and goal-count gauges.
func (s *Service) Stats() types.StatsView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := types.StatsView{
		Started:        s.started,
		WorkerCount:    s.workerCount,
		QueueCapacity:  s.queueSize,
		DedupeCapacity: s.dedupeSize,
	}
	if !s.started {
		return view
	}

	ctx := context.Background()
	view.QueueLength = s.queue.Len(ctx)
	view.InFlight = int(s.deduper.Size())

	if open, total, err := s.store.CountGoals(ctx); err == nil {
		view.OpenGoals = open
		view.TotalGoals = total
		metrics.UpdateGoalCounts(open, total)
	}

	metrics.UpdateQueueSize(view.QueueLength)
	metrics.UpdateWorkerCount(s.workerCount)

	return view
}

// ready reports ErrNotStarted until Start has completed, so operations
// never touch components that are not wired up yet.
func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// isEndOfDay reports whether now has reached today's boundary.
func (s *Service) isEndOfDay(now time.Time) bool {
	return !now.Before(s.dayEnd.On(now, s.loc))
}

// goalView converts a model goal to its API shape.
func (s *Service) goalView(g model.Goal) types.GoalView {
	v := types.GoalView{
		ID:             g.ID,
		Title:          g.Title,
		Type:           string(g.Type),
		CreatedAt:      g.CreatedAt,
		Completed:      g.Completed,
		CompletedAt:    g.CompletedAt,
		Outcome:        string(g.Outcome),
		PointsEarned:   g.PointsEarned,
		AIPointsEarned: g.AIPointsEarned,
	}
	if g.DueDate != nil {
		v.DueDate = g.DueDate.Format("2006-01-02")
	}
	if g.DueTime != nil {
		v.DueTime = g.DueTime.String()
	}
	return v
}
