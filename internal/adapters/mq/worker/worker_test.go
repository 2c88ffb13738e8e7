package worker_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/okian/rival/internal/adapters/mq/queue"
	"github.com/okian/rival/internal/adapters/mq/worker"
	"github.com/okian/rival/internal/adapters/repository"
	"github.com/okian/rival/internal/domain/model"
	"github.com/okian/rival/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

var dayEnd = model.DayBoundary{Hour: 23, Minute: 59}

type finalizeCall struct {
	id         string
	userPoints int
	aiPoints   int
	outcome    model.Outcome
}

// fakeStore implements worker.Store in memory.
type fakeStore struct {
	mu        sync.Mutex
	goals     map[string]model.Goal
	finalized []finalizeCall
	profile   repository.Profile
}

func newFakeStore(goals ...model.Goal) *fakeStore {
	s := &fakeStore{goals: make(map[string]model.Goal)}
	for _, g := range goals {
		s.goals[g.ID] = g
	}
	return s
}

func (s *fakeStore) Goal(_ context.Context, id string) (model.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok {
		return model.Goal{}, repository.ErrNotFound
	}
	return g, nil
}

func (s *fakeStore) FinalizeGoal(_ context.Context, id string, completedAt time.Time, userPoints, aiPoints int, outcome model.Outcome) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if g.Completed {
		return false, nil
	}
	g.Completed = true
	g.CompletedAt = &completedAt
	g.Outcome = outcome
	g.PointsEarned = userPoints
	g.AIPointsEarned = aiPoints
	s.goals[id] = g
	s.profile.Scores.UserPoints += userPoints
	s.profile.Scores.AIPoints += aiPoints
	s.finalized = append(s.finalized, finalizeCall{id: id, userPoints: userPoints, aiPoints: aiPoints, outcome: outcome})
	return true, nil
}

func (s *fakeStore) Profile(_ context.Context) (repository.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile, nil
}

func (s *fakeStore) SetStreak(_ context.Context, current, longest int, lastGoalDate time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile.CurrentStreak = current
	s.profile.LongestStreak = longest
	s.profile.LastGoalDate = &lastGoalDate
	return nil
}

func (s *fakeStore) Scores(_ context.Context) (model.ScoreState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.Scores, nil
}

func (s *fakeStore) finalizedCalls() []finalizeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]finalizeCall, len(s.finalized))
	copy(out, s.finalized)
	return out
}

// recordingDeduper captures released guard keys.
type recordingDeduper struct {
	mu       sync.Mutex
	released []string
}

func (d *recordingDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = append(d.released, id)
}

func (d *recordingDeduper) releasedKeys() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.released))
	copy(out, d.released)
	return out
}

func eventually(check func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return check()
}

func TestResolutionWorker_Completion(t *testing.T) {
	Convey("Given a worker over one open daily goal", t, func() {
		goal := model.Goal{
			ID:        "g1",
			Title:     "workout",
			Type:      model.GoalDaily,
			CreatedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		}
		store := newFakeStore(goal)
		q := queue.NewInMemoryQueue()
		deduper := &recordingDeduper{}

		var scoresMu sync.Mutex
		var lastScores *model.ScoreState

		w := worker.NewResolutionWorker(q, store, dayEnd, time.UTC,
			worker.WithDeduper(deduper),
			worker.WithScoreListener(func(s model.ScoreState) {
				scoresMu.Lock()
				defer scoresMu.Unlock()
				lastScores = &s
			}),
		)

		ctx, cancel := context.WithCancel(context.Background())
		go w.Run(ctx)
		Reset(cancel)

		Convey("When a completion job arrives", func() {
			at := time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC)
			So(q.Enqueue(ctx, queue.Job{Kind: queue.JobComplete, GoalID: "g1", At: at}), ShouldBeTrue)

			ok := eventually(func() bool { return len(store.finalizedCalls()) == 1 })
			So(ok, ShouldBeTrue)

			Convey("Then the goal is finalized with the shared split", func() {
				calls := store.finalizedCalls()
				So(calls[0].id, ShouldEqual, "g1")
				So(calls[0].userPoints, ShouldEqual, 5)
				So(calls[0].aiPoints, ShouldEqual, 5)
				So(calls[0].outcome, ShouldEqual, model.OutcomeOnTime)
			})

			Convey("And the streak advanced", func() {
				ok := eventually(func() bool {
					p, _ := store.Profile(ctx)
					return p.CurrentStreak == 1
				})
				So(ok, ShouldBeTrue)
			})

			Convey("And the score listener got the fresh totals", func() {
				ok := eventually(func() bool {
					scoresMu.Lock()
					defer scoresMu.Unlock()
					return lastScores != nil
				})
				So(ok, ShouldBeTrue)
				scoresMu.Lock()
				So(lastScores.UserPoints, ShouldEqual, 5)
				So(lastScores.AIPoints, ShouldEqual, 5)
				scoresMu.Unlock()
			})

			Convey("And the in-flight guard was released", func() {
				ok := eventually(func() bool {
					keys := deduper.releasedKeys()
					return len(keys) == 1 && keys[0] == "complete:g1"
				})
				So(ok, ShouldBeTrue)
			})
		})
	})
}

func TestResolutionWorker_Missed(t *testing.T) {
	Convey("Given a worker over an overdue daily goal", t, func() {
		goal := model.Goal{
			ID:        "g1",
			Title:     "journal",
			Type:      model.GoalDaily,
			CreatedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		}
		store := newFakeStore(goal)
		q := queue.NewInMemoryQueue()

		w := worker.NewResolutionWorker(q, store, dayEnd, time.UTC)

		ctx, cancel := context.WithCancel(context.Background())
		go w.Run(ctx)
		Reset(cancel)

		Convey("When a missed job arrives past the boundary", func() {
			now := time.Date(2025, 3, 11, 0, 30, 0, 0, time.UTC)
			So(q.Enqueue(ctx, queue.Job{Kind: queue.JobMissed, GoalID: "g1", At: now}), ShouldBeTrue)

			ok := eventually(func() bool { return len(store.finalizedCalls()) == 1 })
			So(ok, ShouldBeTrue)

			Convey("Then the AI collects the missed penalty", func() {
				calls := store.finalizedCalls()
				So(calls[0].userPoints, ShouldEqual, 0)
				So(calls[0].aiPoints, ShouldEqual, 15)
				So(calls[0].outcome, ShouldEqual, model.OutcomeMissed)
			})

			Convey("And the streak is untouched", func() {
				p, _ := store.Profile(ctx)
				So(p.CurrentStreak, ShouldEqual, 0)
			})
		})

		Convey("When a missed job arrives before the boundary", func() {
			now := time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC)
			So(q.Enqueue(ctx, queue.Job{Kind: queue.JobMissed, GoalID: "g1", At: now}), ShouldBeTrue)

			Convey("Then nothing is finalized", func() {
				time.Sleep(200 * time.Millisecond)
				So(store.finalizedCalls(), ShouldBeEmpty)
			})
		})
	})
}

func TestResolutionWorker_AlreadyResolved(t *testing.T) {
	Convey("Given a worker over a goal that is already completed", t, func() {
		done := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
		goal := model.Goal{
			ID:          "g1",
			Title:       "done already",
			Type:        model.GoalDaily,
			CreatedAt:   time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
			Completed:   true,
			CompletedAt: &done,
			Outcome:     model.OutcomeOnTime,
		}
		store := newFakeStore(goal)
		q := queue.NewInMemoryQueue()
		deduper := &recordingDeduper{}

		w := worker.NewResolutionWorker(q, store, dayEnd, time.UTC, worker.WithDeduper(deduper))

		ctx, cancel := context.WithCancel(context.Background())
		go w.Run(ctx)
		Reset(cancel)

		Convey("When a completion job arrives for it", func() {
			So(q.Enqueue(ctx, queue.Job{Kind: queue.JobComplete, GoalID: "g1", At: time.Now()}), ShouldBeTrue)

			Convey("Then the job is discarded without touching the store", func() {
				ok := eventually(func() bool { return len(deduper.releasedKeys()) == 1 })
				So(ok, ShouldBeTrue)
				So(store.finalizedCalls(), ShouldBeEmpty)
			})
		})
	})
}

func TestWorkerShutdown(t *testing.T) {
	Convey("Given a running worker", t, func() {
		store := newFakeStore()
		q := queue.NewInMemoryQueue()
		w := worker.NewResolutionWorker(q, store, dayEnd, time.UTC)

		ctx := context.Background()
		go w.Run(ctx)

		Convey("When it is shut down", func() {
			Convey("Then the loop exits before Shutdown returns", func() {
				So(w.Shutdown(ctx), ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a pool of workers sharing a queue", t, func() {
		goals := []model.Goal{
			{ID: "g1", Title: "a", Type: model.GoalLongTerm, CreatedAt: time.Now().UTC()},
			{ID: "g2", Title: "b", Type: model.GoalLongTerm, CreatedAt: time.Now().UTC()},
			{ID: "g3", Title: "c", Type: model.GoalLongTerm, CreatedAt: time.Now().UTC()},
		}
		store := newFakeStore(goals...)
		q := queue.NewInMemoryQueue()

		pool := worker.NewPool(3, q, store, dayEnd, time.UTC)

		ctx, cancel := context.WithCancel(context.Background())
		pool.Start(ctx)
		Reset(func() {
			cancel()
			pool.Stop()
		})

		Convey("When several completion jobs are enqueued", func() {
			for _, g := range goals {
				So(q.Enqueue(ctx, queue.Job{Kind: queue.JobComplete, GoalID: g.ID, At: time.Now()}), ShouldBeTrue)
			}

			Convey("Then every goal is resolved exactly once", func() {
				ok := eventually(func() bool { return len(store.finalizedCalls()) == 3 })
				So(ok, ShouldBeTrue)

				scores, _ := store.Scores(ctx)
				So(scores.UserPoints, ShouldEqual, 30) // 3 x no-deadline completions
				So(scores.AIPoints, ShouldEqual, 0)
			})
		})
	})
}
