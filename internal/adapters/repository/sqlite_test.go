package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/rival/internal/adapters/repository"
	"github.com/okian/rival/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func newStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	store, err := repository.NewSQLiteStore(
		context.Background(),
		filepath.Join(t.TempDir(), "goals.db"),
		repository.WithLocation(time.UTC),
	)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Goals(t *testing.T) {
	Convey("Given an empty store", t, func() {
		store := newStore(t)
		ctx := context.Background()

		Convey("When a goal is created", func() {
			due := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
			dueTime := model.DayBoundary{Hour: 18, Minute: 30}
			g := model.Goal{
				ID:        "g1",
				Title:     "ship the report",
				Type:      model.GoalLongTerm,
				DueDate:   &due,
				DueTime:   &dueTime,
				CreatedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
			}
			So(store.CreateGoal(ctx, g), ShouldBeNil)

			Convey("Then it reads back with all fields intact", func() {
				got, err := store.Goal(ctx, "g1")
				So(err, ShouldBeNil)
				So(got.Title, ShouldEqual, "ship the report")
				So(got.Type, ShouldEqual, model.GoalLongTerm)
				So(got.DueDate, ShouldNotBeNil)
				So(got.DueDate.Format("2006-01-02"), ShouldEqual, "2025-03-15")
				So(got.DueTime, ShouldNotBeNil)
				So(got.DueTime.String(), ShouldEqual, "18:30")
				So(got.CreatedAt.Equal(g.CreatedAt), ShouldBeTrue)
				So(got.Completed, ShouldBeFalse)
				So(got.CompletedAt, ShouldBeNil)
			})

			Convey("And a duplicate id is rejected", func() {
				err := store.CreateGoal(ctx, g)
				So(errors.Is(err, repository.ErrDuplicateID), ShouldBeTrue)
			})
		})

		Convey("When looking up an unknown id", func() {
			_, err := store.Goal(ctx, "missing")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When listing goals", func() {
			base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
			for i, id := range []string{"old", "mid", "new"} {
				So(store.CreateGoal(ctx, model.Goal{
					ID:        id,
					Title:     id,
					Type:      model.GoalDaily,
					CreatedAt: base.Add(time.Duration(i) * time.Hour),
				}), ShouldBeNil)
			}

			Convey("Then they come back newest first", func() {
				goals, err := store.Goals(ctx, true, 10)
				So(err, ShouldBeNil)
				So(len(goals), ShouldEqual, 3)
				So(goals[0].ID, ShouldEqual, "new")
				So(goals[2].ID, ShouldEqual, "old")
			})

			Convey("And the limit caps the page", func() {
				goals, err := store.Goals(ctx, true, 2)
				So(err, ShouldBeNil)
				So(len(goals), ShouldEqual, 2)
			})
		})
	})
}

func TestSQLiteStore_FinalizeGoal(t *testing.T) {
	Convey("Given a store with one open goal", t, func() {
		store := newStore(t)
		ctx := context.Background()

		g := model.Goal{
			ID:        "g1",
			Title:     "workout",
			Type:      model.GoalDaily,
			CreatedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		}
		So(store.CreateGoal(ctx, g), ShouldBeNil)

		completedAt := time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC)

		Convey("When the goal is finalized", func() {
			applied, err := store.FinalizeGoal(ctx, "g1", completedAt, 5, 5, model.OutcomeOnTime)
			So(err, ShouldBeNil)
			So(applied, ShouldBeTrue)

			Convey("Then the goal carries its resolution", func() {
				got, err := store.Goal(ctx, "g1")
				So(err, ShouldBeNil)
				So(got.Completed, ShouldBeTrue)
				So(got.Outcome, ShouldEqual, model.OutcomeOnTime)
				So(got.PointsEarned, ShouldEqual, 5)
				So(got.AIPointsEarned, ShouldEqual, 5)
				So(got.CompletedAt, ShouldNotBeNil)
				So(got.CompletedAt.Equal(completedAt), ShouldBeTrue)
			})

			Convey("And the point deltas landed on the profile", func() {
				scores, err := store.Scores(ctx)
				So(err, ShouldBeNil)
				So(scores.UserPoints, ShouldEqual, 5)
				So(scores.AIPoints, ShouldEqual, 5)
			})

			Convey("And a second finalization is a no-op", func() {
				applied, err := store.FinalizeGoal(ctx, "g1", completedAt.Add(time.Hour), 0, 15, model.OutcomeMissed)
				So(err, ShouldBeNil)
				So(applied, ShouldBeFalse)

				got, err := store.Goal(ctx, "g1")
				So(err, ShouldBeNil)
				So(got.Outcome, ShouldEqual, model.OutcomeOnTime)

				scores, err := store.Scores(ctx)
				So(err, ShouldBeNil)
				So(scores.UserPoints, ShouldEqual, 5)
				So(scores.AIPoints, ShouldEqual, 5)
			})
		})

		Convey("When point deltas are negative they subtract", func() {
			applied, err := store.FinalizeGoal(ctx, "g1", completedAt, 20, -5, model.OutcomeEarly)
			So(err, ShouldBeNil)
			So(applied, ShouldBeTrue)

			scores, err := store.Scores(ctx)
			So(err, ShouldBeNil)
			So(scores.UserPoints, ShouldEqual, 20)
			So(scores.AIPoints, ShouldEqual, -5)
		})
	})
}

func TestSQLiteStore_ConcurrentFinalize(t *testing.T) {
	Convey("Given many writers racing to finalize the same goal", t, func() {
		store := newStore(t)
		ctx := context.Background()

		So(store.CreateGoal(ctx, model.Goal{
			ID:        "g1",
			Title:     "contested",
			Type:      model.GoalDaily,
			CreatedAt: time.Now().UTC(),
		}), ShouldBeNil)

		const writers = 8
		var wg sync.WaitGroup
		appliedCount := make(chan bool, writers)

		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				applied, err := store.FinalizeGoal(ctx, "g1", time.Now().UTC(), 5, 5, model.OutcomeOnTime)
				if err == nil && applied {
					appliedCount <- true
				}
			}()
		}
		wg.Wait()
		close(appliedCount)

		Convey("Then exactly one writer applies the resolution", func() {
			wins := 0
			for range appliedCount {
				wins++
			}
			So(wins, ShouldEqual, 1)

			scores, err := store.Scores(ctx)
			So(err, ShouldBeNil)
			So(scores.UserPoints, ShouldEqual, 5)
			So(scores.AIPoints, ShouldEqual, 5)
		})
	})
}

func TestSQLiteStore_Profile(t *testing.T) {
	Convey("Given a fresh store", t, func() {
		store := newStore(t)
		ctx := context.Background()

		Convey("Then the profile starts zeroed", func() {
			p, err := store.Profile(ctx)
			So(err, ShouldBeNil)
			So(p.Scores.UserPoints, ShouldEqual, 0)
			So(p.Scores.AIPoints, ShouldEqual, 0)
			So(p.CurrentStreak, ShouldEqual, 0)
			So(p.LongestStreak, ShouldEqual, 0)
			So(p.LastGoalDate, ShouldBeNil)
		})

		Convey("When the streak is advanced", func() {
			day := time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC)
			So(store.SetStreak(ctx, 4, 9, day), ShouldBeNil)

			Convey("Then the profile reflects it", func() {
				p, err := store.Profile(ctx)
				So(err, ShouldBeNil)
				So(p.CurrentStreak, ShouldEqual, 4)
				So(p.LongestStreak, ShouldEqual, 9)
				So(p.LastGoalDate, ShouldNotBeNil)
				So(p.LastGoalDate.Format("2006-01-02"), ShouldEqual, "2025-03-10")
			})
		})
	})
}

func TestSQLiteStore_Counts(t *testing.T) {
	Convey("Given a store with open and completed goals", t, func() {
		store := newStore(t)
		ctx := context.Background()

		now := time.Now().UTC()
		for _, id := range []string{"a", "b", "c"} {
			So(store.CreateGoal(ctx, model.Goal{ID: id, Title: id, Type: model.GoalDaily, CreatedAt: now}), ShouldBeNil)
		}
		applied, err := store.FinalizeGoal(ctx, "a", now, 5, 5, model.OutcomeOnTime)
		So(err, ShouldBeNil)
		So(applied, ShouldBeTrue)

		Convey("Then CountGoals separates open from total", func() {
			open, total, err := store.CountGoals(ctx)
			So(err, ShouldBeNil)
			So(open, ShouldEqual, 2)
			So(total, ShouldEqual, 3)
		})

		Convey("And OpenGoals excludes the completed one", func() {
			goals, err := store.OpenGoals(ctx)
			So(err, ShouldBeNil)
			So(len(goals), ShouldEqual, 2)
			for _, g := range goals {
				So(g.ID, ShouldNotEqual, "a")
			}
		})

		Convey("And the default listing hides completed goals", func() {
			goals, err := store.Goals(ctx, false, 10)
			So(err, ShouldBeNil)
			So(len(goals), ShouldEqual, 2)
		})
	})
}
