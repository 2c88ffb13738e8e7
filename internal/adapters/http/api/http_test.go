package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/rival/internal/adapters/http/api"
	"github.com/okian/rival/internal/adapters/repository"
	service "github.com/okian/rival/internal/app"
	"github.com/okian/rival/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeDeps implements api.Dependencies and api.StatsProvider with canned
// behavior per goal id.
type fakeDeps struct {
	goals     []types.GoalView
	completed []string
}

func (f *fakeDeps) CreateGoal(_ context.Context, title, goalType, dueDate, dueTime string) (types.GoalView, error) {
	if strings.TrimSpace(title) == "" || (goalType != "daily" && goalType != "long_term") {
		return types.GoalView{}, fmt.Errorf("%w: bad request", service.ErrInvalidGoal)
	}
	g := types.GoalView{ID: "goal-1", Title: title, Type: goalType, DueDate: dueDate, DueTime: dueTime}
	f.goals = append(f.goals, g)
	return g, nil
}

func (f *fakeDeps) Goals(context.Context, bool, int) ([]types.GoalView, error) {
	return f.goals, nil
}

func (f *fakeDeps) CompleteGoal(_ context.Context, id string) error {
	switch id {
	case "missing":
		return fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	case "done":
		return fmt.Errorf("goal %s: %w", id, service.ErrDuplicateRequest)
	case "full":
		return fmt.Errorf("goal %s: %w", id, service.ErrQueueFull)
	}
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeDeps) State(context.Context) (types.StateView, error) {
	return types.StateView{
		GameState: "user_winning",
		Countdown: "1h 30m",
		Intensity: 0.42,
		Tier:      "medium",
		Momentum:  "user",
	}, nil
}

func (f *fakeDeps) Scoreboard(context.Context) (types.ScoreboardView, error) {
	return types.ScoreboardView{UserPoints: 25, AIPoints: 10, Margin: 15, GameState: "user_winning"}, nil
}

func (f *fakeDeps) Stats() types.StatsView {
	return types.StatsView{Started: true, WorkerCount: 2}
}

func newTestServer(deps *fakeDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, deps).Register(context.Background(), mux)
	return mux
}

func TestGoalsEndpoint(t *testing.T) {
	Convey("Given the API routes", t, func() {
		deps := &fakeDeps{}
		mux := newTestServer(deps)

		Convey("When posting a valid goal", func() {
			body := `{"title":"run 5k","type":"daily","due_time":"18:00"}`
			req := httptest.NewRequest(http.MethodPost, "/goals", strings.NewReader(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then it is created", func() {
				So(rec.Code, ShouldEqual, http.StatusCreated)
				var got types.GoalView
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(got.ID, ShouldEqual, "goal-1")
				So(got.Title, ShouldEqual, "run 5k")
				So(got.DueTime, ShouldEqual, "18:00")
			})
		})

		Convey("When posting malformed JSON", func() {
			req := httptest.NewRequest(http.MethodPost, "/goals", strings.NewReader("{nope"))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When posting an invalid goal", func() {
			body := `{"title":"","type":"daily"}`
			req := httptest.NewRequest(http.MethodPost, "/goals", strings.NewReader(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When listing goals", func() {
			_, err := deps.CreateGoal(context.Background(), "stretch", "daily", "", "")
			So(err, ShouldBeNil)

			req := httptest.NewRequest(http.MethodGet, "/goals?include_completed=true&limit=5", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusOK)
			var got []types.GoalView
			So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
			So(len(got), ShouldEqual, 1)
		})

		Convey("When the limit parameter is garbage", func() {
			req := httptest.NewRequest(http.MethodGet, "/goals?limit=lots", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When using an unsupported method", func() {
			req := httptest.NewRequest(http.MethodDelete, "/goals", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestCompleteEndpoint(t *testing.T) {
	Convey("Given the API routes", t, func() {
		deps := &fakeDeps{}
		mux := newTestServer(deps)

		post := func(path string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			return rec
		}

		Convey("When completing an open goal", func() {
			rec := post("/goals/g1/complete")
			So(rec.Code, ShouldEqual, http.StatusAccepted)

			var ack struct {
				Status string `json:"status"`
				ID     string `json:"id"`
			}
			So(json.Unmarshal(rec.Body.Bytes(), &ack), ShouldBeNil)
			So(ack.Status, ShouldEqual, "accepted")
			So(ack.ID, ShouldEqual, "g1")
			So(deps.completed, ShouldResemble, []string{"g1"})
		})

		Convey("When the goal does not exist", func() {
			So(post("/goals/missing/complete").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the goal is already resolved or in flight", func() {
			So(post("/goals/done/complete").Code, ShouldEqual, http.StatusConflict)
		})

		Convey("When the resolution queue is full", func() {
			So(post("/goals/full/complete").Code, ShouldEqual, http.StatusTooManyRequests)
		})

		Convey("When the path is malformed", func() {
			So(post("/goals/g1/finish").Code, ShouldEqual, http.StatusBadRequest)
			So(post("/goals/g1").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When using GET on the completion path", func() {
			req := httptest.NewRequest(http.MethodGet, "/goals/g1/complete", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestStateEndpoint(t *testing.T) {
	Convey("Given the API routes", t, func() {
		mux := newTestServer(&fakeDeps{})

		Convey("When reading the state", func() {
			req := httptest.NewRequest(http.MethodGet, "/state", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusOK)
			var got types.StateView
			So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
			So(got.GameState, ShouldEqual, "user_winning")
			So(got.Countdown, ShouldEqual, "1h 30m")
			So(got.Tier, ShouldEqual, "medium")
		})
	})
}

func TestScoreboardEndpoint(t *testing.T) {
	Convey("Given the API routes", t, func() {
		mux := newTestServer(&fakeDeps{})

		Convey("When reading the scoreboard", func() {
			req := httptest.NewRequest(http.MethodGet, "/scoreboard", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusOK)
			var got types.ScoreboardView
			So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
			So(got.UserPoints, ShouldEqual, 25)
			So(got.Margin, ShouldEqual, 15)
		})
	})
}

func TestStatsEndpoint(t *testing.T) {
	Convey("Given the API routes", t, func() {
		mux := newTestServer(&fakeDeps{})

		Convey("When reading the stats", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusOK)
			var got types.StatsView
			So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
			So(got.Started, ShouldBeTrue)
			So(got.WorkerCount, ShouldEqual, 2)
		})
	})
}

func TestHealthEndpoint(t *testing.T) {
	Convey("Given the API routes", t, func() {
		mux := newTestServer(&fakeDeps{})

		Convey("When probing health", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the metrics exposition is served", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "rival_arena_")
			})
		})
	})
}
