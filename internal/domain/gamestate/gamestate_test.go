package gamestate_test

import (
	"testing"

	"github.com/okian/rival/internal/domain/gamestate"
	"github.com/okian/rival/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClassify(t *testing.T) {
	Convey("Given a running game day", t, func() {
		Convey("When the user leads", func() {
			state := gamestate.Classify(model.ScoreState{UserPoints: 20, AIPoints: 5}, false)
			So(state, ShouldEqual, gamestate.UserWinning)
		})

		Convey("When the AI leads", func() {
			state := gamestate.Classify(model.ScoreState{UserPoints: 5, AIPoints: 20}, false)
			So(state, ShouldEqual, gamestate.AIWinning)
		})

		Convey("When the totals are equal", func() {
			state := gamestate.Classify(model.ScoreState{UserPoints: 10, AIPoints: 10}, false)
			So(state, ShouldEqual, gamestate.Tied)
		})

		Convey("When both totals are zero", func() {
			state := gamestate.Classify(model.ScoreState{}, false)
			So(state, ShouldEqual, gamestate.Tied)
		})

		Convey("When the AI total is negative and the user is at zero", func() {
			state := gamestate.Classify(model.ScoreState{UserPoints: 0, AIPoints: -5}, false)
			So(state, ShouldEqual, gamestate.UserWinning)
		})
	})

	Convey("Given the day boundary has been reached", t, func() {
		Convey("When the user leads", func() {
			state := gamestate.Classify(model.ScoreState{UserPoints: 30, AIPoints: 15}, true)
			So(state, ShouldEqual, gamestate.Victory)
		})

		Convey("When the AI leads", func() {
			state := gamestate.Classify(model.ScoreState{UserPoints: 15, AIPoints: 30}, true)
			So(state, ShouldEqual, gamestate.Defeat)
		})

		Convey("When the totals are equal", func() {
			state := gamestate.Classify(model.ScoreState{UserPoints: 10, AIPoints: 10}, true)
			So(state, ShouldEqual, gamestate.EndOfDay)
		})
	})

	Convey("Given classification is pure", t, func() {
		Convey("Then identical inputs always yield the identical state", func() {
			s := model.ScoreState{UserPoints: 7, AIPoints: 3}
			first := gamestate.Classify(s, false)
			for i := 0; i < 10; i++ {
				So(gamestate.Classify(s, false), ShouldEqual, first)
			}
		})
	})
}
