package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/rival/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new in-memory deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()
		ctx := context.Background()

		Convey("When recording an unseen key", func() {
			So(d.SeenAndRecord(ctx, "complete:g1"), ShouldBeFalse)

			Convey("Then the same key is seen afterwards", func() {
				So(d.SeenAndRecord(ctx, "complete:g1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And a different key for the same goal is independent", func() {
				So(d.SeenAndRecord(ctx, "missed:g1"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 2)
			})
		})

		Convey("When a key is unrecorded", func() {
			So(d.SeenAndRecord(ctx, "complete:g2"), ShouldBeFalse)
			d.Unrecord(ctx, "complete:g2")

			Convey("Then it can be recorded again", func() {
				So(d.SeenAndRecord(ctx, "complete:g2"), ShouldBeFalse)
			})
		})

		Convey("When unrecording a key that was never recorded", func() {
			So(func() { d.Unrecord(ctx, "missing") }, ShouldNotPanic)
		})
	})
}

func TestInMemoryDeduper_Eviction(t *testing.T) {
	Convey("Given a deduper bounded to two entries", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
		ctx := context.Background()

		Convey("When a third key arrives", func() {
			So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, "b"), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, "c"), ShouldBeFalse)

			Convey("Then the oldest key was evicted", func() {
				So(d.Size(), ShouldEqual, 2)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
			})
		})
	})
}

func TestInMemoryDeduper_Concurrency(t *testing.T) {
	Convey("Given concurrent recorders of the same key set", t, func() {
		d := dedupe.NewInMemoryDeduper()
		ctx := context.Background()

		const workers = 8
		const keys = 100

		var mu sync.Mutex
		firsts := make(map[string]int)

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < keys; i++ {
					key := fmt.Sprintf("complete:%d", i)
					if !d.SeenAndRecord(ctx, key) {
						mu.Lock()
						firsts[key]++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each key is newly recorded exactly once", func() {
			So(len(firsts), ShouldEqual, keys)
			for _, n := range firsts {
				So(n, ShouldEqual, 1)
			}
			So(d.Size(), ShouldEqual, keys)
		})
	})
}
