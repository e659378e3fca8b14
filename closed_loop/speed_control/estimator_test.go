package control

import (
	"math/rand"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSpeedEstimator(t *testing.T) {
	Convey("the first sample measures motion since construction", t, func() {
		c := &fakeCounter{}
		c.add(12345)
		e := NewSpeedEstimator(c, testPeriod)
		So(e.Sample(), ShouldEqual, 0)

		c.add(50)
		So(e.Sample(), ShouldEqual, float64(50)/testPeriod.Seconds())
		So(e.Snapshot(), ShouldEqual, 12395)

		Convey("reverse motion reads negative", func() {
			c.add(-20)
			So(e.Sample(), ShouldEqual, float64(-20)/testPeriod.Seconds())
		})
	})

	Convey("velocity equals count difference over the interval for any trajectory", t, func() {
		rng := rand.New(rand.NewSource(3))
		for _, ts := range []time.Duration{time.Millisecond, 10 * time.Millisecond, 50 * time.Millisecond, 333 * time.Millisecond} {
			c := &fakeCounter{}
			e := NewSpeedEstimator(c, ts)
			prev := c.Count()
			exact := true
			for i := 0; i < 200; i++ {
				c.add(int64(rng.Intn(2001) - 1000))
				want := float64(c.Count()-prev) / ts.Seconds()
				if e.Sample() != want {
					exact = false
				}
				prev = c.Count()
			}
			So(exact, ShouldBeTrue)
		}
	})
}
