package control

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestActuationMapper(t *testing.T) {
	m := NewActuationMapper(ActuationConfig{DutyMax: 1023, MinDutyStart: 300})

	Convey("effort inside the dead zone coasts regardless of sign", t, func() {
		for _, u := range []float64{0, 0.5, -0.5, 0.999, -0.999} {
			out := m.Map(u)
			So(out.Duty, ShouldEqual, 0)
			So(out.Coast, ShouldBeTrue)
		}
		So(m.Map(-0.5).Direction, ShouldEqual, Reverse)
		So(m.Map(0).Direction, ShouldEqual, Forward)
	})

	Convey("the smallest effort outside the dead zone starts at the friction floor", t, func() {
		out := m.Map(1)
		So(out.Coast, ShouldBeFalse)
		So(out.Duty, ShouldEqual, 301)
		So(m.Map(-1).Duty, ShouldEqual, 301)
		So(m.Map(-1).Direction, ShouldEqual, Reverse)
	})

	Convey("effort beyond full scale clamps to DutyMax", t, func() {
		So(m.Map(1023).Duty, ShouldEqual, 1023)
		So(m.Map(5000).Duty, ShouldEqual, 1023)
		So(m.Map(-5000).Duty, ShouldEqual, 1023)
	})

	Convey("midscale effort is remapped linearly", t, func() {
		// 300 + 511.5*723/1023 = 661.5
		So(m.Map(511.5).Duty, ShouldEqual, 662)
	})

	Convey("duty never decreases as |u| grows and stays in range", t, func() {
		prev := 0
		ok := true
		for u := 1.0; u <= 1500; u += 0.25 {
			d := m.Map(u).Duty
			if d < prev || d < 300 || d > 1023 || m.Map(-u).Duty != d {
				ok = false
			}
			prev = d
		}
		So(ok, ShouldBeTrue)
	})

	Convey("a zero friction floor maps effort straight to duty", t, func() {
		linear := NewActuationMapper(ActuationConfig{DutyMax: 255})
		So(linear.Map(100).Duty, ShouldEqual, 100)
		So(linear.Map(-254.6).Duty, ShouldEqual, 255)
	})
}
