package comms

import (
	"errors"
	"net/url"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseCommand(t *testing.T) {
	Convey("target pairs parse with spaces or a comma", t, func() {
		c, err := ParseCommand("1200 -800")
		So(err, ShouldBeNil)
		So(c, ShouldResemble, Command{Left: 1200, Right: -800})

		c, err = ParseCommand(" 12.5,-3\r\n")
		So(err, ShouldBeNil)
		So(c, ShouldResemble, Command{Left: 12.5, Right: -3})
	})

	Convey("stop has a long and a short form", t, func() {
		for _, in := range []string{"stop", "s", "STOP"} {
			c, err := ParseCommand(in)
			So(err, ShouldBeNil)
			So(c.Stop, ShouldBeTrue)
		}
	})

	Convey("malformed input is rejected with a diagnostic", t, func() {
		for _, in := range []string{"", "100", "1 2 3", "abc 5", "5 NaN", "Inf 0", "1e400 0"} {
			_, err := ParseCommand(in)
			So(err, ShouldNotBeNil)
			So(errors.Is(err, ErrMalformedCommand), ShouldBeTrue)

			var merr MalformedCommandError
			So(errors.As(err, &merr), ShouldBeTrue)
			So(merr.Reason, ShouldNotBeEmpty)
		}
	})
}

func TestParseQuery(t *testing.T) {
	Convey("l and r are both required", t, func() {
		c, err := ParseQuery(url.Values{"l": {"500"}, "r": {"-300"}})
		So(err, ShouldBeNil)
		So(c, ShouldResemble, Command{Left: 500, Right: -300})

		_, err = ParseQuery(url.Values{"l": {"500"}})
		So(errors.Is(err, ErrMalformedCommand), ShouldBeTrue)

		_, err = ParseQuery(url.Values{"l": {"fast"}, "r": {"1"}})
		So(err.Error(), ShouldContainSubstring, "not a number")
	})
}

func TestCommandApply(t *testing.T) {
	Convey("applying a command clamps through the core", t, func() {
		core := newFakeCore()
		l, r := Command{Left: 2500, Right: -10}.Apply(core)
		So(l, ShouldEqual, 2000)
		So(r, ShouldEqual, -10)

		l, r = Command{Stop: true}.Apply(core)
		So(l, ShouldEqual, 0)
		So(r, ShouldEqual, 0)
		So(core.stopCount(), ShouldEqual, 1)
	})
}
