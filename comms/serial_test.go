package comms

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// lineConn reads from a fixed script and records replies.
type lineConn struct {
	in  io.Reader
	out bytes.Buffer
}

func (c *lineConn) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c *lineConn) Write(p []byte) (int, error) { return c.out.Write(p) }

// timeoutReader returns empty reads like a serial port with a read timeout.
type timeoutReader struct {
	cancel context.CancelFunc
	reads  int
}

func (r *timeoutReader) Read(p []byte) (int, error) {
	r.reads++
	if r.reads == 3 {
		r.cancel()
	}
	return 0, nil
}

func TestSerialHandle(t *testing.T) {
	Convey("Given a serial sink", t, func() {
		core := newFakeCore()
		sink := NewSerialSink(core, core, quietLogger())

		Convey("target pairs are acknowledged with the stored values", func() {
			So(sink.Handle("1200 -800"), ShouldEqual, "OK 1200 -800")
			So(sink.Handle("3000,0"), ShouldEqual, "OK 2000 0")
			l, r := core.targets()
			So(l, ShouldEqual, 2000)
			So(r, ShouldEqual, 0)
		})

		Convey("stop zeroes the targets", func() {
			core.SetTargets(10, 10)
			So(sink.Handle("s"), ShouldEqual, "OK 0 0")
			So(core.stopCount(), ShouldEqual, 1)
		})

		Convey("? reports targets and speeds", func() {
			So(sink.Handle("?"), ShouldEqual, "T 500 480.5 -300 -310.0")
		})

		Convey("garbage gets a diagnostic and changes nothing", func() {
			core.SetTargets(5, 6)
			So(sink.Handle("go fast"), ShouldStartWith, "ERR ")
			l, r := core.targets()
			So(l, ShouldEqual, 5)
			So(r, ShouldEqual, 6)
		})

		Convey("blank lines get no reply", func() {
			So(sink.Handle("   "), ShouldEqual, "")
		})
	})
}

func TestSerialServeLines(t *testing.T) {
	Convey("a script of lines gets one reply per non-blank line", t, func() {
		core := newFakeCore()
		sink := NewSerialSink(core, core, quietLogger())
		conn := &lineConn{in: strings.NewReader("100 200\r\n\nbogus\nstop\n" + strings.Repeat("9", 200) + "\n")}

		So(sink.ServeLines(context.Background(), conn), ShouldBeNil)
		So(conn.out.String(), ShouldEqual,
			"OK 100 200\nERR want 2 targets, got 1\nOK 0 0\nERR line too long\n")
	})

	Convey("empty timed out reads keep serving until canceled", t, func() {
		core := newFakeCore()
		sink := NewSerialSink(core, core, quietLogger())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		r := &timeoutReader{cancel: cancel}
		err := sink.ServeLines(ctx, struct {
			io.Reader
			io.Writer
		}{r, io.Discard})
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
		So(r.reads, ShouldEqual, 3)
	})
}
