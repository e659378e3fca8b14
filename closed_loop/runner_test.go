package main

import (
	"context"
	"io"
	"math"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"dd-drive/utils"
)

func TestRunnerSimulated(t *testing.T) {
	Convey("a simulated runner tracks targets and stops on cancel", t, func() {
		cfg := DefaultConfig()
		log := utils.NewLogger(io.Discard, utils.CRITICAL)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		r, err := NewRunner(ctx, cfg, RunnerOptions{Simulated: true}, log)
		So(err, ShouldBeNil)
		defer r.Close()

		done := make(chan error, 1)
		go func() { done <- r.Run(ctx) }()

		r.Scheduler().SetTargets(1000, -600)

		tracking := func() bool {
			tel := r.Scheduler().Telemetry()
			return math.Abs(tel.Left.Measured-1000) < 150 && math.Abs(tel.Right.Measured+600) < 150
		}
		deadline := time.Now().Add(5 * time.Second)
		for !tracking() && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		So(tracking(), ShouldBeTrue)

		cancel()
		select {
		case err := <-done:
			So(err, ShouldEqual, context.Canceled)
		case <-time.After(3 * time.Second):
			So("runner did not stop", ShouldBeEmpty)
		}
	})

	Convey("sinks need valid settings", t, func() {
		cfg := DefaultConfig()
		cfg.CAN.Interface = "vcan-test"
		cfg.CAN.MapPath = "does/not/exist.csv"

		_, err := NewRunner(context.Background(), cfg, RunnerOptions{Simulated: true},
			utils.NewLogger(io.Discard, utils.CRITICAL))
		So(err, ShouldNotBeNil)
	})
}
