package comms

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"dd-drive/utils"
)

func loadMotorMap() *utils.CANMap {
	m, err := utils.LoadCANMap("../config/can/can_map.csv")
	if err != nil {
		panic(err)
	}
	return m
}

var motorFrames = CANConfig{CommandFrame: "MOTOR_CMD", TelemetryFrame: "MOTOR_STATE"}

func TestCANBridgeSetup(t *testing.T) {
	Convey("frames must exist and point the right way", t, func() {
		m := loadMotorMap()
		bus := newFakeBus()
		core := newFakeCore()

		_, err := NewCANBridge(m, motorFrames, bus, bus, core, core, quietLogger())
		So(err, ShouldBeNil)

		_, err = NewCANBridge(m, CANConfig{CommandFrame: "MOTOR_STATE", TelemetryFrame: "MOTOR_STATE"},
			bus, bus, core, core, quietLogger())
		So(err, ShouldNotBeNil)

		_, err = NewCANBridge(m, CANConfig{CommandFrame: "MOTOR_CMD", TelemetryFrame: "NOPE"},
			bus, bus, core, core, quietLogger())
		So(err, ShouldNotBeNil)
	})
}

func TestCANBridgeFrames(t *testing.T) {
	Convey("Given a bridge on the motor map", t, func() {
		m := loadMotorMap()
		bus := newFakeBus()
		core := newFakeCore()
		b, err := NewCANBridge(m, motorFrames, bus, bus, core, core, quietLogger())
		So(err, ShouldBeNil)

		Convey("a command frame sets clamped targets", func() {
			f, err := m.EncodeFrame("MOTOR_CMD", map[string]float64{"target_left_cps": 2500, "target_right_cps": -750})
			So(err, ShouldBeNil)
			So(b.HandleFrame(f), ShouldBeNil)
			l, r := core.targets()
			So(l, ShouldEqual, 2000)
			So(r, ShouldEqual, -750)
		})

		Convey("the stop bit wins over targets", func() {
			f, _ := m.EncodeFrame("MOTOR_CMD", map[string]float64{"target_left_cps": 900, "stop": 1})
			So(b.HandleFrame(f), ShouldBeNil)
			So(core.stopCount(), ShouldEqual, 1)
		})

		Convey("frames with other IDs are ignored", func() {
			f, _ := m.EncodeFrame("MOTOR_STATE", map[string]float64{"target_left_cps": 900})
			So(b.HandleFrame(f), ShouldBeNil)
			l, _ := core.targets()
			So(l, ShouldEqual, 0)
		})

		Convey("the telemetry frame carries targets and rounded speeds", func() {
			f, err := b.TelemetryFrame()
			So(err, ShouldBeNil)
			So(f.ID, ShouldEqual, 0x310)

			_, vals, err := m.DecodeFrame(f)
			So(err, ShouldBeNil)
			So(vals["target_left_cps"], ShouldEqual, 500)
			So(vals["measured_left_cps"], ShouldEqual, 481)
			So(vals["target_right_cps"], ShouldEqual, -300)
			So(vals["measured_right_cps"], ShouldEqual, -310)
		})
	})
}

func TestCANBridgeRun(t *testing.T) {
	Convey("run applies received commands and transmits until canceled", t, func() {
		m := loadMotorMap()
		bus := newFakeBus()
		core := newFakeCore()
		b, _ := NewCANBridge(m, motorFrames, bus, bus, core, core, quietLogger())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- b.Run(ctx) }()

		f, _ := m.EncodeFrame("MOTOR_CMD", map[string]float64{"target_left_cps": 123, "target_right_cps": 456})
		bus.rx <- f

		deadline := time.Now().Add(2 * time.Second)
		for bus.written() < 2 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		cancel()

		So(<-done, ShouldEqual, context.Canceled)
		So(bus.written(), ShouldBeGreaterThanOrEqualTo, 2)
		l, r := core.targets()
		So(l, ShouldEqual, 123)
		So(r, ShouldEqual, 456)
	})
}
