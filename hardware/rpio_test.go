package hardware

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	control "dd-drive/closed_loop/speed_control"
)

type fakePin struct {
	high bool
}

func (p *fakePin) High() { p.high = true }
func (p *fakePin) Low()  { p.high = false }

type fakePWM struct {
	duty, cycle uint32
}

func (p *fakePWM) DutyCycle(dutyLen, cycleLen uint32) {
	p.duty, p.cycle = dutyLen, cycleLen
}

func newFakeMotor() (*RPIOMotor, *fakePWM, *fakePin, *fakePin) {
	pwm, in1, in2 := &fakePWM{}, &fakePin{}, &fakePin{}
	return newMotor("test", pwm, in1, in2, 1023), pwm, in1, in2
}

func TestRPIOMotorApply(t *testing.T) {
	Convey("forward drives IN1 high and sets the duty", t, func() {
		m, pwm, in1, in2 := newFakeMotor()
		So(m.Apply(control.Output{Duty: 662, Direction: control.Forward}), ShouldBeNil)
		So(in1.high, ShouldBeTrue)
		So(in2.high, ShouldBeFalse)
		So(pwm.duty, ShouldEqual, 662)
		So(pwm.cycle, ShouldEqual, 1023)

		Convey("reverse swaps the bridge inputs", func() {
			So(m.Apply(control.Output{Duty: 1023, Direction: control.Reverse}), ShouldBeNil)
			So(in1.high, ShouldBeFalse)
			So(in2.high, ShouldBeTrue)
			So(pwm.duty, ShouldEqual, 1023)
		})

		Convey("coast releases both inputs and the duty", func() {
			So(m.Apply(control.Output{Direction: control.Forward, Coast: true}), ShouldBeNil)
			So(in1.high, ShouldBeFalse)
			So(in2.high, ShouldBeFalse)
			So(pwm.duty, ShouldEqual, 0)
		})
	})

	Convey("out-of-range duty is refused and leaves the pins alone", t, func() {
		m, pwm, in1, _ := newFakeMotor()
		So(m.Apply(control.Output{Duty: 500, Direction: control.Forward}), ShouldBeNil)
		So(m.Apply(control.Output{Duty: 1024, Direction: control.Reverse}), ShouldNotBeNil)
		So(m.Apply(control.Output{Duty: -1, Direction: control.Reverse}), ShouldNotBeNil)
		So(pwm.duty, ShouldEqual, 500)
		So(in1.high, ShouldBeTrue)
	})
}

func TestPWMClock(t *testing.T) {
	Convey("the PWM clock is capped at the hardware maximum", t, func() {
		So(pwmClock(1000, 1023), ShouldEqual, 1023000)
		So(pwmClock(20000, 1023), ShouldEqual, maxPWMClock)

		m, _, _, _ := newFakeMotor()
		m.clock = pwmClock(20000, 1023)
		So(m.EffectiveFreq(), ShouldAlmostEqual, float64(maxPWMClock)/1023, 1e-6)
	})
}
