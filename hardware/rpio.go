// Package hardware holds the motor drivers the control loop actuates: an
// H-bridge on Raspberry Pi PWM pins and a simulated plant for bench runs.
package hardware

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"

	control "dd-drive/closed_loop/speed_control"
)

// Highest PWM clock the BCM283x accepts.
const maxPWMClock = 19_200_000

// PinConfig wires one H-bridge channel.
type PinConfig struct {
	PWM int `yaml:"pwm_pin"`
	In1 int `yaml:"in1_pin"`
	In2 int `yaml:"in2_pin"`
}

// outputPin is the subset of rpio.Pin the driver touches.
type outputPin interface {
	High()
	Low()
}

type pwmPin interface {
	DutyCycle(dutyLen, cycleLen uint32)
}

var (
	gpioMu   sync.Mutex
	gpioRefs int
)

// OpenGPIO maps the BCM registers. Calls nest; each needs a CloseGPIO.
func OpenGPIO() error {
	gpioMu.Lock()
	defer gpioMu.Unlock()
	if gpioRefs == 0 {
		if err := rpio.Open(); err != nil {
			return fmt.Errorf("open gpio memory: %w", err)
		}
	}
	gpioRefs++
	return nil
}

func CloseGPIO() error {
	gpioMu.Lock()
	defer gpioMu.Unlock()
	if gpioRefs == 0 {
		return nil
	}
	gpioRefs--
	if gpioRefs == 0 {
		return rpio.Close()
	}
	return nil
}

// RPIOMotor drives an H-bridge: IN1/IN2 select direction, the PWM pin
// carries the duty. Coast pulls both inputs low.
type RPIOMotor struct {
	name  string
	pwm   pwmPin
	in1   outputPin
	in2   outputPin
	cycle uint32
	clock int
}

// NewRPIOMotor configures the pins of one channel. OpenGPIO must have
// succeeded first.
func NewRPIOMotor(name string, pins PinConfig, act control.ActuationConfig) (*RPIOMotor, error) {
	if pins.PWM == pins.In1 || pins.PWM == pins.In2 || pins.In1 == pins.In2 {
		return nil, fmt.Errorf("%s: pins must be distinct: %+v", name, pins)
	}
	if act.DutyMax <= 0 || act.PWMFreqHz <= 0 {
		return nil, fmt.Errorf("%s: invalid actuation config %+v", name, act)
	}

	pwm := rpio.Pin(pins.PWM)
	in1 := rpio.Pin(pins.In1)
	in2 := rpio.Pin(pins.In2)
	pwm.Mode(rpio.Pwm)
	in1.Output()
	in2.Output()

	clock := pwmClock(act.PWMFreqHz, act.DutyMax)
	pwm.Freq(clock)

	m := newMotor(name, pwm, in1, in2, act.DutyMax)
	m.clock = clock
	if err := m.Apply(control.Output{Direction: control.Forward, Coast: true}); err != nil {
		return nil, err
	}
	return m, nil
}

func newMotor(name string, pwm pwmPin, in1, in2 outputPin, dutyMax int) *RPIOMotor {
	return &RPIOMotor{name: name, pwm: pwm, in1: in1, in2: in2, cycle: uint32(dutyMax)}
}

// pwmClock is the clock that yields freqHz with a cycle of dutyMax steps,
// capped at what the hardware accepts.
func pwmClock(freqHz, dutyMax int) int {
	clock := freqHz * dutyMax
	if clock > maxPWMClock {
		clock = maxPWMClock
	}
	return clock
}

// EffectiveFreq is the PWM frequency actually produced after clock capping.
func (m *RPIOMotor) EffectiveFreq() float64 {
	if m.cycle == 0 {
		return 0
	}
	return float64(m.clock) / float64(m.cycle)
}

func (m *RPIOMotor) Apply(out control.Output) error {
	if out.Duty < 0 || uint32(out.Duty) > m.cycle {
		return fmt.Errorf("%s: duty %d outside [0,%d]", m.name, out.Duty, m.cycle)
	}

	switch {
	case out.Coast || out.Duty == 0:
		m.in1.Low()
		m.in2.Low()
		m.pwm.DutyCycle(0, m.cycle)
		return nil
	case out.Direction == control.Reverse:
		m.in1.Low()
		m.in2.High()
	default:
		m.in1.High()
		m.in2.Low()
	}
	m.pwm.DutyCycle(uint32(out.Duty), m.cycle)
	return nil
}
