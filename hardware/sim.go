package hardware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	control "dd-drive/closed_loop/speed_control"
	"dd-drive/encoder"
)

// SimConfig describes the simulated motor and encoder.
type SimConfig struct {
	MaxSpeed     float64 `yaml:"max_speed_cps"`   // counts/s at full duty
	TimeConstant float64 `yaml:"time_constant_s"` // first-order lag
	StictionDuty int     `yaml:"stiction_duty"`   // duty needed to break away from rest
	StepMS       int     `yaml:"step_ms"`
}

func DefaultSimConfig() SimConfig {
	return SimConfig{
		MaxSpeed:     2400,
		TimeConstant: 0.15,
		StictionDuty: 250,
		StepMS:       1,
	}
}

func (c SimConfig) Validate() error {
	if c.MaxSpeed <= 0 {
		return fmt.Errorf("simulation max_speed_cps must be positive, got %g", c.MaxSpeed)
	}
	if c.TimeConstant <= 0 {
		return fmt.Errorf("simulation time_constant_s must be positive, got %g", c.TimeConstant)
	}
	if c.StictionDuty < 0 {
		return fmt.Errorf("simulation stiction_duty must not be negative, got %d", c.StictionDuty)
	}
	if c.StepMS <= 0 {
		return fmt.Errorf("simulation step_ms must be positive, got %d", c.StepMS)
	}
	return nil
}

// SimMotor is a first-order motor with static friction. It takes duty
// commands like a real driver and feeds quadrature edges into a decoder as
// the shaft turns.
type SimMotor struct {
	cfg     SimConfig
	dutyMax int
	emitter *encoder.Emitter

	mu       sync.Mutex
	out      control.Output
	speed    float64 // counts/s
	position float64 // fractional counts not yet emitted
}

func NewSimMotor(cfg SimConfig, dutyMax int, dec *encoder.Decoder) (*SimMotor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dutyMax <= 0 {
		return nil, fmt.Errorf("invalid duty max %d", dutyMax)
	}
	return &SimMotor{
		cfg:     cfg,
		dutyMax: dutyMax,
		emitter: encoder.NewEmitter(dec),
		out:     control.Output{Direction: control.Forward, Coast: true},
	}, nil
}

func (m *SimMotor) Apply(out control.Output) error {
	if out.Duty < 0 || out.Duty > m.dutyMax {
		return fmt.Errorf("sim: duty %d outside [0,%d]", out.Duty, m.dutyMax)
	}
	m.mu.Lock()
	m.out = out
	m.mu.Unlock()
	return nil
}

// Speed is the current shaft speed in counts/s.
func (m *SimMotor) Speed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed
}

// Advance integrates the plant over dt and emits the edges it produced.
func (m *SimMotor) Advance(dt time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	drive := 0.0
	if !m.out.Coast && m.out.Duty > 0 {
		drive = float64(m.out.Direction) * m.cfg.MaxSpeed * float64(m.out.Duty) / float64(m.dutyMax)
		// At rest the motor only breaks away above the stiction duty.
		if m.speed == 0 && m.out.Duty < m.cfg.StictionDuty {
			drive = 0
		}
	}

	alpha := 1 - math.Exp(-dt.Seconds()/m.cfg.TimeConstant)
	m.speed += (drive - m.speed) * alpha
	if drive == 0 && math.Abs(m.speed) < 1 {
		m.speed = 0
	}

	m.position += m.speed * dt.Seconds()
	for m.position >= 1 {
		m.emitter.Step(true)
		m.position--
	}
	for m.position <= -1 {
		m.emitter.Step(false)
		m.position++
	}
}

// Run advances the plant in real time until ctx ends.
func (m *SimMotor) Run(ctx context.Context) error {
	step := time.Duration(m.cfg.StepMS) * time.Millisecond
	ticker := time.NewTicker(step)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			m.Advance(now.Sub(last))
			last = now
		}
	}
}
