package control

import (
	"math"
	"sync/atomic"
	"time"
)

// atomicFloat is a float64 cell with atomic load/store. Command sinks store
// into it from their own goroutines; the scheduler loads it once per step.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Load() float64   { return math.Float64frombits(f.bits.Load()) }
func (f *atomicFloat) Store(v float64) { f.bits.Store(math.Float64bits(v)) }

// ChannelState is a copy of every field of a MotorChannel after a step.
type ChannelState struct {
	Name       string
	Target     float64
	Measured   float64
	Error      float64
	PrevError  float64
	Integral   float64
	Derivative float64
	Effort     float64
	Duty       int
	Direction  Direction
	Coast      bool
	Count      int64
}

// MotorChannel is the per-motor pipeline: speed estimator, PID, actuation
// mapper and driver. Only the scheduler calls Step; only command sinks call
// SetTarget.
type MotorChannel struct {
	Name string

	driver    Driver
	estimator *SpeedEstimator
	pid       *PIDController
	mapper    *ActuationMapper

	target atomicFloat

	// stepTarget is the target the last step actually used.
	stepTarget float64
	measured   float64
	// effort and output are the previous step's u and actuation. The next
	// step's saturation test reads them, which is a deliberate one-tick lag.
	effort float64
	output Output
}

func NewMotorChannel(name string, counter PositionCounter, driver Driver, period time.Duration,
	pidCfg PIDConfig, actCfg ActuationConfig) *MotorChannel {
	return &MotorChannel{
		Name:      name,
		driver:    driver,
		estimator: NewSpeedEstimator(counter, period),
		pid:       NewPIDController(pidCfg),
		mapper:    NewActuationMapper(actCfg),
		output:    Output{Direction: Forward, Coast: true},
	}
}

func (c *MotorChannel) SetTarget(v float64) { c.target.Store(v) }

func (c *MotorChannel) Target() float64 { return c.target.Load() }

// Step runs one sample: estimate speed, run the PID against the target, map
// the effort and hand it to the driver. The state advances even when the
// driver fails; the error is returned for the caller to log.
func (c *MotorChannel) Step() error {
	c.measured = c.estimator.Sample()

	sat := SaturationOf(c.output, c.effort, c.mapper.DutyMax())
	c.stepTarget = c.target.Load()
	c.effort = c.pid.Update(c.stepTarget, c.measured, sat)
	c.output = c.mapper.Map(c.effort)

	return c.driver.Apply(c.output)
}

// Release coasts the motor without touching controller state.
func (c *MotorChannel) Release() error {
	return c.driver.Apply(Output{Direction: c.output.Direction, Coast: true})
}

// State copies the channel. Call it from the scheduler goroutine only;
// other goroutines read the scheduler's published Telemetry.
func (c *MotorChannel) State() ChannelState {
	return ChannelState{
		Name:       c.Name,
		Target:     c.stepTarget,
		Measured:   c.measured,
		Error:      c.pid.curError,
		PrevError:  c.pid.prevError,
		Integral:   c.pid.integral,
		Derivative: c.pid.derivative,
		Effort:     c.effort,
		Duty:       c.output.Duty,
		Direction:  c.output.Direction,
		Coast:      c.output.Coast,
		Count:      c.estimator.Snapshot(),
	}
}

// Diagnostics exposes the PID terms of the last step.
func (c *MotorChannel) Diagnostics() PIDDiagnostics {
	return c.pid.GetDiagnostics()
}
