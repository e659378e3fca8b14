package control

// Saturation describes where the actuator sat after the previous step.
type Saturation int

const (
	Unsaturated Saturation = iota
	SaturatedHigh
	SaturatedLow
)

func (s Saturation) String() string {
	switch s {
	case SaturatedHigh:
		return "high"
	case SaturatedLow:
		return "low"
	default:
		return "none"
	}
}

// SaturationOf classifies the previous step from the duty it produced and the
// signed effort it computed. The effort carries the sign, duty gates on full scale.
func SaturationOf(prev Output, prevEffort float64, dutyMax int) Saturation {
	if prev.Duty != dutyMax {
		return Unsaturated
	}
	limit := float64(dutyMax)
	switch {
	case prevEffort >= limit:
		return SaturatedHigh
	case prevEffort <= -limit:
		return SaturatedLow
	default:
		return Unsaturated
	}
}

// PIDController implements a discrete PID controller for wheel speed tracking
// with conditional-integration anti-windup.
type PIDController struct {
	cfg PIDConfig

	// State
	curError   float64
	prevError  float64
	integral   float64
	derivative float64
	effort     float64
	p          float64
}

// NewPIDController creates a new PID controller with given configuration
func NewPIDController(cfg PIDConfig) *PIDController {
	return &PIDController{cfg: cfg}
}

// Reset clears the PID state
func (pid *PIDController) Reset() {
	pid.curError = 0
	pid.prevError = 0
	pid.integral = 0
	pid.derivative = 0
	pid.effort = 0
	pid.p = 0
}

// Update runs one control step and returns the unclamped effort u.
//
// sat must describe the previous step's output: integration is frozen while
// the actuator is pinned in the direction the error would push the integral.
func (pid *PIDController) Update(target, measured float64, sat Saturation) float64 {
	err := target - measured
	pid.curError = err

	pid.p = pid.cfg.Kp * err

	hold := (sat == SaturatedHigh && err > 0) || (sat == SaturatedLow && err < 0)
	if !hold {
		pid.integral += pid.cfg.Ki * err
		pid.integral = ClampFloat(pid.integral, -pid.cfg.IntegralLimit, pid.cfg.IntegralLimit)
	}

	pid.derivative = pid.cfg.Kd * (err - pid.prevError)
	pid.prevError = err

	pid.effort = pid.p + pid.integral + pid.derivative
	return pid.effort
}

// GetDiagnostics returns current PID state for logging/debugging
func (pid *PIDController) GetDiagnostics() PIDDiagnostics {
	return PIDDiagnostics{
		Error:    pid.curError,
		Integral: pid.integral,
		P:        pid.p,
		D:        pid.derivative,
		Effort:   pid.effort,
	}
}

// PIDDiagnostics contains PID internal state for monitoring
type PIDDiagnostics struct {
	Error    float64
	Integral float64
	P        float64
	D        float64
	Effort   float64
}

// GetError returns the most recent velocity error
func (pid *PIDController) GetError() float64 {
	return pid.curError
}

// GetIntegral returns the current integral term value
func (pid *PIDController) GetIntegral() float64 {
	return pid.integral
}
