package control

import (
	"errors"
	"fmt"
)

// PIDConfig holds the per-step gains. Ki and Kd are already scaled by the
// sample period, so Update never sees dt.
type PIDConfig struct {
	Kp            float64 `yaml:"kp"`
	Ki            float64 `yaml:"ki"`
	Kd            float64 `yaml:"kd"`
	IntegralLimit float64 `yaml:"integral_limit"`
}

// ActuationConfig bounds the PWM output.
type ActuationConfig struct {
	DutyMax      int `yaml:"duty_max"`
	MinDutyStart int `yaml:"min_duty_start"`
	PWMFreqHz    int `yaml:"pwm_freq_hz"`
}

func DefaultPIDConfig() PIDConfig {
	return PIDConfig{
		Kp:            1.0,
		Ki:            0.40,
		Kd:            0.004,
		IntegralLimit: 300,
	}
}

func DefaultActuationConfig() ActuationConfig {
	return ActuationConfig{
		DutyMax:      1023,
		MinDutyStart: 300,
		PWMFreqHz:    20000,
	}
}

func (c PIDConfig) Validate() error {
	if c.Kp < 0 || c.Ki < 0 || c.Kd < 0 {
		return fmt.Errorf("pid gains must be non-negative (kp=%g ki=%g kd=%g)", c.Kp, c.Ki, c.Kd)
	}
	if c.IntegralLimit < 0 {
		return fmt.Errorf("invalid integral_limit: %g", c.IntegralLimit)
	}
	return nil
}

func (c ActuationConfig) Validate() error {
	if c.DutyMax <= 0 {
		return fmt.Errorf("invalid duty_max: %d", c.DutyMax)
	}
	if c.MinDutyStart < 0 || c.MinDutyStart >= c.DutyMax {
		return fmt.Errorf("min_duty_start %d must be in [0, duty_max=%d)", c.MinDutyStart, c.DutyMax)
	}
	if c.PWMFreqHz < 0 {
		return errors.New("pwm_freq_hz must not be negative")
	}
	return nil
}
