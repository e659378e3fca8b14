//go:build !linux

package encoder

import "errors"

// GPIOConfig locates the two phase lines of one encoder.
type GPIOConfig struct {
	Chip   string `yaml:"chip"`
	PhaseA int    `yaml:"phase_a"`
	PhaseB int    `yaml:"phase_b"`
	PullUp bool   `yaml:"pull_up"`
}

// GPIOEncoder is only available on Linux.
type GPIOEncoder struct {
	dec *Decoder
}

var ErrNoGPIO = errors.New("gpio character device requires linux")

func OpenGPIO(cfg GPIOConfig, dec *Decoder) (*GPIOEncoder, error) {
	return nil, ErrNoGPIO
}

func (e *GPIOEncoder) Counter() *Counter { return e.dec.Counter() }

func (e *GPIOEncoder) Close() error { return nil }
