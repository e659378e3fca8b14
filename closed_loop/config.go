package main

import (
	"fmt"
	"os"
	"time"

	"github.com/Masterminds/semver"
	"gopkg.in/yaml.v2"

	control "dd-drive/closed_loop/speed_control"
	"dd-drive/comms"
	"dd-drive/encoder"
	"dd-drive/hardware"
)

// ConfigVersion is the range of config file versions this build reads.
const ConfigVersion = "~1.0"

// MotorConfig wires one motor: H-bridge pins and encoder lines.
type MotorConfig struct {
	hardware.PinConfig `yaml:",inline"`
	Encoder            encoder.GPIOConfig `yaml:"encoder"`
}

type HTTPConfig struct {
	Listen    string `yaml:"listen"`
	JWTSecret string `yaml:"jwt_secret"`
}

type TelemetryConfig struct {
	LogEveryTicks    int `yaml:"log_every_ticks"`
	StreamIntervalMS int `yaml:"stream_interval_ms"`
}

// Config is the YAML file layout.
type Config struct {
	Version        string  `yaml:"version"`
	SamplePeriodMS int     `yaml:"sample_period_ms"`
	MaxTargetCPS   float64 `yaml:"max_target_cps"`

	PID       control.PIDConfig       `yaml:"pid"`
	Actuation control.ActuationConfig `yaml:"actuation"`
	Motors    struct {
		Left  MotorConfig `yaml:"left"`
		Right MotorConfig `yaml:"right"`
	} `yaml:"motors"`

	HTTP       HTTPConfig         `yaml:"http"`
	Serial     comms.SerialConfig `yaml:"serial"`
	CAN        comms.CANConfig    `yaml:"can"`
	Telemetry  TelemetryConfig    `yaml:"telemetry"`
	Simulation hardware.SimConfig `yaml:"simulation"`
}

// DefaultConfig is what an empty file yields.
func DefaultConfig() Config {
	var c Config
	c.Version = "1.0.0"
	c.SamplePeriodMS = 50
	c.MaxTargetCPS = 2000
	c.PID = control.DefaultPIDConfig()
	c.Actuation = control.DefaultActuationConfig()
	c.Motors.Left = MotorConfig{
		PinConfig: hardware.PinConfig{PWM: 18, In1: 23, In2: 24},
		Encoder:   encoder.GPIOConfig{Chip: "gpiochip0", PhaseA: 5, PhaseB: 6, PullUp: true},
	}
	c.Motors.Right = MotorConfig{
		PinConfig: hardware.PinConfig{PWM: 19, In1: 20, In2: 21},
		Encoder:   encoder.GPIOConfig{Chip: "gpiochip0", PhaseA: 13, PhaseB: 26, PullUp: true},
	}
	c.Serial.Baud = 115200
	c.CAN = comms.CANConfig{
		MapPath:        "config/can/can_map.csv",
		CommandFrame:   "MOTOR_CMD",
		TelemetryFrame: "MOTOR_STATE",
	}
	c.Telemetry = TelemetryConfig{LogEveryTicks: 100, StreamIntervalMS: 500}
	c.Simulation = hardware.DefaultSimConfig()
	return c
}

// LoadConfig reads and validates a config file. Keys the file leaves out
// keep their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read file: %w", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	v, err := semver.NewVersion(c.Version)
	if err != nil {
		return fmt.Errorf("config version %q: %w", c.Version, err)
	}
	constraint, err := semver.NewConstraint(ConfigVersion)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return fmt.Errorf("config version %s not supported, require %s", c.Version, ConfigVersion)
	}

	if c.SamplePeriodMS <= 0 {
		return fmt.Errorf("invalid sample_period_ms: %d", c.SamplePeriodMS)
	}
	if c.MaxTargetCPS <= 0 {
		return fmt.Errorf("invalid max_target_cps: %g", c.MaxTargetCPS)
	}
	if err := c.PID.Validate(); err != nil {
		return fmt.Errorf("pid: %w", err)
	}
	if err := c.Actuation.Validate(); err != nil {
		return fmt.Errorf("actuation: %w", err)
	}
	for name, m := range map[string]MotorConfig{"left": c.Motors.Left, "right": c.Motors.Right} {
		if m.Encoder.PhaseA == m.Encoder.PhaseB {
			return fmt.Errorf("motors.%s: encoder phases share line %d", name, m.Encoder.PhaseA)
		}
	}
	if c.Telemetry.LogEveryTicks < 0 || c.Telemetry.StreamIntervalMS < 0 {
		return fmt.Errorf("telemetry intervals must not be negative")
	}
	if err := c.Simulation.Validate(); err != nil {
		return err
	}
	return nil
}

func (c Config) SamplePeriod() time.Duration {
	return time.Duration(c.SamplePeriodMS) * time.Millisecond
}

func (c Config) StreamInterval() time.Duration {
	return time.Duration(c.Telemetry.StreamIntervalMS) * time.Millisecond
}
