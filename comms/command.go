// Package comms connects command sources and telemetry consumers to the
// control loop: HTTP, websocket, serial line and CAN.
package comms

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	control "dd-drive/closed_loop/speed_control"
)

// Commander accepts setpoints. SetTargets returns the values actually stored
// after clamping.
type Commander interface {
	SetTargets(left, right float64) (float64, float64)
	Stop()
}

// TelemetrySource hands out the last published snapshot without blocking.
type TelemetrySource interface {
	Telemetry() control.Telemetry
}

// Command is one parsed request from any sink.
type Command struct {
	Stop        bool
	Left, Right float64
}

var ErrMalformedCommand = errors.New("malformed command")

// MalformedCommandError says what was wrong with a rejected command.
type MalformedCommandError struct {
	Input  string
	Reason string
}

func (err MalformedCommandError) Error() string {
	return fmt.Sprintf("malformed command %q: %s", err.Input, err.Reason)
}

func (err MalformedCommandError) Unwrap() error { return ErrMalformedCommand }

// ParseCommand reads one line of the text protocol: "<l> <r>", "<l>,<r>",
// "stop" or "s".
func ParseCommand(line string) (Command, error) {
	in := strings.TrimSpace(line)
	switch strings.ToLower(in) {
	case "":
		return Command{}, MalformedCommandError{Input: line, Reason: "empty"}
	case "stop", "s":
		return Command{Stop: true}, nil
	}

	fields := strings.FieldsFunc(in, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) != 2 {
		return Command{}, MalformedCommandError{Input: line, Reason: fmt.Sprintf("want 2 targets, got %d", len(fields))}
	}

	l, err := parseTarget(fields[0])
	if err != nil {
		return Command{}, MalformedCommandError{Input: line, Reason: "left: " + err.Error()}
	}
	r, err := parseTarget(fields[1])
	if err != nil {
		return Command{}, MalformedCommandError{Input: line, Reason: "right: " + err.Error()}
	}
	return Command{Left: l, Right: r}, nil
}

// ParseQuery reads the l and r query parameters of a /cmd request.
func ParseQuery(q url.Values) (Command, error) {
	raw := q.Encode()
	ls, rs := q.Get("l"), q.Get("r")
	if ls == "" || rs == "" {
		return Command{}, MalformedCommandError{Input: raw, Reason: "need both l and r"}
	}
	l, err := parseTarget(ls)
	if err != nil {
		return Command{}, MalformedCommandError{Input: raw, Reason: "l: " + err.Error()}
	}
	r, err := parseTarget(rs)
	if err != nil {
		return Command{}, MalformedCommandError{Input: raw, Reason: "r: " + err.Error()}
	}
	return Command{Left: l, Right: r}, nil
}

func parseTarget(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not finite: %q", s)
	}
	return v, nil
}

// Apply hands the command to the core and returns the stored targets.
func (c Command) Apply(cmd Commander) (float64, float64) {
	if c.Stop {
		cmd.Stop()
		return 0, 0
	}
	return cmd.SetTargets(c.Left, c.Right)
}
