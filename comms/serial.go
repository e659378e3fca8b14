package comms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"

	"dd-drive/utils"
)

const maxLineLen = 128

// SerialConfig selects the command port.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// OpenSerial opens the port with a short read timeout so ServeLines can
// notice cancellation.
func OpenSerial(cfg SerialConfig) (serial.Port, error) {
	baud := cfg.Baud
	if baud <= 0 {
		baud = 115200
	}
	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", cfg.Port, err)
	}
	return port, nil
}

// SerialSink serves the line protocol: "<l> <r>" or "<l>,<r>" to set targets,
// "stop" or "s" to stop, "?" to query. Replies are one line each.
type SerialSink struct {
	cmd Commander
	tel TelemetrySource
	log *utils.Logger
}

func NewSerialSink(cmd Commander, tel TelemetrySource, log *utils.Logger) *SerialSink {
	return &SerialSink{cmd: cmd, tel: tel, log: log}
}

// Handle answers one line. Blank lines get no reply.
func (s *SerialSink) Handle(line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}
	if line == "?" {
		t := s.tel.Telemetry()
		return fmt.Sprintf("T %.0f %.1f %.0f %.1f", t.Left.Target, t.Left.Measured, t.Right.Target, t.Right.Measured)
	}

	c, err := ParseCommand(line)
	if err != nil {
		s.log.Warn("serial: %v", err)
		var merr MalformedCommandError
		if errors.As(err, &merr) {
			return "ERR " + merr.Reason
		}
		return "ERR " + err.Error()
	}
	if c.Stop {
		c.Apply(s.cmd)
		s.log.Info("serial: stop")
		return "OK 0 0"
	}
	l, r := c.Apply(s.cmd)
	s.log.Info("serial: targets L=%.0f R=%.0f", l, r)
	return fmt.Sprintf("OK %.0f %.0f", l, r)
}

// ServeLines reads commands from rw until ctx ends or the reader fails.
// A read returning no data, as a timed out serial read does, is not an error.
func (s *SerialSink) ServeLines(ctx context.Context, rw io.ReadWriter) error {
	buf := make([]byte, 64)
	line := make([]byte, 0, maxLineLen)
	overflow := false

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, rerr := rw.Read(buf)
		for _, c := range buf[:n] {
			if c != '\n' && c != '\r' {
				if len(line) < maxLineLen {
					line = append(line, c)
				} else {
					overflow = true
				}
				continue
			}

			var reply string
			if overflow {
				reply = "ERR line too long"
			} else {
				reply = s.Handle(string(line))
			}
			line, overflow = line[:0], false

			if reply == "" {
				continue
			}
			if _, err := io.WriteString(rw, reply+"\n"); err != nil {
				return fmt.Errorf("serial write: %w", err)
			}
		}

		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return nil
			}
			return fmt.Errorf("serial read: %w", rerr)
		}
	}
}
