package comms

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"go.einride.tech/can"

	"dd-drive/utils"
)

// CANConfig names the interface, the CSV map and the two frames the bridge
// uses.
type CANConfig struct {
	Interface      string `yaml:"interface"`
	MapPath        string `yaml:"map"`
	CommandFrame   string `yaml:"command_frame"`
	TelemetryFrame string `yaml:"telemetry_frame"`
}

// Signal names of the motor frames.
const (
	sigTargetLeft    = "target_left_cps"
	sigTargetRight   = "target_right_cps"
	sigStop          = "stop"
	sigMeasuredLeft  = "measured_left_cps"
	sigMeasuredRight = "measured_right_cps"
)

// CANBridge takes target commands from an RX frame and reports targets and
// measured speeds in a TX frame every cycle of that frame.
type CANBridge struct {
	cmap   *utils.CANMap
	rxDef  *utils.FrameDef
	txDef  *utils.FrameDef
	reader utils.CANReader
	writer utils.CANWriter
	cmd    Commander
	tel    TelemetrySource
	log    *utils.Logger

	received atomic.Uint64
	sent     uint64
}

func NewCANBridge(cmap *utils.CANMap, cfg CANConfig, reader utils.CANReader, writer utils.CANWriter,
	cmd Commander, tel TelemetrySource, log *utils.Logger) (*CANBridge, error) {
	rx, err := cmap.FrameByName(cfg.CommandFrame)
	if err != nil {
		return nil, fmt.Errorf("command frame: %w", err)
	}
	if rx.Direction != utils.FrameRX {
		return nil, fmt.Errorf("command frame %s must be rx, is %s", rx.Name, rx.Direction)
	}
	for _, name := range []string{sigTargetLeft, sigTargetRight} {
		if _, ok := rx.Signal(name); !ok {
			return nil, fmt.Errorf("command frame %s lacks signal %s", rx.Name, name)
		}
	}

	tx, err := cmap.FrameByName(cfg.TelemetryFrame)
	if err != nil {
		return nil, fmt.Errorf("telemetry frame: %w", err)
	}
	if tx.Direction != utils.FrameTX {
		return nil, fmt.Errorf("telemetry frame %s must be tx, is %s", tx.Name, tx.Direction)
	}
	if tx.CycleMS <= 0 {
		return nil, fmt.Errorf("frame %s has invalid cycle_ms %d", tx.Name, tx.CycleMS)
	}

	return &CANBridge{
		cmap:   cmap,
		rxDef:  rx,
		txDef:  tx,
		reader: reader,
		writer: writer,
		cmd:    cmd,
		tel:    tel,
		log:    log,
	}, nil
}

// HandleFrame applies a command frame. Frames with other IDs are ignored.
func (b *CANBridge) HandleFrame(f can.Frame) error {
	if f.ID != b.rxDef.ID {
		return nil
	}
	_, vals, err := b.cmap.DecodeFrame(f)
	if err != nil {
		return err
	}
	b.received.Add(1)

	if vals[sigStop] != 0 {
		b.cmd.Stop()
		b.log.Info("can: stop")
		return nil
	}
	l, r := b.cmd.SetTargets(vals[sigTargetLeft], vals[sigTargetRight])
	b.log.Debug("can: targets L=%.0f R=%.0f", l, r)
	return nil
}

// TelemetryFrame encodes the current snapshot.
func (b *CANBridge) TelemetryFrame() (can.Frame, error) {
	t := b.tel.Telemetry()
	return b.cmap.EncodeFrame(b.txDef.Name, map[string]float64{
		sigTargetLeft:    t.Left.Target,
		sigMeasuredLeft:  t.Left.Measured,
		sigTargetRight:   t.Right.Target,
		sigMeasuredRight: t.Right.Measured,
	})
}

// Run receives commands and transmits telemetry until ctx ends.
func (b *CANBridge) Run(ctx context.Context) error {
	b.log.Info("CAN bridge: rx=%s id=0x%X tx=%s id=0x%X cycle_ms=%d",
		b.rxDef.Name, b.rxDef.ID, b.txDef.Name, b.txDef.ID, b.txDef.CycleMS)

	rxErr := make(chan error, 1)
	go func() { rxErr <- b.receiveLoop(ctx) }()

	ticker := time.NewTicker(time.Duration(b.txDef.CycleMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("CAN bridge stopped: frames_rx=%d frames_tx=%d", b.received.Load(), b.sent)
			return ctx.Err()
		case err := <-rxErr:
			if err != nil {
				return err
			}
			b.log.Warn("can: receiver closed, telemetry only")
			rxErr = nil
		case <-ticker.C:
			f, err := b.TelemetryFrame()
			if err != nil {
				return fmt.Errorf("encode %s: %w", b.txDef.Name, err)
			}
			if err := b.writer.WriteFrame(ctx, f); err != nil {
				if ctx.Err() != nil {
					continue
				}
				b.log.Error("can: write %s: %v", b.txDef.Name, err)
				continue
			}
			b.sent++
		}
	}
}

func (b *CANBridge) receiveLoop(ctx context.Context) error {
	for {
		f, err := b.reader.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("can read: %w", err)
		}
		if err := b.HandleFrame(f); err != nil {
			b.log.Warn("can: %v", err)
		}
	}
}
