//go:build linux

package encoder

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOConfig locates the two phase lines of one encoder.
type GPIOConfig struct {
	Chip   string `yaml:"chip"`
	PhaseA int    `yaml:"phase_a"`
	PhaseB int    `yaml:"phase_b"`
	PullUp bool   `yaml:"pull_up"`
}

// GPIOEncoder feeds a Decoder from GPIO character device edge events.
type GPIOEncoder struct {
	cfg   GPIOConfig
	dec   *Decoder
	lines *gpiocdev.Lines

	mu     sync.Mutex
	levels [2]bool
	ready  bool
}

// OpenGPIO requests both phase lines with edge detection on both edges.
// gpiocdev delivers events for one request serially, so the decoder sees
// each edge exactly once and in order.
func OpenGPIO(cfg GPIOConfig, dec *Decoder) (*GPIOEncoder, error) {
	if cfg.PhaseA == cfg.PhaseB {
		return nil, fmt.Errorf("encoder phases share line %d", cfg.PhaseA)
	}
	e := &GPIOEncoder{cfg: cfg, dec: dec}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.WithConsumer("dd-drive"),
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(e.handle),
	}
	if cfg.PullUp {
		opts = append(opts, gpiocdev.WithPullUp)
	}
	lines, err := gpiocdev.RequestLines(cfg.Chip, []int{cfg.PhaseA, cfg.PhaseB}, opts...)
	if err != nil {
		return nil, fmt.Errorf("request %s lines %d,%d: %w", cfg.Chip, cfg.PhaseA, cfg.PhaseB, err)
	}

	vals := make([]int, 2)
	if err := lines.Values(vals); err != nil {
		lines.Close()
		return nil, fmt.Errorf("read initial levels: %w", err)
	}

	e.mu.Lock()
	e.lines = lines
	e.levels = [2]bool{vals[0] != 0, vals[1] != 0}
	e.ready = true
	e.mu.Unlock()
	return e, nil
}

func (e *GPIOEncoder) handle(evt gpiocdev.LineEvent) {
	var phase Phase
	switch evt.Offset {
	case e.cfg.PhaseA:
		phase = PhaseA
	case e.cfg.PhaseB:
		phase = PhaseB
	default:
		return
	}

	e.mu.Lock()
	if !e.ready {
		e.mu.Unlock()
		return
	}
	e.levels[phase] = evt.Type == gpiocdev.LineEventRisingEdge
	a, b := e.levels[0], e.levels[1]
	e.mu.Unlock()

	e.dec.Edge(phase, a, b)
}

// Counter returns the position counter of the attached decoder.
func (e *GPIOEncoder) Counter() *Counter { return e.dec.Counter() }

func (e *GPIOEncoder) Close() error {
	if e.lines == nil {
		return nil
	}
	return e.lines.Close()
}
