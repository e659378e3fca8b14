// Package encoder turns quadrature phase edges into signed position counts.
package encoder

import "sync/atomic"

// Phase names one of the two encoder signals.
type Phase uint8

const (
	PhaseA Phase = iota
	PhaseB
)

func (p Phase) String() string {
	if p == PhaseB {
		return "B"
	}
	return "A"
}

// Counter is a signed position count. Edge handlers write it, the speed
// estimator reads it; both sides go through atomics so a read is never torn.
type Counter struct {
	n atomic.Int64
}

func (c *Counter) Count() int64 { return c.n.Load() }

func (c *Counter) add(delta int64) { c.n.Add(delta) }

// Decoder classifies x4 quadrature edges. One Decoder per motor channel.
type Decoder struct {
	counter *Counter
}

func NewDecoder() *Decoder {
	return &Decoder{counter: &Counter{}}
}

// Counter returns the position counter the decoder writes.
func (d *Decoder) Counter() *Counter { return d.counter }

// Edge handles one transition of the given phase. a and b are the levels of
// both phases sampled right after the transition. An edge on A is forward when
// the levels differ, an edge on B is forward when they match. Edge never
// blocks or allocates and is safe to call from the event goroutine.
func (d *Decoder) Edge(phase Phase, a, b bool) {
	forward := a != b
	if phase == PhaseB {
		forward = !forward
	}
	if forward {
		d.counter.add(1)
	} else {
		d.counter.add(-1)
	}
}

// gray holds the (A, B) levels of one forward x4 cycle.
var gray = [4][2]bool{{false, false}, {true, false}, {true, true}, {false, true}}

// Emitter produces a valid quadrature edge sequence into a Decoder. It stands
// in for the encoder hardware when the plant is simulated.
type Emitter struct {
	dec   *Decoder
	state int
}

func NewEmitter(dec *Decoder) *Emitter {
	return &Emitter{dec: dec}
}

// Step emits one edge. Forward steps walk the Gray sequence upwards.
func (e *Emitter) Step(forward bool) {
	from := e.state
	var phase Phase
	if forward {
		e.state = (e.state + 1) % 4
		if from%2 == 1 {
			phase = PhaseB
		}
	} else {
		e.state = (e.state + 3) % 4
		if from%2 == 0 {
			phase = PhaseB
		}
	}
	lv := gray[e.state]
	e.dec.Edge(phase, lv[0], lv[1])
}

// Levels returns the phase levels the emitter last produced.
func (e *Emitter) Levels() (a, b bool) {
	lv := gray[e.state]
	return lv[0], lv[1]
}
