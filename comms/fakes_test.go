package comms

import (
	"context"
	"io"
	"net"
	"sync"

	"go.einride.tech/can"

	control "dd-drive/closed_loop/speed_control"
	"dd-drive/utils"
)

// fakeCore stands in for the scheduler: it clamps like the real one and
// serves a fixed snapshot.
type fakeCore struct {
	mu    sync.Mutex
	max   float64
	left  float64
	right float64
	stops int
	tel   control.Telemetry
}

func newFakeCore() *fakeCore {
	return &fakeCore{
		max: 2000,
		tel: control.Telemetry{
			Tick:  42,
			Left:  control.ChannelState{Target: 500, Measured: 480.5, Duty: 640, Direction: control.Forward},
			Right: control.ChannelState{Target: -300, Measured: -310, Duty: 520, Direction: control.Reverse},
		},
	}
}

func (c *fakeCore) SetTargets(l, r float64) (float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.left = control.ClampFloat(l, -c.max, c.max)
	c.right = control.ClampFloat(r, -c.max, c.max)
	return c.left, c.right
}

func (c *fakeCore) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.left, c.right = 0, 0
	c.stops++
}

func (c *fakeCore) Telemetry() control.Telemetry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tel
}

func (c *fakeCore) targets() (float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.left, c.right
}

func (c *fakeCore) stopCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}

func quietLogger() *utils.Logger {
	return utils.NewLogger(io.Discard, utils.CRITICAL)
}

// fakeBus is an in-memory CAN reader and writer.
type fakeBus struct {
	rx     chan can.Frame
	mu     sync.Mutex
	tx     []can.Frame
	closed chan struct{}
	once   sync.Once
}

func newFakeBus() *fakeBus {
	return &fakeBus{rx: make(chan can.Frame, 8), closed: make(chan struct{})}
}

func (b *fakeBus) ReadFrame(ctx context.Context) (can.Frame, error) {
	select {
	case <-ctx.Done():
		return can.Frame{}, ctx.Err()
	case <-b.closed:
		return can.Frame{}, net.ErrClosed
	case f := <-b.rx:
		return f, nil
	}
}

func (b *fakeBus) WriteFrame(ctx context.Context, f can.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tx = append(b.tx, f)
	return nil
}

func (b *fakeBus) written() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.tx)
}

func (b *fakeBus) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}
