package control

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"dd-drive/utils"
)

type fakeCounter struct {
	n atomic.Int64
}

func (c *fakeCounter) Count() int64 { return c.n.Load() }
func (c *fakeCounter) add(d int64)  { c.n.Add(d) }

type fakeDriver struct {
	mu      sync.Mutex
	applied []Output
	fail    bool
}

var errDriver = errors.New("this is a simulated pwm error")

func (d *fakeDriver) Apply(out Output) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.applied = append(d.applied, out)
	if d.fail {
		return errDriver
	}
	return nil
}

func (d *fakeDriver) last() Output {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.applied[len(d.applied)-1]
}

func (d *fakeDriver) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.applied)
}

const testPeriod = 50 * time.Millisecond

func quietLogger() *utils.Logger {
	return utils.NewLogger(io.Discard, utils.CRITICAL)
}

func newTestChannel(name string) (*MotorChannel, *fakeCounter, *fakeDriver) {
	counter := &fakeCounter{}
	driver := &fakeDriver{}
	ch := NewMotorChannel(name, counter, driver, testPeriod, DefaultPIDConfig(), DefaultActuationConfig())
	return ch, counter, driver
}
