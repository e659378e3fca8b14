package control

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"dd-drive/utils"
)

// SchedulerConfig sets the loop period and the command safety bound.
type SchedulerConfig struct {
	Period        time.Duration
	MaxTarget     float64 // |target| bound in counts/s
	LogEveryTicks int     // PID diagnostics at DEBUG every N ticks, 0 disables
}

// Telemetry is an immutable snapshot published after every tick.
type Telemetry struct {
	Tick  uint64
	At    time.Time
	Left  ChannelState
	Right ChannelState
}

// Scheduler runs both channel pipelines once per period. It has a single
// running state; stopping the motors only zeroes the targets.
type Scheduler struct {
	cfg   SchedulerConfig
	log   *utils.Logger
	left  *MotorChannel
	right *MotorChannel

	reference time.Time
	started   bool
	ticks     uint64
	skipped   uint64

	telemetry atomic.Pointer[Telemetry]
}

func NewScheduler(cfg SchedulerConfig, log *utils.Logger, left, right *MotorChannel) (*Scheduler, error) {
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("invalid sample period %v", cfg.Period)
	}
	if cfg.MaxTarget <= 0 {
		return nil, fmt.Errorf("invalid max target %g", cfg.MaxTarget)
	}
	if left == nil || right == nil {
		return nil, fmt.Errorf("scheduler needs both channels")
	}

	s := &Scheduler{
		cfg:   cfg,
		log:   log,
		left:  left,
		right: right,
	}
	s.publish(time.Time{})
	return s, nil
}

func (s *Scheduler) Period() time.Duration { return s.cfg.Period }

func (s *Scheduler) MaxTarget() float64 { return s.cfg.MaxTarget }

// SetTargets clamps both setpoints to the safety bound and stores them.
// It returns the values actually stored.
func (s *Scheduler) SetTargets(left, right float64) (float64, float64) {
	left = ClampFloat(left, -s.cfg.MaxTarget, s.cfg.MaxTarget)
	right = ClampFloat(right, -s.cfg.MaxTarget, s.cfg.MaxTarget)
	s.left.SetTarget(left)
	s.right.SetTarget(right)
	return left, right
}

// Stop is SetTargets(0, 0). Integral, duty and direction decay through the
// following steps.
func (s *Scheduler) Stop() {
	s.SetTargets(0, 0)
}

// Targets returns the stored setpoints, which the next tick will consume.
func (s *Scheduler) Targets() (float64, float64) {
	return s.left.Target(), s.right.Target()
}

// Telemetry returns the snapshot of the last completed tick. Never blocks.
func (s *Scheduler) Telemetry() Telemetry {
	return *s.telemetry.Load()
}

// Poll runs one tick if at least one period has passed since the last one.
// The reference moves to now, not reference+period: an overrun does not
// accumulate drift and skipped intervals are not caught up.
func (s *Scheduler) Poll(now time.Time) bool {
	if !s.started {
		s.reference = now
		s.started = true
		return false
	}

	elapsed := now.Sub(s.reference)
	if elapsed < s.cfg.Period {
		return false
	}
	if missed := uint64(elapsed/s.cfg.Period) - 1; missed > 0 {
		s.skipped += missed
		s.log.Warn("tick overrun: %v since last tick, %d interval(s) skipped (total %d)", elapsed, missed, s.skipped)
	}

	s.reference = now
	s.Tick(now)
	return true
}

// Tick runs left then right, sequentially, and publishes the result.
func (s *Scheduler) Tick(now time.Time) {
	for _, ch := range [...]*MotorChannel{s.left, s.right} {
		if err := ch.Step(); err != nil {
			s.log.Error("%s: drive failed: %v", ch.Name, err)
		}
	}
	s.ticks++
	t := s.publish(now)

	if s.cfg.LogEveryTicks > 0 && s.ticks%uint64(s.cfg.LogEveryTicks) == 0 {
		for _, ch := range [...]*MotorChannel{s.left, s.right} {
			diag := ch.Diagnostics()
			s.log.Debug("PID %s: err=%.1f P=%.1f I=%.1f D=%.2f u=%.1f",
				ch.Name, diag.Error, diag.P, diag.Integral, diag.D, diag.Effort)
		}
	}
	s.log.Trace("tick=%d L tgt=%.0f cur=%.1f duty=%d %s R tgt=%.0f cur=%.1f duty=%d %s",
		t.Tick,
		t.Left.Target, t.Left.Measured, t.Left.Duty, modeTag(t.Left),
		t.Right.Target, t.Right.Measured, t.Right.Duty, modeTag(t.Right))
}

func (s *Scheduler) publish(now time.Time) *Telemetry {
	t := &Telemetry{
		Tick:  s.ticks,
		At:    now,
		Left:  s.left.State(),
		Right: s.right.State(),
	}
	s.telemetry.Store(t)
	return t
}

// Run polls the scheduler every pollInterval until ctx ends, then coasts
// both motors.
func (s *Scheduler) Run(ctx context.Context, pollInterval time.Duration) error {
	if pollInterval <= 0 || pollInterval > s.cfg.Period {
		pollInterval = s.cfg.Period / 10
		if pollInterval <= 0 {
			pollInterval = s.cfg.Period
		}
	}

	s.log.Info("Control loop running: Ts=%v poll=%v max_target=%.0f", s.cfg.Period, pollInterval, s.cfg.MaxTarget)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	s.Poll(time.Now())
	for {
		select {
		case <-ctx.Done():
			s.release()
			s.log.Info("Control loop stopped after %d ticks (%d skipped intervals)", s.ticks, s.skipped)
			return ctx.Err()
		case now := <-ticker.C:
			s.Poll(now)
		}
	}
}

func (s *Scheduler) release() {
	for _, ch := range [...]*MotorChannel{s.left, s.right} {
		if err := ch.Release(); err != nil {
			s.log.Error("%s: release failed: %v", ch.Name, err)
		}
	}
}

func modeTag(st ChannelState) string {
	return GetControlModeStr(Output{Duty: st.Duty, Direction: st.Direction, Coast: st.Coast})
}
