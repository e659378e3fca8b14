package control

import "time"

// SpeedEstimator differentiates an encoder count over a fixed interval.
type SpeedEstimator struct {
	counter  PositionCounter
	interval float64 // seconds
	snapshot int64
}

// NewSpeedEstimator snapshots the counter immediately so the first sample
// measures motion since construction, not since power-on.
func NewSpeedEstimator(counter PositionCounter, interval time.Duration) *SpeedEstimator {
	return &SpeedEstimator{
		counter:  counter,
		interval: interval.Seconds(),
		snapshot: counter.Count(),
	}
}

// Sample returns counts/second since the previous sample.
func (e *SpeedEstimator) Sample() float64 {
	count := e.counter.Count()
	v := float64(count-e.snapshot) / e.interval
	e.snapshot = count
	return v
}

// Snapshot is the count taken by the last Sample.
func (e *SpeedEstimator) Snapshot() int64 { return e.snapshot }
