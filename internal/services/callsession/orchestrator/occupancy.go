package orchestrator

import (
	"sync"
	"time"
)

// DefaultOccupancyDelay is how long after joining the channel occupancy is
// checked.
const DefaultOccupancyDelay = 800 * time.Millisecond

// scheduleFunc arms a timer that calls fire after delay and returns its stop.
type scheduleFunc func(delay time.Duration, fire func()) func() bool

func afterFunc(delay time.Duration, fire func()) func() bool {
	return time.AfterFunc(delay, fire).Stop
}

// OccupancyDetector runs a single-shot, cancellable occupancy check.
//
// At most one check is armed at a time. A callback whose check was cancelled
// or replaced never runs, even if its timer already fired.
type OccupancyDetector struct {
	mu         sync.Mutex
	generation uint64
	stop       func() bool
	schedule   scheduleFunc
}

// NewOccupancyDetector creates a detector backed by time.AfterFunc.
func NewOccupancyDetector() *OccupancyDetector {
	return &OccupancyDetector{schedule: afterFunc}
}

// Schedule arms a check for channelName, replacing any armed check.
func (d *OccupancyDetector) Schedule(channelName string, delay time.Duration, callback func(channelName string)) {
	if d == nil || callback == nil {
		return
	}
	if delay < 0 {
		delay = 0
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.generation++
	armed := d.generation
	d.stop = d.schedule(delay, func() {
		d.mu.Lock()
		if d.generation != armed {
			d.mu.Unlock()
			return
		}
		d.generation++
		d.stop = nil
		d.mu.Unlock()
		callback(channelName)
	})
}

// Cancel disarms the pending check. It is safe to call at any time.
func (d *OccupancyDetector) Cancel() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.generation++
}

// Pending reports whether a check is armed.
func (d *OccupancyDetector) Pending() bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stop != nil
}

func (d *OccupancyDetector) stopLocked() {
	if d.stop != nil {
		d.stop()
		d.stop = nil
	}
}
