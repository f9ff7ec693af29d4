package orchestrator

import (
	"sync"
	"time"
)

// DefaultColdStartWindow is how long after process start an unattached
// process still counts as cold-starting.
const DefaultColdStartWindow = 10 * time.Second

// ProcessState classifies the host process at trigger time.
type ProcessState int

const (
	// ProcessBackground means no presentation surface is attached.
	ProcessBackground ProcessState = iota
	// ProcessForeground means a presentation surface is attached.
	ProcessForeground
	// ProcessColdStart means the process was started for this trigger.
	ProcessColdStart
)

func (s ProcessState) String() string {
	switch s {
	case ProcessForeground:
		return "foreground"
	case ProcessColdStart:
		return "cold_start"
	default:
		return "background"
	}
}

// ProcessStateDetector tracks presentation surfaces to classify the process.
type ProcessStateDetector struct {
	startedAt time.Time
	window    time.Duration

	mu           sync.Mutex
	attached     int
	everAttached bool
}

// NewProcessStateDetector creates a detector for a process started at startedAt.
func NewProcessStateDetector(startedAt time.Time, coldStartWindow time.Duration) *ProcessStateDetector {
	if coldStartWindow <= 0 {
		coldStartWindow = DefaultColdStartWindow
	}
	return &ProcessStateDetector{startedAt: startedAt, window: coldStartWindow}
}

// Attach records a presentation surface becoming visible.
func (d *ProcessStateDetector) Attach() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attached++
	d.everAttached = true
}

// Detach records a presentation surface going away.
func (d *ProcessStateDetector) Detach() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.attached > 0 {
		d.attached--
	}
}

// Classify returns the process state at now.
func (d *ProcessStateDetector) Classify(now time.Time) ProcessState {
	if d == nil {
		return ProcessBackground
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.attached > 0:
		return ProcessForeground
	case !d.everAttached && now.Sub(d.startedAt) < d.window:
		return ProcessColdStart
	default:
		return ProcessBackground
	}
}
