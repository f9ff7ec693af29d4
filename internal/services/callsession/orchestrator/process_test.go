package orchestrator

import (
	"testing"
	"time"
)

func TestProcessStateDetectorClassify(t *testing.T) {
	start := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	detector := NewProcessStateDetector(start, 10*time.Second)

	if got := detector.Classify(start.Add(3 * time.Second)); got != ProcessColdStart {
		t.Fatalf("state = %s, want %s", got, ProcessColdStart)
	}
	if got := detector.Classify(start.Add(11 * time.Second)); got != ProcessBackground {
		t.Fatalf("state = %s, want %s", got, ProcessBackground)
	}

	detector.Attach()
	if got := detector.Classify(start.Add(time.Second)); got != ProcessForeground {
		t.Fatalf("state = %s, want %s", got, ProcessForeground)
	}

	detector.Detach()
	if got := detector.Classify(start.Add(time.Second)); got != ProcessBackground {
		t.Fatalf("state after detach = %s, want %s", got, ProcessBackground)
	}
	detector.Detach()
	detector.Attach()
	if got := detector.Classify(start.Add(time.Second)); got != ProcessForeground {
		t.Fatalf("state after extra detach = %s, want %s", got, ProcessForeground)
	}
}
