package orchestrator

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"sync"
)

// OutputDevice adjusts the device audio output.
type OutputDevice interface {
	SetMaxVolume(ctx context.Context) error
}

// VolumeController raises output volume to maximum when a call goes active.
//
// Failures are logged and never fail the session.
type VolumeController struct {
	device OutputDevice
	logf   func(string, ...any)
}

// NewVolumeController creates a controller for device. A nil device is a no-op.
func NewVolumeController(device OutputDevice, logf func(string, ...any)) *VolumeController {
	if logf == nil {
		logf = log.Printf
	}
	return &VolumeController{device: device, logf: logf}
}

// EnsureMaxOutputVolume sets the output to maximum. It is idempotent.
func (v *VolumeController) EnsureMaxOutputVolume(ctx context.Context) {
	if v == nil || v.device == nil {
		return
	}
	if err := v.device.SetMaxVolume(ctx); err != nil {
		v.logf("callsession: set max output volume: %v", err)
	}
}

// CommandDevice runs an external command to set the volume, for example
// "pactl set-sink-volume @DEFAULT_SINK@ 100%".
type CommandDevice struct {
	name string
	args []string

	mu  sync.Mutex
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewCommandDevice parses a whitespace-separated command line.
func NewCommandDevice(command string) (*CommandDevice, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("volume command is required")
	}
	return &CommandDevice{name: fields[0], args: fields[1:], run: runCommand}, nil
}

// SetMaxVolume runs the configured command.
func (d *CommandDevice) SetMaxVolume(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	output, err := d.run(ctx, d.name, d.args...)
	if err != nil {
		return fmt.Errorf("run %s: %w: %s", d.name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// NoopDevice leaves the volume untouched.
type NoopDevice struct{}

// SetMaxVolume does nothing.
func (NoopDevice) SetMaxVolume(context.Context) error { return nil }
