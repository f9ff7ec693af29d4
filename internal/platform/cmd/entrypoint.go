// Package cmd holds the startup plumbing shared by service commands.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/platform/config"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/platform/otel"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/platform/timeouts"
)

// ServiceCallSession names the call session service in telemetry.
const ServiceCallSession = "callsession"

// EnvPrefix is prepended to every service env tag.
const EnvPrefix = "CALLSESSION_"

// ParseConfig loads environment defaults into cfg.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg, EnvPrefix)
}

// ParseArgs parses command-line flags.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry configures tracing and executes a service run loop.
// Tracing is flushed after run returns.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	service = strings.TrimSpace(service)
	if service == "" {
		return fmt.Errorf("service name is required")
	}
	if run == nil {
		return fmt.Errorf("run function is required")
	}
	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("%s otel shutdown: %v", service, err)
		}
	}()
	return run(ctx)
}

