// Package main starts the call session service process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	callsessioncmd "github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/cmd/callsession"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/platform/config"
)

func main() {
	cfg, err := callsessioncmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[CALLSESSION] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := callsessioncmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
