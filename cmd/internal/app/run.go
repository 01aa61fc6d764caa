package app

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
)

// Run is the CLI entrypoint used by cmd/talkwire.
// It returns an error instead of calling os.Exit to keep defers effective and lint clean.
func Run() error {
	fs := flag.NewFlagSet("talkwire", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a config file (default ./talkwire.yaml when present)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := NewLogger(cfg.Log.Level, cfg.Log.Format)

	a, err := New(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.Run(ctx)
}
