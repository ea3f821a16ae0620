// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Command hioload-reactor serves the line echo protocol on a single epoll
// reactor thread backed by a fixed worker pool.
//
// Configuration is layered: built-in defaults, an optional YAML file
// (--config), HIOLOAD_* environment variables and flags. Changes to the file
// are watched; the log level is applied live.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/momentics/hioload-reactor/control"
	"github.com/momentics/hioload-reactor/internal/logging"
	"github.com/momentics/hioload-reactor/server"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := pflag.NewFlagSet("hioload-reactor", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "path to a YAML configuration file")
	printDefaults := fs.Bool("print-defaults", false, "print the default configuration as YAML and exit")
	control.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}

	if *printDefaults {
		if err := control.DumpDefaults(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "print defaults: %v\n", err)
			return 1
		}
		return 0
	}

	cfg, v, err := control.Load(*configPath, fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}

	log, closer, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		return 2
	}
	defer closer.Close()

	// Peer resets surface as EPIPE from write instead of a signal.
	signal.Ignore(syscall.SIGPIPE)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := control.NewConfigStore(*cfg)
	control.NewReloader(v, store, log).Watch()

	srv, err := server.NewServer(*cfg,
		server.WithLogger(log),
		server.WithConfigStore(store),
	)
	if err != nil {
		log.Error().Err(err).Msg("server init failed")
		return 1
	}

	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server failed")
		return 1
	}
	return 0
}
