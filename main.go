/*
Neuranim drives a skeleton with a neural network.

	neuranim export [flags]   writes the training dataset of the clips
	neuranim play [flags]     plays the clips through the network
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/neuranim/engine"
	"github.com/spaghettifunk/neuranim/engine/config"
	"github.com/spaghettifunk/neuranim/engine/core"
	"github.com/spaghettifunk/neuranim/testbed"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <export|play> [flags]\n", os.Args[0])
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	command := os.Args[1]
	if command != "export" && command != "play" {
		usage()
		os.Exit(2)
	}

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	flags := config.BindFlags(fs)
	_ = fs.Parse(os.Args[2:])

	cfg, err := config.Load(flags.Config, flags)
	if err != nil {
		core.LogFatal("failed to load the configuration", "err", err)
	}

	if err := run(command, cfg); err != nil {
		core.LogFatal(command+" failed", "err", err)
	}
}

func run(command string, cfg *config.Config) error {
	// capture sigterm and other system calls here
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	tb := testbed.NewTestGame(cfg)
	e, err := engine.New(tb.Game)
	if err != nil {
		return err
	}
	defer func() {
		if err := e.Shutdown(); err != nil {
			core.LogError("shutdown failed", "err", err)
		}
	}()

	if err := e.Initialize(); err != nil {
		return err
	}

	switch command {
	case "export":
		manifest, err := e.Export(ctx)
		if err != nil {
			return err
		}
		core.LogInfo("dataset ready", "folder", cfg.Export.Folder, "frames", manifest.TotalFrames, "run", manifest.RunID)
		return nil
	default:
		return e.Run(ctx)
	}
}
