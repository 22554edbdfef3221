// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/driftapps/driftup/pkg/coordinator"
	"github.com/driftapps/driftup/pkg/engine"
	"github.com/driftapps/driftup/pkg/flow"
)

type (
	daemonOptions struct {
		runOnce bool
	}
)

func init() {
	opts := daemonOptions{
		runOnce: false,
	}
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run periodic automatic update checks",
		Run: func(cmd *cobra.Command, args []string) {
			doDaemon(cmd, &opts)
		},
		Args: cobra.NoArgs,
	}
	cmd.Flags().BoolVar(&opts.runOnce, "run-once", false, "Run a single update check and exit.")
	_ = cmd.Flags().MarkHidden("run-once")
	rootCmd.AddCommand(cmd)
}

func doDaemon(cmd *cobra.Command, opts *daemonOptions) {
	a, err := newApp()
	DieNotNil(err, "failed to initialize")
	a.sender.Start()
	a.coord.StartupTasks()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	runCheck := func() {
		err := a.coord.RequestCheck(cmd.Context(), flow.InitiationAutomatic)
		switch {
		case err == nil:
		case errors.Is(err, engine.ErrNoUpdateFound):
			log.Debug().Msg("no update available")
		case errors.Is(err, coordinator.ErrCheckInProgress):
			log.Debug().Msg("check already in progress, skipping")
		case errors.Is(err, coordinator.ErrUpdatePending):
			log.Debug().Msg("update awaiting user action, skipping check")
		default:
			log.Err(err).Msg("update check failed")
		}
	}

	runCheck()
	if opts.runOnce {
		a.coord.Shutdown()
		a.sender.Stop()
		return
	}

	ticker := time.NewTicker(config.CheckInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			runCheck()
		case sig := <-stop:
			log.Info().Msgf("received %s, shutting down", sig)
			a.coord.Shutdown()
			a.sender.Stop()
			return
		}
	}
}
