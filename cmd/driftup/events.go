// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftapps/driftup/internal/telemetry"
)

type (
	eventsOptions struct {
		Flush bool
	}
)

func init() {
	opts := eventsOptions{}
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List or flush queued telemetry events",
		Run: func(cmd *cobra.Command, args []string) {
			doEvents(cmd, &opts)
		},
		Args: cobra.NoArgs,
	}
	cmd.Flags().BoolVar(&opts.Flush, "flush", false, "Send queued events to the telemetry endpoint and delete them")
	rootCmd.AddCommand(cmd)
}

func doEvents(cmd *cobra.Command, opts *eventsOptions) {
	dbPath := config.DBPath()

	if opts.Flush {
		sender := telemetry.NewSender(dbPath, config.TelemetryURL)
		DieNotNil(sender.Flush(), "failed to flush events")
		return
	}

	events, _, err := telemetry.GetEvents(dbPath)
	DieNotNil(err, "failed to read events")
	for _, event := range events {
		b, err := json.Marshal(event)
		DieNotNil(err, "failed to marshal event")
		fmt.Println(string(b))
	}
}
