// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the launch-time update validation and abandoned-flow cleanup",
		Long: "Classifies this launch against the update expectation captured before " +
			"the last restart, emits the outcome as telemetry, and closes out any " +
			"flow a previous launch abandoned. Intended for post-install hooks; the " +
			"daemon runs the same tasks at startup.",
		Run: func(cmd *cobra.Command, args []string) {
			a, err := newApp()
			DieNotNil(err, "failed to initialize")
			a.coord.StartupTasks()
			DieNotNil(a.sender.Flush(), "failed to flush events")
		},
		Args: cobra.NoArgs,
	}
	rootCmd.AddCommand(cmd)
}
