// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftapps/driftup/internal/store"
	"github.com/driftapps/driftup/pkg/flow"
	"github.com/driftapps/driftup/pkg/settings"
)

func init() {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the persisted update state",
		Run: func(cmd *cobra.Command, args []string) {
			doStatus(cmd)
		},
		Args: cobra.NoArgs,
	}
	rootCmd.AddCommand(cmd)
}

func doStatus(cmd *cobra.Command) {
	dbPath := config.DBPath()
	s := settings.New(dbPath)

	fmt.Printf("Version:      %s (%s)\n", Version, Build)
	if t, ok := s.GetTime(settings.KeyLastSuccessfulUpdate); ok {
		fmt.Println("Last update: ", t.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Last update:  never")
	}
	if t, ok := s.GetTime(settings.KeyPendingUpdateSince); ok {
		fmt.Println("Pending update since:", t.Format("2006-01-02 15:04:05"))
	}
	if v, ok := s.GetString(settings.KeyExpectationTargetVersion); ok {
		fmt.Println("Expecting update to:", v)
	}

	flows, err := store.GetFlows(dbPath)
	DieNotNil(err, "failed to read in-flight flows")
	if len(flows) == 0 {
		fmt.Println("In-flight flow: none")
		return
	}
	for id, flowJSON := range flows {
		var rec flow.Record
		if err := json.Unmarshal([]byte(flowJSON), &rec); err != nil {
			fmt.Printf("In-flight flow: %s (unreadable)\n", id)
			continue
		}
		fmt.Printf("In-flight flow: %s\n", rec.ID)
		fmt.Printf("  from:  %s (%s)\n", rec.FromVersion, rec.FromBuild)
		if rec.ToVersion != "" {
			fmt.Printf("  to:    %s (%s)\n", rec.ToVersion, rec.ToBuild)
		}
		fmt.Printf("  step:  %s\n", rec.LastStep)
	}
}
