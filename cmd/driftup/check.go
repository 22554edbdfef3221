// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/driftapps/driftup/pkg/engine"
	"github.com/driftapps/driftup/pkg/flow"
	"github.com/driftapps/driftup/pkg/progress"
)

type (
	checkOptions struct {
		Format string
	}
)

func init() {
	opts := checkOptions{
		Format: "text",
	}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one update cycle against the release manifest",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&opts.Format, "format", "text", "Format the output. Values: [text | json]")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		switch opts.Format {
		case "text", "json":
			doCheck(cmd, &opts)
		default:
			return fmt.Errorf("invalid value for --format: %s (must be text or json)", opts.Format)
		}
		return nil
	}
	rootCmd.AddCommand(cmd)
}

func doCheck(cmd *cobra.Command, opts *checkOptions) {
	a, err := newApp()
	DieNotNil(err, "failed to initialize")
	defer a.sender.Stop()
	a.sender.Start()

	a.coord.StartupTasks()
	if opts.Format == "text" {
		attachProgressBars(a.machine)
	}

	err = a.coord.RequestCheck(cmd.Context(), flow.InitiationManual)
	if err != nil && !errors.Is(err, engine.ErrNoUpdateFound) {
		DieNotNil(err, "update check failed")
	}
	a.coord.Shutdown()

	final := a.machine.Current()
	if opts.Format == "json" {
		printJsonResult(final)
	} else {
		printTextResult(final)
	}
}

// attachProgressBars renders download/extraction fractions from the
// progress machine's change notifications.
func attachProgressBars(machine *progress.Machine) {
	var bar *progressbar.ProgressBar
	machine.Subscribe(func(st progress.State) {
		switch st.Kind {
		case progress.KindDownloading:
			if bar == nil {
				bar = progressbar.Default(100, "downloading")
			}
			_ = bar.Set(int(st.Fraction * 100))
		case progress.KindExtracting:
			if bar != nil {
				_ = bar.Finish()
				bar = nil
			}
		}
	})
}

func printJsonResult(final progress.State) {
	result := struct {
		State  string `json:"state"`
		Reason string `json:"reason,omitempty"`
		Error  string `json:"error,omitempty"`
	}{
		State:  string(final.Kind),
		Reason: string(final.Reason),
	}
	if final.Cause != nil {
		result.Error = final.Cause.Error()
	}
	if b, err := json.Marshal(result); err != nil {
		DieNotNil(err, "failed to marshal check result")
	} else {
		fmt.Println(string(b))
	}
}

func printTextResult(final progress.State) {
	switch {
	case final.Kind == progress.KindCycleDone && final.Reason == progress.DoneFinishedNoUpdateFound:
		fmt.Println("Status: Up-to-date")
	case final.Kind == progress.KindReadyToInstallAndRelaunch:
		fmt.Println("Status: Update downloaded, will install on quit")
	case final.Kind == progress.KindCycleDone && final.Reason == progress.DonePausedAtDownloadCheckpoint:
		fmt.Println("Status: Update available, download paused awaiting confirmation")
	case final.Kind == progress.KindError:
		fmt.Println("Status: Update failed:", final.Cause)
	default:
		fmt.Printf("Status: %s\n", final.Kind)
	}
}
