// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	Version = "0.0.0"
	Build   = "0"
	Commit  string
)

func init() {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Display version of this tool",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s (%s) %s\n", Version, Build, Commit)
		},
		Args: cobra.NoArgs,
	}
	rootCmd.AddCommand(cmd)
}
