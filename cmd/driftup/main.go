// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
