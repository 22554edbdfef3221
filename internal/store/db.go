// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package store

import (
	"fmt"

	"github.com/driftapps/driftup/internal/telemetry"
)

func InitializeDatabase(dbFilePath string) error {
	err := CreateSettingsTable(dbFilePath)
	if err != nil {
		return fmt.Errorf("failed to create settings table %w", err)
	}

	err = CreateFlowsTable(dbFilePath)
	if err != nil {
		return fmt.Errorf("failed to create inflight_flows table %w", err)
	}

	err = telemetry.CreateEventsTable(dbFilePath)
	if err != nil {
		return fmt.Errorf("failed to create update_events table %w", err)
	}

	return nil
}
