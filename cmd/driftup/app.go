// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package main

import (
	"fmt"
	"os"

	"github.com/driftapps/driftup/internal/engine/httpengine"
	"github.com/driftapps/driftup/internal/store"
	"github.com/driftapps/driftup/internal/telemetry"
	"github.com/driftapps/driftup/pkg/coordinator"
	"github.com/driftapps/driftup/pkg/flow"
	"github.com/driftapps/driftup/pkg/progress"
	"github.com/driftapps/driftup/pkg/relaunch"
	"github.com/driftapps/driftup/pkg/settings"
)

// app wires the persistent store, the telemetry sender, the tracker, the
// progress machine, the validator and the engine into one coordinator.
type app struct {
	settings *settings.Store
	sender   *telemetry.Sender
	machine  *progress.Machine
	coord    *coordinator.Coordinator
}

func newApp() (*app, error) {
	if err := os.MkdirAll(config.StorageDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	dbPath := config.DBPath()
	if err := store.InitializeDatabase(dbPath); err != nil {
		return nil, err
	}

	s := settings.New(dbPath)
	if config.LegacyPreferencesPath != "" {
		s.ImportLegacy(config.LegacyPreferencesPath)
	}

	sender := telemetry.NewSender(dbPath, config.TelemetryURL)
	lastSuccess := flow.NewLastSuccess(s)
	tracker := flow.NewTracker(dbPath, sender, lastSuccess, Version, Build, config.InternalUser)
	machine := progress.NewMachine()
	validator := relaunch.NewValidator(s, sender, lastSuccess)

	coord := coordinator.New(machine, tracker, validator, s, Version, Build)
	coord.SetEngine(httpengine.New(config.ManifestURL, Version, config.StagingDir(), coord))

	return &app{
		settings: s,
		sender:   sender,
		machine:  machine,
		coord:    coord,
	}, nil
}
