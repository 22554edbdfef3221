// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package relaunch validates across a process restart that an update
// which was expected to happen actually happened.
package relaunch

import (
	"log/slog"
	"time"

	"github.com/driftapps/driftup/internal/telemetry"
	"github.com/driftapps/driftup/pkg/flow"
	"github.com/driftapps/driftup/pkg/launchstatus"
	"github.com/driftapps/driftup/pkg/settings"
)

const unknownField = "unknown"

// Emitter receives the classified validation outcome as a discrete event.
type Emitter interface {
	EmitValidationOutcome(name string, fields map[string]string)
}

type Validator struct {
	settings    *settings.Store
	emitter     Emitter
	lastSuccess *flow.LastSuccess
	now         func() time.Time
}

func NewValidator(s *settings.Store, emitter Emitter, lastSuccess *flow.LastSuccess) *Validator {
	return &Validator{
		settings:    s,
		emitter:     emitter,
		lastSuccess: lastSuccess,
		now:         time.Now,
	}
}

var expectationKeys = []string{
	settings.KeyExpectationSourceVersion,
	settings.KeyExpectationSourceBuild,
	settings.KeyExpectationTargetVersion,
	settings.KeyExpectationTargetBuild,
	settings.KeyExpectationInitiation,
	settings.KeyExpectationConfiguration,
}

// CaptureExpectation persists what update is supposed to take effect.
// Called exactly when the engine signals it is about to relaunch the
// process. Missing target fields default to "unknown".
func (v *Validator) CaptureExpectation(rec *flow.Record) {
	if rec == nil {
		slog.Debug("no active flow to capture an expectation from")
		return
	}
	toVersion, toBuild := rec.ToVersion, rec.ToBuild
	if toVersion == "" {
		toVersion = unknownField
	}
	if toBuild == "" {
		toBuild = unknownField
	}
	v.settings.SetString(settings.KeyExpectationSourceVersion, rec.FromVersion)
	v.settings.SetString(settings.KeyExpectationSourceBuild, rec.FromBuild)
	v.settings.SetString(settings.KeyExpectationTargetVersion, toVersion)
	v.settings.SetString(settings.KeyExpectationTargetBuild, toBuild)
	v.settings.SetString(settings.KeyExpectationInitiation, string(rec.Initiation))
	v.settings.SetString(settings.KeyExpectationConfiguration, string(rec.Configuration))
}

// ValidateOnLaunch classifies the launch against the persisted
// expectation and emits the outcome:
//
//	updated   + expected     -> success
//	updated   + not expected -> unexpected-update
//	otherwise + expected     -> failure (noChange or downgraded)
//	otherwise + not expected -> nothing (steady state)
//
// The expectation is cleared unconditionally after classification so a
// stale one never leaks into a later, unrelated launch.
func (v *Validator) ValidateOnLaunch(actual launchstatus.Status, currentVersion, currentBuild string) {
	defer v.clearExpectation()

	wasExpected := true
	read := func(key string) string {
		value, ok := v.settings.GetString(key)
		if !ok {
			wasExpected = false
			return unknownField
		}
		return value
	}
	sourceVersion := read(settings.KeyExpectationSourceVersion)
	sourceBuild := read(settings.KeyExpectationSourceBuild)
	targetVersion := read(settings.KeyExpectationTargetVersion)
	targetBuild := read(settings.KeyExpectationTargetBuild)
	initiation := read(settings.KeyExpectationInitiation)
	configuration := read(settings.KeyExpectationConfiguration)

	switch {
	case actual == launchstatus.Updated && wasExpected:
		v.lastSuccess.Mark(v.now())
		// The update that was waiting has landed.
		v.settings.Delete(settings.KeyPendingUpdateSince)
		v.emitter.EmitValidationOutcome(telemetry.EventValidationSuccess, map[string]string{
			"source-version":       sourceVersion,
			"source-build":         sourceBuild,
			"target-version":       targetVersion,
			"target-build":         targetBuild,
			"initiation-type":      initiation,
			"update-configuration": configuration,
		})
	case actual == launchstatus.Updated:
		// Update not driven by this mechanism, e.g. a manual reinstall.
		// There is no source/expectation data to report.
		v.emitter.EmitValidationOutcome(telemetry.EventValidationUnexpected, map[string]string{
			"current-version": currentVersion,
			"current-build":   currentBuild,
		})
	case wasExpected:
		failureStatus := "noChange"
		if actual == launchstatus.Downgraded {
			failureStatus = "downgraded"
		}
		v.emitter.EmitValidationOutcome(telemetry.EventValidationFailure, map[string]string{
			"failure-status":       failureStatus,
			"source-version":       sourceVersion,
			"source-build":         sourceBuild,
			"expected-version":     targetVersion,
			"expected-build":       targetBuild,
			"current-version":      currentVersion,
			"current-build":        currentBuild,
			"initiation-type":      initiation,
			"update-configuration": configuration,
		})
	default:
		// No update expected, none happened.
	}
}

func (v *Validator) clearExpectation() {
	for _, key := range expectationKeys {
		v.settings.Delete(key)
	}
}
