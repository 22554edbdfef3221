// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package flow tracks one correlated update attempt end-to-end for
// telemetry: phase timings, cancellation and success reasons, and the
// metadata needed to classify the attempt after a restart.
package flow

import (
	"strconv"
	"time"
)

type (
	// InitiationType records how the update check was started.
	InitiationType string
	// Configuration is the user's auto-update preference at flow start.
	Configuration string
	// Step is the monotonic checkpoint marker used for restart-time
	// classification of a flow.
	Step string
	// CancelReason qualifies a cancelled flow.
	CancelReason string
	// Outcome is the final classification of an emitted flow.
	Outcome string
)

const (
	InitiationAutomatic InitiationType = "automatic"
	InitiationManual    InitiationType = "manual"

	ConfigurationAutomatic Configuration = "automatic"
	ConfigurationManual    Configuration = "manual"

	StepUpdateCheckStarted  Step = "updateCheckStarted"
	StepUpdateFound         Step = "updateFound"
	StepNoUpdateFound       Step = "noUpdateFound"
	StepDownloadStarted     Step = "downloadStarted"
	StepDownloadCompleted   Step = "downloadCompleted"
	StepExtractionStarted   Step = "extractionStarted"
	StepExtractionCompleted Step = "extractionCompleted"
	StepRestartingToUpdate  Step = "restartingToUpdate"

	CancelAppQuit         CancelReason = "appQuit"
	CancelSettingsChanged CancelReason = "settingsChanged"
	CancelBuildExpired    CancelReason = "buildExpired"
	CancelNewCheckStarted CancelReason = "newCheckStarted"

	OutcomeSuccess   Outcome = "success"
	OutcomeFailure   Outcome = "failure"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeUnknown   Outcome = "unknown"
)

// Interval is a measured phase of a flow. A zero End means the phase is
// still open; open intervals are never included in emitted telemetry.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (i *Interval) Begin(now time.Time) { i.Start = now }

func (i *Interval) Complete(now time.Time) { i.End = now }

// CloseIfOpen force-closes a started interval that has no end yet.
func (i *Interval) CloseIfOpen(now time.Time) {
	if !i.Start.IsZero() && i.End.IsZero() {
		i.End = now
	}
}

func (i Interval) Completed() bool {
	return !i.Start.IsZero() && !i.End.IsZero()
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Record is the telemetry record of a single update attempt. It is
// persisted to the local database on every mutation so a crash leaves a
// discoverable record behind.
type Record struct {
	ID            string         `json:"id"`
	FromVersion   string         `json:"fromVersion"`
	FromBuild     string         `json:"fromBuild"`
	ToVersion     string         `json:"toVersion,omitempty"`
	ToBuild       string         `json:"toBuild,omitempty"`
	UpdateType    string         `json:"updateType,omitempty"`
	Initiation    InitiationType `json:"initiationType"`
	Configuration Configuration  `json:"updateConfiguration"`
	InternalUser  bool           `json:"internalUser"`
	LastStep      Step           `json:"lastKnownStep"`
	CancelReason  CancelReason   `json:"cancellationReason,omitempty"`

	// DiskSpaceRemaining is sampled only when a flow completes as a
	// failure; -1 means unsampled.
	DiskSpaceRemaining int64 `json:"diskSpaceRemainingBytes"`

	// TimeSinceLastUpdate is the privacy bucket computed when an update
	// candidate is found; empty when no prior successful update exists.
	TimeSinceLastUpdate string `json:"timeSinceLastUpdate,omitempty"`

	Total       Interval `json:"totalDuration"`
	UpdateCheck Interval `json:"updateCheckDuration"`
	Download    Interval `json:"downloadDuration"`
	Extraction  Interval `json:"extractionDuration"`

	ErrorText string `json:"error,omitempty"`
}

// Fields flattens the record into key->string pairs for transport-
// agnostic ingestion. Intervals with an unset end are excluded.
func (r *Record) Fields(outcome Outcome, reason string) map[string]string {
	fields := map[string]string{
		"flow-id":              r.ID,
		"from-version":         r.FromVersion,
		"from-build":           r.FromBuild,
		"initiation-type":      string(r.Initiation),
		"update-configuration": string(r.Configuration),
		"internal-user":        strconv.FormatBool(r.InternalUser),
		"last-known-step":      string(r.LastStep),
		"outcome":              string(outcome),
		"reason":               reason,
	}
	if r.ToVersion != "" {
		fields["to-version"] = r.ToVersion
	}
	if r.ToBuild != "" {
		fields["to-build"] = r.ToBuild
	}
	if r.UpdateType != "" {
		fields["update-type"] = r.UpdateType
	}
	if r.CancelReason != "" {
		fields["cancellation-reason"] = string(r.CancelReason)
	}
	if r.DiskSpaceRemaining >= 0 {
		fields["disk-space-remaining-bytes"] = strconv.FormatInt(r.DiskSpaceRemaining, 10)
	}
	if r.TimeSinceLastUpdate != "" {
		fields["time-since-last-update"] = r.TimeSinceLastUpdate
	}
	if r.ErrorText != "" {
		fields["error"] = r.ErrorText
	}
	putInterval(fields, "total-duration-ms", r.Total)
	putInterval(fields, "update-check-duration-ms", r.UpdateCheck)
	putInterval(fields, "download-duration-ms", r.Download)
	putInterval(fields, "extraction-duration-ms", r.Extraction)
	return fields
}

func putInterval(fields map[string]string, key string, i Interval) {
	if i.Completed() {
		fields[key] = strconv.FormatInt(i.Duration().Milliseconds(), 10)
	}
}
