// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package flow

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftapps/driftup/internal/store"
	"github.com/driftapps/driftup/pkg/settings"
)

type captureEmitter struct {
	emissions []map[string]string
}

func (c *captureEmitter) EmitFlowCompletion(fields map[string]string) {
	c.emissions = append(c.emissions, fields)
}

type trackerFixture struct {
	dbPath  string
	emitter *captureEmitter
	tracker *Tracker
	clock   *time.Time
}

func newTrackerFixture(t *testing.T) *trackerFixture {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "driftup.db")
	require.NoError(t, store.CreateSettingsTable(dbPath))
	require.NoError(t, store.CreateFlowsTable(dbPath))

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	emitter := &captureEmitter{}
	lastSuccess := NewLastSuccess(settings.New(dbPath))
	tracker := NewTracker(dbPath, emitter, lastSuccess, "1.4.0", "118", false,
		WithClock(func() time.Time { return now }),
		WithDiskFree(func() int64 { return 123456 }))
	return &trackerFixture{dbPath: dbPath, emitter: emitter, tracker: tracker, clock: &now}
}

func (f *trackerFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func TestTracker_FlowUniqueness(t *testing.T) {
	f := newTrackerFixture(t)
	f.tracker.StartFlow(InitiationAutomatic, ConfigurationAutomatic)
	first := f.tracker.Active().ID
	f.tracker.StartFlow(InitiationManual, ConfigurationAutomatic)

	require.NotNil(t, f.tracker.Active())
	assert.NotEqual(t, first, f.tracker.Active().ID)

	require.Len(t, f.emitter.emissions, 1)
	fields := f.emitter.emissions[0]
	assert.Equal(t, first, fields["flow-id"])
	assert.Equal(t, "unknown", fields["outcome"])
	assert.Equal(t, "incomplete", fields["reason"])

	// only the new flow remains in the store
	flows, err := store.GetFlows(f.dbPath)
	require.NoError(t, err)
	require.Len(t, flows, 1)
	_, ok := flows[f.tracker.Active().ID]
	assert.True(t, ok)
}

func TestTracker_IntervalCompleteness(t *testing.T) {
	f := newTrackerFixture(t)
	f.tracker.StartFlow(InitiationManual, ConfigurationManual)
	f.advance(2 * time.Second)
	// The check interval is still open when the flow completes: it must
	// be excluded from the emission, not transmitted half-measured.
	f.tracker.CompleteFlow(OutcomeSuccess, "finishedNoError", nil)

	require.Len(t, f.emitter.emissions, 1)
	fields := f.emitter.emissions[0]
	assert.Equal(t, "2000", fields["total-duration-ms"])
	assert.NotContains(t, fields, "update-check-duration-ms")
	assert.NotContains(t, fields, "download-duration-ms")
	assert.NotContains(t, fields, "extraction-duration-ms")
	assert.Nil(t, f.tracker.Active())
}

func TestTracker_PhaseTimings(t *testing.T) {
	f := newTrackerFixture(t)
	f.tracker.StartFlow(InitiationAutomatic, ConfigurationAutomatic)
	f.advance(time.Second)
	f.tracker.DidFindUpdate("1.5.0", "121", false)
	f.tracker.DidStartDownload()
	f.advance(3 * time.Second)
	f.tracker.DidCompleteDownload()
	f.tracker.DidStartExtraction()
	f.advance(time.Second)
	f.tracker.DidCompleteExtraction()
	f.tracker.CompleteFlow(OutcomeSuccess, "finishedNoError", nil)

	require.Len(t, f.emitter.emissions, 1)
	fields := f.emitter.emissions[0]
	assert.Equal(t, "1000", fields["update-check-duration-ms"])
	assert.Equal(t, "3000", fields["download-duration-ms"])
	assert.Equal(t, "1000", fields["extraction-duration-ms"])
	assert.Equal(t, "5000", fields["total-duration-ms"])
	assert.Equal(t, "1.5.0", fields["to-version"])
	assert.Equal(t, "121", fields["to-build"])
	assert.Equal(t, "regular", fields["update-type"])
	assert.Equal(t, string(StepExtractionCompleted), fields["last-known-step"])
}

func TestTracker_TimeSinceLastUpdateBucket(t *testing.T) {
	f := newTrackerFixture(t)
	s := settings.New(f.dbPath)
	s.SetTime(settings.KeyLastSuccessfulUpdate, f.clock.Add(-3*time.Hour))

	f.tracker.StartFlow(InitiationAutomatic, ConfigurationAutomatic)
	f.tracker.DidFindUpdate("1.5.0", "121", true)
	f.tracker.CompleteFlow(OutcomeSuccess, "finishedNoError", nil)

	fields := f.emitter.emissions[0]
	assert.Equal(t, BucketUnder6Hours, fields["time-since-last-update"])
	assert.Equal(t, "critical", fields["update-type"])
}

func TestTracker_DiskSpaceSampledOnlyOnFailure(t *testing.T) {
	f := newTrackerFixture(t)
	f.tracker.StartFlow(InitiationManual, ConfigurationAutomatic)
	f.tracker.CompleteFlow(OutcomeSuccess, "finishedNoError", nil)

	f.tracker.StartFlow(InitiationManual, ConfigurationAutomatic)
	f.tracker.CompleteFlow(OutcomeFailure, "cycleError", assert.AnError)

	require.Len(t, f.emitter.emissions, 2)
	assert.NotContains(t, f.emitter.emissions[0], "disk-space-remaining-bytes")
	assert.Equal(t, "123456", f.emitter.emissions[1]["disk-space-remaining-bytes"])
	assert.Equal(t, assert.AnError.Error(), f.emitter.emissions[1]["error"])
}

func TestTracker_ProcessTerminationClassification(t *testing.T) {
	cases := []struct {
		name        string
		setup       func(tr *Tracker)
		wantOutcome string
		wantReason  string
	}{
		{
			name: "restarting to update",
			setup: func(tr *Tracker) {
				tr.DidFindUpdate("1.5.0", "121", false)
				tr.DidInitiateRestart()
			},
			wantOutcome: "success",
			wantReason:  "restartingToUpdate",
		},
		{
			name: "queued to install on quit",
			setup: func(tr *Tracker) {
				tr.DidStartExtraction()
				tr.DidCompleteExtraction()
			},
			wantOutcome: "success",
			wantReason:  "installingOnQuit",
		},
		{
			name: "quit mid-download",
			setup: func(tr *Tracker) {
				tr.DidStartDownload()
			},
			wantOutcome: "cancelled",
			wantReason:  "appQuit",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newTrackerFixture(t)
			f.tracker.StartFlow(InitiationAutomatic, ConfigurationAutomatic)
			c.setup(f.tracker)
			f.tracker.HandleProcessTermination()

			require.Len(t, f.emitter.emissions, 1)
			fields := f.emitter.emissions[0]
			assert.Equal(t, c.wantOutcome, fields["outcome"])
			assert.Equal(t, c.wantReason, fields["reason"])
			assert.Nil(t, f.tracker.Active())
		})
	}
}

func TestTracker_TerminationWithoutFlowIsNoop(t *testing.T) {
	f := newTrackerFixture(t)
	f.tracker.HandleProcessTermination()
	assert.Empty(t, f.emitter.emissions)
}

func TestTracker_ReconcileAbandonedFlows(t *testing.T) {
	f := newTrackerFixture(t)
	// A flow a previous launch persisted but never completed.
	f.tracker.StartFlow(InitiationAutomatic, ConfigurationAutomatic)
	f.tracker.DidStartDownload()
	abandonedID := f.tracker.Active().ID

	// Simulate the next launch: fresh tracker over the same store.
	f2 := &captureEmitter{}
	next := NewTracker(f.dbPath, f2, NewLastSuccess(settings.New(f.dbPath)), "1.4.0", "118", false)
	next.ReconcileAbandonedFlows()

	require.Len(t, f2.emissions, 1)
	fields := f2.emissions[0]
	assert.Equal(t, abandonedID, fields["flow-id"])
	assert.Equal(t, "unknown", fields["outcome"])
	assert.Equal(t, "abandoned", fields["reason"])
	assert.Equal(t, string(StepDownloadStarted), fields["last-known-step"])

	flows, err := store.GetFlows(f.dbPath)
	require.NoError(t, err)
	assert.Empty(t, flows)

	// Running again finds nothing.
	next.ReconcileAbandonedFlows()
	assert.Len(t, f2.emissions, 1)
}
