// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package flow

import (
	"encoding/json"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/driftapps/driftup/internal/store"
)

// Emitter receives the flattened fields of every completed flow.
type Emitter interface {
	EmitFlowCompletion(fields map[string]string)
}

type (
	TrackerOpts struct {
		Clock    func() time.Time
		DiskFree func() int64
	}
	TrackerOpt func(*TrackerOpts)
)

func WithClock(clock func() time.Time) TrackerOpt {
	return func(o *TrackerOpts) { o.Clock = clock }
}

func WithDiskFree(diskFree func() int64) TrackerOpt {
	return func(o *TrackerOpts) { o.DiskFree = diskFree }
}

// Tracker owns the single active flow record. All milestone methods are
// delivered serially by the coordinator; the tracker persists the record
// on every mutation so a crash leaves it discoverable for
// ReconcileAbandonedFlows on the next launch.
type Tracker struct {
	dbFilePath   string
	emitter      Emitter
	lastSuccess  *LastSuccess
	appVersion   string
	appBuild     string
	internalUser bool
	now          func() time.Time
	diskFree     func() int64

	active *Record
}

func NewTracker(dbFilePath string, emitter Emitter, lastSuccess *LastSuccess,
	appVersion, appBuild string, internalUser bool, options ...TrackerOpt) *Tracker {
	opts := &TrackerOpts{}
	for _, o := range options {
		o(opts)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.DiskFree == nil {
		storageDir := filepath.Dir(dbFilePath)
		opts.DiskFree = func() int64 { return freeDiskSpace(storageDir) }
	}
	return &Tracker{
		dbFilePath:   dbFilePath,
		emitter:      emitter,
		lastSuccess:  lastSuccess,
		appVersion:   appVersion,
		appBuild:     appBuild,
		internalUser: internalUser,
		now:          opts.Clock,
		diskFree:     opts.DiskFree,
	}
}

// Active returns the in-flight flow record, or nil.
func (t *Tracker) Active() *Record {
	return t.active
}

// StartFlow begins a fresh flow. An already-active flow is first
// force-completed as unknown(incomplete) so a preempting check never
// orphans the old record.
func (t *Tracker) StartFlow(initiation InitiationType, configuration Configuration) {
	if t.active != nil {
		t.complete(OutcomeUnknown, "incomplete", nil)
	}
	now := t.now()
	rec := &Record{
		ID:                 ulid.Make().String(),
		FromVersion:        t.appVersion,
		FromBuild:          t.appBuild,
		Initiation:         initiation,
		Configuration:      configuration,
		InternalUser:       t.internalUser,
		LastStep:           StepUpdateCheckStarted,
		DiskSpaceRemaining: -1,
	}
	rec.Total.Begin(now)
	rec.UpdateCheck.Begin(now)
	t.active = rec
	t.persist()
}

func (t *Tracker) DidFindUpdate(version, build string, isCritical bool) {
	if t.active == nil {
		return
	}
	now := t.now()
	t.active.ToVersion = version
	t.active.ToBuild = build
	if isCritical {
		t.active.UpdateType = "critical"
	} else {
		t.active.UpdateType = "regular"
	}
	t.active.UpdateCheck.Complete(now)
	t.active.LastStep = StepUpdateFound
	if last, ok := t.lastSuccess.Get(); ok {
		t.active.TimeSinceLastUpdate = BucketTimeSince(now.Sub(last))
	}
	t.persist()
}

// DidFindNoUpdate closes the check interval but leaves the flow open:
// final completion arrives through the cycle-done path, which is what
// distinguishes "no update" from "flow over".
func (t *Tracker) DidFindNoUpdate() {
	if t.active == nil {
		return
	}
	t.active.UpdateCheck.Complete(t.now())
	t.active.LastStep = StepNoUpdateFound
	t.persist()
}

func (t *Tracker) DidStartDownload() {
	if t.active == nil {
		return
	}
	t.active.Download.Begin(t.now())
	t.active.LastStep = StepDownloadStarted
	t.persist()
}

func (t *Tracker) DidCompleteDownload() {
	if t.active == nil {
		return
	}
	t.active.Download.Complete(t.now())
	t.active.LastStep = StepDownloadCompleted
	t.persist()
}

func (t *Tracker) DidStartExtraction() {
	if t.active == nil {
		return
	}
	t.active.Extraction.Begin(t.now())
	t.active.LastStep = StepExtractionStarted
	t.persist()
}

func (t *Tracker) DidCompleteExtraction() {
	if t.active == nil {
		return
	}
	t.active.Extraction.Complete(t.now())
	t.active.LastStep = StepExtractionCompleted
	t.persist()
}

// DidInitiateRestart marks that the user explicitly chose "restart now",
// as opposed to quitting normally with an update queued.
func (t *Tracker) DidInitiateRestart() {
	if t.active == nil {
		return
	}
	t.active.LastStep = StepRestartingToUpdate
	t.persist()
}

func (t *Tracker) CompleteFlow(outcome Outcome, reason string, err error) {
	t.complete(outcome, reason, err)
}

func (t *Tracker) CancelFlow(reason CancelReason) {
	if t.active == nil {
		return
	}
	t.active.CancelReason = reason
	t.complete(OutcomeCancelled, string(reason), nil)
}

// HandleProcessTermination classifies the active flow at normal process
// shutdown based on how far it got.
func (t *Tracker) HandleProcessTermination() {
	if t.active == nil {
		return
	}
	switch t.active.LastStep {
	case StepRestartingToUpdate:
		t.complete(OutcomeSuccess, string(StepRestartingToUpdate), nil)
	case StepExtractionCompleted:
		// Update queued to install silently on next launch.
		t.complete(OutcomeSuccess, "installingOnQuit", nil)
	default:
		t.CancelFlow(CancelAppQuit)
	}
}

// ReconcileAbandonedFlows emits every flow record a previous launch left
// in the store as unknown(abandoned) and deletes it. Run once at process
// start, before any new flow starts.
func (t *Tracker) ReconcileAbandonedFlows() {
	flows, err := store.GetFlows(t.dbFilePath)
	if err != nil {
		slog.Debug("failed to scan for abandoned flows", "error", err)
		return
	}
	for id, flowJSON := range flows {
		var rec Record
		if err := json.Unmarshal([]byte(flowJSON), &rec); err != nil {
			slog.Debug("dropping unreadable abandoned flow", "id", id, "error", err)
		} else {
			t.emitter.EmitFlowCompletion(rec.Fields(OutcomeUnknown, "abandoned"))
		}
		if err := store.DeleteFlow(t.dbFilePath, id); err != nil {
			slog.Debug("failed to delete abandoned flow", "id", id, "error", err)
		}
	}
}

func (t *Tracker) complete(outcome Outcome, reason string, err error) {
	if t.active == nil {
		return
	}
	now := t.now()
	rec := t.active
	rec.Total.CloseIfOpen(now)
	rec.Download.CloseIfOpen(now)
	rec.Extraction.CloseIfOpen(now)
	if err != nil {
		rec.ErrorText = err.Error()
	}
	if outcome == OutcomeFailure {
		rec.DiskSpaceRemaining = t.diskFree()
	}
	t.emitter.EmitFlowCompletion(rec.Fields(outcome, reason))
	if delErr := store.DeleteFlow(t.dbFilePath, rec.ID); delErr != nil {
		slog.Debug("failed to delete completed flow", "id", rec.ID, "error", delErr)
	}
	t.active = nil
}

func (t *Tracker) persist() {
	data, err := json.Marshal(t.active)
	if err != nil {
		slog.Debug("failed to marshal flow record", "error", err)
		return
	}
	if err := store.SaveFlow(t.dbFilePath, t.active.ID, string(data)); err != nil {
		slog.Debug("failed to persist flow record", "id", t.active.ID, "error", err)
	}
}

func freeDiskSpace(dir string) int64 {
	usage, err := disk.Usage(dir)
	if err != nil {
		slog.Debug("failed to sample disk space", "dir", dir, "error", err)
		return -1
	}
	return int64(usage.Free)
}
