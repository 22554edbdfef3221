// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package coordinator

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/driftapps/driftup/pkg/engine"
	"github.com/driftapps/driftup/pkg/flow"
	"github.com/driftapps/driftup/pkg/progress"
)

// Coordinator implements engine.Delegate. The engine delivers these
// callbacks serially; every rejected progress transition is dropped with
// a log, as the state machine's rules require.

func (c *Coordinator) CheckStarted() {
	c.machine.Transition(progress.CycleStarted(), progress.ResumeNone())
}

func (c *Coordinator) UpdateFound(item engine.Item) {
	c.tracker.DidFindUpdate(item.Version, item.Build, item.Critical)

	c.mu.Lock()
	checkOnly := c.currentMode == engine.CheckOnly
	c.mu.Unlock()
	if checkOnly {
		// Background check with automatic updates off: pause before the
		// download and hold a resume action that runs a full manual
		// cycle when the user opts in. The machine is cleared first so
		// the fresh cycle's start is not rejected by the checkpoint.
		resume := progress.ResumeWith(func() {
			c.machine.Reset()
			go func() {
				if err := c.RequestCheck(context.Background(), flow.InitiationManual); err != nil &&
					!errors.Is(err, engine.ErrNoUpdateFound) {
					slog.Debug("resume from download checkpoint failed", "error", err)
				}
			}()
		})
		c.machine.Transition(progress.CycleDone(progress.DonePausedAtDownloadCheckpoint), resume)
		c.markUpdatePending()
	}
}

func (c *Coordinator) NoUpdateFound(reason string) {
	slog.Debug("no update found", "reason", reason)
	c.tracker.DidFindNoUpdate()
}

func (c *Coordinator) WillDownload() {
	c.machine.Transition(progress.DownloadStarted(), progress.ResumeNone())
	c.tracker.DidStartDownload()
}

func (c *Coordinator) DownloadProgress(fraction float64) {
	c.machine.Transition(progress.Downloading(fraction), progress.ResumeNone())
}

func (c *Coordinator) DidDownload() {
	c.tracker.DidCompleteDownload()
}

func (c *Coordinator) WillExtract() {
	c.machine.Transition(progress.ExtractionStarted(), progress.ResumeNone())
	c.tracker.DidStartExtraction()
}

func (c *Coordinator) ExtractionProgress(fraction float64) {
	c.machine.Transition(progress.Extracting(fraction), progress.ResumeNone())
}

func (c *Coordinator) DidExtract() {
	c.tracker.DidCompleteExtraction()
}

func (c *Coordinator) WillInstall() {
	c.machine.Transition(progress.InstallationStarted(), progress.ResumeNone())
}

func (c *Coordinator) WillInstallOnQuit(resume func()) bool {
	active := c.tracker.Active()
	if active != nil && active.UpdateType == "critical" {
		// Critical updates install immediately rather than waiting for
		// the user to quit.
		return false
	}
	c.machine.Transition(progress.ReadyToInstallAndRelaunch(), progress.ResumeWith(resume))
	c.markUpdatePending()
	return true
}

func (c *Coordinator) WillRelaunch() {
	c.tracker.DidInitiateRestart()
	c.validator.CaptureExpectation(c.tracker.Active())
}

func (c *Coordinator) CycleFinished(err error) {
	if err != nil {
		c.finishWithError(err)
		return
	}

	if c.machine.IsAtRestartCheckpoint() || c.machine.IsAtDownloadCheckpoint() {
		// Paused awaiting user action or process quit; the flow stays
		// open until resumed or terminated.
		return
	}

	active := c.tracker.Active()
	switch {
	case active == nil:
		// Flow already completed (e.g. cancelled during the cycle).
	case active.LastStep == flow.StepRestartingToUpdate:
		// The restart is imminent; HandleProcessTermination completes
		// the flow so the restart itself is what closes it.
		c.machine.Transition(progress.CycleDone(progress.DoneProceededToInstallAtCheckpoint), progress.ResumeNone())
	case active.LastStep == flow.StepNoUpdateFound:
		c.machine.Transition(progress.CycleDone(progress.DoneFinishedNoUpdateFound), progress.ResumeNone())
		c.tracker.CompleteFlow(flow.OutcomeSuccess, string(progress.DoneFinishedNoUpdateFound), nil)
		c.clearUpdatePending()
	default:
		c.machine.Transition(progress.CycleDone(progress.DoneFinishedNoError), progress.ResumeNone())
		c.tracker.CompleteFlow(flow.OutcomeSuccess, string(progress.DoneFinishedNoError), nil)
		c.clearUpdatePending()
	}
}

func (c *Coordinator) finishWithError(err error) {
	c.clearUpdatePending()
	if !engine.Benign(err) {
		c.machine.Transition(progress.ErrorState(err), progress.ResumeNone())
		c.tracker.CompleteFlow(flow.OutcomeFailure, "cycleError", err)
		return
	}

	slog.Debug("update cycle finished with benign cause", "cause", err)
	if errors.Is(err, engine.ErrNoUpdateFound) {
		c.machine.Transition(progress.CycleDone(progress.DoneFinishedNoUpdateFound), progress.ResumeNone())
		c.tracker.CompleteFlow(flow.OutcomeSuccess, string(progress.DoneFinishedNoUpdateFound), nil)
		return
	}
	c.machine.Transition(progress.CycleDone(progress.DoneDismissedNoError), progress.ResumeNone())
	c.tracker.CompleteFlow(flow.OutcomeCancelled, err.Error(), nil)
}
