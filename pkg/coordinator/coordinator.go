// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package coordinator ties the update cycle together: it drives the
// engine, routes the engine's callbacks into the progress machine and the
// flow tracker, and snapshots the cross-restart expectation before a
// relaunch.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/driftapps/driftup/pkg/engine"
	"github.com/driftapps/driftup/pkg/flow"
	"github.com/driftapps/driftup/pkg/launchstatus"
	"github.com/driftapps/driftup/pkg/progress"
	"github.com/driftapps/driftup/pkg/relaunch"
	"github.com/driftapps/driftup/pkg/settings"
)

// ErrCheckInProgress is returned when a check request observes another
// check's in-progress marker and is dropped.
var ErrCheckInProgress = errors.New("update check already in progress")

// ErrUpdatePending is returned when a check request arrives while the
// progress machine is mid-cycle or holding an update at a checkpoint;
// the staged update must not be clobbered by a new cycle.
var ErrUpdatePending = errors.New("update in progress or awaiting user action")

// Delay between a settings change and reconfiguring the engine, so a
// burst of toggles settles into one reset.
const settleDelay = 100 * time.Millisecond

type Coordinator struct {
	mu              sync.Mutex
	checkInProgress bool
	currentMode     engine.CheckMode

	machine    *progress.Machine
	tracker    *flow.Tracker
	validator  *relaunch.Validator
	settings   *settings.Store
	eng        engine.Engine
	appVersion string
	appBuild   string

	settleMu    sync.Mutex
	settleTimer *time.Timer
}

func New(machine *progress.Machine, tracker *flow.Tracker, validator *relaunch.Validator,
	s *settings.Store, appVersion, appBuild string) *Coordinator {
	return &Coordinator{
		machine:    machine,
		tracker:    tracker,
		validator:  validator,
		settings:   s,
		appVersion: appVersion,
		appBuild:   appBuild,
	}
}

// SetEngine wires the engine. The coordinator is the engine's delegate,
// so the two are constructed in sequence; set before the first
// RequestCheck.
func (c *Coordinator) SetEngine(eng engine.Engine) {
	c.eng = eng
}

func (c *Coordinator) Machine() *progress.Machine { return c.machine }

// StartupTasks runs the once-per-launch work, in order: classify this
// launch against the previous one, validate it against the persisted
// expectation, then close out any flow a previous launch abandoned.
// Must run before the first RequestCheck.
func (c *Coordinator) StartupTasks() {
	status := launchstatus.Determine(c.settings, c.appVersion, c.appBuild)
	c.validator.ValidateOnLaunch(status, c.appVersion, c.appBuild)
	c.tracker.ReconcileAbandonedFlows()
}

// RequestCheck runs one update cycle. A second request while one is
// outstanding is dropped with ErrCheckInProgress rather than
// double-invoking the engine; a request while an update sits at a
// checkpoint is dropped with ErrUpdatePending.
func (c *Coordinator) RequestCheck(ctx context.Context, initiation flow.InitiationType) error {
	c.mu.Lock()
	if c.eng == nil {
		c.mu.Unlock()
		return errors.New("coordinator has no engine")
	}
	if c.checkInProgress {
		c.mu.Unlock()
		slog.Debug("dropping check request, another check is outstanding", "initiation", initiation)
		return ErrCheckInProgress
	}
	if state := c.machine.Current(); !state.IdleOrTerminal() {
		// An earlier cycle left an update staged at a checkpoint; a new
		// cycle would evict its flow and orphan the resume action. The
		// update proceeds through Resume, not through another check.
		c.mu.Unlock()
		slog.Debug("dropping check request, an update is awaiting user action",
			"initiation", initiation, "state", state.Kind)
		return ErrUpdatePending
	}
	c.checkInProgress = true

	configuration := c.configuration()
	mode := engine.CheckManual
	if initiation == flow.InitiationAutomatic && configuration == flow.ConfigurationManual {
		// The user opted out of automatic updates: a background check may
		// look, but the cycle pauses before downloading.
		mode = engine.CheckOnly
	} else if initiation == flow.InitiationAutomatic {
		mode = engine.CheckAutomatic
	}
	c.currentMode = mode
	c.tracker.StartFlow(initiation, configuration)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.checkInProgress = false
		c.mu.Unlock()
	}()
	return c.eng.Check(ctx, mode)
}

// Resume continues an update paused at a checkpoint; no-op otherwise.
func (c *Coordinator) Resume() {
	c.machine.Resume()
}

// SettingsChanged cancels any in-flight flow and, after a short settle
// delay, resets the progress machine. The delayed task re-checks that no
// new flow started during the delay before acting.
func (c *Coordinator) SettingsChanged() {
	c.mu.Lock()
	if c.tracker.Active() != nil {
		if c.eng != nil {
			c.eng.Cancel()
		}
		c.tracker.CancelFlow(flow.CancelSettingsChanged)
	}
	c.mu.Unlock()

	c.settleMu.Lock()
	defer c.settleMu.Unlock()
	if c.settleTimer != nil {
		c.settleTimer.Stop()
	}
	c.settleTimer = time.AfterFunc(settleDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.tracker.Active() != nil {
			slog.Debug("skipping machine reset, a new flow started during the settle delay")
			return
		}
		c.machine.Reset()
	})
}

// Shutdown classifies and completes the active flow at normal process
// termination.
func (c *Coordinator) Shutdown() {
	c.settleMu.Lock()
	if c.settleTimer != nil {
		c.settleTimer.Stop()
	}
	c.settleMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracker.HandleProcessTermination()
}

// markUpdatePending records when an update first became ready and
// waiting. The timestamp backs the "how long has an update been pending"
// surface; an existing marker is kept so the wait is measured from the
// first pause.
func (c *Coordinator) markUpdatePending() {
	if _, ok := c.settings.GetTime(settings.KeyPendingUpdateSince); !ok {
		c.settings.SetTime(settings.KeyPendingUpdateSince, time.Now())
	}
}

func (c *Coordinator) clearUpdatePending() {
	c.settings.Delete(settings.KeyPendingUpdateSince)
}

func (c *Coordinator) configuration() flow.Configuration {
	auto, ok := c.settings.GetBool(settings.KeyAutomaticUpdates)
	if !ok || auto {
		return flow.ConfigurationAutomatic
	}
	return flow.ConfigurationManual
}
