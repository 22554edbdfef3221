// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package enginetest provides a scripted engine for exercising the
// coordinator without network or filesystem work.
package enginetest

import (
	"context"
	"sync"

	"github.com/driftapps/driftup/pkg/engine"
)

// Scripted replays a fixed callback script against the delegate. The
// script runs synchronously inside Check, mirroring the serial delivery
// the real engine guarantees. A resume action may re-enter Check from
// another goroutine, so the counters are guarded.
type Scripted struct {
	Delegate engine.Delegate
	Script   func(d engine.Delegate) error

	mu        sync.Mutex
	checks    int
	modes     []engine.CheckMode
	cancelled bool
}

func (s *Scripted) Check(ctx context.Context, mode engine.CheckMode) error {
	s.mu.Lock()
	s.checks++
	s.modes = append(s.modes, mode)
	s.mu.Unlock()
	return s.Script(s.Delegate)
}

func (s *Scripted) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

func (s *Scripted) Checks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checks
}

func (s *Scripted) Modes() []engine.CheckMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]engine.CheckMode(nil), s.modes...)
}

func (s *Scripted) WasCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// SuccessfulCycle is a script for a full check-download-extract cycle
// that pauses at the restart checkpoint.
func SuccessfulCycle(item engine.Item) func(d engine.Delegate) error {
	return func(d engine.Delegate) error {
		d.CheckStarted()
		d.UpdateFound(item)
		d.WillDownload()
		d.DownloadProgress(0.5)
		d.DownloadProgress(1.0)
		d.DidDownload()
		d.WillExtract()
		d.ExtractionProgress(1.0)
		d.DidExtract()
		d.WillInstallOnQuit(func() {
			d.WillInstall()
			d.WillRelaunch()
			d.CycleFinished(nil)
		})
		d.CycleFinished(nil)
		return nil
	}
}

// NoUpdateCycle is a script for a check that finds nothing.
func NoUpdateCycle() func(d engine.Delegate) error {
	return func(d engine.Delegate) error {
		d.CheckStarted()
		d.NoUpdateFound("up-to-date")
		d.CycleFinished(nil)
		return engine.ErrNoUpdateFound
	}
}

// FailingCycle is a script for a check that dies with the given error.
func FailingCycle(err error) func(d engine.Delegate) error {
	return func(d engine.Delegate) error {
		d.CheckStarted()
		d.CycleFinished(err)
		return err
	}
}
