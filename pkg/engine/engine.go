// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package engine defines the boundary to the updater engine: the
// component that performs the actual check/download/extract/install
// sequence. The coordinator only reacts to the ordered callbacks the
// engine emits, and calls back into it solely to start a check or to
// invoke a previously supplied resume action.
package engine

import (
	"context"
	"errors"
)

// CheckMode records how a check was requested.
type CheckMode string

const (
	CheckAutomatic CheckMode = "automatic"
	CheckManual    CheckMode = "manual"
	// CheckOnly looks for a candidate but stops before downloading; used
	// when background checks run with automatic updates switched off.
	CheckOnly CheckMode = "check-only"
)

// Item describes a candidate update the engine found.
type Item struct {
	Version  string
	Build    string
	Critical bool
	URL      string
	SHA256   string
	Length   int64
}

// Benign cycle-finish causes. These never escalate to the error progress
// state or to failure telemetry.
var (
	ErrNoUpdateFound        = errors.New("no update found")
	ErrUserCancelledInstall = errors.New("user cancelled installation")
	ErrTranslocatedRun      = errors.New("application is running translocated")
	ErrResumedInterruption  = errors.New("resumed interrupted update feed")
	ErrDownloadFailed       = errors.New("update download failed")
)

// Benign reports whether a cycle error is on the allow-list of causes
// that must not be treated as a failed update attempt.
func Benign(err error) bool {
	return errors.Is(err, ErrNoUpdateFound) ||
		errors.Is(err, ErrUserCancelledInstall) ||
		errors.Is(err, ErrTranslocatedRun) ||
		errors.Is(err, ErrResumedInterruption) ||
		errors.Is(err, ErrDownloadFailed)
}

// Delegate receives the engine's lifecycle callbacks. Ordering is
// guaranteed by the engine; delivery is serial.
type Delegate interface {
	CheckStarted()
	UpdateFound(item Item)
	NoUpdateFound(reason string)
	WillDownload()
	DownloadProgress(fraction float64)
	DidDownload()
	WillExtract()
	ExtractionProgress(fraction float64)
	DidExtract()
	WillInstall()
	// WillInstallOnQuit offers to defer installation to process quit.
	// The delegate returns true to accept the deferral, keeping resume
	// for an explicit "install now"; false makes the engine install
	// immediately.
	WillInstallOnQuit(resume func()) bool
	WillRelaunch()
	CycleFinished(err error)
}

// Engine runs update cycles against a delegate.
type Engine interface {
	// Check runs one full cycle, emitting the Delegate callbacks in
	// order. Returns ErrNoUpdateFound when the check completed and no
	// candidate was newer than the running version.
	Check(ctx context.Context, mode CheckMode) error
	// Cancel aborts an in-flight cycle, best-effort.
	Cancel()
}
