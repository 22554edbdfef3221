// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package progress

import (
	"errors"
	"testing"
)

func TestMachine_NoDoubleStart(t *testing.T) {
	m := NewMachine()
	if ok := m.Transition(CycleStarted(), ResumeNone()); !ok {
		t.Fatalf("Expected first cycle start to be accepted")
	}
	if ok := m.Transition(CycleStarted(), ResumeNone()); ok {
		t.Fatalf("Expected second cycle start to be rejected")
	}
	if m.Current().Kind != KindCycleStarted {
		t.Fatalf("Expected state to be unchanged, got %s", m.Current().Kind)
	}

	// Checkpoints are not idle-or-terminal either
	if ok := m.Transition(ReadyToInstallAndRelaunch(), ResumeWith(func() {})); !ok {
		t.Fatalf("Unexpected rejection")
	}
	if ok := m.Transition(CycleStarted(), ResumeNone()); ok {
		t.Fatalf("Expected cycle start at restart checkpoint to be rejected")
	}
	if ok := m.Transition(CycleDone(DonePausedAtDownloadCheckpoint), ResumeWith(func() {})); !ok {
		t.Fatalf("Unexpected rejection")
	}
	if ok := m.Transition(CycleStarted(), ResumeNone()); ok {
		t.Fatalf("Expected cycle start at download checkpoint to be rejected")
	}
}

func TestMachine_ErrorPreservation(t *testing.T) {
	m := NewMachine()
	cause := errors.New("extraction failed")
	if ok := m.Transition(ErrorState(cause), ResumeNone()); !ok {
		t.Fatalf("Unexpected rejection")
	}
	if ok := m.Transition(CycleDone(DoneDismissedNoError), ResumeNone()); ok {
		t.Fatalf("Expected benign dismissal of error state to be rejected")
	}
	if m.Current().Kind != KindError || m.Current().Cause != cause {
		t.Fatalf("Expected error state to be preserved, got %s", m.Current().Kind)
	}

	// A fresh check clears the error
	if ok := m.Transition(CycleStarted(), ResumeNone()); !ok {
		t.Fatalf("Expected new cycle start from error state to be accepted")
	}
	if m.Current().Kind != KindCycleStarted {
		t.Fatalf("Expected cycle started, got %s", m.Current().Kind)
	}
}

func TestMachine_TokenAvailableInsideObserver(t *testing.T) {
	m := NewMachine()
	observed := false
	m.Subscribe(func(st State) {
		if st.Kind != KindReadyToInstallAndRelaunch {
			return
		}
		observed = true
		if !m.IsResumable() {
			t.Fatalf("Expected resume token to be set before observers run")
		}
		if !m.IsAtRestartCheckpoint() {
			t.Fatalf("Expected restart checkpoint query to be true inside observer")
		}
	})
	m.Transition(ReadyToInstallAndRelaunch(), ResumeWith(func() {}))
	if !observed {
		t.Fatalf("Expected observer to be notified")
	}
}

func TestMachine_CheckpointQueries(t *testing.T) {
	m := NewMachine()
	if m.IsAtDownloadCheckpoint() || m.IsAtRestartCheckpoint() || m.IsResumable() {
		t.Fatalf("Expected fresh machine to report no checkpoints")
	}

	m.Transition(CycleDone(DonePausedAtDownloadCheckpoint), ResumeWith(func() {}))
	if !m.IsAtDownloadCheckpoint() {
		t.Fatalf("Expected download checkpoint")
	}
	if m.IsAtRestartCheckpoint() {
		t.Fatalf("Did not expect restart checkpoint")
	}

	m.Transition(CycleDone(DonePausedAtRestartCheckpoint), ResumeWith(func() {}))
	if !m.IsAtRestartCheckpoint() {
		t.Fatalf("Expected restart checkpoint for paused cycle-done state")
	}
}

func TestMachine_ResumeInvokesStoredAction(t *testing.T) {
	m := NewMachine()
	invoked := 0
	m.Transition(ReadyToInstallAndRelaunch(), ResumeWith(func() { invoked++ }))
	m.Resume()
	if invoked != 1 {
		t.Fatalf("Expected resume action to run once, ran %d times", invoked)
	}

	// Transitioning away clears the token
	m.Transition(InstallationStarted(), ResumeNone())
	if m.IsResumable() {
		t.Fatalf("Expected token to be cleared on transition")
	}
	m.Resume()
	if invoked != 1 {
		t.Fatalf("Expected cleared resume to be a no-op")
	}
}

func TestMachine_ResetForcesNotStarted(t *testing.T) {
	m := NewMachine()
	m.Transition(ErrorState(errors.New("boom")), ResumeNone())
	m.Reset()
	if m.Current().Kind != KindNotStarted {
		t.Fatalf("Expected not-started after reset, got %s", m.Current().Kind)
	}
	if m.IsResumable() {
		t.Fatalf("Expected token cleared after reset")
	}
}
