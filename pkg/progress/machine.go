// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package progress

import (
	"log/slog"
	"sync"
)

// Machine owns the single live progress state of an update attempt and
// validates every transition against the current state before mutating.
// Observers are notified after the state and resume action are stored, so
// IsResumable and the checkpoint queries are already correct inside an
// observer callback.
type Machine struct {
	mu        sync.Mutex
	state     State
	resume    ResumeAction
	observers []func(State)
}

func NewMachine() *Machine {
	return &Machine{state: NotStarted()}
}

// Transition requests a move to the given state, storing resume alongside
// it. Returns false and leaves the machine untouched when the transition
// violates the rules:
//   - an Error state must not be silently overwritten by a benign
//     CycleDone(dismissedNoError); the caller clears errors through a new
//     cycle instead
//   - CycleStarted is only accepted from an idle-or-terminal state
func (m *Machine) Transition(to State, resume ResumeAction) bool {
	m.mu.Lock()

	current := m.state.Kind
	if current == KindError && to.Kind == KindCycleDone && to.Reason == DoneDismissedNoError {
		m.mu.Unlock()
		slog.Debug("rejected transition: benign dismissal would overwrite error state",
			"current", current, "requested", to.Kind)
		return false
	}
	if to.Kind == KindCycleStarted && !m.state.IdleOrTerminal() {
		m.mu.Unlock()
		slog.Debug("rejected transition: cycle already in progress or awaiting user action",
			"current", current, "requested", to.Kind)
		return false
	}

	// Resume action stored before the state is published: observers may
	// query IsResumable synchronously from the callback.
	m.resume = resume
	m.state = to
	observers := make([]func(State), len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	for _, fn := range observers {
		fn(to)
	}
	return true
}

func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers an observer called on every accepted transition.
func (m *Machine) Subscribe(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Reset unconditionally forces the machine back to NotStarted and clears
// the resume action. Used when the engine is reconfigured.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.state = NotStarted()
	m.resume = ResumeNone()
	observers := make([]func(State), len(m.observers))
	copy(observers, m.observers)
	state := m.state
	m.mu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
}

func (m *Machine) IsAtDownloadCheckpoint() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Kind == KindCycleDone && m.state.Reason == DonePausedAtDownloadCheckpoint
}

func (m *Machine) IsAtRestartCheckpoint() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Kind == KindReadyToInstallAndRelaunch {
		return true
	}
	return m.state.Kind == KindCycleDone && m.state.Reason == DonePausedAtRestartCheckpoint
}

func (m *Machine) IsResumable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resume.Callable()
}

// Resume invokes the stored resume action, if any.
func (m *Machine) Resume() {
	m.mu.Lock()
	resume := m.resume
	m.mu.Unlock()
	resume.Invoke()
}
