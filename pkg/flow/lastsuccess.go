// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package flow

import (
	"time"

	"github.com/driftapps/driftup/pkg/settings"
)

// LastSuccess is the handle to the persisted timestamp of the last update
// that verifiably took effect. The tracker reads it to compute the
// time-since-last-update bucket; the relaunch validator marks it.
type LastSuccess struct {
	settings *settings.Store
}

func NewLastSuccess(s *settings.Store) *LastSuccess {
	return &LastSuccess{settings: s}
}

func (l *LastSuccess) Get() (time.Time, bool) {
	return l.settings.GetTime(settings.KeyLastSuccessfulUpdate)
}

func (l *LastSuccess) Mark(t time.Time) {
	l.settings.SetTime(settings.KeyLastSuccessfulUpdate, t)
}
