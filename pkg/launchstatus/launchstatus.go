// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package launchstatus determines, early at launch, whether the running
// binary differs from the one recorded by the previous launch.
package launchstatus

import (
	"log/slog"
	"strconv"
	"time"

	goversion "github.com/hashicorp/go-version"

	"github.com/driftapps/driftup/pkg/settings"
)

type Status string

const (
	NoChange   Status = "noChange"
	Updated    Status = "updated"
	Downgraded Status = "downgraded"
)

// Determine compares the persisted previous version/build against the
// running one, records the running one for the next launch, and returns
// the classification. The first launch ever reports NoChange.
func Determine(s *settings.Store, currentVersion, currentBuild string) Status {
	prevVersion, versionOk := s.GetString(settings.KeyPreviousAppVersion)
	prevBuild, buildOk := s.GetString(settings.KeyPreviousAppBuild)

	s.SetString(settings.KeyPreviousAppVersion, currentVersion)
	s.SetString(settings.KeyPreviousAppBuild, currentBuild)

	if !versionOk || !buildOk {
		s.SetTime(settings.KeyUpdateValidityStartDate, time.Now())
		return NoChange
	}
	status := compare(prevVersion, prevBuild, currentVersion, currentBuild)
	if status != NoChange {
		// A different build started running; its validity window counts
		// from here.
		s.SetTime(settings.KeyUpdateValidityStartDate, time.Now())
	}
	return status
}

func compare(prevVersion, prevBuild, currentVersion, currentBuild string) Status {
	prev, prevErr := goversion.NewVersion(prevVersion)
	cur, curErr := goversion.NewVersion(currentVersion)
	if prevErr != nil || curErr != nil {
		slog.Debug("unparseable version, falling back to string comparison",
			"previous", prevVersion, "current", currentVersion)
		if prevVersion == currentVersion && prevBuild == currentBuild {
			return NoChange
		}
		return Updated
	}

	switch {
	case cur.GreaterThan(prev):
		return Updated
	case cur.LessThan(prev):
		return Downgraded
	}
	// Same marketing version, the build number breaks the tie.
	if prevBuild == currentBuild {
		return NoChange
	}
	if p, pErr := strconv.Atoi(prevBuild); pErr == nil {
		if c, cErr := strconv.Atoi(currentBuild); cErr == nil {
			if c > p {
				return Updated
			}
			return Downgraded
		}
	}
	if currentBuild > prevBuild {
		return Updated
	}
	return Downgraded
}
