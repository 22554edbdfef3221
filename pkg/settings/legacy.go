// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package settings

import (
	"log/slog"
	"os"

	ini "gopkg.in/ini.v1"
)

// legacy INI keys written by the pre-sqlite updater
const (
	legacySection          = "updater"
	legacyKeyAutoUpdates   = "automatic_updates"
	legacyKeyLastUpdate    = "last_successful_update"
	legacyKeyPendingUpdate = "pending_update_since"
)

// ImportLegacy migrates settings from the old INI-format preferences file
// into the store and removes the file. Best-effort: a value already in
// the store wins, an unreadable file is skipped silently.
func (s *Store) ImportLegacy(iniPath string) {
	if _, err := os.Stat(iniPath); err != nil {
		return
	}
	cfg, err := ini.Load(iniPath)
	if err != nil {
		slog.Debug("failed to load legacy preferences, skipping import", "path", iniPath, "error", err)
		return
	}
	sec := cfg.Section(legacySection)

	if _, ok := s.GetString(KeyAutomaticUpdates); !ok && sec.HasKey(legacyKeyAutoUpdates) {
		if v, err := sec.Key(legacyKeyAutoUpdates).Bool(); err == nil {
			s.SetBool(KeyAutomaticUpdates, v)
		}
	}
	if _, ok := s.GetString(KeyLastSuccessfulUpdate); !ok && sec.HasKey(legacyKeyLastUpdate) {
		s.SetString(KeyLastSuccessfulUpdate, sec.Key(legacyKeyLastUpdate).String())
	}
	if _, ok := s.GetString(KeyPendingUpdateSince); !ok && sec.HasKey(legacyKeyPendingUpdate) {
		s.SetString(KeyPendingUpdateSince, sec.Key(legacyKeyPendingUpdate).String())
	}

	if err := os.Remove(iniPath); err != nil {
		slog.Debug("failed to remove legacy preferences file", "path", iniPath, "error", err)
	}
}
