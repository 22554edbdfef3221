// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package settings is the single adapter boundary over the durable
// key-value store. Every read treats any I/O failure as "value absent"
// and every write is best-effort; callers never see a store error. The
// coordinator stays correct, if degraded, when the store is unavailable.
package settings

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/driftapps/driftup/internal/store"
)

const (
	KeyPendingUpdateSince      = "pending-update-since"
	KeyUpdateValidityStartDate = "update-validity-start-date"
	KeyLastSuccessfulUpdate    = "last-successful-update-date"
	KeyPreviousAppVersion      = "previous-app-version"
	KeyPreviousAppBuild        = "previous-app-build"
	KeyAutomaticUpdates        = "automatic-updates-enabled"

	KeyExpectationSourceVersion = "pending-update-expectation.source-version"
	KeyExpectationSourceBuild   = "pending-update-expectation.source-build"
	KeyExpectationTargetVersion = "pending-update-expectation.target-version"
	KeyExpectationTargetBuild   = "pending-update-expectation.target-build"
	KeyExpectationInitiation    = "pending-update-expectation.initiation-type"
	KeyExpectationConfiguration = "pending-update-expectation.update-configuration"
)

type Store struct {
	dbFilePath string
}

func New(dbFilePath string) *Store {
	return &Store{dbFilePath: dbFilePath}
}

// GetString returns (value, true) when the key exists and the store is
// readable, ("", false) otherwise.
func (s *Store) GetString(key string) (string, bool) {
	value, ok, err := store.GetValue(s.dbFilePath, key)
	if err != nil {
		slog.Debug("settings read failed, treating as absent", "key", key, "error", err)
		return "", false
	}
	return value, ok
}

func (s *Store) SetString(key string, value string) {
	if err := store.SetValue(s.dbFilePath, key, value); err != nil {
		slog.Debug("settings write failed, dropping value", "key", key, "error", err)
	}
}

func (s *Store) GetTime(key string) (time.Time, bool) {
	value, ok := s.GetString(key)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		slog.Debug("settings value is not a timestamp, treating as absent", "key", key, "error", err)
		return time.Time{}, false
	}
	return t, true
}

func (s *Store) SetTime(key string, t time.Time) {
	s.SetString(key, t.Format(time.RFC3339))
}

func (s *Store) GetBool(key string) (bool, bool) {
	value, ok := s.GetString(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		slog.Debug("settings value is not a bool, treating as absent", "key", key, "error", err)
		return false, false
	}
	return b, true
}

func (s *Store) SetBool(key string, value bool) {
	s.SetString(key, strconv.FormatBool(value))
}

func (s *Store) Delete(key string) {
	if err := store.DeleteValue(s.dbFilePath, key); err != nil {
		slog.Debug("settings delete failed", "key", key, "error", err)
	}
}
