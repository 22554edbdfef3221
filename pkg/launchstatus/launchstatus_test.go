// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package launchstatus

import (
	"path/filepath"
	"testing"

	"github.com/driftapps/driftup/internal/store"
	"github.com/driftapps/driftup/pkg/settings"
)

func newStore(t *testing.T) *settings.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "driftup.db")
	if err := store.CreateSettingsTable(dbPath); err != nil {
		t.Fatal(err)
	}
	return settings.New(dbPath)
}

func TestDetermine_FirstLaunch(t *testing.T) {
	s := newStore(t)
	if got := Determine(s, "1.0", "1"); got != NoChange {
		t.Fatalf("first launch: got %s, want %s", got, NoChange)
	}
	// The running version is now recorded for the next launch.
	if v, ok := s.GetString(settings.KeyPreviousAppVersion); !ok || v != "1.0" {
		t.Fatalf("previous version not recorded, got %q ok=%v", v, ok)
	}
}

func TestDetermine_AcrossLaunches(t *testing.T) {
	s := newStore(t)
	Determine(s, "1.0", "1")

	if got := Determine(s, "1.0", "1"); got != NoChange {
		t.Fatalf("same binary: got %s", got)
	}
	if got := Determine(s, "2.0", "1"); got != Updated {
		t.Fatalf("newer version: got %s", got)
	}
	if got := Determine(s, "1.5", "1"); got != Downgraded {
		t.Fatalf("older version: got %s", got)
	}
}

func TestDetermine_ValidityWindowRestartsOnChange(t *testing.T) {
	s := newStore(t)
	Determine(s, "1.0", "1")
	if _, ok := s.GetTime(settings.KeyUpdateValidityStartDate); !ok {
		t.Fatal("first launch did not start a validity window")
	}

	s.Delete(settings.KeyUpdateValidityStartDate)
	Determine(s, "1.0", "1")
	if _, ok := s.GetTime(settings.KeyUpdateValidityStartDate); ok {
		t.Fatal("unchanged binary restarted the validity window")
	}

	Determine(s, "2.0", "1")
	if _, ok := s.GetTime(settings.KeyUpdateValidityStartDate); !ok {
		t.Fatal("updated binary did not restart the validity window")
	}
}

func TestCompare(t *testing.T) {
	for _, c := range []struct {
		prevVersion, prevBuild, curVersion, curBuild string
		want                                         Status
	}{
		{"1.0", "1", "1.0", "1", NoChange},
		{"1.0", "1", "1.1", "1", Updated},
		{"1.1", "1", "1.0", "1", Downgraded},
		// Same version, numeric build tiebreak. "9" < "10" numerically
		// even though it sorts after it lexicographically.
		{"1.0", "9", "1.0", "10", Updated},
		{"1.0", "10", "1.0", "9", Downgraded},
		{"1.0", "5", "1.0", "5", NoChange},
		// Non-numeric builds fall back to lexicographic.
		{"1.0", "a", "1.0", "b", Updated},
		{"1.0", "b", "1.0", "a", Downgraded},
		// Unparseable versions: equality check only, never downgraded.
		{"dev", "1", "dev", "1", NoChange},
		{"dev", "1", "1.0", "1", Updated},
	} {
		got := compare(c.prevVersion, c.prevBuild, c.curVersion, c.curBuild)
		if got != c.want {
			t.Errorf("compare(%s/%s -> %s/%s): got %s, want %s",
				c.prevVersion, c.prevBuild, c.curVersion, c.curBuild, got, c.want)
		}
	}
}
