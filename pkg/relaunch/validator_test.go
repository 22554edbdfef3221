// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package relaunch

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftapps/driftup/internal/store"
	"github.com/driftapps/driftup/internal/telemetry"
	"github.com/driftapps/driftup/pkg/flow"
	"github.com/driftapps/driftup/pkg/launchstatus"
	"github.com/driftapps/driftup/pkg/settings"
)

type captureEmitter struct {
	names  []string
	fields []map[string]string
}

func (c *captureEmitter) EmitValidationOutcome(name string, fields map[string]string) {
	c.names = append(c.names, name)
	c.fields = append(c.fields, fields)
}

func newValidatorFixture(t *testing.T) (*Validator, *captureEmitter, *settings.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "driftup.db")
	require.NoError(t, store.CreateSettingsTable(dbPath))
	s := settings.New(dbPath)
	emitter := &captureEmitter{}
	return NewValidator(s, emitter, flow.NewLastSuccess(s)), emitter, s
}

func expectationRecord() *flow.Record {
	return &flow.Record{
		FromVersion:   "1.0",
		FromBuild:     "1",
		ToVersion:     "2.0",
		ToBuild:       "5",
		Initiation:    flow.InitiationManual,
		Configuration: flow.ConfigurationAutomatic,
	}
}

func TestValidator_ExpectedUpdateSucceeds(t *testing.T) {
	v, emitter, _ := newValidatorFixture(t)
	v.CaptureExpectation(expectationRecord())
	v.ValidateOnLaunch(launchstatus.Updated, "2.0", "5")

	require.Len(t, emitter.names, 1)
	assert.Equal(t, telemetry.EventValidationSuccess, emitter.names[0])
	fields := emitter.fields[0]
	assert.Equal(t, "1.0", fields["source-version"])
	assert.Equal(t, "1", fields["source-build"])
	assert.Equal(t, "2.0", fields["target-version"])
	assert.Equal(t, "5", fields["target-build"])
	assert.Equal(t, "manual", fields["initiation-type"])
	assert.Equal(t, "automatic", fields["update-configuration"])
}

func TestValidator_ExpectedUpdateDidNotHappen(t *testing.T) {
	for _, c := range []struct {
		actual launchstatus.Status
		want   string
	}{
		{launchstatus.NoChange, "noChange"},
		{launchstatus.Downgraded, "downgraded"},
	} {
		v, emitter, _ := newValidatorFixture(t)
		v.CaptureExpectation(expectationRecord())
		v.ValidateOnLaunch(c.actual, "2.0", "4")

		require.Len(t, emitter.names, 1)
		assert.Equal(t, telemetry.EventValidationFailure, emitter.names[0])
		fields := emitter.fields[0]
		assert.Equal(t, c.want, fields["failure-status"])
		assert.Equal(t, "2.0", fields["expected-version"])
		assert.Equal(t, "5", fields["expected-build"])
		assert.Equal(t, "2.0", fields["current-version"])
		assert.Equal(t, "4", fields["current-build"])
	}
}

func TestValidator_UnexpectedUpdate(t *testing.T) {
	v, emitter, _ := newValidatorFixture(t)
	// No expectation captured: e.g. a manual reinstall bumped the version.
	v.ValidateOnLaunch(launchstatus.Updated, "2.0", "5")

	require.Len(t, emitter.names, 1)
	assert.Equal(t, telemetry.EventValidationUnexpected, emitter.names[0])
	fields := emitter.fields[0]
	assert.Equal(t, "2.0", fields["current-version"])
	assert.Equal(t, "5", fields["current-build"])
	assert.NotContains(t, fields, "source-version")
}

func TestValidator_SteadyStateEmitsNothing(t *testing.T) {
	v, emitter, _ := newValidatorFixture(t)
	v.ValidateOnLaunch(launchstatus.NoChange, "1.0", "1")
	assert.Empty(t, emitter.names)
}

func TestValidator_ExpectationConsumedExactlyOnce(t *testing.T) {
	v, emitter, s := newValidatorFixture(t)
	v.CaptureExpectation(expectationRecord())
	v.ValidateOnLaunch(launchstatus.Updated, "2.0", "5")
	require.Len(t, emitter.names, 1)

	// Cleared regardless of outcome: a second validation in the same
	// lifetime observes no expectation.
	_, ok := s.GetString(settings.KeyExpectationSourceVersion)
	assert.False(t, ok)
	v.ValidateOnLaunch(launchstatus.NoChange, "2.0", "5")
	assert.Len(t, emitter.names, 1)
}

func TestValidator_PartialExpectationIsNotExpected(t *testing.T) {
	v, emitter, s := newValidatorFixture(t)
	v.CaptureExpectation(expectationRecord())
	s.Delete(settings.KeyExpectationTargetBuild)

	v.ValidateOnLaunch(launchstatus.Updated, "2.0", "5")
	require.Len(t, emitter.names, 1)
	assert.Equal(t, telemetry.EventValidationUnexpected, emitter.names[0])
}

func TestValidator_CaptureDefaultsMissingTargetFields(t *testing.T) {
	v, _, s := newValidatorFixture(t)
	rec := expectationRecord()
	rec.ToVersion = ""
	rec.ToBuild = ""
	v.CaptureExpectation(rec)

	target, ok := s.GetString(settings.KeyExpectationTargetVersion)
	require.True(t, ok)
	assert.Equal(t, "unknown", target)
}

func TestValidator_SuccessMarksLastSuccessfulUpdate(t *testing.T) {
	v, _, s := newValidatorFixture(t)
	v.CaptureExpectation(expectationRecord())
	v.ValidateOnLaunch(launchstatus.Updated, "2.0", "5")

	_, ok := s.GetTime(settings.KeyLastSuccessfulUpdate)
	assert.True(t, ok)
}
