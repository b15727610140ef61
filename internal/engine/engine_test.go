package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/strrl/focus-signals/internal/activity"
	"github.com/strrl/focus-signals/internal/calibration"
	"github.com/strrl/focus-signals/internal/engine"
	"github.com/strrl/focus-signals/internal/memstore"
	"github.com/strrl/focus-signals/internal/presets"
	"github.com/strrl/focus-signals/internal/returnctx"
	"github.com/strrl/focus-signals/internal/signals"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	user = "user-1"
	day  = 24 * time.Hour
)

type clock struct {
	t time.Time
}

func (c *clock) Now() time.Time { return c.t }

type fixture struct {
	store  *memstore.Store
	clock  *clock
	engine *engine.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	c := &clock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	e := engine.New(engine.Stores{
		Activity:       store.Activity(),
		Signals:        store.Signals(),
		Preferences:    store.Calibrations(),
		ReturnContexts: store.ReturnContexts(),
	}, engine.Options{
		Presets: presets.DefaultConfig(),
		Logger:  zaptest.NewLogger(t),
		Now:     c.Now,
	})
	return &fixture{store: store, clock: c, engine: e}
}

func (f *fixture) record(t *testing.T, typ activity.EventType, ago time.Duration, entityID string) {
	t.Helper()
	require.NoError(t, f.store.Activity().Record(context.Background(), activity.Event{
		UserID:     user,
		Type:       typ,
		EntityID:   entityID,
		OccurredAt: f.clock.Now().Add(-ago),
	}))
}

func (f *fixture) seedBusyMorning(t *testing.T) {
	t.Helper()
	for i := 0; i < 8; i++ {
		f.record(t, activity.EventContextOpened, time.Duration(i)*time.Minute, fmt.Sprintf("board-%d", i))
	}
	for i := 0; i < 6; i++ {
		f.record(t, activity.EventTaskCreated, time.Hour, "")
	}
}

func statusByKey(outcomes []signals.Outcome) map[signals.Key]signals.OutcomeStatus {
	out := make(map[signals.Key]signals.OutcomeStatus, len(outcomes))
	for _, o := range outcomes {
		out[o.Key] = o.Status
	}
	return out
}

func TestComputeSignalsTwiceCreatesNoDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedBusyMorning(t)

	first, err := f.engine.ComputeSignalsForUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, first, len(signals.AllKeys))
	for i, key := range signals.AllKeys {
		assert.Equal(t, key, first[i].Key)
	}
	assert.Equal(t, map[signals.Key]signals.OutcomeStatus{
		signals.KeyRapidContextSwitching:  signals.OutcomeCreated,
		signals.KeyRunawayScopeExpansion:  signals.OutcomeBelowThreshold,
		signals.KeyFragmentedFocusSession: signals.OutcomeBelowThreshold,
		signals.KeyProlongedInactivityGap: signals.OutcomeBelowThreshold,
		signals.KeyHighTaskIntake:         signals.OutcomeCreated,
	}, statusByKey(first))

	second, err := f.engine.ComputeSignalsForUser(ctx, user)
	require.NoError(t, err)
	statuses := statusByKey(second)
	assert.Equal(t, signals.OutcomeDuplicate, statuses[signals.KeyRapidContextSwitching])
	assert.Equal(t, signals.OutcomeDuplicate, statuses[signals.KeyHighTaskIntake])

	assert.Len(t, f.store.Signals().All(user), 2)
	assert.Len(t, f.engine.GetActiveSignals(ctx, user), 2)
}

func TestComputeReturnsWriteFailures(t *testing.T) {
	f := newFixture(t)
	f.seedBusyMorning(t)
	f.store.FailOn("InsertIfAbsent", errors.New("disk full"))

	_, err := f.engine.ComputeSignalsForUser(context.Background(), user)
	assert.Error(t, err)
}

func TestComputeDegradesOnReadFailures(t *testing.T) {
	f := newFixture(t)
	f.seedBusyMorning(t)
	f.store.FailOn("Query", errors.New("replica lag"))

	outcomes, err := f.engine.ComputeSignalsForUser(context.Background(), user)
	require.NoError(t, err)
	statuses := statusByKey(outcomes)
	assert.Equal(t, signals.OutcomeReadFailed, statuses[signals.KeyRapidContextSwitching])
	assert.Equal(t, signals.OutcomeBelowThreshold, statuses[signals.KeyProlongedInactivityGap])
}

func TestComputeRevertsExpiredPresets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.ApplyPreset(ctx, user, "getting_back", "")
	require.NoError(t, err)
	assert.Equal(t, presets.ResponseCalmingOnly, f.engine.GetSettings(ctx, user).ResponseMode)

	f.clock.t = f.clock.t.Add(8 * day)
	_, err = f.engine.ComputeSignalsForUser(ctx, user)
	require.NoError(t, err)

	settings := f.engine.GetSettings(ctx, user)
	assert.Equal(t, presets.ResponseStandard, settings.ResponseMode)
	assert.Empty(t, settings.ActivePresetID)
	assert.Empty(t, f.engine.GetSignalCalibrations(ctx, user))
}

func TestUpsertFlagsCoveringPreset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quietly := calibration.VisibilityQuietly

	_, err := f.engine.ApplyPreset(ctx, user, "overwhelmed", "")
	require.NoError(t, err)

	_, err = f.engine.UpsertSignalCalibration(ctx, user, signals.KeyFragmentedFocusSession, calibration.Patch{Visibility: &quietly})
	require.NoError(t, err)
	open, err := f.store.Calibrations().ListOpen(ctx, user)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.False(t, open[0].EditedManually)

	cal, err := f.engine.UpsertSignalCalibration(ctx, user, signals.KeyRapidContextSwitching, calibration.Patch{Visibility: &quietly})
	require.NoError(t, err)
	assert.Equal(t, calibration.VisibilityQuietly, cal.Visibility)
	assert.Equal(t, calibration.SensitivityOnlyWhenStrong, cal.Sensitivity)

	open, err = f.store.Calibrations().ListOpen(ctx, user)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.True(t, open[0].EditedManually)
}

func TestEnrichUsesGlobalVisibilityAndReturnPreference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.record(t, activity.EventSeen, 10*day, "")
	outcomes, err := f.engine.ComputeSignalsForUser(ctx, user)
	require.NoError(t, err)
	require.Equal(t, signals.OutcomeCreated, statusByKey(outcomes)[signals.KeyProlongedInactivityGap])

	enriched := f.engine.EnrichSignalsWithCalibration(ctx, user, f.engine.GetActiveSignals(ctx, user))
	require.Len(t, enriched, 1)
	assert.Equal(t, calibration.DisplayProminent, enriched[0].Display)
	assert.Equal(t, calibration.StateActive, enriched[0].State)

	det := f.engine.DetectReturn(ctx, user)
	require.True(t, det.IsNew)
	rc, err := f.engine.CreateReturnContext(ctx, user, det)
	require.NoError(t, err)

	strongOnly := returnctx.PreferenceStrongOnly
	_, err = f.engine.UpdateReturnContext(ctx, user, rc.ID, returnctx.Update{Preference: &strongOnly})
	require.NoError(t, err)
	require.NotNil(t, f.engine.GetActiveBehaviorPreference(ctx, user))

	enriched = f.engine.EnrichSignalsWithCalibration(ctx, user, f.engine.GetActiveSignals(ctx, user))
	require.Len(t, enriched, 1)
	assert.Equal(t, calibration.DisplayHidden, enriched[0].Display)
}

func TestEnrichUsesPresetGlobalVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedBusyMorning(t)

	_, err := f.engine.ComputeSignalsForUser(ctx, user)
	require.NoError(t, err)
	_, err = f.engine.ApplyPreset(ctx, user, "quiet_week", "")
	require.NoError(t, err)

	for _, s := range f.engine.EnrichSignalsWithCalibration(ctx, user, f.engine.GetActiveSignals(ctx, user)) {
		assert.Equal(t, calibration.DisplayQuiet, s.Display, s.Signal.Key)
	}
}

func TestSignalLifecycleThroughEngine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedBusyMorning(t)

	_, err := f.engine.ComputeSignalsForUser(ctx, user)
	require.NoError(t, err)
	active := f.engine.GetActiveSignals(ctx, user)
	require.Len(t, active, 2)

	require.NoError(t, f.engine.SnoozeSignal(ctx, user, active[0].ID, f.clock.Now().Add(time.Hour)))
	assert.Len(t, f.engine.GetActiveSignals(ctx, user), 1)
	assert.Len(t, f.engine.GetSnoozedSignals(ctx, user), 1)

	require.NoError(t, f.engine.UnsnoozeSignal(ctx, user, active[0].ID))
	require.NoError(t, f.engine.DismissSignal(ctx, user, active[1].ID))
	remaining := f.engine.GetActiveSignals(ctx, user)
	require.Len(t, remaining, 1)
	assert.Equal(t, active[0].ID, remaining[0].ID)

	trends := f.engine.GetSignalTrends(ctx, user, 0)
	assert.Len(t, trends, 2)
}
