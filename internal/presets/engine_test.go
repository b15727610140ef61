package presets_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/strrl/focus-signals/internal/calibration"
	"github.com/strrl/focus-signals/internal/memstore"
	"github.com/strrl/focus-signals/internal/presets"
	"github.com/strrl/focus-signals/internal/signals"
)

const user = "user-1"

type clock struct {
	t time.Time
}

func (c *clock) Now() time.Time { return c.t }

type fixture struct {
	store  *memstore.Store
	prefs  *memstore.Calibrations
	clock  *clock
	engine *presets.Engine
}

func newFixture(t *testing.T, policy presets.StackPolicy) *fixture {
	t.Helper()
	store := memstore.New()
	c := &clock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	return &fixture{
		store:  store,
		prefs:  store.Calibrations(),
		clock:  c,
		engine: presets.NewEngine(presets.Config{Stacking: policy}, store.Calibrations(), zaptest.NewLogger(t), c.Now),
	}
}

func (f *fixture) calibration(t *testing.T, key signals.Key) *calibration.Calibration {
	t.Helper()
	row, err := f.prefs.GetCalibration(context.Background(), user, key)
	require.NoError(t, err)
	return row
}

func (f *fixture) open(t *testing.T) []presets.Application {
	t.Helper()
	apps, err := f.prefs.ListOpen(context.Background(), user)
	require.NoError(t, err)
	return apps
}

func TestApplyAndRevertOverwhelmed(t *testing.T) {
	f := newFixture(t, presets.StackLayer)
	ctx := context.Background()

	app, err := f.engine.Apply(ctx, user, "overwhelmed", "rough week")
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, "rough week", app.Notes)
	assert.Nil(t, app.ExpiresAt)

	row := f.calibration(t, signals.KeyRapidContextSwitching)
	require.NotNil(t, row)
	assert.Equal(t, calibration.VisibilityHideUnlessStrong, row.Visibility)
	assert.Equal(t, calibration.SensitivityOnlyWhenStrong, row.Sensitivity)
	assert.Equal(t, calibration.DefaultRelevance, row.Relevance)

	settings := f.engine.Settings(ctx, user)
	assert.Equal(t, presets.ResponseCalmingOnly, settings.ResponseMode)
	assert.Equal(t, "overwhelmed", settings.ActivePresetID)

	reverted, err := f.engine.Revert(ctx, user, "overwhelmed")
	require.NoError(t, err)
	assert.Equal(t, app.ID, reverted.ID)
	require.NotNil(t, reverted.RevertedAt)

	assert.Nil(t, f.calibration(t, signals.KeyRapidContextSwitching))
	assert.Nil(t, f.calibration(t, signals.KeyHighTaskIntake))

	settings = f.engine.Settings(ctx, user)
	assert.Equal(t, presets.ResponseStandard, settings.ResponseMode)
	assert.Empty(t, settings.ActivePresetID)
	assert.Nil(t, settings.PresetAppliedAt)
	assert.Empty(t, f.open(t))
}

func TestRevertResetsToDefaultsNotPriorValues(t *testing.T) {
	f := newFixture(t, presets.StackLayer)
	ctx := context.Background()

	quietly := calibration.VisibilityQuietly
	svc := calibration.NewService(f.prefs, nil, f.clock.Now)
	_, err := svc.Upsert(ctx, user, signals.KeyRapidContextSwitching, calibration.Patch{Visibility: &quietly})
	require.NoError(t, err)

	_, err = f.engine.Apply(ctx, user, "overwhelmed", "")
	require.NoError(t, err)
	_, err = f.engine.Revert(ctx, user, "overwhelmed")
	require.NoError(t, err)

	assert.Nil(t, f.calibration(t, signals.KeyRapidContextSwitching))
}

func TestPreviewListsEveryDifference(t *testing.T) {
	f := newFixture(t, presets.StackLayer)

	diff := f.engine.Preview(context.Background(), user, "overwhelmed")
	require.NotNil(t, diff)
	assert.Equal(t, "overwhelmed", diff.PresetID)
	assert.NotEmpty(t, diff.DoesNotDo)
	assert.Empty(t, diff.Warning)

	want := []presets.Change{
		{Category: presets.CategoryResponseMode, Before: "standard", After: "calming_only"},
		{Category: presets.CategorySensitivity, SignalKey: signals.KeyRapidContextSwitching, Before: "as_is", After: "only_when_strong"},
		{Category: presets.CategoryVisibility, SignalKey: signals.KeyRapidContextSwitching, Before: "prominently", After: "hide_unless_strong"},
		{Category: presets.CategoryVisibility, SignalKey: signals.KeyRunawayScopeExpansion, Before: "prominently", After: "quietly"},
		{Category: presets.CategoryVisibility, SignalKey: signals.KeyHighTaskIntake, Before: "prominently", After: "hide_unless_strong"},
	}
	if d := cmp.Diff(want, diff.WillChange); d != "" {
		t.Errorf("WillChange mismatch (-want +got):\n%s", d)
	}
}

func TestPreviewOmitsValuesAlreadyInPlace(t *testing.T) {
	f := newFixture(t, presets.StackLayer)
	ctx := context.Background()

	_, err := f.engine.Apply(ctx, user, "deep_focus", "")
	require.NoError(t, err)

	diff := f.engine.Preview(ctx, user, "deep_focus")
	require.NotNil(t, diff)
	assert.Empty(t, diff.WillChange)
	assert.Equal(t, "deep_focus", diff.ActivePresetID)

	diff = f.engine.Preview(ctx, user, "exploring")
	require.NotNil(t, diff)
	assert.Contains(t, diff.Warning, "layers on top")

	// new project visibility is already visible, so it is not listed
	want := []presets.Change{
		{Category: presets.CategoryVisibility, SignalKey: signals.KeyRapidContextSwitching, Before: "prominently", After: "quietly"},
		{Category: presets.CategoryRelevance, SignalKey: signals.KeyRunawayScopeExpansion, Before: "sometimes_useful", After: "not_useful_right_now"},
		{Category: presets.CategoryVisibility, SignalKey: signals.KeyRunawayScopeExpansion, Before: "prominently", After: "hide_unless_strong"},
	}
	if d := cmp.Diff(want, diff.WillChange); d != "" {
		t.Errorf("WillChange mismatch (-want +got):\n%s", d)
	}
}

func TestUnknownPreset(t *testing.T) {
	f := newFixture(t, presets.StackLayer)
	ctx := context.Background()

	assert.Nil(t, f.engine.Preview(ctx, user, "nope"))

	app, err := f.engine.Apply(ctx, user, "nope", "")
	require.NoError(t, err)
	assert.Nil(t, app)
}

func TestApplyRollsBackOnFailure(t *testing.T) {
	f := newFixture(t, presets.StackLayer)
	ctx := context.Background()
	f.store.FailOn("InsertApplication", errors.New("constraint violated"))

	_, err := f.engine.Apply(ctx, user, "overwhelmed", "")
	require.Error(t, err)

	assert.Nil(t, f.calibration(t, signals.KeyRapidContextSwitching))
	settings, err := f.prefs.GetSettings(ctx, user)
	require.NoError(t, err)
	assert.Nil(t, settings)
	assert.Empty(t, f.open(t))
}

func TestStackLayerKeepsPriorApplicationOpen(t *testing.T) {
	f := newFixture(t, presets.StackLayer)
	ctx := context.Background()

	_, err := f.engine.Apply(ctx, user, "overwhelmed", "")
	require.NoError(t, err)
	_, err = f.engine.Apply(ctx, user, "exploring", "")
	require.NoError(t, err)

	assert.Len(t, f.open(t), 2)
	assert.Equal(t, "exploring", f.engine.Settings(ctx, user).ActivePresetID)
	assert.Equal(t, presets.ResponseCalmingOnly, f.engine.Settings(ctx, user).ResponseMode)

	row := f.calibration(t, signals.KeyRapidContextSwitching)
	require.NotNil(t, row)
	assert.Equal(t, calibration.VisibilityQuietly, row.Visibility)
	assert.Equal(t, calibration.SensitivityOnlyWhenStrong, row.Sensitivity)
}

func TestStackReplaceRevertsPriorApplication(t *testing.T) {
	f := newFixture(t, presets.StackReplace)
	ctx := context.Background()

	_, err := f.engine.Apply(ctx, user, "overwhelmed", "")
	require.NoError(t, err)

	diff := f.engine.Preview(ctx, user, "exploring")
	require.NotNil(t, diff)
	assert.Contains(t, diff.Warning, "will be reverted")

	_, err = f.engine.Apply(ctx, user, "exploring", "")
	require.NoError(t, err)

	open := f.open(t)
	require.Len(t, open, 1)
	assert.Equal(t, "exploring", open[0].PresetID)

	settings := f.engine.Settings(ctx, user)
	assert.Equal(t, "exploring", settings.ActivePresetID)
	assert.Equal(t, presets.ResponseStandard, settings.ResponseMode)

	row := f.calibration(t, signals.KeyRapidContextSwitching)
	require.NotNil(t, row)
	assert.Equal(t, calibration.VisibilityQuietly, row.Visibility)
	assert.Equal(t, calibration.SensitivityAsIs, row.Sensitivity)
	assert.Nil(t, f.calibration(t, signals.KeyHighTaskIntake))
}

func TestRevertWithoutOpenApplication(t *testing.T) {
	f := newFixture(t, presets.StackLayer)

	_, err := f.engine.Revert(context.Background(), user, "overwhelmed")
	assert.ErrorIs(t, err, presets.ErrNoOpenApplication)
}

func TestMarkEdited(t *testing.T) {
	f := newFixture(t, presets.StackLayer)
	ctx := context.Background()

	err := f.engine.MarkEdited(ctx, user, "overwhelmed")
	assert.ErrorIs(t, err, presets.ErrNoOpenApplication)

	_, err = f.engine.Apply(ctx, user, "overwhelmed", "")
	require.NoError(t, err)
	require.NoError(t, f.engine.MarkEdited(ctx, user, "overwhelmed"))
	require.NoError(t, f.engine.MarkEdited(ctx, user, "overwhelmed"))

	open := f.open(t)
	require.Len(t, open, 1)
	assert.True(t, open[0].EditedManually)

	reverted, err := f.engine.Revert(ctx, user, "overwhelmed")
	require.NoError(t, err)
	assert.True(t, reverted.EditedManually)
}

func TestRevertExpiredTemporaryPresets(t *testing.T) {
	f := newFixture(t, presets.StackLayer)
	ctx := context.Background()

	quiet, err := f.engine.Apply(ctx, user, "quiet_week", "")
	require.NoError(t, err)
	require.NotNil(t, quiet.ExpiresAt)
	assert.Equal(t, f.clock.Now().AddDate(0, 0, 7), *quiet.ExpiresAt)
	assert.Equal(t, calibration.VisibilityQuietly, f.engine.Settings(ctx, user).GlobalVisibility)

	_, err = f.engine.Apply(ctx, user, "deep_focus", "")
	require.NoError(t, err)

	f.clock.t = f.clock.t.Add(6 * 24 * time.Hour)
	reverted, err := f.engine.RevertExpired(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, reverted)

	f.clock.t = f.clock.t.Add(2 * 24 * time.Hour)
	reverted, err = f.engine.RevertExpired(ctx, user)
	require.NoError(t, err)
	require.Len(t, reverted, 1)
	assert.Equal(t, "quiet_week", reverted[0].PresetID)

	open := f.open(t)
	require.Len(t, open, 1)
	assert.Equal(t, "deep_focus", open[0].PresetID)

	settings := f.engine.Settings(ctx, user)
	assert.Equal(t, calibration.VisibilityProminently, settings.GlobalVisibility)
	assert.Equal(t, presets.ResponseStandard, settings.ResponseMode)
	assert.Equal(t, "deep_focus", settings.ActivePresetID)
	require.NotNil(t, settings.SessionCapMinutes)
	assert.Equal(t, 90, *settings.SessionCapMinutes)
}

func TestReapplyClosesPriorApplicationOfSamePreset(t *testing.T) {
	for _, policy := range []presets.StackPolicy{presets.StackLayer, presets.StackReplace} {
		t.Run(string(policy), func(t *testing.T) {
			f := newFixture(t, policy)
			ctx := context.Background()
			start := f.clock.Now()

			first, err := f.engine.Apply(ctx, user, "quiet_week", "")
			require.NoError(t, err)

			f.clock.t = start.Add(3 * 24 * time.Hour)
			second, err := f.engine.Apply(ctx, user, "quiet_week", "")
			require.NoError(t, err)

			open := f.open(t)
			require.Len(t, open, 1)
			assert.Equal(t, second.ID, open[0].ID)

			history, err := f.prefs.ListApplications(ctx, user)
			require.NoError(t, err)
			require.Len(t, history, 2)
			assert.Equal(t, first.ID, history[1].ID)
			require.NotNil(t, history[1].RevertedAt)
			assert.Equal(t, start.Add(3*24*time.Hour), *history[1].RevertedAt)

			f.clock.t = start.Add(8 * 24 * time.Hour)
			reverted, err := f.engine.RevertExpired(ctx, user)
			require.NoError(t, err)
			assert.Empty(t, reverted)
			assert.Equal(t, "quiet_week", f.engine.Settings(ctx, user).ActivePresetID)
			assert.Equal(t, calibration.VisibilityQuietly, f.engine.Settings(ctx, user).GlobalVisibility)

			f.clock.t = start.Add(10 * 24 * time.Hour)
			reverted, err = f.engine.RevertExpired(ctx, user)
			require.NoError(t, err)
			require.Len(t, reverted, 1)
			assert.Equal(t, second.ID, reverted[0].ID)
			assert.Empty(t, f.open(t))
			assert.Empty(t, f.engine.Settings(ctx, user).ActivePresetID)
		})
	}
}

func TestRevertExpiredClosesTheExpiredApplication(t *testing.T) {
	f := newFixture(t, presets.StackLayer)
	ctx := context.Background()
	start := f.clock.Now()
	quiet, ok := presets.Lookup("quiet_week")
	require.True(t, ok)

	expiredAt := start.AddDate(0, 0, 7)
	laterAt := start.AddDate(0, 0, 10)
	expired := presets.Application{ID: "app-expired", UserID: user, PresetID: quiet.ID, AppliedAt: start, Changes: quiet.Changes, ExpiresAt: &expiredAt}
	later := presets.Application{ID: "app-later", UserID: user, PresetID: quiet.ID, AppliedAt: start.AddDate(0, 0, 3), Changes: quiet.Changes, ExpiresAt: &laterAt}
	require.NoError(t, f.prefs.InTx(ctx, func(tx presets.Tx) error {
		if err := tx.InsertApplication(ctx, expired); err != nil {
			return err
		}
		return tx.InsertApplication(ctx, later)
	}))

	f.clock.t = start.AddDate(0, 0, 8)
	reverted, err := f.engine.RevertExpired(ctx, user)
	require.NoError(t, err)
	require.Len(t, reverted, 1)
	assert.Equal(t, "app-expired", reverted[0].ID)

	open := f.open(t)
	require.Len(t, open, 1)
	assert.Equal(t, "app-later", open[0].ID)
}

func TestCoveredBy(t *testing.T) {
	f := newFixture(t, presets.StackLayer)
	ctx := context.Background()

	_, ok := f.engine.CoveredBy(ctx, user, signals.KeyRapidContextSwitching)
	assert.False(t, ok)

	_, err := f.engine.Apply(ctx, user, "overwhelmed", "")
	require.NoError(t, err)

	id, ok := f.engine.CoveredBy(ctx, user, signals.KeyRapidContextSwitching)
	assert.True(t, ok)
	assert.Equal(t, "overwhelmed", id)

	_, ok = f.engine.CoveredBy(ctx, user, signals.KeyFragmentedFocusSession)
	assert.False(t, ok)
}

func TestCatalogOrder(t *testing.T) {
	var ids []string
	for _, p := range presets.Catalog() {
		ids = append(ids, p.ID)
		assert.True(t, p.Reversible, p.ID)
	}
	assert.Equal(t, []string{"overwhelmed", "deep_focus", "exploring", "getting_back", "quiet_week"}, ids)
}
