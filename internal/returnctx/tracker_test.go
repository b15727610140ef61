package returnctx_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/strrl/focus-signals/internal/activity"
	"github.com/strrl/focus-signals/internal/memstore"
	"github.com/strrl/focus-signals/internal/returnctx"
)

const (
	user = "user-1"
	day  = 24 * time.Hour
)

type clock struct {
	t time.Time
}

func (c *clock) Now() time.Time { return c.t }

func newTracker(t *testing.T, lastActivityAgo time.Duration) (*returnctx.Tracker, *memstore.Store, *clock) {
	t.Helper()
	store := memstore.New()
	c := &clock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	if lastActivityAgo > 0 {
		require.NoError(t, store.Activity().Record(context.Background(), activity.Event{
			UserID:     user,
			Type:       activity.EventSeen,
			OccurredAt: c.Now().Add(-lastActivityAgo),
		}))
	}
	tr := returnctx.NewTracker(returnctx.DefaultConfig(), store.Activity(), store.ReturnContexts(), zaptest.NewLogger(t), c.Now)
	return tr, store, c
}

func pref(p returnctx.BehaviorPreference) *returnctx.BehaviorPreference { return &p }

func TestDetectBelowGap(t *testing.T) {
	tr, _, _ := newTracker(t, 6*day)

	det := tr.Detect(context.Background(), user)
	assert.False(t, det.Returning)
	assert.Equal(t, 6, det.GapDays)
}

func TestDetectWithoutHistory(t *testing.T) {
	tr, _, _ := newTracker(t, 0)

	assert.Equal(t, returnctx.Detection{}, tr.Detect(context.Background(), user))
}

func TestDetectCreateAndReuse(t *testing.T) {
	tr, _, c := newTracker(t, 10*day)
	ctx := context.Background()

	det := tr.Detect(ctx, user)
	require.True(t, det.Returning)
	assert.True(t, det.IsNew)
	assert.Equal(t, 10, det.GapDays)
	assert.Nil(t, det.Context)

	rc, err := tr.CreateReturnContext(ctx, user, det)
	require.NoError(t, err)
	assert.Equal(t, 10, rc.GapDays)
	assert.Equal(t, returnctx.PreferenceNormal, rc.Preference)
	assert.Equal(t, c.Now().Add(-10*day), rc.LastActivityBeforeAbsence)

	again := tr.Detect(ctx, user)
	require.True(t, again.Returning)
	assert.False(t, again.IsNew)
	require.NotNil(t, again.Context)
	assert.Equal(t, rc.ID, again.Context.ID)

	same, err := tr.CreateReturnContext(ctx, user, again)
	require.NoError(t, err)
	assert.Equal(t, rc.ID, same.ID)
}

func TestCreateWithoutGap(t *testing.T) {
	tr, _, _ := newTracker(t, 2*day)
	ctx := context.Background()

	_, err := tr.CreateReturnContext(ctx, user, tr.Detect(ctx, user))
	assert.Error(t, err)
}

func TestPreferenceExpiresAfterSevenDays(t *testing.T) {
	tr, _, c := newTracker(t, 10*day)
	ctx := context.Background()

	rc, err := tr.CreateReturnContext(ctx, user, tr.Detect(ctx, user))
	require.NoError(t, err)
	assert.Nil(t, tr.GetActiveBehaviorPreference(ctx, user))

	timeOff := returnctx.ReasonTimeOff
	updated, err := tr.UpdateReturnContext(ctx, user, rc.ID, returnctx.Update{
		Reason:     &timeOff,
		Preference: pref(returnctx.PreferenceQuiet),
	})
	require.NoError(t, err)
	require.NotNil(t, updated.PreferenceExpiresAt)
	assert.Equal(t, c.Now().Add(7*day), *updated.PreferenceExpiresAt)
	require.NotNil(t, updated.Reason)
	assert.Equal(t, returnctx.ReasonTimeOff, *updated.Reason)

	got := tr.GetActiveBehaviorPreference(ctx, user)
	require.NotNil(t, got)
	assert.Equal(t, returnctx.PreferenceQuiet, *got)

	c.t = c.t.Add(7*day - time.Second)
	assert.NotNil(t, tr.GetActiveBehaviorPreference(ctx, user))

	c.t = c.t.Add(time.Second)
	assert.Nil(t, tr.GetActiveBehaviorPreference(ctx, user))
}

func TestNormalPreferenceClearsOverride(t *testing.T) {
	tr, _, _ := newTracker(t, 10*day)
	ctx := context.Background()

	rc, err := tr.CreateReturnContext(ctx, user, tr.Detect(ctx, user))
	require.NoError(t, err)

	_, err = tr.UpdateReturnContext(ctx, user, rc.ID, returnctx.Update{Preference: pref(returnctx.PreferenceStrongOnly)})
	require.NoError(t, err)
	require.NotNil(t, tr.GetActiveBehaviorPreference(ctx, user))

	updated, err := tr.UpdateReturnContext(ctx, user, rc.ID, returnctx.Update{Preference: pref(returnctx.PreferenceNormal)})
	require.NoError(t, err)
	assert.Nil(t, updated.PreferenceExpiresAt)
	assert.Nil(t, tr.GetActiveBehaviorPreference(ctx, user))
}

func TestSafeModeDoesNotExpire(t *testing.T) {
	tr, _, c := newTracker(t, 10*day)
	ctx := context.Background()

	rc, err := tr.CreateReturnContext(ctx, user, tr.Detect(ctx, user))
	require.NoError(t, err)
	updated, err := tr.UpdateReturnContext(ctx, user, rc.ID, returnctx.Update{Preference: pref(returnctx.PreferenceSafeMode)})
	require.NoError(t, err)
	assert.Nil(t, updated.PreferenceExpiresAt)

	c.t = c.t.Add(30 * day)
	got := tr.GetActiveBehaviorPreference(ctx, user)
	require.NotNil(t, got)
	assert.Equal(t, returnctx.PreferenceSafeMode, *got)
}

func TestUpdateValidation(t *testing.T) {
	tr, _, _ := newTracker(t, 10*day)
	ctx := context.Background()
	rc, err := tr.CreateReturnContext(ctx, user, tr.Detect(ctx, user))
	require.NoError(t, err)

	bad := returnctx.Reason("vacation")
	_, err = tr.UpdateReturnContext(ctx, user, rc.ID, returnctx.Update{Reason: &bad})
	assert.Error(t, err)

	_, err = tr.UpdateReturnContext(ctx, user, rc.ID, returnctx.Update{Preference: pref("loud")})
	assert.Error(t, err)

	_, err = tr.UpdateReturnContext(ctx, user, "missing", returnctx.Update{Preference: pref(returnctx.PreferenceQuiet)})
	assert.ErrorIs(t, err, returnctx.ErrNotFound)
}

func TestSetFlag(t *testing.T) {
	tr, store, _ := newTracker(t, 10*day)
	ctx := context.Background()
	rc, err := tr.CreateReturnContext(ctx, user, tr.Detect(ctx, user))
	require.NoError(t, err)

	require.NoError(t, tr.SetFlag(ctx, user, rc.ID, returnctx.FlagReorientationShown))
	require.NoError(t, tr.SetFlag(ctx, user, rc.ID, returnctx.FlagBannerDismissed))
	assert.Error(t, tr.SetFlag(ctx, user, rc.ID, returnctx.Flag("confetti")))

	stored, err := store.ReturnContexts().Get(ctx, user, rc.ID)
	require.NoError(t, err)
	assert.True(t, stored.ReorientationShown)
	assert.False(t, stored.ReorientationDismissed)
	assert.True(t, stored.BannerShown)
	assert.True(t, stored.BannerDismissed)

	assert.True(t, tr.Detect(ctx, user).ReorientationShown)
}

func TestReadFailuresDegrade(t *testing.T) {
	tr, store, _ := newTracker(t, 10*day)
	ctx := context.Background()

	store.FailOn("LastActivity", errors.New("offline"))
	assert.False(t, tr.Detect(ctx, user).Returning)

	store.FailOn("ListByUser", errors.New("offline"))
	assert.Nil(t, tr.GetActiveBehaviorPreference(ctx, user))
}
