package signals_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strrl/focus-signals/internal/signals"
)

func gapDetection() signals.Detection {
	return signals.Detection{
		Key:       signals.KeyProlongedInactivityGap,
		Intensity: signals.IntensityLow,
		Title:     "Welcome back",
		Payload:   signals.InactivityGapPayload{DaysSinceLastActivity: 4},
	}
}

func createGap(t *testing.T, h *harness) *signals.ActiveSignal {
	t.Helper()
	sig, created, err := h.lifecycle.Create(context.Background(), user, gapDetection())
	require.NoError(t, err)
	require.True(t, created)
	return sig
}

func TestCreateSkipsWhileActive(t *testing.T) {
	h := newHarness(t, nil)
	createGap(t, h)

	sig, created, err := h.lifecycle.Create(context.Background(), user, gapDetection())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Nil(t, sig)
}

func TestCreateAfterExpiry(t *testing.T) {
	h := newHarness(t, nil)
	first := createGap(t, h)

	h.clock.Advance(24 * time.Hour)
	second := createGap(t, h)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, h.store.Signals().All(user), 2)
}

func TestConcurrentCreateIsExactlyOnce(t *testing.T) {
	h := newHarness(t, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := h.lifecycle.Create(context.Background(), user, gapDetection())
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, h.store.Signals().All(user), 1)
}

func TestDismissIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	sig := createGap(t, h)

	require.NoError(t, h.lifecycle.Dismiss(ctx, user, sig.ID))
	firstDismissal := h.clock.Now()

	h.clock.Advance(time.Minute)
	require.NoError(t, h.lifecycle.Dismiss(ctx, user, sig.ID))

	all := h.store.Signals().All(user)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].DismissedAt)
	assert.Equal(t, firstDismissal, *all[0].DismissedAt)
	assert.Empty(t, h.lifecycle.ListActive(ctx, user))
}

func TestDismissAllowsRecreation(t *testing.T) {
	h := newHarness(t, nil)
	sig := createGap(t, h)
	require.NoError(t, h.lifecycle.Dismiss(context.Background(), user, sig.ID))

	createGap(t, h)
}

func TestDismissUnknownSignal(t *testing.T) {
	h := newHarness(t, nil)

	err := h.lifecycle.Dismiss(context.Background(), user, "missing")
	assert.ErrorIs(t, err, signals.ErrNotFound)
}

func TestDismissOtherUsersSignal(t *testing.T) {
	h := newHarness(t, nil)
	sig := createGap(t, h)

	err := h.lifecycle.Dismiss(context.Background(), "someone-else", sig.ID)
	assert.ErrorIs(t, err, signals.ErrNotFound)
}

func TestSnoozeHidesAndBlocksRecreation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	sig := createGap(t, h)

	require.NoError(t, h.lifecycle.Snooze(ctx, user, sig.ID, h.clock.Now().Add(2*time.Hour)))

	assert.Empty(t, h.lifecycle.ListActive(ctx, user))
	snoozed := h.lifecycle.ListSnoozed(ctx, user)
	require.Len(t, snoozed, 1)
	assert.Equal(t, sig.ID, snoozed[0].ID)

	_, created, err := h.lifecycle.Create(ctx, user, gapDetection())
	require.NoError(t, err)
	assert.False(t, created)

	h.clock.Advance(3 * time.Hour)
	active := h.lifecycle.ListActive(ctx, user)
	require.Len(t, active, 1)
	assert.Equal(t, sig.ID, active[0].ID)
}

func TestUnsnooze(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	sig := createGap(t, h)

	require.NoError(t, h.lifecycle.Snooze(ctx, user, sig.ID, h.clock.Now().Add(time.Hour)))
	require.NoError(t, h.lifecycle.Unsnooze(ctx, user, sig.ID))

	active := h.lifecycle.ListActive(ctx, user)
	require.Len(t, active, 1)
	assert.Nil(t, active[0].SnoozedUntil)
	assert.Empty(t, h.lifecycle.ListSnoozed(ctx, user))
}

func TestListActiveNewestFirst(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	first := createGap(t, h)
	h.clock.Advance(time.Minute)
	second, created, err := h.lifecycle.Create(ctx, user, signals.Detection{
		Key:       signals.KeyHighTaskIntake,
		Intensity: signals.IntensityHigh,
		Payload:   signals.TaskIntakePayload{Created: 6},
	})
	require.NoError(t, err)
	require.True(t, created)

	active := h.lifecycle.ListActive(ctx, user)
	require.Len(t, active, 2)
	assert.Equal(t, second.ID, active[0].ID)
	assert.Equal(t, first.ID, active[1].ID)
}

func TestListActiveDegradesOnStoreError(t *testing.T) {
	h := newHarness(t, nil)
	createGap(t, h)
	h.store.FailOn("ListActive", errors.New("connection reset"))

	assert.Empty(t, h.lifecycle.ListActive(context.Background(), user))
}

func TestCreateUnknownKey(t *testing.T) {
	h := newHarness(t, nil)

	_, _, err := h.lifecycle.Create(context.Background(), user, signals.Detection{Key: "unknown"})
	assert.Error(t, err)
}
