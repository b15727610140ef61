package calibration_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/strrl/focus-signals/internal/calibration"
	"github.com/strrl/focus-signals/internal/memstore"
	"github.com/strrl/focus-signals/internal/signals"
)

const user = "user-1"

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*calibration.Service, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	svc := calibration.NewService(store.Calibrations(), zaptest.NewLogger(t), func() time.Time { return fixedNow })
	return svc, store
}

func ptr[T any](v T) *T { return &v }

func TestUpsertMergesOntoDefaults(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cal, err := svc.Upsert(ctx, user, signals.KeyRapidContextSwitching, calibration.Patch{
		Visibility: ptr(calibration.VisibilityQuietly),
	})
	require.NoError(t, err)

	assert.Equal(t, calibration.Calibration{
		UserID:      user,
		Key:         signals.KeyRapidContextSwitching,
		Sensitivity: calibration.SensitivityAsIs,
		Relevance:   calibration.RelevanceSometimes,
		Visibility:  calibration.VisibilityQuietly,
		UpdatedAt:   fixedNow,
	}, *cal)

	stored := svc.Get(ctx, user, signals.KeyRapidContextSwitching)
	require.NotNil(t, stored)
	assert.Equal(t, *cal, *stored)
}

func TestUpsertKeepsUntouchedFields(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, user, signals.KeyHighTaskIntake, calibration.Patch{
		Sensitivity: ptr(calibration.SensitivityOnlyWhenStrong),
		Visibility:  ptr(calibration.VisibilityHideUnlessStrong),
	})
	require.NoError(t, err)

	cal, err := svc.Upsert(ctx, user, signals.KeyHighTaskIntake, calibration.Patch{
		Notes: ptr("too noisy on Mondays"),
	})
	require.NoError(t, err)

	assert.Equal(t, calibration.SensitivityOnlyWhenStrong, cal.Sensitivity)
	assert.Equal(t, calibration.VisibilityHideUnlessStrong, cal.Visibility)
	assert.Equal(t, "too noisy on Mondays", cal.Notes)

	all := svc.GetAll(ctx, user)
	assert.Len(t, all, 1)
}

func TestUpsertRejectsInvalidValues(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, user, signals.KeyHighTaskIntake, calibration.Patch{
		Relevance: ptr(calibration.Relevance("always")),
	})
	assert.ErrorIs(t, err, calibration.ErrInvalidValue)

	_, err = svc.Upsert(ctx, user, signals.Key("unknown"), calibration.Patch{
		Visibility: ptr(calibration.VisibilityQuietly),
	})
	assert.ErrorIs(t, err, calibration.ErrInvalidValue)

	assert.Empty(t, svc.GetAll(ctx, user))
}

func TestUpsertReturnsStoreErrors(t *testing.T) {
	svc, store := newService(t)
	store.FailOn("SaveCalibration", errors.New("read only"))

	_, err := svc.Upsert(context.Background(), user, signals.KeyHighTaskIntake, calibration.Patch{
		Visibility: ptr(calibration.VisibilityQuietly),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read only")
}

func TestReadsDegradeOnStoreErrors(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	_, err := svc.Upsert(ctx, user, signals.KeyHighTaskIntake, calibration.Patch{
		Visibility: ptr(calibration.VisibilityQuietly),
	})
	require.NoError(t, err)

	store.FailOn("ListCalibrations", errors.New("timeout"))
	store.FailOn("GetCalibration", errors.New("timeout"))

	assert.Empty(t, svc.GetAll(ctx, user))
	assert.Nil(t, svc.Get(ctx, user, signals.KeyHighTaskIntake))
}
