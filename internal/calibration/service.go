package calibration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/strrl/focus-signals/internal/signals"
)

// Store persists calibration rows. GetCalibration returns nil, nil when the
// row does not exist.
type Store interface {
	GetCalibration(ctx context.Context, userID string, key signals.Key) (*Calibration, error)
	ListCalibrations(ctx context.Context, userID string) ([]Calibration, error)
	SaveCalibration(ctx context.Context, c Calibration) error
}

type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, logger *zap.Logger, now func() time.Time) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, logger: logger, now: now}
}

// Get returns the stored row or nil. Store failures are logged and yield nil.
func (s *Service) Get(ctx context.Context, userID string, key signals.Key) *Calibration {
	row, err := s.store.GetCalibration(ctx, userID, key)
	if err != nil {
		s.logger.Warn("failed to get calibration",
			zap.String("user", userID),
			zap.String("key", string(key)),
			zap.Error(err))
		return nil
	}
	return row
}

// GetAll returns the user's stored rows keyed by signal key.
func (s *Service) GetAll(ctx context.Context, userID string) map[signals.Key]Calibration {
	rows, err := s.store.ListCalibrations(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to list calibrations",
			zap.String("user", userID),
			zap.Error(err))
		return map[signals.Key]Calibration{}
	}

	out := make(map[signals.Key]Calibration, len(rows))
	for _, row := range rows {
		out[row.Key] = row
	}
	return out
}

// Upsert merges patch onto the stored row, or onto the defaults when absent.
func (s *Service) Upsert(ctx context.Context, userID string, key signals.Key, patch Patch) (*Calibration, error) {
	if !key.IsValid() {
		return nil, fmt.Errorf("%w: signal key %q", ErrInvalidValue, key)
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	current, err := s.store.GetCalibration(ctx, userID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load calibration for %s: %w", key, err)
	}

	next := patch.Apply(Resolve(current, userID, key))
	next.UpdatedAt = s.now().UTC()

	if err := s.store.SaveCalibration(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save calibration for %s: %w", key, err)
	}
	return &next, nil
}
