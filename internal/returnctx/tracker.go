package returnctx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strrl/focus-signals/internal/activity"
)

const (
	DefaultGapDays       = 7
	DefaultPreferenceTTL = 7 * 24 * time.Hour
)

type Store interface {
	// FindSince returns the newest context of the user detected at or after since.
	FindSince(ctx context.Context, userID string, since time.Time) (*ReturnContext, error)
	Get(ctx context.Context, userID, id string) (*ReturnContext, error)
	Insert(ctx context.Context, rc ReturnContext) error
	Update(ctx context.Context, rc ReturnContext) error
	// ListByUser returns the user's contexts, most recently updated first.
	ListByUser(ctx context.Context, userID string) ([]ReturnContext, error)
}

type Config struct {
	GapDays       int
	PreferenceTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		GapDays:       DefaultGapDays,
		PreferenceTTL: DefaultPreferenceTTL,
	}
}

type Tracker struct {
	config Config
	reader activity.Reader
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewTracker(cfg Config, reader activity.Reader, store Store, logger *zap.Logger, now func() time.Time) *Tracker {
	if cfg.GapDays <= 0 {
		cfg.GapDays = DefaultGapDays
	}
	if cfg.PreferenceTTL <= 0 {
		cfg.PreferenceTTL = DefaultPreferenceTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		config: cfg,
		reader: reader,
		store:  store,
		logger: logger,
		now:    now,
	}
}

// Detect reports whether the user is coming back from a long gap. Read
// failures are logged and reported as not returning.
func (t *Tracker) Detect(ctx context.Context, userID string) Detection {
	last, ok, err := t.reader.LastActivity(ctx, userID)
	if err != nil {
		t.logger.Warn("failed to read last activity",
			zap.String("user", userID),
			zap.Error(err))
		return Detection{}
	}
	if !ok {
		return Detection{}
	}

	now := t.now().UTC()
	gap := now.Sub(last)
	gapDays := 0
	if gap > 0 {
		gapDays = int(gap / (24 * time.Hour))
	}
	if gapDays < t.config.GapDays {
		return Detection{GapDays: gapDays, LastActivity: last}
	}

	det := Detection{
		Returning:    true,
		GapDays:      gapDays,
		LastActivity: last,
	}

	existing, err := t.store.FindSince(ctx, userID, last)
	if err != nil {
		t.logger.Warn("failed to look up return context",
			zap.String("user", userID),
			zap.Error(err))
		return Detection{}
	}
	if existing != nil {
		det.Context = existing
		det.ReorientationShown = existing.ReorientationShown
		return det
	}

	det.IsNew = true
	return det
}

// CreateReturnContext materializes a newly detected gap.
func (t *Tracker) CreateReturnContext(ctx context.Context, userID string, det Detection) (*ReturnContext, error) {
	if !det.Returning {
		return nil, fmt.Errorf("no inactivity gap detected for user %s", userID)
	}
	if det.Context != nil {
		return det.Context, nil
	}

	now := t.now().UTC()
	rc := ReturnContext{
		ID:                        uuid.NewString(),
		UserID:                    userID,
		AbsenceDetectedAt:         now,
		LastActivityBeforeAbsence: det.LastActivity.UTC(),
		GapDays:                   det.GapDays,
		Preference:                PreferenceNormal,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	if err := t.store.Insert(ctx, rc); err != nil {
		return nil, fmt.Errorf("failed to create return context: %w", err)
	}

	t.logger.Info("return context created",
		zap.String("user", userID),
		zap.Int("gap_days", det.GapDays))
	return &rc, nil
}

func (t *Tracker) UpdateReturnContext(ctx context.Context, userID, contextID string, in Update) (*ReturnContext, error) {
	if in.Reason != nil && !in.Reason.IsValid() {
		return nil, fmt.Errorf("invalid reason: %s", *in.Reason)
	}
	if in.Preference != nil && !in.Preference.IsValid() {
		return nil, fmt.Errorf("invalid behavior preference: %s", *in.Preference)
	}

	rc, err := t.store.Get(ctx, userID, contextID)
	if err != nil {
		return nil, fmt.Errorf("failed to load return context %s: %w", contextID, err)
	}

	now := t.now().UTC()
	if in.Reason != nil {
		reason := *in.Reason
		rc.Reason = &reason
	}
	if in.Note != nil {
		note := *in.Note
		rc.Note = &note
	}
	if in.Preference != nil {
		rc.Preference = *in.Preference
		switch rc.Preference {
		case PreferenceQuiet, PreferenceStrongOnly:
			expires := now.Add(t.config.PreferenceTTL)
			rc.PreferenceExpiresAt = &expires
		default:
			rc.PreferenceExpiresAt = nil
		}
	}
	rc.UpdatedAt = now

	if err := t.store.Update(ctx, *rc); err != nil {
		return nil, fmt.Errorf("failed to update return context %s: %w", contextID, err)
	}
	return rc, nil
}

// SetFlag records that a banner or reorientation view was shown or dismissed.
func (t *Tracker) SetFlag(ctx context.Context, userID, contextID string, flag Flag) error {
	rc, err := t.store.Get(ctx, userID, contextID)
	if err != nil {
		return fmt.Errorf("failed to load return context %s: %w", contextID, err)
	}

	switch flag {
	case FlagBannerShown:
		rc.BannerShown = true
	case FlagBannerDismissed:
		rc.BannerShown = true
		rc.BannerDismissed = true
	case FlagReorientationShown:
		rc.ReorientationShown = true
	case FlagReorientationDismissed:
		rc.ReorientationShown = true
		rc.ReorientationDismissed = true
	default:
		return fmt.Errorf("unknown return context flag: %s", flag)
	}
	rc.UpdatedAt = t.now().UTC()

	if err := t.store.Update(ctx, *rc); err != nil {
		return fmt.Errorf("failed to update return context %s: %w", contextID, err)
	}
	return nil
}

// GetActiveBehaviorPreference returns the most recent unexpired preference.
// A normal preference means no override and yields nil.
func (t *Tracker) GetActiveBehaviorPreference(ctx context.Context, userID string) *BehaviorPreference {
	contexts, err := t.store.ListByUser(ctx, userID)
	if err != nil {
		t.logger.Warn("failed to list return contexts",
			zap.String("user", userID),
			zap.Error(err))
		return nil
	}

	now := t.now().UTC()
	for _, rc := range contexts {
		if rc.PreferenceExpiresAt != nil && !now.Before(*rc.PreferenceExpiresAt) {
			continue
		}
		if rc.Preference == "" || rc.Preference == PreferenceNormal {
			return nil
		}
		pref := rc.Preference
		return &pref
	}
	return nil
}
