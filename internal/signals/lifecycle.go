package signals

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store persists signal instances. InsertIfAbsent must check for an active
// signal of the same (user, key) and insert in one atomic step.
type Store interface {
	ListActive(ctx context.Context, userID string, now time.Time) ([]ActiveSignal, error)
	FindActiveByKey(ctx context.Context, userID string, key Key, now time.Time) (*ActiveSignal, error)
	InsertIfAbsent(ctx context.Context, sig ActiveSignal, now time.Time) (bool, error)
	Get(ctx context.Context, userID, id string) (*ActiveSignal, error)
	Update(ctx context.Context, userID, id string, u Update) error
	ListOccurrences(ctx context.Context, userID string, since, until time.Time) ([]Occurrence, error)
}

// Detection is a detector's request to raise a signal.
type Detection struct {
	Key         Key
	Intensity   Intensity
	Title       string
	Description string
	Explanation string
	Payload     Payload
	SessionID   string
}

type Lifecycle struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewLifecycle(store Store, logger *zap.Logger, now func() time.Time) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Lifecycle{store: store, logger: logger, now: now}
}

// Create inserts a new signal unless one is already active for (user, key).
// The returned bool is false when the call was a dedup skip.
func (l *Lifecycle) Create(ctx context.Context, userID string, d Detection) (*ActiveSignal, bool, error) {
	def, ok := Lookup(d.Key)
	if !ok {
		return nil, false, fmt.Errorf("unknown signal key: %s", d.Key)
	}

	now := l.now().UTC()
	sig := ActiveSignal{
		ID:          uuid.NewString(),
		UserID:      userID,
		Key:         d.Key,
		Title:       d.Title,
		Description: d.Description,
		Explanation: d.Explanation,
		Payload:     d.Payload,
		Intensity:   d.Intensity,
		SessionID:   d.SessionID,
		DetectedAt:  now,
		ExpiresAt:   now.Add(def.Rule.Expiry),
	}

	created, err := l.store.InsertIfAbsent(ctx, sig, now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create %s signal: %w", d.Key, err)
	}
	if !created {
		l.logger.Debug("signal already active, skipping",
			zap.String("user", userID),
			zap.String("key", string(d.Key)))
		return nil, false, nil
	}

	l.logger.Info("signal created",
		zap.String("user", userID),
		zap.String("key", string(d.Key)),
		zap.String("intensity", string(d.Intensity)),
		zap.Time("expires_at", sig.ExpiresAt))
	return &sig, true, nil
}

// Dismiss marks a signal dismissed. Dismissing twice keeps the first timestamp.
func (l *Lifecycle) Dismiss(ctx context.Context, userID, signalID string) error {
	sig, err := l.store.Get(ctx, userID, signalID)
	if err != nil {
		return fmt.Errorf("failed to load signal %s: %w", signalID, err)
	}
	if sig.DismissedAt != nil {
		return nil
	}

	now := l.now().UTC()
	if err := l.store.Update(ctx, userID, signalID, Update{DismissedAt: &now}); err != nil {
		return fmt.Errorf("failed to dismiss signal %s: %w", signalID, err)
	}
	return nil
}

func (l *Lifecycle) Snooze(ctx context.Context, userID, signalID string, until time.Time) error {
	if _, err := l.store.Get(ctx, userID, signalID); err != nil {
		return fmt.Errorf("failed to load signal %s: %w", signalID, err)
	}

	until = until.UTC()
	if err := l.store.Update(ctx, userID, signalID, Update{SnoozedUntil: &until}); err != nil {
		return fmt.Errorf("failed to snooze signal %s: %w", signalID, err)
	}
	return nil
}

func (l *Lifecycle) Unsnooze(ctx context.Context, userID, signalID string) error {
	if _, err := l.store.Get(ctx, userID, signalID); err != nil {
		return fmt.Errorf("failed to load signal %s: %w", signalID, err)
	}

	if err := l.store.Update(ctx, userID, signalID, Update{ClearSnooze: true}); err != nil {
		return fmt.Errorf("failed to unsnooze signal %s: %w", signalID, err)
	}
	return nil
}

// ListActive returns visible signals, newest first. Currently snoozed signals
// are left out. Store failures yield an empty list.
func (l *Lifecycle) ListActive(ctx context.Context, userID string) []ActiveSignal {
	now := l.now().UTC()
	all := l.listUnexpired(ctx, userID, now)

	var visible []ActiveSignal
	for _, sig := range all {
		if !sig.IsSnoozed(now) {
			visible = append(visible, sig)
		}
	}
	return visible
}

func (l *Lifecycle) ListSnoozed(ctx context.Context, userID string) []ActiveSignal {
	now := l.now().UTC()
	all := l.listUnexpired(ctx, userID, now)

	var snoozed []ActiveSignal
	for _, sig := range all {
		if sig.IsSnoozed(now) {
			snoozed = append(snoozed, sig)
		}
	}
	return snoozed
}

func (l *Lifecycle) listUnexpired(ctx context.Context, userID string, now time.Time) []ActiveSignal {
	sigs, err := l.store.ListActive(ctx, userID, now)
	if err != nil {
		l.logger.Warn("failed to list active signals",
			zap.String("user", userID),
			zap.Error(err))
		return nil
	}

	sort.SliceStable(sigs, func(i, j int) bool {
		return sigs[i].DetectedAt.After(sigs[j].DetectedAt)
	})
	return sigs
}
