package presets

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strrl/focus-signals/internal/calibration"
	"github.com/strrl/focus-signals/internal/signals"
)

// Reader is the read side shared by Store and Tx. Lookups return nil, nil
// when nothing matches.
type Reader interface {
	GetSettings(ctx context.Context, userID string) (*Settings, error)
	GetCalibration(ctx context.Context, userID string, key signals.Key) (*calibration.Calibration, error)
	FindLatestOpen(ctx context.Context, userID, presetID string) (*Application, error)
	ListOpen(ctx context.Context, userID string) ([]Application, error)
}

type Tx interface {
	Reader
	SaveCalibration(ctx context.Context, c calibration.Calibration) error
	DeleteCalibration(ctx context.Context, userID string, key signals.Key) error
	SaveSettings(ctx context.Context, s Settings) error
	InsertApplication(ctx context.Context, app Application) error
	MarkReverted(ctx context.Context, id string, at time.Time) error
	MarkEdited(ctx context.Context, id string) error
}

// Store runs fn inside one atomic unit: either every write in fn lands or
// none does.
type Store interface {
	Reader
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type Config struct {
	Stacking StackPolicy
}

func DefaultConfig() Config {
	return Config{Stacking: StackLayer}
}

type Engine struct {
	config Config
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewEngine(cfg Config, store Store, logger *zap.Logger, now func() time.Time) *Engine {
	if !cfg.Stacking.IsValid() {
		cfg.Stacking = StackLayer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{config: cfg, store: store, logger: logger, now: now}
}

// Preview compares the preset's targets with the user's current values.
// Unknown presets and store read failures yield nil.
func (e *Engine) Preview(ctx context.Context, userID, presetID string) *Diff {
	preset, ok := Lookup(presetID)
	if !ok {
		return nil
	}

	settingsRow, err := e.store.GetSettings(ctx, userID)
	if err != nil {
		e.logger.Warn("failed to load settings for preview",
			zap.String("user", userID),
			zap.String("preset", presetID),
			zap.Error(err))
		return nil
	}
	settings := ResolveSettings(settingsRow, userID)

	current := make(map[signals.Key]calibration.Calibration, len(preset.Changes.Signals))
	for key := range preset.Changes.Signals {
		row, err := e.store.GetCalibration(ctx, userID, key)
		if err != nil {
			e.logger.Warn("failed to load calibration for preview",
				zap.String("user", userID),
				zap.String("key", string(key)),
				zap.Error(err))
			return nil
		}
		current[key] = calibration.Resolve(row, userID, key)
	}

	diff := &Diff{
		PresetID:       preset.ID,
		PresetName:     preset.Name,
		WillChange:     computeChanges(preset.Changes, settings, current),
		DoesNotDo:      append([]string(nil), preset.DoesNotDo...),
		ActivePresetID: settings.ActivePresetID,
	}

	if settings.ActivePresetID != "" && settings.ActivePresetID != preset.ID {
		active := settings.ActivePresetID
		if p, ok := Lookup(active); ok {
			active = p.Name
		}
		switch e.config.Stacking {
		case StackReplace:
			diff.Warning = fmt.Sprintf("%q is active and will be reverted before %q is applied.", active, preset.Name)
		default:
			diff.Warning = fmt.Sprintf("%q is active. Applying %q layers on top of it without reverting it.", active, preset.Name)
		}
	}

	return diff
}

func computeChanges(c Changes, settings Settings, current map[signals.Key]calibration.Calibration) []Change {
	var changes []Change

	add := func(cat ChangeCategory, key signals.Key, before, after string) {
		if before != after {
			changes = append(changes, Change{Category: cat, SignalKey: key, Before: before, After: after})
		}
	}

	if c.GlobalVisibility != nil {
		add(CategoryGlobalVisibility, "", string(settings.GlobalVisibility), string(*c.GlobalVisibility))
	}
	if c.ResponseMode != nil {
		add(CategoryResponseMode, "", string(settings.ResponseMode), string(*c.ResponseMode))
	}
	if c.SessionCapMinutes != nil {
		add(CategorySessionCap, "", formatCap(settings.SessionCapMinutes), formatCap(c.SessionCapMinutes))
	}
	if c.NewProjectVisibility != nil {
		add(CategoryNewProjectVisibility, "", string(settings.NewProjectVisibility), string(*c.NewProjectVisibility))
	}

	for _, key := range signals.AllKeys {
		patch, ok := c.Signals[key]
		if !ok {
			continue
		}
		cur := current[key]
		if patch.Sensitivity != nil {
			add(CategorySensitivity, key, string(cur.Sensitivity), string(*patch.Sensitivity))
		}
		if patch.Relevance != nil {
			add(CategoryRelevance, key, string(cur.Relevance), string(*patch.Relevance))
		}
		if patch.Visibility != nil {
			add(CategoryVisibility, key, string(cur.Visibility), string(*patch.Visibility))
		}
	}

	return changes
}

func formatCap(minutes *int) string {
	if minutes == nil {
		return "none"
	}
	return strconv.Itoa(*minutes)
}

// Apply writes every change of the preset, records the application and moves
// the active preset pointer, all in one transaction. An open application of
// the same preset is closed and replaced. Unknown presets yield nil, nil.
func (e *Engine) Apply(ctx context.Context, userID, presetID, notes string) (*Application, error) {
	preset, ok := Lookup(presetID)
	if !ok {
		return nil, nil
	}

	now := e.now().UTC()
	app := Application{
		ID:        uuid.NewString(),
		UserID:    userID,
		PresetID:  preset.ID,
		AppliedAt: now,
		Changes:   preset.Changes,
		Notes:     notes,
	}
	if days := preset.Changes.TemporaryDays; days > 0 {
		expires := now.AddDate(0, 0, days)
		app.ExpiresAt = &expires
	}

	err := e.store.InTx(ctx, func(tx Tx) error {
		open, err := tx.ListOpen(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list open applications: %w", err)
		}
		for _, prior := range open {
			switch {
			case prior.PresetID == preset.ID:
				// Superseded: the new application rewrites the same values
				// and restarts any expiry.
				if err := tx.MarkReverted(ctx, prior.ID, now); err != nil {
					return fmt.Errorf("failed to close application %s: %w", prior.ID, err)
				}
			case e.config.Stacking == StackReplace:
				if err := revertInTx(ctx, tx, prior, now); err != nil {
					return err
				}
			}
		}

		for _, key := range signals.AllKeys {
			patch, ok := preset.Changes.Signals[key]
			if !ok {
				continue
			}
			row, err := tx.GetCalibration(ctx, userID, key)
			if err != nil {
				return fmt.Errorf("failed to load calibration for %s: %w", key, err)
			}
			next := patch.Apply(calibration.Resolve(row, userID, key))
			next.UpdatedAt = now
			if err := tx.SaveCalibration(ctx, next); err != nil {
				return fmt.Errorf("failed to save calibration for %s: %w", key, err)
			}
		}

		row, err := tx.GetSettings(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		settings := ResolveSettings(row, userID)
		applyGlobals(&settings, preset.Changes)
		settings.ActivePresetID = preset.ID
		settings.PresetAppliedAt = &now
		settings.UpdatedAt = now
		if err := tx.SaveSettings(ctx, settings); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}

		if err := tx.InsertApplication(ctx, app); err != nil {
			return fmt.Errorf("failed to record application: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply preset %s: %w", presetID, err)
	}

	e.logger.Info("preset applied",
		zap.String("user", userID),
		zap.String("preset", presetID),
		zap.String("application", app.ID))
	return &app, nil
}

func applyGlobals(s *Settings, c Changes) {
	if c.GlobalVisibility != nil {
		s.GlobalVisibility = *c.GlobalVisibility
	}
	if c.ResponseMode != nil {
		s.ResponseMode = *c.ResponseMode
	}
	if c.SessionCapMinutes != nil {
		minutes := *c.SessionCapMinutes
		s.SessionCapMinutes = &minutes
	}
	if c.NewProjectVisibility != nil {
		s.NewProjectVisibility = *c.NewProjectVisibility
	}
}

// Revert undoes the latest open application of the preset. Calibration rows
// of every touched signal are deleted, which resets them to defaults rather
// than restoring the values held before the apply.
func (e *Engine) Revert(ctx context.Context, userID, presetID string) (*Application, error) {
	var reverted *Application

	err := e.store.InTx(ctx, func(tx Tx) error {
		app, err := tx.FindLatestOpen(ctx, userID, presetID)
		if err != nil {
			return fmt.Errorf("failed to find application: %w", err)
		}
		if app == nil {
			return ErrNoOpenApplication
		}
		now := e.now().UTC()
		if err := revertInTx(ctx, tx, *app, now); err != nil {
			return err
		}
		app.RevertedAt = &now
		reverted = app
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to revert preset %s: %w", presetID, err)
	}

	e.logger.Info("preset reverted",
		zap.String("user", userID),
		zap.String("preset", presetID),
		zap.String("application", reverted.ID))
	return reverted, nil
}

func revertInTx(ctx context.Context, tx Tx, app Application, now time.Time) error {
	for key := range app.Changes.Signals {
		if err := tx.DeleteCalibration(ctx, app.UserID, key); err != nil {
			return fmt.Errorf("failed to reset calibration for %s: %w", key, err)
		}
	}

	row, err := tx.GetSettings(ctx, app.UserID)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if row != nil {
		settings := *row
		defaults := DefaultSettings(app.UserID)
		if app.Changes.GlobalVisibility != nil {
			settings.GlobalVisibility = defaults.GlobalVisibility
		}
		if app.Changes.ResponseMode != nil {
			settings.ResponseMode = defaults.ResponseMode
		}
		if app.Changes.SessionCapMinutes != nil {
			settings.SessionCapMinutes = nil
		}
		if app.Changes.NewProjectVisibility != nil {
			settings.NewProjectVisibility = defaults.NewProjectVisibility
		}
		if settings.ActivePresetID == app.PresetID {
			settings.ActivePresetID = ""
			settings.PresetAppliedAt = nil
		}
		settings.UpdatedAt = now
		if err := tx.SaveSettings(ctx, settings); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
	}

	if err := tx.MarkReverted(ctx, app.ID, now); err != nil {
		return fmt.Errorf("failed to mark application %s reverted: %w", app.ID, err)
	}
	return nil
}

// MarkEdited flags the latest open application as hand edited. It has no
// effect on apply or revert.
func (e *Engine) MarkEdited(ctx context.Context, userID, presetID string) error {
	err := e.store.InTx(ctx, func(tx Tx) error {
		app, err := tx.FindLatestOpen(ctx, userID, presetID)
		if err != nil {
			return fmt.Errorf("failed to find application: %w", err)
		}
		if app == nil {
			return ErrNoOpenApplication
		}
		if app.EditedManually {
			return nil
		}
		return tx.MarkEdited(ctx, app.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to mark preset %s edited: %w", presetID, err)
	}
	return nil
}

// RevertExpired reverts open applications of temporary presets whose expiry
// has passed.
func (e *Engine) RevertExpired(ctx context.Context, userID string) ([]Application, error) {
	open, err := e.store.ListOpen(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open applications: %w", err)
	}

	now := e.now().UTC()
	var reverted []Application
	for _, app := range open {
		if app.ExpiresAt == nil || now.Before(*app.ExpiresAt) {
			continue
		}
		err := e.store.InTx(ctx, func(tx Tx) error {
			return revertInTx(ctx, tx, app, now)
		})
		if err != nil {
			return reverted, fmt.Errorf("failed to revert expired application %s: %w", app.ID, err)
		}
		app.RevertedAt = &now
		reverted = append(reverted, app)

		e.logger.Info("expired preset reverted",
			zap.String("user", userID),
			zap.String("preset", app.PresetID),
			zap.String("application", app.ID))
	}
	return reverted, nil
}

// Settings returns the user's current globals, or defaults when unset or on
// read failure.
func (e *Engine) Settings(ctx context.Context, userID string) Settings {
	row, err := e.store.GetSettings(ctx, userID)
	if err != nil {
		e.logger.Warn("failed to load settings",
			zap.String("user", userID),
			zap.Error(err))
		return DefaultSettings(userID)
	}
	return ResolveSettings(row, userID)
}

// CoveredBy reports whether the user's active preset application touches key.
func (e *Engine) CoveredBy(ctx context.Context, userID string, key signals.Key) (string, bool) {
	settings := e.Settings(ctx, userID)
	if settings.ActivePresetID == "" {
		return "", false
	}
	app, err := e.store.FindLatestOpen(ctx, userID, settings.ActivePresetID)
	if err != nil || app == nil {
		return "", false
	}
	_, ok := app.Changes.Signals[key]
	return settings.ActivePresetID, ok
}
