// Package engine wires detectors, lifecycle, calibration, presets, trends and
// return-context tracking behind the operations exposed to callers.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/strrl/focus-signals/internal/activity"
	"github.com/strrl/focus-signals/internal/calibration"
	"github.com/strrl/focus-signals/internal/presets"
	"github.com/strrl/focus-signals/internal/returnctx"
	"github.com/strrl/focus-signals/internal/signals"
	"github.com/strrl/focus-signals/internal/trends"
)

// PreferenceStore is the calibration and preset persistence, usually one
// implementation.
type PreferenceStore interface {
	calibration.Store
	presets.Store
}

type Stores struct {
	Activity       activity.Reader
	Signals        signals.Store
	Preferences    PreferenceStore
	ReturnContexts returnctx.Store
}

type Options struct {
	Presets presets.Config
	Trends  trends.Config
	Return  returnctx.Config
	Logger  *zap.Logger
	Now     func() time.Time
}

type Engine struct {
	lifecycle   *signals.Lifecycle
	detector    *signals.Detector
	calibration *calibration.Service
	presets     *presets.Engine
	trends      *trends.Classifier
	tracker     *returnctx.Tracker
	logger      *zap.Logger
	now         func() time.Time
}

func New(stores Stores, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	lifecycle := signals.NewLifecycle(stores.Signals, logger.Named("lifecycle"), now)
	return &Engine{
		lifecycle:   lifecycle,
		detector:    signals.NewDetector(stores.Activity, lifecycle, logger.Named("detector"), now),
		calibration: calibration.NewService(stores.Preferences, logger.Named("calibration"), now),
		presets:     presets.NewEngine(opts.Presets, stores.Preferences, logger.Named("presets"), now),
		trends:      trends.NewClassifier(opts.Trends, stores.Signals, logger.Named("trends"), now),
		tracker:     returnctx.NewTracker(opts.Return, stores.Activity, stores.ReturnContexts, logger.Named("return"), now),
		logger:      logger,
		now:         now,
	}
}

func (e *Engine) Definitions() []signals.Definition {
	return signals.Definitions()
}

func (e *Engine) Presets() []presets.Preset {
	return presets.Catalog()
}

func (e *Engine) GetActiveSignals(ctx context.Context, userID string) []signals.ActiveSignal {
	return e.lifecycle.ListActive(ctx, userID)
}

func (e *Engine) GetSnoozedSignals(ctx context.Context, userID string) []signals.ActiveSignal {
	return e.lifecycle.ListSnoozed(ctx, userID)
}

func (e *Engine) DismissSignal(ctx context.Context, userID, signalID string) error {
	return e.lifecycle.Dismiss(ctx, userID, signalID)
}

func (e *Engine) SnoozeSignal(ctx context.Context, userID, signalID string, until time.Time) error {
	return e.lifecycle.Snooze(ctx, userID, signalID, until)
}

func (e *Engine) UnsnoozeSignal(ctx context.Context, userID, signalID string) error {
	return e.lifecycle.Unsnooze(ctx, userID, signalID)
}

// ComputeSignalsForUser runs every detector concurrently and reports one
// outcome per key in catalog order. Expired temporary presets are reverted
// first; a failure there is logged and does not stop detection.
func (e *Engine) ComputeSignalsForUser(ctx context.Context, userID string) ([]signals.Outcome, error) {
	if reverted, err := e.presets.RevertExpired(ctx, userID); err != nil {
		e.logger.Warn("failed to revert expired presets",
			zap.String("user", userID),
			zap.Error(err))
	} else if len(reverted) > 0 {
		e.logger.Info("reverted expired presets",
			zap.String("user", userID),
			zap.Int("count", len(reverted)))
	}

	outcomes := make([]signals.Outcome, len(signals.AllKeys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range signals.AllKeys {
		i, key := i, key
		g.Go(func() error {
			out, err := e.detector.Run(gctx, userID, key)
			outcomes[i] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

// EnrichSignalsWithCalibration joins signals with calibration rows, the
// catalog, the user's global visibility and any active return preference.
func (e *Engine) EnrichSignalsWithCalibration(ctx context.Context, userID string, sigs []signals.ActiveSignal) []calibration.EnrichedSignal {
	rows := e.calibration.GetAll(ctx, userID)
	settings := e.presets.Settings(ctx, userID)
	pref := e.tracker.GetActiveBehaviorPreference(ctx, userID)

	return calibration.Enrich(userID, sigs, rows, signals.Definitions(), calibration.EnrichOptions{
		Now:              e.now(),
		GlobalVisibility: settings.GlobalVisibility,
		Preference:       pref,
	})
}

func (e *Engine) GetSignalCalibrations(ctx context.Context, userID string) map[signals.Key]calibration.Calibration {
	return e.calibration.GetAll(ctx, userID)
}

// UpsertSignalCalibration saves a hand edit. When the active preset covers
// the key, its application is flagged as manually edited.
func (e *Engine) UpsertSignalCalibration(ctx context.Context, userID string, key signals.Key, patch calibration.Patch) (*calibration.Calibration, error) {
	cal, err := e.calibration.Upsert(ctx, userID, key, patch)
	if err != nil {
		return nil, err
	}

	if presetID, ok := e.presets.CoveredBy(ctx, userID, key); ok {
		if err := e.presets.MarkEdited(ctx, userID, presetID); err != nil {
			e.logger.Warn("failed to flag preset as edited",
				zap.String("user", userID),
				zap.String("preset", presetID),
				zap.Error(err))
		}
	}
	return cal, nil
}

func (e *Engine) GetSettings(ctx context.Context, userID string) presets.Settings {
	return e.presets.Settings(ctx, userID)
}

func (e *Engine) PreviewPreset(ctx context.Context, userID, presetID string) *presets.Diff {
	return e.presets.Preview(ctx, userID, presetID)
}

func (e *Engine) ApplyPreset(ctx context.Context, userID, presetID, notes string) (*presets.Application, error) {
	return e.presets.Apply(ctx, userID, presetID, notes)
}

func (e *Engine) RevertPreset(ctx context.Context, userID, presetID string) (*presets.Application, error) {
	return e.presets.Revert(ctx, userID, presetID)
}

func (e *Engine) MarkPresetEdited(ctx context.Context, userID, presetID string) error {
	return e.presets.MarkEdited(ctx, userID, presetID)
}

func (e *Engine) GetSignalTrends(ctx context.Context, userID string, window time.Duration) []trends.Trend {
	return e.trends.Classify(ctx, userID, window)
}

func (e *Engine) DetectReturn(ctx context.Context, userID string) returnctx.Detection {
	return e.tracker.Detect(ctx, userID)
}

func (e *Engine) CreateReturnContext(ctx context.Context, userID string, det returnctx.Detection) (*returnctx.ReturnContext, error) {
	return e.tracker.CreateReturnContext(ctx, userID, det)
}

func (e *Engine) UpdateReturnContext(ctx context.Context, userID, contextID string, in returnctx.Update) (*returnctx.ReturnContext, error) {
	return e.tracker.UpdateReturnContext(ctx, userID, contextID, in)
}

func (e *Engine) SetReturnFlag(ctx context.Context, userID, contextID string, flag returnctx.Flag) error {
	return e.tracker.SetFlag(ctx, userID, contextID, flag)
}

func (e *Engine) GetActiveBehaviorPreference(ctx context.Context, userID string) *returnctx.BehaviorPreference {
	return e.tracker.GetActiveBehaviorPreference(ctx, userID)
}
