package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/strrl/focus-signals/internal/calibration"
	"github.com/strrl/focus-signals/internal/presets"
	"github.com/strrl/focus-signals/internal/signals"
)

// Calibrations satisfies calibration.Store and presets.Store.
type Calibrations struct {
	s *Store
}

func (c *Calibrations) view() *prefsView {
	return &prefsView{s: c.s, st: c.s.st}
}

func (c *Calibrations) GetCalibration(ctx context.Context, userID string, key signals.Key) (*calibration.Calibration, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.view().GetCalibration(ctx, userID, key)
}

func (c *Calibrations) ListCalibrations(ctx context.Context, userID string) ([]calibration.Calibration, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.view().ListCalibrations(ctx, userID)
}

func (c *Calibrations) SaveCalibration(ctx context.Context, cal calibration.Calibration) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.view().SaveCalibration(ctx, cal)
}

func (c *Calibrations) GetSettings(ctx context.Context, userID string) (*presets.Settings, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.view().GetSettings(ctx, userID)
}

func (c *Calibrations) FindLatestOpen(ctx context.Context, userID, presetID string) (*presets.Application, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.view().FindLatestOpen(ctx, userID, presetID)
}

func (c *Calibrations) ListOpen(ctx context.Context, userID string) ([]presets.Application, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.view().ListOpen(ctx, userID)
}

// ListApplications returns the user's application history, newest first.
func (c *Calibrations) ListApplications(ctx context.Context, userID string) ([]presets.Application, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	var out []presets.Application
	for i := len(c.s.st.applications) - 1; i >= 0; i-- {
		if app := c.s.st.applications[i]; app.UserID == userID {
			out = append(out, app)
		}
	}
	return out, nil
}

func (c *Calibrations) InTx(ctx context.Context, fn func(tx presets.Tx) error) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if err := c.s.fail("InTx"); err != nil {
		return err
	}

	draft := c.s.st.clone()
	if err := fn(&prefsView{s: c.s, st: draft}); err != nil {
		return err
	}
	c.s.st = draft
	return nil
}

// prefsView runs queries against one state snapshot. Callers hold mu.
type prefsView struct {
	s  *Store
	st *state
}

func (v *prefsView) GetCalibration(ctx context.Context, userID string, key signals.Key) (*calibration.Calibration, error) {
	if err := v.s.fail("GetCalibration"); err != nil {
		return nil, err
	}
	cal, ok := v.st.calibrations[calKey{userID, key}]
	if !ok {
		return nil, nil
	}
	return &cal, nil
}

func (v *prefsView) ListCalibrations(ctx context.Context, userID string) ([]calibration.Calibration, error) {
	if err := v.s.fail("ListCalibrations"); err != nil {
		return nil, err
	}
	var out []calibration.Calibration
	for k, cal := range v.st.calibrations {
		if k.userID == userID {
			out = append(out, cal)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (v *prefsView) SaveCalibration(ctx context.Context, cal calibration.Calibration) error {
	if err := v.s.fail("SaveCalibration"); err != nil {
		return err
	}
	v.st.calibrations[calKey{cal.UserID, cal.Key}] = cal
	return nil
}

func (v *prefsView) DeleteCalibration(ctx context.Context, userID string, key signals.Key) error {
	if err := v.s.fail("DeleteCalibration"); err != nil {
		return err
	}
	delete(v.st.calibrations, calKey{userID, key})
	return nil
}

func (v *prefsView) GetSettings(ctx context.Context, userID string) (*presets.Settings, error) {
	if err := v.s.fail("GetSettings"); err != nil {
		return nil, err
	}
	settings, ok := v.st.settings[userID]
	if !ok {
		return nil, nil
	}
	return &settings, nil
}

func (v *prefsView) SaveSettings(ctx context.Context, settings presets.Settings) error {
	if err := v.s.fail("SaveSettings"); err != nil {
		return err
	}
	v.st.settings[settings.UserID] = settings
	return nil
}

func (v *prefsView) FindLatestOpen(ctx context.Context, userID, presetID string) (*presets.Application, error) {
	if err := v.s.fail("FindLatestOpen"); err != nil {
		return nil, err
	}
	for i := len(v.st.applications) - 1; i >= 0; i-- {
		app := v.st.applications[i]
		if app.UserID == userID && app.PresetID == presetID && app.RevertedAt == nil {
			return &app, nil
		}
	}
	return nil, nil
}

func (v *prefsView) ListOpen(ctx context.Context, userID string) ([]presets.Application, error) {
	if err := v.s.fail("ListOpen"); err != nil {
		return nil, err
	}
	var out []presets.Application
	for _, app := range v.st.applications {
		if app.UserID == userID && app.RevertedAt == nil {
			out = append(out, app)
		}
	}
	return out, nil
}

func (v *prefsView) InsertApplication(ctx context.Context, app presets.Application) error {
	if err := v.s.fail("InsertApplication"); err != nil {
		return err
	}
	v.st.applications = append(v.st.applications, app)
	return nil
}

func (v *prefsView) MarkReverted(ctx context.Context, id string, at time.Time) error {
	if err := v.s.fail("MarkReverted"); err != nil {
		return err
	}
	for i := range v.st.applications {
		if v.st.applications[i].ID == id {
			t := at
			v.st.applications[i].RevertedAt = &t
		}
	}
	return nil
}

func (v *prefsView) MarkEdited(ctx context.Context, id string) error {
	if err := v.s.fail("MarkEdited"); err != nil {
		return err
	}
	for i := range v.st.applications {
		if v.st.applications[i].ID == id {
			v.st.applications[i].EditedManually = true
		}
	}
	return nil
}
