package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/strrl/focus-signals/internal/calibration"
	"github.com/strrl/focus-signals/internal/presets"
	"github.com/strrl/focus-signals/internal/signals"
)

// Calibrations stores calibration rows, user settings and preset
// applications. It satisfies calibration.Store and presets.Store.
type Calibrations struct {
	prefs
	db *sql.DB
}

func (c *Calibrations) InTx(ctx context.Context, fn func(tx presets.Tx) error) error {
	return withTx(ctx, c.db, func(tx *sql.Tx) error {
		return fn(&prefs{q: tx})
	})
}

// prefs holds the queries shared by the plain and transactional handles.
type prefs struct {
	q querier
}

func (p *prefs) GetCalibration(ctx context.Context, userID string, key signals.Key) (*calibration.Calibration, error) {
	row := p.q.QueryRowContext(ctx, `
		SELECT sensitivity, relevance, visibility, COALESCE(notes, ''), updated_at
		FROM signal_calibrations
		WHERE user_id = ? AND signal_key = ?`,
		userID, string(key))

	c := calibration.Calibration{UserID: userID, Key: key}
	var sensitivity, relevance, visibility string
	err := row.Scan(&sensitivity, &relevance, &visibility, &c.Notes, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calibration: %w", err)
	}

	c.Sensitivity = calibration.Sensitivity(sensitivity)
	c.Relevance = calibration.Relevance(relevance)
	c.Visibility = calibration.Visibility(visibility)
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func (p *prefs) ListCalibrations(ctx context.Context, userID string) ([]calibration.Calibration, error) {
	rows, err := p.q.QueryContext(ctx, `
		SELECT signal_key, sensitivity, relevance, visibility, COALESCE(notes, ''), updated_at
		FROM signal_calibrations
		WHERE user_id = ?
		ORDER BY signal_key`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list calibrations: %w", err)
	}
	defer rows.Close()

	var out []calibration.Calibration
	for rows.Next() {
		c := calibration.Calibration{UserID: userID}
		var key, sensitivity, relevance, visibility string
		if err := rows.Scan(&key, &sensitivity, &relevance, &visibility, &c.Notes, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan calibration: %w", err)
		}
		c.Key = signals.Key(key)
		c.Sensitivity = calibration.Sensitivity(sensitivity)
		c.Relevance = calibration.Relevance(relevance)
		c.Visibility = calibration.Visibility(visibility)
		c.UpdatedAt = c.UpdatedAt.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

func (p *prefs) SaveCalibration(ctx context.Context, c calibration.Calibration) error {
	res, err := p.q.ExecContext(ctx, `
		UPDATE signal_calibrations
		SET sensitivity = ?, relevance = ?, visibility = ?, notes = ?, updated_at = ?
		WHERE user_id = ? AND signal_key = ?`,
		string(c.Sensitivity), string(c.Relevance), string(c.Visibility), c.Notes, c.UpdatedAt.UTC(),
		c.UserID, string(c.Key))
	if err != nil {
		return fmt.Errorf("failed to update calibration: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count updated rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	_, err = p.q.ExecContext(ctx, `
		INSERT INTO signal_calibrations (user_id, signal_key, sensitivity, relevance, visibility, notes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.UserID, string(c.Key), string(c.Sensitivity), string(c.Relevance), string(c.Visibility), c.Notes, c.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert calibration: %w", err)
	}
	return nil
}

func (p *prefs) DeleteCalibration(ctx context.Context, userID string, key signals.Key) error {
	_, err := p.q.ExecContext(ctx,
		`DELETE FROM signal_calibrations WHERE user_id = ? AND signal_key = ?`,
		userID, string(key))
	if err != nil {
		return fmt.Errorf("failed to delete calibration: %w", err)
	}
	return nil
}

func (p *prefs) GetSettings(ctx context.Context, userID string) (*presets.Settings, error) {
	row := p.q.QueryRowContext(ctx, `
		SELECT COALESCE(active_preset_id, ''), preset_applied_at, global_visibility, response_mode,
			session_cap_minutes, new_project_visibility, updated_at
		FROM user_settings
		WHERE user_id = ?`,
		userID)

	var (
		s          = presets.Settings{UserID: userID}
		appliedAt  sql.NullTime
		visibility string
		mode       string
		sessionCap sql.NullInt64
		projects   string
	)
	err := row.Scan(&s.ActivePresetID, &appliedAt, &visibility, &mode, &sessionCap, &projects, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	s.PresetAppliedAt = timePtr(appliedAt)
	s.GlobalVisibility = calibration.Visibility(visibility)
	s.ResponseMode = presets.ResponseMode(mode)
	if sessionCap.Valid {
		minutes := int(sessionCap.Int64)
		s.SessionCapMinutes = &minutes
	}
	s.NewProjectVisibility = presets.ProjectVisibility(projects)
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

func (p *prefs) SaveSettings(ctx context.Context, s presets.Settings) error {
	var sessionCap any
	if s.SessionCapMinutes != nil {
		sessionCap = int64(*s.SessionCapMinutes)
	}
	var activePreset any
	if s.ActivePresetID != "" {
		activePreset = s.ActivePresetID
	}

	res, err := p.q.ExecContext(ctx, `
		UPDATE user_settings
		SET active_preset_id = ?, preset_applied_at = ?, global_visibility = ?, response_mode = ?,
			session_cap_minutes = ?, new_project_visibility = ?, updated_at = ?
		WHERE user_id = ?`,
		activePreset, nullTime(s.PresetAppliedAt), string(s.GlobalVisibility), string(s.ResponseMode),
		sessionCap, string(s.NewProjectVisibility), s.UpdatedAt.UTC(), s.UserID)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count updated rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	_, err = p.q.ExecContext(ctx, `
		INSERT INTO user_settings (
			user_id, active_preset_id, preset_applied_at, global_visibility, response_mode,
			session_cap_minutes, new_project_visibility, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.UserID, activePreset, nullTime(s.PresetAppliedAt), string(s.GlobalVisibility), string(s.ResponseMode),
		sessionCap, string(s.NewProjectVisibility), s.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert settings: %w", err)
	}
	return nil
}

const applicationColumns = `
	id, user_id, preset_id, applied_at, changes_json, expires_at, reverted_at,
	edited_manually, COALESCE(notes, '')`

func (p *prefs) FindLatestOpen(ctx context.Context, userID, presetID string) (*presets.Application, error) {
	rows, err := p.q.QueryContext(ctx,
		`SELECT`+applicationColumns+`
		FROM preset_applications
		WHERE user_id = ? AND preset_id = ? AND reverted_at IS NULL
		ORDER BY applied_at DESC
		LIMIT 1`,
		userID, presetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	defer rows.Close()

	apps, err := scanApplications(rows)
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, nil
	}
	return &apps[0], nil
}

func (p *prefs) ListOpen(ctx context.Context, userID string) ([]presets.Application, error) {
	rows, err := p.q.QueryContext(ctx,
		`SELECT`+applicationColumns+`
		FROM preset_applications
		WHERE user_id = ? AND reverted_at IS NULL
		ORDER BY applied_at ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	defer rows.Close()

	return scanApplications(rows)
}

// ListApplications returns the full application history, newest first.
func (p *prefs) ListApplications(ctx context.Context, userID string) ([]presets.Application, error) {
	rows, err := p.q.QueryContext(ctx,
		`SELECT`+applicationColumns+`
		FROM preset_applications
		WHERE user_id = ?
		ORDER BY applied_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	defer rows.Close()

	return scanApplications(rows)
}

func (p *prefs) InsertApplication(ctx context.Context, app presets.Application) error {
	changes, err := json.Marshal(app.Changes)
	if err != nil {
		return fmt.Errorf("failed to encode application changes: %w", err)
	}

	_, err = p.q.ExecContext(ctx, `
		INSERT INTO preset_applications (
			id, user_id, preset_id, applied_at, changes_json, expires_at, reverted_at, edited_manually, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		app.ID, app.UserID, app.PresetID, app.AppliedAt.UTC(), string(changes),
		nullTime(app.ExpiresAt), nullTime(app.RevertedAt), app.EditedManually, app.Notes)
	if err != nil {
		return fmt.Errorf("failed to insert application: %w", err)
	}
	return nil
}

func (p *prefs) MarkReverted(ctx context.Context, id string, at time.Time) error {
	_, err := p.q.ExecContext(ctx,
		`UPDATE preset_applications SET reverted_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark application reverted: %w", err)
	}
	return nil
}

func (p *prefs) MarkEdited(ctx context.Context, id string) error {
	_, err := p.q.ExecContext(ctx,
		`UPDATE preset_applications SET edited_manually = true WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark application edited: %w", err)
	}
	return nil
}

func scanApplications(rows *sql.Rows) ([]presets.Application, error) {
	var out []presets.Application
	for rows.Next() {
		var (
			app      presets.Application
			changes  string
			expires  sql.NullTime
			reverted sql.NullTime
		)
		if err := rows.Scan(
			&app.ID, &app.UserID, &app.PresetID, &app.AppliedAt, &changes,
			&expires, &reverted, &app.EditedManually, &app.Notes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		if err := json.Unmarshal([]byte(changes), &app.Changes); err != nil {
			return nil, fmt.Errorf("failed to decode application changes: %w", err)
		}
		app.AppliedAt = app.AppliedAt.UTC()
		app.ExpiresAt = timePtr(expires)
		app.RevertedAt = timePtr(reverted)
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}
