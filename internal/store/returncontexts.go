package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/strrl/focus-signals/internal/returnctx"
)

type ReturnContexts struct {
	db *sql.DB
}

const returnContextColumns = `
	id, user_id, absence_detected_at, last_activity_before_absence, gap_duration_days,
	reason_category, user_note, behavior_preference, preference_expires_at,
	banner_shown, banner_dismissed, reorientation_shown, reorientation_dismissed,
	created_at, updated_at`

func (r *ReturnContexts) FindSince(ctx context.Context, userID string, since time.Time) (*returnctx.ReturnContext, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+returnContextColumns+`
		FROM return_contexts
		WHERE user_id = ? AND absence_detected_at >= ?
		ORDER BY absence_detected_at DESC
		LIMIT 1`,
		userID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query return contexts: %w", err)
	}
	defer rows.Close()

	out, err := scanReturnContexts(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (r *ReturnContexts) Get(ctx context.Context, userID, id string) (*returnctx.ReturnContext, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+returnContextColumns+` FROM return_contexts WHERE user_id = ? AND id = ?`,
		userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query return context: %w", err)
	}
	defer rows.Close()

	out, err := scanReturnContexts(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, returnctx.ErrNotFound
	}
	return &out[0], nil
}

func (r *ReturnContexts) ListByUser(ctx context.Context, userID string) ([]returnctx.ReturnContext, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+returnContextColumns+`
		FROM return_contexts
		WHERE user_id = ?
		ORDER BY updated_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query return contexts: %w", err)
	}
	defer rows.Close()

	return scanReturnContexts(rows)
}

func (r *ReturnContexts) Insert(ctx context.Context, rc returnctx.ReturnContext) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO return_contexts (`+returnContextColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rc.ID, rc.UserID, rc.AbsenceDetectedAt.UTC(), rc.LastActivityBeforeAbsence.UTC(), rc.GapDays,
		reasonArg(rc.Reason), nullString(rc.Note), string(rc.Preference), nullTime(rc.PreferenceExpiresAt),
		rc.BannerShown, rc.BannerDismissed, rc.ReorientationShown, rc.ReorientationDismissed,
		rc.CreatedAt.UTC(), rc.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert return context: %w", err)
	}
	return nil
}

func (r *ReturnContexts) Update(ctx context.Context, rc returnctx.ReturnContext) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE return_contexts
		SET reason_category = ?, user_note = ?, behavior_preference = ?, preference_expires_at = ?,
			banner_shown = ?, banner_dismissed = ?, reorientation_shown = ?, reorientation_dismissed = ?,
			updated_at = ?
		WHERE user_id = ? AND id = ?`,
		reasonArg(rc.Reason), nullString(rc.Note), string(rc.Preference), nullTime(rc.PreferenceExpiresAt),
		rc.BannerShown, rc.BannerDismissed, rc.ReorientationShown, rc.ReorientationDismissed,
		rc.UpdatedAt.UTC(), rc.UserID, rc.ID)
	if err != nil {
		return fmt.Errorf("failed to update return context: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count updated rows: %w", err)
	}
	if n == 0 {
		return returnctx.ErrNotFound
	}
	return nil
}

func reasonArg(r *returnctx.Reason) any {
	if r == nil {
		return nil
	}
	return string(*r)
}

func scanReturnContexts(rows *sql.Rows) ([]returnctx.ReturnContext, error) {
	var out []returnctx.ReturnContext
	for rows.Next() {
		var (
			rc         returnctx.ReturnContext
			reason     sql.NullString
			note       sql.NullString
			preference string
			expires    sql.NullTime
		)
		if err := rows.Scan(
			&rc.ID, &rc.UserID, &rc.AbsenceDetectedAt, &rc.LastActivityBeforeAbsence, &rc.GapDays,
			&reason, &note, &preference, &expires,
			&rc.BannerShown, &rc.BannerDismissed, &rc.ReorientationShown, &rc.ReorientationDismissed,
			&rc.CreatedAt, &rc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan return context: %w", err)
		}

		if reason.Valid {
			r := returnctx.Reason(reason.String)
			rc.Reason = &r
		}
		rc.Note = stringPtr(note)
		rc.Preference = returnctx.BehaviorPreference(preference)
		rc.PreferenceExpiresAt = timePtr(expires)
		rc.AbsenceDetectedAt = rc.AbsenceDetectedAt.UTC()
		rc.LastActivityBeforeAbsence = rc.LastActivityBeforeAbsence.UTC()
		rc.CreatedAt = rc.CreatedAt.UTC()
		rc.UpdatedAt = rc.UpdatedAt.UTC()
		out = append(out, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}
