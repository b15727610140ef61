package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/strrl/focus-signals/internal/signals"
)

type Signals struct {
	db *sql.DB
}

const signalColumns = `
	id, user_id, signal_key, title, description, explanation,
	COALESCE(context_data, '') AS context_data, intensity,
	COALESCE(session_id, '') AS session_id,
	detected_at, expires_at, dismissed_at, snoozed_until`

const activeSignalFilter = `
	user_id = ?
	AND dismissed_at IS NULL
	AND expires_at > ?`

func (s *Signals) ListActive(ctx context.Context, userID string, now time.Time) ([]signals.ActiveSignal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT`+signalColumns+` FROM active_signals WHERE`+activeSignalFilter+` ORDER BY detected_at DESC`,
		userID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query active signals: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

func (s *Signals) FindActiveByKey(ctx context.Context, userID string, key signals.Key, now time.Time) (*signals.ActiveSignal, error) {
	return findActiveByKey(ctx, s.db, userID, key, now)
}

func findActiveByKey(ctx context.Context, q querier, userID string, key signals.Key, now time.Time) (*signals.ActiveSignal, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT`+signalColumns+` FROM active_signals WHERE`+activeSignalFilter+` AND signal_key = ? ORDER BY detected_at DESC LIMIT 1`,
		userID, now.UTC(), string(key))
	if err != nil {
		return nil, fmt.Errorf("failed to query signal %s: %w", key, err)
	}
	defer rows.Close()

	sigs, err := scanSignals(rows)
	if err != nil {
		return nil, err
	}
	if len(sigs) == 0 {
		return nil, nil
	}
	return &sigs[0], nil
}

// InsertIfAbsent runs the dedup check and the insert in one transaction.
func (s *Signals) InsertIfAbsent(ctx context.Context, sig signals.ActiveSignal, now time.Time) (bool, error) {
	payload, err := signals.EncodePayload(sig.Payload)
	if err != nil {
		return false, err
	}

	inserted := false
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		existing, err := findActiveByKey(ctx, tx, sig.UserID, sig.Key, now)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO active_signals (
				id, user_id, signal_key, title, description, explanation, context_data,
				intensity, session_id, detected_at, expires_at, dismissed_at, snoozed_until
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sig.ID, sig.UserID, string(sig.Key), sig.Title, sig.Description, sig.Explanation,
			string(payload), string(sig.Intensity), sig.SessionID,
			sig.DetectedAt.UTC(), sig.ExpiresAt.UTC(), nullTime(sig.DismissedAt), nullTime(sig.SnoozedUntil),
		)
		if err != nil {
			return fmt.Errorf("failed to insert signal: %w", err)
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (s *Signals) Get(ctx context.Context, userID, id string) (*signals.ActiveSignal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT`+signalColumns+` FROM active_signals WHERE user_id = ? AND id = ?`,
		userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query signal: %w", err)
	}
	defer rows.Close()

	sigs, err := scanSignals(rows)
	if err != nil {
		return nil, err
	}
	if len(sigs) == 0 {
		return nil, signals.ErrNotFound
	}
	return &sigs[0], nil
}

func (s *Signals) Update(ctx context.Context, userID, id string, u signals.Update) error {
	var res sql.Result
	var err error

	switch {
	case u.DismissedAt != nil:
		res, err = s.db.ExecContext(ctx,
			`UPDATE active_signals SET dismissed_at = ? WHERE user_id = ? AND id = ?`,
			u.DismissedAt.UTC(), userID, id)
	case u.SnoozedUntil != nil:
		res, err = s.db.ExecContext(ctx,
			`UPDATE active_signals SET snoozed_until = ? WHERE user_id = ? AND id = ?`,
			u.SnoozedUntil.UTC(), userID, id)
	case u.ClearSnooze:
		res, err = s.db.ExecContext(ctx,
			`UPDATE active_signals SET snoozed_until = NULL WHERE user_id = ? AND id = ?`,
			userID, id)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to update signal: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count updated rows: %w", err)
	}
	if n == 0 {
		return signals.ErrNotFound
	}
	return nil
}

func (s *Signals) ListOccurrences(ctx context.Context, userID string, since, until time.Time) ([]signals.Occurrence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT signal_key, detected_at
		FROM active_signals
		WHERE user_id = ?
		  AND detected_at >= ?
		  AND detected_at < ?
		ORDER BY detected_at ASC`,
		userID, since.UTC(), until.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query occurrences: %w", err)
	}
	defer rows.Close()

	var out []signals.Occurrence
	for rows.Next() {
		var (
			key string
			at  time.Time
		)
		if err := rows.Scan(&key, &at); err != nil {
			return nil, fmt.Errorf("failed to scan occurrence: %w", err)
		}
		out = append(out, signals.Occurrence{Key: signals.Key(key), DetectedAt: at.UTC()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

func scanSignals(rows *sql.Rows) ([]signals.ActiveSignal, error) {
	var out []signals.ActiveSignal
	for rows.Next() {
		var (
			sig       signals.ActiveSignal
			key       string
			payload   string
			intensity string
			dismissed sql.NullTime
			snoozed   sql.NullTime
		)
		if err := rows.Scan(
			&sig.ID, &sig.UserID, &key, &sig.Title, &sig.Description, &sig.Explanation,
			&payload, &intensity, &sig.SessionID,
			&sig.DetectedAt, &sig.ExpiresAt, &dismissed, &snoozed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}

		sig.Key = signals.Key(key)
		sig.Intensity = signals.Intensity(intensity)
		sig.DetectedAt = sig.DetectedAt.UTC()
		sig.ExpiresAt = sig.ExpiresAt.UTC()
		sig.DismissedAt = timePtr(dismissed)
		sig.SnoozedUntil = timePtr(snoozed)

		p, err := signals.DecodePayload(sig.Key, []byte(payload))
		if err != nil {
			return nil, err
		}
		sig.Payload = p

		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}
