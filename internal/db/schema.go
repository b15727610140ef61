package db

// signal_calibrations and user_settings carry no key constraint: rows may be
// deleted and re-inserted inside one transaction, which DuckDB's eager
// constraint checking rejects. Writers keep them unique with update-or-insert.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS activity_events (
		id VARCHAR PRIMARY KEY,
		user_id VARCHAR NOT NULL,
		type VARCHAR NOT NULL,
		entity_id VARCHAR,
		session_id VARCHAR,
		duration_seconds BIGINT,
		occurred_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_user_time ON activity_events(user_id, occurred_at)`,

	`CREATE TABLE IF NOT EXISTS active_signals (
		id VARCHAR PRIMARY KEY,
		user_id VARCHAR NOT NULL,
		signal_key VARCHAR NOT NULL,
		title VARCHAR NOT NULL,
		description VARCHAR NOT NULL,
		explanation VARCHAR NOT NULL,
		context_data VARCHAR,
		intensity VARCHAR NOT NULL,
		session_id VARCHAR,
		detected_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		dismissed_at TIMESTAMP,
		snoozed_until TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_user_key ON active_signals(user_id, signal_key)`,

	`CREATE TABLE IF NOT EXISTS signal_calibrations (
		user_id VARCHAR NOT NULL,
		signal_key VARCHAR NOT NULL,
		sensitivity VARCHAR NOT NULL,
		relevance VARCHAR NOT NULL,
		visibility VARCHAR NOT NULL,
		notes VARCHAR,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_calibrations_user_key ON signal_calibrations(user_id, signal_key)`,

	`CREATE TABLE IF NOT EXISTS user_settings (
		user_id VARCHAR NOT NULL,
		active_preset_id VARCHAR,
		preset_applied_at TIMESTAMP,
		global_visibility VARCHAR NOT NULL,
		response_mode VARCHAR NOT NULL,
		session_cap_minutes INTEGER,
		new_project_visibility VARCHAR NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS preset_applications (
		id VARCHAR PRIMARY KEY,
		user_id VARCHAR NOT NULL,
		preset_id VARCHAR NOT NULL,
		applied_at TIMESTAMP NOT NULL,
		changes_json VARCHAR NOT NULL,
		expires_at TIMESTAMP,
		reverted_at TIMESTAMP,
		edited_manually BOOLEAN NOT NULL DEFAULT false,
		notes VARCHAR
	)`,
	`CREATE INDEX IF NOT EXISTS idx_applications_user_preset ON preset_applications(user_id, preset_id)`,

	`CREATE TABLE IF NOT EXISTS return_contexts (
		id VARCHAR PRIMARY KEY,
		user_id VARCHAR NOT NULL,
		absence_detected_at TIMESTAMP NOT NULL,
		last_activity_before_absence TIMESTAMP NOT NULL,
		gap_duration_days INTEGER NOT NULL,
		reason_category VARCHAR,
		user_note VARCHAR,
		behavior_preference VARCHAR NOT NULL,
		preference_expires_at TIMESTAMP,
		banner_shown BOOLEAN NOT NULL DEFAULT false,
		banner_dismissed BOOLEAN NOT NULL DEFAULT false,
		reorientation_shown BOOLEAN NOT NULL DEFAULT false,
		reorientation_dismissed BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_return_user ON return_contexts(user_id, absence_detected_at)`,
}
