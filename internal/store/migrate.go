package store

import (
	"database/sql"
	"fmt"

	"codetrail/internal/pricing"
)

// A migration advances the schema forward exactly once. Up scripts must be
// re-run-safe: a migration can be re-attempted after a partial external
// failure, so backfills are guarded (INSERT OR IGNORE, conditional UPDATE).
// Down is optional and only used by rollback tooling, never automatically.
type migration struct {
	name string
	up   func(tx *sql.Tx) error
	down string
}

// migrations is the totally ordered list of schema changes. Order here is
// declaration order, which is the apply order — names are not sortable.
var migrations = []migration{
	{name: "initial-schema", up: upInitialSchema, down: `
		DROP TABLE IF EXISTS daily_stats;
		DROP TABLE IF EXISTS messages;
		DROP TABLE IF EXISTS sessions;
	`},
	{name: "message-fts", up: upMessageFTS, down: `
		DROP TRIGGER IF EXISTS messages_fts_update;
		DROP TRIGGER IF EXISTS messages_fts_delete;
		DROP TRIGGER IF EXISTS messages_fts_insert;
		DROP TABLE IF EXISTS messages_fts;
	`},
	{name: "insights-and-session-fts", up: upInsightsAndSessionFTS, down: `
		DROP TRIGGER IF EXISTS sessions_fts_update;
		DROP TRIGGER IF EXISTS sessions_fts_delete;
		DROP TRIGGER IF EXISTS sessions_fts_insert;
		DROP TABLE IF EXISTS sessions_fts;
		DROP TABLE IF EXISTS session_insights;
	`},
	{name: "model-pricing", up: upModelPricing, down: `
		DROP TABLE IF EXISTS model_pricing;
	`},
}

// migrate applies every not-yet-applied migration in declaration order,
// each in its own transaction, recording its name atomically with its
// effects. A missing tracking table means zero applied.
func (s *Store) migrate() error {
	applied, err := s.appliedMigrations()
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		name       TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("creating migration table: %w", err)
	}

	for _, m := range migrations {
		if applied[m.name] {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return err
		}

		if err := m.up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %q: %w", m.name, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`,
			m.name, s.now().UTC().Format(timeFormat),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %q: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %q: %w", m.name, err)
		}
	}

	return nil
}

// appliedMigrations reads the set of applied migration names. A missing
// tracking table is "zero applied", not an error.
func (s *Store) appliedMigrations() (map[string]bool, error) {
	var tableName string
	err := s.db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'`,
	).Scan(&tableName)
	if err == sql.ErrNoRows {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// AppliedMigrations returns applied migration names in apply order,
// for the migrate status command. Timestamps are too coarse to sort by
// (a fresh database applies everything within one second), so order
// comes from the declaration list.
func (s *Store) AppliedMigrations() ([]string, error) {
	applied, err := s.appliedMigrations()
	if err != nil {
		return nil, err
	}

	var names []string
	for _, m := range migrations {
		if applied[m.name] {
			names = append(names, m.name)
		}
	}
	return names, nil
}

// RollbackLast reverses the most recently applied migration that has a
// down script. Rollback tooling only; the runner never calls this.
func (s *Store) RollbackLast() (string, error) {
	applied, err := s.appliedMigrations()
	if err != nil {
		return "", err
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		m := migrations[i]
		if !applied[m.name] {
			continue
		}
		if m.down == "" {
			return "", fmt.Errorf("migration %q has no down script", m.name)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return "", err
		}
		if _, err := tx.Exec(m.down); err != nil {
			_ = tx.Rollback()
			return "", fmt.Errorf("rolling back %q: %w", m.name, err)
		}
		if _, err := tx.Exec(`DELETE FROM schema_migrations WHERE name = ?`, m.name); err != nil {
			_ = tx.Rollback()
			return "", fmt.Errorf("unrecording %q: %w", m.name, err)
		}
		return m.name, tx.Commit()
	}

	return "", ErrNotFound
}

func upInitialSchema(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id              TEXT PRIMARY KEY,
			transcript_path TEXT NOT NULL,
			cwd             TEXT NOT NULL,
			project_name    TEXT,
			git_branch      TEXT,
			source          TEXT NOT NULL DEFAULT 'claude',
			started_at      TEXT NOT NULL,
			ended_at        TEXT,
			is_bookmarked   INTEGER NOT NULL DEFAULT 0,
			bookmark_note   TEXT,
			summary         TEXT
		);

		CREATE TABLE IF NOT EXISTS messages (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id    TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			uuid          TEXT UNIQUE,
			type          TEXT NOT NULL,
			content       TEXT,
			model         TEXT,
			input_tokens  INTEGER,
			output_tokens INTEGER,
			input_cost    REAL,
			output_cost   REAL,
			timestamp     TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS daily_stats (
			date                TEXT PRIMARY KEY,
			session_count       INTEGER NOT NULL DEFAULT 0,
			message_count       INTEGER NOT NULL DEFAULT 0,
			total_input_tokens  INTEGER NOT NULL DEFAULT 0,
			total_output_tokens INTEGER NOT NULL DEFAULT 0,
			total_input_cost    REAL NOT NULL DEFAULT 0,
			total_output_cost   REAL NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
		CREATE INDEX IF NOT EXISTS idx_messages_uuid ON messages(uuid);
		CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
		CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_name);
	`)
	return err
}

func upMessageFTS(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
			content,
			content='messages',
			content_rowid='id'
		);

		CREATE TRIGGER IF NOT EXISTS messages_fts_insert AFTER INSERT ON messages BEGIN
			INSERT INTO messages_fts(rowid, content) VALUES (new.id, new.content);
		END;

		CREATE TRIGGER IF NOT EXISTS messages_fts_delete AFTER DELETE ON messages BEGIN
			INSERT INTO messages_fts(messages_fts, rowid, content)
			VALUES ('delete', old.id, old.content);
		END;

		CREATE TRIGGER IF NOT EXISTS messages_fts_update AFTER UPDATE ON messages BEGIN
			INSERT INTO messages_fts(messages_fts, rowid, content)
			VALUES ('delete', old.id, old.content);
			INSERT INTO messages_fts(rowid, content) VALUES (new.id, new.content);
		END;
	`); err != nil {
		return err
	}

	// Backfill pre-existing rows not yet indexed.
	_, err := tx.Exec(`
		INSERT INTO messages_fts(rowid, content)
		SELECT m.id, m.content FROM messages m
		WHERE NOT EXISTS (SELECT 1 FROM messages_fts f WHERE f.rowid = m.id)
	`)
	return err
}

func upInsightsAndSessionFTS(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS session_insights (
			session_id      TEXT PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
			summary         TEXT NOT NULL,
			key_learnings   TEXT NOT NULL DEFAULT '[]',
			problems_solved TEXT NOT NULL DEFAULT '[]',
			code_patterns   TEXT NOT NULL DEFAULT '[]',
			technologies    TEXT NOT NULL DEFAULT '[]',
			difficulty      TEXT,
			generated_at    TEXT NOT NULL,
			user_notes      TEXT
		);

		CREATE VIRTUAL TABLE IF NOT EXISTS sessions_fts USING fts5(
			summary,
			bookmark_note,
			content='sessions',
			content_rowid='rowid'
		);

		CREATE TRIGGER IF NOT EXISTS sessions_fts_insert AFTER INSERT ON sessions BEGIN
			INSERT INTO sessions_fts(rowid, summary, bookmark_note)
			VALUES (new.rowid, new.summary, new.bookmark_note);
		END;

		CREATE TRIGGER IF NOT EXISTS sessions_fts_delete AFTER DELETE ON sessions BEGIN
			INSERT INTO sessions_fts(sessions_fts, rowid, summary, bookmark_note)
			VALUES ('delete', old.rowid, old.summary, old.bookmark_note);
		END;

		CREATE TRIGGER IF NOT EXISTS sessions_fts_update AFTER UPDATE ON sessions BEGIN
			INSERT INTO sessions_fts(sessions_fts, rowid, summary, bookmark_note)
			VALUES ('delete', old.rowid, old.summary, old.bookmark_note);
			INSERT INTO sessions_fts(rowid, summary, bookmark_note)
			VALUES (new.rowid, new.summary, new.bookmark_note);
		END;
	`); err != nil {
		return err
	}

	_, err := tx.Exec(`
		INSERT INTO sessions_fts(rowid, summary, bookmark_note)
		SELECT s.rowid, s.summary, s.bookmark_note FROM sessions s
		WHERE NOT EXISTS (SELECT 1 FROM sessions_fts f WHERE f.rowid = s.rowid)
	`)
	return err
}

func upModelPricing(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS model_pricing (
			id                    INTEGER PRIMARY KEY AUTOINCREMENT,
			model_family          TEXT NOT NULL,
			input_cost_per_mtok   REAL NOT NULL,
			output_cost_per_mtok  REAL NOT NULL,
			effective_date        TEXT NOT NULL,
			UNIQUE (model_family, effective_date)
		);
	`); err != nil {
		return err
	}

	for _, r := range pricing.SeedRates {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO model_pricing
				(model_family, input_cost_per_mtok, output_cost_per_mtok, effective_date)
			 VALUES (?, ?, ?, ?)`,
			r.Family, r.InputPerMTok, r.OutputPerMTok, r.EffectiveDate.Format(dateFormat),
		); err != nil {
			return err
		}
	}

	// Backfill costs for messages recorded before pricing landed.
	return backfillMessageCosts(tx)
}

// backfillMessageCosts prices messages with token counts but no cost yet.
// Guarded by the NULL checks so re-running is a no-op.
func backfillMessageCosts(tx *sql.Tx) error {
	rows, err := tx.Query(`
		SELECT id, model, input_tokens, output_tokens FROM messages
		WHERE model IS NOT NULL
		  AND (input_tokens IS NOT NULL OR output_tokens IS NOT NULL)
		  AND input_cost IS NULL AND output_cost IS NULL
	`)
	if err != nil {
		return err
	}

	type pending struct {
		id     int64
		model  string
		inTok  int64
		outTok int64
	}
	var work []pending
	for rows.Next() {
		var p pending
		var inTok, outTok sql.NullInt64
		if err := rows.Scan(&p.id, &p.model, &inTok, &outTok); err != nil {
			_ = rows.Close()
			return err
		}
		p.inTok = inTok.Int64
		p.outTok = outTok.Int64
		work = append(work, p)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, p := range work {
		rate, ok, err := lookupRateTx(tx, p.model)
		if err != nil {
			return err
		}
		cost := pricing.Unknown()
		if ok {
			cost = pricing.Compute(p.inTok, p.outTok, rate)
		}
		if _, err := tx.Exec(
			`UPDATE messages SET input_cost = ?, output_cost = ? WHERE id = ?`,
			cost.Input, cost.Output, p.id,
		); err != nil {
			return err
		}
	}
	return nil
}
