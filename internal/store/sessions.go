package store

import (
	"database/sql"
	"fmt"

	"codetrail/internal/model"
)

// SessionCreate carries the fields a platform adapter supplies when a
// session starts.
type SessionCreate struct {
	ID             string
	TranscriptPath string
	Cwd            string
	ProjectName    *string
	GitBranch      *string
	Source         model.Source
}

const sessionColumns = `id, transcript_path, cwd, project_name, git_branch, source,
	started_at, ended_at, is_bookmarked, bookmark_note, summary`

func scanSession(row interface{ Scan(...any) error }) (model.Session, error) {
	var (
		s            model.Session
		project      sql.NullString
		branch       sql.NullString
		startedAt    string
		endedAt      sql.NullString
		isBookmarked int
		note         sql.NullString
		summary      sql.NullString
		source       string
	)
	err := row.Scan(&s.ID, &s.TranscriptPath, &s.Cwd, &project, &branch, &source,
		&startedAt, &endedAt, &isBookmarked, &note, &summary)
	if err != nil {
		return model.Session{}, err
	}
	s.ProjectName = strPtr(project)
	s.GitBranch = strPtr(branch)
	s.Source = model.Source(source)
	s.StartedAt = parseTime(startedAt)
	s.EndedAt = timePtr(endedAt)
	s.IsBookmarked = isBookmarked != 0
	s.BookmarkNote = strPtr(note)
	s.Summary = strPtr(summary)
	return s, nil
}

// CreateOrUpdateSession upserts a session by id. An existing session keeps
// its started_at, ended_at, summary, and bookmark state; only the
// descriptive fields are refreshed. A true creation increments today's
// session_count. An unrecognized source is rejected here as well as at
// the API boundary so no other write path can slip one in.
func (s *Store) CreateOrUpdateSession(data SessionCreate) (model.Session, error) {
	if !model.ValidSource(string(data.Source)) {
		return model.Session{}, fmt.Errorf("unknown source %q", data.Source)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return model.Session{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRow(`SELECT 1 FROM sessions WHERE id = ?`, data.ID).Scan(&exists)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.Exec(
			`INSERT INTO sessions (id, transcript_path, cwd, project_name, git_branch, source, started_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			data.ID, data.TranscriptPath, data.Cwd,
			nullString(data.ProjectName), nullString(data.GitBranch),
			string(data.Source), s.now().Format(timeFormat),
		)
		if err != nil {
			return model.Session{}, fmt.Errorf("inserting session: %w", err)
		}
		if err := bumpSessionCount(tx, s.today(), 1); err != nil {
			return model.Session{}, err
		}
	case err != nil:
		return model.Session{}, err
	default:
		_, err = tx.Exec(
			`UPDATE sessions SET transcript_path = ?, cwd = ?, project_name = ?, git_branch = ?, source = ?
			 WHERE id = ?`,
			data.TranscriptPath, data.Cwd,
			nullString(data.ProjectName), nullString(data.GitBranch),
			string(data.Source), data.ID,
		)
		if err != nil {
			return model.Session{}, fmt.Errorf("updating session: %w", err)
		}
	}

	sess, err := scanSession(tx.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, data.ID))
	if err != nil {
		return model.Session{}, err
	}
	return sess, tx.Commit()
}

// GetSession returns one session or ErrNotFound.
func (s *Store) GetSession(id string) (model.Session, error) {
	sess, err := scanSession(s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return model.Session{}, ErrNotFound
	}
	if err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

// EndSession sets ended_at once; ending an ended session is a no-op.
// Returns the session or ErrNotFound.
func (s *Store) EndSession(id string) (model.Session, error) {
	_, err := s.db.Exec(
		`UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`,
		s.now().Format(timeFormat), id,
	)
	if err != nil {
		return model.Session{}, err
	}
	return s.GetSession(id)
}

// ToggleBookmark flips the bookmark flag. A non-empty note replaces the
// stored note; an empty note leaves the existing note in place, so the
// last note is sticky across toggles.
func (s *Store) ToggleBookmark(id string, note string) (model.Session, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return model.Session{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var bookmarked int
	err = tx.QueryRow(`SELECT is_bookmarked FROM sessions WHERE id = ?`, id).Scan(&bookmarked)
	if err == sql.ErrNoRows {
		return model.Session{}, ErrNotFound
	}
	if err != nil {
		return model.Session{}, err
	}

	flipped := 1 - bookmarked
	if note != "" {
		_, err = tx.Exec(`UPDATE sessions SET is_bookmarked = ?, bookmark_note = ? WHERE id = ?`, flipped, note, id)
	} else {
		_, err = tx.Exec(`UPDATE sessions SET is_bookmarked = ? WHERE id = ?`, flipped, id)
	}
	if err != nil {
		return model.Session{}, err
	}

	sess, err := scanSession(tx.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err != nil {
		return model.Session{}, err
	}
	return sess, tx.Commit()
}

// UpdateSessionSummary sets the summary only if none exists yet: first
// summary wins. The current row is returned either way.
func (s *Store) UpdateSessionSummary(id string, summary string) (model.Session, error) {
	_, err := s.db.Exec(
		`UPDATE sessions SET summary = ? WHERE id = ? AND summary IS NULL`,
		summary, id,
	)
	if err != nil {
		return model.Session{}, err
	}
	return s.GetSession(id)
}

// DeleteSession removes a session, its messages, and its insight.
// Messages are deleted explicitly before the session row so the behavior
// doesn't depend on cascade support.
func (s *Store) DeleteSession(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteSessionTx(tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteSessionTx(tx *sql.Tx, id string) error {
	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM session_insights WHERE session_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSessions returns sessions matching the filter. Default order is
// bookmarked first, then recency; RecencyOnly drops the bookmark bias.
func (s *Store) GetSessions(f model.SessionFilter) ([]model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE 1=1`
	var args []any

	if f.Date != "" {
		query += ` AND substr(started_at, 1, 10) = ?`
		args = append(args, f.Date)
	} else {
		if f.From != "" {
			query += ` AND substr(started_at, 1, 10) >= ?`
			args = append(args, f.From)
		}
		if f.To != "" {
			query += ` AND substr(started_at, 1, 10) <= ?`
			args = append(args, f.To)
		}
	}
	if f.Project != "" {
		query += ` AND project_name = ?`
		args = append(args, f.Project)
	}
	if f.BookmarkedOnly {
		query += ` AND is_bookmarked = 1`
	}

	if f.RecencyOnly {
		query += ` ORDER BY started_at DESC`
	} else {
		query += ` ORDER BY is_bookmarked DESC, started_at DESC`
	}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sessions []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// CleanEmptySessions deletes every session with zero messages and
// decrements each affected date's session_count, floored at zero.
// O(sessions) scan; callers throttle it.
func (s *Store) CleanEmptySessions() (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.Query(`
		SELECT id, substr(started_at, 1, 10) FROM sessions s
		WHERE NOT EXISTS (SELECT 1 FROM messages m WHERE m.session_id = s.id)
	`)
	if err != nil {
		return 0, err
	}

	type empty struct{ id, date string }
	var victims []empty
	for rows.Next() {
		var v empty
		if err := rows.Scan(&v.id, &v.date); err != nil {
			_ = rows.Close()
			return 0, err
		}
		victims = append(victims, v)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	_ = rows.Close()

	for _, v := range victims {
		if err := deleteSessionTx(tx, v.id); err != nil {
			return 0, err
		}
		if err := bumpSessionCount(tx, v.date, -1); err != nil {
			return 0, err
		}
	}

	return len(victims), tx.Commit()
}
