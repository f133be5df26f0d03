package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"codetrail/internal/model"
)

// InsightUpsert carries a freshly generated session analysis. Unlike
// session summaries there is no first-write-wins rule: regeneration
// overwrites.
type InsightUpsert struct {
	SessionID      string
	Summary        string
	KeyLearnings   []string
	ProblemsSolved []string
	CodePatterns   []string
	Technologies   []string
	Difficulty     *model.Difficulty
}

// encodeList serializes an ordered string list for storage. The encoded
// form never leaves this package.
func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeList reverses encodeList. A malformed stored value is a store
// error, never silently decoded as empty.
func decodeList(raw string) ([]string, error) {
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decoding stored list: %w", err)
	}
	return items, nil
}

// UpsertInsight writes the session's insight, replacing any previous one.
// user_notes survive regeneration.
func (s *Store) UpsertInsight(data InsightUpsert) (model.SessionInsight, error) {
	learnings, err := encodeList(data.KeyLearnings)
	if err != nil {
		return model.SessionInsight{}, err
	}
	problems, err := encodeList(data.ProblemsSolved)
	if err != nil {
		return model.SessionInsight{}, err
	}
	patterns, err := encodeList(data.CodePatterns)
	if err != nil {
		return model.SessionInsight{}, err
	}
	techs, err := encodeList(data.Technologies)
	if err != nil {
		return model.SessionInsight{}, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return model.SessionInsight{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRow(`SELECT 1 FROM sessions WHERE id = ?`, data.SessionID).Scan(&exists)
	if err == sql.ErrNoRows {
		return model.SessionInsight{}, ErrNotFound
	}
	if err != nil {
		return model.SessionInsight{}, err
	}

	now := s.now().Format(timeFormat)
	var difficulty any
	if data.Difficulty != nil {
		difficulty = string(*data.Difficulty)
	}

	var have int
	err = tx.QueryRow(`SELECT 1 FROM session_insights WHERE session_id = ?`, data.SessionID).Scan(&have)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.Exec(
			`INSERT INTO session_insights
				(session_id, summary, key_learnings, problems_solved, code_patterns, technologies, difficulty, generated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			data.SessionID, data.Summary, learnings, problems, patterns, techs, difficulty, now,
		)
	case err != nil:
		return model.SessionInsight{}, err
	default:
		_, err = tx.Exec(
			`UPDATE session_insights SET summary = ?, key_learnings = ?, problems_solved = ?,
				code_patterns = ?, technologies = ?, difficulty = ?, generated_at = ?
			 WHERE session_id = ?`,
			data.Summary, learnings, problems, patterns, techs, difficulty, now, data.SessionID,
		)
	}
	if err != nil {
		return model.SessionInsight{}, fmt.Errorf("writing insight: %w", err)
	}

	insight, err := scanInsight(tx.QueryRow(insightSelect+` WHERE session_id = ?`, data.SessionID))
	if err != nil {
		return model.SessionInsight{}, err
	}
	return insight, tx.Commit()
}

const insightSelect = `SELECT session_id, summary, key_learnings, problems_solved,
	code_patterns, technologies, difficulty, generated_at, user_notes
	FROM session_insights`

func scanInsight(row interface{ Scan(...any) error }) (model.SessionInsight, error) {
	var (
		in          model.SessionInsight
		learnings   string
		problems    string
		patterns    string
		techs       string
		difficulty  sql.NullString
		generatedAt string
		notes       sql.NullString
	)
	err := row.Scan(&in.SessionID, &in.Summary, &learnings, &problems,
		&patterns, &techs, &difficulty, &generatedAt, &notes)
	if err != nil {
		return model.SessionInsight{}, err
	}

	if in.KeyLearnings, err = decodeList(learnings); err != nil {
		return model.SessionInsight{}, err
	}
	if in.ProblemsSolved, err = decodeList(problems); err != nil {
		return model.SessionInsight{}, err
	}
	if in.CodePatterns, err = decodeList(patterns); err != nil {
		return model.SessionInsight{}, err
	}
	if in.Technologies, err = decodeList(techs); err != nil {
		return model.SessionInsight{}, err
	}
	if difficulty.Valid {
		d := model.Difficulty(difficulty.String)
		in.Difficulty = &d
	}
	in.GeneratedAt = parseTime(generatedAt)
	in.UserNotes = strPtr(notes)
	return in, nil
}

// GetInsight returns a session's insight or ErrNotFound.
func (s *Store) GetInsight(sessionID string) (model.SessionInsight, error) {
	insight, err := scanInsight(s.db.QueryRow(insightSelect+` WHERE session_id = ?`, sessionID))
	if err == sql.ErrNoRows {
		return model.SessionInsight{}, ErrNotFound
	}
	if err != nil {
		return model.SessionInsight{}, err
	}
	return insight, nil
}

// UpdateInsightNotes patches user_notes without touching the generated
// fields.
func (s *Store) UpdateInsightNotes(sessionID string, notes string) (model.SessionInsight, error) {
	res, err := s.db.Exec(
		`UPDATE session_insights SET user_notes = ? WHERE session_id = ?`,
		notes, sessionID,
	)
	if err != nil {
		return model.SessionInsight{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.SessionInsight{}, err
	}
	if n == 0 {
		return model.SessionInsight{}, ErrNotFound
	}
	return s.GetInsight(sessionID)
}

// GetInsightsFor returns insights for the given session ids, keyed by
// session id.
func (s *Store) GetInsightsFor(sessionIDs []string) (map[string]model.SessionInsight, error) {
	insights := make(map[string]model.SessionInsight, len(sessionIDs))
	for _, id := range sessionIDs {
		insight, err := s.GetInsight(id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		insights[id] = insight
	}
	return insights, nil
}
