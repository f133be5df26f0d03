package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// summaryBudget caps the auto-derived session summary length.
const summaryBudget = 100

// SyncResult reports what a transcript reconciliation did. Inserted == 0
// with Deleted == false means an idempotent replay found nothing new.
type SyncResult struct {
	Deleted           bool `json:"deleted"`
	Inserted          int  `json:"inserted_messages"`
	Total             int  `json:"total_messages"`
	TotalUserMessages int  `json:"total_user_messages"`
}

// ReconcileTranscript folds a parsed transcript into the message table
// exactly once per message. A transcript with zero user-typed records
// marks the session as noise: it is deleted and its date's session_count
// decremented. Otherwise messages are bulk-upserted by uuid (replays are
// no-ops), a summary is derived from the first user message when the
// session has none, and the session is marked ended. Records with no text
// left after trimming (tool-only turns) are dropped, though they still
// count toward Total.
func (s *Store) ReconcileTranscript(sessionID string, msgs []MessageCreate, userCount int, firstUserText string) (SyncResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return SyncResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var startedAt string
	err = tx.QueryRow(`SELECT started_at FROM sessions WHERE id = ?`, sessionID).Scan(&startedAt)
	if err == sql.ErrNoRows {
		return SyncResult{}, ErrNotFound
	}
	if err != nil {
		return SyncResult{}, err
	}

	if userCount == 0 {
		// Sessions without any user input are aborted starts, not usage.
		if err := deleteSessionTx(tx, sessionID); err != nil {
			return SyncResult{}, err
		}
		if err := bumpSessionCount(tx, startedAt[:len(dateFormat)], -1); err != nil {
			return SyncResult{}, err
		}
		return SyncResult{Deleted: true, TotalUserMessages: 0}, tx.Commit()
	}

	inserted := 0
	for _, m := range msgs {
		if m.Content == nil || strings.TrimSpace(*m.Content) == "" {
			continue
		}
		m.SessionID = sessionID
		_, isNew, err := s.insertMessageTx(tx, m, conflictIgnore)
		if err != nil {
			return SyncResult{}, fmt.Errorf("reconciling message: %w", err)
		}
		if isNew {
			inserted++
		}
	}

	if firstUserText != "" {
		if _, err := tx.Exec(
			`UPDATE sessions SET summary = ? WHERE id = ? AND summary IS NULL`,
			truncateSummary(firstUserText), sessionID,
		); err != nil {
			return SyncResult{}, err
		}
	}
	if _, err := tx.Exec(
		`UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`,
		s.now().Format(timeFormat), sessionID,
	); err != nil {
		return SyncResult{}, err
	}

	result := SyncResult{
		Inserted:          inserted,
		Total:             len(msgs),
		TotalUserMessages: userCount,
	}
	return result, tx.Commit()
}

func truncateSummary(text string) string {
	runes := []rune(text)
	if len(runes) <= summaryBudget {
		return text
	}
	return string(runes[:summaryBudget]) + "..."
}
