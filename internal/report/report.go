// Package report composes read-only daily summary views over the store.
package report

import (
	"time"

	"codetrail/internal/model"
)

// Store is the read surface the assembler needs.
type Store interface {
	GetDailyStatsFor(date string) (model.DailyStats, error)
	GetSessions(f model.SessionFilter) ([]model.Session, error)
	GetInsightsFor(sessionIDs []string) (map[string]model.SessionInsight, error)
	GetStreak() (model.Streak, error)
}

// Daily assembles the report for one local date (YYYY-MM-DD). An empty
// date means today.
func Daily(s Store, date string) (model.DailyReport, error) {
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	stats, err := s.GetDailyStatsFor(date)
	if err != nil {
		return model.DailyReport{}, err
	}

	sessions, err := s.GetSessions(model.SessionFilter{Date: date})
	if err != nil {
		return model.DailyReport{}, err
	}

	ids := make([]string, len(sessions))
	for i, sess := range sessions {
		ids[i] = sess.ID
	}
	insights, err := s.GetInsightsFor(ids)
	if err != nil {
		return model.DailyReport{}, err
	}

	streak, err := s.GetStreak()
	if err != nil {
		return model.DailyReport{}, err
	}

	rep := model.DailyReport{
		Date:     date,
		Stats:    stats,
		Streak:   streak,
		Sessions: make([]model.SessionWithInsight, 0, len(sessions)),
	}

	// Average duration counts ended sessions only; an open session has
	// no meaningful length yet.
	var totalDuration time.Duration
	for _, sess := range sessions {
		entry := model.SessionWithInsight{Session: sess}
		if insight, ok := insights[sess.ID]; ok {
			in := insight
			entry.Insight = &in
		}
		rep.Sessions = append(rep.Sessions, entry)

		if sess.EndedAt != nil {
			rep.EndedSessions++
			totalDuration += sess.Duration()
		}
	}
	if rep.EndedSessions > 0 {
		rep.AvgDurationSecs = totalDuration.Seconds() / float64(rep.EndedSessions)
	}

	return rep, nil
}
