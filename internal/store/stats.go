package store

import (
	"database/sql"
	"time"

	"codetrail/internal/model"
	"codetrail/internal/pricing"
)

// bumpSessionCount adds delta to a date's session_count. Decrements floor
// at zero so cleanup can never drive the aggregate negative.
func bumpSessionCount(tx *sql.Tx, date string, delta int64) error {
	_, err := tx.Exec(`
		INSERT INTO daily_stats (date, session_count) VALUES (?, MAX(0, ?))
		ON CONFLICT(date) DO UPDATE SET session_count = MAX(0, session_count + ?)
	`, date, delta, delta)
	return err
}

// bumpMessageStats folds one recorded message into a date's aggregate.
// The date is when the message was recorded, not the message's own
// timestamp.
func bumpMessageStats(tx *sql.Tx, date string, inputTokens, outputTokens int64, inputCost, outputCost float64) error {
	_, err := tx.Exec(`
		INSERT INTO daily_stats
			(date, message_count, total_input_tokens, total_output_tokens, total_input_cost, total_output_cost)
		VALUES (?, 1, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			message_count       = message_count + 1,
			total_input_tokens  = total_input_tokens + ?,
			total_output_tokens = total_output_tokens + ?,
			total_input_cost    = ROUND(total_input_cost + ?, 5),
			total_output_cost   = ROUND(total_output_cost + ?, 5)
	`, date, inputTokens, outputTokens, inputCost, outputCost,
		inputTokens, outputTokens, inputCost, outputCost)
	return err
}

// GetDailyStats returns aggregates matching the filter, oldest first.
func (s *Store) GetDailyStats(f model.StatsFilter) ([]model.DailyStats, error) {
	query := `SELECT date, session_count, message_count, total_input_tokens,
		total_output_tokens, total_input_cost, total_output_cost
		FROM daily_stats WHERE 1=1`
	var args []any

	if f.Date != "" {
		query += ` AND date = ?`
		args = append(args, f.Date)
	} else {
		if f.From != "" {
			query += ` AND date >= ?`
			args = append(args, f.From)
		}
		if f.To != "" {
			query += ` AND date <= ?`
			args = append(args, f.To)
		}
	}
	query += ` ORDER BY date`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var stats []model.DailyStats
	for rows.Next() {
		var d model.DailyStats
		if err := rows.Scan(&d.Date, &d.SessionCount, &d.MessageCount,
			&d.TotalInputTokens, &d.TotalOutputTokens,
			&d.TotalInputCost, &d.TotalOutputCost); err != nil {
			return nil, err
		}
		d.TotalInputCost = pricing.Round5(d.TotalInputCost)
		d.TotalOutputCost = pricing.Round5(d.TotalOutputCost)
		stats = append(stats, d)
	}
	return stats, rows.Err()
}

// GetDailyStatsFor returns one date's aggregate, zero-valued if missing.
func (s *Store) GetDailyStatsFor(date string) (model.DailyStats, error) {
	stats, err := s.GetDailyStats(model.StatsFilter{Date: date})
	if err != nil {
		return model.DailyStats{}, err
	}
	if len(stats) == 0 {
		return model.DailyStats{Date: date}, nil
	}
	return stats[0], nil
}

// GetStreak computes activity streaks from the distinct set of active
// dates. The current streak is anchored at today, or at yesterday when
// today has no activity yet, so it doesn't falsely reset mid-day.
func (s *Store) GetStreak() (model.Streak, error) {
	rows, err := s.db.Query(`
		SELECT date FROM daily_stats
		WHERE session_count > 0 OR message_count > 0
		ORDER BY date
	`)
	if err != nil {
		return model.Streak{}, err
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return model.Streak{}, err
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return model.Streak{}, err
	}

	return computeStreak(dates, s.now()), nil
}

func computeStreak(dates []string, now time.Time) model.Streak {
	streak := model.Streak{TotalActiveDays: len(dates)}
	if len(dates) == 0 {
		return streak
	}

	active := make(map[string]bool, len(dates))
	for _, d := range dates {
		active[d] = true
	}

	// Longest: walk runs of consecutive calendar days. Dates are parsed
	// in UTC so the day arithmetic never crosses a DST boundary.
	run := 1
	longest := 1
	for i := 1; i < len(dates); i++ {
		prev, err := time.Parse(dateFormat, dates[i-1])
		if err != nil {
			continue
		}
		if prev.AddDate(0, 0, 1).Format(dateFormat) == dates[i] {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	streak.LongestStreak = longest

	// Current: count back from today, or from yesterday when today is
	// still inactive.
	anchor := now
	today := now.Format(dateFormat)
	if !active[today] {
		anchor = now.AddDate(0, 0, -1)
	}

	current := 0
	for d := anchor; active[d.Format(dateFormat)]; d = d.AddDate(0, 0, -1) {
		current++
	}
	streak.CurrentStreak = current

	return streak
}
