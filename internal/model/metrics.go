package model

import "time"

// DailyStats holds the materialized per-date aggregate. It is maintained
// incrementally on every write, never recomputed on the read path.
type DailyStats struct {
	Date              string  `json:"date"` // local calendar date, YYYY-MM-DD
	SessionCount      int64   `json:"session_count"`
	MessageCount      int64   `json:"message_count"`
	TotalInputTokens  int64   `json:"total_input_tokens"`
	TotalOutputTokens int64   `json:"total_output_tokens"`
	TotalInputCost    float64 `json:"total_input_cost"`
	TotalOutputCost   float64 `json:"total_output_cost"`
}

// StatsFilter narrows daily-stats reads. Date and From/To are mutually
// exclusive.
type StatsFilter struct {
	Date string
	From string
	To   string
}

// Streak describes consecutive-day activity runs.
type Streak struct {
	CurrentStreak   int `json:"current_streak"`
	LongestStreak   int `json:"longest_streak"`
	TotalActiveDays int `json:"total_active_days"`
}

// Difficulty grades a session insight.
type Difficulty string

// Recognized difficulty grades.
const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ValidDifficulty reports whether d is a recognized grade.
func ValidDifficulty(d string) bool {
	return d == string(DifficultyEasy) || d == string(DifficultyMedium) || d == string(DifficultyHard)
}

// SessionInsight is the AI-derived analysis of one session. At most one
// exists per session; regeneration overwrites it.
type SessionInsight struct {
	SessionID      string      `json:"session_id"`
	Summary        string      `json:"summary"`
	KeyLearnings   []string    `json:"key_learnings"`
	ProblemsSolved []string    `json:"problems_solved"`
	CodePatterns   []string    `json:"code_patterns"`
	Technologies   []string    `json:"technologies"`
	Difficulty     *Difficulty `json:"difficulty,omitempty"`
	GeneratedAt    time.Time   `json:"generated_at"`
	UserNotes      *string     `json:"user_notes,omitempty"`
}

// SessionWithInsight pairs a session with its insight, if one exists.
type SessionWithInsight struct {
	Session Session         `json:"session"`
	Insight *SessionInsight `json:"insight,omitempty"`
}

// DailyReport is the read-only composed view served for one date.
type DailyReport struct {
	Date            string               `json:"date"`
	Stats           DailyStats           `json:"stats"`
	Sessions        []SessionWithInsight `json:"sessions"`
	Streak          Streak               `json:"streak"`
	EndedSessions   int                  `json:"ended_sessions"`
	AvgDurationSecs float64              `json:"avg_duration_secs"` // over ended sessions only
}
