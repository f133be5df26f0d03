// Package model defines domain types for recorded sessions, messages,
// and their derived aggregates.
package model

import "time"

// Source identifies which assistant platform produced a session.
type Source string

// Recognized session sources.
const (
	SourceClaude   Source = "claude"
	SourceOpenCode Source = "opencode"
)

// ValidSource reports whether s is one of the recognized platform enums.
func ValidSource(s string) bool {
	return s == string(SourceClaude) || s == string(SourceOpenCode)
}

// MessageType discriminates the two turn kinds within a session.
type MessageType string

// Recognized message types.
const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
)

// ValidMessageType reports whether t is "user" or "assistant".
func ValidMessageType(t string) bool {
	return t == string(MessageUser) || t == string(MessageAssistant)
}

// Session is one tracked coding-assistant conversation, identified by the
// externally supplied session id.
type Session struct {
	ID             string     `json:"id"`
	TranscriptPath string     `json:"transcript_path"`
	Cwd            string     `json:"cwd"`
	ProjectName    *string    `json:"project_name,omitempty"`
	GitBranch      *string    `json:"git_branch,omitempty"`
	Source         Source     `json:"source"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	IsBookmarked   bool       `json:"is_bookmarked"`
	BookmarkNote   *string    `json:"bookmark_note,omitempty"`
	Summary        *string    `json:"summary,omitempty"`
}

// Duration returns the session length, zero until the session has ended.
func (s Session) Duration() time.Duration {
	if s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Message is one turn within a session.
type Message struct {
	ID           int64       `json:"id"`
	SessionID    string      `json:"session_id"`
	UUID         *string     `json:"uuid,omitempty"`
	Type         MessageType `json:"type"`
	Content      *string     `json:"content,omitempty"`
	Model        *string     `json:"model,omitempty"`
	InputTokens  *int64      `json:"input_tokens,omitempty"`
	OutputTokens *int64      `json:"output_tokens,omitempty"`
	InputCost    *float64    `json:"input_cost,omitempty"`
	OutputCost   *float64    `json:"output_cost,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

// SessionFilter narrows session reads. Date and From/To are mutually
// exclusive; all set fields compose as AND conditions.
type SessionFilter struct {
	Date           string // exact local date, YYYY-MM-DD
	From           string // inclusive range start, YYYY-MM-DD
	To             string // inclusive range end, YYYY-MM-DD
	Project        string
	BookmarkedOnly bool
	RecencyOnly    bool // plain recency order instead of bookmarked-first
	Limit          int
}
