package model

import "time"

// ResultType tags where a search hit came from.
type ResultType string

// Search result types.
const (
	ResultMessage        ResultType = "message"
	ResultSessionSummary ResultType = "session_summary"
	ResultBookmarkNote   ResultType = "bookmark_note"
)

// SearchQuery carries a free-text query and its optional filters.
type SearchQuery struct {
	Text           string
	From           string // inclusive, YYYY-MM-DD
	To             string // inclusive, YYYY-MM-DD
	Project        string
	BookmarkedOnly bool
	Limit          int
	Offset         int
}

// SearchResult is one ranked hit. MessageID is nil for session-level hits.
type SearchResult struct {
	SessionID    string     `json:"session_id"`
	MessageID    *int64     `json:"message_id,omitempty"`
	Snippet      string     `json:"snippet"`
	Type         ResultType `json:"type"`
	Score        float64    `json:"score"` // lower is more relevant
	Timestamp    time.Time  `json:"timestamp"`
	ProjectName  *string    `json:"project_name,omitempty"`
	IsBookmarked bool       `json:"is_bookmarked"`
}
