package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"codetrail/internal/model"
)

// ErrEmptyQuery rejects a search whose query is empty after trimming.
// That's a caller error, not a zero-result success.
var ErrEmptyQuery = errors.New("store: empty search query")

// Composite ranking weights. FTS5 rank is ascending (more negative is
// more relevant); the bookmark bonus nudges bookmarked sessions' hits
// above equally ranked ones.
const (
	rankWeight     = 0.7
	bookmarkWeight = 0.2
)

// SearchOptions tunes snippet highlighting and result caps.
type SearchOptions struct {
	HighlightStart string
	HighlightEnd   string
	MaxResults     int
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.HighlightStart == "" {
		o.HighlightStart = "<mark>"
	}
	if o.HighlightEnd == "" {
		o.HighlightEnd = "</mark>"
	}
	if o.MaxResults <= 0 {
		o.MaxResults = 100
	}
	return o
}

// Search runs the free-text query against message content and against
// session summary / bookmark-note text, re-ranks the combined set with
// the composite score, and slices limit/offset afterwards. Both subsets
// over-fetch 2x so the final page stays stable across calls.
func (s *Store) Search(q model.SearchQuery, opts SearchOptions) ([]model.SearchResult, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuery
	}
	opts = opts.withDefaults()

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > opts.MaxResults {
		limit = opts.MaxResults
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	fetchLimit := 2 * (limit + offset)

	ftsQuery := sanitizeFTS(q.Text)

	results, err := s.searchMessages(ftsQuery, q, opts, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	sessionHits, err := s.searchSessions(ftsQuery, q, opts, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("searching sessions: %w", err)
	}
	results = append(results, sessionHits...)

	// Re-rank application-side: composite score ascending, ties broken
	// by recency then type so repeated calls return identical pages.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score < results[j].Score
		}
		if !results[i].Timestamp.Equal(results[j].Timestamp) {
			return results[i].Timestamp.After(results[j].Timestamp)
		}
		return results[i].Type < results[j].Type
	})

	if offset >= len(results) {
		return []model.SearchResult{}, nil
	}
	results = results[offset:]
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func compositeScore(rank float64, bookmarked bool) float64 {
	bonus := 1.0
	if bookmarked {
		bonus = 0
	}
	return rankWeight*rank + bookmarkWeight*bonus
}

func (s *Store) searchMessages(ftsQuery string, q model.SearchQuery, opts SearchOptions, fetchLimit int) ([]model.SearchResult, error) {
	query := `
		SELECT m.id, m.session_id,
		       snippet(messages_fts, 0, ?, ?, '...', 12),
		       fts.rank, m.timestamp, s.project_name, s.is_bookmarked
		FROM messages_fts fts
		JOIN messages m ON m.id = fts.rowid
		JOIN sessions s ON s.id = m.session_id
		WHERE messages_fts MATCH ?`
	args := []any{opts.HighlightStart, opts.HighlightEnd, ftsQuery}

	query, args = appendSearchFilters(query, args, q, "substr(m.timestamp, 1, 10)")
	query += ` ORDER BY fts.rank LIMIT ?`
	args = append(args, fetchLimit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []model.SearchResult
	for rows.Next() {
		var (
			r          model.SearchResult
			messageID  int64
			snip       string
			rank       float64
			ts         string
			project    sql.NullString
			bookmarked int
		)
		if err := rows.Scan(&messageID, &r.SessionID, &snip, &rank, &ts, &project, &bookmarked); err != nil {
			return nil, err
		}
		r.MessageID = &messageID
		r.Snippet = snip
		r.Type = model.ResultMessage
		r.Timestamp = parseTime(ts)
		r.ProjectName = strPtr(project)
		r.IsBookmarked = bookmarked != 0
		r.Score = compositeScore(rank, r.IsBookmarked)
		results = append(results, r)
	}
	return results, rows.Err()
}

// searchSessions matches summary and bookmark-note text. The hit is
// typed by which column actually matched: a highlighted note snippet
// means a bookmark_note result, otherwise the summary matched.
func (s *Store) searchSessions(ftsQuery string, q model.SearchQuery, opts SearchOptions, fetchLimit int) ([]model.SearchResult, error) {
	query := `
		SELECT s.id,
		       snippet(sessions_fts, 0, ?, ?, '...', 12),
		       snippet(sessions_fts, 1, ?, ?, '...', 12),
		       fts.rank, s.started_at, s.project_name, s.is_bookmarked
		FROM sessions_fts fts
		JOIN sessions s ON s.rowid = fts.rowid
		WHERE sessions_fts MATCH ?`
	args := []any{
		opts.HighlightStart, opts.HighlightEnd,
		opts.HighlightStart, opts.HighlightEnd,
		ftsQuery,
	}

	query, args = appendSearchFilters(query, args, q, "substr(s.started_at, 1, 10)")
	query += ` ORDER BY fts.rank LIMIT ?`
	args = append(args, fetchLimit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []model.SearchResult
	for rows.Next() {
		var (
			r           model.SearchResult
			summarySnip string
			noteSnip    string
			rank        float64
			ts          string
			project     sql.NullString
			bookmarked  int
		)
		if err := rows.Scan(&r.SessionID, &summarySnip, &noteSnip, &rank, &ts, &project, &bookmarked); err != nil {
			return nil, err
		}
		r.Timestamp = parseTime(ts)
		r.ProjectName = strPtr(project)
		r.IsBookmarked = bookmarked != 0
		r.Score = compositeScore(rank, r.IsBookmarked)

		if strings.Contains(summarySnip, opts.HighlightStart) {
			r.Type = model.ResultSessionSummary
			r.Snippet = summarySnip
		} else {
			r.Type = model.ResultBookmarkNote
			r.Snippet = noteSnip
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// appendSearchFilters duplicates the shared date/project/bookmark
// predicate onto a subset query. The two subsets come from different base
// tables, so the clause is rebuilt per subset with its own date column.
func appendSearchFilters(query string, args []any, q model.SearchQuery, dateExpr string) (string, []any) {
	if q.From != "" {
		query += ` AND ` + dateExpr + ` >= ?`
		args = append(args, q.From)
	}
	if q.To != "" {
		query += ` AND ` + dateExpr + ` <= ?`
		args = append(args, q.To)
	}
	if q.Project != "" {
		query += ` AND s.project_name = ?`
		args = append(args, q.Project)
	}
	if q.BookmarkedOnly {
		query += ` AND s.is_bookmarked = 1`
	}
	return query, args
}

// sanitizeFTS wraps each term in quotes so FTS5 never sees its operator
// syntax. `fix auth-bug` -> `"fix" "auth-bug"`.
func sanitizeFTS(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		w = strings.Trim(w, `"`)
		words[i] = `"` + w + `"`
	}
	return strings.Join(words, " ")
}
