package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"codetrail/internal/model"
)

// newTestStore opens a fresh database under a temp dir with a fixed clock.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "codetrail.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	s.now = func() time.Time {
		return time.Date(2026, 3, 10, 14, 30, 0, 0, time.Local)
	}
	return s
}

func strp(s string) *string { return &s }

func intp(n int64) *int64 { return &n }

func mkSession(t *testing.T, s *Store, id string) model.Session {
	t.Helper()
	sess, err := s.CreateOrUpdateSession(SessionCreate{
		ID:             id,
		TranscriptPath: "/tmp/" + id + ".jsonl",
		Cwd:            "/home/dev/proj",
		ProjectName:    strp("proj"),
		Source:         model.SourceClaude,
	})
	if err != nil {
		t.Fatalf("CreateOrUpdateSession(%s): %v", id, err)
	}
	return sess
}

func mkMessage(t *testing.T, s *Store, sessionID, uuid, content string) model.Message {
	t.Helper()
	msg, err := s.CreateMessage(MessageCreate{
		SessionID:    sessionID,
		UUID:         strp(uuid),
		Type:         model.MessageUser,
		Content:      strp(content),
		Model:        strp("claude-sonnet-4-5"),
		InputTokens:  intp(100),
		OutputTokens: intp(50),
	})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	return msg
}

func TestCreateOrUpdateSession_InsertThenRefresh(t *testing.T) {
	s := newTestStore(t)

	first := mkSession(t, s, "sess-1")
	if first.StartedAt.IsZero() {
		t.Fatal("started_at not set on insert")
	}

	// Replayed start with new descriptive fields must not reset started_at
	// or count a second session.
	second, err := s.CreateOrUpdateSession(SessionCreate{
		ID:             "sess-1",
		TranscriptPath: "/tmp/moved.jsonl",
		Cwd:            "/home/dev/elsewhere",
		GitBranch:      strp("main"),
		Source:         model.SourceClaude,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !second.StartedAt.Equal(first.StartedAt) {
		t.Errorf("started_at changed on upsert: %v -> %v", first.StartedAt, second.StartedAt)
	}
	if second.TranscriptPath != "/tmp/moved.jsonl" {
		t.Errorf("transcript_path = %q, want refreshed value", second.TranscriptPath)
	}
	if second.GitBranch == nil || *second.GitBranch != "main" {
		t.Errorf("git_branch not refreshed: %v", second.GitBranch)
	}

	stats, err := s.GetDailyStatsFor("2026-03-10")
	if err != nil {
		t.Fatalf("GetDailyStatsFor: %v", err)
	}
	if stats.SessionCount != 1 {
		t.Errorf("session_count = %d after replayed start, want 1", stats.SessionCount)
	}
}

func TestCreateOrUpdateSession_RejectsBadSource(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateOrUpdateSession(SessionCreate{
		ID:             "sess-bad",
		TranscriptPath: "/tmp/x.jsonl",
		Cwd:            "/tmp",
		Source:         model.Source("vim"),
	})
	if err == nil {
		t.Fatal("expected error for unknown source")
	}
}

func TestGetSession_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetSession("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestEndSession_Idempotent(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "sess-1")

	ended, err := s.EndSession("sess-1")
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if ended.EndedAt == nil {
		t.Fatal("ended_at not set")
	}
	firstEnd := *ended.EndedAt

	s.now = func() time.Time {
		return time.Date(2026, 3, 10, 18, 0, 0, 0, time.Local)
	}
	again, err := s.EndSession("sess-1")
	if err != nil {
		t.Fatalf("second EndSession: %v", err)
	}
	if again.EndedAt == nil || !again.EndedAt.Equal(firstEnd) {
		t.Errorf("ended_at moved on replayed end: %v -> %v", firstEnd, again.EndedAt)
	}
}

func TestToggleBookmark_NoteSemantics(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "sess-1")

	on, err := s.ToggleBookmark("sess-1", "revisit the migration trick")
	if err != nil {
		t.Fatalf("ToggleBookmark: %v", err)
	}
	if !on.IsBookmarked {
		t.Fatal("not bookmarked after first toggle")
	}
	if on.BookmarkNote == nil || *on.BookmarkNote != "revisit the migration trick" {
		t.Errorf("note = %v", on.BookmarkNote)
	}

	// Toggling off with no note keeps the stored note.
	off, err := s.ToggleBookmark("sess-1", "")
	if err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if off.IsBookmarked {
		t.Fatal("still bookmarked after second toggle")
	}
	if off.BookmarkNote == nil || *off.BookmarkNote != "revisit the migration trick" {
		t.Errorf("note lost on toggle off: %v", off.BookmarkNote)
	}

	// A new non-empty note replaces the old one.
	on2, err := s.ToggleBookmark("sess-1", "new note")
	if err != nil {
		t.Fatalf("toggle back on: %v", err)
	}
	if on2.BookmarkNote == nil || *on2.BookmarkNote != "new note" {
		t.Errorf("note = %v, want replacement", on2.BookmarkNote)
	}
}

func TestUpdateSessionSummary_FirstWriteWins(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "sess-1")

	first, err := s.UpdateSessionSummary("sess-1", "debugging the flaky test")
	if err != nil {
		t.Fatalf("UpdateSessionSummary: %v", err)
	}
	if first.Summary == nil || *first.Summary != "debugging the flaky test" {
		t.Errorf("summary = %v", first.Summary)
	}

	second, err := s.UpdateSessionSummary("sess-1", "something else entirely")
	if err != nil {
		t.Fatalf("second UpdateSessionSummary: %v", err)
	}
	if second.Summary == nil || *second.Summary != "debugging the flaky test" {
		t.Errorf("summary overwritten: %v", second.Summary)
	}
}

func TestDeleteSession_CascadesAndErrors(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "sess-1")
	mkMessage(t, s, "sess-1", "u1", "hello")

	if err := s.DeleteSession("sess-1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := s.GetSession("sess-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("session survived delete: %v", err)
	}
	msgs, err := s.GetMessages("sess-1")
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("messages survived delete: %d", len(msgs))
	}

	if err := s.DeleteSession("sess-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestGetSessions_FiltersAndOrder(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "a")

	s.now = func() time.Time {
		return time.Date(2026, 3, 11, 9, 0, 0, 0, time.Local)
	}
	mkSession(t, s, "b")

	s.now = func() time.Time {
		return time.Date(2026, 3, 11, 10, 0, 0, 0, time.Local)
	}
	mkSession(t, s, "c")

	if _, err := s.ToggleBookmark("b", ""); err != nil {
		t.Fatalf("bookmark: %v", err)
	}

	// Default order: bookmarked first, then most recent.
	all, err := s.GetSessions(model.SessionFilter{})
	if err != nil {
		t.Fatalf("GetSessions: %v", err)
	}
	if got := ids(all); got[0] != "b" || got[1] != "c" || got[2] != "a" {
		t.Errorf("order = %v, want [b c a]", got)
	}

	// Pure recency order ignores bookmarks.
	recent, err := s.GetSessions(model.SessionFilter{RecencyOnly: true})
	if err != nil {
		t.Fatalf("GetSessions recency: %v", err)
	}
	if got := ids(recent); got[0] != "c" || got[1] != "b" || got[2] != "a" {
		t.Errorf("recency order = %v, want [c b a]", got)
	}

	day, err := s.GetSessions(model.SessionFilter{Date: "2026-03-11"})
	if err != nil {
		t.Fatalf("GetSessions date: %v", err)
	}
	if len(day) != 2 {
		t.Errorf("date filter matched %d sessions, want 2", len(day))
	}

	marked, err := s.GetSessions(model.SessionFilter{BookmarkedOnly: true})
	if err != nil {
		t.Fatalf("GetSessions bookmarked: %v", err)
	}
	if len(marked) != 1 || marked[0].ID != "b" {
		t.Errorf("bookmarked filter = %v", ids(marked))
	}

	limited, err := s.GetSessions(model.SessionFilter{RecencyOnly: true, Limit: 1})
	if err != nil {
		t.Fatalf("GetSessions limit: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "c" {
		t.Errorf("limit = %v, want [c]", ids(limited))
	}
}

func ids(sessions []model.Session) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}

func TestCleanEmptySessions(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "empty-1")
	mkSession(t, s, "empty-2")
	mkSession(t, s, "kept")
	mkMessage(t, s, "kept", "u1", "real work")

	n, err := s.CleanEmptySessions()
	if err != nil {
		t.Fatalf("CleanEmptySessions: %v", err)
	}
	if n != 2 {
		t.Fatalf("cleaned %d sessions, want 2", n)
	}
	if _, err := s.GetSession("kept"); err != nil {
		t.Fatalf("kept session removed: %v", err)
	}

	stats, err := s.GetDailyStatsFor("2026-03-10")
	if err != nil {
		t.Fatalf("GetDailyStatsFor: %v", err)
	}
	if stats.SessionCount != 1 {
		t.Errorf("session_count = %d after sweep, want 1", stats.SessionCount)
	}

	// A second sweep finds nothing and the count never goes negative.
	n, err = s.CleanEmptySessions()
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep cleaned %d, want 0", n)
	}
}
