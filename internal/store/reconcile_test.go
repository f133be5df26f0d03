package store

import (
	"errors"
	"strings"
	"testing"

	"codetrail/internal/model"
)

func transcriptMsgs(sessionID string, uuids ...string) []MessageCreate {
	out := make([]MessageCreate, len(uuids))
	for i, u := range uuids {
		out[i] = MessageCreate{
			SessionID:    sessionID,
			UUID:         strp(u),
			Type:         model.MessageUser,
			Content:      strp("text for " + u),
			Model:        strp("claude-sonnet-4-5"),
			InputTokens:  intp(10),
			OutputTokens: intp(5),
		}
	}
	return out
}

func TestReconcileTranscript_InsertsAndReplaysCleanly(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "sess-1")

	msgs := transcriptMsgs("sess-1", "u1", "u2", "u3")
	res, err := s.ReconcileTranscript("sess-1", msgs, 3, "text for u1")
	if err != nil {
		t.Fatalf("ReconcileTranscript: %v", err)
	}
	if res.Deleted || res.Inserted != 3 || res.Total != 3 || res.TotalUserMessages != 3 {
		t.Fatalf("result = %+v", res)
	}

	sess, err := s.GetSession("sess-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.EndedAt == nil {
		t.Error("session not marked ended by reconcile")
	}
	if sess.Summary == nil || *sess.Summary != "text for u1" {
		t.Errorf("summary = %v", sess.Summary)
	}

	// Replaying the same transcript inserts nothing and leaves the
	// aggregates alone.
	res, err = s.ReconcileTranscript("sess-1", msgs, 3, "text for u1")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Inserted != 0 || res.Total != 3 {
		t.Errorf("replay result = %+v", res)
	}

	stats, err := s.GetDailyStatsFor("2026-03-10")
	if err != nil {
		t.Fatalf("GetDailyStatsFor: %v", err)
	}
	if stats.MessageCount != 3 {
		t.Errorf("message_count = %d, want 3", stats.MessageCount)
	}
}

func TestReconcileTranscript_PartialReplayInsertsOnlyNew(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "sess-1")

	if _, err := s.ReconcileTranscript("sess-1", transcriptMsgs("sess-1", "u1"), 1, "text for u1"); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}

	res, err := s.ReconcileTranscript("sess-1", transcriptMsgs("sess-1", "u1", "u2"), 2, "text for u1")
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if res.Inserted != 1 || res.Total != 2 {
		t.Errorf("result = %+v, want 1 new of 2", res)
	}
}

func TestReconcileTranscript_DropsEmptyTextRecords(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "sess-1")

	// An assistant turn that only invoked tools extracts no text; it must
	// not land in the message table or the daily aggregate.
	msgs := transcriptMsgs("sess-1", "u1")
	msgs = append(msgs,
		MessageCreate{
			SessionID: "sess-1",
			UUID:      strp("a1"),
			Type:      model.MessageAssistant,
			Model:     strp("claude-sonnet-4-5"),
		},
		MessageCreate{
			SessionID: "sess-1",
			UUID:      strp("a2"),
			Type:      model.MessageAssistant,
			Content:   strp("   \n\t"),
			Model:     strp("claude-sonnet-4-5"),
		},
	)

	res, err := s.ReconcileTranscript("sess-1", msgs, 1, "text for u1")
	if err != nil {
		t.Fatalf("ReconcileTranscript: %v", err)
	}
	if res.Inserted != 1 {
		t.Errorf("Inserted = %d, want 1", res.Inserted)
	}
	if res.Total != 3 {
		t.Errorf("Total = %d, want 3 (dropped records still count)", res.Total)
	}

	stored, err := s.GetMessages("sess-1")
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("stored messages = %d, want 1", len(stored))
	}

	stats, err := s.GetDailyStatsFor("2026-03-10")
	if err != nil {
		t.Fatalf("GetDailyStatsFor: %v", err)
	}
	if stats.MessageCount != 1 {
		t.Errorf("message_count = %d, want 1", stats.MessageCount)
	}
}

func TestReconcileTranscript_ZeroUserDeletesSession(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "noise")

	res, err := s.ReconcileTranscript("noise", nil, 0, "")
	if err != nil {
		t.Fatalf("ReconcileTranscript: %v", err)
	}
	if !res.Deleted {
		t.Fatal("zero-user session not deleted")
	}
	if _, err := s.GetSession("noise"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("session still present: %v", err)
	}

	stats, err := s.GetDailyStatsFor("2026-03-10")
	if err != nil {
		t.Fatalf("GetDailyStatsFor: %v", err)
	}
	if stats.SessionCount != 0 {
		t.Errorf("session_count = %d, want 0 after noise deletion", stats.SessionCount)
	}
}

func TestReconcileTranscript_SummaryTruncatedAndKept(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "sess-1")

	long := strings.Repeat("x", 150)
	if _, err := s.ReconcileTranscript("sess-1", transcriptMsgs("sess-1", "u1"), 1, long); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	sess, err := s.GetSession("sess-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Summary == nil {
		t.Fatal("no summary derived")
	}
	want := strings.Repeat("x", 100) + "..."
	if *sess.Summary != want {
		t.Errorf("summary length = %d, want truncated to %d", len(*sess.Summary), len(want))
	}

	// A later reconcile with a different first message never replaces it.
	if _, err := s.ReconcileTranscript("sess-1", transcriptMsgs("sess-1", "u1", "u2"), 2, "different opener"); err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	sess, err = s.GetSession("sess-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if *sess.Summary != want {
		t.Errorf("summary replaced on replay: %q", *sess.Summary)
	}
}

func TestTruncateSummary_RuneSafe(t *testing.T) {
	in := strings.Repeat("é", 120)
	got := truncateSummary(in)
	if got != strings.Repeat("é", 100)+"..." {
		t.Errorf("multibyte truncation wrong: %q", got)
	}
	if short := truncateSummary("short"); short != "short" {
		t.Errorf("short input changed: %q", short)
	}
}

func TestReconcileTranscript_UnknownSession(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReconcileTranscript("ghost", transcriptMsgs("ghost", "u1"), 1, "hi")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
