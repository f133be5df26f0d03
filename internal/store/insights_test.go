package store

import (
	"errors"
	"testing"

	"codetrail/internal/model"
)

func sampleInsight(sessionID string) InsightUpsert {
	diff := model.DifficultyMedium
	return InsightUpsert{
		SessionID:      sessionID,
		Summary:        "wired up the payment webhook",
		KeyLearnings:   []string{"idempotency keys matter"},
		ProblemsSolved: []string{"duplicate charge on retry"},
		CodePatterns:   []string{"outbox table"},
		Technologies:   []string{"go", "sqlite"},
		Difficulty:     &diff,
	}
}

func TestUpsertInsight_InsertAndOverwrite(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "sess-1")

	in, err := s.UpsertInsight(sampleInsight("sess-1"))
	if err != nil {
		t.Fatalf("UpsertInsight: %v", err)
	}
	if in.Summary != "wired up the payment webhook" {
		t.Errorf("summary = %q", in.Summary)
	}
	if in.GeneratedAt.IsZero() {
		t.Error("generated_at not set")
	}
	if len(in.Technologies) != 2 {
		t.Errorf("technologies = %v", in.Technologies)
	}

	// Regeneration replaces the analysis wholesale.
	next := sampleInsight("sess-1")
	next.Summary = "second pass analysis"
	next.KeyLearnings = nil
	regen, err := s.UpsertInsight(next)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if regen.Summary != "second pass analysis" {
		t.Errorf("summary = %q, want overwritten", regen.Summary)
	}
	if len(regen.KeyLearnings) != 0 {
		t.Errorf("key_learnings = %v, want emptied", regen.KeyLearnings)
	}
}

func TestUpsertInsight_PreservesUserNotes(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "sess-1")

	if _, err := s.UpsertInsight(sampleInsight("sess-1")); err != nil {
		t.Fatalf("UpsertInsight: %v", err)
	}
	if _, err := s.UpdateInsightNotes("sess-1", "my own takeaway"); err != nil {
		t.Fatalf("UpdateInsightNotes: %v", err)
	}

	regen, err := s.UpsertInsight(sampleInsight("sess-1"))
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if regen.UserNotes == nil || *regen.UserNotes != "my own takeaway" {
		t.Errorf("user_notes = %v, want preserved across regeneration", regen.UserNotes)
	}
}

func TestUpsertInsight_UnknownSession(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.UpsertInsight(sampleInsight("ghost")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetInsight_NotFound(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "sess-1")
	if _, err := s.GetInsight("sess-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound before any analysis", err)
	}
}

func TestUpdateInsightNotes_RequiresInsight(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "sess-1")
	if _, err := s.UpdateInsightNotes("sess-1", "note"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound without an insight row", err)
	}
}

func TestGetInsightsFor(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "with")
	mkSession(t, s, "without")
	if _, err := s.UpsertInsight(sampleInsight("with")); err != nil {
		t.Fatalf("UpsertInsight: %v", err)
	}

	got, err := s.GetInsightsFor([]string{"with", "without", "ghost"})
	if err != nil {
		t.Fatalf("GetInsightsFor: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d insights, want 1", len(got))
	}
	if _, ok := got["with"]; !ok {
		t.Error("missing insight for session with analysis")
	}

	empty, err := s.GetInsightsFor(nil)
	if err != nil {
		t.Fatalf("GetInsightsFor(nil): %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("got %d insights for empty id list", len(empty))
	}
}

func TestInsightDeletedWithSession(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "sess-1")
	if _, err := s.UpsertInsight(sampleInsight("sess-1")); err != nil {
		t.Fatalf("UpsertInsight: %v", err)
	}

	if err := s.DeleteSession("sess-1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := s.GetInsight("sess-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("insight survived session delete: %v", err)
	}
}

func TestEncodeDecodeList(t *testing.T) {
	enc, err := encodeList([]string{"a", "b"})
	if err != nil {
		t.Fatalf("encodeList: %v", err)
	}
	dec, err := decodeList(enc)
	if err != nil {
		t.Fatalf("decodeList: %v", err)
	}
	if len(dec) != 2 || dec[0] != "a" || dec[1] != "b" {
		t.Errorf("round trip = %v", dec)
	}

	nilEnc, err := encodeList(nil)
	if err != nil {
		t.Fatalf("encodeList(nil): %v", err)
	}
	if nilEnc != "[]" {
		t.Errorf("encodeList(nil) = %q, want []", nilEnc)
	}

	if _, err := decodeList("{not json"); err == nil {
		t.Error("decodeList accepted malformed input")
	}
}
