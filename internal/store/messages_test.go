package store

import (
	"errors"
	"testing"
	"time"

	"codetrail/internal/model"
)

func TestCreateMessage_PricesKnownModel(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "sess-1")

	msg := mkMessage(t, s, "sess-1", "u1", "hello")
	// sonnet: $3/MTok in, $15/MTok out; 100 in, 50 out.
	if msg.InputCost == nil || *msg.InputCost != 0.0003 {
		t.Errorf("input_cost = %v, want 0.0003", msg.InputCost)
	}
	if msg.OutputCost == nil || *msg.OutputCost != 0.00075 {
		t.Errorf("output_cost = %v, want 0.00075", msg.OutputCost)
	}
}

func TestCreateMessage_UnknownModelZeroCost(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "sess-1")

	msg, err := s.CreateMessage(MessageCreate{
		SessionID:    "sess-1",
		Type:         model.MessageAssistant,
		Content:      strp("reply"),
		Model:        strp("some-local-model"),
		InputTokens:  intp(10),
		OutputTokens: intp(10),
	})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if msg.InputCost == nil || *msg.InputCost != 0 {
		t.Errorf("input_cost = %v, want 0 for unknown model", msg.InputCost)
	}
}

func TestCreateMessage_PricingReadFailureAbortsWrite(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "sess-1")

	// Dropping the pricing table makes the rate lookup fail outright,
	// which must surface instead of silently pricing as zero.
	if _, err := s.RollbackLast(); err != nil {
		t.Fatalf("RollbackLast: %v", err)
	}

	_, err := s.CreateMessage(MessageCreate{
		SessionID:    "sess-1",
		Type:         model.MessageAssistant,
		Content:      strp("reply"),
		Model:        strp("claude-sonnet-4-5"),
		InputTokens:  intp(100),
		OutputTokens: intp(50),
	})
	if err == nil {
		t.Fatal("expected error from failed pricing read")
	}

	msgs, err := s.GetMessages("sess-1")
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("stored messages = %d, want 0 after aborted write", len(msgs))
	}
}

func TestCreateMessage_NoTokensNoCost(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "sess-1")

	msg, err := s.CreateMessage(MessageCreate{
		SessionID: "sess-1",
		Type:      model.MessageUser,
		Content:   strp("just text"),
	})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if msg.InputCost != nil || msg.OutputCost != nil {
		t.Errorf("costs = %v/%v, want nil without token counts", msg.InputCost, msg.OutputCost)
	}
}

func TestCreateMessage_UnknownSession(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateMessage(MessageCreate{
		SessionID: "ghost",
		Type:      model.MessageUser,
		Content:   strp("x"),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateMessage_UUIDConflictUpdatesWithoutRecounting(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "sess-1")
	mkMessage(t, s, "sess-1", "u1", "draft")

	updated, err := s.CreateMessage(MessageCreate{
		SessionID:    "sess-1",
		UUID:         strp("u1"),
		Type:         model.MessageUser,
		Content:      strp("final text"),
		Model:        strp("claude-sonnet-4-5"),
		InputTokens:  intp(200),
		OutputTokens: intp(80),
	})
	if err != nil {
		t.Fatalf("replayed CreateMessage: %v", err)
	}
	if updated.Content == nil || *updated.Content != "final text" {
		t.Errorf("content = %v, want refreshed", updated.Content)
	}
	if updated.InputTokens == nil || *updated.InputTokens != 200 {
		t.Errorf("input_tokens = %v, want 200", updated.InputTokens)
	}

	msgs, err := s.GetMessages("sess-1")
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("message count = %d after uuid replay, want 1", len(msgs))
	}

	stats, err := s.GetDailyStatsFor("2026-03-10")
	if err != nil {
		t.Fatalf("GetDailyStatsFor: %v", err)
	}
	if stats.MessageCount != 1 {
		t.Errorf("message_count = %d, want 1 (replay must not recount)", stats.MessageCount)
	}
	if stats.TotalInputTokens != 100 {
		t.Errorf("total_input_tokens = %d, want 100 from the first write only", stats.TotalInputTokens)
	}
}

func TestGetMessages_OrderedByTimestamp(t *testing.T) {
	s := newTestStore(t)
	mkSession(t, s, "sess-1")

	base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.Local)
	for i, content := range []string{"first", "second", "third"} {
		_, err := s.CreateMessage(MessageCreate{
			SessionID: "sess-1",
			Type:      model.MessageUser,
			Content:   strp(content),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("CreateMessage %d: %v", i, err)
		}
	}

	msgs, err := s.GetMessages("sess-1")
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i, want := range []string{"first", "second", "third"} {
		if msgs[i].Content == nil || *msgs[i].Content != want {
			t.Errorf("msgs[%d] = %v, want %q", i, msgs[i].Content, want)
		}
	}
}
