package transcript

import (
	"strings"
	"testing"
)

func parseLines(t *testing.T, lines ...string) Result {
	t.Helper()
	result, err := Parse(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func TestParse_PlainStringContent(t *testing.T) {
	result := parseLines(t,
		`{"type":"user","uuid":"u1","content":"fix the login bug","timestamp":"2025-06-01T10:00:00Z"}`,
	)

	if len(result.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(result.Records))
	}
	if result.UserCount != 1 {
		t.Errorf("UserCount = %d, want 1", result.UserCount)
	}
	if result.Records[0].Text != "fix the login bug" {
		t.Errorf("Text = %q, want %q", result.Records[0].Text, "fix the login bug")
	}
}

func TestParse_ContentBlocks(t *testing.T) {
	result := parseLines(t,
		`{"type":"assistant","uuid":"a1","message":{"model":"claude-sonnet-4-5","content":[{"type":"text","text":"Looking at it."},{"type":"tool_use","name":"bash"},{"type":"text","text":"Found it."}],"usage":{"input_tokens":100,"output_tokens":50}}}`,
	)

	if len(result.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(result.Records))
	}
	rec := result.Records[0]
	if rec.Text != "Looking at it.\nFound it." {
		t.Errorf("Text = %q, want text blocks joined by newline", rec.Text)
	}
	if rec.Model != "claude-sonnet-4-5" {
		t.Errorf("Model = %q, want claude-sonnet-4-5", rec.Model)
	}
	if rec.InputTokens == nil || *rec.InputTokens != 100 {
		t.Errorf("InputTokens = %v, want 100", rec.InputTokens)
	}
	if rec.OutputTokens == nil || *rec.OutputTokens != 50 {
		t.Errorf("OutputTokens = %v, want 50", rec.OutputTokens)
	}
}

func TestParse_ToolOnlyContentHasEmptyText(t *testing.T) {
	result := parseLines(t,
		`{"type":"assistant","uuid":"a1","message":{"content":[{"type":"tool_use","name":"bash"}]}}`,
	)

	if len(result.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(result.Records))
	}
	if result.Records[0].Text != "" {
		t.Errorf("Text = %q, want empty for tool-only content", result.Records[0].Text)
	}
}

func TestParse_BadLinesSkipped(t *testing.T) {
	result := parseLines(t,
		`{"type":"user","content":"hello"}`,
		`{not json at all`,
		`{"type":"assistant","content":"hi"}`,
	)

	if len(result.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(result.Records))
	}
	if result.ParseErrors != 1 {
		t.Errorf("ParseErrors = %d, want 1", result.ParseErrors)
	}
}

func TestParse_IgnoresOtherTypes(t *testing.T) {
	result := parseLines(t,
		`{"type":"system","content":"boot"}`,
		`{"type":"progress"}`,
		`{"type":"user","content":"hello"}`,
	)

	if len(result.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(result.Records))
	}
	if result.UserCount != 1 {
		t.Errorf("UserCount = %d, want 1", result.UserCount)
	}
}

func TestParse_AssistantOnlyMeansZeroUsers(t *testing.T) {
	result := parseLines(t,
		`{"type":"assistant","content":"unprompted"}`,
		`{"type":"assistant","content":"still unprompted"}`,
	)

	if result.UserCount != 0 {
		t.Errorf("UserCount = %d, want 0", result.UserCount)
	}
	if len(result.Records) != 2 {
		t.Errorf("records = %d, want 2", len(result.Records))
	}
}

func TestFirstUserText(t *testing.T) {
	result := parseLines(t,
		`{"type":"assistant","content":"hi"}`,
		`{"type":"user","content":[{"type":"tool_result"}]}`,
		`{"type":"user","content":"the real question"}`,
	)

	if got := result.FirstUserText(); got != "the real question" {
		t.Errorf("FirstUserText() = %q, want %q", got, "the real question")
	}
}

func TestParseFile_MissingFile(t *testing.T) {
	result, err := ParseFile("/nonexistent/transcript.jsonl")
	if err != nil {
		t.Fatalf("missing file should parse as empty, got error: %v", err)
	}
	if len(result.Records) != 0 || result.UserCount != 0 {
		t.Errorf("missing file produced records: %+v", result)
	}
}
