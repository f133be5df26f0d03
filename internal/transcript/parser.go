// Package transcript parses append-only JSONL session transcripts.
//
// Each line is one message record. Lines that fail to parse are skipped,
// never fatal — transcripts are written by external tools mid-flight and
// partial lines happen.
package transcript

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"
)

// rawEntry is the wire shape of one transcript line. Content is either a
// plain string or an ordered list of typed blocks.
type rawEntry struct {
	Type      string          `json:"type"`
	UUID      string          `json:"uuid"`
	Timestamp string          `json:"timestamp"`
	Message   *rawMessage     `json:"message"`
	Content   json.RawMessage `json:"content"`
	Usage     *rawUsage       `json:"usage"`
}

type rawMessage struct {
	Content json.RawMessage `json:"content"`
	Model   string          `json:"model"`
	Usage   *rawUsage       `json:"usage"`
}

type rawUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Record is one parsed transcript message.
type Record struct {
	Type         string // "user" or "assistant"
	UUID         string
	Text         string // extracted text, "" when only non-text blocks
	Model        string
	InputTokens  *int64
	OutputTokens *int64
	Timestamp    time.Time
}

// Result summarizes one transcript parse.
type Result struct {
	Records     []Record
	UserCount   int // user-typed records, before empty-text filtering
	ParseErrors int
}

// FirstUserText returns the first user record's extracted text, "" if none.
func (r Result) FirstUserText() string {
	for _, rec := range r.Records {
		if rec.Type == "user" && rec.Text != "" {
			return rec.Text
		}
	}
	return ""
}

// ParseFile reads the transcript at path. A missing file parses as zero
// records — callers treat that the same as an empty transcript.
func ParseFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, nil
		}
		return Result{}, err
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}

// Parse reads line-delimited records from r. Every line parses
// independently; a bad line bumps ParseErrors and is dropped.
func Parse(r io.Reader) (Result, error) {
	var result Result

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256*1024), 2*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry rawEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			result.ParseErrors++
			continue
		}

		if entry.Type != "user" && entry.Type != "assistant" {
			continue
		}
		if entry.Type == "user" {
			result.UserCount++
		}

		rec := Record{
			Type: entry.Type,
			UUID: entry.UUID,
		}

		content := entry.Content
		usage := entry.Usage
		if entry.Message != nil {
			if content == nil {
				content = entry.Message.Content
			}
			rec.Model = entry.Message.Model
			if usage == nil {
				usage = entry.Message.Usage
			}
		}
		rec.Text = extractText(content)

		if usage != nil {
			in, out := usage.InputTokens, usage.OutputTokens
			rec.InputTokens = &in
			rec.OutputTokens = &out
		}
		if entry.Timestamp != "" {
			if ts, err := time.Parse(time.RFC3339Nano, entry.Timestamp); err == nil {
				rec.Timestamp = ts
			}
		}

		result.Records = append(result.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return result, err
	}

	return result, nil
}

// extractText pulls the displayable text out of a content field. Plain
// strings pass through; block lists contribute only their text-typed
// blocks, joined by newlines. Tool invocations and other non-text blocks
// are dropped.
func extractText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return strings.TrimSpace(plain)
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}

	var parts []string
	for _, b := range blocks {
		if b.Type != "text" {
			continue
		}
		if t := strings.TrimSpace(b.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
