// Package analyzer calls an external LLM endpoint to turn a recorded
// session into a structured insight.
//
// The call is synchronous and never retried internally: a failure
// surfaces immediately to the one request that asked for analysis.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"codetrail/internal/model"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-haiku-4-5"
	apiVersion       = "2023-06-01"
	requestTimeout   = 60 * time.Second
	maxBodySize      = 1 << 20 // 1 MB
	maxTranscriptLen = 30_000  // characters of conversation sent for analysis
)

var (
	// ErrUnauthorized indicates the API key is missing, expired, or invalid.
	ErrUnauthorized = errors.New("analyzer: unauthorized (check api key)")
	// ErrRateLimited indicates the provider rate limit was hit.
	ErrRateLimited = errors.New("analyzer: rate limited")
	// ErrNoKey indicates no API key is configured at all.
	ErrNoKey = errors.New("analyzer: no api key configured")
)

// Insight is the structured analysis returned by the provider.
type Insight struct {
	Summary        string   `json:"summary"`
	KeyLearnings   []string `json:"key_learnings"`
	ProblemsSolved []string `json:"problems_solved"`
	CodePatterns   []string `json:"code_patterns"`
	Technologies   []string `json:"technologies"`
	Difficulty     string   `json:"difficulty"`
}

// Client calls the analysis provider.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// NewClient creates a client. Returns nil when no key is configured:
// analysis is an optional feature.
func NewClient(apiKey, baseURL, modelName string) *Client {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if modelName == "" {
		modelName = defaultModel
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   modelName,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

const analysisPrompt = `You are analyzing a coding-assistant session transcript.
Respond with a single JSON object and nothing else, with these fields:
"summary" (one sentence), "key_learnings" (list of strings),
"problems_solved" (list of strings), "code_patterns" (list of strings),
"technologies" (list of strings), "difficulty" ("easy", "medium" or "hard").

Transcript:
`

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Analyze sends the session's messages to the provider and parses the
// structured insight out of its reply.
func (c *Client) Analyze(ctx context.Context, msgs []model.Message) (Insight, error) {
	transcript := flattenMessages(msgs)
	if transcript == "" {
		return Insight{}, errors.New("analyzer: session has no text to analyze")
	}

	reqBody := messagesRequest{
		Model:     c.model,
		MaxTokens: 1024,
		Messages: []chatMessage{
			{Role: "user", Content: analysisPrompt + transcript},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Insight{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return Insight{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return Insight{}, fmt.Errorf("analyzer: request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Insight{}, fmt.Errorf("analyzer: reading response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return Insight{}, ErrUnauthorized
	case http.StatusTooManyRequests:
		return Insight{}, ErrRateLimited
	default:
		return Insight{}, fmt.Errorf("analyzer: HTTP %d", resp.StatusCode)
	}

	var mr messagesResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return Insight{}, fmt.Errorf("analyzer: parsing response: %w", err)
	}

	var text string
	for _, block := range mr.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return parseInsight(text)
}

// parseInsight extracts the JSON object from the model's reply, tolerating
// surrounding prose or code fences.
func parseInsight(text string) (Insight, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Insight{}, errors.New("analyzer: no JSON object in response")
	}

	var in Insight
	if err := json.Unmarshal([]byte(text[start:end+1]), &in); err != nil {
		return Insight{}, fmt.Errorf("analyzer: malformed insight JSON: %w", err)
	}
	if in.Summary == "" {
		return Insight{}, errors.New("analyzer: insight missing summary")
	}
	if in.Difficulty != "" && !model.ValidDifficulty(in.Difficulty) {
		in.Difficulty = ""
	}
	return in, nil
}

// flattenMessages renders the conversation as role-prefixed lines,
// truncated to the transcript budget.
func flattenMessages(msgs []model.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		if m.Content == nil || strings.TrimSpace(*m.Content) == "" {
			continue
		}
		b.WriteString(string(m.Type))
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(*m.Content))
		b.WriteString("\n")
		if b.Len() > maxTranscriptLen {
			break
		}
	}
	out := b.String()
	if len(out) > maxTranscriptLen {
		out = out[:maxTranscriptLen]
	}
	return out
}
