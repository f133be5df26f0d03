package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"codetrail/internal/analyzer"
	"codetrail/internal/model"
	"codetrail/internal/report"
	"codetrail/internal/store"
	"codetrail/internal/transcript"
)

// apiError is the wire shape of every non-2xx response.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	codeValidation = "validation_error"
	codeNotFound   = "not_found"
	codeStore      = "store_error"
	codeAnalyzer   = "analyzer_error"
)

// Handler builds the API routing table.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("POST /api/sessions/{id}/end", s.handleEndSession)
	mux.HandleFunc("POST /api/sessions/{id}/bookmark", s.handleBookmark)
	mux.HandleFunc("POST /api/sessions/{id}/summary", s.handleSummary)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)

	mux.HandleFunc("POST /api/messages", s.handleCreateMessage)
	mux.HandleFunc("POST /api/sync", s.handleSync)

	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("GET /api/streak", s.handleStreak)

	mux.HandleFunc("GET /api/sessions/{id}/insight", s.handleGetInsight)
	mux.HandleFunc("PUT /api/sessions/{id}/insight", s.handlePutInsight)
	mux.HandleFunc("PATCH /api/sessions/{id}/insight", s.handlePatchInsight)
	mux.HandleFunc("POST /api/sessions/{id}/analyze", s.handleAnalyze)

	return s.withRequestLog(mux)
}

// withRequestLog tags each request with an id, logs it, and counts it as
// activity for the idle watchdog.
func (s *Service) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.touch()

		start := s.now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		s.log.Info("request",
			"id", uuid.NewString(),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration", s.now().Sub(start).Round(time.Microsecond),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Code: code, Message: message})
}

// writeStoreError maps repository errors onto API responses. Internal
// failures are logged with their cause but reported generically.
func (s *Service) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	case errors.Is(err, store.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, codeValidation, "search query must not be empty")
	default:
		s.log.Error("store error", "error", err)
		writeError(w, http.StatusInternalServerError, codeStore, "internal storage error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

type createSessionRequest struct {
	ID             string  `json:"id"`
	TranscriptPath string  `json:"transcript_path"`
	Cwd            string  `json:"cwd"`
	ProjectName    *string `json:"project_name"`
	GitBranch      *string `json:"git_branch"`
	Source         string  `json:"source"`
}

func (s *Service) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	switch {
	case req.ID == "":
		writeError(w, http.StatusBadRequest, codeValidation, "id is required")
		return
	case req.TranscriptPath == "":
		writeError(w, http.StatusBadRequest, codeValidation, "transcript_path is required")
		return
	case req.Cwd == "":
		writeError(w, http.StatusBadRequest, codeValidation, "cwd is required")
		return
	case !model.ValidSource(req.Source):
		writeError(w, http.StatusBadRequest, codeValidation, fmt.Sprintf("unknown source %q", req.Source))
		return
	}

	sess, err := s.store.CreateOrUpdateSession(store.SessionCreate{
		ID:             req.ID,
		TranscriptPath: req.TranscriptPath,
		Cwd:            req.Cwd,
		ProjectName:    req.ProjectName,
		GitBranch:      req.GitBranch,
		Source:         model.Source(req.Source),
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Service) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := model.SessionFilter{
		Date:           q.Get("date"),
		From:           q.Get("from"),
		To:             q.Get("to"),
		Project:        q.Get("project"),
		BookmarkedOnly: q.Get("bookmarked") == "true",
		RecencyOnly:    q.Get("recent") == "true",
	}
	if f.Date != "" && (f.From != "" || f.To != "") {
		writeError(w, http.StatusBadRequest, codeValidation, "date and from/to are mutually exclusive")
		return
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, codeValidation, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}

	sessions, err := s.store.GetSessions(f)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Service) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.EndSession(r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type bookmarkRequest struct {
	Note string `json:"note"`
}

func (s *Service) handleBookmark(w http.ResponseWriter, r *http.Request) {
	var req bookmarkRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess, err := s.store.ToggleBookmark(r.PathValue("id"), req.Note)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type summaryRequest struct {
	Summary string `json:"summary"`
}

func (s *Service) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Summary == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "summary is required")
		return
	}

	sess, err := s.store.UpdateSessionSummary(r.PathValue("id"), req.Summary)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Service) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSession(r.PathValue("id")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createMessageRequest struct {
	SessionID    string     `json:"session_id"`
	UUID         *string    `json:"uuid"`
	Type         string     `json:"type"`
	Content      *string    `json:"content"`
	Model        *string    `json:"model"`
	InputTokens  *int64     `json:"input_tokens"`
	OutputTokens *int64     `json:"output_tokens"`
	Timestamp    *time.Time `json:"timestamp"`
}

func (s *Service) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	switch {
	case req.SessionID == "":
		writeError(w, http.StatusBadRequest, codeValidation, "session_id is required")
		return
	case !model.ValidMessageType(req.Type):
		writeError(w, http.StatusBadRequest, codeValidation, fmt.Sprintf("unknown message type %q", req.Type))
		return
	}

	data := store.MessageCreate{
		SessionID:    req.SessionID,
		UUID:         req.UUID,
		Type:         model.MessageType(req.Type),
		Content:      req.Content,
		Model:        req.Model,
		InputTokens:  req.InputTokens,
		OutputTokens: req.OutputTokens,
	}
	if req.Timestamp != nil {
		data.Timestamp = *req.Timestamp
	}

	msg, err := s.store.CreateMessage(data)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

type syncRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Service) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "session_id is required")
		return
	}

	sess, err := s.store.GetSession(req.SessionID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	parsed, err := transcript.ParseFile(sess.TranscriptPath)
	if err != nil {
		s.log.Error("transcript parse failed", "session", sess.ID, "path", sess.TranscriptPath, "error", err)
		writeError(w, http.StatusInternalServerError, codeStore, "transcript could not be read")
		return
	}
	if parsed.ParseErrors > 0 {
		s.log.Warn("transcript had unparseable lines",
			"session", sess.ID, "skipped", parsed.ParseErrors)
	}

	msgs := make([]store.MessageCreate, 0, len(parsed.Records))
	for _, rec := range parsed.Records {
		msgs = append(msgs, messageFromRecord(sess.ID, rec))
	}

	result, err := s.store.ReconcileTranscript(sess.ID, msgs, parsed.UserCount, parsed.FirstUserText())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// messageFromRecord adapts a parsed transcript record for storage.
func messageFromRecord(sessionID string, rec transcript.Record) store.MessageCreate {
	m := store.MessageCreate{
		SessionID:    sessionID,
		Type:         model.MessageType(rec.Type),
		InputTokens:  rec.InputTokens,
		OutputTokens: rec.OutputTokens,
		Timestamp:    rec.Timestamp,
	}
	if rec.UUID != "" {
		u := rec.UUID
		m.UUID = &u
	}
	if rec.Text != "" {
		t := rec.Text
		m.Content = &t
	}
	if rec.Model != "" {
		mo := rec.Model
		m.Model = &mo
	}
	return m
}

func (s *Service) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sq := model.SearchQuery{
		Text:           q.Get("q"),
		From:           q.Get("from"),
		To:             q.Get("to"),
		Project:        q.Get("project"),
		BookmarkedOnly: q.Get("bookmarked") == "true",
	}
	for name, dst := range map[string]*int{"limit": &sq.Limit, "offset": &sq.Offset} {
		if raw := q.Get(name); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, codeValidation, name+" must be a non-negative integer")
				return
			}
			*dst = n
		}
	}

	results, err := s.store.Search(sq, s.cfg.Search)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.StatsFilter{
		Date: q.Get("date"),
		From: q.Get("from"),
		To:   q.Get("to"),
	}
	if f.Date != "" && (f.From != "" || f.To != "") {
		writeError(w, http.StatusBadRequest, codeValidation, "date and from/to are mutually exclusive")
		return
	}

	stats, err := s.store.GetDailyStats(f)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Service) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := report.Daily(s.store, r.URL.Query().Get("date"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Service) handleStreak(w http.ResponseWriter, _ *http.Request) {
	streak, err := s.store.GetStreak()
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, streak)
}

func (s *Service) handleGetInsight(w http.ResponseWriter, r *http.Request) {
	insight, err := s.store.GetInsight(r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insight)
}

type putInsightRequest struct {
	Summary        string   `json:"summary"`
	KeyLearnings   []string `json:"key_learnings"`
	ProblemsSolved []string `json:"problems_solved"`
	CodePatterns   []string `json:"code_patterns"`
	Technologies   []string `json:"technologies"`
	Difficulty     *string  `json:"difficulty"`
}

func (s *Service) handlePutInsight(w http.ResponseWriter, r *http.Request) {
	var req putInsightRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Summary == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "summary is required")
		return
	}

	data := store.InsightUpsert{
		SessionID:      r.PathValue("id"),
		Summary:        req.Summary,
		KeyLearnings:   req.KeyLearnings,
		ProblemsSolved: req.ProblemsSolved,
		CodePatterns:   req.CodePatterns,
		Technologies:   req.Technologies,
	}
	if req.Difficulty != nil {
		if !model.ValidDifficulty(*req.Difficulty) {
			writeError(w, http.StatusBadRequest, codeValidation, fmt.Sprintf("unknown difficulty %q", *req.Difficulty))
			return
		}
		d := model.Difficulty(*req.Difficulty)
		data.Difficulty = &d
	}

	insight, err := s.store.UpsertInsight(data)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insight)
}

type patchInsightRequest struct {
	UserNotes string `json:"user_notes"`
}

func (s *Service) handlePatchInsight(w http.ResponseWriter, r *http.Request) {
	var req patchInsightRequest
	if !decodeBody(w, r, &req) {
		return
	}

	insight, err := s.store.UpdateInsightNotes(r.PathValue("id"), req.UserNotes)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insight)
}

func (s *Service) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, codeAnalyzer, "analyzer is not configured: set an api key")
		return
	}
	sessionID := r.PathValue("id")

	msgs, err := s.store.GetMessages(sessionID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if len(msgs) == 0 {
		// Distinguish unknown session from a recorded-but-empty one.
		if _, err := s.store.GetSession(sessionID); err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, codeValidation, "session has no messages to analyze")
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), msgs)
	if err != nil {
		switch {
		case errors.Is(err, analyzer.ErrUnauthorized):
			writeError(w, http.StatusBadGateway, codeAnalyzer, "analysis provider rejected the api key")
		case errors.Is(err, analyzer.ErrRateLimited):
			writeError(w, http.StatusBadGateway, codeAnalyzer, "analysis provider is rate limiting")
		default:
			s.log.Error("analysis failed", "session", sessionID, "error", err)
			writeError(w, http.StatusBadGateway, codeAnalyzer, "analysis failed")
		}
		return
	}

	data := store.InsightUpsert{
		SessionID:      sessionID,
		Summary:        result.Summary,
		KeyLearnings:   result.KeyLearnings,
		ProblemsSolved: result.ProblemsSolved,
		CodePatterns:   result.CodePatterns,
		Technologies:   result.Technologies,
	}
	if model.ValidDifficulty(result.Difficulty) {
		d := model.Difficulty(result.Difficulty)
		data.Difficulty = &d
	}

	insight, err := s.store.UpsertInsight(data)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insight)
}
