package server_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgrabner/recall/internal/memory"
	"github.com/mgrabner/recall/internal/models"
	"github.com/mgrabner/recall/internal/server"
)

// testLogger creates a logger that writes to stderr for test visibility.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// stubMemory scripts the memory service for handler tests.
type stubMemory struct {
	answer   string
	history  []models.HistoryEntry
	sessions []models.SessionInfo
	summary  string
	related  []models.RelatedTurn
	err      error
}

func (s *stubMemory) Respond(_ context.Context, _, _, _ string, _ memory.GenerateFunc) (string, error) {
	return s.answer, s.err
}

func (s *stubMemory) History(context.Context, string) ([]models.HistoryEntry, error) {
	return s.history, s.err
}

func (s *stubMemory) Sessions(context.Context, string) ([]models.SessionInfo, error) {
	return s.sessions, s.err
}

func (s *stubMemory) Summarize(_ context.Context, _ string, _ memory.GenerateFunc) (string, error) {
	return s.summary, s.err
}

func (s *stubMemory) RelevantContext(context.Context, string, string) ([]models.RelatedTurn, error) {
	return s.related, s.err
}

func newTestServer(mem server.Memory) *server.Server {
	generate := func(context.Context, string) (string, error) { return "", nil }
	return server.New(":0", mem, generate, nil, testLogger())
}

func doRequest(t *testing.T, srv *server.Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChatEndpoint(t *testing.T) {
	srv := newTestServer(&stubMemory{answer: "hello back"})

	rec := doRequest(t, srv, http.MethodPost, "/chat",
		`{"user_id":"alice","session_id":"s1","prompt":"hi"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"answer":"hello back"}`, rec.Body.String())
}

func TestChatRejectsMissingFields(t *testing.T) {
	srv := newTestServer(&stubMemory{})

	rec := doRequest(t, srv, http.MethodPost, "/chat", `{"user_id":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/chat", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatErrorMapsTo500(t *testing.T) {
	srv := newTestServer(&stubMemory{err: errors.New("store down")})

	rec := doRequest(t, srv, http.MethodPost, "/chat",
		`{"user_id":"alice","session_id":"s1","prompt":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	srv := newTestServer(&stubMemory{history: []models.HistoryEntry{
		{Type: models.EntryQuestion, Text: "hi"},
		{Type: models.EntryAnswer, Text: "hello"},
	}})

	rec := doRequest(t, srv, http.MethodGet, "/history?session_id=s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"question"`)
	assert.Contains(t, rec.Body.String(), `"answer"`)

	rec = doRequest(t, srv, http.MethodGet, "/history", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionsEndpoint(t *testing.T) {
	srv := newTestServer(&stubMemory{sessions: []models.SessionInfo{
		{SessionID: "s1", Title: "what is Go?"},
	}})

	rec := doRequest(t, srv, http.MethodGet, "/sessions?user_id=alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "what is Go?")
}

func TestSummaryEndpoint(t *testing.T) {
	srv := newTestServer(&stubMemory{summary: "likes hiking"})

	rec := doRequest(t, srv, http.MethodPost, "/summary?user_id=alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"summary":"likes hiking"}`, rec.Body.String())
}

func TestContextEndpoint(t *testing.T) {
	srv := newTestServer(&stubMemory{related: []models.RelatedTurn{
		{Question: "past q", Answer: "past a", Score: 0.9},
	}})

	rec := doRequest(t, srv, http.MethodGet, "/context?user_id=alice&q=hiking", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "past q")

	rec = doRequest(t, srv, http.MethodGet, "/context?user_id=alice", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndStats(t *testing.T) {
	srv := newTestServer(&stubMemory{})

	rec := doRequest(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "uptime_seconds")
}
