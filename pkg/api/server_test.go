package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiterhq/arbiter/pkg/llm"
)

// mockLLM implements llm.Client and records every call so tests can assert
// on side effects (or their absence).
type mockLLM struct {
	mu            sync.Mutex
	completeCalls []llm.Request
	streamCalls   []llm.Request

	reply     string
	fragments []string
	err       error
}

func (m *mockLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	m.completeCalls = append(m.completeCalls, req)
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockLLM) Stream(_ context.Context, req llm.Request) (<-chan string, error) {
	m.mu.Lock()
	m.streamCalls = append(m.streamCalls, req)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	ch := make(chan string)
	go func() {
		defer close(ch)
		for _, f := range m.fragments {
			ch <- f
		}
	}()
	return ch, nil
}

func (m *mockLLM) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.completeCalls) + len(m.streamCalls)
}

func newTestServer(mock *mockLLM) http.Handler {
	server := NewServer(Options{
		DefaultModel: "gpt-4o-mini",
		Client:       mock,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return server.Handler()
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), into))
}

func TestHealth(t *testing.T) {
	handler := newTestServer(&mockLLM{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decodeResponse(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	handler := newTestServer(&mockLLM{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMissingAPIKeyRejectedBeforeProviderCall(t *testing.T) {
	paths := []struct {
		path string
		body map[string]any
	}{
		{"/api/chat", map[string]any{"developer_message": "d", "user_message": "u"}},
		{"/api/suggest-options", map[string]any{"decision": "d"}},
		{"/api/suggest-criteria", map[string]any{"decision": "d", "options": []string{"a"}}},
		{"/api/conversational-options", map[string]any{
			"decision": "d", "conversation_history": []any{}, "current_options": []any{}, "user_message": "u",
		}},
		{"/api/generate-plan", map[string]any{"decision": "d", "selected_option": "o", "criteria": []any{}}},
	}

	for _, tt := range paths {
		t.Run(tt.path, func(t *testing.T) {
			mock := &mockLLM{}
			handler := newTestServer(mock)

			rec := postJSON(t, handler, tt.path, tt.body)

			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			var body map[string]string
			decodeResponse(t, rec, &body)
			assert.Contains(t, body["detail"], "api_key")
			assert.Zero(t, mock.calls(), "provider must not be contacted")
		})
	}
}

func TestMalformedJSONBody(t *testing.T) {
	mock := &mockLLM{}
	handler := newTestServer(mock)

	req := httptest.NewRequest(http.MethodPost, "/api/suggest-options", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, mock.calls())
}

func TestSuggestOptionsValidJSONReply(t *testing.T) {
	mock := &mockLLM{reply: `["Move", "Stay", "Sabbatical"]`}
	handler := newTestServer(mock)

	rec := postJSON(t, handler, "/api/suggest-options", map[string]any{
		"decision": "Should I relocate?",
		"api_key":  "sk-test",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Options []string `json:"options"`
	}
	decodeResponse(t, rec, &body)
	assert.Equal(t, []string{"Move", "Stay", "Sabbatical"}, body.Options)

	require.Len(t, mock.completeCalls, 1)
	call := mock.completeCalls[0]
	assert.Equal(t, "gpt-4o-mini", call.Model)
	assert.Equal(t, "sk-test", call.APIKey)
	require.Len(t, call.Messages, 2)
	assert.Equal(t, llm.RoleSystem, call.Messages[0].Role)
	assert.Contains(t, call.Messages[1].Content, "Should I relocate?")
}

func TestSuggestOptionsFallbackReply(t *testing.T) {
	mock := &mockLLM{reply: "Here you go:\n- Option A\n- Option B\n"}
	handler := newTestServer(mock)

	rec := postJSON(t, handler, "/api/suggest-options", map[string]any{
		"decision": "d", "api_key": "k",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Options []string `json:"options"`
	}
	decodeResponse(t, rec, &body)
	assert.Equal(t, []string{"Option A", "Option B"}, body.Options)
}

func TestSuggestOptionsModelOverride(t *testing.T) {
	mock := &mockLLM{reply: `[]`}
	handler := newTestServer(mock)

	rec := postJSON(t, handler, "/api/suggest-options", map[string]any{
		"decision": "d", "api_key": "k", "model": "gpt-4o",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, mock.completeCalls, 1)
	assert.Equal(t, "gpt-4o", mock.completeCalls[0].Model)
}

func TestSuggestCriteriaRescalesWeights(t *testing.T) {
	mock := &mockLLM{reply: `[{"name":"Cost","weight":50},{"name":"Time","weight":70}]`}
	handler := newTestServer(mock)

	rec := postJSON(t, handler, "/api/suggest-criteria", map[string]any{
		"decision": "d", "options": []string{"a", "b"}, "api_key": "k",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Criteria []struct {
			Name   string  `json:"name"`
			Weight float64 `json:"weight"`
		} `json:"criteria"`
	}
	decodeResponse(t, rec, &body)
	require.Len(t, body.Criteria, 2)
	assert.Equal(t, 41.7, body.Criteria[0].Weight)
	assert.Equal(t, 58.3, body.Criteria[1].Weight)
}

func TestSuggestCriteriaUnparsableReplyYieldsDefaults(t *testing.T) {
	mock := &mockLLM{reply: "Sorry, I can't answer in JSON today."}
	handler := newTestServer(mock)

	rec := postJSON(t, handler, "/api/suggest-criteria", map[string]any{
		"decision": "d", "options": []string{}, "api_key": "k",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Criteria []struct {
			Name   string  `json:"name"`
			Weight float64 `json:"weight"`
		} `json:"criteria"`
	}
	decodeResponse(t, rec, &body)
	require.Len(t, body.Criteria, 4)
	for _, c := range body.Criteria {
		assert.Equal(t, 25.0, c.Weight)
	}
}

func TestSuggestCriteriaRequiresOptionsList(t *testing.T) {
	mock := &mockLLM{}
	handler := newTestServer(mock)

	rec := postJSON(t, handler, "/api/suggest-criteria", map[string]any{
		"decision": "d", "api_key": "k",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Zero(t, mock.calls())
}

func TestConversationalOptionsReply(t *testing.T) {
	mock := &mockLLM{reply: "Have you considered a smaller city?"}
	handler := newTestServer(mock)

	history := make([]map[string]string, 0, 8)
	for i := 0; i < 8; i++ {
		history = append(history, map[string]string{
			"role":    "user",
			"content": fmt.Sprintf("turn %d", i),
		})
	}

	rec := postJSON(t, handler, "/api/conversational-options", map[string]any{
		"decision":             "Where to live?",
		"conversation_history": history,
		"current_options":      []string{"Berlin"},
		"user_message":         "any other ideas?",
		"api_key":              "k",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Response         string   `json:"response"`
		SuggestedOptions []string `json:"suggested_options"`
	}
	decodeResponse(t, rec, &body)
	assert.Equal(t, "Have you considered a smaller city?", body.Response)
	assert.NotNil(t, body.SuggestedOptions)
	assert.Empty(t, body.SuggestedOptions)

	// Only the last six turns reach the prompt.
	require.Len(t, mock.completeCalls, 1)
	userPrompt := mock.completeCalls[0].Messages[1].Content
	assert.NotContains(t, userPrompt, "turn 0\n")
	assert.NotContains(t, userPrompt, "turn 1\n")
	assert.Contains(t, userPrompt, "turn 2\n")
	assert.Contains(t, userPrompt, "turn 7\n")
}

func TestConversationalOptionsRejectsUnknownRole(t *testing.T) {
	mock := &mockLLM{}
	handler := newTestServer(mock)

	rec := postJSON(t, handler, "/api/conversational-options", map[string]any{
		"decision":             "d",
		"conversation_history": []map[string]string{{"role": "system", "content": "x"}},
		"current_options":      []string{},
		"user_message":         "u",
		"api_key":              "k",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body map[string]string
	decodeResponse(t, rec, &body)
	assert.Contains(t, body["detail"], "conversation_history[0].role")
	assert.Zero(t, mock.calls())
}

func TestGeneratePlanReturnsRawMarkdown(t *testing.T) {
	plan := "# Plan\n\n1. **Immediate Next Steps**\n- do the thing\n"
	mock := &mockLLM{reply: plan}
	handler := newTestServer(mock)

	rec := postJSON(t, handler, "/api/generate-plan", map[string]any{
		"decision":        "d",
		"selected_option": "o",
		"criteria":        []map[string]any{{"name": "Cost", "weight": 100}},
		"api_key":         "k",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Plan string `json:"plan"`
	}
	decodeResponse(t, rec, &body)
	assert.Equal(t, plan, body.Plan)
}

func TestProviderErrorSurfacesAsDetail(t *testing.T) {
	mock := &mockLLM{err: fmt.Errorf("provider returned status 401: invalid api key")}
	handler := newTestServer(mock)

	rec := postJSON(t, handler, "/api/suggest-options", map[string]any{
		"decision": "d", "api_key": "bad",
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	decodeResponse(t, rec, &body)
	assert.Contains(t, body["detail"], "invalid api key")
}

func TestChatStreamsFragmentsInOrder(t *testing.T) {
	mock := &mockLLM{fragments: []string{"Hel", "lo", " world"}}
	handler := newTestServer(mock)

	rec := postJSON(t, handler, "/api/chat", map[string]any{
		"developer_message": "be nice",
		"user_message":      "hi",
		"api_key":           "k",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello world", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	require.Len(t, mock.streamCalls, 1)
	call := mock.streamCalls[0]
	require.Len(t, call.Messages, 2)
	assert.Equal(t, llm.RoleDeveloper, call.Messages[0].Role)
	assert.Equal(t, "be nice", call.Messages[0].Content)
	assert.Equal(t, llm.RoleUser, call.Messages[1].Role)
}

func TestChatProviderErrorBeforeStream(t *testing.T) {
	mock := &mockLLM{err: fmt.Errorf("provider returned status 429: quota exceeded")}
	handler := newTestServer(mock)

	rec := postJSON(t, handler, "/api/chat", map[string]any{
		"developer_message": "d", "user_message": "u", "api_key": "k",
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	decodeResponse(t, rec, &body)
	assert.Contains(t, body["detail"], "quota exceeded")
}

func TestRequestIDHeaderAssigned(t *testing.T) {
	handler := newTestServer(&mockLLM{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "fixed-id")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "fixed-id", rec.Header().Get(requestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestServer(&mockLLM{})

	req := httptest.NewRequest(http.MethodOptions, "/api/suggest-options", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
