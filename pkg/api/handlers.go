package api

import (
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/arbiterhq/arbiter/pkg/domain"
	"github.com/arbiterhq/arbiter/pkg/llm"
	"github.com/arbiterhq/arbiter/pkg/normalize"
	"github.com/arbiterhq/arbiter/pkg/prompt"
	"github.com/arbiterhq/arbiter/pkg/telemetry"
)

type optionsResponse struct {
	Options []string `json:"options"`
}

type criteriaResponse struct {
	Criteria []domain.Criterion `json:"criteria"`
}

type conversationalResponse struct {
	Response string `json:"response"`
	// SuggestedOptions is always empty; option extraction from the
	// conversational reply is left to the client.
	SuggestedOptions []string `json:"suggested_options"`
}

type planResponse struct {
	Plan string `json:"plan"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// complete issues one non-streaming provider call and maps any failure to the
// uniform 500 response. It reports whether the handler should proceed.
func (s *Server) complete(w http.ResponseWriter, r *http.Request, model, system, user, apiKey string) (string, bool) {
	ctx := r.Context()
	telemetry.RecordCompletion(trace.SpanFromContext(ctx), model, false)

	reply, err := s.llm.Complete(ctx, llm.Request{
		Model: model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		APIKey: apiKey,
	})
	s.metrics.RecordProviderCall(model, err)
	if err != nil {
		s.logger.Error("provider call failed", "model", model, "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return "", false
	}
	return reply, true
}

func (s *Server) handleSuggestOptions(w http.ResponseWriter, r *http.Request) {
	var req SuggestOptionsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	system, user := prompt.SuggestOptions(req.Decision)
	reply, ok := s.complete(w, r, s.model(req.Model), system, user, req.APIKey)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, optionsResponse{Options: normalize.Options(reply)})
}

func (s *Server) handleSuggestCriteria(w http.ResponseWriter, r *http.Request) {
	var req SuggestCriteriaRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	system, user := prompt.SuggestCriteria(req.Decision, req.Options)
	reply, ok := s.complete(w, r, s.model(req.Model), system, user, req.APIKey)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, criteriaResponse{Criteria: normalize.Criteria(reply)})
}

func (s *Server) handleConversationalOptions(w http.ResponseWriter, r *http.Request) {
	var req ConversationalOptionsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	system, user := prompt.ConversationalOptions(req.Decision, req.ConversationHistory, req.CurrentOptions, req.UserMessage)
	reply, ok := s.complete(w, r, s.model(req.Model), system, user, req.APIKey)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, conversationalResponse{
		Response:         reply,
		SuggestedOptions: []string{},
	})
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req GeneratePlanRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	system, user := prompt.GeneratePlan(req.Decision, req.SelectedOption, req.Criteria)
	reply, ok := s.complete(w, r, s.model(req.Model), system, user, req.APIKey)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, planResponse{Plan: reply})
}

// handleChat streams raw token fragments to the client as text/plain. Each
// fragment is written and flushed as soon as it arrives; closing the client
// connection cancels the request context, which stops the provider stream.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	model := s.model(req.Model)
	telemetry.RecordCompletion(trace.SpanFromContext(ctx), model, true)

	fragments, err := s.llm.Stream(ctx, llm.Request{
		Model: model,
		Messages: []llm.Message{
			{Role: llm.RoleDeveloper, Content: req.DeveloperMessage},
			{Role: llm.RoleUser, Content: req.UserMessage},
		},
		APIKey: req.APIKey,
	})
	s.metrics.RecordProviderCall(model, err)
	if err != nil {
		s.logger.Error("provider stream failed", "model", model, "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	flusher, canFlush := w.(http.Flusher)

	for fragment := range fragments {
		if _, err := w.Write([]byte(fragment)); err != nil {
			// Client went away; the cancelled context stops the producer.
			return
		}
		s.metrics.RecordStreamFragment()
		if canFlush {
			flusher.Flush()
		}
	}
}
