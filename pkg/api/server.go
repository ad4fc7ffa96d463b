// Package api exposes the decision-support endpoints over HTTP/JSON.
//
// Each endpoint follows the same chain: decode and validate the body, render
// a prompt, call the provider gateway once, normalize the reply, and encode
// the response. Failures from the provider surface as a uniform
// {"detail": ...} body; malformed provider output never does, because the
// normalizer always produces the promised shape.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rs/cors"

	"github.com/arbiterhq/arbiter/pkg/llm"
)

// Options configures a Server. All fields except Client are optional.
type Options struct {
	// DefaultModel is used when a request omits the model field.
	DefaultModel string
	// Client is the provider gateway.
	Client llm.Client
	Logger *slog.Logger
	// Metrics may be shared with other components; a fresh registry is
	// created when nil.
	Metrics *Metrics
}

// Server wires the endpoint handlers to the provider gateway. It holds no
// mutable request state: every request is independent and carries its own
// provider credential.
type Server struct {
	defaultModel string
	llm          llm.Client
	logger       *slog.Logger
	metrics      *Metrics
}

// NewServer constructs a Server from the supplied options.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	defaultModel := opts.DefaultModel
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	return &Server{
		defaultModel: defaultModel,
		llm:          opts.Client,
		logger:       logger,
		metrics:      metrics,
	}
}

// Handler returns the full HTTP handler: routes, request-ID and access-log
// middleware, and a fully open CORS layer.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/suggest-options", s.handleSuggestOptions)
	mux.HandleFunc("POST /api/suggest-criteria", s.handleSuggestCriteria)
	mux.HandleFunc("POST /api/conversational-options", s.handleConversationalOptions)
	mux.HandleFunc("POST /api/generate-plan", s.handleGeneratePlan)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return c.Handler(s.withObservability(mux))
}

func (s *Server) model(requested string) string {
	if requested == "" {
		return s.defaultModel
	}
	return requested
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, errorResponse{Detail: detail})
}

// decodeBody decodes and validates a request body, writing the client error
// itself when the body is rejected. It reports whether the handler should
// proceed.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, body interface{ Validate() error }) bool {
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if err := body.Validate(); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}
