package api

import (
	"fmt"
	"strings"

	"github.com/arbiterhq/arbiter/pkg/domain"
)

// ValidationError reports every field that failed request validation so
// clients can fix a whole body in one round trip.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// fieldChecker accumulates field-level validation problems.
type fieldChecker struct {
	problems []string
}

func (f *fieldChecker) requireString(name, value string) {
	if strings.TrimSpace(value) == "" {
		f.problems = append(f.problems, name+" is required and must be a non-empty string")
	}
}

func (f *fieldChecker) addf(format string, args ...any) {
	f.problems = append(f.problems, fmt.Sprintf(format, args...))
}

func (f *fieldChecker) err() error {
	if len(f.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: f.problems}
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	DeveloperMessage string `json:"developer_message"`
	UserMessage      string `json:"user_message"`
	Model            string `json:"model"`
	APIKey           string `json:"api_key"`
}

// Validate implements requestBody.
func (r *ChatRequest) Validate() error {
	var f fieldChecker
	f.requireString("developer_message", r.DeveloperMessage)
	f.requireString("user_message", r.UserMessage)
	f.requireString("api_key", r.APIKey)
	return f.err()
}

// SuggestOptionsRequest is the body of POST /api/suggest-options.
type SuggestOptionsRequest struct {
	Decision string `json:"decision"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key"`
}

// Validate implements requestBody.
func (r *SuggestOptionsRequest) Validate() error {
	var f fieldChecker
	f.requireString("decision", r.Decision)
	f.requireString("api_key", r.APIKey)
	return f.err()
}

// SuggestCriteriaRequest is the body of POST /api/suggest-criteria.
type SuggestCriteriaRequest struct {
	Decision string   `json:"decision"`
	Options  []string `json:"options"`
	Model    string   `json:"model"`
	APIKey   string   `json:"api_key"`
}

// Validate implements requestBody.
func (r *SuggestCriteriaRequest) Validate() error {
	var f fieldChecker
	f.requireString("decision", r.Decision)
	f.requireString("api_key", r.APIKey)
	if r.Options == nil {
		f.addf("options is required and must be a list of strings")
	}
	return f.err()
}

// GeneratePlanRequest is the body of POST /api/generate-plan.
type GeneratePlanRequest struct {
	Decision       string             `json:"decision"`
	SelectedOption string             `json:"selected_option"`
	Criteria       []domain.Criterion `json:"criteria"`
	Model          string             `json:"model"`
	APIKey         string             `json:"api_key"`
}

// Validate implements requestBody.
func (r *GeneratePlanRequest) Validate() error {
	var f fieldChecker
	f.requireString("decision", r.Decision)
	f.requireString("selected_option", r.SelectedOption)
	f.requireString("api_key", r.APIKey)
	if r.Criteria == nil {
		f.addf("criteria is required and must be a list of {name, weight} objects")
	}
	for i, c := range r.Criteria {
		if strings.TrimSpace(c.Name) == "" {
			f.addf("criteria[%d].name is required and must be a non-empty string", i)
		}
	}
	return f.err()
}

// ConversationalOptionsRequest is the body of POST /api/conversational-options.
type ConversationalOptionsRequest struct {
	Decision            string        `json:"decision"`
	ConversationHistory []domain.Turn `json:"conversation_history"`
	CurrentOptions      []string      `json:"current_options"`
	UserMessage         string        `json:"user_message"`
	Model               string        `json:"model"`
	APIKey              string        `json:"api_key"`
}

// Validate implements requestBody.
func (r *ConversationalOptionsRequest) Validate() error {
	var f fieldChecker
	f.requireString("decision", r.Decision)
	f.requireString("user_message", r.UserMessage)
	f.requireString("api_key", r.APIKey)
	if r.ConversationHistory == nil {
		f.addf("conversation_history is required and must be a list of {role, content} objects")
	}
	if r.CurrentOptions == nil {
		f.addf("current_options is required and must be a list of strings")
	}
	for i, turn := range r.ConversationHistory {
		if turn.Role != domain.TurnRoleUser && turn.Role != domain.TurnRoleAssistant {
			f.addf("conversation_history[%d].role must be %q or %q, got %q",
				i, domain.TurnRoleUser, domain.TurnRoleAssistant, turn.Role)
		}
	}
	return f.err()
}
