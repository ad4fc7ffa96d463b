// Package llm provides the gateway to the upstream chat-completions provider.
//
// The service never holds provider credentials of its own: every Request
// carries the caller-supplied API key, and each call is a single best-effort
// attempt with no retry, backoff, or circuit breaking.
package llm

import (
	"context"
	"errors"
)

// Roles used in chat messages.
const (
	RoleSystem    = "system"
	RoleDeveloper = "developer"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one chat-completion call.
type Request struct {
	Model    string
	Messages []Message

	// APIKey authenticates the call upstream. It is used for the single
	// outbound request and never stored.
	APIKey string
}

// ErrEmptyReply is returned when the provider answers successfully but with
// no usable message content.
var ErrEmptyReply = errors.New("provider returned an empty reply")

// Client is the interface handlers use to reach the provider.
type Client interface {
	// Complete returns the full text of a single chat completion.
	Complete(ctx context.Context, req Request) (string, error)

	// Stream starts a streaming completion and returns a channel of text
	// fragments in arrival order. The producer closes the channel when the
	// provider signals completion; cancelling ctx stops consumption.
	Stream(ctx context.Context, req Request) (<-chan string, error)
}
