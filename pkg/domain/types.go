// Package domain defines the request-scoped value types shared across the
// decision-support API. Nothing here is persisted; every value lives for a
// single request.
package domain

// Criterion is a named evaluation criterion with a weight intended to be a
// percentage point in 0-100. A list of criteria should sum to roughly 100;
// the normalizer rescales when that invariant drifts too far.
type Criterion struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Turn is one conversation turn supplied by the caller.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn roles accepted in conversation history.
const (
	TurnRoleUser      = "user"
	TurnRoleAssistant = "assistant"
)
