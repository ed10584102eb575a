// Package stream defines the engine's event-sourced streaming protocol and
// a chunk-boundary-tolerant parser for it.
//
// Wire format is text-based, one event per logical unit:
//
//	event: <type>
//	data: <json payload>
//	<blank line>
//
// Event order is the producer's order; the parser relays FIFO and performs
// no deduplication.
package stream

import "encoding/json"

// EventType enumerates the closed set of streaming event kinds.
type EventType string

const (
	EventField                EventType = "field"
	EventResult               EventType = "result"
	EventEscalating           EventType = "escalating"
	EventConfirmationRequired EventType = "confirmation_required"
	EventError                EventType = "error"
	EventDone                 EventType = "done"
)

// FieldPayload is an incrementally delivered result field.
type FieldPayload struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// EscalatingPayload announces an automatic or user-triggered tier change.
type EscalatingPayload struct {
	FromTier int    `json:"from_tier"`
	ToTier   int    `json:"to_tier"`
	Reason   string `json:"reason,omitempty"`
}

// ConfirmationPayload asks the caller to confirm a fuzzy cache match before
// it is accepted. The caller resumes with a second call carrying
// confirm_match or force_refresh.
type ConfirmationPayload struct {
	MatchType   string  `json:"match_type"`
	SearchedFor string  `json:"searched_for"`
	MatchedTo   string  `json:"matched_to"`
	Confidence  float64 `json:"confidence"`
}

// ErrorInfo is the structured error payload crossing the engine boundary.
type ErrorInfo struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	UserMessage string `json:"user_message,omitempty"`
	Retryable   bool   `json:"retryable"`
	SupportRef  string `json:"support_ref,omitempty"`
}

// Event is the tagged union over all streaming event kinds. Exactly one
// payload field is set, matching Type; consumers switch exhaustively on
// Type. Events are ephemeral and never persisted.
type Event struct {
	Type         EventType
	Field        *FieldPayload
	Result       json.RawMessage
	Escalating   *EscalatingPayload
	Confirmation *ConfirmationPayload
	Error        *ErrorInfo
}

// FieldEvent builds a field event from a name and an already-marshalled
// JSON value.
func FieldEvent(name string, value json.RawMessage) Event {
	return Event{Type: EventField, Field: &FieldPayload{Name: name, Value: value}}
}

// ResultEvent builds a terminal result event carrying the full payload.
func ResultEvent(payload json.RawMessage) Event {
	return Event{Type: EventResult, Result: payload}
}

// EscalatingEvent builds an escalation notice.
func EscalatingEvent(from, to int, reason string) Event {
	return Event{Type: EventEscalating, Escalating: &EscalatingPayload{FromTier: from, ToTier: to, Reason: reason}}
}

// ConfirmationEvent builds a confirmation_required event.
func ConfirmationEvent(p ConfirmationPayload) Event {
	return Event{Type: EventConfirmationRequired, Confirmation: &p}
}

// ErrorEvent builds an error event.
func ErrorEvent(info ErrorInfo) Event {
	return Event{Type: EventError, Error: &info}
}

// DoneEvent builds the terminal done event.
func DoneEvent() Event {
	return Event{Type: EventDone}
}
