// Package agent defines the message vocabulary and runtime contract shared
// by every Tradewind agent role.
package agent

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an inter-agent message.
type Kind string

const (
	KindRequest      Kind = "request"
	KindResponse     Kind = "response"
	KindNotification Kind = "notification"
	KindError        Kind = "error"
)

// Escalation request_type values understood by the Supervisor. Any other
// value arriving in a NOTIFICATION is treated as a generic escalation.
const (
	EscalationNoSuppliers        = "no_suppliers_found"
	EscalationNegotiationFailure = "negotiation_failure"
	EscalationReview             = "escalate_for_review"
)

// Error codes carried in ERROR-kind payloads under "error_code".
const (
	ErrCodeRouting  = "routing_failure"
	ErrCodeDecision = "decision_failure"
)

// Payload is the structured content of a message. Schemas depend on the
// message kind and sender; agents augment copies, never the original.
type Payload map[string]any

// String returns the named field as a string, or "" if absent or mistyped.
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Float returns the named field as a float64, converting integer values.
func (p Payload) Float(key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Int returns the named field as an int, converting float values.
func (p Payload) Int(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Clone returns a shallow copy of the payload.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Message is a single inter-agent message. Immutable once sent: the bus
// assigns ID, Seq, and SentAt, and no field changes afterward.
type Message struct {
	ID             string
	From           string
	To             string
	Kind           Kind
	Payload        Payload
	ConversationID string
	Seq            int       // position within the conversation, assigned by the bus
	SentAt         time.Time // wall clock, for display
	SentMono       int64     // monotonic order across the whole history
}

// New builds a message with a fresh ID. The conversation id must be set by
// the caller: whoever starts a conversation mints it, every reply carries it
// unchanged.
func New(from, to string, kind Kind, conversationID string, payload Payload) Message {
	if payload == nil {
		payload = Payload{}
	}
	return Message{
		ID:             uuid.NewString(),
		From:           from,
		To:             to,
		Kind:           kind,
		Payload:        payload,
		ConversationID: conversationID,
	}
}

// Reply builds a message back along the conversation, from the recipient of
// m to its sender.
func Reply(m Message, kind Kind, payload Payload) Message {
	return New(m.To, m.From, kind, m.ConversationID, payload)
}

// RoutingError builds the ERROR message the bus returns to a sender whose
// recipient could not be found.
func RoutingError(original Message) Message {
	return New("bus", original.From, KindError, original.ConversationID, Payload{
		"error_code":          ErrCodeRouting,
		"unknown_recipient":   original.To,
		"original_message_id": original.ID,
		"summary":             fmt.Sprintf("no handler registered for %q", original.To),
	})
}

// Summary returns the payload's summary field, falling back to a terse
// kind/route description for display and audit rows.
func (m Message) Summary() string {
	if s := m.Payload.String("summary"); s != "" {
		return s
	}
	return fmt.Sprintf("%s %s -> %s", m.Kind, m.From, m.To)
}
