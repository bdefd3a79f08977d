package agent

import "fmt"

// Urgency levels for a procurement request.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// ProcurementRequest is the payload of a conversation's initiating message.
// Immutable after creation; agents carry copies through their payloads.
type ProcurementRequest struct {
	Category     string  `yaml:"category" json:"category"`
	Budget       float64 `yaml:"budget" json:"budget"`
	Quantity     int     `yaml:"quantity" json:"quantity"`
	Urgency      string  `yaml:"urgency" json:"urgency"`
	Requirements string  `yaml:"requirements" json:"requirements"`
}

// Validate checks the request fields and fills defaults.
func (r *ProcurementRequest) Validate() error {
	if r.Category == "" {
		return fmt.Errorf("agent: request: category is required")
	}
	if r.Budget <= 0 {
		return fmt.Errorf("agent: request: budget must be positive")
	}
	if r.Quantity <= 0 {
		r.Quantity = 1
	}
	switch r.Urgency {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
	case "":
		r.Urgency = UrgencyMedium
	default:
		return fmt.Errorf("agent: request: unknown urgency %q", r.Urgency)
	}
	return nil
}

// BudgetPerUnit returns the budget divided across the requested quantity.
func (r ProcurementRequest) BudgetPerUnit() float64 {
	q := r.Quantity
	if q < 1 {
		q = 1
	}
	return r.Budget / float64(q)
}

// RequestPayload embeds a procurement request into a message payload under
// the keys the downstream agents read.
func RequestPayload(requestType string, req ProcurementRequest) Payload {
	return Payload{
		"request_type": requestType,
		"request":      req,
		"summary":      fmt.Sprintf("procurement request: %s, budget %.0f, urgency %s", req.Category, req.Budget, req.Urgency),
	}
}

// RequestFrom extracts a procurement request previously embedded with
// RequestPayload. The second return is false if the payload carries none.
func RequestFrom(p Payload) (ProcurementRequest, bool) {
	req, ok := p["request"].(ProcurementRequest)
	return req, ok
}
