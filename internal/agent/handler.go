package agent

import "context"

// Role identifies one of the closed set of agent kinds. The bus dispatches
// on agent id; the role tags the handler for status and tracing.
type Role string

const (
	RoleSupervisor  Role = "supervisor"
	RoleSourcing    Role = "sourcing"
	RoleCompliance  Role = "compliance"
	RoleNegotiation Role = "negotiation"

	// RoleExternal tags edge endpoints that receive terminal responses (the
	// intake desk, test probes) without taking part in decisions.
	RoleExternal Role = "external"
)

// Well-known agent ids. One handler per role.
const (
	SupervisorID  = "supervisor_agent"
	SourcingID    = "sourcing_agent"
	ComplianceID  = "compliance_agent"
	NegotiationID = "negotiation_agent"
)

// Handler is the single capability every agent role implements: receive a
// message, decide, and return zero or more outbound messages. A handler runs
// to completion synchronously once invoked and must not call another agent's
// decision logic directly — all interaction goes through the bus.
type Handler interface {
	ID() string
	Role() Role
	Handle(ctx context.Context, msg Message) ([]Message, error)
}

// Result reports the outcome of one delivery.
type Result struct {
	Delivered bool
	Outbound  int
	Err       error
}
