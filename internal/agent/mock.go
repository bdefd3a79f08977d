package agent

import (
	"context"
	"sync"
)

// MockAgent is a scriptable handler for tests and edge endpoints. It records
// every delivered message and replies with whatever Respond returns.
type MockAgent struct {
	AgentID   string
	AgentRole Role
	// Respond, when set, produces the outbound messages for each delivery.
	Respond func(msg Message) ([]Message, error)
	// Err, when set, is returned from every Handle call.
	Err error

	mu       sync.Mutex
	received []Message
}

func (m *MockAgent) ID() string { return m.AgentID }

func (m *MockAgent) Role() Role {
	if m.AgentRole == "" {
		return RoleExternal
	}
	return m.AgentRole
}

func (m *MockAgent) Handle(ctx context.Context, msg Message) ([]Message, error) {
	m.mu.Lock()
	m.received = append(m.received, msg)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Respond != nil {
		return m.Respond(msg)
	}
	return nil, nil
}

// Received returns a copy of every message delivered so far.
func (m *MockAgent) Received() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.received))
	copy(out, m.received)
	return out
}

var _ Handler = (*MockAgent)(nil)
