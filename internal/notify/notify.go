// Package notify defines the outbound notifier contract for surfacing
// escalations and terminal outcomes to a chat platform. The supervisor posts
// events; platform packages implement the transport.
package notify

import (
	"context"
	"fmt"
	"sync"
)

// Event severity levels, mapped to attachment colors by the platforms.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Field is one name/value pair rendered inside an event.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Event is a formatted notification.
type Event struct {
	Title  string
	Body   string
	Level  string
	Fields []Field
}

// Notifier posts events to a chat platform.
type Notifier interface {
	// Connect establishes the platform connection.
	Connect(ctx context.Context) error
	// Post delivers one event.
	Post(ctx context.Context, evt Event) error
	// Close shuts the notifier down.
	Close() error
}

// LevelColor maps a severity level to an attachment color hex.
func LevelColor(level string) string {
	switch level {
	case LevelWarning:
		return "#f2c744"
	case LevelError:
		return "#d0342c"
	default:
		return "#36a64f"
	}
}

// MockNotifier records posted events for tests.
type MockNotifier struct {
	mu     sync.Mutex
	Events []Event

	ConnectErr error
	PostErr    error
}

func (m *MockNotifier) Connect(ctx context.Context) error { return m.ConnectErr }

func (m *MockNotifier) Post(ctx context.Context, evt Event) error {
	if m.PostErr != nil {
		return m.PostErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, evt)
	return nil
}

func (m *MockNotifier) Close() error { return nil }

// Posted returns a copy of the recorded events.
func (m *MockNotifier) Posted() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.Events))
	copy(out, m.Events)
	return out
}

var _ Notifier = (*MockNotifier)(nil)

// ErrNoPlatform is returned when a notifier is requested without a platform
// configured.
var ErrNoPlatform = fmt.Errorf("notify: no platform configured")
