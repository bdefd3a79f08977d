// Package trace is the read side of the audit trail: conversation listings
// and status derivation over bus history, the abandoned-conversation
// sweeper, and the periodic activity digest.
package trace

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/tradewind/tradewind/internal/agent"
	"github.com/tradewind/tradewind/internal/bus"
	"github.com/tradewind/tradewind/internal/config"
	"github.com/tradewind/tradewind/internal/notify"
	"github.com/tradewind/tradewind/internal/supervisor"
)

// Conversation summarizes one message thread for trace consumers.
type Conversation struct {
	ConversationID string    `json:"conversation_id"`
	Messages       int       `json:"messages"`
	Status         string    `json:"status"`
	Category       string    `json:"category,omitempty"`
	Retries        int       `json:"retries"`
	Guidance       string    `json:"guidance,omitempty"`
	LastActivity   time.Time `json:"last_activity"`
	Abandoned      bool      `json:"abandoned"`
}

// Entry is one history line rendered for display.
type Entry struct {
	Seq     int       `json:"seq"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Kind    string    `json:"kind"`
	Summary string    `json:"summary"`
	SentAt  time.Time `json:"sent_at"`
}

// Tracer answers observability queries over the bus and supervisor state.
type Tracer struct {
	cfg      config.TraceConfig
	bus      *bus.Bus
	sup      *supervisor.Agent
	notifier notify.Notifier
	out      io.Writer
	now      func() time.Time // swapped in tests
}

// Opts holds parameters for creating a Tracer.
type Opts struct {
	Config   config.TraceConfig
	Bus      *bus.Bus
	Sup      *supervisor.Agent
	Notifier notify.Notifier // optional; receives the periodic digest
	Out      io.Writer
}

// New creates a Tracer.
func New(opts Opts) (*Tracer, error) {
	if opts.Bus == nil {
		return nil, fmt.Errorf("trace: bus is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Tracer{cfg: opts.Config, bus: opts.Bus, sup: opts.Sup, notifier: opts.Notifier, out: out, now: time.Now}, nil
}

// Conversations lists every conversation, most recent activity first.
func (t *Tracer) Conversations() []Conversation {
	seen := t.bus.Conversations()
	out := make([]Conversation, 0, len(seen))
	for id, last := range seen {
		out = append(out, t.summarize(id, last))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}

// Conversation returns one conversation's summary. The second return is
// false for unknown ids.
func (t *Tracer) Conversation(conversationID string) (Conversation, bool) {
	thread := t.bus.History(conversationID)
	if len(thread) == 0 {
		return Conversation{}, false
	}
	return t.summarize(conversationID, thread[len(thread)-1].SentAt), true
}

func (t *Tracer) summarize(conversationID string, last time.Time) Conversation {
	c := Conversation{
		ConversationID: conversationID,
		Messages:       len(t.bus.History(conversationID)),
		LastActivity:   last,
		Status:         "in_flight",
	}
	if t.sup != nil {
		if st, ok := t.sup.StatusOf(conversationID); ok {
			c.Status = st.Status
			c.Category = st.Category
			c.Retries = st.Retries
			c.Guidance = st.Guidance
		}
	}
	if t.bus.Cancelled(conversationID) {
		c.Status = "cancelled"
	}
	if c.Status == "active" || c.Status == "in_flight" {
		idle := time.Duration(t.cfg.AbandonAfterMin) * time.Minute
		if idle > 0 && t.now().Sub(last) > idle {
			c.Abandoned = true
			c.Status = "abandoned"
		}
	}
	return c
}

// History renders one conversation's thread in send order.
func (t *Tracer) History(conversationID string) []Entry {
	thread := t.bus.History(conversationID)
	out := make([]Entry, 0, len(thread))
	for _, m := range thread {
		out = append(out, entryFrom(m))
	}
	return out
}

// GlobalHistory renders the whole audit trail in send order.
func (t *Tracer) GlobalHistory() []Entry {
	history := t.bus.GlobalHistory()
	out := make([]Entry, 0, len(history))
	for _, m := range history {
		out = append(out, entryFrom(m))
	}
	return out
}

func entryFrom(m agent.Message) Entry {
	return Entry{
		Seq:     m.Seq,
		From:    m.From,
		To:      m.To,
		Kind:    string(m.Kind),
		Summary: m.Summary(),
		SentAt:  m.SentAt,
	}
}

// Digest is a point-in-time activity rollup.
type Digest struct {
	GeneratedAt   time.Time `json:"generated_at"`
	Conversations int       `json:"conversations"`
	Messages      int       `json:"messages"`
	Completed     int       `json:"completed"`
	Guidance      int       `json:"guidance"`
	Abandoned     int       `json:"abandoned"`
	InFlight      int       `json:"in_flight"`
}

// BuildDigest computes the current activity rollup.
func (t *Tracer) BuildDigest() Digest {
	d := Digest{GeneratedAt: time.Now().UTC()}
	d.Messages = len(t.bus.GlobalHistory())
	for _, c := range t.Conversations() {
		d.Conversations++
		switch c.Status {
		case "completed":
			d.Completed++
		case "market_limitations":
			d.Guidance++
		case "abandoned":
			d.Abandoned++
		default:
			d.InFlight++
		}
	}
	return d
}
