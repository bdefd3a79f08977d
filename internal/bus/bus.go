// Package bus routes messages between agents and keeps the append-only
// history that serves as the system's audit trail. The bus only routes; it
// holds no business logic.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/tradewind/tradewind/internal/agent"
	"github.com/tradewind/tradewind/internal/models"
	"gorm.io/gorm"
)

// DefaultInboxSize is the per-agent inbox channel capacity.
const DefaultInboxSize = 128

// ErrCancelled is returned by Send for conversations that have been
// externally cancelled.
var ErrCancelled = fmt.Errorf("bus: conversation cancelled")

// Bus delivers messages between registered agent handlers. Each agent gets
// one bounded inbox drained by a dedicated worker, so a handler never runs
// two deliveries at once and per-conversation order equals send order (a
// conversation has at most one message in flight: handlers run to completion
// before their outbound messages are sent).
type Bus struct {
	db  *gorm.DB
	out io.Writer

	mu        sync.RWMutex
	handlers  map[string]agent.Handler
	inboxes   map[string]chan agent.Message
	history   []agent.Message
	threads   map[string][]agent.Message
	seq       map[string]int
	mono      int64
	cancelled map[string]bool
	started   bool

	inflight sync.WaitGroup
	workers  sync.WaitGroup
	done     chan struct{}
}

// Opts holds parameters for creating a Bus.
type Opts struct {
	DB        *gorm.DB  // optional; enables persisted audit rows
	Out       io.Writer // defaults to os.Stdout
	InboxSize int       // defaults to DefaultInboxSize
}

// New creates a Bus.
func New(opts Opts) *Bus {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Bus{
		db:        opts.DB,
		out:       out,
		handlers:  make(map[string]agent.Handler),
		inboxes:   make(map[string]chan agent.Message),
		threads:   make(map[string][]agent.Message),
		seq:       make(map[string]int),
		cancelled: make(map[string]bool),
		done:      make(chan struct{}),
	}
}

// Register binds an agent handler to its id. Must be called before Start.
func (b *Bus) Register(h agent.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return fmt.Errorf("bus: register %s: bus already started", h.ID())
	}
	if _, ok := b.handlers[h.ID()]; ok {
		return fmt.Errorf("bus: handler %q already registered", h.ID())
	}
	b.handlers[h.ID()] = h
	b.inboxes[h.ID()] = make(chan agent.Message, DefaultInboxSize)
	return nil
}

// Start launches one delivery worker per registered agent. Workers run until
// ctx is cancelled or Stop is called.
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return fmt.Errorf("bus: already started")
	}
	b.started = true
	ids := make([]string, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	for _, id := range ids {
		b.workers.Add(1)
		go b.runWorker(ctx, id)
	}
	return nil
}

// Stop shuts the bus down and waits for workers to exit. Messages still
// queued are dropped.
func (b *Bus) Stop() {
	b.mu.Lock()
	select {
	case <-b.done:
	default:
		close(b.done)
	}
	b.mu.Unlock()
	b.workers.Wait()
}

// Wait blocks until every in-flight message has been delivered and every
// message it produced has been delivered in turn. Used by one-shot commands
// and tests to detect workflow quiescence.
func (b *Bus) Wait() {
	b.inflight.Wait()
}

// Send assigns identity and ordering to the message, appends it to the
// history and its conversation thread, persists the audit row, and queues it
// for delivery. Unknown recipients produce a ROUTING_FAILURE ERROR message
// back to the sender — never a silent drop.
func (b *Bus) Send(ctx context.Context, msg agent.Message) error {
	b.mu.Lock()
	if b.cancelled[msg.ConversationID] {
		b.mu.Unlock()
		return ErrCancelled
	}
	b.stamp(&msg)
	b.history = append(b.history, msg)
	b.threads[msg.ConversationID] = append(b.threads[msg.ConversationID], msg)
	inbox, routable := b.inboxes[msg.To]
	b.mu.Unlock()

	fmt.Fprintf(b.out, "bus: %s -> %s [%s] %s\n", msg.From, msg.To, msg.Kind, msg.Summary())
	b.persist(msg)

	if !routable {
		return b.bounce(ctx, msg)
	}

	b.inflight.Add(1)
	select {
	case inbox <- msg:
		return nil
	case <-b.done:
		b.inflight.Done()
		return fmt.Errorf("bus: send %s -> %s: bus stopped", msg.From, msg.To)
	case <-ctx.Done():
		b.inflight.Done()
		return fmt.Errorf("bus: send %s -> %s: %w", msg.From, msg.To, ctx.Err())
	}
}

// stamp assigns id, sequence, and timestamps. Caller holds b.mu.
func (b *Bus) stamp(msg *agent.Message) {
	if msg.ID == "" {
		*msg = agent.New(msg.From, msg.To, msg.Kind, msg.ConversationID, msg.Payload)
	}
	b.seq[msg.ConversationID]++
	msg.Seq = b.seq[msg.ConversationID]
	b.mono++
	msg.SentMono = b.mono
	msg.SentAt = time.Now().UTC()
}

// bounce reports an unroutable message back to its sender as an ERROR. A
// bounce whose sender is also unregistered is recorded but goes nowhere.
func (b *Bus) bounce(ctx context.Context, msg agent.Message) error {
	fmt.Fprintf(b.out, "bus: no handler for %q, bouncing to %s\n", msg.To, msg.From)
	errMsg := agent.RoutingError(msg)

	b.mu.Lock()
	b.stamp(&errMsg)
	b.history = append(b.history, errMsg)
	b.threads[errMsg.ConversationID] = append(b.threads[errMsg.ConversationID], errMsg)
	inbox, ok := b.inboxes[errMsg.To]
	b.mu.Unlock()

	b.persist(errMsg)
	if !ok {
		return fmt.Errorf("bus: unroutable message to %q from unregistered sender %q", msg.To, msg.From)
	}

	b.inflight.Add(1)
	select {
	case inbox <- errMsg:
	case <-b.done:
		b.inflight.Done()
	case <-ctx.Done():
		b.inflight.Done()
	}
	return nil
}

// runWorker drains one agent's inbox, delivering messages one at a time.
func (b *Bus) runWorker(ctx context.Context, agentID string) {
	defer b.workers.Done()
	b.mu.RLock()
	inbox := b.inboxes[agentID]
	b.mu.RUnlock()

	for {
		select {
		case <-b.done:
			return
		case <-ctx.Done():
			return
		case msg := <-inbox:
			b.deliver(ctx, msg)
			b.inflight.Done()
		}
	}
}

// deliver invokes the recipient's handler and sends whatever it returns. A
// cancelled conversation's messages are dropped before the handler sees
// them. Handler errors become ERROR messages back to the sender — an agent
// failure must never take the process down.
func (b *Bus) deliver(ctx context.Context, msg agent.Message) agent.Result {
	if b.Cancelled(msg.ConversationID) {
		fmt.Fprintf(b.out, "bus: dropping delivery to %s, conversation %s cancelled\n", msg.To, msg.ConversationID)
		return agent.Result{}
	}

	b.mu.RLock()
	h := b.handlers[msg.To]
	b.mu.RUnlock()
	if h == nil {
		return agent.Result{}
	}

	outbound, err := h.Handle(ctx, msg)
	if err != nil {
		log.Printf("bus: handler %s: %v", msg.To, err)
		reply := agent.Reply(msg, agent.KindError, agent.Payload{
			"error_code":          agent.ErrCodeDecision,
			"error":               err.Error(),
			"original_message_id": msg.ID,
			"summary":             fmt.Sprintf("%s could not process %s message", msg.To, msg.Kind),
		})
		if msg.From != "bus" && msg.From != "" {
			if sendErr := b.Send(ctx, reply); sendErr != nil {
				log.Printf("bus: send error reply: %v", sendErr)
			}
		}
		return agent.Result{Delivered: true, Err: err}
	}

	for _, out := range outbound {
		if sendErr := b.Send(ctx, out); sendErr != nil {
			log.Printf("bus: send outbound from %s: %v", msg.To, sendErr)
		}
	}
	return agent.Result{Delivered: true, Outbound: len(outbound)}
}

// persist writes the audit row. Best-effort: a failed write is logged, the
// in-memory history already holds the message.
func (b *Bus) persist(msg agent.Message) {
	if b.db == nil {
		return
	}
	payloadJSON, err := json.Marshal(msg.Payload)
	if err != nil {
		payloadJSON = []byte("{}")
	}
	rec := models.MessageRecord{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		Seq:            msg.Seq,
		FromAgent:      msg.From,
		ToAgent:        msg.To,
		Kind:           string(msg.Kind),
		Summary:        msg.Summary(),
		PayloadJSON:    string(payloadJSON),
		SentAt:         msg.SentAt,
	}
	if err := b.db.Create(&rec).Error; err != nil {
		log.Printf("bus: persist message %s: %v", msg.ID, err)
	}
}

// Cancel marks a conversation cancelled. Queued and future messages for it
// are dropped before delivery; the thread itself is retained for audit.
func (b *Bus) Cancel(conversationID string) {
	b.mu.Lock()
	b.cancelled[conversationID] = true
	b.mu.Unlock()
	fmt.Fprintf(b.out, "bus: conversation %s cancelled\n", conversationID)
}

// Cancelled reports whether a conversation has been cancelled.
func (b *Bus) Cancelled(conversationID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cancelled[conversationID]
}

// History returns a copy of one conversation's messages in send order.
func (b *Bus) History(conversationID string) []agent.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	thread := b.threads[conversationID]
	out := make([]agent.Message, len(thread))
	copy(out, thread)
	return out
}

// GlobalHistory returns a copy of every message in send order.
func (b *Bus) GlobalHistory() []agent.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]agent.Message, len(b.history))
	copy(out, b.history)
	return out
}

// Conversations returns the ids of every conversation seen, with the wall
// clock of its most recent message.
func (b *Bus) Conversations() map[string]time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]time.Time, len(b.threads))
	for id, thread := range b.threads {
		if len(thread) > 0 {
			out[id] = thread[len(thread)-1].SentAt
		}
	}
	return out
}
