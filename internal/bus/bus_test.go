package bus

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/tradewind/tradewind/internal/agent"
	"github.com/tradewind/tradewind/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.MessageRecord{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func startBus(t *testing.T, db *gorm.DB, handlers ...agent.Handler) *Bus {
	t.Helper()
	var out bytes.Buffer
	b := New(Opts{DB: db, Out: &out})
	for _, h := range handlers {
		if err := b.Register(h); err != nil {
			t.Fatalf("register %s: %v", h.ID(), err)
		}
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start bus: %v", err)
	}
	t.Cleanup(b.Stop)
	return b
}

func TestRegister_DuplicateID(t *testing.T) {
	b := New(Opts{Out: &bytes.Buffer{}})
	if err := b.Register(&agent.MockAgent{AgentID: "a"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := b.Register(&agent.MockAgent{AgentID: "a"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestSend_PerConversationOrdering(t *testing.T) {
	sink := &agent.MockAgent{AgentID: "sink"}
	b := startBus(t, nil, sink)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		msg := agent.New("client", "sink", agent.KindRequest, "conv-1", agent.Payload{"n": i})
		if err := b.Send(ctx, msg); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	b.Wait()

	thread := b.History("conv-1")
	if len(thread) != 5 {
		t.Fatalf("history length = %d, want 5", len(thread))
	}
	for i, m := range thread {
		if m.ConversationID != "conv-1" {
			t.Fatalf("message %d has conversation %q", i, m.ConversationID)
		}
		if m.Seq != i+1 {
			t.Fatalf("message %d has seq %d, want %d", i, m.Seq, i+1)
		}
		if i > 0 && m.SentMono <= thread[i-1].SentMono {
			t.Fatal("monotonic order violated within conversation")
		}
		if m.Payload.Int("n") != i {
			t.Fatalf("message %d delivered out of send order", i)
		}
	}
}

func TestSend_ChainedDeliveryAndWait(t *testing.T) {
	// responder replies once; sink terminates the chain.
	sink := &agent.MockAgent{AgentID: "sink"}
	responder := &agent.MockAgent{
		AgentID: "responder",
		Respond: func(msg agent.Message) ([]agent.Message, error) {
			return []agent.Message{
				agent.New("responder", "sink", agent.KindResponse, msg.ConversationID, agent.Payload{"summary": "done"}),
			}, nil
		},
	}
	b := startBus(t, nil, sink, responder)

	msg := agent.New("client", "responder", agent.KindRequest, "conv-2", nil)
	if err := b.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	b.Wait()

	if got := len(sink.Received()); got != 1 {
		t.Fatalf("sink received %d messages, want 1", got)
	}
	if got := len(b.History("conv-2")); got != 2 {
		t.Fatalf("history length = %d, want 2", got)
	}
}

func TestSend_UnroutableBouncesToSender(t *testing.T) {
	alice := &agent.MockAgent{AgentID: "alice"}
	b := startBus(t, nil, alice)

	msg := agent.New("alice", "ghost", agent.KindRequest, "conv-3", nil)
	if err := b.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	b.Wait()

	received := alice.Received()
	if len(received) != 1 {
		t.Fatalf("alice received %d messages, want 1 bounce", len(received))
	}
	bounce := received[0]
	if bounce.Kind != agent.KindError {
		t.Fatalf("bounce kind = %s, want error", bounce.Kind)
	}
	if bounce.Payload.String("error_code") != agent.ErrCodeRouting {
		t.Fatalf("error_code = %q", bounce.Payload.String("error_code"))
	}
	if bounce.Payload.String("unknown_recipient") != "ghost" {
		t.Fatalf("unknown_recipient = %q", bounce.Payload.String("unknown_recipient"))
	}
	// Both the original and the bounce are in the thread.
	if got := len(b.History("conv-3")); got != 2 {
		t.Fatalf("history length = %d, want 2", got)
	}
}

func TestSend_UnroutableFromUnregisteredSender(t *testing.T) {
	b := startBus(t, nil)
	msg := agent.New("nobody", "ghost", agent.KindRequest, "conv-4", nil)
	if err := b.Send(context.Background(), msg); err == nil {
		t.Fatal("expected error when bounce has nowhere to go")
	}
}

func TestDeliver_HandlerErrorBecomesErrorMessage(t *testing.T) {
	alice := &agent.MockAgent{AgentID: "alice"}
	broken := &agent.MockAgent{AgentID: "broken", Err: errors.New("cannot classify")}
	b := startBus(t, nil, alice, broken)

	msg := agent.New("alice", "broken", agent.KindRequest, "conv-5", nil)
	if err := b.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	b.Wait()

	received := alice.Received()
	if len(received) != 1 {
		t.Fatalf("alice received %d messages, want 1", len(received))
	}
	if received[0].Kind != agent.KindError {
		t.Fatalf("kind = %s, want error", received[0].Kind)
	}
	if received[0].Payload.String("error_code") != agent.ErrCodeDecision {
		t.Fatalf("error_code = %q", received[0].Payload.String("error_code"))
	}
}

func TestCancel_DropsQueuedAndFutureMessages(t *testing.T) {
	sink := &agent.MockAgent{AgentID: "sink"}
	b := startBus(t, nil, sink)
	ctx := context.Background()

	if err := b.Send(ctx, agent.New("client", "sink", agent.KindRequest, "conv-6", nil)); err != nil {
		t.Fatalf("send: %v", err)
	}
	b.Wait()

	b.Cancel("conv-6")
	if !b.Cancelled("conv-6") {
		t.Fatal("conversation should be cancelled")
	}
	err := b.Send(ctx, agent.New("client", "sink", agent.KindRequest, "conv-6", nil))
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("send after cancel = %v, want ErrCancelled", err)
	}
	if got := len(sink.Received()); got != 1 {
		t.Fatalf("sink received %d messages, want 1", got)
	}
}

func TestSend_PersistsAuditRows(t *testing.T) {
	db := openTestDB(t)
	sink := &agent.MockAgent{AgentID: "sink"}
	b := startBus(t, db, sink)

	if err := b.Send(context.Background(), agent.New("client", "sink", agent.KindRequest, "conv-7", agent.Payload{"summary": "persist me"})); err != nil {
		t.Fatalf("send: %v", err)
	}
	b.Wait()

	var rows []models.MessageRecord
	if err := db.Find(&rows).Error; err != nil {
		t.Fatalf("load rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d audit rows, want 1", len(rows))
	}
	if rows[0].ConversationID != "conv-7" || rows[0].Summary != "persist me" {
		t.Fatalf("unexpected row: %+v", rows[0])
	}
}

func TestGlobalHistory_InterleavedConversations(t *testing.T) {
	sink := &agent.MockAgent{AgentID: "sink"}
	b := startBus(t, nil, sink)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		for _, conv := range []string{"conv-a", "conv-b"} {
			if err := b.Send(ctx, agent.New("client", "sink", agent.KindRequest, conv, agent.Payload{"n": i})); err != nil {
				t.Fatalf("send: %v", err)
			}
		}
	}
	b.Wait()

	if got := len(b.GlobalHistory()); got != 6 {
		t.Fatalf("global history = %d, want 6", got)
	}
	for _, conv := range []string{"conv-a", "conv-b"} {
		thread := b.History(conv)
		if len(thread) != 3 {
			t.Fatalf("%s length = %d, want 3", conv, len(thread))
		}
		for i, m := range thread {
			if m.Seq != i+1 {
				t.Fatalf("%s message %d has seq %d", conv, i, m.Seq)
			}
		}
	}
	convs := b.Conversations()
	if len(convs) != 2 {
		t.Fatalf("conversations = %d, want 2", len(convs))
	}
}

func TestStamp_PreservesCallerID(t *testing.T) {
	sink := &agent.MockAgent{AgentID: "sink"}
	b := startBus(t, nil, sink)

	msg := agent.New("client", "sink", agent.KindRequest, "conv-8", nil)
	id := msg.ID
	if err := b.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	b.Wait()

	thread := b.History("conv-8")
	if thread[0].ID != id {
		t.Fatalf("bus replaced id %s with %s", id, thread[0].ID)
	}
	if thread[0].SentAt.IsZero() {
		t.Fatal("sent timestamp not assigned")
	}
}
