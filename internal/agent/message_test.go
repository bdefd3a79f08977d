package agent

import (
	"strings"
	"testing"
)

func TestNew_AssignsIDAndConversation(t *testing.T) {
	m := New("a", "b", KindRequest, "conv-1", Payload{"summary": "hello"})
	if m.ID == "" {
		t.Fatal("expected a fresh id")
	}
	if m.ConversationID != "conv-1" {
		t.Fatalf("conversation id = %q, want conv-1", m.ConversationID)
	}
	if m.From != "a" || m.To != "b" || m.Kind != KindRequest {
		t.Fatalf("unexpected envelope: %+v", m)
	}
}

func TestNew_NilPayload(t *testing.T) {
	m := New("a", "b", KindNotification, "conv-1", nil)
	if m.Payload == nil {
		t.Fatal("expected non-nil payload")
	}
}

func TestReply_ReversesRouteKeepsConversation(t *testing.T) {
	orig := New("a", "b", KindRequest, "conv-9", nil)
	reply := Reply(orig, KindResponse, Payload{"summary": "done"})
	if reply.From != "b" || reply.To != "a" {
		t.Fatalf("reply route = %s -> %s, want b -> a", reply.From, reply.To)
	}
	if reply.ConversationID != "conv-9" {
		t.Fatalf("reply conversation = %q, want conv-9", reply.ConversationID)
	}
	if reply.ID == orig.ID {
		t.Fatal("reply must get its own id")
	}
}

func TestRoutingError_CarriesOriginal(t *testing.T) {
	orig := New("sender", "ghost", KindRequest, "conv-2", nil)
	errMsg := RoutingError(orig)
	if errMsg.Kind != KindError {
		t.Fatalf("kind = %s, want error", errMsg.Kind)
	}
	if errMsg.To != "sender" {
		t.Fatalf("error goes to %q, want sender", errMsg.To)
	}
	if errMsg.Payload.String("error_code") != ErrCodeRouting {
		t.Fatalf("error_code = %q, want %q", errMsg.Payload.String("error_code"), ErrCodeRouting)
	}
	if errMsg.Payload.String("unknown_recipient") != "ghost" {
		t.Fatalf("unknown_recipient = %q, want ghost", errMsg.Payload.String("unknown_recipient"))
	}
	if errMsg.Payload.String("original_message_id") != orig.ID {
		t.Fatal("original message id not carried")
	}
}

func TestPayload_TypedAccessors(t *testing.T) {
	p := Payload{"s": "x", "f": 1.5, "i": 3, "i64": int64(7)}
	if p.String("s") != "x" || p.String("missing") != "" {
		t.Fatal("String accessor")
	}
	if p.Float("f") != 1.5 || p.Float("i") != 3 {
		t.Fatal("Float accessor")
	}
	if p.Int("i64") != 7 || p.Int("f") != 1 {
		t.Fatal("Int accessor")
	}
}

func TestPayload_CloneIsShallowCopy(t *testing.T) {
	p := Payload{"k": "v"}
	c := p.Clone()
	c["k"] = "changed"
	if p.String("k") != "v" {
		t.Fatal("clone mutated the original")
	}
}

func TestSummary_FallsBackToRoute(t *testing.T) {
	m := New("a", "b", KindRequest, "conv", nil)
	if !strings.Contains(m.Summary(), "a -> b") {
		t.Fatalf("summary = %q", m.Summary())
	}
	m.Payload["summary"] = "explicit"
	if m.Summary() != "explicit" {
		t.Fatalf("summary = %q, want explicit", m.Summary())
	}
}

func TestProcurementRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     ProcurementRequest
		wantErr bool
	}{
		{"valid", ProcurementRequest{Category: "electronics", Budget: 1000, Urgency: UrgencyHigh}, false},
		{"missing category", ProcurementRequest{Budget: 1000}, true},
		{"zero budget", ProcurementRequest{Category: "electronics"}, true},
		{"bad urgency", ProcurementRequest{Category: "electronics", Budget: 1, Urgency: "panic"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProcurementRequest_ValidateFillsDefaults(t *testing.T) {
	req := ProcurementRequest{Category: "electronics", Budget: 500}
	if err := req.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if req.Quantity != 1 {
		t.Fatalf("quantity = %d, want 1", req.Quantity)
	}
	if req.Urgency != UrgencyMedium {
		t.Fatalf("urgency = %q, want medium", req.Urgency)
	}
}

func TestRequestPayload_RoundTrip(t *testing.T) {
	req := ProcurementRequest{Category: "logistics", Budget: 9000, Quantity: 2, Urgency: UrgencyLow}
	p := RequestPayload("procurement_request", req)
	got, ok := RequestFrom(p)
	if !ok {
		t.Fatal("request not found in payload")
	}
	if got != req {
		t.Fatalf("got %+v, want %+v", got, req)
	}
	if p.String("request_type") != "procurement_request" {
		t.Fatal("request_type missing")
	}
}

func TestFixedSampler_ReplaysSequence(t *testing.T) {
	s := &FixedSampler{Values: []float64{0.1, 0.9}}
	if s.Float64() != 0.1 || s.Float64() != 0.9 || s.Float64() != 0.1 {
		t.Fatal("sequence did not replay")
	}
}

func TestFixedSampler_EmptyDefaults(t *testing.T) {
	s := &FixedSampler{}
	if s.Float64() != 0.5 {
		t.Fatal("empty sampler should return 0.5")
	}
}

func TestNewSampler_Deterministic(t *testing.T) {
	a := NewSampler(42)
	b := NewSampler(42)
	for i := 0; i < 5; i++ {
		if a.Float64() != b.Float64() {
			t.Fatal("same seed must produce the same sequence")
		}
	}
}
