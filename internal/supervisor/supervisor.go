// Package supervisor implements the facilitating agent. It starts
// conversations, absorbs escalations, re-issues bounded retries, and turns
// exhausted retries into business guidance instead of hard failures. It is
// the only writer into the learning engine.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tradewind/tradewind/internal/agent"
	"github.com/tradewind/tradewind/internal/catalog"
	"github.com/tradewind/tradewind/internal/config"
	"github.com/tradewind/tradewind/internal/learning"
	"github.com/tradewind/tradewind/internal/models"
	"github.com/tradewind/tradewind/internal/notify"
	"gorm.io/gorm"
)

// DefaultRequester receives terminal responses when the intake caller does
// not name an endpoint of its own.
const DefaultRequester = "procurement_desk"

// Sender is the bus capability the supervisor needs to open conversations.
type Sender interface {
	Send(ctx context.Context, msg agent.Message) error
}

// workflow is the supervisor's per-conversation state.
type workflow struct {
	req        agent.ProcurementRequest
	requester  string
	retries    int
	perTrigger map[string]int
	status     string
	guidance   string
	selected   *learning.Outcome
}

// Status is a read-only snapshot of one workflow for trace consumers.
type Status struct {
	ConversationID   string  `json:"conversation_id"`
	Category         string  `json:"category"`
	Status           string  `json:"status"`
	Retries          int     `json:"retries"`
	SelectedSupplier string  `json:"selected_supplier,omitempty"`
	SavingsPct       float64 `json:"savings_pct,omitempty"`
	Guidance         string  `json:"guidance,omitempty"`
}

// Agent is the supervisor role.
type Agent struct {
	cfg      config.SupervisorConfig
	bus      Sender
	engine   *learning.Engine
	db       *gorm.DB
	notifier notify.Notifier
	out      io.Writer

	mu        sync.Mutex
	workflows map[string]*workflow
}

// Opts holds parameters for creating a supervisor Agent.
type Opts struct {
	Config   config.SupervisorConfig
	Bus      Sender
	Engine   *learning.Engine
	DB       *gorm.DB        // optional; enables procurement records
	Notifier notify.Notifier // optional; posts escalations and outcomes
	Out      io.Writer
}

// New creates a supervisor Agent.
func New(opts Opts) (*Agent, error) {
	if opts.Bus == nil {
		return nil, fmt.Errorf("supervisor: bus is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("supervisor: learning engine is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Agent{
		cfg:       opts.Config,
		bus:       opts.Bus,
		engine:    opts.Engine,
		db:        opts.DB,
		notifier:  opts.Notifier,
		out:       out,
		workflows: make(map[string]*workflow),
	}, nil
}

func (a *Agent) ID() string       { return agent.SupervisorID }
func (a *Agent) Role() agent.Role { return agent.RoleSupervisor }

// Initiate starts a procurement conversation and returns its id. The
// requester id names who receives the terminal response; empty means the
// default desk.
func (a *Agent) Initiate(ctx context.Context, req agent.ProcurementRequest, requester string) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if requester == "" {
		requester = DefaultRequester
	}
	conversationID := uuid.NewString()

	a.mu.Lock()
	a.workflows[conversationID] = &workflow{
		req:        req,
		requester:  requester,
		perTrigger: make(map[string]int),
		status:     models.ProcurementActive,
	}
	a.mu.Unlock()

	if a.db != nil {
		rec := models.ProcurementRecord{
			ConversationID: conversationID,
			Category:       req.Category,
			Budget:         req.Budget,
			Quantity:       req.Quantity,
			Urgency:        req.Urgency,
			Requirements:   req.Requirements,
			Status:         models.ProcurementActive,
		}
		if err := a.db.Create(&rec).Error; err != nil {
			log.Printf("supervisor: create procurement record: %v", err)
		}
	}

	fmt.Fprintf(a.out, "supervisor: starting procurement %s for %s\n", conversationID, req.Category)
	msg := agent.New(a.ID(), agent.SourcingID, agent.KindRequest, conversationID,
		agent.RequestPayload("procurement_request", req))
	if err := a.bus.Send(ctx, msg); err != nil {
		return "", fmt.Errorf("supervisor: initiate: %w", err)
	}
	return conversationID, nil
}

// Handle processes escalations and the terminal response. The lock is held
// across the whole decision so Statuses readers never see a half-applied
// transition.
func (a *Agent) Handle(ctx context.Context, msg agent.Message) ([]agent.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	wf, ok := a.workflows[msg.ConversationID]
	if !ok {
		log.Printf("supervisor: message for unknown conversation %s, ignoring", msg.ConversationID)
		return nil, nil
	}
	if wf.status != models.ProcurementActive {
		// Late arrivals after a terminal disposition change nothing.
		return nil, nil
	}

	switch msg.Kind {
	case agent.KindResponse:
		return a.handleResult(ctx, msg, wf)
	case agent.KindNotification:
		return a.handleEscalation(ctx, msg, wf)
	case agent.KindError:
		return a.retry(msg, wf, "agent_error", agent.Payload{"relaxed": true},
			fmt.Sprintf("agent error: %s", msg.Summary()))
	default:
		return nil, nil
	}
}

// handleResult finishes a successful negotiation: outcomes feed the learning
// engine, the record closes, and the requester gets the selection.
func (a *Agent) handleResult(ctx context.Context, msg agent.Message, wf *workflow) ([]agent.Message, error) {
	selected, ok := msg.Payload["outcome"].(learning.Outcome)
	if !ok {
		return a.retry(msg, wf, "agent_error", agent.Payload{"relaxed": true},
			"terminal response carried no negotiation outcome")
	}
	outcomes, _ := msg.Payload["outcomes"].([]learning.Outcome)
	if len(outcomes) == 0 {
		outcomes = []learning.Outcome{selected}
	}
	for _, o := range outcomes {
		if err := a.engine.RecordOutcome(o); err != nil {
			log.Printf("supervisor: record outcome for %s: %v", o.SupplierID, err)
		}
	}

	wf.status = models.ProcurementCompleted
	wf.selected = &selected
	a.finishRecord(msg.ConversationID, wf, func(rec *models.ProcurementRecord) {
		rec.Status = models.ProcurementCompleted
		rec.SelectedSupplier = selected.SupplierID
		rec.SavingsPct = selected.SavingsPct
	})

	fmt.Fprintf(a.out, "supervisor: procurement %s completed with %s (%.1f%% savings)\n",
		msg.ConversationID, selected.SupplierName, selected.SavingsPct*100)
	a.post(ctx, notify.Event{
		Title: "Procurement completed",
		Body:  msg.Summary(),
		Level: notify.LevelInfo,
		Fields: []notify.Field{
			{Name: "Conversation", Value: msg.ConversationID, Short: true},
			{Name: "Supplier", Value: selected.SupplierName, Short: true},
			{Name: "Savings", Value: fmt.Sprintf("%.1f%%", selected.SavingsPct*100), Short: true},
		},
	})

	final := agent.New(a.ID(), wf.requester, agent.KindResponse, msg.ConversationID, agent.Payload{
		"request_type": "procurement_result",
		"status":       models.ProcurementCompleted,
		"outcome":      selected,
		"summary":      msg.Summary(),
	})
	return []agent.Message{final}, nil
}

// handleEscalation applies the recovery protocol for each escalation type.
// Unrecognized request_type values are generic escalations and end the
// conversation with guidance rather than guessing at recovery.
func (a *Agent) handleEscalation(ctx context.Context, msg agent.Message, wf *workflow) ([]agent.Message, error) {
	requestType := msg.Payload.String("request_type")
	fmt.Fprintf(a.out, "supervisor: escalation %q on %s\n", requestType, msg.ConversationID)
	a.post(ctx, notify.Event{
		Title: "Escalation: " + requestType,
		Body:  msg.Summary(),
		Level: notify.LevelWarning,
		Fields: []notify.Field{
			{Name: "Conversation", Value: msg.ConversationID, Short: true},
			{Name: "From", Value: msg.From, Short: true},
		},
	})

	switch requestType {
	case agent.EscalationNoSuppliers:
		return a.retry(msg, wf, requestType, agent.Payload{"relaxed": true},
			"no suppliers found under current criteria")
	case agent.EscalationNegotiationFailure:
		return a.retry(msg, wf, requestType, agent.Payload{"relaxed": true, "expand_pool": true},
			"negotiation failed with every approved supplier")
	case agent.EscalationReview:
		return a.review(msg, wf)
	default:
		return a.terminate(msg.ConversationID, wf,
			fmt.Sprintf("escalation %q needs manual follow-up; no automatic recovery applies", requestType)), nil
	}
}

// review is the supervisor standing in for a human sign-off on a high-risk,
// low-confidence assessment: the candidates proceed to negotiation under an
// explicit review caveat, or the conversation ends with guidance when there
// is nothing to approve.
func (a *Agent) review(msg agent.Message, wf *workflow) ([]agent.Message, error) {
	suppliers, _ := msg.Payload["suppliers"].([]catalog.Supplier)
	if len(suppliers) == 0 {
		return a.terminate(msg.ConversationID, wf,
			"compliance review found no approvable suppliers; revisit requirements or budget"), nil
	}
	fmt.Fprintf(a.out, "supervisor: review override, %d supplier(s) proceed under caveat\n", len(suppliers))
	next := agent.New(a.ID(), agent.NegotiationID, agent.KindRequest, msg.ConversationID, agent.Payload{
		"request_type": "negotiate",
		"request":      wf.req,
		"suppliers":    suppliers,
		"action":       "conditional_approval",
		"caveats":      []string{"approved under supervisor review, monitor closely"},
		"rationale":    msg.Payload.String("rationale"),
		"summary":      fmt.Sprintf("supervisor review cleared %d supplier(s) for negotiation", len(suppliers)),
	})
	return []agent.Message{next}, nil
}

// retry re-issues the sourcing request with recovery hints, unless the
// retry budget or the per-trigger expansion bound is exhausted.
func (a *Agent) retry(msg agent.Message, wf *workflow, trigger string, hints agent.Payload, reason string) ([]agent.Message, error) {
	if wf.retries >= a.cfg.RetryBudget || wf.perTrigger[trigger] >= a.cfg.ExpansionsPerTrigger {
		return a.terminate(msg.ConversationID, wf,
			fmt.Sprintf("retries exhausted after %d attempt(s): %s", wf.retries, reason)), nil
	}
	wf.retries++
	wf.perTrigger[trigger]++
	a.updateRecord(msg.ConversationID, map[string]any{"retries": wf.retries})

	fmt.Fprintf(a.out, "supervisor: retry %d/%d on %s (%s)\n", wf.retries, a.cfg.RetryBudget, msg.ConversationID, trigger)
	payload := agent.RequestPayload("procurement_request", wf.req)
	for k, v := range hints {
		payload[k] = v
	}
	payload["summary"] = fmt.Sprintf("retry %d: %s", wf.retries, reason)
	return []agent.Message{agent.New(a.ID(), agent.SourcingID, agent.KindRequest, msg.ConversationID, payload)}, nil
}

// terminate closes the workflow with business guidance. Market failure is a
// legitimate outcome, not a system error.
func (a *Agent) terminate(conversationID string, wf *workflow, guidance string) []agent.Message {
	wf.status = models.ProcurementMarketLimitations
	wf.guidance = guidance
	a.finishRecord(conversationID, wf, func(rec *models.ProcurementRecord) {
		rec.Status = models.ProcurementMarketLimitations
		rec.Retries = wf.retries
		rec.Guidance = guidance
	})

	fmt.Fprintf(a.out, "supervisor: procurement %s closed with guidance: %s\n", conversationID, guidance)
	a.post(context.Background(), notify.Event{
		Title:  "Procurement closed: market limitations",
		Body:   guidance,
		Level:  notify.LevelError,
		Fields: []notify.Field{{Name: "Conversation", Value: conversationID, Short: true}},
	})

	final := agent.New(a.ID(), wf.requester, agent.KindResponse, conversationID, agent.Payload{
		"request_type": "business_guidance",
		"status":       models.ProcurementMarketLimitations,
		"guidance":     guidance,
		"summary":      "market limitations: " + guidance,
	})
	return []agent.Message{final}
}

// Statuses returns a snapshot of every workflow the supervisor has seen.
func (a *Agent) Statuses() []Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Status, 0, len(a.workflows))
	for id, wf := range a.workflows {
		st := Status{
			ConversationID: id,
			Category:       wf.req.Category,
			Status:         wf.status,
			Retries:        wf.retries,
			Guidance:       wf.guidance,
		}
		if wf.selected != nil {
			st.SelectedSupplier = wf.selected.SupplierID
			st.SavingsPct = wf.selected.SavingsPct
		}
		out = append(out, st)
	}
	return out
}

// StatusOf returns one workflow's snapshot.
func (a *Agent) StatusOf(conversationID string) (Status, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	wf, ok := a.workflows[conversationID]
	if !ok {
		return Status{}, false
	}
	st := Status{
		ConversationID: conversationID,
		Category:       wf.req.Category,
		Status:         wf.status,
		Retries:        wf.retries,
		Guidance:       wf.guidance,
	}
	if wf.selected != nil {
		st.SelectedSupplier = wf.selected.SupplierID
		st.SavingsPct = wf.selected.SavingsPct
	}
	return st, true
}

// MarkCancelled records an external cancellation against the workflow.
func (a *Agent) MarkCancelled(conversationID string) {
	a.mu.Lock()
	if wf, ok := a.workflows[conversationID]; ok && wf.status == models.ProcurementActive {
		wf.status = models.ProcurementCancelled
	}
	a.mu.Unlock()
	a.updateRecord(conversationID, map[string]any{"status": models.ProcurementCancelled})
}

func (a *Agent) finishRecord(conversationID string, wf *workflow, mutate func(*models.ProcurementRecord)) {
	if a.db == nil {
		return
	}
	var rec models.ProcurementRecord
	if err := a.db.Where("conversation_id = ?", conversationID).First(&rec).Error; err != nil {
		log.Printf("supervisor: load procurement record %s: %v", conversationID, err)
		return
	}
	mutate(&rec)
	now := time.Now().UTC()
	rec.CompletedAt = &now
	if err := a.db.Save(&rec).Error; err != nil {
		log.Printf("supervisor: save procurement record %s: %v", conversationID, err)
	}
}

func (a *Agent) updateRecord(conversationID string, fields map[string]any) {
	if a.db == nil {
		return
	}
	err := a.db.Model(&models.ProcurementRecord{}).
		Where("conversation_id = ?", conversationID).
		Updates(fields).Error
	if err != nil {
		log.Printf("supervisor: update procurement record %s: %v", conversationID, err)
	}
}

// post sends a notifier event, best-effort.
func (a *Agent) post(ctx context.Context, evt notify.Event) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.Post(ctx, evt); err != nil {
		log.Printf("supervisor: notify: %v", err)
	}
}
