// Package negotiation implements the deal-making agent. It picks an
// approach from the supplier pool and their recorded performance, computes a
// target savings percentage, then simulates one negotiation per supplier
// inside a strategy-dependent probability band. The best success goes to the
// supervisor as the terminal response; a clean sweep of failures escalates
// with an expand_supplier_search recovery hint.
package negotiation

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tradewind/tradewind/internal/agent"
	"github.com/tradewind/tradewind/internal/catalog"
	"github.com/tradewind/tradewind/internal/config"
	"github.com/tradewind/tradewind/internal/learning"
)

// Negotiation approaches.
const (
	ApproachCollaborative = "collaborative"
	ApproachCompetitive   = "competitive"
	ApproachBalanced      = "balanced"
)

// Agent is the negotiation role.
type Agent struct {
	cfg     config.NegotiationConfig
	engine  *learning.Engine
	sampler agent.Sampler
	out     io.Writer
}

// Opts holds parameters for creating a negotiation Agent.
type Opts struct {
	Config  config.NegotiationConfig
	Engine  *learning.Engine
	Sampler agent.Sampler
	Out     io.Writer
}

// New creates a negotiation Agent.
func New(opts Opts) (*Agent, error) {
	if opts.Sampler == nil {
		return nil, fmt.Errorf("negotiation: sampler is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Agent{cfg: opts.Config, engine: opts.Engine, sampler: opts.Sampler, out: out}, nil
}

func (a *Agent) ID() string       { return agent.NegotiationID }
func (a *Agent) Role() agent.Role { return agent.RoleNegotiation }

// Handle negotiates against every approved supplier.
func (a *Agent) Handle(ctx context.Context, msg agent.Message) ([]agent.Message, error) {
	if msg.Kind != agent.KindRequest {
		return nil, nil
	}
	req, okReq := agent.RequestFrom(msg.Payload)
	suppliers, okSup := msg.Payload["suppliers"].([]catalog.Supplier)
	if !okReq || !okSup || len(suppliers) == 0 {
		return []agent.Message{a.fail(msg, nil, "no approved suppliers to negotiate with")}, nil
	}

	approach := a.chooseApproach(suppliers)
	target := a.targetSavings(approach, req, len(suppliers))
	fmt.Fprintf(a.out, "negotiation: %s approach, target savings %.0f%%, %d supplier(s)\n",
		approach, target*100, len(suppliers))

	outcomes := make([]learning.Outcome, 0, len(suppliers))
	for _, s := range suppliers {
		outcomes = append(outcomes, a.negotiate(s, req, approach, target, len(suppliers), msg.ConversationID))
	}

	best, ok := a.selectBest(outcomes)
	if !ok {
		return []agent.Message{a.fail(msg, outcomes, "every supplier ended in no_agreement")}, nil
	}

	resp := agent.New(a.ID(), agent.SupervisorID, agent.KindResponse, msg.ConversationID, agent.Payload{
		"request_type":              "negotiation_result",
		"request":                   req,
		"approach":                  approach,
		"outcome":                   best,
		"outcomes":                  outcomes,
		"terms":                     dealTerms(req, best),
		"delivery_improvement_days": best.DeliveryDays / 5,
		"fallback_supplier":         fallbackSupplier(outcomes, best),
		"summary": fmt.Sprintf("agreed with %s at %.2f (%.1f%% savings)",
			best.SupplierName, best.AgreedPrice, best.SavingsPct*100),
	})
	return []agent.Message{resp}, nil
}

// chooseApproach: collaborative with no leverage (one supplier), competitive
// when recorded performance across the pool is strong, balanced otherwise.
func (a *Agent) chooseApproach(suppliers []catalog.Supplier) string {
	if len(suppliers) == 1 {
		return ApproachCollaborative
	}
	if a.engine != nil {
		ids := make([]string, 0, len(suppliers))
		for _, s := range suppliers {
			ids = append(ids, s.ID)
		}
		if avg, n := a.engine.AverageScore(ids); n > 0 && avg > a.cfg.HighPerformanceThreshold {
			return ApproachCompetitive
		}
	}
	return ApproachBalanced
}

// targetSavings adjusts the configured target for market context: urgency
// costs leverage, a deep pool adds some.
func (a *Agent) targetSavings(approach string, req agent.ProcurementRequest, poolSize int) float64 {
	target := a.cfg.TargetSavingsDefault
	if approach == ApproachCompetitive {
		target = a.cfg.TargetSavingsCompetitive
	}
	if req.Urgency == agent.UrgencyHigh {
		target -= 0.03
	}
	if poolSize >= 3 {
		target += 0.02
	}
	return clamp(target, 0.02, 0.30)
}

// negotiate simulates one attempt. Success probability starts at the
// approach's band and shifts with leverage, clamped so neither certainty
// nor impossibility is reachable.
func (a *Agent) negotiate(s catalog.Supplier, req agent.ProcurementRequest, approach string, target float64, poolSize int, conversationID string) learning.Outcome {
	prob := a.successBand(approach)
	if poolSize > 1 {
		prob += a.cfg.LeverageAdjustment
	}
	if req.Urgency == agent.UrgencyHigh {
		prob -= a.cfg.LeverageAdjustment
	}
	prob = clamp(prob, 0.05, 0.95)

	requested := s.BasePrice * float64(req.Quantity)
	out := learning.Outcome{
		SupplierID:     s.ID,
		SupplierName:   s.Name,
		ConversationID: conversationID,
		RequestedPrice: requested,
		DeliveryDays:   s.LeadTimeDays,
		QualityScore:   s.QualityRating,
	}

	// Without recorded history the assessment leans on catalog data alone.
	note := ""
	if a.engine == nil || !a.engine.Known(s.ID) {
		note = "; catalog-only confidence, no recorded history"
	}

	if a.sampler.Float64() >= prob {
		out.Tag = learning.OutcomeNoAgreement
		out.AgreedPrice = requested
		out.Rationale = fmt.Sprintf("%s held firm under %s approach (target %.0f%%)%s", s.Name, approach, target*100, note)
		return out
	}

	// Achieved savings land between 70% and 130% of target.
	achieved := target * (0.7 + 0.6*a.sampler.Float64())
	out.Tag = learning.OutcomeSuccess
	out.SavingsPct = achieved
	out.AgreedPrice = requested * (1 - achieved)
	out.OnTime = a.sampler.Float64() < 0.9
	out.Rationale = fmt.Sprintf("%s agreed at %.1f%% below ask under %s approach%s", s.Name, achieved*100, approach, note)
	return out
}

// dealTerms derives the extra contractual terms attached to the agreement.
func dealTerms(req agent.ProcurementRequest, best learning.Outcome) []string {
	var terms []string
	if req.Urgency == agent.UrgencyHigh {
		terms = append(terms, "expedited delivery commitment")
	}
	if best.QualityScore >= 90 {
		terms = append(terms, "quality guarantee with replacement clause")
	} else {
		terms = append(terms, "trial period before volume commitment")
	}
	if best.SavingsPct < 0.05 {
		terms = append(terms, "price review at renewal")
	}
	return terms
}

// fallbackSupplier names the runner-up success as the plan B, or "" when the
// winner was the only agreement.
func fallbackSupplier(outcomes []learning.Outcome, best learning.Outcome) string {
	fallback := ""
	bestSavings := -1.0
	for _, o := range outcomes {
		if o.Tag != learning.OutcomeSuccess || o.SupplierID == best.SupplierID {
			continue
		}
		if o.SavingsPct > bestSavings {
			bestSavings = o.SavingsPct
			fallback = o.SupplierID
		}
	}
	return fallback
}

func (a *Agent) successBand(approach string) float64 {
	switch approach {
	case ApproachCollaborative:
		return a.cfg.SuccessCollaborative
	case ApproachCompetitive:
		return a.cfg.SuccessCompetitive
	default:
		return a.cfg.SuccessBalanced
	}
}

// selectBest picks the success with the highest savings, ties broken by the
// better recorded score.
func (a *Agent) selectBest(outcomes []learning.Outcome) (learning.Outcome, bool) {
	var best learning.Outcome
	found := false
	for _, o := range outcomes {
		if o.Tag != learning.OutcomeSuccess {
			continue
		}
		if !found || o.SavingsPct > best.SavingsPct ||
			(o.SavingsPct == best.SavingsPct && a.score(o.SupplierID) > a.score(best.SupplierID)) {
			best = o
			found = true
		}
	}
	return best, found
}

func (a *Agent) score(supplierID string) float64 {
	if a.engine == nil {
		return 0
	}
	card, ok := a.engine.Scorecard(supplierID)
	if !ok {
		return 0
	}
	return card.Overall
}

// fail builds the negotiation_failure notification. The suggested_action is
// the system's sole automatic-recovery trigger.
func (a *Agent) fail(msg agent.Message, outcomes []learning.Outcome, detail string) agent.Message {
	req, _ := agent.RequestFrom(msg.Payload)
	return agent.New(a.ID(), agent.SupervisorID, agent.KindNotification, msg.ConversationID, agent.Payload{
		"request_type":     agent.EscalationNegotiationFailure,
		"request":          req,
		"failure_details":  detail,
		"suggested_action": "expand_supplier_search",
		"outcomes":         outcomes,
		"summary":          "negotiation failed: " + detail,
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
