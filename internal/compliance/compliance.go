// Package compliance implements the risk-assessment agent. Each candidate
// supplier gets a multi-factor risk score; the decision policy then
// auto-approves, conditionally approves a reduced subset, or escalates to
// the supervisor for review. Every decision carries a rationale string for
// the audit trail.
package compliance

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tradewind/tradewind/internal/agent"
	"github.com/tradewind/tradewind/internal/catalog"
	"github.com/tradewind/tradewind/internal/config"
	"github.com/tradewind/tradewind/internal/learning"
)

// Risk levels.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Decision actions.
const (
	ActionAutoApprove = "auto_approve"
	ActionConditional = "conditional_approval"
	ActionEscalate    = "escalate_for_review"
)

// Assessment is one supplier's risk evaluation.
type Assessment struct {
	SupplierID string   `json:"supplier_id"`
	Name       string   `json:"name"`
	Financial  float64  `json:"financial"`  // [0,1], higher is riskier
	Delivery   float64  `json:"delivery"`   // [0,1]
	Quality    float64  `json:"quality"`    // [0,1]
	Regulatory float64  `json:"regulatory"` // [0,1]
	Overall    float64  `json:"overall"`    // [0,1]
	RiskLevel  string   `json:"risk_level"`
	Approved   bool     `json:"approved"`
	Caveats    []string `json:"caveats,omitempty"`
}

// Agent is the compliance role.
type Agent struct {
	cfg    config.ComplianceConfig
	engine *learning.Engine
	out    io.Writer
}

// Opts holds parameters for creating a compliance Agent.
type Opts struct {
	Config config.ComplianceConfig
	Engine *learning.Engine
	Out    io.Writer
}

// New creates a compliance Agent.
func New(opts Opts) (*Agent, error) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Agent{cfg: opts.Config, engine: opts.Engine, out: out}, nil
}

func (a *Agent) ID() string       { return agent.ComplianceID }
func (a *Agent) Role() agent.Role { return agent.RoleCompliance }

// Handle assesses the candidate set. Inputs it cannot classify fall to the
// most conservative branch, a supervisor review, never an error.
func (a *Agent) Handle(ctx context.Context, msg agent.Message) ([]agent.Message, error) {
	if msg.Kind != agent.KindRequest {
		return nil, nil
	}
	req, okReq := agent.RequestFrom(msg.Payload)
	suppliers, okSup := msg.Payload["suppliers"].([]catalog.Supplier)
	if !okReq || !okSup || len(suppliers) == 0 {
		return []agent.Message{a.escalate(msg, req, nil,
			"could not classify risk: candidate set missing or malformed")}, nil
	}

	assessments := make([]Assessment, 0, len(suppliers))
	for _, s := range suppliers {
		assessments = append(assessments, a.assess(s, req))
	}

	overall := overallRisk(assessments)
	confidence := a.confidence(assessments)
	approved := approvedSubset(suppliers, assessments)

	var action string
	switch {
	case overall == RiskHigh && confidence < a.cfg.EscalateConfidence:
		action = ActionEscalate
	case len(approved) >= 2 && confidence > a.cfg.AutoApproveConfidence:
		action = ActionAutoApprove
	default:
		action = ActionConditional
	}

	rationale := rationaleFor(action, overall, confidence, assessments)
	fmt.Fprintf(a.out, "compliance: %s (%s risk, confidence %.2f) for %d supplier(s)\n",
		action, overall, confidence, len(suppliers))

	if action == ActionEscalate {
		return []agent.Message{a.escalate(msg, req, assessments, rationale)}, nil
	}

	forward := approved
	caveats := collectCaveats(assessments)
	if action == ActionConditional {
		if len(forward) == 0 {
			// Nothing cleared the bar outright: forward the least risky
			// candidate under caveats rather than stalling the workflow.
			forward = []catalog.Supplier{leastRisky(suppliers, assessments)}
			caveats = append(caveats, "single supplier approved under reduced-risk exception")
		}
	}

	next := agent.New(a.ID(), agent.NegotiationID, agent.KindRequest, msg.ConversationID, agent.Payload{
		"request_type": "negotiate",
		"request":      req,
		"suppliers":    forward,
		"assessments":  assessments,
		"action":       action,
		"caveats":      caveats,
		"rationale":    rationale,
		"summary":      fmt.Sprintf("%s: %d of %d supplier(s) cleared for negotiation", action, len(forward), len(suppliers)),
	})
	return []agent.Message{next}, nil
}

// assess scores one supplier across the four risk factors. Each factor is a
// [0,1] risk, higher is worse.
func (a *Agent) assess(s catalog.Supplier, req agent.ProcurementRequest) Assessment {
	as := Assessment{SupplierID: s.ID, Name: s.Name}

	// Financial: grade rank scaled over the rating scale.
	as.Financial = clamp(float64(catalog.GradeRank(s.FinancialGrade))/9.0, 0, 1)

	// Delivery: long lead times hurt, doubly so under high urgency.
	as.Delivery = clamp(float64(s.LeadTimeDays)/30.0, 0, 1)
	if req.Urgency == agent.UrgencyHigh {
		as.Delivery = clamp(as.Delivery*1.5, 0, 1)
	}

	// Quality: distance below a 95-point ceiling.
	as.Quality = clamp((95-s.QualityRating)/40.0, 0, 1)

	// Regulatory: certifications reduce exposure.
	as.Regulatory = clamp(0.6-0.2*float64(len(s.Certifications)), 0, 1)

	// Recorded history overrides catalog optimism where we have it.
	if a.engine != nil {
		if card, ok := a.engine.Scorecard(s.ID); ok {
			as.Delivery = clamp(as.Delivery*0.5+(1-card.Delivery/100)*0.5, 0, 1)
			as.Quality = clamp(as.Quality*0.5+(1-card.Quality/100)*0.5, 0, 1)
		}
	}

	as.Overall = 0.35*as.Financial + 0.25*as.Delivery + 0.25*as.Quality + 0.15*as.Regulatory
	switch {
	case as.Overall < 0.3:
		as.RiskLevel = RiskLow
	case as.Overall < 0.55:
		as.RiskLevel = RiskMedium
	default:
		as.RiskLevel = RiskHigh
	}

	gradeOK := catalog.GradeRank(s.FinancialGrade) <= catalog.GradeRank(a.cfg.MinFinancialRating)
	as.Approved = as.RiskLevel != RiskHigh && gradeOK
	if !gradeOK {
		as.Caveats = append(as.Caveats, fmt.Sprintf("financial grade %s below floor %s", s.FinancialGrade, a.cfg.MinFinancialRating))
	}
	if as.Delivery > 0.5 {
		as.Caveats = append(as.Caveats, "delivery schedule needs contractual protection")
	}
	if len(s.Certifications) == 0 {
		as.Caveats = append(as.Caveats, "no certifications on file")
	}
	return as
}

// overallRisk is the worst level held by at least half the set, so one
// outlier does not condemn an otherwise clean pool.
func overallRisk(assessments []Assessment) string {
	counts := map[string]int{}
	for _, as := range assessments {
		counts[as.RiskLevel]++
	}
	half := (len(assessments) + 1) / 2
	switch {
	case counts[RiskHigh] >= half:
		return RiskHigh
	case counts[RiskHigh]+counts[RiskMedium] >= half:
		return RiskMedium
	default:
		return RiskLow
	}
}

// confidence grows as the pool's risk picture clears up: low aggregate risk
// reads as an unambiguous assessment, and recorded history adds a little on
// top. Murky high-risk pools land below the escalation threshold.
func (a *Agent) confidence(assessments []Assessment) float64 {
	var sum float64
	for _, as := range assessments {
		sum += as.Overall
	}
	avgRisk := sum / float64(len(assessments))
	conf := 0.5 + 0.4*(1-avgRisk)

	if a.engine != nil {
		for _, as := range assessments {
			if card, ok := a.engine.Scorecard(as.SupplierID); ok {
				conf += 0.1 * card.Confidence / float64(len(assessments))
			}
		}
	}
	return clamp(conf, 0, 0.98)
}

func approvedSubset(suppliers []catalog.Supplier, assessments []Assessment) []catalog.Supplier {
	var out []catalog.Supplier
	for i, as := range assessments {
		if as.Approved {
			out = append(out, suppliers[i])
		}
	}
	return out
}

func leastRisky(suppliers []catalog.Supplier, assessments []Assessment) catalog.Supplier {
	best := 0
	for i := 1; i < len(assessments); i++ {
		if assessments[i].Overall < assessments[best].Overall {
			best = i
		}
	}
	return suppliers[best]
}

func collectCaveats(assessments []Assessment) []string {
	var out []string
	for _, as := range assessments {
		for _, c := range as.Caveats {
			out = append(out, fmt.Sprintf("%s: %s", as.SupplierID, c))
		}
	}
	return out
}

// rationaleFor records why the policy branch was taken. Required for the
// audit trail; not re-derivable after the fact.
func rationaleFor(action, overall string, confidence float64, assessments []Assessment) string {
	levels := make([]string, 0, len(assessments))
	for _, as := range assessments {
		levels = append(levels, fmt.Sprintf("%s=%s(%.2f)", as.SupplierID, as.RiskLevel, as.Overall))
	}
	return fmt.Sprintf("%s: overall %s risk at confidence %.2f; factors: %s",
		action, overall, confidence, strings.Join(levels, ", "))
}

func (a *Agent) escalate(msg agent.Message, req agent.ProcurementRequest, assessments []Assessment, rationale string) agent.Message {
	return agent.New(a.ID(), agent.SupervisorID, agent.KindNotification, msg.ConversationID, agent.Payload{
		"request_type": agent.EscalationReview,
		"request":      req,
		"suppliers":    msg.Payload["suppliers"],
		"assessments":  assessments,
		"rationale":    rationale,
		"summary":      "compliance escalation: " + rationale,
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
