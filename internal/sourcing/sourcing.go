// Package sourcing implements the supplier-discovery agent. On each
// procurement request it picks a search strategy, runs a randomized market
// search over the catalog, and either forwards candidates to compliance or
// escalates to the supervisor with relaxed criteria.
package sourcing

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/tradewind/tradewind/internal/agent"
	"github.com/tradewind/tradewind/internal/catalog"
	"github.com/tradewind/tradewind/internal/config"
	"github.com/tradewind/tradewind/internal/learning"
)

// Search strategies.
const (
	StrategySpecialized  = "specialized_suppliers"
	StrategyFastDelivery = "fast_delivery"
	StrategyBudget       = "budget_optimized"
	StrategyBalanced     = "balanced"
)

// fastDeliveryLeadTime caps candidate lead time under the fast_delivery
// strategy.
const fastDeliveryLeadTime = 10

// Agent is the sourcing role.
type Agent struct {
	cfg     config.SourcingConfig
	catalog *catalog.Catalog
	engine  *learning.Engine
	sampler agent.Sampler
	out     io.Writer
}

// Opts holds parameters for creating a sourcing Agent.
type Opts struct {
	Config  config.SourcingConfig
	Catalog *catalog.Catalog
	Engine  *learning.Engine
	Sampler agent.Sampler
	Out     io.Writer
}

// New creates a sourcing Agent.
func New(opts Opts) (*Agent, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("sourcing: catalog is required")
	}
	if opts.Sampler == nil {
		return nil, fmt.Errorf("sourcing: sampler is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Agent{
		cfg:     opts.Config,
		catalog: opts.Catalog,
		engine:  opts.Engine,
		sampler: opts.Sampler,
		out:     out,
	}, nil
}

func (a *Agent) ID() string       { return agent.SourcingID }
func (a *Agent) Role() agent.Role { return agent.RoleSourcing }

// Handle runs one search round. Non-REQUEST messages are acknowledged and
// dropped; a REQUEST without a readable procurement request escalates rather
// than erroring.
func (a *Agent) Handle(ctx context.Context, msg agent.Message) ([]agent.Message, error) {
	if msg.Kind != agent.KindRequest {
		return nil, nil
	}
	req, ok := agent.RequestFrom(msg.Payload)
	if !ok {
		return []agent.Message{a.escalate(msg, agent.ProcurementRequest{}, StrategyBalanced,
			"request payload missing or malformed")}, nil
	}

	relaxed := msg.Payload["relaxed"] == true
	expandPool := msg.Payload["expand_pool"] == true

	strategy := a.chooseStrategy(req)
	candidates := a.search(req, strategy, relaxed, expandPool)
	fmt.Fprintf(a.out, "sourcing: %s strategy found %d candidate(s) for %s\n", strategy, len(candidates), req.Category)

	if len(candidates) == 0 {
		return []agent.Message{a.escalate(msg, req, strategy, "no suppliers matched after market availability filter")}, nil
	}

	forward := agent.New(a.ID(), agent.ComplianceID, agent.KindRequest, msg.ConversationID, agent.Payload{
		"request_type": "compliance_review",
		"request":      req,
		"suppliers":    candidates,
		"strategy":     strategy,
		"summary":      fmt.Sprintf("%d candidate(s) via %s for %s", len(candidates), strategy, req.Category),
	})
	return []agent.Message{forward}, nil
}

// chooseStrategy is deterministic over the request: urgency, then budget
// pressure, then specialized requirements, then balanced.
func (a *Agent) chooseStrategy(req agent.ProcurementRequest) string {
	if req.Urgency == agent.UrgencyHigh {
		return StrategyFastDelivery
	}
	if req.BudgetPerUnit() > 0 && req.BudgetPerUnit() < a.cfg.BudgetTightPerUnit {
		return StrategyBudget
	}
	reqs := strings.ToLower(req.Requirements)
	if strings.Contains(reqs, "custom") || strings.Contains(reqs, "specialized") || strings.Contains(reqs, "certif") {
		return StrategySpecialized
	}
	return StrategyBalanced
}

// search filters the catalog by strategy, then models market variability by
// dropping each candidate with a configured probability. A relaxed search
// lowers the quality bar; an expanded-pool search additionally gets one
// low-odds chance to surface a supplier the drop filter removed.
func (a *Agent) search(req agent.ProcurementRequest, strategy string, relaxed, expandPool bool) []catalog.Supplier {
	filter := catalog.Filter{
		Category:   req.Category,
		MinQuality: a.cfg.QualityThreshold,
	}
	if relaxed || expandPool {
		filter.MinQuality = a.cfg.QualityThreshold - 10
	}
	switch strategy {
	case StrategyFastDelivery:
		filter.MaxLeadTimeDays = fastDeliveryLeadTime
	case StrategyBudget:
		filter.PricingTiers = []string{"budget", "mid-range"}
	case StrategySpecialized:
		filter.MinQuality = filter.MinQuality + 5
	}

	matched := a.catalog.Search(filter)

	var available []catalog.Supplier
	for _, s := range matched {
		if a.sampler.Float64() < a.cfg.MarketDropProbability {
			continue
		}
		available = append(available, s)
	}

	if len(available) == 0 && len(matched) > 0 && expandPool {
		if a.sampler.Float64() < a.cfg.ExpandedSearchSuccess {
			available = matched[:1]
		}
	}

	a.biasByHistory(available)
	if a.cfg.MaxCandidates > 0 && len(available) > a.cfg.MaxCandidates {
		available = available[:a.cfg.MaxCandidates]
	}
	return available
}

// biasByHistory moves suppliers with strong recorded performance ahead of
// catalog-only rankings.
func (a *Agent) biasByHistory(suppliers []catalog.Supplier) {
	if a.engine == nil {
		return
	}
	score := func(s catalog.Supplier) float64 {
		if card, ok := a.engine.Scorecard(s.ID); ok {
			return card.Overall*card.Confidence + s.QualityRating
		}
		return s.QualityRating
	}
	sort.SliceStable(suppliers, func(i, j int) bool {
		return score(suppliers[i]) > score(suppliers[j])
	})
}

// escalate builds the no_suppliers_found notification, carrying the relaxed
// criteria the supervisor may retry with.
func (a *Agent) escalate(msg agent.Message, req agent.ProcurementRequest, strategy, reason string) agent.Message {
	return agent.New(a.ID(), agent.SupervisorID, agent.KindNotification, msg.ConversationID, agent.Payload{
		"request_type": agent.EscalationNoSuppliers,
		"request":      req,
		"strategy":     strategy,
		"reason":       reason,
		"suggested_relaxation": agent.Payload{
			"quality_threshold": a.cfg.QualityThreshold - 10,
			"broaden_category":  true,
		},
		"summary": fmt.Sprintf("no suppliers found for %s (%s)", req.Category, reason),
	})
}
