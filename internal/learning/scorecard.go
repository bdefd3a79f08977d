package learning

import "sort"

// Scorecard is a derived, read-only snapshot of a supplier's performance.
// Always reproducible from the profile that produced it; never stored.
type Scorecard struct {
	SupplierID   string   `json:"supplier_id"`
	SupplierName string   `json:"supplier_name"`
	Overall      float64  `json:"overall"`      // [0,100]
	Delivery     float64  `json:"delivery"`     // [0,100] on-time rate
	Quality      float64  `json:"quality"`      // [0,100] mean reported quality
	SuccessRate  float64  `json:"success_rate"` // [0,1]
	AvgSavings   float64  `json:"avg_savings"`  // mean savings fraction on successes and partials
	Confidence   float64  `json:"confidence"`   // [0,1), grows with sample count
	Samples      int      `json:"samples"`
	RiskFlags    []string `json:"risk_flags,omitempty"`
	Advice       []string `json:"advice,omitempty"`
}

// Composite weights for the overall score.
const (
	weightDelivery = 0.35
	weightQuality  = 0.35
	weightSuccess  = 0.30
)

// Scorecard computes the supplier's current scorecard. Pure function of
// profile state: calling it twice without an intervening RecordOutcome
// yields identical results. The second return is false for suppliers with
// no recorded history.
func (e *Engine) Scorecard(supplierID string) (Scorecard, bool) {
	e.mu.RLock()
	p, ok := e.profiles[supplierID]
	e.mu.RUnlock()
	if !ok {
		return Scorecard{}, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.samples == 0 {
		return Scorecard{}, false
	}

	n := float64(p.samples)
	delivery := float64(p.onTime) / n * 100
	quality := p.sumQuality / n
	successRate := float64(p.successes) / n
	overall := clamp(weightDelivery*delivery+weightQuality*quality+weightSuccess*successRate*100, 0, 100)

	// Confidence narrows as evidence accumulates: n/(n+4) rises from 0.2 at
	// one sample toward 1, never reaching it.
	confidence := n / (n + 4)

	card := Scorecard{
		SupplierID:   p.supplierID,
		SupplierName: p.supplierName,
		Overall:      overall,
		Delivery:     delivery,
		Quality:      quality,
		SuccessRate:  successRate,
		AvgSavings:   p.sumSavings / n,
		Confidence:   confidence,
		Samples:      p.samples,
	}
	card.RiskFlags = riskFlags(card)
	card.Advice = advice(card)
	return card, true
}

func riskFlags(c Scorecard) []string {
	var flags []string
	if c.Delivery < 70 {
		flags = append(flags, "delivery_risk")
	}
	if c.Quality > 0 && c.Quality < 70 {
		flags = append(flags, "quality_risk")
	}
	if c.Samples >= 3 && c.SuccessRate < 0.5 {
		flags = append(flags, "low_success_rate")
	}
	return flags
}

func advice(c Scorecard) []string {
	var out []string
	switch {
	case c.Overall >= 85 && c.Confidence >= 0.5:
		out = append(out, "preferred supplier for this category")
	case c.Overall < 60:
		out = append(out, "seek alternatives before committing volume")
	}
	if c.Delivery < 80 {
		out = append(out, "negotiate delivery penalties")
	}
	if c.Samples < 3 {
		out = append(out, "limited history, verify references")
	}
	return out
}

// RecommendContext narrows a recommendation query. Zero values mean
// unconstrained.
type RecommendContext struct {
	SupplierIDs    []string // restrict to these suppliers; empty means all known
	MinScore       float64  // drop suppliers scoring below this overall
	MinDelivery    float64  // drop suppliers below this on-time score [0,100]
	MinSuccessRate float64  // drop suppliers below this success rate [0,1]
	Limit          int      // cap the result; 0 means no cap
}

// Recommendation is one entry of a ranked supplier list.
type Recommendation struct {
	SupplierID   string  `json:"supplier_id"`
	SupplierName string  `json:"supplier_name"`
	Score        float64 `json:"score"`
	Confidence   float64 `json:"confidence"`
}

// Recommend returns suppliers ranked by overall score weighted by
// confidence, so a thin great record does not outrank a deep good one.
func (e *Engine) Recommend(rc RecommendContext) []Recommendation {
	ids := rc.SupplierIDs
	if len(ids) == 0 {
		ids = e.SupplierIDs()
	}
	var out []Recommendation
	for _, id := range ids {
		card, ok := e.Scorecard(id)
		if !ok {
			continue
		}
		if rc.MinScore > 0 && card.Overall < rc.MinScore {
			continue
		}
		if rc.MinDelivery > 0 && card.Delivery < rc.MinDelivery {
			continue
		}
		if rc.MinSuccessRate > 0 && card.SuccessRate < rc.MinSuccessRate {
			continue
		}
		out = append(out, Recommendation{
			SupplierID:   card.SupplierID,
			SupplierName: card.SupplierName,
			Score:        card.Overall * card.Confidence,
			Confidence:   card.Confidence,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].SupplierID < out[j].SupplierID
	})
	if rc.Limit > 0 && len(out) > rc.Limit {
		out = out[:rc.Limit]
	}
	return out
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
