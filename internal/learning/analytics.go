package learning

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tradewind/tradewind/internal/models"
	"gorm.io/gorm"
)

// Analyzer derives procurement pattern rollups from the persisted audit
// tables. Unlike the engine's live profiles it reads the full row history,
// so it only exists when a database is configured.
type Analyzer struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAnalyzer builds an analyzer over the given database.
func NewAnalyzer(db *gorm.DB) (*Analyzer, error) {
	if db == nil {
		return nil, fmt.Errorf("learning: analyzer requires a database")
	}
	return &Analyzer{db: db, now: time.Now}, nil
}

// anomalyWindow bounds how far back anomaly detection looks.
const anomalyWindow = 30 * 24 * time.Hour

// CategorySpend aggregates spend within one procurement category.
type CategorySpend struct {
	Category  string  `json:"category"`
	Decisions int     `json:"decisions"`
	Total     float64 `json:"total"`
	Average   float64 `json:"average"`
}

// Anomaly flags one observation that sits outside recent norms.
type Anomaly struct {
	Type           string `json:"type"`     // spending_anomaly or frequency_anomaly
	Severity       string `json:"severity"` // high or medium
	Description    string `json:"description"`
	ConversationID string `json:"conversation_id,omitempty"`
	Date           string `json:"date,omitempty"`
}

// SelectionPattern summarizes how often a supplier is engaged and how those
// engagements went.
type SelectionPattern struct {
	SupplierID   string  `json:"supplier_id"`
	SupplierName string  `json:"supplier_name"`
	Selections   int     `json:"selections"`
	SuccessRate  float64 `json:"success_rate"`
	Score        float64 `json:"score"` // success rate plus an experience bonus, [0,100]
}

// Report is the full analytics rollup served by the dashboard.
type Report struct {
	Decisions     int                `json:"decisions"`
	TotalSpend    float64            `json:"total_spend"`
	SpendingTrend string             `json:"spending_trend"` // increasing, decreasing, stable
	Categories    []CategorySpend    `json:"categories,omitempty"`
	Urgency       map[string]int     `json:"urgency,omitempty"`
	Anomalies     []Anomaly          `json:"anomalies,omitempty"`
	Selections    []SelectionPattern `json:"selections,omitempty"`
	Insights      []string           `json:"insights,omitempty"`
}

// BuildReport computes the rollup from all recorded procurements and
// negotiation outcomes. Pure read; safe to call concurrently with live
// conversations.
func (a *Analyzer) BuildReport() (Report, error) {
	var records []models.ProcurementRecord
	if err := a.db.Order("created_at").Find(&records).Error; err != nil {
		return Report{}, fmt.Errorf("learning: load procurement records: %w", err)
	}
	var outcomes []models.SupplierOutcome
	if err := a.db.Order("created_at").Find(&outcomes).Error; err != nil {
		return Report{}, fmt.Errorf("learning: load supplier outcomes: %w", err)
	}

	r := Report{Decisions: len(records), Urgency: map[string]int{}}

	byCategory := map[string]*CategorySpend{}
	monthly := map[string]float64{}
	var months []string
	for _, rec := range records {
		// Savings only apply once a deal closed; SavingsPct is zero otherwise.
		cost := rec.Budget * (1 - rec.SavingsPct)
		r.TotalSpend += cost
		cs := byCategory[rec.Category]
		if cs == nil {
			cs = &CategorySpend{Category: rec.Category}
			byCategory[rec.Category] = cs
		}
		cs.Decisions++
		cs.Total += cost
		r.Urgency[rec.Urgency]++

		month := rec.CreatedAt.Format("2006-01")
		if _, seen := monthly[month]; !seen {
			months = append(months, month)
		}
		monthly[month] += cost
	}
	for _, cs := range byCategory {
		cs.Average = cs.Total / float64(cs.Decisions)
		r.Categories = append(r.Categories, *cs)
	}
	sort.Slice(r.Categories, func(i, j int) bool {
		if r.Categories[i].Total != r.Categories[j].Total {
			return r.Categories[i].Total > r.Categories[j].Total
		}
		return r.Categories[i].Category < r.Categories[j].Category
	})

	r.SpendingTrend = spendingTrend(months, monthly)
	r.Anomalies = a.detectAnomalies(records)
	r.Selections = selectionPatterns(outcomes)
	r.Insights = reportInsights(r)
	return r, nil
}

// spendingTrend compares the three most recent monthly buckets against the
// three earliest. Fewer than three months of data reads as stable.
func spendingTrend(months []string, monthly map[string]float64) string {
	if len(months) < 3 {
		return "stable"
	}
	early := (monthly[months[0]] + monthly[months[1]] + monthly[months[2]]) / 3
	n := len(months)
	recent := (monthly[months[n-1]] + monthly[months[n-2]] + monthly[months[n-3]]) / 3
	switch {
	case recent > early*1.2:
		return "increasing"
	case recent < early*0.8:
		return "decreasing"
	default:
		return "stable"
	}
}

// detectAnomalies flags spend outliers (beyond two standard deviations of
// the window mean) and days with over three times the average order volume.
func (a *Analyzer) detectAnomalies(records []models.ProcurementRecord) []Anomaly {
	cutoff := a.now().Add(-anomalyWindow)
	var recent []models.ProcurementRecord
	for _, rec := range records {
		if rec.CreatedAt.After(cutoff) {
			recent = append(recent, rec)
		}
	}
	if len(recent) == 0 {
		return nil
	}

	var out []Anomaly

	var costs []float64
	for _, rec := range recent {
		costs = append(costs, rec.Budget*(1-rec.SavingsPct))
	}
	mean, stddev := meanStddev(costs)
	if stddev > 0 {
		for i, rec := range recent {
			diff := math.Abs(costs[i] - mean)
			if diff <= 2*stddev {
				continue
			}
			severity := "medium"
			if diff > 3*stddev {
				severity = "high"
			}
			out = append(out, Anomaly{
				Type:           "spending_anomaly",
				Severity:       severity,
				Description:    fmt.Sprintf("unusual spend of %.2f in %s (window mean %.2f)", costs[i], rec.Category, mean),
				ConversationID: rec.ConversationID,
			})
		}
	}

	daily := map[string]int{}
	var days []string
	for _, rec := range recent {
		day := rec.CreatedAt.Format("2006-01-02")
		if _, seen := daily[day]; !seen {
			days = append(days, day)
		}
		daily[day]++
	}
	avgDaily := float64(len(recent)) / float64(len(daily))
	for _, day := range days {
		if float64(daily[day]) > avgDaily*3 {
			out = append(out, Anomaly{
				Type:        "frequency_anomaly",
				Severity:    "medium",
				Description: fmt.Sprintf("%d procurements on %s against a daily average of %.1f", daily[day], day, avgDaily),
				Date:        day,
			})
		}
	}
	return out
}

// selectionPatterns rolls negotiation outcomes up per supplier. The score is
// the success rate on a 100-point scale plus an experience bonus of two
// points per engagement, capped at twenty.
func selectionPatterns(outcomes []models.SupplierOutcome) []SelectionPattern {
	type tally struct {
		name       string
		selections int
		successes  int
	}
	byID := map[string]*tally{}
	var ids []string
	for _, o := range outcomes {
		t := byID[o.SupplierID]
		if t == nil {
			t = &tally{name: o.SupplierName}
			byID[o.SupplierID] = t
			ids = append(ids, o.SupplierID)
		}
		t.selections++
		if o.Tag == OutcomeSuccess {
			t.successes++
		}
	}

	out := make([]SelectionPattern, 0, len(ids))
	for _, id := range ids {
		t := byID[id]
		rate := float64(t.successes) / float64(t.selections)
		bonus := math.Min(20, float64(t.selections)*2)
		out = append(out, SelectionPattern{
			SupplierID:   id,
			SupplierName: t.name,
			Selections:   t.selections,
			SuccessRate:  rate,
			Score:        math.Min(100, rate*100+bonus),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].SupplierID < out[j].SupplierID
	})
	return out
}

func reportInsights(r Report) []string {
	var out []string

	if len(r.Categories) > 0 {
		top := r.Categories
		if len(top) > 3 {
			top = top[:3]
		}
		names := make([]string, len(top))
		for i, cs := range top {
			names[i] = cs.Category
		}
		out = append(out, "top spending categories: "+strings.Join(names, ", "))
	}

	if r.Decisions > 0 {
		highPct := float64(r.Urgency["high"]) / float64(r.Decisions) * 100
		if highPct > 30 {
			out = append(out, fmt.Sprintf("high urgency requests are %.1f%% of procurements, plan demand earlier", highPct))
		}
	}

	var preferred []string
	for _, sp := range r.Selections {
		if sp.Score > 80 && sp.Selections >= 3 {
			preferred = append(preferred, sp.SupplierID)
		}
	}
	if len(preferred) > 0 {
		out = append(out, "consider preferred supplier status for: "+strings.Join(preferred, ", "))
	}
	return out
}

func meanStddev(vals []float64) (float64, float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	if len(vals) < 2 {
		return mean, 0
	}
	var sq float64
	for _, v := range vals {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(vals)-1))
}
