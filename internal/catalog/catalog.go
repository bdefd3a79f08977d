// Package catalog holds the supplier market catalog the Sourcing agent
// searches. The catalog is static reference data; supplier performance
// history lives in the learning engine, not here.
package catalog

import (
	"sort"
	"strings"

	"github.com/tradewind/tradewind/internal/config"
)

// Supplier is one entry in the market catalog.
type Supplier struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Categories     []string `json:"categories"`
	BasePrice      float64  `json:"base_price"`
	LeadTimeDays   int      `json:"lead_time_days"`
	PricingTier    string   `json:"pricing_tier"`
	QualityRating  float64  `json:"quality_rating"`
	FinancialGrade string   `json:"financial_grade"`
	Certifications []string `json:"certifications"`
}

// MatchesCategory reports whether the supplier serves the given category,
// by exact membership or substring overlap either way (a supplier listing
// "electronics" matches a request for "consumer_electronics").
func (s Supplier) MatchesCategory(category string) bool {
	if category == "" {
		return false
	}
	for _, c := range s.Categories {
		if c == category || strings.Contains(category, c) || strings.Contains(c, category) {
			return true
		}
	}
	return false
}

// financialGrades orders ratings best-first. Unknown grades rank last.
var financialGrades = []string{"A+", "A", "A-", "B+", "B", "B-", "C+", "C", "C-", "D"}

// GradeRank returns the position of a financial grade, lower is better.
func GradeRank(grade string) int {
	for i, g := range financialGrades {
		if g == grade {
			return i
		}
	}
	return len(financialGrades)
}

// Catalog is an immutable set of suppliers.
type Catalog struct {
	suppliers []Supplier
}

// FromConfig builds a catalog from configuration entries.
func FromConfig(entries []config.SupplierConfig) *Catalog {
	suppliers := make([]Supplier, 0, len(entries))
	for _, e := range entries {
		suppliers = append(suppliers, Supplier{
			ID:             e.ID,
			Name:           e.Name,
			Categories:     e.Categories,
			BasePrice:      e.BasePrice,
			LeadTimeDays:   e.LeadTimeDays,
			PricingTier:    e.PricingTier,
			QualityRating:  e.QualityRating,
			FinancialGrade: e.FinancialGrade,
			Certifications: e.Certifications,
		})
	}
	return &Catalog{suppliers: suppliers}
}

// All returns a copy of every supplier.
func (c *Catalog) All() []Supplier {
	out := make([]Supplier, len(c.suppliers))
	copy(out, c.suppliers)
	return out
}

// Get returns the supplier with the given id.
func (c *Catalog) Get(id string) (Supplier, bool) {
	for _, s := range c.suppliers {
		if s.ID == id {
			return s, true
		}
	}
	return Supplier{}, false
}

// Filter holds catalog search constraints. Zero values mean unconstrained.
type Filter struct {
	Category        string
	MinQuality      float64
	MaxLeadTimeDays int
	PricingTiers    []string
}

// Search returns suppliers matching the filter, ranked by quality rating and
// financial grade (best first).
func (c *Catalog) Search(f Filter) []Supplier {
	var out []Supplier
	for _, s := range c.suppliers {
		if f.Category != "" && !s.MatchesCategory(f.Category) {
			continue
		}
		if f.MinQuality > 0 && s.QualityRating < f.MinQuality {
			continue
		}
		if f.MaxLeadTimeDays > 0 && s.LeadTimeDays > f.MaxLeadTimeDays {
			continue
		}
		if len(f.PricingTiers) > 0 && !contains(f.PricingTiers, s.PricingTier) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QualityRating != out[j].QualityRating {
			return out[i].QualityRating > out[j].QualityRating
		}
		return GradeRank(out[i].FinancialGrade) < GradeRank(out[j].FinancialGrade)
	})
	return out
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
