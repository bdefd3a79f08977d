package config

// DefaultCatalog returns the built-in supplier catalog used when the config
// file carries none. Categories and ratings mirror a small but varied
// industrial market so the agents have something to disagree about.
func DefaultCatalog() []SupplierConfig {
	return []SupplierConfig{
		{
			ID: "SUP-001", Name: "Meridian Industrial", Categories: []string{"manufacturing_equipment", "industrial_tools"},
			BasePrice: 42000, LeadTimeDays: 14, PricingTier: "mid-range", QualityRating: 88,
			FinancialGrade: "A", Certifications: []string{"ISO9001", "ISO14001"},
		},
		{
			ID: "SUP-002", Name: "Atlas Precision Works", Categories: []string{"manufacturing_equipment"},
			BasePrice: 61000, LeadTimeDays: 21, PricingTier: "premium", QualityRating: 94,
			FinancialGrade: "A+", Certifications: []string{"ISO9001", "AS9100"},
		},
		{
			ID: "SUP-003", Name: "Brightline Components", Categories: []string{"electronics", "sensors"},
			BasePrice: 18000, LeadTimeDays: 7, PricingTier: "mid-range", QualityRating: 82,
			FinancialGrade: "B+", Certifications: []string{"ISO9001"},
		},
		{
			ID: "SUP-004", Name: "Harbor Supply Co", Categories: []string{"office_supplies", "packaging"},
			BasePrice: 5200, LeadTimeDays: 3, PricingTier: "budget", QualityRating: 76,
			FinancialGrade: "B", Certifications: nil,
		},
		{
			ID: "SUP-005", Name: "Vantage Robotics", Categories: []string{"manufacturing_equipment", "electronics"},
			BasePrice: 55000, LeadTimeDays: 10, PricingTier: "premium", QualityRating: 91,
			FinancialGrade: "A-", Certifications: []string{"ISO9001", "CE"},
		},
		{
			ID: "SUP-006", Name: "Cedar Freight Logistics", Categories: []string{"logistics"},
			BasePrice: 9000, LeadTimeDays: 5, PricingTier: "budget", QualityRating: 79,
			FinancialGrade: "B-", Certifications: []string{"C-TPAT"},
		},
		{
			ID: "SUP-007", Name: "Northgate Materials", Categories: []string{"raw_materials", "packaging"},
			BasePrice: 12500, LeadTimeDays: 12, PricingTier: "mid-range", QualityRating: 84,
			FinancialGrade: "A-", Certifications: []string{"ISO9001"},
		},
		{
			ID: "SUP-008", Name: "Quanta Microsystems", Categories: []string{"electronics"},
			BasePrice: 27500, LeadTimeDays: 18, PricingTier: "premium", QualityRating: 93,
			FinancialGrade: "A", Certifications: []string{"ISO9001", "IPC-A-610"},
		},
	}
}
