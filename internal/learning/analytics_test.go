package learning

import (
	"strings"
	"testing"
	"time"

	"github.com/tradewind/tradewind/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openAnalyticsDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.ProcurementRecord{}, &models.SupplierOutcome{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func newTestAnalyzer(t *testing.T, db *gorm.DB) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(db)
	if err != nil {
		t.Fatalf("new analyzer: %v", err)
	}
	return a
}

func record(t *testing.T, db *gorm.DB, conv, category string, budget, savings float64, urgency string, at time.Time) {
	t.Helper()
	rec := models.ProcurementRecord{
		ConversationID: conv,
		Category:       category,
		Budget:         budget,
		SavingsPct:     savings,
		Urgency:        urgency,
		Status:         models.ProcurementCompleted,
		CreatedAt:      at,
	}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("create record: %v", err)
	}
}

func TestNewAnalyzer_RequiresDB(t *testing.T) {
	if _, err := NewAnalyzer(nil); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestBuildReport_EmptyDB(t *testing.T) {
	a := newTestAnalyzer(t, openAnalyticsDB(t))
	r, err := a.BuildReport()
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if r.Decisions != 0 || r.TotalSpend != 0 || r.SpendingTrend != "stable" {
		t.Fatalf("empty report = %+v", r)
	}
	if len(r.Anomalies) != 0 || len(r.Selections) != 0 {
		t.Fatalf("empty db produced findings: %+v", r)
	}
}

func TestBuildReport_SpendByCategory(t *testing.T) {
	db := openAnalyticsDB(t)
	a := newTestAnalyzer(t, db)
	now := time.Now()

	record(t, db, "c1", "electronics", 10000, 0.1, "medium", now)
	record(t, db, "c2", "electronics", 20000, 0, "medium", now)
	record(t, db, "c3", "office_supplies", 4000, 0, "low", now)

	r, err := a.BuildReport()
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if r.Decisions != 3 {
		t.Fatalf("decisions = %d, want 3", r.Decisions)
	}
	// 9000 + 20000 + 4000, savings applied before aggregation.
	if r.TotalSpend != 33000 {
		t.Fatalf("total spend = %v, want 33000", r.TotalSpend)
	}
	if len(r.Categories) != 2 || r.Categories[0].Category != "electronics" {
		t.Fatalf("categories = %+v", r.Categories)
	}
	if r.Categories[0].Decisions != 2 || r.Categories[0].Total != 29000 || r.Categories[0].Average != 14500 {
		t.Fatalf("electronics rollup = %+v", r.Categories[0])
	}
	if r.Urgency["medium"] != 2 || r.Urgency["low"] != 1 {
		t.Fatalf("urgency = %v", r.Urgency)
	}
}

func TestBuildReport_SpendingTrend(t *testing.T) {
	db := openAnalyticsDB(t)
	a := newTestAnalyzer(t, db)
	// Pin the clock so old rows stay outside the anomaly window.
	base := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return base }

	// Six monthly buckets ramping from 1000 to 6000.
	for i := 0; i < 6; i++ {
		at := time.Date(2025, time.Month(i+1), 10, 0, 0, 0, 0, time.UTC)
		record(t, db, "t"+string(rune('a'+i)), "electronics", float64((i+1)*1000), 0, "medium", at)
	}

	r, err := a.BuildReport()
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if r.SpendingTrend != "increasing" {
		t.Fatalf("trend = %s, want increasing", r.SpendingTrend)
	}
}

func TestDetectAnomalies_SpendOutlier(t *testing.T) {
	db := openAnalyticsDB(t)
	a := newTestAnalyzer(t, db)
	now := time.Now()

	// A tight cluster plus one order of magnitude outlier.
	for i := 0; i < 8; i++ {
		record(t, db, "n"+string(rune('a'+i)), "electronics", 10000+float64(i)*100, 0, "medium", now.Add(-time.Duration(i)*24*time.Hour))
	}
	record(t, db, "outlier", "electronics", 500000, 0, "high", now)

	r, err := a.BuildReport()
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	var found *Anomaly
	for i := range r.Anomalies {
		if r.Anomalies[i].Type == "spending_anomaly" {
			found = &r.Anomalies[i]
		}
	}
	if found == nil {
		t.Fatalf("no spending anomaly in %+v", r.Anomalies)
	}
	if found.ConversationID != "outlier" {
		t.Fatalf("flagged %s, want outlier", found.ConversationID)
	}
}

func TestDetectAnomalies_FrequencySpike(t *testing.T) {
	db := openAnalyticsDB(t)
	a := newTestAnalyzer(t, db)
	now := time.Now()

	// One procurement a day for a week, then ten on the spike day.
	for i := 1; i <= 7; i++ {
		record(t, db, "d"+string(rune('a'+i)), "electronics", 10000, 0, "medium", now.Add(-time.Duration(i)*24*time.Hour))
	}
	for i := 0; i < 10; i++ {
		record(t, db, "spike"+string(rune('a'+i)), "electronics", 10000, 0, "medium", now)
	}

	r, err := a.BuildReport()
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	var spikes int
	for _, an := range r.Anomalies {
		if an.Type == "frequency_anomaly" {
			spikes++
			if an.Date == "" {
				t.Fatalf("frequency anomaly missing date: %+v", an)
			}
		}
	}
	if spikes != 1 {
		t.Fatalf("frequency anomalies = %d, want 1 (%+v)", spikes, r.Anomalies)
	}
}

func TestDetectAnomalies_IgnoresOldRows(t *testing.T) {
	db := openAnalyticsDB(t)
	a := newTestAnalyzer(t, db)
	now := time.Now()

	record(t, db, "recent", "electronics", 10000, 0, "medium", now)
	record(t, db, "ancient", "electronics", 900000, 0, "medium", now.Add(-90*24*time.Hour))

	r, err := a.BuildReport()
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	for _, an := range r.Anomalies {
		if an.ConversationID == "ancient" {
			t.Fatalf("row outside the window was flagged: %+v", an)
		}
	}
	// The old row still counts toward spend.
	if r.Decisions != 2 {
		t.Fatalf("decisions = %d, want 2", r.Decisions)
	}
}

func TestSelectionPatterns_ScoreAndOrder(t *testing.T) {
	db := openAnalyticsDB(t)
	a := newTestAnalyzer(t, db)

	outcomes := []models.SupplierOutcome{
		{SupplierID: "S1", SupplierName: "Alpha", Tag: OutcomeSuccess},
		{SupplierID: "S1", SupplierName: "Alpha", Tag: OutcomeSuccess},
		{SupplierID: "S1", SupplierName: "Alpha", Tag: OutcomeSuccess},
		{SupplierID: "S2", SupplierName: "Beta", Tag: OutcomeSuccess},
		{SupplierID: "S2", SupplierName: "Beta", Tag: OutcomeNoAgreement},
	}
	for i := range outcomes {
		if err := db.Create(&outcomes[i]).Error; err != nil {
			t.Fatalf("create outcome: %v", err)
		}
	}

	r, err := a.BuildReport()
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(r.Selections) != 2 || r.Selections[0].SupplierID != "S1" {
		t.Fatalf("selections = %+v", r.Selections)
	}
	// Perfect record over three engagements: 100 base + 6 bonus, capped.
	if r.Selections[0].Score != 100 || r.Selections[0].SuccessRate != 1 {
		t.Fatalf("S1 pattern = %+v", r.Selections[0])
	}
	// 50 base + 4 bonus.
	if r.Selections[1].Score != 54 || r.Selections[1].Selections != 2 {
		t.Fatalf("S2 pattern = %+v", r.Selections[1])
	}
}

func TestReportInsights(t *testing.T) {
	db := openAnalyticsDB(t)
	a := newTestAnalyzer(t, db)
	now := time.Now()

	record(t, db, "i1", "electronics", 10000, 0, "high", now)
	record(t, db, "i2", "electronics", 10000, 0, "high", now)
	record(t, db, "i3", "office_supplies", 2000, 0, "low", now)
	for i := 0; i < 3; i++ {
		o := models.SupplierOutcome{SupplierID: "S1", SupplierName: "Alpha", Tag: OutcomeSuccess}
		if err := db.Create(&o).Error; err != nil {
			t.Fatalf("create outcome: %v", err)
		}
	}

	r, err := a.BuildReport()
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	joined := strings.Join(r.Insights, "\n")
	if !strings.Contains(joined, "top spending categories: electronics") {
		t.Errorf("missing category insight in %q", joined)
	}
	if !strings.Contains(joined, "high urgency") {
		t.Errorf("missing urgency insight in %q", joined)
	}
	if !strings.Contains(joined, "preferred supplier status for: S1") {
		t.Errorf("missing preferred supplier insight in %q", joined)
	}
}

func TestMeanStddev(t *testing.T) {
	mean, sd := meanStddev(nil)
	if mean != 0 || sd != 0 {
		t.Fatalf("empty input: mean %v sd %v", mean, sd)
	}
	mean, sd = meanStddev([]float64{5})
	if mean != 5 || sd != 0 {
		t.Fatalf("single value: mean %v sd %v", mean, sd)
	}
	mean, sd = meanStddev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 {
		t.Fatalf("mean = %v, want 5", mean)
	}
	if sd < 2.13 || sd > 2.14 {
		t.Fatalf("sample stddev = %v, want ~2.138", sd)
	}
}
