// Package learning is the supplier long-term memory: it aggregates
// negotiation outcomes into per-supplier profiles and serves the scorecards
// and recommendations the decision agents consult. It is the only channel
// for cross-agent knowledge sharing.
package learning

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/tradewind/tradewind/internal/models"
	"gorm.io/gorm"
)

// Outcome tags.
const (
	OutcomeSuccess     = "success"
	OutcomeNoAgreement = "no_agreement"
	OutcomePartial     = "partial"
)

// historyBound caps the recent-outcome window kept per profile. Aggregates
// cover the full history; only the detail list is bounded.
const historyBound = 20

// Outcome records one negotiation attempt against a supplier.
type Outcome struct {
	SupplierID     string
	SupplierName   string
	ConversationID string
	Tag            string // success, no_agreement, partial
	RequestedPrice float64
	AgreedPrice    float64
	SavingsPct     float64
	DeliveryDays   int
	OnTime         bool
	QualityScore   float64 // [0,100]
	Rationale      string
}

// profile holds one supplier's running aggregates. Each profile carries its
// own lock so different suppliers update in parallel while a single
// supplier's reads and writes stay serialized.
type profile struct {
	mu sync.Mutex

	supplierID   string
	supplierName string
	samples      int
	successes    int
	onTime       int
	sumQuality   float64
	sumSavings   float64
	recent       []Outcome // newest last, bounded
	lastSeen     time.Time
}

// Engine aggregates outcomes and answers scoring queries.
type Engine struct {
	db *gorm.DB

	mu       sync.RWMutex
	profiles map[string]*profile
}

// Opts holds parameters for creating an Engine.
type Opts struct {
	DB *gorm.DB // optional; enables outcome persistence and startup rebuild
}

// New creates an Engine, rebuilding profiles from any persisted outcome rows.
func New(opts Opts) (*Engine, error) {
	e := &Engine{
		db:       opts.DB,
		profiles: make(map[string]*profile),
	}
	if e.db != nil {
		var rows []models.SupplierOutcome
		if err := e.db.Order("id asc").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("learning: load outcomes: %w", err)
		}
		for _, row := range rows {
			e.apply(outcomeFromRow(row))
		}
	}
	return e, nil
}

func outcomeFromRow(row models.SupplierOutcome) Outcome {
	return Outcome{
		SupplierID:     row.SupplierID,
		SupplierName:   row.SupplierName,
		ConversationID: row.ConversationID,
		Tag:            row.Tag,
		RequestedPrice: row.RequestedPrice,
		AgreedPrice:    row.AgreedPrice,
		SavingsPct:     row.SavingsPct,
		DeliveryDays:   row.DeliveryDays,
		OnTime:         row.OnTime,
		QualityScore:   row.QualityScore,
		Rationale:      row.Rationale,
	}
}

// RecordOutcome appends one outcome to its supplier's profile, updating the
// running aggregates in place, and persists the row. This is the sole write
// path into supplier memory.
func (e *Engine) RecordOutcome(o Outcome) error {
	if o.SupplierID == "" {
		return fmt.Errorf("learning: record outcome: supplier id is required")
	}
	switch o.Tag {
	case OutcomeSuccess, OutcomeNoAgreement, OutcomePartial:
	default:
		return fmt.Errorf("learning: record outcome: unknown tag %q", o.Tag)
	}
	e.apply(o)

	if e.db != nil {
		row := models.SupplierOutcome{
			SupplierID:     o.SupplierID,
			SupplierName:   o.SupplierName,
			ConversationID: o.ConversationID,
			Tag:            o.Tag,
			RequestedPrice: o.RequestedPrice,
			AgreedPrice:    o.AgreedPrice,
			SavingsPct:     o.SavingsPct,
			DeliveryDays:   o.DeliveryDays,
			OnTime:         o.OnTime,
			QualityScore:   o.QualityScore,
			Rationale:      o.Rationale,
		}
		if err := e.db.Create(&row).Error; err != nil {
			log.Printf("learning: persist outcome for %s: %v", o.SupplierID, err)
		}
	}
	return nil
}

// apply folds one outcome into the in-memory profile.
func (e *Engine) apply(o Outcome) {
	p := e.profileFor(o.SupplierID)
	p.mu.Lock()
	defer p.mu.Unlock()
	if o.SupplierName != "" {
		p.supplierName = o.SupplierName
	}
	p.samples++
	if o.Tag == OutcomeSuccess {
		p.successes++
	}
	if o.OnTime {
		p.onTime++
	}
	p.sumQuality += o.QualityScore
	p.sumSavings += o.SavingsPct
	p.recent = append(p.recent, o)
	if len(p.recent) > historyBound {
		p.recent = p.recent[len(p.recent)-historyBound:]
	}
	p.lastSeen = time.Now().UTC()
}

// profileFor returns the supplier's profile, creating it on first sight.
func (e *Engine) profileFor(supplierID string) *profile {
	e.mu.RLock()
	p, ok := e.profiles[supplierID]
	e.mu.RUnlock()
	if ok {
		return p
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok = e.profiles[supplierID]; ok {
		return p
	}
	p = &profile{supplierID: supplierID}
	e.profiles[supplierID] = p
	return p
}

// Known reports whether any outcome has been recorded for the supplier.
func (e *Engine) Known(supplierID string) bool {
	e.mu.RLock()
	p, ok := e.profiles[supplierID]
	e.mu.RUnlock()
	if !ok {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.samples > 0
}

// SupplierIDs returns every supplier with at least one recorded outcome.
func (e *Engine) SupplierIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.profiles))
	for id, p := range e.profiles {
		p.mu.Lock()
		n := p.samples
		p.mu.Unlock()
		if n > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// AverageScore returns the mean overall score across the given suppliers,
// counting only those with recorded history. The second return is the number
// of suppliers that contributed.
func (e *Engine) AverageScore(supplierIDs []string) (float64, int) {
	var sum float64
	var n int
	for _, id := range supplierIDs {
		if card, ok := e.Scorecard(id); ok {
			sum += card.Overall
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}
