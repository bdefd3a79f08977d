package models

import "time"

// Procurement lifecycle statuses.
const (
	ProcurementActive            = "active"
	ProcurementCompleted         = "completed"
	ProcurementMarketLimitations = "market_limitations"
	ProcurementAbandoned         = "abandoned"
	ProcurementCancelled         = "cancelled"
)

// ProcurementRecord tracks one procurement conversation from initiation to
// terminal disposition. Written by the Supervisor and the abandon sweeper.
type ProcurementRecord struct {
	ID               uint    `gorm:"primaryKey;autoIncrement"`
	ConversationID   string  `gorm:"size:36;uniqueIndex"`
	Category         string  `gorm:"size:64;index"`
	Budget           float64 `gorm:"not null"`
	Quantity         int     `gorm:"default:1"`
	Urgency          string  `gorm:"size:8;default:medium"`
	Requirements     string  `gorm:"type:text"`
	Status           string  `gorm:"size:24;default:active;index"`
	Retries          int     `gorm:"default:0"`
	SelectedSupplier string  `gorm:"size:64"`
	SavingsPct       float64
	Guidance         string `gorm:"type:text"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}
