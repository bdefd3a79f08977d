package models

import "time"

// SupplierOutcome is the persisted form of one negotiation outcome, the only
// write path into supplier memory. The learning engine appends these rows
// and rebuilds its in-memory profiles from them at startup.
type SupplierOutcome struct {
	ID             uint    `gorm:"primaryKey;autoIncrement"`
	SupplierID     string  `gorm:"size:64;not null;index"`
	SupplierName   string  `gorm:"size:128"`
	ConversationID string  `gorm:"size:36;index"`
	Tag            string  `gorm:"size:16;not null"`
	RequestedPrice float64 `gorm:"not null"`
	AgreedPrice    float64
	SavingsPct     float64
	DeliveryDays   int
	OnTime         bool   `gorm:"default:true"`
	QualityScore   float64
	Rationale      string `gorm:"type:text"`
	CreatedAt      time.Time
}
