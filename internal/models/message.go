package models

import "time"

// MessageRecord is the persisted audit row for one bus message. The bus is
// the sole writer; trace and dashboard consumers read it.
type MessageRecord struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	MessageID      string `gorm:"size:36;uniqueIndex"`
	ConversationID string `gorm:"size:36;not null;index"`
	Seq            int    `gorm:"not null"`
	FromAgent      string `gorm:"size:64;not null"`
	ToAgent        string `gorm:"size:64;not null;index"`
	Kind           string `gorm:"size:16;not null"`
	Summary        string `gorm:"size:512"`
	PayloadJSON    string `gorm:"type:text"`
	SentAt         time.Time
}
