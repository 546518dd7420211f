package models

import (
	"time"
)

const (
	EventStatusReceived  = "received"
	EventStatusProcessed = "processed"
	EventStatusError     = "error"
)

// StripeEventRecord is the idempotency ledger for inbound gateway events.
// The unique index on event_id is what makes concurrent redelivery safe:
// the insert-if-absent either wins or observes the earlier row.
type StripeEventRecord struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	EventID      string     `gorm:"type:varchar(128);not null;uniqueIndex" json:"event_id"`
	EventType    string     `gorm:"type:varchar(64);not null;index" json:"event_type"`
	PayloadHash  string     `gorm:"type:varchar(64);not null" json:"payload_hash"`
	Status       string     `gorm:"type:varchar(10);not null;default:'received';index" json:"status"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
}
