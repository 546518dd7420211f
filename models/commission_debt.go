package models

import (
	"time"
)

const (
	DebtStatusPending = "pending"
	DebtStatusPaid    = "paid"
)

// CommissionDebt is a receivable owed by a provider when the platform
// commission could not be withheld at source (cash collections).
type CommissionDebt struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	ProviderID       uint       `gorm:"not null;index" json:"provider_id"`
	AppointmentID    uint       `gorm:"not null;index" json:"appointment_id"`
	PaymentID        uint       `gorm:"not null" json:"payment_id"`
	CommissionAmount float64    `gorm:"type:decimal(12,2);not null" json:"commission_amount"`
	Status           string     `gorm:"type:varchar(10);not null;default:'pending';index" json:"status"`
	DueDate          time.Time  `gorm:"not null" json:"due_date"`
	SettledAmount    float64    `gorm:"type:decimal(12,2);not null;default:0" json:"settled_amount"`
	AttemptCount     int        `gorm:"not null;default:0" json:"attempt_count"`
	SettledAt        *time.Time `json:"settled_at,omitempty"`
	CreatedAt        time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"not null" json:"updated_at"`

	Settlements []DebtSettlement `gorm:"foreignKey:DebtID" json:"settlements,omitempty"`
}

// DebtSettlement is appended whenever a partial or full charge against a
// commission debt succeeds.
type DebtSettlement struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	DebtID    uint      `gorm:"not null;index" json:"debt_id"`
	Amount    float64   `gorm:"type:decimal(12,2);not null" json:"amount"`
	Reference string    `gorm:"type:varchar(64)" json:"reference"`
	ChargedAt time.Time `gorm:"not null" json:"charged_at"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
