package models

import (
	"time"
)

// Wallet transaction types.
const (
	TxTypeEscrowHold    = "escrow_hold"
	TxTypeEscrowRelease = "escrow_release"
	TxTypeWithdrawal    = "withdrawal"
)

// WalletBalance is the single hot row per provider. All mutations go through
// the escrow release service as single-row atomic arithmetic updates.
type WalletBalance struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ProviderID     uint      `gorm:"not null;uniqueIndex" json:"provider_id"`
	Balance        float64   `gorm:"type:decimal(14,2);not null;default:0" json:"balance"`
	PendingBalance float64   `gorm:"type:decimal(14,2);not null;default:0" json:"pending_balance"`
	TotalEarned    float64   `gorm:"type:decimal(14,2);not null;default:0" json:"total_earned"`
	TotalWithdrawn float64   `gorm:"type:decimal(14,2);not null;default:0" json:"total_withdrawn"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}

// WalletTransaction is the append-only ledger behind every balance-affecting
// event. Rows are never updated or deleted; they are the source of truth for
// balance reconciliation.
type WalletTransaction struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProviderID    uint      `gorm:"not null;index" json:"provider_id"`
	Type          string    `gorm:"type:varchar(20);not null;index" json:"type"`
	Amount        float64   `gorm:"type:decimal(14,2);not null" json:"amount"`
	PaymentID     *uint     `gorm:"index" json:"payment_id,omitempty"`
	AppointmentID *uint     `json:"appointment_id,omitempty"`
	Description   string    `gorm:"type:varchar(255)" json:"description"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
}
