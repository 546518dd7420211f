package models

import (
	"time"
)

// Payment method chosen for an appointment. Empty until a path is selected.
const (
	PaymentMethodCard = "card"
	PaymentMethodCash = "cash"
)

// Appointment status lifecycle (booking flow writes these, the settlement
// engine only reads them).
const (
	AppointmentStatusConfirmed = "confirmed"
	AppointmentStatusCompleted = "completed"
	AppointmentStatusCancelled = "cancelled"
)

// Closure states for the cash mutual-confirmation protocol.
const (
	ClosureStateNone         = "none"
	ClosureStatePendingClose = "pending_close"
	ClosureStateResolved     = "resolved"
	ClosureStateInReview     = "in_review"
)

// Per-party closure actions.
const (
	ClosureActionNone        = "none"
	ClosureActionCodeEntered = "code_entered"
	ClosureActionOK          = "ok"
	ClosureActionNoShow      = "no_show"
	ClosureActionIssue       = "issue"
)

type Appointment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ClientID    uint      `gorm:"not null;index" json:"client_id"`
	Client      User      `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	ProviderID  uint      `gorm:"not null;index" json:"provider_id"`
	Provider    User      `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
	ServiceName string    `gorm:"type:varchar(255);not null" json:"service_name"`
	Price       float64   `gorm:"type:decimal(12,2);not null" json:"price"`
	ScheduledAt time.Time `gorm:"not null" json:"scheduled_at"`
	Status      string    `gorm:"type:varchar(20);not null;default:'confirmed'" json:"status"`

	PaymentMethod string `gorm:"type:varchar(10)" json:"payment_method"`

	// Verification code issued once per appointment, shown to the client and
	// redeemed by the provider to confirm service completion.
	VerificationCode     *string    `gorm:"type:varchar(4)" json:"-"`
	CodeGeneratedAt      *time.Time `json:"code_generated_at,omitempty"`
	VerificationAttempts int        `gorm:"not null;default:0" json:"verification_attempts"`
	ServiceVerifiedAt    *time.Time `json:"service_verified_at,omitempty"`
	CashVerifiedAt       *time.Time `json:"cash_verified_at,omitempty"`

	// Closure protocol fields (cash appointments only).
	ClosureState          string     `gorm:"type:varchar(20);not null;default:'none';index" json:"closure_state"`
	ClosureDueAt          *time.Time `json:"closure_due_at,omitempty"`
	ClosureProviderAction string     `gorm:"type:varchar(20);not null;default:'none'" json:"closure_provider_action"`
	ClosureClientAction   string     `gorm:"type:varchar(20);not null;default:'none'" json:"closure_client_action"`
	ClosureNotes          string     `gorm:"type:text" json:"closure_notes,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
