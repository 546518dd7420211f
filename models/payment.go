package models

import (
	"time"
)

const (
	PaymentStatusCompleted = "completed"

	ReleaseStatusPending   = "pending"
	ReleaseStatusEligible  = "eligible"
	ReleaseStatusCompleted = "completed"
)

// Payment is the immutable financial record for a settled appointment.
// Only the release fields change after insert. The composite unique index on
// (appointment_id, status) closes the duplicate-insert race at the data layer:
// the recorder only ever inserts rows with status=completed, so at most one
// completed payment can exist per appointment.
type Payment struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	AppointmentID uint        `gorm:"not null;uniqueIndex:ux_payments_appointment_status,priority:1" json:"appointment_id"`
	Appointment   Appointment `gorm:"foreignKey:AppointmentID" json:"appointment,omitempty"`
	ProviderID    uint        `gorm:"not null;index" json:"provider_id"`
	ClientID      uint        `gorm:"not null;index" json:"client_id"`

	Amount           float64 `gorm:"type:decimal(12,2);not null" json:"amount"`
	TaxAmount        float64 `gorm:"type:decimal(12,2);not null;default:0" json:"tax_amount"`
	CommissionAmount float64 `gorm:"type:decimal(12,2);not null;default:0" json:"commission_amount"`
	ProviderAmount   float64 `gorm:"type:decimal(12,2);not null;default:0" json:"provider_amount"`

	PaymentMethod string `gorm:"type:varchar(10);not null" json:"payment_method"`
	Status        string `gorm:"type:varchar(20);not null;default:'completed';uniqueIndex:ux_payments_appointment_status,priority:2" json:"status"`
	ReferenceID   string `gorm:"type:varchar(64)" json:"reference_id"`

	StripeSessionID       string `gorm:"type:varchar(128)" json:"stripe_session_id,omitempty"`
	StripePaymentIntentID string `gorm:"type:varchar(128)" json:"stripe_payment_intent_id,omitempty"`

	// Escrow release state. CanRelease flips true once the service has been
	// verified (code redeemed or closure resolved positively).
	CanRelease    bool       `gorm:"not null;default:false" json:"can_release"`
	ReleaseStatus string     `gorm:"type:varchar(10);not null;default:'pending';index" json:"release_status"`
	PaidAt        time.Time  `gorm:"not null" json:"paid_at"`
	ReleasedAt    *time.Time `json:"released_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
