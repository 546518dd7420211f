package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/proserve-app/marketplace-backend/config"
	"github.com/proserve-app/marketplace-backend/models"
	"github.com/proserve-app/marketplace-backend/realtime"
	"github.com/proserve-app/marketplace-backend/utils"
)

// GatewayRefs carries the external identifiers attached to a settlement.
type GatewayRefs struct {
	SessionID       string
	PaymentIntentID string
	Reference       string
}

// PaymentService turns a settlement trigger (gateway event or cash
// declaration) into a durable, commission-split payment record. At most one
// completed payment can exist per appointment; a duplicate trigger returns
// the existing record and is treated as success.
type PaymentService struct {
	db       *gorm.DB
	settings *config.Settings
	escrow   *EscrowService
	notifier *NotificationService
}

func NewPaymentService(db *gorm.DB, settings *config.Settings, escrow *EscrowService, notifier *NotificationService) *PaymentService {
	return &PaymentService{
		db:       db,
		settings: settings,
		escrow:   escrow,
		notifier: notifier,
	}
}

// RecordPayment computes the tax/commission/provider split and writes the
// payment row for the appointment. Card settlements start the escrow hold;
// cash settlements are born releasable since the provider already physically
// holds the money.
func (s *PaymentService) RecordPayment(appointmentID uint, gross float64, method string, refs GatewayRefs) (*models.Payment, error) {
	if gross <= 0 {
		return nil, utils.NewValidationError("payment amount must be greater than 0")
	}
	if method != models.PaymentMethodCard && method != models.PaymentMethodCash {
		return nil, utils.NewValidationError("unsupported payment method")
	}

	var appointment models.Appointment
	if err := s.db.First(&appointment, appointmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("appointment not found")
		}
		return nil, utils.NewPersistenceError("failed to load appointment", err)
	}

	// Fast-path duplicate check; the unique index on (appointment_id,
	// status) closes the remaining race window at insert time.
	if existing, err := s.completedPayment(appointmentID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	split := ComputeSplit(gross, s.settings.VATRatePercent(), s.settings.CommissionRate())
	now := time.Now()

	reference := refs.Reference
	if reference == "" {
		reference = "PAY-" + uuid.New().String()[:8]
	}

	payment := models.Payment{
		AppointmentID:         appointment.ID,
		ProviderID:            appointment.ProviderID,
		ClientID:              appointment.ClientID,
		Amount:                gross,
		TaxAmount:             split.Tax,
		CommissionAmount:      split.Commission,
		ProviderAmount:        split.ProviderAmount,
		PaymentMethod:         method,
		Status:                models.PaymentStatusCompleted,
		ReferenceID:           reference,
		StripeSessionID:       refs.SessionID,
		StripePaymentIntentID: refs.PaymentIntentID,
		CanRelease:            method == models.PaymentMethodCash,
		ReleaseStatus:         models.ReleaseStatusPending,
		PaidAt:                now,
	}
	if method == models.PaymentMethodCash {
		payment.ReleaseStatus = models.ReleaseStatusEligible
	}

	tx := s.db.Begin()

	if err := tx.Create(&payment).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the insert race; the winner's row is the payment.
			existing, lookupErr := s.completedPayment(appointmentID)
			if lookupErr == nil && existing != nil {
				return existing, nil
			}
			return nil, utils.NewConflictError("payment already recorded for appointment")
		}
		return nil, utils.NewPersistenceError("failed to insert payment", err)
	}

	if method == models.PaymentMethodCard {
		if err := s.escrow.HoldFunds(tx, &payment); err != nil {
			tx.Rollback()
			return nil, utils.NewPersistenceError("failed to hold provider funds", err)
		}
	}

	updates := map[string]interface{}{
		"payment_method": method,
	}
	code := appointment.VerificationCode
	if code == nil {
		generated := utils.GenerateCode()
		updates["verification_code"] = generated
		updates["code_generated_at"] = now
		code = &generated
	}
	if err := tx.Model(&models.Appointment{}).Where("id = ?", appointment.ID).Updates(updates).Error; err != nil {
		tx.Rollback()
		return nil, utils.NewPersistenceError("failed to update appointment", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, utils.NewPersistenceError("failed to commit payment", err)
	}

	utils.InfoLogger.Printf("Recorded %s payment %d for appointment %d: amount=%s commission=%s provider=%s",
		method, payment.ID, appointment.ID,
		utils.FormatAmount(payment.Amount),
		utils.FormatAmount(payment.CommissionAmount),
		utils.FormatAmount(payment.ProviderAmount))

	// Notifications are best effort and never fail the settlement.
	s.notifier.NotifyUser(appointment.ClientID, "Payment confirmed",
		fmt.Sprintf("Your payment of %s is confirmed. Share code %s with your provider when the service is completed.",
			utils.FormatAmount(gross), *code),
		"payment", map[string]interface{}{"appointment_id": appointment.ID, "payment_id": payment.ID})
	s.notifier.NotifyUser(appointment.ProviderID, "Payment received",
		fmt.Sprintf("A payment of %s was received for appointment #%d.", utils.FormatAmount(gross), appointment.ID),
		"payment", map[string]interface{}{"appointment_id": appointment.ID, "payment_id": payment.ID})
	realtime.BroadcastPaymentReceived(payment)

	return &payment, nil
}

// CompletedPayment returns the completed payment for an appointment, or nil.
func (s *PaymentService) CompletedPayment(appointmentID uint) (*models.Payment, error) {
	return s.completedPayment(appointmentID)
}

func (s *PaymentService) completedPayment(appointmentID uint) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.Where("appointment_id = ? AND status = ?", appointmentID, models.PaymentStatusCompleted).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.NewPersistenceError("failed to query payments", err)
	}
	return &payment, nil
}
