package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/proserve-app/marketplace-backend/models"
	"github.com/proserve-app/marketplace-backend/realtime"
	"github.com/proserve-app/marketplace-backend/utils"
)

// closureResponseDays is how long both parties get to respond once the
// closure protocol opens.
const closureResponseDays = 3

// ClosureService runs the two-party confirmation protocol that settles cash
// appointments without a code redemption. Each party reports what happened;
// the resolution matrix decides whether the appointment settles, resolves
// without payment, or stays open for staff review.
type ClosureService struct {
	db       *gorm.DB
	cash     *CashService
	escrow   *EscrowService
	notifier *NotificationService
}

func NewClosureService(db *gorm.DB, cash *CashService, escrow *EscrowService, notifier *NotificationService) *ClosureService {
	return &ClosureService{db: db, cash: cash, escrow: escrow, notifier: notifier}
}

// ClosureStatus is the view of the protocol returned to either party.
type ClosureStatus struct {
	AppointmentID  uint       `json:"appointment_id"`
	State          string     `json:"state"`
	DueAt          *time.Time `json:"due_at,omitempty"`
	ProviderAction string     `json:"provider_action"`
	ClientAction   string     `json:"client_action"`
	YourAction     string     `json:"your_action"`
	Notes          string     `json:"notes,omitempty"`
}

// ReportProviderAction records the provider's account of how the appointment
// ended and re-evaluates the resolution matrix.
func (s *ClosureService) ReportProviderAction(appointmentID, actorID uint, action, note string) (*models.Appointment, error) {
	switch action {
	case models.ClosureActionCodeEntered, models.ClosureActionNoShow, models.ClosureActionIssue:
	default:
		return nil, utils.NewValidationError("provider action must be one of: code_entered, no_show, issue")
	}
	return s.report(appointmentID, actorID, action, note, true)
}

// ReportClientAction records the client's account and re-evaluates the
// resolution matrix.
func (s *ClosureService) ReportClientAction(appointmentID, actorID uint, action, note string) (*models.Appointment, error) {
	switch action {
	case models.ClosureActionOK, models.ClosureActionNoShow, models.ClosureActionIssue:
	default:
		return nil, utils.NewValidationError("client action must be one of: ok, no_show, issue")
	}
	return s.report(appointmentID, actorID, action, note, false)
}

func (s *ClosureService) report(appointmentID, actorID uint, action, note string, asProvider bool) (*models.Appointment, error) {
	appointment, err := s.loadAppointment(appointmentID)
	if err != nil {
		return nil, err
	}

	if asProvider && actorID != appointment.ProviderID {
		return nil, utils.NewAuthorizationError("only the appointment's provider may report this action")
	}
	if !asProvider && actorID != appointment.ClientID {
		return nil, utils.NewAuthorizationError("only the appointment's client may report this action")
	}
	if appointment.PaymentMethod != models.PaymentMethodCash {
		return nil, utils.NewValidationError("the closure protocol only applies to cash appointments")
	}
	switch appointment.ClosureState {
	case models.ClosureStateResolved:
		return nil, utils.NewConflictError("appointment closure is already resolved")
	case models.ClosureStateInReview:
		return nil, utils.NewConflictError("appointment closure is under staff review")
	}

	now := time.Now()
	updates := map[string]interface{}{}

	if appointment.ClosureState == models.ClosureStateNone {
		due := now.AddDate(0, 0, closureResponseDays)
		appointment.ClosureState = models.ClosureStatePendingClose
		appointment.ClosureDueAt = &due
		updates["closure_state"] = models.ClosureStatePendingClose
		updates["closure_due_at"] = due
	}

	if asProvider {
		appointment.ClosureProviderAction = action
		updates["closure_provider_action"] = action
	} else {
		appointment.ClosureClientAction = action
		updates["closure_client_action"] = action
	}
	if note != "" {
		merged := mergeNote(appointment.ClosureNotes, note, asProvider)
		appointment.ClosureNotes = merged
		updates["closure_notes"] = merged
	}

	if err := s.db.Model(&models.Appointment{}).Where("id = ?", appointment.ID).Updates(updates).Error; err != nil {
		return nil, utils.NewPersistenceError("failed to record closure action", err)
	}

	if err := s.resolve(appointment); err != nil {
		return nil, err
	}

	other := appointment.ClientID
	if !asProvider {
		other = appointment.ProviderID
	}
	s.notifier.NotifyUser(other, "Closure update",
		fmt.Sprintf("The other party reported on appointment #%d. Current state: %s.",
			appointment.ID, appointment.ClosureState),
		"closure", map[string]interface{}{"appointment_id": appointment.ID})
	realtime.BroadcastClosureUpdate(*appointment)

	return appointment, nil
}

// resolve applies the resolution matrix after every reported action.
func (s *ClosureService) resolve(appointment *models.Appointment) error {
	// A completed payment trumps everything: the appointment is settled no
	// matter what either party reported.
	payment, err := s.cash.payments.CompletedPayment(appointment.ID)
	if err != nil {
		return err
	}
	if payment != nil {
		return s.markResolved(appointment)
	}

	provider := appointment.ClosureProviderAction
	client := appointment.ClosureClientAction

	// Both parties agree nothing happened: resolve without payment.
	if provider == models.ClosureActionNoShow && client == models.ClosureActionNoShow {
		return s.markResolved(appointment)
	}

	// Either side confirming the service happened settles the cash path:
	// the client saying "ok" or the provider claiming the code was entered
	// both record the payment, open the commission debt, and resolve.
	if client == models.ClosureActionOK || provider == models.ClosureActionCodeEntered {
		settled, err := s.cash.settleCash(appointment)
		if err != nil {
			return err
		}
		if _, _, err := s.escrow.MarkServiceVerified(appointment.ID); err != nil {
			utils.ErrorLogger.Printf("Failed to mark appointment %d verified after closure settlement: %v",
				appointment.ID, err)
		}
		utils.InfoLogger.Printf("Closure settled appointment %d via payment %d", appointment.ID, settled.ID)
		return s.markResolved(appointment)
	}

	// Disagreement or a lone report: stays pending until the other party
	// responds or the deadline passes and staff steps in.
	return nil
}

func (s *ClosureService) markResolved(appointment *models.Appointment) error {
	if err := s.db.Model(&models.Appointment{}).Where("id = ?", appointment.ID).
		Update("closure_state", models.ClosureStateResolved).Error; err != nil {
		return utils.NewPersistenceError("failed to resolve closure", err)
	}
	appointment.ClosureState = models.ClosureStateResolved
	return nil
}

// Status returns the closure view for one of the appointment's parties.
func (s *ClosureService) Status(appointmentID, actorID uint) (*ClosureStatus, error) {
	appointment, err := s.loadAppointment(appointmentID)
	if err != nil {
		return nil, err
	}
	if actorID != appointment.ProviderID && actorID != appointment.ClientID {
		return nil, utils.NewAuthorizationError("only the appointment's parties may view its closure status")
	}

	status := ClosureStatus{
		AppointmentID:  appointment.ID,
		State:          appointment.ClosureState,
		DueAt:          appointment.ClosureDueAt,
		ProviderAction: appointment.ClosureProviderAction,
		ClientAction:   appointment.ClosureClientAction,
		Notes:          appointment.ClosureNotes,
	}
	if actorID == appointment.ProviderID {
		status.YourAction = appointment.ClosureProviderAction
	} else {
		status.YourAction = appointment.ClosureClientAction
	}
	return &status, nil
}

// MoveToReview escalates a disputed or overdue closure to staff review.
// Admin only; the controller enforces the role.
func (s *ClosureService) MoveToReview(appointmentID uint, note string) (*models.Appointment, error) {
	appointment, err := s.loadAppointment(appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment.ClosureState == models.ClosureStateResolved {
		return nil, utils.NewConflictError("appointment closure is already resolved")
	}

	updates := map[string]interface{}{
		"closure_state": models.ClosureStateInReview,
	}
	if note != "" {
		merged := mergeNote(appointment.ClosureNotes, note, true)
		appointment.ClosureNotes = merged
		updates["closure_notes"] = merged
	}
	if err := s.db.Model(&models.Appointment{}).Where("id = ?", appointment.ID).Updates(updates).Error; err != nil {
		return nil, utils.NewPersistenceError("failed to move closure to review", err)
	}
	appointment.ClosureState = models.ClosureStateInReview

	realtime.BroadcastClosureUpdate(*appointment)
	return appointment, nil
}

// mergeNote keeps per-party notes in a small JSON object so neither side
// overwrites the other's account.
func mergeNote(existing, note string, fromProvider bool) string {
	notes := map[string]string{}
	if existing != "" {
		_ = json.Unmarshal([]byte(existing), &notes)
	}
	if fromProvider {
		notes["provider"] = note
	} else {
		notes["client"] = note
	}
	merged, err := json.Marshal(notes)
	if err != nil {
		return existing
	}
	return string(merged)
}

func (s *ClosureService) loadAppointment(appointmentID uint) (*models.Appointment, error) {
	var appointment models.Appointment
	if err := s.db.First(&appointment, appointmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("appointment not found")
		}
		return nil, utils.NewPersistenceError("failed to load appointment", err)
	}
	return &appointment, nil
}
