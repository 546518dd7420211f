package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/proserve-app/marketplace-backend/config"
	"github.com/proserve-app/marketplace-backend/models"
	"github.com/proserve-app/marketplace-backend/utils"
)

// CashService is the alternate entry point to the payment recorder for cash
// settlements. The platform commission cannot be withheld from cash, so every
// cash settlement also opens a commission debt against the provider.
type CashService struct {
	db       *gorm.DB
	settings *config.Settings
	payments *PaymentService
	notifier *NotificationService
}

func NewCashService(db *gorm.DB, settings *config.Settings, payments *PaymentService, notifier *NotificationService) *CashService {
	return &CashService{
		db:       db,
		settings: settings,
		payments: payments,
		notifier: notifier,
	}
}

// SelectCash marks the appointment for cash settlement and issues (or
// reuses) its verification code. Either party may select cash.
func (s *CashService) SelectCash(appointmentID, actorID uint) (*models.Appointment, error) {
	appointment, err := s.loadAppointment(appointmentID)
	if err != nil {
		return nil, err
	}
	if actorID != appointment.ProviderID && actorID != appointment.ClientID {
		return nil, utils.NewAuthorizationError("only the appointment's provider or client may select cash")
	}
	if err := s.checkCap(appointment.Price); err != nil {
		return nil, err
	}
	if existing, err := s.payments.CompletedPayment(appointmentID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, utils.NewConflictError("appointment already has a completed payment")
	}

	now := time.Now()
	updates := map[string]interface{}{
		"payment_method": models.PaymentMethodCash,
	}
	if appointment.VerificationCode == nil {
		code := utils.GenerateCode()
		updates["verification_code"] = code
		updates["code_generated_at"] = now
		appointment.VerificationCode = &code
		appointment.CodeGeneratedAt = &now
	}
	if err := s.db.Model(&models.Appointment{}).Where("id = ?", appointment.ID).Updates(updates).Error; err != nil {
		return nil, utils.NewPersistenceError("failed to select cash payment", err)
	}
	appointment.PaymentMethod = models.PaymentMethodCash

	s.notifier.NotifyUser(appointment.ClientID, "Cash payment selected",
		fmt.Sprintf("Cash was selected for appointment #%d. Your verification code is %s.",
			appointment.ID, *appointment.VerificationCode),
		"cash", map[string]interface{}{"appointment_id": appointment.ID})

	return appointment, nil
}

// CollectCash records a cash settlement declared by the provider for a
// confirmed appointment, then opens the commission debt.
func (s *CashService) CollectCash(appointmentID, actorID uint) (*models.Payment, error) {
	appointment, err := s.loadAppointment(appointmentID)
	if err != nil {
		return nil, err
	}
	if actorID != appointment.ProviderID {
		return nil, utils.NewAuthorizationError("only the appointment's provider may collect cash")
	}
	if appointment.Status != models.AppointmentStatusConfirmed {
		return nil, utils.NewValidationError("appointment is not confirmed")
	}
	if err := s.checkCap(appointment.Price); err != nil {
		return nil, err
	}

	payment, err := s.payments.RecordPayment(appointment.ID, appointment.Price, models.PaymentMethodCash, GatewayRefs{})
	if err != nil {
		return nil, err
	}

	s.createDebt(appointment, payment)
	return payment, nil
}

// VerifyCashCode settles cash after the provider submits the code obtained
// from the client. A mismatch rejects without side effects; this endpoint
// does not consume the service-verification attempt counter.
func (s *CashService) VerifyCashCode(appointmentID, actorID uint, code string) (*models.Payment, error) {
	appointment, err := s.loadAppointment(appointmentID)
	if err != nil {
		return nil, err
	}
	if actorID != appointment.ProviderID {
		return nil, utils.NewAuthorizationError("only the appointment's provider may verify the cash code")
	}
	if !utils.ValidCodeFormat(code) {
		return nil, utils.NewValidationError("verification code must be exactly four digits")
	}
	if appointment.VerificationCode == nil {
		return nil, utils.NewValidationError("no verification code issued for this appointment")
	}
	if err := s.checkCap(appointment.Price); err != nil {
		return nil, err
	}
	if !utils.CodesMatch(code, *appointment.VerificationCode) {
		return nil, utils.NewValidationError("verification code mismatch")
	}

	payment, err := s.settleCash(appointment)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.db.Model(&models.Appointment{}).Where("id = ?", appointment.ID).
		Update("cash_verified_at", now).Error; err != nil {
		utils.ErrorLogger.Printf("Failed to stamp cash verification on appointment %d: %v", appointment.ID, err)
	}

	return payment, nil
}

// settleCash runs the payment recorder on the cash path and opens the debt.
// Shared by the code-gated flow and the closure protocol resolution.
func (s *CashService) settleCash(appointment *models.Appointment) (*models.Payment, error) {
	payment, err := s.payments.RecordPayment(appointment.ID, appointment.Price, models.PaymentMethodCash, GatewayRefs{})
	if err != nil {
		return nil, err
	}
	s.createDebt(appointment, payment)
	return payment, nil
}

// createDebt opens the commission receivable for a cash payment. The payment
// is the higher-priority invariant: a debt insert failure is logged as a
// warning and never rolls the payment back.
func (s *CashService) createDebt(appointment *models.Appointment, payment *models.Payment) {
	var existing models.CommissionDebt
	err := s.db.Where("payment_id = ?", payment.ID).First(&existing).Error
	if err == nil {
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.ErrorLogger.Printf("Failed to check commission debt for payment %d: %v", payment.ID, err)
		return
	}

	debt := models.CommissionDebt{
		ProviderID:       appointment.ProviderID,
		AppointmentID:    appointment.ID,
		PaymentID:        payment.ID,
		CommissionAmount: payment.CommissionAmount,
		Status:           models.DebtStatusPending,
		DueDate:          payment.PaidAt.AddDate(0, 0, s.settings.CashDebtDueDays()),
	}
	if err := s.db.Create(&debt).Error; err != nil {
		utils.ErrorLogger.Printf("Failed to create commission debt for payment %d: %v", payment.ID, err)
		return
	}

	s.notifier.NotifyUser(appointment.ProviderID, "Commission due",
		fmt.Sprintf("A platform commission of %s for appointment #%d is due by %s.",
			utils.FormatAmount(debt.CommissionAmount), appointment.ID, debt.DueDate.Format("2006-01-02")),
		"commission_debt", map[string]interface{}{"debt_id": debt.ID})
}

// SettleDebt appends a settlement charge against a commission debt and
// closes the debt once fully covered.
func (s *CashService) SettleDebt(debtID uint, amount float64, reference string) (*models.CommissionDebt, error) {
	if amount <= 0 {
		return nil, utils.NewValidationError("settlement amount must be greater than 0")
	}

	var debt models.CommissionDebt
	if err := s.db.First(&debt, debtID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("commission debt not found")
		}
		return nil, utils.NewPersistenceError("failed to load commission debt", err)
	}
	if debt.Status == models.DebtStatusPaid {
		return nil, utils.NewConflictError("commission debt already settled")
	}

	now := time.Now()
	tx := s.db.Begin()

	settlement := models.DebtSettlement{
		DebtID:    debt.ID,
		Amount:    amount,
		Reference: reference,
		ChargedAt: now,
	}
	if err := tx.Create(&settlement).Error; err != nil {
		tx.Rollback()
		return nil, utils.NewPersistenceError("failed to append settlement", err)
	}

	debt.SettledAmount = round2(debt.SettledAmount + amount)
	debt.AttemptCount++
	if debt.SettledAmount >= debt.CommissionAmount {
		debt.Status = models.DebtStatusPaid
		debt.SettledAt = &now
	}
	if err := tx.Save(&debt).Error; err != nil {
		tx.Rollback()
		return nil, utils.NewPersistenceError("failed to update commission debt", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, utils.NewPersistenceError("failed to commit settlement", err)
	}

	return &debt, nil
}

func (s *CashService) checkCap(amount float64) error {
	cap := s.settings.CashMaxAmount()
	if amount > cap {
		return utils.NewValidationError(
			fmt.Sprintf("amount exceeds the cash payment cap of %s", utils.FormatAmount(cap)))
	}
	return nil
}

func (s *CashService) loadAppointment(appointmentID uint) (*models.Appointment, error) {
	var appointment models.Appointment
	if err := s.db.First(&appointment, appointmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("appointment not found")
		}
		return nil, utils.NewPersistenceError("failed to load appointment", err)
	}
	return &appointment, nil
}
