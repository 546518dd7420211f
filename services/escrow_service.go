package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/proserve-app/marketplace-backend/config"
	"github.com/proserve-app/marketplace-backend/models"
	"github.com/proserve-app/marketplace-backend/realtime"
	"github.com/proserve-app/marketplace-backend/utils"
)

// EscrowService governs when a recorded payment's provider share moves from
// the held pending balance to the spendable wallet balance.
//
// The release double-gate: funds move only when BOTH the holdback period has
// elapsed AND the service has been verified (code redeemed or closure
// resolved positively). Time alone never releases money, and neither does
// verification alone.
type EscrowService struct {
	db       *gorm.DB
	settings *config.Settings
	notifier *NotificationService
}

func NewEscrowService(db *gorm.DB, settings *config.Settings, notifier *NotificationService) *EscrowService {
	return &EscrowService{db: db, settings: settings, notifier: notifier}
}

// HoldFunds credits a card payment's provider share to the pending balance
// inside the caller's transaction. Wallet arithmetic is a single-row atomic
// update; the append-only wallet transaction is the reconciliation record.
func (s *EscrowService) HoldFunds(tx *gorm.DB, payment *models.Payment) error {
	if err := s.ensureWallet(tx, payment.ProviderID); err != nil {
		return err
	}

	err := tx.Model(&models.WalletBalance{}).
		Where("provider_id = ?", payment.ProviderID).
		UpdateColumns(map[string]interface{}{
			"pending_balance": gorm.Expr("pending_balance + ?", payment.ProviderAmount),
			"total_earned":    gorm.Expr("total_earned + ?", payment.ProviderAmount),
			"updated_at":      time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to credit pending balance: %w", err)
	}

	entry := models.WalletTransaction{
		ProviderID:    payment.ProviderID,
		Type:          models.TxTypeEscrowHold,
		Amount:        payment.ProviderAmount,
		PaymentID:     &payment.ID,
		AppointmentID: &payment.AppointmentID,
		Description:   "provider share held pending release",
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to append wallet transaction: %w", err)
	}
	return nil
}

// MarkServiceVerified flips the verification gate for the appointment's
// completed payment and attempts a release. If the holdback has not elapsed
// yet, the payment stays flagged and the sweeper completes the release later.
func (s *EscrowService) MarkServiceVerified(appointmentID uint) (*models.Payment, bool, error) {
	var payment models.Payment
	err := s.db.Where("appointment_id = ? AND status = ?", appointmentID, models.PaymentStatusCompleted).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, utils.NewPersistenceError("failed to load payment", err)
	}

	if !payment.CanRelease {
		if err := s.db.Model(&payment).Update("can_release", true).Error; err != nil {
			return nil, false, utils.NewPersistenceError("failed to flag payment releasable", err)
		}
		payment.CanRelease = true
	}

	released, err := s.ReleaseIfDue(&payment)
	return &payment, released, err
}

// ReleaseIfDue moves the provider share to the spendable balance when both
// gates are open. Returns true when funds moved on this call. Safe to call
// repeatedly: a completed payment is never released twice.
func (s *EscrowService) ReleaseIfDue(payment *models.Payment) (bool, error) {
	if payment.ReleaseStatus == models.ReleaseStatusCompleted {
		return false, nil
	}

	holdback := time.Duration(s.settings.ReleaseHoldbackDays()) * 24 * time.Hour
	holdbackOver := !time.Now().Before(payment.PaidAt.Add(holdback))

	if holdbackOver && payment.ReleaseStatus == models.ReleaseStatusPending {
		if err := s.db.Model(payment).Update("release_status", models.ReleaseStatusEligible).Error; err != nil {
			return false, utils.NewPersistenceError("failed to mark payment eligible", err)
		}
		payment.ReleaseStatus = models.ReleaseStatusEligible
	}

	if !payment.CanRelease || !holdbackOver {
		return false, nil
	}

	now := time.Now()
	tx := s.db.Begin()

	// The guarded update is the idempotency point: whichever pass flips the
	// status first does the fund movement, every other pass is a no-op.
	result := tx.Model(&models.Payment{}).
		Where("id = ? AND release_status <> ?", payment.ID, models.ReleaseStatusCompleted).
		Updates(map[string]interface{}{
			"release_status": models.ReleaseStatusCompleted,
			"released_at":    now,
		})
	if result.Error != nil {
		tx.Rollback()
		return false, utils.NewPersistenceError("failed to complete release", result.Error)
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return false, nil
	}

	// Cash never entered the platform, so there is nothing to move; the
	// status flip alone closes the escrow record.
	if payment.PaymentMethod == models.PaymentMethodCard {
		err := tx.Model(&models.WalletBalance{}).
			Where("provider_id = ?", payment.ProviderID).
			UpdateColumns(map[string]interface{}{
				"pending_balance": gorm.Expr("pending_balance - ?", payment.ProviderAmount),
				"balance":         gorm.Expr("balance + ?", payment.ProviderAmount),
				"updated_at":      now,
			}).Error
		if err != nil {
			tx.Rollback()
			return false, utils.NewPersistenceError("failed to move funds", err)
		}

		entry := models.WalletTransaction{
			ProviderID:    payment.ProviderID,
			Type:          models.TxTypeEscrowRelease,
			Amount:        payment.ProviderAmount,
			PaymentID:     &payment.ID,
			AppointmentID: &payment.AppointmentID,
			Description:   "escrow released to spendable balance",
		}
		if err := tx.Create(&entry).Error; err != nil {
			tx.Rollback()
			return false, utils.NewPersistenceError("failed to append wallet transaction", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return false, utils.NewPersistenceError("failed to commit release", err)
	}

	payment.ReleaseStatus = models.ReleaseStatusCompleted
	payment.ReleasedAt = &now

	utils.InfoLogger.Printf("Released payment %d (%s) for provider %d: %s",
		payment.ID, payment.PaymentMethod, payment.ProviderID, utils.FormatAmount(payment.ProviderAmount))

	if payment.PaymentMethod == models.PaymentMethodCard {
		s.notifier.NotifyUser(payment.ProviderID, "Funds released",
			fmt.Sprintf("%s from appointment #%d is now available in your wallet.",
				utils.FormatAmount(payment.ProviderAmount), payment.AppointmentID),
			"escrow", map[string]interface{}{"payment_id": payment.ID})
	}
	realtime.BroadcastEscrowReleased(*payment)

	return true, nil
}

// PromoteEligible flips pending payments past the holdback to eligible.
// Purely time-based; no funds move here.
func (s *EscrowService) PromoteEligible() (int64, error) {
	cutoff := time.Now().Add(-time.Duration(s.settings.ReleaseHoldbackDays()) * 24 * time.Hour)
	result := s.db.Model(&models.Payment{}).
		Where("release_status = ? AND paid_at <= ?", models.ReleaseStatusPending, cutoff).
		Update("release_status", models.ReleaseStatusEligible)
	if result.Error != nil {
		return 0, utils.NewPersistenceError("failed to promote eligible payments", result.Error)
	}
	return result.RowsAffected, nil
}

// ReleaseDue releases every verified payment whose holdback has elapsed.
// This is the periodic reconciliation pass for payments verified before
// their holdback ran out.
func (s *EscrowService) ReleaseDue() (int, error) {
	cutoff := time.Now().Add(-time.Duration(s.settings.ReleaseHoldbackDays()) * 24 * time.Hour)

	var due []models.Payment
	err := s.db.Where("can_release = ? AND release_status <> ? AND paid_at <= ?",
		true, models.ReleaseStatusCompleted, cutoff).
		Find(&due).Error
	if err != nil {
		return 0, utils.NewPersistenceError("failed to query due payments", err)
	}

	released := 0
	for i := range due {
		moved, err := s.ReleaseIfDue(&due[i])
		if err != nil {
			utils.ErrorLogger.Printf("Release failed for payment %d: %v", due[i].ID, err)
			continue
		}
		if moved {
			released++
		}
	}
	return released, nil
}

// Wallet returns the provider's wallet, creating the row on first access.
func (s *EscrowService) Wallet(providerID uint) (*models.WalletBalance, error) {
	if err := s.ensureWallet(s.db, providerID); err != nil {
		return nil, utils.NewPersistenceError("failed to ensure wallet", err)
	}
	var wallet models.WalletBalance
	if err := s.db.Where("provider_id = ?", providerID).First(&wallet).Error; err != nil {
		return nil, utils.NewPersistenceError("failed to load wallet", err)
	}
	return &wallet, nil
}

// EarningsSummary aggregates a provider's payments for a month ("2006-01").
type EarningsSummary struct {
	Month           string               `json:"month"`
	PaymentCount    int64                `json:"payment_count"`
	GrossTotal      float64              `json:"gross_total"`
	CommissionTotal float64              `json:"commission_total"`
	NetEarnings     float64              `json:"net_earnings"`
	Wallet          models.WalletBalance `json:"wallet"`
}

func (s *EscrowService) EarningsSummary(providerID uint, month string) (*EarningsSummary, error) {
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, utils.NewValidationError("month must be in YYYY-MM format")
	}
	end := start.AddDate(0, 1, 0)

	summary := EarningsSummary{Month: month}

	row := s.db.Model(&models.Payment{}).
		Select("COUNT(*) AS payment_count, COALESCE(SUM(amount),0) AS gross_total, COALESCE(SUM(commission_amount),0) AS commission_total, COALESCE(SUM(provider_amount),0) AS net_earnings").
		Where("provider_id = ? AND status = ? AND paid_at >= ? AND paid_at < ?",
			providerID, models.PaymentStatusCompleted, start, end).
		Row()
	if err := row.Scan(&summary.PaymentCount, &summary.GrossTotal, &summary.CommissionTotal, &summary.NetEarnings); err != nil {
		return nil, utils.NewPersistenceError("failed to aggregate earnings", err)
	}

	wallet, err := s.Wallet(providerID)
	if err != nil {
		return nil, err
	}
	summary.Wallet = *wallet

	return &summary, nil
}

func (s *EscrowService) ensureWallet(tx *gorm.DB, providerID uint) error {
	var wallet models.WalletBalance
	err := tx.Where("provider_id = ?", providerID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		wallet = models.WalletBalance{ProviderID: providerID}
		if createErr := tx.Create(&wallet).Error; createErr != nil && !errors.Is(createErr, gorm.ErrDuplicatedKey) {
			return createErr
		}
		return nil
	}
	return err
}
