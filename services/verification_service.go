package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/proserve-app/marketplace-backend/models"
	"github.com/proserve-app/marketplace-backend/utils"
)

// maxVerificationAttempts bounds how many wrong codes a provider may submit
// before the appointment locks and requires staff intervention.
const maxVerificationAttempts = 3

// VerificationService redeems the per-appointment code that proves the
// service was actually delivered. Redemption is the verification half of the
// escrow release double-gate.
type VerificationService struct {
	db     *gorm.DB
	escrow *EscrowService
}

func NewVerificationService(db *gorm.DB, escrow *EscrowService) *VerificationService {
	return &VerificationService{db: db, escrow: escrow}
}

// VerificationResult reports one redemption attempt.
type VerificationResult struct {
	Verified          bool       `json:"verified"`
	RemainingAttempts int        `json:"remaining_attempts"`
	Released          bool       `json:"released"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
}

// VerifyServiceCode checks the provider's submitted code against the
// appointment's issued code. Wrong codes consume an attempt; the third wrong
// code locks the appointment.
func (s *VerificationService) VerifyServiceCode(appointmentID, actorID uint, code string) (*VerificationResult, error) {
	var appointment models.Appointment
	if err := s.db.First(&appointment, appointmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("appointment not found")
		}
		return nil, utils.NewPersistenceError("failed to load appointment", err)
	}

	if actorID != appointment.ProviderID {
		return nil, utils.NewAuthorizationError("only the appointment's provider may verify the service")
	}
	if !utils.ValidCodeFormat(code) {
		return nil, utils.NewValidationError("verification code must be exactly four digits")
	}
	if appointment.ServiceVerifiedAt != nil {
		return nil, utils.NewConflictError("service already verified")
	}
	if appointment.VerificationCode == nil {
		return nil, utils.NewValidationError("no verification code issued for this appointment")
	}

	// Lockout check happens before the comparison so a locked appointment
	// never leaks whether a guess would have been right.
	if appointment.VerificationAttempts >= maxVerificationAttempts {
		return nil, utils.NewAttemptsExceededError("verification attempts exhausted, contact support")
	}

	if !utils.CodesMatch(code, *appointment.VerificationCode) {
		attempts := appointment.VerificationAttempts + 1
		if err := s.db.Model(&models.Appointment{}).Where("id = ?", appointment.ID).
			Update("verification_attempts", attempts).Error; err != nil {
			return nil, utils.NewPersistenceError("failed to record verification attempt", err)
		}
		remaining := maxVerificationAttempts - attempts
		utils.InfoLogger.Printf("Wrong verification code for appointment %d, %d attempts remaining",
			appointment.ID, remaining)
		return &VerificationResult{Verified: false, RemainingAttempts: remaining}, nil
	}

	now := time.Now()
	if err := s.db.Model(&models.Appointment{}).Where("id = ?", appointment.ID).
		Updates(map[string]interface{}{
			"service_verified_at": now,
			"status":              models.AppointmentStatusCompleted,
		}).Error; err != nil {
		return nil, utils.NewPersistenceError("failed to mark service verified", err)
	}

	_, released, err := s.escrow.MarkServiceVerified(appointment.ID)
	if err != nil {
		// The verification stands; the sweeper retries the release.
		utils.ErrorLogger.Printf("Release attempt failed after verifying appointment %d: %v", appointment.ID, err)
	}

	utils.InfoLogger.Printf("Service verified for appointment %d (released=%t)", appointment.ID, released)

	return &VerificationResult{
		Verified:          true,
		RemainingAttempts: maxVerificationAttempts - appointment.VerificationAttempts,
		Released:          released,
		VerifiedAt:        &now,
	}, nil
}

// GetCode returns the appointment's verification code to its client. The
// code never appears in appointment payloads, so this is the only read path.
func (s *VerificationService) GetCode(appointmentID, actorID uint) (string, error) {
	var appointment models.Appointment
	if err := s.db.First(&appointment, appointmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", utils.NewNotFoundError("appointment not found")
		}
		return "", utils.NewPersistenceError("failed to load appointment", err)
	}
	if actorID != appointment.ClientID {
		return "", utils.NewAuthorizationError("only the appointment's client may view the code")
	}
	if appointment.VerificationCode == nil {
		return "", utils.NewNotFoundError("no verification code issued yet")
	}
	return *appointment.VerificationCode, nil
}
