package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proserve-app/marketplace-backend/models"
	"github.com/proserve-app/marketplace-backend/utils"
)

func wrongCodeFor(stored string) string {
	if stored == "1234" {
		return "4321"
	}
	return "1234"
}

func TestVerifyServiceCodeSuccess(t *testing.T) {
	env := newTestEnv(t)
	appointment := env.seedAppointment(t, 1000)

	_, err := env.payments.RecordPayment(appointment.ID, 1000, models.PaymentMethodCard, GatewayRefs{})
	require.NoError(t, err)

	var stored models.Appointment
	require.NoError(t, env.db.First(&stored, appointment.ID).Error)
	require.NotNil(t, stored.VerificationCode)

	result, err := env.verification.VerifyServiceCode(appointment.ID, appointment.ProviderID, *stored.VerificationCode)
	require.NoError(t, err)

	assert.True(t, result.Verified)
	assert.NotNil(t, result.VerifiedAt)
	// Holdback has not elapsed, so verification alone must not release.
	assert.False(t, result.Released)

	var after models.Appointment
	require.NoError(t, env.db.First(&after, appointment.ID).Error)
	assert.NotNil(t, after.ServiceVerifiedAt)
	assert.Equal(t, models.AppointmentStatusCompleted, after.Status)

	var payment models.Payment
	require.NoError(t, env.db.Where("appointment_id = ?", appointment.ID).First(&payment).Error)
	assert.True(t, payment.CanRelease)
}

func TestVerifyServiceCodeAttemptLockout(t *testing.T) {
	env := newTestEnv(t)
	appointment := env.seedAppointment(t, 1000)

	_, err := env.payments.RecordPayment(appointment.ID, 1000, models.PaymentMethodCard, GatewayRefs{})
	require.NoError(t, err)

	var stored models.Appointment
	require.NoError(t, env.db.First(&stored, appointment.ID).Error)
	wrong := wrongCodeFor(*stored.VerificationCode)

	// Three wrong attempts count down 2, 1, 0.
	for i, want := range []int{2, 1, 0} {
		result, err := env.verification.VerifyServiceCode(appointment.ID, appointment.ProviderID, wrong)
		require.NoError(t, err, "attempt %d", i+1)
		assert.False(t, result.Verified)
		assert.Equal(t, want, result.RemainingAttempts)
	}

	// The fourth attempt is rejected outright, even with the right code.
	_, err = env.verification.VerifyServiceCode(appointment.ID, appointment.ProviderID, *stored.VerificationCode)
	assertAppErrorKind(t, err, utils.ErrKindAttemptsExceeded)
}

func TestVerifyServiceCodeProviderOnly(t *testing.T) {
	env := newTestEnv(t)
	appointment := env.seedAppointment(t, 1000)

	_, err := env.payments.RecordPayment(appointment.ID, 1000, models.PaymentMethodCard, GatewayRefs{})
	require.NoError(t, err)

	_, err = env.verification.VerifyServiceCode(appointment.ID, appointment.ClientID, "1234")
	assertAppErrorKind(t, err, utils.ErrKindAuthorization)
}

func TestVerifyServiceCodeAlreadyVerified(t *testing.T) {
	env := newTestEnv(t)
	appointment := env.seedAppointment(t, 1000)

	_, err := env.payments.RecordPayment(appointment.ID, 1000, models.PaymentMethodCard, GatewayRefs{})
	require.NoError(t, err)

	var stored models.Appointment
	require.NoError(t, env.db.First(&stored, appointment.ID).Error)

	_, err = env.verification.VerifyServiceCode(appointment.ID, appointment.ProviderID, *stored.VerificationCode)
	require.NoError(t, err)

	_, err = env.verification.VerifyServiceCode(appointment.ID, appointment.ProviderID, *stored.VerificationCode)
	assertAppErrorKind(t, err, utils.ErrKindConflict)
}

func TestVerifyServiceCodeFormat(t *testing.T) {
	env := newTestEnv(t)
	appointment := env.seedAppointment(t, 1000)

	_, err := env.payments.RecordPayment(appointment.ID, 1000, models.PaymentMethodCard, GatewayRefs{})
	require.NoError(t, err)

	for _, bad := range []string{"", "12", "12345", "abcd"} {
		_, err := env.verification.VerifyServiceCode(appointment.ID, appointment.ProviderID, bad)
		assertAppErrorKind(t, err, utils.ErrKindValidation)
	}

	// Format rejections never consume attempts.
	var after models.Appointment
	require.NoError(t, env.db.First(&after, appointment.ID).Error)
	assert.Equal(t, 0, after.VerificationAttempts)
}

func TestGetCodeClientOnly(t *testing.T) {
	env := newTestEnv(t)
	appointment := env.seedAppointment(t, 1000)

	_, err := env.payments.RecordPayment(appointment.ID, 1000, models.PaymentMethodCard, GatewayRefs{})
	require.NoError(t, err)

	code, err := env.verification.GetCode(appointment.ID, appointment.ClientID)
	require.NoError(t, err)
	assert.True(t, utils.ValidCodeFormat(code))

	_, err = env.verification.GetCode(appointment.ID, appointment.ProviderID)
	assertAppErrorKind(t, err, utils.ErrKindAuthorization)
}
