package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proserve-app/marketplace-backend/models"
	"github.com/proserve-app/marketplace-backend/utils"
)

func seedCashAppointment(t *testing.T, env *testEnv, price float64) *models.Appointment {
	t.Helper()
	appointment := env.seedAppointment(t, price)
	_, err := env.cash.SelectCash(appointment.ID, appointment.ClientID)
	require.NoError(t, err)
	require.NoError(t, env.db.First(appointment, appointment.ID).Error)
	return appointment
}

func TestClosureCardAppointmentRejected(t *testing.T) {
	env := newTestEnv(t)
	appointment := env.seedAppointment(t, 1000)

	_, err := env.payments.RecordPayment(appointment.ID, 1000, models.PaymentMethodCard, GatewayRefs{})
	require.NoError(t, err)

	_, err = env.closures.ReportClientAction(appointment.ID, appointment.ClientID, models.ClosureActionOK, "")
	assertAppErrorKind(t, err, utils.ErrKindValidation)
}

func TestClosureFirstReportOpensProtocol(t *testing.T) {
	env := newTestEnv(t)
	appointment := seedCashAppointment(t, env, 500)

	updated, err := env.closures.ReportProviderAction(appointment.ID, appointment.ProviderID, models.ClosureActionIssue, "client was not home")
	require.NoError(t, err)

	assert.Equal(t, models.ClosureStatePendingClose, updated.ClosureState)
	require.NotNil(t, updated.ClosureDueAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, closureResponseDays), *updated.ClosureDueAt, time.Minute)
	assert.Equal(t, models.ClosureActionIssue, updated.ClosureProviderAction)
}

func TestClosureBothNoShowResolvesWithoutPayment(t *testing.T) {
	env := newTestEnv(t)
	appointment := seedCashAppointment(t, env, 500)

	_, err := env.closures.ReportProviderAction(appointment.ID, appointment.ProviderID, models.ClosureActionNoShow, "")
	require.NoError(t, err)
	updated, err := env.closures.ReportClientAction(appointment.ID, appointment.ClientID, models.ClosureActionNoShow, "")
	require.NoError(t, err)

	assert.Equal(t, models.ClosureStateResolved, updated.ClosureState)

	var payments int64
	require.NoError(t, env.db.Model(&models.Payment{}).
		Where("appointment_id = ?", appointment.ID).Count(&payments).Error)
	assert.Equal(t, int64(0), payments)
}

func TestClosureClientOKSettlesCash(t *testing.T) {
	env := newTestEnv(t)
	appointment := seedCashAppointment(t, env, 500)

	updated, err := env.closures.ReportClientAction(appointment.ID, appointment.ClientID, models.ClosureActionOK, "all good")
	require.NoError(t, err)

	assert.Equal(t, models.ClosureStateResolved, updated.ClosureState)

	var payment models.Payment
	require.NoError(t, env.db.Where("appointment_id = ?", appointment.ID).First(&payment).Error)
	assert.Equal(t, models.PaymentMethodCash, payment.PaymentMethod)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)

	var debt models.CommissionDebt
	require.NoError(t, env.db.Where("payment_id = ?", payment.ID).First(&debt).Error)
	assert.Equal(t, models.DebtStatusPending, debt.Status)
}

func TestClosureProviderCodeEnteredSettlesCash(t *testing.T) {
	env := newTestEnv(t)
	appointment := seedCashAppointment(t, env, 500)

	updated, err := env.closures.ReportProviderAction(appointment.ID, appointment.ProviderID, models.ClosureActionCodeEntered, "")
	require.NoError(t, err)

	assert.Equal(t, models.ClosureStateResolved, updated.ClosureState)

	var payment models.Payment
	require.NoError(t, env.db.Where("appointment_id = ?", appointment.ID).First(&payment).Error)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
}

func TestClosureDisagreementStaysPending(t *testing.T) {
	env := newTestEnv(t)
	appointment := seedCashAppointment(t, env, 500)

	_, err := env.closures.ReportProviderAction(appointment.ID, appointment.ProviderID, models.ClosureActionNoShow, "")
	require.NoError(t, err)
	updated, err := env.closures.ReportClientAction(appointment.ID, appointment.ClientID, models.ClosureActionIssue, "provider left early")
	require.NoError(t, err)

	assert.Equal(t, models.ClosureStatePendingClose, updated.ClosureState)
}

func TestClosureNotesMergePerParty(t *testing.T) {
	env := newTestEnv(t)
	appointment := seedCashAppointment(t, env, 500)

	_, err := env.closures.ReportProviderAction(appointment.ID, appointment.ProviderID, models.ClosureActionIssue, "door was locked")
	require.NoError(t, err)
	updated, err := env.closures.ReportClientAction(appointment.ID, appointment.ClientID, models.ClosureActionIssue, "nobody showed up")
	require.NoError(t, err)

	var notes map[string]string
	require.NoError(t, json.Unmarshal([]byte(updated.ClosureNotes), &notes))
	assert.Equal(t, "door was locked", notes["provider"])
	assert.Equal(t, "nobody showed up", notes["client"])
}

func TestClosureResolvedIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	appointment := seedCashAppointment(t, env, 500)

	_, err := env.closures.ReportClientAction(appointment.ID, appointment.ClientID, models.ClosureActionOK, "")
	require.NoError(t, err)

	_, err = env.closures.ReportProviderAction(appointment.ID, appointment.ProviderID, models.ClosureActionNoShow, "")
	assertAppErrorKind(t, err, utils.ErrKindConflict)
}

func TestClosureInvalidActions(t *testing.T) {
	env := newTestEnv(t)
	appointment := seedCashAppointment(t, env, 500)

	// "ok" is a client action, "code_entered" a provider action.
	_, err := env.closures.ReportProviderAction(appointment.ID, appointment.ProviderID, models.ClosureActionOK, "")
	assertAppErrorKind(t, err, utils.ErrKindValidation)

	_, err = env.closures.ReportClientAction(appointment.ID, appointment.ClientID, models.ClosureActionCodeEntered, "")
	assertAppErrorKind(t, err, utils.ErrKindValidation)
}

func TestClosureStatusView(t *testing.T) {
	env := newTestEnv(t)
	appointment := seedCashAppointment(t, env, 500)

	_, err := env.closures.ReportProviderAction(appointment.ID, appointment.ProviderID, models.ClosureActionIssue, "")
	require.NoError(t, err)

	status, err := env.closures.Status(appointment.ID, appointment.ProviderID)
	require.NoError(t, err)
	assert.Equal(t, models.ClosureActionIssue, status.YourAction)
	assert.Equal(t, models.ClosureStatePendingClose, status.State)

	clientView, err := env.closures.Status(appointment.ID, appointment.ClientID)
	require.NoError(t, err)
	assert.Equal(t, models.ClosureActionNone, clientView.YourAction)

	_, err = env.closures.Status(appointment.ID, 99999)
	assertAppErrorKind(t, err, utils.ErrKindAuthorization)
}

func TestClosureMoveToReview(t *testing.T) {
	env := newTestEnv(t)
	appointment := seedCashAppointment(t, env, 500)

	_, err := env.closures.ReportProviderAction(appointment.ID, appointment.ProviderID, models.ClosureActionIssue, "")
	require.NoError(t, err)

	updated, err := env.closures.MoveToReview(appointment.ID, "escalated by support")
	require.NoError(t, err)
	assert.Equal(t, models.ClosureStateInReview, updated.ClosureState)

	// No further party actions once under review.
	_, err = env.closures.ReportClientAction(appointment.ID, appointment.ClientID, models.ClosureActionOK, "")
	assertAppErrorKind(t, err, utils.ErrKindConflict)
}

func TestClosureMonitorFlagsOverdue(t *testing.T) {
	env := newTestEnv(t)
	appointment := seedCashAppointment(t, env, 500)

	admin := models.User{Name: "Admin", Email: uniqueEmail("admin"), Password: "x", Role: models.RoleAdmin}
	require.NoError(t, env.db.Create(&admin).Error)

	_, err := env.closures.ReportProviderAction(appointment.ID, appointment.ProviderID, models.ClosureActionIssue, "")
	require.NoError(t, err)

	overdue := time.Now().Add(-time.Hour)
	require.NoError(t, env.db.Model(&models.Appointment{}).Where("id = ?", appointment.ID).
		Update("closure_due_at", overdue).Error)

	monitor := NewClosureMonitor(env.db, env.notifier, 0)
	monitor.CheckOnce()

	var count int64
	require.NoError(t, env.db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", admin.ID, "closure_overdue").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// A second pass does not re-flag.
	monitor.CheckOnce()
	require.NoError(t, env.db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", admin.ID, "closure_overdue").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
