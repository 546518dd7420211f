package Controllers_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gin-gonic/gin"
	"github.com/proserve-app/marketplace-backend/models"
	"github.com/proserve-app/marketplace-backend/services"
)

func signedWebhookRequest(t *testing.T, payload []byte) *http.Request {
	t.Helper()

	// Same secret as TestMain exports for the singleton.
	signer := services.NewStripeService(&services.StripeConfig{WebhookSecret: "whsec_test"})

	req, err := http.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signer.SignPayload(payload, time.Now()))
	return req
}

func checkoutEvent(eventID string, appointmentID uint, amountCents int64) []byte {
	return []byte(fmt.Sprintf(
		`{"id":"%s","type":"checkout.session.completed","data":{"object":{"id":"cs_%s","payment_intent":"pi_%s","amount_total":%d,"payment_status":"paid","metadata":{"appointment_id":"%d"}}}}`,
		eventID, eventID, eventID, amountCents, appointmentID))
}

func deliverWebhook(t *testing.T, r *gin.Engine, payload []byte) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedWebhookRequest(t, payload))
	return w
}

func TestWebhookRecordsCardPayment(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouterForTest(t, db)

	client, _ := createUser(t, db, "client")
	provider, _ := createUser(t, db, "provider")
	appointment := createAppointment(t, db, client.ID, provider.ID, 1000)

	w := deliverWebhook(t, r, checkoutEvent("evt_pay_1", appointment.ID, 100000))
	assert.Equal(t, http.StatusOK, w.Code)

	var payment models.Payment
	require.NoError(t, db.Where("appointment_id = ?", appointment.ID).First(&payment).Error)
	assert.Equal(t, models.PaymentMethodCard, payment.PaymentMethod)
	assert.Equal(t, 1000.0, payment.Amount)
	assert.Equal(t, 150.0, payment.CommissionAmount)
	assert.Equal(t, "cs_evt_pay_1", payment.StripeSessionID)

	var record models.StripeEventRecord
	require.NoError(t, db.Where("event_id = ?", "evt_pay_1").First(&record).Error)
	assert.Equal(t, models.EventStatusProcessed, record.Status)
}

func TestWebhookDuplicateDeliveryRecordsOnePayment(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouterForTest(t, db)

	client, _ := createUser(t, db, "client")
	provider, _ := createUser(t, db, "provider")
	appointment := createAppointment(t, db, client.ID, provider.ID, 1000)

	payload := checkoutEvent("evt_dup_1", appointment.ID, 100000)

	first := deliverWebhook(t, r, payload)
	assert.Equal(t, http.StatusOK, first.Code)

	second := deliverWebhook(t, r, payload)
	assert.Equal(t, http.StatusOK, second.Code)

	var payments int64
	require.NoError(t, db.Model(&models.Payment{}).
		Where("appointment_id = ?", appointment.ID).Count(&payments).Error)
	assert.Equal(t, int64(1), payments)

	var events int64
	require.NoError(t, db.Model(&models.StripeEventRecord{}).
		Where("event_id = ?", "evt_dup_1").Count(&events).Error)
	assert.Equal(t, int64(1), events)

	// No double escrow hold from the redelivery.
	var wallet models.WalletBalance
	require.NoError(t, db.Where("provider_id = ?", provider.ID).First(&wallet).Error)
	assert.Equal(t, 850.0, wallet.PendingBalance)
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouterForTest(t, db)

	payload := checkoutEvent("evt_bad_sig", 1, 100000)
	req, err := http.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Stripe-Signature", "t=123,v1=deadbeef")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var events int64
	require.NoError(t, db.Model(&models.StripeEventRecord{}).Count(&events).Error)
	assert.Equal(t, int64(0), events)
}

func TestWebhookBusinessFailureStillAcked(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouterForTest(t, db)

	// Appointment 99999 does not exist: processing fails after the ack.
	w := deliverWebhook(t, r, checkoutEvent("evt_missing_appt", 99999, 100000))
	assert.Equal(t, http.StatusOK, w.Code)

	var record models.StripeEventRecord
	require.NoError(t, db.Where("event_id = ?", "evt_missing_appt").First(&record).Error)
	assert.Equal(t, models.EventStatusError, record.Status)
	assert.NotEmpty(t, record.ErrorMessage)
}

func TestWebhookUnknownEventTypeIgnored(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouterForTest(t, db)

	payload := []byte(`{"id":"evt_unknown_1","type":"customer.created","data":{"object":{}}}`)
	w := deliverWebhook(t, r, payload)
	assert.Equal(t, http.StatusOK, w.Code)

	var record models.StripeEventRecord
	require.NoError(t, db.Where("event_id = ?", "evt_unknown_1").First(&record).Error)
	assert.Equal(t, models.EventStatusProcessed, record.Status)

	var payments int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&payments).Error)
	assert.Equal(t, int64(0), payments)
}
