package services

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStripeService(apiBase string) *StripeService {
	return NewStripeService(&StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
		APIBase:       apiBase,
	})
}

func TestVerifyWebhookSignature(t *testing.T) {
	svc := newTestStripeService("")
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)

	header := svc.SignPayload(payload, time.Now())
	assert.True(t, svc.VerifyWebhookSignature(payload, header))

	// Tampered payload fails.
	assert.False(t, svc.VerifyWebhookSignature([]byte(`{"id":"evt_2"}`), header))

	// Garbage headers fail.
	assert.False(t, svc.VerifyWebhookSignature(payload, ""))
	assert.False(t, svc.VerifyWebhookSignature(payload, "t=abc,v1=def"))
}

func TestVerifyWebhookSignatureStaleTimestamp(t *testing.T) {
	svc := newTestStripeService("")
	payload := []byte(`{"id":"evt_old"}`)

	header := svc.SignPayload(payload, time.Now().Add(-10*time.Minute))
	assert.False(t, svc.VerifyWebhookSignature(payload, header))
}

func TestParseEventKind(t *testing.T) {
	assert.Equal(t, EventKindCheckoutCompleted, ParseEventKind("checkout.session.completed"))
	assert.Equal(t, EventKindInvoicePaid, ParseEventKind("invoice.paid"))
	assert.Equal(t, EventKindPaymentIntentSucceeded, ParseEventKind("payment_intent.succeeded"))
	assert.Equal(t, EventKindAccountUpdated, ParseEventKind("account.updated"))
	assert.Equal(t, EventKindUnknown, ParseEventKind("customer.created"))
}

func TestGetCheckoutSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions/cs_test_1", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"id":"cs_test_1","payment_intent":"pi_1","amount_total":100000,"payment_status":"paid","metadata":{"appointment_id":"42"}}`)
	}))
	defer server.Close()

	svc := newTestStripeService(server.URL)

	session, err := svc.GetCheckoutSession("cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, "pi_1", session.PaymentIntent)
	assert.Equal(t, int64(100000), session.AmountTotal)
	assert.Equal(t, "42", session.Metadata["appointment_id"])
}

func TestGetPaymentIntentAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"message":"no such payment_intent"}}`)
	}))
	defer server.Close()

	svc := newTestStripeService(server.URL)

	_, err := svc.GetPaymentIntent("pi_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
