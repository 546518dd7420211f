package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// EventKind enumerates the gateway event types the settlement engine knows
// about. Dispatching on this type instead of raw strings keeps the webhook
// switch exhaustive.
type EventKind int

const (
	EventKindUnknown EventKind = iota
	EventKindCheckoutCompleted
	EventKindInvoicePaid
	EventKindPaymentIntentSucceeded
	EventKindAccountUpdated
)

// ParseEventKind maps a Stripe event type string to its kind.
func ParseEventKind(eventType string) EventKind {
	switch eventType {
	case "checkout.session.completed":
		return EventKindCheckoutCompleted
	case "invoice.paid":
		return EventKindInvoicePaid
	case "payment_intent.succeeded":
		return EventKindPaymentIntentSucceeded
	case "account.updated":
		return EventKindAccountUpdated
	default:
		return EventKindUnknown
	}
}

func (k EventKind) String() string {
	switch k {
	case EventKindCheckoutCompleted:
		return "checkout.session.completed"
	case EventKindInvoicePaid:
		return "invoice.paid"
	case EventKindPaymentIntentSucceeded:
		return "payment_intent.succeeded"
	case EventKindAccountUpdated:
		return "account.updated"
	default:
		return "unknown"
	}
}

// StripeConfig holds Stripe API configuration.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	APIBase       string
}

// StripeService handles Stripe API interactions: webhook signature
// verification and object retrieval.
type StripeService struct {
	config     *StripeConfig
	httpClient *http.Client
}

var (
	stripeService *StripeService
	stripeOnce    sync.Once
)

// GetStripeService returns the singleton instance configured from the
// environment.
func GetStripeService() *StripeService {
	stripeOnce.Do(func() {
		apiBase := os.Getenv("STRIPE_API_BASE")
		if apiBase == "" {
			apiBase = "https://api.stripe.com"
		}
		stripeService = NewStripeService(&StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			APIBase:       apiBase,
		})
	})
	return stripeService
}

// NewStripeService creates a new instance of StripeService.
func NewStripeService(config *StripeConfig) *StripeService {
	return &StripeService{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ValidateConfig validates Stripe configuration.
func (s *StripeService) ValidateConfig() error {
	if s.config.SecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is not set")
	}
	if s.config.WebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is not set")
	}
	return nil
}

// signatureTolerance bounds how stale a signed webhook timestamp may be.
const signatureTolerance = 5 * time.Minute

// VerifyWebhookSignature checks a Stripe-Signature header against the raw
// payload: HMAC-SHA256 over "<timestamp>.<payload>" with the webhook secret,
// rejecting timestamps outside the tolerance window.
func (s *StripeService) VerifyWebhookSignature(payload []byte, header string) bool {
	var timestamp string
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	age := time.Since(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.config.WebhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return true
		}
	}
	return false
}

// SignPayload produces a valid Stripe-Signature header for the payload.
// Used by tests and the local webhook replay tooling.
func (s *StripeService) SignPayload(payload []byte, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(s.config.WebhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

// CheckoutSession is the subset of a Stripe checkout session the settlement
// engine needs.
type CheckoutSession struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	PaymentStatus string            `json:"payment_status"`
	Metadata      map[string]string `json:"metadata"`
}

// PaymentIntent is the subset of a Stripe payment intent the settlement
// engine needs.
type PaymentIntent struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

// GetCheckoutSession retrieves a checkout session from Stripe.
func (s *StripeService) GetCheckoutSession(sessionID string) (*CheckoutSession, error) {
	var session CheckoutSession
	if err := s.get(fmt.Sprintf("/v1/checkout/sessions/%s", sessionID), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetPaymentIntent retrieves a payment intent from Stripe.
func (s *StripeService) GetPaymentIntent(intentID string) (*PaymentIntent, error) {
	var intent PaymentIntent
	if err := s.get(fmt.Sprintf("/v1/payment_intents/%s", intentID), &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

func (s *StripeService) get(path string, out interface{}) error {
	req, err := http.NewRequest("GET", s.config.APIBase+path, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.SecretKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stripe API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error unmarshaling response: %w", err)
	}
	return nil
}
