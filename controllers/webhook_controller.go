package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/proserve-app/marketplace-backend/models"
	"github.com/proserve-app/marketplace-backend/services"
	"github.com/proserve-app/marketplace-backend/utils"
)

// WebhookController receives Stripe events and feeds them through the event
// ledger into the payment recorder.
type WebhookController struct {
	stripe   *services.StripeService
	ledger   *services.EventLedger
	payments *services.PaymentService
}

func NewWebhookController(stripe *services.StripeService, ledger *services.EventLedger, payments *services.PaymentService) *WebhookController {
	return &WebhookController{stripe: stripe, ledger: ledger, payments: payments}
}

// webhookEnvelope is the outer shape shared by every Stripe event.
type webhookEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// HandleStripeWebhook verifies, deduplicates, acknowledges, and then
// processes a gateway event. The 200 goes out before processing so the
// gateway never retries an event because our business logic failed; failures
// land in the ledger for replay instead.
func (wc *WebhookController) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("failed to read request body"))
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if !wc.stripe.VerifyWebhookSignature(payload, signature) {
		utils.ErrorLogger.Printf("Rejected webhook with invalid signature")
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid webhook signature"))
		return
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.ID == "" || envelope.Type == "" {
		utils.RespondError(c, http.StatusBadRequest, errors.New("malformed event payload"))
		return
	}

	record, isNew, err := wc.ledger.Record(envelope.ID, envelope.Type, payload)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if !isNew {
		utils.RespondJSON(c, http.StatusOK, "Event already received", gin.H{"event_id": envelope.ID})
		return
	}

	// Acknowledge first. Everything after this line is our problem, not the
	// gateway's.
	utils.RespondJSON(c, http.StatusOK, "Event accepted", gin.H{"event_id": envelope.ID})

	if err := wc.process(&envelope); err != nil {
		utils.ErrorLogger.Printf("Failed to process event %s (%s): %v", envelope.ID, envelope.Type, err)
		wc.ledger.MarkError(record.ID, err.Error())
		return
	}
	wc.ledger.MarkProcessed(record.ID)
}

func (wc *WebhookController) process(envelope *webhookEnvelope) error {
	switch services.ParseEventKind(envelope.Type) {
	case services.EventKindCheckoutCompleted:
		var session services.CheckoutSession
		if err := json.Unmarshal(envelope.Data.Object, &session); err != nil {
			return fmt.Errorf("malformed checkout session: %w", err)
		}
		return wc.recordCardPayment(session.Metadata, float64(session.AmountTotal)/100, services.GatewayRefs{
			SessionID:       session.ID,
			PaymentIntentID: session.PaymentIntent,
			Reference:       envelope.ID,
		})

	case services.EventKindPaymentIntentSucceeded:
		var intent services.PaymentIntent
		if err := json.Unmarshal(envelope.Data.Object, &intent); err != nil {
			return fmt.Errorf("malformed payment intent: %w", err)
		}
		return wc.recordCardPayment(intent.Metadata, float64(intent.Amount)/100, services.GatewayRefs{
			PaymentIntentID: intent.ID,
			Reference:       envelope.ID,
		})

	case services.EventKindInvoicePaid:
		var invoice struct {
			ID         string            `json:"id"`
			AmountPaid int64             `json:"amount_paid"`
			Metadata   map[string]string `json:"metadata"`
		}
		if err := json.Unmarshal(envelope.Data.Object, &invoice); err != nil {
			return fmt.Errorf("malformed invoice: %w", err)
		}
		return wc.recordCardPayment(invoice.Metadata, float64(invoice.AmountPaid)/100, services.GatewayRefs{
			Reference: invoice.ID,
		})

	case services.EventKindAccountUpdated:
		// Connected-account changes carry no settlement; recorded and done.
		utils.InfoLogger.Printf("Stripe account update event %s acknowledged", envelope.ID)
		return nil

	default:
		utils.InfoLogger.Printf("Ignoring unhandled event type %s (%s)", envelope.Type, envelope.ID)
		return nil
	}
}

func (wc *WebhookController) recordCardPayment(metadata map[string]string, gross float64, refs services.GatewayRefs) error {
	raw, ok := metadata["appointment_id"]
	if !ok {
		return errors.New("event metadata missing appointment_id")
	}
	appointmentID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid appointment_id %q in event metadata", raw)
	}

	_, err = wc.payments.RecordPayment(uint(appointmentID), gross, models.PaymentMethodCard, refs)
	return err
}
