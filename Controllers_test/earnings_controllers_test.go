package Controllers_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proserve-app/marketplace-backend/config"
	"github.com/proserve-app/marketplace-backend/models"
	"github.com/proserve-app/marketplace-backend/services"
)

func TestWalletAndEarningsOverHTTP(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouterForTest(t, db)

	client, _ := createUser(t, db, "client")
	provider, providerToken := createUser(t, db, "provider")
	appointment := createAppointment(t, db, client.ID, provider.ID, 1000)

	deliverWebhook(t, r, checkoutEvent("evt_earn", appointment.ID, 100000))

	w := doJSON(t, r, "GET", "/wallet", providerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	wallet := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, 850.0, wallet["pending_balance"])
	assert.Equal(t, 0.0, wallet["balance"])

	month := time.Now().Format("2006-01")
	w = doJSON(t, r, "GET", "/providers/earnings?month="+month, providerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, 1000.0, summary["gross_total"])
	assert.Equal(t, 850.0, summary["net_earnings"])

	w = doJSON(t, r, "GET", "/wallet/transactions", providerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "escrow_hold")
}

func TestWalletProviderOnly(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouterForTest(t, db)

	_, clientToken := createUser(t, db, "client")
	w := doJSON(t, r, "GET", "/wallet", clientToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// Full card lifecycle: gateway settlement, verification, holdback, release.
func TestCardSettlementEndToEnd(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouterForTest(t, db)

	client, clientToken := createUser(t, db, "client")
	provider, providerToken := createUser(t, db, "provider")
	appointment := createAppointment(t, db, client.ID, provider.ID, 2000)

	deliverWebhook(t, r, checkoutEvent("evt_e2e", appointment.ID, 200000))

	w := doJSON(t, r, "GET", fmt.Sprintf("/appointments/%d/verification-code", appointment.ID), clientToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	code := decodeBody(t, w)["data"].(map[string]interface{})["code"].(string)

	w = doJSON(t, r, "POST", fmt.Sprintf("/appointments/%d/verify-code", appointment.ID), providerToken,
		map[string]string{"code": code})
	require.Equal(t, http.StatusOK, w.Code)

	// Holdback not elapsed: verified but not released.
	var payment models.Payment
	require.NoError(t, db.Where("appointment_id = ?", appointment.ID).First(&payment).Error)
	require.True(t, payment.CanRelease)
	require.NotEqual(t, models.ReleaseStatusCompleted, payment.ReleaseStatus)

	// Time passes; the sweeper finishes the job.
	past := time.Now().AddDate(0, 0, -10)
	require.NoError(t, db.Model(&models.Payment{}).Where("id = ?", payment.ID).
		Update("paid_at", past).Error)

	settings := config.NewSettings(db)
	notifier := services.NewNotificationService(db)
	escrow := services.NewEscrowService(db, settings, notifier)
	services.NewReleaseSweeper(escrow, 0).SweepOnce()

	w = doJSON(t, r, "GET", "/wallet", providerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	wallet := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, 1700.0, wallet["balance"])
	assert.Equal(t, 0.0, wallet["pending_balance"])
}
