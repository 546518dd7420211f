package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/proserve-app/marketplace-backend/models"
	"github.com/proserve-app/marketplace-backend/services"
	"github.com/proserve-app/marketplace-backend/utils"
)

// EarningsController exposes the provider's wallet, earnings aggregates, and
// escrow ledger.
type EarningsController struct {
	DB     *gorm.DB
	escrow *services.EscrowService
}

func NewEarningsController(db *gorm.DB, escrow *services.EscrowService) *EarningsController {
	return &EarningsController{DB: db, escrow: escrow}
}

// GetWallet returns the provider's balances.
// GET /wallet
func (ec *EarningsController) GetWallet(c *gin.Context) {
	actorID, err := currentUserID(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	wallet, svcErr := ec.escrow.Wallet(actorID)
	if svcErr != nil {
		utils.RespondAppError(c, svcErr)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Wallet balance", wallet)
}

// GetEarnings returns the provider's monthly earnings summary.
// GET /providers/earnings?month=2026-08
func (ec *EarningsController) GetEarnings(c *gin.Context) {
	actorID, err := currentUserID(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	month := c.Query("month")
	if month == "" {
		month = time.Now().Format("2006-01")
	}

	summary, svcErr := ec.escrow.EarningsSummary(actorID, month)
	if svcErr != nil {
		utils.RespondAppError(c, svcErr)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Earnings summary", summary)
}

// ListWalletTransactions returns the provider's wallet ledger, newest first.
// GET /wallet/transactions
func (ec *EarningsController) ListWalletTransactions(c *gin.Context) {
	actorID, err := currentUserID(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	var entries []models.WalletTransaction
	if err := ec.DB.Where("provider_id = ?", actorID).
		Order("created_at DESC").
		Limit(100).
		Find(&entries).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Wallet transactions", entries)
}
