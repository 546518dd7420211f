package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/proserve-app/marketplace-backend/models"
	"github.com/proserve-app/marketplace-backend/services"
	"github.com/proserve-app/marketplace-backend/utils"
)

// CashController exposes the cash settlement path: method selection, the
// provider's collection declaration, code-gated settlement, and commission
// debt management.
type CashController struct {
	DB   *gorm.DB
	cash *services.CashService
}

func NewCashController(db *gorm.DB, cash *services.CashService) *CashController {
	return &CashController{DB: db, cash: cash}
}

// SelectCash marks an appointment for cash settlement.
// POST /appointments/:id/cash/select
func (cc *CashController) SelectCash(c *gin.Context) {
	appointmentID, err := pathID(c, "id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	actorID, err := currentUserID(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	appointment, svcErr := cc.cash.SelectCash(appointmentID, actorID)
	if svcErr != nil {
		utils.RespondAppError(c, svcErr)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Cash payment selected", appointment)
}

// CollectCash records a provider-declared cash collection.
// POST /appointments/:id/cash/collect
func (cc *CashController) CollectCash(c *gin.Context) {
	appointmentID, err := pathID(c, "id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	actorID, err := currentUserID(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	payment, svcErr := cc.cash.CollectCash(appointmentID, actorID)
	if svcErr != nil {
		utils.RespondAppError(c, svcErr)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Cash payment recorded", payment)
}

// VerifyCashCode settles cash against the client's verification code.
// POST /appointments/:id/cash/verify
func (cc *CashController) VerifyCashCode(c *gin.Context) {
	appointmentID, err := pathID(c, "id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	actorID, err := currentUserID(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	payment, svcErr := cc.cash.VerifyCashCode(appointmentID, actorID, req.Code)
	if svcErr != nil {
		utils.RespondAppError(c, svcErr)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Cash payment verified and recorded", payment)
}

// ListDebts returns the authenticated provider's commission debts.
// GET /debts
func (cc *CashController) ListDebts(c *gin.Context) {
	actorID, err := currentUserID(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	var debts []models.CommissionDebt
	if err := cc.DB.Preload("Settlements").
		Where("provider_id = ?", actorID).
		Order("due_date ASC").
		Find(&debts).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Commission debts", debts)
}

// SettleDebt charges a settlement against a commission debt. Admin only.
// POST /admin/debts/:id/settle
func (cc *CashController) SettleDebt(c *gin.Context) {
	debtID, err := pathID(c, "id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Amount    float64 `json:"amount" binding:"required,gt=0"`
		Reference string  `json:"reference"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	debt, svcErr := cc.cash.SettleDebt(debtID, req.Amount, req.Reference)
	if svcErr != nil {
		utils.RespondAppError(c, svcErr)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Debt settlement recorded", debt)
}
