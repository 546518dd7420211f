package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/proserve-app/marketplace-backend/services"
	"github.com/proserve-app/marketplace-backend/utils"
)

// VerificationController exposes code redemption and the client's code view.
type VerificationController struct {
	verification *services.VerificationService
}

func NewVerificationController(verification *services.VerificationService) *VerificationController {
	return &VerificationController{verification: verification}
}

// VerifyServiceCode redeems the appointment's verification code.
// POST /appointments/:id/verify-code
func (vc *VerificationController) VerifyServiceCode(c *gin.Context) {
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

	result, svcErr := vc.verification.VerifyServiceCode(appointmentID, actorID, req.Code)
	if svcErr != nil {
		utils.RespondAppError(c, svcErr)
		return
	}

	if !result.Verified {
		utils.RespondJSON(c, http.StatusOK, "Verification code mismatch", result)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Service verified", result)
}

// GetCode shows the client their appointment's verification code.
// GET /appointments/:id/verification-code
func (vc *VerificationController) GetCode(c *gin.Context) {
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

	code, svcErr := vc.verification.GetCode(appointmentID, actorID)
	if svcErr != nil {
		utils.RespondAppError(c, svcErr)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Verification code", gin.H{"code": code})
}
