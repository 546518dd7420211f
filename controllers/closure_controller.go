package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/proserve-app/marketplace-backend/services"
	"github.com/proserve-app/marketplace-backend/utils"
)

// ClosureController exposes the two-party cash closure protocol.
type ClosureController struct {
	closures *services.ClosureService
}

func NewClosureController(closures *services.ClosureService) *ClosureController {
	return &ClosureController{closures: closures}
}

type closureActionRequest struct {
	Action string `json:"action" binding:"required"`
	Note   string `json:"note"`
}

// ReportProviderAction records the provider's closure report.
// POST /appointments/:id/closure/provider
func (cc *ClosureController) ReportProviderAction(c *gin.Context) {
	cc.report(c, true)
}

// ReportClientAction records the client's closure report.
// POST /appointments/:id/closure/client
func (cc *ClosureController) ReportClientAction(c *gin.Context) {
	cc.report(c, false)
}

func (cc *ClosureController) report(c *gin.Context, asProvider bool) {
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

	var req closureActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var appointment interface{}
	var svcErr error
	if asProvider {
		appointment, svcErr = cc.closures.ReportProviderAction(appointmentID, actorID, req.Action, req.Note)
	} else {
		appointment, svcErr = cc.closures.ReportClientAction(appointmentID, actorID, req.Action, req.Note)
	}
	if svcErr != nil {
		utils.RespondAppError(c, svcErr)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Closure action recorded", appointment)
}

// Status returns the closure view for one of the appointment's parties.
// GET /appointments/:id/closure
func (cc *ClosureController) Status(c *gin.Context) {
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

	status, svcErr := cc.closures.Status(appointmentID, actorID)
	if svcErr != nil {
		utils.RespondAppError(c, svcErr)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Closure status", status)
}

// MoveToReview escalates a closure to staff review. Admin only.
// POST /admin/appointments/:id/closure/review
func (cc *ClosureController) MoveToReview(c *gin.Context) {
	appointmentID, err := pathID(c, "id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Note string `json:"note"`
	}
	_ = c.ShouldBindJSON(&req)

	appointment, svcErr := cc.closures.MoveToReview(appointmentID, req.Note)
	if svcErr != nil {
		utils.RespondAppError(c, svcErr)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Closure moved to review", appointment)
}
