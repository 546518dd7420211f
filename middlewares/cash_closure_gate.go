package middlewares

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/proserve-app/marketplace-backend/models"
	"github.com/proserve-app/marketplace-backend/utils"
)

// CashClosureGate blocks further cash actions for a user who has any cash
// appointment stuck in pending_close past its response deadline. The user
// must resolve the overdue closure before taking on new cash settlements.
func CashClosureGate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, exists := c.Get("user_id")
		if !exists {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
			c.Abort()
			return
		}
		userID, ok := raw.(uint)
		if !ok {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
			c.Abort()
			return
		}

		var count int64
		err := db.Model(&models.Appointment{}).
			Where("payment_method = ? AND closure_state = ? AND closure_due_at IS NOT NULL AND closure_due_at < ?",
				models.PaymentMethodCash, models.ClosureStatePendingClose, time.Now()).
			Where("provider_id = ? OR client_id = ?", userID, userID).
			Count(&count).Error
		if err != nil {
			utils.ErrorLogger.Printf("Cash closure gate query failed for user %d: %v", userID, err)
			utils.RespondError(c, http.StatusInternalServerError, errors.New("internal error"))
			c.Abort()
			return
		}

		if count > 0 {
			c.JSON(http.StatusConflict, utils.JSONResponse{
				Status:  false,
				Message: "overdue_closure: resolve your pending cash closure before new cash actions",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
