package services

import (
	"encoding/json"

	"gorm.io/gorm"

	"github.com/proserve-app/marketplace-backend/models"
	"github.com/proserve-app/marketplace-backend/realtime"
	"github.com/proserve-app/marketplace-backend/utils"
)

// NotificationService delivers in-app notifications and realtime broadcasts.
// Delivery is fire-and-forget: failures are logged, never propagated, so a
// notification problem can never roll back a money-affecting write.
type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

func (n *NotificationService) NotifyUser(userID uint, title, body, notifType string, data map[string]interface{}) {
	var encoded string
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			encoded = string(raw)
		}
	}

	notif := models.Notification{
		UserID:  &userID,
		Title:   &title,
		Message: body,
		Type:    notifType,
		Data:    encoded,
	}

	if err := n.db.Create(&notif).Error; err != nil {
		utils.ErrorLogger.Printf("Failed to store notification for user %d: %v", userID, err)
		return
	}

	realtime.BroadcastUserNotification(notif)
}
