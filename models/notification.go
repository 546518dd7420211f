package models

import (
	"time"
)

type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *uint     `json:"user_id,omitempty"`
	User      User      `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	Title     *string   `gorm:"type:varchar(100)" json:"title,omitempty"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Type      string    `gorm:"type:varchar(30);not null;default:'general'" json:"type"`
	Data      string    `gorm:"type:text" json:"data,omitempty"`
	Status    string    `gorm:"type:varchar(10);not null;default:'unread'" json:"status"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
