package models

import "time"

// PlatformSetting is an operator-tunable key/value pair (commission rate, cash
// cap, holdback days, ...). Read on every settlement so operator changes take
// effect without a restart.
type PlatformSetting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"key"`
	Value     string    `gorm:"type:varchar(255);not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
