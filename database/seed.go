package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/proserve-app/marketplace-backend/models"
	"github.com/proserve-app/marketplace-backend/utils"
)

// SeedDefaults inserts the platform settings rows the settlement engine
// reads, without overwriting values an operator already changed.
func SeedDefaults(db *gorm.DB) error {
	defaults := map[string]string{
		"commission_rate":          "15",
		"vat_rate_percent":         "0",
		"cash_max_amount":          "150000",
		"cash_commission_due_days": "30",
		"release_holdback_days":    "7",
	}

	for key, value := range defaults {
		var setting models.PlatformSetting
		err := db.Where("`key` = ?", key).First(&setting).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		setting = models.PlatformSetting{Key: key, Value: value}
		if err := db.Create(&setting).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		utils.InfoLogger.Printf("Seeded platform setting %s=%s", key, value)
	}

	return nil
}
