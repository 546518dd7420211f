package config

import (
	"strconv"

	"gorm.io/gorm"

	"github.com/proserve-app/marketplace-backend/models"
)

// Setting keys stored in the platform_settings table.
const (
	SettingCommissionRate    = "commission_rate"
	SettingVATRatePercent    = "vat_rate_percent"
	SettingCashMaxAmount     = "cash_max_amount"
	SettingCashDebtDueDays   = "cash_commission_due_days"
	SettingHoldbackDays      = "release_holdback_days"
)

// Defaults applied when a key is absent or unparsable.
const (
	DefaultCommissionRate  = 15.0
	DefaultVATRatePercent  = 0.0
	DefaultCashMaxAmount   = 150000.0
	DefaultCashDebtDueDays = 30
	DefaultHoldbackDays    = 7
)

// Settings reads operator-tunable values from the platform_settings table.
// Every getter hits the store so operator changes apply to the next
// settlement without a restart. Not a cache.
type Settings struct {
	db *gorm.DB
}

func NewSettings(db *gorm.DB) *Settings {
	return &Settings{db: db}
}

func (s *Settings) CommissionRate() float64 {
	return s.floatValue(SettingCommissionRate, DefaultCommissionRate)
}

func (s *Settings) VATRatePercent() float64 {
	return s.floatValue(SettingVATRatePercent, DefaultVATRatePercent)
}

func (s *Settings) CashMaxAmount() float64 {
	return s.floatValue(SettingCashMaxAmount, DefaultCashMaxAmount)
}

func (s *Settings) CashDebtDueDays() int {
	return s.intValue(SettingCashDebtDueDays, DefaultCashDebtDueDays)
}

func (s *Settings) ReleaseHoldbackDays() int {
	return s.intValue(SettingHoldbackDays, DefaultHoldbackDays)
}

// Set upserts a setting value. Used by operator tooling and tests.
func (s *Settings) Set(key, value string) error {
	var setting models.PlatformSetting
	err := s.db.Where("`key` = ?", key).First(&setting).Error
	if err == gorm.ErrRecordNotFound {
		return s.db.Create(&models.PlatformSetting{Key: key, Value: value}).Error
	}
	if err != nil {
		return err
	}
	setting.Value = value
	return s.db.Save(&setting).Error
}

func (s *Settings) floatValue(key string, fallback float64) float64 {
	raw, ok := s.rawValue(key)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func (s *Settings) intValue(key string, fallback int) int {
	raw, ok := s.rawValue(key)
	if !ok {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func (s *Settings) rawValue(key string) (string, bool) {
	var setting models.PlatformSetting
	if err := s.db.Where("`key` = ?", key).First(&setting).Error; err != nil {
		return "", false
	}
	return setting.Value, true
}
