package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/proserve-app/marketplace-backend/models"
)

// EventLedger persists inbound gateway events keyed by event id and
// guarantees at-most-once processing. Redelivery of an already-seen event id
// is reported as not-new; the caller must skip its handler in that case.
type EventLedger struct {
	db *gorm.DB
}

func NewEventLedger(db *gorm.DB) *EventLedger {
	return &EventLedger{db: db}
}

// Record inserts the event if its id has not been seen before. The unique
// index on event_id makes concurrent deliveries of the same event safe: all
// but one insert are no-ops. Returns the ledger row and whether it is new.
func (l *EventLedger) Record(eventID, eventType string, payload []byte) (*models.StripeEventRecord, bool, error) {
	sum := sha256.Sum256(payload)

	record := models.StripeEventRecord{
		EventID:     eventID,
		EventType:   eventType,
		PayloadHash: hex.EncodeToString(sum[:]),
		Status:      models.EventStatusReceived,
	}

	result := l.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&record)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to record gateway event: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		var existing models.StripeEventRecord
		if err := l.db.Where("event_id = ?", eventID).First(&existing).Error; err != nil {
			return nil, false, fmt.Errorf("failed to load existing event record: %w", err)
		}
		return &existing, false, nil
	}

	return &record, true, nil
}

// MarkProcessed flips the ledger row to processed after the handler ran.
func (l *EventLedger) MarkProcessed(id uint) error {
	now := time.Now()
	return l.db.Model(&models.StripeEventRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.EventStatusProcessed,
			"processed_at": now,
		}).Error
}

// MarkError records a handler failure on the ledger row for operator
// follow-up. Processing is not retried automatically; the gateway's own
// redelivery is the retry mechanism and is de-duplicated by Record.
func (l *EventLedger) MarkError(id uint, message string) error {
	return l.db.Model(&models.StripeEventRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.EventStatusError,
			"error_message": message,
		}).Error
}
