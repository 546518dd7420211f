package services

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/proserve-app/marketplace-backend/models"
	"github.com/proserve-app/marketplace-backend/utils"
)

// ClosureMonitor watches for cash closures whose response deadline passed
// without resolution and flags them to staff. Each overdue appointment is
// flagged once per process lifetime.
type ClosureMonitor struct {
	db       *gorm.DB
	notifier *NotificationService
	interval time.Duration
	stop     chan struct{}

	mutex   sync.Mutex
	flagged map[uint]bool
}

func NewClosureMonitor(db *gorm.DB, notifier *NotificationService, interval time.Duration) *ClosureMonitor {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &ClosureMonitor{
		db:       db,
		notifier: notifier,
		interval: interval,
		stop:     make(chan struct{}),
		flagged:  make(map[uint]bool),
	}
}

// Start runs the monitor loop in a goroutine until Stop is called.
func (m *ClosureMonitor) Start() {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		utils.InfoLogger.Printf("Closure monitor started (interval %s)", m.interval)

		for {
			select {
			case <-ticker.C:
				m.CheckOnce()
			case <-m.stop:
				utils.InfoLogger.Println("Closure monitor stopped")
				return
			}
		}
	}()
}

// Stop terminates the monitor loop.
func (m *ClosureMonitor) Stop() {
	close(m.stop)
}

// CheckOnce scans for overdue pending closures and notifies staff.
func (m *ClosureMonitor) CheckOnce() {
	var overdue []models.Appointment
	err := m.db.Where("payment_method = ? AND closure_state = ? AND closure_due_at IS NOT NULL AND closure_due_at < ?",
		models.PaymentMethodCash, models.ClosureStatePendingClose, time.Now()).
		Find(&overdue).Error
	if err != nil {
		utils.ErrorLogger.Printf("Closure monitor: failed to query overdue closures: %v", err)
		return
	}

	var admins []models.User
	if err := m.db.Where("role = ?", models.RoleAdmin).Find(&admins).Error; err != nil {
		utils.ErrorLogger.Printf("Closure monitor: failed to load admins: %v", err)
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, appointment := range overdue {
		if m.flagged[appointment.ID] {
			continue
		}
		m.flagged[appointment.ID] = true

		utils.InfoLogger.Printf("Closure monitor: appointment %d overdue since %s (provider=%s client=%s)",
			appointment.ID, appointment.ClosureDueAt.Format(time.RFC3339),
			appointment.ClosureProviderAction, appointment.ClosureClientAction)

		for _, admin := range admins {
			m.notifier.NotifyUser(admin.ID, "Closure overdue",
				fmt.Sprintf("Appointment #%d has an unresolved cash closure past its deadline.", appointment.ID),
				"closure_overdue", map[string]interface{}{"appointment_id": appointment.ID})
		}
	}
}
