package services

import (
	"time"

	"github.com/proserve-app/marketplace-backend/utils"
)

// ReleaseSweeper is the periodic reconciliation job for the escrow state
// machine. It promotes payments whose holdback has elapsed and releases any
// payment that was verified before its holdback ran out.
type ReleaseSweeper struct {
	escrow   *EscrowService
	interval time.Duration
	stop     chan struct{}
}

func NewReleaseSweeper(escrow *EscrowService, interval time.Duration) *ReleaseSweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &ReleaseSweeper{
		escrow:   escrow,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start runs the sweep loop in a goroutine until Stop is called.
func (w *ReleaseSweeper) Start() {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		utils.InfoLogger.Printf("Release sweeper started (interval %s)", w.interval)

		for {
			select {
			case <-ticker.C:
				w.SweepOnce()
			case <-w.stop:
				utils.InfoLogger.Println("Release sweeper stopped")
				return
			}
		}
	}()
}

// Stop terminates the sweep loop.
func (w *ReleaseSweeper) Stop() {
	close(w.stop)
}

// SweepOnce performs a single reconciliation pass.
func (w *ReleaseSweeper) SweepOnce() {
	promoted, err := w.escrow.PromoteEligible()
	if err != nil {
		utils.ErrorLogger.Printf("Sweep: failed to promote eligible payments: %v", err)
	}

	released, err := w.escrow.ReleaseDue()
	if err != nil {
		utils.ErrorLogger.Printf("Sweep: failed to release due payments: %v", err)
	}

	if promoted > 0 || released > 0 {
		utils.InfoLogger.Printf("Sweep: promoted %d payment(s) to eligible, released %d", promoted, released)
	}
}
