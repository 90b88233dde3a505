package jobs

import (
	"context"

	"fleetmarket-backend/internal/logger"
)

// ExpirePendingBookings cancels every PENDING booking whose negotiation
// window has closed. Each booking goes through the same compare-and-set
// transition as an interactive decline, so a sweep racing a user response or
// another sweep instance is harmless. One booking's failure does not abort
// the rest of the sweep.
func (jr *JobRunner) ExpirePendingBookings() {
	jr.runWithRecovery("ExpirePendingBookings", func() {
		ctx := context.Background()

		stale, err := jr.bookings.ListPendingBefore(ctx, jr.now())
		if err != nil {
			logger.Error("Failed to list expired pending bookings", "error", err)
			return
		}
		if len(stale) == 0 {
			return
		}

		expired := 0
		failed := 0
		for _, b := range stale {
			if err := jr.bookingSvc.Expire(ctx, b.ID); err != nil {
				failed++
				logger.Error("Failed to expire booking", "booking_id", b.ID,
					"booking_number", b.BookingNumber, "error", err)
				continue
			}
			expired++
		}

		logger.Info("Expiry sweep finished", "candidates", len(stale), "expired", expired, "failed", failed)
	})
}
