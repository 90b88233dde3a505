package jobs

import (
	"time"

	"fleetmarket-backend/internal/config"
	"fleetmarket-backend/internal/logger"
	"fleetmarket-backend/internal/repository"
	"fleetmarket-backend/internal/service"
)

// JobRunner coordinates all scheduled jobs.
type JobRunner struct {
	bookings   repository.BookingRepository
	bookingSvc service.BookingService
	config     *config.Config
	now        func() time.Time
}

func NewJobRunner(bookings repository.BookingRepository, bookingSvc service.BookingService, cfg *config.Config) *JobRunner {
	return &JobRunner{
		bookings:   bookings,
		bookingSvc: bookingSvc,
		config:     cfg,
		now:        time.Now,
	}
}

// Config exposes the configuration for the scheduler's cron expressions.
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery.
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Debug("Starting job", "job", jobName)
	jobFunc()
	logger.Debug("Job completed", "job", jobName)
}
