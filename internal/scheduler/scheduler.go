package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"fleetmarket-backend/internal/jobs"
	"fleetmarket-backend/internal/logger"
)

// Scheduler manages cron job scheduling.
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a new scheduler with the provided job runner.
func NewScheduler(jobRunner *jobs.JobRunner) *Scheduler {
	// UTC with seconds precision: the expiry sweep runs often enough that a
	// booking expires within seconds of its window closing.
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	s.registerJobs()
	return s
}

func (s *Scheduler) registerJobs() {
	cfg := s.jobs.Config().Scheduler

	_, err := s.cron.AddFunc(cfg.ExpirePendingBookings, s.jobs.ExpirePendingBookings)
	if err != nil {
		logger.Error("Failed to register ExpirePendingBookings job", "error", err)
		return
	}

	logger.Info("Cron jobs registered", "expire_pending_bookings", cfg.ExpirePendingBookings)
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("Cron scheduler started")
}

// Stop gracefully stops the cron scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// IsRunning returns true if jobs are registered with the scheduler.
func (s *Scheduler) IsRunning() bool {
	return len(s.cron.Entries()) > 0
}
