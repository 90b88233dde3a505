package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetmarket-backend/internal/config"
	"fleetmarket-backend/internal/jobs"
	"fleetmarket-backend/internal/repository/memory"
	"fleetmarket-backend/internal/service"
)

func testRunner(cronExpr string) *jobs.JobRunner {
	store := memory.NewBookingStore()
	companies := memory.NewCompanyStore()
	svc := service.NewBookingService(store, companies, nil, 24*time.Hour, 1000, 2500)
	cfg := &config.Config{}
	cfg.Scheduler.ExpirePendingBookings = cronExpr
	return jobs.NewJobRunner(store, svc, cfg)
}

func TestScheduler_RegistersExpirySweep(t *testing.T) {
	s := NewScheduler(testRunner("*/10 * * * * *"))
	require.True(t, s.IsRunning())

	s.Start()
	s.Stop()
}

func TestScheduler_BadCronExpressionRegistersNothing(t *testing.T) {
	s := NewScheduler(testRunner("not a cron expression"))
	assert.False(t, s.IsRunning())
}
