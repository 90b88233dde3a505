package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"fleetmarket-backend/internal/config"
	"fleetmarket-backend/internal/events"
	"fleetmarket-backend/internal/jobs"
	"fleetmarket-backend/internal/logger"
	"fleetmarket-backend/internal/repository/postgres"
	"fleetmarket-backend/internal/scheduler"
	"fleetmarket-backend/internal/service"
)

// Standalone expiry-sweep runner. Normally the server runs the sweep
// in-process; this binary exists for one-off runs and for deployments that
// keep background work out of the API process. Running both is safe because
// every expiry goes through the same compare-and-set.
func main() {
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'expire-pending-bookings')")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting fleetmarket sweeper", "log_level", cfg.Log.Level)

	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established",
		"host", cfg.Database.Host, "database", cfg.Database.Database)

	store := postgres.NewStore(db)

	// Events published here have no in-process consumers; the publisher is
	// still wired so the expiry path behaves identically to the server's.
	bus := events.NewBus()
	defer bus.Close()

	bookingSvc := service.NewBookingService(
		store.BookingRepository,
		store.CompanyRepository,
		bus,
		cfg.Negotiation.Window(),
		cfg.Negotiation.CommissionRateBps,
		cfg.Negotiation.TaxRateBps,
	)

	jobRunner := jobs.NewJobRunner(store.BookingRepository, bookingSvc, cfg)

	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	cronScheduler := scheduler.NewScheduler(jobRunner)
	cronScheduler.Start()
	logger.Info("Sweeper scheduler is running. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down sweeper scheduler...")
	cronScheduler.Stop()
}

func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "expire-pending-bookings":
		jobRunner.ExpirePendingBookings()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - expire-pending-bookings\n")
		os.Exit(1)
	}
}
