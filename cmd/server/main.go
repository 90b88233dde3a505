package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"fleetmarket-backend/internal/analytics"
	httpapi "fleetmarket-backend/internal/api/http"
	"fleetmarket-backend/internal/config"
	"fleetmarket-backend/internal/events"
	"fleetmarket-backend/internal/jobs"
	"fleetmarket-backend/internal/logger"
	"fleetmarket-backend/internal/realtime"
	"fleetmarket-backend/internal/repository/postgres"
	"fleetmarket-backend/internal/scheduler"
	"fleetmarket-backend/internal/security"
	"fleetmarket-backend/internal/service"
)

func main() {
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting fleetmarket backend",
		"address", cfg.GetServerAddress(),
		"log_level", cfg.Log.Level,
		"log_format", cfg.Log.Format)

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

	tokens := security.NewTokenManager(cfg.JWT.Secret)
	gate := security.NewSocketAuthGate(tokens, store.CompanyRepository)

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
	analyticsSvc := analytics.NewService(store.AnalyticsRepository)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := realtime.NewHub(analyticsSvc, cfg.Realtime)
	go hub.Run(ctx)

	eventMsgs, err := bus.SubscribeBookingEvents(ctx)
	if err != nil {
		log.Fatalf("Failed to subscribe to booking events: %v", err)
	}
	go hub.ConsumeBookingEvents(ctx, eventMsgs)

	// In-process expiry sweep. Running cmd/sweeper alongside is safe: every
	// expiry goes through the same compare-and-set, so only one wins.
	jobRunner := jobs.NewJobRunner(store.BookingRepository, bookingSvc, cfg)
	cronScheduler := scheduler.NewScheduler(jobRunner)
	cronScheduler.Start()
	defer cronScheduler.Stop()

	router := httpapi.NewRouter(
		httpapi.NewBookingHandler(bookingSvc),
		httpapi.NewAuthMiddleware(tokens),
	)
	router.Handle("/ws/analytics", realtime.NewHandler(hub, gate, cfg.Realtime))

	server := &http.Server{
		Addr:        cfg.GetServerAddress(),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: websocket connections are long-lived.
	}

	go func() {
		logger.Info("HTTP server listening", "address", cfg.GetServerAddress())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutting down", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	cancel()
}
