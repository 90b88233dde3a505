// Package analytics computes the live metric snapshots pushed over the
// realtime channel.
package analytics

import (
	"context"
	"fmt"
	"time"

	"fleetmarket-backend/internal/apperrors"
	"fleetmarket-backend/internal/domain"
	"fleetmarket-backend/internal/repository"
)

// Metric families clients can subscribe to.
const (
	MetricKPIs       = "kpis"
	MetricGeographic = "geographic"
	MetricBookings   = "bookings"
	MetricRevenue    = "revenue"
)

// FastMetrics are recomputed on the fast periodic cycle; SlowMetrics on the
// slow one (heavier aggregates).
var (
	FastMetrics = []string{MetricKPIs, MetricBookings, MetricRevenue}
	SlowMetrics = []string{MetricGeographic}
)

func AvailableMetrics() []string {
	return []string{MetricKPIs, MetricGeographic, MetricBookings, MetricRevenue}
}

func IsKnownMetric(metric string) bool {
	for _, m := range AvailableMetrics() {
		if m == metric {
			return true
		}
	}
	return false
}

type KPISnapshot struct {
	TotalBookings          int64 `json:"total_bookings"`
	PendingBookings        int64 `json:"pending_bookings"`
	ActiveBookings         int64 `json:"active_bookings"`
	DisputedBookings       int64 `json:"disputed_bookings"`
	CompletedBookings      int64 `json:"completed_bookings"`
	GrossRevenueCents      int64 `json:"gross_revenue_cents"`
	CommissionRevenueCents int64 `json:"commission_revenue_cents"`
}

type GeographicSnapshot struct {
	BookingsByRegion map[string]int64 `json:"bookings_by_region"`
}

type BookingsSnapshot struct {
	ByStatus map[domain.BookingStatus]int64 `json:"by_status"`
}

type RevenueSnapshot struct {
	TimeRange              string `json:"time_range,omitempty"`
	GrossRevenueCents      int64  `json:"gross_revenue_cents"`
	CommissionRevenueCents int64  `json:"commission_revenue_cents"`
}

type Service struct {
	repo repository.AnalyticsRepository
	now  func() time.Time
}

func NewService(repo repository.AnalyticsRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Snapshot computes the current value of a metric family. The dispatcher
// calls this once per tick and fans the result out to every subscriber.
func (s *Service) Snapshot(ctx context.Context, metric, timeRange string) (interface{}, error) {
	switch metric {
	case MetricKPIs:
		return s.KPIs(ctx)
	case MetricGeographic:
		return s.Geographic(ctx)
	case MetricBookings:
		counts, err := s.repo.CountByStatus(ctx)
		if err != nil {
			return nil, err
		}
		return BookingsSnapshot{ByStatus: counts}, nil
	case MetricRevenue:
		since, err := s.sinceFor(timeRange)
		if err != nil {
			return nil, err
		}
		total, commission, err := s.repo.RevenueTotals(ctx, since)
		if err != nil {
			return nil, err
		}
		return RevenueSnapshot{
			TimeRange:              timeRange,
			GrossRevenueCents:      total,
			CommissionRevenueCents: commission,
		}, nil
	default:
		return nil, fmt.Errorf("unknown metric %q: %w", metric, apperrors.ErrValidation)
	}
}

func (s *Service) KPIs(ctx context.Context) (KPISnapshot, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return KPISnapshot{}, err
	}
	total, commission, err := s.repo.RevenueTotals(ctx, time.Time{})
	if err != nil {
		return KPISnapshot{}, err
	}

	var all int64
	for _, n := range counts {
		all += n
	}
	return KPISnapshot{
		TotalBookings:          all,
		PendingBookings:        counts[domain.BookingStatusPending],
		ActiveBookings:         counts[domain.BookingStatusActive],
		DisputedBookings:       counts[domain.BookingStatusDisputed],
		CompletedBookings:      counts[domain.BookingStatusCompleted],
		GrossRevenueCents:      total,
		CommissionRevenueCents: commission,
	}, nil
}

func (s *Service) Geographic(ctx context.Context) (GeographicSnapshot, error) {
	regions, err := s.repo.BookingsByRegion(ctx)
	if err != nil {
		return GeographicSnapshot{}, err
	}
	return GeographicSnapshot{BookingsByRegion: regions}, nil
}

func (s *Service) sinceFor(timeRange string) (time.Time, error) {
	switch timeRange {
	case "":
		return time.Time{}, nil
	case "24h":
		return s.now().Add(-24 * time.Hour), nil
	case "7d":
		return s.now().Add(-7 * 24 * time.Hour), nil
	case "30d":
		return s.now().Add(-30 * 24 * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unknown time range %q: %w", timeRange, apperrors.ErrValidation)
	}
}
