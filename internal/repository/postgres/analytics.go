package postgres

import (
	"context"
	"database/sql"
	"time"

	"fleetmarket-backend/internal/domain"
	"fleetmarket-backend/internal/repository"
)

type analyticsRepository struct {
	db *sql.DB
}

func NewAnalyticsRepository(db *sql.DB) repository.AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) CountByStatus(ctx context.Context) (map[domain.BookingStatus]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, count(*) FROM bookings GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.BookingStatus]int64)
	for rows.Next() {
		var status domain.BookingStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *analyticsRepository) RevenueTotals(ctx context.Context, since time.Time) (int64, int64, error) {
	query := `SELECT coalesce(sum(total_cents), 0), coalesce(sum(platform_commission_cents), 0)
		FROM bookings WHERE status NOT IN ($1, $2)`
	args := []interface{}{domain.BookingStatusPending, domain.BookingStatusCancelled}
	if !since.IsZero() {
		query += " AND requested_at >= $3"
		args = append(args, since)
	}

	var total, commission int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total, &commission); err != nil {
		return 0, 0, err
	}
	return total, commission, nil
}

// BookingsByRegion counts bookings per provider company region. Bookings
// whose provider has no region land in "UNKNOWN".
func (r *analyticsRepository) BookingsByRegion(ctx context.Context) (map[string]int64, error) {
	query := `SELECT coalesce(nullif(c.region, ''), 'UNKNOWN'), count(*)
		FROM bookings b
		LEFT JOIN companies c ON c.id = b.provider_company_id
		GROUP BY 1`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regions := make(map[string]int64)
	for rows.Next() {
		var region string
		var n int64
		if err := rows.Scan(&region, &n); err != nil {
			return nil, err
		}
		regions[region] = n
	}
	return regions, rows.Err()
}
