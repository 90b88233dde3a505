package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fleetmarket-backend/internal/apperrors"
	"fleetmarket-backend/internal/domain"
	"fleetmarket-backend/internal/repository"
)

type bookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) repository.BookingRepository {
	return &bookingRepository{db: db}
}

const bookingColumns = `id, booking_number, status, renter_company_id, provider_company_id,
	vehicle_listing_id, driver_listing_id, start_date, end_date,
	requested_at, responded_at, expires_at,
	provider_rate_cents, commission_rate_bps, tax_rate_bps,
	platform_commission_cents, taxes_cents, total_cents,
	proposed_by, decline_reason, dispute_reason, created_on, updated_on`

func (r *bookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	query := `INSERT INTO bookings (booking_number, status, renter_company_id, provider_company_id,
		vehicle_listing_id, driver_listing_id, start_date, end_date,
		requested_at, responded_at, expires_at,
		provider_rate_cents, commission_rate_bps, tax_rate_bps,
		platform_commission_cents, taxes_cents, total_cents,
		proposed_by, decline_reason, dispute_reason, created_on, updated_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING id`
	now := time.Now()
	return r.db.QueryRowContext(ctx, query,
		b.BookingNumber, b.Status, b.RenterCompanyID, b.ProviderCompanyID,
		b.VehicleListingID, b.DriverListingID, b.StartDate, b.EndDate,
		b.RequestedAt, b.RespondedAt, b.ExpiresAt,
		b.Costs.ProviderRateCents, b.Costs.CommissionRateBps, b.Costs.TaxRateBps,
		b.Costs.PlatformCommissionCents, b.Costs.TaxesCents, b.Costs.TotalCents,
		b.Terms.ProposedBy, b.DeclineReason, b.DisputeReason, now, now,
	).Scan(&b.ID)
}

func (r *bookingRepository) GetByID(ctx context.Context, id int32) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking %d: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return b, nil
}

// UpdateIfStatus writes every mutable field guarded by the stored status.
// Zero rows affected means another writer transitioned the booking first.
func (r *bookingRepository) UpdateIfStatus(ctx context.Context, b *domain.Booking, expected domain.BookingStatus) error {
	query := `UPDATE bookings SET status=$1, start_date=$2, end_date=$3,
		responded_at=$4, expires_at=$5,
		provider_rate_cents=$6, commission_rate_bps=$7, tax_rate_bps=$8,
		platform_commission_cents=$9, taxes_cents=$10, total_cents=$11,
		proposed_by=$12, decline_reason=$13, dispute_reason=$14, updated_on=$15
		WHERE id=$16 AND status=$17`
	res, err := r.db.ExecContext(ctx, query,
		b.Status, b.StartDate, b.EndDate,
		b.RespondedAt, b.ExpiresAt,
		b.Costs.ProviderRateCents, b.Costs.CommissionRateBps, b.Costs.TaxRateBps,
		b.Costs.PlatformCommissionCents, b.Costs.TaxesCents, b.Costs.TotalCents,
		b.Terms.ProposedBy, b.DeclineReason, b.DisputeReason, time.Now(),
		b.ID, expected)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("booking %d expected %s: %w", b.ID, expected, apperrors.ErrStatusConflict)
	}
	return nil
}

func (r *bookingRepository) ListByCompany(ctx context.Context, companyID int32, status string, page, pageSize int32) ([]domain.Booking, int32, error) {
	offset := (page - 1) * pageSize
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE (renter_company_id = $1 OR provider_company_id = $1)`
	args := []interface{}{companyID}
	argIdx := 2
	if status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}

	var count int32
	countQuery := "SELECT count(*) FROM (" + query + ") as sub"
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(" ORDER BY requested_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, pageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, count, rows.Err()
}

func (r *bookingRepository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE status = $1 AND expires_at <= $2 ORDER BY expires_at ASC`
	rows, err := r.db.QueryContext(ctx, query, domain.BookingStatusPending, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	b := &domain.Booking{}
	err := row.Scan(&b.ID, &b.BookingNumber, &b.Status, &b.RenterCompanyID, &b.ProviderCompanyID,
		&b.VehicleListingID, &b.DriverListingID, &b.StartDate, &b.EndDate,
		&b.RequestedAt, &b.RespondedAt, &b.ExpiresAt,
		&b.Costs.ProviderRateCents, &b.Costs.CommissionRateBps, &b.Costs.TaxRateBps,
		&b.Costs.PlatformCommissionCents, &b.Costs.TaxesCents, &b.Costs.TotalCents,
		&b.Terms.ProposedBy, &b.DeclineReason, &b.DisputeReason, &b.CreatedOn, &b.UpdatedOn)
	if err != nil {
		return nil, err
	}
	// Effective terms mirror the persisted booking fields.
	b.Terms.StartDate = b.StartDate
	b.Terms.EndDate = b.EndDate
	b.Terms.ProviderRateCents = b.Costs.ProviderRateCents
	return b, nil
}
