package repository

import (
	"context"
	"time"

	"fleetmarket-backend/internal/domain"
)

type BookingRepository interface {
	Create(ctx context.Context, b *domain.Booking) error
	GetByID(ctx context.Context, id int32) (*domain.Booking, error)
	// UpdateIfStatus persists the booking only when its stored status still
	// equals expected. Returns apperrors.ErrStatusConflict when another
	// writer got there first. This compare-and-set is the single
	// serialization point for all lifecycle transitions.
	UpdateIfStatus(ctx context.Context, b *domain.Booking, expected domain.BookingStatus) error
	ListByCompany(ctx context.Context, companyID int32, status string, page, pageSize int32) ([]domain.Booking, int32, error)
	// ListPendingBefore returns PENDING bookings whose negotiation window
	// closed at or before the cutoff. Used by the expiry sweep.
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]domain.Booking, error)
}

type CompanyRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.Company, error)
}

type AnalyticsRepository interface {
	CountByStatus(ctx context.Context) (map[domain.BookingStatus]int64, error)
	// RevenueTotals sums total and commission cents over non-cancelled
	// bookings requested since the given time. A zero time means all time.
	RevenueTotals(ctx context.Context, since time.Time) (totalCents, commissionCents int64, err error)
	BookingsByRegion(ctx context.Context) (map[string]int64, error)
}
