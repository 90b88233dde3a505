package service

import (
	"context"
	"time"

	"fleetmarket-backend/internal/domain"
)

// CreateBookingRequest carries a renter's initial booking request.
type CreateBookingRequest struct {
	RenterCompanyID   int32
	ProviderCompanyID int32
	VehicleListingID  *int32
	DriverListingID   *int32
	StartDate         time.Time
	EndDate           time.Time
	ProviderRateCents int64
}

// BookingService owns every legal transition of the booking lifecycle. All
// mutating operations go through a compare-and-set against the store, so two
// racing callers resolve to exactly one winner.
type BookingService interface {
	Create(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error)
	Get(ctx context.Context, id, actorCompanyID int32) (*domain.Booking, error)
	List(ctx context.Context, companyID int32, status string, page, pageSize int32) ([]domain.Booking, int32, error)

	Accept(ctx context.Context, id, actorCompanyID int32) (*domain.Booking, error)
	Decline(ctx context.Context, id, actorCompanyID int32, reason string) (*domain.Booking, error)
	ProposeTerms(ctx context.Context, id, actorCompanyID int32, proposal domain.TermsProposal) (*domain.Booking, error)
	// Expire is the system-driven counterpart of Decline. It is a no-op when
	// the booking is no longer PENDING or its window has not closed yet.
	Expire(ctx context.Context, id int32) error

	Activate(ctx context.Context, id, actorCompanyID int32) (*domain.Booking, error)
	Complete(ctx context.Context, id, actorCompanyID int32) (*domain.Booking, error)
	Close(ctx context.Context, id, actorCompanyID int32) (*domain.Booking, error)
	Dispute(ctx context.Context, id, actorCompanyID int32, reason string) (*domain.Booking, error)
	Resolve(ctx context.Context, id int32, admin *domain.Identity, target domain.BookingStatus) (*domain.Booking, error)
}

// EventPublisher is satisfied by events.Bus.
type EventPublisher interface {
	PublishBookingEvent(e *domain.BookingEvent) error
}
