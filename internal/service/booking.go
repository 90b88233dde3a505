package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleetmarket-backend/internal/apperrors"
	"fleetmarket-backend/internal/domain"
	"fleetmarket-backend/internal/logger"
	"fleetmarket-backend/internal/pricing"
	"fleetmarket-backend/internal/repository"
)

const systemDeclineReason = "negotiation window expired"

type bookingService struct {
	bookings  repository.BookingRepository
	companies repository.CompanyRepository
	publisher EventPublisher

	negotiationWindow time.Duration
	commissionRateBps int64
	taxRateBps        int64

	now func() time.Time
}

func NewBookingService(
	bookings repository.BookingRepository,
	companies repository.CompanyRepository,
	publisher EventPublisher,
	negotiationWindow time.Duration,
	commissionRateBps, taxRateBps int64,
) BookingService {
	return &bookingService{
		bookings:          bookings,
		companies:         companies,
		publisher:         publisher,
		negotiationWindow: negotiationWindow,
		commissionRateBps: commissionRateBps,
		taxRateBps:        taxRateBps,
		now:               time.Now,
	}
}

func (s *bookingService) Create(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error) {
	if req.RenterCompanyID == req.ProviderCompanyID {
		return nil, fmt.Errorf("a company cannot book itself: %w", apperrors.ErrValidation)
	}
	if req.VehicleListingID == nil && req.DriverListingID == nil {
		return nil, fmt.Errorf("at least one of vehicle or driver listing is required: %w", apperrors.ErrValidation)
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, fmt.Errorf("end date must be after start date: %w", apperrors.ErrValidation)
	}
	for _, companyID := range []int32{req.RenterCompanyID, req.ProviderCompanyID} {
		company, err := s.companies.GetByID(ctx, companyID)
		if err != nil {
			return nil, fmt.Errorf("company %d: %w", companyID, apperrors.ErrValidation)
		}
		if !company.Verified {
			return nil, fmt.Errorf("company %d is not verified: %w", companyID, apperrors.ErrValidation)
		}
	}

	costs, err := pricing.Compute(req.ProviderRateCents, s.commissionRateBps, s.taxRateBps)
	if err != nil {
		return nil, err
	}

	now := s.now()
	b := &domain.Booking{
		BookingNumber:     newBookingNumber(),
		Status:            domain.BookingStatusPending,
		RenterCompanyID:   req.RenterCompanyID,
		ProviderCompanyID: req.ProviderCompanyID,
		VehicleListingID:  req.VehicleListingID,
		DriverListingID:   req.DriverListingID,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		RequestedAt:       now,
		ExpiresAt:         now.Add(s.negotiationWindow),
		Costs:             costs,
		Terms: domain.Terms{
			ProposedBy:        req.RenterCompanyID,
			StartDate:         req.StartDate,
			EndDate:           req.EndDate,
			ProviderRateCents: req.ProviderRateCents,
		},
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, err
	}

	logger.Info("booking requested", "booking_id", b.ID, "booking_number", b.BookingNumber,
		"renter", b.RenterCompanyID, "provider", b.ProviderCompanyID)
	s.publish(b, domain.BookingEventRequested, "", req.RenterCompanyID)
	return b, nil
}

func (s *bookingService) Get(ctx context.Context, id, actorCompanyID int32) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.IsParty(actorCompanyID) {
		return nil, apperrors.ErrUnauthorizedActor
	}
	return b, nil
}

func (s *bookingService) List(ctx context.Context, companyID int32, status string, page, pageSize int32) ([]domain.Booking, int32, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.bookings.ListByCompany(ctx, companyID, status, page, pageSize)
}

// Accept moves a PENDING booking to ACCEPTED. Only the counter-party of the
// current proposal may accept, and only while the negotiation window is open.
func (s *bookingService) Accept(ctx context.Context, id, actorCompanyID int32) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkResponder(b, actorCompanyID); err != nil {
		return nil, err
	}
	now := s.now()
	if !now.Before(b.ExpiresAt) {
		return nil, fmt.Errorf("booking %d: %w", id, apperrors.ErrBookingExpired)
	}

	b.Status = domain.BookingStatusAccepted
	b.RespondedAt = &now
	if err := s.bookings.UpdateIfStatus(ctx, b, domain.BookingStatusPending); err != nil {
		return nil, err
	}

	logger.Info("booking accepted", "booking_id", b.ID, "actor", actorCompanyID)
	s.publish(b, domain.BookingEventAccepted, domain.BookingStatusPending, actorCompanyID)
	return b, nil
}

// Decline moves a PENDING booking to CANCELLED. Preconditions match Accept.
func (s *bookingService) Decline(ctx context.Context, id, actorCompanyID int32, reason string) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkResponder(b, actorCompanyID); err != nil {
		return nil, err
	}

	now := s.now()
	b.Status = domain.BookingStatusCancelled
	b.RespondedAt = &now
	b.DeclineReason = reason
	if err := s.bookings.UpdateIfStatus(ctx, b, domain.BookingStatusPending); err != nil {
		return nil, err
	}

	logger.Info("booking declined", "booking_id", b.ID, "actor", actorCompanyID)
	s.publish(b, domain.BookingEventDeclined, domain.BookingStatusPending, actorCompanyID)
	return b, nil
}

// ProposeTerms merges a partial counter-proposal onto the current terms,
// recomputes costs when the rate changes, and restarts the negotiation
// window. The proposer becomes ProposedBy, so only the other party can
// respond next.
func (s *bookingService) ProposeTerms(ctx context.Context, id, actorCompanyID int32, proposal domain.TermsProposal) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.IsParty(actorCompanyID) {
		return nil, fmt.Errorf("company %d: %w", actorCompanyID, apperrors.ErrUnauthorizedActor)
	}
	if b.Status != domain.BookingStatusPending {
		return nil, fmt.Errorf("booking %d is %s: %w", id, b.Status, apperrors.ErrStatusConflict)
	}
	now := s.now()
	if !now.Before(b.ExpiresAt) {
		return nil, fmt.Errorf("booking %d: %w", id, apperrors.ErrBookingExpired)
	}
	if proposal.StartDate == nil && proposal.EndDate == nil && proposal.ProviderRateCents == nil {
		return nil, apperrors.ErrInvalidProposal
	}

	// Merge: unspecified fields keep the booking's current values.
	start := b.StartDate
	if proposal.StartDate != nil {
		start = *proposal.StartDate
	}
	end := b.EndDate
	if proposal.EndDate != nil {
		end = *proposal.EndDate
	}
	if !end.After(start) {
		return nil, fmt.Errorf("end date must be after start date: %w", apperrors.ErrValidation)
	}
	rate := b.Costs.ProviderRateCents
	if proposal.ProviderRateCents != nil {
		rate = *proposal.ProviderRateCents
	}
	if rate != b.Costs.ProviderRateCents {
		costs, err := pricing.Compute(rate, b.Costs.CommissionRateBps, b.Costs.TaxRateBps)
		if err != nil {
			return nil, err
		}
		b.Costs = costs
	}

	b.StartDate = start
	b.EndDate = end
	b.ExpiresAt = now.Add(s.negotiationWindow)
	b.Terms = domain.Terms{
		ProposedBy:        actorCompanyID,
		StartDate:         start,
		EndDate:           end,
		ProviderRateCents: rate,
	}
	if err := s.bookings.UpdateIfStatus(ctx, b, domain.BookingStatusPending); err != nil {
		return nil, err
	}

	logger.Info("booking terms countered", "booking_id", b.ID, "actor", actorCompanyID,
		"expires_at", b.ExpiresAt)
	s.publish(b, domain.BookingEventCountered, domain.BookingStatusPending, actorCompanyID)
	return b, nil
}

// Expire cancels a PENDING booking whose window has closed. Redundant calls
// and races with interactive responses are no-ops: whoever wins the
// compare-and-set decides the outcome.
func (s *bookingService) Expire(ctx context.Context, id int32) error {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if b.Status != domain.BookingStatusPending {
		return nil
	}
	now := s.now()
	if now.Before(b.ExpiresAt) {
		return nil
	}

	b.Status = domain.BookingStatusCancelled
	b.RespondedAt = &now
	b.DeclineReason = systemDeclineReason
	if err := s.bookings.UpdateIfStatus(ctx, b, domain.BookingStatusPending); err != nil {
		if apperrors.IsConflict(err) {
			// Someone responded between our read and write.
			return nil
		}
		return err
	}

	logger.Info("booking expired", "booking_id", b.ID, "booking_number", b.BookingNumber)
	s.publish(b, domain.BookingEventExpired, domain.BookingStatusPending, 0)
	return nil
}

// Activate marks the rental as underway. Provider-driven: they hand over the
// vehicle or driver.
func (s *bookingService) Activate(ctx context.Context, id, actorCompanyID int32) (*domain.Booking, error) {
	return s.transition(ctx, id, actorCompanyID, domain.BookingStatusAccepted, domain.BookingStatusActive,
		domain.BookingEventActivated, providerOnly)
}

func (s *bookingService) Complete(ctx context.Context, id, actorCompanyID int32) (*domain.Booking, error) {
	return s.transition(ctx, id, actorCompanyID, domain.BookingStatusActive, domain.BookingStatusCompleted,
		domain.BookingEventCompleted, providerOnly)
}

func (s *bookingService) Close(ctx context.Context, id, actorCompanyID int32) (*domain.Booking, error) {
	return s.transition(ctx, id, actorCompanyID, domain.BookingStatusCompleted, domain.BookingStatusClosed,
		domain.BookingEventClosed, anyParty)
}

// Dispute freezes a booking from PENDING, ACCEPTED or ACTIVE until an admin
// resolves it.
func (s *bookingService) Dispute(ctx context.Context, id, actorCompanyID int32, reason string) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.IsParty(actorCompanyID) {
		return nil, fmt.Errorf("company %d: %w", actorCompanyID, apperrors.ErrUnauthorizedActor)
	}
	if !b.Status.CanTransition(domain.BookingStatusDisputed) {
		return nil, fmt.Errorf("booking %d is %s: %w", id, b.Status, apperrors.ErrStatusConflict)
	}

	previous := b.Status
	b.Status = domain.BookingStatusDisputed
	b.DisputeReason = reason
	if err := s.bookings.UpdateIfStatus(ctx, b, previous); err != nil {
		return nil, err
	}

	logger.Info("booking disputed", "booking_id", b.ID, "actor", actorCompanyID, "from", previous)
	s.publish(b, domain.BookingEventDisputed, previous, actorCompanyID)
	return b, nil
}

// Resolve is admin-driven: a DISPUTED booking lands on ACTIVE, CANCELLED or
// CLOSED.
func (s *bookingService) Resolve(ctx context.Context, id int32, admin *domain.Identity, target domain.BookingStatus) (*domain.Booking, error) {
	if admin == nil || !admin.IsAdmin() {
		return nil, fmt.Errorf("dispute resolution requires an admin: %w", apperrors.ErrUnauthorizedActor)
	}
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.BookingStatusDisputed {
		return nil, fmt.Errorf("booking %d is %s: %w", id, b.Status, apperrors.ErrStatusConflict)
	}
	if !domain.BookingStatusDisputed.CanTransition(target) {
		return nil, fmt.Errorf("cannot resolve to %s: %w", target, apperrors.ErrValidation)
	}

	b.Status = target
	if err := s.bookings.UpdateIfStatus(ctx, b, domain.BookingStatusDisputed); err != nil {
		return nil, err
	}

	logger.Info("booking dispute resolved", "booking_id", b.ID, "target", target, "admin", admin.CompanyID)
	s.publish(b, domain.BookingEventResolved, domain.BookingStatusDisputed, admin.CompanyID)
	return b, nil
}

type actorRule int

const (
	providerOnly actorRule = iota
	anyParty
)

// transition implements the simple lifecycle steps that move between two
// fixed states with a single actor rule.
func (s *bookingService) transition(ctx context.Context, id, actorCompanyID int32,
	from, to domain.BookingStatus, eventType domain.BookingEventType, rule actorRule) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch rule {
	case providerOnly:
		if actorCompanyID != b.ProviderCompanyID {
			return nil, fmt.Errorf("company %d: %w", actorCompanyID, apperrors.ErrUnauthorizedActor)
		}
	case anyParty:
		if !b.IsParty(actorCompanyID) {
			return nil, fmt.Errorf("company %d: %w", actorCompanyID, apperrors.ErrUnauthorizedActor)
		}
	}
	if b.Status != from {
		return nil, fmt.Errorf("booking %d is %s: %w", id, b.Status, apperrors.ErrStatusConflict)
	}

	b.Status = to
	if err := s.bookings.UpdateIfStatus(ctx, b, from); err != nil {
		return nil, err
	}

	logger.Info("booking transitioned", "booking_id", b.ID, "from", from, "to", to, "actor", actorCompanyID)
	s.publish(b, eventType, from, actorCompanyID)
	return b, nil
}

// checkResponder enforces who may accept or decline: a party, while PENDING,
// and never the party that made the current proposal.
func (s *bookingService) checkResponder(b *domain.Booking, actorCompanyID int32) error {
	if !b.IsParty(actorCompanyID) {
		return fmt.Errorf("company %d: %w", actorCompanyID, apperrors.ErrUnauthorizedActor)
	}
	if b.Status != domain.BookingStatusPending {
		return fmt.Errorf("booking %d is %s: %w", b.ID, b.Status, apperrors.ErrStatusConflict)
	}
	if actorCompanyID == b.Terms.ProposedBy {
		return fmt.Errorf("company %d proposed the current terms: %w", actorCompanyID, apperrors.ErrSelfAcceptance)
	}
	return nil
}

// publish emits the domain event for a completed transition. A publish
// failure must not fail the transition that already committed.
func (s *bookingService) publish(b *domain.Booking, eventType domain.BookingEventType,
	previous domain.BookingStatus, actorCompanyID int32) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishBookingEvent(&domain.BookingEvent{
		Type:              eventType,
		BookingID:         b.ID,
		BookingNumber:     b.BookingNumber,
		PreviousStatus:    previous,
		NewStatus:         b.Status,
		RenterCompanyID:   b.RenterCompanyID,
		ProviderCompanyID: b.ProviderCompanyID,
		ActorCompanyID:    actorCompanyID,
		TotalCents:        b.Costs.TotalCents,
		OccurredAt:        s.now(),
	})
	if err != nil {
		logger.Error("failed to publish booking event", "booking_id", b.ID, "type", eventType, "error", err)
	}
}

func newBookingNumber() string {
	return "BK-" + strings.ToUpper(uuid.NewString()[:8])
}
