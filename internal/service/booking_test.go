package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetmarket-backend/internal/apperrors"
	"fleetmarket-backend/internal/domain"
	"fleetmarket-backend/internal/repository/memory"
)

const (
	renterID   = int32(1)
	providerID = int32(2)
	outsiderID = int32(9)
	adminID    = int32(99)
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []*domain.BookingEvent
}

func (p *capturingPublisher) PublishBookingEvent(e *domain.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *capturingPublisher) last() *domain.BookingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}

type fixture struct {
	svc       *bookingService
	bookings  *memory.BookingStore
	published *capturingPublisher
	clock     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	companies := memory.NewCompanyStore(
		domain.Company{ID: renterID, Name: "Renter Co", Region: "EU-WEST", Verified: true},
		domain.Company{ID: providerID, Name: "Provider Co", Region: "EU-WEST", Verified: true},
	)
	bookings := memory.NewBookingStore()
	published := &capturingPublisher{}

	svc := NewBookingService(bookings, companies, published, 24*time.Hour, 1000, 2500).(*bookingService)
	f := &fixture{
		svc:       svc,
		bookings:  bookings,
		published: published,
		clock:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *fixture) createBooking(t *testing.T) *domain.Booking {
	t.Helper()
	listing := int32(7)
	b, err := f.svc.Create(context.Background(), CreateBookingRequest{
		RenterCompanyID:   renterID,
		ProviderCompanyID: providerID,
		VehicleListingID:  &listing,
		StartDate:         f.clock.Add(48 * time.Hour),
		EndDate:           f.clock.Add(96 * time.Hour),
		ProviderRateCents: 100_000,
	})
	require.NoError(t, err)
	return b
}

func TestBookingService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t)

		assert.Equal(t, domain.BookingStatusPending, b.Status)
		assert.Regexp(t, `^BK-[0-9A-F]{8}$`, b.BookingNumber)
		assert.Equal(t, f.clock.Add(24*time.Hour), b.ExpiresAt)
		assert.Equal(t, renterID, b.Terms.ProposedBy)
		assert.Equal(t, int64(10_000), b.Costs.PlatformCommissionCents)
		assert.Equal(t, int64(25_000), b.Costs.TaxesCents)
		assert.Equal(t, int64(135_000), b.Costs.TotalCents)

		evt := f.published.last()
		require.NotNil(t, evt)
		assert.Equal(t, domain.BookingEventRequested, evt.Type)
		assert.Equal(t, b.ID, evt.BookingID)
	})

	t.Run("SelfBooking", func(t *testing.T) {
		f := newFixture(t)
		listing := int32(7)
		_, err := f.svc.Create(ctx, CreateBookingRequest{
			RenterCompanyID:   renterID,
			ProviderCompanyID: renterID,
			VehicleListingID:  &listing,
			StartDate:         f.clock,
			EndDate:           f.clock.Add(time.Hour),
			ProviderRateCents: 100,
		})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("NoListings", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Create(ctx, CreateBookingRequest{
			RenterCompanyID:   renterID,
			ProviderCompanyID: providerID,
			StartDate:         f.clock,
			EndDate:           f.clock.Add(time.Hour),
			ProviderRateCents: 100,
		})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("EndBeforeStart", func(t *testing.T) {
		f := newFixture(t)
		listing := int32(7)
		_, err := f.svc.Create(ctx, CreateBookingRequest{
			RenterCompanyID:   renterID,
			ProviderCompanyID: providerID,
			VehicleListingID:  &listing,
			StartDate:         f.clock.Add(time.Hour),
			EndDate:           f.clock,
			ProviderRateCents: 100,
		})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		f := newFixture(t)
		listing := int32(7)
		_, err := f.svc.Create(ctx, CreateBookingRequest{
			RenterCompanyID:   renterID,
			ProviderCompanyID: 404,
			VehicleListingID:  &listing,
			StartDate:         f.clock,
			EndDate:           f.clock.Add(time.Hour),
			ProviderRateCents: 100,
		})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestBookingService_Accept(t *testing.T) {
	ctx := context.Background()

	t.Run("ProviderAcceptsInitialRequest", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t)

		accepted, err := f.svc.Accept(ctx, b.ID, providerID)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusAccepted, accepted.Status)
		require.NotNil(t, accepted.RespondedAt)
		assert.Equal(t, f.clock, *accepted.RespondedAt)
		assert.Equal(t, domain.BookingEventAccepted, f.published.last().Type)
	})

	t.Run("ProposerCannotAcceptOwnTerms", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t)

		_, err := f.svc.Accept(ctx, b.ID, renterID)
		assert.ErrorIs(t, err, apperrors.ErrSelfAcceptance)
	})

	t.Run("NonPartyRejected", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t)

		_, err := f.svc.Accept(ctx, b.ID, outsiderID)
		assert.ErrorIs(t, err, apperrors.ErrUnauthorizedActor)
	})

	t.Run("WindowClosed", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t)
		f.advance(24 * time.Hour)

		_, err := f.svc.Accept(ctx, b.ID, providerID)
		assert.ErrorIs(t, err, apperrors.ErrBookingExpired)
	})

	t.Run("AlreadyAccepted", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t)
		_, err := f.svc.Accept(ctx, b.ID, providerID)
		require.NoError(t, err)

		_, err = f.svc.Accept(ctx, b.ID, providerID)
		assert.ErrorIs(t, err, apperrors.ErrStatusConflict)
	})
}

func TestBookingService_Decline(t *testing.T) {
	f := newFixture(t)
	b := f.createBooking(t)

	declined, err := f.svc.Decline(context.Background(), b.ID, providerID, "fleet unavailable that week")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, declined.Status)
	assert.Equal(t, "fleet unavailable that week", declined.DeclineReason)
	assert.Equal(t, domain.BookingEventDeclined, f.published.last().Type)

	// Terminal: nothing moves a cancelled booking.
	_, err = f.svc.Accept(context.Background(), b.ID, providerID)
	assert.ErrorIs(t, err, apperrors.ErrStatusConflict)
}

func TestBookingService_ProposeTerms(t *testing.T) {
	ctx := context.Background()

	t.Run("CounterFlipsResponderAndRestartsWindow", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t)
		f.advance(6 * time.Hour)

		newRate := int64(90_000)
		countered, err := f.svc.ProposeTerms(ctx, b.ID, providerID, domain.TermsProposal{
			ProviderRateCents: &newRate,
		})
		require.NoError(t, err)

		assert.Equal(t, domain.BookingStatusPending, countered.Status)
		assert.Equal(t, providerID, countered.Terms.ProposedBy)
		assert.Equal(t, f.clock.Add(24*time.Hour), countered.ExpiresAt)
		// Costs recomputed off the counter-rate.
		assert.Equal(t, int64(90_000), countered.Costs.ProviderRateCents)
		assert.Equal(t, int64(9_000), countered.Costs.PlatformCommissionCents)
		assert.Equal(t, int64(22_500), countered.Costs.TaxesCents)
		assert.Equal(t, int64(121_500), countered.Costs.TotalCents)
		// Dates were not part of the proposal and stay put.
		assert.Equal(t, b.StartDate, countered.StartDate)
		assert.Equal(t, domain.BookingEventCountered, f.published.last().Type)

		// Now the renter is the responder and the provider is locked out.
		_, err = f.svc.Accept(ctx, b.ID, providerID)
		assert.ErrorIs(t, err, apperrors.ErrSelfAcceptance)
		accepted, err := f.svc.Accept(ctx, b.ID, renterID)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusAccepted, accepted.Status)
	})

	t.Run("EmptyProposal", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t)

		_, err := f.svc.ProposeTerms(ctx, b.ID, providerID, domain.TermsProposal{})
		assert.ErrorIs(t, err, apperrors.ErrInvalidProposal)
	})

	t.Run("WindowClosed", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t)
		f.advance(25 * time.Hour)

		rate := int64(1)
		_, err := f.svc.ProposeTerms(ctx, b.ID, providerID, domain.TermsProposal{ProviderRateCents: &rate})
		assert.ErrorIs(t, err, apperrors.ErrBookingExpired)
	})

	t.Run("MergedDatesStillValidated", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t)

		badEnd := b.StartDate.Add(-time.Hour)
		_, err := f.svc.ProposeTerms(ctx, b.ID, providerID, domain.TermsProposal{EndDate: &badEnd})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestBookingService_Expire(t *testing.T) {
	ctx := context.Background()

	t.Run("NotDueIsNoop", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t)
		before := len(f.published.events)

		require.NoError(t, f.svc.Expire(ctx, b.ID))

		got, err := f.bookings.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusPending, got.Status)
		assert.Len(t, f.published.events, before)
	})

	t.Run("DueBookingCancelled", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t)
		f.advance(24 * time.Hour)

		require.NoError(t, f.svc.Expire(ctx, b.ID))

		got, err := f.bookings.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusCancelled, got.Status)
		assert.Equal(t, systemDeclineReason, got.DeclineReason)
		assert.Equal(t, domain.BookingEventExpired, f.published.last().Type)
	})

	t.Run("NonPendingIsNoop", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t)
		_, err := f.svc.Accept(ctx, b.ID, providerID)
		require.NoError(t, err)
		f.advance(48 * time.Hour)

		require.NoError(t, f.svc.Expire(ctx, b.ID))

		got, err := f.bookings.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusAccepted, got.Status)
	})
}

// Racing accept, decline and expire against one PENDING booking must produce
// exactly one winner; everyone else sees a status conflict (or, for expire,
// a silent no-op).
func TestBookingService_ConcurrentResponsesSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.createBooking(t)
	f.advance(24 * time.Hour) // window closed so expire is also in the race

	const racers = 20
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 2 {
			case 0:
				_, err := f.svc.Decline(ctx, b.ID, providerID, "raced")
				results <- err
			default:
				results <- f.svc.Expire(ctx, b.ID)
			}
		}(i)
	}
	wg.Wait()
	close(results)

	var succeeded, conflicts int
	for err := range results {
		switch {
		case err == nil:
			succeeded++ // the winner, plus expires that lost silently
		case apperrors.IsConflict(err):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := f.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, got.Status)
	// Every decline but at most one conflicted; all expires returned nil.
	assert.GreaterOrEqual(t, conflicts, racers/2-1)
	assert.Equal(t, racers, conflicts+succeeded)
}

func TestBookingService_FulfillmentLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("HappyPathToClosed", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t)
		_, err := f.svc.Accept(ctx, b.ID, providerID)
		require.NoError(t, err)

		// Activation and completion are the provider's calls.
		_, err = f.svc.Activate(ctx, b.ID, renterID)
		assert.ErrorIs(t, err, apperrors.ErrUnauthorizedActor)

		active, err := f.svc.Activate(ctx, b.ID, providerID)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusActive, active.Status)

		completed, err := f.svc.Complete(ctx, b.ID, providerID)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusCompleted, completed.Status)

		// Either party may close.
		closed, err := f.svc.Close(ctx, b.ID, renterID)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusClosed, closed.Status)
		assert.Equal(t, domain.BookingEventClosed, f.published.last().Type)
	})

	t.Run("ActivateRequiresAccepted", func(t *testing.T) {
		f := newFixture(t)
		b := f.createBooking(t)

		_, err := f.svc.Activate(ctx, b.ID, providerID)
		assert.ErrorIs(t, err, apperrors.ErrStatusConflict)
	})
}

func TestBookingService_DisputeAndResolve(t *testing.T) {
	ctx := context.Background()
	admin := &domain.Identity{CompanyID: adminID, Roles: []string{"ADMIN"}}

	setupActive := func(t *testing.T) (*fixture, *domain.Booking) {
		f := newFixture(t)
		b := f.createBooking(t)
		_, err := f.svc.Accept(ctx, b.ID, providerID)
		require.NoError(t, err)
		_, err = f.svc.Activate(ctx, b.ID, providerID)
		require.NoError(t, err)
		return f, b
	}

	t.Run("DisputeFreezesBooking", func(t *testing.T) {
		f, b := setupActive(t)

		disputed, err := f.svc.Dispute(ctx, b.ID, renterID, "vehicle returned damaged")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusDisputed, disputed.Status)
		assert.Equal(t, "vehicle returned damaged", disputed.DisputeReason)

		evt := f.published.last()
		assert.Equal(t, domain.BookingEventDisputed, evt.Type)
		assert.True(t, evt.Critical())

		// Frozen: normal lifecycle steps bounce.
		_, err = f.svc.Complete(ctx, b.ID, providerID)
		assert.ErrorIs(t, err, apperrors.ErrStatusConflict)
	})

	t.Run("AdminResolvesToActive", func(t *testing.T) {
		f, b := setupActive(t)
		_, err := f.svc.Dispute(ctx, b.ID, renterID, "billing mismatch")
		require.NoError(t, err)

		resolved, err := f.svc.Resolve(ctx, b.ID, admin, domain.BookingStatusActive)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusActive, resolved.Status)
		assert.Equal(t, domain.BookingEventResolved, f.published.last().Type)
	})

	t.Run("NonAdminCannotResolve", func(t *testing.T) {
		f, b := setupActive(t)
		_, err := f.svc.Dispute(ctx, b.ID, renterID, "billing mismatch")
		require.NoError(t, err)

		party := &domain.Identity{CompanyID: providerID, Roles: []string{"MEMBER"}}
		_, err = f.svc.Resolve(ctx, b.ID, party, domain.BookingStatusActive)
		assert.ErrorIs(t, err, apperrors.ErrUnauthorizedActor)
	})

	t.Run("ResolveTargetRestricted", func(t *testing.T) {
		f, b := setupActive(t)
		_, err := f.svc.Dispute(ctx, b.ID, renterID, "billing mismatch")
		require.NoError(t, err)

		_, err = f.svc.Resolve(ctx, b.ID, admin, domain.BookingStatusCompleted)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("CannotDisputeCompleted", func(t *testing.T) {
		f, b := setupActive(t)
		_, err := f.svc.Complete(ctx, b.ID, providerID)
		require.NoError(t, err)

		_, err = f.svc.Dispute(ctx, b.ID, renterID, "too late")
		assert.ErrorIs(t, err, apperrors.ErrStatusConflict)
	})
}

func TestBookingService_GetAndList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.createBooking(t)

	t.Run("PartyCanRead", func(t *testing.T) {
		got, err := f.svc.Get(ctx, b.ID, providerID)
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.ID)
	})

	t.Run("OutsiderCannotRead", func(t *testing.T) {
		_, err := f.svc.Get(ctx, b.ID, outsiderID)
		assert.ErrorIs(t, err, apperrors.ErrUnauthorizedActor)
	})

	t.Run("ListFiltersByStatus", func(t *testing.T) {
		items, total, err := f.svc.List(ctx, renterID, string(domain.BookingStatusPending), 1, 20)
		require.NoError(t, err)
		assert.Equal(t, int32(1), total)
		require.Len(t, items, 1)

		items, total, err = f.svc.List(ctx, renterID, string(domain.BookingStatusClosed), 1, 20)
		require.NoError(t, err)
		assert.Equal(t, int32(0), total)
		assert.Empty(t, items)
	})
}
