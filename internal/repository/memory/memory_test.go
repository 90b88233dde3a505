package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetmarket-backend/internal/apperrors"
	"fleetmarket-backend/internal/domain"
)

func pending(renter, provider int32, expiresAt time.Time) *domain.Booking {
	return &domain.Booking{
		Status:            domain.BookingStatusPending,
		RenterCompanyID:   renter,
		ProviderCompanyID: provider,
		RequestedAt:       expiresAt.Add(-24 * time.Hour),
		ExpiresAt:         expiresAt,
	}
}

func TestBookingStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewBookingStore()

	b := pending(1, 2, time.Now().Add(time.Hour))
	require.NoError(t, store.Create(ctx, b))
	assert.Equal(t, int32(1), b.ID)
	assert.False(t, b.CreatedOn.IsZero())

	got, err := store.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	// Returned copy does not alias store state.
	got.Status = domain.BookingStatusCancelled
	again, err := store.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPending, again.Status)

	_, err = store.GetByID(ctx, 404)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestBookingStore_UpdateIfStatus(t *testing.T) {
	ctx := context.Background()
	store := NewBookingStore()
	b := pending(1, 2, time.Now().Add(time.Hour))
	require.NoError(t, store.Create(ctx, b))

	t.Run("MatchingStatusWins", func(t *testing.T) {
		b.Status = domain.BookingStatusAccepted
		assert.NoError(t, store.UpdateIfStatus(ctx, b, domain.BookingStatusPending))
	})

	t.Run("StaleExpectationConflicts", func(t *testing.T) {
		b.Status = domain.BookingStatusCancelled
		err := store.UpdateIfStatus(ctx, b, domain.BookingStatusPending)
		assert.ErrorIs(t, err, apperrors.ErrStatusConflict)
	})

	t.Run("ExactlyOneConcurrentWriterWins", func(t *testing.T) {
		fresh := pending(1, 2, time.Now().Add(time.Hour))
		require.NoError(t, store.Create(ctx, fresh))

		const writers = 50
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				update := *fresh
				update.Status = domain.BookingStatusAccepted
				errs <- store.UpdateIfStatus(ctx, &update, domain.BookingStatusPending)
			}()
		}
		wg.Wait()
		close(errs)

		wins := 0
		for err := range errs {
			if err == nil {
				wins++
			} else {
				assert.ErrorIs(t, err, apperrors.ErrStatusConflict)
			}
		}
		assert.Equal(t, 1, wins)
	})
}

func TestBookingStore_ListByCompany(t *testing.T) {
	ctx := context.Background()
	store := NewBookingStore()
	base := time.Now()
	for i := 0; i < 5; i++ {
		b := pending(1, 2, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, store.Create(ctx, b))
	}
	other := pending(3, 4, base)
	require.NoError(t, store.Create(ctx, other))

	items, total, err := store.ListByCompany(ctx, 1, "", 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int32(5), total)
	assert.Len(t, items, 3)
	// Newest request first.
	assert.True(t, !items[0].RequestedAt.Before(items[1].RequestedAt))

	items, total, err = store.ListByCompany(ctx, 1, "", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, int32(5), total)
	assert.Len(t, items, 2)

	items, total, err = store.ListByCompany(ctx, 1, string(domain.BookingStatusClosed), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(0), total)
	assert.Empty(t, items)
}

func TestBookingStore_ListPendingBefore(t *testing.T) {
	ctx := context.Background()
	store := NewBookingStore()
	cutoff := time.Now()

	due := pending(1, 2, cutoff.Add(-time.Minute))
	require.NoError(t, store.Create(ctx, due))
	exactly := pending(1, 2, cutoff)
	require.NoError(t, store.Create(ctx, exactly))
	fresh := pending(1, 2, cutoff.Add(time.Minute))
	require.NoError(t, store.Create(ctx, fresh))

	accepted := pending(1, 2, cutoff.Add(-time.Hour))
	require.NoError(t, store.Create(ctx, accepted))
	accepted.Status = domain.BookingStatusAccepted
	require.NoError(t, store.UpdateIfStatus(ctx, accepted, domain.BookingStatusPending))

	stale, err := store.ListPendingBefore(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, stale, 2)
	// Oldest deadline first; a deadline exactly at the cutoff counts as due.
	assert.Equal(t, due.ID, stale[0].ID)
	assert.Equal(t, exactly.ID, stale[1].ID)
}

func TestCompanyStore(t *testing.T) {
	ctx := context.Background()
	store := NewCompanyStore(domain.Company{ID: 1, Name: "Seeded Co", Verified: true})

	c, err := store.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Seeded Co", c.Name)

	_, err = store.GetByID(ctx, 2)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	store.Put(domain.Company{ID: 2, Name: "Added Co"})
	c, err = store.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Added Co", c.Name)
}
