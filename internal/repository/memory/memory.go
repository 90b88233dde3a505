// Package memory provides in-memory repository implementations with the same
// compare-and-set semantics as the SQL store. Used by tests and by local
// development without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fleetmarket-backend/internal/apperrors"
	"fleetmarket-backend/internal/domain"
)

type BookingStore struct {
	mu       sync.Mutex
	nextID   int32
	bookings map[int32]domain.Booking
}

func NewBookingStore() *BookingStore {
	return &BookingStore{
		nextID:   1,
		bookings: make(map[int32]domain.Booking),
	}
}

func (s *BookingStore) Create(ctx context.Context, b *domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.nextID
	s.nextID++
	now := time.Now()
	b.CreatedOn = now
	b.UpdatedOn = now
	s.bookings[b.ID] = *b
	return nil
}

func (s *BookingStore) GetByID(ctx context.Context, id int32) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %d: %w", id, apperrors.ErrNotFound)
	}
	return &b, nil
}

// UpdateIfStatus holds the store lock across the status check and the write,
// so exactly one of two racing transitions can succeed.
func (s *BookingStore) UpdateIfStatus(ctx context.Context, b *domain.Booking, expected domain.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.bookings[b.ID]
	if !ok || current.Status != expected {
		return fmt.Errorf("booking %d expected %s: %w", b.ID, expected, apperrors.ErrStatusConflict)
	}
	updated := *b
	updated.UpdatedOn = time.Now()
	s.bookings[b.ID] = updated
	return nil
}

func (s *BookingStore) ListByCompany(ctx context.Context, companyID int32, status string, page, pageSize int32) ([]domain.Booking, int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []domain.Booking
	for _, b := range s.bookings {
		if b.RenterCompanyID != companyID && b.ProviderCompanyID != companyID {
			continue
		}
		if status != "" && string(b.Status) != status {
			continue
		}
		matched = append(matched, b)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].RequestedAt.After(matched[j].RequestedAt)
	})
	total := int32(len(matched))
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *BookingStore) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stale []domain.Booking
	for _, b := range s.bookings {
		if b.Status == domain.BookingStatusPending && !b.ExpiresAt.After(cutoff) {
			stale = append(stale, b)
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		return stale[i].ExpiresAt.Before(stale[j].ExpiresAt)
	})
	return stale, nil
}

func (s *BookingStore) CountByStatus(ctx context.Context) (map[domain.BookingStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.BookingStatus]int64)
	for _, b := range s.bookings {
		counts[b.Status]++
	}
	return counts, nil
}

func (s *BookingStore) RevenueTotals(ctx context.Context, since time.Time) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total, commission int64
	for _, b := range s.bookings {
		if b.Status == domain.BookingStatusPending || b.Status == domain.BookingStatusCancelled {
			continue
		}
		if !since.IsZero() && b.RequestedAt.Before(since) {
			continue
		}
		total += b.Costs.TotalCents
		commission += b.Costs.PlatformCommissionCents
	}
	return total, commission, nil
}

func (s *BookingStore) BookingsByRegion(ctx context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// The in-memory store has no company table join; callers that need real
	// regions use the SQL adapter.
	regions := make(map[string]int64)
	for range s.bookings {
		regions["UNKNOWN"]++
	}
	return regions, nil
}

type CompanyStore struct {
	mu        sync.Mutex
	companies map[int32]domain.Company
}

func NewCompanyStore(companies ...domain.Company) *CompanyStore {
	s := &CompanyStore{companies: make(map[int32]domain.Company)}
	for _, c := range companies {
		s.companies[c.ID] = c
	}
	return s
}

func (s *CompanyStore) Put(c domain.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[c.ID] = c
}

func (s *CompanyStore) GetByID(ctx context.Context, id int32) (*domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		return nil, fmt.Errorf("company %d: %w", id, apperrors.ErrNotFound)
	}
	return &c, nil
}
