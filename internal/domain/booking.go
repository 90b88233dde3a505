package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusAccepted  BookingStatus = "ACCEPTED"
	BookingStatusActive    BookingStatus = "ACTIVE"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusDisputed  BookingStatus = "DISPUTED"
	BookingStatusClosed    BookingStatus = "CLOSED"
)

// IsTerminal reports whether a booking in this status can never change again.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusClosed
}

// legalTransitions is the exhaustive lifecycle table. A transition absent
// from this map is illegal no matter who asks.
var legalTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusAccepted, BookingStatusCancelled, BookingStatusPending, BookingStatusDisputed},
	BookingStatusAccepted:  {BookingStatusActive, BookingStatusDisputed},
	BookingStatusActive:    {BookingStatusCompleted, BookingStatusDisputed},
	BookingStatusCompleted: {BookingStatusClosed},
	BookingStatusDisputed:  {BookingStatusActive, BookingStatusCancelled, BookingStatusClosed},
	BookingStatusCancelled: {},
	BookingStatusClosed:    {},
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. PENDING -> PENDING is legal because a counter-proposal rewrites terms
// without leaving the state.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	for _, t := range legalTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// CostBreakdown holds the financial decomposition of a booking. All amounts
// are integer cents; rates are basis points (10.00% == 1000 bp). Total is
// always the sum of the already-rounded parts, never recomputed elsewhere.
type CostBreakdown struct {
	ProviderRateCents       int64 `json:"provider_rate_cents"`
	CommissionRateBps       int64 `json:"commission_rate_bps"`
	TaxRateBps              int64 `json:"tax_rate_bps"`
	PlatformCommissionCents int64 `json:"platform_commission_cents"`
	TaxesCents              int64 `json:"taxes_cents"`
	TotalCents              int64 `json:"total_cents"`
}

// TermsProposal is a partial override of a booking's dates and rate. Nil
// fields keep the booking's current values.
type TermsProposal struct {
	ProposedBy        int32      `json:"proposed_by"`
	StartDate         *time.Time `json:"start_date,omitempty"`
	EndDate           *time.Time `json:"end_date,omitempty"`
	ProviderRateCents *int64     `json:"provider_rate_cents,omitempty"`
}

// Terms is the currently effective agreement on a booking, including which
// party proposed it last. The counter-party of ProposedBy is the only one
// entitled to accept or decline.
type Terms struct {
	ProposedBy        int32     `json:"proposed_by"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	ProviderRateCents int64     `json:"provider_rate_cents"`
}

type Booking struct {
	ID                int32         `json:"id"`
	BookingNumber     string        `json:"booking_number"`
	Status            BookingStatus `json:"status"`
	RenterCompanyID   int32         `json:"renter_company_id"`
	ProviderCompanyID int32         `json:"provider_company_id"`
	VehicleListingID  *int32        `json:"vehicle_listing_id,omitempty"`
	DriverListingID   *int32        `json:"driver_listing_id,omitempty"`
	StartDate         time.Time     `json:"start_date"`
	EndDate           time.Time     `json:"end_date"`
	RequestedAt       time.Time     `json:"requested_at"`
	RespondedAt       *time.Time    `json:"responded_at,omitempty"`
	ExpiresAt         time.Time     `json:"expires_at"`
	Costs             CostBreakdown `json:"costs"`
	Terms             Terms         `json:"terms"`
	DeclineReason     string        `json:"decline_reason,omitempty"`
	DisputeReason     string        `json:"dispute_reason,omitempty"`
	CreatedOn         time.Time     `json:"created_on"`
	UpdatedOn         time.Time     `json:"updated_on"`
}

// CounterpartyOf returns the other company on the booking, or 0 when the
// given company is not a party at all.
func (b *Booking) CounterpartyOf(companyID int32) int32 {
	switch companyID {
	case b.RenterCompanyID:
		return b.ProviderCompanyID
	case b.ProviderCompanyID:
		return b.RenterCompanyID
	default:
		return 0
	}
}

// IsParty reports whether the company is either side of the booking.
func (b *Booking) IsParty(companyID int32) bool {
	return companyID == b.RenterCompanyID || companyID == b.ProviderCompanyID
}
