package domain

import "time"

type BookingEventType string

const (
	BookingEventRequested  BookingEventType = "BOOKING_REQUESTED"
	BookingEventAccepted   BookingEventType = "BOOKING_ACCEPTED"
	BookingEventDeclined   BookingEventType = "BOOKING_DECLINED"
	BookingEventCountered  BookingEventType = "BOOKING_COUNTERED"
	BookingEventExpired    BookingEventType = "BOOKING_EXPIRED"
	BookingEventActivated  BookingEventType = "BOOKING_ACTIVATED"
	BookingEventCompleted  BookingEventType = "BOOKING_COMPLETED"
	BookingEventClosed     BookingEventType = "BOOKING_CLOSED"
	BookingEventDisputed   BookingEventType = "BOOKING_DISPUTED"
	BookingEventResolved   BookingEventType = "BOOKING_RESOLVED"
)

// BookingEvent is published on every successful state transition and consumed
// by the realtime dispatcher.
type BookingEvent struct {
	Type              BookingEventType `json:"type"`
	BookingID         int32            `json:"booking_id"`
	BookingNumber     string           `json:"booking_number"`
	PreviousStatus    BookingStatus    `json:"previous_status"`
	NewStatus         BookingStatus    `json:"new_status"`
	RenterCompanyID   int32            `json:"renter_company_id"`
	ProviderCompanyID int32            `json:"provider_company_id"`
	ActorCompanyID    int32            `json:"actor_company_id,omitempty"`
	TotalCents        int64            `json:"total_cents"`
	OccurredAt        time.Time        `json:"occurred_at"`
}

// Critical reports whether the event must bypass the realtime throttle floor.
func (e *BookingEvent) Critical() bool {
	return e.Type == BookingEventDisputed
}
