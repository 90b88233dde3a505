// Package events carries booking domain events from the service layer to the
// realtime dispatcher over an in-process pub/sub channel.
package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"fleetmarket-backend/internal/domain"
)

const BookingTopic = "booking.status"

type Bus struct {
	pubsub *gochannel.GoChannel
}

func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, watermill.NopLogger{}),
	}
}

func (b *Bus) PublishBookingEvent(e *domain.BookingEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.pubsub.Publish(BookingTopic, message.NewMessage(watermill.NewUUID(), payload))
}

// SubscribeBookingEvents returns a channel of raw messages; consumers decode
// with DecodeBookingEvent and must Ack every message.
func (b *Bus) SubscribeBookingEvents(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, BookingTopic)
}

func (b *Bus) Close() error {
	return b.pubsub.Close()
}

func DecodeBookingEvent(msg *message.Message) (*domain.BookingEvent, error) {
	var e domain.BookingEvent
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
