// Package events ships reservation events to RabbitMQ. One durable queue per event type;
// messages are persistent JSON.
package events

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"roomledger/internal/adapters/observability"
	"roomledger/internal/domain"
)

// Message is the wire form of a domain.ReservationEvent.
type Message struct {
	Event         string    `json:"event"`
	ReservationID int64     `json:"reservation_id"`
	Reference     string    `json:"reference"`
	GuestID       int64     `json:"guest_id"`
	HotelID       int64     `json:"hotel_id"`
	RoomIDs       []int64   `json:"room_ids"`
	CheckIn       string    `json:"check_in"`
	CheckOut      string    `json:"check_out"`
	Total         string    `json:"total"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func Encode(ev domain.ReservationEvent) ([]byte, error) {
	r := ev.Reservation
	return json.Marshal(Message{
		Event:         string(ev.Type),
		ReservationID: r.ID,
		Reference:     r.Reference,
		GuestID:       r.GuestID,
		HotelID:       r.HotelID,
		RoomIDs:       r.RoomIDs(),
		CheckIn:       domain.FormatDate(r.CheckIn),
		CheckOut:      domain.FormatDate(r.CheckOut),
		Total:         r.Total.StringFixed(2),
		Status:        string(r.Status),
		OccurredAt:    ev.OccurredAt.UTC(),
	})
}

// New returns an AMQP publisher, or a no-op one when url is empty.
func New(url string) domain.EventPublisher {
	if url == "" {
		return Noop{}
	}
	return &AMQPPublisher{url: url}
}

type Noop struct{}

func (Noop) Publish(ctx context.Context, ev domain.ReservationEvent) error {
	log.Debug().Str("event", string(ev.Type)).Int64("reservation_id", ev.Reservation.ID).Msg("event publishing disabled")
	observability.ObserveEvent(string(ev.Type), nil)
	return nil
}

// AMQPPublisher dials per publish; reservation traffic is low and a fresh
// connection never leaves a dead channel behind.
type AMQPPublisher struct{ url string }

func (p *AMQPPublisher) Publish(ctx context.Context, ev domain.ReservationEvent) (err error) {
	defer func() { observability.ObserveEvent(string(ev.Type), err) }()

	body, err := Encode(ev)
	if err != nil {
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	queue := string(ev.Type)
	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		return err
	}

	return ch.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.Reservation.Reference,
			Type:         queue,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}
