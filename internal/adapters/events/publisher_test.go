package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"roomledger/internal/adapters/events"
	"roomledger/internal/domain"
)

func TestEncode(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ev := domain.ReservationEvent{
		Type: domain.EventReservationConfirmed,
		Reservation: domain.Reservation{
			ID: 41, Reference: "ref-1", GuestID: 7, HotelID: 1,
			CheckIn:  time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC),
			CheckOut: time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC),
			Total:    decimal.NewFromInt(200), Status: domain.ReservationConfirmed,
			Items: []domain.StayItem{{RoomID: 5}},
		},
		OccurredAt: at,
	}
	b, err := events.Encode(ev)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var m events.Message
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Event != "reservation.confirmed" || m.Total != "200.00" || m.CheckIn != "2025-03-04" || m.CheckOut != "2025-03-06" {
		t.Fatalf("message: %+v", m)
	}
	if len(m.RoomIDs) != 1 || m.RoomIDs[0] != 5 || !m.OccurredAt.Equal(at) {
		t.Fatalf("message: %+v", m)
	}
}

func TestNew_EmptyURLIsNoop(t *testing.T) {
	p := events.New("")
	if _, ok := p.(events.Noop); !ok {
		t.Fatalf("got %T", p)
	}
	if err := p.Publish(context.Background(), domain.ReservationEvent{Type: domain.EventReservationCancelled}); err != nil {
		t.Fatalf("noop publish: %v", err)
	}
}
