package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Reservation is immutable except for the confirmed -> cancelled transition.
type Reservation struct {
	ID         int64
	Reference  string
	GuestID    int64
	HotelID    int64
	CheckIn    time.Time
	CheckOut   time.Time
	GuestCount int
	Total      decimal.Decimal
	Status     ReservationStatus
	CreatedAt  time.Time
	Items      []StayItem
}

// StayItem binds one room to a reservation with the price captured at booking time.
type StayItem struct {
	ID            int64
	ReservationID int64
	RoomID        int64
	PricePerNight decimal.Decimal
	Nights        int
}

func (r Reservation) RoomIDs() []int64 {
	ids := make([]int64, 0, len(r.Items))
	for _, it := range r.Items {
		ids = append(ids, it.RoomID)
	}
	return ids
}

// Stay is the slice of a non-cancelled reservation that matters to availability.
type Stay struct {
	ReservationID int64
	RoomID        int64
	CheckIn       time.Time
	CheckOut      time.Time
}

type NightPrice struct {
	Date      time.Time
	Base      decimal.Decimal
	Weekend   decimal.Decimal
	Seasonal  decimal.Decimal
	Occupancy decimal.Decimal
	Total     decimal.Decimal
}

type PriceBreakdown struct {
	CategoryID int64
	CheckIn    time.Time
	CheckOut   time.Time
	GuestCount int
	Nights     []NightPrice
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
}

func (p PriceBreakdown) NightCount() int { return len(p.Nights) }

// AveragePerNight is the per-night amount captured on a stay item.
func (p PriceBreakdown) AveragePerNight() decimal.Decimal {
	if len(p.Nights) == 0 {
		return decimal.Zero
	}
	return p.Total.DivRound(decimal.NewFromInt(int64(len(p.Nights))), 2)
}

type RoomOffer struct {
	Room  Room
	Price PriceBreakdown
}

type EventType string

const (
	EventReservationConfirmed EventType = "reservation.confirmed"
	EventReservationCancelled EventType = "reservation.cancelled"
)

type ReservationEvent struct {
	Type        EventType
	Reservation Reservation
	OccurredAt  time.Time
}
