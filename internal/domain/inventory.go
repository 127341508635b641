package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Hotel struct {
	ID   int64
	Name string
}

// RoomCategory is a class of interchangeable rooms within a hotel.
type RoomCategory struct {
	ID        int64
	HotelID   int64
	Name      string
	Capacity  int             // max guests before occupancy surcharge
	BasePrice decimal.Decimal // standard nightly price
}

// RateOverride replaces the category base price for every date in [Start, End].
type RateOverride struct {
	ID         int64
	CategoryID int64
	Start      time.Time
	End        time.Time
	Price      decimal.Decimal
	SourceRef  *string // external feed reference, nil for manual overrides
	CreatedAt  time.Time
}

// Covers reports whether d falls inside the inclusive override interval.
func (o RateOverride) Covers(d time.Time) bool {
	d = Day(d)
	return !d.Before(Day(o.Start)) && !d.After(Day(o.End))
}

type RoomStatus string

const (
	RoomAvailable   RoomStatus = "available"
	RoomBooked      RoomStatus = "booked"
	RoomMaintenance RoomStatus = "maintenance"
)

func (s RoomStatus) Valid() bool {
	switch s {
	case RoomAvailable, RoomBooked, RoomMaintenance:
		return true
	}
	return false
}

type Room struct {
	ID         int64
	HotelID    int64
	CategoryID int64
	Number     string
	Status     RoomStatus
}
