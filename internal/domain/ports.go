package domain

import (
	"context"
	"time"
)

// InventoryReader is the read surface shared by the store and its transactions.
type InventoryReader interface {
	GetHotel(ctx context.Context, id int64) (Hotel, error)
	GetCategory(ctx context.Context, id int64) (RoomCategory, error)
	GetRoom(ctx context.Context, id int64) (Room, error)
	ListRooms(ctx context.Context, hotelID int64) ([]Room, error)

	// ListRateOverrides returns every override of the category intersecting [from, to].
	ListRateOverrides(ctx context.Context, categoryID int64, from, to time.Time) ([]RateOverride, error)

	// ListActiveStays returns non-cancelled stays on the room ending on or after since.
	ListActiveStays(ctx context.Context, roomID int64, since time.Time) ([]Stay, error)

	GetReservation(ctx context.Context, id int64) (Reservation, error)
}

// InventoryTx runs inside the exclusive scope of the rooms it was opened for.
type InventoryTx interface {
	InventoryReader

	CreateReservation(ctx context.Context, r *Reservation) error
	SetReservationStatus(ctx context.Context, id int64, status ReservationStatus) error
	SetRoomStatus(ctx context.Context, roomID int64, status RoomStatus) error
}

type InventoryStore interface {
	InventoryReader

	// InRoomTx locks the given rooms, runs fn and commits only if fn returns nil.
	// Lock contention fails fast with ErrConflict; a missing room fails with ErrRoomNotFound.
	InRoomTx(ctx context.Context, roomIDs []int64, fn func(tx InventoryTx) error) error

	// Write paths outside the reservation engine
	CreateRateOverride(ctx context.Context, o *RateOverride) error
	UpsertRateOverride(ctx context.Context, o *RateOverride) error

	ListCategoryIDs(ctx context.Context) ([]int64, error)
	ListRoomIDs(ctx context.Context) ([]int64, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
	DelPrefix(ctx context.Context, prefix string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, ev ReservationEvent) error
}

// RateFeedClient pulls rate overrides from an external channel manager.
type RateFeedClient interface {
	GetCategoryRates(ctx context.Context, categoryID int64) ([]map[string]any, error)
}

// Principal is the authenticated caller as supplied by the transport layer.
type Principal struct {
	UserID int64
	Role   string
}

const (
	RoleGuest = "guest"
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

func (p Principal) Elevated() bool { return p.Role == RoleStaff || p.Role == RoleAdmin }

// Authorizer answers whether p may act on r.
type Authorizer func(p Principal, r Reservation) bool

func OwnerOrElevated(p Principal, r Reservation) bool {
	return p.Elevated() || (p.UserID != 0 && p.UserID == r.GuestID)
}
