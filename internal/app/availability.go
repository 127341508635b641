package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"roomledger/internal/adapters/observability"
	"roomledger/internal/domain"
)

// quoteParallelism bounds concurrent category quotes in GetAvailableRooms.
const quoteParallelism = 4

// AvailabilityService answers "is this room free for these nights" from committed stays.
type AvailabilityService struct {
	store   domain.InventoryReader
	pricing *PricingService
	policy  domain.OverlapPolicy
}

func NewAvailabilityService(s domain.InventoryReader, p *PricingService, policy domain.OverlapPolicy) *AvailabilityService {
	return &AvailabilityService{store: s, pricing: p, policy: policy}
}

// IsAvailable reports whether no active stay on the room conflicts with the range.
func (s *AvailabilityService) IsAvailable(ctx context.Context, roomID int64, checkIn, checkOut time.Time) (bool, error) {
	if err := domain.ValidateRange(checkIn, checkOut); err != nil {
		return false, err
	}
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return false, err
	}
	return isAvailable(ctx, s.store, s.policy, roomID, checkIn, checkOut)
}

// isAvailable is shared with Reserve, where r is the open room transaction.
func isAvailable(ctx context.Context, r domain.InventoryReader, policy domain.OverlapPolicy, roomID int64, checkIn, checkOut time.Time) (bool, error) {
	stays, err := r.ListActiveStays(ctx, roomID, domain.Day(checkIn))
	if err != nil {
		return false, err
	}
	for _, st := range stays {
		if policy.Conflicts(st, checkIn, checkOut) {
			return false, nil
		}
	}
	return true, nil
}

// GetAvailableRooms lists rooms of the hotel with enough capacity and no conflicting stay,
// each priced for the requested stay.
func (s *AvailabilityService) GetAvailableRooms(ctx context.Context, hotelID int64, checkIn, checkOut time.Time, guests int) (offers []domain.RoomOffer, err error) {
	ctx, span := observability.StartSpan(ctx, "availability.search", attribute.Int64("hotel.id", hotelID))
	defer func() { observability.EndSpan(span, err) }()

	if err := domain.ValidateRange(checkIn, checkOut); err != nil {
		return nil, err
	}
	if err := domain.ValidateGuests(guests); err != nil {
		return nil, err
	}
	if _, err := s.store.GetHotel(ctx, hotelID); err != nil {
		return nil, err
	}
	rooms, err := s.store.ListRooms(ctx, hotelID)
	if err != nil {
		return nil, err
	}

	categories := map[int64]domain.RoomCategory{}
	var candidates []domain.Room
	for _, room := range rooms {
		cat, ok := categories[room.CategoryID]
		if !ok {
			if cat, err = s.store.GetCategory(ctx, room.CategoryID); err != nil {
				return nil, err
			}
			categories[cat.ID] = cat
		}
		if cat.Capacity < guests {
			continue
		}
		free, err := isAvailable(ctx, s.store, s.policy, room.ID, checkIn, checkOut)
		if err != nil {
			return nil, err
		}
		if free {
			candidates = append(candidates, room)
		}
	}

	// one quote per distinct category
	var (
		mu     sync.Mutex
		prices = map[int64]domain.PriceBreakdown{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(quoteParallelism)
	for catID := range distinctCategories(candidates) {
		catID := catID
		g.Go(func() error {
			pb, err := s.pricing.PriceQuote(gctx, catID, checkIn, checkOut, guests)
			if err != nil {
				return err
			}
			mu.Lock()
			prices[catID] = pb
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	offers = make([]domain.RoomOffer, 0, len(candidates))
	for _, room := range candidates {
		offers = append(offers, domain.RoomOffer{Room: room, Price: prices[room.CategoryID]})
	}
	sort.Slice(offers, func(i, j int) bool { return offers[i].Room.ID < offers[j].Room.ID })
	return offers, nil
}

func distinctCategories(rooms []domain.Room) map[int64]struct{} {
	set := make(map[int64]struct{}, len(rooms))
	for _, r := range rooms {
		set[r.CategoryID] = struct{}{}
	}
	return set
}
