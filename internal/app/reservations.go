package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"roomledger/internal/adapters/observability"
	"roomledger/internal/domain"
)

// ReservationService is the only writer of reservations and room status.
type ReservationService struct {
	store     domain.InventoryStore
	events    domain.EventPublisher
	policy    domain.OverlapPolicy
	authorize domain.Authorizer
	now       func() time.Time
	newRef    func() string
}

func NewReservationService(s domain.InventoryStore, events domain.EventPublisher, policy domain.OverlapPolicy) *ReservationService {
	return &ReservationService{
		store:     s,
		events:    events,
		policy:    policy,
		authorize: domain.OwnerOrElevated,
		now:       func() time.Time { return time.Now().UTC() },
		newRef:    uuid.NewString,
	}
}

// WithAuthorizer replaces the default owner-or-staff check.
func (s *ReservationService) WithAuthorizer(a domain.Authorizer) *ReservationService {
	s.authorize = a
	return s
}

func (s *ReservationService) WithClock(now func() time.Time) *ReservationService {
	s.now = now
	return s
}

type ReserveRequest struct {
	GuestID  int64
	RoomID   int64
	CheckIn  time.Time
	CheckOut time.Time
	Guests   int
}

type ReserveResult struct {
	Reservation domain.Reservation
	Price       domain.PriceBreakdown
}

// Reserve books one room for the stay. Availability, pricing and the writes
// all happen under the room's exclusive scope, so either everything commits or nothing does.
func (s *ReservationService) Reserve(ctx context.Context, req ReserveRequest) (res ReserveResult, err error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "reservation.reserve",
		attribute.Int64("room.id", req.RoomID), attribute.Int64("guest.id", req.GuestID))
	defer func() {
		observability.EndSpan(span, err)
		observability.ObserveReservation("reserve", err, time.Since(start))
	}()

	if req.GuestID <= 0 {
		return ReserveResult{}, fmt.Errorf("%w: guest id is required", domain.ErrInvalidInput)
	}
	if err := domain.ValidateRange(req.CheckIn, req.CheckOut); err != nil {
		return ReserveResult{}, err
	}
	if err := domain.ValidateGuests(req.Guests); err != nil {
		return ReserveResult{}, err
	}
	checkIn, checkOut := domain.Day(req.CheckIn), domain.Day(req.CheckOut)

	err = s.store.InRoomTx(ctx, []int64{req.RoomID}, func(tx domain.InventoryTx) error {
		room, err := tx.GetRoom(ctx, req.RoomID)
		if err != nil {
			return err
		}
		cat, err := tx.GetCategory(ctx, room.CategoryID)
		if err != nil {
			return err
		}
		if room.Status != domain.RoomAvailable {
			return fmt.Errorf("%w: room %d is %s", domain.ErrRoomUnavailable, room.ID, room.Status)
		}
		free, err := isAvailable(ctx, tx, s.policy, room.ID, checkIn, checkOut)
		if err != nil {
			return err
		}
		if !free {
			return fmt.Errorf("%w: room %d has a conflicting stay", domain.ErrRoomUnavailable, room.ID)
		}
		pb, err := quoteWith(ctx, tx, cat, checkIn, checkOut, req.Guests)
		if err != nil {
			return err
		}

		r := domain.Reservation{
			Reference:  s.newRef(),
			GuestID:    req.GuestID,
			HotelID:    room.HotelID,
			CheckIn:    checkIn,
			CheckOut:   checkOut,
			GuestCount: req.Guests,
			Total:      pb.Total,
			Status:     domain.ReservationConfirmed,
			CreatedAt:  s.now(),
			Items: []domain.StayItem{{
				RoomID:        room.ID,
				PricePerNight: pb.AveragePerNight(),
				Nights:        pb.NightCount(),
			}},
		}
		if err := tx.CreateReservation(ctx, &r); err != nil {
			return err
		}
		if err := tx.SetRoomStatus(ctx, room.ID, domain.RoomBooked); err != nil {
			return err
		}
		res = ReserveResult{Reservation: r, Price: pb}
		return nil
	})
	if err != nil {
		err = classify(err)
		log.Warn().Err(err).
			Int64("room_id", req.RoomID).
			Int64("guest_id", req.GuestID).
			Str("kind", domain.KindLabel(err)).
			Msg("reserve rejected")
		return ReserveResult{}, err
	}

	log.Info().
		Int64("reservation_id", res.Reservation.ID).
		Str("reference", res.Reservation.Reference).
		Int64("room_id", req.RoomID).
		Str("total", res.Reservation.Total.StringFixed(2)).
		Msg("reservation confirmed")
	s.publish(ctx, domain.EventReservationConfirmed, res.Reservation)
	return res, nil
}

// Cancel releases every room of the reservation. Only the owner or staff may cancel.
func (s *ReservationService) Cancel(ctx context.Context, reservationID int64, p domain.Principal) (out domain.Reservation, err error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "reservation.cancel", attribute.Int64("reservation.id", reservationID))
	defer func() {
		observability.EndSpan(span, err)
		observability.ObserveReservation("cancel", err, time.Since(start))
	}()

	current, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return domain.Reservation{}, classify(err)
	}
	if !s.authorize(p, current) {
		return domain.Reservation{}, fmt.Errorf("%w: user %d may not cancel reservation %d", domain.ErrUnauthorized, p.UserID, reservationID)
	}

	err = s.store.InRoomTx(ctx, current.RoomIDs(), func(tx domain.InventoryTx) error {
		r, err := tx.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if r.Status == domain.ReservationCancelled {
			return domain.ErrAlreadyCancelled
		}
		if err := tx.SetReservationStatus(ctx, r.ID, domain.ReservationCancelled); err != nil {
			return err
		}
		for _, roomID := range r.RoomIDs() {
			if err := tx.SetRoomStatus(ctx, roomID, domain.RoomAvailable); err != nil {
				return err
			}
		}
		r.Status = domain.ReservationCancelled
		out = r
		return nil
	})
	if err != nil {
		err = classify(err)
		log.Warn().Err(err).Int64("reservation_id", reservationID).Str("kind", domain.KindLabel(err)).Msg("cancel rejected")
		return domain.Reservation{}, err
	}

	log.Info().Int64("reservation_id", out.ID).Str("reference", out.Reference).Msg("reservation cancelled")
	s.publish(ctx, domain.EventReservationCancelled, out)
	return out, nil
}

// GetReservation returns the reservation if p may see it.
func (s *ReservationService) GetReservation(ctx context.Context, id int64, p domain.Principal) (domain.Reservation, error) {
	r, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return domain.Reservation{}, classify(err)
	}
	if !s.authorize(p, r) {
		return domain.Reservation{}, fmt.Errorf("%w: user %d may not read reservation %d", domain.ErrUnauthorized, p.UserID, id)
	}
	return r, nil
}

// publish is best-effort; the reservation is already committed.
func (s *ReservationService) publish(ctx context.Context, t domain.EventType, r domain.Reservation) {
	if s.events == nil {
		return
	}
	ev := domain.ReservationEvent{Type: t, Reservation: r, OccurredAt: s.now()}
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Error().Err(err).Str("event", string(t)).Int64("reservation_id", r.ID).Msg("publish reservation event failed")
	}
}

// classify makes sure errors leaving the engine carry a domain kind.
func classify(err error) error {
	if err == nil || domain.Kind(err) != domain.ErrStoreFailure || errors.Is(err, domain.ErrStoreFailure) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreFailure, err)
}
