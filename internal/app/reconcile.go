package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"roomledger/internal/domain"
)

// ReconcileService re-derives room status from the stays on record.
// Rooms under maintenance are left alone.
type ReconcileService struct {
	store domain.InventoryStore
	now   func() time.Time
}

func NewReconcileService(s domain.InventoryStore) *ReconcileService {
	return &ReconcileService{store: s, now: func() time.Time { return time.Now().UTC() }}
}

func (s *ReconcileService) WithClock(now func() time.Time) *ReconcileService {
	s.now = now
	return s
}

// ReconcileRoom reports whether the room status had to change.
func (s *ReconcileService) ReconcileRoom(ctx context.Context, roomID int64) (changed bool, err error) {
	today := domain.Day(s.now())
	err = s.store.InRoomTx(ctx, []int64{roomID}, func(tx domain.InventoryTx) error {
		room, err := tx.GetRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if room.Status == domain.RoomMaintenance {
			return nil
		}
		stays, err := tx.ListActiveStays(ctx, roomID, today)
		if err != nil {
			return err
		}
		want := domain.RoomAvailable
		if len(stays) > 0 {
			want = domain.RoomBooked
		}
		if want == room.Status {
			return nil
		}
		changed = true
		log.Info().Int64("room_id", roomID).
			Str("from", string(room.Status)).
			Str("to", string(want)).
			Msg("room status reconciled")
		return tx.SetRoomStatus(ctx, roomID, want)
	})
	if err != nil {
		return false, classify(err)
	}
	return changed, nil
}
