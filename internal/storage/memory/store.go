// Package memory is an in-process InventoryStore. Writes made inside InRoomTx are staged and
// applied in one step on commit; rooms are guarded by per-room try-locks so contention fails fast.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"roomledger/internal/domain"
)

type Store struct {
	mu           sync.RWMutex
	hotels       map[int64]domain.Hotel
	categories   map[int64]domain.RoomCategory
	rooms        map[int64]domain.Room
	overrides    map[int64]domain.RateOverride
	reservations map[int64]domain.Reservation
	nextID       int64

	roomLocks sync.Map // room id -> *sync.Mutex
	now       func() time.Time
}

func New() *Store {
	return &Store{
		hotels:       make(map[int64]domain.Hotel),
		categories:   make(map[int64]domain.RoomCategory),
		rooms:        make(map[int64]domain.Room),
		overrides:    make(map[int64]domain.RateOverride),
		reservations: make(map[int64]domain.Reservation),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the creation-time source; tests use it to order overrides.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) nextIDLocked() int64 {
	s.nextID++
	return s.nextID
}

/********** seeding (directory data owned elsewhere) **********/

func (s *Store) AddHotel(h domain.Hotel) domain.Hotel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.ID == 0 {
		h.ID = s.nextIDLocked()
	}
	s.hotels[h.ID] = h
	return h
}

func (s *Store) AddCategory(c domain.RoomCategory) domain.RoomCategory {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.nextIDLocked()
	}
	s.categories[c.ID] = c
	return c
}

func (s *Store) AddRoom(r domain.Room) domain.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		r.ID = s.nextIDLocked()
	}
	if r.Status == "" {
		r.Status = domain.RoomAvailable
	}
	s.rooms[r.ID] = r
	return r
}

/********** reads **********/

func (s *Store) GetHotel(ctx context.Context, id int64) (domain.Hotel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hotels[id]
	if !ok {
		return domain.Hotel{}, domain.ErrHotelNotFound
	}
	return h, nil
}

func (s *Store) GetCategory(ctx context.Context, id int64) (domain.RoomCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return domain.RoomCategory{}, domain.ErrCategoryNotFound
	}
	return c, nil
}

func (s *Store) GetRoom(ctx context.Context, id int64) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return r, nil
}

func (s *Store) ListRooms(ctx context.Context, hotelID int64) ([]domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.hotels[hotelID]; !ok {
		return nil, domain.ErrHotelNotFound
	}
	var out []domain.Room
	for _, r := range s.rooms {
		if r.HotelID == hotelID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListRateOverrides(ctx context.Context, categoryID int64, from, to time.Time) ([]domain.RateOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	from, to = domain.Day(from), domain.Day(to)
	var out []domain.RateOverride
	for _, o := range s.overrides {
		if o.CategoryID != categoryID {
			continue
		}
		if domain.Day(o.End).Before(from) || domain.Day(o.Start).After(to) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListActiveStays(ctx context.Context, roomID int64, since time.Time) ([]domain.Stay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	since = domain.Day(since)
	var out []domain.Stay
	for _, r := range s.reservations {
		if r.Status == domain.ReservationCancelled || domain.Day(r.CheckOut).Before(since) {
			continue
		}
		for _, it := range r.Items {
			if it.RoomID == roomID {
				out = append(out, domain.Stay{ReservationID: r.ID, RoomID: roomID, CheckIn: r.CheckIn, CheckOut: r.CheckOut})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReservationID < out[j].ReservationID })
	return out, nil
}

func (s *Store) GetReservation(ctx context.Context, id int64) (domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return cloneReservation(r), nil
}

func (s *Store) ListCategoryIDs(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.categories))
	for id := range s.categories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) ListRoomIDs(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

/********** rate overrides **********/

func (s *Store) CreateRateOverride(ctx context.Context, o *domain.RateOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[o.CategoryID]; !ok {
		return domain.ErrCategoryNotFound
	}
	o.ID = s.nextIDLocked()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	s.overrides[o.ID] = *o
	return nil
}

// UpsertRateOverride matches on (category, source ref); the original creation time is kept.
func (s *Store) UpsertRateOverride(ctx context.Context, o *domain.RateOverride) error {
	if o.SourceRef == nil {
		return s.CreateRateOverride(ctx, o)
	}
	s.mu.Lock()
	for id, cur := range s.overrides {
		if cur.CategoryID == o.CategoryID && cur.SourceRef != nil && *cur.SourceRef == *o.SourceRef {
			o.ID, o.CreatedAt = id, cur.CreatedAt
			s.overrides[id] = *o
			s.mu.Unlock()
			return nil
		}
	}
	s.mu.Unlock()
	return s.CreateRateOverride(ctx, o)
}

/********** transactions **********/

func (s *Store) roomLock(id int64) *sync.Mutex {
	m, _ := s.roomLocks.LoadOrStore(id, &sync.Mutex{})
	return m.(*sync.Mutex)
}

func (s *Store) InRoomTx(ctx context.Context, roomIDs []int64, fn func(tx domain.InventoryTx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreFailure, err)
	}
	ids := uniqueSorted(roomIDs)

	s.mu.RLock()
	for _, id := range ids {
		if _, ok := s.rooms[id]; !ok {
			s.mu.RUnlock()
			return domain.ErrRoomNotFound
		}
	}
	s.mu.RUnlock()

	held := make([]*sync.Mutex, 0, len(ids))
	defer func() {
		for _, m := range held {
			m.Unlock()
		}
	}()
	for _, id := range ids {
		m := s.roomLock(id)
		if !m.TryLock() {
			return fmt.Errorf("%w: room %d is locked by another writer", domain.ErrConflict, id)
		}
		held = append(held, m)
	}

	t := &tx{
		Store:      s,
		created:    make([]domain.Reservation, 0, 1),
		resStatus:  make(map[int64]domain.ReservationStatus),
		roomStatus: make(map[int64]domain.RoomStatus),
	}
	if err := fn(t); err != nil {
		return err
	}
	s.commit(t)
	return nil
}

func (s *Store) commit(t *tx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range t.created {
		s.reservations[r.ID] = r
	}
	for id, st := range t.resStatus {
		r := s.reservations[id]
		r.Status = st
		s.reservations[id] = r
	}
	for id, st := range t.roomStatus {
		r := s.rooms[id]
		r.Status = st
		s.rooms[id] = r
	}
}

// tx reads through to the store and overlays its own staged writes.
type tx struct {
	*Store
	created    []domain.Reservation
	resStatus  map[int64]domain.ReservationStatus
	roomStatus map[int64]domain.RoomStatus
}

func (t *tx) GetRoom(ctx context.Context, id int64) (domain.Room, error) {
	r, err := t.Store.GetRoom(ctx, id)
	if err != nil {
		return r, err
	}
	if st, ok := t.roomStatus[id]; ok {
		r.Status = st
	}
	return r, nil
}

func (t *tx) GetReservation(ctx context.Context, id int64) (domain.Reservation, error) {
	for _, r := range t.created {
		if r.ID == id {
			return cloneReservation(r), nil
		}
	}
	r, err := t.Store.GetReservation(ctx, id)
	if err != nil {
		return r, err
	}
	if st, ok := t.resStatus[id]; ok {
		r.Status = st
	}
	return r, nil
}

func (t *tx) CreateReservation(ctx context.Context, r *domain.Reservation) error {
	t.Store.mu.Lock()
	r.ID = t.Store.nextIDLocked()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = t.Store.now()
	}
	for i := range r.Items {
		r.Items[i].ID = t.Store.nextIDLocked()
		r.Items[i].ReservationID = r.ID
	}
	t.Store.mu.Unlock()
	t.created = append(t.created, cloneReservation(*r))
	return nil
}

func (t *tx) SetReservationStatus(ctx context.Context, id int64, status domain.ReservationStatus) error {
	if _, err := t.GetReservation(ctx, id); err != nil {
		return err
	}
	for i := range t.created {
		if t.created[i].ID == id {
			t.created[i].Status = status
			return nil
		}
	}
	t.resStatus[id] = status
	return nil
}

func (t *tx) SetRoomStatus(ctx context.Context, roomID int64, status domain.RoomStatus) error {
	if _, err := t.Store.GetRoom(ctx, roomID); err != nil {
		return err
	}
	t.roomStatus[roomID] = status
	return nil
}

func cloneReservation(r domain.Reservation) domain.Reservation {
	if r.Items != nil {
		items := make([]domain.StayItem, len(r.Items))
		copy(items, r.Items)
		r.Items = items
	}
	return r
}

func uniqueSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
