package mysql

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"roomledger/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// reader implements domain.InventoryReader over whatever q is.
type reader struct{ q querier }

type Store struct {
	reader
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{reader: reader{q: db}, db: db, now: func() time.Time { return time.Now().UTC() }}
}

/********** reads **********/

func (r reader) GetHotel(ctx context.Context, id int64) (domain.Hotel, error) {
	var h domain.Hotel
	if err := r.q.QueryRowContext(ctx, getHotelSQL, id).Scan(&h.ID, &h.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Hotel{}, domain.ErrHotelNotFound
		}
		return domain.Hotel{}, mapErr(err)
	}
	return h, nil
}

func (r reader) GetCategory(ctx context.Context, id int64) (domain.RoomCategory, error) {
	var c domain.RoomCategory
	err := r.q.QueryRowContext(ctx, getCategorySQL, id).Scan(&c.ID, &c.HotelID, &c.Name, &c.Capacity, &c.BasePrice)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RoomCategory{}, domain.ErrCategoryNotFound
		}
		return domain.RoomCategory{}, mapErr(err)
	}
	return c, nil
}

func (r reader) GetRoom(ctx context.Context, id int64) (domain.Room, error) {
	var rm domain.Room
	err := r.q.QueryRowContext(ctx, getRoomSQL, id).Scan(&rm.ID, &rm.HotelID, &rm.CategoryID, &rm.Number, &rm.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Room{}, domain.ErrRoomNotFound
		}
		return domain.Room{}, mapErr(err)
	}
	return rm, nil
}

func (r reader) ListRooms(ctx context.Context, hotelID int64) ([]domain.Room, error) {
	rows, err := r.q.QueryContext(ctx, listRoomsSQL, hotelID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.Room
	for rows.Next() {
		var rm domain.Room
		if err := rows.Scan(&rm.ID, &rm.HotelID, &rm.CategoryID, &rm.Number, &rm.Status); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, rm)
	}
	return out, mapErr(rows.Err())
}

func (r reader) ListRateOverrides(ctx context.Context, categoryID int64, from, to time.Time) ([]domain.RateOverride, error) {
	rows, err := r.q.QueryContext(ctx, listRateOverridesSQL, categoryID, domain.Day(from), domain.Day(to))
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.RateOverride
	for rows.Next() {
		var o domain.RateOverride
		var ref sql.NullString
		if err := rows.Scan(&o.ID, &o.CategoryID, &o.Start, &o.End, &o.Price, &ref, &o.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		if ref.Valid {
			s := ref.String
			o.SourceRef = &s
		}
		out = append(out, o)
	}
	return out, mapErr(rows.Err())
}

func (r reader) ListActiveStays(ctx context.Context, roomID int64, since time.Time) ([]domain.Stay, error) {
	rows, err := r.q.QueryContext(ctx, listActiveStaysSQL, roomID, domain.Day(since))
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.Stay
	for rows.Next() {
		var st domain.Stay
		if err := rows.Scan(&st.ReservationID, &st.RoomID, &st.CheckIn, &st.CheckOut); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, st)
	}
	return out, mapErr(rows.Err())
}

func (r reader) GetReservation(ctx context.Context, id int64) (domain.Reservation, error) {
	var res domain.Reservation
	err := r.q.QueryRowContext(ctx, getReservationSQL, id).Scan(
		&res.ID, &res.Reference, &res.GuestID, &res.HotelID,
		&res.CheckIn, &res.CheckOut, &res.GuestCount,
		&res.Total, &res.Status, &res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, mapErr(err)
	}

	rows, err := r.q.QueryContext(ctx, listStayItemsSQL, id)
	if err != nil {
		return domain.Reservation{}, mapErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.StayItem
		if err := rows.Scan(&it.ID, &it.ReservationID, &it.RoomID, &it.PricePerNight, &it.Nights); err != nil {
			return domain.Reservation{}, mapErr(err)
		}
		res.Items = append(res.Items, it)
	}
	return res, mapErr(rows.Err())
}

func (s *Store) ListCategoryIDs(ctx context.Context) ([]int64, error) {
	return s.listIDs(ctx, listCategoryIDsSQL)
}

func (s *Store) ListRoomIDs(ctx context.Context) ([]int64, error) {
	return s.listIDs(ctx, listRoomIDsSQL)
}

func (s *Store) listIDs(ctx context.Context, query string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, mapErr(err)
		}
		ids = append(ids, id)
	}
	return ids, mapErr(rows.Err())
}

/********** rate overrides **********/

func (s *Store) CreateRateOverride(ctx context.Context, o *domain.RateOverride) error {
	if _, err := s.GetCategory(ctx, o.CategoryID); err != nil {
		return err
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	res, err := s.db.ExecContext(ctx, insertRateOverrideSQL,
		o.CategoryID, domain.Day(o.Start), domain.Day(o.End), o.Price, valStr(o.SourceRef), o.CreatedAt)
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return mapErr(err)
	}
	o.ID = id
	return nil
}

// UpsertRateOverride matches on (category_id, source_ref); the original created_at survives.
func (s *Store) UpsertRateOverride(ctx context.Context, o *domain.RateOverride) error {
	if o.SourceRef == nil {
		return s.CreateRateOverride(ctx, o)
	}
	if _, err := s.GetCategory(ctx, o.CategoryID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, upsertRateOverrideSQL,
		o.CategoryID, domain.Day(o.Start), domain.Day(o.End), o.Price, *o.SourceRef, s.now())
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return mapErr(err)
	}
	o.ID = id
	if err := s.db.QueryRowContext(ctx, getRateOverrideCreatedSQL, id).Scan(&o.CreatedAt); err != nil {
		return mapErr(err)
	}
	return nil
}

/********** transactions **********/

// InRoomTx locks the room rows in id order with NOWAIT so two writers on one room
// never both proceed, and a loser fails with ErrConflict instead of waiting.
func (s *Store) InRoomTx(ctx context.Context, roomIDs []int64, fn func(tx domain.InventoryTx) error) error {
	ids := uniqueSorted(roomIDs)

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	for _, id := range ids {
		var locked int64
		if err := sqlTx.QueryRowContext(ctx, lockRoomSQL, id).Scan(&locked); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrRoomNotFound
			}
			return mapErr(err)
		}
	}

	if err := fn(&tx{reader: reader{q: sqlTx}, now: s.now}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return mapErr(err)
	}
	committed = true
	return nil
}

type tx struct {
	reader
	now func() time.Time
}

func (t *tx) CreateReservation(ctx context.Context, r *domain.Reservation) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = t.now()
	}
	res, err := t.q.ExecContext(ctx, insertReservationSQL,
		r.Reference, r.GuestID, r.HotelID,
		domain.Day(r.CheckIn), domain.Day(r.CheckOut), r.GuestCount,
		r.Total, string(r.Status), r.CreatedAt,
	)
	if err != nil {
		return mapErr(err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return mapErr(err)
	}
	for i := range r.Items {
		it := &r.Items[i]
		it.ReservationID = r.ID
		res, err := t.q.ExecContext(ctx, insertStayItemSQL, r.ID, it.RoomID, it.PricePerNight, it.Nights)
		if err != nil {
			return mapErr(err)
		}
		if it.ID, err = res.LastInsertId(); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (t *tx) SetReservationStatus(ctx context.Context, id int64, status domain.ReservationStatus) error {
	return t.update(ctx, updateReservationStatusSQL, string(status), id, func() error {
		_, err := t.GetReservation(ctx, id)
		return err
	})
}

func (t *tx) SetRoomStatus(ctx context.Context, roomID int64, status domain.RoomStatus) error {
	return t.update(ctx, updateRoomStatusSQL, string(status), roomID, func() error {
		_, err := t.GetRoom(ctx, roomID)
		return err
	})
}

// update reports a missing row through exists. MySQL also counts no-op updates
// as zero affected rows, so zero alone does not mean missing.
func (t *tx) update(ctx context.Context, query, status string, id int64, exists func() error) error {
	res, err := t.q.ExecContext(ctx, query, status, id)
	if err != nil {
		return mapErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	return exists()
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
