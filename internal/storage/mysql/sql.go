package mysql

// -----------------------------------------------------------------------------
// DIRECTORY READS
// -----------------------------------------------------------------------------

const getHotelSQL = `SELECT id, name FROM hotels WHERE id = ?`

const getCategorySQL = `
SELECT id, hotel_id, name, capacity, base_price
FROM room_categories
WHERE id = ?`

const getRoomSQL = `
SELECT id, hotel_id, category_id, number, status
FROM rooms
WHERE id = ?`

const listRoomsSQL = `
SELECT id, hotel_id, category_id, number, status
FROM rooms
WHERE hotel_id = ?
ORDER BY id`

const listCategoryIDsSQL = `SELECT id FROM room_categories ORDER BY id`

const listRoomIDsSQL = `SELECT id FROM rooms ORDER BY id`

// -----------------------------------------------------------------------------
// RATE CALENDAR
// -----------------------------------------------------------------------------

// Overrides intersecting [from, to], both inclusive.
const listRateOverridesSQL = `
SELECT id, category_id, start_date, end_date, price, source_ref, created_at
FROM rate_overrides
WHERE category_id = ? AND end_date >= ? AND start_date <= ?
ORDER BY id`

const insertRateOverrideSQL = `
INSERT INTO rate_overrides (category_id, start_date, end_date, price, source_ref, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

// created_at is left alone on update; LAST_INSERT_ID(id) hands back the existing row id.
const upsertRateOverrideSQL = `
INSERT INTO rate_overrides (category_id, start_date, end_date, price, source_ref, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  id         = LAST_INSERT_ID(id),
  start_date = VALUES(start_date),
  end_date   = VALUES(end_date),
  price      = VALUES(price)`

const getRateOverrideCreatedSQL = `SELECT created_at FROM rate_overrides WHERE id = ?`

// -----------------------------------------------------------------------------
// RESERVATIONS
// -----------------------------------------------------------------------------

const listActiveStaysSQL = `
SELECT r.id, si.room_id, r.check_in, r.check_out
FROM stay_items si
JOIN reservations r ON r.id = si.reservation_id
WHERE si.room_id = ? AND r.status <> 'cancelled' AND r.check_out >= ?
ORDER BY r.id`

const getReservationSQL = `
SELECT id, reference, guest_id, hotel_id, check_in, check_out, guest_count, total, status, created_at
FROM reservations
WHERE id = ?`

const listStayItemsSQL = `
SELECT id, reservation_id, room_id, price_per_night, nights
FROM stay_items
WHERE reservation_id = ?
ORDER BY id`

const insertReservationSQL = `
INSERT INTO reservations (reference, guest_id, hotel_id, check_in, check_out, guest_count, total, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertStayItemSQL = `
INSERT INTO stay_items (reservation_id, room_id, price_per_night, nights)
VALUES (?, ?, ?, ?)`

const updateReservationStatusSQL = `UPDATE reservations SET status = ? WHERE id = ?`

const updateRoomStatusSQL = `UPDATE rooms SET status = ? WHERE id = ?`

// NOWAIT turns contention into error 3572 instead of a lock wait.
const lockRoomSQL = `SELECT id FROM rooms WHERE id = ? FOR UPDATE NOWAIT`
