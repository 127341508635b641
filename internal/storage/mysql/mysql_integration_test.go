//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"roomledger/internal/app"
	"roomledger/internal/domain"
	mysqlstore "roomledger/internal/storage/mysql"
)

// ---------- small helpers ----------
func migrationsDir(t *testing.T) string {
	t.Helper()
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir(t)

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	// Start isolated MySQL; let Docker pick a free host port.
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=roomledger",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/roomledger?parseTime=true&multiStatements=true&charset=utf8mb4&loc=UTC",
		resource.GetPort("3306/tcp"))

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seed(t *testing.T, db *sql.DB) (hotelID, categoryID, roomID int64) {
	t.Helper()
	mustExec := func(query string, args ...any) int64 {
		res, err := db.Exec(query, args...)
		if err != nil {
			t.Fatalf("seed %q: %v", query, err)
		}
		id, _ := res.LastInsertId()
		return id
	}
	hotelID = mustExec(`INSERT INTO hotels (name) VALUES (?)`, "Harbour View")
	categoryID = mustExec(`INSERT INTO room_categories (hotel_id, name, capacity, base_price) VALUES (?, ?, ?, ?)`,
		hotelID, "Standard", 2, "100.00")
	roomID = mustExec(`INSERT INTO rooms (hotel_id, category_id, number) VALUES (?, ?, ?)`, hotelID, categoryID, "101")
	return
}

func day(s string) time.Time {
	t, _ := time.Parse(domain.DateLayout, s)
	return t
}

// ---------- the tests ----------
func TestStore_MySQL_ReserveCancelReserve(t *testing.T) {
	db := startMySQL(t)
	applyMigrations(t, db)
	_, categoryID, roomID := seed(t, db)

	store := mysqlstore.New(db)
	ctx := context.Background()
	svc := app.NewReservationService(store, nil, domain.OverlapInclusive)

	req := app.ReserveRequest{GuestID: 7, RoomID: roomID, CheckIn: day("2025-03-04"), CheckOut: day("2025-03-06"), Guests: 2}
	res, err := svc.Reserve(ctx, req)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if res.Reservation.Total.StringFixed(2) != "200.00" {
		t.Fatalf("total: %s", res.Reservation.Total)
	}

	got, err := store.GetReservation(ctx, res.Reservation.ID)
	if err != nil {
		t.Fatalf("GetReservation: %v", err)
	}
	if got.Reference != res.Reservation.Reference || len(got.Items) != 1 || !got.CheckIn.Equal(day("2025-03-04")) {
		t.Fatalf("round trip: %+v", got)
	}

	if _, err := svc.Reserve(ctx, req); !errors.Is(err, domain.ErrRoomUnavailable) {
		t.Fatalf("second reserve: got %v", err)
	}
	if _, err := svc.Cancel(ctx, res.Reservation.ID, domain.Principal{UserID: 7}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.Reserve(ctx, req); err != nil {
		t.Fatalf("re-reserve: %v", err)
	}

	// overrides are read back inside the room tx
	o := domain.RateOverride{CategoryID: categoryID, Start: day("2025-04-01"), End: day("2025-04-30"), Price: res.Reservation.Total}
	if err := store.CreateRateOverride(ctx, &o); err != nil {
		t.Fatalf("override: %v", err)
	}
	list, err := store.ListRateOverrides(ctx, categoryID, day("2025-04-10"), day("2025-04-10"))
	if err != nil || len(list) != 1 || list[0].ID != o.ID {
		t.Fatalf("overrides: %+v err=%v", list, err)
	}
}

func TestStore_MySQL_ParallelReserveSingleWinner(t *testing.T) {
	db := startMySQL(t)
	applyMigrations(t, db)
	_, _, roomID := seed(t, db)

	svc := app.NewReservationService(mysqlstore.New(db), nil, domain.OverlapInclusive)
	ctx := context.Background()

	const callers = 50
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		wins, lost int
		other      []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(guest int64) {
			defer wg.Done()
			_, err := svc.Reserve(ctx, app.ReserveRequest{
				GuestID: guest, RoomID: roomID, CheckIn: day("2025-03-04"), CheckOut: day("2025-03-06"), Guests: 2,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrRoomUnavailable), errors.Is(err, domain.ErrConflict):
				lost++
			default:
				other = append(other, err)
			}
		}(int64(i + 1))
	}
	wg.Wait()

	if wins != 1 || lost != callers-1 || len(other) != 0 {
		t.Fatalf("wins=%d lost=%d other=%v", wins, lost, other)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM stay_items WHERE room_id = ?`, roomID).Scan(&n); err != nil || n != 1 {
		t.Fatalf("stay items: %d err=%v", n, err)
	}
}
