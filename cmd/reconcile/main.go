package main

import (
	"context"
	"database/sql"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"roomledger/internal/adapters/observability"
	"roomledger/internal/app"
	"roomledger/internal/shared"
	mysqlrepo "roomledger/internal/storage/mysql"
)

// reconcile re-derives every room's status from the reservations on record,
// releasing rooms whose stays have ended.
func main() {
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	observability.Serve(cfg.MetricsAddr, observability.InitRegistry())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.StoreDriver != shared.StoreMySQL {
		log.Fatal().Str("driver", cfg.StoreDriver).Msg("reconcile needs the mysql store")
	}
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}

	repo := mysqlrepo.New(db)
	svc := app.NewReconcileService(repo)

	ids, err := repo.ListRoomIDs(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("list rooms failed")
	}
	log.Info().Int("rooms", len(ids)).Int("workers", cfg.Workers).Msg("reconcile starting")

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var wg sync.WaitGroup
	var changed, failed atomic.Int64

	for _, id := range ids {
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("reconcile interrupted")
			break
		}

		wg.Add(1)
		go func(roomID int64) {
			defer wg.Done()
			defer sem.Release(1)

			ok, err := svc.ReconcileRoom(ctx, roomID)
			if err != nil {
				// a room locked by a live booking is picked up on the next run
				failed.Add(1)
				log.Warn().Int64("room_id", roomID).Err(err).Msg("reconcile failed")
				return
			}
			if ok {
				changed.Add(1)
			}
		}(id)
	}

	wg.Wait()
	log.Info().
		Int("rooms", len(ids)).
		Int64("changed", changed.Load()).
		Int64("failed", failed.Load()).
		Msg("reconcile completed")
}
