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
	"roomledger/internal/adapters/ratefeed"
	redisad "roomledger/internal/adapters/redis"
	"roomledger/internal/app"
	"roomledger/internal/domain"
	"roomledger/internal/shared"
	mysqlrepo "roomledger/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	observability.Serve(cfg.MetricsAddr, observability.InitRegistry())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("base", cfg.RateFeedBase).
		Int("workers", cfg.Workers).
		Int("rps", cfg.RateFeedRPS).
		Msg("rate sync starting")

	if cfg.StoreDriver != shared.StoreMySQL {
		log.Fatal().Str("driver", cfg.StoreDriver).Msg("rate sync needs the mysql store")
	}
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	client, err := ratefeed.New(cfg.RateFeedBase, cfg.RateFeedKey, cfg.RateFeedRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize rate feed client")
	}

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		cache = rc
	}
	svc := app.NewRateSyncService(client, repo, app.NewPricingService(repo, cache, cfg.QuoteCacheTTL))

	ids, err := repo.ListCategoryIDs(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("list categories failed")
	}

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var wg sync.WaitGroup
	var upserted, missing, failed atomic.Int64

	for _, id := range ids {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("rate sync interrupted")
			break
		}

		wg.Add(1)
		go func(categoryID int64) {
			defer wg.Done()
			defer sem.Release(1)

			rep, err := svc.SyncCategory(ctx, categoryID)
			if err != nil {
				failed.Add(1)
				log.Warn().Int64("category_id", categoryID).Err(err).Msg("rate sync failed")
				return
			}
			upserted.Add(int64(rep.Upserted))
			if rep.Missing {
				missing.Add(1)
			}
			log.Info().
				Int64("category_id", categoryID).
				Int("fetched", rep.Fetched).
				Int("upserted", rep.Upserted).
				Int("skipped", rep.Skipped).
				Bool("missing", rep.Missing).
				Msg("rate sync ok")
		}(id)
	}

	wg.Wait()
	log.Info().
		Int("categories", len(ids)).
		Int64("upserted", upserted.Load()).
		Int64("missing", missing.Load()).
		Int64("failed", failed.Load()).
		Msg("rate sync completed")
}
