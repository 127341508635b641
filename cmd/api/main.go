package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"roomledger/internal/adapters/events"
	server "roomledger/internal/adapters/http_server"
	"roomledger/internal/adapters/observability"
	redisad "roomledger/internal/adapters/redis"
	"roomledger/internal/app"
	"roomledger/internal/domain"
	"roomledger/internal/shared"
	"roomledger/internal/storage/memory"
	mysqlrepo "roomledger/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(cfg)
	defer closeStore()

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			// quotes still work uncached
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, quote cache degraded")
		}
		cache = rc
	}

	publisher := events.New(cfg.AMQPURL)
	policy := cfg.OverlapPolicy()

	pricing := app.NewPricingService(store, cache, cfg.QuoteCacheTTL)
	availability := app.NewAvailabilityService(store, pricing, policy)
	reservations := app.NewReservationService(store, publisher, policy)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Pricing:      pricing,
		Availability: availability,
		Reservations: reservations,
		JWTSecret:    cfg.JWTSecret,
		WriteRPS:     cfg.WriteRPS,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().
			Str("addr", cfg.HTTPAddr).
			Str("store", cfg.StoreDriver).
			Str("overlap", policy.String()).
			Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func openStore(cfg shared.Config) (domain.InventoryStore, func()) {
	if cfg.StoreDriver == shared.StoreMemory {
		s := memory.New()
		seedDemo(s)
		log.Warn().Msg("using in-memory store; state is lost on exit")
		return s, func() {}
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")
	return mysqlrepo.New(db), func() { _ = db.Close() }
}

// seedDemo gives the in-memory store one small hotel to play with.
func seedDemo(s *memory.Store) {
	h := s.AddHotel(domain.Hotel{Name: "Demo Harbour Hotel"})
	std := s.AddCategory(domain.RoomCategory{HotelID: h.ID, Name: "Standard", Capacity: 2, BasePrice: decimal.NewFromInt(100)})
	fam := s.AddCategory(domain.RoomCategory{HotelID: h.ID, Name: "Family", Capacity: 4, BasePrice: decimal.NewFromInt(180)})
	for _, n := range []string{"101", "102", "103"} {
		s.AddRoom(domain.Room{HotelID: h.ID, CategoryID: std.ID, Number: n})
	}
	for _, n := range []string{"201", "202"} {
		s.AddRoom(domain.Room{HotelID: h.ID, CategoryID: fam.ID, Number: n})
	}
}
