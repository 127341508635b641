package app_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"roomledger/internal/app"
	"roomledger/internal/domain"
)

func TestPriceQuote_CacheMissThenHit(t *testing.T) {
	f := newFixture(t)
	cache := &fakeCache{}
	q := app.NewPricingService(f.store, cache, 10*time.Minute)
	ctx := context.Background()

	// Sat + Sun in high season: 135 a night
	pb, err := q.PriceQuote(ctx, f.standard.ID, day("2025-12-20"), day("2025-12-22"), 2)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !pb.Total.Equal(dec("270")) {
		t.Fatalf("total: got %s want 270", pb.Total)
	}

	// Written behind the service's back, so the cached quote must still be served
	if err := f.store.CreateRateOverride(ctx, &domain.RateOverride{
		CategoryID: f.standard.ID, Start: day("2025-12-01"), End: day("2025-12-31"), Price: dec("200"),
	}); err != nil {
		t.Fatalf("override: %v", err)
	}
	pb2, err := q.PriceQuote(ctx, f.standard.ID, day("2025-12-20"), day("2025-12-22"), 2)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !pb2.Total.Equal(dec("270")) || cache.hits != 1 {
		t.Fatalf("expected cached 270, got %s (hits=%d)", pb2.Total, cache.hits)
	}
}

func TestCreateRateOverride_InvalidatesCategoryQuotes(t *testing.T) {
	f := newFixture(t)
	cache := &fakeCache{}
	q := app.NewPricingService(f.store, cache, 10*time.Minute)
	ctx := context.Background()

	if _, err := q.PriceQuote(ctx, f.standard.ID, day("2025-12-20"), day("2025-12-22"), 2); err != nil {
		t.Fatalf("err: %v", err)
	}
	if _, err := q.PriceQuote(ctx, f.family.ID, day("2025-12-20"), day("2025-12-22"), 2); err != nil {
		t.Fatalf("err: %v", err)
	}

	staff := domain.Principal{UserID: 9, Role: domain.RoleStaff}
	o, err := q.CreateRateOverride(ctx, staff, domain.RateOverride{
		CategoryID: f.standard.ID, Start: day("2025-12-20"), End: day("2025-12-21"), Price: dec("200"),
	})
	if err != nil {
		t.Fatalf("create override: %v", err)
	}
	if o.ID == 0 || o.CreatedAt.IsZero() {
		t.Fatalf("override not persisted: %+v", o)
	}
	if len(cache.store) != 1 {
		t.Fatalf("only the family quote should survive, cache=%v", cache.store)
	}

	// 200 + 30 weekend + 40 season per night
	pb, err := q.PriceQuote(ctx, f.standard.ID, day("2025-12-20"), day("2025-12-22"), 2)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !pb.Total.Equal(dec("540")) {
		t.Fatalf("total after override: got %s want 540", pb.Total)
	}
}

func TestCreateRateOverride_Rejections(t *testing.T) {
	f := newFixture(t)
	q := app.NewPricingService(f.store, nil, time.Minute)
	ctx := context.Background()
	staff := domain.Principal{UserID: 9, Role: domain.RoleAdmin}

	cases := []struct {
		name string
		p    domain.Principal
		o    domain.RateOverride
		want error
	}{
		{"guest role", domain.Principal{UserID: 1, Role: domain.RoleGuest},
			domain.RateOverride{CategoryID: f.standard.ID, Start: day("2025-01-01"), End: day("2025-01-02"), Price: dec("90")},
			domain.ErrUnauthorized},
		{"end before start", staff,
			domain.RateOverride{CategoryID: f.standard.ID, Start: day("2025-01-05"), End: day("2025-01-02"), Price: dec("90")},
			domain.ErrInvalidInput},
		{"negative price", staff,
			domain.RateOverride{CategoryID: f.standard.ID, Start: day("2025-01-01"), End: day("2025-01-02"), Price: dec("-1")},
			domain.ErrInvalidInput},
		{"unknown category", staff,
			domain.RateOverride{CategoryID: 999, Start: day("2025-01-01"), End: day("2025-01-02"), Price: dec("90")},
			domain.ErrCategoryNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := q.CreateRateOverride(ctx, tc.p, tc.o); !errors.Is(err, tc.want) {
				t.Fatalf("got %v want %v", err, tc.want)
			}
		})
	}
}

func TestResolvePrice_NewestOverrideWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	f.store.WithClock(func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) })

	for _, price := range []string{"150", "160"} {
		if err := f.store.CreateRateOverride(ctx, &domain.RateOverride{
			CategoryID: f.standard.ID, Start: day("2025-06-01"), End: day("2025-06-30"), Price: dec(price),
		}); err != nil {
			t.Fatalf("override: %v", err)
		}
	}
	q := app.NewPricingService(f.store, nil, time.Minute)

	got, err := q.ResolvePrice(ctx, f.standard.ID, day("2025-06-10"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !got.Equal(dec("160")) {
		t.Fatalf("got %s want 160", got)
	}
	got, _ = q.ResolvePrice(ctx, f.standard.ID, day("2025-07-01"))
	if !got.Equal(dec("100")) {
		t.Fatalf("outside override: got %s want base 100", got)
	}
}

func TestPriceQuote_Validation(t *testing.T) {
	f := newFixture(t)
	q := app.NewPricingService(f.store, nil, time.Minute)
	ctx := context.Background()

	if _, err := q.PriceQuote(ctx, f.standard.ID, day("2025-03-04"), day("2025-03-04"), 2); !errors.Is(err, domain.ErrInvalidDateRange) {
		t.Fatalf("same-day range: got %v", err)
	}
	if _, err := q.PriceQuote(ctx, f.standard.ID, day("2025-03-04"), day("2025-03-05"), 0); !errors.Is(err, domain.ErrInvalidGuestCount) {
		t.Fatalf("zero guests: got %v", err)
	}
	if _, err := q.PriceQuote(ctx, 999, day("2025-03-04"), day("2025-03-05"), 1); !errors.Is(err, domain.ErrCategoryNotFound) {
		t.Fatalf("unknown category: got %v", err)
	}
}

func TestPricing_CacheFailuresAreLoggedNotFatal(t *testing.T) {
	f := newFixture(t)
	logs := captureLog(t)
	cache := &fakeCache{getErr: errors.New("read timeout"), setErr: errors.New("write timeout"), delErr: errors.New("scan failed")}
	q := app.NewPricingService(f.store, cache, time.Minute)
	ctx := context.Background()

	pb, err := q.PriceQuote(ctx, f.standard.ID, day("2025-12-20"), day("2025-12-22"), 2)
	if err != nil || !pb.Total.Equal(dec("270")) {
		t.Fatalf("quote with broken cache: %v %v", pb.Total, err)
	}

	staff := domain.Principal{UserID: 1, Role: domain.RoleStaff}
	if _, err := q.CreateRateOverride(ctx, staff, domain.RateOverride{
		CategoryID: f.standard.ID, Start: day("2025-12-01"), End: day("2025-12-31"), Price: dec("200"),
	}); err != nil {
		t.Fatalf("override must not fail on cache errors: %v", err)
	}

	out := logs.String()
	for _, want := range []string{
		"quote cache read failed",
		"quote cache write failed",
		"quote cache invalidation failed",
		`"prefix":"quote:` + fmt.Sprint(f.standard.ID) + `:"`,
		`"level":"warn"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %q:\n%s", want, out)
		}
	}
}
