package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"roomledger/internal/app"
	"roomledger/internal/domain"
)

type fakeFeed struct {
	rates map[int64][]map[string]any
	err   error
	calls int
}

func (f *fakeFeed) GetCategoryRates(ctx context.Context, categoryID int64) ([]map[string]any, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rates[categoryID], nil
}

func TestSyncCategory_UpsertsAndInvalidates(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	cache := &fakeCache{}
	pricing := app.NewPricingService(fx.store, cache, time.Minute)

	feed := &fakeFeed{rates: map[int64][]map[string]any{
		fx.standard.ID: {
			{"id": "r-1", "start_date": "2025-03-01", "end_date": "2025-03-31", "price": 130.0},
			{"rateId": "r-2", "period": map[string]any{"start": "2025-04-01", "end": "2025-04-30"}, "amount": "140,50"},
			{"from": "2025-05-01", "to": "2025-05-02", "nightly_rate": 99},    // no id: hashed reference
			{"id": "broken", "start": "not-a-date", "price": 10.0},              // skipped
			{"id": "reversed", "start": "2025-06-10", "end": "2025-06-01", "price": 10.0}, // skipped
		},
	}}
	svc := app.NewRateSyncService(feed, fx.store, pricing)

	if _, err := pricing.PriceQuote(ctx, fx.standard.ID, day("2025-03-04"), day("2025-03-06"), 2); err != nil {
		t.Fatalf("warm quote: %v", err)
	}

	rep, err := svc.SyncCategory(ctx, fx.standard.ID)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if rep.Fetched != 5 || rep.Upserted != 3 || rep.Skipped != 2 || rep.Missing {
		t.Fatalf("report: %+v", rep)
	}
	if len(cache.store) != 0 {
		t.Fatalf("cached quotes should be gone: %v", cache.store)
	}

	got, _ := pricing.ResolvePrice(ctx, fx.standard.ID, day("2025-04-15"))
	if !got.Equal(dec("140.50")) {
		t.Fatalf("april price: got %s", got)
	}

	// a second pass updates in place
	feed.rates[fx.standard.ID][0]["price"] = 135.0
	if _, err := svc.SyncCategory(ctx, fx.standard.ID); err != nil {
		t.Fatalf("resync: %v", err)
	}
	overrides, _ := fx.store.ListRateOverrides(ctx, fx.standard.ID, day("2025-01-01"), day("2025-12-31"))
	if len(overrides) != 3 {
		t.Fatalf("overrides after resync: %d", len(overrides))
	}
	got, _ = pricing.ResolvePrice(ctx, fx.standard.ID, day("2025-03-15"))
	if !got.Equal(dec("135")) {
		t.Fatalf("march price after resync: got %s", got)
	}
}

func TestSyncCategory_FeedMissesAreNotFailures(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	for _, feedErr := range []error{
		fmt.Errorf("rate feed: category %w", domain.ErrNotFound),
		fmt.Errorf("rate feed: %w", domain.ErrUnauthorized),
	} {
		svc := app.NewRateSyncService(&fakeFeed{err: feedErr}, fx.store, nil)
		rep, err := svc.SyncCategory(ctx, fx.standard.ID)
		if err != nil || !rep.Missing {
			t.Fatalf("%v: rep=%+v err=%v", feedErr, rep, err)
		}
	}

	boom := errors.New("upstream 502")
	svc := app.NewRateSyncService(&fakeFeed{err: boom}, fx.store, nil)
	if _, err := svc.SyncCategory(ctx, fx.standard.ID); !errors.Is(err, boom) {
		t.Fatalf("upstream failure: got %v", err)
	}
}

func TestSyncCategory_UnknownCategory(t *testing.T) {
	fx := newFixture(t)
	feed := &fakeFeed{}
	svc := app.NewRateSyncService(feed, fx.store, nil)
	if _, err := svc.SyncCategory(context.Background(), 999); !errors.Is(err, domain.ErrCategoryNotFound) {
		t.Fatalf("got %v", err)
	}
	if feed.calls != 0 {
		t.Fatal("feed should not be called for unknown categories")
	}
}
