package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"roomledger/internal/adapters/observability"
	"roomledger/internal/domain"
	"roomledger/internal/pricing"
)

// PricingService is the Rate Calendar and Pricing Engine behind store reads.
// Display quotes go through the cache; reservation pricing uses quoteWith inside the room tx.
type PricingService struct {
	store    domain.InventoryStore
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewPricingService(s domain.InventoryStore, c domain.Cache, ttl time.Duration) *PricingService {
	return &PricingService{store: s, cache: c, cacheTTL: ttl}
}

func quoteKey(categoryID int64, in, out time.Time, guests int) string {
	return fmt.Sprintf("quote:%d:%s:%s:%d", categoryID, domain.FormatDate(in), domain.FormatDate(out), guests)
}

func quotePrefix(categoryID int64) string { return fmt.Sprintf("quote:%d:", categoryID) }

// ResolvePrice returns the nightly base price of the category on d.
func (s *PricingService) ResolvePrice(ctx context.Context, categoryID int64, d time.Time) (decimal.Decimal, error) {
	cat, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return decimal.Zero, err
	}
	overrides, err := s.store.ListRateOverrides(ctx, cat.ID, d, d)
	if err != nil {
		return decimal.Zero, err
	}
	return pricing.NewCalendar(cat, overrides).ResolvePrice(d), nil
}

// PriceQuote prices a stay without reserving anything.
func (s *PricingService) PriceQuote(ctx context.Context, categoryID int64, checkIn, checkOut time.Time, guests int) (pb domain.PriceBreakdown, err error) {
	ctx, span := observability.StartSpan(ctx, "pricing.quote", attribute.Int64("category.id", categoryID))
	defer func() { observability.EndSpan(span, err) }()

	if err := domain.ValidateRange(checkIn, checkOut); err != nil {
		return domain.PriceBreakdown{}, err
	}
	if err := domain.ValidateGuests(guests); err != nil {
		return domain.PriceBreakdown{}, err
	}

	key := quoteKey(categoryID, checkIn, checkOut, guests)
	if s.cache != nil {
		var cached domain.PriceBreakdown
		ok, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			log.Warn().Err(err).Int64("category_id", categoryID).Str("key", key).Msg("quote cache read failed")
		}
		if ok {
			return cached, nil
		}
	}

	cat, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return domain.PriceBreakdown{}, err
	}
	pb, err = quoteWith(ctx, s.store, cat, checkIn, checkOut, guests)
	if err != nil {
		return domain.PriceBreakdown{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, pb, int(s.cacheTTL.Seconds())); err != nil {
			log.Warn().Err(err).Int64("category_id", categoryID).Str("key", key).Msg("quote cache write failed")
		}
	}
	return pb, nil
}

// CreateRateOverride records a manual override; only elevated roles may set rates.
func (s *PricingService) CreateRateOverride(ctx context.Context, p domain.Principal, o domain.RateOverride) (domain.RateOverride, error) {
	if !p.Elevated() {
		return domain.RateOverride{}, fmt.Errorf("%w: rate overrides require staff role", domain.ErrUnauthorized)
	}
	if o.Start.IsZero() || o.End.IsZero() || domain.Day(o.End).Before(domain.Day(o.Start)) {
		return domain.RateOverride{}, fmt.Errorf("%w: override end must not precede start", domain.ErrInvalidInput)
	}
	if o.Price.IsNegative() {
		return domain.RateOverride{}, fmt.Errorf("%w: price must not be negative", domain.ErrInvalidInput)
	}
	if _, err := s.store.GetCategory(ctx, o.CategoryID); err != nil {
		return domain.RateOverride{}, err
	}
	o.Start, o.End, o.SourceRef = domain.Day(o.Start), domain.Day(o.End), nil
	if err := s.store.CreateRateOverride(ctx, &o); err != nil {
		return domain.RateOverride{}, err
	}
	s.InvalidateCategory(ctx, o.CategoryID)
	return o, nil
}

// InvalidateCategory drops every cached quote of the category.
func (s *PricingService) InvalidateCategory(ctx context.Context, categoryID int64) {
	if s.cache == nil {
		return
	}
	prefix := quotePrefix(categoryID)
	if err := s.cache.DelPrefix(ctx, prefix); err != nil {
		// stale quotes survive until their TTL runs out
		log.Warn().Err(err).Int64("category_id", categoryID).Str("prefix", prefix).Msg("quote cache invalidation failed")
	}
}

// quoteWith prices against r, which is the room transaction when called from Reserve.
func quoteWith(ctx context.Context, r domain.InventoryReader, cat domain.RoomCategory, checkIn, checkOut time.Time, guests int) (domain.PriceBreakdown, error) {
	if err := domain.ValidateRange(checkIn, checkOut); err != nil {
		return domain.PriceBreakdown{}, err
	}
	lastNight := domain.Day(checkOut).AddDate(0, 0, -1)
	overrides, err := r.ListRateOverrides(ctx, cat.ID, checkIn, lastNight)
	if err != nil {
		return domain.PriceBreakdown{}, err
	}
	return pricing.NewCalendar(cat, overrides).Quote(checkIn, checkOut, guests)
}
