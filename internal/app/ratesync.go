package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"roomledger/internal/domain"
)

// RateSyncService pulls channel-manager rates into rate overrides.
type RateSyncService struct {
	feed    domain.RateFeedClient
	store   domain.InventoryStore
	pricing *PricingService
}

func NewRateSyncService(f domain.RateFeedClient, s domain.InventoryStore, p *PricingService) *RateSyncService {
	return &RateSyncService{feed: f, store: s, pricing: p}
}

type SyncReport struct {
	CategoryID int64
	Fetched    int
	Upserted   int
	Skipped    int
	Missing    bool
}

// SyncCategory upserts every usable rate of the category keyed by its external reference.
// A category the feed does not know (or refuses) is a miss, not a failure.
func (s *RateSyncService) SyncCategory(ctx context.Context, categoryID int64) (SyncReport, error) {
	rep := SyncReport{CategoryID: categoryID}
	if _, err := s.store.GetCategory(ctx, categoryID); err != nil {
		return rep, err
	}

	rates, err := s.feed.GetCategoryRates(ctx, categoryID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnauthorized) {
			log.Warn().Err(err).Int64("category_id", categoryID).Msg("rate feed miss")
			rep.Missing = true
			return rep, nil
		}
		return rep, fmt.Errorf("fetch rates for category %d: %w", categoryID, err)
	}
	rep.Fetched = len(rates)

	for _, raw := range rates {
		o, ok := mapRateOverride(categoryID, raw)
		if !ok {
			rep.Skipped++
			continue
		}
		if err := s.store.UpsertRateOverride(ctx, &o); err != nil {
			return rep, fmt.Errorf("upsert rate %s for category %d: %w", deref(o.SourceRef), categoryID, err)
		}
		rep.Upserted++
	}

	// any write changes quotes for the category
	if rep.Upserted > 0 && s.pricing != nil {
		s.pricing.InvalidateCategory(ctx, categoryID)
	}
	return rep, nil
}
