// Package pricing holds the pure rate calendar and nightly pricing rules.
// Nothing here touches storage; callers pass the category and the override set they read.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"roomledger/internal/domain"
)

// Calendar resolves nightly base prices for one category against a fixed override set.
type Calendar struct {
	Category  domain.RoomCategory
	Overrides []domain.RateOverride
}

func NewCalendar(cat domain.RoomCategory, overrides []domain.RateOverride) Calendar {
	own := make([]domain.RateOverride, 0, len(overrides))
	for _, o := range overrides {
		if o.CategoryID == cat.ID {
			own = append(own, o)
		}
	}
	return Calendar{Category: cat, Overrides: own}
}

// ResolvePrice returns the price of the most recently created override covering d,
// or the category base price. Equal creation times fall back to the higher override id.
func (c Calendar) ResolvePrice(d time.Time) decimal.Decimal {
	var winner *domain.RateOverride
	for i := range c.Overrides {
		o := &c.Overrides[i]
		if !o.Covers(d) {
			continue
		}
		if winner == nil || newer(o, winner) {
			winner = o
		}
	}
	if winner == nil {
		return c.Category.BasePrice
	}
	return winner.Price
}

func newer(a, b *domain.RateOverride) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
