package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"roomledger/internal/domain"
)

var (
	weekendRate     = decimal.RequireFromString("0.15")
	seasonalRate    = decimal.RequireFromString("0.20")
	extraGuestRate  = decimal.RequireFromString("0.10")
	longStayRate    = decimal.RequireFromString("0.10")
	longStayMinimum = 7
)

// Quote prices every night in [checkIn, checkOut) for guests people.
// Identical inputs and override sets always yield an identical breakdown.
func (c Calendar) Quote(checkIn, checkOut time.Time, guests int) (domain.PriceBreakdown, error) {
	if err := domain.ValidateRange(checkIn, checkOut); err != nil {
		return domain.PriceBreakdown{}, err
	}
	if err := domain.ValidateGuests(guests); err != nil {
		return domain.PriceBreakdown{}, err
	}

	in, out := domain.Day(checkIn), domain.Day(checkOut)
	pb := domain.PriceBreakdown{
		CategoryID: c.Category.ID,
		CheckIn:    in,
		CheckOut:   out,
		GuestCount: guests,
		Nights:     make([]domain.NightPrice, 0, domain.NightsBetween(in, out)),
		Subtotal:   decimal.Zero,
		Discount:   decimal.Zero,
	}
	for d := in; d.Before(out); d = d.AddDate(0, 0, 1) {
		n := c.priceNight(d, guests)
		pb.Nights = append(pb.Nights, n)
		pb.Subtotal = pb.Subtotal.Add(n.Total)
	}
	if len(pb.Nights) >= longStayMinimum {
		pb.Discount = pb.Subtotal.Mul(longStayRate).Round(2)
	}
	pb.Total = pb.Subtotal.Sub(pb.Discount)
	return pb, nil
}

func (c Calendar) priceNight(d time.Time, guests int) domain.NightPrice {
	base := c.ResolvePrice(d)
	n := domain.NightPrice{
		Date:      d,
		Base:      base,
		Weekend:   decimal.Zero,
		Seasonal:  decimal.Zero,
		Occupancy: decimal.Zero,
	}
	if IsWeekend(d) {
		n.Weekend = base.Mul(weekendRate)
	}
	if IsHighSeason(d) {
		n.Seasonal = base.Mul(seasonalRate)
	}
	if extra := guests - c.Category.Capacity; extra > 0 {
		n.Occupancy = base.Mul(extraGuestRate).Mul(decimal.NewFromInt(int64(extra)))
	}
	n.Total = base.Add(n.Weekend).Add(n.Seasonal).Add(n.Occupancy).Round(2)
	return n
}

func IsWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsHighSeason covers Dec 15-31, Jan 1-15 and Jul 1-Aug 31, all inclusive.
func IsHighSeason(d time.Time) bool {
	m, day := d.Month(), d.Day()
	switch m {
	case time.December:
		return day >= 15
	case time.January:
		return day <= 15
	case time.July, time.August:
		return true
	}
	return false
}
