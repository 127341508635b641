package app

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"roomledger/internal/domain"
)

// Channel managers disagree on field names; the first alias that resolves wins.
var rateAliases = map[string][]string{
	"ref":   {"id", "rate_id", "rateId", "external_id", "reference"},
	"start": {"start", "start_date", "startDate", "from", "valid_from", "period.start"},
	"end":   {"end", "end_date", "endDate", "to", "valid_to", "period.end"},
	"price": {"price", "amount", "rate", "nightly_rate", "price.amount", "rate.amount"},
}

// dateLayouts accepted in rate payloads, tried in order.
var dateLayouts = []string{domain.DateLayout, time.RFC3339, "2006/01/02", "02.01.2006"}

// lookupAny: nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns the value at path as a string, numbers included.
func lookupStr(m map[string]any, path string) string {
	switch v := lookupAny(m, path).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

func firstNonEmptyAlias(m map[string]any, key string) string {
	for _, p := range rateAliases[key] {
		if s := lookupStr(m, p); s != "" {
			return s
		}
	}
	return ""
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// getDecimalFlexible accepts float64, int and strings like "120,50".
func getDecimalFlexible(m map[string]any, paths ...string) (decimal.Decimal, bool) {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			return decimal.NewFromFloat(v).Round(2), true
		case int:
			return decimal.NewFromInt(int64(v)), true
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if d, err := decimal.NewFromString(s); err == nil {
				return d.Round(2), true
			}
		}
	}
	return decimal.Zero, false
}

func firstDate(m map[string]any, key string) (time.Time, bool) {
	s := firstNonEmptyAlias(m, key)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.Day(t), true
		}
	}
	return time.Time{}, false
}

// mapRateOverride turns one feed entry into an override. Entries without a usable
// period or price are dropped.
func mapRateOverride(categoryID int64, raw map[string]any) (domain.RateOverride, bool) {
	start, ok := firstDate(raw, "start")
	if !ok {
		log.Debug().Int64("category_id", categoryID).Msg("rate without start date")
		return domain.RateOverride{}, false
	}
	end, ok := firstDate(raw, "end")
	if !ok {
		end = start
	}
	if end.Before(start) {
		log.Debug().Int64("category_id", categoryID).Msg("rate period ends before it starts")
		return domain.RateOverride{}, false
	}
	price, ok := getDecimalFlexible(raw, rateAliases["price"]...)
	if !ok || price.IsNegative() {
		log.Debug().Int64("category_id", categoryID).Msg("rate without usable price")
		return domain.RateOverride{}, false
	}

	// prefer the feed's own id; else a stable hash of what the rate says
	ref := firstNonEmptyAlias(raw, "ref")
	if ref == "" {
		sig := strings.Join([]string{
			strconv.FormatInt(categoryID, 10),
			domain.FormatDate(start),
			domain.FormatDate(end),
			price.StringFixed(2),
		}, "|")
		sum := sha1.Sum([]byte(sig))
		ref = "sha1:" + hex.EncodeToString(sum[:])
	}

	return domain.RateOverride{
		CategoryID: categoryID,
		Start:      start,
		End:        end,
		Price:      price,
		SourceRef:  &ref,
	}, true
}
