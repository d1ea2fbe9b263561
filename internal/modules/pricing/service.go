// README: Pricing service computes listing quotes from rate cards.
package pricing

import (
	"context"
	"time"

	"concierge/internal/types"
)

type rateSource interface {
	GetRate(ctx context.Context, listingID types.ID) (Rate, error)
}

type Service struct {
	store rateSource
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	if req.ListingID == "" || req.Start.IsZero() || req.Guests < 0 {
		return Quote{}, ErrBadRequest
	}
	rate, err := s.store.GetRate(ctx, req.ListingID)
	if err != nil {
		return Quote{}, err
	}
	return computeQuote(rate, req)
}

// computeQuote is pure so the arithmetic can be tested without a database.
func computeQuote(rate Rate, req QuoteRequest) (Quote, error) {
	units := req.Units
	if !req.End.IsZero() {
		if !req.End.After(req.Start) {
			return Quote{}, ErrBadRequest
		}
		units = unitsBetween(rate.Unit, req.Start, req.End)
	}
	if units <= 0 {
		units = 1
	}
	if units < rate.MinUnits {
		units = rate.MinUnits
	}

	breakdown := map[string]int64{}
	base := rate.BaseAmount * int64(units)
	breakdown["base"] = base

	subtotal := base
	if extra := req.Guests - rate.IncludedGuests; extra > 0 && rate.IncludedGuests > 0 {
		fee := int64(extra) * rate.ExtraGuestAmount * int64(units)
		breakdown["extra_guests"] = fee
		subtotal += fee
	}

	peak := isPeak(req.Start)
	if peak && rate.PeakMultiplierPct > 100 {
		uplift := percentOf(subtotal, int64(rate.PeakMultiplierPct-100))
		breakdown["peak_season"] = uplift
		subtotal += uplift
	}

	fee := percentOf(subtotal, serviceFeePct)
	breakdown["service_fee"] = fee

	return Quote{
		ListingID: rate.ListingID,
		Unit:      rate.Unit,
		Units:     units,
		Total:     types.Money{Amount: subtotal + fee, Currency: rate.Currency},
		Breakdown: breakdown,
		Peak:      peak,
	}, nil
}

func unitsBetween(unit Unit, start, end time.Time) int {
	d := end.Sub(start)
	switch unit {
	case UnitHour:
		return int((d + time.Hour - 1) / time.Hour)
	default:
		return int((d + 24*time.Hour - 1) / (24 * time.Hour))
	}
}

func isPeak(t time.Time) bool {
	switch t.Month() {
	case time.June, time.July, time.August, time.December:
		return true
	}
	return false
}

// percentOf rounds half up.
func percentOf(amount, pct int64) int64 {
	return (amount*pct + 50) / 100
}
