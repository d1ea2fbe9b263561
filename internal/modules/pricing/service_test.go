package pricing

import (
	"context"
	"testing"
	"time"

	"concierge/internal/types"
)

type fixedRates map[types.ID]Rate

func (f fixedRates) GetRate(_ context.Context, id types.ID) (Rate, error) {
	r, ok := f[id]
	if !ok {
		return Rate{}, ErrNotFound
	}
	return r, nil
}

func TestComputeQuote(t *testing.T) {
	villa := Rate{ListingID: "v1", Unit: UnitNight, BaseAmount: 250000, MinUnits: 3, IncludedGuests: 6, ExtraGuestAmount: 20000, PeakMultiplierPct: 130, Currency: "EUR"}
	jet := Rate{ListingID: "j1", Unit: UnitHour, BaseAmount: 600000, MinUnits: 2, Currency: "EUR", PeakMultiplierPct: 100}

	offPeak := time.Date(2026, 10, 20, 15, 0, 0, 0, time.UTC)
	summer := time.Date(2026, 7, 10, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		rate      Rate
		req       QuoteRequest
		wantUnits int
		wantTotal int64
	}{
		{
			name: "four nights off-peak",
			rate: villa,
			req:  QuoteRequest{ListingID: "v1", Start: offPeak, End: offPeak.AddDate(0, 0, 4), Guests: 4},
			// 4 * 250000 = 1000000, +5% = 1050000
			wantUnits: 4,
			wantTotal: 1050000,
		},
		{
			name: "minimum stay applies",
			rate: villa,
			req:  QuoteRequest{ListingID: "v1", Start: offPeak, End: offPeak.AddDate(0, 0, 1), Guests: 2},
			// 3 * 250000 = 750000, +5% = 787500
			wantUnits: 3,
			wantTotal: 787500,
		},
		{
			name: "extra guests and peak season",
			rate: villa,
			req:  QuoteRequest{ListingID: "v1", Start: summer, End: summer.AddDate(0, 0, 3), Guests: 8},
			// base 750000, extra 2*20000*3 = 120000, subtotal 870000
			// peak +30% = 261000 -> 1131000, +5% = 56550 -> 1187550
			wantUnits: 3,
			wantTotal: 1187550,
		},
		{
			name: "partial hour rounds up",
			rate: jet,
			req:  QuoteRequest{ListingID: "j1", Start: offPeak, End: offPeak.Add(150 * time.Minute), Guests: 6},
			// 3h * 600000 = 1800000, +5% = 1890000
			wantUnits: 3,
			wantTotal: 1890000,
		},
		{
			name: "units without end date",
			rate: jet,
			req:  QuoteRequest{ListingID: "j1", Start: offPeak, Units: 5},
			// 5 * 600000 = 3000000, +5% = 3150000
			wantUnits: 5,
			wantTotal: 3150000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := computeQuote(tt.rate, tt.req)
			if err != nil {
				t.Fatalf("computeQuote() error = %v", err)
			}
			if got.Units != tt.wantUnits {
				t.Errorf("units = %d, want %d", got.Units, tt.wantUnits)
			}
			if got.Total.Amount != tt.wantTotal {
				t.Errorf("total = %d, want %d", got.Total.Amount, tt.wantTotal)
			}
			if got.Total.Currency != "EUR" {
				t.Errorf("currency = %s", got.Total.Currency)
			}
		})
	}
}

func TestComputeQuote_EndBeforeStart(t *testing.T) {
	start := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	_, err := computeQuote(Rate{Unit: UnitNight, BaseAmount: 1}, QuoteRequest{ListingID: "x", Start: start, End: start.Add(-time.Hour)})
	if err != ErrBadRequest {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestService_Quote(t *testing.T) {
	s := &Service{store: fixedRates{"v1": {ListingID: "v1", Unit: UnitNight, BaseAmount: 1000, Currency: "USD"}}}
	start := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)

	q, err := s.Quote(context.Background(), QuoteRequest{ListingID: "v1", Start: start, End: start.AddDate(0, 0, 2), Guests: 2})
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if q.Total.Amount != 2100 {
		t.Fatalf("total = %d, want 2100", q.Total.Amount)
	}

	if _, err := s.Quote(context.Background(), QuoteRequest{ListingID: "nope", Start: start}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Quote(context.Background(), QuoteRequest{Start: start}); err != ErrBadRequest {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}
