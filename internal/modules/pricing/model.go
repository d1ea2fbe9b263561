// README: Listing rate card and quote definitions.
package pricing

import (
	"errors"
	"time"

	"concierge/internal/types"
)

var (
	ErrNotFound   = errors.New("rate not found")
	ErrBadRequest = errors.New("bad request")
)

type Unit string

const (
	UnitNight Unit = "night"
	UnitDay   Unit = "day"
	UnitHour  Unit = "hour"
)

// Rate is the rate card for one listing. Amounts are minor units.
type Rate struct {
	ListingID        types.ID
	Unit             Unit
	BaseAmount       int64
	MinUnits         int
	IncludedGuests   int
	ExtraGuestAmount int64
	// PeakMultiplierPct applies in peak season (Jun-Aug, Dec); 100 means no uplift.
	PeakMultiplierPct int
	Currency          string
}

type QuoteRequest struct {
	ListingID types.ID
	Start     time.Time
	// End is optional for hourly rates, where Units is used instead.
	End    time.Time
	Units  int
	Guests int
}

type Quote struct {
	ListingID types.ID         `json:"listingId"`
	Unit      Unit             `json:"unit"`
	Units     int              `json:"units"`
	Total     types.Money      `json:"total"`
	Breakdown map[string]int64 `json:"breakdown"`
	Peak      bool             `json:"peak"`
}

// serviceFeePct is added on top of the subtotal.
const serviceFeePct = 5
