// README: Per-tool handlers; each calls exactly one collaborator and maps its result into the envelope.
package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"concierge/internal/maps"
	"concierge/internal/modules/booking"
	"concierge/internal/modules/catalog"
	"concierge/internal/modules/pricing"
	"concierge/internal/types"
	"concierge/internal/vendor"
)

type flightSearchArgs struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	DepartDate  string `json:"departDate"`
	ReturnDate  string `json:"returnDate"`
	Passengers  int    `json:"passengers"`
	Cabin       string `json:"cabin"`
}

type bookFlightArgs struct {
	OfferID    string             `json:"offerId"`
	Passengers []vendor.Passenger `json:"passengers"`
}

type hotelSearchArgs struct {
	City     string `json:"city"`
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
	Guests   int    `json:"guests"`
	MinStars int    `json:"minStars"`
}

type bookHotelArgs struct {
	HotelID   string `json:"hotelId"`
	RoomID    string `json:"roomId"`
	CheckIn   string `json:"checkIn"`
	CheckOut  string `json:"checkOut"`
	Guests    int    `json:"guests"`
	GuestName string `json:"guestName"`
}

type listingSearchArgs struct {
	Category    string   `json:"category"`
	Near        string   `json:"near"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	RadiusKm    float64  `json:"radiusKm"`
	MinCapacity int      `json:"minCapacity"`
	Limit       int      `json:"limit"`
}

type offerArgs struct {
	ListingID string `json:"listingId"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Units     int    `json:"units"`
	Guests    int    `json:"guests"`
	Summary   string `json:"summary"`
}

type bookingRefArgs struct {
	BookingID string `json:"bookingId"`
	Reason    string `json:"reason"`
}

type experienceArgs struct {
	Location        string   `json:"location"`
	Query           string   `json:"query"`
	OpenNow         bool     `json:"openNow"`
	MinRating       float32  `json:"minRating"`
	ExcludeKeywords []string `json:"excludeKeywords"`
	Limit           int      `json:"limit"`
}

func decodeArgs(raw []byte, out any) error {
	return json.Unmarshal(raw, out)
}

func notConfigured(what string) Result {
	return failResult(CodeVendorError, what+" is not available right now", map[string]any{"reason": "not_configured", "retryable": false})
}

// idempotencyKey is stable for the same session, tool and arguments so a
// replayed confirmation cannot book twice at the supplier.
func idempotencyKey(ec ExecContext, tool types.ToolName, raw []byte) string {
	h := sha256.New()
	h.Write([]byte(ec.SessionID))
	h.Write([]byte{0})
	h.Write([]byte(tool))
	h.Write([]byte{0})
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil))[:32]
}

func (d *Dispatcher) searchFlights(ctx context.Context, raw []byte) Result {
	var a flightSearchArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalidArgs(err)
	}
	if d.deps.Flights == nil {
		return notConfigured("flight search")
	}
	if a.Passengers == 0 {
		a.Passengers = 1
	}
	offers, err := d.deps.Flights.SearchFlights(ctx, vendor.FlightSearch{
		Origin:      strings.ToUpper(a.Origin),
		Destination: strings.ToUpper(a.Destination),
		DepartDate:  a.DepartDate,
		ReturnDate:  a.ReturnDate,
		Passengers:  a.Passengers,
		Cabin:       a.Cabin,
	})
	if err != nil {
		return mapError(err, false)
	}
	return okResult(map[string]any{"offers": offers, "count": len(offers)})
}

func (d *Dispatcher) bookFlight(ctx context.Context, raw []byte, ec ExecContext, spec Spec) Result {
	var a bookFlightArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalidArgs(err)
	}
	if d.deps.Flights == nil {
		return notConfigured("flight booking")
	}
	res, err := d.deps.Flights.BookFlight(ctx, vendor.FlightBookingRequest{
		OfferID:        a.OfferID,
		Passengers:     a.Passengers,
		IdempotencyKey: idempotencyKey(ec, types.ToolBookFlight, raw),
	})
	if err != nil {
		return mapError(err, spec.Irreversible)
	}
	return okResult(res)
}

func (d *Dispatcher) searchHotels(ctx context.Context, raw []byte) Result {
	var a hotelSearchArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalidArgs(err)
	}
	if d.deps.Hotels == nil {
		return notConfigured("hotel search")
	}
	if bad := checkDateRange(a.CheckIn, a.CheckOut); bad != nil {
		return *bad
	}
	if a.Guests == 0 {
		a.Guests = 1
	}
	hotels, err := d.deps.Hotels.SearchHotels(ctx, vendor.HotelSearch{
		City:     a.City,
		CheckIn:  a.CheckIn,
		CheckOut: a.CheckOut,
		Guests:   a.Guests,
		MinStars: a.MinStars,
	})
	if err != nil {
		return mapError(err, false)
	}
	return okResult(map[string]any{"hotels": hotels, "count": len(hotels)})
}

func (d *Dispatcher) checkHotelAvailability(ctx context.Context, raw []byte) Result {
	var a bookHotelArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalidArgs(err)
	}
	if d.deps.Hotels == nil {
		return notConfigured("hotel availability")
	}
	if bad := checkDateRange(a.CheckIn, a.CheckOut); bad != nil {
		return *bad
	}
	if a.Guests == 0 {
		a.Guests = 1
	}
	av, err := d.deps.Hotels.CheckAvailability(ctx, vendor.AvailabilityRequest{
		HotelID:  a.HotelID,
		CheckIn:  a.CheckIn,
		CheckOut: a.CheckOut,
		Guests:   a.Guests,
	})
	if err != nil {
		return mapError(err, false)
	}
	return okResult(av)
}

func (d *Dispatcher) bookHotel(ctx context.Context, raw []byte, ec ExecContext, spec Spec) Result {
	var a bookHotelArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalidArgs(err)
	}
	if d.deps.Hotels == nil {
		return notConfigured("hotel booking")
	}
	if bad := checkDateRange(a.CheckIn, a.CheckOut); bad != nil {
		return *bad
	}
	if a.Guests == 0 {
		a.Guests = 1
	}
	res, err := d.deps.Hotels.BookHotel(ctx, vendor.HotelBookingRequest{
		HotelID:        a.HotelID,
		RoomID:         a.RoomID,
		CheckIn:        a.CheckIn,
		CheckOut:       a.CheckOut,
		Guests:         a.Guests,
		GuestName:      a.GuestName,
		IdempotencyKey: idempotencyKey(ec, types.ToolBookHotel, raw),
	})
	if err != nil {
		return mapError(err, spec.Irreversible)
	}
	return okResult(res)
}

func (d *Dispatcher) cancelHotelBooking(ctx context.Context, raw []byte, spec Spec) Result {
	var a struct {
		ReservationID string `json:"reservationId"`
	}
	if err := decodeArgs(raw, &a); err != nil {
		return invalidArgs(err)
	}
	if d.deps.Hotels == nil {
		return notConfigured("hotel cancellation")
	}
	res, err := d.deps.Hotels.CancelReservation(ctx, a.ReservationID)
	if err != nil {
		return mapError(err, spec.Irreversible)
	}
	return okResult(res)
}

func (d *Dispatcher) searchListings(ctx context.Context, raw []byte) Result {
	var a listingSearchArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalidArgs(err)
	}
	if d.deps.Listings == nil {
		return notConfigured("listing search")
	}

	var near types.Point
	switch {
	case a.Lat != nil && a.Lng != nil:
		near = types.Point{Lat: *a.Lat, Lng: *a.Lng}
	case d.deps.Geocoder == nil:
		return notConfigured("place lookup")
	default:
		p, err := d.deps.Geocoder.Geocode(ctx, a.Near)
		if err != nil {
			return mapError(err, false)
		}
		near = p
	}

	hits, err := d.deps.Listings.Search(ctx, catalog.SearchQuery{
		Category:    catalog.Category(a.Category),
		Near:        near,
		RadiusKm:    a.RadiusKm,
		MinCapacity: a.MinCapacity,
		Limit:       a.Limit,
	})
	if err != nil {
		return mapError(err, false)
	}
	return okResult(map[string]any{"results": hits, "count": len(hits)})
}

func (d *Dispatcher) getListingOffer(ctx context.Context, raw []byte) Result {
	var a offerArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalidArgs(err)
	}
	if d.deps.Quotes == nil {
		return notConfigured("pricing")
	}
	req, bad := quoteRequest(a)
	if bad != nil {
		return *bad
	}
	q, err := d.deps.Quotes.Quote(ctx, req)
	if err != nil {
		return mapError(err, false)
	}
	return okResult(q)
}

func (d *Dispatcher) createBookingDraft(ctx context.Context, raw []byte, ec ExecContext) Result {
	var a offerArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalidArgs(err)
	}
	if d.deps.Bookings == nil || d.deps.Quotes == nil {
		return notConfigured("booking")
	}
	req, bad := quoteRequest(a)
	if bad != nil {
		return *bad
	}

	kind, summary := "listing", a.Summary
	if d.deps.Listings != nil {
		l, err := d.deps.Listings.Get(ctx, req.ListingID)
		if err != nil {
			return mapError(err, false)
		}
		kind = string(l.Category)
		if summary == "" {
			summary = l.Name
		}
	}

	q, err := d.deps.Quotes.Quote(ctx, req)
	if err != nil {
		return mapError(err, false)
	}

	details := map[string]any{"start": a.Start, "units": q.Units}
	if a.End != "" {
		details["end"] = a.End
	}
	if a.Guests > 0 {
		details["guests"] = a.Guests
	}
	b, err := d.deps.Bookings.CreateDraft(ctx, booking.DraftCommand{
		Caller:    caller(ec),
		Kind:      kind,
		ListingID: req.ListingID,
		Summary:   summary,
		Quote:     q.Total,
		Details:   details,
	})
	if err != nil {
		return mapError(err, true)
	}
	return okResult(map[string]any{"bookingId": b.ID, "booking": b, "quote": q})
}

func (d *Dispatcher) confirmBooking(ctx context.Context, raw []byte, ec ExecContext) Result {
	var a bookingRefArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalidArgs(err)
	}
	if d.deps.Bookings == nil {
		return notConfigured("booking")
	}
	b, err := d.deps.Bookings.Confirm(ctx, booking.ConfirmCommand{Caller: caller(ec), BookingID: types.ID(a.BookingID)})
	if err != nil {
		return mapError(err, true)
	}
	return okResult(map[string]any{"bookingId": b.ID, "booking": b})
}

func (d *Dispatcher) cancelBooking(ctx context.Context, raw []byte, ec ExecContext) Result {
	var a bookingRefArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalidArgs(err)
	}
	if d.deps.Bookings == nil {
		return notConfigured("booking")
	}
	b, err := d.deps.Bookings.Cancel(ctx, booking.CancelCommand{Caller: caller(ec), BookingID: types.ID(a.BookingID), Reason: a.Reason})
	if err != nil {
		return mapError(err, true)
	}
	return okResult(map[string]any{"bookingId": b.ID, "booking": b})
}

func (d *Dispatcher) getBooking(ctx context.Context, raw []byte, ec ExecContext) Result {
	var a bookingRefArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalidArgs(err)
	}
	if d.deps.Bookings == nil {
		return notConfigured("booking")
	}
	b, err := d.deps.Bookings.Get(ctx, caller(ec), types.ID(a.BookingID))
	if err != nil {
		return mapError(err, false)
	}
	return okResult(b)
}

func (d *Dispatcher) savePreferences(ctx context.Context, raw []byte, ec ExecContext) Result {
	var a struct {
		Preferences map[string]any `json:"preferences"`
	}
	if err := decodeArgs(raw, &a); err != nil {
		return invalidArgs(err)
	}
	if d.deps.Preferences == nil {
		return notConfigured("preference storage")
	}
	if err := d.deps.Preferences.SavePreferences(ctx, ec.UserID, a.Preferences); err != nil {
		return mapError(err, false)
	}
	keys := make([]string, 0, len(a.Preferences))
	for k := range a.Preferences {
		keys = append(keys, k)
	}
	return okResult(map[string]any{"saved": keys})
}

func (d *Dispatcher) estimateTransfer(ctx context.Context, raw []byte) Result {
	var a struct {
		Origin      string `json:"origin"`
		Destination string `json:"destination"`
	}
	if err := decodeArgs(raw, &a); err != nil {
		return invalidArgs(err)
	}
	if d.deps.Routes == nil {
		return notConfigured("route estimates")
	}
	est, err := d.deps.Routes.GetTravelEstimate(ctx, a.Origin, a.Destination)
	if err != nil {
		return mapError(err, false)
	}
	return okResult(map[string]any{
		"durationMinutes": int(est.Duration.Round(time.Minute) / time.Minute),
		"distanceMeters":  est.DistanceMeters,
		"distanceText":    est.DistanceText,
		"summary":         est.Summary,
	})
}

func (d *Dispatcher) searchExperiences(ctx context.Context, raw []byte) Result {
	var a experienceArgs
	if err := decodeArgs(raw, &a); err != nil {
		return invalidArgs(err)
	}
	if d.deps.Places == nil {
		return notConfigured("experience search")
	}
	places, err := d.deps.Places.SearchNearby(ctx, a.Location, a.Query, &maps.SearchOptions{
		OpenNow:         a.OpenNow,
		MinRating:       a.MinRating,
		ExcludeKeywords: a.ExcludeKeywords,
		Limit:           a.Limit,
	})
	if err != nil {
		return mapError(err, false)
	}
	return okResult(map[string]any{"results": places, "count": len(places)})
}

func caller(ec ExecContext) booking.Caller {
	return booking.Caller{SessionID: ec.SessionID, UserID: ec.UserID}
}

func checkDateRange(in, out string) *Result {
	from, err1 := time.Parse(time.DateOnly, in)
	to, err2 := time.Parse(time.DateOnly, out)
	if err1 != nil || err2 != nil {
		r := failResult(CodeInvalidArgs, "dates must be YYYY-MM-DD", nil)
		return &r
	}
	if !to.After(from) {
		r := failResult(CodeInvalidArgs, "check-out must be after check-in", nil)
		return &r
	}
	return nil
}

func quoteRequest(a offerArgs) (pricing.QuoteRequest, *Result) {
	start, err := parseStart(a.Start)
	if err != nil {
		r := failResult(CodeInvalidArgs, "start is not a valid date", nil)
		return pricing.QuoteRequest{}, &r
	}
	req := pricing.QuoteRequest{ListingID: types.ID(a.ListingID), Start: start, Units: a.Units, Guests: a.Guests}
	if a.End != "" {
		end, err := parseStart(a.End)
		if err != nil {
			r := failResult(CodeInvalidArgs, "end is not a valid date", nil)
			return pricing.QuoteRequest{}, &r
		}
		if !end.After(start) {
			r := failResult(CodeInvalidArgs, "end must be after start", nil)
			return pricing.QuoteRequest{}, &r
		}
		req.End = end
	}
	return req, nil
}

func parseStart(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// mapError folds collaborator errors into soft tool errors. For irreversible
// calls a timeout means the supplier may have applied the change.
func mapError(err error, irreversible bool) Result {
	var ve *vendor.Error
	switch {
	case errors.As(err, &ve):
		switch ve.Kind {
		case vendor.KindAuth:
			return failResult(CodeVendorAuthError, "the supplier rejected our credentials", map[string]any{"status": ve.Status})
		case vendor.KindRejected:
			return failResult(CodeVendorError, ve.Message, map[string]any{"status": ve.Status, "retryable": false})
		case vendor.KindTimeout:
			if irreversible {
				return unknownOutcome()
			}
			return failResult(CodeVendorError, "the supplier did not answer in time", map[string]any{"retryable": true})
		default:
			return failResult(CodeVendorError, "the supplier is unavailable", map[string]any{"status": ve.Status, "retryable": true})
		}
	case errors.Is(err, vendor.ErrNotConfigured):
		return notConfigured("the supplier gateway")
	case errors.Is(err, context.DeadlineExceeded):
		if irreversible {
			return unknownOutcome()
		}
		return failResult(CodeVendorError, "the request timed out", map[string]any{"retryable": true})
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, pricing.ErrNotFound), errors.Is(err, maps.ErrNoResults), errors.Is(err, maps.ErrNoRoute):
		return failResult(CodeNotFound, "nothing matched that request", nil)
	case errors.Is(err, booking.ErrForbidden):
		return failResult(CodeForbidden, "that booking belongs to someone else", nil)
	case errors.Is(err, booking.ErrInvalidState), errors.Is(err, booking.ErrConflict):
		return failResult(CodeConflict, "the booking is not in a state that allows this", nil)
	case errors.Is(err, booking.ErrBadRequest), errors.Is(err, catalog.ErrBadRequest), errors.Is(err, pricing.ErrBadRequest):
		return failResult(CodeInvalidArgs, err.Error(), nil)
	default:
		return failResult(CodeVendorError, "the request could not be completed", map[string]any{"retryable": true})
	}
}

func unknownOutcome() Result {
	return failResult(CodeVendorError, "the supplier did not confirm whether this went through", map[string]any{"outcome": "unknown"})
}
