// README: Dispatcher tests (exhaustive switch, fail-closed allowlist, gates, error mapping, batches).
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concierge/internal/maps"
	"concierge/internal/modules/booking"
	"concierge/internal/modules/catalog"
	"concierge/internal/modules/pricing"
	"concierge/internal/policy"
	"concierge/internal/types"
	"concierge/internal/vendor"
)

type fakeFlights struct {
	offers    []vendor.FlightOffer
	searchErr error
	bookErr   error
	booked    []vendor.FlightBookingRequest
	searches  int
}

func (f *fakeFlights) SearchFlights(_ context.Context, _ vendor.FlightSearch) ([]vendor.FlightOffer, error) {
	f.searches++
	return f.offers, f.searchErr
}

func (f *fakeFlights) BookFlight(_ context.Context, req vendor.FlightBookingRequest) (*vendor.Reservation, error) {
	f.booked = append(f.booked, req)
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return &vendor.Reservation{ReservationID: "r-100", Status: "ticketed", TotalAmount: 420000, Currency: "EUR"}, nil
}

// panickyHotels blows up on every call.
type panickyHotels struct{}

func (panickyHotels) SearchHotels(context.Context, vendor.HotelSearch) ([]vendor.HotelOffer, error) {
	panic("boom")
}
func (panickyHotels) CheckAvailability(context.Context, vendor.AvailabilityRequest) (*vendor.Availability, error) {
	panic("boom")
}
func (panickyHotels) BookHotel(context.Context, vendor.HotelBookingRequest) (*vendor.Reservation, error) {
	panic("boom")
}
func (panickyHotels) CancelReservation(context.Context, string) (*vendor.Reservation, error) {
	panic("boom")
}

type fakeListings struct{}

func (fakeListings) Search(_ context.Context, q catalog.SearchQuery) ([]catalog.Hit, error) {
	return []catalog.Hit{{Listing: catalog.Listing{ID: "villa-antibes", Category: q.Category, Name: "Villa Eilenroc"}, DistanceKm: 2.1}}, nil
}

func (fakeListings) Get(_ context.Context, id types.ID) (*catalog.Listing, error) {
	if id != "villa-antibes" {
		return nil, catalog.ErrNotFound
	}
	return &catalog.Listing{ID: id, Category: catalog.CategoryVilla, Name: "Villa Eilenroc"}, nil
}

type fakeGeocoder struct{ calls int }

func (g *fakeGeocoder) Geocode(context.Context, string) (types.Point, error) {
	g.calls++
	return types.Point{Lat: 43.58, Lng: 7.12}, nil
}

type fakeQuotes struct{}

func (fakeQuotes) Quote(_ context.Context, req pricing.QuoteRequest) (pricing.Quote, error) {
	return pricing.Quote{ListingID: req.ListingID, Unit: pricing.UnitNight, Units: 4, Total: types.Money{Amount: 1050000, Currency: "EUR"}}, nil
}

type fakeBookings struct {
	drafts []booking.DraftCommand
	err    error
}

const testBookingID = "0123456789abcdef0123456789abcdef"

func (f *fakeBookings) CreateDraft(_ context.Context, cmd booking.DraftCommand) (*booking.Booking, error) {
	f.drafts = append(f.drafts, cmd)
	return &booking.Booking{ID: testBookingID, SessionID: cmd.Caller.SessionID, Kind: cmd.Kind, ListingID: cmd.ListingID, Status: booking.StatusDraft, Quote: cmd.Quote}, nil
}

func (f *fakeBookings) Confirm(_ context.Context, cmd booking.ConfirmCommand) (*booking.Booking, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &booking.Booking{ID: cmd.BookingID, Status: booking.StatusConfirmed}, nil
}

func (f *fakeBookings) Cancel(_ context.Context, cmd booking.CancelCommand) (*booking.Booking, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &booking.Booking{ID: cmd.BookingID, Status: booking.StatusCancelled}, nil
}

func (f *fakeBookings) Get(_ context.Context, _ booking.Caller, id types.ID) (*booking.Booking, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &booking.Booking{ID: id, Status: booking.StatusDraft}, nil
}

type fakePrefs struct{ saved map[string]map[string]any }

func (f *fakePrefs) SavePreferences(_ context.Context, userID string, prefs map[string]any) error {
	if f.saved == nil {
		f.saved = map[string]map[string]any{}
	}
	f.saved[userID] = prefs
	return nil
}

type fakeRoutes struct{}

func (fakeRoutes) GetTravelEstimate(context.Context, string, string) (maps.TravelEstimate, error) {
	return maps.TravelEstimate{Duration: 38 * time.Minute, DistanceMeters: 31000, DistanceText: "31 km", Summary: "A8"}, nil
}

func newTestDispatcher(t *testing.T, deps Deps) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(deps)
	require.NoError(t, err)
	return d
}

var flightArgs = map[string]any{"origin": "CDG", "destination": "NCE", "departDate": "2026-11-02", "passengers": 2}

func TestCatalogCoversEveryTool(t *testing.T) {
	cat := Catalog()
	require.Len(t, cat, len(types.AllToolNames))
	for i, s := range cat {
		assert.Equal(t, types.AllToolNames[i], s.Name)
		assert.NotEmpty(t, s.Description, s.Name)
		assert.True(t, json.Valid(s.Args), s.Name)
		if s.Irreversible {
			assert.True(t, policy.RequiresConfirmation(string(s.Name)), "irreversible tool %s should be classified as needing confirmation", s.Name)
		}
	}
}

func TestHandleIsExhaustive(t *testing.T) {
	d := newTestDispatcher(t, Deps{})
	ec := ExecContext{CorrelationID: "dbg", SessionID: "s1", UserID: "u1", Confirmed: true}
	for _, name := range types.AllToolNames {
		res, err := d.handle(context.Background(), name, specs[name], []byte(`{}`), ec)
		var de *DispatchError
		require.False(t, errors.As(err, &de), "tool %s fell through to the default branch", name)
		assert.False(t, res.OK, name)
	}

	_, err := d.handle(context.Background(), "delete_everything", Spec{}, []byte(`{}`), ec)
	var de *DispatchError
	assert.True(t, errors.As(err, &de))
}

func TestDispatchUnknownToolFailsClosed(t *testing.T) {
	flights := &fakeFlights{}
	d := newTestDispatcher(t, Deps{Flights: flights})

	res, err := d.Dispatch(context.Background(), types.ToolCall{Tool: "delete_everything"}, ExecContext{Confirmed: true})
	var de *DispatchError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, types.ToolName("delete_everything"), de.Tool)
	assert.Nil(t, res.Error)
	assert.False(t, res.OK)
}

func TestDispatchIrreversibleNeedsConfirmation(t *testing.T) {
	flights := &fakeFlights{}
	d := newTestDispatcher(t, Deps{Flights: flights})
	call := types.ToolCall{Tool: types.ToolBookFlight, Args: map[string]any{
		"offerId":    "off_1",
		"passengers": []any{map[string]any{"fullName": "Ada Lovelace"}},
	}}

	res, err := d.Dispatch(context.Background(), call, ExecContext{SessionID: "s1", UserID: "u1"})
	require.NoError(t, err)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeConfirmationRequired, res.Error.Code)
	assert.Empty(t, flights.booked)

	res, err = d.Dispatch(context.Background(), call, ExecContext{SessionID: "s1", UserID: "u1", Confirmed: true})
	require.NoError(t, err)
	assert.True(t, res.OK)
	require.Len(t, flights.booked, 1)
	assert.Len(t, flights.booked[0].IdempotencyKey, 32)
}

func TestDispatchInvalidArgs(t *testing.T) {
	flights := &fakeFlights{}
	d := newTestDispatcher(t, Deps{Flights: flights})

	cases := map[string]map[string]any{
		"missing required": {"origin": "CDG", "destination": "NCE"},
		"extra property":   {"origin": "CDG", "destination": "NCE", "departDate": "2026-11-02", "budget": 9000},
		"bad pattern":      {"origin": "Paris", "destination": "NCE", "departDate": "2026-11-02"},
		"wrong type":       {"origin": "CDG", "destination": "NCE", "departDate": "2026-11-02", "passengers": "two"},
		"out of range":     {"origin": "CDG", "destination": "NCE", "departDate": "2026-11-02", "passengers": 40},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := d.Dispatch(context.Background(), types.ToolCall{Tool: types.ToolSearchFlights, Args: args}, ExecContext{})
			require.NoError(t, err)
			require.NotNil(t, res.Error)
			assert.Equal(t, CodeInvalidArgs, res.Error.Code)
		})
	}
	assert.Zero(t, flights.searches)
}

func TestDispatchAuthRequired(t *testing.T) {
	prefs := &fakePrefs{}
	d := newTestDispatcher(t, Deps{Preferences: prefs})
	call := types.ToolCall{Tool: types.ToolSavePreferences, Args: map[string]any{"preferences": map[string]any{"seat": "aisle"}}}

	res, err := d.Dispatch(context.Background(), call, ExecContext{SessionID: "s1"})
	require.NoError(t, err)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeAuthRequired, res.Error.Code)
	assert.Empty(t, prefs.saved)

	res, err = d.Dispatch(context.Background(), call, ExecContext{SessionID: "s1", UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "aisle", prefs.saved["u1"]["seat"])
}

func TestDispatchRedactsOutput(t *testing.T) {
	flights := &fakeFlights{offers: []vendor.FlightOffer{{OfferID: "off_1", Carrier: "desk ops@skyair.example"}}}
	d := newTestDispatcher(t, Deps{Flights: flights})

	res, err := d.Dispatch(context.Background(), types.ToolCall{Tool: types.ToolSearchFlights, Args: flightArgs}, ExecContext{})
	require.NoError(t, err)
	require.True(t, res.OK)

	data := res.Data.(map[string]any)
	offer := data["offers"].([]any)[0].(map[string]any)
	assert.Equal(t, "desk "+policy.EmailPlaceholder, offer["carrier"])
	assert.Equal(t, "off_1", offer["offerId"])
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		irreversible bool
		code         ErrorCode
		unknown      bool
	}{
		{"supplier auth", &vendor.Error{Kind: vendor.KindAuth, Status: 401}, false, CodeVendorAuthError, false},
		{"supplier refusal", &vendor.Error{Kind: vendor.KindRejected, Status: 409, Message: "sold out"}, true, CodeVendorError, false},
		{"supplier down", &vendor.Error{Kind: vendor.KindUpstream, Status: 503}, true, CodeVendorError, false},
		{"timeout on search", &vendor.Error{Kind: vendor.KindTimeout}, false, CodeVendorError, false},
		{"timeout on booking", &vendor.Error{Kind: vendor.KindTimeout}, true, CodeVendorError, true},
		{"deadline on booking", context.DeadlineExceeded, true, CodeVendorError, true},
		{"not configured", vendor.ErrNotConfigured, false, CodeVendorError, false},
		{"booking missing", booking.ErrNotFound, false, CodeNotFound, false},
		{"listing missing", catalog.ErrNotFound, false, CodeNotFound, false},
		{"no rate", pricing.ErrNotFound, false, CodeNotFound, false},
		{"no route", maps.ErrNoRoute, false, CodeNotFound, false},
		{"other owner", booking.ErrForbidden, true, CodeForbidden, false},
		{"bad state", booking.ErrInvalidState, true, CodeConflict, false},
		{"lost race", booking.ErrConflict, true, CodeConflict, false},
		{"bad query", catalog.ErrBadRequest, false, CodeInvalidArgs, false},
		{"anything else", errors.New("socket closed"), false, CodeVendorError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mapError(tt.err, tt.irreversible)
			require.NotNil(t, res.Error)
			assert.Equal(t, tt.code, res.Error.Code)
			assert.Equal(t, tt.unknown, res.OutcomeUnknown())
		})
	}
}

func TestRunBatchBestEffort(t *testing.T) {
	flights := &fakeFlights{offers: []vendor.FlightOffer{{OfferID: "off_1"}}}
	d := newTestDispatcher(t, Deps{Flights: flights, Hotels: panickyHotels{}})

	calls := []types.ToolCall{
		{Tool: "delete_everything"},
		{Tool: types.ToolSearchFlights, Args: flightArgs},
		{Tool: types.ToolSearchHotels, Args: map[string]any{"city": "Nice", "checkIn": "2026-11-02", "checkOut": "2026-11-05"}},
		{Tool: types.ToolSearchFlights, Args: flightArgs},
	}
	out := d.RunBatch(context.Background(), calls, ExecContext{CorrelationID: "dbg"})

	require.Len(t, out, 3)
	assert.Equal(t, StatusFailed, out[0].Status)
	assert.Contains(t, out[0].Error, "allowlist")
	assert.Equal(t, StatusSucceeded, out[1].Status)
	assert.Equal(t, StatusFailed, out[2].Status)
	assert.Nil(t, out[2].Result)
	assert.Equal(t, 1, flights.searches)
}

func TestRunBatchUnknownOutcome(t *testing.T) {
	flights := &fakeFlights{bookErr: &vendor.Error{Kind: vendor.KindTimeout, Message: "read timeout"}}
	d := newTestDispatcher(t, Deps{Flights: flights})

	out := d.RunBatch(context.Background(), []types.ToolCall{{
		Tool: types.ToolBookFlight,
		Args: map[string]any{"offerId": "off_1", "passengers": []any{map[string]any{"fullName": "Ada Lovelace"}}},
	}}, ExecContext{SessionID: "s1", UserID: "u1", Confirmed: true})

	require.Len(t, out, 1)
	assert.Equal(t, StatusUnknown, out[0].Status)
	assert.True(t, AnyUnknown(out))
	assert.Equal(t, "unknown", out[0].Result.Error.Details["outcome"])
}

func TestCreateBookingDraftConfirmed(t *testing.T) {
	bookings := &fakeBookings{}
	d := newTestDispatcher(t, Deps{Bookings: bookings, Quotes: fakeQuotes{}, Listings: fakeListings{}})
	call := types.ToolCall{Tool: types.ToolCreateBookingDraft, Args: map[string]any{
		"listingId": "villa-antibes",
		"start":     "2026-10-20",
		"end":       "2026-10-24",
		"guests":    4,
	}}

	res, err := d.Dispatch(context.Background(), call, ExecContext{SessionID: "s1", Confirmed: true})
	require.NoError(t, err)
	require.True(t, res.OK, "%+v", res.Error)
	assert.Equal(t, testBookingID, res.Data.(map[string]any)["bookingId"])

	require.Len(t, bookings.drafts, 1)
	assert.Equal(t, "villa", bookings.drafts[0].Kind)
	assert.Equal(t, "Villa Eilenroc", bookings.drafts[0].Summary)
	assert.Equal(t, int64(1050000), bookings.drafts[0].Quote.Amount)

	call.Args["listingId"] = "nowhere"
	res, err = d.Dispatch(context.Background(), call, ExecContext{SessionID: "s1", Confirmed: true})
	require.NoError(t, err)
	assert.Equal(t, CodeNotFound, res.Error.Code)
}

type stalledListings struct{ fakeListings }

func (stalledListings) Get(context.Context, types.ID) (*catalog.Listing, error) {
	return nil, context.DeadlineExceeded
}

type stalledQuotes struct{}

func (stalledQuotes) Quote(context.Context, pricing.QuoteRequest) (pricing.Quote, error) {
	return pricing.Quote{}, &vendor.Error{Kind: vendor.KindTimeout, Message: "read timeout"}
}

// A timeout before the draft is written means nothing was booked, so the
// outcome is a plain retryable failure.
func TestCreateBookingDraftReadTimeoutIsNotUnknown(t *testing.T) {
	args := map[string]any{"listingId": "villa-antibes", "start": "2026-10-20", "end": "2026-10-24"}
	cases := map[string]Deps{
		"listing lookup": {Listings: stalledListings{}, Quotes: fakeQuotes{}},
		"quote":          {Listings: fakeListings{}, Quotes: stalledQuotes{}},
	}
	for name, deps := range cases {
		t.Run(name, func(t *testing.T) {
			bookings := &fakeBookings{}
			deps.Bookings = bookings
			d := newTestDispatcher(t, deps)

			out := d.RunBatch(context.Background(), []types.ToolCall{{Tool: types.ToolCreateBookingDraft, Args: args}},
				ExecContext{SessionID: "s1", Confirmed: true})

			require.Len(t, out, 1)
			assert.Equal(t, StatusFailed, out[0].Status)
			assert.False(t, AnyUnknown(out))
			require.NotNil(t, out[0].Result.Error)
			assert.Equal(t, CodeVendorError, out[0].Result.Error.Code)
			assert.NotContains(t, out[0].Result.Error.Details, "outcome")
			assert.Equal(t, true, out[0].Result.Error.Details["retryable"])
			assert.Empty(t, bookings.drafts)
		})
	}
}

func TestBookingToolsMapServiceErrors(t *testing.T) {
	bookings := &fakeBookings{err: booking.ErrForbidden}
	d := newTestDispatcher(t, Deps{Bookings: bookings})

	res, err := d.Dispatch(context.Background(), types.ToolCall{Tool: types.ToolGetBooking, Args: map[string]any{"bookingId": testBookingID}}, ExecContext{SessionID: "s2"})
	require.NoError(t, err)
	assert.Equal(t, CodeForbidden, res.Error.Code)

	bookings.err = booking.ErrInvalidState
	res, err = d.Dispatch(context.Background(), types.ToolCall{Tool: types.ToolConfirmBooking, Args: map[string]any{"bookingId": testBookingID}}, ExecContext{SessionID: "s1", Confirmed: true})
	require.NoError(t, err)
	assert.Equal(t, CodeConflict, res.Error.Code)
}

func TestSearchListingsGeocodesPlaceNames(t *testing.T) {
	geo := &fakeGeocoder{}
	d := newTestDispatcher(t, Deps{Listings: fakeListings{}, Geocoder: geo})

	res, err := d.Dispatch(context.Background(), types.ToolCall{Tool: types.ToolSearchListings, Args: map[string]any{"category": "villa", "near": "Antibes"}}, ExecContext{})
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, 1, geo.calls)

	res, err = d.Dispatch(context.Background(), types.ToolCall{Tool: types.ToolSearchListings, Args: map[string]any{"category": "villa", "lat": 43.58, "lng": 7.12}}, ExecContext{})
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, 1, geo.calls)

	res, err = d.Dispatch(context.Background(), types.ToolCall{Tool: types.ToolSearchListings, Args: map[string]any{"category": "villa"}}, ExecContext{})
	require.NoError(t, err)
	assert.Equal(t, CodeInvalidArgs, res.Error.Code)
}

func TestEstimateTransfer(t *testing.T) {
	d := newTestDispatcher(t, Deps{Routes: fakeRoutes{}})
	res, err := d.Dispatch(context.Background(), types.ToolCall{Tool: types.ToolEstimateTransfer, Args: map[string]any{"origin": "Nice airport", "destination": "Monaco"}}, ExecContext{})
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, float64(38), res.Data.(map[string]any)["durationMinutes"])
}

func TestIdempotencyKeyStable(t *testing.T) {
	ec := ExecContext{SessionID: "s1", CorrelationID: "a"}
	k1 := idempotencyKey(ec, types.ToolBookHotel, []byte(`{"hotelId":"h1"}`))
	ec.CorrelationID = "b"
	k2 := idempotencyKey(ec, types.ToolBookHotel, []byte(`{"hotelId":"h1"}`))
	k3 := idempotencyKey(ExecContext{SessionID: "s2"}, types.ToolBookHotel, []byte(`{"hotelId":"h1"}`))
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}
