// README: Tool dispatcher: allowlist, confirmation gate, argument validation, auth and redaction around each handler.
package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"concierge/internal/maps"
	"concierge/internal/modules/booking"
	"concierge/internal/modules/catalog"
	"concierge/internal/modules/pricing"
	"concierge/internal/policy"
	"concierge/internal/telemetry"
	"concierge/internal/types"
	"concierge/internal/vendor"
)

type FlightSupplier interface {
	SearchFlights(ctx context.Context, q vendor.FlightSearch) ([]vendor.FlightOffer, error)
	BookFlight(ctx context.Context, req vendor.FlightBookingRequest) (*vendor.Reservation, error)
}

type HotelSupplier interface {
	SearchHotels(ctx context.Context, q vendor.HotelSearch) ([]vendor.HotelOffer, error)
	CheckAvailability(ctx context.Context, q vendor.AvailabilityRequest) (*vendor.Availability, error)
	BookHotel(ctx context.Context, req vendor.HotelBookingRequest) (*vendor.Reservation, error)
	CancelReservation(ctx context.Context, reservationID string) (*vendor.Reservation, error)
}

type ListingFinder interface {
	Search(ctx context.Context, q catalog.SearchQuery) ([]catalog.Hit, error)
	Get(ctx context.Context, id types.ID) (*catalog.Listing, error)
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, error)
}

type Quoter interface {
	Quote(ctx context.Context, req pricing.QuoteRequest) (pricing.Quote, error)
}

type Bookings interface {
	CreateDraft(ctx context.Context, cmd booking.DraftCommand) (*booking.Booking, error)
	Confirm(ctx context.Context, cmd booking.ConfirmCommand) (*booking.Booking, error)
	Cancel(ctx context.Context, cmd booking.CancelCommand) (*booking.Booking, error)
	Get(ctx context.Context, caller booking.Caller, id types.ID) (*booking.Booking, error)
}

type PreferenceStore interface {
	SavePreferences(ctx context.Context, userID string, prefs map[string]any) error
}

type RoutePlanner interface {
	GetTravelEstimate(ctx context.Context, origin, destination string) (maps.TravelEstimate, error)
}

type PlaceFinder interface {
	SearchNearby(ctx context.Context, location, query string, opts *maps.SearchOptions) ([]maps.Place, error)
}

// Deps are the collaborators behind the handlers. A nil collaborator makes its
// tools answer with a soft VENDOR_ERROR instead of failing the turn.
type Deps struct {
	Flights     FlightSupplier
	Hotels      HotelSupplier
	Listings    ListingFinder
	Geocoder    Geocoder
	Quotes      Quoter
	Bookings    Bookings
	Preferences PreferenceStore
	Routes      RoutePlanner
	Places      PlaceFinder
}

type Dispatcher struct {
	deps    Deps
	schemas map[types.ToolName]*jsonschema.Schema
}

func NewDispatcher(deps Deps) (*Dispatcher, error) {
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	return &Dispatcher{deps: deps, schemas: schemas}, nil
}

// Dispatch runs one tool call. A returned error is always a *DispatchError and
// means the call named a tool outside the catalogue; every business failure is
// reported inside the Result instead.
func (d *Dispatcher) Dispatch(ctx context.Context, call types.ToolCall, ec ExecContext) (Result, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "tool.dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("tool.name", string(call.Tool)),
		attribute.Bool("tool.confirmed", ec.Confirmed),
		attribute.String("debug.id", ec.CorrelationID),
	)

	if !policy.AllowTool(call.Tool) {
		err := &DispatchError{Tool: call.Tool, Reason: "tool is not in the allowlist"}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Str("debugId", ec.CorrelationID).Str("tool", string(call.Tool)).Msg("dispatch rejected tool outside allowlist")
		return Result{}, err
	}
	spec := specs[call.Tool]

	if spec.Irreversible && !ec.Confirmed {
		return failResult(CodeConfirmationRequired, "this action needs your explicit confirmation first", nil), nil
	}

	raw, args, err := normalizeArgs(call.Args)
	if err != nil {
		return failResult(CodeInvalidArgs, "arguments are not a JSON object", nil), nil
	}
	if err := d.schemas[call.Tool].Validate(args); err != nil {
		return invalidArgs(err), nil
	}

	if spec.RequiresAuth && ec.UserID == "" {
		return failResult(CodeAuthRequired, "please sign in to continue", nil), nil
	}

	start := time.Now()
	res, err := d.handle(ctx, call.Tool, spec, raw, ec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	if !res.OK && res.Error != nil {
		span.SetAttributes(attribute.String("tool.error_code", string(res.Error.Code)))
	}
	log.Info().
		Str("debugId", ec.CorrelationID).
		Str("tool", string(call.Tool)).
		Bool("ok", res.OK).
		Dur("took", time.Since(start)).
		Msg("tool call finished")
	return redactResult(res), nil
}

// handle is the exhaustive tool switch. The default branch is unreachable for
// catalogued tools.
func (d *Dispatcher) handle(ctx context.Context, tool types.ToolName, spec Spec, raw []byte, ec ExecContext) (Result, error) {
	switch tool {
	case types.ToolSearchFlights:
		return d.searchFlights(ctx, raw), nil
	case types.ToolBookFlight:
		return d.bookFlight(ctx, raw, ec, spec), nil
	case types.ToolSearchHotels:
		return d.searchHotels(ctx, raw), nil
	case types.ToolCheckHotelAvailability:
		return d.checkHotelAvailability(ctx, raw), nil
	case types.ToolBookHotel:
		return d.bookHotel(ctx, raw, ec, spec), nil
	case types.ToolCancelHotelBooking:
		return d.cancelHotelBooking(ctx, raw, spec), nil
	case types.ToolSearchListings:
		return d.searchListings(ctx, raw), nil
	case types.ToolGetListingOffer:
		return d.getListingOffer(ctx, raw), nil
	case types.ToolCreateBookingDraft:
		return d.createBookingDraft(ctx, raw, ec), nil
	case types.ToolConfirmBooking:
		return d.confirmBooking(ctx, raw, ec), nil
	case types.ToolCancelBooking:
		return d.cancelBooking(ctx, raw, ec), nil
	case types.ToolGetBooking:
		return d.getBooking(ctx, raw, ec), nil
	case types.ToolSavePreferences:
		return d.savePreferences(ctx, raw, ec), nil
	case types.ToolEstimateTransfer:
		return d.estimateTransfer(ctx, raw), nil
	case types.ToolSearchExperiences:
		return d.searchExperiences(ctx, raw), nil
	default:
		return Result{}, &DispatchError{Tool: tool, Reason: "no handler registered"}
	}
}

// normalizeArgs turns arbitrary Go values into plain JSON values so the schema
// sees numbers as float64 and nested structs as maps.
func normalizeArgs(args map[string]any) ([]byte, any, error) {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, nil, err
	}
	return raw, v, nil
}

func invalidArgs(err error) Result {
	details := map[string]any{}
	if ve, ok := err.(*jsonschema.ValidationError); ok {
		var problems []string
		for _, cause := range ve.BasicOutput().Errors {
			if cause.Error == "" {
				continue
			}
			problems = append(problems, cause.InstanceLocation+": "+cause.Error)
		}
		if len(problems) > 0 {
			details["problems"] = problems
		}
	}
	return failResult(CodeInvalidArgs, "arguments do not match the tool schema", details)
}

// redactResult passes every string in the envelope through PII redaction.
func redactResult(r Result) Result {
	if r.Data != nil {
		raw, err := json.Marshal(r.Data)
		if err == nil {
			var v any
			if json.Unmarshal(raw, &v) == nil {
				r.Data = policy.RedactValue(v)
			}
		}
	}
	if r.Error != nil {
		e := *r.Error
		e.Message = policy.RedactPII(e.Message)
		if e.Details != nil {
			if m, ok := policy.RedactValue(e.Details).(map[string]any); ok {
				e.Details = m
			}
		}
		r.Error = &e
	}
	return r
}
