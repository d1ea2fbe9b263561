// README: Static tool catalogue: per-tool flags, descriptions and argument schemas.
package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"concierge/internal/types"
)

// Spec describes one tool in the closed catalogue.
type Spec struct {
	Name         types.ToolName  `json:"name"`
	Description  string          `json:"description"`
	Irreversible bool            `json:"irreversible"`
	RequiresAuth bool            `json:"requiresAuth"`
	Args         json.RawMessage `json:"args"`
}

const datePattern = `^\\d{4}-\\d{2}-\\d{2}$`

// startPattern accepts a calendar date or an RFC 3339 timestamp.
const startPattern = `^\\d{4}-\\d{2}-\\d{2}(T\\d{2}:\\d{2}(:\\d{2})?(\\.\\d+)?(Z|[+-]\\d{2}:\\d{2}))?$`

var specs = map[types.ToolName]Spec{
	types.ToolSearchFlights: {
		Description: "Search scheduled and charter flight offers between two airports.",
		Args: raw(`{
			"type": "object",
			"additionalProperties": false,
			"required": ["origin", "destination", "departDate"],
			"properties": {
				"origin": {"type": "string", "pattern": "^[A-Za-z]{3}$"},
				"destination": {"type": "string", "pattern": "^[A-Za-z]{3}$"},
				"departDate": {"type": "string", "pattern": "` + datePattern + `"},
				"returnDate": {"type": "string", "pattern": "` + datePattern + `"},
				"passengers": {"type": "integer", "minimum": 1, "maximum": 9},
				"cabin": {"enum": ["economy", "premium_economy", "business", "first"]}
			}
		}`),
	},
	types.ToolBookFlight: {
		Description:  "Book a flight offer returned by search_flights.",
		Irreversible: true,
		RequiresAuth: true,
		Args: raw(`{
			"type": "object",
			"additionalProperties": false,
			"required": ["offerId", "passengers"],
			"properties": {
				"offerId": {"type": "string", "minLength": 1},
				"passengers": {
					"type": "array",
					"minItems": 1,
					"maxItems": 9,
					"items": {
						"type": "object",
						"additionalProperties": false,
						"required": ["fullName"],
						"properties": {
							"fullName": {"type": "string", "minLength": 1},
							"email": {"type": "string"}
						}
					}
				}
			}
		}`),
	},
	types.ToolSearchHotels: {
		Description: "Search hotel offers in a city for a date range.",
		Args: raw(`{
			"type": "object",
			"additionalProperties": false,
			"required": ["city", "checkIn", "checkOut"],
			"properties": {
				"city": {"type": "string", "minLength": 1},
				"checkIn": {"type": "string", "pattern": "` + datePattern + `"},
				"checkOut": {"type": "string", "pattern": "` + datePattern + `"},
				"guests": {"type": "integer", "minimum": 1, "maximum": 10},
				"minStars": {"type": "integer", "minimum": 1, "maximum": 5}
			}
		}`),
	},
	types.ToolCheckHotelAvailability: {
		Description: "List bookable rooms for one hotel and date range.",
		Args: raw(`{
			"type": "object",
			"additionalProperties": false,
			"required": ["hotelId", "checkIn", "checkOut"],
			"properties": {
				"hotelId": {"type": "string", "minLength": 1},
				"checkIn": {"type": "string", "pattern": "` + datePattern + `"},
				"checkOut": {"type": "string", "pattern": "` + datePattern + `"},
				"guests": {"type": "integer", "minimum": 1, "maximum": 10}
			}
		}`),
	},
	types.ToolBookHotel: {
		Description:  "Book a hotel room returned by check_hotel_availability.",
		Irreversible: true,
		RequiresAuth: true,
		Args: raw(`{
			"type": "object",
			"additionalProperties": false,
			"required": ["hotelId", "roomId", "checkIn", "checkOut", "guestName"],
			"properties": {
				"hotelId": {"type": "string", "minLength": 1},
				"roomId": {"type": "string", "minLength": 1},
				"checkIn": {"type": "string", "pattern": "` + datePattern + `"},
				"checkOut": {"type": "string", "pattern": "` + datePattern + `"},
				"guests": {"type": "integer", "minimum": 1, "maximum": 10},
				"guestName": {"type": "string", "minLength": 1}
			}
		}`),
	},
	types.ToolCancelHotelBooking: {
		Description:  "Cancel a hotel reservation made through book_hotel.",
		Irreversible: true,
		RequiresAuth: true,
		Args: raw(`{
			"type": "object",
			"additionalProperties": false,
			"required": ["reservationId"],
			"properties": {
				"reservationId": {"type": "string", "minLength": 1}
			}
		}`),
	},
	types.ToolSearchListings: {
		Description: "Find private jets, yachts, villas or chauffeurs near a place or coordinate.",
		Args: raw(`{
			"type": "object",
			"additionalProperties": false,
			"required": ["category"],
			"anyOf": [{"required": ["near"]}, {"required": ["lat", "lng"]}],
			"properties": {
				"category": {"enum": ["private_jet", "yacht", "villa", "chauffeur"]},
				"near": {"type": "string", "minLength": 1},
				"lat": {"type": "number", "minimum": -90, "maximum": 90},
				"lng": {"type": "number", "minimum": -180, "maximum": 180},
				"radiusKm": {"type": "number", "exclusiveMinimum": 0, "maximum": 500},
				"minCapacity": {"type": "integer", "minimum": 1},
				"limit": {"type": "integer", "minimum": 1, "maximum": 10}
			}
		}`),
	},
	types.ToolGetListingOffer: {
		Description: "Price a catalog listing for a date range or number of units.",
		Args: raw(`{
			"type": "object",
			"additionalProperties": false,
			"required": ["listingId", "start"],
			"properties": {
				"listingId": {"type": "string", "minLength": 1},
				"start": {"type": "string", "pattern": "` + startPattern + `"},
				"end": {"type": "string", "pattern": "` + startPattern + `"},
				"units": {"type": "integer", "minimum": 1},
				"guests": {"type": "integer", "minimum": 1, "maximum": 50}
			}
		}`),
	},
	types.ToolCreateBookingDraft: {
		Description:  "Create a draft booking for a catalog listing at its quoted price.",
		Irreversible: true,
		Args: raw(`{
			"type": "object",
			"additionalProperties": false,
			"required": ["listingId", "start"],
			"properties": {
				"listingId": {"type": "string", "minLength": 1},
				"start": {"type": "string", "pattern": "` + startPattern + `"},
				"end": {"type": "string", "pattern": "` + startPattern + `"},
				"units": {"type": "integer", "minimum": 1},
				"guests": {"type": "integer", "minimum": 1, "maximum": 50},
				"summary": {"type": "string", "maxLength": 280}
			}
		}`),
	},
	types.ToolConfirmBooking: {
		Description:  "Confirm a draft booking.",
		Irreversible: true,
		Args: raw(`{
			"type": "object",
			"additionalProperties": false,
			"required": ["bookingId"],
			"properties": {
				"bookingId": {"type": "string", "pattern": "^[0-9a-f]{32}$"}
			}
		}`),
	},
	types.ToolCancelBooking: {
		Description:  "Cancel a draft or confirmed booking.",
		Irreversible: true,
		Args: raw(`{
			"type": "object",
			"additionalProperties": false,
			"required": ["bookingId"],
			"properties": {
				"bookingId": {"type": "string", "pattern": "^[0-9a-f]{32}$"},
				"reason": {"type": "string", "maxLength": 280}
			}
		}`),
	},
	types.ToolGetBooking: {
		Description: "Look up a booking made in this session or by the signed-in user.",
		Args: raw(`{
			"type": "object",
			"additionalProperties": false,
			"required": ["bookingId"],
			"properties": {
				"bookingId": {"type": "string", "pattern": "^[0-9a-f]{32}$"}
			}
		}`),
	},
	types.ToolSavePreferences: {
		Description:  "Remember travel preferences for the signed-in user.",
		RequiresAuth: true,
		Args: raw(`{
			"type": "object",
			"additionalProperties": false,
			"required": ["preferences"],
			"properties": {
				"preferences": {"type": "object", "minProperties": 1, "maxProperties": 20}
			}
		}`),
	},
	types.ToolEstimateTransfer: {
		Description: "Estimate drive time and distance for a ground transfer.",
		Args: raw(`{
			"type": "object",
			"additionalProperties": false,
			"required": ["origin", "destination"],
			"properties": {
				"origin": {"type": "string", "minLength": 1},
				"destination": {"type": "string", "minLength": 1}
			}
		}`),
	},
	types.ToolSearchExperiences: {
		Description: "Find restaurants, venues and experiences near a location.",
		Args: raw(`{
			"type": "object",
			"additionalProperties": false,
			"required": ["location", "query"],
			"properties": {
				"location": {"type": "string", "minLength": 1},
				"query": {"type": "string", "minLength": 1},
				"openNow": {"type": "boolean"},
				"minRating": {"type": "number", "minimum": 0, "maximum": 5},
				"excludeKeywords": {"type": "array", "maxItems": 10, "items": {"type": "string"}},
				"limit": {"type": "integer", "minimum": 1, "maximum": 10}
			}
		}`),
	},
}

func raw(s string) json.RawMessage {
	return json.RawMessage(s)
}

// Catalog returns every tool spec in enum order. The planner embeds it in its prompt.
func Catalog() []Spec {
	out := make([]Spec, 0, len(types.AllToolNames))
	for _, name := range types.AllToolNames {
		s := specs[name]
		s.Name = name
		out = append(out, s)
	}
	return out
}

// Lookup returns the spec for a catalogued tool.
func Lookup(name types.ToolName) (Spec, bool) {
	s, ok := specs[name]
	if ok {
		s.Name = name
	}
	return s, ok
}

// compileSchemas compiles every argument schema once. A missing spec is a build error
// for the catalogue, so it fails construction.
func compileSchemas() (map[types.ToolName]*jsonschema.Schema, error) {
	out := make(map[types.ToolName]*jsonschema.Schema, len(types.AllToolNames))
	for _, name := range types.AllToolNames {
		spec, ok := specs[name]
		if !ok {
			return nil, fmt.Errorf("tool %q has no spec", name)
		}
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := "mem://tools/" + string(name) + ".json"
		if err := c.AddResource(url, strings.NewReader(string(spec.Args))); err != nil {
			return nil, fmt.Errorf("tool %q schema: %w", name, err)
		}
		sch, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("tool %q schema: %w", name, err)
		}
		out[name] = sch
	}
	return out, nil
}
