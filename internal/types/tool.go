// README: Closed tool-name enumeration and tool-call shape shared by planner, dispatcher and memory.
package types

// ToolName is the closed set of capabilities the assistant may invoke.
type ToolName string

const (
	ToolSearchFlights          ToolName = "search_flights"
	ToolBookFlight             ToolName = "book_flight"
	ToolSearchHotels           ToolName = "search_hotels"
	ToolCheckHotelAvailability ToolName = "check_hotel_availability"
	ToolBookHotel              ToolName = "book_hotel"
	ToolCancelHotelBooking     ToolName = "cancel_hotel_booking"
	ToolSearchListings         ToolName = "search_listings"
	ToolGetListingOffer        ToolName = "get_listing_offer"
	ToolCreateBookingDraft     ToolName = "create_booking_draft"
	ToolConfirmBooking         ToolName = "confirm_booking"
	ToolCancelBooking          ToolName = "cancel_booking"
	ToolGetBooking             ToolName = "get_booking"
	ToolSavePreferences        ToolName = "save_preferences"
	ToolEstimateTransfer       ToolName = "estimate_transfer"
	ToolSearchExperiences      ToolName = "search_experiences"
)

// AllToolNames lists every ToolName in catalogue order.
var AllToolNames = []ToolName{
	ToolSearchFlights,
	ToolBookFlight,
	ToolSearchHotels,
	ToolCheckHotelAvailability,
	ToolBookHotel,
	ToolCancelHotelBooking,
	ToolSearchListings,
	ToolGetListingOffer,
	ToolCreateBookingDraft,
	ToolConfirmBooking,
	ToolCancelBooking,
	ToolGetBooking,
	ToolSavePreferences,
	ToolEstimateTransfer,
	ToolSearchExperiences,
}

// IsKnownTool reports whether name is a member of the closed tool set.
func IsKnownTool(name ToolName) bool {
	for _, t := range AllToolNames {
		if t == name {
			return true
		}
	}
	return false
}

// ToolCall is one requested invocation. Args is a JSON object.
type ToolCall struct {
	Tool ToolName       `json:"tool"`
	Args map[string]any `json:"args"`
}
