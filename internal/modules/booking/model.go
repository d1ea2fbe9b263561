// README: Booking aggregate and status definitions.
package booking

import (
	"errors"
	"time"

	"concierge/internal/types"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusDraft     Status = "draft"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

var (
	ErrInvalidState = errors.New("invalid state transition")
	ErrNotFound     = errors.New("booking not found")
	ErrConflict     = errors.New("booking state conflict")
	ErrForbidden    = errors.New("booking belongs to another user")
	ErrBadRequest   = errors.New("bad request")
)

type Booking struct {
	ID            types.ID       `json:"id"`
	SessionID     string         `json:"sessionId"`
	UserID        *string        `json:"userId,omitempty"`
	Kind          string         `json:"kind"`
	ListingID     types.ID       `json:"listingId"`
	Reference     *string        `json:"reference,omitempty"`
	Summary       string         `json:"summary"`
	Status        Status         `json:"status"`
	StatusVersion int            `json:"statusVersion"`
	Quote         types.Money    `json:"quote"`
	Details       map[string]any `json:"details,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	ConfirmedAt   *time.Time     `json:"confirmedAt,omitempty"`
	CancelledAt   *time.Time     `json:"cancelledAt,omitempty"`
	CancelReason  *string        `json:"cancelReason,omitempty"`
}

type Event struct {
	ID         int64
	BookingID  types.ID
	FromStatus Status
	ToStatus   Status
	ActorID    *string
	CreatedAt  time.Time
}

// Caller identifies who is acting on a booking. Bookings made by a signed-in
// user belong to that user; anonymous bookings belong to their session.
type Caller struct {
	SessionID string
	UserID    string
}

func (b *Booking) OwnedBy(c Caller) bool {
	if b.UserID != nil {
		return c.UserID != "" && c.UserID == *b.UserID
	}
	return c.SessionID != "" && c.SessionID == b.SessionID
}

// AllowedTransitions represents the booking state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusNone:      {StatusDraft},
	StatusDraft:     {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
