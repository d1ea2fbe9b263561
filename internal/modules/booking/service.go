// README: Booking service implements draft/confirm/cancel transitions and ownership checks.
package booking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"concierge/internal/types"
)

type bookingStore interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id types.ID) (*Booking, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, reason *string) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
}

type Service struct {
	store bookingStore
	now   func() time.Time
}

func NewService(store *Store) *Service {
	return &Service{store: store, now: time.Now}
}

type DraftCommand struct {
	Caller    Caller
	Kind      string
	ListingID types.ID
	Reference string
	Summary   string
	Quote     types.Money
	Details   map[string]any
}

type ConfirmCommand struct {
	Caller    Caller
	BookingID types.ID
}

type CancelCommand struct {
	Caller    Caller
	BookingID types.ID
	Reason    string
}

func (s *Service) CreateDraft(ctx context.Context, cmd DraftCommand) (*Booking, error) {
	if cmd.Caller.SessionID == "" || cmd.ListingID == "" || strings.TrimSpace(cmd.Kind) == "" {
		return nil, ErrBadRequest
	}

	now := s.now()
	b := &Booking{
		ID:        newID(),
		SessionID: cmd.Caller.SessionID,
		Kind:      cmd.Kind,
		ListingID: cmd.ListingID,
		Summary:   cmd.Summary,
		Status:    StatusDraft,
		Quote:     cmd.Quote,
		Details:   cmd.Details,
		CreatedAt: now,
	}
	if cmd.Caller.UserID != "" {
		uid := cmd.Caller.UserID
		b.UserID = &uid
	}
	if cmd.Reference != "" {
		ref := cmd.Reference
		b.Reference = &ref
	}
	if err := s.store.Create(ctx, b); err != nil {
		return nil, err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		BookingID:  b.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusDraft,
		ActorID:    b.UserID,
		CreatedAt:  now,
	})
	return b, nil
}

func (s *Service) Confirm(ctx context.Context, cmd ConfirmCommand) (*Booking, error) {
	return s.transition(ctx, cmd.Caller, cmd.BookingID, StatusConfirmed, nil)
}

func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Booking, error) {
	var reason *string
	if r := strings.TrimSpace(cmd.Reason); r != "" {
		reason = &r
	}
	return s.transition(ctx, cmd.Caller, cmd.BookingID, StatusCancelled, reason)
}

// Get returns the booking if the caller owns it.
func (s *Service) Get(ctx context.Context, caller Caller, id types.ID) (*Booking, error) {
	if id == "" {
		return nil, ErrBadRequest
	}
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.OwnedBy(caller) {
		return nil, ErrForbidden
	}
	return b, nil
}

func (s *Service) transition(ctx context.Context, caller Caller, id types.ID, to Status, reason *string) (*Booking, error) {
	b, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(b.Status, to) {
		return nil, ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, b.ID, b.Status, to, b.StatusVersion, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	now := s.now()
	var actor *string
	if caller.UserID != "" {
		uid := caller.UserID
		actor = &uid
	}
	_ = s.store.AppendEvent(ctx, &Event{
		BookingID:  b.ID,
		FromStatus: b.Status,
		ToStatus:   to,
		ActorID:    actor,
		CreatedAt:  now,
	})

	b.Status = to
	b.StatusVersion++
	switch to {
	case StatusConfirmed:
		b.ConfirmedAt = &now
	case StatusCancelled:
		b.CancelledAt = &now
		if reason != nil {
			b.CancelReason = reason
		}
	}
	return b, nil
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
