// README: AI usage service applies the monthly allowance before a planning call.
package aiusage

import (
	"context"
	"time"
)

type usageStore interface {
	UseToken(ctx context.Context, uid, month string, allowance int) error
	EnsureUser(ctx context.Context, uid, month string, allowance int) error
	Remaining(ctx context.Context, uid, month string, allowance int) (int, error)
}

// Service orchestrates AI token-usage logic.
type Service struct {
	store     usageStore
	allowance int
	now       func() time.Time
}

// NewService creates a Service backed by the given Store. A non-positive
// allowance falls back to DefaultTokens.
func NewService(store *Store, allowance int) *Service {
	if allowance <= 0 {
		allowance = DefaultTokens
	}
	return &Service{store: store, allowance: allowance, now: time.Now}
}

// UseToken deducts one turn from the user's monthly allowance.
// If the user row does not exist yet it is initialised and the turn is immediately consumed.
// Returns ErrInsufficientTokens when the quota for the current month is exhausted.
func (s *Service) UseToken(ctx context.Context, uid string) error {
	month := monthKey(s.now())
	err := s.store.UseToken(ctx, uid, month, s.allowance)
	if err != ErrInsufficientTokens {
		return err
	}

	// Row may be missing: try to create it, then retry the deduction once.
	if initErr := s.store.EnsureUser(ctx, uid, month, s.allowance); initErr != nil {
		return initErr
	}
	return s.store.UseToken(ctx, uid, month, s.allowance)
}

// Remaining reports the turns left this month without consuming any.
func (s *Service) Remaining(ctx context.Context, uid string) (int, error) {
	return s.store.Remaining(ctx, uid, monthKey(s.now()), s.allowance)
}
