// README: Session memory record and merge patch definitions.
package memory

import (
	"errors"
	"time"

	"concierge/internal/types"
)

var (
	ErrOwnerMismatch = errors.New("session belongs to another user")
	ErrBadRequest    = errors.New("bad request")
	ErrClaimHeld     = errors.New("pending action is being resolved")
)

// Memory is the per-session conversational state fed back into planning.
type Memory struct {
	UserPreferences    map[string]any        `json:"userPreferences"`
	CurrentTripContext map[string]any        `json:"currentTripContext"`
	PendingAction      *types.ProposedAction `json:"pendingAction"`
	LastShortlist      []map[string]any      `json:"lastShortlist"`
}

// Empty returns a memory value with initialised maps.
func Empty() Memory {
	return Memory{
		UserPreferences:    map[string]any{},
		CurrentTripContext: map[string]any{},
		LastShortlist:      []map[string]any{},
	}
}

// Record is the persisted form of a session's memory.
type Record struct {
	SessionID   string    `json:"sessionId"`
	OwnerUserID string    `json:"ownerUserId,omitempty"`
	Memory      Memory    `json:"memory"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Patch is a partial update. Map fields merge key-wise, the shortlist and pending
// action replace when set, and the pending action is only removed by ClearPendingAction.
type Patch struct {
	UserPreferences    map[string]any
	CurrentTripContext map[string]any
	PendingAction      *types.ProposedAction
	ClearPendingAction bool
	LastShortlist      []map[string]any
}

func (p Patch) apply(m *Memory) {
	if m.UserPreferences == nil {
		m.UserPreferences = map[string]any{}
	}
	if m.CurrentTripContext == nil {
		m.CurrentTripContext = map[string]any{}
	}
	for k, v := range p.UserPreferences {
		m.UserPreferences[k] = v
	}
	for k, v := range p.CurrentTripContext {
		m.CurrentTripContext[k] = v
	}
	if p.LastShortlist != nil {
		m.LastShortlist = p.LastShortlist
	}
	if p.PendingAction != nil {
		m.PendingAction = p.PendingAction
	}
	if p.ClearPendingAction {
		m.PendingAction = nil
	}
}
