// README: Memory service: ownership-checked load, merge save, transparent fallback to the local store.
package memory

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"concierge/internal/policy"
	"concierge/internal/types"
)

const (
	maxSummaryChars = 2000
	claimTTL        = 30 * time.Second
)

type Service struct {
	primary  Store
	fallback *LocalStore
	now      func() time.Time
}

// NewService uses primary when reachable and fallback otherwise. primary may be nil.
func NewService(primary Store, fallback *LocalStore) *Service {
	if fallback == nil {
		fallback = NewLocalStore(0)
	}
	return &Service{primary: primary, fallback: fallback, now: time.Now}
}

// Load returns the session's memory. A record owned by a different user yields
// empty memory. For the owner, the cross-device preference profile is merged
// underneath session-level preferences.
func (s *Service) Load(ctx context.Context, sessionID, userID string) (Memory, error) {
	if sessionID == "" {
		return Empty(), ErrBadRequest
	}
	rec := s.getSession(ctx, sessionID)
	mem := Empty()
	if rec != nil {
		if rec.OwnerUserID != "" && rec.OwnerUserID != userID {
			log.Warn().Str("session_id", sessionID).Msg("memory: ownership mismatch, serving empty memory")
			return Empty(), nil
		}
		mem = normalize(rec.Memory)
	}
	if userID != "" {
		for k, v := range s.getProfile(ctx, userID) {
			if _, ok := mem.UserPreferences[k]; !ok {
				mem.UserPreferences[k] = v
			}
		}
	}
	return mem, nil
}

// Save merges patch into the stored record, creating it if needed. A record that
// belongs to another user is never written.
func (s *Service) Save(ctx context.Context, sessionID, userID string, patch Patch) error {
	if sessionID == "" {
		return ErrBadRequest
	}
	rec := s.getSession(ctx, sessionID)
	if rec == nil {
		rec = &Record{SessionID: sessionID, Memory: Empty()}
	}
	if rec.OwnerUserID != "" && rec.OwnerUserID != userID {
		return ErrOwnerMismatch
	}
	if rec.OwnerUserID == "" && userID != "" {
		rec.OwnerUserID = userID
	}

	patch = redactPatch(patch)
	rec.Memory = normalize(rec.Memory)
	patch.apply(&rec.Memory)
	rec.UpdatedAt = s.now().UTC()

	if err := s.putSession(ctx, rec); err != nil {
		return err
	}
	if userID != "" && len(patch.UserPreferences) > 0 {
		return s.SavePreferences(ctx, userID, patch.UserPreferences)
	}
	return nil
}

// SavePreferences merges prefs into the user's cross-device profile.
func (s *Service) SavePreferences(ctx context.Context, userID string, prefs map[string]any) error {
	if userID == "" {
		return ErrBadRequest
	}
	merged := s.getProfile(ctx, userID)
	if merged == nil {
		merged = map[string]any{}
	}
	for k, v := range prefs {
		merged[k] = policy.RedactValue(v)
	}
	if s.primary != nil {
		err := s.primary.PutProfile(ctx, userID, merged)
		if err == nil {
			return nil
		}
		log.Warn().Err(err).Msg("memory: primary profile write failed, using fallback")
	}
	return s.fallback.PutProfile(ctx, userID, merged)
}

// TakePendingAction removes the session's pending action and returns it. The
// read and the clear run under a store-level claim, so concurrent callers for
// the same session see the action at most once. It returns nil when nothing is
// pending and ErrClaimHeld while another caller holds the claim.
func (s *Service) TakePendingAction(ctx context.Context, sessionID, userID string) (*types.ProposedAction, error) {
	if sessionID == "" {
		return nil, ErrBadRequest
	}
	store, err := s.claim(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := store.Release(ctx, sessionID); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("memory: claim release failed")
		}
	}()

	mem, err := s.Load(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	pa := mem.PendingAction
	if pa == nil {
		return nil, nil
	}
	if err := s.Save(ctx, sessionID, userID, Patch{ClearPendingAction: true}); err != nil {
		return nil, err
	}
	return pa, nil
}

func (s *Service) claim(ctx context.Context, key string) (Store, error) {
	if s.primary != nil {
		ok, err := s.primary.Claim(ctx, key, claimTTL)
		if err == nil {
			if !ok {
				return nil, ErrClaimHeld
			}
			return s.primary, nil
		}
		log.Warn().Err(err).Str("session_id", key).Msg("memory: primary claim failed, using fallback")
	}
	ok, err := s.fallback.Claim(ctx, key, claimTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrClaimHeld
	}
	return s.fallback, nil
}

func (s *Service) getSession(ctx context.Context, sessionID string) *Record {
	if s.primary != nil {
		rec, err := s.primary.GetSession(ctx, sessionID)
		if err == nil {
			return rec
		}
		log.Warn().Err(err).Str("session_id", sessionID).Msg("memory: primary read failed, using fallback")
	}
	rec, err := s.fallback.GetSession(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("memory: fallback read failed")
		return nil
	}
	return rec
}

func (s *Service) putSession(ctx context.Context, rec *Record) error {
	if s.primary != nil {
		err := s.primary.PutSession(ctx, rec)
		if err == nil {
			return nil
		}
		log.Warn().Err(err).Str("session_id", rec.SessionID).Msg("memory: primary write failed, using fallback")
	}
	return s.fallback.PutSession(ctx, rec)
}

func (s *Service) getProfile(ctx context.Context, userID string) map[string]any {
	if s.primary != nil {
		prefs, err := s.primary.GetProfile(ctx, userID)
		if err == nil {
			return prefs
		}
		log.Warn().Err(err).Msg("memory: primary profile read failed, using fallback")
	}
	prefs, _ := s.fallback.GetProfile(ctx, userID)
	return prefs
}

// Summary renders a bounded, PII-redacted description of memory for prompts.
func Summary(m Memory) string {
	view := map[string]any{}
	if len(m.UserPreferences) > 0 {
		view["preferences"] = m.UserPreferences
	}
	if len(m.CurrentTripContext) > 0 {
		view["trip"] = m.CurrentTripContext
	}
	if m.PendingAction != nil {
		view["pendingAction"] = map[string]any{
			"action":  m.PendingAction.Action,
			"summary": m.PendingAction.Summary,
		}
	}
	if len(m.LastShortlist) > 0 {
		view["lastShortlist"] = m.LastShortlist
	}
	if len(view) == 0 {
		return ""
	}
	raw, err := json.Marshal(policy.RedactValue(view))
	if err != nil {
		return ""
	}
	out := string(raw)
	if len(out) > maxSummaryChars {
		out = out[:maxSummaryChars] + "..."
	}
	return strings.TrimSpace(out)
}

func normalize(m Memory) Memory {
	if m.UserPreferences == nil {
		m.UserPreferences = map[string]any{}
	}
	if m.CurrentTripContext == nil {
		m.CurrentTripContext = map[string]any{}
	}
	if m.LastShortlist == nil {
		m.LastShortlist = []map[string]any{}
	}
	return m
}

// redactPatch scrubs free-text fields. Pending tool-call arguments are kept verbatim
// because they are replayed on confirmation.
func redactPatch(p Patch) Patch {
	if p.UserPreferences != nil {
		p.UserPreferences = redactMap(p.UserPreferences)
	}
	if p.CurrentTripContext != nil {
		p.CurrentTripContext = redactMap(p.CurrentTripContext)
	}
	if p.LastShortlist != nil {
		items := make([]map[string]any, len(p.LastShortlist))
		for i, item := range p.LastShortlist {
			items[i] = redactMap(item)
		}
		p.LastShortlist = items
	}
	if p.PendingAction != nil {
		pa := *p.PendingAction
		pa.Summary = policy.RedactPII(pa.Summary)
		p.PendingAction = &pa
	}
	return p
}

func redactMap(m map[string]any) map[string]any {
	out, _ := policy.RedactValue(m).(map[string]any)
	return out
}
