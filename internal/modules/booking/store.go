// README: Booking store backed by PostgreSQL.
package booking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"concierge/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, b *Booking) error {
	details, err := json.Marshal(orEmpty(b.Details))
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO bookings (
			id, session_id, user_id, kind, listing_id, reference, summary,
			status, status_version, quote_amount, quote_currency, details, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12::jsonb, $13
		)`,
		string(b.ID),
		b.SessionID,
		b.UserID,
		b.Kind,
		string(b.ListingID),
		b.Reference,
		b.Summary,
		string(b.Status),
		b.StatusVersion,
		b.Quote.Amount,
		b.Quote.Currency,
		string(details),
		b.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Booking, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, session_id, user_id, kind, listing_id, reference, summary,
		       status, status_version, quote_amount, quote_currency, details::text,
		       created_at, confirmed_at, cancelled_at, cancel_reason
		FROM bookings
		WHERE id = $1`, string(id),
	)

	var b Booking
	var userID, reference, cancelReason sql.NullString
	var confirmedAt, cancelledAt sql.NullTime
	var details string

	err := row.Scan(
		&b.ID, &b.SessionID, &userID, &b.Kind, &b.ListingID, &reference, &b.Summary,
		&b.Status, &b.StatusVersion, &b.Quote.Amount, &b.Quote.Currency, &details,
		&b.CreatedAt, &confirmedAt, &cancelledAt, &cancelReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	b.UserID = toStringPtr(userID)
	b.Reference = toStringPtr(reference)
	b.CancelReason = toStringPtr(cancelReason)
	b.ConfirmedAt = toTimePtr(confirmedAt)
	b.CancelledAt = toTimePtr(cancelledAt)
	if details != "" {
		if err := json.Unmarshal([]byte(details), &b.Details); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

// UpdateStatus applies the transition only if the row is still at the
// expected status and version. It reports whether a row was updated.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, reason *string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET status = $1,
			status_version = status_version + 1,
			confirmed_at = CASE WHEN $1 = 'confirmed' THEN NOW() ELSE confirmed_at END,
			cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END,
			cancel_reason = COALESCE($2, cancel_reason)
		WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to),
		reason,
		string(id),
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO booking_events (
			booking_id, from_status, to_status, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5)`,
		string(e.BookingID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorID,
		e.CreatedAt,
	)
	return err
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func toStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
