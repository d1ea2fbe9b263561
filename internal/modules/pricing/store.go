// README: Pricing store backed by PostgreSQL (listing_rates table).
package pricing

import (
	"context"
	"errors"

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

func (s *Store) GetRate(ctx context.Context, listingID types.ID) (Rate, error) {
	var r Rate
	var unit string
	err := s.db.QueryRow(ctx, `
		SELECT listing_id, unit, base_amount, min_units, included_guests,
		       extra_guest_amount, peak_multiplier_pct, currency
		FROM listing_rates
		WHERE listing_id = $1`, string(listingID),
	).Scan(&r.ListingID, &unit, &r.BaseAmount, &r.MinUnits, &r.IncludedGuests,
		&r.ExtraGuestAmount, &r.PeakMultiplierPct, &r.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rate{}, ErrNotFound
	}
	if err != nil {
		return Rate{}, err
	}
	r.Unit = Unit(unit)
	return r, nil
}

func (s *Store) UpsertRate(ctx context.Context, r Rate) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO listing_rates (
			listing_id, unit, base_amount, min_units, included_guests,
			extra_guest_amount, peak_multiplier_pct, currency
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (listing_id) DO UPDATE SET
			unit = EXCLUDED.unit,
			base_amount = EXCLUDED.base_amount,
			min_units = EXCLUDED.min_units,
			included_guests = EXCLUDED.included_guests,
			extra_guest_amount = EXCLUDED.extra_guest_amount,
			peak_multiplier_pct = EXCLUDED.peak_multiplier_pct,
			currency = EXCLUDED.currency`,
		string(r.ListingID), string(r.Unit), r.BaseAmount, r.MinUnits, r.IncludedGuests,
		r.ExtraGuestAmount, r.PeakMultiplierPct, r.Currency,
	)
	return err
}
