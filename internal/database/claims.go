package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"campsite/internal/models"
)

// FindClaimsInRange returns the claimed dates intersecting the half-open
// range [startInclusive, endExclusive), ascending.
//
// With LockExclusive the calling transaction first acquires the exclusive
// reservation lock, so two writers over intersecting (or any) ranges are
// serialized: the second blocks until the first commits or rolls back, then
// observes its committed claims. With LockNone the read never blocks and is
// safe to combine with TxReadOnly.
func (db *DB) FindClaimsInRange(ctx context.Context, tx *Tx, startInclusive, endExclusive time.Time, lock LockMode) ([]time.Time, error) {
	if lock == LockExclusive {
		if tx.mode != TxSerializable {
			return nil, fmt.Errorf("exclusive claim lock requires a serializable transaction")
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE reservation_guard SET locked_at = CURRENT_TIMESTAMP WHERE id = 1`,
		); err != nil {
			return nil, fmt.Errorf("acquire claim lock: %w", classify(err))
		}
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT date FROM booking_dates WHERE date >= ? AND date < ? ORDER BY date`,
		startInclusive.Format(models.DateFormat),
		endExclusive.Format(models.DateFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", classify(err))
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		date, err := time.Parse(models.DateFormat, raw)
		if err != nil {
			return nil, fmt.Errorf("parse claim date %q: %w", raw, err)
		}
		dates = append(dates, date)
	}
	return dates, rows.Err()
}

// InsertClaims claims every given date for the current transaction's
// booking. Returns ErrClaimExists if any date already has a live claim;
// the primary key guards races the lock mode did not cover.
func (db *DB) InsertClaims(ctx context.Context, tx *Tx, dates []time.Time) error {
	if len(dates) == 0 {
		return nil
	}

	placeholders := make([]string, len(dates))
	args := make([]interface{}, len(dates))
	for i, d := range dates {
		placeholders[i] = "(?)"
		args[i] = d.Format(models.DateFormat)
	}

	query := "INSERT INTO booking_dates (date) VALUES " + strings.Join(placeholders, ", ")
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert claims: %w", classify(err))
	}
	return nil
}

// DeleteClaims releases the claims on the given dates. Dates without a
// claim are ignored.
func (db *DB) DeleteClaims(ctx context.Context, tx *Tx, dates []time.Time) error {
	if len(dates) == 0 {
		return nil
	}

	placeholders := make([]string, len(dates))
	args := make([]interface{}, len(dates))
	for i, d := range dates {
		placeholders[i] = "?"
		args[i] = d.Format(models.DateFormat)
	}

	query := "DELETE FROM booking_dates WHERE date IN (" + strings.Join(placeholders, ", ") + ")"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete claims: %w", classify(err))
	}
	return nil
}
