package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campsite/internal/models"
)

const bookingColumns = `id, version, email, full_name, arrival_date, departure_date, created_at, updated_at`

// SaveBooking inserts the booking when its ID is zero, otherwise updates it.
// Updates require b.Version to match the stored version and increment it
// atomically; a mismatch returns ErrVersionConflict. On success b carries
// the assigned id and the new version.
func (db *DB) SaveBooking(ctx context.Context, tx *Tx, b *models.Booking) error {
	now := time.Now().UTC()

	if b.ID == 0 {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO bookings (version, email, full_name, arrival_date, departure_date, created_at, updated_at)
			VALUES (1, ?, ?, ?, ?, ?, ?)`,
			b.Email,
			b.FullName,
			b.ArrivalDate.Format(models.DateFormat),
			b.DepartureDate.Format(models.DateFormat),
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("insert booking: %w", classify(err))
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("get last id: %w", err)
		}
		b.ID = id
		b.Version = 1
		b.CreatedAt = now
		b.UpdatedAt = now
		return nil
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET version = version + 1, email = ?, full_name = ?, arrival_date = ?, departure_date = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		b.Email,
		b.FullName,
		b.ArrivalDate.Format(models.DateFormat),
		b.DepartureDate.Format(models.DateFormat),
		now,
		b.ID,
		b.Version,
	)
	if err != nil {
		return fmt.Errorf("update booking: %w", classify(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a stale version from a missing booking.
		if _, err := db.GetBooking(ctx, tx, b.ID); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	b.Version++
	b.UpdatedAt = now
	return nil
}

// GetBooking returns the booking with the given id or ErrBookingNotFound.
func (db *DB) GetBooking(ctx context.Context, tx *Tx, id int64) (*models.Booking, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, classify(err))
	}
	return b, nil
}

// GetAllBookings returns every booking ordered by arrival date ascending.
func (db *DB) GetAllBookings(ctx context.Context, tx *Tx) ([]models.Booking, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings ORDER BY arrival_date, id`)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", classify(err))
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// DeleteBooking removes the booking record. Returns ErrBookingNotFound when
// no row matched.
func (db *DB) DeleteBooking(ctx context.Context, tx *Tx, id int64) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete booking %d: %w", id, classify(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrBookingNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var arrival, departure string
	if err := row.Scan(
		&b.ID, &b.Version, &b.Email, &b.FullName,
		&arrival, &departure, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if b.ArrivalDate, err = time.Parse(models.DateFormat, arrival); err != nil {
		return nil, fmt.Errorf("parse arrival date %q: %w", arrival, err)
	}
	if b.DepartureDate, err = time.Parse(models.DateFormat, departure); err != nil {
		return nil, fmt.Errorf("parse departure date %q: %w", departure, err)
	}
	return &b, nil
}
