package database

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrBookingNotFound is returned when the referenced booking id does not exist.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrVersionConflict is returned when a booking's stored version no longer
	// matches the version the caller last read.
	ErrVersionConflict = errors.New("booking was modified concurrently")
	// ErrClaimExists is returned when a day claim insert hits an already
	// claimed date.
	ErrClaimExists = errors.New("date is already claimed")
	// ErrTxConflict is returned when the transaction cannot be committed
	// consistently with concurrent transactions and must be retried or
	// surfaced as a conflict by the caller.
	ErrTxConflict = errors.New("transaction conflict")
)

// classify maps raw sqlite errors onto the store's error kinds. Errors it
// does not recognize are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}

	switch {
	case sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked:
		return ErrTxConflict
	case sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique:
		return ErrClaimExists
	}
	return err
}
