package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"campsite/internal/database"
	"campsite/internal/events"
	"campsite/internal/metrics"
	"campsite/internal/models"
	"campsite/internal/validation"
)

// BookingService orchestrates reservation writes and reads against the
// store. It is the only component that touches booking semantics: it
// enforces the guidelines, the no-overlap invariant and version checks, and
// never mutates the store outside a transaction. It holds no booking state
// across calls; every operation re-reads current truth inside its own
// transaction.
type BookingService struct {
	db        *database.DB
	validator *validation.Validator
	bus       *events.EventBus
	logger    *zerolog.Logger

	// delayBeforeSave runs after the claim check and before the claim
	// insert. Production keeps the no-op; concurrency tests install a delay
	// to widen the race window deterministically.
	delayBeforeSave func()
}

// NewBookingService creates the engine. bus may be nil when no event
// subscribers exist.
func NewBookingService(db *database.DB, validator *validation.Validator, bus *events.EventBus, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		db:              db,
		validator:       validator,
		bus:             bus,
		logger:          logger,
		delayBeforeSave: func() {},
	}
}

// Add validates the candidate, claims its date range and stores the booking
// atomically. Returns *validation.GuidelineError on guideline violations,
// *ConflictError naming the claimed dates when the range is taken, or
// database.ErrTxConflict when the transaction lost to a concurrent writer.
func (s *BookingService) Add(ctx context.Context, candidate *models.Booking) (*models.Booking, error) {
	if err := s.validator.Validate(candidate.ArrivalDate, candidate.DepartureDate); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx, database.TxSerializable)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	booking := &models.Booking{
		Email:         candidate.Email,
		FullName:      candidate.FullName,
		ArrivalDate:   models.Day(candidate.ArrivalDate),
		DepartureDate: models.Day(candidate.DepartureDate),
	}

	if err := s.claimAndSave(ctx, tx, booking); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, s.classifyConflict(err)
	}

	s.logger.Info().
		Int64("id", booking.ID).
		Str("arrival", booking.ArrivalDate.Format(models.DateFormat)).
		Str("departure", booking.DepartureDate.Format(models.DateFormat)).
		Msg("Booking created")
	metrics.IncBookingCreated()
	s.publish(events.TypeBookingCreated, booking.ID, booking.BookingDates())

	return booking, nil
}

// Update replaces the stored booking's range and contact details with the
// candidate's. The candidate carries the version the caller last observed;
// a mismatch against the stored version returns
// database.ErrVersionConflict. The claims of the booking's current range
// are read and released inside the same transaction, never from a stale
// caller copy.
func (s *BookingService) Update(ctx context.Context, id int64, candidate *models.Booking) (*models.Booking, error) {
	if err := s.validator.Validate(candidate.ArrivalDate, candidate.DepartureDate); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx, database.TxSerializable)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	current, err := s.db.GetBooking(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if current.Version != candidate.Version {
		metrics.IncBookingConflict("version")
		return nil, database.ErrVersionConflict
	}

	// Release the currently claimed range so the new range may reuse it.
	if err := s.db.DeleteClaims(ctx, tx, current.BookingDates()); err != nil {
		return nil, s.classifyConflict(err)
	}

	booking := &models.Booking{
		ID:            id,
		Version:       current.Version,
		Email:         candidate.Email,
		FullName:      candidate.FullName,
		ArrivalDate:   models.Day(candidate.ArrivalDate),
		DepartureDate: models.Day(candidate.DepartureDate),
		CreatedAt:     current.CreatedAt,
	}

	if err := s.claimAndSave(ctx, tx, booking); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, s.classifyConflict(err)
	}

	s.logger.Info().
		Int64("id", booking.ID).
		Int64("version", booking.Version).
		Msg("Booking updated")
	metrics.IncBookingUpdated()
	s.publish(events.TypeBookingUpdated, booking.ID, booking.BookingDates())

	return booking, nil
}

// Delete cancels the booking and releases all its day claims atomically.
func (s *BookingService) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.Begin(ctx, database.TxSerializable)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	booking, err := s.db.GetBooking(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := s.db.DeleteClaims(ctx, tx, booking.BookingDates()); err != nil {
		return s.classifyConflict(err)
	}
	if err := s.db.DeleteBooking(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return s.classifyConflict(err)
	}

	s.logger.Info().Int64("id", id).Msg("Booking cancelled")
	metrics.IncBookingCancelled()
	s.publish(events.TypeBookingCancelled, id, booking.BookingDates())

	return nil
}

// FindByID returns the booking or database.ErrBookingNotFound.
func (s *BookingService) FindByID(ctx context.Context, id int64) (*models.Booking, error) {
	tx, err := s.db.Begin(ctx, database.TxReadOnly)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	return s.db.GetBooking(ctx, tx, id)
}

// FindAll returns every booking ordered by arrival date ascending.
func (s *BookingService) FindAll(ctx context.Context) ([]models.Booking, error) {
	tx, err := s.db.Begin(ctx, database.TxReadOnly)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	return s.db.GetAllBookings(ctx, tx)
}

// GetAvailability returns every unclaimed date in the half-open range
// [startInclusive, endExclusive), ascending and duplicate-free. An empty
// or inverted range yields an empty result, never an error.
func (s *BookingService) GetAvailability(ctx context.Context, startInclusive, endExclusive time.Time) ([]time.Time, error) {
	allDates := models.DatesBetween(startInclusive, endExclusive)
	if len(allDates) == 0 {
		return []time.Time{}, nil
	}

	tx, err := s.db.Begin(ctx, database.TxReadOnly)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	claimed, err := s.db.FindClaimsInRange(ctx, tx,
		models.Day(startInclusive), models.Day(endExclusive), database.LockNone)
	if err != nil {
		return nil, err
	}

	reserved := make(map[string]struct{}, len(claimed))
	for _, d := range claimed {
		reserved[d.Format(models.DateFormat)] = struct{}{}
	}

	available := make([]time.Time, 0, len(allDates))
	for _, d := range allDates {
		if _, ok := reserved[d.Format(models.DateFormat)]; !ok {
			available = append(available, d)
		}
	}
	return available, nil
}

// claimAndSave is the shared conflict-check-and-insert sequence of Add and
// Update: lock the range, reject if any claim exists, then insert the
// claims and the booking record.
func (s *BookingService) claimAndSave(ctx context.Context, tx *database.Tx, booking *models.Booking) error {
	claimed, err := s.db.FindClaimsInRange(ctx, tx,
		booking.ArrivalDate, booking.DepartureDate, database.LockExclusive)
	if err != nil {
		return s.classifyConflict(err)
	}
	if len(claimed) > 0 {
		metrics.IncBookingConflict("dates")
		return &ConflictError{Dates: claimed}
	}

	s.delayBeforeSave()

	if err := s.db.InsertClaims(ctx, tx, booking.BookingDates()); err != nil {
		return s.classifyConflict(err)
	}
	if err := s.db.SaveBooking(ctx, tx, booking); err != nil {
		return s.classifyConflict(err)
	}
	return nil
}

// classifyConflict folds the store's uniqueness violation into a booking
// conflict: a claim that appeared despite the range lock means another
// transaction won the dates.
func (s *BookingService) classifyConflict(err error) error {
	switch {
	case errors.Is(err, database.ErrClaimExists):
		metrics.IncBookingConflict("dates")
		return &ConflictError{}
	case errors.Is(err, database.ErrTxConflict):
		metrics.IncBookingConflict("serialization")
		return err
	default:
		return err
	}
}

func (s *BookingService) publish(eventType string, id int64, dates []time.Time) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Type: eventType, BookingID: id, Dates: dates})
}
