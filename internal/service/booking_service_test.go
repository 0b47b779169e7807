package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campsite/internal/database"
	"campsite/internal/events"
	"campsite/internal/models"
	"campsite/internal/validation"
)

func newTestService(t *testing.T) (*BookingService, *database.DB) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "campsite.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc := NewBookingService(db, validation.New(validation.DefaultRules()), events.NewEventBus(), &logger)
	return svc, db
}

func date(s string) time.Time {
	d, err := time.Parse(models.DateFormat, s)
	if err != nil {
		panic(err)
	}
	return d
}

// futureCandidate returns a booking candidate that passes the default
// guidelines: arrival in `offset` days, two night stay.
func futureCandidate(offset int) *models.Booking {
	arrival := models.Day(time.Now()).AddDate(0, 0, offset)
	return &models.Booking{
		Email:         "alice@example.com",
		FullName:      "Alice Smith",
		ArrivalDate:   arrival,
		DepartureDate: arrival.AddDate(0, 0, 2),
	}
}

func seedClaims(t *testing.T, db *database.DB, dates ...string) {
	t.Helper()
	ctx := context.Background()
	tx, err := db.Begin(ctx, database.TxSerializable)
	require.NoError(t, err)
	claims := make([]time.Time, len(dates))
	for i, d := range dates {
		claims[i] = date(d)
	}
	require.NoError(t, db.InsertClaims(ctx, tx, claims))
	require.NoError(t, tx.Commit())
}

func TestAddRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	candidate := futureCandidate(5)
	added, err := svc.Add(ctx, candidate)
	require.NoError(t, err)
	assert.NotZero(t, added.ID)
	assert.Equal(t, int64(1), added.Version)

	got, err := svc.FindByID(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, candidate.Email, got.Email)
	assert.Equal(t, candidate.FullName, got.FullName)
	assert.True(t, got.ArrivalDate.Equal(candidate.ArrivalDate))
	assert.True(t, got.DepartureDate.Equal(candidate.DepartureDate))
}

func TestAddRejectsGuidelineViolations(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	candidate := futureCandidate(5)
	candidate.DepartureDate = candidate.ArrivalDate.AddDate(0, 0, 5) // max is 3

	_, err := svc.Add(ctx, candidate)
	var gerr *validation.GuidelineError
	require.ErrorAs(t, err, &gerr)

	// Nothing must reach the store on validation failures.
	all, err := svc.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAddConflictNamesClaimedDates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first := futureCandidate(5)
	_, err := svc.Add(ctx, first)
	require.NoError(t, err)

	second := futureCandidate(6) // overlaps first's second night
	_, err = svc.Add(ctx, second)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, conflict.Dates, 1)
	assert.True(t, conflict.Dates[0].Equal(second.ArrivalDate))
}

func TestFindByIDNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.FindByID(context.Background(), 404)
	assert.ErrorIs(t, err, database.ErrBookingNotFound)
}

func TestFindAllOrderedByArrival(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, offset := range []int{20, 5, 12} {
		_, err := svc.Add(ctx, futureCandidate(offset))
		require.NoError(t, err)
	}

	all, err := svc.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].ArrivalDate.Before(all[1].ArrivalDate))
	assert.True(t, all[1].ArrivalDate.Before(all[2].ArrivalDate))
}

func TestUpdateMovesClaims(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	added, err := svc.Add(ctx, futureCandidate(5))
	require.NoError(t, err)

	moved := futureCandidate(10)
	moved.Version = added.Version
	updated, err := svc.Update(ctx, added.ID, moved)
	require.NoError(t, err)
	assert.Equal(t, added.ID, updated.ID)
	assert.Equal(t, added.Version+1, updated.Version)

	// The old range is free again, the new one is claimed.
	tx, err := db.Begin(ctx, database.TxReadOnly)
	require.NoError(t, err)
	defer tx.Rollback()

	oldClaims, err := db.FindClaimsInRange(ctx, tx, added.ArrivalDate, added.DepartureDate, database.LockNone)
	require.NoError(t, err)
	assert.Empty(t, oldClaims)

	newClaims, err := db.FindClaimsInRange(ctx, tx, moved.ArrivalDate, moved.DepartureDate, database.LockNone)
	require.NoError(t, err)
	assert.Len(t, newClaims, 2)
}

func TestUpdateCanShiftWithinOwnRange(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	added, err := svc.Add(ctx, futureCandidate(5))
	require.NoError(t, err)

	// Shift by one day; the new range overlaps the booking's own old range,
	// which must not count as a conflict.
	shifted := futureCandidate(6)
	shifted.Version = added.Version
	_, err = svc.Update(ctx, added.ID, shifted)
	assert.NoError(t, err)
}

func TestUpdateStaleVersionRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	added, err := svc.Add(ctx, futureCandidate(5))
	require.NoError(t, err)

	fresh := futureCandidate(10)
	fresh.Version = added.Version
	_, err = svc.Update(ctx, added.ID, fresh)
	require.NoError(t, err)

	stale := futureCandidate(15)
	stale.Version = added.Version // observed before the update above
	_, err = svc.Update(ctx, added.ID, stale)
	assert.ErrorIs(t, err, database.ErrVersionConflict)
}

func TestUpdateConflictWithOtherBooking(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Add(ctx, futureCandidate(5))
	require.NoError(t, err)
	_, err = svc.Add(ctx, futureCandidate(10))
	require.NoError(t, err)

	// Move the first booking onto the second one's range.
	onTaken := futureCandidate(10)
	onTaken.Version = first.Version
	_, err = svc.Update(ctx, first.ID, onTaken)

	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestUpdateMissingBooking(t *testing.T) {
	svc, _ := newTestService(t)

	candidate := futureCandidate(5)
	candidate.Version = 1
	_, err := svc.Update(context.Background(), 404, candidate)
	assert.ErrorIs(t, err, database.ErrBookingNotFound)
}

func TestDeleteReleasesClaims(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	added, err := svc.Add(ctx, futureCandidate(5))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, added.ID))

	_, err = svc.FindByID(ctx, added.ID)
	assert.ErrorIs(t, err, database.ErrBookingNotFound)

	// The released range can be booked again.
	_, err = svc.Add(ctx, futureCandidate(5))
	assert.NoError(t, err)
}

func TestDeleteMissingBooking(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.Delete(context.Background(), 404)
	assert.ErrorIs(t, err, database.ErrBookingNotFound)
}

func TestGetAvailability(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	t.Run("empty range", func(t *testing.T) {
		got, err := svc.GetAvailability(ctx, date("2022-02-03"), date("2022-01-28"))
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = svc.GetAvailability(ctx, date("2022-01-28"), date("2022-01-28"))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("no bookings returns whole range", func(t *testing.T) {
		got, err := svc.GetAvailability(ctx, date("2022-01-28"), date("2022-02-01"))
		require.NoError(t, err)
		require.Len(t, got, 4)
		for i, want := range []string{"2022-01-28", "2022-01-29", "2022-01-30", "2022-01-31"} {
			assert.Equal(t, want, got[i].Format(models.DateFormat))
		}
	})

	t.Run("claimed dates are subtracted", func(t *testing.T) {
		seedClaims(t, db, "2022-01-29", "2022-01-30")

		got, err := svc.GetAvailability(ctx, date("2022-01-28"), date("2022-02-03"))
		require.NoError(t, err)
		require.Len(t, got, 4)
		for i, want := range []string{"2022-01-28", "2022-01-31", "2022-02-01", "2022-02-02"} {
			assert.Equal(t, want, got[i].Format(models.DateFormat))
		}
	})

	t.Run("idempotent without writes", func(t *testing.T) {
		first, err := svc.GetAvailability(ctx, date("2022-01-28"), date("2022-02-03"))
		require.NoError(t, err)
		second, err := svc.GetAvailability(ctx, date("2022-01-28"), date("2022-02-03"))
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestConcurrentAddDisjointRanges(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, offset := range []int{5, 10} {
		wg.Add(1)
		go func(slot, offset int) {
			defer wg.Done()
			_, errs[slot] = svc.Add(ctx, futureCandidate(offset))
		}(i, offset)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])

	all, err := svc.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestConcurrentAddOverlappingRanges(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	svc.delayBeforeSave = func() {
		// The first writer to pass the claim check parks here with the
		// range lock held; the second Add starts only after that point.
		once.Do(func() {
			close(entered)
			<-release
		})
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = svc.Add(ctx, futureCandidate(5))
	}()

	<-entered
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[1] = svc.Add(ctx, futureCandidate(6)) // overlaps the first range
	}()

	// Give the second writer time to block on the range lock, then let the
	// first one finish.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.Error(t, errs[1])
	var conflict *ConflictError
	if !errors.As(errs[1], &conflict) {
		assert.ErrorIs(t, errs[1], database.ErrTxConflict)
	}

	all, err := svc.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	tx, err := db.Begin(ctx, database.TxReadOnly)
	require.NoError(t, err)
	defer tx.Rollback()
	claims, err := db.FindClaimsInRange(ctx, tx,
		models.Day(time.Now()), models.Day(time.Now()).AddDate(0, 0, 20), database.LockNone)
	require.NoError(t, err)
	assert.Len(t, claims, all[0].StayNights())
}

func TestConcurrentIdenticalAdds(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	const writers = 10
	var wg sync.WaitGroup
	results := make([]error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, results[slot] = svc.Add(ctx, futureCandidate(5))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			assert.ErrorIs(t, err, database.ErrTxConflict)
		}
	}
	assert.Equal(t, 1, succeeded)

	all, err := svc.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	// Claim count equals the range length, not a multiple of it.
	tx, err := db.Begin(ctx, database.TxReadOnly)
	require.NoError(t, err)
	defer tx.Rollback()
	claims, err := db.FindClaimsInRange(ctx, tx,
		all[0].ArrivalDate, all[0].DepartureDate, database.LockNone)
	require.NoError(t, err)
	assert.Len(t, claims, 2)
}

func TestNoTwoBookingsShareADay(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// A mix of overlapping and disjoint candidates.
	offsets := [][2]int{{5, 7}, {6, 8}, {7, 9}, {12, 14}, {13, 15}}
	for _, o := range offsets {
		candidate := &models.Booking{
			Email:         "bob@example.com",
			FullName:      "Bob",
			ArrivalDate:   models.Day(time.Now()).AddDate(0, 0, o[0]),
			DepartureDate: models.Day(time.Now()).AddDate(0, 0, o[1]),
		}
		_, _ = svc.Add(ctx, candidate)
	}

	all, err := svc.FindAll(ctx)
	require.NoError(t, err)

	seen := make(map[string]int64)
	for _, b := range all {
		for _, d := range b.BookingDates() {
			key := d.Format(models.DateFormat)
			if owner, ok := seen[key]; ok {
				t.Fatalf("date %s claimed by bookings %d and %d", key, owner, b.ID)
			}
			seen[key] = b.ID
		}
	}
}

func TestEventsPublishedOnWrites(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var got []string
	for _, et := range []string{events.TypeBookingCreated, events.TypeBookingUpdated, events.TypeBookingCancelled} {
		eventType := et
		svc.bus.Subscribe(eventType, func(e events.Event) error {
			got = append(got, eventType)
			return nil
		})
	}

	added, err := svc.Add(ctx, futureCandidate(5))
	require.NoError(t, err)

	moved := futureCandidate(10)
	moved.Version = added.Version
	_, err = svc.Update(ctx, added.ID, moved)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, added.ID))

	assert.Equal(t, []string{
		events.TypeBookingCreated,
		events.TypeBookingUpdated,
		events.TypeBookingCancelled,
	}, got)
}
