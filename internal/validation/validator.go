package validation

import (
	"fmt"
	"strings"
	"time"

	"campsite/internal/models"
)

// Rules holds the reservation guideline parameters. All values are in days.
type Rules struct {
	// MaxReservedDays is the maximum stay length.
	MaxReservedDays int
	// MinDaysAheadOfArrival is the minimum lead time before arrival.
	MinDaysAheadOfArrival int
	// ReservationMaxDaysInAdvance is how far ahead a reservation may start.
	ReservationMaxDaysInAdvance int
}

// DefaultRules returns the standard campsite guidelines: stays of at most
// 3 days, booked at least 1 day ahead and at most 31 days in advance.
func DefaultRules() Rules {
	return Rules{
		MaxReservedDays:             3,
		MinDaysAheadOfArrival:       1,
		ReservationMaxDaysInAdvance: 31,
	}
}

// GuidelineError reports every guideline a candidate booking violates.
type GuidelineError struct {
	Violations []string
}

func (e *GuidelineError) Error() string {
	return "booking does not respect the guidelines: " + strings.Join(e.Violations, "; ")
}

// Validator checks candidate bookings against the configured Rules.
// The zero value is not usable; construct with New.
type Validator struct {
	rules Rules
	now   func() time.Time
}

// New returns a Validator bound to the given rules.
func New(rules Rules) *Validator {
	return &Validator{rules: rules, now: time.Now}
}

// Check evaluates the guideline rules over the candidate's arrival and
// departure dates. Every violated rule contributes one message; all rules
// are evaluated independently. Zero-valued dates are considered valid here,
// presence is enforced at the request layer.
func (v *Validator) Check(arrivalDate, departureDate time.Time) []string {
	if arrivalDate.IsZero() || departureDate.IsZero() {
		return nil
	}

	var violations []string

	if departureDate.Before(arrivalDate) {
		violations = append(violations, "Arrival date should be before departure date")
	}

	stayInDays := models.DaysBetween(arrivalDate, departureDate)
	if stayInDays < 1 {
		violations = append(violations, "The campsite can be reserved for minimum 1 day")
	}
	if stayInDays > v.rules.MaxReservedDays {
		violations = append(violations,
			fmt.Sprintf("The campsite can be reserved for maximum %d days", v.rules.MaxReservedDays))
	}

	daysAheadOfArrival := models.DaysBetween(v.now(), arrivalDate)
	if daysAheadOfArrival < v.rules.MinDaysAheadOfArrival {
		violations = append(violations,
			fmt.Sprintf("The campsite can be reserved minimum %d day(s) ahead of arrival", v.rules.MinDaysAheadOfArrival))
	}
	if daysAheadOfArrival > v.rules.ReservationMaxDaysInAdvance {
		violations = append(violations,
			fmt.Sprintf("The campsite can be reserved up to %d day(s) in advance", v.rules.ReservationMaxDaysInAdvance))
	}

	return violations
}

// Validate is Check returning a *GuidelineError when any rule is violated.
func (v *Validator) Validate(arrivalDate, departureDate time.Time) error {
	violations := v.Check(arrivalDate, departureDate)
	if len(violations) > 0 {
		return &GuidelineError{Violations: violations}
	}
	return nil
}
