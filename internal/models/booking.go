package models

import "time"

// DateFormat is the wire and storage format for calendar dates.
const DateFormat = "2006-01-02"

// Booking represents a campsite reservation record.
// ArrivalDate is inclusive, DepartureDate is exclusive.
type Booking struct {
	ID            int64     `json:"id"`
	Version       int64     `json:"version"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	ArrivalDate   time.Time `json:"arrival_date"`
	DepartureDate time.Time `json:"departure_date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BookingDates returns every calendar day claimed by the booking,
// i.e. the half-open range [ArrivalDate, DepartureDate).
func (b *Booking) BookingDates() []time.Time {
	return DatesBetween(b.ArrivalDate, b.DepartureDate)
}

// StayNights returns the stay length in days.
func (b *Booking) StayNights() int {
	return int(b.DepartureDate.Sub(b.ArrivalDate).Hours() / 24)
}
