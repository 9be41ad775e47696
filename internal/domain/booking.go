package domain

import "time"

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// DateLayout is the wire format of travel and booking dates.
const DateLayout = "2006-01-02"

type Booking struct {
	ID          int64
	UserID      int64
	TrainID     int64
	BookingDate time.Time
	SeatNumber  int
	Status      BookingStatus
	CreatedAt   time.Time

	Train *Train
	User  *UserSummary
}

// UserSummary is the part of the identity provider's user record returned with a booking.
type UserSummary struct {
	Username string
	Email    string
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a DateLayout string.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}
