// Package calendar answers availability questions and records bookings against
// the shop's external calendar.
package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/barberbot/internal/business"
)

var (
	// ErrBookingNotFound is returned when a cancellation matches no upcoming booking.
	ErrBookingNotFound = errors.New("calendar: booking not found")
	// ErrWriteFailed wraps any failed create or cancel surfaced by Guarded.
	ErrWriteFailed = errors.New("calendar: write failed")
)

// BookingDetails is what gets written to the calendar on confirmation.
type BookingDetails struct {
	CustomerName string
	Phone        string
	Sender       string
	Service      business.Service
	Start        time.Time
}

// End is when the booked service finishes.
func (b BookingDetails) End() time.Time {
	return b.Start.Add(b.Service.Duration())
}

// CancelRequest identifies the booking to remove. BookingID wins when set;
// otherwise the earliest upcoming booking for CustomerName (or Sender when the
// name is unknown) is cancelled.
type CancelRequest struct {
	BookingID    string
	CustomerName string
	Sender       string
}

// Oracle is the availability and booking surface the conversation engine relies on.
type Oracle interface {
	CheckFree(ctx context.Context, start time.Time, duration time.Duration) (bool, error)
	ListFreeSlots(ctx context.Context, day time.Time, duration time.Duration, max int) ([]time.Time, error)
	CreateBooking(ctx context.Context, details BookingDetails) (string, error)
	CancelBooking(ctx context.Context, req CancelRequest) error
	// FindBooking returns the id of the sender's booking starting exactly at
	// start, or ErrBookingNotFound.
	FindBooking(ctx context.Context, sender string, start time.Time) (string, error)
	Ping(ctx context.Context) error
}

// Interval is a busy block reported by the backend. End is exclusive.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [start, start+duration) intersects the interval.
func (i Interval) Overlaps(start time.Time, duration time.Duration) bool {
	return start.Before(i.End) && start.Add(duration).After(i.Start)
}

// Event is a stored booking.
type Event struct {
	ID           string
	Start        time.Time
	End          time.Time
	Summary      string
	CustomerName string
	Phone        string
	Sender       string
	ServiceID    string
}

// Backend is the narrow storage surface a Calendar needs.
type Backend interface {
	// Busy returns the intervals overlapping [from, to).
	Busy(ctx context.Context, from, to time.Time) ([]Interval, error)
	Insert(ctx context.Context, ev Event) (string, error)
	// Delete removes the event; a missing id yields ErrBookingNotFound.
	Delete(ctx context.Context, id string) error
	// FindUpcoming returns events starting at or after from, earliest first.
	FindUpcoming(ctx context.Context, from time.Time) ([]Event, error)
	Ping(ctx context.Context) error
}
