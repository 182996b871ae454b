package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/barberbot/internal/business"
	"github.com/wolfman30/barberbot/pkg/logging"
	"github.com/wolfman30/barberbot/pkg/textnorm"
)

// Calendar implements Oracle over a Backend using the shop's hours.
type Calendar struct {
	backend Backend
	hours   business.Hours
	now     func() time.Time
	logger  *logging.Logger
}

// Option customizes a Calendar.
type Option func(*Calendar)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Calendar) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Calendar) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Calendar.
func New(backend Backend, hours business.Hours, opts ...Option) *Calendar {
	c := &Calendar{
		backend: backend,
		hours:   hours,
		now:     time.Now,
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckFree reports whether [start, start+duration) is free of bookings.
func (c *Calendar) CheckFree(ctx context.Context, start time.Time, duration time.Duration) (bool, error) {
	busy, err := c.backend.Busy(ctx, start, start.Add(duration))
	if err != nil {
		return false, fmt.Errorf("calendar: check free: %w", err)
	}
	for _, b := range busy {
		if b.Overlaps(start, duration) {
			return false, nil
		}
	}
	return true, nil
}

// ListFreeSlots returns up to max grid-aligned start times on day where a service of
// the given duration fits before closing without touching any busy interval.
// For today the scan starts at the next grid point after now.
func (c *Calendar) ListFreeSlots(ctx context.Context, day time.Time, duration time.Duration, max int) ([]time.Time, error) {
	open, closing, ok := c.hours.Window(day)
	if !ok || max <= 0 {
		return nil, nil
	}
	step := c.hours.Granularity
	if step <= 0 {
		step = business.DefaultSlotDuration
	}
	start := open
	now := c.now().In(open.Location())
	if !now.Before(open) {
		next := c.hours.FloorToGrid(now).Add(step)
		if next.After(start) {
			start = next
		}
	}
	if !start.Add(duration).After(start) || start.Add(duration).After(closing) {
		return nil, nil
	}

	busy, err := c.backend.Busy(ctx, start, closing)
	if err != nil {
		return nil, fmt.Errorf("calendar: list free slots: %w", err)
	}

	var slots []time.Time
	for s := start; !s.Add(duration).After(closing) && len(slots) < max; s = s.Add(step) {
		free := true
		for _, b := range busy {
			if b.Overlaps(s, duration) {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, s)
		}
	}
	return slots, nil
}

// CreateBooking stores the appointment and returns its id.
func (c *Calendar) CreateBooking(ctx context.Context, details BookingDetails) (string, error) {
	ev := Event{
		Start:        details.Start,
		End:          details.End(),
		Summary:      fmt.Sprintf("%s - %s", details.Service.DisplayName(), details.CustomerName),
		CustomerName: details.CustomerName,
		Phone:        details.Phone,
		Sender:       details.Sender,
		ServiceID:    details.Service.ID,
	}
	id, err := c.backend.Insert(ctx, ev)
	if err != nil {
		return "", fmt.Errorf("calendar: create booking: %w", err)
	}
	c.logger.Info("booking created", "booking_id", id, "service", details.Service.ID, "start", details.Start)
	return id, nil
}

// CancelBooking removes the booking identified by req.
func (c *Calendar) CancelBooking(ctx context.Context, req CancelRequest) error {
	id := req.BookingID
	if id == "" {
		found, err := c.findBooking(ctx, req)
		if err != nil {
			return err
		}
		id = found
	}
	if err := c.backend.Delete(ctx, id); err != nil {
		return fmt.Errorf("calendar: cancel booking %s: %w", id, err)
	}
	c.logger.Info("booking cancelled", "booking_id", id)
	return nil
}

func (c *Calendar) findBooking(ctx context.Context, req CancelRequest) (string, error) {
	events, err := c.backend.FindUpcoming(ctx, c.now())
	if err != nil {
		return "", fmt.Errorf("calendar: find booking: %w", err)
	}
	name := textnorm.Fold(req.CustomerName)
	for _, ev := range events {
		if name != "" && textnorm.Fold(ev.CustomerName) == name {
			return ev.ID, nil
		}
		if name == "" && req.Sender != "" && ev.Sender == req.Sender {
			return ev.ID, nil
		}
	}
	return "", ErrBookingNotFound
}

// FindBooking looks for an event written for sender at exactly start.
func (c *Calendar) FindBooking(ctx context.Context, sender string, start time.Time) (string, error) {
	events, err := c.backend.FindUpcoming(ctx, start)
	if err != nil {
		return "", fmt.Errorf("calendar: find booking: %w", err)
	}
	for _, ev := range events {
		if ev.Start.After(start) {
			break
		}
		if sender != "" && ev.Sender == sender && ev.Start.Equal(start) {
			return ev.ID, nil
		}
	}
	return "", ErrBookingNotFound
}

// Ping checks that the backend is reachable.
func (c *Calendar) Ping(ctx context.Context) error {
	if err := c.backend.Ping(ctx); err != nil {
		return fmt.Errorf("calendar: ping: %w", err)
	}
	return nil
}
