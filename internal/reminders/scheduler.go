package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/barberbot/internal/observability/metrics"
	"github.com/wolfman30/barberbot/pkg/logging"
)

// DefaultLead is how long before the appointment the reminder goes out.
const DefaultLead = 5 * time.Hour

// Scheduler creates reminders after confirmed bookings.
type Scheduler struct {
	store   Store
	lead    time.Duration
	now     func() time.Time
	logger  *logging.Logger
	metrics *metrics.ReminderMetrics
}

// SchedulerOption customizes a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock overrides the time source.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScheduler creates a reminder scheduler. A non-positive lead uses DefaultLead.
func NewScheduler(store Store, lead time.Duration, logger *logging.Logger, m *metrics.ReminderMetrics, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	if lead <= 0 {
		lead = DefaultLead
	}
	s := &Scheduler{store: store, lead: lead, now: time.Now, logger: logger, metrics: m}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lead returns the configured reminder lead time.
func (s *Scheduler) Lead() time.Duration {
	return s.lead
}

// ScheduleAppointment creates a pending reminder for appt.
// Returns nil when the send time has already passed.
func (s *Scheduler) ScheduleAppointment(ctx context.Context, appt Appointment) (*Reminder, error) {
	now := s.now()
	sendAt := appt.Start.Add(-s.lead)
	if !sendAt.After(now) {
		s.logger.Info("reminders: send time already passed, skipping",
			"booking_id", appt.BookingID,
			"appointment_at", appt.Start.Format(time.RFC3339),
		)
		return nil, nil
	}

	reminder := &Reminder{
		BookingID:     appt.BookingID,
		Recipient:     appt.Recipient,
		CustomerName:  appt.CustomerName,
		ServiceName:   appt.ServiceName,
		AppointmentAt: appt.Start,
		SendAt:        sendAt,
		Status:        StatusPending,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}
	if err := s.store.Create(ctx, reminder); err != nil {
		return nil, fmt.Errorf("reminders: schedule: %w", err)
	}
	s.metrics.ObserveScheduled()

	s.logger.Info("reminders: reminder scheduled",
		"id", reminder.ID,
		"booking_id", appt.BookingID,
		"send_at", sendAt.Format(time.RFC3339),
	)
	return reminder, nil
}

// CancelAppointment cancels the pending reminders of a booking. Without a booking
// id every pending reminder addressed to recipient is cancelled.
func (s *Scheduler) CancelAppointment(ctx context.Context, bookingID, recipient string) (int, error) {
	var (
		n   int
		err error
	)
	switch {
	case bookingID != "":
		n, err = s.store.CancelByBooking(ctx, bookingID)
	case recipient != "":
		n, err = s.store.CancelByRecipient(ctx, recipient)
	default:
		return 0, nil
	}
	if err != nil {
		return n, fmt.Errorf("reminders: cancel: %w", err)
	}
	if n > 0 {
		s.logger.Info("reminders: reminders cancelled", "booking_id", bookingID, "count", n)
	}
	return n, nil
}
