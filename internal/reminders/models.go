// Package reminders schedules and delivers appointment reminders ahead of confirmed bookings.
package reminders

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks the lifecycle of a reminder.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Reminder is a scheduled outbound message for one booking.
type Reminder struct {
	ID            uuid.UUID  `json:"id"`
	BookingID     string     `json:"booking_id"`
	Recipient     string     `json:"recipient"`
	CustomerName  string     `json:"customer_name"`
	ServiceName   string     `json:"service_name"`
	AppointmentAt time.Time  `json:"appointment_at"`
	SendAt        time.Time  `json:"send_at"`
	Status        Status     `json:"status"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"last_error,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Appointment is the confirmed booking a reminder is scheduled for.
type Appointment struct {
	BookingID    string
	Recipient    string
	CustomerName string
	ServiceName  string
	Start        time.Time
}
