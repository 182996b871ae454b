// Package business holds the barbershop's fixed rules: opening hours, slot validation,
// the service catalog and Spanish date formatting.
package business

import (
	"fmt"
	"time"
)

// DefaultTimezone is where the shop operates.
const DefaultTimezone = "America/Mexico_City"

// DefaultSlotDuration is used when a request has no service attached (e.g. availability queries).
const DefaultSlotDuration = 30 * time.Minute

// Hours describes when appointments can start. Close hours are exclusive.
type Hours struct {
	Location          *time.Location
	OpenHour          int
	CloseHourWeekday  int
	CloseHourSaturday int
	ClosedDay         time.Weekday
	Granularity       time.Duration
}

// DefaultHours returns Mon-Fri 10-20, Sat 10-17, closed Sunday, half-hour grid.
func DefaultHours(loc *time.Location) Hours {
	if loc == nil {
		loc = time.UTC
	}
	return Hours{
		Location:          loc,
		OpenHour:          10,
		CloseHourWeekday:  20,
		CloseHourSaturday: 17,
		ClosedDay:         time.Sunday,
		Granularity:       30 * time.Minute,
	}
}

// LoadHours resolves the timezone name and returns the default schedule in it.
func LoadHours(timezone string) (Hours, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Hours{}, fmt.Errorf("business: load timezone %q: %w", timezone, err)
	}
	return DefaultHours(loc), nil
}

// IsClosed reports whether the shop does not open at all on the weekday.
func (h Hours) IsClosed(weekday time.Weekday) bool {
	return weekday == h.ClosedDay
}

// CloseHourFor returns the closing hour for the weekday. ok is false on the closed day.
func (h Hours) CloseHourFor(weekday time.Weekday) (hour int, ok bool) {
	if h.IsClosed(weekday) {
		return 0, false
	}
	if weekday == time.Saturday {
		return h.CloseHourSaturday, true
	}
	return h.CloseHourWeekday, true
}

// Window returns the opening and closing instants of the calendar day containing day.
func (h Hours) Window(day time.Time) (open, close time.Time, ok bool) {
	local := day.In(h.loc())
	closeHour, ok := h.CloseHourFor(local.Weekday())
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	y, m, d := local.Date()
	open = time.Date(y, m, d, h.OpenHour, 0, 0, 0, h.loc())
	close = time.Date(y, m, d, closeHour, 0, 0, 0, h.loc())
	return open, close, true
}

// IsOpenAt reports whether an appointment may start at t.
func (h Hours) IsOpenAt(t time.Time) bool {
	local := t.In(h.loc())
	closeHour, ok := h.CloseHourFor(local.Weekday())
	if !ok {
		return false
	}
	return local.Hour() >= h.OpenHour && local.Hour() < closeHour
}

// OnGrid reports whether t falls exactly on a slot boundary.
func (h Hours) OnGrid(t time.Time) bool {
	local := t.In(h.loc())
	step := h.stepMinutes()
	return local.Minute()%step == 0 && local.Second() == 0 && local.Nanosecond() == 0
}

// FloorToGrid rounds t down to the previous slot boundary.
func (h Hours) FloorToGrid(t time.Time) time.Time {
	local := t.In(h.loc())
	step := h.stepMinutes()
	y, m, d := local.Date()
	return time.Date(y, m, d, local.Hour(), local.Minute()-local.Minute()%step, 0, 0, h.loc())
}

// Summary is the schedule block appended to the welcome message.
func (h Hours) Summary() string {
	return fmt.Sprintf("🕒 *Horario:*\nLunes a viernes: %d a %d horas\nSábados: %d a %d horas",
		h.OpenHour, h.CloseHourWeekday, h.OpenHour, h.CloseHourSaturday)
}

// Inline describes the schedule in a single sentence fragment.
func (h Hours) Inline() string {
	return fmt.Sprintf("de lunes a viernes de %02d:00 a %02d:00, sábado de %02d:00 a %02d:00",
		h.OpenHour, h.CloseHourWeekday, h.OpenHour, h.CloseHourSaturday)
}

func (h Hours) loc() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

func (h Hours) stepMinutes() int {
	step := int(h.Granularity / time.Minute)
	if step <= 0 {
		return 30
	}
	return step
}
