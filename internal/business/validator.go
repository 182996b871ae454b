package business

import (
	"fmt"
	"time"
)

// Reason classifies why a requested slot was rejected.
type Reason string

const (
	ReasonUnparsed     Reason = "unparsed"
	ReasonPast         Reason = "past"
	ReasonClosedDay    Reason = "closed_day"
	ReasonOutsideHours Reason = "outside_hours"
	ReasonOffGrid      Reason = "off_grid"
)

// ValidationError carries the customer-facing explanation for a rejected slot.
type ValidationError struct {
	Reason  Reason
	Message string
	// Suggestion is set for ReasonOffGrid: the requested time rounded down to the grid.
	Suggestion time.Time
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("business: slot rejected: %s", e.Reason)
}

// PastGrace is how far in the past a requested time may lie before it is rejected.
const PastGrace = 30 * time.Minute

// Validator checks requested appointment times against the shop's hours.
type Validator struct {
	hours Hours
}

// NewValidator creates a validator for the given hours.
func NewValidator(hours Hours) *Validator {
	return &Validator{hours: hours}
}

// Hours returns the schedule the validator enforces.
func (v *Validator) Hours() Hours {
	return v.hours
}

// Validate returns nil when t is bookable, otherwise a *ValidationError.
// A zero t means the expression could not be parsed.
func (v *Validator) Validate(t, now time.Time) error {
	if t.IsZero() {
		return &ValidationError{
			Reason:  ReasonUnparsed,
			Message: "No entendí la fecha. Por favor escribe algo como:\n'Mañana a las 10am'\n'Jueves a las 4pm'",
		}
	}
	if t.Before(now.Add(-PastGrace)) {
		return &ValidationError{
			Reason:  ReasonPast,
			Message: "⚠️ Esa hora ya pasó. ¿Quieres agendar para otro momento?",
		}
	}

	local := t.In(v.hours.loc())
	closeHour, open := v.hours.CloseHourFor(local.Weekday())
	if !open {
		return &ValidationError{
			Reason:  ReasonClosedDay,
			Message: "🔒 Solo trabajamos de lunes a sábado. ¿Qué otro día te gustaría?",
		}
	}
	if !v.hours.IsOpenAt(local) {
		return &ValidationError{
			Reason:  ReasonOutsideHours,
			Message: v.outsideHoursMessage(local.Weekday(), closeHour),
		}
	}

	if !v.hours.OnGrid(local) {
		suggestion := v.hours.FloorToGrid(local)
		return &ValidationError{
			Reason:     ReasonOffGrid,
			Message:    fmt.Sprintf("Programamos citas a horas exactas o medias horas. ¿Te gustaría a las %s?", Clock24(suggestion)),
			Suggestion: suggestion,
		}
	}
	return nil
}

func (v *Validator) outsideHoursMessage(weekday time.Weekday, closeHour int) string {
	openLabel := hourLabel(v.hours.OpenHour)
	closeLabel := hourLabel(closeHour)
	if weekday == time.Saturday {
		return fmt.Sprintf("⏰ Nuestro horario el sábado es de %s a %s. ¿Qué hora te viene bien?", openLabel, closeLabel)
	}
	return fmt.Sprintf("⏰ Nuestro horario es de %s a %s de lunes a viernes. ¿Qué hora te viene bien?", openLabel, closeLabel)
}

// hourLabel renders a whole hour as "10am" / "8pm".
func hourLabel(hour int) string {
	switch {
	case hour == 0:
		return "12am"
	case hour < 12:
		return fmt.Sprintf("%dam", hour)
	case hour == 12:
		return "12pm"
	default:
		return fmt.Sprintf("%dpm", hour-12)
	}
}
