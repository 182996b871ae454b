package reminders

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/barberbot/internal/business"
)

// MessageTemplate renders the reminder text. The appointment is described as "hoy"
// when it falls on the same local day the reminder is sent.
func MessageTemplate(r *Reminder, loc *time.Location, sentAt time.Time) string {
	if loc == nil {
		loc = time.UTC
	}
	appt := r.AppointmentAt.In(loc)
	sent := sentAt.In(loc)

	when := "hoy a las " + business.Clock24(appt)
	if appt.YearDay() != sent.YearDay() || appt.Year() != sent.Year() {
		when = "el " + strings.ToLower(business.FormatDate(appt))
	}

	greeting := ""
	if name := strings.TrimSpace(r.CustomerName); name != "" {
		greeting = fmt.Sprintf("Hola %s. ", firstName(name))
	}

	return fmt.Sprintf("⏰ *RECORDATORIO*\n\n%sTienes una cita %s para %s.\n\n"+
		"Si necesitas cancelar, responde 'cancelar cita'.\n"+
		"Si necesitas reprogramar, responde 'reprogramar cita'.",
		greeting, when, r.ServiceName)
}

func firstName(name string) string {
	if i := strings.IndexByte(name, ' '); i > 0 {
		return name[:i]
	}
	return name
}
