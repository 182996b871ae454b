package conversation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/barberbot/internal/business"
)

const (
	msgUnexpectedError   = "🔧 Ocurrió un error inesperado. Por favor envía 'hola' para comenzar de nuevo."
	msgAskName           = "✍️ Por favor dime tu nombre para agendar tu cita:"
	msgNameTooShort      = "Por favor proporciona tu nombre completo."
	msgInvalidPhone      = "Por favor proporciona un número de teléfono válido."
	msgChooseFirst       = "Por favor elige primero un servicio:\n\n"
	msgUnknownService    = "No reconozco ese servicio. Por favor elige uno de nuestra lista:\n\n"
	msgAskAnotherTime    = "Entendido. Por favor indica otra fecha y hora que te convenga:"
	msgConfirmReprompt   = "Por favor responde 'si' para confirmar tu cita o 'no' para elegir otro horario."
	msgBookingFailed     = "⚠️ Lo sentimos, hubo un problema al registrar tu cita en nuestro calendario. Por favor intenta confirmar de nuevo respondiendo 'si', o contáctanos directamente al teléfono de la barbería."
	msgConfirmCancel     = "¿Estás seguro que deseas cancelar tu cita? Responde 'SI' para confirmar."
	msgCancelled         = "✅ Tu cita ha sido cancelada.\n\nSi deseas agendar una nueva cita, escribe 'agendar'."
	msgCancelNotFound    = "No encontré una cita próxima a tu nombre. Si crees que es un error, contacta directamente a la barbería."
	msgCancelFailed      = "⚠️ No pude cancelar tu cita en este momento. Por favor responde 'SI' para intentarlo de nuevo o contacta directamente a la barbería."
	msgCancelAborted     = "Cancelación abortada. Tu cita sigue en pie. ¿En qué más te puedo ayudar?"
	msgConfirmReschedule = "¿Deseas reprogramar tu cita para otra fecha y hora? Responde 'SI' para confirmar."
	msgNothingToResched  = "No encontré una cita confirmada en esta conversación para reprogramar. Escribe 'agendar' para reservar una nueva."
	msgRescheduleFailed  = "⚠️ No pude cancelar tu cita actual, así que no la reprogramé. Tu cita original sigue en pie. Por favor intenta más tarde o contacta directamente a la barbería."
	msgRescheduleAborted = "Reprogramación cancelada. Tu cita sigue en pie."
	msgAskDay            = "¿Para qué día quieres ver los horarios disponibles? (Ejemplo: 'mañana', 'viernes', '15/04')"
	msgUnknownDay        = "No entendí el día. Escribe por ejemplo 'mañana', 'viernes' o '15/04', o 'reiniciar' para empezar de nuevo."
	msgClosedDay         = "Lo siento, solo trabajamos de lunes a sábado. Por favor elige otro día."
	msgPastDay           = "Esa fecha ya pasó. Por favor elige otro día."
	msgCalendarDown      = "Lo siento, no puedo acceder al calendario en este momento. Por favor intenta de nuevo en unos minutos."
)

func welcomeMessage(businessName string, hours business.Hours) string {
	return fmt.Sprintf("¡Bienvenido a %s! ✂️\n\n"+
		"Puedes preguntar por:\n"+
		"* 'servicios' para ver opciones\n"+
		"* 'agendar' para reservar cita\n"+
		"* 'horarios disponibles' para ver horarios libres\n"+
		"* 'reprogramar' para cambiar una cita existente\n\n%s",
		businessName, hours.Summary())
}

func askNameForService(svc business.Service) string {
	return fmt.Sprintf("✍️ Por favor dime tu nombre para agendar tu *%s*:", svc.DisplayName())
}

func askPhone(name string) string {
	return fmt.Sprintf("Gracias %s. Por favor comparte un número de teléfono:", name)
}

func askServiceAfterName(name, catalog string) string {
	return fmt.Sprintf("Gracias %s. Ahora elige el servicio que deseas:\n\n%s", name, catalog)
}

func askDatetime(svc business.Service, hours business.Hours) string {
	return fmt.Sprintf("¿Cuándo te gustaría agendar tu cita para *%s*?\n\n"+
		"📅 Nuestro horario es %s\n"+
		"⏱️ Duración: %d minutos\n\n"+
		"Por favor escribe la fecha y hora (por ejemplo: 'mañana a las 10am', 'jueves a las 4pm')\n"+
		"O escribe 'ver horarios' para consultar disponibilidad.\n"+
		"Si prefieres otro servicio, escribe su nombre (por ejemplo 'corte de barba').",
		svc.DisplayName(), hours.Inline(), svc.DurationMinutes)
}

func askNewDatetime(svc business.Service) string {
	return fmt.Sprintf("Tu cita anterior fue cancelada. ¿Para cuándo te gustaría la nueva cita de *%s*?\n\n"+
		"Por favor escribe la fecha y hora (por ejemplo: 'mañana a las 10am', 'jueves a las 4pm').",
		svc.DisplayName())
}

func confirmPrompt(draft BookingDraft, svc business.Service) string {
	return fmt.Sprintf("¿Confirmas tu cita para %s el %s?\n\n"+
		"Nombre: %s\n"+
		"Servicio: %s\n"+
		"Precio: %s\n"+
		"Duración: %d minutos\n\n"+
		"Responde 'si' para confirmar o 'no' para elegir otra fecha.",
		svc.DisplayName(), business.FormatDate(draft.RequestedTime),
		draft.CustomerName, svc.DisplayName(), svc.PriceLabel, svc.DurationMinutes)
}

func bookingConfirmed(start time.Time, svc business.Service, reminderLead time.Duration) string {
	reminder := ""
	if reminderLead > 0 {
		reminder = fmt.Sprintf("Te enviaremos un recordatorio %s antes.\n", leadLabel(reminderLead))
	}
	return fmt.Sprintf("✅ ¡Tu cita ha sido confirmada!\n\n"+
		"📆 %s\n"+
		"💇‍♂️ %s\n"+
		"💰 %s\n\n"+
		"%s"+
		"Para cancelar, responde con 'cancelar cita'.\n"+
		"Para reprogramar, responde con 'reprogramar cita'.",
		business.FormatDate(start), svc.DisplayName(), svc.PriceLabel, reminder)
}

func leadLabel(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hora"
		}
		return fmt.Sprintf("%d horas", h)
	}
	return fmt.Sprintf("%d minutos", int(d/time.Minute))
}

func slotTakenMessage(alternatives []time.Time) string {
	if len(alternatives) == 0 {
		return "Ese horario ya está ocupado y no tenemos más disponibilidad para ese día. ¿Prefieres otro día?"
	}
	var b strings.Builder
	b.WriteString("Ese horario ya está ocupado. Te puedo ofrecer estos horarios alternativos para el mismo día:\n\n")
	for i, alt := range alternatives {
		fmt.Fprintf(&b, "%d. %s hrs\n", i+1, business.Clock24(alt))
	}
	b.WriteString("\nResponde con el número o indica otro día/hora que prefieras.")
	return b.String()
}

// daySlotsMessage groups free slots by hour in 12-hour format.
func daySlotsMessage(day time.Time, slots []time.Time) string {
	if len(slots) == 0 {
		return fmt.Sprintf("Lo siento, no hay horarios disponibles para el %s. Por favor elige otro día.", business.FormatDay(day))
	}

	byHour := make(map[int][]string)
	for _, s := range slots {
		byHour[s.Hour()] = append(byHour[s.Hour()], business.Clock12(s))
	}
	hours := make([]int, 0, len(byHour))
	for h := range byHour {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	var b strings.Builder
	fmt.Fprintf(&b, "📅 *Horarios disponibles para %s:*\n\n", business.FormatDay(day))
	for _, h := range hours {
		fmt.Fprintf(&b, "• %s\n", strings.Join(byHour[h], ", "))
	}
	b.WriteString("\n_Estos horarios son para servicios estándar de 30 minutos. Algunos servicios pueden tener diferentes duraciones._")
	return b.String()
}

func resumeDatetimePrompt(svc business.Service) string {
	return fmt.Sprintf("\n\n¿Qué horario prefieres para tu *%s*? Escribe la fecha y hora, por ejemplo 'mañana a las 10am'.", svc.DisplayName())
}

const availabilityFooter = "\n\nPara agendar, escribe 'agendar' seguido del servicio."
