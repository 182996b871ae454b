// Package notify e-mails the shop operator about bookings that need attention.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/barberbot/internal/business"
	"github.com/wolfman30/barberbot/pkg/logging"
)

// AlertKind names the event an operator alert reports.
type AlertKind string

const (
	AlertBookingFailed    AlertKind = "booking_failed"
	AlertBookingConfirmed AlertKind = "booking_confirmed"
	AlertBookingCancelled AlertKind = "booking_cancelled"
)

// OperatorAlert describes a booking event for the operator.
type OperatorAlert struct {
	Kind         AlertKind
	CustomerName string
	Phone        string
	Sender       string
	ServiceName  string
	BookingID    string
	Start        time.Time
	Error        string
}

// AlerterConfig selects who receives alerts and which events are sent.
type AlerterConfig struct {
	OperatorEmail string
	BusinessName  string
	Location      *time.Location
	// NotifyConfirmed also mails successful bookings, not only failures.
	NotifyConfirmed bool
}

// Alerter turns booking events into operator e-mails.
type Alerter struct {
	email  EmailSender
	cfg    AlerterConfig
	logger *logging.Logger
}

func NewAlerter(email EmailSender, cfg AlerterConfig, logger *logging.Logger) *Alerter {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Alerter{email: email, cfg: cfg, logger: logger}
}

// Alert sends alert to the operator. Without an operator address or sender it only logs.
func (a *Alerter) Alert(ctx context.Context, alert OperatorAlert) error {
	if alert.Kind == AlertBookingConfirmed && !a.cfg.NotifyConfirmed {
		return nil
	}
	if a.email == nil || a.cfg.OperatorEmail == "" {
		a.logger.Debug("notify: operator email not configured, skipping alert", "kind", alert.Kind)
		return nil
	}

	msg := EmailMessage{
		To:      a.cfg.OperatorEmail,
		Subject: a.subject(alert),
		Body:    a.textBody(alert),
		HTML:    a.htmlBody(alert),
	}
	if err := a.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: send operator alert: %w", err)
	}
	return nil
}

func (a *Alerter) subject(alert OperatorAlert) string {
	var what string
	switch alert.Kind {
	case AlertBookingFailed:
		what = "No se pudo registrar una cita"
	case AlertBookingConfirmed:
		what = "Nueva cita confirmada"
	case AlertBookingCancelled:
		what = "Cita cancelada"
	default:
		what = "Aviso"
	}
	prefix := ""
	if a.cfg.BusinessName != "" {
		prefix = "[" + a.cfg.BusinessName + "] "
	}
	if alert.CustomerName != "" {
		return fmt.Sprintf("%s%s: %s", prefix, what, alert.CustomerName)
	}
	return prefix + what
}

func (a *Alerter) fields(alert OperatorAlert) [][2]string {
	rows := [][2]string{
		{"Cliente", alert.CustomerName},
		{"Teléfono", alert.Phone},
		{"Contacto", alert.Sender},
		{"Servicio", alert.ServiceName},
	}
	if !alert.Start.IsZero() {
		rows = append(rows, [2]string{"Fecha", business.FormatDate(alert.Start.In(a.cfg.Location))})
	}
	if alert.BookingID != "" {
		rows = append(rows, [2]string{"Evento", alert.BookingID})
	}
	if alert.Error != "" {
		rows = append(rows, [2]string{"Error", alert.Error})
	}
	return rows
}

func (a *Alerter) textBody(alert OperatorAlert) string {
	var b strings.Builder
	if alert.Kind == AlertBookingFailed {
		b.WriteString("El calendario rechazó una reserva. Contacta al cliente para confirmar su cita.\n\n")
	}
	for _, row := range a.fields(alert) {
		if row[1] == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", row[0], row[1])
	}
	return b.String()
}

func (a *Alerter) htmlBody(alert OperatorAlert) string {
	var b strings.Builder
	if alert.Kind == AlertBookingFailed {
		b.WriteString("<p><strong>El calendario rechazó una reserva.</strong> Contacta al cliente para confirmar su cita.</p>")
	}
	b.WriteString("<table>")
	for _, row := range a.fields(alert) {
		if row[1] == "" {
			continue
		}
		fmt.Fprintf(&b, "<tr><td><strong>%s</strong></td><td>%s</td></tr>", html.EscapeString(row[0]), html.EscapeString(row[1]))
	}
	b.WriteString("</table>")
	return b.String()
}
