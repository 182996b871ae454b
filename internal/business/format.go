package business

import (
	"fmt"
	"time"
)

var weekdayNames = [...]string{"Domingo", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado"}

var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// WeekdayName returns the capitalized Spanish weekday name.
func WeekdayName(d time.Weekday) string {
	return weekdayNames[d]
}

// MonthName returns the lowercase Spanish month name.
func MonthName(m time.Month) string {
	return monthNames[m-1]
}

// FormatDate renders t as "Jueves 22 de octubre a las 16:00".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%s %02d de %s a las %s", WeekdayName(t.Weekday()), t.Day(), MonthName(t.Month()), Clock24(t))
}

// FormatDay renders t as "Jueves 22 de octubre".
func FormatDay(t time.Time) string {
	return fmt.Sprintf("%s %d de %s", WeekdayName(t.Weekday()), t.Day(), MonthName(t.Month()))
}

// Clock24 renders the time of day as "16:00".
func Clock24(t time.Time) string {
	return t.Format("15:04")
}

// Clock12 renders the time of day as "4:00pm".
func Clock12(t time.Time) string {
	hour := t.Hour()
	suffix := "am"
	if hour >= 12 {
		suffix = "pm"
	}
	display := hour
	if display > 12 {
		display -= 12
	}
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%d:%02d%s", display, t.Minute(), suffix)
}
