package timeparse

import (
	"regexp"
	"time"

	"github.com/wolfman30/barberbot/pkg/textnorm"
)

var (
	dayWordRe    = regexp.MustCompile(`(?:^|\s)(hoy|pasado manana|manana)(?:\s|$)`)
	dayWeekdayRe = regexp.MustCompile(`(?:^|\s)(lunes|martes|miercoles|jueves|viernes|sabado|domingo)(?:\s|$)`)
	dayNumericRe = regexp.MustCompile(`(?:^|\s)(\d{1,2})[/.-](\d{1,2})(?:[/.-](\d{2,4}))?(?:\s|$)`)
)

// ParseDay resolves a bare day reference ("manana", "viernes", "15/04") to
// midnight of that day. Weekday names follow Parse: today's weekday means next week.
func (p *Parser) ParseDay(text string, now time.Time) (time.Time, bool) {
	folded := textnorm.Fold(textnorm.StripPunctuation(text))
	if folded == "" {
		return time.Time{}, false
	}
	now = now.In(p.loc)

	for _, loc := range dayWordRe.FindAllStringSubmatchIndex(folded, -1) {
		word := folded[loc[2]:loc[3]]
		if word == "manana" && dayPartPrefixRe.MatchString(folded[:loc[0]]) {
			continue
		}
		switch word {
		case "hoy":
			return at(now, 0, 0), true
		case "manana":
			return at(now.AddDate(0, 0, 1), 0, 0), true
		default:
			return at(now.AddDate(0, 0, 2), 0, 0), true
		}
	}
	if m := dayWeekdayRe.FindStringSubmatch(folded); m != nil {
		return at(now.AddDate(0, 0, daysUntil(now.Weekday(), weekdays[m[1]])), 0, 0), true
	}
	if m := dayNumericRe.FindStringSubmatch(folded); m != nil {
		day, month, year, ok := calendarDate(m[1], m[2], m[3], now)
		if !ok {
			return time.Time{}, false
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, p.loc)
		if t.Day() != day || int(t.Month()) != month {
			return time.Time{}, false
		}
		return t, true
	}

	if p.fallback == nil {
		return time.Time{}, false
	}
	t, err := safeFallback(p.fallback, folded, now)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return at(t.In(p.loc), 0, 0), true
}
