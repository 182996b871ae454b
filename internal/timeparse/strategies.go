package timeparse

import (
	"regexp"
	"strconv"
	"time"
)

// Strategy recognizes one family of expressions. matched reports that the
// strategy claimed the input; a claimed input with a zero result is unparseable.
type Strategy struct {
	Name  string
	Match func(text string, now time.Time) (t time.Time, matched bool)
}

// DefaultStrategies returns the pattern strategies in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "tomorrow", Match: MatchTomorrow},
		{Name: "weekday", Match: MatchWeekday},
		{Name: "today", Match: MatchToday},
		{Name: "numeric_date", Match: MatchNumericDate},
		{Name: "bare_date", Match: MatchBareDate},
	}
}

const (
	clockPattern  = `(?:a\s+las?\s+)?(\d{1,2})(?::(\d{1,2}))?\s*`
	periodPattern = `(am|pm|a\.m\.|p\.m\.|de la manana|de la tarde|de la noche)?`
	// "en la tarde" between the day and the clock stands in for the period.
	dayPartPattern = `(?:(?:en|por|de)\s+la\s+(manana|tarde|noche)\s+)?`
)

var (
	tomorrowRe = regexp.MustCompile(`(?:^|\s)(pasado\s+)?manana\s+` + dayPartPattern + clockPattern + periodPattern)
	weekdayRe  = regexp.MustCompile(`(?:^|\s)(?:el\s+)?(?:proximo\s+)?(lunes|martes|miercoles|jueves|viernes|sabado|domingo)\s+` + dayPartPattern + clockPattern + periodPattern)
	todayRe    = regexp.MustCompile(`(?:^|\s)hoy\s+` + dayPartPattern + clockPattern + periodPattern)
	numericRe  = regexp.MustCompile(`(\d{1,2})[/.-](\d{1,2})(?:[/.-](\d{2,4}))?\s+` + clockPattern + periodPattern)
	bareDateRe = regexp.MustCompile(`(?:^|\s)(\d{1,2})([/.-])(\d{1,2})(?:[/.-](\d{2,4}))?(?:$|[\s,;!?]|\.(?:\s|$))`)

	// "en la manana" is the morning, not tomorrow.
	dayPartPrefixRe = regexp.MustCompile(`(?:^|\s)(?:de|en|por)\s+la$`)
)

var weekdays = map[string]time.Weekday{
	"domingo":   time.Sunday,
	"lunes":     time.Monday,
	"martes":    time.Tuesday,
	"miercoles": time.Wednesday,
	"jueves":    time.Thursday,
	"viernes":   time.Friday,
	"sabado":    time.Saturday,
}

// MatchTomorrow handles "manana a las 10am" (and "pasado manana ..." two days out).
// A "manana" preceded by "en la", "de la" or "por la" names a part of the day
// and is skipped.
func MatchTomorrow(text string, now time.Time) (time.Time, bool) {
	for _, loc := range tomorrowRe.FindAllStringSubmatchIndex(text, -1) {
		if dayPartPrefixRe.MatchString(text[:loc[0]]) {
			continue
		}
		m := submatches(text, loc)
		hour, minute, ok := clock(m[3], m[4], withDayPart(m[5], m[2]))
		if !ok {
			return time.Time{}, true
		}
		days := 1
		if m[1] != "" {
			days = 2
		}
		return at(now.AddDate(0, 0, days), hour, minute), true
	}
	return time.Time{}, false
}

// MatchWeekday handles "el jueves a las 4pm". The result is always strictly after
// today: naming today's weekday means the same day next week.
func MatchWeekday(text string, now time.Time) (time.Time, bool) {
	m := weekdayRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	hour, minute, ok := clock(m[3], m[4], withDayPart(m[5], m[2]))
	if !ok {
		return time.Time{}, true
	}
	return at(now.AddDate(0, 0, daysUntil(now.Weekday(), weekdays[m[1]])), hour, minute), true
}

// MatchToday handles "hoy a las 5pm"; a time already past rolls to tomorrow.
func MatchToday(text string, now time.Time) (time.Time, bool) {
	m := todayRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	hour, minute, ok := clock(m[2], m[3], withDayPart(m[4], m[1]))
	if !ok {
		return time.Time{}, true
	}
	t := at(now, hour, minute)
	if t.Before(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t, true
}

// MatchNumericDate handles "22/10[/26] a las 4pm" with "/", "." or "-" separators.
// Invalid calendar dates such as 30/02 are claimed and reported unparseable.
func MatchNumericDate(text string, now time.Time) (time.Time, bool) {
	m := numericRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	day, month, year, ok := calendarDate(m[1], m[2], m[3], now)
	if !ok {
		return time.Time{}, true
	}
	hour, minute, ok := clock(m[4], m[5], m[6])
	if !ok {
		return time.Time{}, true
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, now.Location())
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, true
	}
	return t, true
}

// MatchBareDate claims a date with no time, such as "30/02/2027", only when it
// names no real calendar day. Valid dates are left to later strategies and the
// fallback. A two-part dotted token like "10.30" reads as a clock time and is
// not claimed.
func MatchBareDate(text string, now time.Time) (time.Time, bool) {
	for _, m := range bareDateRe.FindAllStringSubmatch(text, -1) {
		if m[2] == "." && m[4] == "" {
			continue
		}
		if !validDate(m[1], m[3], m[4], now) {
			return time.Time{}, true
		}
	}
	return time.Time{}, false
}

func validDate(dayStr, monthStr, yearStr string, now time.Time) bool {
	day, month, year, ok := calendarDate(dayStr, monthStr, yearStr, now)
	if !ok {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
	return t.Day() == day && int(t.Month()) == month
}

func calendarDate(dayStr, monthStr, yearStr string, now time.Time) (day, month, year int, ok bool) {
	day, _ = strconv.Atoi(dayStr)
	month, _ = strconv.Atoi(monthStr)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, 0, 0, false
	}
	year = now.Year()
	if yearStr != "" {
		year, _ = strconv.Atoi(yearStr)
		if year < 100 {
			year += 2000
		}
	}
	return day, month, year, true
}

// clock converts hour/minute/period captures into a 24h time of day.
func clock(hourStr, minuteStr, period string) (hour, minute int, ok bool) {
	hour, err := strconv.Atoi(hourStr)
	if err != nil {
		return 0, 0, false
	}
	if minuteStr != "" {
		if minute, err = strconv.Atoi(minuteStr); err != nil {
			return 0, 0, false
		}
	}
	switch period {
	case "pm", "p.m.", "de la tarde", "de la noche":
		if hour < 12 {
			hour += 12
		}
	case "am", "a.m.", "de la manana":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func withDayPart(period, part string) string {
	if period == "" && part != "" {
		return "de la " + part
	}
	return period
}

func submatches(text string, loc []int) []string {
	out := make([]string, len(loc)/2)
	for i := range out {
		if loc[2*i] >= 0 {
			out[i] = text[loc[2*i]:loc[2*i+1]]
		}
	}
	return out
}

func daysUntil(from, to time.Weekday) int {
	days := (int(to) - int(from) + 7) % 7
	if days == 0 {
		days = 7
	}
	return days
}

func at(day time.Time, hour, minute int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, day.Location())
}
