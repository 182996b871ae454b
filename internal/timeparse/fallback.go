package timeparse

import (
	"fmt"
	"sort"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

// Fallback is the last-resort parser tried when no strategy claims the input.
type Fallback func(text string, now time.Time) (time.Time, error)

// substitutions translate Spanish fragments the general-purpose parser handles poorly.
var substitutions = map[string]string{
	"de la manana":  "am",
	"de la tarde":   "pm",
	"de la noche":   "pm",
	"pasado manana": "day after tomorrow",
	"manana":        "tomorrow",
	"proximo":       "next",
	"siguiente":     "next",
	"a las":         "at",
}

// substitutionOrder applies longer phrases first so "de la manana" wins over "manana".
var substitutionOrder = func() []string {
	keys := make([]string, 0, len(substitutions))
	for k := range substitutions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// Translate applies the fallback dictionary to already folded text.
func Translate(text string) string {
	for _, k := range substitutionOrder {
		text = strings.ReplaceAll(text, k, substitutions[k])
	}
	return text
}

// DateparserFallback parses with go-dateparser, preferring future dates and
// interpreting naive expressions in loc.
func DateparserFallback(loc *time.Location) Fallback {
	return func(text string, now time.Time) (time.Time, error) {
		cfg := &dps.Configuration{
			CurrentTime:         now,
			DefaultTimezone:     loc,
			PreferredDateSource: dps.Future,
		}
		dt, err := dps.Parse(cfg, Translate(text))
		if err != nil {
			return time.Time{}, fmt.Errorf("timeparse: dateparser: %w", err)
		}
		if dt.Time.IsZero() {
			return time.Time{}, fmt.Errorf("timeparse: dateparser returned no date for %q", text)
		}
		return dt.Time.In(loc), nil
	}
}

// safeFallback runs fn and turns a panic into a failure.
func safeFallback(fn Fallback, text string, now time.Time) (t time.Time, err error) {
	defer func() {
		if r := recover(); r != nil {
			t = time.Time{}
			err = fmt.Errorf("timeparse: fallback panic: %v", r)
		}
	}()
	return fn(text, now)
}
