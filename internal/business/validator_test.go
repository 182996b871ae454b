package business

import (
	"errors"
	"testing"
	"time"
)

func mustLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func reasonOf(t *testing.T, err error) Reason {
	t.Helper()
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	return verr.Reason
}

func TestValidateOrderedChecks(t *testing.T) {
	loc := mustLoc(t)
	v := NewValidator(DefaultHours(loc))
	// Monday 19 Oct 2026, 09:00.
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, loc)

	tests := []struct {
		name string
		at   time.Time
		want Reason
	}{
		{"zero time", time.Time{}, ReasonUnparsed},
		{"an hour ago", now.Add(-time.Hour), ReasonPast},
		{"within grace is not past", time.Date(2026, 10, 19, 10, 0, 0, 0, loc).Add(-31 * time.Minute), ReasonOutsideHours},
		{"sunday", time.Date(2026, 10, 25, 12, 0, 0, 0, loc), ReasonClosedDay},
		{"weekday before open", time.Date(2026, 10, 20, 9, 30, 0, 0, loc), ReasonOutsideHours},
		{"weekday at close", time.Date(2026, 10, 20, 20, 0, 0, 0, loc), ReasonOutsideHours},
		{"weekday last slot", time.Date(2026, 10, 20, 19, 30, 0, 0, loc), ""},
		{"weekday opening", time.Date(2026, 10, 20, 10, 0, 0, 0, loc), ""},
		{"saturday at 17", time.Date(2026, 10, 24, 17, 0, 0, 0, loc), ReasonOutsideHours},
		{"saturday 16:30", time.Date(2026, 10, 24, 16, 30, 0, 0, loc), ""},
		{"off grid", time.Date(2026, 10, 22, 16, 15, 0, 0, loc), ReasonOffGrid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reasonOf(t, v.Validate(tt.at, now))
			if got != tt.want {
				t.Errorf("Validate(%s) reason = %q, want %q", tt.at, got, tt.want)
			}
		})
	}
}

func TestValidateSundayAlwaysRejected(t *testing.T) {
	loc := mustLoc(t)
	v := NewValidator(DefaultHours(loc))
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, loc)
	sunday := time.Date(2026, 10, 25, 0, 0, 0, 0, loc)
	for m := 0; m < 24*60; m += 30 {
		at := sunday.Add(time.Duration(m) * time.Minute)
		if err := v.Validate(at, now); err == nil {
			t.Fatalf("Validate(%s) = nil, want rejection", at)
		}
	}
}

func TestValidateHoursBoundaries(t *testing.T) {
	loc := mustLoc(t)
	v := NewValidator(DefaultHours(loc))
	now := time.Date(2026, 10, 19, 0, 0, 0, 0, loc)

	// Tuesday through Saturday of the same week.
	for day := 20; day <= 24; day++ {
		closeHour := 20
		if day == 24 {
			closeHour = 17
		}
		for hour := 0; hour < 24; hour++ {
			at := time.Date(2026, 10, day, hour, 0, 0, 0, loc)
			err := v.Validate(at, now)
			inside := hour >= 10 && hour < closeHour
			if inside && err != nil {
				t.Errorf("Validate(%s) = %v, want nil", at, err)
			}
			if !inside && err == nil {
				t.Errorf("Validate(%s) = nil, want rejection", at)
			}
		}
	}
}

func TestValidateOffGridSuggestion(t *testing.T) {
	loc := mustLoc(t)
	v := NewValidator(DefaultHours(loc))
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, loc)

	for minute := 1; minute < 60; minute++ {
		if minute == 30 {
			continue
		}
		at := time.Date(2026, 10, 21, 12, minute, 0, 0, loc)
		err := v.Validate(at, now)
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Reason != ReasonOffGrid {
			t.Fatalf("Validate(%s) = %v, want off grid", at, err)
		}
		if m := verr.Suggestion.Minute(); m != 0 && m != 30 {
			t.Errorf("suggestion minute = %d, want 0 or 30", m)
		}
		if verr.Suggestion.After(at) {
			t.Errorf("suggestion %s is after requested %s", verr.Suggestion, at)
		}
	}
}

func TestValidateMessages(t *testing.T) {
	loc := mustLoc(t)
	v := NewValidator(DefaultHours(loc))
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, loc)

	err := v.Validate(time.Date(2026, 10, 24, 18, 0, 0, 0, loc), now)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := "⏰ Nuestro horario el sábado es de 10am a 5pm. ¿Qué hora te viene bien?"
	if verr.Message != want {
		t.Errorf("Message = %q, want %q", verr.Message, want)
	}

	err = v.Validate(time.Date(2026, 10, 21, 16, 45, 0, 0, loc), now)
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	want = "Programamos citas a horas exactas o medias horas. ¿Te gustaría a las 16:30?"
	if verr.Message != want {
		t.Errorf("Message = %q, want %q", verr.Message, want)
	}
}
