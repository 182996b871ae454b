package calendar

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/barberbot/internal/business"
	"github.com/wolfman30/barberbot/pkg/logging"
)

func testLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Mexico_City")
	require.NoError(t, err)
	return loc
}

func newTestCalendar(t *testing.T, now time.Time) (*Calendar, *MemoryBackend) {
	t.Helper()
	backend := NewMemoryBackend()
	cal := New(backend, business.DefaultHours(now.Location()),
		WithClock(func() time.Time { return now }),
		WithLogger(logging.Discard()))
	return cal, backend
}

func insert(t *testing.T, b *MemoryBackend, ev Event) string {
	t.Helper()
	id, err := b.Insert(context.Background(), ev)
	require.NoError(t, err)
	return id
}

func TestCheckFree(t *testing.T) {
	loc := testLoc(t)
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, loc)
	cal, backend := newTestCalendar(t, now)
	insert(t, backend, Event{
		Start: time.Date(2026, 10, 22, 16, 0, 0, 0, loc),
		End:   time.Date(2026, 10, 22, 17, 0, 0, 0, loc),
	})
	ctx := context.Background()

	tests := []struct {
		name  string
		start time.Time
		dur   time.Duration
		want  bool
	}{
		{"ends exactly at busy start", time.Date(2026, 10, 22, 15, 30, 0, 0, loc), 30 * time.Minute, true},
		{"starts exactly at busy end", time.Date(2026, 10, 22, 17, 0, 0, 0, loc), 30 * time.Minute, true},
		{"inside busy", time.Date(2026, 10, 22, 16, 30, 0, 0, loc), 30 * time.Minute, false},
		{"long service spills into busy", time.Date(2026, 10, 22, 15, 30, 0, 0, loc), 60 * time.Minute, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			free, err := cal.CheckFree(ctx, tt.start, tt.dur)
			require.NoError(t, err)
			assert.Equal(t, tt.want, free)
		})
	}
}

func TestListFreeSlotsSkipsBusyAndRespectsClose(t *testing.T) {
	loc := testLoc(t)
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, loc)
	cal, backend := newTestCalendar(t, now)
	insert(t, backend, Event{
		Start: time.Date(2026, 10, 24, 10, 0, 0, 0, loc),
		End:   time.Date(2026, 10, 24, 11, 0, 0, 0, loc),
	})
	insert(t, backend, Event{
		Start: time.Date(2026, 10, 24, 15, 45, 0, 0, loc),
		End:   time.Date(2026, 10, 24, 16, 15, 0, 0, loc),
	})

	slots, err := cal.ListFreeSlots(context.Background(), time.Date(2026, 10, 24, 0, 0, 0, 0, loc), 30*time.Minute, 100)
	require.NoError(t, err)

	var got []string
	for _, s := range slots {
		got = append(got, s.Format("15:04"))
	}
	assert.Equal(t, []string{
		"11:00", "11:30", "12:00", "12:30", "13:00", "13:30", "14:00", "14:30", "15:00",
		"16:30",
	}, got)
}

func TestListFreeSlotsTodayStartsAfterNow(t *testing.T) {
	loc := testLoc(t)
	now := time.Date(2026, 10, 20, 13, 10, 0, 0, loc)
	cal, _ := newTestCalendar(t, now)

	slots, err := cal.ListFreeSlots(context.Background(), now, 30*time.Minute, 3)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.True(t, slots[0].Equal(time.Date(2026, 10, 20, 13, 30, 0, 0, loc)), "first slot %s", slots[0])
	assert.True(t, slots[2].Equal(time.Date(2026, 10, 20, 14, 30, 0, 0, loc)), "third slot %s", slots[2])

	onGrid := time.Date(2026, 10, 20, 14, 0, 0, 0, loc)
	cal, _ = newTestCalendar(t, onGrid)
	slots, err = cal.ListFreeSlots(context.Background(), onGrid, 30*time.Minute, 1)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.True(t, slots[0].Equal(time.Date(2026, 10, 20, 14, 30, 0, 0, loc)), "slot %s", slots[0])
}

func TestListFreeSlotsClosedAndPastDays(t *testing.T) {
	loc := testLoc(t)
	now := time.Date(2026, 10, 20, 9, 0, 0, 0, loc)
	cal, _ := newTestCalendar(t, now)
	ctx := context.Background()

	slots, err := cal.ListFreeSlots(ctx, time.Date(2026, 10, 25, 0, 0, 0, 0, loc), 30*time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, slots, "sunday")

	slots, err = cal.ListFreeSlots(ctx, time.Date(2026, 10, 19, 0, 0, 0, 0, loc), 30*time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, slots, "yesterday")

	slots, err = cal.ListFreeSlots(ctx, time.Date(2026, 10, 24, 0, 0, 0, 0, loc), 60*time.Minute, 100)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, "16:00", slots[len(slots)-1].Format("15:04"), "60 minute service must end by 17:00 on saturday")
}

func TestListFreeSlotsNeverOverlapsBusy(t *testing.T) {
	loc := testLoc(t)
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, loc)
	rng := rand.New(rand.NewSource(42))
	day := time.Date(2026, 10, 21, 0, 0, 0, 0, loc)

	for round := 0; round < 50; round++ {
		cal, backend := newTestCalendar(t, now)
		var busy []Interval
		for i := 0; i < 1+rng.Intn(6); i++ {
			start := day.Add(time.Duration(9*60+rng.Intn(11*60)) * time.Minute)
			end := start.Add(time.Duration(5+rng.Intn(90)) * time.Minute)
			insert(t, backend, Event{Start: start, End: end})
			busy = append(busy, Interval{Start: start, End: end})
		}
		dur := time.Duration(15*(1+rng.Intn(4))) * time.Minute

		slots, err := cal.ListFreeSlots(context.Background(), day, dur, 100)
		require.NoError(t, err)
		for _, s := range slots {
			for _, b := range busy {
				if b.Overlaps(s, dur) {
					t.Fatalf("round %d: slot %s (%s) overlaps busy %s-%s", round, s.Format("15:04"), dur, b.Start.Format("15:04"), b.End.Format("15:04"))
				}
			}
			if s.Add(dur).After(time.Date(2026, 10, 21, 20, 0, 0, 0, loc)) {
				t.Fatalf("round %d: slot %s ends after close", round, s.Format("15:04"))
			}
		}
	}
}

func TestCreateAndCancelBooking(t *testing.T) {
	loc := testLoc(t)
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, loc)
	cal, backend := newTestCalendar(t, now)
	ctx := context.Background()
	svc, _ := business.DefaultCatalog().Get("paquete-corte-barba")

	id, err := cal.CreateBooking(ctx, BookingDetails{
		CustomerName: "Juan Pérez",
		Phone:        "5512345678",
		Sender:       "whatsapp:+5215512345678",
		Service:      svc,
		Start:        time.Date(2026, 10, 22, 16, 0, 0, 0, loc),
	})
	require.NoError(t, err)

	ev, ok := backend.Get(id)
	require.True(t, ok)
	assert.Equal(t, "Paquete corte y barba - Juan Pérez", ev.Summary)
	assert.True(t, ev.End.Equal(time.Date(2026, 10, 22, 17, 0, 0, 0, loc)), "end %s", ev.End)

	require.NoError(t, cal.CancelBooking(ctx, CancelRequest{BookingID: id}))
	assert.Equal(t, 0, backend.Len())

	err = cal.CancelBooking(ctx, CancelRequest{BookingID: id})
	assert.True(t, errors.Is(err, ErrBookingNotFound))
}

func TestFindBookingMatchesSenderAndStart(t *testing.T) {
	loc := testLoc(t)
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, loc)
	cal, _ := newTestCalendar(t, now)
	ctx := context.Background()
	svc, _ := business.DefaultCatalog().Get("corte-cabello")
	start := time.Date(2026, 10, 22, 16, 0, 0, 0, loc)

	id, err := cal.CreateBooking(ctx, BookingDetails{CustomerName: "Juan", Sender: "whatsapp:+5215512345678", Service: svc, Start: start})
	require.NoError(t, err)

	got, err := cal.FindBooking(ctx, "whatsapp:+5215512345678", start)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = cal.FindBooking(ctx, "whatsapp:+5215599999999", start)
	assert.ErrorIs(t, err, ErrBookingNotFound)
	_, err = cal.FindBooking(ctx, "whatsapp:+5215512345678", start.Add(30*time.Minute))
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestCancelBookingSearch(t *testing.T) {
	loc := testLoc(t)
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, loc)
	cal, backend := newTestCalendar(t, now)
	ctx := context.Background()

	insert(t, backend, Event{ID: "past", CustomerName: "Juan Perez", Start: now.Add(-48 * time.Hour), End: now.Add(-47 * time.Hour)})
	insert(t, backend, Event{ID: "later", CustomerName: "Juan Perez", Start: now.Add(72 * time.Hour), End: now.Add(73 * time.Hour)})
	insert(t, backend, Event{ID: "sooner", CustomerName: "juan pérez", Start: now.Add(24 * time.Hour), End: now.Add(25 * time.Hour)})
	insert(t, backend, Event{ID: "by-sender", Sender: "whatsapp:+521", Start: now.Add(26 * time.Hour), End: now.Add(27 * time.Hour)})

	require.NoError(t, cal.CancelBooking(ctx, CancelRequest{CustomerName: "Juan Perez"}))
	_, stillThere := backend.Get("sooner")
	assert.False(t, stillThere, "earliest future match is cancelled")
	_, stillThere = backend.Get("later")
	assert.True(t, stillThere)

	require.NoError(t, cal.CancelBooking(ctx, CancelRequest{Sender: "whatsapp:+521"}))
	_, stillThere = backend.Get("by-sender")
	assert.False(t, stillThere)

	err := cal.CancelBooking(ctx, CancelRequest{CustomerName: "Nadie"})
	assert.ErrorIs(t, err, ErrBookingNotFound)
	err = cal.CancelBooking(ctx, CancelRequest{})
	assert.ErrorIs(t, err, ErrBookingNotFound)
}
