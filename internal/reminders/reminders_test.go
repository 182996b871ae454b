package reminders

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/barberbot/internal/observability/metrics"
	"github.com/wolfman30/barberbot/pkg/logging"
)

func mexicoCity(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Mexico_City")
	require.NoError(t, err)
	return loc
}

type recordingSender struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (s *recordingSender) SendSMS(ctx context.Context, from, to, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, to+"|"+body)
	return s.err
}

func newScheduler(store Store, now time.Time) *Scheduler {
	return NewScheduler(store, 5*time.Hour, logging.Discard(),
		metrics.NewReminderMetrics(prometheus.NewRegistry()),
		WithSchedulerClock(func() time.Time { return now }))
}

func TestScheduleAppointment(t *testing.T) {
	loc := mexicoCity(t)
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, loc)
	store := NewMemoryStore()
	s := newScheduler(store, now)
	ctx := context.Background()

	r, err := s.ScheduleAppointment(ctx, Appointment{
		BookingID:    "evt-1",
		Recipient:    "whatsapp:+5215512345678",
		CustomerName: "Juan Perez",
		ServiceName:  "Corte de cabello",
		Start:        time.Date(2026, 10, 22, 16, 0, 0, 0, loc),
	})
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.True(t, r.SendAt.Equal(time.Date(2026, 10, 22, 11, 0, 0, 0, loc)), "send at %s", r.SendAt)
	assert.Equal(t, StatusPending, r.Status)

	stored, err := store.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", stored.BookingID)
}

func TestScheduleAppointmentSkipsPastSendTime(t *testing.T) {
	loc := mexicoCity(t)
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, loc)
	store := NewMemoryStore()
	s := newScheduler(store, now)

	r, err := s.ScheduleAppointment(context.Background(), Appointment{
		BookingID: "evt-2",
		Start:     time.Date(2026, 10, 19, 14, 0, 0, 0, loc),
	})
	require.NoError(t, err)
	assert.Nil(t, r)

	due, err := store.ListDue(context.Background(), now.Add(48*time.Hour), 0)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestCancelAppointment(t *testing.T) {
	loc := mexicoCity(t)
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, loc)
	store := NewMemoryStore()
	s := newScheduler(store, now)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		_, err := s.ScheduleAppointment(ctx, Appointment{
			BookingID: id,
			Recipient: "whatsapp:+521",
			Start:     time.Date(2026, 10, 22, 16, 0, 0, 0, loc),
		})
		require.NoError(t, err)
	}

	n, err := s.CancelAppointment(ctx, "a", "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.CancelAppointment(ctx, "", "whatsapp:+521")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only b is still pending")

	n, err = s.CancelAppointment(ctx, "", "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWorkerProcessDue(t *testing.T) {
	loc := mexicoCity(t)
	now := time.Date(2026, 10, 22, 11, 0, 0, 0, loc)
	store := NewMemoryStore()
	ctx := context.Background()

	due := &Reminder{
		BookingID: "evt-1", Recipient: "whatsapp:+521", CustomerName: "Juan Perez", ServiceName: "Corte de cabello",
		AppointmentAt: time.Date(2026, 10, 22, 16, 0, 0, 0, loc), SendAt: now.Add(-time.Minute), Status: StatusPending,
	}
	later := &Reminder{
		BookingID: "evt-2", Recipient: "whatsapp:+522",
		AppointmentAt: time.Date(2026, 10, 23, 16, 0, 0, 0, loc), SendAt: now.Add(time.Hour), Status: StatusPending,
	}
	expired := &Reminder{
		BookingID: "evt-3", Recipient: "whatsapp:+523",
		AppointmentAt: now.Add(-time.Hour), SendAt: now.Add(-6 * time.Hour), Status: StatusPending,
	}
	for _, r := range []*Reminder{due, later, expired} {
		require.NoError(t, store.Create(ctx, r))
	}

	sender := &recordingSender{}
	w := NewWorker(store, sender, WorkerConfig{Location: loc, Now: func() time.Time { return now }}, logging.Discard(), nil)

	n, err := w.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, sender.calls, 1)
	assert.True(t, strings.HasPrefix(sender.calls[0], "whatsapp:+521|"))
	assert.Contains(t, sender.calls[0], "Tienes una cita hoy a las 16:00 para Corte de cabello")

	got, err := store.Get(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, got.Status)
	assert.NotNil(t, got.SentAt)

	got, err = store.Get(ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)

	got, err = store.Get(ctx, later.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}

func TestWorkerRetriesThenFails(t *testing.T) {
	loc := mexicoCity(t)
	now := time.Date(2026, 10, 22, 11, 0, 0, 0, loc)
	store := NewMemoryStore()
	ctx := context.Background()
	r := &Reminder{
		BookingID: "evt-1", Recipient: "whatsapp:+521",
		AppointmentAt: now.Add(5 * time.Hour), SendAt: now, Status: StatusPending,
	}
	require.NoError(t, store.Create(ctx, r))

	sender := &recordingSender{err: errors.New("twilio down")}
	w := NewWorker(store, sender, WorkerConfig{MaxAttempts: 2, Now: func() time.Time { return now }}, logging.Discard(), nil)

	_, err := w.ProcessDue(ctx)
	require.NoError(t, err)
	got, _ := store.Get(ctx, r.ID)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)

	_, err = w.ProcessDue(ctx)
	require.NoError(t, err)
	got, _ = store.Get(ctx, r.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "twilio down", got.LastError)
	assert.Len(t, sender.calls, 2)
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(NewMemoryStore(), &recordingSender{}, WorkerConfig{PollInterval: 10 * time.Millisecond}, logging.Discard(), nil)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestMessageTemplate(t *testing.T) {
	loc := mexicoCity(t)
	r := &Reminder{
		CustomerName:  "Juan Perez",
		ServiceName:   "Corte de barba",
		AppointmentAt: time.Date(2026, 10, 22, 16, 0, 0, 0, loc),
	}

	sameDay := MessageTemplate(r, loc, time.Date(2026, 10, 22, 11, 0, 0, 0, loc))
	assert.Contains(t, sameDay, "⏰ *RECORDATORIO*")
	assert.Contains(t, sameDay, "Hola Juan. ")
	assert.Contains(t, sameDay, "hoy a las 16:00 para Corte de barba")
	assert.Contains(t, sameDay, "'reprogramar cita'")

	dayBefore := MessageTemplate(r, loc, time.Date(2026, 10, 21, 16, 0, 0, 0, loc))
	assert.Contains(t, dayBefore, "el jueves 22 de octubre a las 16:00")
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, nil), mr
}

func TestRedisStoreLifecycle(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	r := &Reminder{
		BookingID: "evt-1", Recipient: "whatsapp:+521", ServiceName: "Manicure",
		AppointmentAt: now.Add(6 * time.Hour), SendAt: now.Add(time.Hour), Status: StatusPending,
	}
	require.NoError(t, store.Create(ctx, r))
	assert.True(t, mr.Exists(reminderKey(r.ID)))

	due, err := store.ListDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = store.ListDue(ctx, now.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "Manicure", due[0].ServiceName)

	r.Status = StatusSent
	require.NoError(t, store.Update(ctx, r))
	due, err = store.ListDue(ctx, now.Add(2*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due, "sent reminders leave the due index")

	_, err = store.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreCancel(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	a := &Reminder{BookingID: "a", Recipient: "whatsapp:+521", AppointmentAt: now.Add(6 * time.Hour), SendAt: now.Add(time.Hour), Status: StatusPending}
	b := &Reminder{BookingID: "b", Recipient: "whatsapp:+521", AppointmentAt: now.Add(30 * time.Hour), SendAt: now.Add(25 * time.Hour), Status: StatusPending}
	require.NoError(t, store.Create(ctx, a))
	require.NoError(t, store.Create(ctx, b))

	n, err := store.CancelByBooking(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)

	n, err = store.CancelByRecipient(ctx, "whatsapp:+521")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	due, err := store.ListDue(ctx, now.Add(48*time.Hour), 0)
	require.NoError(t, err)
	assert.Empty(t, due)
}
