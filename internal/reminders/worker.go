package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/barberbot/internal/observability/metrics"
	"github.com/wolfman30/barberbot/pkg/logging"
)

// SMSSender abstracts outbound SMS sending. An empty from uses the sender's default number.
type SMSSender interface {
	SendSMS(ctx context.Context, from, to, body string) error
}

// WorkerConfig tunes the delivery loop.
type WorkerConfig struct {
	From         string
	Location     *time.Location
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	Now          func() time.Time
}

// Worker delivers due reminders.
type Worker struct {
	store   Store
	sender  SMSSender
	cfg     WorkerConfig
	logger  *logging.Logger
	metrics *metrics.ReminderMetrics
}

// NewWorker creates a reminder worker.
func NewWorker(store Store, sender SMSSender, cfg WorkerConfig, logger *logging.Logger, m *metrics.ReminderMetrics) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Worker{store: store, sender: sender, cfg: cfg, logger: logger, metrics: m}
}

// Run polls for due reminders until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("reminders worker: started", "poll_interval", w.cfg.PollInterval.String())
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.ProcessDue(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("reminders worker: poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			w.logger.Info("reminders worker: stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessDue sends every pending reminder that is due.
// Returns the number of reminders sent.
func (w *Worker) ProcessDue(ctx context.Context) (int, error) {
	now := w.cfg.Now()
	due, err := w.store.ListDue(ctx, now, w.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("reminders worker: list due: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	w.logger.Info("reminders worker: processing due reminders", "count", len(due))

	sent := 0
	for i := range due {
		r := &due[i]
		if err := w.processOne(ctx, r, now); err != nil {
			w.logger.Error("reminders worker: failed to process reminder",
				"id", r.ID, "attempts", r.Attempts, "error", err)
			continue
		}
		if r.Status == StatusSent {
			sent++
		}
	}
	return sent, nil
}

func (w *Worker) processOne(ctx context.Context, r *Reminder, now time.Time) error {
	r.UpdatedAt = now.UTC()

	if !r.AppointmentAt.After(now) {
		r.Status = StatusFailed
		r.LastError = "appointment already started"
		w.metrics.ObserveProcessed("expired")
		return w.store.Update(ctx, r)
	}

	body := MessageTemplate(r, w.cfg.Location, now)
	if err := w.sender.SendSMS(ctx, w.cfg.From, r.Recipient, body); err != nil {
		r.Attempts++
		r.LastError = err.Error()
		status := "retry"
		if r.Attempts >= w.cfg.MaxAttempts {
			r.Status = StatusFailed
			status = "failed"
		}
		w.metrics.ObserveProcessed(status)
		if uerr := w.store.Update(ctx, r); uerr != nil {
			return fmt.Errorf("mark failed: %w", uerr)
		}
		return fmt.Errorf("send sms: %w", err)
	}

	sentAt := now.UTC()
	r.Status = StatusSent
	r.SentAt = &sentAt
	r.LastError = ""
	if err := w.store.Update(ctx, r); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	w.metrics.ObserveProcessed("sent")

	w.logger.Info("reminders worker: reminder sent",
		"id", r.ID, "booking_id", r.BookingID, "service", r.ServiceName)
	return nil
}
