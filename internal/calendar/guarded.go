package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/barberbot/internal/observability/metrics"
	"github.com/wolfman30/barberbot/pkg/logging"
)

var calendarTracer = otel.Tracer("barberbot.internal.calendar")

// FailureMode says what a failed oracle call turns into.
type FailureMode int

const (
	// Surface returns the error to the caller.
	Surface FailureMode = iota
	// FailOpen answers with the permissive default (free / no slots) and logs the error.
	FailOpen
)

func (m FailureMode) String() string {
	if m == FailOpen {
		return "fail_open"
	}
	return "surface"
}

// Policy decides how Guarded reacts to failed reads and writes.
type Policy struct {
	Reads   FailureMode
	Writes  FailureMode
	Timeout time.Duration
}

// DefaultTimeout bounds every oracle call.
const DefaultTimeout = 8 * time.Second

// DefaultPolicy fails reads open, surfaces writes and bounds calls at 8s.
func DefaultPolicy() Policy {
	return Policy{Reads: FailOpen, Writes: Surface, Timeout: DefaultTimeout}
}

// ErrUnsafePolicy rejects policies that would report a failed write as a booking.
var ErrUnsafePolicy = errors.New("calendar: writes must surface failures")

// Guarded wraps an Oracle with timeouts, tracing, metrics and the failure policy.
type Guarded struct {
	inner   Oracle
	policy  Policy
	logger  *logging.Logger
	metrics *metrics.OracleMetrics
}

// NewGuarded wraps inner. A zero Timeout falls back to DefaultTimeout.
func NewGuarded(inner Oracle, policy Policy, logger *logging.Logger, m *metrics.OracleMetrics) (*Guarded, error) {
	if inner == nil {
		return nil, errors.New("calendar: guarded oracle requires an inner oracle")
	}
	if policy.Writes != Surface {
		return nil, ErrUnsafePolicy
	}
	if policy.Timeout <= 0 {
		policy.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Guarded{inner: inner, policy: policy, logger: logger, metrics: m}, nil
}

// Policy returns the active policy.
func (g *Guarded) Policy() Policy {
	return g.policy
}

func (g *Guarded) call(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := calendarTracer.Start(ctx, "calendar."+op)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, g.policy.Timeout)
	defer cancel()

	started := time.Now()
	// Backends that ignore ctx still cannot hold the caller past the timeout.
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()
	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			status = "timeout"
		}
		span.RecordError(err)
	}
	span.SetAttributes(attribute.String("calendar.status", status))
	g.metrics.ObserveCall(op, status, time.Since(started).Seconds())
	return err
}

// CheckFree reports the slot as free when the read fails under FailOpen.
func (g *Guarded) CheckFree(ctx context.Context, start time.Time, duration time.Duration) (bool, error) {
	var free bool
	err := g.call(ctx, "check_free", func(ctx context.Context) error {
		var err error
		free, err = g.inner.CheckFree(ctx, start, duration)
		return err
	})
	if err == nil {
		return free, nil
	}
	if g.policy.Reads == FailOpen {
		g.logger.Warn("calendar read failed, assuming free", "operation", "check_free", "start", start, "error", err)
		g.metrics.ObserveFailOpen("check_free")
		return true, nil
	}
	return false, err
}

// ListFreeSlots reports no slots when the read fails under FailOpen.
func (g *Guarded) ListFreeSlots(ctx context.Context, day time.Time, duration time.Duration, max int) ([]time.Time, error) {
	var slots []time.Time
	err := g.call(ctx, "list_free_slots", func(ctx context.Context) error {
		var err error
		slots, err = g.inner.ListFreeSlots(ctx, day, duration, max)
		return err
	})
	if err == nil {
		return slots, nil
	}
	if g.policy.Reads == FailOpen {
		g.logger.Warn("calendar read failed, no slots offered", "operation", "list_free_slots", "day", day, "error", err)
		g.metrics.ObserveFailOpen("list_free_slots")
		return nil, nil
	}
	return nil, err
}

// CreateBooking surfaces failures wrapped in ErrWriteFailed.
func (g *Guarded) CreateBooking(ctx context.Context, details BookingDetails) (string, error) {
	var id string
	err := g.call(ctx, "create_booking", func(ctx context.Context) error {
		var err error
		id, err = g.inner.CreateBooking(ctx, details)
		return err
	})
	if err != nil {
		g.logger.Error("calendar write failed", "operation", "create_booking", "start", details.Start, "error", err)
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return id, nil
}

// CancelBooking surfaces failures wrapped in ErrWriteFailed. ErrBookingNotFound stays matchable.
func (g *Guarded) CancelBooking(ctx context.Context, req CancelRequest) error {
	err := g.call(ctx, "cancel_booking", func(ctx context.Context) error {
		return g.inner.CancelBooking(ctx, req)
	})
	if err != nil {
		g.logger.Error("calendar write failed", "operation", "cancel_booking", "booking_id", req.BookingID, "error", err)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// FindBooking is a read. Under FailOpen a failed lookup reports no booking.
func (g *Guarded) FindBooking(ctx context.Context, sender string, start time.Time) (string, error) {
	var id string
	err := g.call(ctx, "find_booking", func(ctx context.Context) error {
		var err error
		id, err = g.inner.FindBooking(ctx, sender, start)
		return err
	})
	if err == nil || errors.Is(err, ErrBookingNotFound) {
		return id, err
	}
	if g.policy.Reads == FailOpen {
		g.logger.Warn("calendar read failed, assuming no booking", "operation", "find_booking", "start", start, "error", err)
		g.metrics.ObserveFailOpen("find_booking")
		return "", ErrBookingNotFound
	}
	return "", err
}

// Ping always surfaces the error; it feeds the status endpoint.
func (g *Guarded) Ping(ctx context.Context) error {
	return g.call(ctx, "ping", g.inner.Ping)
}
