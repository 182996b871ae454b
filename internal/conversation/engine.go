package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/barberbot/internal/business"
	"github.com/wolfman30/barberbot/internal/calendar"
	"github.com/wolfman30/barberbot/internal/intent"
	"github.com/wolfman30/barberbot/internal/notify"
	"github.com/wolfman30/barberbot/internal/observability/metrics"
	"github.com/wolfman30/barberbot/internal/reminders"
	"github.com/wolfman30/barberbot/internal/timeparse"
	"github.com/wolfman30/barberbot/pkg/logging"
)

var engineTracer = otel.Tracer("barberbot.internal.conversation")

const (
	DefaultTTL          = 30 * time.Minute
	DefaultAlternatives = 3
	alertTimeout        = 15 * time.Second
)

// ErrMissingUser is returned when a message arrives without a sender id.
var ErrMissingUser = errors.New("conversation: missing user id")

// ReminderScheduler books and cancels appointment reminders.
type ReminderScheduler interface {
	ScheduleAppointment(ctx context.Context, appt reminders.Appointment) (*reminders.Reminder, error)
	CancelAppointment(ctx context.Context, bookingID, recipient string) (int, error)
}

// Alerter notifies the shop operator about booking events.
type Alerter interface {
	Alert(ctx context.Context, alert notify.OperatorAlert) error
}

// Config wires the engine's collaborators. Store, Oracle, Catalog, Validator and
// Parser are required.
type Config struct {
	Store        Store
	Oracle       calendar.Oracle
	Catalog      *business.Catalog
	Validator    *business.Validator
	Parser       *timeparse.Parser
	Classifier   *intent.Classifier
	Reminders    ReminderScheduler
	ReminderLead time.Duration
	Alerter      Alerter
	BusinessName string
	// DefaultServiceID is booked when the customer never names a service. Empty
	// sends the customer to the service list after giving a name.
	DefaultServiceID string
	TTL              time.Duration
	Alternatives     int
	Now              func() time.Time
	Logger           *logging.Logger
	Metrics          *metrics.ConversationMetrics
}

// Reply is the text to send back and the state the conversation ended in.
type Reply struct {
	Text  string
	State StateName
}

// Engine applies inbound messages to conversations.
type Engine struct {
	store            Store
	oracle           calendar.Oracle
	catalog          *business.Catalog
	validator        *business.Validator
	parser           *timeparse.Parser
	classifier       *intent.Classifier
	reminders        ReminderScheduler
	reminderLead     time.Duration
	alerter          Alerter
	businessName     string
	defaultServiceID string
	ttl              time.Duration
	alternatives     int
	now              func() time.Time
	logger           *logging.Logger
	metrics          *metrics.ConversationMetrics

	locks      *keyedMutex
	background sync.WaitGroup
}

func NewEngine(cfg Config) (*Engine, error) {
	switch {
	case cfg.Store == nil:
		return nil, errors.New("conversation: store is required")
	case cfg.Oracle == nil:
		return nil, errors.New("conversation: availability oracle is required")
	case cfg.Catalog == nil:
		return nil, errors.New("conversation: service catalog is required")
	case cfg.Validator == nil:
		return nil, errors.New("conversation: slot validator is required")
	case cfg.Parser == nil:
		return nil, errors.New("conversation: date parser is required")
	}
	if cfg.Classifier == nil {
		cfg.Classifier = intent.NewClassifier()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Alternatives <= 0 {
		cfg.Alternatives = DefaultAlternatives
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.BusinessName == "" {
		cfg.BusinessName = "Barbería d' Leo"
	}
	return &Engine{
		store:            cfg.Store,
		oracle:           cfg.Oracle,
		catalog:          cfg.Catalog,
		validator:        cfg.Validator,
		parser:           cfg.Parser,
		classifier:       cfg.Classifier,
		reminders:        cfg.Reminders,
		reminderLead:     cfg.ReminderLead,
		alerter:          cfg.Alerter,
		businessName:     cfg.BusinessName,
		defaultServiceID: cfg.DefaultServiceID,
		ttl:              cfg.TTL,
		alternatives:     cfg.Alternatives,
		now:              cfg.Now,
		logger:           cfg.Logger,
		metrics:          cfg.Metrics,
		locks:            newKeyedMutex(),
	}, nil
}

// Wait blocks until background operator alerts have finished.
func (e *Engine) Wait() {
	e.background.Wait()
}

// ActiveConversations returns the number of stored conversations.
func (e *Engine) ActiveConversations(ctx context.Context) (int, error) {
	return e.store.Count(ctx)
}

// Handle applies one inbound message from userID and returns the reply. Failures
// inside a step never escape: the conversation is reset and a generic apology is returned.
func (e *Engine) Handle(ctx context.Context, userID, text string) (Reply, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Reply{}, ErrMissingUser
	}
	ctx, span := engineTracer.Start(ctx, "conversation.handle")
	defer span.End()

	now := e.now().In(e.parser.Location())
	e.sweep(ctx, now)

	unlock := e.locks.Lock(userID)
	defer unlock()

	logger := e.logger.With("user_id", userID)

	conv, err := e.load(ctx, userID, now)
	if err != nil {
		span.RecordError(err)
		logger.Error("conversation: load failed", "error", err)
		return e.reset(ctx, logger, userID, StateIdle, now), nil
	}
	from := conv.State()
	span.SetAttributes(attribute.String("conversation.from", string(from)))

	res, err := e.safeStep(ctx, conv, text, now)
	if err != nil {
		span.RecordError(err)
		logger.Error("conversation: step failed", "state", from, "error", err)
		e.metrics.ObserveFailure(string(from))
		return e.reset(ctx, logger, userID, from, now), nil
	}

	to := conv.State()
	if res.remove {
		to = StateIdle
		if err := e.store.Delete(ctx, userID); err != nil {
			logger.Error("conversation: delete failed", "error", err)
		}
	} else {
		conv.LastActivity = now
		if err := e.store.Put(ctx, conv); err != nil {
			span.RecordError(err)
			logger.Error("conversation: save failed", "state", to, "error", err)
		}
	}
	span.SetAttributes(attribute.String("conversation.to", string(to)))
	e.metrics.ObserveTransition(string(from), string(to))
	e.observeActive(ctx)

	logger.Debug("conversation: message handled", "from", from, "to", to)
	return Reply{Text: res.text, State: to}, nil
}

type result struct {
	text   string
	remove bool
}

func (e *Engine) safeStep(ctx context.Context, conv *Conversation, text string, now time.Time) (res result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("conversation: panic in %s: %v", conv.State(), r)
		}
	}()
	return e.step(ctx, conv, text, now)
}

func (e *Engine) reset(ctx context.Context, logger *logging.Logger, userID string, from StateName, now time.Time) Reply {
	if err := e.store.Put(ctx, New(userID, now)); err != nil {
		logger.Error("conversation: reset failed", "error", err)
	}
	e.metrics.ObserveTransition(string(from), string(StateIdle))
	return Reply{Text: msgUnexpectedError, State: StateIdle}
}

// load returns the stored conversation, or a fresh one when none exists or it has expired.
func (e *Engine) load(ctx context.Context, userID string, now time.Time) (*Conversation, error) {
	conv, err := e.store.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return New(userID, now), nil
	}
	if err != nil {
		return nil, err
	}
	if conv.ExpiredAt(now, e.ttl) {
		e.metrics.ObserveEvictions(1)
		return New(userID, now), nil
	}
	if conv.Stage == nil {
		conv.Stage = Idle{}
	}
	return conv, nil
}

// sweep evicts conversations idle past the TTL. Conversations whose lock is held
// are skipped and picked up by a later sweep.
func (e *Engine) sweep(ctx context.Context, now time.Time) {
	ids, err := e.store.IdleSince(ctx, now.Add(-e.ttl))
	if err != nil {
		e.logger.Warn("conversation: sweep failed", "error", err)
		return
	}
	evicted := 0
	for _, id := range ids {
		unlock, ok := e.locks.TryLock(id)
		if !ok {
			continue
		}
		conv, err := e.store.Get(ctx, id)
		switch {
		case errors.Is(err, ErrNotFound):
			_ = e.store.Delete(ctx, id)
		case err != nil:
			e.logger.Warn("conversation: sweep load failed", "user_id", id, "error", err)
		case conv.ExpiredAt(now, e.ttl):
			if err := e.store.Delete(ctx, id); err != nil {
				e.logger.Warn("conversation: sweep delete failed", "user_id", id, "error", err)
			} else {
				evicted++
			}
		}
		unlock()
	}
	if evicted > 0 {
		e.metrics.ObserveEvictions(evicted)
		e.logger.Info("conversation: evicted idle conversations", "count", evicted)
	}
}

func (e *Engine) observeActive(ctx context.Context) {
	if e.metrics == nil {
		return
	}
	if n, err := e.store.Count(ctx); err == nil {
		e.metrics.SetActive(n)
	}
}

// alert notifies the operator without delaying the reply.
func (e *Engine) alert(ctx context.Context, alert notify.OperatorAlert) {
	if e.alerter == nil {
		return
	}
	e.background.Add(1)
	go func() {
		defer e.background.Done()
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
		defer cancel()
		if err := e.alerter.Alert(actx, alert); err != nil {
			e.logger.Warn("conversation: operator alert failed", "kind", alert.Kind, "error", err)
		}
	}()
}

func (e *Engine) scheduleReminder(ctx context.Context, userID string, b *ConfirmedBooking, svc business.Service) bool {
	if e.reminders == nil {
		return false
	}
	r, err := e.reminders.ScheduleAppointment(ctx, reminders.Appointment{
		BookingID:    b.ID,
		Recipient:    userID,
		CustomerName: b.CustomerName,
		ServiceName:  svc.DisplayName(),
		Start:        b.Start,
	})
	if err != nil {
		e.logger.Warn("conversation: schedule reminder failed", "booking_id", b.ID, "error", err)
		return false
	}
	return r != nil
}

func (e *Engine) cancelReminders(ctx context.Context, bookingID, userID string) {
	if e.reminders == nil {
		return
	}
	if _, err := e.reminders.CancelAppointment(ctx, bookingID, userID); err != nil {
		e.logger.Warn("conversation: cancel reminder failed", "booking_id", bookingID, "error", err)
	}
}

func (e *Engine) welcome() string {
	return welcomeMessage(e.businessName, e.validator.Hours())
}
