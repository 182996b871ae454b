package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/barberbot/internal/api/router"
	"github.com/wolfman30/barberbot/internal/business"
	"github.com/wolfman30/barberbot/internal/calendar"
	appconfig "github.com/wolfman30/barberbot/internal/config"
	"github.com/wolfman30/barberbot/internal/conversation"
	"github.com/wolfman30/barberbot/internal/messaging"
	"github.com/wolfman30/barberbot/internal/notify"
	"github.com/wolfman30/barberbot/internal/observability/metrics"
	"github.com/wolfman30/barberbot/internal/reminders"
	"github.com/wolfman30/barberbot/internal/timeparse"
	"github.com/wolfman30/barberbot/pkg/logging"
)

type appMetrics struct {
	messaging    *metrics.MessagingMetrics
	conversation *metrics.ConversationMetrics
	oracle       *metrics.OracleMetrics
	reminders    *metrics.ReminderMetrics
}

func setupMetrics() (http.Handler, appMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), appMetrics{
		messaging:    metrics.NewMessagingMetrics(reg),
		conversation: metrics.NewConversationMetrics(reg),
		oracle:       metrics.NewOracleMetrics(reg),
		reminders:    metrics.NewReminderMetrics(reg),
	}
}

type app struct {
	engine         *conversation.Engine
	reminderWorker *reminders.Worker
	processed      messaging.ProcessedStore
	checks         map[string]router.Pinger
	closers        []func() error
}

func (a *app) close() {
	for _, c := range a.closers {
		_ = c()
	}
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, m appMetrics) (*app, error) {
	hours, err := business.LoadHours(cfg.BusinessTimezone)
	if err != nil {
		return nil, err
	}
	catalog := business.DefaultCatalog()
	if cfg.CatalogFile != "" {
		if catalog, err = business.LoadCatalogFile(cfg.CatalogFile); err != nil {
			return nil, err
		}
	}
	if cfg.DefaultServiceID != "" {
		if _, ok := catalog.Get(cfg.DefaultServiceID); !ok {
			return nil, fmt.Errorf("default service %q is not in the catalog", cfg.DefaultServiceID)
		}
	}

	a := &app{checks: make(map[string]router.Pinger)}

	convStore, reminderStore, err := buildStores(ctx, cfg, logger, a)
	if err != nil {
		return nil, err
	}

	oracle, err := buildOracle(ctx, cfg, hours, logger, m.oracle)
	if err != nil {
		a.close()
		return nil, err
	}
	a.checks["calendar"] = oracle

	var scheduler conversation.ReminderScheduler
	if cfg.RemindersEnabled {
		scheduler = reminders.NewScheduler(reminderStore, cfg.ReminderLead, logger, m.reminders)
		a.reminderWorker = reminders.NewWorker(reminderStore, buildSender(cfg, logger, m.messaging), reminders.WorkerConfig{
			From:         cfg.TwilioFromNumber,
			Location:     hours.Location,
			PollInterval: cfg.ReminderPollInterval,
		}, logger, m.reminders)
	}

	a.engine, err = conversation.NewEngine(conversation.Config{
		Store:            convStore,
		Oracle:           oracle,
		Catalog:          catalog,
		Validator:        business.NewValidator(hours),
		Parser:           timeparse.New(hours.Location, timeparse.WithLogger(logger)),
		Reminders:        scheduler,
		ReminderLead:     cfg.ReminderLead,
		Alerter:          buildAlerter(cfg, hours.Location, logger),
		BusinessName:     cfg.BusinessName,
		DefaultServiceID: cfg.DefaultServiceID,
		TTL:              cfg.ConversationTTL,
		Alternatives:     cfg.AlternativeCount,
		Logger:           logger,
		Metrics:          m.conversation,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// buildStores connects Redis when configured; otherwise state lives in memory
// and is lost on restart.
func buildStores(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, a *app) (conversation.Store, reminders.Store, error) {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set; using in-memory stores")
		a.processed = messaging.NewMemoryProcessedStore(0)
		return conversation.NewMemoryStore(), reminders.NewMemoryStore(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("connected to redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	a.closers = append(a.closers, client.Close)
	a.processed = messaging.NewRedisProcessedStore(client, 0)
	a.checks["redis"] = router.PingFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	return conversation.NewRedisStore(client, cfg.ConversationTTL, nil), reminders.NewRedisStore(client, nil), nil
}

func buildOracle(ctx context.Context, cfg *appconfig.Config, hours business.Hours, logger *logging.Logger, m *metrics.OracleMetrics) (*calendar.Guarded, error) {
	var backend calendar.Backend
	if cfg.GoogleCalendarEnabled() {
		g, err := calendar.NewGoogleBackend(ctx, calendar.GoogleConfig{
			CalendarID:      cfg.GoogleCalendarID,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
			CredentialsFile: cfg.GoogleCredentialsFile,
			Location:        hours.Location,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("using google calendar", "calendar_id", cfg.GoogleCalendarID)
		backend = g
	} else {
		logger.Warn("google calendar not configured; bookings are kept in memory")
		backend = calendar.NewMemoryBackend()
	}

	policy := calendar.DefaultPolicy()
	policy.Timeout = cfg.CalendarTimeout
	if cfg.CalendarFailClosedReads {
		policy.Reads = calendar.Surface
	}
	return calendar.NewGuarded(calendar.New(backend, hours, calendar.WithLogger(logger)), policy, logger, m)
}

func buildSender(cfg *appconfig.Config, logger *logging.Logger, m *metrics.MessagingMetrics) reminders.SMSSender {
	if !cfg.TwilioEnabled() {
		logger.Warn("twilio credentials not set; reminders will only be logged")
		return logSender{logger: logger}
	}
	sender, err := messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger, m)
	if err != nil {
		logger.Warn("twilio sender unavailable; reminders will only be logged", "error", err)
		return logSender{logger: logger}
	}
	return sender
}

func buildAlerter(cfg *appconfig.Config, loc *time.Location, logger *logging.Logger) *notify.Alerter {
	var email notify.EmailSender = notify.NewStubEmailSender(logger)
	if cfg.SendGridEnabled() {
		email = notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	}
	return notify.NewAlerter(email, notify.AlerterConfig{
		OperatorEmail:   cfg.OperatorEmail,
		BusinessName:    cfg.BusinessName,
		Location:        loc,
		NotifyConfirmed: cfg.OperatorNotifyConfirmed,
	}, logger)
}
