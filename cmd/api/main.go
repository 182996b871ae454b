package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/barberbot/internal/api/router"
	appconfig "github.com/wolfman30/barberbot/internal/config"
	"github.com/wolfman30/barberbot/internal/conversation"
	httpmiddleware "github.com/wolfman30/barberbot/internal/http/middleware"
	"github.com/wolfman30/barberbot/internal/messaging"
	"github.com/wolfman30/barberbot/internal/reminders"
	"github.com/wolfman30/barberbot/pkg/logging"
)

func main() {
	// A missing .env is fine outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting barberbot API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"business", cfg.BusinessName,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	metricsHandler, m := setupMetrics()

	deps, err := buildApp(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer deps.close()

	status := router.NewStatusHandler(deps.engine, deps.checks, logger)
	authToken := cfg.TwilioAuthToken
	if cfg.TwilioSkipSignature {
		logger.Warn("twilio signature validation disabled")
		authToken = ""
	}
	messagingHandler := messaging.NewHandler(messaging.HandlerConfig{
		AuthToken:     authToken,
		PublicBaseURL: cfg.PublicBaseURL,
		Processed:     deps.processed,
	}, deps.engine, logger, m.messaging)

	var limiter *httpmiddleware.RateLimiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = httpmiddleware.NewRateLimiter(float64(cfg.RateLimitPerMinute)/60, cfg.RateLimitBurst)
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.New(&router.Config{
			Logger:           logger,
			MessagingHandler: messagingHandler,
			Status:           status,
			MetricsHandler:   metricsHandler,
			WebhookLimiter:   limiter,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if deps.reminderWorker != nil {
		g.Go(func() error {
			if err := deps.reminderWorker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("reminder worker: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		deps.engine.Wait()
		return nil
	})
	return g.Wait()
}

// logSender stands in for Twilio when no credentials are configured.
type logSender struct {
	logger *logging.Logger
}

func (s logSender) SendSMS(ctx context.Context, from, to, body string) error {
	s.logger.Info("twilio not configured: would send message", "to", to, "chars", len(body))
	return nil
}

var _ reminders.SMSSender = logSender{}
var _ messaging.Responder = (*conversation.Engine)(nil)
