// Package messaging receives Twilio SMS and WhatsApp webhooks and sends outbound
// text messages.
package messaging

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/barberbot/internal/conversation"
	"github.com/wolfman30/barberbot/internal/observability/metrics"
	"github.com/wolfman30/barberbot/pkg/logging"
)

var twilioTracer = otel.Tracer("barberbot.internal.messaging.twilio")

// DefaultReplyTimeout bounds the work done for one inbound message. Twilio gives
// up on a webhook after 15 seconds.
const DefaultReplyTimeout = 12 * time.Second

// Responder turns one inbound message into the reply text.
type Responder interface {
	Handle(ctx context.Context, userID, text string) (conversation.Reply, error)
}

// HandlerConfig configures the webhook handler.
type HandlerConfig struct {
	// AuthToken enables signature validation when set.
	AuthToken string
	// PublicBaseURL is the externally visible scheme and host used to rebuild the
	// signed URL behind a proxy. Empty derives it from the request.
	PublicBaseURL string
	ReplyTimeout  time.Duration
	// Processed drops Twilio retries of a MessageSid that was already answered.
	Processed ProcessedStore
}

// Handler handles messaging webhook requests.
type Handler struct {
	cfg       HandlerConfig
	responder Responder
	logger    *logging.Logger
	metrics   *metrics.MessagingMetrics
}

// NewHandler creates a new messaging handler.
func NewHandler(cfg HandlerConfig, responder Responder, logger *logging.Logger, m *metrics.MessagingMetrics) *Handler {
	if responder == nil {
		panic("messaging: responder cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = DefaultReplyTimeout
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &Handler{cfg: cfg, responder: responder, logger: logger, metrics: m}
}

// TwilioWebhook handles POST /messaging/twilio/webhook requests and answers with TwiML.
func (h *Handler) TwilioWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := twilioTracer.Start(r.Context(), "messaging.twilio.webhook")
	defer span.End()

	if h.cfg.AuthToken != "" && !ValidateTwilioSignature(r, h.cfg.AuthToken, h.webhookURL(r)) {
		h.logger.Warn("invalid twilio signature", "path", r.URL.Path)
		h.metrics.ObserveInbound("twilio", "unauthorized")
		span.RecordError(errors.New("invalid twilio signature"))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	webhook, err := ParseTwilioWebhook(r)
	if err != nil {
		h.logger.Error("failed to parse twilio webhook", "error", err)
		h.metrics.ObserveInbound("twilio", "bad_request")
		span.RecordError(err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	channel := Channel(webhook.From)
	span.SetAttributes(
		attribute.String("barberbot.twilio.message_sid", webhook.MessageSid),
		attribute.String("barberbot.channel", channel),
	)
	if webhook.From == "" {
		err := errors.New("missing required twilio fields")
		h.logger.Error("invalid twilio payload", "error", err, "message_sid", webhook.MessageSid)
		h.metrics.ObserveInbound(channel, "bad_request")
		span.RecordError(err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if h.duplicate(ctx, webhook.MessageSid) {
		h.logger.Info("duplicate twilio webhook ignored", "message_sid", webhook.MessageSid)
		h.metrics.ObserveInbound(channel, "duplicate")
		_ = h.writeTwiML(w, "")
		return
	}

	replyCtx, cancel := context.WithTimeout(ctx, h.cfg.ReplyTimeout)
	defer cancel()
	reply, err := h.responder.Handle(replyCtx, webhook.From, webhook.Body)
	if err != nil {
		h.logger.Error("failed to handle inbound message", "error", err, "message_sid", webhook.MessageSid)
		h.metrics.ObserveInbound(channel, "error")
		span.RecordError(err)
		status := http.StatusInternalServerError
		if errors.Is(err, conversation.ErrMissingUser) {
			status = http.StatusBadRequest
		}
		http.Error(w, http.StatusText(status), status)
		return
	}
	span.SetAttributes(attribute.String("barberbot.conversation.state", string(reply.State)))

	if err := h.writeTwiML(w, reply.Text); err != nil {
		h.logger.Error("failed to render twiml", "error", err)
		h.metrics.ObserveInbound(channel, "error")
		span.RecordError(err)
		return
	}

	h.metrics.ObserveInbound(channel, "ok")
	h.metrics.ObserveWebhookLatency(channel, time.Since(start).Seconds())
	h.logger.Info("twilio webhook handled", "message_sid", webhook.MessageSid, "channel", channel, "state", reply.State)
}

func (h *Handler) writeTwiML(w http.ResponseWriter, body string) error {
	doc, err := MessageTwiML(body)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
	return nil
}

// duplicate reports whether sid was already handled. Store errors let the
// message through.
func (h *Handler) duplicate(ctx context.Context, sid string) bool {
	if h.cfg.Processed == nil || sid == "" {
		return false
	}
	first, err := h.cfg.Processed.MarkProcessed(ctx, "twilio", sid)
	if err != nil {
		h.logger.Warn("processed store unavailable", "error", err, "message_sid", sid)
		return false
	}
	return !first
}

func (h *Handler) webhookURL(r *http.Request) string {
	if h.cfg.PublicBaseURL != "" {
		return h.cfg.PublicBaseURL + r.URL.RequestURI()
	}
	return buildAbsoluteURL(r)
}
