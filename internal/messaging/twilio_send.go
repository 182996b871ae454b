package messaging

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/barberbot/internal/observability/metrics"
	"github.com/wolfman30/barberbot/pkg/logging"
)

var twilioSendTracer = otel.Tracer("barberbot.internal.messaging.twilio_send")

const maxSendAttempts = 3

// messageAPI is the slice of the Twilio REST client the sender uses.
type messageAPI interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioSender posts SMS and WhatsApp messages through Twilio's REST API.
type TwilioSender struct {
	api     messageAPI
	from    string
	logger  *logging.Logger
	metrics *metrics.MessagingMetrics
	backoff func(attempt int) time.Duration
}

// NewTwilioSender builds a sender from account credentials. defaultFrom is used
// when a message has no sender of its own.
func NewTwilioSender(accountSID, authToken, defaultFrom string, logger *logging.Logger, m *metrics.MessagingMetrics) (*TwilioSender, error) {
	if accountSID == "" || authToken == "" {
		return nil, errors.New("messaging: twilio credentials missing")
	}
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return newTwilioSender(rest.Api, defaultFrom, logger, m), nil
}

func newTwilioSender(api messageAPI, defaultFrom string, logger *logging.Logger, m *metrics.MessagingMetrics) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{
		api:     api,
		from:    defaultFrom,
		logger:  logger,
		metrics: m,
		backoff: func(int) time.Duration {
			return time.Duration(200+rand.Intn(300)) * time.Millisecond
		},
	}
}

// SendSMS dispatches a single message, retrying transient failures.
func (s *TwilioSender) SendSMS(ctx context.Context, from, to, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return errors.New("messaging: to required")
	}
	if from == "" {
		from = s.from
	}
	if from == "" {
		return errors.New("messaging: from required")
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("messaging: body required")
	}
	// WhatsApp recipients must be addressed from the WhatsApp sender of the same number.
	if IsWhatsApp(to) && !IsWhatsApp(from) {
		from = whatsappPrefix + from
	}

	ctx, span := twilioSendTracer.Start(ctx, "messaging.twilio.send")
	defer span.End()
	channel := Channel(to)
	span.SetAttributes(attribute.String("barberbot.channel", channel))

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)

	var lastErr error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		resp, err := s.api.CreateMessage(params)
		if err == nil {
			sid := ""
			if resp != nil && resp.Sid != nil {
				sid = *resp.Sid
			}
			s.metrics.ObserveOutbound(channel, "sent")
			s.logger.Info("twilio message sent", "channel", channel, "sid", sid, "attempt", attempt)
			return nil
		}
		lastErr = fmt.Errorf("messaging: twilio send: %s", formatTwilioError(err))
		if !retryable(err) {
			break
		}
		if attempt < maxSendAttempts {
			select {
			case <-ctx.Done():
			case <-time.After(s.backoff(attempt)):
			}
		}
	}

	s.metrics.ObserveOutbound(channel, "failed")
	span.RecordError(lastErr)
	return lastErr
}

// retryable reports whether a failed send may succeed when repeated. Client errors
// other than rate limiting are final.
func retryable(err error) bool {
	var restErr *client.TwilioRestError
	if errors.As(err, &restErr) {
		return restErr.Status == http.StatusTooManyRequests || restErr.Status >= http.StatusInternalServerError
	}
	return true
}

func formatTwilioError(err error) string {
	var restErr *client.TwilioRestError
	if !errors.As(err, &restErr) {
		return err.Error()
	}
	if restErr.Code != 0 {
		return fmt.Sprintf("status %d code %d: %s", restErr.Status, restErr.Code, restErr.Message)
	}
	return fmt.Sprintf("status %d: %s", restErr.Status, restErr.Message)
}
