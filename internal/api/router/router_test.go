package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/wolfman30/barberbot/internal/conversation"
	httpmiddleware "github.com/wolfman30/barberbot/internal/http/middleware"
	"github.com/wolfman30/barberbot/internal/messaging"
	"github.com/wolfman30/barberbot/pkg/logging"
)

type echoResponder struct{}

func (echoResponder) Handle(ctx context.Context, userID, text string) (conversation.Reply, error) {
	return conversation.Reply{Text: "eco: " + text, State: conversation.StateIdle}, nil
}

type fixedCounter struct {
	n   int
	err error
}

func (c fixedCounter) ActiveConversations(ctx context.Context) (int, error) { return c.n, c.err }

func newTestRouter(t *testing.T, limiter *httpmiddleware.RateLimiter, status *StatusHandler) http.Handler {
	t.Helper()
	logger := logging.Discard()
	return New(&Config{
		Logger:           logger,
		MessagingHandler: messaging.NewHandler(messaging.HandlerConfig{}, echoResponder{}, logger, nil),
		Status:           status,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
		WebhookLimiter: limiter,
	})
}

func webhookRequest(body string) *http.Request {
	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("From", "whatsapp:+5215512345678")
	form.Set("To", "whatsapp:+14155238886")
	form.Set("Body", body)
	req := httptest.NewRequest(http.MethodPost, "/messaging/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestRouterMessagingWebhookEndpoint(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, webhookRequest("hola"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/xml" {
		t.Fatalf("expected XML response, got %s", ct)
	}
	if !strings.Contains(rr.Body.String(), "eco: hola") {
		t.Errorf("expected reply in TwiML, got %s", rr.Body.String())
	}
}

func TestRouterWebhookRejectsGet(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/messaging/twilio/webhook", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestRouterWebhookRateLimited(t *testing.T) {
	router := newTestRouter(t, httpmiddleware.NewRateLimiter(0.001, 1), nil)

	first := httptest.NewRecorder()
	router.ServeHTTP(first, webhookRequest("hola"))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, webhookRequest("hola"))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}

	// Health is outside the limited group.
	health := httptest.NewRecorder()
	router.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	if health.Code != http.StatusOK {
		t.Fatalf("expected health to bypass the limiter, got %d", health.Code)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "# metrics" {
		t.Fatalf("unexpected metrics response: %d %q", rr.Code, rr.Body.String())
	}
}

func TestStatusEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		counter    fixedCounter
		calendar   error
		wantCode   int
		wantStatus string
		wantCheck  string
	}{
		{"healthy", fixedCounter{n: 4}, nil, http.StatusOK, "ok", "ok"},
		{"calendar down", fixedCounter{n: 2}, errors.New("timeout"), http.StatusServiceUnavailable, "degraded", "unreachable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calendarErr := tt.calendar
			status := NewStatusHandler(tt.counter, map[string]Pinger{
				"calendar": PingFunc(func(context.Context) error { return calendarErr }),
			}, logging.Discard())
			router := newTestRouter(t, nil, status)

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rr.Code)
			}
			var body statusResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("expected status %q, got %q", tt.wantStatus, body.Status)
			}
			if body.ActiveConversations != tt.counter.n {
				t.Errorf("expected %d conversations, got %d", tt.counter.n, body.ActiveConversations)
			}
			if body.Checks["calendar"] != tt.wantCheck {
				t.Errorf("expected calendar %q, got %q", tt.wantCheck, body.Checks["calendar"])
			}
		})
	}
}

func TestStatusCounterFailureDegrades(t *testing.T) {
	status := NewStatusHandler(fixedCounter{err: errors.New("redis down")}, nil, logging.Discard())

	rr := httptest.NewRecorder()
	status.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
