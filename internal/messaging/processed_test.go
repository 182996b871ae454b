package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/barberbot/internal/conversation"
	"github.com/wolfman30/barberbot/pkg/logging"
)

func TestRedisProcessedStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisProcessedStore(client, time.Hour)
	ctx := context.Background()

	first, err := store.MarkProcessed(ctx, "twilio", "SM1")
	if err != nil || !first {
		t.Fatalf("expected first mark to succeed, got %v %v", first, err)
	}
	again, err := store.MarkProcessed(ctx, "twilio", "SM1")
	if err != nil || again {
		t.Fatalf("expected duplicate, got %v %v", again, err)
	}
	if ttl := mr.TTL(processedKey("twilio", "SM1")); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %s", ttl)
	}

	mr.FastForward(2 * time.Hour)
	afterExpiry, err := store.MarkProcessed(ctx, "twilio", "SM1")
	if err != nil || !afterExpiry {
		t.Fatalf("expected mark after expiry to succeed, got %v %v", afterExpiry, err)
	}
}

func TestMemoryProcessedStoreExpires(t *testing.T) {
	store := NewMemoryProcessedStore(time.Minute)
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := store.MarkProcessed(ctx, "twilio", "SM1"); !ok {
		t.Fatalf("expected first mark to succeed")
	}
	if ok, _ := store.MarkProcessed(ctx, "twilio", "SM1"); ok {
		t.Fatalf("expected duplicate")
	}
	if ok, _ := store.MarkProcessed(ctx, "twilio", "SM2"); !ok {
		t.Fatalf("expected a different sid to pass")
	}
	now = now.Add(time.Minute)
	if ok, _ := store.MarkProcessed(ctx, "twilio", "SM1"); !ok {
		t.Fatalf("expected mark after expiry to succeed")
	}
}

func TestTwilioWebhook_DropsRetriedMessage(t *testing.T) {
	responder := &stubResponder{reply: conversation.Reply{Text: "✅ ¡Tu cita ha sido confirmada!", State: conversation.StateIdle}}
	handler := NewHandler(HandlerConfig{Processed: NewMemoryProcessedStore(0)}, responder, logging.Discard(), nil)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.TwilioWebhook(rec, newFormRequest("/messaging/twilio/webhook", inboundForm("whatsapp:+5215512345678", "si")))
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i, rec.Code)
		}
		if i == 1 && strings.Contains(rec.Body.String(), "<Message>") {
			t.Errorf("expected empty twiml for a retry, got %s", rec.Body.String())
		}
	}
	if len(responder.calls) != 1 {
		t.Fatalf("expected the responder to run once, got %d calls", len(responder.calls))
	}
}
