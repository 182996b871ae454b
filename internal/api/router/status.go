// Package router wires the HTTP surface: the Twilio webhook, health, status and metrics.
package router

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/wolfman30/barberbot/pkg/logging"
)

// Health returns a simple health check response.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ConversationCounter reports how many conversations are live.
type ConversationCounter interface {
	ActiveConversations(ctx context.Context) (int, error)
}

// Pinger is a dependency whose reachability is reported on /status.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// StatusHandler reports the conversation count and collaborator reachability.
type StatusHandler struct {
	conversations ConversationCounter
	checks        map[string]Pinger
	timeout       time.Duration
	logger        *logging.Logger
}

func NewStatusHandler(conversations ConversationCounter, checks map[string]Pinger, logger *logging.Logger) *StatusHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StatusHandler{conversations: conversations, checks: checks, timeout: 3 * time.Second, logger: logger}
}

type statusResponse struct {
	Status              string            `json:"status"`
	ActiveConversations int               `json:"active_conversations"`
	Checks              map[string]string `json:"checks"`
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := statusResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	if h.conversations != nil {
		n, err := h.conversations.ActiveConversations(ctx)
		if err != nil {
			h.logger.Warn("status: count conversations failed", "error", err)
			resp.Status = "degraded"
			resp.Checks["conversations"] = "error"
		}
		resp.ActiveConversations = n
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			h.logger.Warn("status: dependency unreachable", "dependency", name, "error", err)
			resp.Status = "degraded"
			resp.Checks[name] = "unreachable"
			continue
		}
		resp.Checks[name] = "ok"
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
