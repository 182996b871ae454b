package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "barberbot"

func register(reg prometheus.Registerer, cs ...prometheus.Collector) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(cs...)
}

// MessagingMetrics exposes counters/histograms for messaging flows.
type MessagingMetrics struct {
	inboundTotal   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewMessagingMetrics(reg prometheus.Registerer) *MessagingMetrics {
	m := &MessagingMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound Twilio webhooks",
		}, []string{"channel", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound Twilio sends",
		}, []string{"kind", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of Twilio webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
	}
	register(reg, m.inboundTotal, m.outboundTotal, m.webhookLatency)
	return m
}

func (m *MessagingMetrics) ObserveInbound(channel, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(channel, status).Inc()
}

func (m *MessagingMetrics) ObserveOutbound(kind, status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(kind, status).Inc()
}

func (m *MessagingMetrics) ObserveWebhookLatency(channel string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(channel).Observe(seconds)
}

// ConversationMetrics tracks state machine activity.
type ConversationMetrics struct {
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	evictions   prometheus.Counter
	active      prometheus.Gauge
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "transitions_total",
			Help:      "State transitions by source and destination state",
		}, []string{"from", "to"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "failures_total",
			Help:      "Conversation steps that reset the user after an unexpected failure",
		}, []string{"state"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "evictions_total",
			Help:      "Conversations evicted after idling past the TTL",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "active",
			Help:      "Conversations currently held by the store",
		}),
	}
	register(reg, m.transitions, m.failures, m.evictions, m.active)
	return m
}

func (m *ConversationMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *ConversationMetrics) ObserveFailure(state string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(state).Inc()
}

func (m *ConversationMetrics) ObserveEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.Add(float64(n))
}

func (m *ConversationMetrics) SetActive(n int) {
	if m == nil {
		return
	}
	m.active.Set(float64(n))
}

// OracleMetrics tracks calendar calls made through the guarded oracle.
type OracleMetrics struct {
	calls    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	failOpen *prometheus.CounterVec
}

func NewOracleMetrics(reg prometheus.Registerer) *OracleMetrics {
	m := &OracleMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calendar",
			Name:      "calls_total",
			Help:      "Calendar oracle calls by operation and outcome",
		}, []string{"operation", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "calendar",
			Name:      "call_latency_seconds",
			Help:      "Calendar oracle call latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		failOpen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calendar",
			Name:      "fail_open_total",
			Help:      "Read failures answered with the permissive default",
		}, []string{"operation"}),
	}
	register(reg, m.calls, m.latency, m.failOpen)
	return m
}

func (m *OracleMetrics) ObserveCall(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(operation, status).Inc()
	m.latency.WithLabelValues(operation).Observe(seconds)
}

func (m *OracleMetrics) ObserveFailOpen(operation string) {
	if m == nil {
		return
	}
	m.failOpen.WithLabelValues(operation).Inc()
}

// ReminderMetrics tracks appointment reminders.
type ReminderMetrics struct {
	scheduled prometheus.Counter
	sent      *prometheus.CounterVec
}

func NewReminderMetrics(reg prometheus.Registerer) *ReminderMetrics {
	m := &ReminderMetrics{
		scheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "scheduled_total",
			Help:      "Reminders scheduled after a confirmed booking",
		}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "processed_total",
			Help:      "Due reminders processed by outcome",
		}, []string{"status"}),
	}
	register(reg, m.scheduled, m.sent)
	return m
}

func (m *ReminderMetrics) ObserveScheduled() {
	if m == nil {
		return
	}
	m.scheduled.Inc()
}

func (m *ReminderMetrics) ObserveProcessed(status string) {
	if m == nil {
		return
	}
	m.sent.WithLabelValues(status).Inc()
}
