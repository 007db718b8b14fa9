// Package telemetry provides Prometheus metrics for the bridge.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	ConnectionsEstablished prometheus.Counter
	ReconnectAttempts      prometheus.Counter
	SessionsFailed         prometheus.Counter
	EventsDecoded          *prometheus.CounterVec // label: kind
	NotificationsSent      *prometheus.CounterVec // label: kind
	NotificationFailures   prometheus.Counter
	CommandsHandled        *prometheus.CounterVec // label: command

	// Gauges
	ActiveSessions prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ConnectionsEstablished = promauto.NewCounter(prometheus.CounterOpts{Name: "fanwatch_connections_established_total", Help: "Successful upstream authentications"})
		ReconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{Name: "fanwatch_reconnect_attempts_total", Help: "Reconnect attempts after a stream or auth failure"})
		SessionsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "fanwatch_sessions_failed_total", Help: "Sessions that exhausted their reconnect attempts"})
		EventsDecoded = promauto.NewCounterVec(prometheus.CounterOpts{Name: "fanwatch_events_decoded_total", Help: "Decoded upstream events by kind"}, []string{"kind"})
		NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{Name: "fanwatch_notifications_sent_total", Help: "Notifications delivered to operators by kind"}, []string{"kind"})
		NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "fanwatch_notification_failures_total", Help: "Notifications that could not be delivered"})
		CommandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{Name: "fanwatch_commands_handled_total", Help: "Operator commands handled by command name"}, []string{"command"})
		ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{Name: "fanwatch_active_sessions", Help: "Sessions currently registered"})
	})
}

// CountEvent records one decoded event
func CountEvent(kind string) {
	if EventsDecoded != nil {
		EventsDecoded.WithLabelValues(kind).Inc()
	}
}

// CountNotification records a delivered (ok) or failed notification
func CountNotification(kind string, ok bool) {
	if !ok {
		if NotificationFailures != nil {
			NotificationFailures.Inc()
		}
		return
	}
	if NotificationsSent != nil {
		NotificationsSent.WithLabelValues(kind).Inc()
	}
}

// CountCommand records one handled operator command
func CountCommand(command string) {
	if CommandsHandled != nil {
		CommandsHandled.WithLabelValues(command).Inc()
	}
}

// Inc increments c if it has been registered
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// SetActiveSessions records the number of registered sessions
func SetActiveSessions(n int) {
	if ActiveSessions != nil {
		ActiveSessions.Set(float64(n))
	}
}
