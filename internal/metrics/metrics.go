package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AlertSyncs counts alert fetches by where the answer came from
	// (fresh, cache, static).
	AlertSyncs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wedding",
		Name:      "alert_syncs_total",
		Help:      "Alert sync attempts by result source",
	}, []string{"source"})

	AlertCacheErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wedding",
		Name:      "alert_cache_errors_total",
		Help:      "Alert cache read/write failures treated as a miss",
	}, []string{"op"})

	AlertsCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "wedding",
		Name:      "alerts_current",
		Help:      "Number of alerts in the latest snapshot",
	})

	LastAlertSync = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "wedding",
		Name:      "alert_last_sync_timestamp_seconds",
		Help:      "Unix timestamp of the latest alert refresh",
	})

	// RSVPWrites counts writes per sink (sheets, backup) and status.
	RSVPWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wedding",
		Name:      "rsvp_writes_total",
		Help:      "RSVP writes by sink and status",
	}, []string{"sink", "status"})

	PushRegistrations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wedding",
		Name:      "push_registrations_total",
		Help:      "Push permission flow outcomes by reason",
	}, []string{"result"})

	PushMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wedding",
		Name:      "push_messages_total",
		Help:      "Push messages handed to FCM by status",
	}, []string{"kind", "status"})

	WeatherFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wedding",
		Name:      "weather_fetches_total",
		Help:      "Upstream weather fetches by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		AlertSyncs, AlertCacheErrors, AlertsCurrent, LastAlertSync,
		RSVPWrites, PushRegistrations, PushMessages, WeatherFetches,
	)
}

// Handler exposes the default registry in Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
