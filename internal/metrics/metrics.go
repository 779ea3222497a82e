package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Application-wide Prometheus collectors. Registered once via promauto
// on the default registry; the HTTP surface exposes them at /metrics.
var (
	MedicationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dosetrack_medications_created_total",
		Help: "Number of medications created",
	})

	EntriesGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dosetrack_dose_entries_generated_total",
		Help: "Number of dose entries produced by schedule regeneration",
	})

	StatusUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dosetrack_dose_status_updates_total",
		Help: "Number of dose entry status changes, by resulting status",
	}, []string{"status"})

	TriggersArmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dosetrack_reminder_triggers_armed_total",
		Help: "Number of reminder triggers successfully armed",
	})

	TriggerFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dosetrack_reminder_trigger_failures_total",
		Help: "Number of reminder triggers that failed to arm",
	})

	NotificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dosetrack_notifications_dispatched_total",
		Help: "Number of reminder notifications dispatched, by channel",
	}, []string{"channel"})

	TicketsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dosetrack_reminder_tickets_pending",
		Help: "Number of reminder tickets currently armed",
	})
)

// Handler returns the scrape endpoint for the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
