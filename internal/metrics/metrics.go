package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StatusToggles counts completed arrival/departure toggles by kind.
	StatusToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pickup_status_toggles_total",
		Help: "Completed pickup/dropoff status toggles.",
	}, []string{"kind"})

	// SyncAttempts counts sync jobs applied per secondary target.
	SyncAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pickup_sync_attempts_total",
		Help: "Sync jobs attempted against secondary stores.",
	}, []string{"target"})

	// SyncFailures counts sync jobs that failed per secondary target.
	SyncFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pickup_sync_failures_total",
		Help: "Sync jobs that failed against secondary stores.",
	}, []string{"target"})

	// FallbackServes counts roster requests answered with placeholder data.
	FallbackServes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pickup_roster_fallback_total",
		Help: "Roster requests served from the placeholder fallback.",
	})

	// VehicleReports counts accepted vehicle location reports.
	VehicleReports = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pickup_vehicle_reports_total",
		Help: "Accepted vehicle location reports.",
	})
)
