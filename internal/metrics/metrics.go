// Package metrics exposes Prometheus instrumentation for the tracking
// pipeline. Delivery failures are invisible to email recipients, so these
// counters and the logs are the only place they surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_events_enqueued_total",
		Help: "Total tracking events placed on the dispatch queue, labelled by status.",
	}, []string{"status"})

	Registrations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_registrations_total",
		Help: "Total tracking-id registrations accepted.",
	})

	BatchesDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_batches_dispatched_total",
		Help: "Total non-empty batches drained and dispatched to the sink.",
	})

	RowsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_rows_appended_total",
		Help: "Total rows successfully appended, labelled by destination table.",
	}, []string{"table"})

	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_sink_errors_total",
		Help: "Total failed sink appends, labelled by destination table.",
	}, []string{"table"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beacon_queue_depth",
		Help: "Events currently buffered awaiting dispatch.",
	})

	RegistryEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beacon_registry_entries",
		Help: "Live tracking-id registrations held by the in-memory store.",
	})
)
