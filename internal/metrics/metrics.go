// Package metrics provides Prometheus collectors for the HTTP surface and for
// the parsing and reconciliation core:
//   - http_request_total: counter with method, path and status labels
//   - http_request_duration_seconds: histogram with method and path labels
//   - http_request_in_flight: gauge of concurrent requests
//   - notes_parsed_total: counter of parsed notes by urgency
//   - prescription_fragments_dropped_total: fragments the parser could not decompose
//   - medication_changes_total: reconciliation changes by change type
//   - parse_cache_lookups_total: parse cache lookups by result
//
// All collectors are registered with the default registry at init.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	NotesParsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notes_parsed_total",
			Help: "Visit notes parsed, by urgency",
		},
		[]string{"urgency"},
	)

	DroppedFragments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prescription_fragments_dropped_total",
			Help: "Prescription fragments that could not be decomposed",
		},
	)

	MedicationChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medication_changes_total",
			Help: "Reconciliation changes, by change type",
		},
		[]string{"change_type"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parse_cache_lookups_total",
			Help: "Parse cache lookups, by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(NotesParsed)
	prometheus.MustRegister(DroppedFragments)
	prometheus.MustRegister(MedicationChanges)
	prometheus.MustRegister(CacheLookups)
}
