// Package metrics declares the Prometheus collectors for inventory mutations
// and change notifications. Collectors register on the default registry, which
// promhttp.Handler serves on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for InventoryUpdates.
const (
	OutcomeSuccess            = "success"
	OutcomeDegraded           = "degraded"
	OutcomeNotFound           = "not_found"
	OutcomePersistenceFailure = "persistence_failure"
	OutcomeInvalid            = "invalid"
)

// Label values for EmissionsRelayed.
const (
	RelayDelivered  = "delivered"
	RelaySuperseded = "superseded"
	RelayFailed     = "failed"
)

const (
	labelOutcome   = "outcome"
	labelTransport = "transport"
	labelResult    = "result"
)

// Mutation metrics
var (
	InventoryUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_updates_total",
			Help: "Stock update calls by outcome.",
		},
		[]string{labelOutcome},
	)

	InventoryUpdateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inventory_update_duration_seconds",
			Help:    "Latency of stock updates including the emission attempt.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

// Notification metrics
var (
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_events_published_total",
			Help: "Inventory change events acknowledged by the transport.",
		},
		[]string{labelTransport},
	)

	PublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_publish_failures_total",
			Help: "Inventory change events the transport did not acknowledge.",
		},
		[]string{labelTransport},
	)

	EmissionsParked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_emissions_parked_total",
			Help: "Committed changes whose notification was parked for the relay.",
		},
	)

	ParkFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_emissions_park_failures_total",
			Help: "Undelivered notifications that could not be parked; these need reconciliation.",
		},
	)

	EmissionsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_emissions_relayed_total",
			Help: "Parked notifications processed by the relay, by result.",
		},
		[]string{labelResult},
	)
)
