package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Generation outcomes.
const (
	OutcomeSuccess            = "success"
	OutcomeDenied             = "denied"
	OutcomeBackendError       = "backend_error"
	OutcomeEmpty              = "empty"
	OutcomePersistenceFailure = "persistence_failure"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitegen_http_requests_total",
		Help: "Total HTTP requests processed, labeled by route and status code",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sitegen_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5, 15, 60},
	}, []string{"method", "route"})

	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitegen_generations_total",
		Help: "Generation requests by outcome",
	}, []string{"outcome"})

	BackendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sitegen_backend_request_duration_seconds",
		Help:    "Latency of generation backend calls",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 120},
	}, []string{"backend"})

	CreditsSpent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitegen_credits_spent_total",
		Help: "Credits charged for generations, including reconciled charges",
	})

	SettlementFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitegen_settlement_failures_total",
		Help: "Generations delivered without their charge being applied",
	})

	SettlementsReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitegen_settlements_reconciled_total",
		Help: "Deferred settlements by final status",
	}, []string{"status"})

	OutboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitegen_outbox_messages_total",
		Help: "Outbox publish attempts by result",
	}, []string{"result"})
)
