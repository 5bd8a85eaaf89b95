// Package metrics holds the process-wide Prometheus collectors for the
// point-economy core. Collectors are registered on the default registry via
// promauto and exposed by the API's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mypts_transactions_total",
		Help: "Ledger transactions appended, by transaction type.",
	}, []string{"type"})

	HubMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mypts_hub_mutations_total",
		Help: "Supply hub mutations, by kind.",
	}, []string{"kind"})

	RewardsIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mypts_milestone_rewards_total",
		Help: "Milestone rewards, by final status.",
	}, []string{"status"})

	ThresholdEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mypts_threshold_events_total",
		Help: "Balance threshold-crossing events, by outcome (enqueued, dropped, processed, failed).",
	}, []string{"outcome"})
)
