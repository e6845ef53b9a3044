package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "desci_ledger_build_info",
			Help: "Build information of the DeSci ledger service",
		},
		[]string{"version", "commit", "date"},
	)

	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desci_ledger_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)

	ExperimentsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "desci_ledger_experiments_created_total",
			Help: "Total number of experiments created",
		},
	)

	ContributionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "desci_ledger_contributions_total",
			Help: "Total number of contributions recorded",
		},
	)

	ContributedAmount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "desci_ledger_contributed_amount_total",
			Help: "Total contributed amount in base units",
		},
	)

	RefundsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "desci_ledger_refunds_total",
			Help: "Total number of refunds issued",
		},
	)

	SettlementsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "desci_ledger_settlements_total",
			Help: "Total number of successfully settled campaigns",
		},
	)

	DistributionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "desci_ledger_profit_distributions_total",
			Help: "Total number of quarterly profit distributions",
		},
	)

	OperationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desci_ledger_operation_errors_total",
			Help: "Total number of failed ledger operations by error kind",
		},
		[]string{"kind"},
	)

	SnapshotWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desci_ledger_snapshot_writes_total",
			Help: "Total number of ledger snapshot writes",
		},
		[]string{"status"},
	)
)
