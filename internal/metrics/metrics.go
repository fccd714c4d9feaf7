// Package metrics registers the Prometheus collectors for imports.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsTotal counts committed rows by outcome: imported, failed, skipped.
	RowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_import_rows_total",
		Help: "Rows processed by import commits",
	}, []string{"outcome"})

	DuplicatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_duplicates_total",
		Help: "Duplicate rows detected during review",
	}, []string{"scope"})

	ReviewStatusTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_review_items_total",
		Help: "Review items by status",
	}, []string{"status"})

	DerivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_derived_entries_total",
		Help: "Owner allocation and agency fee rows derived from incoming payments",
	}, []string{"category"})

	OverdrawnTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentledger_overdrawn_alerts_total",
		Help: "Owner balances that went negative during a commit",
	})

	RPCLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rentledger_rpc_duration_seconds",
		Help:    "RPC latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"procedure", "code"})
)
