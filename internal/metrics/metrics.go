// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SpendTotal counts unlock attempts by purpose and outcome
// (granted, replayed, insufficient, error).
var SpendTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "coinledger",
	Subsystem: "unlock",
	Name:      "spend_total",
	Help:      "Total spend requests by purpose and outcome.",
}, []string{"purpose", "outcome"})

// PurchaseTotal counts purchase lifecycle steps by stage and outcome.
var PurchaseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "coinledger",
	Subsystem: "purchase",
	Name:      "total",
	Help:      "Total purchase operations by stage (initiate, verify) and outcome.",
}, []string{"stage", "outcome"})

// CoinsCredited sums coins credited by verified purchases.
var CoinsCredited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "coinledger",
	Subsystem: "ledger",
	Name:      "coins_credited_total",
	Help:      "Total coins credited by verified purchases.",
})

// CoinsDebited sums coins debited by unlocks.
var CoinsDebited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "coinledger",
	Subsystem: "ledger",
	Name:      "coins_debited_total",
	Help:      "Total coins debited by unlock spends.",
})

// OrdersExpired counts pending orders closed by the sweeper.
var OrdersExpired = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "coinledger",
	Subsystem: "purchase",
	Name:      "orders_expired_total",
	Help:      "Total pending purchase orders expired by the sweeper.",
})

// AccessCacheLookups counts access checks by where they were answered
// (cache, ledger, miss, error).
var AccessCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "coinledger",
	Subsystem: "access",
	Name:      "lookups_total",
	Help:      "Access checks by resolution source.",
}, []string{"source"})

// RequestDuration tracks HTTP latency per route.
var RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "coinledger",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by method, route and status.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route", "status"})
