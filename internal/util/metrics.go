package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersFinalizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_finalized_total",
		Help: "Total number of carts successfully turned into orders",
	})

	OrdersFinalizeFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_finalize_failed_total",
		Help: "Total number of failed checkouts",
	}, []string{"reason"})

	FinalizeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_finalize_latency_seconds",
		Help:    "Latency of the cart to order transaction",
		Buckets: prometheus.DefBuckets,
	})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of committed order status transitions",
	}, []string{"to"})

	OrderTransitionsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_failed_total",
		Help: "Total number of rejected or aborted order status transitions",
	}, []string{"to", "reason"})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	StockConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_stock_conflicts_total",
		Help: "Total number of stock checks or decrements refused for lack of stock",
	}, []string{"operation"})

	StockUnitsAdjusted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_units_adjusted_total",
		Help: "Total number of stock units decremented or restored",
	}, []string{"direction"})

	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Total number of cart mutations",
	}, []string{"operation", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
