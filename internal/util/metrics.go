package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutsInitiatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_initiated_total",
		Help: "Total number of checkouts initiated",
	}, []string{"method"})

	CheckoutsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_rejected_total",
		Help: "Total number of checkouts rejected before any state was created",
	}, []string{"reason"})

	OrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	}, []string{"method"})

	PaymentConfirmationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_confirmations_total",
		Help: "Total number of gateway confirmations handled",
	}, []string{"outcome"})

	GatewayErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_errors_total",
		Help: "Total number of failed calls to the payment gateway",
	})

	GatewayLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_latency_seconds",
		Help:    "Latency of payment gateway checkout creation",
		Buckets: prometheus.DefBuckets,
	})

	OrderStatusUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_updates_total",
		Help: "Total number of order status updates",
	}, []string{"status"})

	BulkUpdateFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bulk_update_failures_total",
		Help: "Total number of failed items within bulk status updates",
	})

	OrdersDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_deleted_total",
		Help: "Total number of orders hard-deleted by administrators",
	})

	CartMergesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_merges_total",
		Help: "Total number of anonymous cart merges",
	}, []string{"outcome"})

	AnalyticsLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "analytics_compute_latency_seconds",
		Help:    "Latency of analytics snapshot computation",
		Buckets: prometheus.DefBuckets,
	}, []string{"range"})

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
