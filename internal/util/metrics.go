package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_orders_updated_total",
		Help: "Total number of order patches applied",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_orders_failed_total",
		Help: "Total number of failed order operations",
	}, []string{"reason"})

	PaymentsRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_payments_recorded_total",
		Help: "Total number of payments recorded",
	})

	PaymentsUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_payments_updated_total",
		Help: "Total number of payments amended",
	})

	PaymentsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_payments_deleted_total",
		Help: "Total number of payments deleted",
	})

	PaymentsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_payments_failed_total",
		Help: "Total number of failed payment operations",
	}, []string{"reason"})

	PaymentStatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_payment_status_transitions_total",
		Help: "Payment status transitions produced by reconciliation",
	}, []string{"from", "to"})

	ReconciliationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crm_payment_reconciliation_latency_seconds",
		Help:    "Latency of ledger reconciliation transactions",
		Buckets: prometheus.DefBuckets,
	})

	SummaryCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_payment_summary_cache_hits_total",
		Help: "Payment summary reads served from cache",
	})

	SummaryCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_payment_summary_cache_misses_total",
		Help: "Payment summary reads that hit the database",
	})

	AuditEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_audit_entries_total",
		Help: "Audit log rows written by the worker",
	})

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
