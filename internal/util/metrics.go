package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Total number of cart mutations by operation and outcome",
	}, []string{"operation", "outcome"})

	ReservationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_created_total",
		Help: "Total number of checkout reservations created",
	})

	ReservationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservations_failed_total",
		Help: "Total number of failed reservation operations",
	}, []string{"operation", "reason"})

	ReservationsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_completed_total",
		Help: "Total number of reservations converted into sales",
	})

	ReservationsCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservations_cancelled_total",
		Help: "Total number of reservation lines released",
	}, []string{"reason"})

	ReservedUnitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reserved_units_total",
		Help: "Total number of stock units put on hold",
	})

	ReservationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reservation_latency_seconds",
		Help:    "Latency of reservation creation",
		Buckets: prometheus.DefBuckets,
	})

	SalesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_recorded_total",
		Help: "Total number of sale records written",
	})

	CheckoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_total",
		Help: "Total number of checkout attempts by outcome",
	}, []string{"outcome"})

	CatalogCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_cache_requests_total",
		Help: "Catalog cache lookups by result",
	}, []string{"result"})

	SweeperRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_sweeper_runs_total",
		Help: "Expiry sweeper runs by outcome",
	}, []string{"outcome"})

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
