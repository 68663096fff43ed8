package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	PaymentsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_reconciled_total",
			Help: "Payment events processed, by rail and outcome",
		},
		[]string{"rail", "outcome"},
	)

	CommissionsSettled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "commission_events_settled_total",
			Help: "Commission events written by the settlement engine",
		},
	)

	CommissionAmountSettled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "commission_amount_settled_total",
			Help: "Total commission amount settled, in minor display units",
		},
	)
)
