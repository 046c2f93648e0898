/*
metrics.go - Prometheus instrumentation

PURPOSE:
  Counts admission outcomes so capacity pressure is visible: a rising
  denied/granted ratio on creates means the catalog is under-provisioned;
  denials at approve time mean admins are approving too slowly relative
  to demand.

EXPOSED AT:
  GET /metrics (Prometheus text format)
*/
package api

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/atelier/reservation-engine/reservation"
)

var admissionDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reservation_admission_decisions_total",
		Help: "Admission decisions by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

// recordDecision classifies an operation result for the counters.
func recordDecision(operation string, err error) {
	outcome := "granted"
	switch {
	case err == nil:
	case errors.Is(err, reservation.ErrCapacityExceeded):
		outcome = "denied"
	case reservation.IsClientError(err):
		outcome = "rejected_input"
	default:
		outcome = "error"
	}
	admissionDecisions.WithLabelValues(operation, outcome).Inc()
}
