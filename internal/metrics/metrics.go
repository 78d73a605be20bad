package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mindcare-service/internal/service"
	"mindcare-service/pkg/response"
)

// SchedulingMetrics counts scheduling operations by outcome and the change
// events they produce.
type SchedulingMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	changesTotal      *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindcare",
			Subsystem: "scheduling",
			Name:      "operations_total",
			Help:      "Total scheduling operations by outcome",
		}, []string{"operation", "outcome"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mindcare",
			Subsystem: "scheduling",
			Name:      "operation_duration_seconds",
			Help:      "Latency of scheduling operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		changesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindcare",
			Subsystem: "scheduling",
			Name:      "changes_total",
			Help:      "Committed appointment and schedule changes",
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.operationDuration, m.changesTotal)
	return m
}

func (m *SchedulingMetrics) ObserveOperation(op string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(op, Outcome(err)).Inc()
	m.operationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveChange has the shape of a service change listener.
func (m *SchedulingMetrics) ObserveChange(_ context.Context, ev service.Event) {
	if m == nil {
		return
	}
	m.changesTotal.WithLabelValues(string(ev.Kind)).Inc()
}

// Outcome reduces an operation error to a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, response.ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, response.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, response.ErrEmptyReason):
		return "empty_reason"
	case errors.Is(err, response.ErrNotFound):
		return "not_found"
	case errors.Is(err, response.ErrLocked):
		return "locked"
	case errors.Is(err, response.ErrSlotHeld):
		return "slot_held"
	case errors.Is(err, response.ErrBadRequest):
		return "bad_request"
	default:
		return "error"
	}
}
