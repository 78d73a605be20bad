package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"mindcare-service/internal/service"
	"mindcare-service/pkg/response"
)

func TestObserveOperation(t *testing.T) {
	m := NewSchedulingMetrics(prometheus.NewRegistry())

	m.ObserveOperation("service.BookAppointment", nil, 10*time.Millisecond)
	m.ObserveOperation("service.BookAppointment", nil, 12*time.Millisecond)
	m.ObserveOperation("service.BookAppointment", fmt.Errorf("service.BookAppointment: %w", response.ErrSlotUnavailable), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("service.BookAppointment", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("service.BookAppointment", "slot_unavailable")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.operationDuration))
}

func TestObserveChange(t *testing.T) {
	m := NewSchedulingMetrics(prometheus.NewRegistry())

	m.ObserveChange(context.Background(), service.Event{Kind: service.EventBooked})
	m.ObserveChange(context.Background(), service.Event{Kind: service.EventBooked})
	m.ObserveChange(context.Background(), service.Event{Kind: service.EventCancelled})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.changesTotal.WithLabelValues("appointment.booked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.changesTotal.WithLabelValues("appointment.cancelled")))
}

func TestOutcome(t *testing.T) {
	cases := map[error]string{
		nil:                             "ok",
		response.ErrSlotUnavailable:     "slot_unavailable",
		response.ErrInvalidTransition:   "invalid_transition",
		response.ErrEmptyReason:         "empty_reason",
		response.ErrNotFound:            "not_found",
		response.ErrLocked:              "locked",
		response.ErrSlotHeld:            "slot_held",
		response.ErrBadRequest:          "bad_request",
		errors.New("dial tcp: refused"): "error",
	}
	for err, want := range cases {
		assert.Equal(t, want, Outcome(err))
	}
}

func TestSchedulingMetricsNilSafe(t *testing.T) {
	var m *SchedulingMetrics
	m.ObserveOperation("op", nil, time.Second)
	m.ObserveChange(context.Background(), service.Event{})
}
