package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare-service/internal/models"
	"mindcare-service/internal/service"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) messages() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"kafka:9092", "kafka-2:9092"}, SplitBrokers(" kafka:9092, ,kafka-2:9092 "))
	assert.Empty(t, SplitBrokers(""))
}

func TestEncode(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	appt := models.Appointment{ID: 4, StudentRef: "S1", TherapistRef: "T1", Status: models.AppointmentPending}
	ev := service.Event{Kind: service.EventBooked, TherapistRef: "T1", StudentRef: "S1", Date: "2026-03-01", Appointment: &appt, At: at}

	msg, err := Encode("scheduling", "evt-1", ev)
	require.NoError(t, err)

	assert.Equal(t, "scheduling", msg.Topic)
	assert.Equal(t, []byte("T1"), msg.Key)
	assert.Equal(t, at, msg.Time)
	assert.Equal(t, []kafka.Header{
		{Key: "event_id", Value: []byte("evt-1")},
		{Key: "event_type", Value: []byte("appointment.booked")},
	}, msg.Headers)

	var decoded service.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, service.EventBooked, decoded.Kind)
	require.NotNil(t, decoded.Appointment)
	assert.Equal(t, int64(4), decoded.Appointment.ID)
}

func TestDisabledPublisher(t *testing.T) {
	p := NewPublisher(discard(), Config{Brokers: " "})
	assert.False(t, p.Enabled())

	p.Listen(context.Background(), service.Event{Kind: service.EventBooked})
	assert.Len(t, p.queue, 0)

	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run of a disabled publisher must return immediately")
	}
}

func TestRunPublishesAndFlushes(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisherWithWriter(discard(), w, "", 8)
	ids := 0
	p.newID = func() string {
		ids++
		return "id-" + string(rune('0'+ids))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	p.Listen(ctx, service.Event{Kind: service.EventBooked, TherapistRef: "T1"})
	p.Listen(ctx, service.Event{Kind: service.EventConfirmed, TherapistRef: "T1"})

	require.Eventually(t, func() bool { return len(w.messages()) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	msgs := w.messages()
	assert.Equal(t, defaultTopic, msgs[0].Topic)
	assert.Equal(t, "id-1", string(msgs[0].Headers[0].Value))
	assert.Equal(t, "appointment.confirmed", string(msgs[1].Headers[1].Value))
	assert.True(t, w.closed)
}

func TestListenDropsWhenQueueIsFull(t *testing.T) {
	p := NewPublisherWithWriter(discard(), &fakeWriter{}, "t", 1)

	p.Listen(context.Background(), service.Event{Kind: service.EventBooked})
	p.Listen(context.Background(), service.Event{Kind: service.EventCancelled})

	assert.Len(t, p.queue, 1)
}

func TestWriteFailureIsNotFatal(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := NewPublisherWithWriter(discard(), w, "t", 4)

	p.Listen(context.Background(), service.Event{Kind: service.EventBooked})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Run(ctx)

	assert.Empty(t, w.messages())
	assert.True(t, w.closed)
}

func TestPublisherAsServiceListener(t *testing.T) {
	var l service.Listener = NewPublisherWithWriter(discard(), &fakeWriter{}, "t", 1).Listen
	l(context.Background(), service.Event{})
}
