// Package events forwards committed scheduling changes to Kafka so that
// notification and reminder consumers can react to them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"mindcare-service/internal/service"
	"mindcare-service/pkg/sl"
)

const (
	defaultTopic  = "mindcare.scheduling"
	defaultBuffer = 256
	flushTimeout  = 5 * time.Second
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers string
	Topic   string
	Buffer  int
}

// Publisher queues events from the service and writes them from Run. A
// Publisher without brokers accepts and discards everything.
type Publisher struct {
	writer MessageWriter
	topic  string
	logger *slog.Logger
	queue  chan service.Event
	newID  func() string
}

func NewPublisher(logger *slog.Logger, cfg Config) *Publisher {
	brokers := SplitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return newPublisher(logger, nil, cfg.Topic, cfg.Buffer)
	}

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Balancer: &kafka.Hash{},
	})
	return newPublisher(logger, writer, cfg.Topic, cfg.Buffer)
}

func NewPublisherWithWriter(logger *slog.Logger, writer MessageWriter, topic string, buffer int) *Publisher {
	return newPublisher(logger, writer, topic, buffer)
}

func newPublisher(logger *slog.Logger, writer MessageWriter, topic string, buffer int) *Publisher {
	if topic == "" {
		topic = defaultTopic
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		writer: writer,
		topic:  topic,
		logger: logger,
		queue:  make(chan service.Event, buffer),
		newID:  func() string { return uuid.NewString() },
	}
}

func (p *Publisher) Enabled() bool {
	return p.writer != nil
}

// Listen is a service.Listener. It never blocks the caller: when the queue is
// full the event is dropped and logged.
func (p *Publisher) Listen(_ context.Context, ev service.Event) {
	if !p.Enabled() {
		return
	}

	select {
	case p.queue <- ev:
	default:
		p.logger.Warn("event queue full, dropping event",
			slog.String("kind", string(ev.Kind)),
			slog.String("therapist_ref", ev.TherapistRef),
		)
	}
}

// Run writes queued events until ctx is done, then flushes what is left and
// closes the writer.
func (p *Publisher) Run(ctx context.Context) {
	if !p.Enabled() {
		p.logger.Warn("event publisher disabled (no kafka brokers configured)")
		return
	}
	defer func() {
		if err := p.writer.Close(); err != nil {
			p.logger.Error("failed to close kafka writer", sl.Err(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			p.flush()
			return
		case ev := <-p.queue:
			p.publish(ctx, ev)
		}
	}
}

func (p *Publisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	for {
		select {
		case ev := <-p.queue:
			p.publish(ctx, ev)
		default:
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, ev service.Event) {
	msg, err := Encode(p.topic, p.newID(), ev)
	if err != nil {
		p.logger.Error("failed to encode event", slog.String("kind", string(ev.Kind)), sl.Err(err))
		return
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish event",
			slog.String("kind", string(ev.Kind)),
			slog.String("topic", p.topic),
			sl.Err(err),
		)
		return
	}

	p.logger.Debug("event published", slog.String("kind", string(ev.Kind)))
}

// Encode builds the Kafka message for ev. Messages are keyed by therapist so
// that one therapist's changes stay ordered within a partition.
func Encode(topic, eventID string, ev service.Event) (kafka.Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("events.Encode: %w", err)
	}

	return kafka.Message{
		Topic: topic,
		Key:   []byte(ev.TherapistRef),
		Value: payload,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte(ev.Kind)},
		},
	}, nil
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
