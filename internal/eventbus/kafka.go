package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"

	"github.com/ocpp-csms/central-system/internal/metrics"
)

// KafkaPublisher is a Publisher backed by a sarama AsyncProducer, grounded
// on the teacher's KafkaProducer: same ack/compression/flush settings and
// background success/error drain goroutines, repurposed to publish the
// station-scoped event catalog instead of a fixed "integration event"
// shape.
type KafkaPublisher struct {
	producer sarama.AsyncProducer
	topic    string
}

// NewKafkaPublisher dials the given brokers and starts the producer's
// background success/error handlers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Flush.Frequency = 500 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka async producer: %w", err)
	}

	kp := &KafkaPublisher{producer: producer, topic: topic}
	go kp.handleSuccesses()
	go kp.handleErrors()
	return kp, nil
}

// Publish serializes the event to JSON and enqueues it, partitioned by
// station ID so that a given station's events stay ordered within one
// partition.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	data, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal event to JSON: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:    p.topic,
		Key:      sarama.StringEncoder(event.GetStationID()),
		Value:    sarama.ByteEncoder(data),
		Metadata: event,
	}

	select {
	case p.producer.Input() <- msg:
	case <-ctx.Done():
		return ctx.Err()
	}

	log.Debug().
		Str("eventId", event.GetID()).
		Str("eventType", string(event.GetType())).
		Str("stationId", event.GetStationID()).
		Str("topic", p.topic).
		Msg("event queued for publish")

	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) handleSuccesses() {
	for msg := range p.producer.Successes() {
		if event, ok := msg.Metadata.(Event); ok {
			metrics.EventsPublished.WithLabelValues(string(event.GetType())).Inc()
		}
	}
}

func (p *KafkaPublisher) handleErrors() {
	for err := range p.producer.Errors() {
		log.Error().
			Err(err).
			Str("topic", err.Msg.Topic).
			Msg("failed to publish event to kafka")
	}
}
