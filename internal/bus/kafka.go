package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/OrFisher/real-time-speech-processor/internal/protocol"
)

// KafkaConfig holds the broker settings for the cross-process bus.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Kafka carries events between processes over a single topic keyed by
// session id, so same-session events stay on one partition and arrive
// in publish order. Every process consumes the topic under its own
// consumer group id and fans events out to its local subscribers, which
// is how a worker process publishing and an ingest process subscribing
// rendezvous on nothing but the session id.
type Kafka struct {
	writer *kafka.Writer
	reader *kafka.Reader
	local  *Memory
	cancel context.CancelFunc
	done   chan struct{}
}

func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka bus: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka bus: topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	// A fresh group id per process: each process sees every event and
	// serves its own subscriber set.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     "speech-bus-" + uuid.NewString(),
		Topic:       cfg.Topic,
		StartOffset: kafka.LastOffset,
		MaxWait:     500 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	b := &Kafka{
		writer: writer,
		reader: reader,
		local:  NewMemory(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go b.run(ctx)

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("kafka event bus started")
	return b, nil
}

func (b *Kafka) Publish(ctx context.Context, sessionID string, ev protocol.Event) error {
	payload, err := protocol.EncodeEvent(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(sessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventKind", Value: []byte(ev.Kind)},
		},
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (b *Kafka) Subscribe(sessionID string) (<-chan protocol.Event, func(), error) {
	return b.local.Subscribe(sessionID)
}

func (b *Kafka) run(ctx context.Context) {
	defer close(b.done)
	for {
		msg, err := b.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			log.Error().Err(err).Msg("bus reader error")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
				continue
			}
		}
		ev, err := protocol.DecodeEvent(msg.Value)
		if err != nil {
			log.Warn().Err(err).Str("key", string(msg.Key)).Msg("dropping undecodable bus event")
			continue
		}
		_ = b.local.Publish(ctx, string(msg.Key), ev)
	}
}

func (b *Kafka) Close() error {
	b.cancel()
	<-b.done
	var err error
	if e := b.reader.Close(); e != nil {
		err = e
	}
	if e := b.writer.Close(); e != nil {
		err = e
	}
	if e := b.local.Close(); e != nil && err == nil {
		err = e
	}
	return err
}
