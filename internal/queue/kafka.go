package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig holds the broker settings for the cross-process queue.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	// Group is shared by the whole worker fleet so each job is
	// dispatched to one worker (at-least-once).
	Group string
}

// Kafka is the production job queue. Messages are keyed by session id,
// which lands all chunks of one call on a single partition.
type Kafka struct {
	writer *kafka.Writer
	cfg    KafkaConfig
}

func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka queue: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka queue: topic is required")
	}
	if cfg.Group == "" {
		cfg.Group = "transcription-workers"
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("group", cfg.Group).
		Msg("kafka job queue initialized")
	return &Kafka{writer: writer, cfg: cfg}, nil
}

func (q *Kafka) Submit(ctx context.Context, job Job) error {
	payload, err := EncodeJob(job)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(job.SessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "job", Value: []byte(job.Name)},
		},
	}
	if err := q.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("submit job: %w", err)
	}
	return nil
}

// Consume reads jobs under the shared consumer group and commits after
// the handler returns. Each call owns its own reader, so running it from
// N goroutines gives a pool of N workers.
func (q *Kafka) Consume(ctx context.Context, fn Handler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: q.cfg.Brokers,
		GroupID: q.cfg.Group,
		Topic:   q.cfg.Topic,
		MaxWait: 500 * time.Millisecond,
	})
	defer reader.Close()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("queue fetch error")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
				continue
			}
		}
		job, err := DecodeJob(msg.Value)
		if err != nil {
			log.Warn().Err(err).Str("key", string(msg.Key)).Msg("dropping undecodable job")
		} else {
			fn(ctx, job)
		}
		if err := reader.CommitMessages(ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("queue commit error")
		}
	}
}

func (q *Kafka) Close() error {
	return q.writer.Close()
}
