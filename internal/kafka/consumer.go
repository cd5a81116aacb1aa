package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/Tomlord1122/todo-share/internal/events"
)

// Reader is the part of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer feeds events from the topic into a publisher, normally the
// in-process bus holding the notification routes.
type Consumer struct {
	reader Reader
	target events.Publisher
	log    zerolog.Logger
}

func NewConsumer(brokers []string, topic, groupID string, target events.Publisher, log zerolog.Logger) *Consumer {
	return NewConsumerWithReader(kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	}), target, log)
}

func NewConsumerWithReader(r Reader, target events.Publisher, log zerolog.Logger) *Consumer {
	return &Consumer{reader: r, target: target, log: log}
}

// Run consumes until ctx is done. A message is committed once it has been
// handed to the target, whether or not its handlers succeeded. Undecodable
// messages are committed and skipped.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		log := c.log.With().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Str("key", string(msg.Key)).
			Logger()

		event, occurredAt, err := events.Decode(msg.Value)
		if err != nil {
			log.Error().Err(err).Msg("dropping undecodable message")
		} else {
			log.Debug().Str("kind", string(event.Kind())).Time("occurred_at", occurredAt).Msg("consumed event")
			if err := c.target.Publish(ctx, event); err != nil {
				log.Error().Err(err).Str("kind", string(event.Kind())).Msg("event handling failed")
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
