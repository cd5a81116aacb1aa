// Package kafka carries todo events between the API and the notifier.
package kafka

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/Tomlord1122/todo-share/internal/events"
)

// Writer is the part of *kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes events as JSON envelopes keyed by todo id.
type Producer struct {
	writer Writer
	log    zerolog.Logger
	now    func() time.Time
}

func NewProducer(brokers []string, topic string, log zerolog.Logger) *Producer {
	return NewProducerWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
	}, log)
}

func NewProducerWithWriter(w Writer, log zerolog.Logger) *Producer {
	return &Producer{writer: w, log: log, now: time.Now}
}

func (p *Producer) Publish(ctx context.Context, event events.Event) error {
	at := p.now()
	value, err := events.Encode(event, at)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(event.TodoID()), 10)),
		Value: value,
		Time:  at,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Kind(), err)
	}

	p.log.Debug().Str("kind", string(event.Kind())).Uint("todo_id", event.TodoID()).Msg("published event")
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
