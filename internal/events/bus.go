package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

type Handler func(ctx context.Context, event Event) error

// Route binds one handler to one event kind.
type Route struct {
	Kind    Kind
	Handler Handler
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Bus delivers events synchronously to the handlers registered for their kind.
type Bus struct {
	handlers map[Kind][]Handler
	log      zerolog.Logger
}

func NewBus(log zerolog.Logger, routes ...Route) *Bus {
	b := &Bus{handlers: make(map[Kind][]Handler), log: log}
	for _, r := range routes {
		b.handlers[r.Kind] = append(b.handlers[r.Kind], r.Handler)
	}
	return b
}

// Publish runs every handler for the event's kind, even after one fails, and
// returns the failures joined.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	handlers := b.handlers[event.Kind()]
	if len(handlers) == 0 {
		b.log.Debug().Str("kind", string(event.Kind())).Msg("no handler for event")
		return nil
	}

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			b.log.Error().Err(err).
				Str("kind", string(event.Kind())).
				Uint("todo_id", event.TodoID()).
				Msg("event handler failed")
			errs = append(errs, fmt.Errorf("%s: %w", event.Kind(), err))
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
