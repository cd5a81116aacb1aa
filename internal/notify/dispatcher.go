// Package notify turns todo lifecycle events into notification records.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/Tomlord1122/todo-share/internal/domain"
	"github.com/Tomlord1122/todo-share/internal/events"
)

// Store is the write side of the notification repository.
type Store interface {
	Create(ctx context.Context, n *domain.Notification) error
}

// Recorder counts dispatched notifications.
type Recorder interface {
	NotificationDispatched(notificationType string, err error)
}

type Dispatcher struct {
	store    Store
	log      zerolog.Logger
	recorder Recorder
}

func NewDispatcher(store Store, log zerolog.Logger, recorder Recorder) *Dispatcher {
	return &Dispatcher{store: store, log: log, recorder: recorder}
}

// Routes is the dispatcher's handler table for the event bus.
func (d *Dispatcher) Routes() []events.Route {
	return []events.Route{
		{Kind: events.KindTodoShared, Handler: d.onTodoShared},
		{Kind: events.KindTodoShareAccepted, Handler: d.onTodoShareAccepted},
		{Kind: events.KindTodoUpdated, Handler: d.onTodoUpdated},
		{Kind: events.KindTodoDeleted, Handler: d.onTodoDeleted},
	}
}

type payload map[string]any

func (d *Dispatcher) onTodoShared(ctx context.Context, ev events.Event) error {
	e, ok := ev.(events.TodoShared)
	if !ok {
		return unexpected(ev)
	}
	by := e.Share.SharedBy
	return d.send(ctx, domain.NotificationTodoShared, []uint{e.Share.SharedWith.ID}, payload{
		"message":      fmt.Sprintf("%s shared a todo with you: \"%s\"", by.Name, e.Todo.Title),
		"todo_id":      e.Todo.ID,
		"todo_title":   e.Todo.Title,
		"shared_by":    by.Name,
		"shared_by_id": by.ID,
		"permission":   e.Share.Permission,
		"share_id":     e.Share.ID,
	})
}

func (d *Dispatcher) onTodoShareAccepted(ctx context.Context, ev events.Event) error {
	e, ok := ev.(events.TodoShareAccepted)
	if !ok {
		return unexpected(ev)
	}
	by := e.Share.SharedWith
	return d.send(ctx, domain.NotificationTodoShareAccepted, []uint{e.Todo.OwnerID}, payload{
		"message":        fmt.Sprintf("%s accepted your shared todo: \"%s\"", by.Name, e.Todo.Title),
		"todo_id":        e.Todo.ID,
		"todo_title":     e.Todo.Title,
		"accepted_by":    by.Name,
		"accepted_by_id": by.ID,
	})
}

func (d *Dispatcher) onTodoUpdated(ctx context.Context, ev events.Event) error {
	e, ok := ev.(events.TodoUpdated)
	if !ok {
		return unexpected(ev)
	}
	by := e.UpdatedBy
	fields := func(message string) payload {
		return payload{
			"message":       message,
			"todo_id":       e.Todo.ID,
			"todo_title":    e.Todo.Title,
			"updated_by":    by.Name,
			"updated_by_id": by.ID,
		}
	}

	var errs []error
	if e.Todo.OwnerID != by.ID {
		msg := fmt.Sprintf("%s updated the shared todo: \"%s\"", by.Name, e.Todo.Title)
		errs = append(errs, d.send(ctx, domain.NotificationTodoUpdated, []uint{e.Todo.OwnerID}, fields(msg)))
	}
	others := recipients(e.SharedUserIDs, by.ID, e.Todo.OwnerID)
	msg := fmt.Sprintf("%s updated a shared todo: \"%s\"", by.Name, e.Todo.Title)
	errs = append(errs, d.send(ctx, domain.NotificationTodoUpdated, others, fields(msg)))
	return errors.Join(errs...)
}

func (d *Dispatcher) onTodoDeleted(ctx context.Context, ev events.Event) error {
	e, ok := ev.(events.TodoDeleted)
	if !ok {
		return unexpected(ev)
	}
	by := e.DeletedBy
	return d.send(ctx, domain.NotificationTodoDeleted, recipients(e.SharedUserIDs, by.ID), payload{
		"message":       fmt.Sprintf("%s deleted the shared todo: \"%s\"", by.Name, e.Todo.Title),
		"todo_id":       e.Todo.ID,
		"todo_title":    e.Todo.Title,
		"deleted_by":    by.Name,
		"deleted_by_id": by.ID,
	})
}

// send writes one notification per user and keeps going past failures.
func (d *Dispatcher) send(ctx context.Context, notificationType string, userIDs []uint, data payload) error {
	if len(userIDs) == 0 {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", notificationType, err)
	}

	var errs []error
	for _, userID := range userIDs {
		n := &domain.Notification{
			ID:             uuid.NewString(),
			Type:           notificationType,
			NotifiableType: domain.NotifiableUser,
			NotifiableID:   userID,
			Data:           datatypes.JSON(raw),
		}
		err := d.store.Create(ctx, n)
		if d.recorder != nil {
			d.recorder.NotificationDispatched(notificationType, err)
		}
		if err != nil {
			d.log.Error().Err(err).
				Str("type", notificationType).
				Uint("user_id", userID).
				Msg("failed to create notification")
			errs = append(errs, fmt.Errorf("notify user %d: %w", userID, err))
			continue
		}
		d.log.Debug().Str("type", notificationType).Uint("user_id", userID).Msg("notification created")
	}
	return errors.Join(errs...)
}

// recipients dedupes ids and drops the excluded ones, keeping first-seen order.
func recipients(ids []uint, exclude ...uint) []uint {
	seen := make(map[uint]struct{}, len(ids)+len(exclude))
	for _, id := range exclude {
		seen[id] = struct{}{}
	}
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func unexpected(ev events.Event) error {
	return fmt.Errorf("unexpected event %T for kind %s", ev, ev.Kind())
}
