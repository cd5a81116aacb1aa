package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrUnknownKind = errors.New("unknown event kind")

func Encode(event Event, occurredAt time.Time) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event.Kind(), err)
	}
	return json.Marshal(Envelope{
		Kind:       event.Kind(),
		OccurredAt: occurredAt.UTC(),
		Payload:    payload,
	})
}

func Decode(data []byte) (Event, time.Time, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshal envelope: %w", err)
	}

	var event Event
	var err error
	switch env.Kind {
	case KindTodoShared:
		event, err = decodePayload[TodoShared](env.Payload)
	case KindTodoShareAccepted:
		event, err = decodePayload[TodoShareAccepted](env.Payload)
	case KindTodoUpdated:
		event, err = decodePayload[TodoUpdated](env.Payload)
	case KindTodoDeleted:
		event, err = decodePayload[TodoDeleted](env.Payload)
	default:
		return nil, time.Time{}, fmt.Errorf("%w %q", ErrUnknownKind, env.Kind)
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshal %s payload: %w", env.Kind, err)
	}
	return event, env.OccurredAt, nil
}

func decodePayload[T Event](payload json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(payload, &v)
	return v, err
}
