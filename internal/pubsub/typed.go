package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Event[T] wraps a topic name and provides type-safe publishing and
// subscribing.
type Event[T any] struct {
	topicName   string
	description string
}

// NewEvent creates a typed event. Topic names are dotted:
// "<module>.<entity>.<action>".
func NewEvent[T any](name string, description string) Event[T] {
	if strings.Count(name, ".") < 2 {
		panic(fmt.Sprintf("pubsub: topic %q must have the form module.entity.action", name))
	}
	return Event[T]{
		topicName:   name,
		description: description,
	}
}

// Name returns the topic name.
func (e Event[T]) Name() string {
	return e.topicName
}

// Description returns the human-readable purpose of the topic.
func (e Event[T]) Description() string {
	return e.description
}

// Module returns the first segment of the topic name.
func (e Event[T]) Module() string {
	module, _, _ := strings.Cut(e.topicName, ".")
	return module
}

// Publish sends a typed event. The compiler ensures 'payload' matches 'T'.
func Publish[T any](ctx context.Context, p Publisher, event Event[T], payload T) error {
	// Marshal payload to JSON
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event.Name(), err)
	}

	// Use underlying Publisher interface
	return p.Publish(ctx, Message{
		Topic:   event.Name(),
		Payload: data,
	})
}

// Subscribe decodes every message on the event's topic into T before
// calling handler. Messages that fail to decode are reported as handler
// errors.
func Subscribe[T any](ctx context.Context, s Subscriber, event Event[T], handler func(context.Context, T) error) error {
	return s.Subscribe(ctx, event.Name(), func(ctx context.Context, msg Message) error {
		var payload T
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", event.Name(), err)
		}
		return handler(ctx, payload)
	})
}
