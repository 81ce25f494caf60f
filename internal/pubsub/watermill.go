package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// DefaultOutputBuffer is how many presence and room events may queue per
// subscription before publishers block.
const DefaultOutputBuffer = 256

// Watermill metadata keys that carry Message fields. They are stripped
// from Message.Metadata on the way out, except user_id.
const (
	metaKeyUserID = "user_id"
	metaKeyTopic  = "topic"
)

// WatermillBridge carries coordinator events over an in-process watermill
// GoChannel. It is both the Publisher handed to presence and rooms and the
// Subscriber used by the activity log.
type WatermillBridge struct {
	channel *gochannel.GoChannel
	log     *slog.Logger
}

// NewWatermillBridge creates a bridge with its own GoChannel.
func NewWatermillBridge() *WatermillBridge {
	return &WatermillBridge{
		channel: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: DefaultOutputBuffer},
			watermill.NewStdLogger(false, false),
		),
		log: slog.Default().With("service", "pubsub"),
	}
}

func toWatermill(msg Message) *message.Message {
	out := message.NewMessage(watermill.NewUUID(), msg.Payload)
	for k, v := range msg.Metadata {
		out.Metadata.Set(k, v)
	}
	out.Metadata.Set(metaKeyTopic, msg.Topic)
	out.Metadata.Set(metaKeyUserID, msg.UserID)
	return out
}

func fromWatermill(in *message.Message) Message {
	msg := Message{
		Topic:    in.Metadata.Get(metaKeyTopic),
		UserID:   in.Metadata.Get(metaKeyUserID),
		Payload:  in.Payload,
		Metadata: make(map[string]string, len(in.Metadata)),
	}
	for k, v := range in.Metadata {
		if k == metaKeyTopic || k == metaKeyUserID {
			continue
		}
		msg.Metadata[k] = v
	}
	if msg.UserID != "" {
		msg.Metadata[metaKeyUserID] = msg.UserID
	}
	return msg
}

// Publish sends msg on the watermill topic named by msg.Topic.
func (b *WatermillBridge) Publish(ctx context.Context, msg Message) error {
	return b.channel.Publish(msg.Topic, toWatermill(msg))
}

// Subscribe starts delivering topic to handler in the background. Delivery
// stops when ctx is done or the bridge is closed.
func (b *WatermillBridge) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := b.channel.Subscribe(ctx, topic)
	if err != nil {
		return err
	}
	go b.consume(ctx, topic, messages, handler)
	return nil
}

// consume acks every message, including ones the handler failed on, so
// GoChannel never redelivers an event.
func (b *WatermillBridge) consume(ctx context.Context, topic string, messages <-chan *message.Message, handler Handler) {
	for in := range messages {
		if err := handler(ctx, fromWatermill(in)); err != nil {
			b.log.ErrorContext(ctx, "Event handler failed", "topic", topic, "msg_id", in.UUID, "error", err)
		}
		in.Ack()
	}
	b.log.Debug("Subscription ended", "topic", topic)
}

// Close shuts the GoChannel down and ends every subscription.
func (b *WatermillBridge) Close() error {
	return b.channel.Close()
}
