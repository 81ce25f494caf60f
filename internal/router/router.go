package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/presence"
	"github.com/nfrund/huddle/internal/pubsub"
)

// MaxMessageBytes bounds the text of a single message.
const MaxMessageBytes = 4096

var (
	// ErrEmptyMessage is returned for a message with no text.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrMessageTooLong is returned for text over MaxMessageBytes.
	ErrMessageTooLong = errors.New("message text is too long")

	// ErrQueueFull is returned by Enqueue when the inbox has no room.
	ErrQueueFull = errors.New("router queue is full")
)

// RoomLog records a sender's latest message and reports the room members
// at that moment.
type RoomLog interface {
	RecordMessage(ctx context.Context, roomID, senderID uuid.UUID, payload domain.Payload) ([]uuid.UUID, error)
}

// Recipients resolves members to deliverable targets and evicts dead ones.
type Recipients interface {
	Targets(ctx context.Context, roomID uuid.UUID, members []uuid.UUID) []presence.Target
	Evict(ctx context.Context, t presence.Target) bool
}

// Config holds router limits.
type Config struct {
	// DeliveryTimeout bounds each single delivery.
	DeliveryTimeout time.Duration
	// QueueSize is the capacity of the Enqueue inbox.
	QueueSize int
	// FanoutLimit bounds concurrent deliveries for one message.
	FanoutLimit int
}

// DefaultConfig returns the limits used when a field is left zero.
func DefaultConfig() Config {
	return Config{
		DeliveryTimeout: 5 * time.Second,
		QueueSize:       1024,
		FanoutLimit:     64,
	}
}

// Outbound is a message waiting in the inbox.
type Outbound struct {
	SenderID uuid.UUID `json:"sender_id"`
	RoomID   uuid.UUID `json:"room_id"`
	Text     string    `json:"text"`
}

// Report summarizes one fan-out.
type Report struct {
	RoomID     uuid.UUID `json:"room_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	SentAt     time.Time `json:"sent_at"`
	Recipients int       `json:"recipients"`
	Delivered  int       `json:"delivered"`
	Failed     int       `json:"failed"`
	Evicted    int       `json:"evicted"`
}

// Router fans messages out to the connected members of a room.
type Router struct {
	rooms      RoomLog
	recipients Recipients
	publisher  pubsub.Publisher
	config     Config
	inbox      chan Outbound
	logger     *slog.Logger
	now        func() time.Time
}

// Option is a function that configures a Router.
type Option func(*Router)

// WithClock overrides the clock used to stamp payloads.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// New creates a router. publisher may be nil.
func New(rooms RoomLog, recipients Recipients, publisher pubsub.Publisher, config Config, opts ...Option) *Router {
	def := DefaultConfig()
	if config.DeliveryTimeout <= 0 {
		config.DeliveryTimeout = def.DeliveryTimeout
	}
	if config.QueueSize <= 0 {
		config.QueueSize = def.QueueSize
	}
	if config.FanoutLimit <= 0 {
		config.FanoutLimit = def.FanoutLimit
	}

	r := &Router{
		rooms:      rooms,
		recipients: recipients,
		publisher:  publisher,
		config:     config,
		inbox:      make(chan Outbound, config.QueueSize),
		logger:     slog.Default().With("service", "router"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Validate checks message text without routing it.
func Validate(text string) error {
	switch {
	case text == "":
		return ErrEmptyMessage
	case len(text) > MaxMessageBytes:
		return ErrMessageTooLong
	default:
		return nil
	}
}

// Enqueue hands a message to the inbox without waiting for delivery.
func (r *Router) Enqueue(ctx context.Context, out Outbound) error {
	if err := Validate(out.Text); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case r.inbox <- out:
		return nil
	default:
		r.logger.WarnContext(ctx, "Router inbox full, dropping message", "room_id", out.RoomID, "sender_id", out.SenderID)
		return ErrQueueFull
	}
}

// Run routes inbox messages in arrival order until ctx is done.
func (r *Router) Run(ctx context.Context) error {
	r.logger.Info("Router started", "queue_size", r.config.QueueSize, "fanout_limit", r.config.FanoutLimit)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Router stopped", "pending", len(r.inbox))
			return nil
		case out := <-r.inbox:
			if _, err := r.Route(ctx, out.SenderID, out.RoomID, out.Text); err != nil {
				r.logger.WarnContext(ctx, "Dropped queued message",
					"room_id", out.RoomID,
					"sender_id", out.SenderID,
					"error", err)
			}
		}
	}
}

// Route records the message as the sender's latest and delivers it to
// every connected member, the sender included. Individual delivery
// failures are counted in the report, never returned.
func (r *Router) Route(ctx context.Context, senderID, roomID uuid.UUID, text string) (Report, error) {
	if err := Validate(text); err != nil {
		return Report{}, err
	}

	payload := domain.NewPayload(text, r.now())
	members, err := r.rooms.RecordMessage(ctx, roomID, senderID, payload)
	if err != nil {
		return Report{}, fmt.Errorf("route to room %s: %w", roomID, err)
	}

	targets := r.recipients.Targets(ctx, roomID, members)
	report := r.fanOut(ctx, payload, targets)
	report.RoomID = roomID
	report.SenderID = senderID
	report.SentAt = payload.CreatedAt

	r.logger.DebugContext(ctx, "Message routed",
		"room_id", roomID,
		"sender_id", senderID,
		"recipients", report.Recipients,
		"delivered", report.Delivered,
		"failed", report.Failed)

	if r.publisher != nil {
		if err := pubsub.Publish(ctx, r.publisher, TopicMessageDispatched, report); err != nil {
			r.logger.ErrorContext(ctx, "Failed to publish dispatch report", "error", err, "topic", TopicMessageDispatched.Name())
		}
	}
	return report, nil
}

// fanOut delivers to each target in its own task. A task ends when its
// delivery returns, its timeout passes, or its binding is released.
func (r *Router) fanOut(ctx context.Context, payload domain.Payload, targets []presence.Target) Report {
	var (
		g         errgroup.Group
		delivered atomic.Int32
		failed    atomic.Int32
		evicted   atomic.Int32
	)
	g.SetLimit(r.config.FanoutLimit)

	for _, t := range targets {
		g.Go(func() error {
			err := r.deliver(ctx, t, payload)
			if err == nil {
				delivered.Add(1)
				return nil
			}

			failed.Add(1)
			if errors.Is(err, domain.ErrAddressClosed) && r.recipients.Evict(ctx, t) {
				evicted.Add(1)
			}
			r.logger.DebugContext(ctx, "Delivery failed", "client_id", t.ClientID, "error", err)
			return nil
		})
	}
	_ = g.Wait()

	return Report{
		Recipients: len(targets),
		Delivered:  int(delivered.Load()),
		Failed:     int(failed.Load()),
		Evicted:    int(evicted.Load()),
	}
}

func (r *Router) deliver(ctx context.Context, t presence.Target, payload domain.Payload) (err error) {
	dctx, cancel := context.WithTimeout(ctx, r.config.DeliveryTimeout)
	defer cancel()
	stop := context.AfterFunc(t.Context(), cancel)
	defer stop()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("address panicked: %v", p)
		}
	}()
	return t.Address.Deliver(dctx, payload)
}
