package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chatapp/internal/domain"
	"chatapp/internal/observability"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// EventsExchange receives every room event; routing key is the event name
	EventsExchange = "chat.events"

	publishQueueSize = 1024
	publishTimeout   = 5 * time.Second
)

// channel is the subset of *amqp.Channel used by the publisher
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type roomEvent struct {
	room  string
	event domain.Outbound
}

// Publisher mirrors room events to a RabbitMQ fanout exchange so that
// other services can follow the chat. Publishing happens on its own
// goroutine; Record never blocks.
type Publisher struct {
	conn    *amqp.Connection
	channel channel
	queue   chan roomEvent
	now     func() time.Time
}

// NewRabbitMQ connects to url and declares the events exchange
func NewRabbitMQ(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	p := newPublisher(ch)
	p.conn = conn

	if err := p.Setup(); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

// NewRabbitMQWithRetry retries NewRabbitMQ with exponential backoff, giving
// up after attempts tries or when ctx is done.
func NewRabbitMQWithRetry(ctx context.Context, url string, attempts int) (*Publisher, error) {
	backoff := time.Second
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		p, err := NewRabbitMQ(url)
		if err == nil {
			return p, nil
		}
		lastErr = err

		slog.Warn("rabbitmq connection failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("retry_in", backoff),
			slog.String("error", err.Error()))

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 30*time.Second)
	}

	return nil, fmt.Errorf("rabbitmq unavailable after %d attempts: %w", attempts, lastErr)
}

func newPublisher(ch channel) *Publisher {
	return &Publisher{
		channel: ch,
		queue:   make(chan roomEvent, publishQueueSize),
		now:     time.Now,
	}
}

// Setup declares the events exchange
func (p *Publisher) Setup() error {
	if err := p.channel.ExchangeDeclare(
		EventsExchange, // name
		"fanout",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	); err != nil {
		return fmt.Errorf("failed to declare events exchange: %w", err)
	}

	slog.Info("rabbitmq setup completed successfully",
		slog.String("exchange", EventsExchange))
	return nil
}

// Record queues a room event for publishing. A full queue drops the event.
func (p *Publisher) Record(room string, ev domain.Outbound) {
	select {
	case p.queue <- roomEvent{room: room, event: ev}:
	default:
		observability.RecorderDropped.WithLabelValues("rabbitmq").Inc()
		slog.Warn("publish queue full, dropping event",
			slog.String("event", ev.EventName()),
			slog.String("room", room))
	}
}

// Run publishes queued events until ctx is cancelled, then publishes what
// is left in the queue.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return ctx.Err()
		case ev := <-p.queue:
			if ctx.Err() != nil {
				p.drain(ev)
				return ctx.Err()
			}
			p.publishQueued(ctx, ev)
		}
	}
}

// drain publishes pending and then the rest of the queue on a fresh,
// bounded context.
func (p *Publisher) drain(pending ...roomEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	for _, ev := range pending {
		p.publishQueued(ctx, ev)
	}
	for {
		select {
		case ev := <-p.queue:
			p.publishQueued(ctx, ev)
		default:
			return
		}
	}
}

func (p *Publisher) publishQueued(ctx context.Context, ev roomEvent) {
	if err := p.Publish(ctx, ev.room, ev.event); err != nil {
		slog.Error("failed to publish room event",
			slog.String("event", ev.event.EventName()),
			slog.String("room", ev.room),
			slog.String("error", err.Error()))
	}
}

// Publish sends one event to the exchange. The body is the same envelope
// websocket clients receive; the room travels in the headers.
func (p *Publisher) Publish(ctx context.Context, room string, ev domain.Outbound) error {
	body, err := domain.EncodeOutbound(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		EventsExchange,
		ev.EventName(),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    uuid.NewString(),
			Timestamp:    p.now(),
			Type:         ev.EventName(),
			Headers:      amqp.Table{"room": room},
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", ev.EventName(), err)
	}

	slog.Debug("published room event",
		slog.String("event", ev.EventName()),
		slog.String("room", room))
	return nil
}

// IsClosed reports whether the broker connection is gone
func (p *Publisher) IsClosed() bool {
	return p.conn == nil || p.conn.IsClosed()
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
