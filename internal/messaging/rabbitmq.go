package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Hamxay/-WhatsApp-API-server/internal/domain"
	"github.com/Hamxay/-WhatsApp-API-server/internal/observability"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange           = "chat.events"
	MessageCreatedRoutingKey = "message.created"
)

// MessageCreatedEvent is published after a message has been stored and broadcast
type MessageCreatedEvent struct {
	EventID    string             `json:"event_id"`
	Type       string             `json:"type"`
	MessageID  int64              `json:"message_id"`
	ChatroomID string             `json:"chatroom_id"`
	Author     string             `json:"user"`
	Kind       domain.MessageKind `json:"kind"`
	Content    string             `json:"content"`
	CreatedAt  time.Time          `json:"created_at"`
	Timestamp  int64              `json:"timestamp"`
}

// NewMessageCreatedEvent builds the event payload for msg
func NewMessageCreatedEvent(msg *domain.Message) *MessageCreatedEvent {
	return &MessageCreatedEvent{
		EventID:    uuid.NewString(),
		Type:       MessageCreatedRoutingKey,
		MessageID:  msg.ID,
		ChatroomID: msg.ChatroomID,
		Author:     msg.Author,
		Kind:       msg.Kind,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt,
		Timestamp:  time.Now().Unix(),
	}
}

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	// serializes publishes from concurrent chat sessions on the shared channel
	publishMu sync.Mutex
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	rmq := &RabbitMQ{
		conn:    conn,
		channel: ch,
	}

	if err := rmq.Setup(); err != nil {
		rmq.Close()
		return nil, err
	}

	return rmq, nil
}

// NewRabbitMQWithRetry keeps dialing with exponential backoff until the broker
// accepts the connection or ctx is done
func NewRabbitMQWithRetry(ctx context.Context, url string) (*RabbitMQ, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = 0

	attempt := 0
	var rmq *RabbitMQ
	err := backoff.Retry(func() error {
		attempt++
		conn, err := NewRabbitMQ(url)
		if err != nil {
			slog.Warn("rabbitmq not ready, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return err
		}
		rmq = conn
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, fmt.Errorf("rabbitmq unavailable after %d attempts: %w", attempt, err)
	}

	return rmq, nil
}

func (r *RabbitMQ) Setup() error {
	if err := r.channel.ExchangeDeclare(
		EventsExchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	); err != nil {
		return fmt.Errorf("failed to declare events exchange: %w", err)
	}

	slog.Info("rabbitmq setup completed successfully", slog.String("exchange", EventsExchange))
	return nil
}

// PublishMessageCreated announces a stored message on the events exchange
func (r *RabbitMQ) PublishMessageCreated(ctx context.Context, msg *domain.Message) error {
	event := NewMessageCreatedEvent(msg)
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	r.publishMu.Lock()
	err = r.channel.PublishWithContext(
		ctx,
		EventsExchange,
		MessageCreatedRoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.EventID,
			Timestamp:    time.Unix(event.Timestamp, 0),
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	r.publishMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	observability.FromContext(ctx).Debug("published message event",
		slog.String("event_id", event.EventID),
		slog.Int64("message_id", msg.ID))
	return nil
}

// ConsumeMessageEvents binds a fresh exclusive queue to the events exchange.
// Downstream subscribers and tests use it to observe published events.
func (r *RabbitMQ) ConsumeMessageEvents() (<-chan amqp.Delivery, error) {
	q, err := r.channel.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare events queue: %w", err)
	}

	if err := r.channel.QueueBind(q.Name, MessageCreatedRoutingKey, EventsExchange, false, nil); err != nil {
		return nil, fmt.Errorf("failed to bind events queue: %w", err)
	}

	msgs, err := r.channel.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	return msgs, nil
}

func (r *RabbitMQ) IsClosed() bool {
	return r.conn == nil || r.conn.IsClosed()
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
