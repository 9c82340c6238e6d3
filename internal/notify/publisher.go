package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

// Message is the body published to the notifications queue.
type Message struct {
	NotificationID int64                   `json:"notification_id"`
	UserID         int64                   `json:"user_id"`
	Email          string                  `json:"email,omitempty"`
	Type           domain.NotificationType `json:"type"`
	Title          string                  `json:"title"`
	Message        string                  `json:"message"`
	Priority       domain.Priority         `json:"priority"`
	Data           map[string]any          `json:"data,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// RabbitMQPublisher is an implementation of Publisher using RabbitMQ
type RabbitMQPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
	log     zerolog.Logger
}

func NewRabbitMQPublisher(url, queueName string, log zerolog.Logger) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	queue, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queueName, err)
	}

	return &RabbitMQPublisher{conn: conn, channel: ch, queue: queue, log: log}, nil
}

// Publish sends a notification to the queue as persistent JSON.
func (p *RabbitMQPublisher) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	err = p.channel.Publish(
		"",           // default exchange
		p.queue.Name, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    msg.CreatedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue.Name, err)
	}

	p.log.Debug().Int64("user_id", msg.UserID).Str("type", string(msg.Type)).Msg("notification published")
	return nil
}

func (p *RabbitMQPublisher) Close() {
	p.channel.Close()
	p.conn.Close()
}

// NopPublisher drops every message. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Message) error { return nil }
