package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tariff-service/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQConnection holds the RabbitMQ connection and channel
type RabbitMQConnection struct {
	Connection *amqp.Connection
	Channel    *amqp.Channel
}

// ConnectRabbitMQ opens a connection and a channel in publisher confirm mode.
func ConnectRabbitMQ(cfg config.RabbitMQConfig) (*RabbitMQConnection, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	slog.Info("Connected to RabbitMQ", "host", cfg.Host, "port", cfg.Port)

	return &RabbitMQConnection{
		Connection: conn,
		Channel:    ch,
	}, nil
}

// Close closes the RabbitMQ connection and channel
func (r *RabbitMQConnection) Close() error {
	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil {
			slog.Error("failed to close RabbitMQ channel", "error", err)
		}
	}
	if r.Connection != nil {
		if err := r.Connection.Close(); err != nil {
			slog.Error("failed to close RabbitMQ connection", "error", err)
			return err
		}
	}
	slog.Info("RabbitMQ connection closed")
	return nil
}

// RabbitMQProducer maps topics onto durable queues on the default exchange
// and waits for the broker confirm of every publish.
type RabbitMQProducer struct {
	cfg  config.RabbitMQConfig
	conn *RabbitMQConnection
}

func NewRabbitMQProducer(cfg config.RabbitMQConfig) *RabbitMQProducer {
	return &RabbitMQProducer{cfg: cfg}
}

func (p *RabbitMQProducer) Connect(_ context.Context) error {
	conn, err := ConnectRabbitMQ(p.cfg)
	if err != nil {
		return err
	}
	p.conn = conn
	return nil
}

func (p *RabbitMQProducer) EnsureTopic(_ context.Context, topic string) error {
	if p.conn == nil {
		return errProducerNotConnected
	}

	_, err := p.conn.Channel.QueueDeclare(
		topic, // queue name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	return nil
}

func (p *RabbitMQProducer) Send(ctx context.Context, topic string, payload []byte) error {
	if p.conn == nil {
		return errProducerNotConnected
	}

	confirm, err := p.conn.Channel.PublishWithDeferredConfirmWithContext(
		ctx,
		"",    // exchange
		topic, // routing key (queue name)
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         payload,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	if confirm == nil {
		return errors.New("channel is not in confirm mode")
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed waiting for publish confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("broker rejected event for queue %s", topic)
	}
	return nil
}

func (p *RabbitMQProducer) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
