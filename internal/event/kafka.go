package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"tariff-service/internal/config"

	kafka "github.com/segmentio/kafka-go"
)

var errProducerNotConnected = errors.New("producer is not connected")

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// topicAdmin covers the cluster metadata calls needed at startup.
type topicAdmin interface {
	TopicExists(ctx context.Context, topic string) (bool, error)
	CreateTopic(ctx context.Context, topic string) error
	Close() error
}

// KafkaProducer writes events synchronously with acks from all in-sync
// replicas.
type KafkaProducer struct {
	brokers      []string
	clientID     string
	batchTimeout time.Duration
	dialer       *kafka.Dialer

	writer kafkaWriter
	admin  topicAdmin
}

func NewKafkaProducer(cfg config.KafkaConfig) (*KafkaProducer, error) {
	brokers := normalizeBrokers(strings.Split(cfg.BootstrapServers(), ","))
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka producer requires at least one broker")
	}

	return &KafkaProducer{
		brokers:      brokers,
		clientID:     cfg.ClientID,
		batchTimeout: 10 * time.Millisecond,
		dialer: &kafka.Dialer{
			ClientID:  cfg.ClientID,
			Timeout:   10 * time.Second,
			DualStack: true,
		},
	}, nil
}

func normalizeBrokers(brokers []string) []string {
	out := make([]string, 0, len(brokers))
	for _, broker := range brokers {
		broker = strings.TrimSpace(broker)
		if broker == "" || strings.HasPrefix(broker, ":") {
			continue
		}
		out = append(out, broker)
	}
	return out
}

func (p *KafkaProducer) Connect(ctx context.Context) error {
	conn, err := p.dialer.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to kafka broker %s: %w", p.brokers[0], err)
	}
	p.admin = &connAdmin{conn: conn, dialer: p.dialer}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: false,
		Async:                  false,
		BatchTimeout:           p.batchTimeout,
	}
	if p.clientID != "" {
		writer.Transport = &kafka.Transport{ClientID: p.clientID}
	}
	p.writer = writer

	slog.Info("Connected to Kafka", "brokers", strings.Join(p.brokers, ","))
	return nil
}

// EnsureTopic creates topic with one partition and replication factor one
// when the cluster does not know it yet.
func (p *KafkaProducer) EnsureTopic(ctx context.Context, topic string) error {
	if p.admin == nil {
		return errProducerNotConnected
	}

	exists, err := p.admin.TopicExists(ctx, topic)
	if err != nil {
		return fmt.Errorf("failed to read topic metadata: %w", err)
	}
	if exists {
		slog.Info("Kafka topic already exists", "topic", topic)
		return nil
	}

	if err := p.admin.CreateTopic(ctx, topic); err != nil {
		return fmt.Errorf("failed to create topic %s: %w", topic, err)
	}
	slog.Info("Created Kafka topic", "topic", topic)
	return nil
}

func (p *KafkaProducer) Send(ctx context.Context, topic string, payload []byte) error {
	if p.writer == nil {
		return errProducerNotConnected
	}

	msg := kafka.Message{
		Topic: topic,
		Value: payload,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "content_type", Value: []byte("application/json")},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing kafka message to topic %q: %w", topic, err)
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	var errs []error
	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close kafka writer: %w", err))
		}
		p.writer = nil
	}
	if p.admin != nil {
		if err := p.admin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close kafka connection: %w", err))
		}
		p.admin = nil
	}
	if len(errs) == 0 {
		slog.Info("Kafka producer closed")
	}
	return errors.Join(errs...)
}

type connAdmin struct {
	conn   *kafka.Conn
	dialer *kafka.Dialer
}

func (a *connAdmin) TopicExists(_ context.Context, topic string) (bool, error) {
	partitions, err := a.conn.ReadPartitions()
	if err != nil {
		return false, err
	}
	for _, p := range partitions {
		if p.Topic == topic {
			return true, nil
		}
	}
	return false, nil
}

// CreateTopic goes through the controller broker, the only one allowed to
// create topics.
func (a *connAdmin) CreateTopic(ctx context.Context, topic string) error {
	controller, err := a.conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to find controller: %w", err)
	}

	addr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	ctrl, err := a.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to controller %s: %w", addr, err)
	}
	defer ctrl.Close()

	err = ctrl.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return err
	}
	return nil
}

func (a *connAdmin) Close() error {
	return a.conn.Close()
}
