package event

import (
	"context"
	"fmt"

	"tariff-service/internal/config"
)

// Producer is a broker connection able to guarantee a topic exists and to
// send one payload at a time, returning only once the broker acknowledged it.
type Producer interface {
	Connect(ctx context.Context) error
	EnsureTopic(ctx context.Context, topic string) error
	Send(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// Sink is the enqueue side consumed by the services.
type Sink interface {
	Enqueue(ctx context.Context, message any, topic ...string) error
}

// NewProducer picks the broker implementation named by BROKER_DRIVER.
func NewProducer(cfg *config.TariffServiceConfig) (Producer, error) {
	switch cfg.BrokerDriver {
	case config.BrokerKafka, "":
		return NewKafkaProducer(cfg.KafkaCfg)
	case config.BrokerRabbitMQ:
		return NewRabbitMQProducer(cfg.RabbitMQCfg), nil
	default:
		return nil, fmt.Errorf("unsupported broker driver %q", cfg.BrokerDriver)
	}
}
