package mq

import (
	"errors"
	"fmt"

	"github.com/IBM/sarama"
)

var ErrNotConfigured = errors.New("kafka is not configured")

// Producer publishes outbox payloads. It wraps a sync producer so a send
// returns only after the brokers acknowledged it.
type Producer struct {
	producer sarama.SyncProducer
}

func NewProducer(brokers []string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, ErrNotConfigured
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Producer{producer: p}, nil
}

// NewProducerWith wraps an existing sync producer.
func NewProducerWith(p sarama.SyncProducer) *Producer {
	return &Producer{producer: p}
}

func (p *Producer) Publish(topic, key, value string) error {
	_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	})
	return err
}

func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
