// Package events publishes booking lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/transfer-booking/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, ev models.BookingEvent) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, models.BookingEvent) error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducer struct {
	writer  messageWriter
	timeout time.Duration
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.Hash{}})
	return &KafkaProducer{writer: w, timeout: 2 * time.Second}
}

// Publish keys messages by booking uuid so one booking's events stay ordered.
func (k *KafkaProducer) Publish(ctx context.Context, ev models.BookingEvent) error {
	if ev.At == 0 {
		ev.At = time.Now().Unix()
	}
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.UUID), Value: b})
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
