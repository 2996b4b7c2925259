package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/erazemk/assettrack/internal/model"
	"github.com/erazemk/assettrack/internal/store"
)

// StoreSink appends entries to the audit_logs table.
type StoreSink struct {
	DB *sql.DB
}

func (s StoreSink) Name() string { return "store" }

func (s StoreSink) Write(ctx context.Context, entry *model.AuditLog) error {
	return store.CreateAuditLog(ctx, s.DB, entry)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes entries as JSON to a Kafka topic, keyed by entity.
type KafkaSink struct {
	writer messageWriter
}

// NewKafkaSink creates a synchronous producer for the given brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 10 * time.Second,
	}}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, entry *model.AuditLog) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding audit entry: %w", err)
	}
	key := entry.EntityType
	if entry.EntityID != nil {
		key += ":" + strconv.FormatInt(*entry.EntityID, 10)
	}
	if err := s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  entry.CreatedAt,
	}); err != nil {
		return fmt.Errorf("publishing audit entry: %w", err)
	}
	return nil
}

// Close flushes and closes the producer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
