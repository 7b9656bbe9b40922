package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-petevents/internal/logger"
	"ms-petevents/internal/models"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EnrollmentHandler reacts to a committed enrollment.
type EnrollmentHandler func(ctx context.Context, msg models.EnrollmentCreatedMessage) error

type Consumer struct {
	reader messageReader
	logger *logger.Logger
}

func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, logger: log}
}

// Start consumes until ctx is cancelled. Messages that fail to decode are
// committed and skipped; handler failures are logged and committed so one
// bad event cannot stall the partition.
func (c *Consumer) Start(ctx context.Context, handler EnrollmentHandler) error {
	c.logger.Info("KAFKA", "Enrollment consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				c.logger.Info("KAFKA", "Enrollment consumer stopped")
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		var event models.EnrollmentCreatedMessage
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal message at offset %d: %v", msg.Offset, err))
		} else if err := handler(ctx, event); err != nil {
			c.logger.Error("KAFKA", fmt.Sprintf("Handler failed for event %s: %v", event.EventID, err))
		} else {
			c.logger.LogKafka("CONSUME", msg.Topic, event.EventID, fmt.Sprintf("pet=%s count=%d", event.PetID, event.EnrolledCount))
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("KAFKA", fmt.Sprintf("Commit failed at offset %d: %v", msg.Offset, err))
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
