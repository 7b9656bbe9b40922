package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"ms-petevents/internal/config"
	"ms-petevents/internal/models"
)

type publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// DomainPublisher serializes domain messages onto their configured topics.
type DomainPublisher struct {
	producer publisher
	topics   config.TopicConfig
	// OnFailure, when set, is called with the topic of every failed publish.
	OnFailure func(topic string)
}

func NewDomainPublisher(producer publisher, topics config.TopicConfig) *DomainPublisher {
	return &DomainPublisher{producer: producer, topics: topics}
}

func (d *DomainPublisher) PublishEnrollmentCreated(ctx context.Context, msg models.EnrollmentCreatedMessage) error {
	return d.publishJSON(ctx, d.topics.EnrollmentCreated, msg.EventID, msg)
}

func (d *DomainPublisher) PublishEventCreated(ctx context.Context, msg models.EventChangedMessage) error {
	return d.publishJSON(ctx, d.topics.EventCreated, msg.EventID, msg)
}

func (d *DomainPublisher) PublishEventDeleted(ctx context.Context, msg models.EventChangedMessage) error {
	return d.publishJSON(ctx, d.topics.EventDeleted, msg.EventID, msg)
}

func (d *DomainPublisher) PublishReviewCreated(ctx context.Context, msg models.ReviewCreatedMessage) error {
	return d.publishJSON(ctx, d.topics.ReviewCreated, msg.EventID, msg)
}

func (d *DomainPublisher) publishJSON(ctx context.Context, topic, key string, v interface{}) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", topic, err)
	}
	if err := d.producer.Publish(ctx, topic, key, value); err != nil {
		if d.OnFailure != nil {
			d.OnFailure(topic)
		}
		return err
	}
	return nil
}

// NoopPublisher drops every message. Used when KAFKA_ENABLED=false.
type NoopPublisher struct{}

func (NoopPublisher) PublishEnrollmentCreated(context.Context, models.EnrollmentCreatedMessage) error {
	return nil
}

func (NoopPublisher) PublishEventCreated(context.Context, models.EventChangedMessage) error {
	return nil
}

func (NoopPublisher) PublishEventDeleted(context.Context, models.EventChangedMessage) error {
	return nil
}

func (NoopPublisher) PublishReviewCreated(context.Context, models.ReviewCreatedMessage) error {
	return nil
}
