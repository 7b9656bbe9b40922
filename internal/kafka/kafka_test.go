package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-petevents/internal/config"
	"ms-petevents/internal/logger"
	"ms-petevents/internal/models"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

type fakeReader struct {
	messages  []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.messages) == 0 {
		f.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := f.messages[0]
	f.messages = f.messages[1:]
	return msg, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func testTopics() config.TopicConfig {
	return config.TopicConfig{
		EnrollmentCreated: "t.enrollment",
		EventCreated:      "t.event.created",
		EventDeleted:      "t.event.deleted",
		ReviewCreated:     "t.review",
	}
}

func TestDomainPublisherRoutesTopicsAndKeys(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: logger.NewLoggerWithWriter(nil)}
	d := NewDomainPublisher(p, testTopics())
	ctx := context.Background()

	require.NoError(t, d.PublishEnrollmentCreated(ctx, models.EnrollmentCreatedMessage{EventID: "ev-1", PetID: "pet-1", EnrolledCount: 1}))
	require.NoError(t, d.PublishEventCreated(ctx, models.EventChangedMessage{EventID: "ev-2", Action: "created"}))
	require.NoError(t, d.PublishEventDeleted(ctx, models.EventChangedMessage{EventID: "ev-2", Action: "deleted"}))
	require.NoError(t, d.PublishReviewCreated(ctx, models.ReviewCreatedMessage{EventID: "ev-3", Rating: 5}))

	require.Len(t, w.messages, 4)
	assert.Equal(t, "t.enrollment", w.messages[0].Topic)
	assert.Equal(t, "ev-1", string(w.messages[0].Key))
	assert.Equal(t, "t.event.created", w.messages[1].Topic)
	assert.Equal(t, "t.event.deleted", w.messages[2].Topic)
	assert.Equal(t, "t.review", w.messages[3].Topic)

	var decoded models.EnrollmentCreatedMessage
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &decoded))
	assert.Equal(t, "pet-1", decoded.PetID)
	assert.Equal(t, 1, decoded.EnrolledCount)
}

func TestProducerWrapsWriteErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &Producer{writer: w, logger: logger.NewLoggerWithWriter(nil)}

	err := p.Publish(context.Background(), "t.enrollment", "k", []byte("{}"))
	assert.ErrorContains(t, err, "t.enrollment")
	assert.ErrorContains(t, err, "broker down")
}

func TestDomainPublisherReportsFailures(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &Producer{writer: w, logger: logger.NewLoggerWithWriter(nil)}
	d := NewDomainPublisher(p, testTopics())
	var failed []string
	d.OnFailure = func(topic string) { failed = append(failed, topic) }

	err := d.PublishReviewCreated(context.Background(), models.ReviewCreatedMessage{EventID: "ev-3"})
	assert.Error(t, err)
	assert.Equal(t, []string{"t.review"}, failed)
}

func TestNoopPublisher(t *testing.T) {
	var n NoopPublisher
	assert.NoError(t, n.PublishEnrollmentCreated(context.Background(), models.EnrollmentCreatedMessage{}))
	assert.NoError(t, n.PublishReviewCreated(context.Background(), models.ReviewCreatedMessage{}))
}

func TestConsumerHandlesAndCommits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	good, _ := json.Marshal(models.EnrollmentCreatedMessage{EventID: "ev-1", PetID: "pet-1"})
	failing, _ := json.Marshal(models.EnrollmentCreatedMessage{EventID: "ev-fail"})
	reader := &fakeReader{
		cancel: cancel,
		messages: []kafka.Message{
			{Topic: "t.enrollment", Offset: 1, Value: good},
			{Topic: "t.enrollment", Offset: 2, Value: []byte("not json")},
			{Topic: "t.enrollment", Offset: 3, Value: failing},
		},
	}
	c := &Consumer{reader: reader, logger: logger.NewLoggerWithWriter(nil)}

	var handled []string
	err := c.Start(ctx, func(_ context.Context, msg models.EnrollmentCreatedMessage) error {
		handled = append(handled, msg.EventID)
		if msg.EventID == "ev-fail" {
			return errors.New("db down")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"ev-1", "ev-fail"}, handled)
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
}
