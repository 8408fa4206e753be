package itinerary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/segmentio/kafka-go"
)

// objectNotification is the S3 event notification format emitted by MinIO and S3 compatible stores
type objectNotification struct {
	EventName string `json:"EventName"`
	Records   []struct {
		EventName string `json:"eventName"`
		S3        struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key         string `json:"key"`
				ContentType string `json:"contentType"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// DecodeObjectNotification turns an object-created notification into storage events.
// Records for other event types are ignored.
func DecodeObjectNotification(data []byte) ([]StorageEvent, error) {
	var n objectNotification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decoding notification: %w", err)
	}

	events := make([]StorageEvent, 0, len(n.Records))
	for _, r := range n.Records {
		name := r.EventName
		if name == "" {
			name = n.EventName
		}
		if !strings.Contains(name, "ObjectCreated") {
			continue
		}
		// keys are URL encoded in notifications
		key, err := url.QueryUnescape(r.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("decoding object key %q: %w", r.S3.Object.Key, err)
		}
		events = append(events, StorageEvent{
			Bucket:      r.S3.Bucket.Name,
			ObjectPath:  key,
			ContentType: r.S3.Object.ContentType,
		})
	}
	return events, nil
}

// KafkaTrigger feeds object notifications from a Kafka topic into an EventSink
type KafkaTrigger struct {
	reader *kafka.Reader
	sink   EventSink
}

// NewKafkaTrigger creates a consumer group reader on topic
func NewKafkaTrigger(brokers []string, topic string, groupID string, sink EventSink) *KafkaTrigger {
	return &KafkaTrigger{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		sink: sink,
	}
}

// Run consumes until ctx is cancelled. Undecodable messages are logged and skipped.
func (k *KafkaTrigger) Run(ctx context.Context) error {
	slog.Info("Kafka trigger started", "topic", k.reader.Config().Topic)
	for {
		msg, err := k.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("reading message: %w", err)
		}

		events, err := DecodeObjectNotification(msg.Value)
		if err != nil {
			slog.Warn("Skipped undecodable notification", "offset", msg.Offset, "error", err)
			continue
		}
		for _, event := range events {
			k.sink.Dispatch(event)
		}
	}
}

// Close closes the reader
func (k *KafkaTrigger) Close() error {
	return k.reader.Close()
}
