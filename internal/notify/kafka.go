package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"cuterank/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaNotifier publishes moderation events for downstream consumers.
// Messages are keyed by user id so one user's events stay ordered.
type KafkaNotifier struct {
	writer messageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

func NewKafkaNotifier(w messageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: w}
}

type event struct {
	Type   string         `json:"type"`
	Notice *models.Notice `json:"notice,omitempty"`
	Review *models.Review `json:"review,omitempty"`
}

func (k *KafkaNotifier) NotifyUser(ctx context.Context, n models.Notice) error {
	return k.publish(ctx, n.UserID, event{Type: "notice", Notice: &n})
}

func (k *KafkaNotifier) RequestReview(ctx context.Context, r models.Review) error {
	return k.publish(ctx, r.UserID, event{Type: "review", Review: &r})
}

func (k *KafkaNotifier) publish(ctx context.Context, userID int64, ev event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(userID, 10)),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("kafka publish %s: %w", ev.Type, err)
	}
	return nil
}
