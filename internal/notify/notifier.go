// Package notify delivers committed outbox rows: lifecycle envelopes go to
// the event bus and user notifications go to a Notifier.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	segkafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
	"github.com/ariefcatur/go-asset-lifecycle/internal/kafka"
)

// Notifier is the notification collaborator. Its result only decides whether
// the outbox row is retried; it never reaches the caller of a transition.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message string, kind assets.NotificationKind) error
}

// EventPublisher puts lifecycle envelopes on the bus.
type EventPublisher interface {
	PublishEnvelope(ctx context.Context, env assets.Envelope) error
}

type publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...segkafka.Header) error
}

// KafkaPublisher publishes envelopes keyed by asset so that every event of
// one asset lands on the same partition.
type KafkaPublisher struct {
	p publisher
}

func NewKafkaPublisher(p *kafka.Producer) *KafkaPublisher { return &KafkaPublisher{p: p} }

func (k *KafkaPublisher) PublishEnvelope(ctx context.Context, env assets.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope %s: %w", env.EventID, err)
	}
	return k.p.Publish(ctx, assets.PartitionKey(env.CorrelationID), b,
		segkafka.Header{Key: kafka.HeaderEventType, Value: []byte(env.EventType)})
}

// KafkaNotifier hands notifications to whatever delivers them downstream.
type KafkaNotifier struct {
	p publisher
}

func NewKafkaNotifier(p *kafka.Producer) *KafkaNotifier { return &KafkaNotifier{p: p} }

func (k *KafkaNotifier) Notify(ctx context.Context, userID, title, message string, kind assets.NotificationKind) error {
	b, err := json.Marshal(assets.Notification{UserID: userID, Title: title, Message: message, Kind: kind})
	if err != nil {
		return err
	}
	return k.p.Publish(ctx, []byte(userID), b)
}

type LogNotifier struct {
	log logrus.FieldLogger
}

func NewLogNotifier(log logrus.FieldLogger) *LogNotifier { return &LogNotifier{log: log} }

func (l *LogNotifier) Notify(_ context.Context, userID, title, message string, kind assets.NotificationKind) error {
	l.log.WithFields(logrus.Fields{"user_id": userID, "kind": kind, "title": title}).Info(message)
	return nil
}
