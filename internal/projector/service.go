// Package projector keeps the Redis asset snapshot cache in step with the
// lifecycle topic.
package projector

import (
	"context"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
	kafkax "github.com/ariefcatur/go-asset-lifecycle/internal/kafka"
)

type SnapshotWriter interface {
	Put(ctx context.Context, a assets.Asset) (bool, error)
}

type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type Service struct {
	Cache SnapshotWriter
	Dedup Deduper
	Log   logrus.FieldLogger
}

// HandleLifecycleEvent is installed as the consumer handler. Events arrive at
// least once and possibly out of order; the cache only accepts newer
// versions, so replays are harmless.
func (s *Service) HandleLifecycleEvent(ctx context.Context, m kafka.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		// a poison message would block the partition forever
		s.Log.WithFields(logrus.Fields{
			"offset":     m.Offset,
			"event_type": kafkax.Header(m, kafkax.HeaderEventType),
			"error":      err,
		}).Error("drop undecodable event")
		return nil
	}
	log := s.Log.WithFields(logrus.Fields{"event_id": env.EventID, "event_type": env.EventType, "asset_id": env.CorrelationID})

	fresh, err := s.Dedup.Claim(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !fresh {
		log.Debug("duplicate event")
		return nil
	}

	p, err := kafkax.UnwrapPayload[assets.TransitionPayload](env.Payload)
	if err != nil {
		log.WithError(err).Error("drop event with bad payload")
		return nil
	}
	if p.Asset.ID == "" {
		return nil
	}

	applied, err := s.Cache.Put(ctx, p.Asset)
	if err != nil {
		if ferr := s.Dedup.Forget(ctx, env.EventID); ferr != nil {
			log.WithError(ferr).Warn("forget dedup claim")
		}
		return err
	}
	log.WithFields(logrus.Fields{"version": p.Asset.Version, "applied": applied}).Debug("snapshot projected")
	return nil
}
