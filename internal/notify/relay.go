package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
	"github.com/ariefcatur/go-asset-lifecycle/internal/metrics"
	"github.com/ariefcatur/go-asset-lifecycle/internal/scheduler"
)

// OutboxStore is the read and acknowledge side of the transactional outbox.
type OutboxStore interface {
	Pending(ctx context.Context, limit int) ([]assets.OutboxEntry, error)
	MarkDispatched(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, cause string, maxAttempts int) error
}

type RelayOptions struct {
	BatchSize   int
	MaxAttempts int
	SweepSpec   string // cron spec for the periodic drain
}

// Relay delivers outbox rows after commit. Delivery is at least once: a row
// whose envelope was published but whose notification failed is retried as a
// whole, so consumers dedupe on event id.
type Relay struct {
	store     OutboxStore
	publisher EventPublisher
	notifier  Notifier
	opts      RelayOptions
	log       logrus.FieldLogger
	metrics   metrics.Recorder
	kick      chan struct{}
}

func NewRelay(store OutboxStore, pub EventPublisher, n Notifier, opts RelayOptions, log logrus.FieldLogger, rec metrics.Recorder) *Relay {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.SweepSpec == "" {
		opts.SweepSpec = "@every 5s"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if rec == nil {
		rec = metrics.NewNop()
	}
	return &Relay{
		store:     store,
		publisher: pub,
		notifier:  n,
		opts:      opts,
		log:       log,
		metrics:   rec,
		kick:      make(chan struct{}, 1),
	}
}

// Kick asks Run to drain soon. It never blocks.
func (r *Relay) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run drains on every Kick and on the sweep schedule until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	sweep, err := scheduler.NewScheduledTask(r.opts.SweepSpec, r.Kick)
	if err != nil {
		return fmt.Errorf("outbox sweep %q: %w", r.opts.SweepSpec, err)
	}
	defer sweep.Cancel()

	r.Kick()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.kick:
			if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
				r.log.WithError(err).Warn("outbox drain")
			}
		}
	}
}

// Drain delivers pending rows in creation order until none are left or a
// row in the batch fails. It returns the number of rows delivered.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	delivered := 0
	for {
		batch, err := r.store.Pending(ctx, r.opts.BatchSize)
		if err != nil {
			return delivered, err
		}
		if len(batch) == 0 {
			return delivered, nil
		}
		sent := 0
		for _, e := range batch {
			if ctx.Err() != nil {
				return delivered + sent, ctx.Err()
			}
			if r.dispatch(ctx, e) {
				sent++
			}
		}
		delivered += sent
		// Failed rows stay pending until the next drain.
		if sent < len(batch) || len(batch) < r.opts.BatchSize {
			return delivered, nil
		}
	}
}

func (r *Relay) dispatch(ctx context.Context, e assets.OutboxEntry) bool {
	log := r.log.WithFields(logrus.Fields{"outbox_id": e.ID, "event_type": e.Envelope.EventType, "event_id": e.Envelope.EventID})

	if err := r.deliver(ctx, e); err != nil {
		result := "failed"
		if e.Attempts+1 >= r.opts.MaxAttempts {
			result = "dead"
		}
		r.metrics.ObserveDispatch(result)
		log.WithFields(logrus.Fields{"attempt": e.Attempts + 1, "error": err}).Warn("outbox delivery failed")
		if merr := r.store.MarkFailed(ctx, e.ID, err.Error(), r.opts.MaxAttempts); merr != nil {
			log.WithError(merr).Error("outbox mark failed")
		}
		return false
	}

	if err := r.store.MarkDispatched(ctx, e.ID); err != nil {
		log.WithError(err).Error("outbox mark dispatched")
		return false
	}
	r.metrics.ObserveDispatch("dispatched")
	return true
}

func (r *Relay) deliver(ctx context.Context, e assets.OutboxEntry) error {
	var errs []error
	if r.publisher != nil {
		if err := r.publisher.PublishEnvelope(ctx, e.Envelope); err != nil {
			errs = append(errs, fmt.Errorf("publish: %w", err))
		}
	}
	if n := e.Notification; n != nil && r.notifier != nil {
		if err := r.notifier.Notify(ctx, n.UserID, n.Title, n.Message, n.Kind); err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", n.UserID, err))
		}
	}
	return errors.Join(errs...)
}
