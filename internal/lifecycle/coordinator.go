package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-asset-lifecycle/internal/assets"
	"github.com/ariefcatur/go-asset-lifecycle/internal/metrics"
)

type Options struct {
	MaxWait  time.Duration // waiting to acquire the transaction and its row locks
	Timeout  time.Duration // budget for the whole unit of work
	Producer string        // envelope producer name
}

// Committed describes a unit of work that has been committed.
type Committed struct {
	Op     string
	Assets []assets.Asset // final snapshot of every asset written
	Events int            // outbox rows appended
}

// Coordinator runs every manager step inside exactly one transaction and is
// the single place where errors are classified.
type Coordinator struct {
	store   Store
	opts    Options
	log     logrus.FieldLogger
	metrics metrics.Recorder
	now     func() time.Time
	hooks   []func(Committed)
}

func NewCoordinator(store Store, opts Options, log logrus.FieldLogger, rec metrics.Recorder) *Coordinator {
	if opts.MaxWait <= 0 {
		opts.MaxWait = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Producer == "" {
		opts.Producer = "asset-lifecycle"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if rec == nil {
		rec = metrics.NewNop()
	}
	return &Coordinator{
		store:   store,
		opts:    opts,
		log:     log,
		metrics: rec,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// AfterCommit registers a hook invoked after every successful commit. Hooks
// run synchronously before the operation returns, so keep them bounded; a
// panicking hook is logged and ignored.
func (c *Coordinator) AfterCommit(hook func(Committed)) {
	c.hooks = append(c.hooks, hook)
}

// Execute runs fn in one unit of work: begin, fn, commit. Any error rolls the
// whole unit back.
func (c *Coordinator) Execute(ctx context.Context, op string, fn func(ctx context.Context, uow *UnitOfWork) error) error {
	start := time.Now()
	uow, err := c.run(ctx, op, fn, false)
	c.metrics.ObserveOperation(op, outcome(err), time.Since(start).Seconds())
	if err != nil {
		return err
	}
	c.afterCommit(uow)
	return nil
}

// View runs fn in a unit of work that is always rolled back.
func (c *Coordinator) View(ctx context.Context, op string, fn func(ctx context.Context, uow *UnitOfWork) error) error {
	_, err := c.run(ctx, op, fn, true)
	return err
}

func (c *Coordinator) run(ctx context.Context, op string, fn func(ctx context.Context, uow *UnitOfWork) error, readOnly bool) (uow *UnitOfWork, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	tx, err := c.store.Begin(ctx, TxOptions{MaxWait: c.opts.MaxWait, Timeout: c.opts.Timeout})
	if err != nil {
		return nil, c.classify(ctx, op, err)
	}

	uow = &UnitOfWork{
		tx:       tx,
		op:       op,
		now:      c.now(),
		producer: c.opts.Producer,
		touched:  map[string]assets.Asset{},
	}

	defer func() {
		if p := recover(); p != nil {
			c.rollback(ctx, tx, op)
			panic(p)
		}
	}()

	if err := fn(ctx, uow); err != nil {
		c.rollback(ctx, tx, op)
		return nil, c.classify(ctx, op, err)
	}
	if readOnly {
		c.rollback(ctx, tx, op)
		return uow, nil
	}
	if err := tx.Commit(ctx); err != nil {
		c.rollback(ctx, tx, op)
		return nil, c.classify(ctx, op, err)
	}
	return uow, nil
}

func (c *Coordinator) rollback(ctx context.Context, tx Tx, op string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := tx.Rollback(rctx); err != nil {
		c.log.WithFields(logrus.Fields{"op": op, "error": err}).Debug("rollback")
	}
}

func (c *Coordinator) classify(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, assets.ErrValidation),
		errors.Is(err, assets.ErrNotFound),
		errors.Is(err, assets.ErrInvalidState),
		errors.Is(err, assets.ErrConflict):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), ctx.Err() != nil:
		return fmt.Errorf("%w: %s did not finish within its time budget", assets.ErrConflict, op)
	default:
		c.log.WithFields(logrus.Fields{"op": op, "error": err}).Error("unit of work failed")
		return fmt.Errorf("%s: %w", op, assets.ErrInternal)
	}
}

func (c *Coordinator) afterCommit(uow *UnitOfWork) {
	if len(c.hooks) == 0 {
		return
	}
	done := Committed{Op: uow.op, Events: uow.events}
	for _, a := range uow.touched {
		done.Assets = append(done.Assets, a)
	}
	for _, hook := range c.hooks {
		func() {
			defer func() {
				if p := recover(); p != nil {
					c.log.WithFields(logrus.Fields{"op": uow.op, "panic": p}).Error("after-commit hook")
				}
			}()
			hook(done)
		}()
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, assets.ErrValidation):
		return "validation"
	case errors.Is(err, assets.ErrNotFound):
		return "not_found"
	case errors.Is(err, assets.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, assets.ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}

// UnitOfWork is the explicit transaction handle passed through every manager
// step. It is committed or rolled back only by the Coordinator.
type UnitOfWork struct {
	tx       Tx
	op       string
	now      time.Time
	producer string
	touched  map[string]assets.Asset
	events   int
}

func (u *UnitOfWork) Tx() Tx { return u.tx }

// Now is fixed for the whole unit so every row written shares one timestamp.
func (u *UnitOfWork) Now() time.Time { return u.now }

// Transition checks the central transition table.
func (u *UnitOfWork) Transition(entity assets.Entity, id, from, to string) error {
	if !assets.CanTransition(entity, from, to) {
		return fmt.Errorf("%w: %s %s cannot move from %s to %s", assets.ErrInvalidState, entity, id, from, to)
	}
	return nil
}

// Event is a lifecycle event recorded into the outbox of the current unit.
type Event struct {
	Type     string
	Entity   assets.Entity
	RecordID string
	From     string
	To       string
	Asset    assets.Asset
	Notify   *assets.Notification
}

func (u *UnitOfWork) Emit(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(assets.TransitionPayload{
		Entity:   ev.Entity,
		RecordID: ev.RecordID,
		AssetID:  ev.Asset.ID,
		From:     ev.From,
		To:       ev.To,
		Asset:    ev.Asset,
	})
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", ev.Type, err)
	}
	entry := assets.OutboxEntry{
		ID: uuid.NewString(),
		Envelope: assets.Envelope{
			EventID:       uuid.NewString(),
			EventType:     ev.Type,
			EventVersion:  1,
			OccurredAt:    u.now,
			Producer:      u.producer,
			CorrelationID: ev.Asset.ID,
			Payload:       payload,
		},
		Notification: ev.Notify,
		Status:       assets.OutboxPending,
		CreatedAt:    u.now,
	}
	if err := u.tx.AppendOutbox(ctx, entry); err != nil {
		return err
	}
	u.events++
	return nil
}

func (u *UnitOfWork) touch(a assets.Asset) {
	u.touched[a.ID] = a
}
