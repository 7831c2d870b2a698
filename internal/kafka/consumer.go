package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

const (
	handlerBackoffBase = 200 * time.Millisecond
	handlerBackoffCap  = 10 * time.Second
)

// Handler returns nil only when the message is processed and its offset may
// be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       messageReader
	workers int
	log     logrus.FieldLogger
}

func NewConsumer(brokers []string, group, topic string, workers int, log logrus.FieldLogger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // commit sync, setelah handler sukses
	})
	return newConsumer(r, workers, log)
}

func newConsumer(r messageReader, workers int, log logrus.FieldLogger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Consumer{r: r, workers: workers, log: log}
}

// Start fetches messages until ctx is done. Every partition is owned by one
// worker, so offsets are handled and committed in order. A failing message is
// retried with backoff and blocks its partition until it succeeds; nothing
// after it is committed first.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	lanes := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 256)
		wg.Add(1)
		go func(id int, jobs <-chan kafka.Message) {
			defer wg.Done()
			log := c.log.WithField("worker", id)
			for m := range jobs {
				if err := c.handle(ctx, h, m, log); err != nil {
					// ctx selesai; sisa pesan di-redeliver setelah restart
					return
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					log.WithError(err).Warn("commit failed")
				}
			}
		}(i, lanes[i])
	}
	defer wg.Wait()
	defer func() {
		for _, ch := range lanes {
			close(ch)
		}
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case lanes[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// handle retries h until it succeeds or ctx is done.
func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message, log logrus.FieldLogger) error {
	b := retry.NewExponential(handlerBackoffBase)
	b = retry.WithCappedDuration(handlerBackoffCap, b)

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := h(ctx, m); err != nil {
			log.WithFields(logrus.Fields{
				"topic": m.Topic, "partition": m.Partition, "offset": m.Offset,
				"attempt": attempt, "error": err,
			}).Warn("handler failed, retrying")
			return retry.RetryableError(err)
		}
		return nil
	})
}
