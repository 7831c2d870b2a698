package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

var ErrProducerClosed = errors.New("kafka: producer closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type outgoing struct {
	msg  kafka.Message
	done chan error
}

// Producer funnels publishes through one writer goroutine. Publish waits for
// the broker acknowledgement so callers can tell delivered from failed.
type Producer struct {
	w       messageWriter
	inbox   chan outgoing
	stopCh  chan struct{}
	closeCh chan struct{}
	once    sync.Once
	log     logrus.FieldLogger
}

func NewProducer(brokers []string, topic string, buf int, log logrus.FieldLogger) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // key = asset_id
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}, buf, log)
}

func newProducer(w messageWriter, buf int, log logrus.FieldLogger) *Producer {
	if buf <= 0 {
		buf = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Producer{
		w:       w,
		inbox:   make(chan outgoing, buf),
		stopCh:  make(chan struct{}),
		closeCh: make(chan struct{}),
		log:     log,
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.flush()
				return
			case <-p.stopCh:
				p.flush()
				return
			case o := <-p.inbox:
				// ctx background: jangan batal di tengah write
				o.done <- p.w.WriteMessages(context.Background(), o.msg)
			}
		}
	}()
}

// flush writes what is already queued, then closes the writer.
func (p *Producer) flush() {
	for {
		select {
		case o := <-p.inbox:
			o.done <- p.w.WriteMessages(context.Background(), o.msg)
		default:
			if err := p.w.Close(); err != nil {
				p.log.WithError(err).Warn("kafka writer close")
			}
			return
		}
	}
}

func (p *Producer) Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	o := outgoing{
		msg: kafka.Message{
			Key:     key,
			Value:   value,
			Time:    time.Now(),
			Headers: headers,
		},
		done: make(chan error, 1),
	}
	select {
	case <-p.stopCh:
		return ErrProducerClosed
	case <-p.closeCh:
		return ErrProducerClosed
	default:
	}
	select {
	case p.inbox <- o:
	case <-p.closeCh:
		return ErrProducerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-o.done:
		return err
	case <-p.closeCh:
		select {
		case err := <-o.done:
			return err
		default:
			return ErrProducerClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close asks the writer goroutine to flush queued messages and exit.
func (p *Producer) Close() { p.once.Do(func() { close(p.stopCh) }) }

// WaitClosed blocks until the writer goroutine has exited.
func (p *Producer) WaitClosed() { <-p.closeCh }
