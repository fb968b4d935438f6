package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer buffers messages in memory and writes them from one goroutine,
// so Publish never blocks a request on the broker.
type Producer struct {
	w       *kafka.Writer
	log     *slog.Logger
	inbox   chan kafka.Message
	closeCh chan struct{}
	once    sync.Once
}

func NewProducer(brokers []string, topic string, buf int, log *slog.Logger) *Producer {
	if log == nil {
		log = slog.Default()
	}
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		log:     log.With("topic", topic),
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start runs the writer loop until ctx is done or Close is called, then
// flushes what is left in the buffer.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.Close()
				p.drain()
				return
			case m, ok := <-p.inbox:
				if !ok {
					p.finish()
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) drain() {
	for m := range p.inbox {
		p.write(m)
	}
	p.finish()
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.log.Error("kafka write failed", "key", string(m.Key), "err", err)
	}
}

func (p *Producer) finish() {
	if err := p.w.Close(); err != nil {
		p.log.Warn("kafka writer close", "err", err)
	}
}

func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	defer func() {
		// Publish after Close drops the message instead of crashing the caller.
		if recover() != nil {
			p.log.Warn("publish after close dropped", "key", string(key))
		}
	}()
	p.inbox <- kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
}

// Close stops accepting messages; the loop flushes the rest and exits.
func (p *Producer) Close() { p.once.Do(func() { close(p.inbox) }) }

func (p *Producer) WaitClosed() { <-p.closeCh }
