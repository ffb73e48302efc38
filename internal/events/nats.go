package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// subscribeBuffer bounds how many undelivered payloads a subscription holds
// before new ones are dropped.
const subscribeBuffer = 64

// NATSPublisher emits relay events as JSON on NATS subjects. The daemon
// holds one connection for its whole lifetime, so reconnects are unbounded.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("fieldnetd"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	return p.conn.Publish(topic, data)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NATSSubscriber consumes relay events: the CLI push tail and external
// delivery gateways read through it.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects with unbounded reconnects. Callers append
// nats.Option values for disconnect/reconnect logging.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	base := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

// Subscribe delivers raw payloads for topic (NATS wildcards work, e.g.
// "fieldnet.push.>") until the returned cancel is called. Cancel
// unsubscribes and closes the channel; calling it twice is fine.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan []byte, func(), error) {
	box := newInbox(subscribeBuffer)

	sub, err := s.conn.Subscribe(topic, func(msg *nats.Msg) {
		box.put(msg.Data)
	})
	if err != nil {
		box.shut()
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	// Flush so the subscription exists server-side before returning;
	// otherwise a publish on another connection can race it.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		box.shut()
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}

	cancel := func() {
		_ = sub.Unsubscribe()
		box.shut()
	}
	return box.ch, cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}

// inbox is the bounded channel behind Subscribe. NATS may run one last
// callback after Unsubscribe returns, so put checks the shut flag under
// the lock before touching the channel.
type inbox struct {
	ch chan []byte

	mu   sync.Mutex
	done bool
}

func newInbox(size int) *inbox {
	return &inbox{ch: make(chan []byte, size)}
}

func (b *inbox) put(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	select {
	case b.ch <- data:
	default:
		// Consumer is behind; drop rather than stall the dispatch goroutine.
	}
}

// shut drains unread payloads and closes the channel exactly once.
func (b *inbox) shut() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	b.done = true
	for {
		select {
		case <-b.ch:
		default:
			close(b.ch)
			return
		}
	}
}
