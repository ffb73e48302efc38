// Package push is the best-effort notification pipeline. Handlers enqueue,
// a relay worker expands community scopes to member nodes, filters by each
// node's preferences, and publishes one message per recipient on its NATS
// push subject. An external delivery gateway turns those into device
// notifications. Nothing here retries: a full queue drops, a failed publish
// logs a warning.
package push

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/arenvale/fieldnet/internal/events"
	"github.com/arenvale/fieldnet/internal/model"
	"github.com/arenvale/fieldnet/internal/store"
)

// DefaultQueueSize bounds how many undelivered notifications wait for the
// relay worker.
const DefaultQueueSize = 256

// Notification targets either one node or one community's members.
type Notification struct {
	NodeID      string
	CommunityID string
	Kind        string // one of the model push kinds
	Title       string
	Body        string
	Ref         string // event, task, or job ID the notification is about
}

// Queue buffers notifications between handlers and the relay worker.
type Queue struct {
	store store.Store
	pub   events.Publisher
	ch    chan Notification

	mu     sync.Mutex
	closed bool
}

func NewQueue(st store.Store, pub events.Publisher, size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		store: st,
		pub:   pub,
		ch:    make(chan Notification, size),
	}
}

// Enqueue queues a notification without blocking. When the queue is full or
// already stopped the notification is dropped.
func (q *Queue) Enqueue(n Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	select {
	case q.ch <- n:
	default:
		slog.Warn("push queue full, dropping notification",
			"kind", n.Kind, "node_id", n.NodeID, "community_id", n.CommunityID)
	}
}

// Run delivers queued notifications until the context is canceled or Stop
// is called. After Stop it drains what is already queued, then returns.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-q.ch:
			if !ok {
				return nil
			}
			q.deliver(ctx, n)
		}
	}
}

// Stop closes the intake. Pending notifications still drain through Run.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

func (q *Queue) deliver(ctx context.Context, n Notification) {
	for _, nodeID := range q.recipients(ctx, n) {
		pref, err := q.store.GetPushPreference(ctx, nodeID)
		if errors.Is(err, store.ErrNotFound) {
			pref = model.DefaultPushPreference(nodeID)
		} else if err != nil {
			slog.Warn("push preference lookup failed", "node_id", nodeID, "error", err)
			continue
		}
		if !pref.Allows(n.Kind) {
			continue
		}
		msg := events.PushMessage{
			NodeID: nodeID,
			Kind:   n.Kind,
			Title:  n.Title,
			Body:   n.Body,
			Ref:    n.Ref,
		}
		if err := q.pub.Publish(ctx, events.PushSubject(nodeID), msg); err != nil {
			slog.Warn("push publish failed", "node_id", nodeID, "kind", n.Kind, "error", err)
		}
	}
}

// recipients expands a notification to concrete node IDs.
func (q *Queue) recipients(ctx context.Context, n Notification) []string {
	if n.NodeID != "" {
		return []string{n.NodeID}
	}
	if n.CommunityID == "" {
		return nil
	}
	community, err := q.store.GetCommunity(ctx, n.CommunityID)
	if err != nil {
		slog.Warn("push community lookup failed", "community_id", n.CommunityID, "error", err)
		return nil
	}
	return community.MemberIDs()
}
