// Package server implements the fieldnet HTTP API: node registry, event
// ingestion, spatial aggregation, communities with realtime fan-out, the two
// work marketplaces, and push preferences.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/arenvale/fieldnet/internal/blob"
	"github.com/arenvale/fieldnet/internal/events"
	"github.com/arenvale/fieldnet/internal/heartbeat"
	"github.com/arenvale/fieldnet/internal/hexgrid"
	"github.com/arenvale/fieldnet/internal/model"
	"github.com/arenvale/fieldnet/internal/push"
	"github.com/arenvale/fieldnet/internal/rooms"
	"github.com/arenvale/fieldnet/internal/store"
)

// nodeOnlineWindow is how recently a field node must have heartbeated to be
// reported online.
const nodeOnlineWindow = 10 * time.Minute

// computeOnlineWindow is the liveness window for compute nodes. Polling is
// their liveness signal, so the window is tighter than for field nodes.
const computeOnlineWindow = 5 * time.Minute

// Pusher enqueues best-effort push notifications.
type Pusher interface {
	Enqueue(n push.Notification)
}

// noopPusher drops every notification. Used when no push queue is wired.
type noopPusher struct{}

func (noopPusher) Enqueue(push.Notification) {}

// FieldServer handles every fieldnet API operation.
type FieldServer struct {
	store      store.Store
	heartbeats heartbeat.Store
	hub        rooms.Registry
	blobs      blob.Store
	publisher  events.Publisher
	push       Pusher
	h3Res      int
	regSecret  string
}

// Options carries the collaborators a FieldServer fans work out to. Nil
// fields fall back to in-process defaults so a server can be built from a
// store alone.
type Options struct {
	Heartbeats heartbeat.Store
	Hub        rooms.Registry
	Blobs      blob.Store // nil disables frame storage and media serving
	Publisher  events.Publisher
	Push       Pusher
	H3Res      int    // cell resolution for event binning and geofences
	RegSecret  string // non-empty gates node registration
}

// NewFieldServer returns a FieldServer backed by the given store.
func NewFieldServer(st store.Store, opts Options) *FieldServer {
	if opts.Heartbeats == nil {
		opts.Heartbeats = heartbeat.NewMemory()
	}
	if opts.Hub == nil {
		opts.Hub = rooms.NewHub()
	}
	if opts.Publisher == nil {
		opts.Publisher = &events.NoopPublisher{}
	}
	if opts.Push == nil {
		opts.Push = noopPusher{}
	}
	if opts.H3Res == 0 {
		opts.H3Res = hexgrid.DefaultResolution
	}
	return &FieldServer{
		store:      st,
		heartbeats: opts.Heartbeats,
		hub:        opts.Hub,
		blobs:      opts.Blobs,
		publisher:  opts.Publisher,
		push:       opts.Push,
		h3Res:      opts.H3Res,
		regSecret:  opts.RegSecret,
	}
}

// publish sends an event to the bus. Best-effort; failures are logged but
// never fail the request that produced the event.
func (s *FieldServer) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

// broadcast fans a message out to one community's room.
func (s *FieldServer) broadcast(communityID string, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("failed to marshal fan-out message", "community_id", communityID, "error", err)
		return
	}
	s.hub.Broadcast(communityID, payload)
}

// recordCompletion appends to the results log. Best-effort like the publish
// path; the item's own record has already transitioned.
func (s *FieldServer) recordCompletion(ctx context.Context, kind model.CompletionKind, itemID, nodeID string, results json.RawMessage, now time.Time) {
	c := &model.Completion{
		Kind:       kind,
		ItemID:     itemID,
		NodeID:     nodeID,
		Results:    results,
		RecordedAt: now,
	}
	if err := s.store.AppendCompletion(ctx, c); err != nil {
		slog.Warn("failed to append completion record", "kind", kind, "item_id", itemID, "error", err)
	}
}

// inputError indicates invalid user input.
// The HTTP layer maps this to 400.
type inputError string

func (e inputError) Error() string { return string(e) }
