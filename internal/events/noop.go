package events

import "context"

// NoopPublisher stands in when FIELDNET_NATS_URL is unset. The relay keeps
// working; push delivery and external consumers just see nothing.
type NoopPublisher struct{}

func (n *NoopPublisher) Publish(_ context.Context, _ string, _ any) error { return nil }

func (n *NoopPublisher) Close() error { return nil }
