package events

import (
	"context"

	"github.com/arenvale/fieldnet/internal/model"
)

// Event topic constants
const (
	TopicVisionDetected   = "fieldnet.event.vision"
	TopicAlertRaised      = "fieldnet.event.alert"
	TopicTaskCompleted    = "fieldnet.task.completed"
	TopicComputeCompleted = "fieldnet.compute.completed"

	// Per-node push subjects live under this prefix; the delivery gateway
	// subscribes to "fieldnet.push.>".
	pushSubjectPrefix = "fieldnet.push."
)

// PushSubject returns the NATS subject carrying push messages for one node.
func PushSubject(nodeID string) string {
	return pushSubjectPrefix + nodeID
}

// Event types

type VisionDetected struct {
	Event *model.Event `json:"event"`
}

type AlertRaised struct {
	Event *model.Event `json:"event"`
}

type TaskCompleted struct {
	Task   *model.Task `json:"task"`
	NodeID string      `json:"node_id,omitempty"`
}

type ComputeCompleted struct {
	Job    *model.ComputeJob `json:"job"`
	NodeID string            `json:"node_id,omitempty"`
}

// PushMessage is what the relay publishes on a node's push subject. The
// delivery gateway turns it into an actual device notification.
type PushMessage struct {
	NodeID string `json:"node_id"`
	Kind   string `json:"kind"`
	Title  string `json:"title,omitempty"`
	Body   string `json:"body,omitempty"`
	Ref    string `json:"ref,omitempty"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
