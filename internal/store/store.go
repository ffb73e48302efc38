// Package store defines the persistence interface for fieldnet records.
//
// Every record state transition that must be exclusive (claiming a task,
// claiming a compute job, expiring a task) is a single store method so that
// backends can serialize it: the memory backend under its mutex, the SQL
// backend with a guarded UPDATE. Callers never implement read-modify-write
// across calls.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arenvale/fieldnet/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrExists is returned when creating a record whose ID is already taken.
var ErrExists = errors.New("store: already exists")

// ConflictError is returned when a guarded state transition loses to a
// competing writer. Status carries the record's current status so transports
// can report it.
type ConflictError struct {
	Status string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("store: conflict, current status %q", e.Status)
}

// Store is the persistence interface for fieldnet.
type Store interface {
	// Nodes
	CreateNode(ctx context.Context, node *model.Node) error
	GetNode(ctx context.Context, id string) (*model.Node, error)
	NodeByToken(ctx context.Context, token string) (*model.Node, error)
	ListNodes(ctx context.Context) ([]*model.Node, error)

	// Communities
	CreateCommunity(ctx context.Context, c *model.Community) error
	GetCommunity(ctx context.Context, id string) (*model.Community, error)
	CommunityByInvite(ctx context.Context, code string) (*model.Community, error)
	CommunitiesForNode(ctx context.Context, nodeID string) ([]*model.Community, error)
	CommunitiesCovering(ctx context.Context, cell string) ([]*model.Community, error)
	AddMember(ctx context.Context, communityID, nodeID string, m model.Member) error
	RemoveMember(ctx context.Context, communityID, nodeID string) error

	// Events log (append-only)
	AppendEvent(ctx context.Context, ev *model.Event) error
	ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error)

	// Tasks
	CreateTask(ctx context.Context, t *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, filter model.TaskFilter) ([]*model.Task, error)
	ClaimTask(ctx context.Context, id, nodeID string, now time.Time) (*model.Task, error)
	HeartbeatTask(ctx context.Context, id string, progressPct float64) (*model.Task, error)
	CompleteTask(ctx context.Context, id string, results json.RawMessage, now time.Time) (*model.Task, error)
	MarkTaskExpired(ctx context.Context, id string) (bool, error)
	CountTasksByStatus(ctx context.Context) (map[model.TaskStatus]int, error)

	// Compute nodes
	CreateComputeNode(ctx context.Context, n *model.ComputeNode) error
	GetComputeNode(ctx context.Context, id string) (*model.ComputeNode, error)
	ListComputeNodes(ctx context.Context) ([]*model.ComputeNode, error)
	TouchComputeNode(ctx context.Context, id string, now time.Time) error

	// Compute jobs
	CreateComputeJob(ctx context.Context, j *model.ComputeJob) error
	GetComputeJob(ctx context.Context, id string) (*model.ComputeJob, error)
	ListComputeJobs(ctx context.Context, filter model.ComputeJobFilter) ([]*model.ComputeJob, error)
	ClaimComputeJob(ctx context.Context, id, nodeID string, now time.Time) (*model.ComputeJob, error)
	HeartbeatComputeJob(ctx context.Context, id string, progressPct float64) (*model.ComputeJob, error)
	CompleteComputeJob(ctx context.Context, id string, results json.RawMessage, now time.Time) (*model.ComputeJob, error)
	CountComputeJobsByStatus(ctx context.Context) (map[model.JobStatus]int, error)

	// Push preferences
	GetPushPreference(ctx context.Context, nodeID string) (*model.PushPreference, error)
	PutPushPreference(ctx context.Context, p *model.PushPreference) error

	// Results log (append-only)
	AppendCompletion(ctx context.Context, c *model.Completion) error
	ListCompletions(ctx context.Context, kind model.CompletionKind, itemID string) ([]*model.Completion, error)

	// Lifecycle
	Close() error
}
