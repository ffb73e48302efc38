// Package client provides a transport-agnostic interface for the fieldnet
// service and an HTTP/JSON implementation that talks to the fieldnet REST API.
package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/arenvale/fieldnet/internal/model"
)

// FieldClient is the interface that all fieldnet CLI commands use to
// communicate with the relay server. It is implemented by HTTPClient.
type FieldClient interface {
	// Nodes
	RegisterNode(ctx context.Context, req *RegisterNodeRequest) (*RegisterNodeResponse, error)
	Heartbeat(ctx context.Context, req *HeartbeatRequest) error
	NodesOnline(ctx context.Context) (*NodesOnlineResponse, error)

	// Events
	ReportEvent(ctx context.Context, req *EventReport) (*EventAck, error)
	ReportFrame(ctx context.Context, req *EventReport) (*EventAck, error)

	// World surface
	WorldCells(ctx context.Context, res, hours int) (*WorldCellsResponse, error)
	WorldEvents(ctx context.Context, req *WorldEventsRequest) (*WorldEventsResponse, error)
	WorldStats(ctx context.Context, hours int) (*WorldStats, error)
	VisionCoverage(ctx context.Context, res, hours int) (*CoverageResponse, error)

	// Communities
	CreateCommunity(ctx context.Context, req *CreateCommunityRequest) (*model.Community, error)
	JoinCommunity(ctx context.Context, inviteCode string) (string, error)
	LeaveCommunity(ctx context.Context, communityID string) error
	MyCommunities(ctx context.Context) ([]*CommunitySummary, error)
	GetCommunity(ctx context.Context, communityID string) (*model.Community, error)
	BroadcastAlert(ctx context.Context, communityID string, req *BroadcastAlertRequest) (*EventAck, error)
	ListAlerts(ctx context.Context, communityID string, limit int) ([]*model.Event, error)

	// Tasks
	DistributeTask(ctx context.Context, req *DistributeTaskRequest) (*TaskAck, error)
	AvailableTasks(ctx context.Context, lat, lon, radiusKm float64) (*AvailableTasksResponse, error)
	ClaimTask(ctx context.Context, taskID, nodeID string) (*model.Task, error)
	TaskHeartbeat(ctx context.Context, taskID, nodeID string, progressPct float64) (*model.Task, error)
	TaskResults(ctx context.Context, taskID, nodeID string, results json.RawMessage) (*model.Task, error)
	TaskStats(ctx context.Context) (*TaskStats, error)

	// Compute relay
	RegisterComputeNode(ctx context.Context, capabilities []string) (string, error)
	CreateComputeJob(ctx context.Context, req *CreateComputeJobRequest) (string, error)
	PollComputeJobs(ctx context.Context, nodeID string) (*model.ComputeJob, error)
	ClaimComputeJob(ctx context.Context, jobID, nodeID string) (*model.ComputeJob, error)
	ComputeJobHeartbeat(ctx context.Context, jobID, nodeID string, progressPct float64) (*model.ComputeJob, error)
	ComputeJobResults(ctx context.Context, jobID, nodeID string, results json.RawMessage) (*model.ComputeJob, error)
	ComputeNodesOnline(ctx context.Context) (*ComputeNodesOnlineResponse, error)
	ComputeStats(ctx context.Context) (*ComputeStats, error)

	// Push preferences
	GetPushPreferences(ctx context.Context) (*model.PushPreference, error)
	SetPushPreferences(ctx context.Context, req *model.PushPreferenceUpdate) (*model.PushPreference, error)
	EnqueuePush(ctx context.Context, req *PushEnqueueRequest) error

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// RegisterNodeRequest holds the optional profile sent at registration.
type RegisterNodeRequest struct {
	Name         string   `json:"name,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lon          *float64 `json:"lon,omitempty"`
}

// RegisterNodeResponse carries the identity the server minted. The token is
// shown exactly once; the caller must keep it.
type RegisterNodeResponse struct {
	NodeID string `json:"node_id"`
	Token  string `json:"token"`
}

// HeartbeatRequest holds a node status report. Nil fields are left unchanged
// on the server; the counters are running totals, not increments.
type HeartbeatRequest struct {
	Battery        *float64 `json:"battery,omitempty"`
	WiFi           *float64 `json:"wifi,omitempty"`
	FramesSent     *int64   `json:"frames_sent,omitempty"`
	EventsDetected *int64   `json:"events_detected,omitempty"`
	Lat            *float64 `json:"lat,omitempty"`
	Lon            *float64 `json:"lon,omitempty"`
}

// NodesOnlineResponse is the response from NodesOnline.
type NodesOnlineResponse struct {
	Count int                      `json:"count"`
	Nodes []*model.HeartbeatStatus `json:"nodes"`
}

// EventReport holds a vision event, optionally with a captured frame.
type EventReport struct {
	NodeID     string     `json:"node_id,omitempty"`
	Lat        float64    `json:"lat"`
	Lon        float64    `json:"lon"`
	EventType  string     `json:"event_type"`
	Confidence float64    `json:"confidence"`
	FrameB64   string     `json:"frame_b64,omitempty"`
	TS         *time.Time `json:"ts,omitempty"`
}

// EventAck is the server's acknowledgement of a recorded event.
type EventAck struct {
	EventID string `json:"event_id"`
	Cell    string `json:"cell"`
}

// PushEnqueueRequest queues a notification for one node or a whole
// community; exactly one of the two targets must be set.
type PushEnqueueRequest struct {
	NodeID      string `json:"node_id,omitempty"`
	CommunityID string `json:"community_id,omitempty"`
	Kind        string `json:"kind"`
	Title       string `json:"title,omitempty"`
	Body        string `json:"body,omitempty"`
	Ref         string `json:"ref,omitempty"`
}

// WorldCellsResponse is the binned activity map from WorldCells.
type WorldCellsResponse struct {
	Res         int            `json:"res"`
	WindowHours int            `json:"window_hours"`
	Cells       map[string]int `json:"cells"`
}

// WorldEventsRequest holds filters for the public event feed. Zero values
// mean server defaults.
type WorldEventsRequest struct {
	Hours int
	Kind  string
	Limit int
}

// WorldEvent is a redacted event from the public feed.
type WorldEvent struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	TS         time.Time `json:"ts"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Cell       string    `json:"cell"`
	EventType  string    `json:"event_type,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	MediaURL   string    `json:"media_url,omitempty"`
}

// WorldEventsResponse is the response from WorldEvents.
type WorldEventsResponse struct {
	WindowHours int           `json:"window_hours"`
	Count       int           `json:"count"`
	Events      []*WorldEvent `json:"events"`
}

// WorldStats summarizes recent activity.
type WorldStats struct {
	WindowHours  int            `json:"window_hours"`
	EventsTotal  int            `json:"events_total"`
	ByKind       map[string]int `json:"by_kind"`
	ByEventType  map[string]int `json:"by_event_type"`
	NodesSeen    int            `json:"nodes_seen"`
	CellsCovered int            `json:"cells_covered"`
}

// CoverageResponse is the response from VisionCoverage.
type CoverageResponse struct {
	Res          int            `json:"res"`
	WindowHours  int            `json:"window_hours"`
	CellsCovered int            `json:"cells_covered"`
	EventsTotal  int            `json:"events_total"`
	Cells        map[string]int `json:"cells"`
}

// CreateCommunityRequest holds parameters for creating a community.
type CreateCommunityRequest struct {
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	RadiusKm float64 `json:"radius_km"`
}

// CommunitySummary is one row of MyCommunities.
type CommunitySummary struct {
	ID          string    `json:"community_id"`
	Name        string    `json:"name"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	RadiusKm    float64   `json:"radius_km"`
	MemberCount int       `json:"member_count"`
	Role        string    `json:"role"`
	InviteCode  string    `json:"invite_code"`
	CreatedAt   time.Time `json:"created_at"`
}

// BroadcastAlertRequest holds an alert to broadcast. Nil coordinates default
// to the community center on the server.
type BroadcastAlertRequest struct {
	Message   string   `json:"message"`
	AlertType string   `json:"alert_type,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
	Lon       *float64 `json:"lon,omitempty"`
}

// DistributeTaskRequest holds parameters for publishing a task. TaskID is
// optional; the server mints one when empty.
type DistributeTaskRequest struct {
	TaskID       string          `json:"task_id,omitempty"`
	Type         string          `json:"type"`
	Lat          float64         `json:"lat"`
	Lon          float64         `json:"lon"`
	RadiusKm     *float64        `json:"radius_km,omitempty"`
	Requirements json.RawMessage `json:"requirements,omitempty"`
	Reward       float64         `json:"reward,omitempty"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
}

// TaskAck is the server's acknowledgement of a distributed task.
type TaskAck struct {
	TaskID string `json:"task_id"`
	Cell   string `json:"h3_cell"`
}

// AvailableTask is a task within search radius, annotated with distance.
type AvailableTask struct {
	*model.Task
	DistanceKm float64 `json:"distance_km"`
}

// AvailableTasksResponse is the response from AvailableTasks, nearest first.
type AvailableTasksResponse struct {
	Count int              `json:"count"`
	Tasks []*AvailableTask `json:"tasks"`
}

// TaskStats is the response from TaskStats.
type TaskStats struct {
	ByStatus map[string]int `json:"by_status"`
	Total    int            `json:"total"`
}

// CreateComputeJobRequest holds parameters for submitting a compute job.
// JobID is optional; the server mints one when empty.
type CreateComputeJobRequest struct {
	JobID        string          `json:"job_id,omitempty"`
	JobType      string          `json:"job_type"`
	Requirements []string        `json:"requirements,omitempty"`
	Priority     int             `json:"priority,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// ComputeNodesOnlineResponse is the response from ComputeNodesOnline.
type ComputeNodesOnlineResponse struct {
	Count int                  `json:"count"`
	Nodes []*model.ComputeNode `json:"nodes"`
}

// ComputeStats is the response from ComputeStats.
type ComputeStats struct {
	Jobs      map[string]int `json:"jobs"`
	JobsTotal int            `json:"jobs_total"`
	Nodes     struct {
		Online int `json:"online"`
		Total  int `json:"total"`
	} `json:"nodes"`
}
