package model

import (
	"encoding/json"
	"time"
)

// JobStatus represents the current state of a compute job.
// Transitions: pending -> claimed -> completed. The failed status is
// terminal and only ever set by an operator, never by the claim flow.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobClaimed   JobStatus = "claimed"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// String returns the string representation of the status.
func (s JobStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobPending, JobClaimed, JobCompleted, JobFailed:
		return true
	}
	return false
}

// ComputeJob is a unit of edge compute work relayed between nodes.
// Priority is stored and returned but does not order the poll queue.
type ComputeJob struct {
	ID           string          `json:"job_id"`
	Type         string          `json:"job_type"`
	Requirements []string        `json:"requirements"`
	Priority     int             `json:"priority"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Status       JobStatus       `json:"status"`
	ClaimedBy    string          `json:"claimed_by,omitempty"`
	ClaimedAt    *time.Time      `json:"claimed_at,omitempty"`
	ProgressPct  float64         `json:"progress_pct,omitempty"`
	Results      json.RawMessage `json:"results,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ComputeNode is a registered edge compute worker. Liveness is derived from
// LastHeartbeat, refreshed whenever the node polls or claims.
type ComputeNode struct {
	ID            string    `json:"node_id"`
	Capabilities  []string  `json:"capabilities"`
	Status        string    `json:"status"`
	RegisteredAt  time.Time `json:"registered_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// CanRun reports whether the node's capabilities cover every requirement.
// An empty requirement list matches any node.
func (n *ComputeNode) CanRun(requirements []string) bool {
	for _, req := range requirements {
		found := false
		for _, cap := range n.Capabilities {
			if cap == req {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ComputeJobFilter selects compute jobs. An empty status list matches all.
type ComputeJobFilter struct {
	Status []JobStatus
	Limit  int
}
