package model

import (
	"encoding/json"
	"time"
)

// TaskStatus represents the current state of a field task.
// Transitions: open -> claimed -> completed, with open -> expired applied
// lazily when an expired task is read.
type TaskStatus string

const (
	TaskOpen      TaskStatus = "open"
	TaskClaimed   TaskStatus = "claimed"
	TaskCompleted TaskStatus = "completed"
	TaskExpired   TaskStatus = "expired"
)

// String returns the string representation of the status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskOpen, TaskClaimed, TaskCompleted, TaskExpired:
		return true
	}
	return false
}

// Task is a marketplace work item tied to a location.
type Task struct {
	ID           string          `json:"task_id"`
	Type         string          `json:"type"`
	Lat          float64         `json:"lat"`
	Lon          float64         `json:"lon"`
	RadiusKm     float64         `json:"radius_km"`
	Requirements json.RawMessage `json:"requirements,omitempty"`
	Reward       float64         `json:"reward"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
	Cell         string          `json:"h3_cell"`
	Status       TaskStatus      `json:"status"`
	ClaimedBy    string          `json:"claimed_by,omitempty"`
	ClaimedAt    *time.Time      `json:"claimed_at,omitempty"`
	ProgressPct  float64         `json:"progress_pct,omitempty"`
	Results      json.RawMessage `json:"results,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ExpiredAt reports whether the task's deadline has passed as of now.
// Tasks without a deadline never expire.
func (t *Task) ExpiredAt(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// TaskFilter selects tasks. An empty status list matches all statuses.
type TaskFilter struct {
	Status []TaskStatus
	Limit  int
}
