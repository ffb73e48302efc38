package model

import "time"

// Push notification kinds. Each maps to one toggle on PushPreference.
const (
	PushVisionEvents    = "vision_events"
	PushCommunityAlerts = "community_alerts"
	PushTaskUpdates     = "task_updates"
	PushComputeJobs     = "compute_jobs"
)

// ValidPushKind reports whether kind names a known notification category.
func ValidPushKind(kind string) bool {
	switch kind {
	case PushVisionEvents, PushCommunityAlerts, PushTaskUpdates, PushComputeJobs:
		return true
	}
	return false
}

// PushPreference holds a node's notification toggles. A node with no stored
// record gets the all-enabled defaults.
type PushPreference struct {
	NodeID          string    `json:"node_id"`
	Enabled         bool      `json:"enabled"`
	VisionEvents    bool      `json:"vision_events"`
	CommunityAlerts bool      `json:"community_alerts"`
	TaskUpdates     bool      `json:"task_updates"`
	ComputeJobs     bool      `json:"compute_jobs"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DefaultPushPreference returns the all-enabled defaults for a node.
func DefaultPushPreference(nodeID string) *PushPreference {
	return &PushPreference{
		NodeID:          nodeID,
		Enabled:         true,
		VisionEvents:    true,
		CommunityAlerts: true,
		TaskUpdates:     true,
		ComputeJobs:     true,
	}
}

// Allows reports whether notifications of the given kind should be delivered.
func (p *PushPreference) Allows(kind string) bool {
	if !p.Enabled {
		return false
	}
	switch kind {
	case PushVisionEvents:
		return p.VisionEvents
	case PushCommunityAlerts:
		return p.CommunityAlerts
	case PushTaskUpdates:
		return p.TaskUpdates
	case PushComputeJobs:
		return p.ComputeJobs
	}
	return false
}

// PushPreferenceUpdate is a partial preference update. Nil fields are left
// unchanged on the stored record.
type PushPreferenceUpdate struct {
	Enabled         *bool `json:"enabled,omitempty"`
	VisionEvents    *bool `json:"vision_events,omitempty"`
	CommunityAlerts *bool `json:"community_alerts,omitempty"`
	TaskUpdates     *bool `json:"task_updates,omitempty"`
	ComputeJobs     *bool `json:"compute_jobs,omitempty"`
}

// Apply merges the update's non-nil fields onto p.
func (u *PushPreferenceUpdate) Apply(p *PushPreference) {
	if u.Enabled != nil {
		p.Enabled = *u.Enabled
	}
	if u.VisionEvents != nil {
		p.VisionEvents = *u.VisionEvents
	}
	if u.CommunityAlerts != nil {
		p.CommunityAlerts = *u.CommunityAlerts
	}
	if u.TaskUpdates != nil {
		p.TaskUpdates = *u.TaskUpdates
	}
	if u.ComputeJobs != nil {
		p.ComputeJobs = *u.ComputeJobs
	}
}
