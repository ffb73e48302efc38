package model

import "time"

// HeartbeatStatus is the last known telemetry snapshot for a field node.
// It is ephemeral: it lives in the heartbeat store, not the durable store,
// and the memory backend loses it on restart.
type HeartbeatStatus struct {
	NodeID         string    `json:"node_id"`
	LastHeartbeat  time.Time `json:"last_heartbeat"`
	Battery        *float64  `json:"battery,omitempty"`
	WiFi           *float64  `json:"wifi,omitempty"`
	FramesSent     int64     `json:"frames_sent"`
	EventsDetected int64     `json:"events_detected"`
	Lat            *float64  `json:"lat,omitempty"`
	Lon            *float64  `json:"lon,omitempty"`
}
