package model

import "time"

// Node is a registered field node (camera, sensor, or phone).
type Node struct {
	ID           string    `json:"node_id"`
	Token        string    `json:"-"`
	Name         string    `json:"name,omitempty"`
	Capabilities []string  `json:"capabilities,omitempty"`
	Lat          *float64  `json:"lat,omitempty"`
	Lon          *float64  `json:"lon,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
