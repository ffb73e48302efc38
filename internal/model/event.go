package model

import "time"

// EventKind identifies the shape of an event record. The set is closed;
// ingestion rejects unknown kinds.
type EventKind string

const (
	KindFrame  EventKind = "frame"  // frame upload with optional detection
	KindVision EventKind = "vision" // detection without an attached frame
	KindAlert  EventKind = "alert"  // community alert
)

// String returns the string representation of the kind.
func (k EventKind) String() string {
	return string(k)
}

// IsValid checks whether the kind is a known value.
func (k EventKind) IsValid() bool {
	switch k {
	case KindFrame, KindVision, KindAlert:
		return true
	}
	return false
}

// EventType classifies what a detection saw.
type EventType string

const (
	EventMotion  EventType = "motion"
	EventPerson  EventType = "person"
	EventVehicle EventType = "vehicle"
	EventPackage EventType = "package"
	EventAnimal  EventType = "animal"
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// IsValid checks whether the event type is a known value.
func (t EventType) IsValid() bool {
	switch t {
	case EventMotion, EventPerson, EventVehicle, EventPackage, EventAnimal:
		return true
	}
	return false
}

// Detection carries the classifier output attached to frame and vision events.
type Detection struct {
	EventType  EventType `json:"event_type"`
	Confidence float64   `json:"confidence"`
}

// Alert carries the payload of a community alert event.
type Alert struct {
	CommunityID string `json:"community_id"`
	Message     string `json:"message"`
	AlertType   string `json:"alert_type,omitempty"`
}

// Event is one record in the append-only events log. Kind determines which
// of the Detection/Alert sub-records is set. Lat/Lon are the raw coordinates;
// Cell is the H3 cell they were binned to at H3Res when the event was written.
type Event struct {
	ID        string     `json:"id"`
	Kind      EventKind  `json:"kind"`
	TS        time.Time  `json:"ts"`
	NodeID    string     `json:"node_id,omitempty"`
	Lat       float64    `json:"lat"`
	Lon       float64    `json:"lon"`
	Cell      string     `json:"cell"`
	H3Res     int        `json:"h3_res"`
	MediaPath string     `json:"media_path,omitempty"`
	Detection *Detection `json:"detection,omitempty"`
	Alert     *Alert     `json:"alert,omitempty"`
}

// EventFilter selects events from the log. Zero values mean "no constraint".
type EventFilter struct {
	Since       time.Time
	Kinds       []EventKind
	CommunityID string // matches alert events for the community
	NodeID      string
	Limit       int
}
