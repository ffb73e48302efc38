package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/arenvale/fieldnet/internal/events"
	"github.com/arenvale/fieldnet/internal/heartbeat"
	"github.com/arenvale/fieldnet/internal/hexgrid"
	"github.com/arenvale/fieldnet/internal/model"
	"github.com/arenvale/fieldnet/internal/push"
)

type eventInput struct {
	NodeID     string     `json:"node_id"`
	Lat        *float64   `json:"lat"`
	Lon        *float64   `json:"lon"`
	EventType  string     `json:"event_type"`
	Confidence *float64   `json:"confidence"`
	FrameB64   string     `json:"frame_b64"`
	TS         *time.Time `json:"ts"`
}

func (in *eventInput) validate() error {
	if in.Lat == nil || in.Lon == nil {
		return inputError("lat and lon are required")
	}
	if !hexgrid.ValidCoords(*in.Lat, *in.Lon) {
		return inputError("coordinates out of range")
	}
	if in.EventType == "" {
		return inputError("event_type is required")
	}
	if !model.EventType(in.EventType).IsValid() {
		return inputError("unknown event_type")
	}
	if in.Confidence == nil {
		return inputError("confidence is required")
	}
	if *in.Confidence < 0 || *in.Confidence > 1 {
		return inputError("confidence must be between 0 and 1")
	}
	return nil
}

// decodeFrame decodes the optional base64 frame payload.
func (in *eventInput) decodeFrame() ([]byte, error) {
	if in.FrameB64 == "" {
		return nil, nil
	}
	frame, err := base64.StdEncoding.DecodeString(in.FrameB64)
	if err != nil {
		return nil, inputError("frame_b64 is not valid base64")
	}
	if len(frame) == 0 {
		return nil, inputError("frame payload is empty")
	}
	return frame, nil
}

// handleFrameEvent handles POST /v1/events/frame.
func (s *FieldServer) handleFrameEvent(w http.ResponseWriter, r *http.Request) {
	node := s.requireNode(w, r)
	if node == nil {
		return
	}

	var in eventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := in.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	frame, err := in.decodeFrame()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev, err := s.ingestEvent(r.Context(), node.ID, true, in, frame)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to ingest event")
		return
	}

	writeOK(w, http.StatusCreated, map[string]any{"event_id": ev.ID, "cell": ev.Cell})
}

// handleVisionEvent handles POST /v1/vision/events, the unauthenticated
// ingest path. A self-reported node_id is recorded on the event but never
// feeds the heartbeat store.
func (s *FieldServer) handleVisionEvent(w http.ResponseWriter, r *http.Request) {
	var in eventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := in.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	frame, err := in.decodeFrame()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev, err := s.ingestEvent(r.Context(), in.NodeID, false, in, frame)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to ingest event")
		return
	}

	writeOK(w, http.StatusCreated, map[string]any{"event_id": ev.ID, "cell": ev.Cell})
}

// ingestEvent runs the shared pipeline: store the frame blob, append to the
// event log, bump the reporter's heartbeat snapshot, and fan out to every
// community whose geofence covers the event's cell. Everything after the
// log append is best-effort.
func (s *FieldServer) ingestEvent(ctx context.Context, nodeID string, tracked bool, in eventInput, frame []byte) (*model.Event, error) {
	cell, err := hexgrid.CellOf(*in.Lat, *in.Lon, s.h3Res)
	if err != nil {
		return nil, fmt.Errorf("index event location: %w", err)
	}

	now := time.Now().UTC()
	ts := now
	if in.TS != nil {
		ts = in.TS.UTC()
	}

	ev := &model.Event{
		ID:     uuid.NewString(),
		Kind:   model.KindVision,
		TS:     ts,
		NodeID: nodeID,
		Lat:    *in.Lat,
		Lon:    *in.Lon,
		Cell:   cell,
		H3Res:  s.h3Res,
		Detection: &model.Detection{
			EventType:  model.EventType(in.EventType),
			Confidence: *in.Confidence,
		},
	}
	if len(frame) > 0 {
		ev.Kind = model.KindFrame
		if s.blobs != nil {
			path := "frames/" + ev.ID + ".jpg"
			if err := s.blobs.Put(ctx, path, frame); err != nil {
				slog.Warn("failed to store frame blob", "event_id", ev.ID, "error", err)
			} else {
				ev.MediaPath = path
			}
		}
	}

	if err := s.store.AppendEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("append event: %w", err)
	}

	if tracked && nodeID != "" {
		u := heartbeat.Update{AddEvents: 1, Lat: in.Lat, Lon: in.Lon}
		if ev.Kind == model.KindFrame {
			u.AddFrames = 1
		}
		if err := s.heartbeats.Record(ctx, nodeID, u, now); err != nil {
			slog.Warn("failed to update heartbeat snapshot", "node_id", nodeID, "error", err)
		}
	}

	s.fanoutVision(ctx, ev)
	s.publish(ctx, events.TopicVisionDetected, events.VisionDetected{Event: ev})
	return ev, nil
}

// fanoutVision pushes a redacted vision event to every community whose
// geofence covers the event's cell.
func (s *FieldServer) fanoutVision(ctx context.Context, ev *model.Event) {
	comms, err := s.store.CommunitiesCovering(ctx, ev.Cell)
	if err != nil {
		slog.Warn("failed to match communities", "event_id", ev.ID, "error", err)
		return
	}
	for _, c := range comms {
		msg := wsVisionEvent{
			Type:        msgVisionEvent,
			CommunityID: c.ID,
			EventID:     ev.ID,
			TS:          ev.TS,
			Lat:         ev.Lat,
			Lon:         ev.Lon,
			Cell:        ev.Cell,
		}
		title := "Vision event"
		if ev.Detection != nil {
			msg.EventType = ev.Detection.EventType.String()
			msg.Confidence = ev.Detection.Confidence
			title = fmt.Sprintf("%s detected", ev.Detection.EventType)
		}
		if ev.MediaPath != "" {
			msg.MediaURL = mediaURL(ev.MediaPath)
		}
		s.broadcast(c.ID, msg)
		s.push.Enqueue(push.Notification{
			CommunityID: c.ID,
			Kind:        model.PushVisionEvents,
			Title:       title,
			Body:        fmt.Sprintf("Activity in %s", c.Name),
			Ref:         ev.ID,
		})
	}
}
