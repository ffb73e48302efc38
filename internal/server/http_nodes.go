package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/arenvale/fieldnet/internal/heartbeat"
	"github.com/arenvale/fieldnet/internal/hexgrid"
	"github.com/arenvale/fieldnet/internal/idgen"
	"github.com/arenvale/fieldnet/internal/model"
)

type registerNodeInput struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
	Lat          *float64 `json:"lat"`
	Lon          *float64 `json:"lon"`
}

// handleRegisterNode handles POST /v1/nodes/register. Every field is
// optional; an empty body registers an anonymous node.
func (s *FieldServer) handleRegisterNode(w http.ResponseWriter, r *http.Request) {
	if !s.checkRegistrationSecret(r) {
		writeError(w, http.StatusForbidden, "invalid registration secret")
		return
	}

	var in registerNodeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validateOptionalCoords(in.Lat, in.Lon); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := idgen.GenerateWithPrefix(idgen.NodePrefix)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate node id")
		return
	}
	token, err := idgen.Token()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	node := &model.Node{
		ID:           id,
		Token:        token,
		Name:         in.Name,
		Capabilities: in.Capabilities,
		Lat:          in.Lat,
		Lon:          in.Lon,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateNode(r.Context(), node); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register node")
		return
	}

	writeOK(w, http.StatusCreated, map[string]any{"node_id": node.ID, "token": token})
}

// validateOptionalCoords checks a lat/lon pair that may be absent entirely.
func validateOptionalCoords(lat, lon *float64) error {
	if lat == nil && lon == nil {
		return nil
	}
	if lat == nil || lon == nil {
		return inputError("lat and lon must be supplied together")
	}
	if !hexgrid.ValidCoords(*lat, *lon) {
		return inputError("coordinates out of range")
	}
	return nil
}

type nodeHeartbeatInput struct {
	Battery        *float64 `json:"battery"`
	WiFi           *float64 `json:"wifi"`
	FramesSent     *int64   `json:"frames_sent"`
	EventsDetected *int64   `json:"events_detected"`
	Lat            *float64 `json:"lat"`
	Lon            *float64 `json:"lon"`
}

// handleNodeHeartbeat handles POST /v1/nodes/heartbeat. Counters in the body
// are the device's running totals, not increments.
func (s *FieldServer) handleNodeHeartbeat(w http.ResponseWriter, r *http.Request) {
	node := s.requireNode(w, r)
	if node == nil {
		return
	}

	var in nodeHeartbeatInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validateOptionalCoords(in.Lat, in.Lon); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	u := heartbeat.Update{
		Battery:        in.Battery,
		WiFi:           in.WiFi,
		FramesSent:     in.FramesSent,
		EventsDetected: in.EventsDetected,
		Lat:            in.Lat,
		Lon:            in.Lon,
	}
	if err := s.heartbeats.Record(r.Context(), node.ID, u, time.Now().UTC()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record heartbeat")
		return
	}

	writeOK(w, http.StatusOK, nil)
}

// handleNodesOnline handles GET /v1/nodes/online.
func (s *FieldServer) handleNodesOnline(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.heartbeats.Online(r.Context(), nodeOnlineWindow, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list online nodes")
		return
	}
	if nodes == nil {
		nodes = []*model.HeartbeatStatus{}
	}
	writeOK(w, http.StatusOK, map[string]any{"count": len(nodes), "nodes": nodes})
}
