package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/arenvale/fieldnet/internal/events"
	"github.com/arenvale/fieldnet/internal/hexgrid"
	"github.com/arenvale/fieldnet/internal/idgen"
	"github.com/arenvale/fieldnet/internal/model"
	"github.com/arenvale/fieldnet/internal/push"
	"github.com/arenvale/fieldnet/internal/store"
)

type createCommunityInput struct {
	Name     string   `json:"name"`
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	RadiusKm *float64 `json:"radius_km"`
}

// handleCreateCommunity handles POST /v1/communities. The geofence cell set
// is materialized once here; later coordinate changes never move it.
func (s *FieldServer) handleCreateCommunity(w http.ResponseWriter, r *http.Request) {
	node := s.requireNode(w, r)
	if node == nil {
		return
	}

	var in createCommunityInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if in.Lat == nil || in.Lon == nil {
		writeError(w, http.StatusBadRequest, "lat and lon are required")
		return
	}
	if !hexgrid.ValidCoords(*in.Lat, *in.Lon) {
		writeError(w, http.StatusBadRequest, "coordinates out of range")
		return
	}
	if in.RadiusKm == nil || *in.RadiusKm <= 0 {
		writeError(w, http.StatusBadRequest, "radius_km must be positive")
		return
	}

	cells, err := hexgrid.Geofence(*in.Lat, *in.Lon, *in.RadiusKm, s.h3Res)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to materialize geofence")
		return
	}
	id, err := idgen.GenerateWithPrefix(idgen.CommunityPrefix)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate community id")
		return
	}
	invite, err := idgen.InviteCode()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate invite code")
		return
	}

	now := time.Now().UTC()
	c := &model.Community{
		ID:         id,
		Name:       in.Name,
		Lat:        *in.Lat,
		Lon:        *in.Lon,
		RadiusKm:   *in.RadiusKm,
		H3Res:      s.h3Res,
		Cells:      cells,
		InviteCode: invite,
		CreatedBy:  node.ID,
		CreatedAt:  now,
		Members: map[string]model.Member{
			node.ID: {Role: model.RoleAdmin, JoinedAt: now},
		},
	}
	if err := s.store.CreateCommunity(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create community")
		return
	}

	writeOK(w, http.StatusCreated, map[string]any{"community": c})
}

type joinCommunityInput struct {
	InviteCode string `json:"invite_code"`
}

// handleJoinCommunity handles POST /v1/communities/join. Joining twice is a
// conflict, not a no-op.
func (s *FieldServer) handleJoinCommunity(w http.ResponseWriter, r *http.Request) {
	node := s.requireNode(w, r)
	if node == nil {
		return
	}

	var in joinCommunityInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.InviteCode == "" {
		writeError(w, http.StatusBadRequest, "invite_code is required")
		return
	}

	c, err := s.store.CommunityByInvite(r.Context(), in.InviteCode)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "invalid invite code")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up invite code")
		return
	}
	if c.HasMember(node.ID) {
		writeError(w, http.StatusConflict, "already a member")
		return
	}

	m := model.Member{Role: model.RoleMember, JoinedAt: time.Now().UTC()}
	if err := s.store.AddMember(r.Context(), c.ID, node.ID, m); err != nil {
		if errors.Is(err, store.ErrExists) {
			writeError(w, http.StatusConflict, "already a member")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to join community")
		return
	}

	writeOK(w, http.StatusOK, map[string]any{"community_id": c.ID})
}

// handleLeaveCommunity handles DELETE /v1/communities/{id}/members/me.
// The community persists even when its last admin leaves; the invite code
// keeps working.
func (s *FieldServer) handleLeaveCommunity(w http.ResponseWriter, r *http.Request) {
	node := s.requireNode(w, r)
	if node == nil {
		return
	}
	c := s.requireMember(w, r, r.PathValue("id"), node.ID)
	if c == nil {
		return
	}

	if err := s.store.RemoveMember(r.Context(), c.ID, node.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusForbidden, "not a member of this community")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to leave community")
		return
	}

	writeOK(w, http.StatusOK, nil)
}

// communitySummary is the list projection returned by mine.
type communitySummary struct {
	ID          string     `json:"community_id"`
	Name        string     `json:"name"`
	Lat         float64    `json:"lat"`
	Lon         float64    `json:"lon"`
	RadiusKm    float64    `json:"radius_km"`
	MemberCount int        `json:"member_count"`
	Role        model.Role `json:"role"`
	InviteCode  string     `json:"invite_code"`
	CreatedAt   time.Time  `json:"created_at"`
}

// handleMyCommunities handles GET /v1/communities/mine.
func (s *FieldServer) handleMyCommunities(w http.ResponseWriter, r *http.Request) {
	node := s.requireNode(w, r)
	if node == nil {
		return
	}

	comms, err := s.store.CommunitiesForNode(r.Context(), node.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list communities")
		return
	}

	out := make([]communitySummary, 0, len(comms))
	for _, c := range comms {
		out = append(out, communitySummary{
			ID:          c.ID,
			Name:        c.Name,
			Lat:         c.Lat,
			Lon:         c.Lon,
			RadiusKm:    c.RadiusKm,
			MemberCount: len(c.Members),
			Role:        c.Members[node.ID].Role,
			InviteCode:  c.InviteCode,
			CreatedAt:   c.CreatedAt,
		})
	}

	writeOK(w, http.StatusOK, map[string]any{"count": len(out), "communities": out})
}

// handleGetCommunity handles GET /v1/communities/{id}. Member-only; admin
// has no extra read rights.
func (s *FieldServer) handleGetCommunity(w http.ResponseWriter, r *http.Request) {
	node := s.requireNode(w, r)
	if node == nil {
		return
	}
	c := s.requireMember(w, r, r.PathValue("id"), node.ID)
	if c == nil {
		return
	}

	writeOK(w, http.StatusOK, map[string]any{"community": c})
}

// handleListAlerts handles GET /v1/communities/{id}/alerts.
func (s *FieldServer) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	node := s.requireNode(w, r)
	if node == nil {
		return
	}
	c := s.requireMember(w, r, r.PathValue("id"), node.ID)
	if c == nil {
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	alerts, err := s.store.ListEvents(r.Context(), model.EventFilter{
		Kinds:       []model.EventKind{model.KindAlert},
		CommunityID: c.ID,
		Limit:       limit,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []*model.Event{}
	}

	writeOK(w, http.StatusOK, map[string]any{"count": len(alerts), "alerts": alerts})
}

type broadcastAlertInput struct {
	Message   string   `json:"message"`
	AlertType string   `json:"alert_type"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
}

// handleBroadcastAlert handles POST /v1/communities/{id}/alerts. The alert
// lands in the event log and fans out to the community's room; coordinates
// default to the community center.
func (s *FieldServer) handleBroadcastAlert(w http.ResponseWriter, r *http.Request) {
	node := s.requireNode(w, r)
	if node == nil {
		return
	}
	c := s.requireMember(w, r, r.PathValue("id"), node.ID)
	if c == nil {
		return
	}

	var in broadcastAlertInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if err := validateOptionalCoords(in.Lat, in.Lon); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lat, lon := c.Lat, c.Lon
	if in.Lat != nil && in.Lon != nil {
		lat, lon = *in.Lat, *in.Lon
	}
	cell, err := hexgrid.CellOf(lat, lon, s.h3Res)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to index alert location")
		return
	}

	ev := &model.Event{
		ID:     uuid.NewString(),
		Kind:   model.KindAlert,
		TS:     time.Now().UTC(),
		NodeID: node.ID,
		Lat:    lat,
		Lon:    lon,
		Cell:   cell,
		H3Res:  s.h3Res,
		Alert: &model.Alert{
			CommunityID: c.ID,
			Message:     in.Message,
			AlertType:   in.AlertType,
		},
	}
	if err := s.store.AppendEvent(r.Context(), ev); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record alert")
		return
	}

	s.fanoutAlert(r.Context(), c, ev)

	writeOK(w, http.StatusCreated, map[string]any{"event_id": ev.ID, "cell": ev.Cell})
}

// fanoutAlert delivers a recorded alert to the community's room, the push
// queue, and the event bus.
func (s *FieldServer) fanoutAlert(ctx context.Context, c *model.Community, ev *model.Event) {
	s.broadcast(c.ID, wsCommunityAlert{
		Type:        msgCommunityAlert,
		CommunityID: c.ID,
		EventID:     ev.ID,
		TS:          ev.TS,
		Message:     ev.Alert.Message,
		AlertType:   ev.Alert.AlertType,
		Lat:         ev.Lat,
		Lon:         ev.Lon,
		Cell:        ev.Cell,
	})
	s.push.Enqueue(push.Notification{
		CommunityID: c.ID,
		Kind:        model.PushCommunityAlerts,
		Title:       fmt.Sprintf("Alert in %s", c.Name),
		Body:        ev.Alert.Message,
		Ref:         ev.ID,
	})
	s.publish(ctx, events.TopicAlertRaised, events.AlertRaised{Event: ev})
}

// requireMember loads a community and checks the caller's membership.
// Writes 404 or 403 and returns nil when the check fails.
func (s *FieldServer) requireMember(w http.ResponseWriter, r *http.Request, communityID, nodeID string) *model.Community {
	c, err := s.store.GetCommunity(r.Context(), communityID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "community not found")
		return nil
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load community")
		return nil
	}
	if !c.HasMember(nodeID) {
		writeError(w, http.StatusForbidden, "not a member of this community")
		return nil
	}
	return c
}
