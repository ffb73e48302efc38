package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/arenvale/fieldnet/internal/model"
	"github.com/arenvale/fieldnet/internal/push"
	"github.com/arenvale/fieldnet/internal/store"
)

// handleGetPushPreferences handles GET /v1/push/preferences. Reads never
// create the record; defaults are implied until the first write.
func (s *FieldServer) handleGetPushPreferences(w http.ResponseWriter, r *http.Request) {
	node := s.requireNode(w, r)
	if node == nil {
		return
	}

	p, err := s.store.GetPushPreference(r.Context(), node.ID)
	if errors.Is(err, store.ErrNotFound) {
		p = model.DefaultPushPreference(node.ID)
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}

	writeOK(w, http.StatusOK, map[string]any{"preferences": p})
}

// handlePutPushPreferences handles PUT /v1/push/preferences. The body is a
// partial update; omitted toggles keep their stored (or default) values.
func (s *FieldServer) handlePutPushPreferences(w http.ResponseWriter, r *http.Request) {
	node := s.requireNode(w, r)
	if node == nil {
		return
	}

	var in model.PushPreferenceUpdate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p, err := s.store.GetPushPreference(r.Context(), node.ID)
	if errors.Is(err, store.ErrNotFound) {
		p = model.DefaultPushPreference(node.ID)
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}

	in.Apply(p)
	p.UpdatedAt = time.Now().UTC()
	if err := s.store.PutPushPreference(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}

	writeOK(w, http.StatusOK, map[string]any{"preferences": p})
}

type pushEnqueueInput struct {
	NodeID      string `json:"node_id"`
	CommunityID string `json:"community_id"`
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Ref         string `json:"ref"`
}

// handlePushEnqueue handles POST /v1/push/enqueue. Delivery is fire and
// forget; a 202 only means the notification entered the queue.
func (s *FieldServer) handlePushEnqueue(w http.ResponseWriter, r *http.Request) {
	node := s.requireNode(w, r)
	if node == nil {
		return
	}

	var in pushEnqueueInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.NodeID == "" && in.CommunityID == "" {
		writeError(w, http.StatusBadRequest, "node_id or community_id is required")
		return
	}
	if in.NodeID != "" && in.CommunityID != "" {
		writeError(w, http.StatusBadRequest, "node_id and community_id are mutually exclusive")
		return
	}
	if !model.ValidPushKind(in.Kind) {
		writeError(w, http.StatusBadRequest, "unknown push kind")
		return
	}

	s.push.Enqueue(push.Notification{
		NodeID:      in.NodeID,
		CommunityID: in.CommunityID,
		Kind:        in.Kind,
		Title:       in.Title,
		Body:        in.Body,
		Ref:         in.Ref,
	})

	writeOK(w, http.StatusAccepted, nil)
}
