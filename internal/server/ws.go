package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arenvale/fieldnet/internal/rooms"
	"github.com/arenvale/fieldnet/internal/store"
)

// Message types sent over the alert stream.
const (
	msgWelcome        = "welcome"
	msgVisionEvent    = "vision_event"
	msgCommunityAlert = "community_alert"
	msgPong           = "pong"
)

// wsWelcome is the first frame on every connection, confirming which
// community rooms the node joined.
type wsWelcome struct {
	Type         string   `json:"type"`
	CommunityIDs []string `json:"community_ids"`
}

// wsVisionEvent is the redacted fan-out payload for a detection inside a
// community's geofence. Media is referenced by URL and the reporting node's
// identity is omitted.
type wsVisionEvent struct {
	Type        string    `json:"type"`
	CommunityID string    `json:"community_id"`
	EventID     string    `json:"event_id"`
	TS          time.Time `json:"ts"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	Cell        string    `json:"cell"`
	EventType   string    `json:"event_type,omitempty"`
	Confidence  float64   `json:"confidence,omitempty"`
	MediaURL    string    `json:"media_url,omitempty"`
}

// wsCommunityAlert is the fan-out payload for a member broadcast.
type wsCommunityAlert struct {
	Type        string    `json:"type"`
	CommunityID string    `json:"community_id"`
	EventID     string    `json:"event_id"`
	TS          time.Time `json:"ts"`
	Message     string    `json:"message"`
	AlertType   string    `json:"alert_type,omitempty"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	Cell        string    `json:"cell"`
}

// Field nodes connect from device runtimes, not browsers, so origin checks
// buy nothing here.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWSAlerts handles GET /v1/ws/alerts. The token rides the query string
// because browser WebSocket clients cannot set headers; a bearer header works
// too. The connection subscribes to every community the node belongs to.
func (s *FieldServer) handleWSAlerts(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	node, err := s.store.NodeByToken(r.Context(), token)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve token")
		return
	}

	communities, err := s.store.CommunitiesForNode(r.Context(), node.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve memberships")
		return
	}
	if len(communities) == 0 {
		writeError(w, http.StatusForbidden, "node has no community memberships")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		return
	}

	ids := make([]string, 0, len(communities))
	for _, c := range communities {
		ids = append(ids, c.ID)
	}
	client := s.hub.Join(conn, ids)

	if payload, err := json.Marshal(wsWelcome{Type: msgWelcome, CommunityIDs: ids}); err == nil {
		client.Send(payload)
	}

	go s.wsReadLoop(client, conn)
}

// wsReadLoop drains inbound frames until the connection drops. The only
// client message with meaning is ping, answered with a pong frame; anything
// else is ignored.
func (s *FieldServer) wsReadLoop(client *rooms.Client, conn *websocket.Conn) {
	defer s.hub.Leave(client)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			if payload, err := json.Marshal(map[string]string{"type": msgPong}); err == nil {
				client.Send(payload)
			}
		}
	}
}
