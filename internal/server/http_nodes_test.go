package server

import (
	"context"
	"strings"
	"testing"

	"github.com/arenvale/fieldnet/internal/model"
)

func TestHandleRegisterNode(t *testing.T) {
	_, _, h := newTestServer(t)
	rec := doJSON(t, h, "POST", "/v1/nodes/register", nil)
	requireStatus(t, rec, 201)
	var body struct {
		OK     bool   `json:"ok"`
		NodeID string `json:"node_id"`
		Token  string `json:"token"`
	}
	decodeJSON(t, rec, &body)
	if !body.OK {
		t.Fatal("expected ok=true")
	}
	if !strings.HasPrefix(body.NodeID, "nd-") {
		t.Fatalf("expected nd- prefix, got %q", body.NodeID)
	}
	if body.Token == "" {
		t.Fatal("expected a bearer token")
	}
}

func TestHandleRegisterNode_WithProfile(t *testing.T) {
	ms, _, h := newTestServer(t)
	rec := doJSON(t, h, "POST", "/v1/nodes/register", map[string]any{
		"name":         "porch-cam",
		"capabilities": []string{"camera", "night-vision"},
		"lat":          37.7749,
		"lon":          -122.4194,
	})
	requireStatus(t, rec, 201)
	var body struct {
		NodeID string `json:"node_id"`
	}
	decodeJSON(t, rec, &body)

	nodes, err := ms.ListNodes(context.Background())
	if err != nil {
		t.Fatalf("failed to list nodes: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	n := nodes[0]
	if n.ID != body.NodeID || n.Name != "porch-cam" || len(n.Capabilities) != 2 {
		t.Fatalf("got id=%q name=%q caps=%v", n.ID, n.Name, n.Capabilities)
	}
	if n.Lat == nil || *n.Lat != 37.7749 {
		t.Fatalf("expected lat to be stored, got %v", n.Lat)
	}
}

func TestHandleNodeHeartbeat(t *testing.T) {
	_, _, h := newTestServer(t)
	nodeID, token := registerNode(t, h)

	rec := doAuthJSON(t, h, "POST", "/v1/nodes/heartbeat", token, map[string]any{
		"battery": 0.82,
		"wifi":    0.65,
		"lat":     37.7749,
		"lon":     -122.4194,
	})
	requireStatus(t, rec, 200)

	rec = doJSON(t, h, "GET", "/v1/nodes/online", nil)
	requireStatus(t, rec, 200)
	var body struct {
		Count int                      `json:"count"`
		Nodes []*model.HeartbeatStatus `json:"nodes"`
	}
	decodeJSON(t, rec, &body)
	if body.Count != 1 || len(body.Nodes) != 1 {
		t.Fatalf("expected 1 online node, got count=%d len=%d", body.Count, len(body.Nodes))
	}
	st := body.Nodes[0]
	if st.NodeID != nodeID {
		t.Fatalf("expected node %q, got %q", nodeID, st.NodeID)
	}
	if st.Battery == nil || *st.Battery != 0.82 {
		t.Fatalf("expected battery=0.82, got %v", st.Battery)
	}
	if st.Lat == nil || *st.Lat != 37.7749 {
		t.Fatalf("expected lat to be recorded, got %v", st.Lat)
	}
}

func TestHandleNodeHeartbeat_EmptyBody(t *testing.T) {
	_, _, h := newTestServer(t)
	_, token := registerNode(t, h)

	rec := doAuthJSON(t, h, "POST", "/v1/nodes/heartbeat", token, nil)
	requireStatus(t, rec, 200)

	rec = doJSON(t, h, "GET", "/v1/nodes/online", nil)
	requireStatus(t, rec, 200)
	var body struct {
		Count int `json:"count"`
	}
	decodeJSON(t, rec, &body)
	if body.Count != 1 {
		t.Fatalf("expected bare heartbeat to count, got count=%d", body.Count)
	}
}

func TestHandleNodesOnline_Empty(t *testing.T) {
	_, _, h := newTestServer(t)
	rec := doJSON(t, h, "GET", "/v1/nodes/online", nil)
	requireStatus(t, rec, 200)
	var body struct {
		Count int              `json:"count"`
		Nodes []map[string]any `json:"nodes"`
	}
	decodeJSON(t, rec, &body)
	if body.Count != 0 {
		t.Fatalf("expected count=0, got %d", body.Count)
	}
	if body.Nodes == nil {
		t.Fatal("expected nodes to be an empty list, not null")
	}
}
