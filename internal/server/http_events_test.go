package server

import (
	"context"
	"encoding/base64"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/arenvale/fieldnet/internal/model"
	"github.com/arenvale/fieldnet/internal/store/memory"
)

func postVisionEvent(t *testing.T, h http.Handler, lat, lon float64, eventType string, confidence float64) (string, string) {
	t.Helper()
	rec := doJSON(t, h, "POST", "/v1/vision/events", map[string]any{
		"lat": lat, "lon": lon, "event_type": eventType, "confidence": confidence,
	})
	requireStatus(t, rec, 201)
	var body struct {
		EventID string `json:"event_id"`
		Cell    string `json:"cell"`
	}
	decodeJSON(t, rec, &body)
	if body.EventID == "" || body.Cell == "" {
		t.Fatalf("expected event_id and cell, got %+v", body)
	}
	return body.EventID, body.Cell
}

func TestHandleVisionEvent(t *testing.T) {
	_, _, h := newTestServer(t)
	postVisionEvent(t, h, 37.7749, -122.4194, "person", 0.9)

	rec := doJSON(t, h, "GET", "/v1/world/stats", nil)
	requireStatus(t, rec, 200)
	var stats struct {
		EventsTotal  int            `json:"events_total"`
		ByKind       map[string]int `json:"by_kind"`
		ByEventType  map[string]int `json:"by_event_type"`
		NodesSeen    int            `json:"nodes_seen"`
		CellsCovered int            `json:"cells_covered"`
	}
	decodeJSON(t, rec, &stats)
	if stats.EventsTotal != 1 || stats.ByKind["vision"] != 1 || stats.ByEventType["person"] != 1 {
		t.Fatalf("got stats %+v", stats)
	}
	if stats.CellsCovered != 1 {
		t.Fatalf("expected 1 cell covered, got %d", stats.CellsCovered)
	}
	if stats.NodesSeen != 0 {
		t.Fatalf("expected no nodes for anonymous events, got %d", stats.NodesSeen)
	}
}

func TestHandleVisionEvent_SameSpotSameCell(t *testing.T) {
	_, _, h := newTestServer(t)
	_, cell1 := postVisionEvent(t, h, 37.7749, -122.4194, "person", 0.9)
	_, cell2 := postVisionEvent(t, h, 37.7749, -122.4194, "vehicle", 0.7)
	if cell1 != cell2 {
		t.Fatalf("same coordinates binned to different cells: %q vs %q", cell1, cell2)
	}
}

func TestHandleVisionEvent_DoesNotTouchHeartbeat(t *testing.T) {
	_, _, h := newTestServer(t)
	rec := doJSON(t, h, "POST", "/v1/vision/events", map[string]any{
		"node_id": "nd-stranger", "lat": 37.7749, "lon": -122.4194,
		"event_type": "motion", "confidence": 0.5,
	})
	requireStatus(t, rec, 201)

	rec = doJSON(t, h, "GET", "/v1/nodes/online", nil)
	requireStatus(t, rec, 200)
	var body struct {
		Count int `json:"count"`
	}
	decodeJSON(t, rec, &body)
	if body.Count != 0 {
		t.Fatalf("self-reported node_id must not create a heartbeat, got count=%d", body.Count)
	}
}

func TestHandleFrameEvent(t *testing.T) {
	_, _, h := newTestServer(t)
	nodeID, token := registerNode(t, h)

	frame := []byte("not-really-a-jpeg")
	rec := doAuthJSON(t, h, "POST", "/v1/events/frame", token, map[string]any{
		"lat": 37.7749, "lon": -122.4194, "event_type": "person", "confidence": 0.93,
		"frame_b64": base64.StdEncoding.EncodeToString(frame),
	})
	requireStatus(t, rec, 201)

	rec = doJSON(t, h, "GET", "/v1/world/events", nil)
	requireStatus(t, rec, 200)
	var list struct {
		Count  int `json:"count"`
		Events []struct {
			Kind       string  `json:"kind"`
			EventType  string  `json:"event_type"`
			Confidence float64 `json:"confidence"`
			MediaURL   string  `json:"media_url"`
		} `json:"events"`
	}
	decodeJSON(t, rec, &list)
	if list.Count != 1 {
		t.Fatalf("expected 1 event, got %d", list.Count)
	}
	ev := list.Events[0]
	if ev.Kind != "frame" || ev.EventType != "person" || ev.Confidence != 0.93 {
		t.Fatalf("got event %+v", ev)
	}
	if ev.MediaURL == "" {
		t.Fatal("expected a media URL for the stored frame")
	}

	rec = doJSON(t, h, "GET", ev.MediaURL, nil)
	requireStatus(t, rec, 200)
	if rec.Body.String() != string(frame) {
		t.Fatalf("media bytes do not round-trip: got %q", rec.Body.String())
	}

	// The authed ingest path doubles as a heartbeat.
	rec = doJSON(t, h, "GET", "/v1/nodes/online", nil)
	requireStatus(t, rec, 200)
	var online struct {
		Count int `json:"count"`
		Nodes []struct {
			NodeID         string `json:"node_id"`
			FramesSent     int64  `json:"frames_sent"`
			EventsDetected int64  `json:"events_detected"`
		} `json:"nodes"`
	}
	decodeJSON(t, rec, &online)
	if online.Count != 1 || online.Nodes[0].NodeID != nodeID {
		t.Fatalf("expected reporter online, got %+v", online)
	}
	if online.Nodes[0].FramesSent != 1 || online.Nodes[0].EventsDetected != 1 {
		t.Fatalf("expected counters 1/1, got %+v", online.Nodes[0])
	}
}

func TestHandleFrameEvent_NoFrameStaysVision(t *testing.T) {
	_, _, h := newTestServer(t)
	_, token := registerNode(t, h)

	rec := doAuthJSON(t, h, "POST", "/v1/events/frame", token, map[string]any{
		"lat": 37.7749, "lon": -122.4194, "event_type": "animal", "confidence": 0.4,
	})
	requireStatus(t, rec, 201)

	rec = doJSON(t, h, "GET", "/v1/world/events?kind=vision", nil)
	requireStatus(t, rec, 200)
	var list struct {
		Count int `json:"count"`
	}
	decodeJSON(t, rec, &list)
	if list.Count != 1 {
		t.Fatalf("expected the frameless event under kind=vision, got count=%d", list.Count)
	}
}

func TestHandleWorldEvents_Redaction(t *testing.T) {
	_, _, h := newTestServer(t)
	_, token := registerNode(t, h)

	rec := doAuthJSON(t, h, "POST", "/v1/events/frame", token, map[string]any{
		"lat": 37.7749, "lon": -122.4194, "event_type": "vehicle", "confidence": 0.8,
		"frame_b64": base64.StdEncoding.EncodeToString([]byte("frame")),
	})
	requireStatus(t, rec, 201)

	rec = doJSON(t, h, "GET", "/v1/world/events", nil)
	requireStatus(t, rec, 200)
	var list struct {
		Events []map[string]any `json:"events"`
	}
	decodeJSON(t, rec, &list)
	if len(list.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(list.Events))
	}
	ev := list.Events[0]
	if _, ok := ev["node_id"]; ok {
		t.Fatal("node_id must not leak through the world surface")
	}
	if _, ok := ev["media_path"]; ok {
		t.Fatal("raw media_path must not leak through the world surface")
	}
}

func TestHandleWorldCells(t *testing.T) {
	_, _, h := newTestServer(t)
	postVisionEvent(t, h, 37.7749, -122.4194, "person", 0.9)
	postVisionEvent(t, h, 37.7749, -122.4194, "motion", 0.6)

	for _, res := range []int{5, 9} {
		rec := doJSON(t, h, "GET", "/v1/world/cells?res="+strconv.Itoa(res), nil)
		requireStatus(t, rec, 200)
		var body struct {
			Res         int            `json:"res"`
			WindowHours int            `json:"window_hours"`
			Cells       map[string]int `json:"cells"`
		}
		decodeJSON(t, rec, &body)
		if body.Res != res || body.WindowHours != 24 {
			t.Fatalf("got res=%d window=%d", body.Res, body.WindowHours)
		}
		if len(body.Cells) != 1 {
			t.Fatalf("expected one cell at res %d, got %d", res, len(body.Cells))
		}
		for _, n := range body.Cells {
			if n != 2 {
				t.Fatalf("expected 2 events in the cell, got %d", n)
			}
		}
	}
}

func TestHandleWorldSurface_ExcludesAlerts(t *testing.T) {
	_, _, h := newTestServer(t)
	_, token := registerNode(t, h)
	c := createCommunity(t, h, token, "Noe Valley", 37.7749, -122.4194, 2.0)

	rec := doAuthJSON(t, h, "POST", "/v1/communities/"+c.ID+"/alerts", token, map[string]any{
		"message": "suspicious vehicle",
	})
	requireStatus(t, rec, 201)
	postVisionEvent(t, h, 37.7749, -122.4194, "person", 0.9)

	rec = doJSON(t, h, "GET", "/v1/world/stats", nil)
	requireStatus(t, rec, 200)
	var stats struct {
		EventsTotal int            `json:"events_total"`
		ByKind      map[string]int `json:"by_kind"`
	}
	decodeJSON(t, rec, &stats)
	if stats.EventsTotal != 1 {
		t.Fatalf("alerts must not appear in world stats, got total=%d", stats.EventsTotal)
	}
	if _, ok := stats.ByKind["alert"]; ok {
		t.Fatal("alert kind leaked into world stats")
	}

	rec = doJSON(t, h, "GET", "/v1/world/events", nil)
	requireStatus(t, rec, 200)
	var list struct {
		Count int `json:"count"`
	}
	decodeJSON(t, rec, &list)
	if list.Count != 1 {
		t.Fatalf("alerts must not appear in world events, got count=%d", list.Count)
	}
}

// seedOldEvent appends a vision event with a back-dated timestamp directly to
// the store, bypassing the ingest path.
func seedOldEvent(t *testing.T, ms *memory.Store, ts time.Time) {
	t.Helper()
	err := ms.AppendEvent(context.Background(), &model.Event{
		ID:        uuid.NewString(),
		Kind:      model.KindVision,
		TS:        ts,
		Lat:       37.7749,
		Lon:       -122.4194,
		Cell:      "stale",
		Detection: &model.Detection{EventType: model.EventPerson, Confidence: 0.5},
	})
	if err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}
}

func TestHandleWorldEvents_Window(t *testing.T) {
	ms, _, h := newTestServer(t)
	postVisionEvent(t, h, 37.7749, -122.4194, "person", 0.9)
	seedOldEvent(t, ms, time.Now().UTC().Add(-48*time.Hour))

	rec := doJSON(t, h, "GET", "/v1/world/events", nil)
	requireStatus(t, rec, 200)
	var list struct {
		Count int `json:"count"`
	}
	decodeJSON(t, rec, &list)
	if list.Count != 1 {
		t.Fatalf("expected the 48h-old event outside the 24h window, got count=%d", list.Count)
	}

	rec = doJSON(t, h, "GET", "/v1/world/events?hours=72", nil)
	requireStatus(t, rec, 200)
	decodeJSON(t, rec, &list)
	if list.Count != 2 {
		t.Fatalf("expected both events inside the 72h window, got count=%d", list.Count)
	}
}

func TestHandleVisionCoverage(t *testing.T) {
	_, _, h := newTestServer(t)
	postVisionEvent(t, h, 37.7749, -122.4194, "person", 0.9)
	postVisionEvent(t, h, 34.0522, -118.2437, "vehicle", 0.8)

	rec := doJSON(t, h, "GET", "/v1/vision/coverage", nil)
	requireStatus(t, rec, 200)
	var body struct {
		CellsCovered int            `json:"cells_covered"`
		EventsTotal  int            `json:"events_total"`
		Cells        map[string]int `json:"cells"`
	}
	decodeJSON(t, rec, &body)
	if body.CellsCovered != 2 || body.EventsTotal != 2 {
		t.Fatalf("got coverage %+v", body)
	}
}
