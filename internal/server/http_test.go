package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/arenvale/fieldnet/internal/blob"
	"github.com/arenvale/fieldnet/internal/model"
	"github.com/arenvale/fieldnet/internal/push"
	"github.com/arenvale/fieldnet/internal/store/memory"
)

// capturePush records enqueued notifications for assertions.
type capturePush struct {
	mu    sync.Mutex
	notes []push.Notification
}

func (p *capturePush) Enqueue(n push.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = append(p.notes, n)
}

func (p *capturePush) all() []push.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]push.Notification(nil), p.notes...)
}

// newTestServer returns a fresh memory-backed store, its push capture, and an
// HTTP handler with media storage under a temp dir.
func newTestServer(t *testing.T) (*memory.Store, *capturePush, http.Handler) {
	t.Helper()
	ms := memory.New()
	blobs, err := blob.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	pusher := &capturePush{}
	s := NewFieldServer(ms, Options{Blobs: blobs, Push: pusher})
	return ms, pusher, s.NewHTTPHandler(nil)
}

// doJSON performs an HTTP request with an optional JSON body and returns the recorder.
func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// doAuthJSON is doJSON with a bearer token attached.
func doAuthJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// requireStatus asserts the recorder has the expected HTTP status code.
func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected status %d, got %d; body: %s", code, rec.Code, rec.Body.String())
	}
}

// decodeJSON decodes the recorder's response body into v.
func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

// registerNode registers a field node and returns its ID and bearer token.
func registerNode(t *testing.T, h http.Handler) (string, string) {
	t.Helper()
	rec := doJSON(t, h, "POST", "/v1/nodes/register", map[string]any{"name": "cam"})
	requireStatus(t, rec, 201)
	var body struct {
		NodeID string `json:"node_id"`
		Token  string `json:"token"`
	}
	decodeJSON(t, rec, &body)
	if body.NodeID == "" || body.Token == "" {
		t.Fatalf("expected node_id and token, got %+v", body)
	}
	return body.NodeID, body.Token
}

// createCommunity creates a community as the given node and returns it.
func createCommunity(t *testing.T, h http.Handler, token, name string, lat, lon, radiusKm float64) model.Community {
	t.Helper()
	rec := doAuthJSON(t, h, "POST", "/v1/communities", token, map[string]any{
		"name": name, "lat": lat, "lon": lon, "radius_km": radiusKm,
	})
	requireStatus(t, rec, 201)
	var body struct {
		Community model.Community `json:"community"`
	}
	decodeJSON(t, rec, &body)
	if body.Community.ID == "" || body.Community.InviteCode == "" {
		t.Fatalf("expected community with id and invite code, got %+v", body.Community)
	}
	return body.Community
}

func TestHandleHTTPErrors(t *testing.T) {
	for _, tc := range []struct {
		name      string
		method    string
		path      string
		body      any
		code      int
		wantError string
	}{
		{"RegisterNode/LatWithoutLon", "POST", "/v1/nodes/register", map[string]any{"lat": 37.0}, 400, "lat and lon must be supplied together"},
		{"RegisterNode/BadCoords", "POST", "/v1/nodes/register", map[string]any{"lat": 91.0, "lon": 0.0}, 400, "coordinates out of range"},
		{"VisionEvent/MissingCoords", "POST", "/v1/vision/events", map[string]any{"event_type": "person", "confidence": 0.9}, 400, "lat and lon are required"},
		{"VisionEvent/MissingType", "POST", "/v1/vision/events", map[string]any{"lat": 37.7749, "lon": -122.4194, "confidence": 0.9}, 400, "event_type is required"},
		{"VisionEvent/UnknownType", "POST", "/v1/vision/events", map[string]any{"lat": 37.7749, "lon": -122.4194, "event_type": "ghost", "confidence": 0.9}, 400, "unknown event_type"},
		{"VisionEvent/MissingConfidence", "POST", "/v1/vision/events", map[string]any{"lat": 37.7749, "lon": -122.4194, "event_type": "person"}, 400, "confidence is required"},
		{"VisionEvent/BadConfidence", "POST", "/v1/vision/events", map[string]any{"lat": 37.7749, "lon": -122.4194, "event_type": "person", "confidence": 1.5}, 400, "confidence must be between 0 and 1"},
		{"VisionEvent/BadFrame", "POST", "/v1/vision/events", map[string]any{"lat": 37.7749, "lon": -122.4194, "event_type": "person", "confidence": 0.9, "frame_b64": "!!!"}, 400, "frame_b64 is not valid base64"},
		{"WorldCells/BadRes", "GET", "/v1/world/cells?res=16", nil, 400, "res must be between 0 and 15"},
		{"WorldEvents/BadHours", "GET", "/v1/world/events?hours=zero", nil, 400, "hours must be a positive integer"},
		{"WorldEvents/BadKind", "GET", "/v1/world/events?kind=alert", nil, 400, "kind must be frame or vision"},
		{"WorldEvents/BadLimit", "GET", "/v1/world/events?limit=0", nil, 400, "limit must be a positive integer"},
		{"Media/NotFound", "GET", "/v1/media/frames/missing.jpg", nil, 404, "media not found"},
		{"DistributeTask/MissingType", "POST", "/v1/tasks/distribute", map[string]any{"lat": 37.0, "lon": -122.0, "radius_km": 1.0}, 400, "type is required"},
		{"DistributeTask/MissingCoords", "POST", "/v1/tasks/distribute", map[string]any{"type": "survey", "radius_km": 1.0}, 400, "lat and lon are required"},
		{"DistributeTask/TinyRadius", "POST", "/v1/tasks/distribute", map[string]any{"type": "survey", "lat": 37.0, "lon": -122.0, "radius_km": 0.01}, 400, "radius_km must be at least 0.1"},
		{"DistributeTask/NegativeReward", "POST", "/v1/tasks/distribute", map[string]any{"type": "survey", "lat": 37.0, "lon": -122.0, "radius_km": 1.0, "reward": -5.0}, 400, "reward cannot be negative"},
		{"AvailableTasks/MissingLat", "GET", "/v1/tasks/available?lon=-122.0", nil, 400, "lat is required"},
		{"AvailableTasks/BadRadius", "GET", "/v1/tasks/available?lat=37.0&lon=-122.0&radius_km=-1", nil, 400, "invalid radius_km"},
		{"ClaimTask/MissingNodeID", "POST", "/v1/tasks/tk-x/claim", map[string]any{}, 400, "node_id is required"},
		{"ClaimTask/NotFound", "POST", "/v1/tasks/tk-x/claim", map[string]any{"node_id": "nd-1"}, 404, "task not found"},
		{"TaskHeartbeat/MissingProgress", "POST", "/v1/tasks/tk-x/heartbeat", map[string]any{}, 400, "progress_pct is required"},
		{"TaskHeartbeat/BadProgress", "POST", "/v1/tasks/tk-x/heartbeat", map[string]any{"progress_pct": 150.0}, 400, "progress_pct must be between 0 and 100"},
		{"TaskResults/NotFound", "POST", "/v1/tasks/tk-x/results", map[string]any{}, 404, "task not found"},
		{"CreateComputeJob/MissingType", "POST", "/v1/compute/jobs", map[string]any{}, 400, "job_type is required"},
		{"PollComputeJobs/MissingNodeID", "GET", "/v1/compute/jobs/poll", nil, 400, "node_id is required"},
		{"PollComputeJobs/UnknownNode", "GET", "/v1/compute/jobs/poll?node_id=cn-x", nil, 404, "compute node not found"},
		{"ClaimComputeJob/NotFound", "POST", "/v1/compute/jobs/cj-x/claim", map[string]any{"node_id": "cn-1"}, 404, "job not found"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, _, h := newTestServer(t)
			rec := doJSON(t, h, tc.method, tc.path, tc.body)
			requireStatus(t, rec, tc.code)
			var body struct {
				OK    bool   `json:"ok"`
				Error string `json:"error"`
			}
			decodeJSON(t, rec, &body)
			if body.OK {
				t.Fatal("expected ok=false on error response")
			}
			if body.Error != tc.wantError {
				t.Fatalf("expected error=%q, got %q", tc.wantError, body.Error)
			}
		})
	}
}

func TestHandleHealth(t *testing.T) {
	_, _, h := newTestServer(t)
	rec := doJSON(t, h, "GET", "/v1/health", nil)
	requireStatus(t, rec, 200)
	var body map[string]any
	decodeJSON(t, rec, &body)
	if body["ok"] != true || body["status"] != "ok" {
		t.Fatalf("expected ok=true status=ok, got %v", body)
	}
}

func TestAuthRequired(t *testing.T) {
	for _, tc := range []struct {
		name   string
		method string
		path   string
	}{
		{"NodeHeartbeat", "POST", "/v1/nodes/heartbeat"},
		{"FrameEvent", "POST", "/v1/events/frame"},
		{"CreateCommunity", "POST", "/v1/communities"},
		{"JoinCommunity", "POST", "/v1/communities/join"},
		{"MyCommunities", "GET", "/v1/communities/mine"},
		{"GetCommunity", "GET", "/v1/communities/cm-x"},
		{"LeaveCommunity", "DELETE", "/v1/communities/cm-x/members/me"},
		{"ListAlerts", "GET", "/v1/communities/cm-x/alerts"},
		{"BroadcastAlert", "POST", "/v1/communities/cm-x/alerts"},
		{"GetPushPreferences", "GET", "/v1/push/preferences"},
		{"PutPushPreferences", "PUT", "/v1/push/preferences"},
		{"PushEnqueue", "POST", "/v1/push/enqueue"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, _, h := newTestServer(t)

			rec := doJSON(t, h, tc.method, tc.path, nil)
			requireStatus(t, rec, 401)
			var body struct {
				Error string `json:"error"`
			}
			decodeJSON(t, rec, &body)
			if body.Error != "missing bearer token" {
				t.Fatalf("expected error=%q, got %q", "missing bearer token", body.Error)
			}

			rec = doAuthJSON(t, h, tc.method, tc.path, "bogus", nil)
			requireStatus(t, rec, 401)
			decodeJSON(t, rec, &body)
			if body.Error != "invalid token" {
				t.Fatalf("expected error=%q, got %q", "invalid token", body.Error)
			}
		})
	}
}

func TestRegistrationSecret(t *testing.T) {
	s := NewFieldServer(memory.New(), Options{RegSecret: "fence-gate"})
	h := s.NewHTTPHandler(nil)

	rec := doJSON(t, h, "POST", "/v1/nodes/register", nil)
	requireStatus(t, rec, 403)
	var body struct {
		Error string `json:"error"`
	}
	decodeJSON(t, rec, &body)
	if body.Error != "invalid registration secret" {
		t.Fatalf("expected error=%q, got %q", "invalid registration secret", body.Error)
	}

	req := httptest.NewRequest("POST", "/v1/nodes/register", nil)
	req.Header.Set("X-Registration-Secret", "fence-gate")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	requireStatus(t, rec, 201)
}
