package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arenvale/fieldnet/internal/model"
)

// testHandler captures the incoming request details and returns a canned response.
type testHandler struct {
	// captured from the request
	method        string
	path          string
	query         string
	body          string
	contentType   string
	authorization string
	regSecret     string

	// canned response
	statusCode   int
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.query = r.URL.RawQuery
	h.contentType = r.Header.Get("Content-Type")
	h.authorization = r.Header.Get("Authorization")
	h.regSecret = r.Header.Get("X-Registration-Secret")
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	code := h.statusCode
	if code == 0 {
		code = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with the given handler.
func newTestClient(t *testing.T, h http.Handler, token string) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL, token)
}

// --- Nodes ---

func TestHTTPClient_RegisterNode(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusCreated,
		responseBody: `{"ok":true,"node_id":"nd-7f3a","token":"tk-secret"}`,
	}
	c := newTestClient(t, h, "")

	lat := 37.7749
	resp, err := c.RegisterNode(context.Background(), &RegisterNodeRequest{
		Name:         "porch-cam",
		Capabilities: []string{"camera", "mic"},
		Lat:          &lat,
	})
	if err != nil {
		t.Fatalf("RegisterNode() error = %v", err)
	}

	if h.method != http.MethodPost {
		t.Errorf("method = %q, want POST", h.method)
	}
	if h.path != "/v1/nodes/register" {
		t.Errorf("path = %q, want /v1/nodes/register", h.path)
	}
	if h.contentType != "application/json" {
		t.Errorf("content-type = %q, want application/json", h.contentType)
	}

	var reqBody map[string]interface{}
	if err := json.Unmarshal([]byte(h.body), &reqBody); err != nil {
		t.Fatalf("unmarshaling request body: %v", err)
	}
	if reqBody["name"] != "porch-cam" {
		t.Errorf("request body name = %v, want 'porch-cam'", reqBody["name"])
	}
	if reqBody["lat"] != 37.7749 {
		t.Errorf("request body lat = %v, want 37.7749", reqBody["lat"])
	}

	if resp.NodeID != "nd-7f3a" {
		t.Errorf("NodeID = %q, want 'nd-7f3a'", resp.NodeID)
	}
	if resp.Token != "tk-secret" {
		t.Errorf("Token = %q, want 'tk-secret'", resp.Token)
	}
}

func TestHTTPClient_RegisterNode_Secret(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusCreated,
		responseBody: `{"ok":true,"node_id":"nd-7f3a","token":"tk-secret"}`,
	}
	c := newTestClient(t, h, "")
	c.SetRegistrationSecret("hunter2")

	if _, err := c.RegisterNode(context.Background(), &RegisterNodeRequest{}); err != nil {
		t.Fatalf("RegisterNode() error = %v", err)
	}
	if h.regSecret != "hunter2" {
		t.Errorf("X-Registration-Secret = %q, want 'hunter2'", h.regSecret)
	}
}

func TestHTTPClient_Heartbeat(t *testing.T) {
	h := &testHandler{responseBody: `{"ok":true}`}
	c := newTestClient(t, h, "tk-secret")

	battery := 0.73
	if err := c.Heartbeat(context.Background(), &HeartbeatRequest{Battery: &battery}); err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}

	if h.path != "/v1/nodes/heartbeat" {
		t.Errorf("path = %q, want /v1/nodes/heartbeat", h.path)
	}
	if h.authorization != "Bearer tk-secret" {
		t.Errorf("authorization = %q, want 'Bearer tk-secret'", h.authorization)
	}
	if h.body != `{"battery":0.73}` {
		t.Errorf("request body = %q, want only the battery field", h.body)
	}
}

func TestHTTPClient_NoAuthHeaderWithoutToken(t *testing.T) {
	h := &testHandler{responseBody: `{"ok":true,"status":"ok"}`}
	c := newTestClient(t, h, "")

	if _, err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if h.authorization != "" {
		t.Errorf("authorization = %q, want empty", h.authorization)
	}
}

func TestHTTPClient_NodesOnline(t *testing.T) {
	h := &testHandler{
		responseBody: `{"ok":true,"count":1,"nodes":[{"node_id":"nd-1","battery":0.5,"frames_sent":12}]}`,
	}
	c := newTestClient(t, h, "")

	resp, err := c.NodesOnline(context.Background())
	if err != nil {
		t.Fatalf("NodesOnline() error = %v", err)
	}
	if h.path != "/v1/nodes/online" {
		t.Errorf("path = %q, want /v1/nodes/online", h.path)
	}
	if resp.Count != 1 || len(resp.Nodes) != 1 {
		t.Fatalf("got %+v", resp)
	}
	if resp.Nodes[0].NodeID != "nd-1" || resp.Nodes[0].FramesSent != 12 {
		t.Errorf("node = %+v", resp.Nodes[0])
	}
}

// --- Events ---

func TestHTTPClient_ReportEvent(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusCreated,
		responseBody: `{"ok":true,"event_id":"ev-9","cell":"8928308280fffff"}`,
	}
	c := newTestClient(t, h, "")

	ack, err := c.ReportEvent(context.Background(), &EventReport{
		Lat:        37.7749,
		Lon:        -122.4194,
		EventType:  "person",
		Confidence: 0.92,
	})
	if err != nil {
		t.Fatalf("ReportEvent() error = %v", err)
	}

	if h.method != http.MethodPost || h.path != "/v1/vision/events" {
		t.Errorf("got %s %s", h.method, h.path)
	}
	var reqBody map[string]interface{}
	if err := json.Unmarshal([]byte(h.body), &reqBody); err != nil {
		t.Fatalf("unmarshaling request body: %v", err)
	}
	if reqBody["event_type"] != "person" || reqBody["confidence"] != 0.92 {
		t.Errorf("request body = %v", reqBody)
	}
	if _, present := reqBody["frame_b64"]; present {
		t.Error("empty frame_b64 should be omitted")
	}

	if ack.EventID != "ev-9" || ack.Cell != "8928308280fffff" {
		t.Errorf("ack = %+v", ack)
	}
}

func TestHTTPClient_ReportFrame(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusCreated,
		responseBody: `{"ok":true,"event_id":"ev-10","cell":"8928308280fffff"}`,
	}
	c := newTestClient(t, h, "tk-1")

	ack, err := c.ReportFrame(context.Background(), &EventReport{
		Lat:        37.7749,
		Lon:        -122.4194,
		EventType:  "vehicle",
		Confidence: 0.8,
	})
	if err != nil {
		t.Fatalf("ReportFrame() error = %v", err)
	}
	if h.method != http.MethodPost || h.path != "/v1/events/frame" {
		t.Errorf("got %s %s", h.method, h.path)
	}
	if h.authorization != "Bearer tk-1" {
		t.Errorf("authorization = %q, want 'Bearer tk-1'", h.authorization)
	}
	if ack.EventID != "ev-10" {
		t.Errorf("EventID = %q, want 'ev-10'", ack.EventID)
	}
}

// --- World surface ---

func TestHTTPClient_WorldCells(t *testing.T) {
	h := &testHandler{
		responseBody: `{"ok":true,"res":7,"window_hours":48,"cells":{"87283082bffffff":3}}`,
	}
	c := newTestClient(t, h, "")

	resp, err := c.WorldCells(context.Background(), 7, 48)
	if err != nil {
		t.Fatalf("WorldCells() error = %v", err)
	}
	if h.path != "/v1/world/cells" {
		t.Errorf("path = %q, want /v1/world/cells", h.path)
	}
	if h.query != "hours=48&res=7" {
		t.Errorf("query = %q, want 'hours=48&res=7'", h.query)
	}
	if resp.Res != 7 || resp.Cells["87283082bffffff"] != 3 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHTTPClient_WorldEvents(t *testing.T) {
	h := &testHandler{
		responseBody: `{"ok":true,"window_hours":24,"count":1,"events":[
			{"id":"ev-1","kind":"frame","ts":"2026-03-01T12:00:00Z","lat":37.7,"lon":-122.4,
			 "cell":"8928308280fffff","event_type":"vehicle","confidence":0.8,"media_url":"/v1/media/ab/cd.jpg"}]}`,
	}
	c := newTestClient(t, h, "")

	resp, err := c.WorldEvents(context.Background(), &WorldEventsRequest{Kind: "frame", Limit: 5})
	if err != nil {
		t.Fatalf("WorldEvents() error = %v", err)
	}
	if h.query != "kind=frame&limit=5" {
		t.Errorf("query = %q, want 'kind=frame&limit=5'", h.query)
	}
	if resp.Count != 1 || len(resp.Events) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	ev := resp.Events[0]
	if ev.Kind != "frame" || ev.EventType != "vehicle" || ev.MediaURL == "" {
		t.Errorf("event = %+v", ev)
	}
}

func TestHTTPClient_WorldStats(t *testing.T) {
	h := &testHandler{
		responseBody: `{"ok":true,"window_hours":24,"events_total":5,"by_kind":{"vision":5},"by_event_type":{"person":3,"animal":2},"nodes_seen":2,"cells_covered":4}`,
	}
	c := newTestClient(t, h, "")

	stats, err := c.WorldStats(context.Background(), 0)
	if err != nil {
		t.Fatalf("WorldStats() error = %v", err)
	}
	if h.query != "" {
		t.Errorf("query = %q, want empty for defaults", h.query)
	}
	if stats.EventsTotal != 5 || stats.ByEventType["person"] != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

// --- Communities ---

func TestHTTPClient_CreateCommunity(t *testing.T) {
	h := &testHandler{
		statusCode: http.StatusCreated,
		responseBody: `{"ok":true,"community":{
			"community_id":"cm-33","name":"Bernal Heights","lat":37.74,"lon":-122.41,
			"radius_km":2,"h3_res":9,"h3_cells":["a","b"],"invite_code":"BH-XYZW",
			"created_by":"nd-1","created_at":"2026-03-01T12:00:00Z"}}`,
	}
	c := newTestClient(t, h, "tk-1")

	comm, err := c.CreateCommunity(context.Background(), &CreateCommunityRequest{
		Name: "Bernal Heights", Lat: 37.74, Lon: -122.41, RadiusKm: 2,
	})
	if err != nil {
		t.Fatalf("CreateCommunity() error = %v", err)
	}

	if h.method != http.MethodPost || h.path != "/v1/communities" {
		t.Errorf("got %s %s", h.method, h.path)
	}
	if comm.ID != "cm-33" || comm.InviteCode != "BH-XYZW" {
		t.Errorf("community = %+v", comm)
	}
	if len(comm.Cells) != 2 || comm.H3Res != 9 {
		t.Errorf("geofence = %+v", comm)
	}
}

func TestHTTPClient_JoinCommunity(t *testing.T) {
	h := &testHandler{responseBody: `{"ok":true,"community_id":"cm-33"}`}
	c := newTestClient(t, h, "tk-1")

	id, err := c.JoinCommunity(context.Background(), "BH-XYZW")
	if err != nil {
		t.Fatalf("JoinCommunity() error = %v", err)
	}
	if h.body != `{"invite_code":"BH-XYZW"}` {
		t.Errorf("request body = %q", h.body)
	}
	if id != "cm-33" {
		t.Errorf("id = %q, want 'cm-33'", id)
	}
}

func TestHTTPClient_LeaveCommunity(t *testing.T) {
	h := &testHandler{responseBody: `{"ok":true}`}
	c := newTestClient(t, h, "tk-1")

	if err := c.LeaveCommunity(context.Background(), "cm-33"); err != nil {
		t.Fatalf("LeaveCommunity() error = %v", err)
	}
	if h.method != http.MethodDelete {
		t.Errorf("method = %q, want DELETE", h.method)
	}
	if h.path != "/v1/communities/cm-33/members/me" {
		t.Errorf("path = %q, want /v1/communities/cm-33/members/me", h.path)
	}
}

func TestHTTPClient_MyCommunities(t *testing.T) {
	h := &testHandler{
		responseBody: `{"ok":true,"count":1,"communities":[
			{"community_id":"cm-33","name":"Bernal Heights","member_count":4,"role":"admin","invite_code":"BH-XYZW"}]}`,
	}
	c := newTestClient(t, h, "tk-1")

	comms, err := c.MyCommunities(context.Background())
	if err != nil {
		t.Fatalf("MyCommunities() error = %v", err)
	}
	if h.path != "/v1/communities/mine" {
		t.Errorf("path = %q", h.path)
	}
	if len(comms) != 1 || comms[0].MemberCount != 4 || comms[0].Role != "admin" {
		t.Errorf("communities = %+v", comms[0])
	}
}

func TestHTTPClient_BroadcastAlert(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusCreated,
		responseBody: `{"ok":true,"event_id":"ev-44","cell":"8928308280fffff"}`,
	}
	c := newTestClient(t, h, "tk-1")

	ack, err := c.BroadcastAlert(context.Background(), "cm-33", &BroadcastAlertRequest{
		Message: "coyote sighting", AlertType: "wildlife",
	})
	if err != nil {
		t.Fatalf("BroadcastAlert() error = %v", err)
	}
	if h.path != "/v1/communities/cm-33/alerts" {
		t.Errorf("path = %q", h.path)
	}
	if !strings.Contains(h.body, `"message":"coyote sighting"`) {
		t.Errorf("request body = %q", h.body)
	}
	if ack.EventID != "ev-44" {
		t.Errorf("ack = %+v", ack)
	}
}

func TestHTTPClient_ListAlerts(t *testing.T) {
	h := &testHandler{
		responseBody: `{"ok":true,"count":1,"alerts":[
			{"id":"ev-44","kind":"alert","ts":"2026-03-01T12:00:00Z","lat":37.74,"lon":-122.41,
			 "cell":"c","alert":{"community_id":"cm-33","message":"coyote sighting","alert_type":"wildlife"}}]}`,
	}
	c := newTestClient(t, h, "tk-1")

	alerts, err := c.ListAlerts(context.Background(), "cm-33", 10)
	if err != nil {
		t.Fatalf("ListAlerts() error = %v", err)
	}
	if h.query != "limit=10" {
		t.Errorf("query = %q, want 'limit=10'", h.query)
	}
	if len(alerts) != 1 || alerts[0].Alert == nil {
		t.Fatalf("alerts = %+v", alerts)
	}
	if alerts[0].Alert.Message != "coyote sighting" {
		t.Errorf("alert = %+v", alerts[0].Alert)
	}
}

// --- Tasks ---

func TestHTTPClient_DistributeTask(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusCreated,
		responseBody: `{"ok":true,"task_id":"tk-55","h3_cell":"8928308280fffff"}`,
	}
	c := newTestClient(t, h, "")

	ack, err := c.DistributeTask(context.Background(), &DistributeTaskRequest{
		Type: "capture_photo", Lat: 37.77, Lon: -122.42,
		Requirements: json.RawMessage(`{"camera":true}`),
		Reward:       1.5,
	})
	if err != nil {
		t.Fatalf("DistributeTask() error = %v", err)
	}
	if h.path != "/v1/tasks/distribute" {
		t.Errorf("path = %q", h.path)
	}
	if !strings.Contains(h.body, `"requirements":{"camera":true}`) {
		t.Errorf("requirements not passed through verbatim: %q", h.body)
	}
	if ack.TaskID != "tk-55" || ack.Cell == "" {
		t.Errorf("ack = %+v", ack)
	}
}

func TestHTTPClient_AvailableTasks(t *testing.T) {
	h := &testHandler{
		responseBody: `{"ok":true,"count":1,"tasks":[
			{"task_id":"tk-55","type":"capture_photo","lat":37.77,"lon":-122.42,"radius_km":5,
			 "status":"open","created_at":"2026-03-01T12:00:00Z","distance_km":0.4}]}`,
	}
	c := newTestClient(t, h, "")

	resp, err := c.AvailableTasks(context.Background(), 37.7749, -122.4194, 5)
	if err != nil {
		t.Fatalf("AvailableTasks() error = %v", err)
	}
	if h.query != "lat=37.7749&lon=-122.4194&radius_km=5" {
		t.Errorf("query = %q", h.query)
	}
	if resp.Count != 1 || len(resp.Tasks) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	got := resp.Tasks[0]
	if got.ID != "tk-55" || got.Status != model.TaskOpen || got.DistanceKm != 0.4 {
		t.Errorf("task = %+v distance=%v", got.Task, got.DistanceKm)
	}
}

func TestHTTPClient_ClaimTask(t *testing.T) {
	h := &testHandler{
		responseBody: `{"ok":true,"task":{"task_id":"tk-55","type":"capture_photo","lat":37.77,"lon":-122.42,"status":"claimed","claimed_by":"nd-1"}}`,
	}
	c := newTestClient(t, h, "")

	task, err := c.ClaimTask(context.Background(), "tk-55", "nd-1")
	if err != nil {
		t.Fatalf("ClaimTask() error = %v", err)
	}
	if h.path != "/v1/tasks/tk-55/claim" {
		t.Errorf("path = %q", h.path)
	}
	if h.body != `{"node_id":"nd-1"}` {
		t.Errorf("request body = %q", h.body)
	}
	if task.Status != model.TaskClaimed || task.ClaimedBy != "nd-1" {
		t.Errorf("task = %+v", task)
	}
}

func TestHTTPClient_ClaimTask_Conflict(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusConflict,
		responseBody: `{"ok":false,"error":"task already claimed","status":"claimed"}`,
	}
	c := newTestClient(t, h, "")

	_, err := c.ClaimTask(context.Background(), "tk-55", "nd-2")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", apiErr.StatusCode)
	}
	if apiErr.Message != "task already claimed" {
		t.Errorf("message = %q", apiErr.Message)
	}
	if apiErr.Status != "claimed" {
		t.Errorf("conflict status = %q, want 'claimed'", apiErr.Status)
	}
	if !IsConflict(err) {
		t.Error("IsConflict() = false, want true")
	}
}

func TestHTTPClient_TaskResults(t *testing.T) {
	h := &testHandler{
		responseBody: `{"ok":true,"task":{"task_id":"tk-55","type":"capture_photo","lat":37.77,"lon":-122.42,"status":"completed","results":{"photos":3}}}`,
	}
	c := newTestClient(t, h, "")

	task, err := c.TaskResults(context.Background(), "tk-55", "nd-1", json.RawMessage(`{"photos":3}`))
	if err != nil {
		t.Fatalf("TaskResults() error = %v", err)
	}
	if !strings.Contains(h.body, `"results":{"photos":3}`) {
		t.Errorf("request body = %q", h.body)
	}
	if task.Status != model.TaskCompleted || string(task.Results) != `{"photos":3}` {
		t.Errorf("task = %+v", task)
	}
}

// --- Compute relay ---

func TestHTTPClient_RegisterComputeNode(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusCreated,
		responseBody: `{"ok":true,"node_id":"cn-8a"}`,
	}
	c := newTestClient(t, h, "")

	id, err := c.RegisterComputeNode(context.Background(), []string{"gpu"})
	if err != nil {
		t.Fatalf("RegisterComputeNode() error = %v", err)
	}
	if h.path != "/v1/compute/nodes/register" {
		t.Errorf("path = %q", h.path)
	}
	if h.body != `{"capabilities":["gpu"]}` {
		t.Errorf("request body = %q", h.body)
	}
	if id != "cn-8a" {
		t.Errorf("id = %q, want 'cn-8a'", id)
	}
}

func TestHTTPClient_PollComputeJobs(t *testing.T) {
	h := &testHandler{
		responseBody: `{"ok":true,"job":{"job_id":"cj-3","job_type":"batch_inference","requirements":["gpu"],"status":"pending"}}`,
	}
	c := newTestClient(t, h, "")

	job, err := c.PollComputeJobs(context.Background(), "cn-8a")
	if err != nil {
		t.Fatalf("PollComputeJobs() error = %v", err)
	}
	if h.query != "node_id=cn-8a" {
		t.Errorf("query = %q", h.query)
	}
	if job == nil || job.ID != "cj-3" || job.Status != model.JobPending {
		t.Errorf("job = %+v", job)
	}
}

func TestHTTPClient_PollComputeJobs_Empty(t *testing.T) {
	h := &testHandler{responseBody: `{"ok":true,"job":null}`}
	c := newTestClient(t, h, "")

	job, err := c.PollComputeJobs(context.Background(), "cn-8a")
	if err != nil {
		t.Fatalf("PollComputeJobs() error = %v", err)
	}
	if job != nil {
		t.Errorf("job = %+v, want nil when nothing is runnable", job)
	}
}

func TestHTTPClient_ComputeJobResults(t *testing.T) {
	h := &testHandler{
		responseBody: `{"ok":true,"job":{"job_id":"cj-3","job_type":"batch_inference","status":"completed","results":{"detections":7}}}`,
	}
	c := newTestClient(t, h, "")

	job, err := c.ComputeJobResults(context.Background(), "cj-3", "cn-8a", json.RawMessage(`{"detections":7}`))
	if err != nil {
		t.Fatalf("ComputeJobResults() error = %v", err)
	}
	if h.path != "/v1/compute/jobs/cj-3/results" {
		t.Errorf("path = %q", h.path)
	}
	if job.Status != model.JobCompleted {
		t.Errorf("job = %+v", job)
	}
}

func TestHTTPClient_ComputeStats(t *testing.T) {
	h := &testHandler{
		responseBody: `{"ok":true,"jobs":{"pending":2,"claimed":1,"completed":4,"failed":0},"jobs_total":7,"nodes":{"online":3,"total":5}}`,
	}
	c := newTestClient(t, h, "")

	stats, err := c.ComputeStats(context.Background())
	if err != nil {
		t.Fatalf("ComputeStats() error = %v", err)
	}
	if stats.JobsTotal != 7 || stats.Jobs["pending"] != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Nodes.Online != 3 || stats.Nodes.Total != 5 {
		t.Errorf("nodes = %+v", stats.Nodes)
	}
}

// --- Push preferences ---

func TestHTTPClient_GetPushPreferences(t *testing.T) {
	h := &testHandler{
		responseBody: `{"ok":true,"preferences":{"node_id":"nd-1","enabled":true,"vision_events":true,"community_alerts":false,"task_updates":true,"compute_jobs":true}}`,
	}
	c := newTestClient(t, h, "tk-1")

	p, err := c.GetPushPreferences(context.Background())
	if err != nil {
		t.Fatalf("GetPushPreferences() error = %v", err)
	}
	if h.method != http.MethodGet || h.path != "/v1/push/preferences" {
		t.Errorf("got %s %s", h.method, h.path)
	}
	if !p.Enabled || p.CommunityAlerts {
		t.Errorf("preferences = %+v", p)
	}
}

func TestHTTPClient_SetPushPreferences(t *testing.T) {
	h := &testHandler{
		responseBody: `{"ok":true,"preferences":{"node_id":"nd-1","enabled":true,"vision_events":true,"community_alerts":false,"task_updates":true,"compute_jobs":true}}`,
	}
	c := newTestClient(t, h, "tk-1")

	off := false
	p, err := c.SetPushPreferences(context.Background(), &model.PushPreferenceUpdate{CommunityAlerts: &off})
	if err != nil {
		t.Fatalf("SetPushPreferences() error = %v", err)
	}
	if h.method != http.MethodPut {
		t.Errorf("method = %q, want PUT", h.method)
	}
	// Partial update: untouched fields must not appear in the body.
	if h.body != `{"community_alerts":false}` {
		t.Errorf("request body = %q, want only community_alerts", h.body)
	}
	if p.CommunityAlerts {
		t.Errorf("preferences = %+v", p)
	}
}

func TestHTTPClient_EnqueuePush(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusAccepted,
		responseBody: `{"ok":true}`,
	}
	c := newTestClient(t, h, "tk-1")

	err := c.EnqueuePush(context.Background(), &PushEnqueueRequest{
		CommunityID: "cm-33",
		Kind:        "community_alerts",
		Body:        "street closure on Fulton",
	})
	if err != nil {
		t.Fatalf("EnqueuePush() error = %v", err)
	}
	if h.method != http.MethodPost || h.path != "/v1/push/enqueue" {
		t.Errorf("got %s %s", h.method, h.path)
	}
	if h.body != `{"community_id":"cm-33","kind":"community_alerts","body":"street closure on Fulton"}` {
		t.Errorf("request body = %q", h.body)
	}
}

// --- Health ---

func TestHTTPClient_Health(t *testing.T) {
	h := &testHandler{responseBody: `{"ok":true,"status":"ok"}`}
	c := newTestClient(t, h, "")

	status, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if h.method != http.MethodGet || h.path != "/v1/health" {
		t.Errorf("got %s %s", h.method, h.path)
	}
	if status != "ok" {
		t.Errorf("status = %q, want 'ok'", status)
	}
}

// --- Error handling ---

func TestHTTPClient_Error_JSONBody(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusBadRequest,
		responseBody: `{"ok":false,"error":"event_type is required"}`,
	}
	c := newTestClient(t, h, "")

	_, err := c.ReportEvent(context.Background(), &EventReport{Lat: 37.7, Lon: -122.4})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", apiErr.StatusCode)
	}
	if apiErr.Message != "event_type is required" {
		t.Errorf("message = %q", apiErr.Message)
	}
	if !strings.Contains(apiErr.Error(), "400") {
		t.Errorf("Error() = %q, want the status code in the text", apiErr.Error())
	}
}

func TestHTTPClient_Error_NonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal server error"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	_, err := c.GetCommunity(context.Background(), "cm-33")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", apiErr.StatusCode)
	}
	if apiErr.Message != "internal server error" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestHTTPClient_BaseURLTrailingSlash(t *testing.T) {
	h := &testHandler{responseBody: `{"ok":true,"status":"ok"}`}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "")
	if _, err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if h.path != "/v1/health" {
		t.Errorf("path = %q, want no double slash", h.path)
	}
}
