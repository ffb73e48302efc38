package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/arenvale/fieldnet/internal/model"
)

// HTTPClient implements FieldClient using the fieldnet HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	regSecret  string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// SetRegistrationSecret sets the shared secret sent with every request.
// Only registration checks it; servers with open registration ignore it.
func (c *HTTPClient) SetRegistrationSecret(secret string) {
	c.regSecret = secret
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Nodes ---

func (c *HTTPClient) RegisterNode(ctx context.Context, req *RegisterNodeRequest) (*RegisterNodeResponse, error) {
	var resp RegisterNodeResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/nodes/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Heartbeat(ctx context.Context, req *HeartbeatRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/nodes/heartbeat", req, nil)
}

func (c *HTTPClient) NodesOnline(ctx context.Context) (*NodesOnlineResponse, error) {
	var resp NodesOnlineResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/nodes/online", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Events ---

func (c *HTTPClient) ReportEvent(ctx context.Context, req *EventReport) (*EventAck, error) {
	var ack EventAck
	if err := c.doJSON(ctx, http.MethodPost, "/v1/vision/events", req, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// ReportFrame is the authenticated ingest path. The node identity comes
// from the bearer token, so req.NodeID is ignored.
func (c *HTTPClient) ReportFrame(ctx context.Context, req *EventReport) (*EventAck, error) {
	var ack EventAck
	if err := c.doJSON(ctx, http.MethodPost, "/v1/events/frame", req, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// --- World surface ---

func (c *HTTPClient) WorldCells(ctx context.Context, res, hours int) (*WorldCellsResponse, error) {
	var resp WorldCellsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/world/cells?"+windowQuery(res, hours), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) WorldEvents(ctx context.Context, req *WorldEventsRequest) (*WorldEventsResponse, error) {
	q := url.Values{}
	if req.Hours > 0 {
		q.Set("hours", strconv.Itoa(req.Hours))
	}
	if req.Kind != "" {
		q.Set("kind", req.Kind)
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	path := "/v1/world/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp WorldEventsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) WorldStats(ctx context.Context, hours int) (*WorldStats, error) {
	path := "/v1/world/stats"
	if hours > 0 {
		path += "?hours=" + strconv.Itoa(hours)
	}
	var resp WorldStats
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) VisionCoverage(ctx context.Context, res, hours int) (*CoverageResponse, error) {
	var resp CoverageResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/vision/coverage?"+windowQuery(res, hours), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func windowQuery(res, hours int) string {
	q := url.Values{}
	if res > 0 {
		q.Set("res", strconv.Itoa(res))
	}
	if hours > 0 {
		q.Set("hours", strconv.Itoa(hours))
	}
	return q.Encode()
}

// --- Communities ---

func (c *HTTPClient) CreateCommunity(ctx context.Context, req *CreateCommunityRequest) (*model.Community, error) {
	var resp struct {
		Community *model.Community `json:"community"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/communities", req, &resp); err != nil {
		return nil, err
	}
	return resp.Community, nil
}

func (c *HTTPClient) JoinCommunity(ctx context.Context, inviteCode string) (string, error) {
	body := map[string]string{"invite_code": inviteCode}
	var resp struct {
		CommunityID string `json:"community_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/communities/join", body, &resp); err != nil {
		return "", err
	}
	return resp.CommunityID, nil
}

func (c *HTTPClient) LeaveCommunity(ctx context.Context, communityID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/communities/"+url.PathEscape(communityID)+"/members/me", nil, nil)
}

func (c *HTTPClient) MyCommunities(ctx context.Context) ([]*CommunitySummary, error) {
	var resp struct {
		Communities []*CommunitySummary `json:"communities"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/communities/mine", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Communities, nil
}

func (c *HTTPClient) GetCommunity(ctx context.Context, communityID string) (*model.Community, error) {
	var resp struct {
		Community *model.Community `json:"community"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/communities/"+url.PathEscape(communityID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Community, nil
}

func (c *HTTPClient) BroadcastAlert(ctx context.Context, communityID string, req *BroadcastAlertRequest) (*EventAck, error) {
	var ack EventAck
	path := "/v1/communities/" + url.PathEscape(communityID) + "/alerts"
	if err := c.doJSON(ctx, http.MethodPost, path, req, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func (c *HTTPClient) ListAlerts(ctx context.Context, communityID string, limit int) ([]*model.Event, error) {
	path := "/v1/communities/" + url.PathEscape(communityID) + "/alerts"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Alerts []*model.Event `json:"alerts"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Alerts, nil
}

// --- Tasks ---

func (c *HTTPClient) DistributeTask(ctx context.Context, req *DistributeTaskRequest) (*TaskAck, error) {
	var ack TaskAck
	if err := c.doJSON(ctx, http.MethodPost, "/v1/tasks/distribute", req, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func (c *HTTPClient) AvailableTasks(ctx context.Context, lat, lon, radiusKm float64) (*AvailableTasksResponse, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	if radiusKm > 0 {
		q.Set("radius_km", strconv.FormatFloat(radiusKm, 'f', -1, 64))
	}
	var resp AvailableTasksResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/tasks/available?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ClaimTask(ctx context.Context, taskID, nodeID string) (*model.Task, error) {
	body := map[string]string{"node_id": nodeID}
	var resp struct {
		Task *model.Task `json:"task"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/tasks/"+url.PathEscape(taskID)+"/claim", body, &resp); err != nil {
		return nil, err
	}
	return resp.Task, nil
}

func (c *HTTPClient) TaskHeartbeat(ctx context.Context, taskID, nodeID string, progressPct float64) (*model.Task, error) {
	body := map[string]any{"node_id": nodeID, "progress_pct": progressPct}
	var resp struct {
		Task *model.Task `json:"task"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/tasks/"+url.PathEscape(taskID)+"/heartbeat", body, &resp); err != nil {
		return nil, err
	}
	return resp.Task, nil
}

func (c *HTTPClient) TaskResults(ctx context.Context, taskID, nodeID string, results json.RawMessage) (*model.Task, error) {
	body := map[string]any{"node_id": nodeID, "results": results}
	var resp struct {
		Task *model.Task `json:"task"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/tasks/"+url.PathEscape(taskID)+"/results", body, &resp); err != nil {
		return nil, err
	}
	return resp.Task, nil
}

func (c *HTTPClient) TaskStats(ctx context.Context) (*TaskStats, error) {
	var resp TaskStats
	if err := c.doJSON(ctx, http.MethodGet, "/v1/tasks/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Compute relay ---

func (c *HTTPClient) RegisterComputeNode(ctx context.Context, capabilities []string) (string, error) {
	body := map[string]any{"capabilities": capabilities}
	var resp struct {
		NodeID string `json:"node_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/compute/nodes/register", body, &resp); err != nil {
		return "", err
	}
	return resp.NodeID, nil
}

func (c *HTTPClient) CreateComputeJob(ctx context.Context, req *CreateComputeJobRequest) (string, error) {
	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/compute/jobs", req, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

// PollComputeJobs asks for the next runnable job. A nil job with a nil error
// means nothing matched the node's capabilities.
func (c *HTTPClient) PollComputeJobs(ctx context.Context, nodeID string) (*model.ComputeJob, error) {
	path := "/v1/compute/jobs/poll?node_id=" + url.QueryEscape(nodeID)
	var resp struct {
		Job *model.ComputeJob `json:"job"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Job, nil
}

func (c *HTTPClient) ClaimComputeJob(ctx context.Context, jobID, nodeID string) (*model.ComputeJob, error) {
	body := map[string]string{"node_id": nodeID}
	var resp struct {
		Job *model.ComputeJob `json:"job"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/compute/jobs/"+url.PathEscape(jobID)+"/claim", body, &resp); err != nil {
		return nil, err
	}
	return resp.Job, nil
}

func (c *HTTPClient) ComputeJobHeartbeat(ctx context.Context, jobID, nodeID string, progressPct float64) (*model.ComputeJob, error) {
	body := map[string]any{"node_id": nodeID, "progress_pct": progressPct}
	var resp struct {
		Job *model.ComputeJob `json:"job"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/compute/jobs/"+url.PathEscape(jobID)+"/heartbeat", body, &resp); err != nil {
		return nil, err
	}
	return resp.Job, nil
}

func (c *HTTPClient) ComputeJobResults(ctx context.Context, jobID, nodeID string, results json.RawMessage) (*model.ComputeJob, error) {
	body := map[string]any{"node_id": nodeID, "results": results}
	var resp struct {
		Job *model.ComputeJob `json:"job"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/compute/jobs/"+url.PathEscape(jobID)+"/results", body, &resp); err != nil {
		return nil, err
	}
	return resp.Job, nil
}

func (c *HTTPClient) ComputeNodesOnline(ctx context.Context) (*ComputeNodesOnlineResponse, error) {
	var resp ComputeNodesOnlineResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/compute/nodes/online", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ComputeStats(ctx context.Context) (*ComputeStats, error) {
	var resp ComputeStats
	if err := c.doJSON(ctx, http.MethodGet, "/v1/compute/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Push preferences ---

func (c *HTTPClient) GetPushPreferences(ctx context.Context) (*model.PushPreference, error) {
	var resp struct {
		Preferences *model.PushPreference `json:"preferences"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/push/preferences", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Preferences, nil
}

func (c *HTTPClient) SetPushPreferences(ctx context.Context, req *model.PushPreferenceUpdate) (*model.PushPreference, error) {
	var resp struct {
		Preferences *model.PushPreference `json:"preferences"`
	}
	if err := c.doJSON(ctx, http.MethodPut, "/v1/push/preferences", req, &resp); err != nil {
		return nil, err
	}
	return resp.Preferences, nil
}

func (c *HTTPClient) EnqueuePush(ctx context.Context, req *PushEnqueueRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/push/enqueue", req, nil)
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server. Status carries the
// resource's current state on claim conflicts.
type APIError struct {
	StatusCode int
	Message    string
	Status     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsConflict reports whether err is an APIError with a 409 status.
func IsConflict(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusConflict
}

// doJSON sends one API request and decodes the JSON response into result
// (discarded when result is nil). Error envelopes come back as *APIError.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return decodeAPIError(resp.StatusCode, respBody)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// newRequest builds an authenticated request with an optional JSON body.
func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.regSecret != "" {
		req.Header.Set("X-Registration-Secret", c.regSecret)
	}
	return req, nil
}

// decodeAPIError reads the server's {"ok":false,"error":...} envelope,
// falling back to the raw body when the envelope does not parse.
func decodeAPIError(code int, body []byte) error {
	var envelope struct {
		Error  string `json:"error"`
		Status string `json:"status"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
		return &APIError{StatusCode: code, Message: envelope.Error, Status: envelope.Status}
	}
	return &APIError{StatusCode: code, Message: strings.TrimSpace(string(body))}
}
