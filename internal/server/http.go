package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/arenvale/fieldnet/internal/paywall"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When gate is non-nil, its paid-access middleware wraps every route.
func (s *FieldServer) NewHTTPHandler(gate *paywall.Gate) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/nodes/register", s.handleRegisterNode)
	mux.HandleFunc("POST /v1/nodes/heartbeat", s.handleNodeHeartbeat)
	mux.HandleFunc("GET /v1/nodes/online", s.handleNodesOnline)
	mux.HandleFunc("POST /v1/events/frame", s.handleFrameEvent)
	mux.HandleFunc("POST /v1/vision/events", s.handleVisionEvent)
	mux.HandleFunc("GET /v1/world/cells", s.handleWorldCells)
	mux.HandleFunc("GET /v1/world/events", s.handleWorldEvents)
	mux.HandleFunc("GET /v1/world/stats", s.handleWorldStats)
	mux.HandleFunc("GET /v1/vision/coverage", s.handleVisionCoverage)
	mux.HandleFunc("GET /v1/media/{path...}", s.handleGetMedia)
	mux.HandleFunc("POST /v1/communities", s.handleCreateCommunity)
	mux.HandleFunc("POST /v1/communities/join", s.handleJoinCommunity)
	mux.HandleFunc("GET /v1/communities/mine", s.handleMyCommunities)
	mux.HandleFunc("GET /v1/communities/{id}", s.handleGetCommunity)
	mux.HandleFunc("DELETE /v1/communities/{id}/members/me", s.handleLeaveCommunity)
	mux.HandleFunc("GET /v1/communities/{id}/alerts", s.handleListAlerts)
	mux.HandleFunc("POST /v1/communities/{id}/alerts", s.handleBroadcastAlert)
	mux.HandleFunc("GET /v1/ws/alerts", s.handleWSAlerts)
	mux.HandleFunc("POST /v1/tasks/distribute", s.handleDistributeTask)
	mux.HandleFunc("GET /v1/tasks/available", s.handleAvailableTasks)
	mux.HandleFunc("POST /v1/tasks/{id}/claim", s.handleClaimTask)
	mux.HandleFunc("POST /v1/tasks/{id}/heartbeat", s.handleTaskHeartbeat)
	mux.HandleFunc("POST /v1/tasks/{id}/results", s.handleTaskResults)
	mux.HandleFunc("GET /v1/tasks/stats", s.handleTaskStats)
	mux.HandleFunc("POST /v1/compute/nodes/register", s.handleRegisterComputeNode)
	mux.HandleFunc("GET /v1/compute/nodes/online", s.handleComputeNodesOnline)
	mux.HandleFunc("POST /v1/compute/jobs", s.handleCreateComputeJob)
	mux.HandleFunc("GET /v1/compute/jobs/poll", s.handlePollComputeJobs)
	mux.HandleFunc("POST /v1/compute/jobs/{id}/claim", s.handleClaimComputeJob)
	mux.HandleFunc("POST /v1/compute/jobs/{id}/heartbeat", s.handleComputeJobHeartbeat)
	mux.HandleFunc("POST /v1/compute/jobs/{id}/results", s.handleComputeJobResults)
	mux.HandleFunc("GET /v1/compute/stats", s.handleComputeStats)
	mux.HandleFunc("GET /v1/push/preferences", s.handleGetPushPreferences)
	mux.HandleFunc("PUT /v1/push/preferences", s.handlePutPushPreferences)
	mux.HandleFunc("POST /v1/push/enqueue", s.handlePushEnqueue)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	if gate != nil {
		return gate.Middleware(mux)
	}
	return mux
}

// handleHealth handles GET /v1/health.
func (s *FieldServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, http.StatusOK, map[string]any{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeOK writes a success envelope with ok=true alongside the given fields.
func writeOK(w http.ResponseWriter, status int, fields map[string]any) {
	body := make(map[string]any, len(fields)+1)
	body["ok"] = true
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// writeError writes a failure envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": message})
}

// writeConflict writes a 409 carrying the record's current status so the
// caller can self-correct.
func writeConflict(w http.ResponseWriter, message, current string) {
	writeJSON(w, http.StatusConflict, map[string]any{"ok": false, "error": message, "status": current})
}

// parseHours reads the lookback window from the query, defaulting to 24.
func parseHours(r *http.Request) (int, error) {
	v := r.URL.Query().Get("hours")
	if v == "" {
		return 24, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, inputError("hours must be a positive integer")
	}
	return n, nil
}

// parseRes reads the aggregation resolution from the query.
func parseRes(r *http.Request, def int) (int, error) {
	v := r.URL.Query().Get("res")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > 15 {
		return 0, inputError("res must be between 0 and 15")
	}
	return n, nil
}
