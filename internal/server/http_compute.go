package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/arenvale/fieldnet/internal/events"
	"github.com/arenvale/fieldnet/internal/idgen"
	"github.com/arenvale/fieldnet/internal/model"
	"github.com/arenvale/fieldnet/internal/push"
	"github.com/arenvale/fieldnet/internal/store"
)

type registerComputeNodeInput struct {
	Capabilities []string `json:"capabilities"`
}

// handleRegisterComputeNode handles POST /v1/compute/nodes/register. A node
// with no capabilities can only run jobs with no requirements.
func (s *FieldServer) handleRegisterComputeNode(w http.ResponseWriter, r *http.Request) {
	var in registerComputeNodeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id, err := idgen.GenerateWithPrefix(idgen.ComputeNodePrefix)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate node id")
		return
	}
	caps := in.Capabilities
	if caps == nil {
		caps = []string{}
	}

	now := time.Now().UTC()
	n := &model.ComputeNode{
		ID:            id,
		Capabilities:  caps,
		Status:        "online",
		RegisteredAt:  now,
		LastHeartbeat: now,
	}
	if err := s.store.CreateComputeNode(r.Context(), n); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register compute node")
		return
	}

	writeOK(w, http.StatusCreated, map[string]any{"node_id": n.ID})
}

type createComputeJobInput struct {
	JobID        string          `json:"job_id"`
	JobType      string          `json:"job_type"`
	Requirements []string        `json:"requirements"`
	Priority     int             `json:"priority"`
	Payload      json.RawMessage `json:"payload"`
}

// handleCreateComputeJob handles POST /v1/compute/jobs.
func (s *FieldServer) handleCreateComputeJob(w http.ResponseWriter, r *http.Request) {
	var in createComputeJobInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.JobType == "" {
		writeError(w, http.StatusBadRequest, "job_type is required")
		return
	}

	id := in.JobID
	if id == "" {
		var err error
		id, err = idgen.GenerateWithPrefix(idgen.JobPrefix)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to generate job id")
			return
		}
	}
	reqs := in.Requirements
	if reqs == nil {
		reqs = []string{}
	}

	j := &model.ComputeJob{
		ID:           id,
		Type:         in.JobType,
		Requirements: reqs,
		Priority:     in.Priority,
		Payload:      in.Payload,
		Status:       model.JobPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateComputeJob(r.Context(), j); err != nil {
		if errors.Is(err, store.ErrExists) {
			writeError(w, http.StatusConflict, "job already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	writeOK(w, http.StatusCreated, map[string]any{"job_id": j.ID})
}

// handlePollComputeJobs handles GET /v1/compute/jobs/poll. Returns the first
// pending job the node's capabilities cover; priority is stored for display
// but does not order the queue. Polling refreshes the node's liveness.
func (s *FieldServer) handlePollComputeJobs(w http.ResponseWriter, r *http.Request) {
	nodeID := r.URL.Query().Get("node_id")
	if nodeID == "" {
		writeError(w, http.StatusBadRequest, "node_id is required")
		return
	}

	n, err := s.store.GetComputeNode(r.Context(), nodeID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "compute node not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load compute node")
		return
	}
	if err := s.store.TouchComputeNode(r.Context(), nodeID, time.Now().UTC()); err != nil {
		slog.Warn("failed to refresh compute node heartbeat", "node_id", nodeID, "error", err)
	}

	jobs, err := s.store.ListComputeJobs(r.Context(), model.ComputeJobFilter{Status: []model.JobStatus{model.JobPending}})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	for _, j := range jobs {
		if n.CanRun(j.Requirements) {
			writeOK(w, http.StatusOK, map[string]any{"job": j})
			return
		}
	}

	writeOK(w, http.StatusOK, map[string]any{"job": nil})
}

// handleClaimComputeJob handles POST /v1/compute/jobs/{id}/claim. A
// successful claim also counts as a heartbeat for the claiming node.
func (s *FieldServer) handleClaimComputeJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in claimInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.NodeID == "" {
		writeError(w, http.StatusBadRequest, "node_id is required")
		return
	}

	now := time.Now().UTC()
	j, err := s.store.ClaimComputeJob(r.Context(), id, in.NodeID, now)
	var ce *store.ConflictError
	if errors.As(err, &ce) {
		writeConflict(w, jobConflictMessage(ce.Status), ce.Status)
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to claim job")
		return
	}

	if err := s.store.TouchComputeNode(r.Context(), in.NodeID, now); err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Warn("failed to refresh compute node heartbeat", "node_id", in.NodeID, "error", err)
	}

	writeOK(w, http.StatusOK, map[string]any{"job": j})
}

// jobConflictMessage renders the 409 error for a claim on a non-pending job.
func jobConflictMessage(status string) string {
	switch model.JobStatus(status) {
	case model.JobCompleted:
		return "job already completed"
	case model.JobFailed:
		return "job failed"
	default:
		return "job already claimed"
	}
}

// handleComputeJobHeartbeat handles POST /v1/compute/jobs/{id}/heartbeat.
func (s *FieldServer) handleComputeJobHeartbeat(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in taskHeartbeatInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.ProgressPct == nil {
		writeError(w, http.StatusBadRequest, "progress_pct is required")
		return
	}
	if *in.ProgressPct < 0 || *in.ProgressPct > 100 {
		writeError(w, http.StatusBadRequest, "progress_pct must be between 0 and 100")
		return
	}

	j, err := s.store.HeartbeatComputeJob(r.Context(), id, *in.ProgressPct)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record job heartbeat")
		return
	}

	writeOK(w, http.StatusOK, map[string]any{"job": j})
}

// handleComputeJobResults handles POST /v1/compute/jobs/{id}/results.
func (s *FieldServer) handleComputeJobResults(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in taskResultsInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	now := time.Now().UTC()
	j, err := s.store.CompleteComputeJob(r.Context(), id, in.Results, now)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to complete job")
		return
	}

	nodeID := in.NodeID
	if nodeID == "" {
		nodeID = j.ClaimedBy
	}
	s.recordCompletion(r.Context(), model.CompletionCompute, id, nodeID, in.Results, now)
	if j.ClaimedBy != "" {
		s.push.Enqueue(push.Notification{
			NodeID: j.ClaimedBy,
			Kind:   model.PushComputeJobs,
			Title:  "Job completed",
			Body:   fmt.Sprintf("%s job %s finished", j.Type, j.ID),
			Ref:    j.ID,
		})
	}
	s.publish(r.Context(), events.TopicComputeCompleted, events.ComputeCompleted{Job: j, NodeID: nodeID})

	writeOK(w, http.StatusOK, map[string]any{"job": j})
}

// handleComputeNodesOnline handles GET /v1/compute/nodes/online.
func (s *FieldServer) handleComputeNodesOnline(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.store.ListComputeNodes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list compute nodes")
		return
	}

	now := time.Now().UTC()
	online := make([]*model.ComputeNode, 0, len(nodes))
	for _, n := range nodes {
		if now.Sub(n.LastHeartbeat) <= computeOnlineWindow {
			online = append(online, n)
		}
	}

	writeOK(w, http.StatusOK, map[string]any{"count": len(online), "nodes": online})
}

// handleComputeStats handles GET /v1/compute/stats.
func (s *FieldServer) handleComputeStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountComputeJobsByStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count jobs")
		return
	}
	nodes, err := s.store.ListComputeNodes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list compute nodes")
		return
	}

	now := time.Now().UTC()
	online := 0
	for _, n := range nodes {
		if now.Sub(n.LastHeartbeat) <= computeOnlineWindow {
			online++
		}
	}

	byStatus := map[string]int{
		model.JobPending.String():   counts[model.JobPending],
		model.JobClaimed.String():   counts[model.JobClaimed],
		model.JobCompleted.String(): counts[model.JobCompleted],
		model.JobFailed.String():    counts[model.JobFailed],
	}
	total := 0
	for _, n := range byStatus {
		total += n
	}

	writeOK(w, http.StatusOK, map[string]any{
		"jobs":       byStatus,
		"jobs_total": total,
		"nodes":      map[string]int{"online": online, "total": len(nodes)},
	})
}
