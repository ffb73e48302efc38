package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/arenvale/fieldnet/internal/events"
	"github.com/arenvale/fieldnet/internal/hexgrid"
	"github.com/arenvale/fieldnet/internal/idgen"
	"github.com/arenvale/fieldnet/internal/model"
	"github.com/arenvale/fieldnet/internal/push"
	"github.com/arenvale/fieldnet/internal/store"
)

// minTaskRadiusKm is the smallest catchment a task may declare.
const minTaskRadiusKm = 0.1

// defaultSearchRadiusKm bounds an available query that names no radius.
const defaultSearchRadiusKm = 10.0

type distributeTaskInput struct {
	TaskID       string          `json:"task_id"`
	Type         string          `json:"type"`
	Lat          *float64        `json:"lat"`
	Lon          *float64        `json:"lon"`
	RadiusKm     *float64        `json:"radius_km"`
	Requirements json.RawMessage `json:"requirements"`
	Reward       float64         `json:"reward"`
	ExpiresAt    *time.Time      `json:"expires_at"`
}

// handleDistributeTask handles POST /v1/tasks/distribute.
func (s *FieldServer) handleDistributeTask(w http.ResponseWriter, r *http.Request) {
	var in distributeTaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
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
	if in.RadiusKm == nil || *in.RadiusKm < minTaskRadiusKm {
		writeError(w, http.StatusBadRequest, "radius_km must be at least 0.1")
		return
	}
	if in.Reward < 0 {
		writeError(w, http.StatusBadRequest, "reward cannot be negative")
		return
	}

	id := in.TaskID
	if id == "" {
		var err error
		id, err = idgen.GenerateWithPrefix(idgen.TaskPrefix)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to generate task id")
			return
		}
	}
	cell, err := hexgrid.CellOf(*in.Lat, *in.Lon, s.h3Res)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to index task location")
		return
	}

	t := &model.Task{
		ID:           id,
		Type:         in.Type,
		Lat:          *in.Lat,
		Lon:          *in.Lon,
		RadiusKm:     *in.RadiusKm,
		Requirements: in.Requirements,
		Reward:       in.Reward,
		ExpiresAt:    in.ExpiresAt,
		Cell:         cell,
		Status:       model.TaskOpen,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateTask(r.Context(), t); err != nil {
		if errors.Is(err, store.ErrExists) {
			writeError(w, http.StatusConflict, "task already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	writeOK(w, http.StatusCreated, map[string]any{"task_id": t.ID, "h3_cell": t.Cell})
}

// availableTask is a task plus its distance from the searcher.
type availableTask struct {
	*model.Task
	DistanceKm float64 `json:"distance_km"`
}

// handleAvailableTasks handles GET /v1/tasks/available. Expiry is reconciled
// before the scan so an overdue task never reports open again.
func (s *FieldServer) handleAvailableTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := parseFloatParam(q, "lat")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lon, err := parseFloatParam(q, "lon")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !hexgrid.ValidCoords(lat, lon) {
		writeError(w, http.StatusBadRequest, "coordinates out of range")
		return
	}
	radius := defaultSearchRadiusKm
	if v := q.Get("radius_km"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			writeError(w, http.StatusBadRequest, "invalid radius_km")
			return
		}
		radius = f
	}

	now := time.Now().UTC()
	s.reconcileExpiry(r.Context(), now)

	open, err := s.store.ListTasks(r.Context(), model.TaskFilter{Status: []model.TaskStatus{model.TaskOpen}})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	out := make([]availableTask, 0, len(open))
	for _, t := range open {
		// Skip anything that crossed its deadline since the reconcile scan.
		if t.ExpiredAt(now) {
			continue
		}
		d := hexgrid.DistanceKm(lat, lon, t.Lat, t.Lon)
		if d <= radius {
			out = append(out, availableTask{Task: t, DistanceKm: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })

	writeOK(w, http.StatusOK, map[string]any{"count": len(out), "tasks": out})
}

// reconcileExpiry flips open tasks past their deadline to expired. Invoked
// at the top of read paths so the transition never hides inside a search.
func (s *FieldServer) reconcileExpiry(ctx context.Context, now time.Time) {
	open, err := s.store.ListTasks(ctx, model.TaskFilter{Status: []model.TaskStatus{model.TaskOpen}})
	if err != nil {
		slog.Warn("failed to scan tasks for expiry", "error", err)
		return
	}
	for _, t := range open {
		if !t.ExpiredAt(now) {
			continue
		}
		if _, err := s.store.MarkTaskExpired(ctx, t.ID); err != nil {
			slog.Warn("failed to expire task", "task_id", t.ID, "error", err)
		}
	}
}

type claimInput struct {
	NodeID string `json:"node_id"`
}

// handleClaimTask handles POST /v1/tasks/{id}/claim. Exactly one claimant
// wins; losers get a 409 naming the task's current status.
func (s *FieldServer) handleClaimTask(w http.ResponseWriter, r *http.Request) {
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
	t, err := s.store.GetTask(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	if t.Status == model.TaskOpen && t.ExpiredAt(now) {
		if _, err := s.store.MarkTaskExpired(r.Context(), id); err != nil {
			slog.Warn("failed to expire task", "task_id", id, "error", err)
		}
		writeConflict(w, "task expired", model.TaskExpired.String())
		return
	}

	claimed, err := s.store.ClaimTask(r.Context(), id, in.NodeID, now)
	var ce *store.ConflictError
	if errors.As(err, &ce) {
		writeConflict(w, taskConflictMessage(ce.Status), ce.Status)
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to claim task")
		return
	}

	writeOK(w, http.StatusOK, map[string]any{"task": claimed})
}

// taskConflictMessage renders the 409 error for a claim on a non-open task.
func taskConflictMessage(status string) string {
	switch model.TaskStatus(status) {
	case model.TaskCompleted:
		return "task already completed"
	case model.TaskExpired:
		return "task expired"
	default:
		return "task already claimed"
	}
}

type taskHeartbeatInput struct {
	NodeID      string   `json:"node_id"`
	ProgressPct *float64 `json:"progress_pct"`
}

// handleTaskHeartbeat handles POST /v1/tasks/{id}/heartbeat. Progress is
// recorded regardless of status so a late heartbeat racing completion does
// not error.
func (s *FieldServer) handleTaskHeartbeat(w http.ResponseWriter, r *http.Request) {
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

	t, err := s.store.HeartbeatTask(r.Context(), id, *in.ProgressPct)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record task heartbeat")
		return
	}

	writeOK(w, http.StatusOK, map[string]any{"task": t})
}

type taskResultsInput struct {
	NodeID  string          `json:"node_id"`
	Results json.RawMessage `json:"results"`
}

// handleTaskResults handles POST /v1/tasks/{id}/results. Completion is an
// idempotent overwrite; every submission appends to the results log.
func (s *FieldServer) handleTaskResults(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in taskResultsInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	now := time.Now().UTC()
	t, err := s.store.CompleteTask(r.Context(), id, in.Results, now)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to complete task")
		return
	}

	nodeID := in.NodeID
	if nodeID == "" {
		nodeID = t.ClaimedBy
	}
	s.recordCompletion(r.Context(), model.CompletionTask, id, nodeID, in.Results, now)
	if t.ClaimedBy != "" {
		s.push.Enqueue(push.Notification{
			NodeID: t.ClaimedBy,
			Kind:   model.PushTaskUpdates,
			Title:  "Task completed",
			Body:   fmt.Sprintf("%s task %s finished", t.Type, t.ID),
			Ref:    t.ID,
		})
	}
	s.publish(r.Context(), events.TopicTaskCompleted, events.TaskCompleted{Task: t, NodeID: nodeID})

	writeOK(w, http.StatusOK, map[string]any{"task": t})
}

// handleTaskStats handles GET /v1/tasks/stats. Overdue open tasks are
// counted as expired for display without mutating the stored records.
func (s *FieldServer) handleTaskStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountTasksByStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count tasks")
		return
	}
	open, err := s.store.ListTasks(r.Context(), model.TaskFilter{Status: []model.TaskStatus{model.TaskOpen}})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	now := time.Now().UTC()
	overdue := 0
	for _, t := range open {
		if t.ExpiredAt(now) {
			overdue++
		}
	}

	byStatus := map[string]int{
		model.TaskOpen.String():      counts[model.TaskOpen] - overdue,
		model.TaskClaimed.String():   counts[model.TaskClaimed],
		model.TaskCompleted.String(): counts[model.TaskCompleted],
		model.TaskExpired.String():   counts[model.TaskExpired] + overdue,
	}
	total := 0
	for _, n := range byStatus {
		total += n
	}

	writeOK(w, http.StatusOK, map[string]any{"by_status": byStatus, "total": total})
}

// parseFloatParam reads a required float query parameter.
func parseFloatParam(q url.Values, name string) (float64, error) {
	v := q.Get(name)
	if v == "" {
		return 0, inputError(name + " is required")
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, inputError("invalid " + name)
	}
	return f, nil
}
