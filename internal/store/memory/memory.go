// Package memory implements store.Store with mutex-guarded maps. It backs
// tests and single-process deployments that can afford to lose records on
// restart (FIELDNET_DATABASE_URL=memory).
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/arenvale/fieldnet/internal/model"
	"github.com/arenvale/fieldnet/internal/store"
)

// Store implements store.Store in process memory.
type Store struct {
	mu sync.RWMutex

	nodes        map[string]*model.Node
	communities  map[string]*model.Community
	cellIndex    map[string]map[string]struct{} // cell -> community IDs
	memberIndex  map[string]map[string]struct{} // node ID -> community IDs
	events       []*model.Event
	tasks        map[string]*model.Task
	computeNodes map[string]*model.ComputeNode
	computeJobs  map[string]*model.ComputeJob
	jobOrder     []string // creation order, drives first-match polling
	taskOrder    []string
	prefs        map[string]*model.PushPreference
	completions  []*model.Completion
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		nodes:        make(map[string]*model.Node),
		communities:  make(map[string]*model.Community),
		cellIndex:    make(map[string]map[string]struct{}),
		memberIndex:  make(map[string]map[string]struct{}),
		tasks:        make(map[string]*model.Task),
		computeNodes: make(map[string]*model.ComputeNode),
		computeJobs:  make(map[string]*model.ComputeJob),
		prefs:        make(map[string]*model.PushPreference),
	}
}

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// --- Nodes ---

func (s *Store) CreateNode(_ context.Context, node *model.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[node.ID]; ok {
		return store.ErrExists
	}
	s.nodes[node.ID] = cloneNode(node)
	return nil
}

func (s *Store) GetNode(_ context.Context, id string) (*model.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneNode(n), nil
}

func (s *Store) NodeByToken(_ context.Context, token string) (*model.Node, error) {
	if token == "" {
		return nil, store.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.nodes {
		if n.Token == token {
			return cloneNode(n), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListNodes(_ context.Context) ([]*model.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, cloneNode(n))
	}
	return out, nil
}

// --- Communities ---

func (s *Store) CreateCommunity(_ context.Context, c *model.Community) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.communities[c.ID]; ok {
		return store.ErrExists
	}
	s.communities[c.ID] = cloneCommunity(c)
	for _, cell := range c.Cells {
		if s.cellIndex[cell] == nil {
			s.cellIndex[cell] = make(map[string]struct{})
		}
		s.cellIndex[cell][c.ID] = struct{}{}
	}
	for nodeID := range c.Members {
		s.indexMember(nodeID, c.ID)
	}
	return nil
}

func (s *Store) GetCommunity(_ context.Context, id string) (*model.Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.communities[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneCommunity(c), nil
}

func (s *Store) CommunityByInvite(_ context.Context, code string) (*model.Community, error) {
	if code == "" {
		return nil, store.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.communities {
		if c.InviteCode == code {
			return cloneCommunity(c), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CommunitiesForNode(_ context.Context, nodeID string) ([]*model.Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Community
	for id := range s.memberIndex[nodeID] {
		if c, ok := s.communities[id]; ok {
			out = append(out, cloneCommunity(c))
		}
	}
	return out, nil
}

func (s *Store) CommunitiesCovering(_ context.Context, cell string) ([]*model.Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Community
	for id := range s.cellIndex[cell] {
		if c, ok := s.communities[id]; ok {
			out = append(out, cloneCommunity(c))
		}
	}
	return out, nil
}

func (s *Store) AddMember(_ context.Context, communityID, nodeID string, m model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.communities[communityID]
	if !ok {
		return store.ErrNotFound
	}
	if _, ok := c.Members[nodeID]; ok {
		return store.ErrExists
	}
	c.Members[nodeID] = m
	s.indexMember(nodeID, communityID)
	return nil
}

func (s *Store) RemoveMember(_ context.Context, communityID, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.communities[communityID]
	if !ok {
		return store.ErrNotFound
	}
	if _, ok := c.Members[nodeID]; !ok {
		return store.ErrNotFound
	}
	delete(c.Members, nodeID)
	if idx := s.memberIndex[nodeID]; idx != nil {
		delete(idx, communityID)
		if len(idx) == 0 {
			delete(s.memberIndex, nodeID)
		}
	}
	return nil
}

func (s *Store) indexMember(nodeID, communityID string) {
	if s.memberIndex[nodeID] == nil {
		s.memberIndex[nodeID] = make(map[string]struct{})
	}
	s.memberIndex[nodeID][communityID] = struct{}{}
}

// --- Events ---

func (s *Store) AppendEvent(_ context.Context, ev *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, cloneEvent(ev))
	return nil
}

func (s *Store) ListEvents(_ context.Context, filter model.EventFilter) ([]*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Event
	// Newest first: the log is append-ordered, so walk backwards.
	for i := len(s.events) - 1; i >= 0; i-- {
		ev := s.events[i]
		if !matchEvent(ev, filter) {
			continue
		}
		out = append(out, cloneEvent(ev))
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func matchEvent(ev *model.Event, filter model.EventFilter) bool {
	if !filter.Since.IsZero() && ev.TS.Before(filter.Since) {
		return false
	}
	if len(filter.Kinds) > 0 {
		found := false
		for _, k := range filter.Kinds {
			if ev.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.CommunityID != "" {
		if ev.Alert == nil || ev.Alert.CommunityID != filter.CommunityID {
			return false
		}
	}
	if filter.NodeID != "" && ev.NodeID != filter.NodeID {
		return false
	}
	return true
}

// --- Tasks ---

func (s *Store) CreateTask(_ context.Context, t *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; ok {
		return store.ErrExists
	}
	s.tasks[t.ID] = cloneTask(t)
	s.taskOrder = append(s.taskOrder, t.ID)
	return nil
}

func (s *Store) GetTask(_ context.Context, id string) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTask(t), nil
}

func (s *Store) ListTasks(_ context.Context, filter model.TaskFilter) ([]*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Task
	for _, id := range s.taskOrder {
		t := s.tasks[id]
		if len(filter.Status) > 0 {
			found := false
			for _, st := range filter.Status {
				if t.Status == st {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, cloneTask(t))
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ClaimTask(_ context.Context, id, nodeID string, now time.Time) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if t.Status != model.TaskOpen {
		return nil, &store.ConflictError{Status: t.Status.String()}
	}
	t.Status = model.TaskClaimed
	t.ClaimedBy = nodeID
	claimedAt := now
	t.ClaimedAt = &claimedAt
	return cloneTask(t), nil
}

func (s *Store) HeartbeatTask(_ context.Context, id string, progressPct float64) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	t.ProgressPct = progressPct
	return cloneTask(t), nil
}

func (s *Store) CompleteTask(_ context.Context, id string, results json.RawMessage, now time.Time) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	t.Status = model.TaskCompleted
	t.Results = append(json.RawMessage(nil), results...)
	completedAt := now
	t.CompletedAt = &completedAt
	return cloneTask(t), nil
}

func (s *Store) MarkTaskExpired(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if t.Status != model.TaskOpen {
		return false, nil
	}
	t.Status = model.TaskExpired
	return true, nil
}

func (s *Store) CountTasksByStatus(_ context.Context) (map[model.TaskStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[model.TaskStatus]int)
	for _, t := range s.tasks {
		counts[t.Status]++
	}
	return counts, nil
}

// --- Compute nodes ---

func (s *Store) CreateComputeNode(_ context.Context, n *model.ComputeNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.computeNodes[n.ID]; ok {
		return store.ErrExists
	}
	s.computeNodes[n.ID] = cloneComputeNode(n)
	return nil
}

func (s *Store) GetComputeNode(_ context.Context, id string) (*model.ComputeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.computeNodes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneComputeNode(n), nil
}

func (s *Store) ListComputeNodes(_ context.Context) ([]*model.ComputeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.ComputeNode, 0, len(s.computeNodes))
	for _, n := range s.computeNodes {
		out = append(out, cloneComputeNode(n))
	}
	return out, nil
}

func (s *Store) TouchComputeNode(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.computeNodes[id]
	if !ok {
		return store.ErrNotFound
	}
	n.LastHeartbeat = now
	return nil
}

// --- Compute jobs ---

func (s *Store) CreateComputeJob(_ context.Context, j *model.ComputeJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.computeJobs[j.ID]; ok {
		return store.ErrExists
	}
	s.computeJobs[j.ID] = cloneComputeJob(j)
	s.jobOrder = append(s.jobOrder, j.ID)
	return nil
}

func (s *Store) GetComputeJob(_ context.Context, id string) (*model.ComputeJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.computeJobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneComputeJob(j), nil
}

func (s *Store) ListComputeJobs(_ context.Context, filter model.ComputeJobFilter) ([]*model.ComputeJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.ComputeJob
	for _, id := range s.jobOrder {
		j := s.computeJobs[id]
		if len(filter.Status) > 0 {
			found := false
			for _, st := range filter.Status {
				if j.Status == st {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, cloneComputeJob(j))
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ClaimComputeJob(_ context.Context, id, nodeID string, now time.Time) (*model.ComputeJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.computeJobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if j.Status != model.JobPending {
		return nil, &store.ConflictError{Status: j.Status.String()}
	}
	j.Status = model.JobClaimed
	j.ClaimedBy = nodeID
	claimedAt := now
	j.ClaimedAt = &claimedAt
	return cloneComputeJob(j), nil
}

func (s *Store) HeartbeatComputeJob(_ context.Context, id string, progressPct float64) (*model.ComputeJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.computeJobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	j.ProgressPct = progressPct
	return cloneComputeJob(j), nil
}

func (s *Store) CompleteComputeJob(_ context.Context, id string, results json.RawMessage, now time.Time) (*model.ComputeJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.computeJobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	j.Status = model.JobCompleted
	j.Results = append(json.RawMessage(nil), results...)
	completedAt := now
	j.CompletedAt = &completedAt
	return cloneComputeJob(j), nil
}

func (s *Store) CountComputeJobsByStatus(_ context.Context) (map[model.JobStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[model.JobStatus]int)
	for _, j := range s.computeJobs {
		counts[j.Status]++
	}
	return counts, nil
}

// --- Push preferences ---

func (s *Store) GetPushPreference(_ context.Context, nodeID string) (*model.PushPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prefs[nodeID]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *Store) PutPushPreference(_ context.Context, p *model.PushPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *p
	s.prefs[p.NodeID] = &clone
	return nil
}

// --- Completions ---

func (s *Store) AppendCompletion(_ context.Context, c *model.Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = int64(len(s.completions) + 1)
	clone := *c
	clone.Results = append(json.RawMessage(nil), c.Results...)
	s.completions = append(s.completions, &clone)
	return nil
}

func (s *Store) ListCompletions(_ context.Context, kind model.CompletionKind, itemID string) ([]*model.Completion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Completion
	for _, c := range s.completions {
		if c.Kind != kind || c.ItemID != itemID {
			continue
		}
		clone := *c
		clone.Results = append(json.RawMessage(nil), c.Results...)
		out = append(out, &clone)
	}
	return out, nil
}

// --- Clone helpers ---
// Reads hand out copies so callers cannot mutate store state in place.

func cloneNode(n *model.Node) *model.Node {
	clone := *n
	clone.Capabilities = append([]string(nil), n.Capabilities...)
	return &clone
}

func cloneCommunity(c *model.Community) *model.Community {
	clone := *c
	clone.Cells = append([]string(nil), c.Cells...)
	clone.Members = make(map[string]model.Member, len(c.Members))
	for k, v := range c.Members {
		clone.Members[k] = v
	}
	return &clone
}

func cloneEvent(ev *model.Event) *model.Event {
	clone := *ev
	if ev.Detection != nil {
		d := *ev.Detection
		clone.Detection = &d
	}
	if ev.Alert != nil {
		a := *ev.Alert
		clone.Alert = &a
	}
	return &clone
}

func cloneTask(t *model.Task) *model.Task {
	clone := *t
	clone.Requirements = append(json.RawMessage(nil), t.Requirements...)
	clone.Results = append(json.RawMessage(nil), t.Results...)
	return &clone
}

func cloneComputeNode(n *model.ComputeNode) *model.ComputeNode {
	clone := *n
	clone.Capabilities = append([]string(nil), n.Capabilities...)
	return &clone
}

func cloneComputeJob(j *model.ComputeJob) *model.ComputeJob {
	clone := *j
	clone.Requirements = append([]string(nil), j.Requirements...)
	clone.Payload = append(json.RawMessage(nil), j.Payload...)
	clone.Results = append(json.RawMessage(nil), j.Results...)
	return &clone
}
