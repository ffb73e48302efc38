// Package heartbeat tracks node liveness and telemetry snapshots.
//
// Heartbeat state is deliberately separate from the durable store: it is
// overwritten on every beat, read mostly for "who is online" views, and
// losing it costs nothing but a few minutes of staleness. The Memory
// backend is the default; Redis lets several relay processes share one
// liveness view.
package heartbeat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/arenvale/fieldnet/internal/model"
)

// ErrNotFound is returned by Get when a node has never sent a heartbeat.
var ErrNotFound = errors.New("heartbeat: not found")

// Update carries one heartbeat's worth of telemetry. Pointer fields replace
// the stored value when set; AddFrames and AddEvents increment counters so
// the ingest path can bump them without knowing the running totals.
type Update struct {
	Battery        *float64
	WiFi           *float64
	FramesSent     *int64
	EventsDetected *int64
	AddFrames      int64
	AddEvents      int64
	Lat            *float64
	Lon            *float64
}

// Store holds the last heartbeat per node.
type Store interface {
	// Record applies an update and stamps the node's last heartbeat.
	Record(ctx context.Context, nodeID string, u Update, now time.Time) error
	// Touch stamps the last heartbeat without changing telemetry.
	Touch(ctx context.Context, nodeID string, now time.Time) error
	// Get returns the node's snapshot, or ErrNotFound.
	Get(ctx context.Context, nodeID string) (*model.HeartbeatStatus, error)
	// Snapshot returns every known node, sorted by node ID.
	Snapshot(ctx context.Context) ([]*model.HeartbeatStatus, error)
	// Online returns nodes whose last heartbeat is within window of now.
	Online(ctx context.Context, window time.Duration, now time.Time) ([]*model.HeartbeatStatus, error)
	Close() error
}

// Memory is the in-process Store. State does not survive a restart; nodes
// re-enter the online set on their next beat.
type Memory struct {
	mu    sync.RWMutex
	nodes map[string]*model.HeartbeatStatus
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{nodes: make(map[string]*model.HeartbeatStatus)}
}

func (m *Memory) Record(ctx context.Context, nodeID string, u Update, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.nodes[nodeID]
	if st == nil {
		st = &model.HeartbeatStatus{NodeID: nodeID}
		m.nodes[nodeID] = st
	}
	apply(st, u, now)
	return nil
}

func (m *Memory) Touch(ctx context.Context, nodeID string, now time.Time) error {
	return m.Record(ctx, nodeID, Update{}, now)
}

func (m *Memory) Get(ctx context.Context, nodeID string) (*model.HeartbeatStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.nodes[nodeID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneStatus(st), nil
}

func (m *Memory) Snapshot(ctx context.Context) ([]*model.HeartbeatStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.HeartbeatStatus, 0, len(m.nodes))
	for _, st := range m.nodes {
		out = append(out, cloneStatus(st))
	}
	sortByNode(out)
	return out, nil
}

func (m *Memory) Online(ctx context.Context, window time.Duration, now time.Time) ([]*model.HeartbeatStatus, error) {
	cutoff := now.Add(-window)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.HeartbeatStatus
	for _, st := range m.nodes {
		if st.LastHeartbeat.Before(cutoff) {
			continue
		}
		out = append(out, cloneStatus(st))
	}
	sortByNode(out)
	return out, nil
}

func (m *Memory) Close() error { return nil }

// apply merges one update into a snapshot. Absolute fields win over the
// stored value; increments accumulate.
func apply(st *model.HeartbeatStatus, u Update, now time.Time) {
	st.LastHeartbeat = now
	if u.Battery != nil {
		st.Battery = copyFloat(u.Battery)
	}
	if u.WiFi != nil {
		st.WiFi = copyFloat(u.WiFi)
	}
	if u.FramesSent != nil {
		st.FramesSent = *u.FramesSent
	}
	if u.EventsDetected != nil {
		st.EventsDetected = *u.EventsDetected
	}
	st.FramesSent += u.AddFrames
	st.EventsDetected += u.AddEvents
	if u.Lat != nil {
		st.Lat = copyFloat(u.Lat)
	}
	if u.Lon != nil {
		st.Lon = copyFloat(u.Lon)
	}
}

func cloneStatus(st *model.HeartbeatStatus) *model.HeartbeatStatus {
	out := *st
	out.Battery = copyFloat(st.Battery)
	out.WiFi = copyFloat(st.WiFi)
	out.Lat = copyFloat(st.Lat)
	out.Lon = copyFloat(st.Lon)
	return &out
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func sortByNode(out []*model.HeartbeatStatus) {
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
}
