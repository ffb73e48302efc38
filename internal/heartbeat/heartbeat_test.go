package heartbeat

import (
	"context"
	"errors"
	"testing"
	"time"
)

func floatp(f float64) *float64 { return &f }
func intp(i int64) *int64       { return &i }

func TestMemoryRecordAndGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()

	if _, err := m.Get(ctx, "nd-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before first beat, got %v", err)
	}

	err := m.Record(ctx, "nd-1", Update{
		Battery: floatp(0.87),
		WiFi:    floatp(-52),
		Lat:     floatp(37.77),
		Lon:     floatp(-122.41),
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st, err := m.Get(ctx, "nd-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.NodeID != "nd-1" || !st.LastHeartbeat.Equal(now) {
		t.Fatalf("got node=%q last=%v", st.NodeID, st.LastHeartbeat)
	}
	if st.Battery == nil || *st.Battery != 0.87 {
		t.Fatalf("got battery=%v", st.Battery)
	}
	if st.Lat == nil || *st.Lat != 37.77 {
		t.Fatalf("got lat=%v", st.Lat)
	}
}

func TestMemoryCountersAccumulate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()

	for i := 0; i < 3; i++ {
		if err := m.Record(ctx, "nd-1", Update{AddFrames: 2, AddEvents: 1}, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	st, err := m.Get(ctx, "nd-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.FramesSent != 6 || st.EventsDetected != 3 {
		t.Fatalf("got frames=%d events=%d", st.FramesSent, st.EventsDetected)
	}

	// An absolute count resets the total, then increments continue on top.
	if err := m.Record(ctx, "nd-1", Update{FramesSent: intp(100), AddFrames: 1}, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st, _ = m.Get(ctx, "nd-1")
	if st.FramesSent != 101 {
		t.Fatalf("got frames=%d, want 101", st.FramesSent)
	}
	if st.EventsDetected != 3 {
		t.Fatalf("got events=%d, want 3 untouched", st.EventsDetected)
	}
}

func TestMemoryTouchPreservesTelemetry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	t0 := time.Now()

	if err := m.Record(ctx, "nd-1", Update{Battery: floatp(0.5), AddFrames: 4}, t0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t1 := t0.Add(time.Minute)
	if err := m.Touch(ctx, "nd-1", t1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st, err := m.Get(ctx, "nd-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.LastHeartbeat.Equal(t1) {
		t.Fatalf("got last=%v, want %v", st.LastHeartbeat, t1)
	}
	if st.Battery == nil || *st.Battery != 0.5 || st.FramesSent != 4 {
		t.Fatalf("touch should not change telemetry: %+v", st)
	}
}

func TestMemoryOnlineWindow(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()

	if err := m.Record(ctx, "nd-fresh", Update{}, now.Add(-2*time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Record(ctx, "nd-edge", Update{}, now.Add(-10*time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Record(ctx, "nd-stale", Update{}, now.Add(-25*time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	online, err := m.Online(ctx, 10*time.Minute, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(online) != 2 {
		t.Fatalf("expected 2 online, got %d", len(online))
	}
	if online[0].NodeID != "nd-edge" || online[1].NodeID != "nd-fresh" {
		t.Fatalf("got order %q, %q", online[0].NodeID, online[1].NodeID)
	}

	all, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 in snapshot, got %d", len(all))
	}
}

func TestMemoryReadIsolation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()

	if err := m.Record(ctx, "nd-1", Update{Battery: floatp(0.9)}, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st, _ := m.Get(ctx, "nd-1")
	*st.Battery = 0.1
	st.FramesSent = 999

	again, _ := m.Get(ctx, "nd-1")
	if *again.Battery != 0.9 || again.FramesSent != 0 {
		t.Fatalf("stored snapshot was mutated through a returned copy: %+v", again)
	}
}
