package archive

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arenvale/fieldnet/internal/store/memory"
)

// captureDestination records calls to Write.
type captureDestination struct {
	writes atomic.Int64
	last   atomic.Value // []byte
}

func (d *captureDestination) Write(_ context.Context, data []byte) error {
	d.writes.Add(1)
	cp := make([]byte, len(data))
	copy(cp, data)
	d.last.Store(cp)
	return nil
}

func TestArchiverRun(t *testing.T) {
	st := memory.New()
	seedEvents(t, st, 2)

	dest := &captureDestination{}
	a := New(st, []Destination{dest}, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.Run(ctx)
	}()

	// The immediate export plus at least one tick.
	time.Sleep(120 * time.Millisecond)
	cancel()
	<-done

	if writes := dest.writes.Load(); writes < 2 {
		t.Fatalf("writes = %d, want at least 2", writes)
	}
	data, ok := dest.last.Load().([]byte)
	if !ok || len(data) == 0 {
		t.Fatal("expected a non-empty snapshot")
	}
}

func TestArchiverRun_MultipleDestinations(t *testing.T) {
	st := memory.New()
	dest1 := &captureDestination{}
	dest2 := &captureDestination{}
	a := New(st, []Destination{dest1, dest2}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.Run(ctx)
	}()

	// Only the immediate export runs before cancel.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if dest1.writes.Load() < 1 {
		t.Error("dest1 expected at least 1 write")
	}
	if dest2.writes.Load() < 1 {
		t.Error("dest2 expected at least 1 write")
	}
}
