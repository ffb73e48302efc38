// Package archive periodically snapshots the events log to one or more
// destinations. A relay's event log is the record a community may need
// weeks later; the in-memory store loses it on restart and even the SQL
// store benefits from an off-box copy.
//
// Each cycle writes a complete JSONL snapshot, so destinations hold a
// consistent file rather than an append stream with gaps.
package archive

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/arenvale/fieldnet/internal/store"
)

// Destination receives a full JSONL snapshot each cycle.
type Destination interface {
	Write(ctx context.Context, data []byte) error
}

// Archiver exports the events log on a fixed interval.
type Archiver struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
}

func New(st store.Store, destinations []Destination, interval time.Duration) *Archiver {
	return &Archiver{
		store:        st,
		destinations: destinations,
		interval:     interval,
	}
}

// Run exports once immediately, then on every tick until the context is
// canceled. Destination failures are logged and retried on the next cycle.
func (a *Archiver) Run(ctx context.Context) error {
	a.exportOnce(ctx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.exportOnce(ctx)
		}
	}
}

func (a *Archiver) exportOnce(ctx context.Context) {
	var buf bytes.Buffer
	count, err := WriteJSONL(ctx, a.store, &buf)
	if err != nil {
		slog.Error("archive export failed", "error", err)
		return
	}
	data := buf.Bytes()

	for _, dest := range a.destinations {
		if err := dest.Write(ctx, data); err != nil {
			slog.Error("archive write failed", "destination", destName(dest), "error", err)
		}
	}

	slog.Info("archive cycle complete",
		"events", count, "bytes", len(data), "destinations", len(a.destinations))
}

func destName(d Destination) string {
	if n, ok := d.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "unknown"
}
