package archive

import (
	"context"
	"testing"

	"github.com/arenvale/fieldnet/internal/blob"
)

func TestBlobDestination(t *testing.T) {
	fs, err := blob.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS() error = %v", err)
	}
	dest := NewBlobDestination(fs, "events.jsonl")

	snap := []byte(`{"type":"header","event_count":1}` + "\n")
	if err := dest.Write(context.Background(), snap); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := fs.Get(context.Background(), "events.jsonl")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != string(snap) {
		t.Errorf("stored snapshot = %q", string(got))
	}

	// Each cycle replaces the previous snapshot.
	snap2 := []byte(`{"type":"header","event_count":2}` + "\n")
	if err := dest.Write(context.Background(), snap2); err != nil {
		t.Fatalf("second Write() error = %v", err)
	}
	got, err = fs.Get(context.Background(), "events.jsonl")
	if err != nil {
		t.Fatalf("Get() after update error = %v", err)
	}
	if string(got) != string(snap2) {
		t.Errorf("snapshot after update = %q", string(got))
	}
}
