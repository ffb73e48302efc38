package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/arenvale/fieldnet/internal/model"
	"github.com/arenvale/fieldnet/internal/store"
)

// header is the first JSONL line of a snapshot.
type header struct {
	Version    string    `json:"version"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	EventCount int       `json:"event_count"`
}

// record wraps one event line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// WriteJSONL writes the complete events log as JSONL to w, oldest first:
// one header line, then one line per event. It returns the event count.
func WriteJSONL(ctx context.Context, st store.Store, w io.Writer) (int, error) {
	events, err := st.ListEvents(ctx, model.EventFilter{})
	if err != nil {
		return 0, fmt.Errorf("listing events: %w", err)
	}

	// The store returns newest first; the archive reads top to bottom.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:    "1",
		Type:       "header",
		Timestamp:  time.Now().UTC(),
		EventCount: len(events),
	}); err != nil {
		return 0, fmt.Errorf("encoding header: %w", err)
	}

	for _, ev := range events {
		if err := enc.Encode(record{Type: "event", Data: ev}); err != nil {
			return 0, fmt.Errorf("encoding event %s: %w", ev.ID, err)
		}
	}

	return len(events), nil
}
