package model

import (
	"encoding/json"
	"time"
)

// CompletionKind distinguishes task results from compute job results in the
// shared results log.
type CompletionKind string

const (
	CompletionTask    CompletionKind = "task"
	CompletionCompute CompletionKind = "compute"
)

// Completion is one entry in the append-only results log. Completing the
// same item again appends a new entry rather than rewriting the old one.
type Completion struct {
	ID         int64           `json:"id"`
	Kind       CompletionKind  `json:"kind"`
	ItemID     string          `json:"item_id"`
	NodeID     string          `json:"node_id,omitempty"`
	Results    json.RawMessage `json:"results,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}
