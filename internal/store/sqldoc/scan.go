package sqldoc

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/arenvale/fieldnet/internal/model"
	"github.com/arenvale/fieldnet/internal/store"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanNode scans a single row into a model.Node.
// The row must contain columns in the order defined by nodeColumns.
func scanNode(row scannable) (*model.Node, error) {
	var n model.Node
	var (
		caps []byte
		lat  sql.NullFloat64
		lon  sql.NullFloat64
	)

	err := row.Scan(&n.ID, &n.Token, &n.Name, &caps, &lat, &lon, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	n.Capabilities, err = decodeStrings(caps)
	if err != nil {
		return nil, err
	}
	n.Lat = floatPtr(lat)
	n.Lon = floatPtr(lon)

	return &n, nil
}

// scanCommunityRow scans the base community columns without child rows.
func scanCommunityRow(row scannable) (*model.Community, error) {
	var c model.Community
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Lat,
		&c.Lon,
		&c.RadiusKm,
		&c.H3Res,
		&c.InviteCode,
		&c.CreatedBy,
		&c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// scanCommunityFull scans a community row and loads its cells and members.
func scanCommunityFull(ctx context.Context, db executor, row scannable) (*model.Community, error) {
	c, err := scanCommunityRow(row)
	if err != nil {
		return nil, err
	}
	return hydrateCommunity(ctx, db, c)
}

// scanCommunityRowsFull drains all base rows before loading child rows, so a
// single-connection pool (the sqlite case) never nests queries inside an open
// rows iterator.
func scanCommunityRowsFull(ctx context.Context, db executor, rows *sql.Rows) ([]*model.Community, error) {
	defer rows.Close()

	var communities []*model.Community
	for rows.Next() {
		c, err := scanCommunityRow(rows)
		if err != nil {
			return nil, err
		}
		communities = append(communities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for _, c := range communities {
		if _, err := hydrateCommunity(ctx, db, c); err != nil {
			return nil, err
		}
	}
	return communities, nil
}

func hydrateCommunity(ctx context.Context, db executor, c *model.Community) (*model.Community, error) {
	cells, err := queryCommunityCells(ctx, db, c.ID)
	if err != nil {
		return nil, err
	}
	c.Cells = cells

	members, err := queryCommunityMembers(ctx, db, c.ID)
	if err != nil {
		return nil, err
	}
	c.Members = members

	return c, nil
}

// scanEvent scans a single row into a model.Event, rebuilding the detection
// and alert sub-records from their flattened columns.
func scanEvent(row scannable) (*model.Event, error) {
	var ev model.Event
	var (
		kind        string
		eventType   sql.NullString
		confidence  sql.NullFloat64
		communityID sql.NullString
		message     sql.NullString
		alertType   sql.NullString
	)

	err := row.Scan(
		&ev.ID,
		&kind,
		&ev.TS,
		&ev.NodeID,
		&ev.Lat,
		&ev.Lon,
		&ev.Cell,
		&ev.H3Res,
		&ev.MediaPath,
		&eventType,
		&confidence,
		&communityID,
		&message,
		&alertType,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	ev.Kind = model.EventKind(kind)
	if eventType.Valid {
		ev.Detection = &model.Detection{
			EventType:  model.EventType(eventType.String),
			Confidence: confidence.Float64,
		}
	}
	if communityID.Valid {
		ev.Alert = &model.Alert{
			CommunityID: communityID.String,
			Message:     message.String,
			AlertType:   alertType.String,
		}
	}

	return &ev, nil
}

// scanTask scans a single row into a model.Task.
func scanTask(row scannable) (*model.Task, error) {
	var t model.Task
	var (
		requirements []byte
		results      []byte
		status       string
		expiresAt    sql.NullTime
		claimedAt    sql.NullTime
		completedAt  sql.NullTime
	)

	err := row.Scan(
		&t.ID,
		&t.Type,
		&t.Lat,
		&t.Lon,
		&t.RadiusKm,
		&requirements,
		&t.Reward,
		&expiresAt,
		&t.Cell,
		&status,
		&t.ClaimedBy,
		&claimedAt,
		&t.ProgressPct,
		&results,
		&completedAt,
		&t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	t.Status = model.TaskStatus(status)
	if len(requirements) > 0 {
		t.Requirements = json.RawMessage(requirements)
	}
	if len(results) > 0 {
		t.Results = json.RawMessage(results)
	}
	t.ExpiresAt = timePtr(expiresAt)
	t.ClaimedAt = timePtr(claimedAt)
	t.CompletedAt = timePtr(completedAt)

	return &t, nil
}

// scanComputeNode scans a single row into a model.ComputeNode.
func scanComputeNode(row scannable) (*model.ComputeNode, error) {
	var n model.ComputeNode
	var caps []byte

	err := row.Scan(&n.ID, &caps, &n.Status, &n.RegisteredAt, &n.LastHeartbeat)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	n.Capabilities, err = decodeStrings(caps)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// scanComputeJob scans a single row into a model.ComputeJob.
func scanComputeJob(row scannable) (*model.ComputeJob, error) {
	var j model.ComputeJob
	var (
		requirements []byte
		payload      []byte
		results      []byte
		status       string
		claimedAt    sql.NullTime
		completedAt  sql.NullTime
	)

	err := row.Scan(
		&j.ID,
		&j.Type,
		&requirements,
		&j.Priority,
		&payload,
		&status,
		&j.ClaimedBy,
		&claimedAt,
		&j.ProgressPct,
		&results,
		&completedAt,
		&j.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	j.Status = model.JobStatus(status)
	j.Requirements, err = decodeStrings(requirements)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		j.Payload = json.RawMessage(payload)
	}
	if len(results) > 0 {
		j.Results = json.RawMessage(results)
	}
	j.ClaimedAt = timePtr(claimedAt)
	j.CompletedAt = timePtr(completedAt)

	return &j, nil
}

// scanPushPreference scans a single row into a model.PushPreference.
func scanPushPreference(row scannable) (*model.PushPreference, error) {
	var p model.PushPreference
	err := row.Scan(
		&p.NodeID,
		&p.Enabled,
		&p.VisionEvents,
		&p.CommunityAlerts,
		&p.TaskUpdates,
		&p.ComputeJobs,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// scanCompletion scans a single row into a model.Completion.
func scanCompletion(row scannable) (*model.Completion, error) {
	var c model.Completion
	var (
		kind    string
		results []byte
	)
	err := row.Scan(&c.ID, &kind, &c.ItemID, &c.NodeID, &results, &c.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Kind = model.CompletionKind(kind)
	if len(results) > 0 {
		c.Results = json.RawMessage(results)
	}
	return &c, nil
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// timePtr converts a sql.NullTime back to a *time.Time.
func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// nullFloatPtr converts a *float64 to a sql.NullFloat64.
func nullFloatPtr(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// floatPtr converts a sql.NullFloat64 back to a *float64.
func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

// jsonBytes converts json.RawMessage to a []byte suitable for JSON columns.
func jsonBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}

// jsonStrings encodes a string slice as JSON for storage; empty slices store
// as NULL.
func jsonStrings(ss []string) []byte {
	if len(ss) == 0 {
		return nil
	}
	b, _ := json.Marshal(ss)
	return b
}

// decodeStrings decodes a JSON-encoded string slice column; NULL decodes to nil.
func decodeStrings(b []byte) ([]string, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var ss []string
	if err := json.Unmarshal(b, &ss); err != nil {
		return nil, err
	}
	return ss, nil
}
