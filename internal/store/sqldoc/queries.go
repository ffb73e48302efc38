package sqldoc

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/arenvale/fieldnet/internal/model"
	"github.com/arenvale/fieldnet/internal/store"
)

// dbConn is the interface satisfied by both *sql.DB and *sql.Tx.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// executor pairs a connection with its dialect and rewrites placeholders
// before execution.
type executor struct {
	conn    dbConn
	dialect dialect
}

func (e executor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return e.conn.ExecContext(ctx, e.dialect.rebind(query), args...)
}

func (e executor) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return e.conn.QueryContext(ctx, e.dialect.rebind(query), args...)
}

func (e executor) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return e.conn.QueryRowContext(ctx, e.dialect.rebind(query), args...)
}

// isUniqueViolation detects duplicate-key errors from either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Column lists used for SELECT statements.
const (
	nodeColumns = `id, token, name, capabilities, lat, lon, created_at`

	communityColumns = `id, name, lat, lon, radius_km, h3_res, invite_code, created_by, created_at`

	eventColumns = `id, kind, ts, node_id, lat, lon, cell, h3_res, media_path,
		event_type, confidence, community_id, message, alert_type`

	taskColumns = `id, type, lat, lon, radius_km, requirements, reward, expires_at,
		cell, status, claimed_by, claimed_at, progress_pct, results, completed_at, created_at`

	computeJobColumns = `id, job_type, requirements, priority, payload,
		status, claimed_by, claimed_at, progress_pct, results, completed_at, created_at`

	computeNodeColumns = `id, capabilities, status, registered_at, last_heartbeat`

	pushPrefColumns = `node_id, enabled, vision_events, community_alerts, task_updates, compute_jobs, updated_at`
)

// --- Nodes ---

func queryCreateNode(ctx context.Context, db executor, n *model.Node) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO nodes (id, token, name, capabilities, lat, lon, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID,
		n.Token,
		n.Name,
		jsonStrings(n.Capabilities),
		nullFloatPtr(n.Lat),
		nullFloatPtr(n.Lon),
		n.CreatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrExists
	}
	return err
}

func queryGetNode(ctx context.Context, db executor, id string) (*model.Node, error) {
	row := db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id)
	return scanNode(row)
}

func queryNodeByToken(ctx context.Context, db executor, token string) (*model.Node, error) {
	if token == "" {
		return nil, store.ErrNotFound
	}
	row := db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE token = ?`, token)
	return scanNode(row)
}

func queryListNodes(ctx context.Context, db executor) ([]*model.Node, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []*model.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// --- Communities ---

func queryCreateCommunity(ctx context.Context, db executor, c *model.Community) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO communities (id, name, lat, lon, radius_km, h3_res, invite_code, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Lat, c.Lon, c.RadiusKm, c.H3Res, c.InviteCode, c.CreatedBy, c.CreatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrExists
	}
	if err != nil {
		return err
	}

	for _, cell := range c.Cells {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO community_cells (community_id, cell) VALUES (?, ?)`,
			c.ID, cell); err != nil {
			return err
		}
	}

	for nodeID, m := range c.Members {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO community_members (community_id, node_id, role, joined_at)
			VALUES (?, ?, ?, ?)`,
			c.ID, nodeID, string(m.Role), m.JoinedAt); err != nil {
			return err
		}
	}

	return nil
}

func queryGetCommunity(ctx context.Context, db executor, id string) (*model.Community, error) {
	row := db.QueryRowContext(ctx, `SELECT `+communityColumns+` FROM communities WHERE id = ?`, id)
	return scanCommunityFull(ctx, db, row)
}

func queryCommunityByInvite(ctx context.Context, db executor, code string) (*model.Community, error) {
	if code == "" {
		return nil, store.ErrNotFound
	}
	row := db.QueryRowContext(ctx, `SELECT `+communityColumns+` FROM communities WHERE invite_code = ?`, code)
	return scanCommunityFull(ctx, db, row)
}

func queryCommunitiesForNode(ctx context.Context, db executor, nodeID string) ([]*model.Community, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+prefixColumns("c", communityColumns)+`
		FROM communities c
		JOIN community_members m ON m.community_id = c.id
		WHERE m.node_id = ?`,
		nodeID,
	)
	if err != nil {
		return nil, err
	}
	return scanCommunityRowsFull(ctx, db, rows)
}

func queryCommunitiesCovering(ctx context.Context, db executor, cell string) ([]*model.Community, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+prefixColumns("c", communityColumns)+`
		FROM communities c
		JOIN community_cells cc ON cc.community_id = c.id
		WHERE cc.cell = ?`,
		cell,
	)
	if err != nil {
		return nil, err
	}
	return scanCommunityRowsFull(ctx, db, rows)
}

func queryAddMember(ctx context.Context, db executor, communityID, nodeID string, m model.Member) error {
	var exists int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM communities WHERE id = ?`, communityID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO community_members (community_id, node_id, role, joined_at)
		VALUES (?, ?, ?, ?)`,
		communityID, nodeID, string(m.Role), m.JoinedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrExists
	}
	return err
}

func queryRemoveMember(ctx context.Context, db executor, communityID, nodeID string) error {
	res, err := db.ExecContext(ctx, `
		DELETE FROM community_members
		WHERE community_id = ? AND node_id = ?`,
		communityID, nodeID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func queryCommunityMembers(ctx context.Context, db executor, communityID string) (map[string]model.Member, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT node_id, role, joined_at
		FROM community_members
		WHERE community_id = ?`,
		communityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make(map[string]model.Member)
	for rows.Next() {
		var (
			nodeID string
			role   string
			joined time.Time
		)
		if err := rows.Scan(&nodeID, &role, &joined); err != nil {
			return nil, err
		}
		members[nodeID] = model.Member{Role: model.Role(role), JoinedAt: joined}
	}
	return members, rows.Err()
}

func queryCommunityCells(ctx context.Context, db executor, communityID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT cell FROM community_cells WHERE community_id = ?`,
		communityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cells []string
	for rows.Next() {
		var cell string
		if err := rows.Scan(&cell); err != nil {
			return nil, err
		}
		cells = append(cells, cell)
	}
	return cells, rows.Err()
}

// --- Events ---

func queryAppendEvent(ctx context.Context, db executor, ev *model.Event) error {
	var (
		eventType   sql.NullString
		confidence  sql.NullFloat64
		communityID sql.NullString
		message     sql.NullString
		alertType   sql.NullString
	)
	if ev.Detection != nil {
		eventType = sql.NullString{String: string(ev.Detection.EventType), Valid: true}
		confidence = sql.NullFloat64{Float64: ev.Detection.Confidence, Valid: true}
	}
	if ev.Alert != nil {
		communityID = sql.NullString{String: ev.Alert.CommunityID, Valid: true}
		message = sql.NullString{String: ev.Alert.Message, Valid: true}
		alertType = sql.NullString{String: ev.Alert.AlertType, Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO events (
			id, kind, ts, node_id, lat, lon, cell, h3_res, media_path,
			event_type, confidence, community_id, message, alert_type
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		string(ev.Kind),
		ev.TS,
		ev.NodeID,
		ev.Lat,
		ev.Lon,
		ev.Cell,
		ev.H3Res,
		ev.MediaPath,
		eventType,
		confidence,
		communityID,
		message,
		alertType,
	)
	if isUniqueViolation(err) {
		return store.ErrExists
	}
	return err
}

func queryListEvents(ctx context.Context, db executor, filter model.EventFilter) ([]*model.Event, error) {
	var (
		whereClauses []string
		args         []any
	)

	if !filter.Since.IsZero() {
		whereClauses = append(whereClauses, "ts >= ?")
		args = append(args, filter.Since)
	}

	if len(filter.Kinds) > 0 {
		placeholders := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			placeholders[i] = "?"
			args = append(args, string(k))
		}
		whereClauses = append(whereClauses, "kind IN ("+strings.Join(placeholders, ", ")+")")
	}

	if filter.CommunityID != "" {
		whereClauses = append(whereClauses, "community_id = ?")
		args = append(args, filter.CommunityID)
	}

	if filter.NodeID != "" {
		whereClauses = append(whereClauses, "node_id = ?")
		args = append(args, filter.NodeID)
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY ts DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan events: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// --- Tasks ---

func queryCreateTask(ctx context.Context, db executor, t *model.Task) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, type, lat, lon, radius_km, requirements, reward, expires_at,
			cell, status, claimed_by, claimed_at, progress_pct, results, completed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.Type,
		t.Lat,
		t.Lon,
		t.RadiusKm,
		jsonBytes(t.Requirements),
		t.Reward,
		nullTimePtr(t.ExpiresAt),
		t.Cell,
		string(t.Status),
		t.ClaimedBy,
		nullTimePtr(t.ClaimedAt),
		t.ProgressPct,
		jsonBytes(t.Results),
		nullTimePtr(t.CompletedAt),
		t.CreatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrExists
	}
	return err
}

func queryGetTask(ctx context.Context, db executor, id string) (*model.Task, error) {
	row := db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

func queryListTasks(ctx context.Context, db executor, filter model.TaskFilter) ([]*model.Task, error) {
	var (
		whereClauses []string
		args         []any
	)

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, st := range filter.Status {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		whereClauses = append(whereClauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY created_at"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tasks: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// queryClaimTask flips an open task to claimed in a single guarded UPDATE.
// Losing racers see zero rows and get the current status back in the error.
func queryClaimTask(ctx context.Context, db executor, id, nodeID string, now time.Time) (*model.Task, error) {
	row := db.QueryRowContext(ctx, `
		UPDATE tasks
		SET status = 'claimed', claimed_by = ?, claimed_at = ?
		WHERE id = ? AND status = 'open'
		RETURNING `+taskColumns,
		nodeID, now, id,
	)
	t, err := scanTask(row)
	if errors.Is(err, store.ErrNotFound) {
		return nil, taskConflict(ctx, db, id)
	}
	return t, err
}

func queryHeartbeatTask(ctx context.Context, db executor, id string, progressPct float64) (*model.Task, error) {
	row := db.QueryRowContext(ctx, `
		UPDATE tasks
		SET progress_pct = ?
		WHERE id = ?
		RETURNING `+taskColumns,
		progressPct, id,
	)
	return scanTask(row)
}

func queryCompleteTask(ctx context.Context, db executor, id string, results json.RawMessage, now time.Time) (*model.Task, error) {
	row := db.QueryRowContext(ctx, `
		UPDATE tasks
		SET status = 'completed', results = ?, completed_at = ?
		WHERE id = ?
		RETURNING `+taskColumns,
		jsonBytes(results), now, id,
	)
	return scanTask(row)
}

func queryMarkTaskExpired(ctx context.Context, db executor, id string) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE tasks SET status = 'expired' WHERE id = ? AND status = 'open'`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	var exists int
	err = db.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, store.ErrNotFound
	}
	return false, err
}

func queryCountTasksByStatus(ctx context.Context, db executor) (map[model.TaskStatus]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.TaskStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[model.TaskStatus(status)] = n
	}
	return counts, rows.Err()
}

// taskConflict resolves a failed guarded claim into ErrNotFound or a
// ConflictError carrying the task's current status.
func taskConflict(ctx context.Context, db executor, id string) error {
	var status string
	err := db.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return &store.ConflictError{Status: status}
}

// --- Compute nodes ---

func queryCreateComputeNode(ctx context.Context, db executor, n *model.ComputeNode) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO compute_nodes (id, capabilities, status, registered_at, last_heartbeat)
		VALUES (?, ?, ?, ?, ?)`,
		n.ID,
		jsonStrings(n.Capabilities),
		n.Status,
		n.RegisteredAt,
		n.LastHeartbeat,
	)
	if isUniqueViolation(err) {
		return store.ErrExists
	}
	return err
}

func queryGetComputeNode(ctx context.Context, db executor, id string) (*model.ComputeNode, error) {
	row := db.QueryRowContext(ctx, `SELECT `+computeNodeColumns+` FROM compute_nodes WHERE id = ?`, id)
	return scanComputeNode(row)
}

func queryListComputeNodes(ctx context.Context, db executor) ([]*model.ComputeNode, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+computeNodeColumns+` FROM compute_nodes ORDER BY registered_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []*model.ComputeNode
	for rows.Next() {
		n, err := scanComputeNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func queryTouchComputeNode(ctx context.Context, db executor, id string, now time.Time) error {
	res, err := db.ExecContext(ctx, `
		UPDATE compute_nodes SET last_heartbeat = ? WHERE id = ?`, now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- Compute jobs ---

func queryCreateComputeJob(ctx context.Context, db executor, j *model.ComputeJob) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO compute_jobs (
			id, job_type, requirements, priority, payload,
			status, claimed_by, claimed_at, progress_pct, results, completed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID,
		j.Type,
		jsonStrings(j.Requirements),
		j.Priority,
		jsonBytes(j.Payload),
		string(j.Status),
		j.ClaimedBy,
		nullTimePtr(j.ClaimedAt),
		j.ProgressPct,
		jsonBytes(j.Results),
		nullTimePtr(j.CompletedAt),
		j.CreatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrExists
	}
	return err
}

func queryGetComputeJob(ctx context.Context, db executor, id string) (*model.ComputeJob, error) {
	row := db.QueryRowContext(ctx, `SELECT `+computeJobColumns+` FROM compute_jobs WHERE id = ?`, id)
	return scanComputeJob(row)
}

func queryListComputeJobs(ctx context.Context, db executor, filter model.ComputeJobFilter) ([]*model.ComputeJob, error) {
	var (
		whereClauses []string
		args         []any
	)

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, st := range filter.Status {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		whereClauses = append(whereClauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `SELECT ` + computeJobColumns + ` FROM compute_jobs`
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY created_at"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list compute jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.ComputeJob
	for rows.Next() {
		j, err := scanComputeJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan compute jobs: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func queryClaimComputeJob(ctx context.Context, db executor, id, nodeID string, now time.Time) (*model.ComputeJob, error) {
	row := db.QueryRowContext(ctx, `
		UPDATE compute_jobs
		SET status = 'claimed', claimed_by = ?, claimed_at = ?
		WHERE id = ? AND status = 'pending'
		RETURNING `+computeJobColumns,
		nodeID, now, id,
	)
	j, err := scanComputeJob(row)
	if errors.Is(err, store.ErrNotFound) {
		return nil, computeJobConflict(ctx, db, id)
	}
	return j, err
}

func queryHeartbeatComputeJob(ctx context.Context, db executor, id string, progressPct float64) (*model.ComputeJob, error) {
	row := db.QueryRowContext(ctx, `
		UPDATE compute_jobs
		SET progress_pct = ?
		WHERE id = ?
		RETURNING `+computeJobColumns,
		progressPct, id,
	)
	return scanComputeJob(row)
}

func queryCompleteComputeJob(ctx context.Context, db executor, id string, results json.RawMessage, now time.Time) (*model.ComputeJob, error) {
	row := db.QueryRowContext(ctx, `
		UPDATE compute_jobs
		SET status = 'completed', results = ?, completed_at = ?
		WHERE id = ?
		RETURNING `+computeJobColumns,
		jsonBytes(results), now, id,
	)
	return scanComputeJob(row)
}

func queryCountComputeJobsByStatus(ctx context.Context, db executor) (map[model.JobStatus]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM compute_jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.JobStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[model.JobStatus(status)] = n
	}
	return counts, rows.Err()
}

func computeJobConflict(ctx context.Context, db executor, id string) error {
	var status string
	err := db.QueryRowContext(ctx, `SELECT status FROM compute_jobs WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return &store.ConflictError{Status: status}
}

// --- Push preferences ---

func queryGetPushPreference(ctx context.Context, db executor, nodeID string) (*model.PushPreference, error) {
	row := db.QueryRowContext(ctx, `SELECT `+pushPrefColumns+` FROM push_prefs WHERE node_id = ?`, nodeID)
	return scanPushPreference(row)
}

func queryPutPushPreference(ctx context.Context, db executor, p *model.PushPreference) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO push_prefs (node_id, enabled, vision_events, community_alerts, task_updates, compute_jobs, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (node_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			vision_events = EXCLUDED.vision_events,
			community_alerts = EXCLUDED.community_alerts,
			task_updates = EXCLUDED.task_updates,
			compute_jobs = EXCLUDED.compute_jobs,
			updated_at = EXCLUDED.updated_at`,
		p.NodeID, p.Enabled, p.VisionEvents, p.CommunityAlerts, p.TaskUpdates, p.ComputeJobs, p.UpdatedAt,
	)
	return err
}

// --- Completions ---

func queryAppendCompletion(ctx context.Context, db executor, c *model.Completion) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO completions (kind, item_id, node_id, results, recorded_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`,
		string(c.Kind), c.ItemID, c.NodeID, jsonBytes(c.Results), c.RecordedAt,
	).Scan(&c.ID)
}

func queryListCompletions(ctx context.Context, db executor, kind model.CompletionKind, itemID string) ([]*model.Completion, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, kind, item_id, node_id, results, recorded_at
		FROM completions
		WHERE kind = ? AND item_id = ?
		ORDER BY id`,
		string(kind), itemID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var completions []*model.Completion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		completions = append(completions, c)
	}
	return completions, rows.Err()
}

// prefixColumns prepends an alias to each column in a comma-separated list.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
