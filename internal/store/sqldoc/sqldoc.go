// Package sqldoc implements the store.Store interface over database/sql.
// It speaks two dialects: PostgreSQL via lib/pq for shared deployments and
// SQLite via modernc for single-box relays. Queries are written once with ?
// placeholders and rebound to $N for postgres at execution time.
package sqldoc

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/arenvale/fieldnet/internal/model"
	"github.com/arenvale/fieldnet/internal/store"
)

//go:embed migrations
var migrationsFS embed.FS

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

// rebind rewrites ? placeholders to $1..$N for postgres. SQLite takes the
// query unchanged. None of our statements contain a literal question mark.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// SQLStore implements store.Store backed by PostgreSQL or SQLite.
type SQLStore struct {
	db   *sql.DB
	exec executor
}

// Compile-time check that SQLStore implements store.Store.
var _ store.Store = (*SQLStore)(nil)

// Open inspects the database URL scheme, opens the matching driver, and runs
// any pending migrations. postgres:// URLs go to lib/pq; sqlite:PATH opens
// (and creates) a local database file.
func Open(databaseURL string) (*SQLStore, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return openPostgres(databaseURL)
	case strings.HasPrefix(databaseURL, "sqlite:"):
		return openSQLite(strings.TrimPrefix(databaseURL, "sqlite:"))
	default:
		return nil, fmt.Errorf("unsupported database url scheme (want postgres:// or sqlite:)")
	}
}

func openPostgres(databaseURL string) (*SQLStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migratePostgres(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLStore{db: db, exec: executor{conn: db, dialect: dialectPostgres}}, nil
}

func openSQLite(path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer keeps the guarded status transitions serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrateSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLStore{db: db, exec: executor{conn: db, dialect: dialectSQLite}}, nil
}

func migratePostgres(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

func migrateSQLite(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) CreateNode(ctx context.Context, node *model.Node) error {
	return queryCreateNode(ctx, s.exec, node)
}

func (s *SQLStore) GetNode(ctx context.Context, id string) (*model.Node, error) {
	return queryGetNode(ctx, s.exec, id)
}

func (s *SQLStore) NodeByToken(ctx context.Context, token string) (*model.Node, error) {
	return queryNodeByToken(ctx, s.exec, token)
}

func (s *SQLStore) ListNodes(ctx context.Context) ([]*model.Node, error) {
	return queryListNodes(ctx, s.exec)
}

// CreateCommunity writes the community row plus its cell and member child
// rows in one transaction.
func (s *SQLStore) CreateCommunity(ctx context.Context, c *model.Community) error {
	return s.inTransaction(ctx, func(tx executor) error {
		return queryCreateCommunity(ctx, tx, c)
	})
}

func (s *SQLStore) GetCommunity(ctx context.Context, id string) (*model.Community, error) {
	return queryGetCommunity(ctx, s.exec, id)
}

func (s *SQLStore) CommunityByInvite(ctx context.Context, code string) (*model.Community, error) {
	return queryCommunityByInvite(ctx, s.exec, code)
}

func (s *SQLStore) CommunitiesForNode(ctx context.Context, nodeID string) ([]*model.Community, error) {
	return queryCommunitiesForNode(ctx, s.exec, nodeID)
}

func (s *SQLStore) CommunitiesCovering(ctx context.Context, cell string) ([]*model.Community, error) {
	return queryCommunitiesCovering(ctx, s.exec, cell)
}

func (s *SQLStore) AddMember(ctx context.Context, communityID, nodeID string, m model.Member) error {
	return queryAddMember(ctx, s.exec, communityID, nodeID, m)
}

func (s *SQLStore) RemoveMember(ctx context.Context, communityID, nodeID string) error {
	return queryRemoveMember(ctx, s.exec, communityID, nodeID)
}

func (s *SQLStore) AppendEvent(ctx context.Context, ev *model.Event) error {
	return queryAppendEvent(ctx, s.exec, ev)
}

func (s *SQLStore) ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	return queryListEvents(ctx, s.exec, filter)
}

func (s *SQLStore) CreateTask(ctx context.Context, t *model.Task) error {
	return queryCreateTask(ctx, s.exec, t)
}

func (s *SQLStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return queryGetTask(ctx, s.exec, id)
}

func (s *SQLStore) ListTasks(ctx context.Context, filter model.TaskFilter) ([]*model.Task, error) {
	return queryListTasks(ctx, s.exec, filter)
}

func (s *SQLStore) ClaimTask(ctx context.Context, id, nodeID string, now time.Time) (*model.Task, error) {
	return queryClaimTask(ctx, s.exec, id, nodeID, now)
}

func (s *SQLStore) HeartbeatTask(ctx context.Context, id string, progressPct float64) (*model.Task, error) {
	return queryHeartbeatTask(ctx, s.exec, id, progressPct)
}

func (s *SQLStore) CompleteTask(ctx context.Context, id string, results json.RawMessage, now time.Time) (*model.Task, error) {
	return queryCompleteTask(ctx, s.exec, id, results, now)
}

func (s *SQLStore) MarkTaskExpired(ctx context.Context, id string) (bool, error) {
	return queryMarkTaskExpired(ctx, s.exec, id)
}

func (s *SQLStore) CountTasksByStatus(ctx context.Context) (map[model.TaskStatus]int, error) {
	return queryCountTasksByStatus(ctx, s.exec)
}

func (s *SQLStore) CreateComputeNode(ctx context.Context, n *model.ComputeNode) error {
	return queryCreateComputeNode(ctx, s.exec, n)
}

func (s *SQLStore) GetComputeNode(ctx context.Context, id string) (*model.ComputeNode, error) {
	return queryGetComputeNode(ctx, s.exec, id)
}

func (s *SQLStore) ListComputeNodes(ctx context.Context) ([]*model.ComputeNode, error) {
	return queryListComputeNodes(ctx, s.exec)
}

func (s *SQLStore) TouchComputeNode(ctx context.Context, id string, now time.Time) error {
	return queryTouchComputeNode(ctx, s.exec, id, now)
}

func (s *SQLStore) CreateComputeJob(ctx context.Context, j *model.ComputeJob) error {
	return queryCreateComputeJob(ctx, s.exec, j)
}

func (s *SQLStore) GetComputeJob(ctx context.Context, id string) (*model.ComputeJob, error) {
	return queryGetComputeJob(ctx, s.exec, id)
}

func (s *SQLStore) ListComputeJobs(ctx context.Context, filter model.ComputeJobFilter) ([]*model.ComputeJob, error) {
	return queryListComputeJobs(ctx, s.exec, filter)
}

func (s *SQLStore) ClaimComputeJob(ctx context.Context, id, nodeID string, now time.Time) (*model.ComputeJob, error) {
	return queryClaimComputeJob(ctx, s.exec, id, nodeID, now)
}

func (s *SQLStore) HeartbeatComputeJob(ctx context.Context, id string, progressPct float64) (*model.ComputeJob, error) {
	return queryHeartbeatComputeJob(ctx, s.exec, id, progressPct)
}

func (s *SQLStore) CompleteComputeJob(ctx context.Context, id string, results json.RawMessage, now time.Time) (*model.ComputeJob, error) {
	return queryCompleteComputeJob(ctx, s.exec, id, results, now)
}

func (s *SQLStore) CountComputeJobsByStatus(ctx context.Context) (map[model.JobStatus]int, error) {
	return queryCountComputeJobsByStatus(ctx, s.exec)
}

func (s *SQLStore) GetPushPreference(ctx context.Context, nodeID string) (*model.PushPreference, error) {
	return queryGetPushPreference(ctx, s.exec, nodeID)
}

func (s *SQLStore) PutPushPreference(ctx context.Context, p *model.PushPreference) error {
	return queryPutPushPreference(ctx, s.exec, p)
}

func (s *SQLStore) AppendCompletion(ctx context.Context, c *model.Completion) error {
	return queryAppendCompletion(ctx, s.exec, c)
}

func (s *SQLStore) ListCompletions(ctx context.Context, kind model.CompletionKind, itemID string) ([]*model.Completion, error) {
	return queryListCompletions(ctx, s.exec, kind, itemID)
}

func (s *SQLStore) inTransaction(ctx context.Context, fn func(tx executor) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(executor{conn: tx, dialect: s.exec.dialect}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
