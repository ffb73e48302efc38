package heartbeat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arenvale/fieldnet/internal/model"
)

const (
	redisKeyPrefix = "fieldnet:hb:"
	redisScanCount = 100

	// DefaultTTL keeps a node visible in snapshots well past its online
	// window before the key ages out of the keyspace.
	DefaultTTL = 24 * time.Hour
)

// Redis stores one JSON snapshot per node with a TTL, so departed nodes age
// out on their own. Several relay processes pointed at the same server share
// one liveness view.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Store = (*Redis)(nil)

// NewRedis connects using a redis:// URL.
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return &Redis{client: redis.NewClient(opts), ttl: DefaultTTL}, nil
}

// Ping tests connectivity, for startup checks.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Record merges the update into the stored snapshot. Concurrent beats for
// one node are last-write-wins.
func (r *Redis) Record(ctx context.Context, nodeID string, u Update, now time.Time) error {
	st, err := r.load(ctx, nodeID)
	if err != nil {
		return err
	}
	if st == nil {
		st = &model.HeartbeatStatus{NodeID: nodeID}
	}
	apply(st, u, now)
	ba, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal heartbeat for %s: %w", nodeID, err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+nodeID, ba, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed for %s: %w", nodeID, err)
	}
	return nil
}

func (r *Redis) Touch(ctx context.Context, nodeID string, now time.Time) error {
	return r.Record(ctx, nodeID, Update{}, now)
}

func (r *Redis) Get(ctx context.Context, nodeID string) (*model.HeartbeatStatus, error) {
	st, err := r.load(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrNotFound
	}
	return st, nil
}

func (r *Redis) Snapshot(ctx context.Context) ([]*model.HeartbeatStatus, error) {
	keys, err := r.scanKeys(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []*model.HeartbeatStatus{}, nil
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}
	out := make([]*model.HeartbeatStatus, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			// Key expired between SCAN and MGET.
			continue
		}
		var st model.HeartbeatStatus
		if err := json.Unmarshal([]byte(s), &st); err != nil {
			return nil, fmt.Errorf("failed to decode heartbeat snapshot: %w", err)
		}
		out = append(out, &st)
	}
	sortByNode(out)
	return out, nil
}

func (r *Redis) Online(ctx context.Context, window time.Duration, now time.Time) ([]*model.HeartbeatStatus, error) {
	all, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-window)
	out := all[:0]
	for _, st := range all {
		if !st.LastHeartbeat.Before(cutoff) {
			out = append(out, st)
		}
	}
	return out, nil
}

func (r *Redis) Close() error { return r.client.Close() }

// load returns nil, nil when the key does not exist.
func (r *Redis) load(ctx context.Context, nodeID string) (*model.HeartbeatStatus, error) {
	ba, err := r.client.Get(ctx, redisKeyPrefix+nodeID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed for %s: %w", nodeID, err)
	}
	var st model.HeartbeatStatus
	if err := json.Unmarshal(ba, &st); err != nil {
		return nil, fmt.Errorf("failed to decode heartbeat for %s: %w", nodeID, err)
	}
	return &st, nil
}

func (r *Redis) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := r.client.Scan(ctx, cursor, redisKeyPrefix+"*", redisScanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan failed: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}
