// Package presence mirrors live socket membership into Redis so every node
// can report which gyms and users are connected cluster-wide.
//
// Each node writes its own sets and refreshes a heartbeat entry; sets of a
// node that stops heartbeating expire and drop out of snapshots.
package presence

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"
)

// Defaults for New.
const (
	DefaultTTL       = 30 * time.Second
	DefaultHeartbeat = 10 * time.Second
)

var kinds = []string{"user", "gym"}

// Snapshot lists connected ids across all nodes sharing the Redis instance.
type Snapshot struct {
	Users []int64 `json:"users"`
	Gyms  []int64 `json:"gyms"`
}

// Client is the subset of *redis.Client used here.
type Client interface {
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...any) *redis.IntCmd
	SUnion(ctx context.Context, keys ...string) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRem(ctx context.Context, key string, members ...any) *redis.IntCmd
	ZRemRangeByScore(ctx context.Context, key, min, max string) *redis.IntCmd
	ZRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Redis keeps one set per peer kind for this node plus a shared heartbeat index.
type Redis struct {
	c      Client
	prefix string
	node   string
	ttl    time.Duration
	now    func() time.Time
}

// Dial connects to Redis and verifies it with PING.
func Dial(ctx context.Context, cfg Config) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb), nil
}

// New wraps an existing client under a fresh node id.
func New(c Client) *Redis {
	return &Redis{
		c:      c,
		prefix: "gymdesk:presence:",
		node:   uuid.Must(uuid.NewV4()).String(),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
}

// Node returns this node's id.
func (r *Redis) Node() string { return r.node }

func (r *Redis) nodesKey() string { return r.prefix + "nodes" }

func (r *Redis) key(node, kind string) string { return r.prefix + node + ":" + kind }

// Join marks id of the given kind as connected on this node.
func (r *Redis) Join(ctx context.Context, kind string, id int64) error {
	k := r.key(r.node, kind)
	if err := r.c.SAdd(ctx, k, strconv.FormatInt(id, 10)).Err(); err != nil {
		return err
	}
	return r.c.Expire(ctx, k, r.ttl).Err()
}

// Leave marks id of the given kind as gone from this node.
func (r *Redis) Leave(ctx context.Context, kind string, id int64) error {
	return r.c.SRem(ctx, r.key(r.node, kind), strconv.FormatInt(id, 10)).Err()
}

// Heartbeat records this node as alive and extends its sets.
func (r *Redis) Heartbeat(ctx context.Context) error {
	z := redis.Z{Score: float64(r.now().Unix()), Member: r.node}
	if err := r.c.ZAdd(ctx, r.nodesKey(), z).Err(); err != nil {
		return err
	}
	for _, kind := range kinds {
		if err := r.c.Expire(ctx, r.key(r.node, kind), r.ttl).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Run heartbeats every interval until ctx is done. onErr may be nil.
func (r *Redis) Run(ctx context.Context, interval time.Duration, onErr func(error)) {
	if interval <= 0 {
		interval = DefaultHeartbeat
	}
	beat := func() {
		if err := r.Heartbeat(ctx); err != nil && onErr != nil && ctx.Err() == nil {
			onErr(err)
		}
	}
	beat()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			beat()
		}
	}
}

// Snapshot unions the sets of every node with a fresh heartbeat. Members
// that are not integers are skipped.
func (r *Redis) Snapshot(ctx context.Context) (Snapshot, error) {
	cutoff := r.now().Add(-r.ttl).Unix()
	if err := r.c.ZRemRangeByScore(ctx, r.nodesKey(), "-inf", "("+strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return Snapshot{}, err
	}
	nodes, err := r.c.ZRange(ctx, r.nodesKey(), 0, -1).Result()
	if err != nil {
		return Snapshot{}, err
	}
	users, err := r.members(ctx, nodes, "user")
	if err != nil {
		return Snapshot{}, err
	}
	gyms, err := r.members(ctx, nodes, "gym")
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Users: users, Gyms: gyms}, nil
}

func (r *Redis) members(ctx context.Context, nodes []string, kind string) ([]int64, error) {
	out := []int64{}
	if len(nodes) == 0 {
		return out, nil
	}
	keys := make([]string, 0, len(nodes))
	for _, n := range nodes {
		keys = append(keys, r.key(n, kind))
	}
	raw, err := r.c.SUnion(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Close removes this node's entries and releases the client.
func (r *Redis) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = r.c.Del(ctx, r.key(r.node, "user"), r.key(r.node, "gym")).Err()
	_ = r.c.ZRem(ctx, r.nodesKey(), r.node).Err()
	return r.c.Close()
}
