package reconciler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-io-social/internal/domain"
	pkglog "github.com/weiawesome/wes-io-social/pkg/log"
)

// Queue holds edges awaiting repair. Entries are a set: enqueuing the same
// edge twice keeps one entry.
type Queue interface {
	Enqueue(ctx context.Context, repair domain.EdgeRepair) error
	// Pop removes and returns up to n entries.
	Pop(ctx context.Context, n int) ([]domain.EdgeRepair, error)
	Pending(ctx context.Context, limit int) ([]domain.EdgeRepair, error)
	Len(ctx context.Context) (int64, error)
}

// RedisQueue keeps the repair set in Redis so it survives restarts and is
// shared by every instance.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue creates a queue stored under {prefix}:graph:repairs.
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	return &RedisQueue{client: client, key: prefix + ":graph:repairs"}
}

func (q *RedisQueue) Enqueue(ctx context.Context, repair domain.EdgeRepair) error {
	if err := q.client.SAdd(ctx, q.key, repair.String()).Err(); err != nil {
		return fmt.Errorf("redis enqueue repair: %w", err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context, n int) ([]domain.EdgeRepair, error) {
	members, err := q.client.SPopN(ctx, q.key, int64(n)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis pop repairs: %w", err)
	}
	return decode(ctx, members), nil
}

func (q *RedisQueue) Pending(ctx context.Context, limit int) ([]domain.EdgeRepair, error) {
	members, err := q.client.SMembers(ctx, q.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list repairs: %w", err)
	}
	sort.Strings(members)
	if limit > 0 && len(members) > limit {
		members = members[:limit]
	}
	return decode(ctx, members), nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.SCard(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis count repairs: %w", err)
	}
	return n, nil
}

func decode(ctx context.Context, members []string) []domain.EdgeRepair {
	out := make([]domain.EdgeRepair, 0, len(members))
	for _, m := range members {
		r, err := domain.ParseEdgeRepair(m)
		if err != nil {
			l := pkglog.Ctx(ctx)
			l.Warn().Err(err).Msg("dropping malformed repair entry")
			continue
		}
		out = append(out, r)
	}
	return out
}

// MemoryQueue is a process-local Queue.
type MemoryQueue struct {
	mu      sync.Mutex
	entries map[string]domain.EdgeRepair
}

// NewMemoryQueue creates an empty in-process queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{entries: make(map[string]domain.EdgeRepair)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, repair domain.EdgeRepair) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[repair.String()] = repair
	return nil
}

func (q *MemoryQueue) sortedKeys() []string {
	keys := make([]string, 0, len(q.entries))
	for k := range q.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (q *MemoryQueue) Pop(ctx context.Context, n int) ([]domain.EdgeRepair, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]domain.EdgeRepair, 0, n)
	for _, k := range q.sortedKeys() {
		if len(out) >= n {
			break
		}
		out = append(out, q.entries[k])
		delete(q.entries, k)
	}
	return out, nil
}

func (q *MemoryQueue) Pending(ctx context.Context, limit int) ([]domain.EdgeRepair, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]domain.EdgeRepair, 0, len(q.entries))
	for _, k := range q.sortedKeys() {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, q.entries[k])
	}
	return out, nil
}

func (q *MemoryQueue) Len(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.entries)), nil
}

var (
	_ Queue = (*RedisQueue)(nil)
	_ Queue = (*MemoryQueue)(nil)
)
