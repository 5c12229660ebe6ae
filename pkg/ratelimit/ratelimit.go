// Package ratelimit throttles requests per key. Redis holds the shared state
// through redis_rate; MemoryStore covers single instance runs without Redis.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store decides whether one more hit for key fits into limit per window.
type Store interface {
	Take(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error)
}

// Result is what a Store reports for a single hit.
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAfter time.Duration
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter allows at most limit hits per key per window.
type Limiter struct {
	store  Store
	name   string
	limit  int
	window time.Duration
	logger *zap.Logger
}

// New constructs a limiter. name namespaces the keys so several limiters can
// share one store.
func New(store Store, name string, limit int, window time.Duration, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{store: store, name: name, limit: limit, window: window, logger: logger}
}

// Allow records a hit for key at now. Store failures let the request through.
func (l *Limiter) Allow(ctx context.Context, key string, now time.Time) Decision {
	if l == nil {
		return Decision{Allowed: true}
	}
	decision := Decision{Allowed: true, Limit: l.limit, Remaining: l.limit, ResetAt: now.Add(l.window)}
	if l.store == nil || l.limit <= 0 {
		return decision
	}

	res, err := l.store.Take(ctx, l.name+":"+key, l.limit, l.window, now)
	if err != nil {
		l.logger.Warn("rate limit store unavailable", zap.String("limiter", l.name), zap.Error(err))
		return decision
	}

	decision.Allowed = res.Allowed
	decision.Remaining = res.Remaining
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}
	decision.ResetAt = now.Add(res.ResetAfter)
	return decision
}

// RedisStore shares limits across replicas using redis_rate's GCRA limiter.
// Burst equals the limit, so a fresh key may spend the whole window at once.
type RedisStore struct {
	limiter *redis_rate.Limiter
}

// NewRedisStore wraps a Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{limiter: redis_rate.NewLimiter(client)}
}

// Take implements Store. Redis time is authoritative, so now is ignored.
func (s *RedisStore) Take(ctx context.Context, key string, limit int, window time.Duration, _ time.Time) (Result, error) {
	res, err := s.limiter.Allow(ctx, key, redis_rate.Limit{Rate: limit, Burst: limit, Period: window})
	if err != nil {
		return Result{}, err
	}
	out := Result{Allowed: res.Allowed > 0, Remaining: res.Remaining, ResetAfter: res.ResetAfter}
	if !out.Allowed && res.RetryAfter > 0 {
		out.ResetAfter = res.RetryAfter
	}
	return out, nil
}

// MemoryStore is an in-process fixed window Store for single instance
// deployments and tests.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]int
	order   []string
	max     int
}

// NewMemoryStore keeps at most max buckets, evicting the oldest first.
func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = 10000
	}
	return &MemoryStore{buckets: make(map[string]int), max: max}
}

// Take implements Store.
func (s *MemoryStore) Take(_ context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	windowStart := now.Truncate(window)
	bucket := fmt.Sprintf("%s:%s", key, strconv.FormatInt(windowStart.Unix(), 10))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[bucket]; !ok {
		s.order = append(s.order, bucket)
		for len(s.order) > s.max {
			delete(s.buckets, s.order[0])
			s.order = s.order[1:]
		}
	}
	s.buckets[bucket]++
	count := s.buckets[bucket]

	return Result{
		Allowed:    count <= limit,
		Remaining:  limit - count,
		ResetAfter: windowStart.Add(window).Sub(now),
	}, nil
}
