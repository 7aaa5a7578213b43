// Copyright 2025 RelayCore
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimiter enforces a per-organization request rate. Allow returns a
// non-nil error when the caller is over its budget.
type RateLimiter interface {
	Allow(ctx context.Context, orgID string) error
}

// RedisRateLimiter implements a one-minute sliding window over Redis sorted
// sets, shared across server instances. A Redis fault fails open.
type RedisRateLimiter struct {
	client         *redis.Client
	limitPerMinute int
}

// NewRedisRateLimiter connects to Redis and verifies the connection
func NewRedisRateLimiter(redisURL string, limitPerMinute int) (*RedisRateLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisRateLimiter{client: client, limitPerMinute: limitPerMinute}, nil
}

func (l *RedisRateLimiter) Allow(ctx context.Context, orgID string) error {
	now := time.Now()
	key := fmt.Sprintf("ratelimit:%s", orgID)

	pipe := l.client.Pipeline()
	minScore := now.Add(-time.Minute).Unix()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", minScore))
	pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(now.Unix()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	pipe.Expire(ctx, key, 2*time.Minute)

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		// fail open on Redis faults
		log.Printf("[RateLimit] Redis check failed for %s: %v (failing open)", orgID, err)
		return nil
	}

	count := cmds[1].(*redis.IntCmd).Val()
	if count >= int64(l.limitPerMinute) {
		return fmt.Errorf("rate limit exceeded: %d requests/minute", l.limitPerMinute)
	}
	return nil
}

// MemoryRateLimiter is the single-instance fallback when Redis is not
// configured; same sliding-window semantics, in process.
type MemoryRateLimiter struct {
	mu             sync.Mutex
	windows        map[string][]time.Time
	limitPerMinute int
}

// NewMemoryRateLimiter creates an in-process limiter
func NewMemoryRateLimiter(limitPerMinute int) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		windows:        make(map[string][]time.Time),
		limitPerMinute: limitPerMinute,
	}
}

func (l *MemoryRateLimiter) Allow(ctx context.Context, orgID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Minute)

	window := l.windows[orgID]
	kept := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limitPerMinute {
		l.windows[orgID] = kept
		return fmt.Errorf("rate limit exceeded: %d requests/minute", l.limitPerMinute)
	}

	l.windows[orgID] = append(kept, now)
	return nil
}

// unlimited disables rate limiting; used in tests
type unlimited struct{}

func (unlimited) Allow(ctx context.Context, orgID string) error { return nil }
