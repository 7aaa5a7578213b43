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
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRateLimiterBlocksOverBudget(t *testing.T) {
	mr := miniredis.RunT(t)

	limiter, err := NewRedisRateLimiter("redis://"+mr.Addr(), 3)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		assert.NoError(t, limiter.Allow(ctx, "org-1"))
	}
	assert.Error(t, limiter.Allow(ctx, "org-1"))

	// budgets are per organization
	assert.NoError(t, limiter.Allow(ctx, "org-2"))
}

func TestRedisRateLimiterFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)

	limiter, err := NewRedisRateLimiter("redis://"+mr.Addr(), 1)
	require.NoError(t, err)

	mr.Close()

	// a dead Redis must not take the API down with it
	assert.NoError(t, limiter.Allow(context.Background(), "org-1"))
}

func TestRedisRateLimiterBadURL(t *testing.T) {
	_, err := NewRedisRateLimiter("not-a-url", 10)
	assert.Error(t, err)
}

func TestMemoryRateLimiter(t *testing.T) {
	limiter := NewMemoryRateLimiter(2)
	ctx := context.Background()

	assert.NoError(t, limiter.Allow(ctx, "org-1"))
	assert.NoError(t, limiter.Allow(ctx, "org-1"))
	assert.Error(t, limiter.Allow(ctx, "org-1"))

	// other orgs are unaffected
	assert.NoError(t, limiter.Allow(ctx, "org-2"))
}
