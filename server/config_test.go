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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("RC_TEST_SET", "actual")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"set variable", "value: ${RC_TEST_SET}", "value: actual"},
		{"set variable ignores default", "value: ${RC_TEST_SET:-fallback}", "value: actual"},
		{"unset variable with default", "value: ${RC_TEST_UNSET:-fallback}", "value: fallback"},
		{"unset variable without default", "value: ${RC_TEST_UNSET}", "value: "},
		{"no references", "value: plain", "value: plain"},
		{"multiple references", "${RC_TEST_SET}/${RC_TEST_UNSET:-x}", "actual/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandEnvVars(tt.input))
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("RELAYCORE_CONFIG", "")
	t.Setenv("PORT", "")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.AIModel)
	assert.Equal(t, 300, cfg.RateLimitPerMinute)
	assert.Equal(t, 4, cfg.JobWorkers)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("RELAYCORE_CONFIG", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadConfigFileUnderEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
port: "9090"
redis_url: "${RC_TEST_REDIS:-redis://localhost:6379}"
rate_limit_per_minute: 60
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("RELAYCORE_CONFIG", path)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "7070") // env wins over the file
	t.Setenv("RATE_LIMIT_PER_MINUTE", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
}

func TestLoadConfigBadIntFallsBack(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("RELAYCORE_CONFIG", "")
	t.Setenv("JOB_WORKERS", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.JobWorkers)
}
