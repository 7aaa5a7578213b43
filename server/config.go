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
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds everything the server needs to start. Values come from an
// optional YAML file overridden by environment variables (env wins).
type Config struct {
	Port        string `yaml:"port"`
	MongoURI    string `yaml:"mongo_uri"`
	PostgresURL string `yaml:"postgres_url"`
	RedisURL    string `yaml:"redis_url"`
	JWTSecret   string `yaml:"jwt_secret"`

	AIBaseURL      string `yaml:"ai_base_url"`
	AIModel        string `yaml:"ai_model"`
	PaymentBaseURL string `yaml:"payment_base_url"`

	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
	JobWorkers         int `yaml:"job_workers"`
	JobQueueSize       int `yaml:"job_queue_size"`
}

// envVarPattern matches ${VAR} and ${VAR:-default} references in the file
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars substitutes ${VAR} / ${VAR:-default} references
func expandEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := match[2 : len(match)-1]
		defaultVal := ""
		if idx := strings.Index(name, ":-"); idx != -1 {
			defaultVal = name[idx+2:]
			name = name[:idx]
		}
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		if defaultVal == "" {
			log.Printf("[Config] Warning: undefined variable %s in config file", name)
		}
		return defaultVal
	})
}

// getEnv reads an environment variable with a fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("[Config] Warning: %s=%q is not an integer, using %d", key, raw, defaultValue)
		return defaultValue
	}
	return value
}

// LoadConfig builds the configuration: YAML file (when RELAYCORE_CONFIG
// points at one) under environment overrides.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:               "8080",
		AIModel:            "gpt-4o-mini",
		PaymentBaseURL:     "https://test.api.amadeus.com/v1/security",
		RateLimitPerMinute: 300,
		JobWorkers:         4,
		JobQueueSize:       100,
	}

	if path := os.Getenv("RELAYCORE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.MongoURI = getEnv("MONGO_URI", cfg.MongoURI)
	cfg.PostgresURL = getEnv("POSTGRES_URL", cfg.PostgresURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.AIBaseURL = getEnv("AI_BASE_URL", cfg.AIBaseURL)
	cfg.AIModel = getEnv("AI_MODEL", cfg.AIModel)
	cfg.PaymentBaseURL = getEnv("PAYMENT_BASE_URL", cfg.PaymentBaseURL)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute)
	cfg.JobWorkers = getEnvInt("JOB_WORKERS", cfg.JobWorkers)
	cfg.JobQueueSize = getEnvInt("JOB_QUEUE_SIZE", cfg.JobQueueSize)

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}
