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

package credentials

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// AWSResolver resolves credentials from AWS Secrets Manager. Each credential
// is stored as its own secret named {orgId}_{PROVIDER}_{KEY}; the secret
// string is the credential value.
type AWSResolver struct {
	client *secretsmanager.Client
	cache  map[string]*secretCacheEntry
	mu     sync.RWMutex
	ttl    time.Duration
	logger *log.Logger
}

type secretCacheEntry struct {
	value     string
	expiresAt time.Time
}

// AWSResolverOptions holds options for creating an AWSResolver
type AWSResolverOptions struct {
	Region   string
	CacheTTL time.Duration
	Logger   *log.Logger
}

// NewAWSResolver creates a new AWS Secrets Manager backed resolver
func NewAWSResolver(ctx context.Context, opts AWSResolverOptions) (*AWSResolver, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[CREDENTIALS_AWS] ", log.LstdFlags)
	}

	cfgOpts := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		cfgOpts = append(cfgOpts, config.WithRegion(opts.Region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute // Cache secrets for 5 minutes by default
	}

	return &AWSResolver{
		client: secretsmanager.NewFromConfig(cfg),
		cache:  make(map[string]*secretCacheEntry),
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Resolve retrieves a credential from AWS Secrets Manager with caching
func (r *AWSResolver) Resolve(ctx context.Context, orgID, provider, key string) (string, error) {
	name := KeyName(orgID, provider, key)

	// Check cache first
	r.mu.RLock()
	entry, exists := r.cache[name]
	r.mu.RUnlock()

	if exists && time.Now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	r.logger.Printf("Fetching secret %s from AWS Secrets Manager", maskSecretName(name))

	input := &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	}

	result, err := r.client.GetSecretValue(ctx, input)
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get secret %s: %w", maskSecretName(name), err)
	}

	if result.SecretString == nil || *result.SecretString == "" {
		return "", ErrNotFound
	}

	value := *result.SecretString

	r.mu.Lock()
	r.cache[name] = &secretCacheEntry{
		value:     value,
		expiresAt: time.Now().Add(r.ttl),
	}
	r.mu.Unlock()

	return value, nil
}

// Invalidate removes a single secret from the cache
func (r *AWSResolver) Invalidate(orgID, provider, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, KeyName(orgID, provider, key))
}

// InvalidateAll clears the secret cache
func (r *AWSResolver) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*secretCacheEntry)
}

// maskSecretName redacts the trailing portion of a secret name for logging
func maskSecretName(name string) string {
	parts := strings.Split(name, "_")
	if len(parts) < 3 {
		return "***"
	}
	// Keep org and provider, mask the key segment
	return parts[0] + "_" + parts[1] + "_***"
}
