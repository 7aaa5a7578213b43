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
	"log"
	"os"
	"sync"
)

// EnvResolver resolves credentials from process environment variables using
// the {orgId}_{PROVIDER}_{KEY} naming convention. Intended for self-hosted
// and development deployments.
type EnvResolver struct{}

// NewEnvResolver creates an environment-backed credential resolver
func NewEnvResolver() *EnvResolver {
	return &EnvResolver{}
}

// Resolve looks up the credential in the environment
func (r *EnvResolver) Resolve(ctx context.Context, orgID, provider, key string) (string, error) {
	value, ok := os.LookupEnv(KeyName(orgID, provider, key))
	if !ok || value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

// StaticResolver resolves credentials from an in-memory map.
// Useful for local development and testing without real secrets.
type StaticResolver struct {
	mu     sync.RWMutex
	values map[string]string
	logger *log.Logger
}

// NewStaticResolver creates an in-memory credential resolver
func NewStaticResolver(logger *log.Logger) *StaticResolver {
	if logger == nil {
		logger = log.New(os.Stdout, "[CREDENTIALS] ", log.LstdFlags)
	}
	return &StaticResolver{
		values: make(map[string]string),
		logger: logger,
	}
}

// Resolve looks up the credential in the in-memory map
func (r *StaticResolver) Resolve(ctx context.Context, orgID, provider, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	value, ok := r.values[KeyName(orgID, provider, key)]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set stores a credential for testing or local use
func (r *StaticResolver) Set(orgID, provider, key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[KeyName(orgID, provider, key)] = value
}

// Delete removes a credential
func (r *StaticResolver) Delete(orgID, provider, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, KeyName(orgID, provider, key))
}
