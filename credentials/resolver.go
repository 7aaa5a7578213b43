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
)

// ErrNotFound is returned when a credential key does not exist for an org.
var ErrNotFound = errors.New("credential not found")

// NotFoundError wraps ErrNotFound with the name of the missing credential so
// callers can surface which key is absent without leaking its value.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("credential not found: %s", e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// Resolver looks up per-organization provider secrets.
// Keys follow the {orgId}_{PROVIDER}_{KEY} naming convention,
// e.g. org123_RESEND_API_KEY.
type Resolver interface {
	Resolve(ctx context.Context, orgID, provider, key string) (string, error)
}

// KeyName builds the canonical credential name for an org/provider/key triple.
func KeyName(orgID, provider, key string) string {
	return fmt.Sprintf("%s_%s_%s", orgID, provider, key)
}

// Bundle resolves a set of keys for one org/provider pair. It fails with a
// *NotFoundError naming the first missing credential; partial bundles are
// never returned.
func Bundle(ctx context.Context, r Resolver, orgID, provider string, keys ...string) (map[string]string, error) {
	creds := make(map[string]string, len(keys))
	for _, key := range keys {
		value, err := r.Resolve(ctx, orgID, provider, key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, &NotFoundError{Name: KeyName(orgID, provider, key)}
			}
			return nil, fmt.Errorf("failed to resolve %s: %w", KeyName(orgID, provider, key), err)
		}
		creds[key] = value
	}
	return creds, nil
}
