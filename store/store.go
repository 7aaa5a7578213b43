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

package store

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// Patch describes a partial update to an object.
// Data and Metadata entries are merged key-by-key into the existing payloads.
// Links, when non-nil, replaces the link list atomically (links are never
// merged). Increments applies counter-style deltas to numeric data fields,
// atomic per document under concurrent writers.
type Patch struct {
	Data       map[string]interface{}
	Metadata   map[string]interface{}
	Links      *[]string
	Increments map[string]int64
}

// Empty reports whether the patch changes nothing
func (p Patch) Empty() bool {
	return len(p.Data) == 0 && len(p.Metadata) == 0 && p.Links == nil && len(p.Increments) == 0
}

// ListOptions controls List queries.
// Filter keys address subfields with a "data." or "metadata." prefix
// (e.g. "data.status": "open"). Cursor continues a previous page.
// ExcludeDeleted must be requested explicitly; the store never hides
// soft-deleted objects on its own.
type ListOptions struct {
	Filter         map[string]interface{}
	Limit          int
	Skip           int
	Cursor         string
	ExcludeDeleted bool
}

// Page is one page of List results in creation order, with a continuation
// cursor when more results exist.
type Page struct {
	Items      []*Object
	NextCursor string
}

// Store is the polymorphic object engine scoped to one tenant partition.
// All domain data (generic records and AI artifacts alike) goes through it.
type Store interface {
	// Create persists a new object. Fails with *ValidationError if typ or
	// data is missing or data contains a cyclic structure; nothing is
	// written on invalid input.
	Create(ctx context.Context, typ string, data, metadata map[string]interface{}, links []string) (*Object, error)

	// Get returns the object by id or ErrNotFound. Soft-deleted objects are
	// returned; filtering them is the caller's decision.
	Get(ctx context.Context, id string) (*Object, error)

	// List returns objects of one type in creation order.
	List(ctx context.Context, typ string, opts ListOptions) (*Page, error)

	// Update applies a partial update. Fails with ErrNotFound if id is absent.
	Update(ctx context.Context, id string, patch Patch) (*Object, error)

	// SoftDelete stamps deleted_at. Idempotent: deleting an already-deleted
	// object succeeds. Fails with ErrNotFound only when no document exists.
	SoftDelete(ctx context.Context, id string) error

	// FindByLink returns every object (live or deleted) whose links contain
	// targetID.
	FindByLink(ctx context.Context, targetID string) ([]*Object, error)

	// CompareAndSwapData sets data fields only if data[field] currently
	// equals old. Returns whether the swap was applied. Used for
	// exactly-once status transitions.
	CompareAndSwapData(ctx context.Context, id, field string, old, new interface{}, extra map[string]interface{}) (bool, error)
}

// Partitions hands out the Store for one organization's data partition.
// The partition handle is shared across requests for the same org and must
// support concurrent use; document-level atomicity is the only guarantee.
type Partitions interface {
	Partition(orgID string) Store
}

// encodeCursor packs a creation-order position into an opaque cursor
func encodeCursor(createdAt time.Time, id string) string {
	raw := strconv.FormatInt(createdAt.UnixNano(), 10) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// decodeCursor unpacks a cursor produced by encodeCursor
func decodeCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", NewValidationError("invalid cursor")
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", NewValidationError("invalid cursor")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, "", NewValidationError("invalid cursor")
	}
	return time.Unix(0, nanos), parts[1], nil
}

// splitFilterKey validates a filter key and splits it into its top-level
// section ("data" or "metadata") and subpath.
func splitFilterKey(key string) (string, string, error) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 || (parts[0] != "data" && parts[0] != "metadata") || parts[1] == "" {
		return "", "", NewValidationError("invalid filter key %q: must be data.<field> or metadata.<field>", key)
	}
	return parts[0], parts[1], nil
}

// normalizeLimit clamps a page size into the supported range
func normalizeLimit(limit int) int {
	const (
		defaultLimit = 50
		maxLimit     = 1000
	)
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
