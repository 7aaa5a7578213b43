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
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryPartitions maps organizations to in-memory partitions. Used in tests
// and local/dev deployments where no MongoDB is available.
type MemoryPartitions struct {
	mu     sync.Mutex
	stores map[string]*MemoryStore
}

// NewMemoryPartitions creates an empty in-memory partition set
func NewMemoryPartitions() *MemoryPartitions {
	return &MemoryPartitions{
		stores: make(map[string]*MemoryStore),
	}
}

// Partition returns the store for one organization, creating it on first use
func (p *MemoryPartitions) Partition(orgID string) Store {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.stores[orgID]; ok {
		return s
	}
	s := NewMemoryStore()
	p.stores[orgID] = s
	return s
}

// MemoryStore implements Store with an in-process map. Operations are
// atomic per document under a single mutex; objects are deep-copied across
// the API boundary so callers never alias internal state.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*Object
	order   []string // ids in creation order
	lastTS  time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]*Object),
	}
}

// nextTimestamp returns a strictly increasing creation timestamp so that
// creation order and (created_at, id) cursor order always agree.
// Caller must hold the write lock.
func (s *MemoryStore) nextTimestamp() time.Time {
	now := time.Now().UTC()
	if !now.After(s.lastTS) {
		now = s.lastTS.Add(time.Nanosecond)
	}
	s.lastTS = now
	return now
}

// Create persists a new object
func (s *MemoryStore) Create(ctx context.Context, typ string, data, metadata map[string]interface{}, links []string) (*Object, error) {
	if err := validateNew(typ, data, metadata); err != nil {
		return nil, err
	}

	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	if links == nil {
		links = []string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nextTimestamp()
	obj := &Object{
		ID:        uuid.New().String(),
		Type:      typ,
		Data:      deepCopyMap(data),
		Metadata:  deepCopyMap(metadata),
		Links:     append([]string(nil), links...),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.objects[obj.ID] = obj
	s.order = append(s.order, obj.ID)

	return copyObject(obj), nil
}

// Get returns an object by id, soft-deleted or not
func (s *MemoryStore) Get(ctx context.Context, id string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyObject(obj), nil
}

// List returns one page of objects of a type in creation order
func (s *MemoryStore) List(ctx context.Context, typ string, opts ListOptions) (*Page, error) {
	if typ == "" {
		return nil, NewValidationError("type is required")
	}

	// Validate filter keys up front so malformed filters fail like Mongo's
	for key := range opts.Filter {
		if _, _, err := splitFilterKey(key); err != nil {
			return nil, err
		}
	}

	var afterTS time.Time
	var afterID string
	if opts.Cursor != "" {
		var err error
		afterTS, afterID, err = decodeCursor(opts.Cursor)
		if err != nil {
			return nil, err
		}
	}

	limit := normalizeLimit(opts.Limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*Object, 0, limit)
	skipped := 0
	more := false

	for _, id := range s.order {
		obj := s.objects[id]
		if obj.Type != typ {
			continue
		}
		if opts.ExcludeDeleted && obj.Deleted() {
			continue
		}
		if opts.Cursor != "" && !afterCursor(obj, afterTS, afterID) {
			continue
		}
		if !matchesFilter(obj, opts.Filter) {
			continue
		}
		if skipped < opts.Skip {
			skipped++
			continue
		}
		if len(items) == limit {
			more = true
			break
		}
		items = append(items, copyObject(obj))
	}

	page := &Page{Items: items}
	if more && len(items) > 0 {
		last := items[len(items)-1]
		page.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	return page, nil
}

// afterCursor reports whether obj sorts strictly after the cursor position
func afterCursor(obj *Object, afterTS time.Time, afterID string) bool {
	if obj.CreatedAt.After(afterTS) {
		return true
	}
	return obj.CreatedAt.Equal(afterTS) && obj.ID > afterID
}

// matchesFilter checks every filter entry against the object's subfields
func matchesFilter(obj *Object, filter map[string]interface{}) bool {
	for key, want := range filter {
		section, sub, err := splitFilterKey(key)
		if err != nil {
			return false
		}
		var root map[string]interface{}
		if section == "data" {
			root = obj.Data
		} else {
			root = obj.Metadata
		}
		got, ok := lookupPath(root, sub)
		if !ok || !looselyEqual(got, want) {
			return false
		}
	}
	return true
}

// lookupPath walks a dotted path through nested maps
func lookupPath(root map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = root
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// looselyEqual compares values the way JSON-decoded payloads compare:
// all numeric types collapse to float64.
func looselyEqual(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return a == b
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Update merges data/metadata fields and replaces links atomically
func (s *MemoryStore) Update(ctx context.Context, id string, patch Patch) (*Object, error) {
	if patch.Data != nil {
		if err := checkSerializable("data", patch.Data); err != nil {
			return nil, err
		}
	}
	if patch.Metadata != nil {
		if err := checkSerializable("metadata", patch.Metadata); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[id]
	if !ok {
		return nil, ErrNotFound
	}

	for k, v := range patch.Data {
		obj.Data[k] = deepCopyValue(v)
	}
	for k, v := range patch.Metadata {
		obj.Metadata[k] = deepCopyValue(v)
	}
	if patch.Links != nil {
		links := *patch.Links
		obj.Links = append([]string(nil), links...)
		if obj.Links == nil {
			obj.Links = []string{}
		}
	}
	for k, delta := range patch.Increments {
		current, _ := toFloat(obj.Data[k])
		obj.Data[k] = current + float64(delta)
	}

	if !patch.Empty() {
		obj.UpdatedAt = time.Now().UTC()
	}

	return copyObject(obj), nil
}

// SoftDelete stamps deleted_at; last write wins under concurrent deleters
func (s *MemoryStore) SoftDelete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[id]
	if !ok {
		return ErrNotFound
	}

	now := time.Now().UTC()
	obj.DeletedAt = &now
	obj.UpdatedAt = now
	return nil
}

// FindByLink returns all objects, live or deleted, whose links contain targetID
func (s *MemoryStore) FindByLink(ctx context.Context, targetID string) ([]*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*Object
	for _, id := range s.order {
		obj := s.objects[id]
		for _, link := range obj.Links {
			if link == targetID {
				results = append(results, copyObject(obj))
				break
			}
		}
	}
	return results, nil
}

// CompareAndSwapData conditionally sets data fields in a single atomic update
func (s *MemoryStore) CompareAndSwapData(ctx context.Context, id, field string, old, new interface{}, extra map[string]interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[id]
	if !ok {
		return false, nil
	}
	if !looselyEqual(obj.Data[field], old) {
		return false, nil
	}

	obj.Data[field] = deepCopyValue(new)
	for k, v := range extra {
		obj.Data[k] = deepCopyValue(v)
	}
	obj.UpdatedAt = time.Now().UTC()
	return true, nil
}

// copyObject deep-copies an object for handing across the API boundary
func copyObject(obj *Object) *Object {
	clone := &Object{
		ID:        obj.ID,
		Type:      obj.Type,
		Data:      deepCopyMap(obj.Data),
		Metadata:  deepCopyMap(obj.Metadata),
		Links:     append([]string(nil), obj.Links...),
		CreatedAt: obj.CreatedAt,
		UpdatedAt: obj.UpdatedAt,
	}
	if clone.Links == nil {
		clone.Links = []string{}
	}
	if obj.DeletedAt != nil {
		t := *obj.DeletedAt
		clone.DeletedAt = &t
	}
	return clone
}

// deepCopyMap copies nested maps and slices; scalars are immutable as-is
func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return val
	}
}
