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
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no object exists for the requested id.
var ErrNotFound = errors.New("object not found")

// ValidationError reports malformed input detected before any write occurs.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError with a formatted message
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Object is the polymorphic document every domain concept is persisted as.
// The type discriminator selects the consumer-side view; the store itself
// treats all objects uniformly.
//
// Links are opaque ids referencing other objects. The store does not enforce
// referential integrity: dangling and cross-type links are legal.
//
// DeletedAt marks soft deletion. A soft-deleted object remains readable by id;
// excluding deleted objects from queries is an explicit, per-call choice of
// the caller (ListOptions.ExcludeDeleted), never an implicit store default.
type Object struct {
	ID        string                 `json:"id" bson:"_id"`
	Type      string                 `json:"type" bson:"type"`
	Data      map[string]interface{} `json:"data" bson:"data"`
	Metadata  map[string]interface{} `json:"metadata" bson:"metadata"`
	Links     []string               `json:"links" bson:"links"`
	CreatedAt time.Time              `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time              `json:"updated_at" bson:"updated_at"`
	DeletedAt *time.Time             `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
}

// Deleted reports whether the object has been soft-deleted
func (o *Object) Deleted() bool {
	return o.DeletedAt != nil
}

// validateNew checks the invariants every new object must satisfy.
// Validation happens before any write; an object failing validation is never
// partially persisted.
func validateNew(typ string, data map[string]interface{}, metadata map[string]interface{}) error {
	if typ == "" {
		return NewValidationError("type is required")
	}
	if data == nil {
		return NewValidationError("data is required")
	}
	if err := checkSerializable("data", data); err != nil {
		return err
	}
	if metadata != nil {
		if err := checkSerializable("metadata", metadata); err != nil {
			return err
		}
	}
	return nil
}

// checkSerializable rejects payloads that cannot be serialized, in particular
// values containing reference cycles.
func checkSerializable(field string, v interface{}) error {
	if _, err := json.Marshal(v); err != nil {
		return NewValidationError("%s is not serializable: %v", field, err)
	}
	return nil
}
