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

// Package tenancy binds requests to organizations: the active-organization
// resolver, the role gate, and the Postgres-backed directory of bindings and
// role assignments.
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"relaycore/platform/store"
)

// OrgBinding records which organization a user operates against. At most
// one binding is active per user; the resolver enforces this on every Bind,
// there is no database constraint behind it.
type OrgBinding struct {
	UserID    string    `json:"user_id"`
	OrgID     string    `json:"org_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoleAssignment grants a user one role within one organization
type RoleAssignment struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
	Role   string `json:"role"`
}

// ErrNoActiveOrganization means the user has not bound an organization yet
var ErrNoActiveOrganization = errors.New("no active organization for user")

// ErrUnauthorized means no authenticated identity is present at all
var ErrUnauthorized = errors.New("authentication required")

// ErrNoRole means the user holds no role in the organization
var ErrNoRole = errors.New("no role assignment")

// MissingOrgHeaderError rejects a tenant request lacking its org header.
// The message names the header so callers know what to send.
type MissingOrgHeaderError struct {
	Header string
}

func (e *MissingOrgHeaderError) Error() string {
	return fmt.Sprintf("missing required header: %s", e.Header)
}

// InvalidSourceError rejects an out-of-bounds operation-source header
type InvalidSourceError struct {
	Length int
}

func (e *InvalidSourceError) Error() string {
	return fmt.Sprintf("Source header must be between %d and %d characters, got %d",
		sourceMinLen, sourceMaxLen, e.Length)
}

// ForbiddenError rejects an identity that lacks every acceptable role
type ForbiddenError struct {
	Required []string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("requires role %s", strings.Join(e.Required, "|"))
}

const (
	sourceMinLen = 6
	sourceMaxLen = 200
)

// ValidateSource checks the operation-source header value's bounds
func ValidateSource(source string) error {
	if len(source) < sourceMinLen || len(source) > sourceMaxLen {
		return &InvalidSourceError{Length: len(source)}
	}
	return nil
}

// RequestContext is the tenant+identity context established once per request
// and passed to every downstream component. Partition is the object store
// scoped to the resolved organization.
type RequestContext struct {
	UserID    string
	OrgID     string
	Role      string
	Source    string
	Partition store.Store
}

type contextKey struct{}

// WithRequestContext attaches a resolved tenant context
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rc)
}

// FromContext retrieves the tenant context attached by the resolver chain
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(contextKey{}).(*RequestContext)
	return rc, ok
}
