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

package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaycore/platform/store"
)

func TestValidateSourceBounds(t *testing.T) {
	tests := []struct {
		name   string
		source string
		valid  bool
	}{
		{"too short", "five5", false},
		{"minimum", "sixsix", true},
		{"typical", "relaycore-admin-console", true},
		{"maximum", strings.Repeat("s", 200), true},
		{"too long", strings.Repeat("s", 201), false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSource(tt.source)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			var serr *InvalidSourceError
			require.ErrorAs(t, err, &serr)
			assert.Contains(t, err.Error(), "Source")
		})
	}
}

func TestResolveUsesActiveBinding(t *testing.T) {
	dir := NewMemoryDirectory()
	parts := store.NewMemoryPartitions()
	resolver := NewOrgConnectionResolver(dir, parts)
	ctx := context.Background()

	_, err := dir.Bind(ctx, "user-1", "org-acme")
	require.NoError(t, err)

	rc, err := resolver.Resolve(ctx, "user-1", "test-suite-source")
	require.NoError(t, err)
	assert.Equal(t, "org-acme", rc.OrgID)
	assert.Equal(t, "user-1", rc.UserID)
	assert.Equal(t, "test-suite-source", rc.Source)
	assert.Same(t, parts.Partition("org-acme"), rc.Partition)
}

func TestResolveWithoutBinding(t *testing.T) {
	resolver := NewOrgConnectionResolver(NewMemoryDirectory(), store.NewMemoryPartitions())

	_, err := resolver.Resolve(context.Background(), "user-unbound", "somesource")
	assert.ErrorIs(t, err, ErrNoActiveOrganization)

	_, err = resolver.Resolve(context.Background(), "", "somesource")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestBindValidation(t *testing.T) {
	resolver := NewOrgConnectionResolver(NewMemoryDirectory(), store.NewMemoryPartitions())
	ctx := context.Background()

	_, err := resolver.Bind(ctx, "user-1", "", "valid-source")
	var merr *MissingOrgHeaderError
	require.ErrorAs(t, err, &merr)
	assert.Contains(t, err.Error(), OrgHeader)

	_, err = resolver.Bind(ctx, "user-1", "org-a", "tiny")
	var serr *InvalidSourceError
	require.ErrorAs(t, err, &serr)

	_, err = resolver.Bind(ctx, "", "org-a", "valid-source")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestBindSwitchesPartition(t *testing.T) {
	dir := NewMemoryDirectory()
	parts := store.NewMemoryPartitions()
	resolver := NewOrgConnectionResolver(dir, parts)
	ctx := context.Background()

	first, err := resolver.Bind(ctx, "user-1", "org-a", "integration-tests")
	require.NoError(t, err)
	assert.Equal(t, "org-a", first.OrgID)

	second, err := resolver.Bind(ctx, "user-1", "org-b", "integration-tests")
	require.NoError(t, err)
	assert.Equal(t, "org-b", second.OrgID)

	// the active binding followed the switch
	rc, err := resolver.Resolve(ctx, "user-1", "integration-tests")
	require.NoError(t, err)
	assert.Equal(t, "org-b", rc.OrgID)
}

func TestResolvePublic(t *testing.T) {
	resolver := NewOrgConnectionResolver(NewMemoryDirectory(), store.NewMemoryPartitions())

	rc, err := resolver.ResolvePublic("org-open")
	require.NoError(t, err)
	assert.Equal(t, "org-open", rc.OrgID)
	assert.Empty(t, rc.UserID, "public routes carry no identity")
	assert.NotNil(t, rc.Partition)

	_, err = resolver.ResolvePublic("")
	assert.Error(t, err)
}

// faultyDirectory simulates a directory whose backing store is unreachable
type faultyDirectory struct{}

func (faultyDirectory) ActiveBinding(ctx context.Context, userID string) (*OrgBinding, error) {
	return nil, fmt.Errorf("directory unreachable")
}

func (faultyDirectory) Bind(ctx context.Context, userID, orgID string) (*OrgBinding, error) {
	return nil, fmt.Errorf("directory unreachable")
}

func (faultyDirectory) Role(ctx context.Context, userID, orgID string) (string, error) {
	return "", fmt.Errorf("directory unreachable")
}

func TestRoleGateOutcomes(t *testing.T) {
	dir := NewMemoryDirectory()
	dir.AssignRole("user-1", "org-a", "editor")

	gate := NewRoleGate(dir)
	ctx := context.Background()

	// no identity at all
	err := gate.Require(ctx, &RequestContext{OrgID: "org-a"}, "editor")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// no role assignment
	var ferr *ForbiddenError
	err = gate.Require(ctx, &RequestContext{UserID: "user-2", OrgID: "org-a"}, "editor")
	require.ErrorAs(t, err, &ferr)

	// wrong role
	err = gate.Require(ctx, &RequestContext{UserID: "user-1", OrgID: "org-a"}, "admin")
	require.ErrorAs(t, err, &ferr)
	assert.Contains(t, err.Error(), "requires role admin")

	// empty-but-enforced required set denies every role
	err = gate.Require(ctx, &RequestContext{UserID: "user-1", OrgID: "org-a"})
	require.ErrorAs(t, err, &ferr)

	// matching role passes and lands in the context
	rc := &RequestContext{UserID: "user-1", OrgID: "org-a"}
	require.NoError(t, gate.Require(ctx, rc, "admin", "editor"))
	assert.Equal(t, "editor", rc.Role)

	// lookup fault stays distinct from both unauthorized and forbidden
	faultGate := NewRoleGate(faultyDirectory{})
	err = faultGate.Require(ctx, &RequestContext{UserID: "user-1", OrgID: "org-a"}, "editor")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.False(t, errors.As(err, &ferr), "fault is not forbidden")
	assert.Contains(t, err.Error(), "role lookup fault")
}
