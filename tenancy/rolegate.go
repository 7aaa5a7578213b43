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
)

// RoleGate enforces role membership on resolved tenant contexts.
// Outcomes are strictly separated: missing identity is ErrUnauthorized,
// a missing or mismatched role is *ForbiddenError, and a directory fault
// propagates as a wrapped error so it is never mistaken for "no role".
type RoleGate struct {
	Directory Directory
}

// NewRoleGate creates a gate over the directory
func NewRoleGate(directory Directory) *RoleGate {
	return &RoleGate{Directory: directory}
}

// Require checks that the context's user holds one of the given roles in
// the context's organization. On success the resolved role is written back
// into rc. An empty required set still demands some role assignment exist.
func (g *RoleGate) Require(ctx context.Context, rc *RequestContext, roles ...string) error {
	if rc == nil || rc.UserID == "" {
		return ErrUnauthorized
	}

	role, err := g.Directory.Role(ctx, rc.UserID, rc.OrgID)
	if errors.Is(err, ErrNoRole) {
		return &ForbiddenError{Required: roles}
	}
	if err != nil {
		return fmt.Errorf("role lookup fault: %w", err)
	}

	if len(roles) == 0 {
		// enforced-but-empty set: no role can satisfy it
		return &ForbiddenError{Required: roles}
	}

	for _, required := range roles {
		if role == required {
			rc.Role = role
			return nil
		}
	}

	return &ForbiddenError{Required: roles}
}
