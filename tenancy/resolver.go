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
	"fmt"

	"relaycore/platform/store"
)

// OrgConnectionResolver turns an authenticated user plus request headers
// into a tenant context: the active organization and the partition handle
// scoped to it. It is the single place partition handles are minted for
// tenant routes.
type OrgConnectionResolver struct {
	Directory  Directory
	Partitions store.Partitions
}

// NewOrgConnectionResolver wires the directory to the partition provider
func NewOrgConnectionResolver(directory Directory, partitions store.Partitions) *OrgConnectionResolver {
	return &OrgConnectionResolver{
		Directory:  directory,
		Partitions: partitions,
	}
}

// Resolve establishes the tenant context for a normal tenant route: the
// user's active binding selects the organization, and the returned context
// carries the partition handle and the source string.
func (r *OrgConnectionResolver) Resolve(ctx context.Context, userID, source string) (*RequestContext, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	binding, err := r.Directory.ActiveBinding(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &RequestContext{
		UserID:    userID,
		OrgID:     binding.OrgID,
		Source:    source,
		Partition: r.Partitions.Partition(binding.OrgID),
	}, nil
}

// ResolvePublic resolves a partition for the anonymous public read routes.
// No binding or identity is required; the organization comes from the path.
func (r *OrgConnectionResolver) ResolvePublic(orgID string) (*RequestContext, error) {
	if orgID == "" {
		return nil, &MissingOrgHeaderError{Header: "org id"}
	}
	return &RequestContext{
		OrgID:     orgID,
		Partition: r.Partitions.Partition(orgID),
	}, nil
}

// Bind switches the user's active organization. Binding routes carry the
// target org and the operation source explicitly; both are validated before
// any directory write.
func (r *OrgConnectionResolver) Bind(ctx context.Context, userID, orgID, source string) (*RequestContext, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if orgID == "" {
		return nil, &MissingOrgHeaderError{Header: OrgHeader}
	}
	if err := ValidateSource(source); err != nil {
		return nil, err
	}

	binding, err := r.Directory.Bind(ctx, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("bind failed: %w", err)
	}

	return &RequestContext{
		UserID:    userID,
		OrgID:     binding.OrgID,
		Source:    source,
		Partition: r.Partitions.Partition(binding.OrgID),
	}, nil
}

// Header names used across the HTTP surface
const (
	OrgHeader    = "X-Org-ID"
	SourceHeader = "X-Request-Source"
)
