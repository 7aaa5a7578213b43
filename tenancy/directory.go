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
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// Directory looks up organization bindings and role assignments
type Directory interface {
	// ActiveBinding returns the user's single active binding or
	// ErrNoActiveOrganization.
	ActiveBinding(ctx context.Context, userID string) (*OrgBinding, error)

	// Bind activates a binding to orgID, deactivating any other active
	// binding the user holds.
	Bind(ctx context.Context, userID, orgID string) (*OrgBinding, error)

	// Role returns the user's role in the organization or ErrNoRole.
	Role(ctx context.Context, userID, orgID string) (string, error)
}

// PostgresDirectory implements Directory over the org_bindings and
// role_assignments tables.
type PostgresDirectory struct {
	db *sql.DB
}

// NewPostgresDirectory wraps an open database handle
func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) ActiveBinding(ctx context.Context, userID string) (*OrgBinding, error) {
	query := `
		SELECT org_id, created_at, updated_at
		FROM org_bindings
		WHERE user_id = $1 AND active = true
	`

	binding := &OrgBinding{UserID: userID, Active: true}
	err := d.db.QueryRowContext(ctx, query, userID).Scan(
		&binding.OrgID,
		&binding.CreatedAt,
		&binding.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNoActiveOrganization
	}
	if err != nil {
		return nil, fmt.Errorf("binding lookup failed: %w", err)
	}

	return binding, nil
}

// Bind runs in a transaction so the one-active-binding rule holds even
// under concurrent binds for the same user.
func (d *PostgresDirectory) Bind(ctx context.Context, userID, orgID string) (*OrgBinding, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin bind transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deactivate := `
		UPDATE org_bindings
		SET active = false, updated_at = NOW()
		WHERE user_id = $1 AND active = true
	`
	if _, err := tx.ExecContext(ctx, deactivate, userID); err != nil {
		return nil, fmt.Errorf("failed to deactivate previous binding: %w", err)
	}

	activate := `
		INSERT INTO org_bindings (user_id, org_id, active, created_at, updated_at)
		VALUES ($1, $2, true, NOW(), NOW())
		ON CONFLICT (user_id, org_id)
		DO UPDATE SET active = true, updated_at = NOW()
		RETURNING created_at, updated_at
	`
	binding := &OrgBinding{UserID: userID, OrgID: orgID, Active: true}
	if err := tx.QueryRowContext(ctx, activate, userID, orgID).Scan(&binding.CreatedAt, &binding.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to activate binding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bind: %w", err)
	}

	return binding, nil
}

func (d *PostgresDirectory) Role(ctx context.Context, userID, orgID string) (string, error) {
	query := `
		SELECT role
		FROM role_assignments
		WHERE user_id = $1 AND org_id = $2
	`

	var role string
	err := d.db.QueryRowContext(ctx, query, userID, orgID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", ErrNoRole
	}
	if err != nil {
		return "", fmt.Errorf("role lookup failed: %w", err)
	}

	return role, nil
}

// MemoryDirectory implements Directory in process; used by tests and
// local/dev mode alongside MemoryPartitions.
type MemoryDirectory struct {
	mu       sync.RWMutex
	bindings map[string]*OrgBinding       // userID -> active binding
	roles    map[string]map[string]string // userID -> orgID -> role
}

// NewMemoryDirectory creates an empty in-memory directory
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		bindings: make(map[string]*OrgBinding),
		roles:    make(map[string]map[string]string),
	}
}

func (d *MemoryDirectory) ActiveBinding(ctx context.Context, userID string) (*OrgBinding, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	binding, ok := d.bindings[userID]
	if !ok {
		return nil, ErrNoActiveOrganization
	}
	clone := *binding
	return &clone, nil
}

func (d *MemoryDirectory) Bind(ctx context.Context, userID, orgID string) (*OrgBinding, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now().UTC()
	binding := &OrgBinding{
		UserID:    userID,
		OrgID:     orgID,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if prev, ok := d.bindings[userID]; ok && prev.OrgID == orgID {
		binding.CreatedAt = prev.CreatedAt
	}
	d.bindings[userID] = binding

	clone := *binding
	return &clone, nil
}

func (d *MemoryDirectory) Role(ctx context.Context, userID, orgID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	role, ok := d.roles[userID][orgID]
	if !ok {
		return "", ErrNoRole
	}
	return role, nil
}

// AssignRole grants a role; test/dev helper
func (d *MemoryDirectory) AssignRole(userID, orgID, role string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.roles[userID] == nil {
		d.roles[userID] = make(map[string]string)
	}
	d.roles[userID][orgID] = role
}
