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
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActiveBindingFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT org_id, created_at, updated_at").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"org_id", "created_at", "updated_at"}).
			AddRow("org-acme", now, now))

	dir := NewPostgresDirectory(db)
	binding, err := dir.ActiveBinding(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "org-acme", binding.OrgID)
	assert.True(t, binding.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveBindingNone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT org_id, created_at, updated_at").
		WithArgs("user-2").
		WillReturnRows(sqlmock.NewRows([]string{"org_id", "created_at", "updated_at"}))

	dir := NewPostgresDirectory(db)
	_, err = dir.ActiveBinding(context.Background(), "user-2")
	assert.ErrorIs(t, err, ErrNoActiveOrganization)
}

func TestActiveBindingQueryFault(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT org_id, created_at, updated_at").
		WithArgs("user-3").
		WillReturnError(fmt.Errorf("connection reset"))

	dir := NewPostgresDirectory(db)
	_, err = dir.ActiveBinding(context.Background(), "user-3")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoActiveOrganization, "faults must stay distinct from absence")
	assert.Contains(t, err.Error(), "binding lookup failed")
}

func TestBindSwitchesActiveOrganization(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE org_bindings").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO org_bindings").
		WithArgs("user-1", "org-new").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	dir := NewPostgresDirectory(db)
	binding, err := dir.Bind(context.Background(), "user-1", "org-new")
	require.NoError(t, err)
	assert.Equal(t, "org-new", binding.OrgID)
	assert.True(t, binding.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBindRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE org_bindings").
		WithArgs("user-1").
		WillReturnError(fmt.Errorf("deadlock detected"))
	mock.ExpectRollback()

	dir := NewPostgresDirectory(db)
	_, err = dir.Bind(context.Background(), "user-1", "org-new")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deactivate")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleLookupOutcomes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT role").
		WithArgs("user-1", "org-a").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("admin"))
	mock.ExpectQuery("SELECT role").
		WithArgs("user-1", "org-b").
		WillReturnRows(sqlmock.NewRows([]string{"role"}))
	mock.ExpectQuery("SELECT role").
		WithArgs("user-1", "org-c").
		WillReturnError(fmt.Errorf("timeout"))

	dir := NewPostgresDirectory(db)
	ctx := context.Background()

	role, err := dir.Role(ctx, "user-1", "org-a")
	require.NoError(t, err)
	assert.Equal(t, "admin", role)

	_, err = dir.Role(ctx, "user-1", "org-b")
	assert.ErrorIs(t, err, ErrNoRole)

	_, err = dir.Role(ctx, "user-1", "org-c")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRole)
}
