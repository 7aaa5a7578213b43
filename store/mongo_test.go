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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestSanitizeDatabaseName(t *testing.T) {
	tests := []struct {
		orgID    string
		expected string
	}{
		{"acme", "acme"},
		{"acme-corp_01", "acme-corp_01"},
		{"acme corp", "acme_corp"},
		{"a/b\\c.d\"e$f", "a_b_c_d_e_f"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.orgID, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeDatabaseName(tt.orgID))
		})
	}
}

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 589793238, time.UTC)
	cursor := encodeCursor(at, "obj-123")

	gotAt, gotID, err := decodeCursor(cursor)
	require.NoError(t, err)
	assert.True(t, gotAt.Equal(at))
	assert.Equal(t, "obj-123", gotID)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	var verr *ValidationError

	for _, cursor := range []string{
		"%%%",              // not base64
		"bm8tc2VwYXJhdG9y", // "no-separator"
		"bm90YW51bWJlcnxpZA", // "notanumber|id"
	} {
		_, _, err := decodeCursor(cursor)
		assert.ErrorAs(t, err, &verr, "cursor %q", cursor)
	}
}

func TestSplitFilterKey(t *testing.T) {
	tests := []struct {
		key     string
		section string
		sub     string
		wantErr bool
	}{
		{"data.status", "data", "status", false},
		{"metadata.region", "metadata", "region", false},
		{"data.a.b", "data", "a.b", false},
		{"status", "", "", true},
		{"data.", "", "", true},
		{"other.field", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			section, sub, err := splitFilterKey(tt.key)
			if tt.wantErr {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.section, section)
			assert.Equal(t, tt.sub, sub)
		})
	}
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, 50, normalizeLimit(0))
	assert.Equal(t, 50, normalizeLimit(-5))
	assert.Equal(t, 7, normalizeLimit(7))
	assert.Equal(t, 1000, normalizeLimit(5000))
}

func TestBuildListFilter(t *testing.T) {
	s := &MongoStore{}

	filter, err := s.buildListFilter("ticket", ListOptions{
		Filter:         map[string]interface{}{"data.status": "open", "metadata.region": "eu"},
		ExcludeDeleted: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "ticket", filter["type"])
	assert.Equal(t, "open", filter["data.status"])
	assert.Equal(t, "eu", filter["metadata.region"])
	assert.Nil(t, filter["deleted_at"])
	_, hasDeleted := filter["deleted_at"]
	assert.True(t, hasDeleted, "deleted_at: null must be present when excluding")

	// without the flag, deleted objects are included
	filter, err = s.buildListFilter("ticket", ListOptions{})
	require.NoError(t, err)
	_, hasDeleted = filter["deleted_at"]
	assert.False(t, hasDeleted)

	// cursor adds a creation-order continuation clause
	at := time.Unix(0, 1700000000000000000).UTC()
	filter, err = s.buildListFilter("ticket", ListOptions{Cursor: encodeCursor(at, "id-9")})
	require.NoError(t, err)
	or, ok := filter["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, or, 2)

	// bad inputs surface as validation errors before any query runs
	var verr *ValidationError
	_, err = s.buildListFilter("ticket", ListOptions{Filter: map[string]interface{}{"bogus": 1}})
	require.ErrorAs(t, err, &verr)
	_, err = s.buildListFilter("ticket", ListOptions{Cursor: "!!!"})
	require.ErrorAs(t, err, &verr)
}
