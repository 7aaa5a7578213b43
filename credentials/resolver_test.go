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

package credentials

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyName(t *testing.T) {
	tests := []struct {
		orgID    string
		provider string
		key      string
		expected string
	}{
		{"org123", "RESEND", "API_KEY", "org123_RESEND_API_KEY"},
		{"acme", "TWILIO", "AUTH_TOKEN", "acme_TWILIO_AUTH_TOKEN"},
		{"o1", "PAYMENT", "CLIENT_SECRET", "o1_PAYMENT_CLIENT_SECRET"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, KeyName(tt.orgID, tt.provider, tt.key))
	}
}

func TestEnvResolver(t *testing.T) {
	os.Setenv("org123_RESEND_API_KEY", "re_test_abc")
	defer os.Unsetenv("org123_RESEND_API_KEY")

	r := NewEnvResolver()
	ctx := context.Background()

	value, err := r.Resolve(ctx, "org123", "RESEND", "API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "re_test_abc", value)

	_, err = r.Resolve(ctx, "org999", "RESEND", "API_KEY")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver(nil)
	ctx := context.Background()

	r.Set("org1", "TWILIO", "ACCOUNT_SID", "AC123")

	value, err := r.Resolve(ctx, "org1", "TWILIO", "ACCOUNT_SID")
	require.NoError(t, err)
	assert.Equal(t, "AC123", value)

	// Credentials never leak across orgs
	_, err = r.Resolve(ctx, "org2", "TWILIO", "ACCOUNT_SID")
	assert.ErrorIs(t, err, ErrNotFound)

	r.Delete("org1", "TWILIO", "ACCOUNT_SID")
	_, err = r.Resolve(ctx, "org1", "TWILIO", "ACCOUNT_SID")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBundle(t *testing.T) {
	r := NewStaticResolver(nil)
	ctx := context.Background()

	r.Set("org1", "TWILIO", "ACCOUNT_SID", "AC123")
	r.Set("org1", "TWILIO", "AUTH_TOKEN", "tok456")

	creds, err := Bundle(ctx, r, "org1", "TWILIO", "ACCOUNT_SID", "AUTH_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "AC123", creds["ACCOUNT_SID"])
	assert.Equal(t, "tok456", creds["AUTH_TOKEN"])
}

func TestBundle_MissingKeyNamesCredential(t *testing.T) {
	r := NewStaticResolver(nil)
	ctx := context.Background()

	r.Set("org1", "TWILIO", "ACCOUNT_SID", "AC123")

	_, err := Bundle(ctx, r, "org1", "TWILIO", "ACCOUNT_SID", "AUTH_TOKEN")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var nfe *NotFoundError
	require.True(t, errors.As(err, &nfe))
	assert.Equal(t, "org1_TWILIO_AUTH_TOKEN", nfe.Name)
	assert.Contains(t, err.Error(), "org1_TWILIO_AUTH_TOKEN")
}

func TestMaskSecretName(t *testing.T) {
	assert.Equal(t, "org1_RESEND_***", maskSecretName("org1_RESEND_API_KEY"))
	assert.Equal(t, "***", maskSecretName("short"))
}
