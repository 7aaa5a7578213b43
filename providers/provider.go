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

// Package providers holds the outbound integration adapters: transactional
// email, SMS, media upload signing, payment-provider OAuth tokens, and the
// AI completion backend. Adapters receive per-organization credentials on
// every call; they hold no tenant state of their own.
package providers

import (
	"context"
	"fmt"
)

// Receipt is the provider-side acknowledgement of a delivered payload
type Receipt struct {
	ID     string                 `json:"id"`
	Detail map[string]interface{} `json:"detail,omitempty"`
}

// Adapter sends one payload through an external provider. Credentials are
// resolved by the caller for the requesting organization; the adapter
// decides which keys it needs.
type Adapter interface {
	Name() string
	Send(ctx context.Context, payload map[string]interface{}, creds map[string]string) (*Receipt, error)
}

// Error reports a provider-side failure with enough context to log and none
// of the credential material.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// NewError creates a provider Error with a formatted message
func NewError(provider string, statusCode int, format string, args ...interface{}) *Error {
	return &Error{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    fmt.Sprintf(format, args...),
	}
}

// InvalidPayloadError marks a payload the caller must fix (missing or
// malformed fields), as opposed to a provider-side fault.
type InvalidPayloadError struct {
	Message string
}

func (e *InvalidPayloadError) Error() string {
	return e.Message
}

// requireString extracts a mandatory string field from a payload
func requireString(payload map[string]interface{}, field string) (string, error) {
	v, ok := payload[field]
	if !ok {
		return "", &InvalidPayloadError{Message: fmt.Sprintf("missing required field: %s", field)}
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", &InvalidPayloadError{Message: fmt.Sprintf("field %s must be a non-empty string", field)}
	}
	return s, nil
}

// requireCred extracts a mandatory credential
func requireCred(creds map[string]string, provider, key string) (string, error) {
	v, ok := creds[key]
	if !ok || v == "" {
		return "", NewError(provider, 0, "missing credential %s", key)
	}
	return v, nil
}
