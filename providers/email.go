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

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultEmailBaseURL = "https://api.resend.com"

// EmailAdapter delivers transactional email through a Resend-compatible API.
// Credential keys: API_KEY.
type EmailAdapter struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewEmailAdapter creates an email adapter against the production endpoint
func NewEmailAdapter() *EmailAdapter {
	return &EmailAdapter{
		BaseURL:    defaultEmailBaseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *EmailAdapter) Name() string { return "email" }

// Send posts one email. Payload fields: from, to, subject, plus html or text.
func (a *EmailAdapter) Send(ctx context.Context, payload map[string]interface{}, creds map[string]string) (*Receipt, error) {
	apiKey, err := requireCred(creds, a.Name(), "API_KEY")
	if err != nil {
		return nil, err
	}

	from, err := requireString(payload, "from")
	if err != nil {
		return nil, err
	}
	to, err := requireString(payload, "to")
	if err != nil {
		return nil, err
	}
	subject, err := requireString(payload, "subject")
	if err != nil {
		return nil, err
	}

	html, _ := payload["html"].(string)
	text, _ := payload["text"].(string)
	if html == "" && text == "" {
		return nil, &InvalidPayloadError{Message: "email requires html or text content"}
	}

	body := map[string]interface{}{
		"from":    from,
		"to":      []string{to},
		"subject": subject,
	}
	if html != "" {
		body["html"] = html
	}
	if text != "" {
		body["text"] = text
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.BaseURL+"/emails", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, NewError(a.Name(), 0, "request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, NewError(a.Name(), resp.StatusCode, "provider rejected email: %s", string(raw))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, NewError(a.Name(), resp.StatusCode, "failed to decode provider response: %v", err)
	}

	return &Receipt{ID: result.ID}, nil
}
