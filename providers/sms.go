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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultSMSBaseURL = "https://api.twilio.com"

// SMSAdapter delivers SMS through a Twilio-compatible API.
// Credential keys: ACCOUNT_SID, AUTH_TOKEN, FROM_NUMBER.
type SMSAdapter struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSMSAdapter creates an SMS adapter against the production endpoint
func NewSMSAdapter() *SMSAdapter {
	return &SMSAdapter{
		BaseURL:    defaultSMSBaseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *SMSAdapter) Name() string { return "sms" }

// Send posts one message. Payload fields: to, body. The sender number comes
// from the organization's FROM_NUMBER credential.
func (a *SMSAdapter) Send(ctx context.Context, payload map[string]interface{}, creds map[string]string) (*Receipt, error) {
	sid, err := requireCred(creds, a.Name(), "ACCOUNT_SID")
	if err != nil {
		return nil, err
	}
	token, err := requireCred(creds, a.Name(), "AUTH_TOKEN")
	if err != nil {
		return nil, err
	}
	from, err := requireCred(creds, a.Name(), "FROM_NUMBER")
	if err != nil {
		return nil, err
	}

	to, err := requireString(payload, "to")
	if err != nil {
		return nil, err
	}
	body, err := requireString(payload, "body")
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", a.BaseURL, sid)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create sms request: %w", err)
	}
	req.SetBasicAuth(sid, token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, NewError(a.Name(), 0, "request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, NewError(a.Name(), resp.StatusCode, "provider rejected sms: %s", string(raw))
	}

	var result struct {
		Sid    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, NewError(a.Name(), resp.StatusCode, "failed to decode provider response: %v", err)
	}

	return &Receipt{
		ID:     result.Sid,
		Detail: map[string]interface{}{"status": result.Status},
	}, nil
}
