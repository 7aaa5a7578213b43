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
	"sync"
	"time"
)

// tokenResponse is the provider's OAuth client-credentials grant response
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// PaymentToken is handed to frontend callers for direct provider calls
type PaymentToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// PaymentTokenClient obtains OAuth access tokens from the payment provider
// via the client-credentials grant. Tokens are cached per organization until
// shortly before expiry so a burst of frontend sessions does not hammer the
// provider's token endpoint.
// Credential keys: CLIENT_ID, CLIENT_SECRET.
type PaymentTokenClient struct {
	BaseURL    string
	HTTPClient *http.Client

	mu     sync.Mutex
	tokens map[string]cachedToken // keyed by client id
}

type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

// expiryBuffer keeps us from handing out tokens about to die mid-request
const expiryBuffer = 5 * time.Minute

// NewPaymentTokenClient creates a token client for the given provider URL
func NewPaymentTokenClient(baseURL string) *PaymentTokenClient {
	return &PaymentTokenClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		tokens:     make(map[string]cachedToken),
	}
}

// Token returns a valid access token, fetching a fresh one when the cached
// token is absent or near expiry.
func (c *PaymentTokenClient) Token(ctx context.Context, creds map[string]string) (*PaymentToken, error) {
	clientID, err := requireCred(creds, "payments", "CLIENT_ID")
	if err != nil {
		return nil, err
	}
	clientSecret, err := requireCred(creds, "payments", "CLIENT_SECRET")
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.tokens[clientID]; ok && time.Now().Before(cached.expiresAt) {
		return &PaymentToken{
			AccessToken: cached.accessToken,
			ExpiresIn:   int64(time.Until(cached.expiresAt).Seconds()),
		}, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, NewError("payments", 0, "token request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, NewError("payments", resp.StatusCode, "token request rejected: %s", string(raw))
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, NewError("payments", resp.StatusCode, "failed to decode token response: %v", err)
	}
	if token.AccessToken == "" {
		return nil, NewError("payments", resp.StatusCode, "token response missing access_token")
	}

	ttl := time.Duration(token.ExpiresIn) * time.Second
	c.tokens[clientID] = cachedToken{
		accessToken: token.AccessToken,
		expiresAt:   time.Now().Add(ttl - expiryBuffer),
	}

	return &PaymentToken{
		AccessToken: token.AccessToken,
		ExpiresIn:   int64(token.ExpiresIn),
	}, nil
}

// Invalidate drops a cached token, forcing a refresh on next use
func (c *PaymentTokenClient) Invalidate(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, clientID)
}
