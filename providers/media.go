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
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// UploadSignature authorizes one direct-to-CDN media upload
type UploadSignature struct {
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	APIKey    string `json:"apiKey"`
}

// MediaSigner produces upload signatures the Cloudinary way: the upload
// parameters are sorted by key, concatenated as k=v pairs joined with "&",
// the API secret is appended, and the whole string is SHA-1 hashed.
// Credential keys: API_KEY, API_SECRET.
type MediaSigner struct {
	// Now is swappable for tests
	Now func() time.Time
}

// NewMediaSigner creates a signer using wall-clock time
func NewMediaSigner() *MediaSigner {
	return &MediaSigner{Now: time.Now}
}

// Sign computes the signature for the given upload parameters. A timestamp
// parameter is added when the caller did not provide one; empty-valued
// parameters are excluded from the signed string.
func (s *MediaSigner) Sign(params map[string]string, creds map[string]string) (*UploadSignature, error) {
	apiKey, err := requireCred(creds, "media", "API_KEY")
	if err != nil {
		return nil, err
	}
	apiSecret, err := requireCred(creds, "media", "API_SECRET")
	if err != nil {
		return nil, err
	}

	signed := make(map[string]string, len(params)+1)
	for k, v := range params {
		if v != "" {
			signed[k] = v
		}
	}

	timestamp := s.Now().Unix()
	if ts, ok := signed["timestamp"]; ok {
		if _, err := fmt.Sscanf(ts, "%d", &timestamp); err != nil {
			return nil, &InvalidPayloadError{Message: "timestamp must be a unix epoch integer"}
		}
	} else {
		signed["timestamp"] = fmt.Sprintf("%d", timestamp)
	}

	keys := make([]string, 0, len(signed))
	for k := range signed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+signed[k])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + apiSecret))

	return &UploadSignature{
		Signature: hex.EncodeToString(sum[:]),
		Timestamp: timestamp,
		APIKey:    apiKey,
	}, nil
}
