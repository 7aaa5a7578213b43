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

package server

import (
	"net/http"

	"relaycore/platform/credentials"
	"relaycore/platform/tenancy"
)

// Secret-store namespaces for the media and payment providers
const (
	mediaProvider   = "CLOUDINARY"
	paymentProvider = "AMADEUS"
)

// handleMediaSignature signs a set of upload parameters with the org's
// media API secret so browsers can upload directly to the media CDN.
func (s *Server) handleMediaSignature(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	var req struct {
		Params map[string]string `json:"params"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	creds, err := credentials.Bundle(r.Context(), s.creds, rc.OrgID, mediaProvider, "API_KEY", "API_SECRET")
	if err != nil {
		sendMappedError(w, err)
		return
	}

	sig, err := s.signer.Sign(req.Params, creds)
	if err != nil {
		sendMappedError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, sig)
}

// handlePaymentToken vends a short-lived OAuth access token for the org's
// payment account. The client caches per org, so repeated calls within the
// token's lifetime do not hit the provider.
func (s *Server) handlePaymentToken(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	creds, err := credentials.Bundle(r.Context(), s.creds, rc.OrgID, paymentProvider, "CLIENT_ID", "CLIENT_SECRET")
	if err != nil {
		sendMappedError(w, err)
		return
	}

	token, err := s.payments.Token(r.Context(), creds)
	if err != nil {
		sendMappedError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, token)
}
