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

	"relaycore/platform/tenancy"
)

// handleBind switches the caller's active organization. It sits outside the
// tenant middleware because a user with no active binding yet must still be
// able to establish one; identity and header validation happen here instead.
func (s *Server) handleBind(w http.ResponseWriter, r *http.Request) {
	userID := s.userIDFromRequest(r)
	if userID == "" {
		sendError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	rc, err := s.resolver.Bind(r.Context(), userID, r.Header.Get(tenancy.OrgHeader), r.Header.Get(tenancy.SourceHeader))
	if err != nil {
		sendMappedError(w, err)
		return
	}

	s.logger.Info(rc.OrgID, "", "organization binding switched", map[string]interface{}{
		"user_id": userID,
		"source":  rc.Source,
	})

	sendJSON(w, http.StatusOK, map[string]string{
		"org_id":  rc.OrgID,
		"user_id": rc.UserID,
	})
}

// handleGetBinding reports the caller's currently active organization
func (s *Server) handleGetBinding(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	sendJSON(w, http.StatusOK, map[string]string{
		"org_id":  rc.OrgID,
		"user_id": rc.UserID,
		"role":    rc.Role,
	})
}
