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
	"encoding/json"
	"errors"
	"net/http"

	"relaycore/platform/credentials"
	"relaycore/platform/jobs"
	"relaycore/platform/providers"
	"relaycore/platform/store"
	"relaycore/platform/tenancy"
)

// sendError writes the uniform {"error": message} response
func sendError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": message,
	})
}

// sendJSON writes a JSON body with the given status
func sendJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// readJSON decodes the request body into dst. A body over the service
// boundary cap answers 413; anything else undecodable answers 400.
func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			sendError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		sendError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps the error taxonomy to HTTP status codes. Anything not in
// the taxonomy is a 500; messages pass through untouched, they carry no
// credential material by construction.
func statusFor(err error) int {
	var verr *store.ValidationError
	var merr *tenancy.MissingOrgHeaderError
	var serr *tenancy.InvalidSourceError
	var ierr *providers.InvalidPayloadError
	var ferr *tenancy.ForbiddenError
	var perr *jobs.PayloadTooLargeError

	switch {
	case errors.As(err, &verr), errors.As(err, &merr), errors.As(err, &serr), errors.As(err, &ierr):
		return http.StatusBadRequest
	case errors.Is(err, tenancy.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &ferr), errors.Is(err, tenancy.ErrNoActiveOrganization):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &perr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, credentials.ErrNotFound):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// sendMappedError writes err with its taxonomy status
func sendMappedError(w http.ResponseWriter, err error) {
	sendError(w, err.Error(), statusFor(err))
}
