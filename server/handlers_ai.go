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
	"strconv"

	"github.com/gorilla/mux"

	"relaycore/platform/jobs"
	"relaycore/platform/providers"
	"relaycore/platform/tenancy"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	var req struct {
		Name string `json:"name"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	id, err := s.orch.CreateSession(r.Context(), rc.Partition, req.Name)
	if err != nil {
		sendMappedError(w, err)
		return
	}

	sendJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

func (s *Server) handlePatchSession(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	var req struct {
		Name *string `json:"name"`
		End  bool    `json:"end"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	sessionID := mux.Vars(r)["id"]
	if err := s.orch.PatchSession(r.Context(), rc.Partition, sessionID, jobs.SessionPatch{Name: req.Name, End: req.End}); err != nil {
		sendMappedError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]string{"session_id": sessionID})
}

func (s *Server) handleAppendMessage(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	var req struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	id, err := s.orch.AppendMessage(r.Context(), rc.Partition, mux.Vars(r)["id"], req.Role, req.Content)
	if err != nil {
		sendMappedError(w, err)
		return
	}

	sendJSON(w, http.StatusCreated, map[string]string{"message_id": id})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	page, err := s.orch.ListMessages(r.Context(), rc.Partition, mux.Vars(r)["id"], limit, r.URL.Query().Get("cursor"))
	if err != nil {
		sendMappedError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"items":       page.Items,
		"next_cursor": page.NextCursor,
	})
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	vars := mux.Vars(r)

	obj, err := s.orch.GetMessage(r.Context(), rc.Partition, vars["id"], vars["mid"])
	if err != nil {
		sendMappedError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, obj)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	vars := mux.Vars(r)

	if err := s.orch.DeleteMessage(r.Context(), rc.Partition, vars["id"], vars["mid"]); err != nil {
		sendMappedError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"status": "deleted",
		"id":     vars["mid"],
	})
}

// askRequest is the body shared by ask and context jobs: an optional prior
// conversation plus the new message or task.
type askRequest struct {
	History []providers.ChatMessage `json:"history"`
	Message string                  `json:"message"`
	Task    string                  `json:"task"`
}

// handleAsk accepts a completion request and answers 202 with the job's
// handle; the model call runs in the worker pool.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	var req askRequest
	if !readJSON(w, r, &req) {
		return
	}

	id, err := s.orch.Ask(r.Context(), rc.Partition, rc.OrgID, mux.Vars(r)["id"], req.History, req.Message)
	if err != nil {
		sendMappedError(w, err)
		return
	}
	jobsSubmittedTotal.WithLabelValues(jobs.TypeAskJob).Inc()

	sendJSON(w, http.StatusAccepted, map[string]string{"message_id": id})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	var req askRequest
	if !readJSON(w, r, &req) {
		return
	}

	id, err := s.orch.Context(r.Context(), rc.Partition, rc.OrgID, mux.Vars(r)["id"], req.History, req.Task)
	if err != nil {
		sendMappedError(w, err)
		return
	}
	jobsSubmittedTotal.WithLabelValues(jobs.TypeCtxJob).Inc()

	sendJSON(w, http.StatusAccepted, map[string]string{"ctx_id": id})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	vars := mux.Vars(r)

	status, err := s.orch.GetJobStatus(r.Context(), rc.Partition, vars["id"], vars["jobID"])
	if err != nil {
		sendMappedError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]string{"status": status})
}
