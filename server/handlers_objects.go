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
	"strings"

	"github.com/gorilla/mux"

	"relaycore/platform/store"
	"relaycore/platform/tenancy"
)

// createObjectRequest is the write body for object creation
type createObjectRequest struct {
	Data     map[string]interface{} `json:"data"`
	Metadata map[string]interface{} `json:"metadata"`
	Links    []string               `json:"links"`
}

func (s *Server) handleCreateObject(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	objType := mux.Vars(r)["type"]

	var req createObjectRequest
	if !readJSON(w, r, &req) {
		return
	}

	obj, err := rc.Partition.Create(r.Context(), objType, req.Data, req.Metadata, req.Links)
	if err != nil {
		sendMappedError(w, err)
		return
	}

	sendJSON(w, http.StatusCreated, obj)
}

// listOptionsFromQuery builds ListOptions from the request's query string.
// Unknown query keys with a data./metadata. prefix become filters.
func listOptionsFromQuery(r *http.Request) store.ListOptions {
	q := r.URL.Query()

	opts := store.ListOptions{
		Cursor: q.Get("cursor"),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = limit
	}
	if skip, err := strconv.Atoi(q.Get("skip")); err == nil {
		opts.Skip = skip
	}
	if q.Get("include_deleted") != "true" {
		opts.ExcludeDeleted = true
	}

	for key, values := range q {
		if len(values) == 0 {
			continue
		}
		if strings.HasPrefix(key, "data.") || strings.HasPrefix(key, "metadata.") {
			if opts.Filter == nil {
				opts.Filter = map[string]interface{}{}
			}
			opts.Filter[key] = values[0]
		}
	}

	return opts
}

func (s *Server) handleListObjects(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	objType := mux.Vars(r)["type"]

	page, err := rc.Partition.List(r.Context(), objType, listOptionsFromQuery(r))
	if err != nil {
		sendMappedError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"items":       page.Items,
		"next_cursor": page.NextCursor,
	})
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	vars := mux.Vars(r)

	obj, err := rc.Partition.Get(r.Context(), vars["id"])
	if err != nil {
		sendMappedError(w, err)
		return
	}
	if obj.Type != vars["type"] {
		sendError(w, "object not found", http.StatusNotFound)
		return
	}

	sendJSON(w, http.StatusOK, obj)
}

// updateObjectRequest is the partial-update body. Links replace wholesale;
// increments apply counter deltas to numeric data fields.
type updateObjectRequest struct {
	Data       map[string]interface{} `json:"data"`
	Metadata   map[string]interface{} `json:"metadata"`
	Links      *[]string              `json:"links"`
	Increments map[string]int64       `json:"increments"`
}

func (s *Server) handleUpdateObject(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	vars := mux.Vars(r)

	var req updateObjectRequest
	if !readJSON(w, r, &req) {
		return
	}

	patch := store.Patch{
		Data:       req.Data,
		Metadata:   req.Metadata,
		Links:      req.Links,
		Increments: req.Increments,
	}
	if patch.Empty() {
		sendError(w, "update requires at least one change", http.StatusBadRequest)
		return
	}

	// the path's type must match before anything is written
	if !s.objectInScope(w, r, rc, vars["id"], vars["type"]) {
		return
	}

	obj, err := rc.Partition.Update(r.Context(), vars["id"], patch)
	if err != nil {
		sendMappedError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, obj)
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	vars := mux.Vars(r)

	if !s.objectInScope(w, r, rc, vars["id"], vars["type"]) {
		return
	}

	if err := rc.Partition.SoftDelete(r.Context(), vars["id"]); err != nil {
		sendMappedError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"status": "deleted",
		"id":     vars["id"],
	})
}

// objectInScope verifies the object exists under the path's type, writing a
// 404 otherwise. Mutating handlers call this before touching the store so a
// mismatched type path never leaves a partial write behind.
func (s *Server) objectInScope(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext, id, typ string) bool {
	obj, err := rc.Partition.Get(r.Context(), id)
	if err != nil {
		sendMappedError(w, err)
		return false
	}
	if obj.Type != typ {
		sendError(w, "object not found", http.StatusNotFound)
		return false
	}
	return true
}

func (s *Server) handleObjectChildren(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	vars := mux.Vars(r)

	children, err := rc.Partition.FindByLink(r.Context(), vars["id"])
	if err != nil {
		sendMappedError(w, err)
		return
	}
	if children == nil {
		children = []*store.Object{}
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"items": children,
	})
}

// handlePublicList serves a tenant's published objects anonymously.
// Soft-deleted objects are always excluded here.
func (s *Server) handlePublicList(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	rc, err := s.resolver.ResolvePublic(vars["orgID"])
	if err != nil {
		sendMappedError(w, err)
		return
	}

	opts := listOptionsFromQuery(r)
	opts.ExcludeDeleted = true

	page, err := rc.Partition.List(r.Context(), vars["type"], opts)
	if err != nil {
		sendMappedError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"items":       page.Items,
		"next_cursor": page.NextCursor,
	})
}

func (s *Server) handlePublicGet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	rc, err := s.resolver.ResolvePublic(vars["orgID"])
	if err != nil {
		sendMappedError(w, err)
		return
	}

	obj, err := rc.Partition.Get(r.Context(), vars["id"])
	if err != nil {
		sendMappedError(w, err)
		return
	}
	if obj.Type != vars["type"] || obj.Deleted() {
		sendError(w, "object not found", http.StatusNotFound)
		return
	}

	sendJSON(w, http.StatusOK, obj)
}
