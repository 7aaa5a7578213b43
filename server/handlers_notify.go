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
	"context"
	"net/http"

	"relaycore/platform/credentials"
	"relaycore/platform/dispatch"
	"relaycore/platform/providers"
	"relaycore/platform/tenancy"
)

// Secret-store namespaces per notification channel
const (
	emailProvider = "RESEND"
	smsProvider   = "TWILIO"
)

func (s *Server) handleSendEmail(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	s.handleSendOne(w, r, rc, s.email, emailProvider, "API_KEY")
}

func (s *Server) handleSendSMS(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	s.handleSendOne(w, r, rc, s.sms, smsProvider, "ACCOUNT_SID", "AUTH_TOKEN", "FROM_NUMBER")
}

// handleSendOne resolves the org's credentials for the channel and sends a
// single payload through its adapter.
func (s *Server) handleSendOne(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext, adapter providers.Adapter, provider string, keys ...string) {
	var payload map[string]interface{}
	if !readJSON(w, r, &payload) {
		return
	}

	creds, err := credentials.Bundle(r.Context(), s.creds, rc.OrgID, provider, keys...)
	if err != nil {
		sendMappedError(w, err)
		return
	}

	receipt, err := adapter.Send(r.Context(), payload, creds)
	if err != nil {
		dispatchItemsTotal.WithLabelValues(adapter.Name(), dispatch.StatusFailed).Inc()
		sendMappedError(w, err)
		return
	}
	dispatchItemsTotal.WithLabelValues(adapter.Name(), dispatch.StatusSent).Inc()

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"status": "sent",
		"id":     receipt.ID,
	})
}

// batchRequest is a list of independent payloads for one channel. IDs are
// optional caller correlation handles.
type batchRequest struct {
	Items []struct {
		ID      string                 `json:"id"`
		Payload map[string]interface{} `json:"payload"`
	} `json:"items"`
}

func (s *Server) handleBatchEmail(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	s.handleBatch(w, r, rc, s.email, emailProvider, "API_KEY")
}

func (s *Server) handleBatchSMS(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext) {
	s.handleBatch(w, r, rc, s.sms, smsProvider, "ACCOUNT_SID", "AUTH_TOKEN", "FROM_NUMBER")
}

// handleBatch fans a batch out concurrently. One failing item never aborts
// the rest; the response reports per-item outcomes plus aggregate counts.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request, rc *tenancy.RequestContext, adapter providers.Adapter, provider string, keys ...string) {
	var req batchRequest
	if !readJSON(w, r, &req) {
		return
	}

	// Credentials are per-org, not per-item: resolve once up front
	creds, err := credentials.Bundle(r.Context(), s.creds, rc.OrgID, provider, keys...)
	if err != nil {
		sendMappedError(w, err)
		return
	}

	items := make([]dispatch.Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = dispatch.Item{ID: it.ID, Payload: it.Payload}
	}

	summary := s.dispatcher.Dispatch(r.Context(), items, func(ctx context.Context, item dispatch.Item) (interface{}, error) {
		receipt, err := adapter.Send(ctx, item.Payload, creds)
		if err != nil {
			return nil, err
		}
		return receipt, nil
	})

	dispatchItemsTotal.WithLabelValues(adapter.Name(), dispatch.StatusSent).Add(float64(summary.Sent))
	dispatchItemsTotal.WithLabelValues(adapter.Name(), dispatch.StatusFailed).Add(float64(summary.Failed))

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"summary": map[string]int{
			"total":  summary.Total,
			"sent":   summary.Sent,
			"failed": summary.Failed,
		},
		"results": summary.Results,
	})
}
