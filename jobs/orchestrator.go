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

// Package jobs models AI sessions, messages, and long-running jobs as typed
// objects in the tenant's partition. Asks and context builds return a handle
// immediately; a worker pool resolves the provider call out-of-band and
// performs the single allowed pending→done or pending→error transition.
package jobs

import (
	"context"
	"fmt"
	"time"

	"relaycore/platform/providers"
	"relaycore/platform/store"
)

// Object types managed by the orchestrator
const (
	TypeSession = "AiSession"
	TypeMessage = "AiMessage"
	TypeAskJob  = "AiAskJob"
	TypeCtxJob  = "AiCtxJob"
)

// Job statuses. Pending is the only initial state; Done and Error are
// terminal and never left once reached.
const (
	StatusPending = "pending"
	StatusDone    = "done"
	StatusError   = "error"
)

// Message roles accepted by AppendMessage and Ask history
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// MaxAskBytes caps the combined history+prompt size of Ask and Context
const MaxAskBytes = 1 << 20

// PayloadTooLargeError rejects an ask/context body over the size ceiling
type PayloadTooLargeError struct {
	Size  int
	Limit int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload of %d bytes exceeds the %d byte limit", e.Size, e.Limit)
}

func validRole(role string) bool {
	return role == RoleUser || role == RoleAssistant || role == RoleSystem
}

// Orchestrator coordinates session/message CRUD and async job submission.
// All state lives in the partition's object store; the orchestrator itself
// is stateless apart from the worker pool.
type Orchestrator struct {
	pool *WorkerPool
}

// NewOrchestrator wires the orchestrator to its worker pool
func NewOrchestrator(pool *WorkerPool) *Orchestrator {
	return &Orchestrator{pool: pool}
}

// CreateSession creates a named AiSession and returns its id
func (o *Orchestrator) CreateSession(ctx context.Context, part store.Store, name string) (string, error) {
	if name == "" {
		return "", store.NewValidationError("session name is required")
	}

	obj, err := part.Create(ctx, TypeSession, map[string]interface{}{
		"name": name,
	}, nil, nil)
	if err != nil {
		return "", err
	}
	return obj.ID, nil
}

// SessionPatch describes a session update: a rename, an end flag, or both
type SessionPatch struct {
	Name *string
	End  bool
}

// PatchSession renames a session and/or stamps its end time
func (o *Orchestrator) PatchSession(ctx context.Context, part store.Store, sessionID string, patch SessionPatch) error {
	if patch.Name == nil && !patch.End {
		return store.NewValidationError("patch requires a name or an end flag")
	}
	if patch.Name != nil && *patch.Name == "" {
		return store.NewValidationError("session name cannot be empty")
	}

	if _, err := o.getTyped(ctx, part, sessionID, TypeSession); err != nil {
		return err
	}

	data := map[string]interface{}{}
	if patch.Name != nil {
		data["name"] = *patch.Name
	}
	if patch.End {
		data["session_end"] = time.Now().UTC().Format(time.RFC3339Nano)
	}

	_, err := part.Update(ctx, sessionID, store.Patch{Data: data})
	return err
}

// AppendMessage adds one message to a session. Messages are synchronous:
// the returned id identifies a complete object, never a pending job.
func (o *Orchestrator) AppendMessage(ctx context.Context, part store.Store, sessionID, role, content string) (string, error) {
	if !validRole(role) {
		return "", store.NewValidationError("invalid role %q: must be user, assistant, or system", role)
	}
	if content == "" {
		return "", store.NewValidationError("message content is required")
	}

	if _, err := o.getTyped(ctx, part, sessionID, TypeSession); err != nil {
		return "", err
	}

	obj, err := part.Create(ctx, TypeMessage,
		map[string]interface{}{
			"role":    role,
			"content": content,
		},
		map[string]interface{}{"session_id": sessionID},
		[]string{sessionID})
	if err != nil {
		return "", err
	}
	return obj.ID, nil
}

// GetMessage returns a live message; soft-deleted messages read as absent
func (o *Orchestrator) GetMessage(ctx context.Context, part store.Store, sessionID, messageID string) (*store.Object, error) {
	obj, err := o.getTyped(ctx, part, messageID, TypeMessage)
	if err != nil {
		return nil, err
	}
	if obj.Deleted() || obj.Metadata["session_id"] != sessionID {
		return nil, store.ErrNotFound
	}
	return obj, nil
}

// ListMessages pages through a session's live messages in append order
func (o *Orchestrator) ListMessages(ctx context.Context, part store.Store, sessionID string, limit int, cursor string) (*store.Page, error) {
	return part.List(ctx, TypeMessage, store.ListOptions{
		Filter:         map[string]interface{}{"metadata.session_id": sessionID},
		Limit:          limit,
		Cursor:         cursor,
		ExcludeDeleted: true,
	})
}

// DeleteMessage soft-deletes one message of the session
func (o *Orchestrator) DeleteMessage(ctx context.Context, part store.Store, sessionID, messageID string) error {
	if _, err := o.GetMessage(ctx, part, sessionID, messageID); err != nil {
		return err
	}
	return part.SoftDelete(ctx, messageID)
}

// Ask submits a completion request. The pending job object is created and
// its id returned before the model call starts; callers poll GetJobStatus.
func (o *Orchestrator) Ask(ctx context.Context, part store.Store, orgID, sessionID string, history []providers.ChatMessage, message string) (string, error) {
	if message == "" {
		return "", store.NewValidationError("message is required")
	}
	if err := validateHistory(history); err != nil {
		return "", err
	}
	if size := payloadSize(history, message); size > MaxAskBytes {
		return "", &PayloadTooLargeError{Size: size, Limit: MaxAskBytes}
	}

	if _, err := o.getTyped(ctx, part, sessionID, TypeSession); err != nil {
		return "", err
	}

	return o.enqueue(ctx, part, orgID, sessionID, TypeAskJob, history, message)
}

// Context submits a context-build request; same mechanics as Ask but the
// handle is reported as ctx_id.
func (o *Orchestrator) Context(ctx context.Context, part store.Store, orgID, sessionID string, history []providers.ChatMessage, task string) (string, error) {
	if task == "" {
		return "", store.NewValidationError("task is required")
	}
	if err := validateHistory(history); err != nil {
		return "", err
	}
	if size := payloadSize(history, task); size > MaxAskBytes {
		return "", &PayloadTooLargeError{Size: size, Limit: MaxAskBytes}
	}

	if _, err := o.getTyped(ctx, part, sessionID, TypeSession); err != nil {
		return "", err
	}

	return o.enqueue(ctx, part, orgID, sessionID, TypeCtxJob, history, task)
}

// GetJobStatus reports a job's current status within its session
func (o *Orchestrator) GetJobStatus(ctx context.Context, part store.Store, sessionID, jobID string) (string, error) {
	obj, err := part.Get(ctx, jobID)
	if err != nil {
		return "", err
	}
	if obj.Type != TypeAskJob && obj.Type != TypeCtxJob {
		return "", store.ErrNotFound
	}
	if obj.Metadata["session_id"] != sessionID {
		return "", store.ErrNotFound
	}

	status, _ := obj.Data["status"].(string)
	if status == "" {
		return "", fmt.Errorf("job %s has no status field", jobID)
	}
	return status, nil
}

// enqueue creates the pending job object and hands it to the pool
func (o *Orchestrator) enqueue(ctx context.Context, part store.Store, orgID, sessionID, jobType string, history []providers.ChatMessage, prompt string) (string, error) {
	obj, err := part.Create(ctx, jobType,
		map[string]interface{}{
			"status": StatusPending,
			"prompt": prompt,
		},
		map[string]interface{}{"session_id": sessionID},
		[]string{sessionID})
	if err != nil {
		return "", err
	}

	o.pool.Submit(Task{
		Partition: part,
		OrgID:     orgID,
		SessionID: sessionID,
		JobID:     obj.ID,
		History:   history,
		Prompt:    prompt,
	})

	return obj.ID, nil
}

// getTyped fetches an object and verifies its discriminator
func (o *Orchestrator) getTyped(ctx context.Context, part store.Store, id, typ string) (*store.Object, error) {
	obj, err := part.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if obj.Type != typ {
		return nil, store.ErrNotFound
	}
	return obj, nil
}

func validateHistory(history []providers.ChatMessage) error {
	for i, m := range history {
		if !validRole(m.Role) {
			return store.NewValidationError("history[%d]: invalid role %q", i, m.Role)
		}
		if m.Content == "" {
			return store.NewValidationError("history[%d]: content is required", i)
		}
	}
	return nil
}

func payloadSize(history []providers.ChatMessage, prompt string) int {
	size := len(prompt)
	for _, m := range history {
		size += len(m.Role) + len(m.Content)
	}
	return size
}
