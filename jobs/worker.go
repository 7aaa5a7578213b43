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

package jobs

import (
	"context"
	"sync"
	"time"

	"relaycore/platform/credentials"
	"relaycore/platform/providers"
	"relaycore/platform/shared/logger"
	"relaycore/platform/store"
)

// AIProvider is the credential namespace for the AI backend
const AIProvider = "OPENAI"

// Task is one queued completion job. The worker that picks it up owns the
// terminal pending→done/error transition for JobID.
type Task struct {
	Partition store.Store
	OrgID     string
	SessionID string
	JobID     string
	History   []providers.ChatMessage
	Prompt    string
}

// WorkerPool resolves queued tasks against the AI backend. A fixed worker
// count drains a bounded channel; when the channel is full a task runs on
// its own goroutine so submission never blocks a request handler.
type WorkerPool struct {
	queue       chan Task
	workers     int
	wg          sync.WaitGroup
	overflow    sync.WaitGroup
	backend     providers.AIBackend
	creds       credentials.Resolver
	callTimeout time.Duration
	logger      *logger.Logger

	mu     sync.Mutex
	closed bool
}

// NewWorkerPool starts workers draining a queue of the given size
func NewWorkerPool(workers, queueSize int, backend providers.AIBackend, creds credentials.Resolver) *WorkerPool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	p := &WorkerPool{
		queue:       make(chan Task, queueSize),
		workers:     workers,
		backend:     backend,
		creds:       creds,
		callTimeout: 2 * time.Minute,
		logger:      logger.New("jobs"),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// Submit hands a task to the pool. Never blocks: a full queue spills the
// task onto a dedicated goroutine.
func (p *WorkerPool) Submit(task Task) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.failFast(task, "worker pool shut down")
		return
	}

	select {
	case p.queue <- task:
		p.mu.Unlock()
	default:
		p.overflow.Add(1)
		p.mu.Unlock()
		go func() {
			defer p.overflow.Done()
			p.run(task)
		}()
	}
}

// Shutdown stops intake and drains queued and overflow tasks
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		p.overflow.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		p.run(task)
	}
}

// run performs the provider call and the single terminal transition.
// The conditional update guards against a second worker (or a retry)
// flipping an already-terminal job.
func (p *WorkerPool) run(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), p.callTimeout)
	defer cancel()

	creds, err := credentials.Bundle(ctx, p.creds, task.OrgID, AIProvider, "API_KEY")
	if err != nil {
		p.finish(ctx, task, StatusError, map[string]interface{}{"error": err.Error()})
		return
	}

	reply, err := p.backend.Complete(ctx, task.History, task.Prompt, creds)
	if err != nil {
		p.finish(ctx, task, StatusError, map[string]interface{}{"error": err.Error()})
		return
	}

	p.finish(ctx, task, StatusDone, map[string]interface{}{"response": reply})
}

func (p *WorkerPool) finish(ctx context.Context, task Task, status string, extra map[string]interface{}) {
	swapped, err := task.Partition.CompareAndSwapData(ctx, task.JobID, "status", StatusPending, status, extra)
	if err != nil {
		p.logger.Error(task.OrgID, "", "job transition failed", map[string]interface{}{
			"job_id": task.JobID,
			"status": status,
			"error":  err.Error(),
		})
		return
	}
	if !swapped {
		p.logger.Warn(task.OrgID, "", "job already terminal, transition skipped", map[string]interface{}{
			"job_id": task.JobID,
			"status": status,
		})
		return
	}

	p.logger.Info(task.OrgID, "", "job resolved", map[string]interface{}{
		"job_id": task.JobID,
		"status": status,
	})
}

// failFast marks a task errored without running it; used after shutdown
func (p *WorkerPool) failFast(task Task, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.finish(ctx, task, StatusError, map[string]interface{}{"error": reason})
}
