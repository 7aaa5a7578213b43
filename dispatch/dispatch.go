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

// Package dispatch fans a batch of independent items out to concurrent
// workers with per-item failure isolation: one failing or panicking item
// never aborts its siblings, and the summary accounts for every item.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"relaycore/platform/shared/logger"
)

// Item is one unit of work in a batch. ID is caller-assigned and echoed in
// the result so callers can correlate outcomes; Payload is opaque to the
// dispatcher.
type Item struct {
	ID      string
	Payload map[string]interface{}
}

// SendFunc performs one item. The returned output is carried into the
// item's result verbatim.
type SendFunc func(ctx context.Context, item Item) (interface{}, error)

// Result is the outcome of a single item. Index matches the item's position
// in the input batch.
type Result struct {
	Index  int         `json:"index"`
	ID     string      `json:"id,omitempty"`
	Status string      `json:"status"` // "sent" or "failed"
	Output interface{} `json:"output,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Summary aggregates a whole batch. Total == Sent + Failed always holds.
type Summary struct {
	Total   int      `json:"total"`
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Results []Result `json:"results"`
}

const (
	// StatusSent marks an item whose SendFunc returned without error
	StatusSent = "sent"
	// StatusFailed marks an item that errored or panicked
	StatusFailed = "failed"
)

// Dispatcher runs batches. MaxConcurrent bounds in-flight items when
// positive; zero means one goroutine per item.
type Dispatcher struct {
	MaxConcurrent int
	Logger        *logger.Logger
}

// NewDispatcher creates a dispatcher with a concurrency cap
func NewDispatcher(maxConcurrent int) *Dispatcher {
	return &Dispatcher{
		MaxConcurrent: maxConcurrent,
		Logger:        logger.New("dispatch"),
	}
}

// Dispatch runs every item concurrently and waits for the whole batch.
// Results arrive in input order regardless of completion order. A panic in
// send is contained to its item and reported as a failed result.
func (d *Dispatcher) Dispatch(ctx context.Context, items []Item, send SendFunc) *Summary {
	summary := &Summary{
		Total:   len(items),
		Results: make([]Result, len(items)),
	}
	if len(items) == 0 {
		summary.Results = []Result{}
		return summary
	}

	var sem chan struct{}
	if d.MaxConcurrent > 0 {
		sem = make(chan struct{}, d.MaxConcurrent)
	}

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(idx int, it Item) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			summary.Results[idx] = d.runOne(ctx, idx, it, send)
		}(i, item)
	}
	wg.Wait()

	for _, r := range summary.Results {
		if r.Status == StatusSent {
			summary.Sent++
		} else {
			summary.Failed++
		}
	}

	if d.Logger != nil && summary.Failed > 0 {
		d.Logger.Warn("", "", "batch finished with failures", map[string]interface{}{
			"failed": summary.Failed,
			"total":  summary.Total,
		})
	}

	return summary
}

// runOne executes a single item, converting panics into failed results
func (d *Dispatcher) runOne(ctx context.Context, idx int, item Item, send SendFunc) (result Result) {
	result = Result{Index: idx, ID: item.ID}

	defer func() {
		if r := recover(); r != nil {
			result.Status = StatusFailed
			result.Error = fmt.Sprintf("panic: %v", r)
			if d.Logger != nil {
				d.Logger.Error("", "", "batch item panicked", map[string]interface{}{
					"index": idx,
					"panic": fmt.Sprintf("%v", r),
				})
			}
		}
	}()

	output, err := send(ctx, item)
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		return result
	}

	result.Status = StatusSent
	result.Output = output
	return result
}
