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

package dispatch

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			ID:      fmt.Sprintf("item-%d", i),
			Payload: map[string]interface{}{"n": i},
		}
	}
	return items
}

func TestDispatchAllSucceed(t *testing.T) {
	d := NewDispatcher(0)
	items := makeItems(100)

	summary := d.Dispatch(context.Background(), items, func(ctx context.Context, item Item) (interface{}, error) {
		return map[string]interface{}{"echo": item.ID}, nil
	})

	assert.Equal(t, 100, summary.Total)
	assert.Equal(t, 100, summary.Sent)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Results, 100)

	for i, r := range summary.Results {
		assert.Equal(t, i, r.Index, "results keep input order")
		assert.Equal(t, fmt.Sprintf("item-%d", i), r.ID)
		assert.Equal(t, StatusSent, r.Status)
		assert.Empty(t, r.Error)
	}
}

func TestDispatchAllFail(t *testing.T) {
	d := NewDispatcher(0)
	items := makeItems(100)

	summary := d.Dispatch(context.Background(), items, func(ctx context.Context, item Item) (interface{}, error) {
		return nil, fmt.Errorf("provider rejected %s", item.ID)
	})

	assert.Equal(t, 100, summary.Total)
	assert.Equal(t, 0, summary.Sent)
	assert.Equal(t, 100, summary.Failed)

	for i, r := range summary.Results {
		assert.Equal(t, StatusFailed, r.Status)
		assert.Equal(t, fmt.Sprintf("provider rejected item-%d", i), r.Error)
	}
}

func TestDispatchMixedOutcomes(t *testing.T) {
	d := NewDispatcher(0)
	items := makeItems(100)

	summary := d.Dispatch(context.Background(), items, func(ctx context.Context, item Item) (interface{}, error) {
		n := item.Payload["n"].(int)
		if n%3 == 0 {
			return nil, fmt.Errorf("boom %d", n)
		}
		return n, nil
	})

	assert.Equal(t, 100, summary.Total)
	assert.Equal(t, summary.Total, summary.Sent+summary.Failed)
	assert.Equal(t, 34, summary.Failed) // 0,3,...,99
	assert.Equal(t, 66, summary.Sent)

	for i, r := range summary.Results {
		if i%3 == 0 {
			assert.Equal(t, StatusFailed, r.Status, "item %d", i)
		} else {
			assert.Equal(t, StatusSent, r.Status, "item %d", i)
			assert.Equal(t, i, r.Output)
		}
	}
}

func TestDispatchIsolatesPanics(t *testing.T) {
	d := NewDispatcher(0)
	items := makeItems(5)

	summary := d.Dispatch(context.Background(), items, func(ctx context.Context, item Item) (interface{}, error) {
		if item.ID == "item-2" {
			panic("bad adapter")
		}
		return "ok", nil
	})

	assert.Equal(t, 4, summary.Sent)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, StatusFailed, summary.Results[2].Status)
	assert.Contains(t, summary.Results[2].Error, "panic: bad adapter")
}

func TestDispatchRespectsConcurrencyCap(t *testing.T) {
	d := NewDispatcher(3)
	items := makeItems(30)

	var inFlight, peak int32
	summary := d.Dispatch(context.Background(), items, func(ctx context.Context, item Item) (interface{}, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		defer atomic.AddInt32(&inFlight, -1)
		return nil, nil
	})

	assert.Equal(t, 30, summary.Sent)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestDispatchEmptyBatch(t *testing.T) {
	d := NewDispatcher(0)

	summary := d.Dispatch(context.Background(), nil, func(ctx context.Context, item Item) (interface{}, error) {
		t.Fatal("send must not be called")
		return nil, nil
	})

	assert.Equal(t, 0, summary.Total)
	assert.Equal(t, 0, summary.Sent)
	assert.Equal(t, 0, summary.Failed)
	assert.NotNil(t, summary.Results)
}
