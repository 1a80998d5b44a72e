// Copyright 2024 The corenet Authors
// This file is part of the corenet library.
//
// The corenet library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The corenet library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the corenet library. If not, see <http://www.gnu.org/licenses/>.

package rpc

import (
	"context"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/dbasu/corenet/crypto"
)

// FanoutQueue deduplicates candidates of type T by their typed key across
// its entire lifetime (not just its current contents), caps its live size
// via a caller-supplied cleanup applied after every insert, and yields
// candidates in current queue order. Once a key has been added it can
// never be added again, even if cleanup later drops it from the live
// queue — this is what makes add(nodes) idempotent (testable property 9).
type FanoutQueue[T any] struct {
	mu       sync.Mutex
	keyFn    func(T) crypto.TypedKey
	cleanup  func([]T) []T
	everSeen mapset.Set[crypto.TypedKey]
	queue    []T
}

// NewFanoutQueue builds an empty queue. cleanup is applied to the live
// queue after every Add and may reorder or truncate it; it must not be
// used to reintroduce members (everSeen dedup happens before cleanup
// runs, so cleanup only ever sees already-deduplicated input).
func NewFanoutQueue[T any](keyFn func(T) crypto.TypedKey, cleanup func([]T) []T) *FanoutQueue[T] {
	return &FanoutQueue[T]{
		keyFn:    keyFn,
		cleanup:  cleanup,
		everSeen: mapset.NewSet[crypto.TypedKey](),
	}
}

// Add merges candidates into the queue, skipping any whose key has ever
// been added before (in this call or a prior one), then applies cleanup.
// Returns the count of genuinely new candidates queued.
func (q *FanoutQueue[T]) Add(candidates []T) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	added := 0
	for _, c := range candidates {
		key := q.keyFn(c)
		if q.everSeen.Contains(key) {
			continue
		}
		q.everSeen.Add(key)
		q.queue = append(q.queue, c)
		added++
	}
	if q.cleanup != nil {
		q.queue = q.cleanup(q.queue)
	}
	return added
}

// Next pops the front candidate, if any.
func (q *FanoutQueue[T]) Next() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.queue) == 0 {
		return zero, false
	}
	next := q.queue[0]
	q.queue = q.queue[1:]
	return next, true
}

// Len reports the number of candidates currently live in the queue (not
// the total ever seen).
func (q *FanoutQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// CallResult is what a per-candidate RPC attempt reports back to Run.
type CallResult[T any] struct {
	Success bool
	Merge   []T // additional candidates discovered by this call, fed back into Add
}

// Run drives the pop/call/merge loop described in spec §4.4: pop one
// candidate, invoke call, merge any candidates it returns back into the
// queue, and repeat until the queue empties, successCount reaches count,
// checkDone reports true, or ctx is cancelled.
func Run[T any](ctx context.Context, q *FanoutQueue[T], count int, checkDone func() bool, call func(context.Context, T) CallResult[T]) int {
	successes := 0
	for {
		if ctx.Err() != nil {
			return successes
		}
		if count > 0 && successes >= count {
			return successes
		}
		if checkDone != nil && checkDone() {
			return successes
		}
		candidate, ok := q.Next()
		if !ok {
			return successes
		}
		result := call(ctx, candidate)
		if result.Success {
			successes++
		}
		if len(result.Merge) > 0 {
			q.Add(result.Merge)
		}
	}
}
