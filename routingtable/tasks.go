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

package routingtable

import "time"

// PingCandidate names an entry due for a liveness ping.
type PingCandidate struct {
	NodeRef *NodeRef
	Due     time.Time
}

// groomKickQueueLocked runs bucket eviction for every (kind, index) marked
// dirty since the last tick, draining the queue.
func (rt *RoutingTable) groomKickQueueLocked() {
	for k := range rt.kickQueue {
		buckets, ok := rt.buckets[k.kind]
		if !ok || k.index >= len(buckets) {
			delete(rt.kickQueue, k)
			continue
		}
		evicted := buckets[k.index].kick(k.index)
		for _, key := range evicted {
			rt.forgetIfUnboundLocked(key)
		}
		delete(rt.kickQueue, k)
	}
}

// forgetIfUnboundLocked drops an entry from allEntries once none of its
// buckets reference it any more (an entry can still be bound under other
// crypto kinds after one kind's bucket evicts it).
func (rt *RoutingTable) forgetIfUnboundLocked(key [32]byte) {
	var owner *BucketEntry
	stillBound := false
	for e := range rt.allEntries {
		ids := e.NodeIDs()
		for _, id := range ids {
			if id.Value != key {
				continue
			}
			owner = e
			buckets, ok := rt.buckets[id.Kind]
			if !ok {
				continue
			}
			idx, ok := rt.bucketIndexForLocked(id.Kind, id)
			if ok && buckets[idx].get(key) != nil {
				stillBound = true
			}
		}
	}
	if owner != nil && !stillBound {
		delete(rt.allEntries, owner)
	}
}

// Tick runs one round of routing-table maintenance: kick-queue grooming
// followed by collection of due liveness pings (spec §4.1 tick ordering:
// rolling transfers -> kick queue -> bootstrap -> peer minimum refresh ->
// ping validation -> relay management -> private route management; this
// method runs the kick-queue and ping-collection steps; rolling transfer
// rates are recorded per frame by the RPC processor, and the rest are
// driven by collaborating managers).
func (rt *RoutingTable) Tick(now time.Time) []PingCandidate {
	rt.mu.Lock()
	rt.groomKickQueueLocked()
	var due []PingCandidate
	for e := range rt.allEntries {
		when, ok := e.NextPingTime(now)
		if !ok || when.After(now) {
			continue
		}
		due = append(due, PingCandidate{NodeRef: newNodeRef(rt, e), Due: when})
	}
	rt.mu.Unlock()

	for _, d := range due {
		d.NodeRef.Entry().RecordPingSent(now)
	}
	return due
}
