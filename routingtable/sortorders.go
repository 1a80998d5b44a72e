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

import (
	"bytes"
	"sort"
	"time"

	"github.com/dbasu/corenet/crypto"
)

// candidate pairs a live entry with the comparison keys derived from it
// for one particular crypto kind.
type candidate struct {
	entry    *BucketEntry
	nodeID   crypto.TypedKey
	distance [32]byte
	state    LivenessState
	latency  time.Duration
	hasRTT   bool
}

// snapshotEntries takes a read-locked pass over allEntries, excluding any
// whose state is Dead and any failing filter (filter may be nil).
func (rt *RoutingTable) snapshotEntries(kind crypto.CryptoKind, now time.Time, filter func(*BucketEntry) bool) []candidate {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	localID, ok := rt.localNodeIDs.Get(kind)
	if !ok {
		return nil
	}
	sys, err := rt.crypto.System(kind)
	if err != nil {
		return nil
	}

	var out []candidate
	for e := range rt.allEntries {
		nodeID, ok := e.NodeIDs().Get(kind)
		if !ok {
			continue
		}
		state := e.State(now)
		if state == StateDead {
			continue
		}
		if filter != nil && !filter(e) {
			continue
		}
		lat, hasRTT := e.AverageLatency()
		out = append(out, candidate{
			entry:    e,
			nodeID:   nodeID,
			distance: sys.DistanceMetric(localID, nodeID),
			state:    state,
			latency:  lat,
			hasRTT:   hasRTT,
		})
	}
	return out
}

// FindClosestNodes returns up to count live entries of kind, reliable
// entries ahead of unreliable ones, each group ordered by XOR distance to
// the local node (spec §4.1 closest-node ordering).
func FindClosestNodes(rt *RoutingTable, kind crypto.CryptoKind, count int, filter func(*BucketEntry) bool) []*NodeRef {
	now := time.Now()
	cands := rt.snapshotEntries(kind, now, filter)
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].state != cands[j].state {
			return cands[i].state == StateReliable
		}
		return bytes.Compare(cands[i].distance[:], cands[j].distance[:]) < 0
	})
	return takeRefs(rt, cands, count)
}

// FindFastestNodes returns up to count live entries of kind, reliable
// entries ahead of unreliable ones; within each group, entries with an RTT
// sample come first by lowest average latency, and entries with none
// follow by XOR distance (spec §4.1 fastest-node ordering).
func FindFastestNodes(rt *RoutingTable, kind crypto.CryptoKind, count int, filter func(*BucketEntry) bool) []*NodeRef {
	now := time.Now()
	cands := rt.snapshotEntries(kind, now, filter)
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].state != cands[j].state {
			return cands[i].state == StateReliable
		}
		if cands[i].hasRTT != cands[j].hasRTT {
			return cands[i].hasRTT
		}
		if !cands[i].hasRTT {
			return bytes.Compare(cands[i].distance[:], cands[j].distance[:]) < 0
		}
		return cands[i].latency < cands[j].latency
	})
	return takeRefs(rt, cands, count)
}

// FindNodesClosestToKey returns up to count live entries of kind, reliable
// entries first, each group ordered by XOR distance to target (rather than
// to the local node), the
// ordering the storage manager's DHT fanout picks candidates by: the
// nodes responsible for a record are the ones closest to its key, not
// necessarily closest to us.
func FindNodesClosestToKey(rt *RoutingTable, kind crypto.CryptoKind, target crypto.TypedKey, count int, filter func(*BucketEntry) bool) []*NodeRef {
	sys, err := rt.crypto.System(kind)
	if err != nil {
		return nil
	}

	rt.mu.RLock()
	var cands []candidate
	now := time.Now()
	for e := range rt.allEntries {
		nodeID, ok := e.NodeIDs().Get(kind)
		if !ok {
			continue
		}
		state := e.State(now)
		if state == StateDead {
			continue
		}
		if filter != nil && !filter(e) {
			continue
		}
		lat, hasRTT := e.AverageLatency()
		cands = append(cands, candidate{
			entry:    e,
			nodeID:   nodeID,
			distance: sys.DistanceMetric(target, nodeID),
			state:    state,
			latency:  lat,
			hasRTT:   hasRTT,
		})
	}
	rt.mu.RUnlock()

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].state != cands[j].state {
			return cands[i].state == StateReliable
		}
		return bytes.Compare(cands[i].distance[:], cands[j].distance[:]) < 0
	})
	return takeRefs(rt, cands, count)
}

func takeRefs(rt *RoutingTable, cands []candidate, count int) []*NodeRef {
	if count > 0 && count < len(cands) {
		cands = cands[:count]
	}
	refs := make([]*NodeRef, 0, len(cands))
	for _, c := range cands {
		refs = append(refs, newNodeRef(rt, c.entry))
	}
	return refs
}
