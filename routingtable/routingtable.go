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
	"sync"
	"time"

	"github.com/dbasu/corenet/crypto"
	"github.com/dbasu/corenet/types"
	"github.com/ethereum/go-ethereum/log"
)

// kickKey identifies one (kind, bucketIndex) pair pending grooming.
type kickKey struct {
	kind  crypto.CryptoKind
	index int
}

// RoutingTable is the Kademlia bucket layout plus liveness bookkeeping
// described in spec §4.1. Inner state is a writer-preferring RWMutex per
// spec §5 (reads dominate: lookups and fanout candidate selection).
type RoutingTable struct {
	mu sync.RWMutex

	crypto  *crypto.Crypto
	encoder types.SignedDataEncoder
	log     log.Logger

	localNodeIDs       crypto.TypedKeyGroup
	localSignedInfo    map[types.RoutingDomain]*types.SignedNodeInfo
	buckets            map[crypto.CryptoKind][]*Bucket
	allEntries         map[*BucketEntry]struct{}
	kickQueue          map[kickKey]struct{}
	minPeerCount       int
	minPeerRefreshTime time.Duration
	lastMinPeerRefresh time.Time
}

// New builds an empty RoutingTable for localNodeIDs.
func New(c *crypto.Crypto, encoder types.SignedDataEncoder, localNodeIDs crypto.TypedKeyGroup, minPeerCount int, minPeerRefreshTime time.Duration) *RoutingTable {
	rt := &RoutingTable{
		crypto:             c,
		encoder:            encoder,
		log:                log.New("component", "routingtable"),
		localNodeIDs:       localNodeIDs,
		localSignedInfo:    make(map[types.RoutingDomain]*types.SignedNodeInfo),
		buckets:            make(map[crypto.CryptoKind][]*Bucket),
		allEntries:         make(map[*BucketEntry]struct{}),
		kickQueue:          make(map[kickKey]struct{}),
		minPeerCount:       minPeerCount,
		minPeerRefreshTime: minPeerRefreshTime,
	}
	for _, kind := range c.SupportedKinds() {
		buckets := make([]*Bucket, keyBits)
		for i := range buckets {
			buckets[i] = newBucket()
		}
		rt.buckets[kind] = buckets
	}
	return rt
}

// SetLocalSignedNodeInfo installs our own published SNI for domain.
func (rt *RoutingTable) SetLocalSignedNodeInfo(domain types.RoutingDomain, sni *types.SignedNodeInfo) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.localSignedInfo[domain] = sni
}

func (rt *RoutingTable) bucketIndexForLocked(kind crypto.CryptoKind, peerID crypto.TypedKey) (int, bool) {
	localID, ok := rt.localNodeIDs.Get(kind)
	if !ok {
		return 0, false
	}
	sys, err := rt.crypto.System(kind)
	if err != nil {
		return 0, false
	}
	dist := sys.DistanceMetric(localID, peerID)
	return bucketIndex(dist), true
}

// lookupEntryLocked finds the entry bound to (kind, value), if any.
func (rt *RoutingTable) lookupEntryLocked(key crypto.TypedKey) *BucketEntry {
	buckets, ok := rt.buckets[key.Kind]
	if !ok {
		return nil
	}
	idx, ok := rt.bucketIndexForLocked(key.Kind, key)
	if !ok {
		return nil
	}
	return buckets[idx].get(key.Value)
}

// LookupNodeRef returns a NodeRef for nodeID, or nil if unknown.
func (rt *RoutingTable) LookupNodeRef(nodeID crypto.TypedKey) *NodeRef {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	e := rt.lookupEntryLocked(nodeID)
	if e == nil {
		return nil
	}
	return newNodeRef(rt, e)
}

// LookupAnyNodeRef tries every valid crypto kind against pubkeyValue.
func (rt *RoutingTable) LookupAnyNodeRef(pubkeyValue [32]byte) *NodeRef {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	for kind := range rt.buckets {
		e := rt.lookupEntryLocked(crypto.TypedKey{Kind: kind, Value: pubkeyValue})
		if e != nil {
			return newNodeRef(rt, e)
		}
	}
	return nil
}

// RegisterNodeWithPeerInfo validates and installs peerInfo, merging into
// an existing entry when any supplied node ID is already known (spec
// §4.1). Returns nil (not an error) for invariant violations, matching
// the source's "failure returns None" policy.
func (rt *RoutingTable) RegisterNodeWithPeerInfo(domain types.RoutingDomain, peerInfo *types.PeerInfo, allowInvalid bool) *NodeRef {
	if peerInfo.IsSelf(rt.localNodeIDs) {
		rt.log.Debug("rejecting peer info naming the local node")
		return nil
	}
	if !allowInvalid {
		if err := peerInfo.Validate(rt.encoder, rt.crypto); err != nil {
			rt.log.Debug("rejecting invalid peer info", "err", err)
			return nil
		}
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	now := time.Now()
	var target *BucketEntry
	for _, id := range peerInfo.NodeIDs {
		if e := rt.lookupEntryLocked(id); e != nil {
			target = e
			break
		}
	}
	if target == nil {
		target = newBucketEntry(peerInfo.NodeIDs[0], now)
		rt.allEntries[target] = struct{}{}
	}

	for _, id := range peerInfo.NodeIDs {
		if existing := rt.lookupEntryLocked(id); existing != nil && existing != target {
			// This identity belonged to a different entry under this
			// kind; the merge drops the old binding.
			rt.removeBindingLocked(existing, id.Kind)
		}
		target.AddNodeID(id)
		rt.bindLocked(target, id)
	}

	target.SetSignedNodeInfo(domain, &peerInfo.SignedNodeInfo)
	return newNodeRef(rt, target)
}

// bindLocked places entry into the bucket for key.Kind at the bucket
// index its node ID resolves to, marking that bucket for grooming.
func (rt *RoutingTable) bindLocked(entry *BucketEntry, key crypto.TypedKey) {
	buckets, ok := rt.buckets[key.Kind]
	if !ok {
		return
	}
	idx, ok := rt.bucketIndexForLocked(key.Kind, key)
	if !ok {
		return
	}
	buckets[idx].put(key.Value, entry)
	rt.kickQueue[kickKey{key.Kind, idx}] = struct{}{}
}

func (rt *RoutingTable) removeBindingLocked(entry *BucketEntry, kind crypto.CryptoKind) {
	id, ok := entry.NodeIDs().Get(kind)
	if !ok {
		return
	}
	buckets, ok := rt.buckets[kind]
	if !ok {
		return
	}
	idx, ok := rt.bucketIndexForLocked(kind, id)
	if !ok {
		return
	}
	buckets[idx].delete(id.Value)
}

// RegisterNodeWithExistingConnection touches last-seen bookkeeping for a
// known node without supplying new SNI.
func (rt *RoutingTable) RegisterNodeWithExistingConnection(nodeID crypto.TypedKey, desc types.ConnectionDescriptor, ts time.Time) *NodeRef {
	rt.mu.RLock()
	e := rt.lookupEntryLocked(nodeID)
	rt.mu.RUnlock()
	if e == nil {
		return nil
	}
	e.TouchLastSeen(desc, ts)
	return newNodeRef(rt, e)
}

// HealthStats summarizes routing-table readiness (spec
// GetRoutingTableHealth).
type HealthStats struct {
	ReliableEntryCount   int
	UnreliableEntryCount int
	DeadEntryCount       int
	PublicInternetReady  bool
	LocalNetworkReady    bool
}

// GetRoutingTableHealth computes liveness counts and domain readiness.
func (rt *RoutingTable) GetRoutingTableHealth() HealthStats {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	now := time.Now()
	var h HealthStats
	for e := range rt.allEntries {
		switch e.State(now) {
		case StateReliable:
			h.ReliableEntryCount++
		case StateUnreliable:
			h.UnreliableEntryCount++
		case StateDead:
			h.DeadEntryCount++
		}
	}
	if sni, ok := rt.localSignedInfo[types.RoutingDomainPublicInternet]; ok && sni != nil {
		h.PublicInternetReady = sni.NodeInfo.NetworkClass != types.NetworkClassInvalid
	}
	if sni, ok := rt.localSignedInfo[types.RoutingDomainLocalNetwork]; ok && sni != nil {
		h.LocalNetworkReady = sni.NodeInfo.NetworkClass != types.NetworkClassInvalid
	}
	return h
}

// AggregateTransferRates sums every entry's rolling transfer rate
// (spec §6's network-throughput client update), giving an instantaneous
// whole-node down/up bytes-per-second estimate from the same
// exponential-moving-average samples RecordBytesSent/RecordBytesReceived
// feed per peer.
func (rt *RoutingTable) AggregateTransferRates() (downBps, upBps float64) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	for e := range rt.allEntries {
		stats := e.TransferStats()
		downBps += stats.DownBytesPerSec
		upBps += stats.UpBytesPerSec
	}
	return downBps, upBps
}

// EntryCount returns the number of distinct known peers.
func (rt *RoutingTable) EntryCount() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return len(rt.allEntries)
}
