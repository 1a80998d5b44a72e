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
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dbasu/corenet/crypto"
	"github.com/dbasu/corenet/types"
)

// LivenessState is the bucket-entry lifecycle state from spec §4.1.
type LivenessState uint8

const (
	StateUnreliable LivenessState = iota
	StateReliable
	StateDead
)

func (s LivenessState) String() string {
	switch s {
	case StateReliable:
		return "reliable"
	case StateDead:
		return "dead"
	default:
		return "unreliable"
	}
}

type lastConnection struct {
	descriptor types.ConnectionDescriptor
	ts         time.Time
}

// BucketEntry is one known peer, shared across every bucket it appears in
// (one per supported crypto kind). Individually RWLock'd per spec §5 to
// avoid global routing-table contention.
type BucketEntry struct {
	mu sync.RWMutex

	nodeIDs         crypto.TypedKeyGroup
	signedNodeInfo  map[types.RoutingDomain]*types.SignedNodeInfo
	lastConnections map[types.Protocol]lastConnection
	stats           PeerStats
	seenOurNodeInfo map[types.RoutingDomain]time.Time
	lastPingTs      time.Time
	isOurRelay      bool
	lastUpSampleTs  time.Time
	lastDownSampleTs time.Time

	refCount int32
}

func newBucketEntry(nodeID crypto.TypedKey, now time.Time) *BucketEntry {
	return &BucketEntry{
		nodeIDs:         crypto.TypedKeyGroup{nodeID},
		signedNodeInfo:  make(map[types.RoutingDomain]*types.SignedNodeInfo),
		lastConnections: make(map[types.Protocol]lastConnection),
		seenOurNodeInfo: make(map[types.RoutingDomain]time.Time),
		stats:           PeerStats{TimeAdded: now},
	}
}

// NodeIDs returns a copy of the entry's node-ID set.
func (e *BucketEntry) NodeIDs() crypto.TypedKeyGroup {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(crypto.TypedKeyGroup, len(e.nodeIDs))
	copy(out, e.nodeIDs)
	return out
}

// AddNodeID merges an additional (kind, value) identity into the entry.
func (e *BucketEntry) AddNodeID(k crypto.TypedKey) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nodeIDs = e.nodeIDs.With(k)
}

// SignedNodeInfo returns the entry's SNI for domain, if any.
func (e *BucketEntry) SignedNodeInfo(domain types.RoutingDomain) *types.SignedNodeInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.signedNodeInfo[domain]
}

// SetSignedNodeInfo installs a new SNI for domain.
func (e *BucketEntry) SetSignedNodeInfo(domain types.RoutingDomain, sni *types.SignedNodeInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.signedNodeInfo[domain] = sni
}

// SeenOurNodeInfo marks that this peer (through domain) has observed our
// own node info — used by the RPC layer's respond-to stub optimization.
func (e *BucketEntry) SeenOurNodeInfo(domain types.RoutingDomain, ts time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seenOurNodeInfo[domain] = ts
}

func (e *BucketEntry) HasSeenOurNodeInfo(domain types.RoutingDomain) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.seenOurNodeInfo[domain].IsZero()
}

// TouchLastSeen updates last-connection bookkeeping without supplying a
// new SNI (spec RegisterNodeWithExistingConnection).
func (e *BucketEntry) TouchLastSeen(desc types.ConnectionDescriptor, ts time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastConnections[desc.Remote.Protocol] = lastConnection{descriptor: desc, ts: ts}
	e.markSeenLocked(ts)
}

func (e *BucketEntry) markSeenLocked(now time.Time) {
	if e.stats.RPC.FirstSeenTs.IsZero() {
		e.stats.RPC.FirstSeenTs = now
	}
	if e.stats.RPC.FirstConsecutiveSeenTs.IsZero() {
		e.stats.RPC.FirstConsecutiveSeenTs = now
	}
	e.stats.RPC.LastSeenTs = now
	e.stats.RPC.RecentLostAnswers = 0
}

// OnQuestionSent records that we sent a question; if expectsAnswer, the
// in-flight counter (tracked via QuestionsSent - AnswersReceived -
// QuestionsLost) increases until answered or lost.
func (e *BucketEntry) OnQuestionSent(now time.Time, expectsAnswer bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.RPC.LastQuestionTs = now
	if expectsAnswer {
		e.stats.RPC.QuestionsSent++
	}
}

// OnQuestionRcvd records that the peer sent us a question — this counts
// as having seen the peer.
func (e *BucketEntry) OnQuestionRcvd(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.markSeenLocked(now)
}

// OnAnswerRcvd records a successful question/answer round trip.
func (e *BucketEntry) OnAnswerRcvd(now time.Time, rtt time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.RPC.AnswersReceived++
	e.stats.RPC.FailedToSend = 0
	e.stats.Latency.addSample(rtt)
	e.markSeenLocked(now)
}

// OnQuestionLost records that a question we expected an answer to timed
// out: clears the reliable streak and bumps the loss counters (spec §4.4
// Send-failure recording).
func (e *BucketEntry) OnQuestionLost() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.RPC.QuestionsLost++
	e.stats.RPC.RecentLostAnswers++
	e.stats.RPC.FirstConsecutiveSeenTs = time.Time{}
}

// OnFailedToSend records a local send failure (never handed to transport).
func (e *BucketEntry) OnFailedToSend() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.RPC.FailedToSend++
	e.stats.RPC.FirstConsecutiveSeenTs = time.Time{}
}

// State evaluates the liveness state machine from spec §4.1 at time now.
func (e *BucketEntry) State(now time.Time) LivenessState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stateLocked(now)
}

func (e *BucketEntry) stateLocked(now time.Time) LivenessState {
	r := e.stats.RPC
	if r.FailedToSend >= NeverReachedPingCount {
		return StateDead
	}
	neverSeen := r.FirstSeenTs.IsZero()
	if neverSeen && r.RecentLostAnswers >= RecentLostAnswersDeadThreshold {
		return StateDead
	}
	if !r.LastSeenTs.IsZero() && now.Sub(r.LastSeenTs) > secs(UnreliablePingSpanSecs) {
		return StateDead
	}
	if r.FailedToSend == 0 && !r.FirstConsecutiveSeenTs.IsZero() && now.Sub(r.FirstConsecutiveSeenTs) >= secs(UnreliablePingSpanSecs) {
		return StateReliable
	}
	return StateUnreliable
}

// AverageLatency returns the rolling latency average, and whether any
// sample has ever been recorded.
func (e *BucketEntry) AverageLatency() (time.Duration, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats.Latency.Average, e.stats.Latency.Count > 0
}

// RecordBytesSent updates the rolling up-rate and total-sent counters
// (spec §4.1 tick's "rolling transfers" step), observed at the RPC layer
// where outbound frame sizes are known (rpc.Processor.Ask/Tell).
func (e *BucketEntry) RecordBytesSent(n int, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.Transfer.TotalUpBytes += uint64(n)
	e.stats.Transfer.UpBytesPerSec = rollingRate(e.stats.Transfer.UpBytesPerSec, n, now, &e.lastUpSampleTs)
}

// RecordBytesReceived is RecordBytesSent's inbound counterpart.
func (e *BucketEntry) RecordBytesReceived(n int, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.Transfer.TotalDownBytes += uint64(n)
	e.stats.Transfer.DownBytesPerSec = rollingRate(e.stats.Transfer.DownBytesPerSec, n, now, &e.lastDownSampleTs)
}

// TransferStats returns a copy of the entry's rolling transfer counters.
func (e *BucketEntry) TransferStats() TransferStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats.Transfer
}

// rollingRate folds one (n bytes, now) sample into an exponential moving
// average of bytes/sec, the same smoothing LatencyStats.addSample uses.
// *lastTs is updated in place; a zero *lastTs treats this as the first
// sample and only seeds the clock.
func rollingRate(prevRate float64, n int, now time.Time, lastTs *time.Time) float64 {
	if lastTs.IsZero() {
		*lastTs = now
		return prevRate
	}
	elapsed := now.Sub(*lastTs).Seconds()
	*lastTs = now
	if elapsed <= 0 {
		return prevRate
	}
	instant := float64(n) / elapsed
	if prevRate == 0 {
		return instant
	}
	return prevRate + (instant-prevRate)/8
}

// TimeAdded returns when this entry first entered the routing table, used
// by route allocation's "oldest-reliable" candidate ordering (spec §4.5).
func (e *BucketEntry) TimeAdded() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats.TimeAdded
}

// SetIsOurRelay marks/unmarks this entry as our own outbound relay, which
// changes its ping cadence to the fixed keepalive interval.
func (e *BucketEntry) SetIsOurRelay(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.isOurRelay = v
}

// NextPingTime computes when this entry should next be pinged, per the
// cadence table in spec §4.1. ok is false for Dead entries (never pinged).
func (e *BucketEntry) NextPingTime(now time.Time) (when time.Time, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.isOurRelay {
		return e.lastPingTs.Add(secs(KeepalivePingIntervalSecs)), true
	}
	switch e.stateLocked(now) {
	case StateDead:
		return time.Time{}, false
	case StateUnreliable:
		return e.lastPingTs.Add(secs(UnreliablePingIntervalSecs)), true
	default: // Reliable
		start := e.stats.RPC.FirstConsecutiveSeenTs
		if start.IsZero() {
			start = now
		}
		elapsed := now.Sub(start).Seconds()
		cur := float64(ReliablePingIntervalStartSecs)
		for cur < elapsed && cur < ReliablePingIntervalMaxSecs {
			cur = math.Min(cur*ReliablePingIntervalMult, ReliablePingIntervalMaxSecs)
		}
		return start.Add(secs(cur)), true
	}
}

// RecordPingSent notes that a ping was just issued, for cadence tracking.
func (e *BucketEntry) RecordPingSent(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastPingTs = now
}

// Ref increments the reference count (a node is "in use" by a NodeRef).
func (e *BucketEntry) ref() int32 { return atomic.AddInt32(&e.refCount, 1) }

// Unref decrements the reference count.
func (e *BucketEntry) unref() int32 { return atomic.AddInt32(&e.refCount, -1) }

// RefCount returns the current reference count (eviction candidates must
// be zero).
func (e *BucketEntry) RefCount() int32 { return atomic.LoadInt32(&e.refCount) }
