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

package routespec

import (
	"fmt"
	"sort"
	"time"

	"github.com/dbasu/corenet/crypto"
	"github.com/dbasu/corenet/routingtable"
	"github.com/dbasu/corenet/types"
)

// scoredCandidate pairs a live node ref with the fields route allocation
// sorts and reachability-checks on.
type scoredCandidate struct {
	ref            *routingtable.NodeRef
	nodeID         crypto.TypedKey
	usedAsEndpoint int
	usedAnywhere   int
	reliable       bool
	timeAdded      time.Time
	latency        time.Duration
	hasRTT         bool
	inboundCapable bool
}

// candidates collects every live, public-internet-capable, routing-willing
// peer supporting kind, scored and sorted per spec §4.5 step 2: ascending
// (used_as_endpoint_count, used_anywhere_count), then oldest-first if
// reliable is requested, else fastest-first.
func (s *Store) candidates(kind crypto.CryptoKind, reliable bool) []scoredCandidate {
	filter := func(e *routingtable.BucketEntry) bool {
		if e.SignedNodeInfo(types.RoutingDomainLocalNetwork) != nil {
			return false // on the local network: excluded from route hops
		}
		sni := e.SignedNodeInfo(types.RoutingDomainPublicInternet)
		if sni == nil || len(sni.NodeInfo.DialInfoDetail) == 0 {
			return false
		}
		if !sni.NodeInfo.HasCapability(types.CapRouting) {
			return false
		}
		return sni.NodeInfo.SupportsCryptoKind(kind)
	}

	refs := routingtable.FindClosestNodes(s.rt, kind, 0, filter)
	out := make([]scoredCandidate, 0, len(refs))

	s.mu.Lock()
	for _, ref := range refs {
		id, ok := ref.NodeIDs().Get(kind)
		if !ok {
			ref.Release()
			continue
		}
		e := ref.Entry()
		u := s.usageFor(id)
		lat, hasRTT := e.AverageLatency()
		sni := e.SignedNodeInfo(types.RoutingDomainPublicInternet)
		out = append(out, scoredCandidate{
			ref:            ref,
			nodeID:         id,
			usedAsEndpoint: u.asEndpoint,
			usedAnywhere:   u.anywhere,
			reliable:       e.State(time.Now()) == routingtable.StateReliable,
			timeAdded:      e.TimeAdded(),
			latency:        lat,
			hasRTT:         hasRTT,
			inboundCapable: sni != nil && sni.NodeInfo.NetworkClass == types.NetworkClassInboundCapable,
		})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].usedAsEndpoint != out[j].usedAsEndpoint {
			return out[i].usedAsEndpoint < out[j].usedAsEndpoint
		}
		if out[i].usedAnywhere != out[j].usedAnywhere {
			return out[i].usedAnywhere < out[j].usedAnywhere
		}
		if reliable {
			return out[i].timeAdded.Before(out[j].timeAdded)
		}
		if out[i].hasRTT != out[j].hasRTT {
			return out[i].hasRTT
		}
		return out[i].latency < out[j].latency
	})
	return out
}

// reachable reports whether data can flow from -> to: the receiving hop
// must be dialable (spec §4.5 step 5's "contact-method != Unreachable").
func reachable(to scoredCandidate) bool {
	return to.inboundCapable
}

// permuteHeap calls yield for every permutation of arr (Heap's algorithm),
// stopping early if yield returns true.
func permuteHeap(arr []scoredCandidate, yield func([]scoredCandidate) bool) bool {
	n := len(arr)
	c := make([]int, n)
	if yield(append([]scoredCandidate(nil), arr...)) {
		return true
	}
	i := 0
	for i < n {
		if c[i] < i {
			if i%2 == 0 {
				arr[0], arr[i] = arr[i], arr[0]
			} else {
				arr[c[i]], arr[i] = arr[i], arr[c[i]]
			}
			if yield(append([]scoredCandidate(nil), arr...)) {
				return true
			}
			c[i]++
			i = 0
		} else {
			c[i] = 0
			i++
		}
	}
	return false
}

// ErrInsufficientNodes is returned when fewer than hopCount eligible
// public-internet nodes are known.
var ErrInsufficientNodes = fmt.Errorf("routespec: insufficient reachable nodes for requested hop count")

// ErrHopCountOutOfRange is returned when hopCount falls outside [2, maxHopCount].
var ErrHopCountOutOfRange = fmt.Errorf("routespec: hop count out of range")

// AllocateRoute implements spec §4.5's allocate_route: score and order
// candidates, enumerate Heap's-algorithm permutations of hopCount nodes
// starting from every base index, skip any whose hop-cache key is
// already interned, accept the first permutation satisfying directions'
// reachability, and return its fresh route public key.
func (s *Store) AllocateRoute(reliable bool, hopCount int, directions Directions) (crypto.TypedKey, error) {
	if hopCount < 2 || hopCount > s.maxHopCount {
		return crypto.TypedKey{}, ErrHopCountOutOfRange
	}

	cands := s.candidates(s.localKind, reliable)
	defer func() {
		for _, c := range cands {
			c.ref.Release()
		}
	}()

	if len(cands) < hopCount {
		return crypto.TypedKey{}, ErrInsufficientNodes
	}

	for base := 0; base+hopCount <= len(cands); base++ {
		window := append([]scoredCandidate(nil), cands[base:base+hopCount]...)

		var accepted []scoredCandidate
		permuteHeap(window, func(perm []scoredCandidate) bool {
			key := hopCacheKeyFor(perm)
			s.mu.Lock()
			_, seen := s.hopCache[key]
			s.mu.Unlock()
			if seen {
				return false
			}
			if !directionsSatisfied(perm, directions) {
				return false
			}
			accepted = perm
			return true
		})

		if accepted == nil {
			continue
		}
		return s.commitRoute(accepted, directions)
	}

	return crypto.TypedKey{}, ErrInsufficientNodes
}

func hopCacheKeyFor(perm []scoredCandidate) string {
	buf := make([]byte, 0, len(perm)*32)
	for _, c := range perm {
		buf = append(buf, c.nodeID.Value[:]...)
	}
	return string(buf)
}

func directionsSatisfied(perm []scoredCandidate, directions Directions) bool {
	if directions.Outbound {
		for i := 0; i < len(perm)-1; i++ {
			if !reachable(perm[i+1]) {
				return false
			}
		}
	}
	if directions.Inbound {
		for i := len(perm) - 1; i > 0; i-- {
			if !reachable(perm[i-1]) {
				return false
			}
		}
	}
	return true
}

func (s *Store) commitRoute(perm []scoredCandidate, directions Directions) (crypto.TypedKey, error) {
	kp, err := s.crypto.GenerateKeyPairForKind(s.localKind)
	if err != nil {
		return crypto.TypedKey{}, err
	}

	hops := make([]crypto.TypedKey, len(perm))
	refs := make([]*routingtable.NodeRef, len(perm))
	for i, c := range perm {
		hops[i] = c.nodeID
		refs[i] = c.ref.Clone()
	}

	detail := &RouteSpecDetail{
		PublicKey:   kp.Key,
		Secret:      kp.Secret,
		Hops:        hops,
		HopNodeRefs: refs,
		Published:   false,
		CreatedTs:   time.Now(),
		Directions:  directions,
	}

	s.mu.Lock()
	s.routes[kp.Key] = detail
	s.hopCache[detail.hopCacheKey()] = kp.Key
	for i, hop := range hops {
		u := s.usageFor(hop)
		u.anywhere++
		if i == 0 || i == len(hops)-1 {
			u.asEndpoint++
		}
	}
	s.mu.Unlock()

	return kp.Key, nil
}
