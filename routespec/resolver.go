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
	"github.com/dbasu/corenet/crypto"
	"github.com/dbasu/corenet/rpc"
)

// SelfInfo supplies what the stub-route-to-self optimization needs: the
// local node's own typed key, and an encoder for its full PeerInfo when
// the remote hasn't seen it yet. Implemented by whatever owns local
// identity (the attachment manager, in the full build).
type SelfInfo interface {
	LocalNodeID(kind crypto.CryptoKind) (crypto.TypedKey, bool)
	EncodePeerInfo() []byte
}

// SetSelfInfo wires the local-identity source the resolver needs for
// StubRouteToSelf. Must be called before routes are used to answer
// PrivateRoute/Unsafe questions.
func (s *Store) SetSelfInfo(self SelfInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.self = self
}

// Store implements rpc.RouteResolver. Per the spec §2 dependency order
// (RPCProcessor is built before RouteSpecStore), routespec is free to
// import rpc directly — the reverse never happens, so there is no cycle.
var _ rpc.RouteResolver = (*Store)(nil)

// GetPrivateRouteForSafetySpec allocates or reuses a route matching
// spec and returns its public key encoded as opaque route bytes. Reuses
// spec.PreferredRoute verbatim if it names an already-allocated route not
// touching avoid. Allocation does not exclude avoid from hop selection; a
// freshly allocated route that touches avoid is released and reported as
// a failure.
func (s *Store) GetPrivateRouteForSafetySpec(spec rpc.SafetySpec, avoid []crypto.TypedKey) ([]byte, bool) {
	if spec.PreferredRoute != nil {
		if d, ok := s.Detail(*spec.PreferredRoute); ok && !hopsOverlap(d.Hops, avoid) {
			return encodeRouteRef(d.PublicKey), true
		}
	}

	hopCount := spec.HopCount
	if hopCount < 2 {
		hopCount = 2
	}
	route, err := s.AllocateRoute(spec.Stability == rpc.StabilityReliable, hopCount, Directions{Outbound: true})
	if err != nil {
		return nil, false
	}
	if d, ok := s.Detail(route); ok && hopsOverlap(d.Hops, avoid) {
		// Allocation happened to reuse an avoided hop; release and fail
		// rather than leak an unwanted route back to the caller.
		s.ReleaseRoute(route)
		return nil, false
	}
	return encodeRouteRef(route), true
}

func hopsOverlap(hops, avoid []crypto.TypedKey) bool {
	for _, h := range hops {
		for _, a := range avoid {
			if h == a {
				return true
			}
		}
	}
	return false
}

// StubRouteToSelf builds a hop_count=0 "stub" private route addressed
// directly at the local node (spec §3 PrivateRoute), optimized to a bare
// NodeID when the remote end has already seen our full PeerInfo.
func (s *Store) StubRouteToSelf(remoteHasSeenUs bool) []byte {
	s.mu.Lock()
	self := s.self
	kind := s.localKind
	s.mu.Unlock()

	if self == nil {
		return nil
	}
	if remoteHasSeenUs {
		id, ok := self.LocalNodeID(kind)
		if !ok {
			return nil
		}
		return append([]byte{stubKindNodeID}, id.Value[:]...)
	}
	return append([]byte{stubKindFullPeerInfo}, self.EncodePeerInfo()...)
}

const (
	stubKindNodeID       = 0
	stubKindFullPeerInfo = 1
)

// FirstHop returns the first relay hop of route, if route is a private
// route this store recognizes.
func (s *Store) FirstHop(route []byte) (crypto.TypedKey, bool) {
	key, ok := decodeRouteRef(route)
	if !ok {
		return crypto.TypedKey{}, false
	}
	d, ok := s.Detail(key)
	if !ok || len(d.Hops) == 0 {
		return crypto.TypedKey{}, false
	}
	return d.Hops[0], true
}

// HasSeenNodeInfoFor reports whether the remote route identified by
// routeID has already been given our PeerInfo on a prior exchange.
func (s *Store) HasSeenNodeInfoFor(routeID crypto.TypedKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteSeen[routeID]
}

// MarkSeenNodeInfo records that routeID has now seen our PeerInfo, so
// future responses to it can use the optimized NodeID-only stub.
func (s *Store) MarkSeenNodeInfo(routeID crypto.TypedKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remoteSeen[routeID] = true
}

func encodeRouteRef(key crypto.TypedKey) []byte {
	out := make([]byte, 0, 36)
	out = append(out, key.Kind[:]...)
	out = append(out, key.Value[:]...)
	return out
}

func decodeRouteRef(route []byte) (crypto.TypedKey, bool) {
	if len(route) != 36 {
		return crypto.TypedKey{}, false
	}
	var key crypto.TypedKey
	copy(key.Kind[:], route[:4])
	copy(key.Value[:], route[4:])
	return key, true
}
