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
	"fmt"

	"github.com/dbasu/corenet/apierr"
	"github.com/dbasu/corenet/crypto"
)

// DestinationKind discriminates the three ways a message can be aimed.
type DestinationKind uint8

const (
	DestinationDirect DestinationKind = iota
	DestinationRelay
	DestinationPrivateRoute
)

// Destination is where an outbound message is headed, and under what
// safety selection it should travel.
type Destination struct {
	Kind   DestinationKind
	Relay  crypto.TypedKey // DestinationRelay only
	Target crypto.TypedKey // DestinationDirect / DestinationRelay
	Route  crypto.TypedKey // DestinationPrivateRoute only: route id
	Safety SafetySelection
}

func Direct(target crypto.TypedKey, safety SafetySelection) Destination {
	return Destination{Kind: DestinationDirect, Target: target, Safety: safety}
}

func ViaRelay(relay, target crypto.TypedKey, safety SafetySelection) Destination {
	return Destination{Kind: DestinationRelay, Relay: relay, Target: target, Safety: safety}
}

func ToPrivateRoute(route crypto.TypedKey, safety SafetySelection) Destination {
	return Destination{Kind: DestinationPrivateRoute, Route: route, Safety: safety}
}

// RespondToKind discriminates how the receiver of a Question should
// address its Answer.
type RespondToKind uint8

const (
	RespondToSender RespondToKind = iota
	RespondToPrivateRoute
)

// RespondTo is carried inside a Question so the answerer knows how to
// address its Answer without a second round of routing lookups.
type RespondTo struct {
	Kind RespondToKind
	// Route carries an inlined private route blob (stub or full) when
	// Kind is RespondToPrivateRoute. Opaque to this package; produced
	// and consumed by the routespec package's route codec.
	Route []byte
}

// RouteResolver is the subset of route-spec-store behavior the rpc
// package needs to assemble RespondTo values for Safe destinations,
// expressed as an interface here so this package never imports the
// concrete route-spec-store package (it would otherwise import rpc
// back, to learn about Destination/SafetySelection).
type RouteResolver interface {
	// GetPrivateRouteForSafetySpec returns an allocated or cached route
	// satisfying spec, steering around the typed keys in avoid (e.g. the
	// destination's own hops), or ok=false if none could be assembled.
	GetPrivateRouteForSafetySpec(spec SafetySpec, avoid []crypto.TypedKey) (route []byte, ok bool)

	// StubRouteToSelf returns a zero-hop "route" addressed to the local
	// node, optimized to a bare NodeID if remoteHasSeenUs is true
	// (the remote route has already delivered our full PeerInfo), or a
	// full PeerInfo-bearing stub otherwise.
	StubRouteToSelf(remoteHasSeenUs bool) []byte

	// FirstHop reports the first relay hop of route, if route is a
	// private route this resolver recognizes, so it can be excluded
	// when assembling a safety route for a Safe/PrivateRoute response.
	FirstHop(route []byte) (crypto.TypedKey, bool)

	// HasSeenNodeInfoFor reports whether the remote route identified by
	// routeID has already been given our PeerInfo on a prior exchange.
	HasSeenNodeInfoFor(routeID crypto.TypedKey) bool
}

// ResolveRespondTo implements the spec §4.4 RespondTo resolution table:
// given the destination a Question is being sent to and a resolver for
// private-route assembly, compute what the Question's RespondTo field
// should carry so the Answer comes back correctly.
func ResolveRespondTo(dest Destination, resolver RouteResolver) (RespondTo, error) {
	switch dest.Kind {
	case DestinationDirect, DestinationRelay:
		if !dest.Safety.IsSafe() {
			return RespondTo{Kind: RespondToSender}, nil
		}
		route, ok := resolver.GetPrivateRouteForSafetySpec(dest.Safety.Spec(), []crypto.TypedKey{dest.Target})
		if !ok {
			return RespondTo{}, apierr.NoConnection("no private route available for safety spec")
		}
		return RespondTo{Kind: RespondToPrivateRoute, Route: route}, nil

	case DestinationPrivateRoute:
		if !dest.Safety.IsSafe() {
			seen := resolver.HasSeenNodeInfoFor(dest.Route)
			return RespondTo{Kind: RespondToPrivateRoute, Route: resolver.StubRouteToSelf(seen)}, nil
		}

		spec := dest.Safety.Spec()
		if spec.PreferredRoute != nil && sameRoute(*spec.PreferredRoute, dest.Route) {
			// Loopback: the destination route doubles as our responder key.
			return RespondTo{Kind: RespondToPrivateRoute, Route: nil}, nil
		}

		avoid := []crypto.TypedKey{}
		if hop, ok := resolver.FirstHop(dest.Route); ok {
			avoid = append(avoid, hop)
		}
		route, ok := resolver.GetPrivateRouteForSafetySpec(spec, avoid)
		if !ok {
			return RespondTo{}, apierr.NoConnection("no private route available for safety spec")
		}
		return RespondTo{Kind: RespondToPrivateRoute, Route: route}, nil

	default:
		return RespondTo{}, apierr.InvalidArgument("ResolveRespondTo", "dest.Kind", fmt.Sprintf("%d", dest.Kind))
	}
}

func sameRoute(a, b crypto.TypedKey) bool {
	return a.Kind == b.Kind && a.Value == b.Value
}
