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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dbasu/corenet/crypto"
)

func keyFor(b byte) crypto.TypedKey {
	var k crypto.TypedKey
	k.Kind = crypto.KindVLD0
	k.Value[0] = b
	return k
}

func drainAll(q *FanoutQueue[crypto.TypedKey]) []crypto.TypedKey {
	var out []crypto.TypedKey
	for {
		k, ok := q.Next()
		if !ok {
			return out
		}
		out = append(out, k)
	}
}

func TestFanoutQueueIdempotence(t *testing.T) {
	q := NewFanoutQueue(func(k crypto.TypedKey) crypto.TypedKey { return k }, nil)
	nodes := []crypto.TypedKey{keyFor(1), keyFor(2), keyFor(3)}

	addedOnce := q.Add(nodes)
	require.Equal(t, 3, addedOnce)

	addedTwice := q.Add(nodes)
	require.Equal(t, 0, addedTwice, "re-adding the same candidates must be a no-op")

	drained := drainAll(q)
	require.Len(t, drained, 3, "no candidate should ever be yielded twice across next()")
}

func TestFanoutQueueCleanupCapsSizeButNotDedup(t *testing.T) {
	cleanup := func(in []crypto.TypedKey) []crypto.TypedKey {
		if len(in) > 2 {
			return in[len(in)-2:]
		}
		return in
	}
	q := NewFanoutQueue(func(k crypto.TypedKey) crypto.TypedKey { return k }, cleanup)

	q.Add([]crypto.TypedKey{keyFor(1), keyFor(2), keyFor(3)})
	require.Equal(t, 2, q.Len(), "cleanup caps the live queue to 2")

	// Re-adding the dropped candidate must still be rejected: dedup is
	// permanent, not scoped to the live queue contents.
	added := q.Add([]crypto.TypedKey{keyFor(1)})
	require.Equal(t, 0, added)
}

func TestFanoutRunStopsAtCount(t *testing.T) {
	q := NewFanoutQueue(func(k crypto.TypedKey) crypto.TypedKey { return k }, nil)
	q.Add([]crypto.TypedKey{keyFor(1), keyFor(2), keyFor(3), keyFor(4)})

	calls := 0
	successes := Run(context.Background(), q, 2, nil, func(_ context.Context, _ crypto.TypedKey) CallResult[crypto.TypedKey] {
		calls++
		return CallResult[crypto.TypedKey]{Success: true}
	})

	require.Equal(t, 2, successes)
	require.Equal(t, 2, calls)
	require.Equal(t, 2, q.Len(), "two candidates remain unpopped once count is satisfied")
}

type fakeResolver struct {
	route         []byte
	ok            bool
	firstHop      crypto.TypedKey
	hasFirstHop   bool
	seenByRoute   map[crypto.TypedKey]bool
	stubOptimized []byte
	stubFull      []byte
	lastAvoid     []crypto.TypedKey
}

func (f *fakeResolver) GetPrivateRouteForSafetySpec(_ SafetySpec, avoid []crypto.TypedKey) ([]byte, bool) {
	f.lastAvoid = avoid
	return f.route, f.ok
}

func (f *fakeResolver) StubRouteToSelf(remoteHasSeenUs bool) []byte {
	if remoteHasSeenUs {
		return f.stubOptimized
	}
	return f.stubFull
}

func (f *fakeResolver) FirstHop([]byte) (crypto.TypedKey, bool) {
	return f.firstHop, f.hasFirstHop
}

func (f *fakeResolver) HasSeenNodeInfoFor(routeID crypto.TypedKey) bool {
	return f.seenByRoute[routeID]
}

func TestResolveRespondToDirectUnsafeIsSender(t *testing.T) {
	dest := Direct(keyFor(9), Unsafe(SequencingNoPreference))
	rt, err := ResolveRespondTo(dest, &fakeResolver{})
	require.NoError(t, err)
	require.Equal(t, RespondToSender, rt.Kind)
}

func TestResolveRespondToDirectSafeAssemblesRoute(t *testing.T) {
	dest := Direct(keyFor(9), Safe(SafetySpec{HopCount: 2}))
	resolver := &fakeResolver{route: []byte("route-blob"), ok: true}
	rt, err := ResolveRespondTo(dest, resolver)
	require.NoError(t, err)
	require.Equal(t, RespondToPrivateRoute, rt.Kind)
	require.Equal(t, "route-blob", string(rt.Route))
}

func TestResolveRespondToDirectSafeNoRouteIsNoConnection(t *testing.T) {
	dest := Direct(keyFor(9), Safe(SafetySpec{HopCount: 2}))
	_, err := ResolveRespondTo(dest, &fakeResolver{ok: false})
	require.Error(t, err)
}

func TestResolveRespondToPrivateRouteUnsafeStubsToSelf(t *testing.T) {
	route := keyFor(7)
	dest := ToPrivateRoute(route, Unsafe(SequencingNoPreference))
	resolver := &fakeResolver{
		stubOptimized: []byte("optimized"),
		stubFull:      []byte("full"),
		seenByRoute:   map[crypto.TypedKey]bool{route: true},
	}
	rt, err := ResolveRespondTo(dest, resolver)
	require.NoError(t, err)
	require.Equal(t, "optimized", string(rt.Route))

	resolver.seenByRoute[route] = false
	rt, err = ResolveRespondTo(dest, resolver)
	require.NoError(t, err)
	require.Equal(t, "full", string(rt.Route))
}

func TestResolveRespondToPrivateRouteSafeLoopback(t *testing.T) {
	route := keyFor(7)
	spec := SafetySpec{PreferredRoute: &route}
	dest := ToPrivateRoute(route, Safe(spec))
	rt, err := ResolveRespondTo(dest, &fakeResolver{})
	require.NoError(t, err)
	require.Equal(t, RespondToPrivateRoute, rt.Kind)
	require.Nil(t, rt.Route)
}

func TestResolveRespondToPrivateRouteSafeAvoidsFirstHop(t *testing.T) {
	route := keyFor(7)
	otherPreferred := keyFor(42)
	spec := SafetySpec{PreferredRoute: &otherPreferred, HopCount: 2}
	dest := ToPrivateRoute(route, Safe(spec))

	resolver := &fakeResolver{
		route:       []byte("avoided-route"),
		ok:          true,
		firstHop:    keyFor(1),
		hasFirstHop: true,
	}
	rt, err := ResolveRespondTo(dest, resolver)
	require.NoError(t, err)
	require.Equal(t, "avoided-route", string(rt.Route))
	require.Contains(t, resolver.lastAvoid, keyFor(1))
}
