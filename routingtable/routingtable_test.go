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
	"testing"
	"time"

	"github.com/dbasu/corenet/crypto"
	"github.com/dbasu/corenet/types"
	"github.com/dbasu/corenet/wireformat"
	"github.com/stretchr/testify/require"
)

func newTestPeerInfo(t *testing.T, c *crypto.Crypto, kind crypto.CryptoKind) (*types.PeerInfo, crypto.TypedKeyPair) {
	t.Helper()
	kp, err := c.GenerateKeyPairForKind(kind)
	require.NoError(t, err)

	sni := types.SignedNodeInfo{
		NodeInfo: types.NodeInfo{
			NetworkClass:     types.NetworkClassInboundCapable,
			EnvelopeVersions: types.EnvelopeVersionRange{Min: 0, Max: 0},
		},
		Timestamp: 1,
	}
	enc := wireformat.NodeInfoEncoder{}
	body := enc.EncodeSignedNodeInfoBody(&sni)
	sys, err := c.System(kind)
	require.NoError(t, err)
	sig, err := sys.Sign(kp.Key, kp.Secret, body)
	require.NoError(t, err)
	sni.Signatures = []crypto.TypedSignature{sig}

	return &types.PeerInfo{
		NodeIDs:        crypto.TypedKeyGroup{kp.Key},
		SignedNodeInfo: sni,
	}, kp
}

func newTestTable(t *testing.T) (*RoutingTable, *crypto.Crypto, crypto.TypedKeyPair) {
	t.Helper()
	c := crypto.New(16)
	localKP, err := c.GenerateKeyPairForKind(crypto.KindVLD0)
	require.NoError(t, err)
	rt := New(c, wireformat.NodeInfoEncoder{}, crypto.TypedKeyGroup{localKP.Key}, 4, time.Minute)
	return rt, c, localKP
}

func TestRegisterAndLookupNodeRef(t *testing.T) {
	rt, c, _ := newTestTable(t)
	pi, kp := newTestPeerInfo(t, c, crypto.KindVLD0)

	ref := rt.RegisterNodeWithPeerInfo(types.RoutingDomainPublicInternet, pi, false)
	require.NotNil(t, ref)
	defer ref.Release()

	require.Equal(t, 1, rt.EntryCount())

	found := rt.LookupNodeRef(kp.Key)
	require.NotNil(t, found)
	defer found.Release()
	require.Equal(t, ref.Entry(), found.Entry())

	anyFound := rt.LookupAnyNodeRef(kp.Key.Value)
	require.NotNil(t, anyFound)
	defer anyFound.Release()
}

func TestRegisterRejectsSelf(t *testing.T) {
	rt, _, localKP := newTestTable(t)
	sni := types.SignedNodeInfo{Timestamp: 1}
	pi := &types.PeerInfo{NodeIDs: crypto.TypedKeyGroup{localKP.Key}, SignedNodeInfo: sni}

	ref := rt.RegisterNodeWithPeerInfo(types.RoutingDomainPublicInternet, pi, true)
	require.Nil(t, ref)
	require.Equal(t, 0, rt.EntryCount())
}

func TestRegisterRejectsInvalidUnlessAllowed(t *testing.T) {
	rt, c, _ := newTestTable(t)
	kp, err := c.GenerateKeyPairForKind(crypto.KindVLD0)
	require.NoError(t, err)
	pi := &types.PeerInfo{
		NodeIDs:        crypto.TypedKeyGroup{kp.Key},
		SignedNodeInfo: types.SignedNodeInfo{Timestamp: 1}, // no signatures -> invalid
	}

	require.Nil(t, rt.RegisterNodeWithPeerInfo(types.RoutingDomainPublicInternet, pi, false))
	require.Equal(t, 0, rt.EntryCount())

	ref := rt.RegisterNodeWithPeerInfo(types.RoutingDomainPublicInternet, pi, true)
	require.NotNil(t, ref)
	ref.Release()
	require.Equal(t, 1, rt.EntryCount())
}

func TestBucketLivenessClassification(t *testing.T) {
	// Scenario: never-seen entry, then becomes Unreliable once seen, then
	// Reliable once a consecutive-seen streak kept up by answers exceeds
	// UnreliablePingSpanSecs, then Dead once sends to it keep failing.
	rt, c, _ := newTestTable(t)
	pi, kp := newTestPeerInfo(t, c, crypto.KindVLD0)
	ref := rt.RegisterNodeWithPeerInfo(types.RoutingDomainPublicInternet, pi, false)
	require.NotNil(t, ref)
	defer ref.Release()

	start := time.Now()
	e := ref.Entry()
	require.Equal(t, StateUnreliable, e.State(start))

	e.OnAnswerRcvd(start, 10*time.Millisecond)
	require.Equal(t, StateUnreliable, e.State(start))

	later := start.Add(secs(UnreliablePingSpanSecs + 1))
	e.OnAnswerRcvd(later, 10*time.Millisecond)
	require.Equal(t, StateReliable, e.State(later))

	for i := 0; i < NeverReachedPingCount; i++ {
		e.OnFailedToSend()
	}
	require.Equal(t, StateDead, e.State(later))

	found := rt.LookupNodeRef(kp.Key)
	require.NotNil(t, found)
	found.Release()
}

func TestFindClosestNodesOrdersByDistance(t *testing.T) {
	rt, c, localKP := newTestTable(t)
	var refs []*NodeRef
	for i := 0; i < 5; i++ {
		pi, _ := newTestPeerInfo(t, c, crypto.KindVLD0)
		ref := rt.RegisterNodeWithPeerInfo(types.RoutingDomainPublicInternet, pi, false)
		require.NotNil(t, ref)
		refs = append(refs, ref)
	}
	defer func() {
		for _, r := range refs {
			r.Release()
		}
	}()

	closest := FindClosestNodes(rt, crypto.KindVLD0, 3, nil)
	require.Len(t, closest, 3)
	sys, err := c.System(crypto.KindVLD0)
	require.NoError(t, err)
	var prev [32]byte
	for i, r := range closest {
		id, ok := r.NodeIDs().Get(crypto.KindVLD0)
		require.True(t, ok)
		dist := sys.DistanceMetric(localKP.Key, id)
		if i > 0 {
			require.True(t, bytes.Compare(prev[:], dist[:]) <= 0, "closest nodes must come in ascending XOR distance")
		}
		prev = dist
	}
	for _, r := range closest {
		r.Release()
	}
}

func TestRefCountTracksCloneAndRelease(t *testing.T) {
	rt, c, _ := newTestTable(t)
	pi, kp := newTestPeerInfo(t, c, crypto.KindVLD0)
	ref := rt.RegisterNodeWithPeerInfo(types.RoutingDomainPublicInternet, pi, false)
	require.NotNil(t, ref)

	e := ref.Entry()
	require.Equal(t, int32(1), e.RefCount())

	clone := ref.Clone()
	require.Equal(t, int32(2), e.RefCount())

	clone.Release()
	require.Equal(t, int32(1), e.RefCount())

	ref.Release()
	require.Equal(t, int32(0), e.RefCount())

	// Entry itself remains looked-up-able until grooming actually evicts it.
	found := rt.LookupNodeRef(kp.Key)
	require.NotNil(t, found)
	found.Release()
}
