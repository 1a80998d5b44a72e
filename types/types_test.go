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

package types

import (
	"net"
	"testing"

	"github.com/dbasu/corenet/crypto"
	"github.com/stretchr/testify/require"
)

func TestNodeDialInfoRoundTrip(t *testing.T) {
	ndi := NodeDialInfo{
		NodeID: crypto.TypedKey{Kind: crypto.KindVLD0, Value: [32]byte{1, 2, 3}},
		DialInfo: DialInfo{
			Protocol: ProtocolWSS,
			Address:  net.ParseIP("203.0.113.5"),
			Port:     5150,
			RequestURL: "ws",
		},
	}
	s := ndi.String()
	parsed, err := ParseNodeDialInfo(s)
	require.NoError(t, err)
	require.Equal(t, ndi.NodeID, parsed.NodeID)
	require.Equal(t, ndi.DialInfo.Protocol, parsed.DialInfo.Protocol)
	require.Equal(t, ndi.DialInfo.Port, parsed.DialInfo.Port)
	require.True(t, ndi.DialInfo.Address.Equal(parsed.DialInfo.Address))
	require.Equal(t, ndi.DialInfo.RequestURL, parsed.DialInfo.RequestURL)
}

func TestConnectionDescriptorValidate(t *testing.T) {
	udp := ConnectionDescriptor{Remote: PeerAddress{Protocol: ProtocolUDP, Address: SocketAddress{IP: net.ParseIP("1.2.3.4"), Port: 1}}}
	require.NoError(t, udp.Validate())

	tcpNoLocal := ConnectionDescriptor{Remote: PeerAddress{Protocol: ProtocolTCP, Address: SocketAddress{IP: net.ParseIP("1.2.3.4"), Port: 1}}}
	require.Error(t, tcpNoLocal.Validate())

	tcpUnspecifiedLocal := ConnectionDescriptor{
		Remote: PeerAddress{Protocol: ProtocolTCP, Address: SocketAddress{IP: net.ParseIP("1.2.3.4"), Port: 1}},
		Local:  &SocketAddress{IP: net.IPv4zero, Port: 0},
	}
	require.Error(t, tcpUnspecifiedLocal.Validate())

	tcpOK := ConnectionDescriptor{
		Remote: PeerAddress{Protocol: ProtocolTCP, Address: SocketAddress{IP: net.ParseIP("1.2.3.4"), Port: 1}},
		Local:  &SocketAddress{IP: net.ParseIP("10.0.0.5"), Port: 4000},
	}
	require.NoError(t, tcpOK.Validate())
}

func TestTypedKeyGroupOperations(t *testing.T) {
	k1 := crypto.TypedKey{Kind: crypto.KindVLD0, Value: [32]byte{1}}
	k2 := crypto.TypedKey{Kind: crypto.KindSECP, Value: [32]byte{2}}
	g := crypto.TypedKeyGroup{k1}
	require.True(t, g.Contains(k1))
	require.False(t, g.Contains(k2))

	g2 := g.With(k2)
	require.True(t, g2.Contains(k1))
	require.True(t, g2.Contains(k2))

	require.True(t, g2.ContainsAny(crypto.TypedKeyGroup{k2}))
	require.False(t, g.ContainsAny(crypto.TypedKeyGroup{k2}))
}

type fakeEncoder struct{}

func (fakeEncoder) EncodeSignedNodeInfoBody(sni *SignedNodeInfo) []byte {
	return []byte("body")
}

func TestPeerInfoRejectsSelfRelay(t *testing.T) {
	c := crypto.New(4)
	kp, err := c.GenerateKeyPair()
	require.NoError(t, err)

	relay := &PeerInfo{
		NodeIDs: crypto.TypedKeyGroup{kp.Key},
		SignedNodeInfo: SignedNodeInfo{
			Signatures: []crypto.TypedSignature{{Kind: crypto.KindVLD0}},
		},
	}
	p := &PeerInfo{
		NodeIDs: crypto.TypedKeyGroup{kp.Key},
		SignedNodeInfo: SignedNodeInfo{
			Relay:      relay,
			Signatures: []crypto.TypedSignature{{Kind: crypto.KindVLD0}},
		},
	}
	err = p.Validate(fakeEncoder{}, c)
	require.Error(t, err)
}

func TestPeerInfoRejectsNestedRelay(t *testing.T) {
	c := crypto.New(4)
	kpA, _ := c.GenerateKeyPair()
	kpB, _ := c.GenerateKeyPair()
	kpC, _ := c.GenerateKeyPair()

	innerRelay := &PeerInfo{
		NodeIDs:        crypto.TypedKeyGroup{kpA.Key},
		SignedNodeInfo: SignedNodeInfo{Signatures: []crypto.TypedSignature{{Kind: crypto.KindVLD0}}},
	}
	outerRelay := &PeerInfo{
		NodeIDs: crypto.TypedKeyGroup{kpB.Key},
		SignedNodeInfo: SignedNodeInfo{
			Relay:      innerRelay,
			Signatures: []crypto.TypedSignature{{Kind: crypto.KindVLD0}},
		},
	}
	p := &PeerInfo{
		NodeIDs: crypto.TypedKeyGroup{kpC.Key},
		SignedNodeInfo: SignedNodeInfo{
			Relay:      outerRelay,
			Signatures: []crypto.TypedSignature{{Kind: crypto.KindVLD0}},
		},
	}
	err := p.Validate(fakeEncoder{}, c)
	require.ErrorContains(t, err, "nested")
}
