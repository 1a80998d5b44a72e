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

package wireformat

import (
	"github.com/dbasu/corenet/types"
	"github.com/ethereum/go-ethereum/rlp"
)

// rlpNodeInfo is the canonical, signature-stable encoding of a NodeInfo:
// the field set a SignedNodeInfo's signatures are computed over. RLP is
// used here (rather than the envelope's fixed-width packing) because this
// is a schema-shaped structured record, the same reason the RPC payload
// types in package rpc use it.
type rlpNodeInfo struct {
	NetworkClass     uint8
	OutboundProtos   []uint8
	AddressTypes     []uint8
	EnvMin           uint8
	EnvMax           uint8
	CryptoSupport    [][4]byte
	Capabilities     [][4]byte
	DialInfoProtocol []uint8
	DialInfoAddress  [][]byte
	DialInfoPort     []uint16
	DialInfoURL      []string
	Timestamp        uint64
}

// NodeInfoEncoder implements types.SignedDataEncoder with an RLP-based
// codec, the encoder every routing-table / RPC validation call uses.
type NodeInfoEncoder struct{}

func (NodeInfoEncoder) EncodeSignedNodeInfoBody(sni *types.SignedNodeInfo) []byte {
	r := rlpNodeInfo{
		NetworkClass: uint8(sni.NodeInfo.NetworkClass),
		EnvMin:       sni.NodeInfo.EnvelopeVersions.Min,
		EnvMax:       sni.NodeInfo.EnvelopeVersions.Max,
		Timestamp:    sni.Timestamp,
	}
	for p := range sni.NodeInfo.OutboundProtocols {
		r.OutboundProtos = append(r.OutboundProtos, uint8(p))
	}
	for a := range sni.NodeInfo.AddressTypes {
		r.AddressTypes = append(r.AddressTypes, uint8(a))
	}
	for _, k := range sni.NodeInfo.CryptoSupport {
		r.CryptoSupport = append(r.CryptoSupport, k)
	}
	for _, cap := range sni.NodeInfo.Capabilities {
		r.Capabilities = append(r.Capabilities, cap)
	}
	for _, di := range sni.NodeInfo.DialInfoDetail {
		r.DialInfoProtocol = append(r.DialInfoProtocol, uint8(di.Protocol))
		r.DialInfoAddress = append(r.DialInfoAddress, []byte(di.Address))
		r.DialInfoPort = append(r.DialInfoPort, di.Port)
		r.DialInfoURL = append(r.DialInfoURL, di.RequestURL)
	}
	out, err := rlp.EncodeToBytes(&r)
	if err != nil {
		// Every field above is RLP-encodable; a failure here means a
		// construction bug, not bad input.
		panic(err)
	}
	return out
}
