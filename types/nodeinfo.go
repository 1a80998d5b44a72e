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
	"fmt"

	"github.com/dbasu/corenet/crypto"
)

// RoutingDomain selects which address space a NodeInfo/dial-info set
// applies to. Each domain has independent dial info and classification.
type RoutingDomain uint8

const (
	RoutingDomainPublicInternet RoutingDomain = iota
	RoutingDomainLocalNetwork
)

// NetworkClass describes how reachable a node is within a routing domain.
type NetworkClass uint8

const (
	NetworkClassInvalid NetworkClass = iota
	NetworkClassInboundCapable
	NetworkClassOutboundOnly
	NetworkClassWebApp
)

// EnvelopeVersionRange is an inclusive [Min, Max] range of supported
// envelope wire versions.
type EnvelopeVersionRange struct {
	Min uint8
	Max uint8
}

func (r EnvelopeVersionRange) Contains(v uint8) bool { return v >= r.Min && v <= r.Max }

// NodeInfo describes one node's capabilities and reachability within a
// single routing domain.
type NodeInfo struct {
	NetworkClass      NetworkClass
	OutboundProtocols map[Protocol]struct{}
	AddressTypes      map[AddressType]struct{}
	EnvelopeVersions  EnvelopeVersionRange
	CryptoSupport     []crypto.CryptoKind
	Capabilities      []FourCC
	DialInfoDetail    []DialInfo // ordered; earlier entries preferred
}

// HasCapability reports whether c is advertised.
func (n *NodeInfo) HasCapability(c FourCC) bool {
	for _, have := range n.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// SupportsCryptoKind reports whether kind is in CryptoSupport.
func (n *NodeInfo) SupportsCryptoKind(kind crypto.CryptoKind) bool {
	for _, k := range n.CryptoSupport {
		if k == kind {
			return true
		}
	}
	return false
}

// SignedNodeInfo is either direct (self-signed with each supported key)
// or relayed (bundled with a relay PeerInfo, Relay non-nil). In both cases
// Signatures holds the signatures over the encoded body.
type SignedNodeInfo struct {
	NodeInfo   NodeInfo
	Relay      *PeerInfo // non-nil => relayed
	Timestamp  uint64    // microseconds
	Signatures []crypto.TypedSignature
}

// SignedDataEncoder produces the byte representation covered by Signatures. A real
// wire encoder (wireformat) produces the canonical bytes; this indirection
// keeps SignedNodeInfo decoupled from the encoding package to avoid an
// import cycle (wireformat depends on types, not vice versa).
type SignedDataEncoder interface {
	EncodeSignedNodeInfoBody(sni *SignedNodeInfo) []byte
}

// Validate checks the structural invariants from spec §3: at least one
// signature, and if relayed, the relay must itself be a valid direct SNI
// (one level only — nested relays are rejected, per the Open Question
// decision recorded in DESIGN.md).
func (s *SignedNodeInfo) Validate(enc SignedDataEncoder, c *crypto.Crypto) error {
	if len(s.Signatures) == 0 {
		return fmt.Errorf("types: signed node info has no signatures")
	}
	if s.Relay != nil {
		if s.Relay.SignedNodeInfo.Relay != nil {
			return fmt.Errorf("types: nested relayed signed node info is not supported")
		}
		if err := s.Relay.SignedNodeInfo.Validate(enc, c); err != nil {
			return fmt.Errorf("types: relay signed node info invalid: %w", err)
		}
	}
	body := enc.EncodeSignedNodeInfoBody(s)
	verifiedAny := false
	for _, sig := range s.Signatures {
		sys, err := c.System(sig.Kind)
		if err != nil {
			continue
		}
		key, ok := s.keyForKind(sig.Kind)
		if !ok {
			continue
		}
		if sys.Verify(key, body, sig) {
			verifiedAny = true
		}
	}
	if !verifiedAny {
		return fmt.Errorf("types: signed node info failed signature verification")
	}
	return nil
}

func (s *SignedNodeInfo) keyForKind(kind crypto.CryptoKind) (crypto.TypedKey, bool) {
	// The caller (typically a PeerInfo) supplies the node IDs; a bare
	// SignedNodeInfo does not carry them. Direct SNIs are always
	// validated through PeerInfo.Validate, which has the node ID set.
	return crypto.TypedKey{}, false
}

// PeerInfo is a set of typed node IDs (one per crypto kind, same
// underlying 32-byte value permitted across kinds) plus one SignedNodeInfo.
type PeerInfo struct {
	NodeIDs        crypto.TypedKeyGroup
	SignedNodeInfo SignedNodeInfo
}

// Validate enforces "a node may not be its own relay" plus SNI validation
// using NodeIDs as the verification key set.
func (p *PeerInfo) Validate(enc SignedDataEncoder, c *crypto.Crypto) error {
	if p.SignedNodeInfo.Relay != nil && p.NodeIDs.ContainsAny(p.SignedNodeInfo.Relay.NodeIDs) {
		return fmt.Errorf("types: peer info names itself as its own relay")
	}
	if len(p.SignedNodeInfo.Signatures) == 0 {
		return fmt.Errorf("types: peer info signed node info has no signatures")
	}
	if p.SignedNodeInfo.Relay != nil {
		if p.SignedNodeInfo.Relay.SignedNodeInfo.Relay != nil {
			return fmt.Errorf("types: nested relayed signed node info is not supported")
		}
		if err := p.SignedNodeInfo.Relay.Validate(enc, c); err != nil {
			return fmt.Errorf("types: relay peer info invalid: %w", err)
		}
	}
	body := enc.EncodeSignedNodeInfoBody(&p.SignedNodeInfo)
	verifiedAny := false
	for _, sig := range p.SignedNodeInfo.Signatures {
		sys, err := c.System(sig.Kind)
		if err != nil {
			continue
		}
		key, ok := p.NodeIDs.Get(sig.Kind)
		if !ok {
			continue
		}
		if sys.Verify(key, body, sig) {
			verifiedAny = true
		}
	}
	if !verifiedAny {
		return fmt.Errorf("types: peer info failed signature verification")
	}
	return nil
}

// IsSelf reports whether localIDs and p.NodeIDs share any key.
func (p *PeerInfo) IsSelf(localIDs crypto.TypedKeyGroup) bool {
	return localIDs.ContainsAny(p.NodeIDs)
}
