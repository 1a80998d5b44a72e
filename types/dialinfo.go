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
	"net"
	"strconv"
	"strings"

	"github.com/dbasu/corenet/crypto"
)

// Protocol identifies the transport a DialInfo describes.
type Protocol uint8

const (
	ProtocolUDP Protocol = iota
	ProtocolTCP
	ProtocolWS
	ProtocolWSS
)

func (p Protocol) String() string {
	switch p {
	case ProtocolUDP:
		return "udp"
	case ProtocolTCP:
		return "tcp"
	case ProtocolWS:
		return "ws"
	case ProtocolWSS:
		return "wss"
	default:
		return "unknown"
	}
}

func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(s) {
	case "udp":
		return ProtocolUDP, nil
	case "tcp":
		return ProtocolTCP, nil
	case "ws":
		return ProtocolWS, nil
	case "wss":
		return ProtocolWSS, nil
	default:
		return 0, fmt.Errorf("types: unknown protocol %q", s)
	}
}

// AddressType distinguishes IPv4 from IPv6 dial info / capability sets.
type AddressType uint8

const (
	AddressTypeIPV4 AddressType = iota
	AddressTypeIPV6
)

// DialInfo is one concrete reachable endpoint: UDP/TCP carry just a
// socket address, WS/WSS additionally carry a request URL path.
type DialInfo struct {
	Protocol   Protocol
	Address    net.IP
	Port       uint16
	RequestURL string // only meaningful for WS/WSS
}

func (d DialInfo) AddressType() AddressType {
	if d.Address.To4() != nil {
		return AddressTypeIPV4
	}
	return AddressTypeIPV6
}

func (d DialInfo) socketAddrString() string {
	if d.Address.To4() != nil {
		return fmt.Sprintf("%s:%d", d.Address.String(), d.Port)
	}
	return fmt.Sprintf("[%s]:%d", d.Address.String(), d.Port)
}

// String renders the canonical "<protocol>|<address>[|<path>]" form (the
// node-id suffix is added by NodeDialInfo.String).
func (d DialInfo) String() string {
	switch d.Protocol {
	case ProtocolWS, ProtocolWSS:
		return fmt.Sprintf("%s|%s|%s", d.Protocol, d.socketAddrString(), d.RequestURL)
	default:
		return fmt.Sprintf("%s|%s", d.Protocol, d.socketAddrString())
	}
}

// NodeDialInfo pairs a DialInfo with the node ID it reaches, parseable
// to/from the canonical string form: <protocol>|<address>[|<path>]@<nodeid>.
type NodeDialInfo struct {
	NodeID   crypto.TypedKey
	DialInfo DialInfo
}

func (n NodeDialInfo) String() string {
	return fmt.Sprintf("%s@%s", n.DialInfo.String(), n.NodeID.String())
}

// ParseNodeDialInfo parses the canonical string form produced by String.
func ParseNodeDialInfo(s string) (NodeDialInfo, error) {
	atIdx := strings.LastIndexByte(s, '@')
	if atIdx < 0 {
		return NodeDialInfo{}, fmt.Errorf("types: node dial info %q missing @nodeid", s)
	}
	dialPart, nodePart := s[:atIdx], s[atIdx+1:]

	nodeID, err := ParseTypedKey(nodePart)
	if err != nil {
		return NodeDialInfo{}, fmt.Errorf("types: node dial info %q: %w", s, err)
	}

	parts := strings.SplitN(dialPart, "|", 3)
	if len(parts) < 2 {
		return NodeDialInfo{}, fmt.Errorf("types: dial info %q missing protocol|address", dialPart)
	}
	proto, err := ParseProtocol(parts[0])
	if err != nil {
		return NodeDialInfo{}, err
	}
	host, portStr, err := net.SplitHostPort(parts[1])
	if err != nil {
		return NodeDialInfo{}, fmt.Errorf("types: dial info %q bad address: %w", dialPart, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return NodeDialInfo{}, fmt.Errorf("types: dial info %q bad port: %w", dialPart, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return NodeDialInfo{}, fmt.Errorf("types: dial info %q bad ip %q", dialPart, host)
	}
	di := DialInfo{Protocol: proto, Address: ip, Port: uint16(port)}
	if len(parts) == 3 {
		di.RequestURL = parts[2]
	}
	return NodeDialInfo{NodeID: nodeID, DialInfo: di}, nil
}

// ParseTypedKey parses the "<kind>:<hex>" form produced by crypto.TypedKey.String.
func ParseTypedKey(s string) (crypto.TypedKey, error) {
	idx := strings.IndexByte(s, ':')
	if idx != 4 {
		return crypto.TypedKey{}, fmt.Errorf("types: bad typed key %q", s)
	}
	var k crypto.TypedKey
	copy(k.Kind[:], s[:4])
	n, err := hexDecodeInto(k.Value[:], s[5:])
	if err != nil || n != 32 {
		return crypto.TypedKey{}, fmt.Errorf("types: bad typed key value %q", s)
	}
	return k, nil
}

func hexDecodeInto(dst []byte, s string) (int, error) {
	if len(s) != len(dst)*2 {
		return 0, fmt.Errorf("types: hex length mismatch")
	}
	for i := range dst {
		hi, err := hexNibble(s[i*2])
		if err != nil {
			return 0, err
		}
		lo, err := hexNibble(s[i*2+1])
		if err != nil {
			return 0, err
		}
		dst[i] = hi<<4 | lo
	}
	return len(dst), nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("types: bad hex char %q", c)
	}
}
