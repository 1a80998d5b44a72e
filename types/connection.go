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
)

// SocketAddress is a concrete IP+port. It holds a net.IP slice, so it is
// not comparable with ==; Key returns its string form for use as a map key.
type SocketAddress struct {
	IP   net.IP
	Port uint16
}

func (s SocketAddress) String() string {
	if s.IP.To4() != nil {
		return fmt.Sprintf("%s:%d", s.IP.String(), s.Port)
	}
	return fmt.Sprintf("[%s]:%d", s.IP.String(), s.Port)
}

// Key returns a comparable, map-key-safe representation.
func (s SocketAddress) Key() string { return s.String() }

// PeerAddress is a remote endpoint: protocol + socket address.
type PeerAddress struct {
	Protocol Protocol
	Address  SocketAddress
}

func (p PeerAddress) String() string {
	return fmt.Sprintf("%s|%s", p.Protocol, p.Address.String())
}

// ConnectionDescriptor is the 5-tuple identifying one connection: remote
// PeerAddress plus an optional local SocketAddress. For connection-oriented
// protocols (TCP, WS, WSS) Local must be set and specified (not the
// unspecified/zero address); for UDP Local may be nil.
type ConnectionDescriptor struct {
	Remote PeerAddress
	Local  *SocketAddress
}

// Key returns a string usable as a map key — equality is exact, matching
// spec invariant 3 (unique per protocol+local).
func (c ConnectionDescriptor) Key() string {
	if c.Local == nil {
		return c.Remote.String() + "|-"
	}
	return c.Remote.String() + "|" + c.Local.String()
}

// Validate enforces "for connection-oriented protocols, local must be
// specified and not unspecified."
func (c ConnectionDescriptor) Validate() error {
	connOriented := c.Remote.Protocol == ProtocolTCP || c.Remote.Protocol == ProtocolWS || c.Remote.Protocol == ProtocolWSS
	if !connOriented {
		return nil
	}
	if c.Local == nil {
		return fmt.Errorf("types: connection-oriented descriptor missing local address")
	}
	if c.Local.IP == nil || c.Local.IP.IsUnspecified() {
		return fmt.Errorf("types: connection-oriented descriptor has unspecified local address")
	}
	return nil
}
