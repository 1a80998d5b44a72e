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

// Package netman implements the Connection Manager (spec §4.2): a table
// of active NetworkConnections keyed by ConnectionDescriptor, protocol
// dialers for UDP/TCP/WS/WSS, and the per-connection receive/send loop.
package netman

import (
	"context"
	"io"

	"github.com/dbasu/corenet/types"
)

// NetworkConnection is one established transport connection, framed or
// packet-oriented underneath but presenting the same byte-frame surface
// to the manager above it.
type NetworkConnection interface {
	io.Closer

	// Descriptor returns the connection's identity (remote + local).
	Descriptor() types.ConnectionDescriptor

	// SendFrame writes one already-encoded frame. Safe to call
	// concurrently with RecvFrame, not with itself.
	SendFrame(ctx context.Context, frame []byte) error

	// RecvFrame blocks for the next inbound frame. Safe to call
	// concurrently with SendFrame, not with itself.
	RecvFrame(ctx context.Context) ([]byte, error)
}

// Dialer establishes outbound NetworkConnections for one protocol.
type Dialer interface {
	Protocol() types.Protocol
	Dial(ctx context.Context, dial types.DialInfo, local *types.SocketAddress) (NetworkConnection, error)
}

// Listener accepts inbound NetworkConnections for one protocol.
type Listener interface {
	Protocol() types.Protocol
	Accept(ctx context.Context) (NetworkConnection, error)
	Close() error
}
