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

package proto

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/dbasu/corenet/netman"
	"github.com/dbasu/corenet/types"
)

const maxTCPFrameSize = 16 * 1024 * 1024

// TCPConnection frames a stream socket with a 4-byte big-endian length
// prefix, since TCP itself carries no message boundaries.
type TCPConnection struct {
	conn net.Conn
	desc types.ConnectionDescriptor
}

func newTCPConnection(conn net.Conn, desc types.ConnectionDescriptor) *TCPConnection {
	return &TCPConnection{conn: conn, desc: desc}
}

func (c *TCPConnection) Descriptor() types.ConnectionDescriptor { return c.desc }

func (c *TCPConnection) SendFrame(ctx context.Context, frame []byte) error {
	return writeLengthPrefixed(c.conn, frame)
}

func (c *TCPConnection) RecvFrame(ctx context.Context) ([]byte, error) {
	return readLengthPrefixed(c.conn)
}

func (c *TCPConnection) Close() error { return c.conn.Close() }

func writeLengthPrefixed(w io.Writer, frame []byte) error {
	if len(frame) > maxTCPFrameSize {
		return fmt.Errorf("proto: frame exceeds %d bytes", maxTCPFrameSize)
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(frame)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(frame)
	return err
}

func readLengthPrefixed(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxTCPFrameSize {
		return nil, fmt.Errorf("proto: inbound frame declares %d bytes, exceeds max", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func connDescriptor(protocol types.Protocol, conn net.Conn) types.ConnectionDescriptor {
	remoteAddr := conn.RemoteAddr().(*net.TCPAddr)
	localAddr := conn.LocalAddr().(*net.TCPAddr)
	local := types.SocketAddress{IP: localAddr.IP, Port: uint16(localAddr.Port)}
	return types.ConnectionDescriptor{
		Remote: types.PeerAddress{Protocol: protocol, Address: types.SocketAddress{IP: remoteAddr.IP, Port: uint16(remoteAddr.Port)}},
		Local:  &local,
	}
}

// TCPDialer dials TCPConnections.
type TCPDialer struct{}

func (TCPDialer) Protocol() types.Protocol { return types.ProtocolTCP }

func (TCPDialer) Dial(ctx context.Context, dial types.DialInfo, local *types.SocketAddress) (netman.NetworkConnection, error) {
	raddr := &net.TCPAddr{IP: dial.Address, Port: int(dial.Port)}
	dialer := net.Dialer{}
	if local != nil {
		dialer.LocalAddr = &net.TCPAddr{IP: local.IP, Port: int(local.Port)}
	}
	conn, err := dialer.DialContext(ctx, "tcp", raddr.String())
	if err != nil {
		return nil, err
	}
	return newTCPConnection(conn, connDescriptor(types.ProtocolTCP, conn)), nil
}

// TCPListener accepts inbound TCP connections.
type TCPListener struct {
	ln net.Listener
}

func NewTCPListener(ctx context.Context, listenAddr string) (*TCPListener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	return &TCPListener{ln: ln}, nil
}

func (l *TCPListener) Protocol() types.Protocol { return types.ProtocolTCP }

func (l *TCPListener) Accept(ctx context.Context) (netman.NetworkConnection, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return newTCPConnection(conn, connDescriptor(types.ProtocolTCP, conn)), nil
}

func (l *TCPListener) Close() error { return l.ln.Close() }
