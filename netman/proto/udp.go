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

// Package proto implements the four transport dialers the Connection
// Manager uses (spec §4.2/§6): UDP, TCP, WS, WSS.
package proto

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/dbasu/corenet/netman"
	"github.com/dbasu/corenet/types"
)

const maxUDPFrameSize = 65507

// UDPConnection wraps a connected UDP socket. UDP is packet-oriented and
// connectionless on the wire, but net.DialUDP gives each peer its own
// *net.UDPConn so the manager can treat it like any other framed
// connection (one send/recv pair per descriptor).
type UDPConnection struct {
	conn  *net.UDPConn
	local types.SocketAddress
	desc  types.ConnectionDescriptor
}

func (c *UDPConnection) Descriptor() types.ConnectionDescriptor { return c.desc }

func (c *UDPConnection) SendFrame(ctx context.Context, frame []byte) error {
	if len(frame) > maxUDPFrameSize {
		return fmt.Errorf("proto: udp frame exceeds %d bytes", maxUDPFrameSize)
	}
	_, err := c.conn.Write(frame)
	return err
}

func (c *UDPConnection) RecvFrame(ctx context.Context) ([]byte, error) {
	buf := make([]byte, maxUDPFrameSize)
	n, err := c.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (c *UDPConnection) Close() error { return c.conn.Close() }

// UDPDialer dials UDPConnections.
type UDPDialer struct{}

func (UDPDialer) Protocol() types.Protocol { return types.ProtocolUDP }

func (UDPDialer) Dial(ctx context.Context, dial types.DialInfo, local *types.SocketAddress) (netman.NetworkConnection, error) {
	raddr := &net.UDPAddr{IP: dial.Address, Port: int(dial.Port)}
	var laddr *net.UDPAddr
	if local != nil {
		laddr = &net.UDPAddr{IP: local.IP, Port: int(local.Port)}
	}
	conn, err := net.DialUDP("udp", laddr, raddr)
	if err != nil {
		return nil, err
	}
	localAddr := conn.LocalAddr().(*net.UDPAddr)
	desc := types.ConnectionDescriptor{
		Remote: types.PeerAddress{Protocol: types.ProtocolUDP, Address: types.SocketAddress{IP: dial.Address, Port: dial.Port}},
	}
	if local != nil {
		ls := types.SocketAddress{IP: localAddr.IP, Port: uint16(localAddr.Port)}
		desc.Local = &ls
	}
	return &UDPConnection{conn: conn, desc: desc}, nil
}

// UDPListener listens on one UDP socket and demultiplexes inbound
// datagrams into a virtual NetworkConnection per remote address: UDP is
// connectionless on the wire, but the Connection Manager above expects
// one descriptor-addressed connection per remote (spec §4.2).
type UDPListener struct {
	pc net.PacketConn

	mu    sync.Mutex
	peers map[string]*udpPeerConnection

	acceptCh chan netman.NetworkConnection
	closeCh  chan struct{}
	closeOnce sync.Once
}

func NewUDPListener(listenAddr string) (*UDPListener, error) {
	pc, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, err
	}
	l := &UDPListener{
		pc:       pc,
		peers:    make(map[string]*udpPeerConnection),
		acceptCh: make(chan netman.NetworkConnection, 16),
		closeCh:  make(chan struct{}),
	}
	go l.readLoop()
	return l, nil
}

func (l *UDPListener) Protocol() types.Protocol { return types.ProtocolUDP }

func (l *UDPListener) readLoop() {
	buf := make([]byte, maxUDPFrameSize)
	for {
		n, addr, err := l.pc.ReadFrom(buf)
		if err != nil {
			return
		}
		raddr, ok := addr.(*net.UDPAddr)
		if !ok {
			continue
		}
		frame := append([]byte(nil), buf[:n]...)

		l.mu.Lock()
		peer, known := l.peers[raddr.String()]
		if !known {
			peer = newUDPPeerConnection(l, raddr)
			l.peers[raddr.String()] = peer
		}
		l.mu.Unlock()

		if !known {
			select {
			case l.acceptCh <- peer:
			case <-l.closeCh:
				return
			}
		}
		select {
		case peer.recvCh <- frame:
		case <-l.closeCh:
			return
		default:
			// slow reader: drop rather than block the shared read loop
		}
	}
}

func (l *UDPListener) Accept(ctx context.Context) (netman.NetworkConnection, error) {
	select {
	case c := <-l.acceptCh:
		return c, nil
	case <-l.closeCh:
		return nil, fmt.Errorf("proto: udp listener closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *UDPListener) Close() error {
	l.closeOnce.Do(func() { close(l.closeCh) })
	return l.pc.Close()
}

func (l *UDPListener) removePeer(addr string) {
	l.mu.Lock()
	delete(l.peers, addr)
	l.mu.Unlock()
}

// udpPeerConnection is one remote address's view of the shared listener
// socket: SendFrame writes to that remote, RecvFrame drains the frames
// the read loop routed to it.
type udpPeerConnection struct {
	listener *UDPListener
	remote   *net.UDPAddr
	desc     types.ConnectionDescriptor
	recvCh   chan []byte

	closeOnce sync.Once
}

func newUDPPeerConnection(l *UDPListener, raddr *net.UDPAddr) *udpPeerConnection {
	return &udpPeerConnection{
		listener: l,
		remote:   raddr,
		desc: types.ConnectionDescriptor{
			Remote: types.PeerAddress{Protocol: types.ProtocolUDP, Address: types.SocketAddress{IP: raddr.IP, Port: uint16(raddr.Port)}},
		},
		recvCh: make(chan []byte, 16),
	}
}

func (c *udpPeerConnection) Descriptor() types.ConnectionDescriptor { return c.desc }

func (c *udpPeerConnection) SendFrame(ctx context.Context, frame []byte) error {
	if len(frame) > maxUDPFrameSize {
		return fmt.Errorf("proto: udp frame exceeds %d bytes", maxUDPFrameSize)
	}
	_, err := c.listener.pc.WriteTo(frame, c.remote)
	return err
}

func (c *udpPeerConnection) RecvFrame(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-c.recvCh:
		return frame, nil
	case <-c.listener.closeCh:
		return nil, fmt.Errorf("proto: udp listener closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *udpPeerConnection) Close() error {
	c.closeOnce.Do(func() { c.listener.removePeer(c.remote.String()) })
	return nil
}
