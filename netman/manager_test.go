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

package netman

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dbasu/corenet/addrfilter"
	"github.com/dbasu/corenet/types"
)

// fakeConnection is an in-memory NetworkConnection for tests: frames sent
// on one side become receivable from the other via a pair of channels, so
// no real sockets are needed.
type fakeConnection struct {
	desc types.ConnectionDescriptor
	out  chan []byte
	in   chan []byte

	mu     sync.Mutex
	closed bool
}

func newFakeConnectionPair(remoteDialAddr net.IP, remotePort uint16, localAddr net.IP, localPort uint16, proto types.Protocol) (*fakeConnection, *fakeConnection) {
	ab := make(chan []byte, 16)
	ba := make(chan []byte, 16)

	var local *types.SocketAddress
	if proto != types.ProtocolUDP {
		l := types.SocketAddress{IP: localAddr, Port: localPort}
		local = &l
	}

	a := &fakeConnection{
		desc: types.ConnectionDescriptor{
			Remote: types.PeerAddress{Protocol: proto, Address: types.SocketAddress{IP: remoteDialAddr, Port: remotePort}},
			Local:  local,
		},
		out: ab,
		in:  ba,
	}
	var bLocal *types.SocketAddress
	if proto != types.ProtocolUDP {
		l := types.SocketAddress{IP: remoteDialAddr, Port: remotePort}
		bLocal = &l
	}
	b := &fakeConnection{
		desc: types.ConnectionDescriptor{
			Remote: types.PeerAddress{Protocol: proto, Address: types.SocketAddress{IP: localAddr, Port: localPort}},
			Local:  bLocal,
		},
		out: ba,
		in:  ab,
	}
	return a, b
}

func (c *fakeConnection) Descriptor() types.ConnectionDescriptor { return c.desc }

func (c *fakeConnection) SendFrame(ctx context.Context, frame []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("fakeConnection: closed")
	}
	select {
	case c.out <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConnection) RecvFrame(ctx context.Context) ([]byte, error) {
	select {
	case frame, ok := <-c.in:
		if !ok {
			return nil, fmt.Errorf("fakeConnection: closed")
		}
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.out)
	}
	return nil
}

// fakeDialer always returns the same pre-built connection (keyed by
// remote address) rather than doing any real I/O.
type fakeDialer struct {
	proto    types.Protocol
	mu       sync.Mutex
	byAddr   map[string]*fakeConnection
	dials    int
	failures int // number of leading Dial calls to fail, for retry testing
}

func newFakeDialer(proto types.Protocol) *fakeDialer {
	return &fakeDialer{proto: proto, byAddr: make(map[string]*fakeConnection)}
}

func (d *fakeDialer) Protocol() types.Protocol { return d.proto }

func (d *fakeDialer) Dial(ctx context.Context, dial types.DialInfo, local *types.SocketAddress) (NetworkConnection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.failures > 0 {
		d.failures--
		return nil, fmt.Errorf("fakeDialer: simulated failure")
	}
	key := fmt.Sprintf("%s:%d", dial.Address, dial.Port)
	conn, ok := d.byAddr[key]
	if !ok {
		return nil, fmt.Errorf("fakeDialer: no prepared connection for %s", key)
	}
	return conn, nil
}

func TestGetOrCreateConnectionReusesByRemote(t *testing.T) {
	proto := types.ProtocolTCP
	a, _ := newFakeConnectionPair(net.ParseIP("10.0.0.1"), 5150, net.ParseIP("10.0.0.2"), 6000, proto)

	dialer := newFakeDialer(proto)
	dialer.byAddr["10.0.0.1:5150"] = a

	mgr := NewConnectionManager(Config{InactivityTimeout: time.Minute}, []Dialer{dialer}, nil, nil, nil)
	defer mgr.Stop()

	dial := types.DialInfo{Protocol: proto, Address: net.ParseIP("10.0.0.1"), Port: 5150}
	conn1, err := mgr.GetOrCreateConnection(context.Background(), nil, dial)
	if err != nil {
		t.Fatalf("first get_or_create_connection: %v", err)
	}
	conn2, err := mgr.GetOrCreateConnection(context.Background(), nil, dial)
	if err != nil {
		t.Fatalf("second get_or_create_connection: %v", err)
	}
	if conn1 != conn2 {
		t.Fatal("expected second call to reuse the existing connection by remote address")
	}
	if dialer.dials != 1 {
		t.Fatalf("expected exactly one dial, got %d", dialer.dials)
	}
}

// TestGetOrCreateConnectionEvictsConflictAndRetries covers the
// local-port-conflict branch of get_or_create_connection (spec §4.2):
// a prior connection sharing the requested local port but a different
// remote IP is evicted, and the dial is retried (with a delay) if the
// first attempt after eviction fails.
func TestGetOrCreateConnectionEvictsConflictAndRetries(t *testing.T) {
	proto := types.ProtocolTCP
	stale, _ := newFakeConnectionPair(net.ParseIP("10.0.0.9"), 5150, net.ParseIP("10.0.0.4"), 6001, proto)
	fresh, _ := newFakeConnectionPair(net.ParseIP("10.0.0.3"), 5150, net.ParseIP("10.0.0.4"), 6001, proto)

	dialer := newFakeDialer(proto)
	dialer.byAddr["10.0.0.3:5150"] = fresh
	dialer.failures = 1

	mgr := NewConnectionManager(Config{InactivityTimeout: time.Minute, DialRetryDelay: time.Millisecond}, []Dialer{dialer}, nil, nil, nil)
	defer mgr.Stop()
	mgr.OnAcceptedProtocolNetworkConnection(stale)

	local := types.SocketAddress{IP: net.ParseIP("10.0.0.4"), Port: 6001}
	dial := types.DialInfo{Protocol: proto, Address: net.ParseIP("10.0.0.3"), Port: 5150}
	conn, err := mgr.GetOrCreateConnection(context.Background(), &local, dial)
	if err != nil {
		t.Fatalf("expected the retried dial to succeed after eviction, got: %v", err)
	}
	if conn == nil {
		t.Fatal("expected a connection")
	}
	if dialer.dials != 2 {
		t.Fatalf("expected exactly 2 dial attempts (1 failure + 1 retry), got %d", dialer.dials)
	}
	if _, ok := mgr.GetConnection(stale.Descriptor()); ok {
		t.Fatal("expected the conflicting stale connection to have been evicted")
	}
}

// TestGetOrCreateConnectionNoRetryWithoutConflict checks that a plain
// dial failure with no local-port conflict is not retried: the retry
// clause in spec §4.2 is specifically scoped to the eviction branch.
func TestGetOrCreateConnectionNoRetryWithoutConflict(t *testing.T) {
	proto := types.ProtocolTCP
	dialer := newFakeDialer(proto)
	dialer.failures = 1 // no prepared connection either, so even a retry would fail

	mgr := NewConnectionManager(Config{InactivityTimeout: time.Minute, DialRetryDelay: time.Millisecond}, []Dialer{dialer}, nil, nil, nil)
	defer mgr.Stop()

	dial := types.DialInfo{Protocol: proto, Address: net.ParseIP("10.0.0.3"), Port: 5150}
	if _, err := mgr.GetOrCreateConnection(context.Background(), nil, dial); err == nil {
		t.Fatal("expected dial failure to propagate immediately")
	}
	if dialer.dials != 1 {
		t.Fatalf("expected exactly 1 dial attempt with no conflict eviction, got %d", dialer.dials)
	}
}

func TestConnectionTableUniquePerDescriptor(t *testing.T) {
	proto := types.ProtocolTCP
	a, _ := newFakeConnectionPair(net.ParseIP("10.0.0.5"), 5150, net.ParseIP("10.0.0.6"), 6002, proto)
	b, _ := newFakeConnectionPair(net.ParseIP("10.0.0.5"), 5150, net.ParseIP("10.0.0.6"), 6003, proto)

	table := newConnectionTable()
	table.insert(&trackedConnection{conn: a, cancel: func() {}})
	table.insert(&trackedConnection{conn: b, cancel: func() {}})

	if _, ok := table.get(a.Descriptor()); !ok {
		t.Fatal("expected connection a to be retrievable by its exact descriptor")
	}
	if _, ok := table.get(b.Descriptor()); !ok {
		t.Fatal("expected connection b to be retrievable by its exact descriptor")
	}
	if len(table.all()) != 2 {
		t.Fatalf("expected 2 distinct tracked connections (different local ports), got %d", len(table.all()))
	}

	// Same remote: getByRemote should find one of them (any local).
	if _, ok := table.getByRemote(a.Descriptor().Remote); !ok {
		t.Fatal("expected getByRemote to find a connection for the shared remote")
	}
}

func TestConnectionLoopDeregistersOnClose(t *testing.T) {
	proto := types.ProtocolTCP
	a, b := newFakeConnectionPair(net.ParseIP("10.0.0.7"), 5150, net.ParseIP("10.0.0.8"), 6004, proto)

	mgr := NewConnectionManager(Config{InactivityTimeout: time.Minute}, nil, nil, nil, nil)
	mgr.OnAcceptedProtocolNetworkConnection(a)

	if _, ok := mgr.GetConnection(a.Descriptor()); !ok {
		t.Fatal("expected connection to be registered immediately")
	}

	b.Close() // closes the shared "in" channel for a, causing a.RecvFrame to error

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := mgr.GetConnection(a.Descriptor()); !ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("connection was not deregistered after its peer closed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	mgr.Stop()
	mgr.Join()
}

// TestOnAcceptedProtocolNetworkConnectionRejectsPunishedAddress covers the
// addrfilter wiring on the inbound accept path (spec §4.3): a connection
// from a punished address never reaches the connection table, and its
// NetworkConnection is closed instead.
func TestOnAcceptedProtocolNetworkConnectionRejectsPunishedAddress(t *testing.T) {
	proto := types.ProtocolTCP
	a, _ := newFakeConnectionPair(net.ParseIP("10.0.0.10"), 5150, net.ParseIP("10.0.0.11"), 6005, proto)

	filter := addrfilter.New(addrfilter.Config{MaxConnectionsPerIP4: 8})
	filter.Punish(net.ParseIP("10.0.0.10"))

	mgr := NewConnectionManager(Config{InactivityTimeout: time.Minute}, nil, nil, filter, nil)
	defer mgr.Stop()
	mgr.OnAcceptedProtocolNetworkConnection(a)

	if _, ok := mgr.GetConnection(a.Descriptor()); ok {
		t.Fatal("expected connection from a punished address to be rejected, not registered")
	}
}

// TestOnAcceptedProtocolNetworkConnectionEnforcesCountLimit covers the
// per-IPv4 connection-count limit (spec §4.3): once MaxConnectionsPerIP4
// inbound connections from one address are registered, the next is
// rejected, and closing one frees a slot for the next accept.
func TestOnAcceptedProtocolNetworkConnectionEnforcesCountLimit(t *testing.T) {
	proto := types.ProtocolTCP
	a, _ := newFakeConnectionPair(net.ParseIP("10.0.0.12"), 5150, net.ParseIP("10.0.0.13"), 6006, proto)
	b, _ := newFakeConnectionPair(net.ParseIP("10.0.0.12"), 5151, net.ParseIP("10.0.0.13"), 6007, proto)

	filter := addrfilter.New(addrfilter.Config{MaxConnectionsPerIP4: 1})
	mgr := NewConnectionManager(Config{InactivityTimeout: time.Minute}, nil, nil, filter, nil)
	defer mgr.Stop()

	mgr.OnAcceptedProtocolNetworkConnection(a)
	if _, ok := mgr.GetConnection(a.Descriptor()); !ok {
		t.Fatal("expected the first connection to be admitted")
	}

	mgr.OnAcceptedProtocolNetworkConnection(b)
	if _, ok := mgr.GetConnection(b.Descriptor()); ok {
		t.Fatal("expected the second connection from the same address to be rejected over the count limit")
	}

	mgr.ReportConnectionFinished(a.Descriptor())
	mgr.OnAcceptedProtocolNetworkConnection(b)
	if _, ok := mgr.GetConnection(b.Descriptor()); !ok {
		t.Fatal("expected the slot freed by closing the first connection to admit the second")
	}
}
