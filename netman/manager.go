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
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/dbasu/corenet/addrfilter"
	"github.com/dbasu/corenet/types"
)

// InboundHandler receives frames from inbound (manager-accepted)
// connections once their per-connection loop is running.
type InboundHandler interface {
	HandleFrame(ctx context.Context, desc types.ConnectionDescriptor, frame []byte) error
}

// ConnectionManager owns the connection table and every per-connection
// loop (spec §4.2). Dropping its stop-source cancels every loop; Join
// waits for all to finish.
type ConnectionManager struct {
	log     log.Logger
	dialers map[types.Protocol]Dialer
	handler InboundHandler
	filter  *addrfilter.AddressFilter

	inactivityTimeout time.Duration
	dialRetryDelay    time.Duration

	table *connectionTable

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}
	loopWG  sync.WaitGroup
}

// Config carries the Connection Manager's configurable knobs (spec §6's
// connection_inactivity_timeout_ms).
type Config struct {
	InactivityTimeout time.Duration
	DialRetryDelay    time.Duration // default 500ms per spec §4.2
}

// NewConnectionManager builds a manager guarding its inbound accept path
// with filter (spec §4.3: every OnAcceptedProtocolNetworkConnection is
// checked against IsPunished and AddConnection before being registered).
// filter may be nil, in which case no address limiting is applied — used
// only by tests that don't exercise the inbound path.
func NewConnectionManager(cfg Config, dialers []Dialer, handler InboundHandler, filter *addrfilter.AddressFilter, logger log.Logger) *ConnectionManager {
	if logger == nil {
		logger = log.New("component", "netman")
	}
	if cfg.DialRetryDelay <= 0 {
		cfg.DialRetryDelay = 500 * time.Millisecond
	}
	m := &ConnectionManager{
		log:               logger,
		dialers:           make(map[types.Protocol]Dialer, len(dialers)),
		handler:           handler,
		filter:            filter,
		inactivityTimeout: cfg.InactivityTimeout,
		dialRetryDelay:    cfg.DialRetryDelay,
		table:             newConnectionTable(),
		stopCh:            make(chan struct{}),
	}
	for _, d := range dialers {
		m.dialers[d.Protocol()] = d
	}
	return m
}

// GetConnection is an exact-match lookup by descriptor (spec §4.2).
func (m *ConnectionManager) GetConnection(desc types.ConnectionDescriptor) (NetworkConnection, bool) {
	tc, ok := m.table.get(desc)
	if !ok {
		return nil, false
	}
	return tc.conn, true
}

// GetOrCreateConnection returns an existing connection reaching dial's
// node (any local), or dials a fresh one. If local is specified and
// conflicts with an existing connection's port, the conflicting
// connections are evicted and the dial is retried once more after
// dialRetryDelay (spec §4.2).
func (m *ConnectionManager) GetOrCreateConnection(ctx context.Context, local *types.SocketAddress, dial types.DialInfo) (NetworkConnection, error) {
	remote := types.PeerAddress{Protocol: dial.Protocol, Address: types.SocketAddress{IP: dial.Address, Port: dial.Port}}
	if tc, ok := m.table.getByRemote(remote); ok {
		return tc.conn, nil
	}

	dialer, ok := m.dialers[dial.Protocol]
	if !ok {
		return nil, fmt.Errorf("netman: no dialer registered for protocol %s", dial.Protocol)
	}

	evicted := false
	if local != nil {
		for _, tc := range m.table.conflicting(*local) {
			m.evict(tc)
			evicted = true
		}
	}

	attempts := 1
	if evicted {
		// A just-evicted socket may still be settling on the OS side
		// (spec §4.2: "retry the underlying connect twice with a 500ms
		// delay between tries").
		attempts = 2
	}

	var conn NetworkConnection
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(m.dialRetryDelay)
		}
		conn, err = dialer.Dial(ctx, dial, local)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("netman: dialing %s: %w", dial, err)
	}

	if err := conn.Descriptor().Validate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("netman: dialed connection invalid: %w", err)
	}

	m.register(conn, false)
	return conn, nil
}

// OnAcceptedProtocolNetworkConnection registers an inbound connection
// handed up by a protocol listener and starts its loop (spec §4.2). The
// remote address is checked against the address filter first (spec
// §4.3: punishment list, then per-IP4/IP6-prefix count, then
// per-minute frequency); a rejected remote has its connection closed
// without ever reaching the connection table.
func (m *ConnectionManager) OnAcceptedProtocolNetworkConnection(conn NetworkConnection) {
	if m.filter != nil {
		ip := conn.Descriptor().Remote.Address.IP
		if m.filter.IsPunished(ip) {
			m.log.Debug("netman: rejecting inbound connection from punished address", "remote", conn.Descriptor().Remote.String())
			conn.Close()
			return
		}
		if err := m.filter.AddConnection(ip); err != nil {
			m.log.Debug("netman: rejecting inbound connection", "remote", conn.Descriptor().Remote.String(), "err", err)
			conn.Close()
			return
		}
	}
	m.register(conn, true)
}

// ReportConnectionFinished deregisters desc — called by the per-connection
// loop on exit (spec §4.2). If the connection held an addrfilter
// admission slot, that slot is released too.
func (m *ConnectionManager) ReportConnectionFinished(desc types.ConnectionDescriptor) {
	tc := m.table.remove(desc)
	m.releaseFilterSlot(tc)
}

func (m *ConnectionManager) register(conn NetworkConnection, filtered bool) {
	loopCtx, cancel := context.WithCancel(context.Background())
	tc := &trackedConnection{conn: conn, cancel: cancel, filtered: filtered}
	m.table.insert(tc)

	m.loopWG.Add(1)
	go func() {
		defer m.loopWG.Done()
		m.connectionLoop(loopCtx, conn)
	}()
}

func (m *ConnectionManager) evict(tc *trackedConnection) {
	tc.cancel()
	tc.conn.Close()
	removed := m.table.remove(tc.conn.Descriptor())
	m.releaseFilterSlot(removed)
}

func (m *ConnectionManager) releaseFilterSlot(tc *trackedConnection) {
	if tc == nil || !tc.filtered || m.filter == nil {
		return
	}
	m.filter.RemoveConnection(tc.conn.Descriptor().Remote.Address.IP)
}

// connectionLoop is the per-connection read loop (spec §4.2): any frame
// received resets the inactivity timer; the loop exits on receive error,
// timeout, the connection's own cancellation, or the manager's stop
// signal, deregistering itself on exit either way.
func (m *ConnectionManager) connectionLoop(ctx context.Context, conn NetworkConnection) {
	desc := conn.Descriptor()
	defer func() {
		conn.Close()
		m.ReportConnectionFinished(desc)
	}()

	timer := time.NewTimer(m.timeoutOrDefault())
	defer timer.Stop()

	type recvResult struct {
		frame []byte
		err   error
	}
	recvCh := make(chan recvResult, 1)
	startRecv := func() {
		go func() {
			frame, err := conn.RecvFrame(ctx)
			recvCh <- recvResult{frame, err}
		}()
	}
	startRecv()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
			m.log.Debug("netman: connection inactivity timeout", "remote", desc.Remote.String())
			return
		case res := <-recvCh:
			if res.err != nil {
				m.log.Debug("netman: connection receive error", "remote", desc.Remote.String(), "err", res.err)
				return
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(m.timeoutOrDefault())
			if m.handler != nil {
				if err := m.handler.HandleFrame(ctx, desc, res.frame); err != nil {
					m.log.Debug("netman: inbound frame handling error", "remote", desc.Remote.String(), "err", err)
				}
			}
			startRecv()
		}
	}
}

func (m *ConnectionManager) timeoutOrDefault() time.Duration {
	if m.inactivityTimeout <= 0 {
		return 60 * time.Second
	}
	return m.inactivityTimeout
}

// Stop cancels every connection loop; Join waits for them all to finish.
func (m *ConnectionManager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()
	close(m.stopCh)
}

// Join blocks until every connection loop started by this manager has
// exited (spec §4.2 shutdown).
func (m *ConnectionManager) Join() {
	m.loopWG.Wait()
}

// Connections returns every currently tracked connection, for diagnostics
// and tests.
func (m *ConnectionManager) Connections() []NetworkConnection {
	tracked := m.table.all()
	out := make([]NetworkConnection, 0, len(tracked))
	for _, tc := range tracked {
		out = append(out, tc.conn)
	}
	return out
}
