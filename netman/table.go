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
	"sync"

	"github.com/dbasu/corenet/types"
)

// trackedConnection is one live entry: the connection itself plus the
// cancel function for its per-connection loop.
type trackedConnection struct {
	conn     NetworkConnection
	cancel   func()
	filtered bool // true if this entry holds an addrfilter admission slot
}

// connectionTable indexes active connections by ConnectionDescriptor
// (primary, exact match) and by remote PeerAddress (secondary, for
// existing-connection reuse regardless of local port) — spec §4.2.
type connectionTable struct {
	mu       sync.Mutex
	primary  map[string]*trackedConnection
	byRemote map[string][]*trackedConnection
}

func newConnectionTable() *connectionTable {
	return &connectionTable{
		primary:  make(map[string]*trackedConnection),
		byRemote: make(map[string][]*trackedConnection),
	}
}

func (t *connectionTable) get(desc types.ConnectionDescriptor) (*trackedConnection, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tc, ok := t.primary[desc.Key()]
	return tc, ok
}

// getByRemote returns any tracked connection reaching remote, regardless
// of local port (spec §4.2 get_or_create_connection: "if a connection
// with matching remote already exists (any local), return it").
func (t *connectionTable) getByRemote(remote types.PeerAddress) (*trackedConnection, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.byRemote[remote.String()]
	if len(list) == 0 {
		return nil, false
	}
	return list[0], true
}

func (t *connectionTable) insert(tc *trackedConnection) {
	desc := tc.conn.Descriptor()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.primary[desc.Key()] = tc
	remoteKey := desc.Remote.String()
	t.byRemote[remoteKey] = append(t.byRemote[remoteKey], tc)
}

// remove deregisters desc, returning the entry that was removed (or nil
// if it wasn't present) so callers can act on it, e.g. releasing an
// addrfilter admission slot.
func (t *connectionTable) remove(desc types.ConnectionDescriptor) *trackedConnection {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := t.primary[desc.Key()]
	delete(t.primary, desc.Key())
	remoteKey := desc.Remote.String()
	list := t.byRemote[remoteKey]
	for i, tc := range list {
		if tc.conn.Descriptor().Key() == desc.Key() {
			t.byRemote[remoteKey] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(t.byRemote[remoteKey]) == 0 {
		delete(t.byRemote, remoteKey)
	}
	return removed
}

// conflicting returns existing connections already bound to local (same
// local IP and port) — the set the manager must evict before retrying
// get_or_create_connection, since the OS will refuse (or silently steal)
// a second outbound bind to the same local address (spec §4.2).
func (t *connectionTable) conflicting(local types.SocketAddress) []*trackedConnection {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*trackedConnection
	for _, tc := range t.primary {
		d := tc.conn.Descriptor()
		if d.Local != nil && d.Local.Port == local.Port && d.Local.IP.Equal(local.IP) {
			out = append(out, tc)
		}
	}
	return out
}

func (t *connectionTable) all() []*trackedConnection {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*trackedConnection, 0, len(t.primary))
	for _, tc := range t.primary {
		out = append(out, tc)
	}
	return out
}
