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
	"sync/atomic"

	"github.com/dbasu/corenet/routingtable"
	"github.com/dbasu/corenet/types"
)

// NetworkManager resolves an rpc destination (a routing-table NodeRef)
// down to a concrete dial-info-addressed connection and hands frames off
// through the Connection Manager. It implements rpc.FrameSender (so a
// *rpc.Processor can be built directly over it) and a simple IsOnline
// check storage.Manager's Online collaborator expects.
type NetworkManager struct {
	connMgr *ConnectionManager
	domain  types.RoutingDomain

	online atomic.Bool
}

func NewNetworkManager(connMgr *ConnectionManager, domain types.RoutingDomain) *NetworkManager {
	nm := &NetworkManager{connMgr: connMgr, domain: domain}
	nm.online.Store(true)
	return nm
}

// SetOnline flips the online flag attachment/detachment drives this from
// (spec §4.7: network tick may observe connectivity loss).
func (nm *NetworkManager) SetOnline(v bool) { nm.online.Store(v) }

// IsOnline implements storage.Online.
func (nm *NetworkManager) IsOnline() bool { return nm.online.Load() }

// SendFrame implements rpc.FrameSender: it tries target's dial info in
// nm.domain in listed order, sending frame over a connection obtained via
// get_or_create_connection, and returns on the first successful send.
func (nm *NetworkManager) SendFrame(ctx context.Context, target *routingtable.NodeRef, frame []byte) error {
	sni := target.Entry().SignedNodeInfo(nm.domain)
	if sni == nil {
		return fmt.Errorf("netman: no node info for target in domain %d", nm.domain)
	}
	if len(sni.NodeInfo.DialInfoDetail) == 0 {
		return fmt.Errorf("netman: target has no dial info in domain %d", nm.domain)
	}

	var lastErr error
	for _, dial := range sni.NodeInfo.DialInfoDetail {
		conn, err := nm.connMgr.GetOrCreateConnection(ctx, nil, dial)
		if err != nil {
			lastErr = err
			continue
		}
		if err := conn.SendFrame(ctx, frame); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("netman: all dial info candidates failed: %w", lastErr)
}
