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

package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dbasu/corenet/config"
	"github.com/dbasu/corenet/crypto"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Network.Protocol.UDP.ListenAddress = "127.0.0.1:0"
	cfg.Network.Protocol.TCP.ListenAddress = "127.0.0.1:0"
	cfg.Network.Protocol.WS.Listen = false // avoid a second HTTP listener racing for port 0 semantics in this test
	cfg.Network.Protocol.WSS.Listen = false
	return cfg
}

func TestNewBuildsEveryCollaborator(t *testing.T) {
	cfg := newTestConfig(t)
	c := crypto.New(16)
	kp, err := c.GenerateKeyPairForKind(crypto.KindVLD0)
	require.NoError(t, err)

	n, err := New(cfg, crypto.TypedKeyGroup{kp.Key}, t.TempDir(), nil, nil)
	require.NoError(t, err)
	defer n.Close()

	require.NotNil(t, n.RoutingTable)
	require.NotNil(t, n.ConnMgr)
	require.NotNil(t, n.NetworkMgr)
	require.NotNil(t, n.Processor)
	require.NotNil(t, n.RouteSpec)
	require.NotNil(t, n.Storage)
	require.NotNil(t, n.Receipts)
}

func TestStartStopOpensAndClosesListeners(t *testing.T) {
	cfg := newTestConfig(t)
	c := crypto.New(16)
	kp, err := c.GenerateKeyPairForKind(crypto.KindVLD0)
	require.NoError(t, err)

	n, err := New(cfg, crypto.TypedKeyGroup{kp.Key}, t.TempDir(), nil, nil)
	require.NoError(t, err)
	defer n.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, n.Start(ctx))
	require.Len(t, n.listeners, 2) // udp + tcp; ws disabled above

	n.Stop()
	require.Empty(t, n.listeners)
}

func TestTickNeverRequestsRestart(t *testing.T) {
	cfg := newTestConfig(t)
	c := crypto.New(16)
	kp, err := c.GenerateKeyPairForKind(crypto.KindVLD0)
	require.NoError(t, err)

	n, err := New(cfg, crypto.TypedKeyGroup{kp.Key}, t.TempDir(), nil, nil)
	require.NoError(t, err)
	defer n.Close()

	restart, err := n.Tick(context.Background(), time.Now())
	require.NoError(t, err)
	require.False(t, restart)
}
