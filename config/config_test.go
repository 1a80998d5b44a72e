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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultPopulatesEveryLimit(t *testing.T) {
	cfg := Default()
	require.Positive(t, cfg.Network.MaxConnections)
	require.Positive(t, cfg.Network.DHT.MinPeerCount)
	require.Positive(t, cfg.Network.RPC.MaxRouteHopCount)
	require.Positive(t, cfg.AddressFilter.MaxConnectionsPerIP4)
}

func TestLoadConfigTOMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corenet.toml")
	contents := `
[network]
max_connections = 42

[network.dht]
min_peer_count = 7

[address_filter]
max_connections_per_ip4 = 2
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadConfigTOML(path)
	require.NoError(t, err)
	require.Equal(t, 42, cfg.Network.MaxConnections)
	require.Equal(t, 7, cfg.Network.DHT.MinPeerCount)
	require.Equal(t, 2, cfg.AddressFilter.MaxConnectionsPerIP4)
	// Untouched keys keep their default.
	require.Equal(t, Default().Network.RPC.MaxRouteHopCount, cfg.Network.RPC.MaxRouteHopCount)
}
