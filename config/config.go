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

// Package config is the TOML-driven configuration tree (spec §6), mirroring
// the teacher's own single-struct-tree-plus-Default() pattern.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// ProtocolConfig describes one transport's enable/connect/listen posture.
type ProtocolConfig struct {
	Connect       bool   `toml:"connect"`
	Listen        bool   `toml:"listen"`
	ListenAddress string `toml:"listen_address"`
	MaxConnections int   `toml:"max_connections"`
	Path          string `toml:"path,omitempty"`     // WS/WSS only
	PublicURL     string `toml:"public_url,omitempty"` // WS/WSS only, optional
}

// ProtocolsConfig groups the four dial-info transports.
type ProtocolsConfig struct {
	UDP ProtocolConfig `toml:"udp"`
	TCP ProtocolConfig `toml:"tcp"`
	WS  ProtocolConfig `toml:"ws"`
	WSS ProtocolConfig `toml:"wss"`
}

// DHTConfig is Network.DHT.
type DHTConfig struct {
	ResolveNodeTimeoutMs          int `toml:"resolve_node_timeout_ms"`
	ResolveNodeCount              int `toml:"resolve_node_count"`
	GetValueTimeoutMs             int `toml:"get_value_timeout_ms"`
	GetValueCount                 int `toml:"get_value_count"`
	SetValueTimeoutMs             int `toml:"set_value_timeout_ms"`
	SetValueCount                 int `toml:"set_value_count"`
	MinPeerCount                  int `toml:"min_peer_count"`
	MinPeerRefreshTimeMs          int `toml:"min_peer_refresh_time_ms"`
	LocalSubkeyCacheSize          int `toml:"local_subkey_cache_size"`
	LocalMaxSubkeyCacheMemoryMB   int `toml:"local_max_subkey_cache_memory_mb"`
	RemoteSubkeyCacheSize         int `toml:"remote_subkey_cache_size"`
	RemoteMaxRecords              int `toml:"remote_max_records"`
	RemoteMaxSubkeyCacheMemoryMB  int `toml:"remote_max_subkey_cache_memory_mb"`
	RemoteMaxStorageSpaceMB       int `toml:"remote_max_storage_space_mb"`
}

// RPCConfig is Network.RPC.
type RPCConfig struct {
	Concurrency          int `toml:"concurrency"`
	QueueSize            int `toml:"queue_size"`
	MaxTimestampBehindMs int `toml:"max_timestamp_behind_ms"`
	MaxTimestampAheadMs  int `toml:"max_timestamp_ahead_ms"`
	TimeoutMs            int `toml:"timeout_ms"`
	MaxRouteHopCount     int `toml:"max_route_hop_count"`
	DefaultRouteHopCount int `toml:"default_route_hop_count"`
}

// RoutingTableConfig is Network.Routing_table (attachment thresholds).
type RoutingTableConfig struct {
	LimitOverAttached   int `toml:"limit_over_attached"`
	LimitFullyAttached  int `toml:"limit_fully_attached"`
	LimitAttachedStrong int `toml:"limit_attached_strong"`
	LimitAttachedGood   int `toml:"limit_attached_good"`
	LimitAttachedWeak   int `toml:"limit_attached_weak"`
}

// NetworkConfig is Network.
type NetworkConfig struct {
	MaxConnections            int                `toml:"max_connections"`
	ConnectionInitialTimeoutMs int               `toml:"connection_initial_timeout_ms"`
	ConnectionInactivityTimeoutMs int            `toml:"connection_inactivity_timeout_ms"`
	NodeID                    string             `toml:"node_id"`
	NodeIDSecret              string             `toml:"node_id_secret"`
	Bootstrap                 []string           `toml:"bootstrap"`
	UPnP                      bool               `toml:"upnp"`
	NATPMP                    bool               `toml:"natpmp"`
	EnableLocalPeerScope      bool               `toml:"enable_local_peer_scope"`
	RestrictedNATRetries      int                `toml:"restricted_nat_retries"`
	DHT                       DHTConfig          `toml:"dht"`
	RPC                       RPCConfig          `toml:"rpc"`
	RoutingTable              RoutingTableConfig `toml:"routing_table"`
	Protocol                  ProtocolsConfig    `toml:"protocol"`
}

// AddressFilterConfig is the AddressFilter section.
type AddressFilterConfig struct {
	MaxConnectionsPerIP4           int `toml:"max_connections_per_ip4"`
	MaxConnectionsPerIP6Prefix     int `toml:"max_connections_per_ip6_prefix"`
	MaxConnectionsPerIP6PrefixSize int `toml:"max_connections_per_ip6_prefix_size"`
	MaxConnectionFrequencyPerMin   int `toml:"max_connection_frequency_per_min"`
}

// StoresConfig is the Stores section.
type StoresConfig struct {
	TableStoreDirectory      string `toml:"table_store_directory"`
	ProtectedStoreDirectory  string `toml:"protected_store_directory"`
	AllowInsecureFallback    bool   `toml:"allow_insecure_fallback"`
	AlwaysUseInsecureStorage bool   `toml:"always_use_insecure_storage"`
}

// Config is the top-level configuration tree.
type Config struct {
	Network       NetworkConfig       `toml:"network"`
	AddressFilter AddressFilterConfig `toml:"address_filter"`
	Stores        StoresConfig        `toml:"stores"`
}

// Default builds a Config with every numeric default named in spec §3/§4.
func Default() *Config {
	return &Config{
		Network: NetworkConfig{
			MaxConnections:                256,
			ConnectionInitialTimeoutMs:    2000,
			ConnectionInactivityTimeoutMs: 60000,
			RestrictedNATRetries:          3,
			DHT: DHTConfig{
				ResolveNodeTimeoutMs:         10000,
				ResolveNodeCount:             20,
				GetValueTimeoutMs:            10000,
				GetValueCount:                20,
				SetValueTimeoutMs:            10000,
				SetValueCount:                5,
				MinPeerCount:                 20,
				MinPeerRefreshTimeMs:         2000,
				LocalSubkeyCacheSize:         1024,
				LocalMaxSubkeyCacheMemoryMB:  256,
				RemoteSubkeyCacheSize:        1024,
				RemoteMaxRecords:             65536,
				RemoteMaxSubkeyCacheMemoryMB: 256,
				RemoteMaxStorageSpaceMB:      1024,
			},
			RPC: RPCConfig{
				Concurrency:          2,
				QueueSize:            1024,
				MaxTimestampBehindMs: 15000,
				MaxTimestampAheadMs:  15000,
				TimeoutMs:            10000,
				MaxRouteHopCount:     4,
				DefaultRouteHopCount: 1,
			},
			RoutingTable: RoutingTableConfig{
				LimitOverAttached:   64,
				LimitFullyAttached:  32,
				LimitAttachedStrong: 16,
				LimitAttachedGood:   8,
				LimitAttachedWeak:   4,
			},
			Protocol: ProtocolsConfig{
				UDP: ProtocolConfig{Connect: true, Listen: true, ListenAddress: "0.0.0.0:5150", MaxConnections: 256},
				TCP: ProtocolConfig{Connect: true, Listen: true, ListenAddress: "0.0.0.0:5150", MaxConnections: 256},
				WS:  ProtocolConfig{Connect: true, Listen: true, ListenAddress: "0.0.0.0:5150", Path: "ws", MaxConnections: 256},
				WSS: ProtocolConfig{Connect: true, Listen: false, MaxConnections: 256},
			},
		},
		AddressFilter: AddressFilterConfig{
			MaxConnectionsPerIP4:           8,
			MaxConnectionsPerIP6Prefix:     8,
			MaxConnectionsPerIP6PrefixSize: 56,
			MaxConnectionFrequencyPerMin:   10,
		},
		Stores: StoresConfig{
			TableStoreDirectory:     "table_store",
			ProtectedStoreDirectory: "protected_store",
			AllowInsecureFallback:   true,
		},
	}
}

// LoadConfigTOML reads and parses a TOML config file, starting from
// Default() so any keys the file omits keep their default value.
func LoadConfigTOML(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
