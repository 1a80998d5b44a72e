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

// Package addrfilter enforces per-IPv4-address and per-IPv6-prefix
// connection-count and connection-frequency limits with a timed
// punishment list (spec §4.3).
package addrfilter

import (
	"net"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/p2p/netutil"
)

// RejectReason names why add_connection refused a new connection.
type RejectReason uint8

const (
	RejectNone RejectReason = iota
	RejectCountExceeded
	RejectRateExceeded
	RejectPunished
)

func (r RejectReason) Error() string {
	switch r {
	case RejectCountExceeded:
		return "addrfilter: connection count exceeded"
	case RejectRateExceeded:
		return "addrfilter: connection frequency exceeded"
	case RejectPunished:
		return "addrfilter: address is punished"
	default:
		return "addrfilter: ok"
	}
}

const punishmentDurationMin = 60

// Config carries the configurable limits (spec §6 address-filter keys).
type Config struct {
	MaxConnectionsPerIP4           int
	MaxConnectionsPerIP6Prefix     int
	MaxConnectionsPerIP6PrefixSize int // prefix length in bits, e.g. 64
	MaxConnectionFrequencyPerMin   int
}

// AddressFilter is the per-IP/IPv6-prefix limiter and punishment list.
type AddressFilter struct {
	mu sync.Mutex

	cfg Config

	ip4Counts map[string]int
	ip6Set    *netutil.DistinctNetSet

	timestamps map[string][]time.Time
	punished   map[string]time.Time
}

// New builds an AddressFilter from cfg.
func New(cfg Config) *AddressFilter {
	return &AddressFilter{
		cfg:       cfg,
		ip4Counts: make(map[string]int),
		ip6Set: &netutil.DistinctNetSet{
			Subnet: uint(cfg.MaxConnectionsPerIP6PrefixSize),
			Limit:  uint(cfg.MaxConnectionsPerIP6Prefix),
		},
		timestamps: make(map[string][]time.Time),
		punished:   make(map[string]time.Time),
	}
}

func keyFor(ip net.IP) string { return ip.String() }

// IsPunished reports whether ip is currently on the punishment list.
func (f *AddressFilter) IsPunished(ip net.IP) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.punished[keyFor(ip)]
	return ok
}

// Punish places ip on the punishment list, overwriting any existing
// punish timestamp (spec §4.3: "overwrites any existing punish timestamp").
func (f *AddressFilter) Punish(ip net.IP) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.punished[keyFor(ip)] = time.Now()
}

// AddConnection purges stale state, then checks punishment, count, and
// rate in that order; on success it records the connection. It stamps
// the connection with time.Now(); addConnectionAt takes now explicitly
// for deterministic tests.
func (f *AddressFilter) AddConnection(ip net.IP) error {
	return f.addConnectionAt(ip, time.Now())
}

func (f *AddressFilter) addConnectionAt(ip net.IP, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.purgeLocked(now)

	key := keyFor(ip)
	if _, ok := f.punished[key]; ok {
		return RejectPunished
	}

	is4 := ip.To4() != nil
	if is4 && f.cfg.MaxConnectionsPerIP4 > 0 && f.ip4Counts[key] >= f.cfg.MaxConnectionsPerIP4 {
		return RejectCountExceeded
	}
	added6 := false
	if !is4 && f.cfg.MaxConnectionsPerIP6Prefix > 0 {
		if !f.ip6Set.Add(ip) {
			return RejectCountExceeded
		}
		added6 = true
	}

	if f.cfg.MaxConnectionFrequencyPerMin > 0 {
		stamps := f.timestamps[key]
		cutoff := now.Add(-time.Minute)
		recent := 0
		for _, ts := range stamps {
			if ts.After(cutoff) {
				recent++
			}
		}
		if recent >= f.cfg.MaxConnectionFrequencyPerMin {
			if added6 {
				f.ip6Set.Remove(ip)
			}
			return RejectRateExceeded
		}
	}

	f.ip4Counts[key]++
	f.timestamps[key] = append(f.timestamps[key], now)
	return nil
}

// RemoveConnection undoes one AddConnection call for ip.
func (f *AddressFilter) RemoveConnection(ip net.IP) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := keyFor(ip)
	if n := f.ip4Counts[key]; n > 0 {
		f.ip4Counts[key] = n - 1
		if f.ip4Counts[key] == 0 {
			delete(f.ip4Counts, key)
		}
	}
	if ip.To4() == nil {
		f.ip6Set.Remove(ip)
	}
}

// purgeLocked strips connection timestamps older than a minute and
// punishments older than the punishment duration. Callers hold f.mu.
func (f *AddressFilter) purgeLocked(now time.Time) {
	cutoff := now.Add(-time.Minute)
	for key, stamps := range f.timestamps {
		kept := stamps[:0]
		for _, ts := range stamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(f.timestamps, key)
		} else {
			f.timestamps[key] = kept
		}
	}

	punishCutoff := now.Add(-punishmentDurationMin * time.Minute)
	for key, ts := range f.punished {
		if ts.Before(punishCutoff) {
			delete(f.punished, key)
		}
	}
}

// Purge runs the periodic purge task standalone (spec §4.3 "periodic
// purge"), for callers that drive it from their own tick loop rather
// than via AddConnection.
func (f *AddressFilter) Purge(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purgeLocked(now)
}
