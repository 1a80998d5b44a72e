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

// Package routespec implements private/safety route allocation, onion
// assembly, and lifecycle management (spec §4.5): permutation-based hop
// selection with non-reuse preference via a hop-cache, nested per-hop
// AEAD wrapping, and durable persistence that never stores secrets.
package routespec

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/dbasu/corenet/crypto"
	"github.com/dbasu/corenet/routingtable"
)

// Directions selects which traffic direction(s) a route must support.
// Outbound means the local node sends through the route; Inbound means
// the local node expects to receive through it (the hop order is walked
// in reverse for reachability checks).
type Directions struct {
	Outbound bool
	Inbound  bool
}

// RouteSpecDetail is everything the store tracks about one allocated
// route. Secret and HopNodeRefs are never persisted (spec §4.5
// lifecycle): on reload secrets come back from the protected store and
// node refs are re-resolved against the routing table.
type RouteSpecDetail struct {
	PublicKey   crypto.TypedKey
	Secret      crypto.TypedSecret
	Hops        []crypto.TypedKey
	HopNodeRefs []*routingtable.NodeRef
	Published   bool
	CreatedTs   time.Time
	LastChecked time.Time
	Directions  Directions
}

func (d *RouteSpecDetail) hopCacheKey() string {
	buf := make([]byte, 0, len(d.Hops)*32)
	for _, h := range d.Hops {
		buf = append(buf, h.Value[:]...)
	}
	return string(buf)
}

// nodeUsage tracks how often a node has been picked as a route endpoint
// vs. anywhere in a route, the two ascending sort keys route allocation
// scores candidates by (spec §4.5 step 2).
type nodeUsage struct {
	asEndpoint int
	anywhere   int
}

// Store is the route-spec store: it owns route allocation, the
// hop-cache, per-node usage counts, and the "has this remote route seen
// our node info" cache the RespondTo stub optimization needs.
type Store struct {
	mu sync.Mutex

	crypto      *crypto.Crypto
	rt          *routingtable.RoutingTable
	localKind   crypto.CryptoKind
	maxHopCount int
	log         log.Logger

	routes     map[crypto.TypedKey]*RouteSpecDetail
	hopCache   map[string]crypto.TypedKey
	usage      map[crypto.TypedKey]*nodeUsage
	remoteSeen map[crypto.TypedKey]bool // keyed by remote route's public key
	self       SelfInfo
}

// New builds an empty Store. localKind is the crypto kind used for route
// public keys and hop-reachability checks; maxHopCount bounds allocation
// (Network.RPC.max_route_hop_count).
func New(c *crypto.Crypto, rt *routingtable.RoutingTable, localKind crypto.CryptoKind, maxHopCount int, logger log.Logger) *Store {
	if logger == nil {
		logger = log.New("component", "routespec")
	}
	return &Store{
		crypto:      c,
		rt:          rt,
		localKind:   localKind,
		maxHopCount: maxHopCount,
		log:         logger,
		routes:      make(map[crypto.TypedKey]*RouteSpecDetail),
		hopCache:    make(map[string]crypto.TypedKey),
		usage:       make(map[crypto.TypedKey]*nodeUsage),
		remoteSeen:  make(map[crypto.TypedKey]bool),
	}
}

func (s *Store) usageFor(id crypto.TypedKey) *nodeUsage {
	u, ok := s.usage[id]
	if !ok {
		u = &nodeUsage{}
		s.usage[id] = u
	}
	return u
}

// MarkRoutePublished records that route has been announced to the
// network (spec §4.5 lifecycle). Newly loaded/allocated routes start
// unpublished.
func (s *Store) MarkRoutePublished(route crypto.TypedKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.routes[route]; ok {
		d.Published = true
	}
}

// TouchRouteChecked stamps the last-checked time used by relay/route
// maintenance ticks.
func (s *Store) TouchRouteChecked(route crypto.TypedKey, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.routes[route]; ok {
		d.LastChecked = ts
	}
}

// ReleaseRoute decrements used-counts on every endpoint/hop and removes
// route from the cache, releasing its held NodeRefs.
func (s *Store) ReleaseRoute(route crypto.TypedKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.routes[route]
	if !ok {
		return
	}
	delete(s.routes, route)
	delete(s.hopCache, d.hopCacheKey())
	delete(s.remoteSeen, route)

	for i, hop := range d.Hops {
		u := s.usageFor(hop)
		u.anywhere--
		if i == 0 || i == len(d.Hops)-1 {
			u.asEndpoint--
		}
	}
	for _, ref := range d.HopNodeRefs {
		ref.Release()
	}
}

// HasHopSequence reports whether hops is already present in the
// hop-cache, used directly by testable property 8.
func (s *Store) HasHopSequence(hops []crypto.TypedKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.hopCache[(&RouteSpecDetail{Hops: hops}).hopCacheKey()]
	return ok
}

// RouteCount reports how many routes are currently allocated.
func (s *Store) RouteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.routes)
}

// Detail returns the stored detail for route, if any.
func (s *Store) Detail(route crypto.TypedKey) (*RouteSpecDetail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.routes[route]
	return d, ok
}
