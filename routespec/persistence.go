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

package routespec

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/dbasu/corenet/crypto"
)

// ProtectedStore is the external secret-storage collaborator (spec §1):
// route secret keys never persist in the table-store blob, only here.
type ProtectedStore interface {
	SaveSecret(label string, secret []byte) error
	LoadSecret(label string) ([]byte, bool, error)
	RemoveSecret(label string) error
}

// TableStore is the external durable KV collaborator that holds the
// single content blob (spec §6: "the route-spec-store uses 1 sub-table
// keyed by a known label").
type TableStore interface {
	Put(table, key string, value []byte) error
	Get(table, key string) ([]byte, bool, error)
}

const (
	routeSpecTable = "route_spec_store"
	routeSpecLabel = "content"
)

// persistedRoute is the durable, secret-free shape of one route: public
// key, hop list, directions, timestamps. Secret and HopNodeRefs are
// reconstructed on load, not stored here.
type persistedRoute struct {
	PublicKeyKind  [4]byte
	PublicKeyValue [32]byte
	HopKinds       [][4]byte
	HopValues      [][32]byte
	CreatedTs      uint64
	Directions     uint8
}

const (
	dirOutbound uint8 = 1 << iota
	dirInbound
)

// Save serializes every route's secret-free detail to a single content
// blob and writes it to the table store; each route's secret key is
// written independently to the protected store, keyed by its public key.
func (s *Store) Save(tableStore TableStore, protected ProtectedStore) error {
	s.mu.Lock()
	routes := make([]*RouteSpecDetail, 0, len(s.routes))
	for _, d := range s.routes {
		routes = append(routes, d)
	}
	s.mu.Unlock()

	persisted := make([]persistedRoute, 0, len(routes))
	for _, d := range routes {
		label := fmt.Sprintf("route:%s", d.PublicKey.String())
		if err := protected.SaveSecret(label, d.Secret.Value[:]); err != nil {
			return fmt.Errorf("routespec: saving secret for %s: %w", d.PublicKey, err)
		}

		p := persistedRoute{
			PublicKeyKind:  d.PublicKey.Kind,
			PublicKeyValue: d.PublicKey.Value,
			CreatedTs:      uint64(d.CreatedTs.UnixMicro()),
		}
		if d.Directions.Outbound {
			p.Directions |= dirOutbound
		}
		if d.Directions.Inbound {
			p.Directions |= dirInbound
		}
		for _, h := range d.Hops {
			p.HopKinds = append(p.HopKinds, h.Kind)
			p.HopValues = append(p.HopValues, h.Value)
		}
		persisted = append(persisted, p)
	}

	blob, err := rlp.EncodeToBytes(persisted)
	if err != nil {
		return fmt.Errorf("routespec: encoding content blob: %w", err)
	}
	return tableStore.Put(routeSpecTable, routeSpecLabel, blob)
}

// Load reconstructs routes from the table store's content blob and the
// protected store's secrets, re-resolving each hop's NodeRef against rt.
// All loaded routes start unpublished and must be re-published (spec
// §4.5 lifecycle).
func (s *Store) Load(tableStore TableStore, protected ProtectedStore) error {
	blob, ok, err := tableStore.Get(routeSpecTable, routeSpecLabel)
	if err != nil {
		return fmt.Errorf("routespec: reading content blob: %w", err)
	}
	if !ok {
		return nil
	}

	var persisted []persistedRoute
	if err := rlp.DecodeBytes(blob, &persisted); err != nil {
		return fmt.Errorf("routespec: decoding content blob: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range persisted {
		pubKey := crypto.TypedKey{Kind: p.PublicKeyKind, Value: p.PublicKeyValue}
		label := fmt.Sprintf("route:%s", pubKey.String())
		secretBytes, ok, err := protected.LoadSecret(label)
		if err != nil {
			return fmt.Errorf("routespec: loading secret for %s: %w", pubKey, err)
		}
		if !ok {
			s.log.Warn("dropping route with no persisted secret", "route", pubKey.String())
			continue
		}
		var secret crypto.TypedSecret
		secret.Kind = p.PublicKeyKind
		copy(secret.Value[:], secretBytes)

		hops := make([]crypto.TypedKey, len(p.HopKinds))
		detail := &RouteSpecDetail{
			PublicKey: pubKey,
			Secret:    secret,
			Published: false,
			CreatedTs: time.UnixMicro(int64(p.CreatedTs)),
			Directions: Directions{
				Outbound: p.Directions&dirOutbound != 0,
				Inbound:  p.Directions&dirInbound != 0,
			},
		}
		for i := range p.HopKinds {
			hops[i] = crypto.TypedKey{Kind: p.HopKinds[i], Value: p.HopValues[i]}
			if ref := s.rt.LookupNodeRef(hops[i]); ref != nil {
				detail.HopNodeRefs = append(detail.HopNodeRefs, ref)
			}
		}
		detail.Hops = hops

		s.routes[pubKey] = detail
		s.hopCache[detail.hopCacheKey()] = pubKey
		for i, hop := range hops {
			u := s.usageFor(hop)
			u.anywhere++
			if i == 0 || i == len(hops)-1 {
				u.asEndpoint++
			}
		}
	}
	return nil
}
