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

package crypto

import (
	"encoding/hex"
	"fmt"
)

// TypedKey is a 32-byte public key tagged with the crypto kind that
// produced it. It is the unit of identity: a node ID, a route public key,
// a DHT record owner key are all TypedKeys.
type TypedKey struct {
	Kind  CryptoKind
	Value [32]byte
}

func (k TypedKey) String() string {
	return fmt.Sprintf("%s:%s", k.Kind.String(), hex.EncodeToString(k.Value[:]))
}

// TypedSecret is a 32-byte secret key tagged with its crypto kind. It is
// never serialized to the wire or to untrusted storage.
type TypedSecret struct {
	Kind  CryptoKind
	Value [32]byte
}

// TypedKeyPair bundles a public/secret pair under one kind.
type TypedKeyPair struct {
	Key    TypedKey
	Secret TypedSecret
}

// TypedSignature is a 64-byte signature tagged with its crypto kind.
type TypedSignature struct {
	Kind  CryptoKind
	Value [64]byte
}

func (s TypedSignature) String() string {
	return fmt.Sprintf("%s:%s", s.Kind.String(), hex.EncodeToString(s.Value[:]))
}

// TypedKeyGroup is a set of TypedKeys representing the same logical entity
// (e.g. a node) across every crypto kind it supports. At most one key per
// kind. The same underlying 32-byte value may legitimately repeat across
// kinds (spec §3 PeerInfo invariant).
type TypedKeyGroup []TypedKey

// Get returns the key for kind, if present.
func (g TypedKeyGroup) Get(kind CryptoKind) (TypedKey, bool) {
	for _, k := range g {
		if k.Kind == kind {
			return k, true
		}
	}
	return TypedKey{}, false
}

// Contains reports whether any key in g equals k exactly (kind and value).
func (g TypedKeyGroup) Contains(k TypedKey) bool {
	for _, gk := range g {
		if gk == k {
			return true
		}
	}
	return false
}

// ContainsAny reports whether g and other share at least one (kind, value)
// pair — used to decide "is this peer already known under some kind".
func (g TypedKeyGroup) ContainsAny(other TypedKeyGroup) bool {
	for _, k := range other {
		if g.Contains(k) {
			return true
		}
	}
	return false
}

// With returns a copy of g with k set (replacing any existing key of the
// same kind).
func (g TypedKeyGroup) With(k TypedKey) TypedKeyGroup {
	out := make(TypedKeyGroup, 0, len(g)+1)
	replaced := false
	for _, gk := range g {
		if gk.Kind == k.Kind {
			out = append(out, k)
			replaced = true
			continue
		}
		out = append(out, gk)
	}
	if !replaced {
		out = append(out, k)
	}
	return out
}
