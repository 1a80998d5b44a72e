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
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// DHCache is a bounded cache of DH results keyed by (our_secret, their_public).
// Access is serialized by mu; lru.Cache itself is not safe for concurrent use.
type DHCache struct {
	mu  sync.Mutex
	lru *lru.Cache
}

type dhCacheKey struct {
	secret TypedSecret
	public TypedKey
}

// NewDHCache builds a DH result cache holding up to size entries.
func NewDHCache(size int) *DHCache {
	c, err := lru.New(size)
	if err != nil {
		// size <= 0; fall back to a minimal cache rather than failing
		// callers that didn't validate configuration.
		c, _ = lru.New(1)
	}
	return &DHCache{lru: c}
}

// Get returns a cached shared secret, if present.
func (c *DHCache) Get(secret TypedSecret, public TypedKey) ([32]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(dhCacheKey{secret, public})
	if !ok {
		return [32]byte{}, false
	}
	return v.([32]byte), true
}

// Put stores a freshly-computed shared secret.
func (c *DHCache) Put(secret TypedSecret, public TypedKey, shared [32]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(dhCacheKey{secret, public}, shared)
}

// Len reports the number of cached entries, for tests/metrics.
func (c *DHCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
