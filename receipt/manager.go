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

// Package receipt tracks outstanding wireformat.Receipt instances a caller
// is waiting to see returned, and expires them on the attachment manager's
// 1-second tick (spec §4.7's "receipt-manager tick").
package receipt

import (
	"encoding/hex"
	"sync"
	"time"
)

// Callback is invoked exactly once per outstanding receipt: ok is true if
// ReturnReceipt arrived before the deadline, false if it expired.
type Callback func(ok bool)

type pendingReceipt struct {
	deadline time.Time
	onDone   Callback
}

// Manager correlates ReturnReceipt statements (by nonce) with the callers
// awaiting them, and expires callers that time out. Grounded on
// rpc.WaiterTable's mutex-guarded-map correlation pattern, since a receipt
// and a Question/Answer are the same kind of "outstanding op ID" problem.
type Manager struct {
	mu      sync.Mutex
	pending map[string]*pendingReceipt
}

func NewManager() *Manager {
	return &Manager{pending: make(map[string]*pendingReceipt)}
}

// Watch registers nonce as outstanding until deadline; onDone fires exactly
// once, either from Deliver or from Tick once the deadline has passed.
func (m *Manager) Watch(nonce []byte, deadline time.Time, onDone Callback) {
	key := hex.EncodeToString(nonce)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[key] = &pendingReceipt{deadline: deadline, onDone: onDone}
}

// Deliver reports that a ReturnReceipt for nonce arrived. Returns false if
// no (or no longer) outstanding watch matched it, so the caller can log an
// unsolicited/duplicate receipt the way rpc.WaiterTable does for answers.
func (m *Manager) Deliver(nonce []byte) bool {
	key := hex.EncodeToString(nonce)
	m.mu.Lock()
	pr, ok := m.pending[key]
	if ok {
		delete(m.pending, key)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	pr.onDone(true)
	return true
}

// Tick expires every watch whose deadline has passed as of now, firing its
// callback with ok=false.
func (m *Manager) Tick(now time.Time) int {
	m.mu.Lock()
	var expired []*pendingReceipt
	for key, pr := range m.pending {
		if !pr.deadline.After(now) {
			expired = append(expired, pr)
			delete(m.pending, key)
		}
	}
	m.mu.Unlock()

	for _, pr := range expired {
		pr.onDone(false)
	}
	return len(expired)
}

// Len reports the number of outstanding watches.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
