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

package storage

import (
	"fmt"
	"sync"

	"github.com/dbasu/corenet/crypto"
)

// LocalStore holds records this node owns or has opened (spec §4.6: the
// local store omits the remote store's max_records/max_storage_space_mb
// limits by default).
type LocalStore struct {
	mu      sync.Mutex
	crypto  *crypto.Crypto
	records map[crypto.TypedKey]*Record
}

func NewLocalStore(c *crypto.Crypto) *LocalStore {
	return &LocalStore{crypto: c, records: make(map[crypto.TypedKey]*Record)}
}

// Open returns an existing record, or registers a new one under detail.
func (s *LocalStore) Open(key crypto.TypedKey, descriptor *SignedValueDescriptor, detail RecordDetail) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[key]; ok {
		return r
	}
	r := newRecord(descriptor, detail)
	s.records[key] = r
	return r
}

// Get returns the record for key, if open.
func (s *LocalStore) Get(key crypto.TypedKey) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	return r, ok
}

// Close drops the in-memory record for key without deleting its persisted
// state (spec §4.6 close_record).
func (s *LocalStore) Close(key crypto.TypedKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
}

// Delete removes key outright; callers must ensure it is closed first
// (spec §4.6: "delete requires closed").
func (s *LocalStore) Delete(key crypto.TypedKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
}

// PutSubkey validates and stores vd for (key, subkey), enforcing the
// per-subkey and aggregate record size limits and schema ACL (spec §4.6
// subkey storage invariants a, b, d) plus signature verification
// (invariant c). Returns plain errors prefixed "storage:"; callers wrap
// them as needed.
func (s *LocalStore) PutSubkey(key crypto.TypedKey, subkey int, vd *SignedValueData) error {
	if len(vd.Data) > MaxSubkeySize {
		return fmt.Errorf("storage: subkey %d value exceeds max subkey size", subkey)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	if !ok {
		return fmt.Errorf("storage: record %s not open", key)
	}
	if !vd.Verify(s.crypto, subkey, r.Descriptor.Owner) {
		return fmt.Errorf("storage: subkey %d signature does not verify", subkey)
	}
	if !r.Descriptor.Schema.CheckSubkeyValueData(r.Descriptor.Owner, subkey, vd) {
		return fmt.Errorf("storage: subkey %d value rejected by schema", subkey)
	}
	existing, had := r.Subkey(subkey)
	projected := r.RecordDataSize + len(vd.Data)
	if had {
		projected -= len(existing.Data)
	}
	if projected > MaxRecordDataSize {
		return fmt.Errorf("storage: record %s would exceed max record data size", key)
	}
	if !r.putSubkey(subkey, vd) {
		return fmt.Errorf("storage: subkey %d write is stale (seq %d <= known)", subkey, vd.Seq)
	}
	return nil
}

// Records returns a snapshot of every open record, for the flush task.
func (s *LocalStore) Records() map[crypto.TypedKey]*Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[crypto.TypedKey]*Record, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}
