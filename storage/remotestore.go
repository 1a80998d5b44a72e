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

	lru "github.com/hashicorp/golang-lru"

	"github.com/dbasu/corenet/crypto"
)

// RemoteStore holds records this node merely relays for other writers,
// received via unsolicited SetValueQ/GetValueQ (spec §4.6). Its subkey
// cache is a bounded LRU; eviction there only drops the cache entry and
// does not reject the write. Every accepted value also stays in its
// record, so total memory is bounded only by maxRecords and
// maxStorageBytes, each enforced when above zero.
type RemoteStore struct {
	mu              sync.Mutex
	crypto          *crypto.Crypto
	records         map[crypto.TypedKey]*Record
	subkeyCache     *lru.Cache
	maxRecords      int
	maxStorageBytes int64
	usedBytes       int64
}

type remoteSubkeyKey struct {
	record crypto.TypedKey
	subkey int
}

func NewRemoteStore(c *crypto.Crypto, subkeyCacheSize, maxRecords, maxStorageSpaceMB int) *RemoteStore {
	size := subkeyCacheSize
	if size <= 0 {
		size = 1
	}
	cache, err := lru.New(size)
	if err != nil {
		cache, _ = lru.New(1)
	}
	return &RemoteStore{
		crypto:          c,
		records:         make(map[crypto.TypedKey]*Record),
		subkeyCache:     cache,
		maxRecords:      maxRecords,
		maxStorageBytes: int64(maxStorageSpaceMB) * 1024 * 1024,
	}
}

// AcceptDescriptor registers (or returns) the relay-only record for key,
// rejecting new records once maxRecords is reached.
func (s *RemoteStore) AcceptDescriptor(key crypto.TypedKey, descriptor *SignedValueDescriptor) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[key]; ok {
		return r, nil
	}
	if s.maxRecords > 0 && len(s.records) >= s.maxRecords {
		return nil, fmt.Errorf("storage: remote store at max_records (%d)", s.maxRecords)
	}
	r := newRecord(descriptor, RemoteRecordDetail{})
	s.records[key] = r
	return r, nil
}

// PutSubkey accepts an unsolicited write, enforcing the same schema/size/
// signature invariants as LocalStore plus the remote store's aggregate
// storage-space cap.
func (s *RemoteStore) PutSubkey(key crypto.TypedKey, subkey int, vd *SignedValueData) error {
	if len(vd.Data) > MaxSubkeySize {
		return fmt.Errorf("storage: subkey %d value exceeds max subkey size", subkey)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	if !ok {
		return fmt.Errorf("storage: record %s unknown to remote store", key)
	}
	if !vd.Verify(s.crypto, subkey, r.Descriptor.Owner) {
		return fmt.Errorf("storage: subkey %d signature does not verify", subkey)
	}
	if !r.Descriptor.Schema.CheckSubkeyValueData(r.Descriptor.Owner, subkey, vd) {
		return fmt.Errorf("storage: subkey %d value rejected by schema", subkey)
	}

	existing, had := r.Subkey(subkey)
	delta := int64(len(vd.Data))
	if had {
		delta -= int64(len(existing.Data))
	}
	if s.maxStorageBytes > 0 && s.usedBytes+delta > s.maxStorageBytes {
		return fmt.Errorf("storage: remote store at max_storage_space_mb")
	}
	if !r.putSubkey(subkey, vd) {
		return fmt.Errorf("storage: subkey %d write is stale (seq %d <= known)", subkey, vd.Seq)
	}
	s.usedBytes += delta
	s.subkeyCache.Add(remoteSubkeyKey{key, subkey}, vd)
	return nil
}

// GetSubkey returns the cached value for (key, subkey), consulting the
// record's authoritative map first and falling back to the LRU cache.
func (s *RemoteStore) GetSubkey(key crypto.TypedKey, subkey int) (*SignedValueData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[key]; ok {
		if vd, ok := r.Subkey(subkey); ok {
			return vd, true
		}
	}
	if v, ok := s.subkeyCache.Get(remoteSubkeyKey{key, subkey}); ok {
		return v.(*SignedValueData), true
	}
	return nil, false
}

// Records returns a snapshot of every relayed record, for the flush task.
func (s *RemoteStore) Records() map[crypto.TypedKey]*Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[crypto.TypedKey]*Record, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}
