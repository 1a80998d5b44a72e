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
	"time"

	"github.com/dbasu/corenet/crypto"
	"github.com/dbasu/corenet/rpc"
)

// RecordDetail distinguishes a locally-owned-or-opened record from one
// this store is merely relaying for a remote writer (spec §3 DHT Record:
// "Detail is LocalRecordDetail{safety_selection} or RemoteRecordDetail{}").
type RecordDetail interface {
	isRecordDetail()
}

// LocalRecordDetail marks a record opened by this node, carrying the
// safety selection outbound GetValueQ/SetValueQ fanout should use.
type LocalRecordDetail struct {
	Safety rpc.SafetySelection
	Writer *WriterKeyPair // non-nil if this node can write to the record
}

func (LocalRecordDetail) isRecordDetail() {}

// WriterKeyPair is the keypair a local record owner/writer signs with.
type WriterKeyPair struct {
	Public crypto.TypedKey
	Secret crypto.TypedSecret
}

// RemoteRecordDetail marks a record this store only relays on behalf of
// other nodes (the remote store side of spec §4.6).
type RemoteRecordDetail struct{}

func (RemoteRecordDetail) isRecordDetail() {}

// Record is one DHT record tracked by a store (spec §3).
type Record struct {
	Descriptor     *SignedValueDescriptor
	SubkeyCount    int
	LastTouched    time.Time
	RecordDataSize int
	Detail         RecordDetail

	// subkeys holds the last-known value for each subkey index that has
	// ever been written or fetched locally.
	subkeys map[int]*SignedValueData
}

func newRecord(descriptor *SignedValueDescriptor, detail RecordDetail) *Record {
	return &Record{
		Descriptor:  descriptor,
		SubkeyCount: descriptor.Schema.SubkeyCount(),
		LastTouched: time.Now(),
		Detail:      detail,
		subkeys:     make(map[int]*SignedValueData),
	}
}

// Subkey returns the last-known value for subkey, if any.
func (r *Record) Subkey(subkey int) (*SignedValueData, bool) {
	vd, ok := r.subkeys[subkey]
	return vd, ok
}

// lastSeq returns the seq of the last-known value for subkey, or -1 if none.
func (r *Record) lastSeq(subkey int) int64 {
	vd, ok := r.subkeys[subkey]
	if !ok {
		return -1
	}
	return int64(vd.Seq)
}

// putSubkey stores vd for subkey if its seq is strictly higher than what
// is already stored, maintaining RecordDataSize. Returns false if vd is
// stale (lower or equal seq) and was rejected.
func (r *Record) putSubkey(subkey int, vd *SignedValueData) bool {
	if existing, ok := r.subkeys[subkey]; ok {
		if vd.Seq <= existing.Seq {
			return false
		}
		r.RecordDataSize -= len(existing.Data)
	}
	r.subkeys[subkey] = vd
	r.RecordDataSize += len(vd.Data)
	r.LastTouched = time.Now()
	return true
}
