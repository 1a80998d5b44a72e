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
	"time"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/dbasu/corenet/crypto"
)

func timeFromMicro(us int64) time.Time {
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us)
}

// TableStore is the external durable KV collaborator (spec §1; same
// shape as routespec.TableStore, declared separately so storage does not
// need to import routespec for a two-method interface).
type TableStore interface {
	Put(table, key string, value []byte) error
	Get(table, key string) ([]byte, bool, error)
}

// Four sub-tables per record store (spec §6: "record stores use 4
// sub-tables each: records, subkeys, subkey-metadata" plus the offline
// write queue, which this store treats as metadata belonging to the
// manager rather than to either individual store).
const (
	tableRecords      = "records"
	tableSubkeys      = "subkeys"
	tableSubkeyMeta   = "subkey_metadata"
	tableOfflineQueue = "offline_subkey_writes"

	localLabel  = "local"
	remoteLabel = "remote"
)

// FlushRecordStoresIntervalSecs is the cadence Flush should be called on
// (spec §4.6: "every FLUSH_RECORD_STORES_INTERVAL_SECS, persist both
// local and remote stores").
const FlushRecordStoresIntervalSecs = 1

type persistedRecord struct {
	KeyKind    [4]byte
	KeyValue   [32]byte
	Descriptor rlpDescriptor
	LastTouch  int64
}

type persistedSubkey struct {
	KeyKind  [4]byte
	KeyValue [32]byte
	Subkey   uint32
	Value    rlpValueData
}

type persistedOfflineWrite struct {
	KeyKind  [4]byte
	KeyValue [32]byte
	Subkey   uint32
}

// Flush persists both local and remote stores to ts (spec §4.6 flush
// task, run every FLUSH_RECORD_STORES_INTERVAL_SECS).
func (m *Manager) Flush(ts TableStore) error {
	if err := flushStore(ts, localLabel, m.Local.Records()); err != nil {
		return err
	}
	if err := flushStore(ts, remoteLabel, m.Remote.Records()); err != nil {
		return err
	}
	return m.flushOfflineQueue(ts)
}

func flushStore(ts TableStore, label string, records map[crypto.TypedKey]*Record) error {
	var recs []persistedRecord
	var subkeys []persistedSubkey
	for key, r := range records {
		recs = append(recs, persistedRecord{
			KeyKind:    key.Kind,
			KeyValue:   key.Value,
			Descriptor: encodeDescriptor(r.Descriptor),
			LastTouch:  r.LastTouched.UnixMicro(),
		})
		for sk := 0; sk < r.SubkeyCount; sk++ {
			vd, ok := r.Subkey(sk)
			if !ok {
				continue
			}
			subkeys = append(subkeys, persistedSubkey{KeyKind: key.Kind, KeyValue: key.Value, Subkey: uint32(sk), Value: encodeValueData(vd)})
		}
	}

	recBlob, err := rlp.EncodeToBytes(recs)
	if err != nil {
		return fmt.Errorf("storage: encoding %s records: %w", label, err)
	}
	if err := ts.Put(tableRecords, label, recBlob); err != nil {
		return fmt.Errorf("storage: writing %s records: %w", label, err)
	}

	skBlob, err := rlp.EncodeToBytes(subkeys)
	if err != nil {
		return fmt.Errorf("storage: encoding %s subkeys: %w", label, err)
	}
	if err := ts.Put(tableSubkeys, label, skBlob); err != nil {
		return fmt.Errorf("storage: writing %s subkeys: %w", label, err)
	}

	// subkey-metadata mirrors the subkey table's record-data-size roll-up,
	// kept separate so a reader can learn aggregate size without decoding
	// every subkey's payload.
	meta := make([]int64, 0, len(records))
	for _, r := range records {
		meta = append(meta, int64(r.RecordDataSize))
	}
	metaBlob, err := rlp.EncodeToBytes(meta)
	if err != nil {
		return fmt.Errorf("storage: encoding %s subkey metadata: %w", label, err)
	}
	return ts.Put(tableSubkeyMeta, label, metaBlob)
}

func (m *Manager) flushOfflineQueue(ts TableStore) error {
	m.mu.Lock()
	var out []persistedOfflineWrite
	for key, subkeys := range m.offlineWrites {
		for sk := range subkeys {
			out = append(out, persistedOfflineWrite{KeyKind: key.Kind, KeyValue: key.Value, Subkey: uint32(sk)})
		}
	}
	m.mu.Unlock()

	blob, err := rlp.EncodeToBytes(out)
	if err != nil {
		return fmt.Errorf("storage: encoding offline write queue: %w", err)
	}
	return ts.Put(tableOfflineQueue, "content", blob)
}

// Load restores the local store's records, subkeys, and offline-write
// queue from ts. The remote store is not restored on load: it is a relay
// cache, safe to rebuild lazily from incoming traffic.
func (m *Manager) Load(ts TableStore) error {
	recBlob, ok, err := ts.Get(tableRecords, localLabel)
	if err != nil {
		return fmt.Errorf("storage: reading local records: %w", err)
	}
	if !ok {
		return nil
	}
	var recs []persistedRecord
	if err := rlp.DecodeBytes(recBlob, &recs); err != nil {
		return fmt.Errorf("storage: decoding local records: %w", err)
	}

	skBlob, ok, err := ts.Get(tableSubkeys, localLabel)
	if err != nil {
		return fmt.Errorf("storage: reading local subkeys: %w", err)
	}
	var subkeys []persistedSubkey
	if ok {
		if err := rlp.DecodeBytes(skBlob, &subkeys); err != nil {
			return fmt.Errorf("storage: decoding local subkeys: %w", err)
		}
	}

	for _, pr := range recs {
		key := crypto.TypedKey{Kind: pr.KeyKind, Value: pr.KeyValue}
		descriptor := decodeDescriptor(pr.Descriptor)
		r := m.Local.Open(key, descriptor, LocalRecordDetail{})
		r.LastTouched = timeFromMicro(pr.LastTouch)
		for _, ps := range subkeys {
			if ps.KeyKind != pr.KeyKind || ps.KeyValue != pr.KeyValue {
				continue
			}
			r.putSubkey(int(ps.Subkey), decodeValueData(ps.Value))
		}
	}

	queueBlob, ok, err := ts.Get(tableOfflineQueue, "content")
	if err != nil {
		return fmt.Errorf("storage: reading offline write queue: %w", err)
	}
	if ok {
		var queue []persistedOfflineWrite
		if err := rlp.DecodeBytes(queueBlob, &queue); err != nil {
			return fmt.Errorf("storage: decoding offline write queue: %w", err)
		}
		m.mu.Lock()
		for _, q := range queue {
			key := crypto.TypedKey{Kind: q.KeyKind, Value: q.KeyValue}
			if m.offlineWrites[key] == nil {
				m.offlineWrites[key] = make(map[int]bool)
			}
			m.offlineWrites[key][int(q.Subkey)] = true
		}
		m.mu.Unlock()
	}
	return nil
}
