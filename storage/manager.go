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
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/dbasu/corenet/config"
	"github.com/dbasu/corenet/crypto"
	"github.com/dbasu/corenet/rpc"
	"github.com/dbasu/corenet/routingtable"
	"github.com/dbasu/corenet/types"
)

// Manager is the Storage Manager (spec §4.6): it owns the local and
// remote record stores, runs outbound get_value/set_value fanout over
// the RPC processor, and maintains the offline-write queue.
type Manager struct {
	mu sync.Mutex

	crypto   *crypto.Crypto
	rt       *routingtable.RoutingTable
	proc     *rpc.Processor
	resolver rpc.RouteResolver
	dialer   Online
	cfg      config.DHTConfig
	log      log.Logger

	Local  *LocalStore
	Remote *RemoteStore

	// offlineWrites tracks (record key, subkey) pairs written while
	// offline, for the flush/reconnect path (spec §4.6 "Offline writes").
	offlineWrites map[crypto.TypedKey]map[int]bool
}

// Online reports whether the node currently has network connectivity;
// set_value consults it to decide between the online fanout path and the
// offline local-write-plus-queue path.
type Online interface {
	IsOnline() bool
}

func NewManager(c *crypto.Crypto, rt *routingtable.RoutingTable, proc *rpc.Processor, resolver rpc.RouteResolver, dialer Online, cfg config.DHTConfig, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.New("component", "storage")
	}
	return &Manager{
		crypto:        c,
		rt:            rt,
		proc:          proc,
		resolver:      resolver,
		dialer:        dialer,
		cfg:           cfg,
		log:           logger,
		Local:         NewLocalStore(c),
		Remote:        NewRemoteStore(c, cfg.RemoteSubkeyCacheSize, cfg.RemoteMaxRecords, cfg.RemoteMaxStorageSpaceMB),
		offlineWrites: make(map[crypto.TypedKey]map[int]bool),
	}
}

// CreateRecord generates an owner keypair, builds and stores a signed
// descriptor, and opens the record locally with writer=owner (spec §4.6
// create_record).
func (m *Manager) CreateRecord(kind crypto.CryptoKind, schema Schema, safety rpc.SafetySelection) (crypto.TypedKey, error) {
	kp, err := m.crypto.GenerateKeyPairForKind(kind)
	if err != nil {
		return crypto.TypedKey{}, fmt.Errorf("storage: create_record: %w", err)
	}
	descriptor, err := SignDescriptor(m.crypto, kp.Key, kp.Secret, schema)
	if err != nil {
		return crypto.TypedKey{}, fmt.Errorf("storage: create_record: %w", err)
	}
	key, err := RecordKey(m.crypto, kind, kp.Key, schema)
	if err != nil {
		return crypto.TypedKey{}, fmt.Errorf("storage: create_record: %w", err)
	}
	m.Local.Open(key, descriptor, LocalRecordDetail{
		Safety: safety,
		Writer: &WriterKeyPair{Public: kp.Key, Secret: kp.Secret},
	})
	return key, nil
}

// OpenRecord returns the locally-open record for key if present (updating
// its stored safety selection), else fans out a GetValueQ for subkey 0 and
// opens whatever non-empty descriptor comes back (spec §4.6 open_record).
func (m *Manager) OpenRecord(ctx context.Context, key crypto.TypedKey, writer *WriterKeyPair, safety rpc.SafetySelection) (*Record, error) {
	if r, ok := m.Local.Get(key); ok {
		m.mu.Lock()
		if d, ok := r.Detail.(LocalRecordDetail); ok {
			d.Safety = safety
			if writer != nil {
				d.Writer = writer
			}
			r.Detail = d
		}
		m.mu.Unlock()
		return r, nil
	}

	resp, descr, err := m.fanoutGetValue(ctx, key, 0, -1, safety)
	if err != nil {
		return nil, err
	}
	if descr == nil {
		return nil, fmt.Errorf("storage: open_record: no descriptor found for %s", key)
	}
	r := m.Local.Open(key, descr, LocalRecordDetail{Safety: safety, Writer: writer})
	if resp != nil {
		r.putSubkey(0, resp)
	}
	return r, nil
}

// GetValue returns the local value unless forceRefresh is set or it is
// missing, otherwise fans out GetValueQ and persists any newer result
// found (spec §4.6 get_value). Every candidate value is schema-validated
// before being accepted.
func (m *Manager) GetValue(ctx context.Context, key crypto.TypedKey, subkey int, forceRefresh bool) (*SignedValueData, error) {
	r, ok := m.Local.Get(key)
	if !ok {
		return nil, fmt.Errorf("storage: get_value: record %s not open", key)
	}
	if !forceRefresh {
		if vd, ok := r.Subkey(subkey); ok {
			return vd, nil
		}
	}

	safety := rpc.Unsafe(rpc.SequencingNoPreference)
	if d, ok := r.Detail.(LocalRecordDetail); ok {
		safety = d.Safety
	}
	lastSeq := r.lastSeq(subkey)

	resp, _, err := m.fanoutGetValue(ctx, key, subkey, lastSeq, safety)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		if vd, ok := r.Subkey(subkey); ok {
			return vd, nil
		}
		return nil, fmt.Errorf("storage: get_value: no value found for %s/%d", key, subkey)
	}
	if !r.Descriptor.Schema.CheckSubkeyValueData(r.Descriptor.Owner, subkey, resp) {
		return nil, fmt.Errorf("storage: get_value: network value for %s/%d failed schema validation", key, subkey)
	}
	r.putSubkey(subkey, resp)
	return resp, nil
}

// SetValue requires an open writer, increments seq from the last known
// value, signs, validates, and either fans out SetValueQ (online) or
// stores locally and enqueues an offline write (spec §4.6 set_value). If
// the network returns a higher seq than the one just written, that value
// is stored instead and returned, per scenario S5.
func (m *Manager) SetValue(ctx context.Context, key crypto.TypedKey, subkey int, data []byte) (*SignedValueData, error) {
	r, ok := m.Local.Get(key)
	if !ok {
		return nil, fmt.Errorf("storage: set_value: record %s not open", key)
	}
	detail, ok := r.Detail.(LocalRecordDetail)
	if !ok || detail.Writer == nil {
		return nil, fmt.Errorf("storage: set_value: record %s has no writer", key)
	}

	seq := uint32(r.lastSeq(subkey) + 1)
	vd, err := SignValueData(m.crypto, r.Descriptor.Schema.Kind(), subkey, seq, data, detail.Writer.Public, detail.Writer.Secret, r.Descriptor.Owner)
	if err != nil {
		return nil, fmt.Errorf("storage: set_value: %w", err)
	}
	if !r.Descriptor.Schema.CheckSubkeyValueData(r.Descriptor.Owner, subkey, vd) {
		return nil, fmt.Errorf("storage: set_value: value rejected by schema")
	}
	if err := m.Local.PutSubkey(key, subkey, vd); err != nil {
		return nil, fmt.Errorf("storage: set_value: %w", err)
	}

	if m.dialer == nil || !m.dialer.IsOnline() {
		m.mu.Lock()
		if m.offlineWrites[key] == nil {
			m.offlineWrites[key] = make(map[int]bool)
		}
		m.offlineWrites[key][subkey] = true
		m.mu.Unlock()
		return vd, nil
	}

	authoritative, err := m.fanoutSetValue(ctx, key, subkey, vd, r.Descriptor)
	if err != nil {
		return vd, nil // fanout failure: the local write still stands
	}
	if authoritative != nil && authoritative.Seq > vd.Seq {
		r.putSubkey(subkey, authoritative)
		return authoritative, nil
	}
	return vd, nil
}

// CloseRecord drops the in-memory open-record handle (spec §4.6).
func (m *Manager) CloseRecord(key crypto.TypedKey) {
	m.Local.Close(key)
}

// DeleteRecord removes key outright. Per spec §4.6, delete requires the
// record to already be closed.
func (m *Manager) DeleteRecord(key crypto.TypedKey) error {
	if _, ok := m.Local.Get(key); ok {
		return fmt.Errorf("storage: delete_record: %s is still open", key)
	}
	m.Local.Delete(key)
	return nil
}

// FlushOfflineWrites re-issues SetValueQ for every pending (key, subkey)
// write recorded while offline, clearing each on success (spec §4.6
// "Offline writes": flush on reconnect).
func (m *Manager) FlushOfflineWrites(ctx context.Context) {
	m.mu.Lock()
	pending := make(map[crypto.TypedKey][]int, len(m.offlineWrites))
	for k, subkeys := range m.offlineWrites {
		for sk := range subkeys {
			pending[k] = append(pending[k], sk)
		}
	}
	m.mu.Unlock()

	for key, subkeys := range pending {
		r, ok := m.Local.Get(key)
		if !ok {
			continue
		}
		for _, sk := range subkeys {
			vd, ok := r.Subkey(sk)
			if !ok {
				continue
			}
			if _, err := m.fanoutSetValue(ctx, key, sk, vd, r.Descriptor); err != nil {
				continue
			}
			m.mu.Lock()
			delete(m.offlineWrites[key], sk)
			if len(m.offlineWrites[key]) == 0 {
				delete(m.offlineWrites, key)
			}
			m.mu.Unlock()
		}
	}
}

func (m *Manager) fanoutCandidates(kind crypto.CryptoKind, key crypto.TypedKey, count int) *rpc.FanoutQueue[*routingtable.NodeRef] {
	keyFn := func(ref *routingtable.NodeRef) crypto.TypedKey {
		id, _ := ref.NodeIDs().Get(kind)
		return id
	}
	q := rpc.NewFanoutQueue(keyFn, nil)
	filter := func(e *routingtable.BucketEntry) bool {
		sni := e.SignedNodeInfo(types.RoutingDomainPublicInternet)
		return sni != nil && sni.NodeInfo.HasCapability(types.CapDHT)
	}
	q.Add(routingtable.FindNodesClosestToKey(m.rt, kind, key, count, filter))
	return q
}

func (m *Manager) fanoutGetValue(ctx context.Context, key crypto.TypedKey, subkey int, lastSeq int64, safety rpc.SafetySelection) (*SignedValueData, *SignedValueDescriptor, error) {
	q := m.fanoutCandidates(key.Kind, key, m.cfg.GetValueCount)
	timeout := time.Duration(m.cfg.GetValueTimeoutMs) * time.Millisecond
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := getValueRequest{RecordKind: key.Kind, OwnerValue: key.Value, Subkey: uint32(subkey), LastSeq: lastSeq}
	body, err := encodeRLP(req)
	if err != nil {
		return nil, nil, err
	}

	var best *SignedValueData
	var bestDescr *SignedValueDescriptor
	rpc.Run(callCtx, q, 0, nil, func(ctx context.Context, ref *routingtable.NodeRef) rpc.CallResult[*routingtable.NodeRef] {
		defer ref.Release()
		id, ok := ref.NodeIDs().Get(key.Kind)
		if !ok {
			return rpc.CallResult[*routingtable.NodeRef]{}
		}
		result := m.proc.Ask(ctx, ref, rpc.OpGetValueQ, body, rpc.Direct(id, safety), m.resolver)
		msg, ok := result.Unwrap()
		if !ok {
			return rpc.CallResult[*routingtable.NodeRef]{}
		}
		var resp getValueResponse
		if err := decodeRLPBody(msg.Body, &resp); err != nil || !resp.Found {
			return rpc.CallResult[*routingtable.NodeRef]{}
		}
		vd := decodeValueData(resp.Value)
		if best == nil || vd.Seq > best.Seq {
			best = vd
			descr := decodeDescriptor(resp.Descr)
			bestDescr = descr
		}
		return rpc.CallResult[*routingtable.NodeRef]{Success: true}
	})

	return best, bestDescr, nil
}

func (m *Manager) fanoutSetValue(ctx context.Context, key crypto.TypedKey, subkey int, vd *SignedValueData, descriptor *SignedValueDescriptor) (*SignedValueData, error) {
	q := m.fanoutCandidates(key.Kind, key, m.cfg.SetValueCount)
	timeout := time.Duration(m.cfg.SetValueTimeoutMs) * time.Millisecond
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := setValueRequest{RecordKind: key.Kind, OwnerValue: key.Value, Subkey: uint32(subkey), Value: encodeValueData(vd), Descr: encodeDescriptor(descriptor)}
	body, err := encodeRLP(req)
	if err != nil {
		return nil, err
	}

	var authoritative *SignedValueData
	safety := rpc.Unsafe(rpc.SequencingNoPreference)
	rpc.Run(callCtx, q, 0, nil, func(ctx context.Context, ref *routingtable.NodeRef) rpc.CallResult[*routingtable.NodeRef] {
		defer ref.Release()
		id, ok := ref.NodeIDs().Get(key.Kind)
		if !ok {
			return rpc.CallResult[*routingtable.NodeRef]{}
		}
		result := m.proc.Ask(ctx, ref, rpc.OpSetValueQ, body, rpc.Direct(id, safety), m.resolver)
		msg, ok := result.Unwrap()
		if !ok {
			return rpc.CallResult[*routingtable.NodeRef]{}
		}
		var resp setValueResponse
		if err := decodeRLPBody(msg.Body, &resp); err != nil {
			return rpc.CallResult[*routingtable.NodeRef]{}
		}
		if !resp.Accepted {
			candidate := decodeValueData(resp.Value)
			if authoritative == nil || candidate.Seq > authoritative.Seq {
				authoritative = candidate
			}
			return rpc.CallResult[*routingtable.NodeRef]{}
		}
		return rpc.CallResult[*routingtable.NodeRef]{Success: true}
	})

	return authoritative, nil
}
