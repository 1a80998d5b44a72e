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
	"testing"

	"github.com/dbasu/corenet/crypto"
)

func newTestCrypto() *crypto.Crypto {
	return crypto.New(32)
}

// fakeOffline always reports offline, so SetValue exercises the local
// write + offline-queue path without needing a live processor/fanout.
type fakeOffline struct{}

func (fakeOffline) IsOnline() bool { return false }

func newOpenRecord(t *testing.T, c *crypto.Crypto, subkeys int) (*LocalStore, crypto.TypedKey, *WriterKeyPair) {
	t.Helper()
	kp, err := c.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generating owner keypair: %v", err)
	}
	schema := DFLTSchema{Subkeys: subkeys}
	descriptor, err := SignDescriptor(c, kp.Key, kp.Secret, schema)
	if err != nil {
		t.Fatalf("signing descriptor: %v", err)
	}
	key, err := RecordKey(c, kp.Key.Kind, kp.Key, schema)
	if err != nil {
		t.Fatalf("computing record key: %v", err)
	}
	ls := NewLocalStore(c)
	ls.Open(key, descriptor, LocalRecordDetail{Writer: &WriterKeyPair{Public: kp.Key, Secret: kp.Secret}})
	return ls, key, &WriterKeyPair{Public: kp.Key, Secret: kp.Secret}
}

// TestSetValueSeqMonotonic covers testable property 3: for every DHT
// record and every subkey, seq is monotonically non-decreasing under
// local operations.
func TestSetValueSeqMonotonic(t *testing.T) {
	c := newTestCrypto()
	ls, key, writer := newOpenRecord(t, c, 1)
	r, _ := ls.Get(key)

	var lastSeq int64 = -1
	for i, data := range [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")} {
		seq := uint32(r.lastSeq(0) + 1)
		vd, err := SignValueData(c, r.Descriptor.Schema.Kind(), 0, seq, data, writer.Public, writer.Secret, r.Descriptor.Owner)
		if err != nil {
			t.Fatalf("round %d: signing: %v", i, err)
		}
		if err := ls.PutSubkey(key, 0, vd); err != nil {
			t.Fatalf("round %d: put subkey: %v", i, err)
		}
		if int64(vd.Seq) <= lastSeq {
			t.Fatalf("round %d: seq %d did not increase past %d", i, vd.Seq, lastSeq)
		}
		lastSeq = int64(vd.Seq)
	}
}

// TestManagerSetValueOfflineThenAuthoritativeRemote follows scenario S5 on
// an owner-writable DFLT record: an offline Manager.SetValue sets subkey 0
// to "a" (seq 0), then to "b" (seq 1); the test then applies the step
// SetValue takes when a fanout reports a higher-seq authoritative value
// (seq=5, data "c") — the local store must end up holding seq=5/"c".
func TestManagerSetValueOfflineThenAuthoritativeRemote(t *testing.T) {
	c := newTestCrypto()
	ls, key, writer := newOpenRecord(t, c, 1)
	r, _ := ls.Get(key)

	m := &Manager{
		crypto:        c,
		Local:         ls,
		Remote:        NewRemoteStore(c, 16, 0, 0),
		dialer:        fakeOffline{},
		offlineWrites: make(map[crypto.TypedKey]map[int]bool),
	}

	vdA, err := m.SetValue(nil, key, 0, []byte("a"))
	if err != nil {
		t.Fatalf("set_value \"a\": %v", err)
	}
	if vdA.Seq != 0 {
		t.Fatalf("first set_value got seq=%d, want 0", vdA.Seq)
	}

	vdB, err := m.SetValue(nil, key, 0, []byte("b"))
	if err != nil {
		t.Fatalf("set_value \"b\": %v", err)
	}
	if vdB.Seq != 1 {
		t.Fatalf("second set_value got seq=%d, want 1", vdB.Seq)
	}
	if got, ok := r.Subkey(0); !ok || got.Seq != 1 || string(got.Data) != "b" {
		t.Fatalf("after local writes, got seq=%d data=%q, want seq=1 data=\"b\"", got.Seq, got.Data)
	}

	// Simulate what fanoutSetValue would have told SetValue: the network
	// already holds a higher-seq authoritative value.
	authoritative, err := SignValueData(c, r.Descriptor.Schema.Kind(), 0, 5, []byte("c"), writer.Public, writer.Secret, r.Descriptor.Owner)
	if err != nil {
		t.Fatalf("signing authoritative seq 5: %v", err)
	}
	if authoritative.Seq > vdB.Seq {
		r.putSubkey(0, authoritative)
	}

	got, ok := r.Subkey(0)
	if !ok {
		t.Fatal("expected subkey 0 to be present")
	}
	if got.Seq != 5 || string(got.Data) != "c" {
		t.Fatalf("got seq=%d data=%q, want seq=5 data=\"c\"", got.Seq, got.Data)
	}
}

// TestSetValueEnqueuesOfflineWrite exercises the offline branch of
// Manager.SetValue directly against the local store and offline queue
// (spec §4.6 "Offline writes").
func TestSetValueEnqueuesOfflineWrite(t *testing.T) {
	c := newTestCrypto()
	ls, key, writer := newOpenRecord(t, c, 1)
	m := &Manager{
		crypto:        c,
		Local:         ls,
		Remote:        NewRemoteStore(c, 16, 0, 0),
		dialer:        fakeOffline{},
		offlineWrites: make(map[crypto.TypedKey]map[int]bool),
	}

	if _, err := m.SetValue(nil, key, 0, []byte("x")); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if !m.offlineWrites[key][0] {
		t.Fatal("expected (key, 0) to be queued as an offline write")
	}
	if writer.Public.Kind != key.Kind {
		t.Fatalf("unexpected kind mismatch between writer and record key")
	}
}

// TestPutSubkeyRejectsStaleSeq checks that a lower-or-equal seq is
// rejected, the other half of the monotonicity invariant.
func TestPutSubkeyRejectsStaleSeq(t *testing.T) {
	c := newTestCrypto()
	ls, key, writer := newOpenRecord(t, c, 1)
	r, _ := ls.Get(key)

	vd5, err := SignValueData(c, r.Descriptor.Schema.Kind(), 0, 5, []byte("newer"), writer.Public, writer.Secret, r.Descriptor.Owner)
	if err != nil {
		t.Fatalf("signing seq 5: %v", err)
	}
	if err := ls.PutSubkey(key, 0, vd5); err != nil {
		t.Fatalf("put seq 5: %v", err)
	}

	vd3, err := SignValueData(c, r.Descriptor.Schema.Kind(), 0, 3, []byte("stale"), writer.Public, writer.Secret, r.Descriptor.Owner)
	if err != nil {
		t.Fatalf("signing seq 3: %v", err)
	}
	if err := ls.PutSubkey(key, 0, vd3); err == nil {
		t.Fatal("expected stale seq 3 write to be rejected")
	}
	if got, _ := r.Subkey(0); got.Seq != 5 {
		t.Fatalf("stale write must not overwrite: got seq=%d, want 5", got.Seq)
	}
}

// TestSMPLSchemaAllowsMemberWrites checks the SMPL schema's ACL: a
// non-owner member may write, a non-member may not.
func TestSMPLSchemaAllowsMemberWrites(t *testing.T) {
	c := newTestCrypto()
	ownerKP, err := c.GenerateKeyPair()
	if err != nil {
		t.Fatalf("owner keypair: %v", err)
	}
	memberKP, err := c.GenerateKeyPair()
	if err != nil {
		t.Fatalf("member keypair: %v", err)
	}
	outsiderKP, err := c.GenerateKeyPair()
	if err != nil {
		t.Fatalf("outsider keypair: %v", err)
	}

	schema := SMPLSchema{Subkeys: 1, Members: []crypto.TypedKey{memberKP.Key}}
	descriptor, err := SignDescriptor(c, ownerKP.Key, ownerKP.Secret, schema)
	if err != nil {
		t.Fatalf("signing descriptor: %v", err)
	}
	key, err := RecordKey(c, ownerKP.Key.Kind, ownerKP.Key, schema)
	if err != nil {
		t.Fatalf("computing record key: %v", err)
	}
	ls := NewLocalStore(c)
	ls.Open(key, descriptor, LocalRecordDetail{})

	memberVD, err := SignValueData(c, schema.Kind(), 0, 0, []byte("from-member"), memberKP.Key, memberKP.Secret, ownerKP.Key)
	if err != nil {
		t.Fatalf("signing member write: %v", err)
	}
	if err := ls.PutSubkey(key, 0, memberVD); err != nil {
		t.Fatalf("member write should be accepted: %v", err)
	}

	outsiderVD, err := SignValueData(c, schema.Kind(), 0, 1, []byte("from-outsider"), outsiderKP.Key, outsiderKP.Secret, ownerKP.Key)
	if err != nil {
		t.Fatalf("signing outsider write: %v", err)
	}
	if err := ls.PutSubkey(key, 0, outsiderVD); err == nil {
		t.Fatal("expected outsider write to be rejected by schema ACL")
	}
}
