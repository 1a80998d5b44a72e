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
	"encoding/binary"
	"fmt"

	"github.com/dbasu/corenet/crypto"
)

// MaxSubkeySize bounds one subkey's value-data length (spec §4.6 subkey
// storage invariant a).
const MaxSubkeySize = 32768

// MaxRecordDataSize bounds a record's aggregate subkey data (spec §4.6
// subkey storage invariant b).
const MaxRecordDataSize = 1048576

// SignedValueData is one subkey's stored value (spec §3): the tuple
// (owner, subkey, seq) is monotonic — a stored subkey may only be
// overwritten by a value carrying a strictly higher seq.
type SignedValueData struct {
	Data      []byte
	Schema    [4]byte
	Seq       uint32
	Writer    crypto.TypedKey
	Signature crypto.TypedSignature
}

// signingBody is the byte sequence Signature is computed over: (subkey,
// seq, data, descriptor_owner), per spec §3's SignedValueData definition.
func signingBody(subkey int, seq uint32, data []byte, owner crypto.TypedKey) []byte {
	buf := make([]byte, 0, 4+4+len(data)+32)
	var sk [4]byte
	binary.BigEndian.PutUint32(sk[:], uint32(subkey))
	buf = append(buf, sk[:]...)
	var sq [4]byte
	binary.BigEndian.PutUint32(sq[:], seq)
	buf = append(buf, sq[:]...)
	buf = append(buf, data...)
	buf = append(buf, owner.Value[:]...)
	return buf
}

// SignValueData builds and signs a SignedValueData for subkey, using
// writer's keypair and owner as the record's owner key.
func SignValueData(c *crypto.Crypto, schema [4]byte, subkey int, seq uint32, data []byte, writerPub crypto.TypedKey, writerSecret crypto.TypedSecret, owner crypto.TypedKey) (*SignedValueData, error) {
	sys, err := c.System(writerPub.Kind)
	if err != nil {
		return nil, fmt.Errorf("storage: signing value data: %w", err)
	}
	sig, err := sys.Sign(writerPub, writerSecret, signingBody(subkey, seq, data, owner))
	if err != nil {
		return nil, fmt.Errorf("storage: signing value data: %w", err)
	}
	return &SignedValueData{Data: data, Schema: schema, Seq: seq, Writer: writerPub, Signature: sig}, nil
}

// Verify checks vd's signature against owner via kind's crypto system —
// spec §4.6 subkey storage invariant c.
func (vd *SignedValueData) Verify(c *crypto.Crypto, subkey int, owner crypto.TypedKey) bool {
	sys, err := c.System(vd.Writer.Kind)
	if err != nil {
		return false
	}
	return sys.Verify(vd.Writer, signingBody(subkey, vd.Seq, vd.Data, owner), vd.Signature)
}
