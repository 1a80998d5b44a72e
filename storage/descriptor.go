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

// SignedValueDescriptor names a record's owner, schema, and is itself
// signed by the owner so a remote node can verify a record's identity
// before accepting writes for it (spec §3 DHT Record).
type SignedValueDescriptor struct {
	Owner     crypto.TypedKey
	Schema    Schema
	Signature crypto.TypedSignature
}

func schemaBytes(s Schema) []byte {
	kind := s.Kind()
	buf := make([]byte, 0, 8)
	buf = append(buf, kind[:]...)
	var cnt [4]byte
	binary.BigEndian.PutUint32(cnt[:], uint32(s.SubkeyCount()))
	buf = append(buf, cnt[:]...)
	if smpl, ok := s.(SMPLSchema); ok {
		for _, m := range smpl.Members {
			buf = append(buf, m.Value[:]...)
		}
	}
	return buf
}

// RecordKey computes a record's key: Hash(crypto_kind_bytes ||
// owner_pub_key || schema_bytes) under kind's crypto system (spec §3).
func RecordKey(c *crypto.Crypto, kind crypto.CryptoKind, owner crypto.TypedKey, schema Schema) (crypto.TypedKey, error) {
	sys, err := c.System(kind)
	if err != nil {
		return crypto.TypedKey{}, fmt.Errorf("storage: computing record key: %w", err)
	}
	buf := make([]byte, 0, 4+32+16)
	buf = append(buf, kind[:]...)
	buf = append(buf, owner.Value[:]...)
	buf = append(buf, schemaBytes(schema)...)
	return crypto.TypedKey{Kind: kind, Value: sys.GenerateHash(buf)}, nil
}

// descriptorSigningBody is what Signature in SignedValueDescriptor covers.
func descriptorSigningBody(owner crypto.TypedKey, schema Schema) []byte {
	buf := append([]byte(nil), owner.Value[:]...)
	return append(buf, schemaBytes(schema)...)
}

// SignDescriptor builds and signs a descriptor for a freshly generated
// owner keypair (spec §4.6 create_record).
func SignDescriptor(c *crypto.Crypto, ownerPub crypto.TypedKey, ownerSecret crypto.TypedSecret, schema Schema) (*SignedValueDescriptor, error) {
	sys, err := c.System(ownerPub.Kind)
	if err != nil {
		return nil, err
	}
	sig, err := sys.Sign(ownerPub, ownerSecret, descriptorSigningBody(ownerPub, schema))
	if err != nil {
		return nil, fmt.Errorf("storage: signing descriptor: %w", err)
	}
	return &SignedValueDescriptor{Owner: ownerPub, Schema: schema, Signature: sig}, nil
}

// Verify checks d's self-signature.
func (d *SignedValueDescriptor) Verify(c *crypto.Crypto) bool {
	sys, err := c.System(d.Owner.Kind)
	if err != nil {
		return false
	}
	return sys.Verify(d.Owner, descriptorSigningBody(d.Owner, d.Schema), d.Signature)
}
