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

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/dbasu/corenet/crypto"
)

// rlpDescriptor is the wire-shaped, RLP-codable form of a
// SignedValueDescriptor: Schema is flattened to its kind/subkey-count/
// member list rather than carried as an interface.
type rlpDescriptor struct {
	OwnerKind   [4]byte
	OwnerValue  [32]byte
	SchemaKind  [4]byte
	SubkeyCount uint32
	Members     [][32]byte
	SigKind     [4]byte
	SigValue    [64]byte
}

func encodeDescriptor(d *SignedValueDescriptor) rlpDescriptor {
	out := rlpDescriptor{
		OwnerKind:   d.Owner.Kind,
		OwnerValue:  d.Owner.Value,
		SchemaKind:  d.Schema.Kind(),
		SubkeyCount: uint32(d.Schema.SubkeyCount()),
		SigKind:     d.Signature.Kind,
		SigValue:    d.Signature.Value,
	}
	if smpl, ok := d.Schema.(SMPLSchema); ok {
		for _, m := range smpl.Members {
			out.Members = append(out.Members, m.Value)
		}
	}
	return out
}

func decodeDescriptor(r rlpDescriptor) *SignedValueDescriptor {
	owner := crypto.TypedKey{Kind: r.OwnerKind, Value: r.OwnerValue}
	var schema Schema
	if r.SchemaKind == SchemaKindSMPL {
		members := make([]crypto.TypedKey, len(r.Members))
		for i, v := range r.Members {
			members[i] = crypto.TypedKey{Kind: r.OwnerKind, Value: v}
		}
		schema = SMPLSchema{Subkeys: int(r.SubkeyCount), Members: members}
	} else {
		schema = DFLTSchema{Subkeys: int(r.SubkeyCount)}
	}
	return &SignedValueDescriptor{
		Owner:     owner,
		Schema:    schema,
		Signature: crypto.TypedSignature{Kind: r.SigKind, Value: r.SigValue},
	}
}

type rlpValueData struct {
	Data     []byte
	Schema   [4]byte
	Seq      uint32
	WriterKd [4]byte
	WriterV  [32]byte
	SigKind  [4]byte
	SigValue [64]byte
}

func encodeValueData(vd *SignedValueData) rlpValueData {
	return rlpValueData{
		Data:     vd.Data,
		Schema:   vd.Schema,
		Seq:      vd.Seq,
		WriterKd: vd.Writer.Kind,
		WriterV:  vd.Writer.Value,
		SigKind:  vd.Signature.Kind,
		SigValue: vd.Signature.Value,
	}
}

func decodeValueData(r rlpValueData) *SignedValueData {
	return &SignedValueData{
		Data:      r.Data,
		Schema:    r.Schema,
		Seq:       r.Seq,
		Writer:    crypto.TypedKey{Kind: r.WriterKd, Value: r.WriterV},
		Signature: crypto.TypedSignature{Kind: r.SigKind, Value: r.SigValue},
	}
}

// getValueRequest/getValueResponse and setValueRequest/setValueResponse
// are the RLP-encoded GetValueQ/A and SetValueQ/A operation bodies (spec
// §4.6), carried opaquely inside rpc.Message.Body.
type getValueRequest struct {
	RecordKind  [4]byte
	OwnerValue  [32]byte
	SchemaKind  [4]byte
	SubkeyCount uint32
	Subkey      uint32
	LastSeq     int64 // -1 if none known
}

type getValueResponse struct {
	Found bool
	Value rlpValueData
	Descr rlpDescriptor
}

type setValueRequest struct {
	RecordKind [4]byte
	OwnerValue [32]byte
	Subkey     uint32
	Value      rlpValueData
	Descr      rlpDescriptor
}

type setValueResponse struct {
	Accepted bool
	Value    rlpValueData // the network's authoritative value, if higher-seq
}

func encodeRLP(v interface{}) ([]byte, error) {
	b, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, fmt.Errorf("storage: encoding RPC body: %w", err)
	}
	return b, nil
}

func decodeRLPBody(body []byte, out interface{}) error {
	if err := rlp.DecodeBytes(body, out); err != nil {
		return fmt.Errorf("storage: decoding RPC body: %w", err)
	}
	return nil
}
