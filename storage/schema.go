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

// Package storage implements the Storage Manager (spec §4.6): DHT record
// lifecycle, schema-checked subkey writes, local/remote record stores,
// the offline-write queue, and the periodic flush task.
package storage

import (
	"github.com/dbasu/corenet/crypto"
	"github.com/dbasu/corenet/types"
)

// Schema kind codes (spec §4.6's "owner/SMPL allowed writers").
var (
	SchemaKindDFLT = types.FourCC{'D', 'F', 'L', 'T'}
	SchemaKindSMPL = types.FourCC{'S', 'M', 'P', 'L'}
)

// Schema is implemented by every DHT record schema type. Subkey 0 of a
// record is never stored unless it passes CheckSubkeyValueData.
type Schema interface {
	Kind() types.FourCC
	SubkeyCount() int
	// CheckSubkeyValueData reports whether a write by writer to subkey is
	// permitted under this schema's ACL and bounds.
	CheckSubkeyValueData(owner crypto.TypedKey, subkey int, vd *SignedValueData) bool
}

// DFLTSchema is the default schema: only the record owner may write any
// subkey.
type DFLTSchema struct {
	Subkeys int
}

func (s DFLTSchema) Kind() types.FourCC { return SchemaKindDFLT }
func (s DFLTSchema) SubkeyCount() int   { return s.Subkeys }

func (s DFLTSchema) CheckSubkeyValueData(owner crypto.TypedKey, subkey int, vd *SignedValueData) bool {
	if subkey < 0 || subkey >= s.Subkeys {
		return false
	}
	return vd.Writer == owner
}

// SMPLSchema additionally permits a fixed member list of non-owner
// writers, any of whom may write any subkey (spec §4.6: "owner/SMPL
// allowed writers").
type SMPLSchema struct {
	Subkeys int
	Members []crypto.TypedKey
}

func (s SMPLSchema) Kind() types.FourCC { return SchemaKindSMPL }
func (s SMPLSchema) SubkeyCount() int   { return s.Subkeys }

func (s SMPLSchema) CheckSubkeyValueData(owner crypto.TypedKey, subkey int, vd *SignedValueData) bool {
	if subkey < 0 || subkey >= s.Subkeys {
		return false
	}
	if vd.Writer == owner {
		return true
	}
	for _, m := range s.Members {
		if m == vd.Writer {
			return true
		}
	}
	return false
}
