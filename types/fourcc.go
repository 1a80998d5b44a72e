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

// Package types holds the shared wire/data-model types described in spec
// §3: node identity, dial info, peer descriptors and capability codes.
// None of these types hold behavior beyond validation — they are the
// vocabulary every other package speaks.
package types

// FourCC is a 4-byte code. It is used both for capability advertisements
// (ROUT, SGNL, RLAY, DIAL, DHTV, APPM, TUNL, BLOC) and for DHT schema kinds.
type FourCC [4]byte

func (f FourCC) String() string { return string(f[:]) }

// Capability codes (spec §3 NodeInfo).
var (
	CapRouting   = FourCC{'R', 'O', 'U', 'T'}
	CapSignal    = FourCC{'S', 'G', 'N', 'L'}
	CapRelay     = FourCC{'R', 'L', 'A', 'Y'}
	CapDialInfo  = FourCC{'D', 'I', 'A', 'L'}
	CapDHT       = FourCC{'D', 'H', 'T', 'V'}
	CapAppMsg    = FourCC{'A', 'P', 'P', 'M'}
	CapTunnel    = FourCC{'T', 'U', 'N', 'L'}
	CapBlockStor = FourCC{'B', 'L', 'O', 'C'}
)
