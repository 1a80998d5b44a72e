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

package crypto

import "golang.org/x/crypto/blake2b"

// blake2bSum256 is shared by kind implementations that need a generic
// 32-byte digest (e.g. to compress an ECDH x-coordinate into a symmetric
// key) without pulling in that kind's own identity hash function.
func blake2bSum256(data []byte) [32]byte {
	return blake2b.Sum256(data)
}
