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

// Package crypto defines the versioned crypto-kind abstraction: every key,
// signature, nonce and hash in the overlay carries a 4-byte CryptoKind tag
// selecting which concrete suite produced it. Call sites never branch on
// the kind directly; they dispatch through the Crypto aggregator.
package crypto

import "fmt"

// CryptoKind is a 4-byte identifier selecting a versioned crypto suite.
type CryptoKind [4]byte

func (k CryptoKind) String() string {
	return string(k[:])
}

var (
	// KindVLD0 is the default suite: curve25519 DH, ed25519 signatures,
	// xchacha20poly1305 AEAD, blake2b hashing, argon2 password hashing.
	KindVLD0 = CryptoKind{'V', 'L', 'D', '0'}
	// KindSECP is a secondary suite built on secp256k1 (shared with the
	// wider Ethereum ecosystem) and keccak256 hashing.
	KindSECP = CryptoKind{'S', 'E', 'C', 'P'}
)

// ValidCryptoKinds is the ordered list of crypto kinds this build supports.
// Order expresses preference: best_crypto_kind returns the first entry.
var ValidCryptoKinds = []CryptoKind{KindVLD0, KindSECP}

// BestCryptoKind returns the preferred crypto kind for new operations.
func BestCryptoKind() CryptoKind {
	return ValidCryptoKinds[0]
}

// IsValidCryptoKind reports whether k is one of ValidCryptoKinds.
func IsValidCryptoKind(k CryptoKind) bool {
	for _, v := range ValidCryptoKinds {
		if v == k {
			return true
		}
	}
	return false
}

// ErrUnsupportedKind is returned when a CryptoKind has no registered system.
type ErrUnsupportedKind struct {
	Kind CryptoKind
}

func (e *ErrUnsupportedKind) Error() string {
	return fmt.Sprintf("unsupported crypto kind %q", e.Kind.String())
}
