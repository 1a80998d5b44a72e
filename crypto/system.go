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

// System is the capability interface every crypto kind implementation
// provides. Call sites never branch on CryptoKind; they always go through
// Crypto.System(kind) to obtain one of these.
type System interface {
	Kind() CryptoKind

	// GenerateKeyPair produces a fresh keypair under this kind.
	GenerateKeyPair() (TypedKeyPair, error)

	// DH performs a Diffie-Hellman exchange, uncached.
	DH(publicKey TypedKey, secretKey TypedSecret) ([32]byte, error)

	// CachedDH is DH backed by the bounded shared-secret cache. cache may
	// be nil, in which case it behaves exactly like DH.
	CachedDH(cache *DHCache, publicKey TypedKey, secretKey TypedSecret) ([32]byte, error)

	// GenerateHash returns the kind's hash of data.
	GenerateHash(data []byte) [32]byte

	// Sign produces a signature over data using secretKey, verifiable
	// against the corresponding public key.
	Sign(publicKey TypedKey, secretKey TypedSecret, data []byte) (TypedSignature, error)

	// Verify checks sig over data against publicKey.
	Verify(publicKey TypedKey, data []byte, sig TypedSignature) bool

	// AeadOverhead returns the number of trailing bytes AeadEncrypt adds.
	AeadOverhead() int

	// AeadEncrypt encrypts plaintext in place, appending the AEAD tag.
	// sharedSecret is a DH output (or any 32-byte symmetric key); nonce
	// length is kind-specific (see NonceLength).
	AeadEncrypt(body, nonce, sharedSecret []byte, associatedData []byte) ([]byte, error)

	// AeadDecrypt reverses AeadEncrypt, returning an error if the tag does
	// not verify.
	AeadDecrypt(body, nonce, sharedSecret []byte, associatedData []byte) ([]byte, error)

	// NonceLength returns the byte length of nonces this kind expects.
	NonceLength() int

	// CryptNoAuth XORs body with a keystream derived from sharedSecret and
	// nonce — unauthenticated, used only for masking, never for anything
	// requiring integrity.
	CryptNoAuth(body, nonce, sharedSecret []byte) ([]byte, error)

	// HashPassword derives a salted password hash suitable for storage.
	HashPassword(password, salt []byte) ([]byte, error)

	// VerifyPassword checks password against a prior HashPassword output.
	VerifyPassword(password, salt, hash []byte) (bool, error)

	// DistanceMetric returns the XOR distance between two keys of this
	// kind, used to order bucket/fanout candidates.
	DistanceMetric(a, b TypedKey) [32]byte
}
