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

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"errors"
	"math/big"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
)

// vld0System is the default crypto kind: ed25519 node identity and
// signatures, with DH performed over the birationally-equivalent
// Curve25519 point (the standard libsodium sk/pk-to-curve25519
// conversion), XChaCha20-Poly1305 AEAD, BLAKE2b-256 hashing and
// Argon2id password hashing.
type vld0System struct{}

// NewVLD0 returns the default crypto System.
func NewVLD0() System { return vld0System{} }

func (vld0System) Kind() CryptoKind { return KindVLD0 }

func (s vld0System) GenerateKeyPair() (TypedKeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return TypedKeyPair{}, err
	}
	var kp TypedKeyPair
	kp.Key.Kind = KindVLD0
	copy(kp.Key.Value[:], pub)
	kp.Secret.Kind = KindVLD0
	copy(kp.Secret.Value[:], priv.Seed())
	return kp, nil
}

// x25519ScalarFromSeed reproduces libsodium's crypto_sign_ed25519_sk_to_curve25519:
// the first 32 bytes of SHA-512(seed), clamped as an X25519 scalar.
func x25519ScalarFromSeed(seed [32]byte) [32]byte {
	h := sha512.Sum512(seed[:])
	var scalar [32]byte
	copy(scalar[:], h[:32])
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64
	return scalar
}

var curve25519P, _ = new(big.Int).SetString("57896044618658097711785492504343953926634992332820282019728792003956564819949", 10)

// x25519PointFromEdPublic converts an Edwards25519 public key to its
// Montgomery u-coordinate: u = (1+y)/(1-y) mod p. This depends only on y
// (the sign bit of the compressed point is irrelevant to u), matching
// libsodium's crypto_sign_ed25519_pk_to_curve25519.
func x25519PointFromEdPublic(pub [32]byte) [32]byte {
	yBytes := make([]byte, 32)
	copy(yBytes, pub[:])
	yBytes[31] &= 0x7F
	reverseBytes(yBytes)
	y := new(big.Int).SetBytes(yBytes)

	one := big.NewInt(1)
	num := new(big.Int).Mod(new(big.Int).Add(one, y), curve25519P)
	den := new(big.Int).Mod(new(big.Int).Sub(one, y), curve25519P)
	denInv := new(big.Int).ModInverse(den, curve25519P)
	if denInv == nil {
		// y == 1 is not a valid public key point; return the identity.
		return [32]byte{}
	}
	u := new(big.Int).Mod(new(big.Int).Mul(num, denInv), curve25519P)

	out := u.Bytes()
	var result [32]byte
	// u.Bytes() is big-endian and may be shorter than 32 bytes.
	for i := 0; i < len(out) && i < 32; i++ {
		result[i] = out[len(out)-1-i]
	}
	return result
}

func reverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

func (s vld0System) DH(publicKey TypedKey, secretKey TypedSecret) ([32]byte, error) {
	scalar := x25519ScalarFromSeed(secretKey.Value)
	point := x25519PointFromEdPublic(publicKey.Value)
	shared, err := curve25519.X25519(scalar[:], point[:])
	if err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], shared)
	return out, nil
}

func (s vld0System) CachedDH(cache *DHCache, publicKey TypedKey, secretKey TypedSecret) ([32]byte, error) {
	if cache == nil {
		return s.DH(publicKey, secretKey)
	}
	if v, ok := cache.Get(secretKey, publicKey); ok {
		return v, nil
	}
	v, err := s.DH(publicKey, secretKey)
	if err != nil {
		return v, err
	}
	cache.Put(secretKey, publicKey, v)
	return v, nil
}

func (vld0System) GenerateHash(data []byte) [32]byte {
	return blake2b.Sum256(data)
}

func (vld0System) Sign(publicKey TypedKey, secretKey TypedSecret, data []byte) (TypedSignature, error) {
	priv := ed25519.NewKeyFromSeed(secretKey.Value[:])
	sig := ed25519.Sign(priv, data)
	var out TypedSignature
	out.Kind = KindVLD0
	copy(out.Value[:], sig)
	return out, nil
}

func (vld0System) Verify(publicKey TypedKey, data []byte, sig TypedSignature) bool {
	if sig.Kind != KindVLD0 {
		return false
	}
	return ed25519.Verify(publicKey.Value[:], data, sig.Value[:])
}

func (vld0System) AeadOverhead() int {
	return chacha20poly1305.Overhead
}

func (vld0System) NonceLength() int {
	return chacha20poly1305.NonceSizeX
}

func (vld0System) AeadEncrypt(body, nonce, sharedSecret, associatedData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(sharedSecret)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, errors.New("crypto: bad nonce length")
	}
	return aead.Seal(nil, nonce, body, associatedData), nil
}

func (vld0System) AeadDecrypt(body, nonce, sharedSecret, associatedData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(sharedSecret)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, errors.New("crypto: bad nonce length")
	}
	return aead.Open(nil, nonce, body, associatedData)
}

// CryptNoAuth XORs body with a BLAKE2b-derived keystream. It is used only
// where integrity is provided by an outer envelope (e.g. masking route
// hop headers that are themselves wrapped in an AEAD envelope) — never as
// a substitute for AEAD.
func (vld0System) CryptNoAuth(body, nonce, sharedSecret []byte) ([]byte, error) {
	out := make([]byte, len(body))
	block := 0
	counter := make([]byte, 8)
	for offset := 0; offset < len(body); offset += 32 {
		counter[0] = byte(block)
		counter[1] = byte(block >> 8)
		counter[2] = byte(block >> 16)
		counter[3] = byte(block >> 24)
		h, err := blake2b.New256(sharedSecret)
		if err != nil {
			return nil, err
		}
		h.Write(nonce)
		h.Write(counter)
		stream := h.Sum(nil)
		n := len(body) - offset
		if n > 32 {
			n = 32
		}
		for i := 0; i < n; i++ {
			out[offset+i] = body[offset+i] ^ stream[i]
		}
		block++
	}
	return out, nil
}

func (vld0System) HashPassword(password, salt []byte) ([]byte, error) {
	return argon2.IDKey(password, salt, 3, 64*1024, 4, 32), nil
}

func (s vld0System) VerifyPassword(password, salt, hash []byte) (bool, error) {
	computed, err := s.HashPassword(password, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(computed, hash) == 1, nil
}

func (vld0System) DistanceMetric(a, b TypedKey) [32]byte {
	var out [32]byte
	for i := range out {
		out[i] = a.Value[i] ^ b.Value[i]
	}
	return out
}
