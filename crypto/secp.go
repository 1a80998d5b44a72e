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
	"crypto/subtle"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	secp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// secpSystem is a secondary crypto kind built on secp256k1, sharing the
// Ethereum ecosystem's curve and hash function. Identities are BIP-340
// x-only public keys (32 bytes), which fit the fixed-width TypedKey
// naturally and let DH recover the full curve point via the standard
// "lift_x, even-y" convention instead of carrying a parity bit on the wire.
type secpSystem struct{}

// NewSECP returns the secondary crypto System.
func NewSECP() System { return secpSystem{} }

func (secpSystem) Kind() CryptoKind { return KindSECP }

func (s secpSystem) GenerateKeyPair() (TypedKeyPair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return TypedKeyPair{}, err
	}
	var kp TypedKeyPair
	kp.Key.Kind = KindSECP
	copy(kp.Key.Value[:], schnorr.SerializePubKey(priv.PubKey()))
	kp.Secret.Kind = KindSECP
	copy(kp.Secret.Value[:], priv.Serialize())
	return kp, nil
}

func (s secpSystem) DH(publicKey TypedKey, secretKey TypedSecret) ([32]byte, error) {
	pub, err := schnorr.ParsePubKey(publicKey.Value[:])
	if err != nil {
		return [32]byte{}, err
	}
	priv := secp256k1.PrivKeyFromBytes(secretKey.Value[:])

	var pubJ secp256k1.JacobianPoint
	pub.AsJacobian(&pubJ)

	var resultJ secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&priv.Key, &pubJ, &resultJ)
	resultJ.ToAffine()

	xBytes := resultJ.X.Bytes()
	return blake2bSum256(xBytes[:]), nil
}

func (s secpSystem) CachedDH(cache *DHCache, publicKey TypedKey, secretKey TypedSecret) ([32]byte, error) {
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

func (secpSystem) GenerateHash(data []byte) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(data))
	return out
}

func (secpSystem) Sign(publicKey TypedKey, secretKey TypedSecret, data []byte) (TypedSignature, error) {
	priv := secp256k1.PrivKeyFromBytes(secretKey.Value[:])
	digest := ethcrypto.Keccak256(data)
	sig, err := schnorr.Sign(priv, digest)
	if err != nil {
		return TypedSignature{}, err
	}
	var out TypedSignature
	out.Kind = KindSECP
	copy(out.Value[:], sig.Serialize())
	return out, nil
}

func (secpSystem) Verify(publicKey TypedKey, data []byte, sig TypedSignature) bool {
	if sig.Kind != KindSECP {
		return false
	}
	pub, err := schnorr.ParsePubKey(publicKey.Value[:])
	if err != nil {
		return false
	}
	parsed, err := schnorr.ParseSignature(sig.Value[:])
	if err != nil {
		return false
	}
	digest := ethcrypto.Keccak256(data)
	return parsed.Verify(digest, pub)
}

func (secpSystem) AeadOverhead() int { return chacha20poly1305.Overhead }
func (secpSystem) NonceLength() int  { return chacha20poly1305.NonceSizeX }

func (secpSystem) AeadEncrypt(body, nonce, sharedSecret, associatedData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(sharedSecret)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, errors.New("crypto: bad nonce length")
	}
	return aead.Seal(nil, nonce, body, associatedData), nil
}

func (secpSystem) AeadDecrypt(body, nonce, sharedSecret, associatedData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(sharedSecret)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, errors.New("crypto: bad nonce length")
	}
	return aead.Open(nil, nonce, body, associatedData)
}

func (secpSystem) CryptNoAuth(body, nonce, sharedSecret []byte) ([]byte, error) {
	out := make([]byte, len(body))
	stream := make([]byte, 0, len(body))
	counter := uint32(0)
	for len(stream) < len(body) {
		h := ethcrypto.Keccak256(sharedSecret, nonce, []byte{byte(counter), byte(counter >> 8), byte(counter >> 16), byte(counter >> 24)})
		stream = append(stream, h...)
		counter++
	}
	for i := range out {
		out[i] = body[i] ^ stream[i]
	}
	return out, nil
}

func (secpSystem) HashPassword(password, salt []byte) ([]byte, error) {
	return argon2.IDKey(password, salt, 3, 64*1024, 4, 32), nil
}

func (s secpSystem) VerifyPassword(password, salt, hash []byte) (bool, error) {
	computed, err := s.HashPassword(password, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(computed, hash) == 1, nil
}

func (secpSystem) DistanceMetric(a, b TypedKey) [32]byte {
	var out [32]byte
	for i := range out {
		out[i] = a.Value[i] ^ b.Value[i]
	}
	return out
}
