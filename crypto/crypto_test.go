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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBestCryptoKindIsFirstValid(t *testing.T) {
	require.Equal(t, ValidCryptoKinds[0], BestCryptoKind())
}

func TestDHCacheRoundTrip(t *testing.T) {
	cache := NewDHCache(4)
	secret := TypedSecret{Kind: KindVLD0, Value: [32]byte{1}}
	public := TypedKey{Kind: KindVLD0, Value: [32]byte{2}}

	_, ok := cache.Get(secret, public)
	require.False(t, ok)

	cache.Put(secret, public, [32]byte{9, 9, 9})
	v, ok := cache.Get(secret, public)
	require.True(t, ok)
	require.Equal(t, [32]byte{9, 9, 9}, v)
	require.Equal(t, 1, cache.Len())
}

func TestAggregatorDispatchesPerKind(t *testing.T) {
	c := New(16)
	for _, kind := range []CryptoKind{KindVLD0, KindSECP} {
		kp, err := c.GenerateKeyPairForKind(kind)
		require.NoError(t, err)
		require.Equal(t, kind, kp.Key.Kind)
		require.Equal(t, kind, kp.Secret.Kind)
	}

	_, err := c.System(CryptoKind{'X', 'X', 'X', 'X'})
	require.Error(t, err)
}

func signVerifyRoundTrip(t *testing.T, sys System) {
	kp, err := sys.GenerateKeyPair()
	require.NoError(t, err)

	body := []byte("This is an arbitrary body")
	sig, err := sys.Sign(kp.Key, kp.Secret, body)
	require.NoError(t, err)
	require.True(t, sys.Verify(kp.Key, body, sig))

	tampered := append([]byte(nil), body...)
	tampered[0] ^= 0x80
	require.False(t, sys.Verify(kp.Key, tampered, sig))
}

func TestVLD0SignVerify(t *testing.T) {
	signVerifyRoundTrip(t, NewVLD0())
}

func TestSECPSignVerify(t *testing.T) {
	signVerifyRoundTrip(t, NewSECP())
}

func dhIsSymmetric(t *testing.T, sys System) {
	a, err := sys.GenerateKeyPair()
	require.NoError(t, err)
	b, err := sys.GenerateKeyPair()
	require.NoError(t, err)

	sharedA, err := sys.DH(b.Key, a.Secret)
	require.NoError(t, err)
	sharedB, err := sys.DH(a.Key, b.Secret)
	require.NoError(t, err)
	require.Equal(t, sharedA, sharedB)
}

func TestVLD0DHSymmetric(t *testing.T) {
	dhIsSymmetric(t, NewVLD0())
}

func TestSECPDHSymmetric(t *testing.T) {
	dhIsSymmetric(t, NewSECP())
}

func aeadRoundTrip(t *testing.T, sys System) {
	shared := make([]byte, 32)
	for i := range shared {
		shared[i] = byte(i)
	}
	nonce := make([]byte, sys.NonceLength())
	for i := range nonce {
		nonce[i] = byte(i + 1)
	}
	plaintext := []byte("envelope payload")

	ciphertext, err := sys.AeadEncrypt(plaintext, nonce, shared, []byte("aad"))
	require.NoError(t, err)
	require.Len(t, ciphertext, len(plaintext)+sys.AeadOverhead())

	decrypted, err := sys.AeadDecrypt(ciphertext, nonce, shared, []byte("aad"))
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)

	ciphertext[0] ^= 0x01
	_, err = sys.AeadDecrypt(ciphertext, nonce, shared, []byte("aad"))
	require.Error(t, err)
}

func TestVLD0AeadRoundTrip(t *testing.T) {
	aeadRoundTrip(t, NewVLD0())
}

func TestSECPAeadRoundTrip(t *testing.T) {
	aeadRoundTrip(t, NewSECP())
}

func TestPasswordHashRoundTrip(t *testing.T) {
	sys := NewVLD0()
	salt := []byte("somesalt-somesalt")
	hash, err := sys.HashPassword([]byte("hunter2"), salt)
	require.NoError(t, err)

	ok, err := sys.VerifyPassword([]byte("hunter2"), salt, hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = sys.VerifyPassword([]byte("wrong"), salt, hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDistanceMetricIsXOR(t *testing.T) {
	sys := NewVLD0()
	a := TypedKey{Kind: KindVLD0, Value: [32]byte{0xFF}}
	b := TypedKey{Kind: KindVLD0, Value: [32]byte{0x0F}}
	d := sys.DistanceMetric(a, b)
	require.Equal(t, byte(0xF0), d[0])
}
