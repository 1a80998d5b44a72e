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

package wireformat

import (
	"testing"
	"time"

	"github.com/dbasu/corenet/crypto"
	"github.com/stretchr/testify/require"
)

func testEnvelopeRoundTrip(t *testing.T, kind crypto.CryptoKind) {
	c := crypto.New(16)
	sys, err := c.System(kind)
	require.NoError(t, err)

	a, err := sys.GenerateKeyPair() // sender
	require.NoError(t, err)
	b, err := sys.GenerateKeyPair() // recipient
	require.NoError(t, err)

	nonce := make([]byte, sys.NonceLength())
	for i := range nonce {
		nonce[i] = byte(i)
	}
	body := []byte("This is an arbitrary body")
	const ts = uint64(0x12345678ABCDEF69)

	frame, err := ToSignedData(c, kind, ts, nonce, a.Key, a.Secret, b.Key, body)
	require.NoError(t, err)

	env, ciphertext, err := FromSignedData(c, frame)
	require.NoError(t, err)
	require.Equal(t, ts, env.Timestamp)
	require.Equal(t, a.Key.Value, env.SenderID)
	require.Equal(t, b.Key.Value, env.RecipientID)

	recovered, err := Decrypt(c, env, ciphertext, b.Key, b.Secret)
	require.NoError(t, err)
	require.Equal(t, body, recovered)

	require.NoError(t, env.CheckTimestamp(time.UnixMicro(int64(ts)), time.Hour, time.Hour))

	// Flip the high bit of the last byte (inside the signature) -> must fail.
	tampered := append([]byte(nil), frame...)
	tampered[len(tampered)-1] ^= 0x80
	_, _, err = FromSignedData(c, tampered)
	require.ErrorIs(t, err, ErrInvalidEnvelope)

	// Flip a bit in the last ciphertext byte, just before the signature and
	// still inside the signed region -> must fail.
	tampered2 := append([]byte(nil), frame...)
	tampered2[len(tampered2)-65] ^= 0x80
	_, _, err = FromSignedData(c, tampered2)
	require.ErrorIs(t, err, ErrInvalidEnvelope)
}

func TestEnvelopeRoundTripVLD0(t *testing.T) {
	testEnvelopeRoundTrip(t, crypto.KindVLD0)
}

func TestEnvelopeRoundTripSECP(t *testing.T) {
	testEnvelopeRoundTrip(t, crypto.KindSECP)
}

func testReceiptRoundTrip(t *testing.T, kind crypto.CryptoKind) {
	c := crypto.New(16)
	sys, err := c.System(kind)
	require.NoError(t, err)

	kp, err := sys.GenerateKeyPair()
	require.NoError(t, err)

	nonce := make([]byte, sys.NonceLength())
	for i := range nonce {
		nonce[i] = byte(i + 1)
	}
	r := &Receipt{
		Flags:     0,
		Nonce:     nonce,
		SenderID:  kp.Key.Value,
		ExtraData: make([]byte, 25),
	}
	for i := range r.ExtraData {
		r.ExtraData[i] = byte(i)
	}

	data, err := r.ToSignedData(c, kind, kp.Key, kp.Secret)
	require.NoError(t, err)

	parsed, err := ReceiptFromSignedData(c, kind, data)
	require.NoError(t, err)
	require.Equal(t, r.Flags, parsed.Flags)
	require.Equal(t, r.Nonce, parsed.Nonce)
	require.Equal(t, r.SenderID, parsed.SenderID)
	require.Equal(t, r.ExtraData, parsed.ExtraData)

	tampered := append([]byte(nil), data...)
	tampered[5] ^= 0x01
	_, err = ReceiptFromSignedData(c, kind, tampered)
	require.Error(t, err)
}

func TestReceiptRoundTripVLD0(t *testing.T) {
	testReceiptRoundTrip(t, crypto.KindVLD0)
}

func TestReceiptRoundTripSECP(t *testing.T) {
	testReceiptRoundTrip(t, crypto.KindSECP)
}
