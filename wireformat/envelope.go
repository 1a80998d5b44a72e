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

// Package wireformat implements the signed envelope and receipt framing
// from spec §6: every network frame is a signed envelope, decryption
// rejects frames with a bad sender/recipient/timestamp/signature.
package wireformat

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/dbasu/corenet/crypto"
)

// Envelope is the decoded, verified header of a wire frame. The body
// (decrypted payload) is returned separately by Decrypt.
type Envelope struct {
	Version     uint8
	Kind        crypto.CryptoKind
	Timestamp   uint64 // microseconds since epoch
	Nonce       []byte
	SenderID    [32]byte
	RecipientID [32]byte
}

const currentEnvelopeVersion = 0

// ErrInvalidEnvelope is returned for any decode/verify failure: bad
// length, bad kind, timestamp out of window, AEAD failure, or signature
// failure. Spec §6/§7 treats all of these as one InvalidMessage outcome.
var ErrInvalidEnvelope = fmt.Errorf("wireformat: invalid envelope")

// ToSignedData builds the wire frame: version | kind | timestamp | nonce |
// sender | recipient | AEAD(body) | signature. The signature covers every
// preceding byte (the "signed region").
func ToSignedData(c *crypto.Crypto, kind crypto.CryptoKind, ts uint64, nonce []byte, senderPublic crypto.TypedKey, senderSecret crypto.TypedSecret, recipientPublic crypto.TypedKey, body []byte) ([]byte, error) {
	sys, err := c.System(kind)
	if err != nil {
		return nil, err
	}
	if len(nonce) != sys.NonceLength() {
		return nil, fmt.Errorf("wireformat: bad nonce length for kind %s", kind)
	}
	shared, err := c.CachedDH(kind, recipientPublic, senderSecret)
	if err != nil {
		return nil, err
	}
	ciphertext, err := sys.AeadEncrypt(body, nonce, shared[:], nil)
	if err != nil {
		return nil, err
	}

	header := make([]byte, 0, 1+4+8+len(nonce)+32+32+len(ciphertext))
	header = append(header, currentEnvelopeVersion)
	header = append(header, kind[:]...)
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], ts)
	header = append(header, tsBuf[:]...)
	header = append(header, nonce...)
	header = append(header, senderPublic.Value[:]...)
	header = append(header, recipientPublic.Value[:]...)
	header = append(header, ciphertext...)

	sig, err := sys.Sign(senderPublic, senderSecret, header)
	if err != nil {
		return nil, err
	}
	return append(header, sig.Value[:]...), nil
}

// FromSignedData parses and signature-verifies frame, returning the
// Envelope header. It does not decrypt the body or check the timestamp
// window — callers that want the body call Decrypt; callers that want
// the freshness check call CheckTimestamp.
func FromSignedData(c *crypto.Crypto, frame []byte) (*Envelope, []byte, error) {
	if len(frame) < 1+4+8 {
		return nil, nil, ErrInvalidEnvelope
	}
	version := frame[0]
	if version != currentEnvelopeVersion {
		return nil, nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidEnvelope, version)
	}
	var kind crypto.CryptoKind
	copy(kind[:], frame[1:5])
	sys, err := c.System(kind)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	ts := binary.BigEndian.Uint64(frame[5:13])

	nonceLen := sys.NonceLength()
	sigLen := 64
	minLen := 1 + 4 + 8 + nonceLen + 32 + 32 + sigLen
	if len(frame) < minLen {
		return nil, nil, ErrInvalidEnvelope
	}

	offset := 13
	nonce := frame[offset : offset+nonceLen]
	offset += nonceLen
	var senderID, recipientID [32]byte
	copy(senderID[:], frame[offset:offset+32])
	offset += 32
	copy(recipientID[:], frame[offset:offset+32])
	offset += 32

	signedRegion := frame[:len(frame)-sigLen]
	sigBytes := frame[len(frame)-sigLen:]

	var sig crypto.TypedSignature
	sig.Kind = kind
	copy(sig.Value[:], sigBytes)

	senderKey := crypto.TypedKey{Kind: kind, Value: senderID}
	if !sys.Verify(senderKey, signedRegion, sig) {
		return nil, nil, fmt.Errorf("%w: signature verification failed", ErrInvalidEnvelope)
	}

	ciphertext := frame[offset : len(frame)-sigLen]

	env := &Envelope{
		Version:     version,
		Kind:        kind,
		Timestamp:   ts,
		Nonce:       append([]byte(nil), nonce...),
		SenderID:    senderID,
		RecipientID: recipientID,
	}
	return env, ciphertext, nil
}

// CheckTimestamp validates env.Timestamp against [now-behind, now+ahead].
func (env *Envelope) CheckTimestamp(now time.Time, maxBehind, maxAhead time.Duration) error {
	ts := time.UnixMicro(int64(env.Timestamp))
	if ts.Before(now.Add(-maxBehind)) {
		return fmt.Errorf("%w: timestamp too far behind", ErrInvalidEnvelope)
	}
	if ts.After(now.Add(maxAhead)) {
		return fmt.Errorf("%w: timestamp too far ahead", ErrInvalidEnvelope)
	}
	return nil
}

// Decrypt recovers the plaintext body given the recipient's secret key.
func Decrypt(c *crypto.Crypto, env *Envelope, ciphertext []byte, recipientPublic crypto.TypedKey, recipientSecret crypto.TypedSecret) ([]byte, error) {
	sys, err := c.System(env.Kind)
	if err != nil {
		return nil, err
	}
	senderKey := crypto.TypedKey{Kind: env.Kind, Value: env.SenderID}
	shared, err := c.CachedDH(env.Kind, senderKey, recipientSecret)
	if err != nil {
		return nil, err
	}
	body, err := sys.AeadDecrypt(ciphertext, env.Nonce, shared[:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	return body, nil
}
