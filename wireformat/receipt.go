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
	"fmt"

	"github.com/dbasu/corenet/crypto"
)

// ReceiptFlags are single-bit markers carried in a Receipt.
type ReceiptFlags uint8

// Receipt is a signed acknowledgement structure, independent of the
// envelope framing: {version, flags, nonce, sender_id, extra_data,
// signature}. No protocol-layer anti-replay is implemented for receipts
// (spec §9 Open Question) — a nonce is carried so a caller *can* build
// its own replay cache keyed on it, but corenet does not do so itself.
type Receipt struct {
	Version   uint8
	Flags     ReceiptFlags
	Nonce     []byte
	SenderID  [32]byte
	ExtraData []byte
}

const currentReceiptVersion = 0

// ToSignedData serializes and signs r using senderSecret, whose public
// key must equal r.SenderID under kind.
func (r *Receipt) ToSignedData(c *crypto.Crypto, kind crypto.CryptoKind, senderPublic crypto.TypedKey, senderSecret crypto.TypedSecret) ([]byte, error) {
	sys, err := c.System(kind)
	if err != nil {
		return nil, err
	}
	if len(r.Nonce) != sys.NonceLength() {
		return nil, fmt.Errorf("wireformat: receipt nonce length mismatch for kind %s", kind)
	}
	body := make([]byte, 0, 2+len(r.Nonce)+32+len(r.ExtraData))
	body = append(body, currentReceiptVersion, byte(r.Flags))
	body = append(body, r.Nonce...)
	body = append(body, r.SenderID[:]...)
	body = append(body, r.ExtraData...)

	sig, err := sys.Sign(senderPublic, senderSecret, body)
	if err != nil {
		return nil, err
	}
	return append(body, sig.Value[:]...), nil
}

// ReceiptFromSignedData parses and verifies a receipt produced by
// ToSignedData.
func ReceiptFromSignedData(c *crypto.Crypto, kind crypto.CryptoKind, data []byte) (*Receipt, error) {
	sys, err := c.System(kind)
	if err != nil {
		return nil, err
	}
	nonceLen := sys.NonceLength()
	sigLen := 64
	minLen := 2 + nonceLen + 32 + sigLen
	if len(data) < minLen {
		return nil, fmt.Errorf("%w: receipt too short", ErrInvalidEnvelope)
	}

	version := data[0]
	flags := ReceiptFlags(data[1])
	offset := 2
	nonce := data[offset : offset+nonceLen]
	offset += nonceLen
	var senderID [32]byte
	copy(senderID[:], data[offset:offset+32])
	offset += 32
	extra := data[offset : len(data)-sigLen]

	signedRegion := data[:len(data)-sigLen]
	var sig crypto.TypedSignature
	sig.Kind = kind
	copy(sig.Value[:], data[len(data)-sigLen:])

	senderKey := crypto.TypedKey{Kind: kind, Value: senderID}
	if !sys.Verify(senderKey, signedRegion, sig) {
		return nil, fmt.Errorf("%w: receipt signature verification failed", ErrInvalidEnvelope)
	}

	return &Receipt{
		Version:   version,
		Flags:     flags,
		Nonce:     append([]byte(nil), nonce...),
		SenderID:  senderID,
		ExtraData: append([]byte(nil), extra...),
	}, nil
}
