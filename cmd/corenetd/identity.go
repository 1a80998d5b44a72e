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

package main

import (
	"fmt"

	"github.com/dbasu/corenet/crypto"
	"github.com/dbasu/corenet/protectedstore"
)

const identitySecretLabel = "node_identity_vld0"

// loadOrGenerateIdentity recovers this node's VLD0 keypair from ps, or
// generates and persists a new one on first run. The crypto package has
// no secret-to-public derivation (GenerateKeyPairForKind only ever mints
// a fresh random pair), so the whole pair is persisted, not just the
// secret half.
func loadOrGenerateIdentity(c *crypto.Crypto, ps *protectedstore.Store) (crypto.TypedKeyPair, error) {
	raw, ok, err := ps.LoadSecret(identitySecretLabel)
	if err != nil {
		return crypto.TypedKeyPair{}, fmt.Errorf("corenetd: loading identity: %w", err)
	}
	if ok {
		kp, err := decodeIdentity(raw)
		if err != nil {
			return crypto.TypedKeyPair{}, fmt.Errorf("corenetd: decoding stored identity: %w", err)
		}
		return kp, nil
	}

	kp, err := c.GenerateKeyPairForKind(crypto.KindVLD0)
	if err != nil {
		return crypto.TypedKeyPair{}, fmt.Errorf("corenetd: generating identity: %w", err)
	}
	if err := ps.SaveSecret(identitySecretLabel, encodeIdentity(kp)); err != nil {
		return crypto.TypedKeyPair{}, fmt.Errorf("corenetd: persisting identity: %w", err)
	}
	return kp, nil
}

// encodeIdentity/decodeIdentity pack a TypedKeyPair as kind(4) | key(32) |
// secret(32); the pair only ever crosses protectedstore's own AEAD
// sealing, never the wire, so a flat layout is enough.
func encodeIdentity(kp crypto.TypedKeyPair) []byte {
	out := make([]byte, 0, 4+32+32)
	out = append(out, kp.Key.Kind[:]...)
	out = append(out, kp.Key.Value[:]...)
	out = append(out, kp.Secret.Value[:]...)
	return out
}

func decodeIdentity(raw []byte) (crypto.TypedKeyPair, error) {
	if len(raw) != 4+32+32 {
		return crypto.TypedKeyPair{}, fmt.Errorf("corenetd: identity blob has wrong length %d", len(raw))
	}
	var kp crypto.TypedKeyPair
	copy(kp.Key.Kind[:], raw[0:4])
	copy(kp.Key.Value[:], raw[4:36])
	kp.Secret.Kind = kp.Key.Kind
	copy(kp.Secret.Value[:], raw[36:68])
	return kp, nil
}
