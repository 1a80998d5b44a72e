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

package routespec

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/dbasu/corenet/crypto"
)

// encodeHopFrame packs one onion layer as [2-byte nonce length][nonce][ciphertext].
func encodeHopFrame(nonce, ciphertext []byte) []byte {
	out := make([]byte, 0, 2+len(nonce)+len(ciphertext))
	var nlen [2]byte
	binary.BigEndian.PutUint16(nlen[:], uint16(len(nonce)))
	out = append(out, nlen[:]...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out
}

func decodeHopFrame(frame []byte) (nonce, ciphertext []byte, err error) {
	if len(frame) < 2 {
		return nil, nil, fmt.Errorf("routespec: truncated hop frame")
	}
	nlen := int(binary.BigEndian.Uint16(frame[:2]))
	if len(frame) < 2+nlen {
		return nil, nil, fmt.Errorf("routespec: truncated hop frame nonce")
	}
	return frame[2 : 2+nlen], frame[2+nlen:], nil
}

// AssembleOnion wraps payload with nested AEAD envelopes, one per hop
// from tail to head (spec §4.5 Assembly): each layer is encrypted to
// that hop's public key with a fresh nonce, using a DH of the route's
// ephemeral secret and the hop's long-term public key — the hop can
// later reverse it with its own secret and the route's public key.
func (s *Store) AssembleOnion(detail *RouteSpecDetail, payload []byte) ([]byte, error) {
	kind := detail.PublicKey.Kind
	sys, err := s.crypto.System(kind)
	if err != nil {
		return nil, err
	}

	body := payload
	for i := len(detail.Hops) - 1; i >= 0; i-- {
		nonce := make([]byte, sys.NonceLength())
		if _, err := rand.Read(nonce); err != nil {
			return nil, fmt.Errorf("routespec: generating hop nonce: %w", err)
		}
		shared, err := s.crypto.CachedDH(kind, detail.Hops[i], detail.Secret)
		if err != nil {
			return nil, fmt.Errorf("routespec: DH to hop %d: %w", i, err)
		}
		ciphertext, err := sys.AeadEncrypt(body, nonce, shared[:], nil)
		if err != nil {
			return nil, fmt.Errorf("routespec: encrypting to hop %d: %w", i, err)
		}
		body = encodeHopFrame(nonce, ciphertext)
	}
	return body, nil
}

// AssembleSafety prepends an independently-constructed safety route in
// front of a (possibly stubbed) private-route-wrapped payload, hiding
// the caller's identity from the destination: the last safety hop's
// plaintext is privateRoutePayload itself, which is either an already
// onion-wrapped private route or a stub pointer if none was used.
func (s *Store) AssembleSafety(safety *RouteSpecDetail, privateRoutePayload []byte) ([]byte, error) {
	return s.AssembleOnion(safety, privateRoutePayload)
}

// PeelHop reverses one onion layer using hopSecret (the receiving hop's
// own long-term secret under kind) and routePublic (the route's
// ephemeral public key, carried alongside the frame), returning the next
// inner frame.
func PeelHop(c *crypto.Crypto, kind crypto.CryptoKind, routePublic crypto.TypedKey, hopSecret crypto.TypedSecret, frame []byte) ([]byte, error) {
	sys, err := c.System(kind)
	if err != nil {
		return nil, err
	}
	nonce, ciphertext, err := decodeHopFrame(frame)
	if err != nil {
		return nil, err
	}
	shared, err := c.CachedDH(kind, routePublic, hopSecret)
	if err != nil {
		return nil, fmt.Errorf("routespec: DH for peel: %w", err)
	}
	plaintext, err := sys.AeadDecrypt(ciphertext, nonce, shared[:], nil)
	if err != nil {
		return nil, fmt.Errorf("routespec: peeling hop layer: %w", err)
	}
	return plaintext, nil
}
